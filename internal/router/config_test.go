package router

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestAllowedHosts_MatchParams(t *testing.T) {
	conf := &Config{Hosts: []HostConfig{
		{MatchParams: map[string]interface{}{"data.key": "value"}, Connection: Connection{URL: "a"}},
	}}

	cases := []struct {
		name  string
		event map[string]interface{}
		want  int
	}{
		{"equal value", map[string]interface{}{"data": map[string]interface{}{"key": "value"}}, 1},
		{"different value", map[string]interface{}{"data": map[string]interface{}{"key": "other"}}, 0},
		{"absent path", map[string]interface{}{"data": map[string]interface{}{}}, 0},
		{"no data", map[string]interface{}{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := conf.AllowedHosts(tc.event)
			assert.NotNil(t, got)
			assert.Len(t, got, tc.want)
		})
	}
}

func TestAllowedHosts_EmptyParamsMatchAndOrder(t *testing.T) {
	conf := &Config{Hosts: []HostConfig{
		{Connection: Connection{URL: "first"}},
		{MatchParams: map[string]interface{}{"name": "nope"}, Connection: Connection{URL: "skipped"}},
		{MatchParams: map[string]interface{}{"context.org_id": 7}, Connection: Connection{URL: "third"}},
	}}
	ev := map[string]interface{}{"name": "x", "context": map[string]interface{}{"org_id": 7.0}}

	got := conf.AllowedHosts(ev)
	assert.Equal(t, []string{"first", "third"}, []string{got[0].Connection.URL, got[1].Connection.URL})
}

func TestAllowedHosts_NoHosts(t *testing.T) {
	got := (&Config{}).AllowedHosts(map[string]interface{}{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestAllowedHosts_Pure(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("matching twice yields identical results", prop.ForAll(
		func(wantIdx, haveIdx int, nested bool) bool {
			values := []string{"value", "other", ""}
			want, have := values[wantIdx], values[haveIdx]
			path := "data.key"
			if !nested {
				path = "key"
			}
			conf := &Config{Hosts: []HostConfig{
				{MatchParams: map[string]interface{}{path: want}, Connection: Connection{URL: "a"}},
				{Connection: Connection{URL: "b"}},
			}}
			ev := map[string]interface{}{
				"key":  have,
				"data": map[string]interface{}{"key": have},
			}
			first := conf.AllowedHosts(ev)
			second := conf.AllowedHosts(ev)
			if !reflect.DeepEqual(first, second) {
				return false
			}
			wantLen := 1
			if want == have {
				wantLen = 2
			}
			return len(first) == wantLen && first[len(first)-1].Connection.URL == "b"
		},
		gen.IntRange(0, 2),
		gen.IntRange(0, 2),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func TestStrategy_Default(t *testing.T) {
	assert.Equal(t, StrategyHTTP, HostConfig{}.Strategy())
	assert.Equal(t, StrategyAuthHeaders, HostConfig{RouterType: "auth_headers"}.Strategy())
}

func TestMerge_OverridesWin(t *testing.T) {
	ev := map[string]interface{}{"a": 1, "b": 2}
	got := Merge(ev, map[string]interface{}{"b": 3, "c": 4})
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 3, "c": 4}, got)
	assert.Equal(t, 2, ev["b"])
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	conf := &Config{Hosts: []HostConfig{
		{RouterType: "SMOKE_SIGNAL"},
		{RouterType: StrategyKafka},
		{RouterType: StrategyAuthHeaders, Connection: Connection{URL: "u", AuthScheme: "Bearer"}},
	}}
	known := map[string]bool{StrategyHTTP: true, StrategyAuthHeaders: true, StrategyKafka: true}
	err := conf.Validate(known)
	if assert.Error(t, err) {
		msg := err.Error()
		assert.Contains(t, msg, "backend is required")
		assert.Contains(t, msg, `unknown router_type "SMOKE_SIGNAL"`)
		assert.Contains(t, msg, "hosts[0]: url is required")
		assert.Contains(t, msg, "hosts[1]: topic is required")
		assert.Contains(t, msg, "hosts[2]: api_key is required")
	}
}

func TestValidate_OK(t *testing.T) {
	conf := &Config{Backend: "caliper", Hosts: []HostConfig{{Connection: Connection{URL: "http://x"}}}}
	assert.NoError(t, conf.Validate(nil))
}
