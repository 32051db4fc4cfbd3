package router_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/gyaneshwarpardhi/eventrouter/internal/processor"
	"github.com/gyaneshwarpardhi/eventrouter/internal/router"
)

type staticSource struct {
	conf *router.Config
	err  error
	seen []string
}

func (s *staticSource) LatestEnabled(_ context.Context, backend, tenant string) (*router.Config, error) {
	s.seen = append(s.seen, backend+"/"+tenant)
	return s.conf, s.err
}

type recorder struct {
	mu      sync.Mutex
	bodies  []map[string]interface{}
	headers []http.Header
	status  int
}

func (rec *recorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		_ = json.Unmarshal(raw, &body)
		rec.mu.Lock()
		rec.bodies = append(rec.bodies, body)
		rec.headers = append(rec.headers, r.Header.Clone())
		status := rec.status
		rec.mu.Unlock()
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newRouter(src router.ConfigSource, chain processor.Chain) (*router.Router, *test.Hook) {
	log, hook := test.NewNullLogger()
	return &router.Router{
		Name:       "default",
		Backend:    "caliper",
		Processors: chain,
		Source:     src,
		Strategies: router.DefaultStrategies(2 * time.Second),
		Log:        log,
	}, hook
}

var original = map[string]interface{}{
	"name": "edx.course.enrollment.activated",
	"data": map[string]interface{}{"key": "value"},
}

func TestSend_OverrideAppliesToOneHostOnly(t *testing.T) {
	first, second := &recorder{}, &recorder{}
	s1, s2 := first.server(t), second.server(t)

	src := &staticSource{conf: &router.Config{Backend: "caliper", Enabled: true, Hosts: []router.HostConfig{
		{
			RouterType:   router.StrategyAuthHeaders,
			Connection:   router.Connection{URL: s1.URL, AuthScheme: "Bearer", APIKey: "k1"},
			OverrideArgs: map[string]interface{}{"new_key": "new_value"},
		},
		{
			RouterType: router.StrategyAuthHeaders,
			Connection: router.Connection{URL: s2.URL},
		},
	}}}
	r, _ := newRouter(src, nil)

	transformed := map[string]interface{}{"id": "urn:uuid:1", "action": "Activated"}
	out, err := r.Send(context.Background(), "", original, transformed)
	require.NoError(t, err)
	assert.Len(t, out.Delivered, 2)
	assert.Empty(t, out.Failed)

	require.Len(t, first.bodies, 1)
	require.Len(t, second.bodies, 1)
	assert.Equal(t, "new_value", first.bodies[0]["new_key"])
	assert.NotContains(t, second.bodies[0], "new_key")
	assert.NotContains(t, transformed, "new_key")

	assert.Equal(t, "Bearer k1", first.headers[0].Get("Authorization"))
	assert.Empty(t, second.headers[0].Get("Authorization"))
	assert.Equal(t, "application/json", first.headers[0].Get("Content-Type"))
}

func TestSend_FailingHostDoesNotStopOthers(t *testing.T) {
	good := &recorder{}
	srv := good.server(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	src := &staticSource{conf: &router.Config{Backend: "caliper", Enabled: true, Hosts: []router.HostConfig{
		{Connection: router.Connection{URL: deadURL}},
		{Connection: router.Connection{URL: srv.URL}},
	}}}
	r, hook := newRouter(src, nil)

	out, err := r.Send(context.Background(), "", original, map[string]interface{}{"id": "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL}, out.Delivered)
	assert.Equal(t, []string{deadURL}, out.Failed)
	assert.Len(t, good.bodies, 1)

	var sawError bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "failed to dispatch event" {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestSend_NonSuccessStatusIsFailure(t *testing.T) {
	rec := &recorder{status: http.StatusInternalServerError}
	srv := rec.server(t)
	src := &staticSource{conf: &router.Config{Backend: "caliper", Enabled: true, Hosts: []router.HostConfig{
		{Connection: router.Connection{URL: srv.URL}},
	}}}
	r, _ := newRouter(src, nil)

	out, err := r.Send(context.Background(), "", original, map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL}, out.Failed)
}

func TestSend_UnknownStrategySkipsHost(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	src := &staticSource{conf: &router.Config{Backend: "caliper", Enabled: true, Hosts: []router.HostConfig{
		{RouterType: "CARRIER_PIGEON", Connection: router.Connection{URL: srv.URL}},
		{Connection: router.Connection{URL: srv.URL}},
	}}}
	r, hook := newRouter(src, nil)

	out, err := r.Send(context.Background(), "", original, map[string]interface{}{})
	require.NoError(t, err)
	assert.Len(t, out.Delivered, 1)
	assert.Len(t, out.Failed, 1)
	assert.Len(t, rec.bodies, 1)

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Message == "unsupported routing strategy" {
			found = true
			assert.Equal(t, logrus.ErrorLevel, e.Level)
		}
	}
	assert.True(t, found)
}

func TestSend_SkipReasons(t *testing.T) {
	t.Run("no router", func(t *testing.T) {
		src := &staticSource{}
		r, _ := newRouter(src, nil)
		out, err := r.Send(context.Background(), "ent-1", original, map[string]interface{}{})
		require.NoError(t, err)
		assert.Equal(t, router.SkipNoRouter, out.Skipped)
		assert.Equal(t, []string{"caliper/ent-1"}, src.seen)
	})

	t.Run("no host matches", func(t *testing.T) {
		src := &staticSource{conf: &router.Config{Backend: "caliper", Enabled: true, Hosts: []router.HostConfig{
			{MatchParams: map[string]interface{}{"data.key": "other"}, Connection: router.Connection{URL: "http://unused"}},
		}}}
		r, _ := newRouter(src, nil)
		out, err := r.Send(context.Background(), "", original, map[string]interface{}{})
		require.NoError(t, err)
		assert.Equal(t, router.SkipNoHost, out.Skipped)
	})

	t.Run("processor skip", func(t *testing.T) {
		src := &staticSource{}
		r, hook := newRouter(src, processor.Chain{processor.SkipUnless("action", "Deactivated")})
		out, err := r.Send(context.Background(), "", original, map[string]interface{}{"action": "Activated"})
		require.NoError(t, err)
		assert.Equal(t, router.SkipProcessor, out.Skipped)
		assert.Empty(t, src.seen, "config is not looked up after a skip")
		for _, e := range hook.AllEntries() {
			assert.NotEqual(t, logrus.ErrorLevel, e.Level)
		}
	})
}

func TestSend_ProcessorErrorPropagates(t *testing.T) {
	boom := errors.New("boom")
	r, _ := newRouter(&staticSource{}, processor.Chain{
		func(context.Context, map[string]interface{}) (map[string]interface{}, error) { return nil, boom },
	})
	_, err := r.Send(context.Background(), "", original, map[string]interface{}{})
	assert.ErrorIs(t, err, boom)
}

func TestSend_SourceErrorPropagates(t *testing.T) {
	boom := errors.New("db down")
	r, _ := newRouter(&staticSource{err: boom}, nil)
	_, err := r.Send(context.Background(), "", original, map[string]interface{}{})
	assert.ErrorIs(t, err, boom)
}

func TestSend_ProcessorsSeeTransformedEvent(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	src := &staticSource{conf: &router.Config{Backend: "caliper", Enabled: true, Hosts: []router.HostConfig{
		{Connection: router.Connection{URL: srv.URL}},
	}}}
	r, _ := newRouter(src, processor.Chain{processor.CaliperEnvelope("http://sensor")})

	_, err := r.Send(context.Background(), "", original, map[string]interface{}{"id": "urn:uuid:1"})
	require.NoError(t, err)
	require.Len(t, rec.bodies, 1)
	assert.Equal(t, "http://sensor", rec.bodies[0]["sensor"])
	data := rec.bodies[0]["data"].(map[string]interface{})
	assert.Equal(t, "urn:uuid:1", data["id"])
}

func TestLRSSender_BasicAuthAndVersion(t *testing.T) {
	rec := &recorder{}
	srv := rec.server(t)
	s := router.NewLRSSender(time.Second)
	err := s.Send(context.Background(), router.Connection{URL: srv.URL, Username: "key", Password: "secret"}, []byte(`{}`), nil)
	require.NoError(t, err)

	require.Len(t, rec.headers, 1)
	assert.Equal(t, "1.0.3", rec.headers[0].Get("X-Experience-API-Version"))
	req := &http.Request{Header: rec.headers[0]}
	user, pass, ok := req.BasicAuth()
	assert.True(t, ok)
	assert.Equal(t, "key", user)
	assert.Equal(t, "secret", pass)
}

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	var out kgo.ProduceResults
	for _, r := range rs {
		f.records = append(f.records, r)
		out = append(out, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return out
}

func TestKafkaSender_KeysByEventID(t *testing.T) {
	p := &fakeProducer{}
	s := &router.KafkaSender{Producer: p}
	ev := map[string]interface{}{"data": map[string]interface{}{"id": "urn:uuid:abc"}}
	err := s.Send(context.Background(), router.Connection{Topic: "caliper", Headers: map[string]string{"tenant": "t1"}}, []byte(`{}`), ev)
	require.NoError(t, err)

	require.Len(t, p.records, 1)
	assert.Equal(t, "caliper", p.records[0].Topic)
	assert.Equal(t, "urn:uuid:abc", string(p.records[0].Key))
	require.Len(t, p.records[0].Headers, 1)
	assert.Equal(t, "tenant", p.records[0].Headers[0].Key)
}

func TestKafkaSender_ProduceError(t *testing.T) {
	boom := errors.New("broker unavailable")
	s := &router.KafkaSender{Producer: &fakeProducer{err: boom}}
	err := s.Send(context.Background(), router.Connection{Topic: "t"}, []byte(`{}`), map[string]interface{}{})
	assert.ErrorIs(t, err, boom)
}
