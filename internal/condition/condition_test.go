package condition

import "testing"

func rec() map[string]interface{} {
	return map[string]interface{}{
		"name": "problem_check",
		"context": map[string]interface{}{
			"event_source": "browser",
			"course_id":    "course-v1:edX+DemoX+Demo_Course",
		},
		"data": map[string]interface{}{
			"grade":     float64(3),
			"max_grade": 4,
			"tags":      []interface{}{"a", "b"},
			"correct":   true,
		},
		"@context": "http://purl.imsglobal.org/ctx/caliper/v1p1",
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		name string
		expr string
		want bool
	}{
		{"eq string", `context.event_source == "browser"`, true},
		{"eq string false", `context.event_source == "server"`, false},
		{"neq", `name != "showanswer"`, true},
		{"numeric int vs float", `data.max_grade == 4.0`, true},
		{"gt", `data.grade > 2`, true},
		{"lte", `data.grade <= 2`, false},
		{"bool", `data.correct == true`, true},
		{"AND", `name == "problem_check" AND data.grade >= 3`, true},
		{"OR", `name == "x" OR data.grade >= 3`, true},
		{"NOT", `NOT context.event_source == "server"`, true},
		{"parens", `(name == "x" OR name == "problem_check") AND data.correct == true`, true},
		{"contains substring", `context.course_id contains "DemoX"`, true},
		{"contains list", `data.tags contains "b"`, true},
		{"matches", `context.course_id matches "^course-v1:edX\\+"`, true},
		{"exists", `data.grade exists`, true},
		{"not exists", `NOT data.problem_id exists`, true},
		{"missing field eq", `data.problem_id == "p"`, false},
		{"missing field neq", `data.problem_id != "p"`, true},
		{"at sign path", `@context contains "caliper"`, true},
		{"null literal", `data.correct == null`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := Compile(tc.expr)
			if err != nil {
				t.Fatalf("Compile(%q) error: %v", tc.expr, err)
			}
			got, err := f.Match(rec())
			if err != nil {
				t.Fatalf("Match error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Match(%q) = %v, want %v", tc.expr, got, tc.want)
			}
		})
	}
}

func TestMatch_NumericOperatorOnString(t *testing.T) {
	f := MustCompile(`name > 3`)
	if _, err := f.Match(rec()); err == nil {
		t.Fatalf("expected error comparing string with >")
	}
}

func TestCompile_Errors(t *testing.T) {
	cases := []string{
		`"unterminated`,
		`data.grade 1000`,
		``,
		`(name == "x"`,
		`name = "x"`,
		`name matches "("`,
		`"lit" exists`,
		`name == "x" extra`,
	}
	for _, expr := range cases {
		t.Run(expr, func(t *testing.T) {
			if _, err := Compile(expr); err == nil {
				t.Errorf("expected compile error for %q, got nil", expr)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	cases := []struct {
		a, b interface{}
		want bool
	}{
		{7, float64(7), true},
		{"7", 7, false},
		{nil, nil, true},
		{[]interface{}{1, "a"}, []interface{}{float64(1), "a"}, true},
		{map[string]interface{}{"k": 1}, map[string]interface{}{"k": float64(1)}, true},
		{map[string]interface{}{"k": 1}, map[string]interface{}{"k": 2}, false},
		{true, "true", false},
	}
	for _, tc := range cases {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("Equal(%#v, %#v) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
