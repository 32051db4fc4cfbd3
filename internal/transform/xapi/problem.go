package xapi

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

var interactionTypes = map[string]string{
	"choiceresponse":         "choice",
	"multiplechoiceresponse": "choice",
	"numericalresponse":      "numeric",
	"stringresponse":         "fill-in",
	"customresponse":         "other",
	"coderesponse":           "performance",
	"externalresponse":       "performance",
	"formularesponse":        "fill-in",
	"schematicresponse":      "sequencing",
	"imageresponse":          "matching",
	"annotationresponse":     "fill-in",
	"choicetextresponse":     "choice",
	"optionresponse":         "choice",
	"symbolicresponse":       "fill-in",
	"truefalseresponse":      "true-false",
}

const defaultInteractionType = "other"

var problemVerbs = map[string]*Verb{
	"edx.grades.problem.submitted":          attempted,
	"problem_check":                         answered,
	"showanswer":                            asked,
	"edx.problem.hint.demandhint_displayed": interacted,
}

// InteractionType maps a capa response type to an xAPI interaction type.
func InteractionType(responseType string) string {
	if t, ok := interactionTypes[responseType]; ok {
		return t
	}
	return defaultInteractionType
}

func (c *catalog) problem() map[string]*transform.Definition {
	shown := c.define("xapi.ProblemEvent", "context")
	shown.Derivers["verb"] = verbs(problemVerbs)
	shown.Derivers["object"] = problemObject
	shown.Derivers["context"] = c.problemContext

	submitted := c.define("xapi.ProblemSubmitted", "context", "result")
	submitted.Derivers["verb"] = verbs(problemVerbs)
	submitted.Derivers["object"] = problemObject
	submitted.Derivers["context"] = c.problemContext
	submitted.Derivers["result"] = gradesResult

	check := c.define("xapi.ProblemCheck", "context", "result")
	check.Derivers["verb"] = verbs(problemVerbs)
	check.Derivers["object"] = problemCheckObject
	check.Derivers["context"] = c.problemContext
	check.Derivers["result"] = problemCheckResult

	return map[string]*transform.Definition{
		"showanswer":                            shown,
		"edx.problem.hint.demandhint_displayed": shown,
		"edx.grades.problem.submitted":          submitted,
		"problem_check":                         check,
	}
}

func problemObject(ev event.Raw, _ transform.Record) (interface{}, error) {
	id := nestedString(ev, "problem_id")
	if id == "" {
		id = nestedString(ev, "module_id")
	}
	return activity(id, &ActivityDefinition{Type: ActivityInteraction}), nil
}

func (c *catalog) problemContext(ev event.Raw, _ transform.Record) (interface{}, error) {
	return &Context{
		ContextActivities: &ContextActivities{
			Parent: []Activity{c.courseActivity(ev.ContextString("course_id"))},
		},
	}, nil
}

func isBrowser(ev event.Raw) bool {
	return ev.ContextString("event_source") == "browser"
}

func problemCheckObject(ev event.Raw, out transform.Record) (interface{}, error) {
	v, _ := problemObject(ev, out)
	obj := v.(*Activity)

	if isBrowser(ev) {
		if block, ok := transform.BlockIDFromReferrer(ev.ContextString("referer")); ok {
			obj.ID = block
		} else {
			obj.ID = nestedString(ev, "referer")
		}
		obj.Definition.Extensions = Extensions{"data": ev["data"]}
		return obj, nil
	}

	answers := answerList(ev)
	obj.Definition.InteractionType = InteractionType(nestedString(ev, "response_type"))
	obj.Definition.CorrectResponsesPattern = answers
	if obj.Definition.InteractionType == "choice" {
		obj.Definition.Choices = choices(ev, answers)
	}
	return obj, nil
}

// answerList returns the answers of the first (by key) input of the
// submission. A single answer is wrapped in a list.
func answerList(ev event.Raw) []string {
	v, ok := nested(ev, "answers")
	if !ok {
		return []string{}
	}
	m, ok := v.(map[string]interface{})
	if !ok || len(m) == 0 {
		return []string{}
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return stringList(m[keys[0]])
}

func stringList(v interface{}) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case []string:
		return t
	case nil:
		return []string{}
	default:
		return []string{fmt.Sprint(t)}
	}
}

func choices(ev event.Raw, answers []string) []InteractionComponent {
	v, _ := nested(ev, "answer")
	descriptions := stringList(v)
	n := len(answers)
	if len(descriptions) < n {
		n = len(descriptions)
	}
	out := make([]InteractionComponent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, InteractionComponent{ID: answers[i], Description: lang(descriptions[i])})
	}
	return out
}

// score builds a Score from earned and possible values.
func score(earnedV, possibleV interface{}) (*Score, error) {
	possible, ok := transform.Float(possibleV)
	if !ok || possible == 0 {
		return nil, fmt.Errorf("%w: possible score is %v", transform.ErrInvalidScore, possibleV)
	}
	earned, ok := transform.Float(earnedV)
	if !ok {
		return nil, fmt.Errorf("%w: earned score is %v", transform.ErrInvalidScore, earnedV)
	}
	return &Score{Min: 0, Max: possible, Raw: earned, Scaled: earned / possible}, nil
}

func gradesResult(ev event.Raw, _ transform.Record) (interface{}, error) {
	d, err := ev.Data()
	if err != nil {
		return nil, err
	}
	s, err := score(d["weighted_earned"], d["weighted_possible"])
	if err != nil {
		return nil, err
	}
	return &Result{
		Success: boolPtr(s.Raw >= s.Max),
		Score:   s,
	}, nil
}

func problemCheckResult(ev event.Raw, _ transform.Record) (interface{}, error) {
	if isBrowser(ev) {
		return transform.Omit, nil
	}
	d, err := ev.Data()
	if err != nil {
		return nil, err
	}
	s, err := score(d["grade"], d["max_grade"])
	if err != nil {
		return nil, err
	}
	res := &Result{
		Success: boolPtr(d["success"] == "correct"),
		Score:   s,
	}
	if answers, ok := nested(ev, "answers"); ok {
		b, err := json.Marshal(answers)
		if err != nil {
			return nil, err
		}
		res.Response = string(b)
	}
	return res, nil
}
