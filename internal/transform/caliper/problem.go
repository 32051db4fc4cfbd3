package caliper

import (
	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

var (
	problemActions = map[string]string{
		"problem_check":                         "Submitted",
		"edx.grades.problem.submitted":          "Submitted",
		"showanswer":                            "Viewed",
		"problem_show":                          "Viewed",
		"edx.problem.hint.demandhint_displayed": "Viewed",
		"edx.problem.completed":                 "Completed",
	}
	problemObjectTypes = map[string]string{
		"problem_check":                         "Assessment",
		"edx.grades.problem.submitted":          "Assessment",
		"showanswer":                            "Frame",
		"problem_show":                          "Frame",
		"edx.problem.hint.demandhint_displayed": "Frame",
		"edx.problem.completed":                 "AssessmentItem",
	}
	problemEventTypes = map[string]string{
		"problem_check":                         "AssessmentEvent",
		"edx.grades.problem.submitted":          "AssessmentEvent",
		"showanswer":                            "ViewEvent",
		"problem_show":                          "ViewEvent",
		"edx.problem.hint.demandhint_displayed": "ViewEvent",
		"edx.problem.completed":                 "AssessmentItemEvent",
	}
)

func (c *catalog) problem() map[string]*transform.Definition {
	def := c.define("caliper.Problem")
	def.Derivers["type"] = lookup(problemEventTypes)
	def.Derivers["action"] = lookup(problemActions)
	def.Derivers["object"] = problemObject

	defs := make(map[string]*transform.Definition, len(problemActions))
	for name := range problemActions {
		defs[name] = def
	}
	return defs
}

func problemObject(ev event.Raw, out transform.Record) (interface{}, error) {
	browser := ev.ContextString("event_source") == "browser"

	// Browser events carry data as an opaque payload, often a query string.
	var data map[string]interface{}
	if m, ok := ev["data"].(map[string]interface{}); ok {
		data = m
	} else if !browser {
		d, err := ev.Data()
		if err != nil {
			return nil, err
		}
		data = d
	}

	var id interface{}
	if v, ok := data["problem_id"]; ok {
		id = v
	} else if v, ok := data["module_id"]; ok {
		id = v
	} else if block, ok := transform.BlockIDFromReferrer(ev.ContextString("referer")); ok {
		id = block
	} else {
		id = ev.Context()["referer"]
	}

	obj := object(out)
	obj["id"] = id
	obj["type"] = problemObjectTypes[ev.Name()]

	ext := extensions(obj)
	if browser {
		ext["data"] = ev["data"]
	} else {
		update(ext, event.CopyMap(data))
		delete(ext, "problem_id")
	}
	delete(ext, "user_id")
	return obj, nil
}
