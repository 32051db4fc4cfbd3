package xapi

import (
	"fmt"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

var tabVerbs = map[string]*Verb{
	"edx.ui.lms.sequence.next_selected":     terminated,
	"edx.ui.lms.sequence.previous_selected": terminated,
	"edx.ui.lms.sequence.tab_selected":      initialized,
}

func (c *catalog) navigation() map[string]*transform.Definition {
	link := c.define("xapi.LinkClicked", "context")
	link.Values["verb"] = experienced
	link.Derivers["object"] = linkObject
	link.Derivers["context"] = c.linkContext

	outline := c.define("xapi.OutlineSelected", "context")
	outline.Values["verb"] = initialized
	outline.Derivers["object"] = outlineObject
	outline.Derivers["context"] = referrerContext

	tab := c.define("xapi.TabNavigation", "context")
	tab.Derivers["verb"] = verbs(tabVerbs)
	tab.Derivers["object"] = tabObject
	tab.Derivers["context"] = tabContext

	return map[string]*transform.Definition{
		"edx.ui.lms.link_clicked":               link,
		"edx.ui.lms.sequence.outline.selected":  outline,
		"edx.ui.lms.outline.selected":           outline,
		"edx.ui.lms.sequence.next_selected":     tab,
		"edx.ui.lms.sequence.previous_selected": tab,
		"edx.ui.lms.sequence.tab_selected":      tab,
	}
}

func stringField(ev event.Raw, key string) (string, error) {
	v, err := dataValue(ev, key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%s is not a string", key)
	}
	return s, nil
}

func linkObject(ev event.Raw, _ transform.Record) (interface{}, error) {
	target, err := stringField(ev, "target_url")
	if err != nil {
		return nil, err
	}
	return activity(target, &ActivityDefinition{
		Type:       ActivityLink,
		Name:       lang("Link name"),
		Extensions: Extensions{ExtPosition: target},
	}), nil
}

func (c *catalog) linkContext(ev event.Raw, _ transform.Record) (interface{}, error) {
	return &Context{
		ContextActivities: &ContextActivities{
			Parent: []Activity{c.courseActivity(ev.ContextString("course_id"))},
		},
		Extensions: Extensions{ExtReferrer: ev.Context()["referer"]},
	}, nil
}

func outlineObject(ev event.Raw, _ transform.Record) (interface{}, error) {
	target, err := stringField(ev, "target_url")
	if err != nil {
		return nil, err
	}
	return activity(target, &ActivityDefinition{
		Type: ActivityModule,
		Name: lang(nestedString(ev, "target_name")),
	}), nil
}

func tabObject(ev event.Raw, _ transform.Record) (interface{}, error) {
	id, err := stringField(ev, "id")
	if err != nil {
		return nil, err
	}
	key := "current_tab"
	if ev.Name() == "edx.ui.lms.sequence.tab_selected" {
		key = "target_tab"
	}
	position, err := dataValue(ev, key)
	if err != nil {
		return nil, err
	}
	return activity(id, &ActivityDefinition{
		Type:       ActivityModule,
		Extensions: Extensions{ExtPosition: position},
	}), nil
}

func tabContext(ev event.Raw, _ transform.Record) (interface{}, error) {
	id, err := stringField(ev, "id")
	if err != nil {
		return nil, err
	}
	var ext Extensions
	switch ev.Name() {
	case "edx.ui.lms.sequence.tab_selected":
		current, err := dataValue(ev, "current_tab")
		if err != nil {
			return nil, err
		}
		ext = Extensions{ExtStartingPosition: current}
	case "edx.ui.lms.sequence.next_selected":
		ext = Extensions{ExtEndingPosition: "next unit"}
	default:
		ext = Extensions{ExtEndingPosition: "previous unit"}
	}
	return &Context{
		ContextActivities: &ContextActivities{
			Parent: []Activity{{
				ObjectType: "Activity",
				ID:         id,
				Definition: &ActivityDefinition{Type: ActivityModule},
			}},
		},
		Extensions: ext,
	}, nil
}
