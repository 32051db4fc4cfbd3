package caliper

import (
	"fmt"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

// navigation events whose object is identified by data.target_url rather
// than data.id.
var targetURLEvents = map[string]bool{
	"edx.ui.lms.link_clicked":              true,
	"edx.ui.lms.sequence.outline.selected": true,
	"edx.ui.lms.outline.selected":          true,
}

var navigationEvents = []string{
	"edx.ui.lms.sequence.next_selected",
	"edx.ui.lms.sequence.previous_selected",
	"edx.ui.lms.sequence.tab_selected",
	"edx.ui.lms.link_clicked",
	"edx.ui.lms.sequence.outline.selected",
	"edx.ui.lms.outline.selected",
}

func (c *catalog) navigation() map[string]*transform.Definition {
	def := c.define("caliper.Navigation")
	def.Values["type"] = "NavigationEvent"
	def.Values["action"] = "NavigatedTo"
	def.Derivers["object"] = navigationObject

	defs := make(map[string]*transform.Definition, len(navigationEvents))
	for _, name := range navigationEvents {
		defs[name] = def
	}
	return defs
}

func navigationObject(ev event.Raw, out transform.Record) (interface{}, error) {
	data, err := ev.Data()
	if err != nil {
		return nil, err
	}
	data = event.CopyMap(data)

	key := "id"
	if targetURLEvents[ev.Name()] {
		key = "target_url"
	}
	id, ok := data[key]
	if !ok {
		return nil, fmt.Errorf("%s is missing", key)
	}
	delete(data, key)

	obj := object(out)
	update(obj, map[string]interface{}{
		"id":         id,
		"type":       "WebPage",
		"extensions": data,
	})
	return obj, nil
}
