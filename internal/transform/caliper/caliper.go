// Package caliper transforms tracking events into IMS Caliper 1.1 events.
package caliper

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/identity"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

// Context is the JSON-LD context of every emitted event.
const Context = "http://purl.imsglobal.org/ctx/caliper/v1p1"

// Options configures the catalog.
type Options struct {
	// LMSRoot is the base URL used to build course ids.
	LMSRoot string
	// Pseudonymizer derives actor ids. Nil yields "anonymous" actors.
	Pseudonymizer identity.Pseudonymizer
}

type catalog struct {
	opts Options
}

// Register adds every Caliper transformer to reg.
func Register(reg *transform.Registry, opts Options) error {
	c := &catalog{opts: opts}
	for eventType, def := range c.definitions() {
		if err := reg.Register(eventType, def); err != nil {
			return fmt.Errorf("caliper: %w", err)
		}
	}
	return nil
}

func (c *catalog) definitions() map[string]*transform.Definition {
	defs := make(map[string]*transform.Definition)
	for _, group := range []map[string]*transform.Definition{
		c.enrollment(), c.navigation(), c.problem(), c.video(),
	} {
		for k, v := range group {
			defs[k] = v
		}
	}
	return defs
}

// define returns a definition with the Caliper base fields and the three
// fields every Caliper event carries.
func (c *catalog) define(name string) *transform.Definition {
	return &transform.Definition{
		Name:     name,
		Required: []string{"type", "object", "action"},
		Base:     c.base,
		Values:   map[string]interface{}{},
		Derivers: map[string]transform.Deriver{},
	}
}

func (c *catalog) base(ev event.Raw, out transform.Record) error {
	// Events without a timestamp are stamped with the processing time.
	raw := ev.Timestamp()
	if raw == nil {
		raw = time.Now()
	}
	ts, err := transform.ISOTime(raw)
	if err != nil {
		return &transform.DataError{Field: "eventTime", EventType: ev.Name(), Err: err}
	}
	ctx := ev.Context()
	courseID := ev.ContextString("course_id")

	out["@context"] = Context
	out["id"] = uuid.New().URN()
	out["eventTime"] = ts
	out["object"] = map[string]interface{}{
		"extensions": map[string]interface{}{"course_id": courseID},
	}
	out["actor"] = map[string]interface{}{
		"id":   c.anonymousID(ev.ContextString("username"), courseID),
		"type": "Person",
	}
	out["referrer"] = map[string]interface{}{
		"id":   ctx["referer"],
		"type": "WebPage",
	}
	return nil
}

func (c *catalog) anonymousID(username, courseID string) string {
	if c.opts.Pseudonymizer == nil {
		return identity.Anonymous
	}
	return c.opts.Pseudonymizer.AnonymousID(username, courseID)
}

// object returns the object scaffolding written by base.
func object(out transform.Record) map[string]interface{} {
	obj, ok := out["object"].(map[string]interface{})
	if !ok {
		obj = map[string]interface{}{}
		out["object"] = obj
	}
	return obj
}

func extensions(obj map[string]interface{}) map[string]interface{} {
	ext, ok := obj["extensions"].(map[string]interface{})
	if !ok {
		ext = map[string]interface{}{}
		obj["extensions"] = ext
	}
	return ext
}

func lookup(table map[string]string) transform.Deriver {
	return func(ev event.Raw, _ transform.Record) (interface{}, error) {
		v, ok := table[ev.Name()]
		if !ok {
			return nil, fmt.Errorf("no mapping for event %q", ev.Name())
		}
		return v, nil
	}
}

func update(dst, src map[string]interface{}) {
	for k, v := range src {
		dst[k] = v
	}
}
