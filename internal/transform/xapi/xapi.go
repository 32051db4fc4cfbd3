// Package xapi transforms tracking events into xAPI statements.
package xapi

import (
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/identity"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

// Options configures the catalog.
type Options struct {
	// LMSRoot is the base URL used to build course activity ids.
	LMSRoot string
	// Pseudonymizer derives the actor openid. Nil yields "anonymous" actors.
	Pseudonymizer identity.Pseudonymizer
	// CourseName returns the display name of a course. When nil the course
	// id is used.
	CourseName func(courseID string) string
}

type catalog struct {
	opts Options
}

// Register adds every xAPI transformer to reg.
func Register(reg *transform.Registry, opts Options) error {
	c := &catalog{opts: opts}
	for _, group := range []map[string]*transform.Definition{
		c.enrollment(), c.navigation(), c.problem(), c.video(),
	} {
		for eventType, def := range group {
			if err := reg.Register(eventType, def); err != nil {
				return fmt.Errorf("xapi: %w", err)
			}
		}
	}
	return nil
}

func (c *catalog) define(name string, additional ...string) *transform.Definition {
	return &transform.Definition{
		Name:       name,
		Required:   []string{"object", "verb"},
		Additional: additional,
		Base:       c.base,
		Values:     map[string]interface{}{},
		Derivers:   map[string]transform.Deriver{},
		Build:      build,
	}
}

func (c *catalog) base(ev event.Raw, out transform.Record) error {
	// Decode JSON string payloads up front so nested lookups see them.
	// Payloads that are not JSON, such as browser query strings, stay as is.
	if _, ok := ev["data"].(string); ok {
		_, _ = ev.Data()
	}

	raw := ev.Timestamp()
	if raw == nil {
		raw = time.Now()
	}
	ts, err := transform.ISOTime(raw)
	if err != nil {
		return &transform.DataError{Field: "timestamp", EventType: ev.Name(), Err: err}
	}

	anonID := identity.Anonymous
	if c.opts.Pseudonymizer != nil {
		anonID = c.opts.Pseudonymizer.AnonymousID(ev.ContextString("username"), "")
	}
	out["actor"] = &Agent{ObjectType: "Agent", OpenID: anonID}
	out["timestamp"] = ts
	return nil
}

func build(out transform.Record) (interface{}, error) {
	st := &Statement{}
	var ok bool
	if st.Actor, ok = out["actor"].(*Agent); !ok {
		return nil, fmt.Errorf("actor has type %T", out["actor"])
	}
	if st.Verb, ok = out["verb"].(*Verb); !ok {
		return nil, fmt.Errorf("verb has type %T", out["verb"])
	}
	if st.Object, ok = out["object"].(*Activity); !ok {
		return nil, fmt.Errorf("object has type %T", out["object"])
	}
	if v, has := out["context"]; has {
		if st.Context, ok = v.(*Context); !ok {
			return nil, fmt.Errorf("context has type %T", v)
		}
	}
	if v, has := out["result"]; has {
		if st.Result, ok = v.(*Result); !ok {
			return nil, fmt.Errorf("result has type %T", v)
		}
	}
	st.Timestamp, _ = out["timestamp"].(string)
	return st, nil
}

func (c *catalog) courseActivity(courseID string) Activity {
	return Activity{
		ObjectType: "Activity",
		ID:         transform.CourseURL(c.opts.LMSRoot, courseID),
		Definition: &ActivityDefinition{Type: ActivityCourse},
	}
}

func (c *catalog) courseName(courseID string) string {
	if c.opts.CourseName == nil {
		return courseID
	}
	return c.opts.CourseName(courseID)
}

func verbs(table map[string]*Verb) transform.Deriver {
	return func(ev event.Raw, _ transform.Record) (interface{}, error) {
		v, ok := table[ev.Name()]
		if !ok {
			return nil, fmt.Errorf("no verb for event %q", ev.Name())
		}
		return v, nil
	}
}

func referrerContext(ev event.Raw, _ transform.Record) (interface{}, error) {
	return &Context{Extensions: Extensions{ExtReferrer: ev.Context()["referer"]}}, nil
}

// nested wraps event.FindNested over the whole event.
func nested(ev event.Raw, key string) (interface{}, bool) {
	return event.FindNested(ev, key)
}

func nestedString(ev event.Raw, key string) string {
	v, ok := nested(ev, key)
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func nestedSeconds(ev event.Raw, key string) (string, error) {
	v, ok := nested(ev, key)
	if !ok {
		return "", fmt.Errorf("%s is missing", key)
	}
	f, ok := transform.Float(v)
	if !ok {
		return "", fmt.Errorf("%s is not numeric: %v", key, v)
	}
	return transform.ISODuration(f), nil
}

func dataValue(ev event.Raw, key string) (interface{}, error) {
	d, err := ev.Data()
	if err != nil {
		return nil, err
	}
	v, ok := d[key]
	if !ok {
		return nil, fmt.Errorf("%s is missing", key)
	}
	return v, nil
}
