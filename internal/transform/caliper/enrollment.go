package caliper

import (
	"fmt"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

var enrollmentActions = map[string]string{
	"edx.course.enrollment.activated":   "Activated",
	"edx.course.enrollment.deactivated": "Deactivated",
}

func (c *catalog) enrollment() map[string]*transform.Definition {
	def := c.define("caliper.Enrollment")
	def.Values["type"] = "Event"
	def.Derivers["action"] = lookup(enrollmentActions)
	def.Derivers["object"] = c.enrollmentObject

	defs := make(map[string]*transform.Definition, len(enrollmentActions))
	for name := range enrollmentActions {
		defs[name] = def
	}
	return defs
}

func (c *catalog) enrollmentObject(ev event.Raw, _ transform.Record) (interface{}, error) {
	data, err := ev.Data()
	if err != nil {
		return nil, err
	}
	data = event.CopyMap(data)
	delete(data, "user_id")

	courseID, ok := transform.String(data["course_id"])
	if !ok {
		return nil, fmt.Errorf("course_id is missing")
	}
	return map[string]interface{}{
		"id":         transform.CourseURL(c.opts.LMSRoot, courseID),
		"type":       "Membership",
		"extensions": data,
	}, nil
}
