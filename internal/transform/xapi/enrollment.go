package xapi

import (
	"fmt"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

func (c *catalog) enrollment() map[string]*transform.Definition {
	activated := c.define("xapi.EnrollmentActivated", "context")
	activated.Values["verb"] = registered
	activated.Derivers["object"] = c.enrollmentObject
	activated.Derivers["context"] = referrerContext

	deactivated := c.define("xapi.EnrollmentDeactivated", "context")
	deactivated.Values["verb"] = unregistered
	deactivated.Derivers["object"] = c.enrollmentObject
	deactivated.Derivers["context"] = referrerContext

	return map[string]*transform.Definition{
		"edx.course.enrollment.activated":   activated,
		"edx.course.enrollment.deactivated": deactivated,
	}
}

func (c *catalog) enrollmentObject(ev event.Raw, _ transform.Record) (interface{}, error) {
	courseID := nestedString(ev, "course_id")
	if courseID == "" {
		return nil, fmt.Errorf("course_id is missing")
	}
	return activity(transform.CourseURL(c.opts.LMSRoot, courseID), &ActivityDefinition{
		Type: ActivityCourse,
		Name: lang(c.courseName(courseID)),
	}), nil
}
