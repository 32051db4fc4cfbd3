package xapi_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/identity"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform/xapi"
)

const courseID = "course-v1:edX+DemoX+Demo_Course"

func newRegistry(t *testing.T) *transform.Registry {
	t.Helper()
	reg := transform.NewRegistry()
	require.NoError(t, xapi.Register(reg, xapi.Options{
		LMSRoot:       "http://lms",
		Pseudonymizer: identity.NewHMAC("k"),
		CourseName:    func(string) string { return "Demonstration Course" },
	}))
	return reg
}

func statement(t *testing.T, reg *transform.Registry, raw string) *xapi.Statement {
	t.Helper()
	var ev event.Raw
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))
	tr, err := reg.Get(ev)
	require.NoError(t, err)
	out, err := tr.Transform()
	require.NoError(t, err)
	st, ok := out.(*xapi.Statement)
	require.True(t, ok, "xapi output is %T", out)
	return st
}

func TestEnrollment(t *testing.T) {
	reg := newRegistry(t)
	st := statement(t, reg, `{
		"name": "edx.course.enrollment.activated",
		"time": "2021-11-02T09:57:33+00:00",
		"data": {"course_id": "`+courseID+`", "user_id": 7},
		"context": {"course_id": "`+courseID+`", "username": "alice", "referer": "http://lms/dashboard"}
	}`)
	assert.Equal(t, xapi.VerbRegistered, st.Verb.ID)
	assert.Equal(t, "http://lms/courses/"+courseID, st.Object.ID)
	assert.Equal(t, xapi.ActivityCourse, st.Object.Definition.Type)
	assert.Equal(t, "Demonstration Course", st.Object.Definition.Name[xapi.EN])
	assert.Equal(t, "http://lms/dashboard", st.Context.Extensions[xapi.ExtReferrer])
	assert.Equal(t, identity.NewHMAC("k").AnonymousID("alice", ""), st.Actor.OpenID)
	assert.Equal(t, "2021-11-02T09:57:33.000Z", st.Timestamp)
	assert.Nil(t, st.Result)

	st = statement(t, reg, `{
		"name": "edx.course.enrollment.deactivated",
		"data": {"course_id": "`+courseID+`"},
		"context": {"course_id": "`+courseID+`"}
	}`)
	assert.Equal(t, xapi.VerbUnregistered, st.Verb.ID)
	assert.Equal(t, identity.Anonymous, st.Actor.OpenID)
}

func TestNavigation(t *testing.T) {
	reg := newRegistry(t)

	st := statement(t, reg, `{
		"name": "edx.ui.lms.link_clicked",
		"data": "{\"target_url\": \"http://lms/x\", \"current_url\": \"http://lms/y\"}",
		"context": {"course_id": "`+courseID+`", "referer": "http://lms/y"}
	}`)
	assert.Equal(t, xapi.VerbExperienced, st.Verb.ID)
	assert.Equal(t, "http://lms/x", st.Object.ID)
	assert.Equal(t, "http://lms/x", st.Object.Definition.Extensions[xapi.ExtPosition])
	require.Len(t, st.Context.ContextActivities.Parent, 1)
	assert.Equal(t, "http://lms/courses/"+courseID, st.Context.ContextActivities.Parent[0].ID)

	st = statement(t, reg, `{
		"name": "edx.ui.lms.outline.selected",
		"data": {"target_url": "http://lms/unit", "target_name": "Unit 1"},
		"context": {"course_id": "`+courseID+`"}
	}`)
	assert.Equal(t, xapi.VerbInitialized, st.Verb.ID)
	assert.Equal(t, "Unit 1", st.Object.Definition.Name[xapi.EN])

	st = statement(t, reg, `{
		"name": "edx.ui.lms.sequence.tab_selected",
		"data": {"id": "block-v1:x+type@sequential+block@s", "current_tab": 1, "target_tab": 2},
		"context": {"course_id": "`+courseID+`"}
	}`)
	assert.Equal(t, xapi.VerbInitialized, st.Verb.ID)
	assert.Equal(t, float64(2), st.Object.Definition.Extensions[xapi.ExtPosition])
	assert.Equal(t, float64(1), st.Context.Extensions[xapi.ExtStartingPosition])
	assert.Equal(t, "block-v1:x+type@sequential+block@s", st.Context.ContextActivities.Parent[0].ID)

	st = statement(t, reg, `{
		"name": "edx.ui.lms.sequence.previous_selected",
		"data": {"id": "block-v1:x+type@sequential+block@s", "current_tab": 3},
		"context": {"course_id": "`+courseID+`"}
	}`)
	assert.Equal(t, xapi.VerbTerminated, st.Verb.ID)
	assert.Equal(t, "previous unit", st.Context.Extensions[xapi.ExtEndingPosition])
}

func TestGradesSubmitted(t *testing.T) {
	reg := newRegistry(t)
	st := statement(t, reg, `{
		"name": "edx.grades.problem.submitted",
		"data": {"problem_id": "block-v1:x+type@problem+block@p", "weighted_earned": 1, "weighted_possible": 4},
		"context": {"course_id": "`+courseID+`"}
	}`)
	assert.Equal(t, xapi.VerbAttempted, st.Verb.ID)
	assert.Equal(t, "block-v1:x+type@problem+block@p", st.Object.ID)
	assert.Equal(t, xapi.ActivityInteraction, st.Object.Definition.Type)
	require.NotNil(t, st.Result)
	assert.False(t, *st.Result.Success)
	assert.Equal(t, &xapi.Score{Min: 0, Max: 4, Raw: 1, Scaled: 0.25}, st.Result.Score)
}

func TestGradesSubmittedZeroPossible(t *testing.T) {
	reg := newRegistry(t)
	tr, err := reg.Get(event.Raw{
		"name":    "edx.grades.problem.submitted",
		"data":    map[string]interface{}{"problem_id": "p", "weighted_earned": 0, "weighted_possible": 0},
		"context": map[string]interface{}{"course_id": courseID},
	})
	require.NoError(t, err)
	_, err = tr.Transform()
	assert.ErrorIs(t, err, transform.ErrInvalidScore)
}

func TestProblemCheckServer(t *testing.T) {
	reg := newRegistry(t)
	st := statement(t, reg, `{
		"name": "problem_check",
		"data": {
			"problem_id": "block-v1:x+type@problem+block@p",
			"answers": {"p_2_1": ["choice_0", "choice_2"]},
			"submission": {"p_2_1": {"response_type": "choiceresponse", "answer": ["A", "C"]}},
			"success": "correct", "grade": 2, "max_grade": 2
		},
		"context": {"course_id": "`+courseID+`", "event_source": "server"}
	}`)
	assert.Equal(t, xapi.VerbAnswered, st.Verb.ID)
	def := st.Object.Definition
	assert.Equal(t, "choice", def.InteractionType)
	assert.Equal(t, []string{"choice_0", "choice_2"}, def.CorrectResponsesPattern)
	assert.Equal(t, []xapi.InteractionComponent{
		{ID: "choice_0", Description: xapi.LanguageMap{xapi.EN: "A"}},
		{ID: "choice_2", Description: xapi.LanguageMap{xapi.EN: "C"}},
	}, def.Choices)
	assert.True(t, *st.Result.Success)
	assert.Equal(t, float64(1), st.Result.Score.Scaled)
	assert.JSONEq(t, `{"p_2_1": ["choice_0", "choice_2"]}`, st.Result.Response)
}

func TestProblemCheckBrowser(t *testing.T) {
	reg := newRegistry(t)
	st := statement(t, reg, `{
		"name": "problem_check",
		"data": "input_p_2_1=choice_0",
		"context": {"course_id": "`+courseID+`", "event_source": "browser", "referer": "http://lms/courses/x"}
	}`)
	assert.Equal(t, "http://lms/courses/x", st.Object.ID)
	assert.Equal(t, "input_p_2_1=choice_0", st.Object.Definition.Extensions["data"])
	assert.Nil(t, st.Result)
}

func TestInteractionTypeDefault(t *testing.T) {
	assert.Equal(t, "numeric", xapi.InteractionType("numericalresponse"))
	assert.Equal(t, "other", xapi.InteractionType("brandnewresponse"))
}

func TestVideo(t *testing.T) {
	reg := newRegistry(t)
	blockID := transform.VideoBlockID(courseID, "v1")

	st := statement(t, reg, `{
		"name": "load_video",
		"data": "{\"id\": \"v1\", \"code\": \"html5\", \"duration\": 90}",
		"context": {"course_id": "`+courseID+`"}
	}`)
	assert.Equal(t, xapi.VerbInitialized, st.Verb.ID)
	assert.Equal(t, blockID, st.Object.ID)
	assert.Equal(t, "html5", st.Object.Definition.Extensions["code"])
	assert.Equal(t, "PT1M30S", st.Context.Extensions[xapi.ExtVideoLength])
	assert.Equal(t, xapi.ActivityVideo, st.Context.ContextActivities.Category[0].ID)

	st = statement(t, reg, `{
		"name": "edx.video.paused",
		"data": {"id": "v1", "code": "html5", "currentTime": 12},
		"context": {"course_id": "`+courseID+`"}
	}`)
	assert.Equal(t, xapi.VerbPaused, st.Verb.ID)
	assert.Equal(t, "PT12S", st.Result.Extensions[xapi.ExtVideoTime])

	st = statement(t, reg, `{
		"name": "complete_video",
		"data": {"id": "v1", "code": "html5", "currentTime": 90, "duration": 90},
		"context": {"course_id": "`+courseID+`"}
	}`)
	assert.Equal(t, xapi.VerbCompleted, st.Verb.ID)
	assert.True(t, *st.Result.Completion)
	assert.Equal(t, "PT1M30S", st.Result.Duration)

	st = statement(t, reg, `{
		"name": "seek_video",
		"data": {"id": "v1", "code": "html5", "old_time": 12, "new_time": 90},
		"context": {"course_id": "`+courseID+`"}
	}`)
	assert.Equal(t, xapi.VerbSeeked, st.Verb.ID)
	assert.Equal(t, "PT12S", st.Result.Extensions[xapi.ExtVideoTimeFrom])
	assert.Equal(t, "PT1M30S", st.Result.Extensions[xapi.ExtVideoTimeTo])
}

func TestStatementAsMap(t *testing.T) {
	reg := newRegistry(t)
	st := statement(t, reg, `{
		"name": "showanswer",
		"data": {"problem_id": "p1"},
		"context": {"course_id": "`+courseID+`"}
	}`)
	m, err := st.AsMap()
	require.NoError(t, err)
	assert.Equal(t, "Agent", m["actor"].(map[string]interface{})["objectType"])
	assert.Equal(t, xapi.VerbAsked, m["verb"].(map[string]interface{})["id"])
	assert.Equal(t, "p1", m["object"].(map[string]interface{})["id"])
	assert.NotContains(t, m, "result")
}
