package xapi

import (
	"fmt"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

var videoVerbs = map[string]*Verb{
	"load_video":                 initialized,
	"edx.video.loaded":           initialized,
	"play_video":                 played,
	"edx.video.played":           played,
	"stop_video":                 terminated,
	"edx.video.stopped":          terminated,
	"complete_video":             completed,
	"edx.video.completed":        completed,
	"pause_video":                paused,
	"edx.video.paused":           paused,
	"seek_video":                 seeked,
	"edx.video.position.changed": seeked,
}

func (c *catalog) video() map[string]*transform.Definition {
	defs := make(map[string]*transform.Definition)
	add := func(def *transform.Definition, names ...string) {
		for _, n := range names {
			defs[n] = def
		}
	}

	loaded := c.videoDefinition("xapi.VideoLoaded")
	loaded.Derivers["context"] = func(ev event.Raw, out transform.Record) (interface{}, error) {
		v, _ := c.videoContext(ev, out)
		ctx := v.(*Context)
		length, err := nestedSeconds(ev, "duration")
		if err != nil {
			return nil, err
		}
		ctx.Extensions = Extensions{ExtVideoLength: length}
		return ctx, nil
	}
	add(loaded, "load_video", "edx.video.loaded")

	interaction := c.videoDefinition("xapi.VideoInteraction", "result")
	interaction.Derivers["result"] = func(ev event.Raw, _ transform.Record) (interface{}, error) {
		t, err := nestedSeconds(ev, "currentTime")
		if err != nil {
			return nil, err
		}
		return &Result{Extensions: Extensions{ExtVideoTime: t}}, nil
	}
	add(interaction, "play_video", "edx.video.played", "stop_video", "edx.video.stopped",
		"pause_video", "edx.video.paused")

	complete := c.videoDefinition("xapi.VideoCompleted", "result")
	complete.Derivers["result"] = func(ev event.Raw, _ transform.Record) (interface{}, error) {
		t, err := nestedSeconds(ev, "currentTime")
		if err != nil {
			return nil, err
		}
		d, err := nestedSeconds(ev, "duration")
		if err != nil {
			return nil, err
		}
		return &Result{
			Extensions: Extensions{ExtVideoTime: t},
			Completion: boolPtr(true),
			Duration:   d,
		}, nil
	}
	add(complete, "complete_video", "edx.video.completed")

	seek := c.videoDefinition("xapi.VideoPositionChanged", "result")
	seek.Derivers["result"] = func(ev event.Raw, _ transform.Record) (interface{}, error) {
		from, err := nestedSeconds(ev, "old_time")
		if err != nil {
			return nil, err
		}
		to, err := nestedSeconds(ev, "new_time")
		if err != nil {
			return nil, err
		}
		return &Result{Extensions: Extensions{ExtVideoTimeFrom: from, ExtVideoTimeTo: to}}, nil
	}
	add(seek, "seek_video", "edx.video.position.changed")

	return defs
}

func (c *catalog) videoDefinition(name string, additional ...string) *transform.Definition {
	def := c.define(name, append([]string{"context"}, additional...)...)
	def.Derivers["verb"] = verbs(videoVerbs)
	def.Derivers["object"] = videoObject
	def.Derivers["context"] = c.videoContext
	return def
}

func videoObject(ev event.Raw, _ transform.Record) (interface{}, error) {
	id, err := dataValue(ev, "id")
	if err != nil {
		return nil, err
	}
	d, _ := ev.Data()
	def := &ActivityDefinition{
		Type: ActivityVideo,
		Name: lang("Video Display Name"),
	}
	if code, ok := d["code"]; ok {
		def.Extensions = Extensions{"code": code}
	}
	return activity(transform.VideoBlockID(nestedString(ev, "course_id"), fmt.Sprint(id)), def), nil
}

func (c *catalog) videoContext(ev event.Raw, _ transform.Record) (interface{}, error) {
	return &Context{
		ContextActivities: &ContextActivities{
			Parent:   []Activity{c.courseActivity(ev.ContextString("course_id"))},
			Category: []Activity{{ObjectType: "Activity", ID: ActivityVideo}},
		},
	}, nil
}
