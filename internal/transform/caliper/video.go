package caliper

import (
	"fmt"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

var videoActions = map[string]string{
	"load_video":                 "Retrieved",
	"edx.video.loaded":           "Retrieved",
	"play_video":                 "Started",
	"edx.video.played":           "Started",
	"stop_video":                 "Ended",
	"edx.video.stopped":          "Ended",
	"complete_video":             "Ended",
	"edx.video.completed":        "Ended",
	"pause_video":                "Paused",
	"edx.video.paused":           "Paused",
	"seek_video":                 "JumpedTo",
	"edx.video.position.changed": "JumpedTo",
}

func (c *catalog) video() map[string]*transform.Definition {
	defs := make(map[string]*transform.Definition)
	add := func(def *transform.Definition, names ...string) {
		for _, n := range names {
			defs[n] = def
		}
	}

	load := c.videoDefinition("caliper.LoadVideo", "Event", loadVideoExtensions)
	add(load, "load_video", "edx.video.loaded")

	stop := c.videoDefinition("caliper.StopVideo", "MediaEvent", stopVideoExtensions)
	add(stop, "stop_video", "edx.video.stopped", "complete_video", "edx.video.completed")

	playPause := c.videoDefinition("caliper.PlayPauseVideo", "MediaEvent", playPauseExtensions)
	playPause.Additional = []string{"target"}
	playPause.Derivers["target"] = mediaLocation
	add(playPause, "play_video", "edx.video.played", "pause_video", "edx.video.paused")

	seek := c.videoDefinition("caliper.SeekVideo", "MediaEvent", seekVideoExtensions)
	add(seek, "seek_video", "edx.video.position.changed")

	return defs
}

type extender func(data, ext map[string]interface{}) error

func (c *catalog) videoDefinition(name, typ string, extend extender) *transform.Definition {
	def := c.define(name)
	def.Values["type"] = typ
	def.Derivers["action"] = lookup(videoActions)
	def.Derivers["object"] = func(ev event.Raw, out transform.Record) (interface{}, error) {
		obj, data, err := videoObject(ev, out)
		if err != nil {
			return nil, err
		}
		if err := extend(data, extensions(obj)); err != nil {
			return nil, err
		}
		return obj, nil
	}
	def.Finalize = func(out transform.Record) {
		delete(extensions(object(out)), "duration")
	}
	return def
}

// videoObject fills the shared VideoObject fields and returns a private copy
// of data for the extension step.
func videoObject(ev event.Raw, out transform.Record) (map[string]interface{}, map[string]interface{}, error) {
	data, err := ev.Data()
	if err != nil {
		return nil, nil, err
	}
	data = event.CopyMap(data)

	videoID, ok := data["id"]
	if !ok {
		return nil, nil, fmt.Errorf("id is missing")
	}
	duration, err := transform.Seconds(data, "duration")
	if err != nil {
		return nil, nil, err
	}

	obj := object(out)
	update(obj, map[string]interface{}{
		"id":       transform.VideoBlockID(ev.ContextString("course_id"), fmt.Sprint(videoID)),
		"type":     "VideoObject",
		"duration": duration,
	})
	return obj, data, nil
}

func loadVideoExtensions(data, ext map[string]interface{}) error {
	update(ext, data)
	return nil
}

func stopVideoExtensions(data, ext map[string]interface{}) error {
	if _, ok := data["currentTime"]; ok {
		t, err := transform.Seconds(data, "currentTime")
		if err != nil {
			return err
		}
		delete(data, "currentTime")
		ext["currentTime"] = t
	}
	update(ext, data)
	return nil
}

func playPauseExtensions(data, ext map[string]interface{}) error {
	delete(data, "currentTime")
	update(ext, data)
	return nil
}

func seekVideoExtensions(data, ext map[string]interface{}) error {
	newTime, err := transform.Seconds(data, "new_time")
	if err != nil {
		return err
	}
	oldTime, err := transform.Seconds(data, "old_time")
	if err != nil {
		return err
	}
	delete(data, "new_time")
	delete(data, "old_time")
	ext["new_time"] = newTime
	ext["old_time"] = oldTime
	update(ext, data)
	return nil
}

func mediaLocation(ev event.Raw, out transform.Record) (interface{}, error) {
	data, err := ev.Data()
	if err != nil {
		return nil, err
	}
	t, err := transform.Seconds(data, "currentTime")
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"id":          object(out)["id"],
		"type":        "MediaLocation",
		"currentTime": t,
	}, nil
}
