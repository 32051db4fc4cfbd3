package xapi

// EN is the language tag used for display strings.
const EN = "en-US"

// Verbs.
const (
	VerbRegistered   = "http://adlnet.gov/expapi/verbs/registered"
	VerbUnregistered = "http://id.tincanapi.com/verb/unregistered"
	VerbExperienced  = "http://adlnet.gov/expapi/verbs/experienced"
	VerbInitialized  = "http://adlnet.gov/expapi/verbs/initialized"
	VerbTerminated   = "http://adlnet.gov/expapi/verbs/terminated"
	VerbAsked        = "http://adlnet.gov/expapi/verbs/asked"
	VerbInteracted   = "http://adlnet.gov/expapi/verbs/interacted"
	VerbAttempted    = "http://adlnet.gov/expapi/verbs/attempted"
	VerbAnswered     = "http://adlnet.gov/expapi/verbs/answered"
	VerbCompleted    = "http://adlnet.gov/expapi/verbs/completed"
	VerbPlayed       = "https://w3id.org/xapi/video/verbs/played"
	VerbPaused       = "https://w3id.org/xapi/video/verbs/paused"
	VerbSeeked       = "https://w3id.org/xapi/video/verbs/seeked"
)

// Activity types.
const (
	ActivityCourse      = "http://adlnet.gov/expapi/activities/course"
	ActivityModule      = "http://adlnet.gov/expapi/activities/module"
	ActivityLink        = "http://adlnet.gov/expapi/activities/link"
	ActivityInteraction = "http://adlnet.gov/expapi/activities/cmi.interaction"
	ActivityVideo       = "https://w3id.org/xapi/video/activity-type/video"
)

// Extension keys.
const (
	ExtReferrer         = "http://id.tincanapi.com/extension/referrer"
	ExtPosition         = "http://id.tincanapi.com/extension/position"
	ExtStartingPosition = "http://id.tincanapi.com/extension/starting-position"
	ExtEndingPosition   = "http://id.tincanapi.com/extension/ending-point"
	ExtVideoLength      = "https://w3id.org/xapi/video/extensions/length"
	ExtVideoTime        = "https://w3id.org/xapi/video/extensions/time"
	ExtVideoTimeFrom    = "https://w3id.org/xapi/video/extensions/time-from"
	ExtVideoTimeTo      = "https://w3id.org/xapi/video/extensions/time-to"
)

func verb(id, display string) *Verb {
	return &Verb{ID: id, Display: lang(display)}
}

var (
	registered   = verb(VerbRegistered, "registered")
	unregistered = verb(VerbUnregistered, "unregistered")
	experienced  = verb(VerbExperienced, "experienced")
	initialized  = verb(VerbInitialized, "initialized")
	terminated   = verb(VerbTerminated, "terminated")
	asked        = verb(VerbAsked, "asked")
	interacted   = verb(VerbInteracted, "interacted")
	attempted    = verb(VerbAttempted, "attempted")
	answered     = verb(VerbAnswered, "answered")
	completed    = verb(VerbCompleted, "completed")
	played       = verb(VerbPlayed, "played")
	paused       = verb(VerbPaused, "paused")
	seeked       = verb(VerbSeeked, "seeked")
)
