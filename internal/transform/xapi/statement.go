package xapi

import "encoding/json"

// LanguageMap maps a language tag to a display string.
type LanguageMap map[string]string

// Extensions maps an extension IRI to its value.
type Extensions map[string]interface{}

// Statement is an xAPI 1.0.3 statement.
type Statement struct {
	Actor     *Agent    `json:"actor"`
	Verb      *Verb     `json:"verb"`
	Object    *Activity `json:"object"`
	Context   *Context  `json:"context,omitempty"`
	Result    *Result   `json:"result,omitempty"`
	Timestamp string    `json:"timestamp,omitempty"`
}

type Agent struct {
	ObjectType string `json:"objectType"`
	OpenID     string `json:"openid,omitempty"`
	Name       string `json:"name,omitempty"`
}

type Verb struct {
	ID      string      `json:"id"`
	Display LanguageMap `json:"display,omitempty"`
}

type Activity struct {
	ObjectType string              `json:"objectType"`
	ID         string              `json:"id"`
	Definition *ActivityDefinition `json:"definition,omitempty"`
}

type ActivityDefinition struct {
	Type                    string                 `json:"type,omitempty"`
	Name                    LanguageMap            `json:"name,omitempty"`
	Description             LanguageMap            `json:"description,omitempty"`
	Extensions              Extensions             `json:"extensions,omitempty"`
	InteractionType         string                 `json:"interactionType,omitempty"`
	CorrectResponsesPattern []string               `json:"correctResponsesPattern,omitempty"`
	Choices                 []InteractionComponent `json:"choices,omitempty"`
}

type InteractionComponent struct {
	ID          string      `json:"id"`
	Description LanguageMap `json:"description,omitempty"`
}

type Context struct {
	ContextActivities *ContextActivities `json:"contextActivities,omitempty"`
	Extensions        Extensions         `json:"extensions,omitempty"`
}

type ContextActivities struct {
	Parent   []Activity `json:"parent,omitempty"`
	Category []Activity `json:"category,omitempty"`
}

type Result struct {
	Success    *bool      `json:"success,omitempty"`
	Completion *bool      `json:"completion,omitempty"`
	Score      *Score     `json:"score,omitempty"`
	Response   string     `json:"response,omitempty"`
	Duration   string     `json:"duration,omitempty"`
	Extensions Extensions `json:"extensions,omitempty"`
}

type Score struct {
	Scaled float64 `json:"scaled"`
	Raw    float64 `json:"raw"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// AsMap returns the canonical JSON form of the statement as a generic map,
// the shape routed to downstream hosts.
func (s *Statement) AsMap() (map[string]interface{}, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func activity(id string, def *ActivityDefinition) *Activity {
	return &Activity{ObjectType: "Activity", ID: id, Definition: def}
}

func lang(s string) LanguageMap {
	return LanguageMap{EN: s}
}

func boolPtr(b bool) *bool { return &b }
