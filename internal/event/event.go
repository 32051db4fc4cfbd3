package event

import (
	"encoding/json"
	"fmt"
)

// Raw is a tracking event as emitted by the learning platform. It always
// carries "name" and "data"; most events also carry "context", "time" or
// "timestamp", and "session".
type Raw map[string]interface{}

// Name returns the event type identifier, or "" when missing.
func (r Raw) Name() string {
	s, _ := r["name"].(string)
	return s
}

// Context returns the "context" mapping, or an empty map when absent.
func (r Raw) Context() map[string]interface{} {
	if c, ok := r["context"].(map[string]interface{}); ok {
		return c
	}
	return map[string]interface{}{}
}

// ContextString returns context[key] as a string ("" when absent or not a string).
func (r Raw) ContextString(key string) string {
	s, _ := r.Context()[key].(string)
	return s
}

// Timestamp returns "timestamp", falling back to "time".
func (r Raw) Timestamp() interface{} {
	if ts, ok := r["timestamp"]; ok && ts != nil {
		return ts
	}
	return r["time"]
}

// Data returns the "data" payload as a mapping. Browser events ship data as
// a JSON encoded string; such payloads are decoded and stored back so later
// readers see the mapping.
func (r Raw) Data() (map[string]interface{}, error) {
	switch d := r["data"].(type) {
	case map[string]interface{}:
		return d, nil
	case string:
		if d == "" {
			m := map[string]interface{}{}
			r["data"] = m
			return m, nil
		}
		var m map[string]interface{}
		if err := json.Unmarshal([]byte(d), &m); err != nil {
			return nil, fmt.Errorf("event %q: decode data: %w", r.Name(), err)
		}
		r["data"] = m
		return m, nil
	case nil:
		return nil, fmt.Errorf("event %q: data is missing", r.Name())
	default:
		return nil, fmt.Errorf("event %q: data has unsupported type %T", r.Name(), d)
	}
}

// Copy returns a deep copy of the event.
func (r Raw) Copy() Raw {
	return Raw(CopyMap(r))
}

// CopyMap deep-copies nested maps and slices. Scalars are shared.
func CopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return CopyMap(t)
	case Raw:
		return CopyMap(t)
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, e := range t {
			s[i] = copyValue(e)
		}
		return s
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
