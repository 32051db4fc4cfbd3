package event

import (
	"sort"
	"strings"
)

// Resolve walks a dot-separated path through nested maps and returns the
// value at the final segment. ok is false when any segment is missing or an
// intermediate value is not a map; lists are never traversed.
func Resolve(m map[string]interface{}, path string) (interface{}, bool) {
	if m == nil || path == "" {
		return nil, false
	}
	return resolveMap(m, strings.Split(path, "."))
}

func resolveMap(m map[string]interface{}, path []string) (interface{}, bool) {
	val, ok := m[path[0]]
	if !ok {
		return nil, false
	}
	if len(path) == 1 {
		return val, true
	}
	switch sub := val.(type) {
	case map[string]interface{}:
		return resolveMap(sub, path[1:])
	case Raw:
		return resolveMap(sub, path[1:])
	}
	return nil, false
}

// FindNested searches every level of m, depth first, for key and returns the
// first non-nil value found. Sibling maps are visited in key order so the
// result does not depend on map iteration.
func FindNested(m map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := m[key]; ok && v != nil {
		return v, true
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var sub map[string]interface{}
		switch t := m[k].(type) {
		case map[string]interface{}:
			sub = t
		case Raw:
			sub = t
		default:
			continue
		}
		if v, ok := FindNested(sub, key); ok {
			return v, true
		}
	}
	return nil, false
}
