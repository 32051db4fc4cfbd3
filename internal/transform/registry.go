package transform

import (
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
)

// Registry maps event type strings to transformer definitions.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*Definition)}
}

// Register maps eventType to def. A later registration for the same event
// type replaces the earlier one.
func (r *Registry) Register(eventType string, def *Definition) error {
	if r == nil {
		return ErrRegistryNotInitialized
	}
	if err := def.Check(eventType); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.defs == nil {
		return ErrRegistryNotInitialized
	}
	r.defs[eventType] = def
	return nil
}

// Get returns a transformer for ev bound to a private copy of the event.
func (r *Registry) Get(ev event.Raw) (*Transformer, error) {
	if r == nil {
		return nil, ErrRegistryNotInitialized
	}
	name := ev.Name()
	r.mu.RLock()
	if r.defs == nil {
		r.mu.RUnlock()
		return nil, ErrRegistryNotInitialized
	}
	def, ok := r.defs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &NotFoundError{EventType: name}
	}
	return &Transformer{def: def, ev: ev.Copy()}, nil
}

// Types returns all registered event types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.defs))
	for k := range r.defs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered event types.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}
