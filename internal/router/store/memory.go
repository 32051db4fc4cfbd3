package store

import (
	"context"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/eventrouter/internal/router"
)

// Memory is an in-process store.
type Memory struct {
	notifier
	mu      sync.RWMutex
	configs []*router.Config
	nextID  int64
	now     func() time.Time
}

// NewMemory creates a store seeded with configs.
func NewMemory(configs ...*router.Config) *Memory {
	m := &Memory{now: time.Now}
	for _, c := range configs {
		m.nextID++
		cp := *c
		if cp.ID == 0 {
			cp.ID = m.nextID
		}
		m.configs = append(m.configs, &cp)
	}
	return m
}

func (m *Memory) LatestEnabled(_ context.Context, backend, tenant string) (*router.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return resolve(m.configs, backend, tenant), nil
}

func (m *Memory) List(context.Context) ([]*router.Config, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*router.Config, len(m.configs))
	copy(out, m.configs)
	return out, nil
}

// Save inserts c when its ID is zero and replaces the stored config
// otherwise. The assigned ID and modification time are written back to c.
func (m *Memory) Save(_ context.Context, c *router.Config) error {
	m.mu.Lock()
	if c.Enabled {
		for _, other := range m.configs {
			if other.Enabled && other.ID != c.ID && other.Key() == c.Key() {
				m.mu.Unlock()
				return ErrDuplicateRouter
			}
		}
	}
	c.ModifiedAt = m.now().UTC()

	var prev *router.Config
	if c.ID == 0 {
		m.nextID++
		c.ID = m.nextID
	} else {
		idx := m.index(c.ID)
		if idx < 0 {
			m.mu.Unlock()
			return ErrNotFound
		}
		prev = m.configs[idx]
		m.configs = append(m.configs[:idx], m.configs[idx+1:]...)
	}
	cp := *c
	m.configs = append(m.configs, &cp)
	m.mu.Unlock()

	changes := []Change{changeOf(c)}
	if prev != nil && prev.Key() != c.Key() {
		changes = append(changes, changeOf(prev))
	}
	m.notify(changes...)
	return nil
}

// Delete removes the config with the given id.
func (m *Memory) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	idx := m.index(id)
	if idx < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	removed := m.configs[idx]
	m.configs = append(m.configs[:idx], m.configs[idx+1:]...)
	m.mu.Unlock()

	m.notify(changeOf(removed))
	return nil
}

func (m *Memory) index(id int64) int {
	for i, c := range m.configs {
		if c.ID == id {
			return i
		}
	}
	return -1
}
