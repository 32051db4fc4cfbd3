// Package store holds router configuration sources: in-memory, YAML file,
// SQL database and a read-through cache over any of them.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/gyaneshwarpardhi/eventrouter/internal/router"
)

// Namespace prefixes router configuration cache keys.
const Namespace = "analytics.request_router"

var (
	// ErrDuplicateRouter is returned when a second enabled configuration is
	// saved for the same backend and tenant.
	ErrDuplicateRouter = errors.New("an enabled router configuration already exists for this backend and tenant")
	// ErrNotFound is returned when a configuration id does not exist.
	ErrNotFound = errors.New("router configuration not found")
)

// Change identifies a configuration that was created, updated or deleted.
type Change struct {
	Backend string
	Tenant  string
}

// Store is a router configuration source that can enumerate its contents
// and publish change notifications.
type Store interface {
	router.ConfigSource
	List(ctx context.Context) ([]*router.Config, error)
	OnChange(fn func(Change))
}

type notifier struct {
	mu   sync.RWMutex
	subs []func(Change)
}

// OnChange registers fn to be called after every change.
func (n *notifier) OnChange(fn func(Change)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, fn)
}

func (n *notifier) notify(changes ...Change) {
	n.mu.RLock()
	subs := make([]func(Change), len(n.subs))
	copy(subs, n.subs)
	n.mu.RUnlock()
	for _, c := range changes {
		for _, fn := range subs {
			fn(c)
		}
	}
}

// latest returns the most recently modified enabled config for the exact
// backend and tenant. Ties go to the later entry.
func latest(configs []*router.Config, backend, tenant string) *router.Config {
	var best *router.Config
	for _, c := range configs {
		if !c.Enabled || c.Backend != backend || c.Tenant != tenant {
			continue
		}
		if best == nil || !c.ModifiedAt.Before(best.ModifiedAt) {
			best = c
		}
	}
	return best
}

// resolve applies the tenant fallback: a tenant without an enabled config
// uses the backend default.
func resolve(configs []*router.Config, backend, tenant string) *router.Config {
	if c := latest(configs, backend, tenant); c != nil {
		return c
	}
	if tenant != "" {
		return latest(configs, backend, "")
	}
	return nil
}

func changeOf(c *router.Config) Change {
	return Change{Backend: c.Backend, Tenant: c.Tenant}
}
