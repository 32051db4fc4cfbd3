package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gyaneshwarpardhi/eventrouter/internal/cache"
	"github.com/gyaneshwarpardhi/eventrouter/internal/logging"
	"github.com/gyaneshwarpardhi/eventrouter/internal/router"
)

// Notifying is a config source that publishes changes.
type Notifying interface {
	router.ConfigSource
	OnChange(fn func(Change))
}

// Cached is a read-through cache over a store. Found and absent lookups are
// both cached; a change to a backend invalidates every tenant key of that
// backend because tenant lookups may have fallen back to its default.
type Cached struct {
	src   Notifying
	cache *cache.Tiered
	log   logging.Logger

	mu   sync.Mutex
	seen map[string]map[string]bool
}

// NewCached wraps src and subscribes to its change notifications.
func NewCached(src Notifying, c *cache.Tiered, log logging.Logger) *Cached {
	cc := &Cached{src: src, cache: c, log: log, seen: make(map[string]map[string]bool)}
	src.OnChange(cc.invalidate)
	return cc
}

// CacheKey is the cache key of a backend/tenant lookup.
func CacheKey(backend, tenant string) string {
	return cache.Key(Namespace, map[string]string{"backend_name": backend, "enterprise_uuid": tenant})
}

func (c *Cached) LatestEnabled(ctx context.Context, backend, tenant string) (*router.Config, error) {
	key := CacheKey(backend, tenant)
	c.track(backend, tenant)

	val, ok, err := c.cache.Load(ctx, key, func(ctx context.Context) ([]byte, bool, error) {
		conf, err := c.src.LatestEnabled(ctx, backend, tenant)
		if err != nil || conf == nil {
			return nil, false, err
		}
		b, err := json.Marshal(conf)
		if err != nil {
			return nil, false, fmt.Errorf("encode router config: %w", err)
		}
		return b, true, nil
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var conf router.Config
	if err := json.Unmarshal(val, &conf); err != nil {
		return nil, fmt.Errorf("decode cached router config %s: %w", key, err)
	}
	return &conf, nil
}

func (c *Cached) track(backend, tenant string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tenants, ok := c.seen[backend]
	if !ok {
		tenants = make(map[string]bool)
		c.seen[backend] = tenants
	}
	tenants[tenant] = true
}

func (c *Cached) invalidate(ch Change) {
	keys := []string{CacheKey(ch.Backend, ch.Tenant)}
	if ch.Tenant == "" {
		c.mu.Lock()
		for tenant := range c.seen[ch.Backend] {
			if tenant != "" {
				keys = append(keys, CacheKey(ch.Backend, tenant))
			}
		}
		c.mu.Unlock()
	}
	if err := c.cache.Delete(context.Background(), keys...); err != nil {
		c.log.WithError(err).WithField("backend", ch.Backend).Error("router cache invalidation failed")
		return
	}
	c.log.WithFields(logging.Fields{"backend": ch.Backend, "tenant": ch.Tenant, "keys": len(keys)}).
		Info("router configuration changed, cache invalidated")
}
