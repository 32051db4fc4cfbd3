// Package cache provides the two-tier cache used for router configuration
// lookups: a process-local memory tier backed by an optional Redis tier.
package cache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrMiss is returned by Tiered.Get when neither tier holds the key.
var ErrMiss = errors.New("cache: miss")

// Tier is a single cache layer holding raw bytes.
type Tier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Hooks receive hit/miss notifications; nil funcs are ignored.
type Hooks struct {
	OnHit  func(tier string)
	OnMiss func()
}

// Loader produces the value for a key on a full miss. ok=false means the
// value is absent and that absence is cached for NegativeTTL.
type Loader func(ctx context.Context) (val []byte, ok bool, err error)

// Options configures a Tiered cache.
type Options struct {
	TTL         time.Duration
	NegativeTTL time.Duration
}

// Tiered checks the fast tier, then the slow tier, backfilling the fast
// tier on a slow hit. Slow may be nil.
type Tiered struct {
	fast  Tier
	slow  Tier
	opts  Options
	hooks Hooks
	sf    singleflight.Group

	// gen counts deletions per key. A load writes back only if no delete
	// happened while its loader ran.
	mu  sync.Mutex
	gen map[string]uint64
}

// negative marks a cached absent value.
var negative = []byte("\x00absent")

// NewTiered builds a tiered cache. fast must not be nil.
func NewTiered(fast, slow Tier, opts Options, hooks Hooks) *Tiered {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	return &Tiered{fast: fast, slow: slow, opts: opts, hooks: hooks, gen: make(map[string]uint64)}
}

// Get returns the cached bytes for key. ok is false for a cached absence.
// ErrMiss is returned when no tier holds the key.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if val, found, err := t.fast.Get(ctx, key); err == nil && found {
		t.hit("memory")
		return decode(val)
	}
	if t.slow != nil {
		seen := t.generation(key)
		val, found, err := t.slow.Get(ctx, key)
		if err != nil {
			return nil, false, fmt.Errorf("cache: slow tier get %q: %w", key, err)
		}
		if found {
			t.hit("redis")
			t.mu.Lock()
			if t.gen[key] == seen {
				_ = t.fast.Set(ctx, key, val, t.opts.TTL)
			}
			t.mu.Unlock()
			return decode(val)
		}
	}
	if t.hooks.OnMiss != nil {
		t.hooks.OnMiss()
	}
	return nil, false, ErrMiss
}

// Load returns the value for key, calling loader once per key across
// concurrent callers on a miss. Slow tier errors fall through to the loader.
func (t *Tiered) Load(ctx context.Context, key string, loader Loader) ([]byte, bool, error) {
	val, ok, err := t.Get(ctx, key)
	if err == nil {
		return val, ok, nil
	}

	type result struct {
		val []byte
		ok  bool
	}
	res, err, _ := t.sf.Do(key, func() (interface{}, error) {
		seen := t.generation(key)
		val, ok, err := loader(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			t.setIfCurrent(ctx, key, seen, val, t.opts.TTL)
		} else if t.opts.NegativeTTL > 0 {
			t.setIfCurrent(ctx, key, seen, negative, t.opts.NegativeTTL)
		}
		return result{val: val, ok: ok}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := res.(result)
	return r.val, r.ok, nil
}

// Delete removes keys from every tier.
func (t *Tiered) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	t.mu.Lock()
	for _, k := range keys {
		t.gen[k]++
		t.sf.Forget(k)
	}
	t.mu.Unlock()
	err := t.fast.Delete(ctx, keys...)
	if t.slow != nil {
		err = errors.Join(err, t.slow.Delete(ctx, keys...))
	}
	return err
}

func (t *Tiered) generation(key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen[key]
}

// setIfCurrent writes val unless key was deleted after seen was taken.
func (t *Tiered) setIfCurrent(ctx context.Context, key string, seen uint64, val []byte, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen[key] != seen {
		return
	}
	t.set(ctx, key, val, ttl)
}

func (t *Tiered) set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	_ = t.fast.Set(ctx, key, val, ttl)
	if t.slow != nil {
		_ = t.slow.Set(ctx, key, val, ttl)
	}
}

func (t *Tiered) hit(tier string) {
	if t.hooks.OnHit != nil {
		t.hooks.OnHit(tier)
	}
}

func decode(val []byte) ([]byte, bool, error) {
	if string(val) == string(negative) {
		return nil, false, nil
	}
	return val, true, nil
}

// Key builds a namespaced cache key from sorted name=value pairs, so the
// same arguments always produce the same key.
func Key(namespace string, args map[string]string) string {
	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(namespace)
	for _, k := range names {
		b.WriteByte('.')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(args[k])
	}
	return b.String()
}
