package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/gyaneshwarpardhi/eventrouter/internal/logging"
	"github.com/gyaneshwarpardhi/eventrouter/internal/router"
)

// Document is the top-level YAML structure of a router file.
type Document struct {
	Routers []*router.Config `yaml:"routers"`
}

// FileStore serves router configs from a YAML file and hot-reloads it.
type FileStore struct {
	notifier
	path    string
	known   map[string]bool
	log     logging.Logger
	mu      sync.RWMutex
	current []*router.Config
}

// NewFileStore performs the initial load. known lists the accepted router
// types; nil accepts any.
func NewFileStore(path string, known map[string]bool, log logging.Logger) (*FileStore, error) {
	f := &FileStore{path: path, known: known, log: log}
	configs, err := LoadFile(path, known)
	if err != nil {
		return nil, err
	}
	f.current = configs
	return f, nil
}

func (f *FileStore) LatestEnabled(_ context.Context, backend, tenant string) (*router.Config, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return resolve(f.current, backend, tenant), nil
}

func (f *FileStore) List(context.Context) ([]*router.Config, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*router.Config, len(f.current))
	copy(out, f.current)
	return out, nil
}

// Watch starts a background goroutine that reloads the file on change.
// A file that fails to load or validate is logged and the previous
// configuration stays active. Call stop to clean up.
func (f *FileStore) Watch() (stop func(), err error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("router file watcher: %w", err)
	}
	if err := w.Add(f.path); err != nil {
		w.Close()
		return nil, fmt.Errorf("router file watcher add %s: %w", f.path, err)
	}

	done := make(chan struct{})
	go func() {
		defer w.Close()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) {
					if _, err := f.Reload(); err != nil {
						f.log.WithError(err).WithField("path", f.path).Error("router file reload failed, keeping previous configuration")
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.log.WithError(err).Warn("router file watcher error")
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }, nil
}

// Reload re-reads the file and notifies every backend/tenant present before
// or after the reload.
func (f *FileStore) Reload() ([]*router.Config, error) {
	configs, err := LoadFile(f.path, f.known)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	old := f.current
	f.current = configs
	f.mu.Unlock()

	f.log.WithFields(logging.Fields{"path": f.path, "routers": len(configs)}).Info("router configuration reloaded")
	f.notify(keys(old, configs)...)
	return configs, nil
}

// LoadFile reads and validates a router file.
func LoadFile(path string, known map[string]bool) ([]*router.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read router file %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse router file %s: %w", path, err)
	}
	for i, c := range doc.Routers {
		if c == nil {
			doc.Routers[i] = &router.Config{}
			continue
		}
		if c.ID == 0 {
			c.ID = int64(i + 1)
		}
	}
	if err := Validate(doc.Routers, known); err != nil {
		return nil, fmt.Errorf("router file %s: %w", path, err)
	}
	return doc.Routers, nil
}

// Validate checks every config and rejects two enabled configs for the same
// backend and tenant. All problems are reported together.
func Validate(configs []*router.Config, known map[string]bool) error {
	var errs []error
	seen := make(map[router.Key]int)
	for i, c := range configs {
		if err := c.Validate(known); err != nil {
			errs = append(errs, fmt.Errorf("routers[%d] (%s): %w", i, c.Key(), err))
		}
		if !c.Enabled {
			continue
		}
		if prev, ok := seen[c.Key()]; ok {
			errs = append(errs, fmt.Errorf("routers[%d] (%s): %w (first at routers[%d])", i, c.Key(), ErrDuplicateRouter, prev))
			continue
		}
		seen[c.Key()] = i
	}
	return errors.Join(errs...)
}

func keys(sets ...[]*router.Config) []Change {
	seen := make(map[Change]bool)
	var out []Change
	for _, set := range sets {
		for _, c := range set {
			ch := changeOf(c)
			if !seen[ch] {
				seen[ch] = true
				out = append(out, ch)
			}
		}
	}
	return out
}
