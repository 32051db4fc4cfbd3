// Package backend transforms raw events into one output format and hands
// the result to that format's routers.
package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/logging"
	"github.com/gyaneshwarpardhi/eventrouter/internal/metrics"
	"github.com/gyaneshwarpardhi/eventrouter/internal/processor"
	"github.com/gyaneshwarpardhi/eventrouter/internal/router"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

// Output families.
const (
	FamilyCaliper = "caliper"
	FamilyXAPI    = "xapi"
)

// Skip reasons reported in Result.Skipped.
const (
	SkipNoTransformer = "no_transformer"
	SkipPreProcessor  = "pre_processor"
)

// Backend is one output format with its routers.
type Backend struct {
	Name          string
	Family        string
	Registry      *transform.Registry
	PreProcessors processor.Chain
	Routers       []*router.Router
	Log           logging.Logger
}

// Result is the outcome of one Send.
type Result struct {
	Backend string                     `json:"backend"`
	Skipped string                     `json:"skipped,omitempty"`
	Routers map[string]*router.Outcome `json:"routers,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

// mapper is implemented by structured outputs such as xAPI statements.
type mapper interface {
	AsMap() (map[string]interface{}, error)
}

// Transform converts ev into this backend's format as a JSON-shaped map.
// A missing transformer is reported with transform.ErrNoTransformer.
func (b *Backend) Transform(ev event.Raw) (map[string]interface{}, error) {
	t, err := b.Registry.Get(ev)
	if err != nil {
		return nil, err
	}
	out, err := t.Transform()
	if err != nil {
		return nil, err
	}
	switch v := out.(type) {
	case map[string]interface{}:
		return v, nil
	case transform.Record:
		return map[string]interface{}(v), nil
	case mapper:
		m, err := v.AsMap()
		if err != nil {
			return nil, fmt.Errorf("%s: encode %s output: %w", b.Name, t.Name(), err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%s: unsupported output type %T from %s", b.Name, out, t.Name())
	}
}

// Send pre-processes, transforms and routes ev. An event type without a
// transformer is logged and skipped. Any other transform error is returned.
// Router errors are recorded in Result.Error and do not stop other routers.
func (b *Backend) Send(ctx context.Context, ev event.Raw) (*Result, error) {
	name := ev.Name()
	log := b.Log.WithFields(logging.Fields{"event": name, "backend": b.Name})
	res := &Result{Backend: b.Name}

	pre, err := b.PreProcessors.Apply(ctx, ev)
	if err != nil {
		if errors.Is(err, processor.ErrSkip) {
			log.WithField("reason", err.Error()).Info("event skipped before transform")
			res.Skipped = SkipPreProcessor
			return res, nil
		}
		return nil, fmt.Errorf("%s: pre-process %q: %w", b.Name, name, err)
	}
	original := event.Raw(pre)

	log.Debug("transforming event")
	transformed, err := b.Transform(original)
	if err != nil {
		if errors.Is(err, transform.ErrNoTransformer) {
			log.Error("could not get transformer for event")
			metrics.EventsTransformed.WithLabelValues(b.Name, SkipNoTransformer).Inc()
			res.Skipped = SkipNoTransformer
			return res, nil
		}
		log.WithError(err).Error("error while transforming event")
		metrics.EventsTransformed.WithLabelValues(b.Name, "error").Inc()
		return nil, err
	}
	metrics.EventsTransformed.WithLabelValues(b.Name, "ok").Inc()
	log.Info("successfully transformed event")

	if b.Family == FamilyCaliper {
		if raw, err := json.Marshal(transformed); err == nil {
			b.Log.WithField("logger", logging.CaliperTracking).Info(string(raw))
		}
	}

	tenant := original.ContextString("enterprise_uuid")
	res.Routers = make(map[string]*router.Outcome, len(b.Routers))
	var errs []error
	for _, r := range b.Routers {
		log.WithField("router", r.Name).Debug("routing event")
		out, err := r.Send(ctx, tenant, original, transformed)
		if err != nil {
			log.WithError(err).WithField("router", r.Name).Error("router failed")
			errs = append(errs, fmt.Errorf("router %s: %w", r.Name, err))
			continue
		}
		res.Routers[r.Name] = out
	}
	if err := errors.Join(errs...); err != nil {
		res.Error = err.Error()
	}
	return res, nil
}
