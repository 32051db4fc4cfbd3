// Package processor holds the per-router transformations applied to an
// event before it is matched and dispatched.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gyaneshwarpardhi/eventrouter/internal/condition"
	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/identity"
	"github.com/gyaneshwarpardhi/eventrouter/internal/logging"
	"github.com/gyaneshwarpardhi/eventrouter/internal/transform"
)

// ErrSkip signals that the event must not be sent. It may be wrapped.
var ErrSkip = errors.New("event emission skipped")

// Func transforms one event and returns its replacement.
type Func func(ctx context.Context, ev map[string]interface{}) (map[string]interface{}, error)

// Chain applies processors in order.
type Chain []Func

// Apply runs the chain over a deep copy of ev. The input is never modified.
func (c Chain) Apply(ctx context.Context, ev map[string]interface{}) (map[string]interface{}, error) {
	out := event.CopyMap(ev)
	for i, fn := range c {
		next, err := fn(ctx, out)
		if err != nil {
			if errors.Is(err, ErrSkip) {
				return nil, err
			}
			return nil, fmt.Errorf("processor %d: %w", i, err)
		}
		out = next
	}
	return out, nil
}

// CaliperEnvelope wraps a Caliper event in a sensor envelope.
func CaliperEnvelope(sensorID string) Func {
	return func(_ context.Context, ev map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{
			"sensor":      sensorID,
			"sendTime":    time.Now().UTC().Format(transform.ISOTimeLayout),
			"data":        ev,
			"dataVersion": "http://purl.imsglobal.org/ctx/caliper/v1p1",
		}, nil
	}
}

// Wrapper nests the event under key.
func Wrapper(key string) Func {
	return func(_ context.Context, ev map[string]interface{}) (map[string]interface{}, error) {
		return map[string]interface{}{key: ev}, nil
	}
}

// EnterpriseContext sets context.enterprise_uuid for learners that belong to
// an enterprise. Lookup failures leave the event unchanged.
func EnterpriseContext(lookup identity.EnterpriseLookup, log logging.Logger) Func {
	return func(ctx context.Context, ev map[string]interface{}) (map[string]interface{}, error) {
		evCtx, ok := ev["context"].(map[string]interface{})
		if !ok {
			return ev, nil
		}
		username, _ := evCtx["username"].(string)
		if username == "" {
			return ev, nil
		}
		id, err := lookup.EnterpriseUUID(ctx, username)
		if err != nil {
			if !errors.Is(err, identity.ErrUnknownLearner) {
				log.WithFields(logging.Fields{"username": username, "err": err}).
					Error("enterprise lookup failed")
			}
			return ev, nil
		}
		evCtx["enterprise_uuid"] = id
		return ev, nil
	}
}

// SkipUnless skips events whose value at path does not equal value.
func SkipUnless(path string, value interface{}) Func {
	return func(_ context.Context, ev map[string]interface{}) (map[string]interface{}, error) {
		got, ok := event.Resolve(ev, path)
		if !ok || !condition.Equal(got, value) {
			return nil, fmt.Errorf("%s != %v: %w", path, value, ErrSkip)
		}
		return ev, nil
	}
}

// Where skips events that do not satisfy the filter expression.
func Where(f *condition.Filter) Func {
	return func(_ context.Context, ev map[string]interface{}) (map[string]interface{}, error) {
		ok, err := f.Match(ev)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f, err)
		}
		if !ok {
			return nil, fmt.Errorf("filter %s: %w", f, ErrSkip)
		}
		return ev, nil
	}
}
