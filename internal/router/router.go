// Package router matches transformed events against a backend's routing
// configuration and delivers them to every accepting destination.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gyaneshwarpardhi/eventrouter/internal/logging"
	"github.com/gyaneshwarpardhi/eventrouter/internal/metrics"
	"github.com/gyaneshwarpardhi/eventrouter/internal/processor"
)

// ConfigSource returns the latest enabled configuration for a backend and
// tenant. A nil config with a nil error means none is configured.
type ConfigSource interface {
	LatestEnabled(ctx context.Context, backend, tenant string) (*Config, error)
}

// Outcome summarizes one Send call.
type Outcome struct {
	Skipped   string   `json:"skipped,omitempty"`
	Delivered []string `json:"delivered,omitempty"`
	Failed    []string `json:"failed,omitempty"`
}

// Skip reasons reported in Outcome.Skipped.
const (
	SkipProcessor = "processor"
	SkipNoRouter  = "no_router"
	SkipNoHost    = "no_host"
)

// Router delivers events for one backend.
type Router struct {
	Name       string
	Backend    string
	Processors processor.Chain
	Source     ConfigSource
	Strategies Strategies
	Log        logging.Logger
}

// Send processes transformed and delivers it to every destination of the
// backend's configuration that accepts original. Per-destination failures
// are logged and never returned; only processor and config lookup errors
// surface.
func (r *Router) Send(ctx context.Context, tenant string, original, transformed map[string]interface{}) (*Outcome, error) {
	name, _ := original["name"].(string)
	log := r.Log.WithFields(logging.Fields{"event": name, "backend": r.Backend, "router": r.Name})
	out := &Outcome{}

	processed, err := r.Processors.Apply(ctx, transformed)
	if err != nil {
		if errors.Is(err, processor.ErrSkip) {
			log.WithField("reason", err.Error()).Info("event emission skipped by processor")
			metrics.EventsSkipped.WithLabelValues(r.Backend, SkipProcessor).Inc()
			out.Skipped = SkipProcessor
			return out, nil
		}
		return nil, err
	}

	conf, err := r.Source.LatestEnabled(ctx, r.Backend, tenant)
	if err != nil {
		return nil, err
	}
	if conf == nil {
		log.Info("no enabled router configuration")
		metrics.EventsSkipped.WithLabelValues(r.Backend, SkipNoRouter).Inc()
		out.Skipped = SkipNoRouter
		return out, nil
	}

	hosts := conf.AllowedHosts(original)
	if len(hosts) == 0 {
		log.Info("event is not allowed to be sent to any host")
		metrics.EventsSkipped.WithLabelValues(r.Backend, SkipNoHost).Inc()
		out.Skipped = SkipNoHost
		return out, nil
	}

	for _, host := range hosts {
		ev := processed
		if len(host.OverrideArgs) > 0 {
			ev = Merge(processed, host.OverrideArgs)
			log.WithField("override_args", host.OverrideArgs).Info("overwriting event values")
		}
		if r.dispatch(ctx, log, host, ev) {
			out.Delivered = append(out.Delivered, host.Connection.target())
		} else {
			out.Failed = append(out.Failed, host.Connection.target())
		}
	}
	return out, nil
}

func (r *Router) dispatch(ctx context.Context, log *logging.Entry, host HostConfig, ev map[string]interface{}) bool {
	strategy := host.Strategy()
	log = log.WithFields(logging.Fields{"router_type": strategy, "destination": host.Connection.target()})

	sender, ok := r.Strategies[strategy]
	if !ok {
		log.Error("unsupported routing strategy")
		metrics.Sends.WithLabelValues(r.Backend, strategy, "unsupported").Inc()
		return false
	}

	body, err := json.Marshal(ev)
	if err != nil {
		log.WithError(err).Error("unable to encode event")
		metrics.Sends.WithLabelValues(r.Backend, strategy, "encode_error").Inc()
		return false
	}

	start := time.Now()
	err = sender.Send(ctx, host.Connection, body, ev)
	metrics.SendDuration.WithLabelValues(strategy).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		log.WithError(err).Error("failed to dispatch event")
		metrics.Sends.WithLabelValues(r.Backend, strategy, "error").Inc()
		return false
	}
	log.Info("dispatched event")
	metrics.Sends.WithLabelValues(r.Backend, strategy, "ok").Inc()
	return true
}

func (c Connection) target() string {
	if c.Topic != "" {
		return "kafka:" + c.Topic
	}
	return c.URL
}
