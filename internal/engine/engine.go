package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gyaneshwarpardhi/eventrouter/internal/backend"
	"github.com/gyaneshwarpardhi/eventrouter/internal/config"
	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/logging"
	"github.com/gyaneshwarpardhi/eventrouter/internal/metrics"
)

// ErrQueueFull is returned when the event queue cannot take more work.
var ErrQueueFull = errors.New("event queue full")

// Sender is one backend as seen by the engine.
type Sender interface {
	Send(ctx context.Context, ev event.Raw) (*backend.Result, error)
}

// EventResult is the outcome of processing a single event.
type EventResult struct {
	EventID    string            `json:"event_id"`
	Name       string            `json:"name"`
	DurationMs int64             `json:"duration_ms"`
	Backends   []*backend.Result `json:"backends"`
}

// Target is a named backend.
type Target struct {
	Name   string
	Sender Sender
}

// Engine fans each event out to every backend.
type Engine struct {
	targets   []Target
	eventPool *workerPool[*eventWork]
	conf      *config.EngineConf
	log       logging.Logger
}

type eventWork struct {
	id      string
	ev      event.Raw
	resultC chan *EventResult
}

// New creates an Engine using conf and starts the worker pool.
func New(ctx context.Context, targets []Target, conf config.EngineConf, log logging.Logger) *Engine {
	e := &Engine{
		targets: targets,
		conf:    &conf,
		log:     log,
	}
	e.eventPool = newWorkerPool[*eventWork](
		ctx,
		conf.EventWorkers,
		conf.QueueDepth,
		func(ctx context.Context, w *eventWork) {
			res := e.process(ctx, w.id, w.ev)
			if w.resultC != nil {
				w.resultC <- res
			}
		},
	)
	return e
}

// Backends returns the backend names in dispatch order.
func (e *Engine) Backends() []string {
	names := make([]string, len(e.targets))
	for i, t := range e.targets {
		names[i] = t.Name
	}
	return names
}

// ProcessSync processes an event and waits for the result.
func (e *Engine) ProcessSync(ctx context.Context, ev event.Raw) (*EventResult, error) {
	resultC := make(chan *EventResult, 1)
	w := &eventWork{id: uuid.NewString(), ev: ev, resultC: resultC}

	timeout := time.Duration(e.conf.EventTimeoutMs) * time.Millisecond
	if !e.submit(w) {
		return nil, fmt.Errorf("%w (capacity %d)", ErrQueueFull, e.conf.QueueDepth)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case res := <-resultC:
		return res, nil
	case <-timer.C:
		return nil, fmt.Errorf("event processing timeout after %v", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ProcessAsync enqueues an event for background processing and returns its
// job id. ok is false if the queue is full.
func (e *Engine) ProcessAsync(ev event.Raw) (id string, ok bool) {
	w := &eventWork{id: uuid.NewString(), ev: ev}
	if !e.submit(w) {
		return "", false
	}
	return w.id, true
}

func (e *Engine) submit(w *eventWork) bool {
	metrics.EventsReceived.Inc()
	if !e.eventPool.Submit(w) {
		metrics.EventsDropped.Inc()
		return false
	}
	metrics.EventsEnqueued.Inc()
	metrics.QueueUtilization.Set(e.QueueUtilization())
	return true
}

// QueueUtilization returns queue used / capacity (0 to 1).
func (e *Engine) QueueUtilization() float64 {
	if e.eventPool.QueueCap() == 0 {
		return 0
	}
	return float64(e.eventPool.QueueLen()) / float64(e.eventPool.QueueCap())
}

// process sends ev to all backends concurrently. A failing backend never
// affects the others.
func (e *Engine) process(ctx context.Context, id string, ev event.Raw) *EventResult {
	start := time.Now()
	result := &EventResult{
		EventID:  id,
		Name:     ev.Name(),
		Backends: make([]*backend.Result, len(e.targets)),
	}

	var g errgroup.Group
	for i, t := range e.targets {
		g.Go(func() error {
			res, err := t.Sender.Send(ctx, ev)
			if err != nil {
				e.log.WithError(err).WithFields(logging.Fields{"event": ev.Name(), "backend": t.Name, "job": id}).
					Error("backend failed to process event")
				res = &backend.Result{Backend: t.Name, Error: err.Error()}
			}
			result.Backends[i] = res
			return nil
		})
	}
	_ = g.Wait()

	result.DurationMs = time.Since(start).Milliseconds()
	metrics.EventProcessingDuration.Observe(float64(result.DurationMs))
	metrics.QueueUtilization.Set(e.QueueUtilization())
	return result
}

// Shutdown drains the pool gracefully.
func (e *Engine) Shutdown() {
	e.eventPool.Drain()
}
