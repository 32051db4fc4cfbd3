package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventrouter_events_received_total",
		Help: "Total number of raw events accepted for processing.",
	})

	EventsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventrouter_events_enqueued_total",
		Help: "Total number of events placed on the processing queue.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventrouter_events_dropped_total",
		Help: "Total number of events rejected due to a full queue.",
	})

	EventsTransformed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventrouter_events_transformed_total",
		Help: "Transform outcomes, labelled by backend and status.",
	}, []string{"backend", "status"})

	EventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventrouter_events_skipped_total",
		Help: "Events not dispatched by a router, labelled by backend and reason.",
	}, []string{"backend", "reason"})

	Sends = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventrouter_sends_total",
		Help: "Destination deliveries, labelled by backend, strategy and status.",
	}, []string{"backend", "strategy", "status"})

	SendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "eventrouter_send_duration_ms",
		Help:    "Destination delivery latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"strategy"})

	EventProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "eventrouter_event_processing_duration_ms",
		Help:    "End-to-end event processing latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	RouterCacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventrouter_router_cache_hits_total",
		Help: "Router configuration cache hits, labelled by tier.",
	}, []string{"tier"})

	RouterCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventrouter_router_cache_misses_total",
		Help: "Router configuration cache misses.",
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventrouter_queue_utilization_ratio",
		Help: "Current event queue utilization (0–1).",
	})
)
