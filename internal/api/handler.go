package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tidwall/gjson"

	"github.com/gyaneshwarpardhi/eventrouter/internal/engine"
	"github.com/gyaneshwarpardhi/eventrouter/internal/event"
	"github.com/gyaneshwarpardhi/eventrouter/internal/logging"
	"github.com/gyaneshwarpardhi/eventrouter/internal/router"
	"github.com/gyaneshwarpardhi/eventrouter/internal/router/store"
)

const (
	defaultMaxBatchSize = 100
	maxBodyBytes        = 4 << 20
)

// Processor is the engine surface the handler needs.
type Processor interface {
	ProcessSync(ctx context.Context, ev event.Raw) (*engine.EventResult, error)
	ProcessAsync(ev event.Raw) (id string, ok bool)
	QueueUtilization() float64
}

// Reloader re-reads router configuration from its source.
type Reloader interface {
	Reload() ([]*router.Config, error)
}

// Options holds all HTTP handler dependencies. Reloader may be nil.
type Options struct {
	Engine       Processor
	Routers      store.Store
	Reloader     Reloader
	Transformers map[string][]string
	MaxBatchSize int
	Log          logging.Logger
}

// Handler serves the HTTP API.
type Handler struct {
	opts Options
	mux  *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(opts Options) http.Handler {
	if opts.MaxBatchSize <= 0 {
		opts.MaxBatchSize = defaultMaxBatchSize
	}
	h := &Handler{opts: opts, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/events", h.ingestEvent)
	h.mux.HandleFunc("POST /v1/events/batch", h.ingestBatch)
	h.mux.HandleFunc("GET /v1/routers", h.listRouters)
	h.mux.HandleFunc("POST /v1/routers/reload", h.reloadRouters)
	h.mux.HandleFunc("GET /v1/transformers", h.listTransformers)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(opts.Log, h.mux)
}

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", maxBodyBytes)
	}
	return body, nil
}

// checkEvent validates the shape of one raw event without decoding it.
func checkEvent(ev gjson.Result) error {
	if !ev.IsObject() {
		return errors.New("event must be a JSON object")
	}
	name := ev.Get("name")
	if name.Type != gjson.String || name.Str == "" {
		return errors.New("event name is required")
	}
	return nil
}

// POST /v1/events: synchronous single-event processing.
func (h *Handler) ingestEvent(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if !gjson.ValidBytes(body) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := checkEvent(gjson.ParseBytes(body)); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var ev event.Raw
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	res, err := h.opts.Engine.ProcessSync(r.Context(), ev)
	if err != nil {
		status := http.StatusGatewayTimeout
		if errors.Is(err, engine.ErrQueueFull) {
			status = http.StatusTooManyRequests
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/events/batch: async batch ingestion.
func (h *Handler) ingestBatch(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if !gjson.ValidBytes(body) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	batch := gjson.ParseBytes(body)
	if !batch.IsArray() {
		writeError(w, http.StatusBadRequest, "batch must be a JSON array")
		return
	}
	items := batch.Array()
	if len(items) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one event")
		return
	}
	if len(items) > h.opts.MaxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(items), h.opts.MaxBatchSize))
		return
	}

	type rejection struct {
		Index int    `json:"index"`
		Error string `json:"error"`
	}
	jobID := uuid.New().String()
	queued := make([]string, 0, len(items))
	var rejected []rejection
	for i, item := range items {
		if err := checkEvent(item); err != nil {
			rejected = append(rejected, rejection{Index: i, Error: err.Error()})
			continue
		}
		var ev event.Raw
		if err := json.Unmarshal([]byte(item.Raw), &ev); err != nil {
			rejected = append(rejected, rejection{Index: i, Error: err.Error()})
			continue
		}
		id, ok := h.opts.Engine.ProcessAsync(ev)
		if !ok {
			rejected = append(rejected, rejection{Index: i, Error: engine.ErrQueueFull.Error()})
			continue
		}
		queued = append(queued, id)
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   jobID,
		"total":    len(items),
		"queued":   len(queued),
		"event_id": queued,
		"rejected": rejected,
	})
}

// GET /v1/routers: list router configurations with credentials masked.
func (h *Handler) listRouters(w http.ResponseWriter, r *http.Request) {
	configs, err := h.opts.Routers.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]router.Config, 0, len(configs))
	for _, c := range configs {
		out = append(out, redact(c))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(out),
		"routers": out,
	})
}

// POST /v1/routers/reload: re-read router configuration.
func (h *Handler) reloadRouters(w http.ResponseWriter, r *http.Request) {
	if h.opts.Reloader == nil {
		writeError(w, http.StatusConflict, "router source does not support reload")
		return
	}
	configs, err := h.opts.Reloader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":      true,
		"routers_count": len(configs),
	})
}

// GET /v1/transformers: event types supported per backend.
func (h *Handler) listTransformers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.opts.Transformers)
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if event queue >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.opts.Engine.QueueUtilization()
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}

const masked = "********"

func redact(c *router.Config) router.Config {
	out := *c
	out.Hosts = make([]router.HostConfig, len(c.Hosts))
	for i, h := range c.Hosts {
		if h.Connection.APIKey != "" {
			h.Connection.APIKey = masked
		}
		if h.Connection.Password != "" {
			h.Connection.Password = masked
		}
		if len(h.Connection.Headers) > 0 {
			headers := make(map[string]string, len(h.Connection.Headers))
			for k, v := range h.Connection.Headers {
				if sensitiveHeader(k) {
					v = masked
				}
				headers[k] = v
			}
			h.Connection.Headers = headers
		}
		out.Hosts[i] = h
	}
	return out
}

var sensitiveParts = []string{"auth", "key", "token", "secret", "password", "cookie"}

// sensitiveHeader reports whether a header likely carries a credential.
func sensitiveHeader(name string) bool {
	name = strings.ToLower(name)
	for _, p := range sensitiveParts {
		if strings.Contains(name, p) {
			return true
		}
	}
	return false
}
