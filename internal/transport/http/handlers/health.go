package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/metrics"
	"github.com/Subhashree0011/event-driven-job-platform-sub000/internal/outbox"
)

type HealthHandler struct {
	ping             func(ctx context.Context) error
	outboxStore      outbox.Store
	outboxMaxRetries int
}

func NewHealthHandler(ping func(ctx context.Context) error, store outbox.Store, outboxMaxRetries int) *HealthHandler {
	return &HealthHandler{ping: ping, outboxStore: store, outboxMaxRetries: outboxMaxRetries}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	render.Status(r, code)
	render.JSON(w, r, map[string]string{"status": status})
}

// PipelineHealth serves the load-test telemetry payload plus the count of
// dead-lettered outbox rows.
func (h *HealthHandler) PipelineHealth(w http.ResponseWriter, r *http.Request) {
	snapshot := metrics.SnapshotPipelineHealth()

	body := map[string]any{
		"kafka":    snapshot.Kafka,
		"database": snapshot.Database,
		"redis":    snapshot.Redis,
	}
	if h.outboxStore != nil {
		if dead, err := h.outboxStore.CountDeadLetters(r.Context(), h.outboxMaxRetries); err == nil {
			body["outboxDeadLetters"] = dead
		}
	}
	render.JSON(w, r, body)
}
