package jobs

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/sentimentplus/gateway/internal/platform/httpx"
)

// Handler exposes HTTP endpoints for job observability and manual runs.
type Handler struct {
	inspector *asynq.Inspector
	client    *Client
	logger    *slog.Logger
}

// NewHandler constructs an HTTP handler for the jobs endpoints.
func NewHandler(inspector *asynq.Inspector, client *Client, logger *slog.Logger) *Handler {
	return &Handler{inspector: inspector, client: client, logger: logger}
}

// MountRoutes attaches job routes. The caller wraps them in the admin
// requirement.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleSnapshot)
	r.Post("/warmup", h.handleWarmup)
	r.Post("/counter-sync", h.handleCounterSync)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.inspector == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"queue": QueueDefault, "pending": 0})
		return
	}
	info, err := h.inspector.GetQueueInfo(QueueDefault)
	if err != nil {
		h.logger.Warn("jobs snapshot", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "queue inspection failed")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"queue":     info.Queue,
		"pending":   info.Pending,
		"active":    info.Active,
		"scheduled": info.Scheduled,
		"retry":     info.Retry,
		"completed": info.Completed,
		"failed":    info.Failed,
	})
}

func (h *Handler) handleWarmup(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, TaskStatsWarmup, h.client.EnqueueStatsWarmup)
}

func (h *Handler) handleCounterSync(w http.ResponseWriter, r *http.Request) {
	h.enqueue(w, r, TaskUsersCounterSync, h.client.EnqueueCounterSync)
}

func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, taskType string, fn func(context.Context) (*asynq.TaskInfo, error)) {
	info, err := fn(r.Context())
	if err != nil {
		h.logger.Error("enqueue task", slog.String("type", taskType), slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "could not enqueue task")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"id": info.ID, "type": taskType})
}
