package users

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sentimentplus/gateway/internal/platform/httpx"
)

// Handler wires the admin user-management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers user-management routes on the provided router. The
// caller is expected to wrap them in the admin guard.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.handleList)
	r.Put("/{id}/status", h.handleSetStatus)
}

// UserResponse is the API shape of a user record, hash never included.
type UserResponse struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name,omitempty"`
	Role            Role       `json:"role"`
	Status          Status     `json:"status"`
	AvatarURL       string     `json:"avatar_url,omitempty"`
	AuthProvider    string     `json:"auth_provider,omitempty"`
	ReviewCount     int        `json:"review_count"`
	CorrectionCount int        `json:"correction_count"`
	CreatedAt       time.Time  `json:"created_at"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
}

// NewUserResponse converts a domain user into its API shape.
func NewUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:              u.ID.String(),
		Email:           u.Email,
		Name:            u.Name,
		Role:            u.Role,
		Status:          u.Status,
		AvatarURL:       u.AvatarURL,
		AuthProvider:    u.AuthProvider,
		ReviewCount:     u.ReviewCount,
		CorrectionCount: u.CorrectionCount,
		CreatedAt:       u.CreatedAt,
		LastLoginAt:     u.LastLoginAt,
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]UserResponse, len(records))
	for i := range records {
		out[i] = NewUserResponse(&records[i])
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": out, "count": len(out)})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "user id must be a UUID")
		return
	}
	var req setStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be JSON")
		return
	}
	status, err := ParseStatus(req.Status)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Status", err.Error())
		return
	}
	if err := h.service.SetStatus(r.Context(), id, status); err != nil {
		h.logger.Error("set user status", slog.String("id", id.String()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "status updated"})
}
