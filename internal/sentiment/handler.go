package sentiment

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sentimentplus/gateway/internal/auth"
	"github.com/sentimentplus/gateway/internal/platform/httpx"
	"github.com/sentimentplus/gateway/internal/users"
)

// Handler proxies the sentiment backend for authenticated callers and
// serves the dashboard data endpoints.
type Handler struct {
	logger *slog.Logger
	client *Client
	cache  *Cache
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, client *Client, cache *Cache) *Handler {
	return &Handler{logger: logger, client: client, cache: cache}
}

// MountAPIRoutes registers the analyze/list endpoints. The caller wraps
// them in the session requirement.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Post("/", h.handleAnalyze)
	r.Get("/", h.handleReviews)
	r.Post("/corrections", h.handleSubmitCorrection)
	r.Get("/corrections", h.handleListCorrections)
}

// MountAdminAPIRoutes registers the correction review queue and training
// controls. The caller wraps them in the admin requirement.
func (h *Handler) MountAdminAPIRoutes(r chi.Router) {
	r.Get("/corrections", h.handlePendingCorrections)
	r.Post("/corrections/{id}/approve", h.resolveCorrection("approve"))
	r.Post("/corrections/{id}/reject", h.resolveCorrection("reject"))
	r.Get("/training-queue", h.handleTrainingQueue)
	r.Post("/start-training", h.handleStartTraining)
}

// MountUserPages registers the caller-scoped dashboard data endpoints.
func (h *Handler) MountUserPages(r chi.Router) {
	r.Get("/dashboard", h.handleUserDashboard)
	r.Get("/history", h.handleUserHistory)
}

// MountAdminPages registers the aggregate dashboard data endpoints.
func (h *Handler) MountAdminPages(r chi.Router) {
	r.Get("/dashboard", h.handleAdminDashboard)
	r.Get("/stats", h.handleAdminStats)
}

type analyzeRequest struct {
	Text string `json:"text"`
	Save bool   `json:"save"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var req analyzeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrMissingFields)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		httpx.Problem(w, http.StatusBadRequest, "Missing Fields", "text is required")
		return
	}

	var (
		prediction *Prediction
		err        error
	)
	if req.Save {
		prediction, err = h.client.SaveReview(r.Context(), req.Text, claims.Email)
	} else {
		prediction, err = h.client.Predict(r.Context(), req.Text, claims.Email)
	}
	if err != nil {
		h.logger.Error("analyze text", slog.Bool("save", req.Save), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	if req.Save {
		// A new review changes the aggregates.
		if err := h.cache.Bump(r.Context()); err != nil {
			h.logger.Warn("bump stats cache", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, prediction)
}

func (h *Handler) handleReviews(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	q := ReviewsQuery{
		Sentiment: r.URL.Query().Get("sentiment"),
		UserEmail: r.URL.Query().Get("user_email"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "limit must be a non-negative integer")
			return
		}
		q.Limit = limit
	}
	// Only admins may read other users' reviews.
	if claims.Role != users.RoleAdmin {
		q.UserEmail = claims.Email
	}

	reviews, err := h.client.Reviews(r.Context(), q)
	if err != nil {
		h.logger.Error("list reviews", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reviews)
}

type correctionRequest struct {
	ReviewID           string          `json:"review_id"`
	OriginalSentiment  string          `json:"original_sentiment"`
	CorrectedSentiment string          `json:"corrected_sentiment"`
	ConfidenceOverride float64         `json:"confidence_override"`
	Aspects            json.RawMessage `json:"aspects"`
	Status             string          `json:"status"`
}

func (h *Handler) handleSubmitCorrection(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var req correctionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrMissingFields)
		return
	}
	if req.ReviewID == "" || req.CorrectedSentiment == "" {
		httpx.Problem(w, http.StatusBadRequest, "Missing Fields", "review_id and corrected_sentiment are required")
		return
	}
	if req.Status == "" {
		req.Status = CorrectionDraft
	}
	if req.Status != CorrectionDraft && req.Status != CorrectionPending {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Status", "status must be draft or pending_admin_review")
		return
	}

	// The submitter is always the session owner, whatever the body says.
	out, err := h.client.SubmitCorrection(r.Context(), CorrectionSubmission{
		ReviewID:           req.ReviewID,
		UserEmail:          claims.Email,
		OriginalSentiment:  req.OriginalSentiment,
		CorrectedSentiment: req.CorrectedSentiment,
		ConfidenceOverride: req.ConfidenceOverride,
		Aspects:            req.Aspects,
		Status:             req.Status,
	})
	if err != nil {
		h.logger.Error("submit correction", slog.String("review_id", req.ReviewID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, out)
}

func (h *Handler) handleListCorrections(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	email := r.URL.Query().Get("user_email")
	if claims.Role != users.RoleAdmin || email == "" {
		email = claims.Email
	}
	out, err := h.client.Corrections(r.Context(), email)
	if err != nil {
		h.logger.Error("list corrections", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) handlePendingCorrections(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	out, err := h.client.PendingCorrections(r.Context(), limit)
	if err != nil {
		h.logger.Error("pending corrections", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

type correctionVerdictRequest struct {
	Notes string `json:"notes"`
}

func (h *Handler) resolveCorrection(verdict string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := auth.ClaimsFromContext(r.Context())
		id := chi.URLParam(r, "id")

		// Notes are optional; an empty body is fine.
		var req correctionVerdictRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			req = correctionVerdictRequest{}
		}

		out, err := h.client.ResolveCorrection(r.Context(), id, verdict, claims.Email, req.Notes)
		if err != nil {
			h.logger.Error("resolve correction",
				slog.String("id", id), slog.String("verdict", verdict), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		if verdict == "approve" {
			// An applied correction changes the aggregates.
			if err := h.cache.Bump(r.Context()); err != nil {
				h.logger.Warn("bump stats cache", slog.Any("error", err))
			}
		}
		httpx.JSON(w, http.StatusOK, out)
	}
}

func (h *Handler) handleTrainingQueue(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Query", "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	out, err := h.client.TrainingQueue(r.Context(), limit)
	if err != nil {
		h.logger.Error("training queue", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

type startTrainingRequest struct {
	ScheduleDate time.Time `json:"schedule_date"`
}

func (h *Handler) handleStartTraining(w http.ResponseWriter, r *http.Request) {
	var req startTrainingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		req = startTrainingRequest{}
	}
	if req.ScheduleDate.IsZero() {
		req.ScheduleDate = time.Now()
	}
	out, err := h.client.StartTraining(r.Context(), req.ScheduleDate)
	if err != nil {
		h.logger.Error("start training", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, out)
}

func (h *Handler) handleUserDashboard(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	reviews, err := h.client.Reviews(r.Context(), ReviewsQuery{Limit: 10, UserEmail: claims.Email})
	if err != nil {
		h.logger.Error("user dashboard", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"email":   claims.Email,
		"name":    claims.Name,
		"recent":  reviews.Reviews,
		"count":   reviews.Count,
	})
}

func (h *Handler) handleUserHistory(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	reviews, err := h.client.Reviews(r.Context(), ReviewsQuery{UserEmail: claims.Email})
	if err != nil {
		h.logger.Error("user history", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, reviews)
}

func (h *Handler) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.FetchStats(r.Context(), h.client.Stats)
	if err != nil {
		h.logger.Error("admin dashboard stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	reviews, err := h.client.Reviews(r.Context(), ReviewsQuery{Limit: 20})
	if err != nil {
		h.logger.Error("admin dashboard reviews", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"stats":  stats,
		"recent": reviews.Reviews,
	})
}

func (h *Handler) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.FetchStats(r.Context(), h.client.Stats)
	if err != nil {
		h.logger.Error("admin stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}
