package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sentimentplus/gateway/internal/observability"
	"github.com/sentimentplus/gateway/internal/platform/httpx"
	"github.com/sentimentplus/gateway/internal/users"
)

// Handler wires the authentication endpoints: registration, credential
// login, the Google authorization-code flow, session introspection and
// profile maintenance.
type Handler struct {
	logger       *slog.Logger
	validate     *validator.Validate
	service      *Service
	tokens       *TokenManager
	states       *StateStore
	exchanger    Exchanger
	metrics      *observability.Metrics
	secureCookie bool
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, tokens *TokenManager, states *StateStore, exchanger Exchanger, metrics *observability.Metrics, secureCookie bool) *Handler {
	return &Handler{
		logger:       logger,
		validate:     validator.New(),
		service:      service,
		tokens:       tokens,
		states:       states,
		exchanger:    exchanger,
		metrics:      metrics,
		secureCookie: secureCookie,
	}
}

// MountAPIRoutes registers the JSON endpoints under /api.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.handleSession)
	r.Route("/profile", func(r chi.Router) {
		r.Use(RequireSession)
		r.Get("/", h.handleGetProfile)
		r.Put("/", h.handleUpdateProfile)
	})
}

// MountOAuthRoutes registers the browser-facing provider flow.
func (h *Handler) MountOAuthRoutes(r chi.Router) {
	r.Get("/google", h.handleGoogleStart)
	r.Get("/google/callback", h.handleGoogleCallback)
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrMissingFields)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	u, err := h.service.Register(r.Context(), RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if !errors.Is(err, httpx.ErrUserAlreadyExists) && !errors.Is(err, httpx.ErrMissingFields) {
			h.logger.Error("register", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}

	h.logger.Info("user registered", slog.String("user_id", u.ID.String()))
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "registration successful",
		"user":    users.NewUserResponse(u),
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrMissingFields)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, httpx.ErrInvalidCredentials)
		return
	}

	u, err := h.service.Verify(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.CountLogin("credentials", "failure")
		httpx.RespondError(w, err)
		return
	}
	h.metrics.CountLogin("credentials", "success")
	h.issueSession(w, r, u)
}

// issueSession mints a token for the verified user, sets the cookie and
// reports where the role lands.
func (h *Handler) issueSession(w http.ResponseWriter, r *http.Request, u *users.User) {
	token, err := h.tokens.Issue(u)
	if err != nil {
		h.logger.Error("issue session", slog.String("user_id", u.ID.String()), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "could not establish session")
		return
	}
	SetSessionCookie(w, token, h.tokens.TTL(), h.secureCookie)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"user":     users.NewUserResponse(u),
		"redirect": u.Role.HomePath(),
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ClearSessionCookie(w, h.secureCookie)
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// handleSession reports the decoded claims without touching the store, so
// the frontend can poll it cheaply.
func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	claims := h.tokens.Decode(TokenFromRequest(r))
	if claims == nil {
		httpx.JSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user": map[string]any{
			"id":     claims.Subject,
			"email":  claims.Email,
			"name":   claims.Name,
			"role":   claims.Role,
			"status": claims.Status,
		},
		"expires_at": claims.ExpiresAt.Time,
	})
}

func (h *Handler) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	u, err := h.service.Profile(r.Context(), id)
	if err != nil {
		h.logger.Error("get profile", slog.String("user_id", claims.Subject), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": users.NewUserResponse(u)})
}

type profileRequest struct {
	Name            string `json:"name" validate:"omitempty,min=2,max=100"`
	Email           string `json:"email" validate:"omitempty,email"`
	Image           string `json:"image" validate:"omitempty,url"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"omitempty,min=8,max=72"`
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}

	var req profileRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, httpx.ErrMissingFields)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	u, err := h.service.UpdateProfile(r.Context(), id, ProfileInput{
		Name:            req.Name,
		Email:           req.Email,
		AvatarURL:       req.Image,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		if errors.Is(err, httpx.ErrStoreUnavailable) {
			h.logger.Error("update profile", slog.String("user_id", claims.Subject), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": users.NewUserResponse(u)})
}

func (h *Handler) handleGoogleStart(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Issue(r.Context())
	if err != nil {
		h.logger.Error("issue oauth state", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "sign-in temporarily unavailable")
		return
	}
	http.Redirect(w, r, h.exchanger.AuthCodeURL(state), http.StatusFound)
}

func (h *Handler) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if err := h.states.Consume(r.Context(), r.URL.Query().Get("state")); err != nil {
		if errors.Is(err, ErrStateMismatch) {
			http.Redirect(w, r, "/login?error=state", http.StatusFound)
			return
		}
		h.logger.Error("consume oauth state", slog.Any("error", err))
		http.Redirect(w, r, "/login?error=oauth", http.StatusFound)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Redirect(w, r, "/login?error=oauth", http.StatusFound)
		return
	}

	identity, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("oauth exchange", slog.Any("error", err))
		http.Redirect(w, r, "/login?error=oauth", http.StatusFound)
		return
	}

	u, err := h.service.LinkOrCreate(r.Context(), *identity)
	if err != nil {
		h.metrics.CountLogin("google", "failure")
		if errors.Is(err, httpx.ErrAccountNotActive) {
			http.Redirect(w, r, "/login?error=inactive", http.StatusFound)
			return
		}
		h.logger.Error("oauth link", slog.Any("error", err))
		http.Redirect(w, r, "/login?error=oauth", http.StatusFound)
		return
	}

	token, err := h.tokens.Issue(u)
	if err != nil {
		h.logger.Error("issue session", slog.String("user_id", u.ID.String()), slog.Any("error", err))
		http.Redirect(w, r, "/login?error=oauth", http.StatusFound)
		return
	}
	h.metrics.CountLogin("google", "success")
	SetSessionCookie(w, token, h.tokens.TTL(), h.secureCookie)
	http.Redirect(w, r, u.Role.HomePath(), http.StatusFound)
}
