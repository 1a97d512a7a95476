package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/sentimentplus/gateway/internal/platform/httpx"
	"github.com/sentimentplus/gateway/internal/users"
)

const bcryptCost = 10

// dummyHash is compared against when the account does not exist or carries
// no local password, so the two failure paths cost the same as a real
// mismatch and cannot be told apart by timing.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcryptCost)

// Service implements credential verification, registration, federated
// sign-in and profile maintenance on top of the user repository.
type Service struct {
	logger *slog.Logger
	repo   users.Repository
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(logger *slog.Logger, repo users.Repository) *Service {
	return &Service{logger: logger, repo: repo, now: time.Now}
}

// Verify checks an email/password pair against the store. The password is
// always run through bcrypt, even for unknown accounts, and the account
// status is gated only after the password has been verified. On success the
// last-login stamp is recorded asynchronously and the sanitized user is
// returned.
func (s *Service) Verify(ctx context.Context, email, password string) (*users.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, httpx.ErrMissingFields
	}

	u, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		return nil, fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
	}

	hash := dummyHash
	if u != nil && u.HasPassword() {
		hash = []byte(u.PasswordHash)
	}
	compareErr := bcrypt.CompareHashAndPassword(hash, []byte(password))
	if u == nil || !u.HasPassword() || compareErr != nil {
		return nil, httpx.ErrInvalidCredentials
	}
	if !u.Status.IsActive() {
		return nil, httpx.ErrAccountNotActive
	}

	s.recordLogin(u.ID)
	return u.Sanitized(), nil
}

// recordLogin stamps last_login_at without blocking or failing the login.
// The write runs on a detached context so a cancelled request cannot abort
// it.
func (s *Service) recordLogin(id uuid.UUID) {
	at := s.now()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.repo.UpdateLastLogin(ctx, id, at); err != nil {
			s.logger.Warn("record last login", slog.String("user_id", id.String()), slog.Any("error", err))
		}
	}()
}

// RegisterInput carries a self-service registration request.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// Register creates a credential-backed account with the default role and
// active status. A duplicate email is reported without touching the store a
// second time.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*users.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" || in.Email == "" || in.Password == "" {
		return nil, httpx.ErrMissingFields
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	u := &users.User{
		ID:           uuid.New(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: string(hash),
		Role:         users.RoleUser,
		Status:       users.StatusActive,
		AuthProvider: "credentials",
		CreatedAt:    s.now(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, users.ErrAlreadyExists) {
			return nil, httpx.ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
	}
	return u.Sanitized(), nil
}

// LinkOrCreate upserts an account for a verified federated identity. An
// existing record keeps its role, status and password; only the provider
// fields, display name and avatar are refreshed. A fresh identity becomes a
// passwordless user-role account. Suspended and terminated accounts cannot
// sign in through a provider either.
func (s *Service) LinkOrCreate(ctx context.Context, identity Identity) (*users.User, error) {
	email := strings.ToLower(strings.TrimSpace(identity.Email))
	if email == "" {
		return nil, httpx.ErrInvalidCredentials
	}

	now := s.now()
	u, err := s.repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		if !u.Status.IsActive() {
			return nil, httpx.ErrAccountNotActive
		}
		link := users.ProviderLink{
			Name:              identity.Name,
			AvatarURL:         identity.AvatarURL,
			Provider:          identity.Provider,
			ProviderAccountID: identity.ProviderAccountID,
			At:                now,
		}
		if err := s.repo.LinkProvider(ctx, u.ID, link); err != nil {
			return nil, fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
		}
		u, err = s.repo.FindByID(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
		}
		return u.Sanitized(), nil

	case errors.Is(err, users.ErrNotFound):
		u = &users.User{
			ID:           uuid.New(),
			Email:        email,
			Name:         identity.Name,
			Role:         users.RoleUser,
			Status:       users.StatusActive,
			AvatarURL:    identity.AvatarURL,
			AuthProvider: identity.Provider,
			GoogleID:     identity.ProviderAccountID,
			CreatedAt:    now,
			LastLoginAt:  &now,
		}
		if err := s.repo.Create(ctx, u); err != nil {
			if errors.Is(err, users.ErrAlreadyExists) {
				// Lost a race with a concurrent first sign-in; link instead.
				return s.LinkOrCreate(ctx, identity)
			}
			return nil, fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
		}
		return u.Sanitized(), nil

	default:
		return nil, fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
	}
}

// Profile fetches a fresh copy of the account backing a session.
func (s *Service) Profile(ctx context.Context, id uuid.UUID) (*users.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
	}
	return u.Sanitized(), nil
}

// ProfileInput carries a self-service profile edit. Zero-value fields are
// left unchanged; a password change requires the current password.
type ProfileInput struct {
	Name            string
	Email           string
	AvatarURL       string
	CurrentPassword string
	NewPassword     string
}

// UpdateProfile applies a profile edit for the authenticated account and
// returns the refreshed record. Accounts created through a provider carry no
// local password and cannot set one here.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, in ProfileInput) (*users.User, error) {
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, httpx.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
	}

	var update users.ProfileUpdate
	if in.Name != "" {
		update.Name = &in.Name
	}
	if email := strings.ToLower(strings.TrimSpace(in.Email)); email != "" && email != u.Email {
		update.Email = &email
	}
	if in.AvatarURL != "" {
		update.AvatarURL = &in.AvatarURL
	}
	if in.NewPassword != "" {
		if !u.HasPassword() {
			return nil, httpx.ErrOAuthPasswordChange
		}
		if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.CurrentPassword)) != nil {
			return nil, httpx.ErrPasswordMismatch
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(in.NewPassword), bcryptCost)
		if err != nil {
			return nil, fmt.Errorf("auth: hash password: %w", err)
		}
		hashed := string(hash)
		update.PasswordHash = &hashed
	}

	if err := s.repo.UpdateProfile(ctx, id, update); err != nil {
		switch {
		case errors.Is(err, users.ErrAlreadyExists):
			return nil, httpx.ErrUserAlreadyExists
		case errors.Is(err, users.ErrNotFound):
			return nil, httpx.ErrNotFound
		default:
			return nil, fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
		}
	}

	u, err = s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
	}
	return u.Sanitized(), nil
}
