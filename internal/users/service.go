package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sentimentplus/gateway/internal/platform/httpx"
)

// Service handles user management business logic for the admin surface.
type Service struct {
	repo Repository
}

// NewService builds Service instance.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// List returns all users with password hashes stripped.
func (s *Service) List(ctx context.Context) ([]User, error) {
	records, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
	}
	for i := range records {
		records[i].PasswordHash = ""
	}
	return records, nil
}

// SetStatus moves an account between lifecycle states. A stateless session
// issued before the change stays valid until it expires; the new status
// takes effect on the next authentication.
func (s *Service) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: invalid status", httpx.ErrValidation)
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		if errors.Is(err, ErrNotFound) {
			return httpx.ErrNotFound
		}
		return fmt.Errorf("%w: %v", httpx.ErrStoreUnavailable, err)
	}
	return nil
}
