package auth

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sentimentplus/gateway/internal/platform/httpx"
	"github.com/sentimentplus/gateway/internal/users"
)

// memRepo is an in-memory users.Repository for service tests. The mutex
// matters: the last-login write happens on a background goroutine.
type memRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*users.User
}

func newMemRepo() *memRepo {
	return &memRepo{records: map[uuid.UUID]*users.User{}}
}

func (r *memRepo) put(u *users.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *u
	r.records[u.ID] = &clone
}

func (r *memRepo) FindByEmail(_ context.Context, email string) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.records {
		if u.Email == strings.ToLower(email) {
			clone := *u
			return &clone, nil
		}
	}
	return nil, users.ErrNotFound
}

func (r *memRepo) FindByID(_ context.Context, id uuid.UUID) (*users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.records[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (r *memRepo) Create(_ context.Context, u *users.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.Email == u.Email {
			return users.ErrAlreadyExists
		}
	}
	clone := *u
	r.records[u.ID] = &clone
	return nil
}

func (r *memRepo) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.records[id]
	if !ok {
		return users.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (r *memRepo) LinkProvider(_ context.Context, id uuid.UUID, link users.ProviderLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.records[id]
	if !ok {
		return users.ErrNotFound
	}
	if link.Name != "" {
		u.Name = link.Name
	}
	if link.AvatarURL != "" {
		u.AvatarURL = link.AvatarURL
	}
	u.AuthProvider = link.Provider
	u.GoogleID = link.ProviderAccountID
	u.LastLoginAt = &link.At
	return nil
}

func (r *memRepo) UpdateProfile(_ context.Context, id uuid.UUID, update users.ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.records[id]
	if !ok {
		return users.ErrNotFound
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Email != nil {
		email := strings.ToLower(*update.Email)
		for otherID, other := range r.records {
			if otherID != id && other.Email == email {
				return users.ErrAlreadyExists
			}
		}
		u.Email = email
	}
	if update.AvatarURL != nil {
		u.AvatarURL = *update.AvatarURL
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	return nil
}

func (r *memRepo) SetStatus(_ context.Context, id uuid.UUID, status users.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.records[id]
	if !ok {
		return users.ErrNotFound
	}
	u.Status = status
	return nil
}

func (r *memRepo) SetCounters(_ context.Context, email string, reviews, corrections int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.records {
		if u.Email == strings.ToLower(email) {
			u.ReviewCount = reviews
			u.CorrectionCount = corrections
			return nil
		}
	}
	return nil
}

func (r *memRepo) List(_ context.Context) ([]users.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]users.User, 0, len(r.records))
	for _, u := range r.records {
		out = append(out, *u)
	}
	return out, nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

var _ users.Repository = (*memRepo)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func seedUser(t *testing.T, repo *memRepo, password string, status users.Status) *users.User {
	t.Helper()
	u := &users.User{
		ID:        uuid.New(),
		Email:     "alice@example.test",
		Name:      "Alice",
		Role:      users.RoleUser,
		Status:    status,
		CreatedAt: time.Now(),
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		u.PasswordHash = string(hash)
	}
	repo.put(u)
	return u
}

func TestVerifySuccess(t *testing.T) {
	repo := newMemRepo()
	seeded := seedUser(t, repo, "correct horse", users.StatusActive)
	svc := NewService(testLogger(), repo)

	u, err := svc.Verify(context.Background(), "ALICE@example.test", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, u.ID)
	assert.Empty(t, u.PasswordHash)

	// The last-login stamp is written off the request path.
	require.Eventually(t, func() bool {
		stored, err := repo.FindByID(context.Background(), seeded.ID)
		return err == nil && stored.LastLoginAt != nil
	}, time.Second, 10*time.Millisecond)
}

func TestVerifyWrongPassword(t *testing.T) {
	repo := newMemRepo()
	seedUser(t, repo, "correct horse", users.StatusActive)
	svc := NewService(testLogger(), repo)

	_, err := svc.Verify(context.Background(), "alice@example.test", "wrong")
	assert.ErrorIs(t, err, httpx.ErrInvalidCredentials)
}

func TestVerifyUnknownEmailSameError(t *testing.T) {
	repo := newMemRepo()
	seedUser(t, repo, "correct horse", users.StatusActive)
	svc := NewService(testLogger(), repo)

	_, errUnknown := svc.Verify(context.Background(), "nobody@example.test", "whatever")
	_, errWrong := svc.Verify(context.Background(), "alice@example.test", "wrong")
	assert.ErrorIs(t, errUnknown, httpx.ErrInvalidCredentials)
	assert.Equal(t, errWrong, errUnknown)
}

func TestVerifyInactiveAccount(t *testing.T) {
	for _, status := range []users.Status{users.StatusSuspended, users.StatusTerminated} {
		repo := newMemRepo()
		seedUser(t, repo, "correct horse", status)
		svc := NewService(testLogger(), repo)

		_, err := svc.Verify(context.Background(), "alice@example.test", "correct horse")
		assert.ErrorIs(t, err, httpx.ErrAccountNotActive, "status %s", status)
	}
}

func TestVerifyPasswordlessAccount(t *testing.T) {
	repo := newMemRepo()
	seedUser(t, repo, "", users.StatusActive)
	svc := NewService(testLogger(), repo)

	_, err := svc.Verify(context.Background(), "alice@example.test", "anything")
	assert.ErrorIs(t, err, httpx.ErrInvalidCredentials)
}

func TestVerifyMissingFields(t *testing.T) {
	svc := NewService(testLogger(), newMemRepo())
	_, err := svc.Verify(context.Background(), "", "password")
	assert.ErrorIs(t, err, httpx.ErrMissingFields)
	_, err = svc.Verify(context.Background(), "alice@example.test", "")
	assert.ErrorIs(t, err, httpx.ErrMissingFields)
}

func TestRegister(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(testLogger(), repo)

	u, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Bob",
		Email:    "Bob@Example.Test",
		Password: "hunter2hunter2",
	})
	require.NoError(t, err)
	assert.Equal(t, "bob@example.test", u.Email)
	assert.Equal(t, users.RoleUser, u.Role)
	assert.Equal(t, users.StatusActive, u.Status)
	assert.Empty(t, u.PasswordHash)

	stored, err := repo.FindByID(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("hunter2hunter2")))
	assert.Zero(t, stored.ReviewCount)
	assert.Zero(t, stored.CorrectionCount)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMemRepo()
	seeded := seedUser(t, repo, "correct horse", users.StatusActive)
	svc := NewService(testLogger(), repo)

	_, err := svc.Register(context.Background(), RegisterInput{
		Name:     "Imposter",
		Email:    seeded.Email,
		Password: "hunter2hunter2",
	})
	assert.ErrorIs(t, err, httpx.ErrUserAlreadyExists)

	// The original record is untouched.
	stored, ferr := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, ferr)
	assert.Equal(t, "Alice", stored.Name)
	assert.Equal(t, 1, repo.count())
}

func TestLinkOrCreateIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(testLogger(), repo)
	identity := Identity{
		Email:             "carol@example.test",
		Name:              "Carol",
		AvatarURL:         "https://img.example.test/carol.png",
		Provider:          "google",
		ProviderAccountID: "google-123",
	}

	first, err := svc.LinkOrCreate(context.Background(), identity)
	require.NoError(t, err)
	second, err := svc.LinkOrCreate(context.Background(), identity)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, repo.count())
}

func TestLinkOrCreateKeepsRoleAndPassword(t *testing.T) {
	repo := newMemRepo()
	seeded := seedUser(t, repo, "correct horse", users.StatusActive)
	seeded.Role = users.RoleAdmin
	repo.put(seeded)
	svc := NewService(testLogger(), repo)

	u, err := svc.LinkOrCreate(context.Background(), Identity{
		Email:             seeded.Email,
		Name:              "Alice G.",
		Provider:          "google",
		ProviderAccountID: "google-456",
	})
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, u.ID)
	assert.Equal(t, users.RoleAdmin, u.Role)

	stored, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, stored.PasswordHash)
	assert.Equal(t, "google", stored.AuthProvider)
	assert.Equal(t, "Alice G.", stored.Name)
}

func TestLinkOrCreateSuspendedAccount(t *testing.T) {
	repo := newMemRepo()
	seeded := seedUser(t, repo, "correct horse", users.StatusSuspended)
	svc := NewService(testLogger(), repo)

	for range 3 {
		_, err := svc.LinkOrCreate(context.Background(), Identity{
			Email:             seeded.Email,
			Provider:          "google",
			ProviderAccountID: "google-789",
		})
		assert.ErrorIs(t, err, httpx.ErrAccountNotActive)
	}
}

func TestUpdateProfileName(t *testing.T) {
	repo := newMemRepo()
	seeded := seedUser(t, repo, "correct horse", users.StatusActive)
	svc := NewService(testLogger(), repo)

	u, err := svc.UpdateProfile(context.Background(), seeded.ID, ProfileInput{Name: "Alice Prime"})
	require.NoError(t, err)
	assert.Equal(t, "Alice Prime", u.Name)
}

func TestUpdateProfileEmailCollision(t *testing.T) {
	repo := newMemRepo()
	seeded := seedUser(t, repo, "correct horse", users.StatusActive)
	other := &users.User{ID: uuid.New(), Email: "taken@example.test", Status: users.StatusActive}
	repo.put(other)
	svc := NewService(testLogger(), repo)

	_, err := svc.UpdateProfile(context.Background(), seeded.ID, ProfileInput{Email: "Taken@Example.Test"})
	assert.ErrorIs(t, err, httpx.ErrUserAlreadyExists)
}

func TestUpdateProfilePasswordChange(t *testing.T) {
	repo := newMemRepo()
	seeded := seedUser(t, repo, "old password", users.StatusActive)
	svc := NewService(testLogger(), repo)

	_, err := svc.UpdateProfile(context.Background(), seeded.ID, ProfileInput{
		CurrentPassword: "old password",
		NewPassword:     "new password 1",
	})
	require.NoError(t, err)

	stored, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("new password 1")))
}

func TestUpdateProfileWrongCurrentPassword(t *testing.T) {
	repo := newMemRepo()
	seeded := seedUser(t, repo, "old password", users.StatusActive)
	before, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)
	svc := NewService(testLogger(), repo)

	_, err = svc.UpdateProfile(context.Background(), seeded.ID, ProfileInput{
		CurrentPassword: "wrong",
		NewPassword:     "new password 1",
	})
	assert.ErrorIs(t, err, httpx.ErrPasswordMismatch)

	after, ferr := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, ferr)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
}

func TestUpdateProfileOAuthPasswordChange(t *testing.T) {
	repo := newMemRepo()
	seeded := seedUser(t, repo, "", users.StatusActive)
	svc := NewService(testLogger(), repo)

	_, err := svc.UpdateProfile(context.Background(), seeded.ID, ProfileInput{
		NewPassword: "new password 1",
	})
	assert.ErrorIs(t, err, httpx.ErrOAuthPasswordChange)
}
