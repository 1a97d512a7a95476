package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indicates no user record matched the lookup.
	ErrNotFound = errors.New("user not found")
	// ErrAlreadyExists indicates a unique-key collision on email.
	ErrAlreadyExists = errors.New("user already exists")
)

// ProfileUpdate lists the mutable profile fields. Nil means leave unchanged.
type ProfileUpdate struct {
	Name         *string
	Email        *string
	AvatarURL    *string
	PasswordHash *string
}

// ProviderLink carries the fields the OAuth linker refreshes on sign-in.
type ProviderLink struct {
	Name              string
	AvatarURL         string
	Provider          string
	ProviderAccountID string
	At                time.Time
}

// Repository defines persistence operations for user records.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	Create(ctx context.Context, u *User) error
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	LinkProvider(ctx context.Context, id uuid.UUID, link ProviderLink) error
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) error
	SetStatus(ctx context.Context, id uuid.UUID, status Status) error
	SetCounters(ctx context.Context, email string, reviews, corrections int) error
	List(ctx context.Context) ([]User, error)
}

const userColumns = `id, email, name, password_hash, role, status, avatar_url,
	auth_provider, google_id, review_count, correction_count, created_at, last_login_at`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches a user by lower-cased email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE email = $1", userColumns)
	return r.scanUser(r.pool.QueryRow(ctx, query, strings.ToLower(email)))
}

// FindByID fetches a user by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE id = $1", userColumns)
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

// Create inserts a new user record. The email unique constraint maps to
// ErrAlreadyExists, never a partial write.
func (r *PGRepository) Create(ctx context.Context, u *User) error {
	const query = `
		INSERT INTO users (id, email, name, password_hash, role, status, avatar_url,
			auth_provider, google_id, review_count, correction_count, created_at, last_login_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, NULLIF($7, ''),
			NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12, $13)
	`
	_, err := r.pool.Exec(ctx, query,
		u.ID, strings.ToLower(u.Email), nullable(u.Name), u.PasswordHash,
		string(u.Role), string(u.Status), u.AvatarURL,
		u.AuthProvider, u.GoogleID, u.ReviewCount, u.CorrectionCount,
		u.CreatedAt, u.LastLoginAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// UpdateLastLogin stamps the last successful authentication time.
func (r *PGRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.pool.Exec(ctx, "UPDATE users SET last_login_at = $2 WHERE id = $1", id, at)
	return err
}

// LinkProvider refreshes the federated identity fields on an existing record.
// Role and status are deliberately untouched.
func (r *PGRepository) LinkProvider(ctx context.Context, id uuid.UUID, link ProviderLink) error {
	const query = `
		UPDATE users
		SET name = COALESCE(NULLIF($2, ''), name),
		    avatar_url = COALESCE(NULLIF($3, ''), avatar_url),
		    auth_provider = $4,
		    google_id = NULLIF($5, ''),
		    last_login_at = $6
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query, id, link.Name, link.AvatarURL, link.Provider, link.ProviderAccountID, link.At)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile applies the non-nil profile fields in a single statement.
func (r *PGRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) error {
	sets := make([]string, 0, 4)
	args := []any{id}
	pos := 2

	if update.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", pos))
		args = append(args, *update.Name)
		pos++
	}
	if update.Email != nil {
		sets = append(sets, fmt.Sprintf("email = $%d", pos))
		args = append(args, strings.ToLower(*update.Email))
		pos++
	}
	if update.AvatarURL != nil {
		sets = append(sets, fmt.Sprintf("avatar_url = NULLIF($%d, '')", pos))
		args = append(args, *update.AvatarURL)
		pos++
	}
	if update.PasswordHash != nil {
		sets = append(sets, fmt.Sprintf("password_hash = $%d", pos))
		args = append(args, *update.PasswordHash)
		pos++
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := r.pool.Exec(ctx, query, args...)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetStatus moves an account between lifecycle states.
func (r *PGRepository) SetStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.pool.Exec(ctx, "UPDATE users SET status = $2 WHERE id = $1", id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCounters reconciles the dashboard counters from the backend's tallies.
func (r *PGRepository) SetCounters(ctx context.Context, email string, reviews, corrections int) error {
	const query = "UPDATE users SET review_count = $2, correction_count = $3 WHERE email = $1"
	_, err := r.pool.Exec(ctx, query, strings.ToLower(email), reviews, corrections)
	return err
}

// List returns all user records ordered by creation time.
func (r *PGRepository) List(ctx context.Context) ([]User, error) {
	query := fmt.Sprintf("SELECT %s FROM users ORDER BY created_at", userColumns)
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (r *PGRepository) scanUser(row pgx.Row) (*User, error) {
	var (
		u            User
		name         *string
		passwordHash *string
		role         string
		status       string
		avatarURL    *string
		authProvider *string
		googleID     *string
	)
	err := row.Scan(&u.ID, &u.Email, &name, &passwordHash, &role, &status, &avatarURL,
		&authProvider, &googleID, &u.ReviewCount, &u.CorrectionCount, &u.CreatedAt, &u.LastLoginAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Name = deref(name)
	u.PasswordHash = deref(passwordHash)
	u.AvatarURL = deref(avatarURL)
	u.AuthProvider = deref(authProvider)
	u.GoogleID = deref(googleID)
	u.Role, err = ParseRole(role)
	if err != nil {
		return nil, err
	}
	u.Status, err = ParseStatus(status)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var _ Repository = (*PGRepository)(nil)
