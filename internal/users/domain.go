package users

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role is the authorization role stored on a user record.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole converts a raw string into a Role.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("users: unknown role %q", raw)
	}
}

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// HomePath returns the dashboard path the role lands on after login.
func (r Role) HomePath() string {
	if r == RoleAdmin {
		return "/admin/dashboard"
	}
	return "/user/dashboard"
}

// Status is the account lifecycle state.
type Status string

const (
	StatusActive     Status = "active"
	StatusSuspended  Status = "suspended"
	StatusTerminated Status = "terminated"
)

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, error) {
	switch Status(raw) {
	case StatusActive:
		return StatusActive, nil
	case StatusSuspended:
		return StatusSuspended, nil
	case StatusTerminated:
		return StatusTerminated, nil
	default:
		return "", fmt.Errorf("users: unknown status %q", raw)
	}
}

// Valid reports whether the status is one of the known variants.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusSuspended || s == StatusTerminated
}

// IsActive reports whether the account may complete authentication.
func (s Status) IsActive() bool {
	return s == StatusActive
}

// User represents an account record. Email is the natural key; all lookups
// and provider links compare it lower-cased.
type User struct {
	ID              uuid.UUID
	Email           string
	Name            string
	PasswordHash    string
	Role            Role
	Status          Status
	AvatarURL       string
	AuthProvider    string
	GoogleID        string
	ReviewCount     int
	CorrectionCount int
	CreatedAt       time.Time
	LastLoginAt     *time.Time
}

// HasPassword reports whether the account can authenticate via credentials.
// Pure-OAuth accounts carry no local password.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != ""
}

// Sanitized returns a copy of the user with the password hash stripped, for
// returning from authentication paths and APIs.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	clean := *u
	clean.PasswordHash = ""
	return &clean
}
