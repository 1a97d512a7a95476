package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("admin")
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, role)

	role, err = ParseRole("user")
	require.NoError(t, err)
	assert.Equal(t, RoleUser, role)

	_, err = ParseRole("superuser")
	assert.Error(t, err)

	_, err = ParseRole("")
	assert.Error(t, err)
}

func TestRoleHomePath(t *testing.T) {
	assert.Equal(t, "/admin/dashboard", RoleAdmin.HomePath())
	assert.Equal(t, "/user/dashboard", RoleUser.HomePath())
}

func TestParseStatus(t *testing.T) {
	for _, raw := range []string{"active", "suspended", "terminated"} {
		status, err := ParseStatus(raw)
		require.NoError(t, err)
		assert.True(t, status.Valid())
	}

	_, err := ParseStatus("banned")
	assert.Error(t, err)
}

func TestStatusIsActive(t *testing.T) {
	assert.True(t, StatusActive.IsActive())
	assert.False(t, StatusSuspended.IsActive())
	assert.False(t, StatusTerminated.IsActive())
}

func TestUserSanitized(t *testing.T) {
	u := &User{Email: "a@b.test", PasswordHash: "secret-hash"}
	clean := u.Sanitized()
	assert.Empty(t, clean.PasswordHash)
	assert.Equal(t, "a@b.test", clean.Email)
	// Original must be untouched.
	assert.Equal(t, "secret-hash", u.PasswordHash)
}

func TestUserHasPassword(t *testing.T) {
	assert.False(t, (&User{}).HasPassword())
	assert.True(t, (&User{PasswordHash: "x"}).HasPassword())
}
