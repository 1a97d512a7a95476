package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentimentplus/gateway/internal/users"
)

func testUser() *users.User {
	return &users.User{
		ID:     uuid.New(),
		Email:  "alice@example.test",
		Name:   "Alice",
		Role:   users.RoleAdmin,
		Status: users.StatusActive,
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	u := testUser()

	token, err := m.Issue(u)
	require.NoError(t, err)

	claims := m.Decode(token)
	require.NotNil(t, claims)
	assert.Equal(t, u.ID.String(), claims.Subject)
	assert.Equal(t, u.Email, claims.Email)
	assert.Equal(t, users.RoleAdmin, claims.Role)
	assert.Equal(t, users.StatusActive, claims.Status)
}

func TestDecodeRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-one", time.Hour)
	reader := NewTokenManager("secret-two", time.Hour)

	token, err := issuer.Issue(testUser())
	require.NoError(t, err)
	assert.Nil(t, reader.Decode(token))
}

func TestDecodeRejectsExpired(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }

	token, err := m.Issue(testUser())
	require.NoError(t, err)
	assert.Nil(t, m.Decode(token))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	assert.Nil(t, m.Decode(""))
	assert.Nil(t, m.Decode("not-a-token"))
	assert.Nil(t, m.Decode("aaa.bbb.ccc"))
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer header-token")
	assert.Equal(t, "header-token", TokenFromRequest(r))

	// Cookie wins over the header.
	r.AddCookie(&http.Cookie{Name: SessionCookie, Value: "cookie-token"})
	assert.Equal(t, "cookie-token", TokenFromRequest(r))
}
