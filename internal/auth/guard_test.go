package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentimentplus/gateway/internal/users"
)

func claimsFor(role users.Role) *Claims {
	return &Claims{Role: role, Status: users.StatusActive}
}

func TestRouteDecision(t *testing.T) {
	tests := []struct {
		name     string
		claims   *Claims
		path     string
		redirect bool
		location string
	}{
		{"anonymous landing page", nil, "/", false, ""},
		{"anonymous login page", nil, "/login", false, ""},
		{"anonymous user area", nil, "/user/dashboard", true, "/login"},
		{"anonymous admin area", nil, "/admin/dashboard", true, "/login"},
		{"user login page", claimsFor(users.RoleUser), "/login", true, "/user/dashboard"},
		{"user register page", claimsFor(users.RoleUser), "/register", true, "/user/dashboard"},
		{"admin login page", claimsFor(users.RoleAdmin), "/login", true, "/admin/dashboard"},
		{"user own area", claimsFor(users.RoleUser), "/user/history", false, ""},
		{"user admin area", claimsFor(users.RoleUser), "/admin/dashboard", true, "/user/dashboard"},
		{"admin own area", claimsFor(users.RoleAdmin), "/admin/stats", false, ""},
		{"admin user area", claimsFor(users.RoleAdmin), "/user/dashboard", true, "/admin/dashboard"},
		{"user landing page", claimsFor(users.RoleUser), "/", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := routeDecision(tt.claims, tt.path)
			assert.Equal(t, tt.redirect, d.redirect)
			assert.Equal(t, tt.location, d.location)
		})
	}
}

func TestGuardMiddleware(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := m.Guard(next)

	t.Run("anonymous redirected to login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("tampered token treated as anonymous", func(t *testing.T) {
		other := NewTokenManager("other-secret", time.Hour)
		token, err := other.Issue(testUser())
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/user/dashboard", nil)
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, r)
		require.Equal(t, http.StatusFound, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("valid session passes through", func(t *testing.T) {
		u := testUser()
		token, err := m.Issue(u)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rec := httptest.NewRecorder()
		guarded.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	handler := m.Authenticate(RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	t.Run("no session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/users", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("user role", func(t *testing.T) {
		u := testUser()
		u.Role = users.RoleUser
		token, err := m.Issue(u)
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin role", func(t *testing.T) {
		token, err := m.Issue(testUser())
		require.NoError(t, err)

		r := httptest.NewRequest(http.MethodGet, "/api/admin/users", nil)
		r.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
