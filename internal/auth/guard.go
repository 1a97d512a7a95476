package auth

import (
	"net/http"
	"strings"

	"github.com/sentimentplus/gateway/internal/platform/httpx"
	"github.com/sentimentplus/gateway/internal/users"
)

// decision is the route guard outcome for one request.
type decision struct {
	redirect bool
	location string
}

var allow = decision{}

func redirectTo(location string) decision {
	return decision{redirect: true, location: location}
}

// routeDecision is the guard policy: given the decoded session (nil for an
// unauthenticated request) and the requested path, decide whether to let
// the request through or redirect it. It is recomputed on every request
// since role and status can change between navigations.
func routeDecision(claims *Claims, path string) decision {
	authPage := path == "/login" || path == "/register"
	userArea := strings.HasPrefix(path, "/user/")
	adminArea := strings.HasPrefix(path, "/admin/")

	if claims == nil {
		if userArea || adminArea {
			return redirectTo("/login")
		}
		return allow
	}

	if authPage {
		return redirectTo(claims.Role.HomePath())
	}
	if adminArea && claims.Role != users.RoleAdmin {
		return redirectTo(users.RoleUser.HomePath())
	}
	if userArea && claims.Role == users.RoleAdmin {
		return redirectTo(users.RoleAdmin.HomePath())
	}
	return allow
}

// Guard is the page-navigation middleware. It decodes the session token,
// stores the claims in context, and applies the redirect policy. Decoding
// failures degrade to the unauthenticated state rather than erroring.
func (m *TokenManager) Guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := m.Decode(TokenFromRequest(r))
		if d := routeDecision(claims, r.URL.Path); d.redirect {
			http.Redirect(w, r, d.location, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// Authenticate decodes the session token and stores the claims in context
// without enforcing any policy. API routes compose it with RequireSession
// or RequireAdmin.
func (m *TokenManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := m.Decode(TokenFromRequest(r))
		next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
	})
}

// RequireSession rejects requests without a valid session with 401 JSON.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ClaimsFromContext(r.Context()) == nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose session does not carry the admin
// role. A missing session is 401, a non-admin session 403.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := ClaimsFromContext(r.Context())
		if claims == nil {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		if claims.Role != users.RoleAdmin {
			httpx.RespondError(w, httpx.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
