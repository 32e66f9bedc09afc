package middleware

import (
	"net/http"
	"strings"

	"identity-plane/internal/security"
	"identity-plane/internal/server/respond"
)

const bearerPrefix = "bearer "

// Auth returns middleware that validates the Bearer access token and installs
// the request identity in context. public reports whether a path is reachable
// without a token (login, refresh, OAuth, health); a valid token on a public
// path still installs identity, an invalid one is ignored there so stale
// clients can always log in again.
func Auth(tokens *security.TokenProvider, public func(r *http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			isPublic := public != nil && public(r)

			if token == "" {
				if isPublic {
					next.ServeHTTP(w, r)
					return
				}
				respond.Unauthenticated(w)
				return
			}

			claims, err := tokens.ValidateAccess(token)
			if err != nil {
				if isPublic {
					next.ServeHTTP(w, r)
					return
				}
				respond.Unauthenticated(w)
				return
			}

			ctx := WithIdentity(r.Context(), claims.Subject, claims.TenantID, claims.SessionID, claims.Roles)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or ""
// if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// PublicPaths builds a public matcher over exact paths and prefixes.
func PublicPaths(exact []string, prefixes []string) func(r *http.Request) bool {
	exactSet := make(map[string]bool, len(exact))
	for _, p := range exact {
		exactSet[p] = true
	}
	return func(r *http.Request) bool {
		if exactSet[r.URL.Path] {
			return true
		}
		for _, p := range prefixes {
			if strings.HasPrefix(r.URL.Path, p) {
				return true
			}
		}
		return false
	}
}
