package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"identity-plane/internal/security"
)

func newAuthMiddleware(t *testing.T) (func(http.Handler) http.Handler, *security.TokenProvider) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("test token provider: %v", err)
	}
	public := PublicPaths([]string{"/public"}, []string{"/oauth/"})
	return Auth(tokens, public), tokens
}

func issueToken(t *testing.T, tokens *security.TokenProvider) string {
	t.Helper()
	token, _, err := tokens.IssueAccess("user-1", "tenant-1", "a@b.test", []string{"admin"}, "session-1")
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	return token
}

func TestAuth_MissingToken(t *testing.T) {
	mw, _ := newAuthMiddleware(t)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run without a token")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	mw, _ := newAuthMiddleware(t)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not run with an invalid token")
	}))

	r := httptest.NewRequest(http.MethodGet, "/private", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuth_ValidToken(t *testing.T) {
	mw, tokens := newAuthMiddleware(t)
	var userID, tenantID, sessionID string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ = GetUserID(r.Context())
		tenantID, _ = GetTenantID(r.Context())
		sessionID, _ = GetSessionID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/private", nil)
	r.Header.Set("Authorization", "Bearer "+issueToken(t, tokens))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if userID != "user-1" || tenantID != "tenant-1" || sessionID != "session-1" {
		t.Errorf("identity = (%q, %q, %q), want (user-1, tenant-1, session-1)", userID, tenantID, sessionID)
	}
}

func TestAuth_PublicPathWithoutToken(t *testing.T) {
	mw, _ := newAuthMiddleware(t)
	called := false
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := GetUserID(r.Context()); ok {
			t.Error("no identity should be installed without a token")
		}
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/public", nil))

	if !called {
		t.Fatal("handler should run on a public path")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestAuth_PublicPathWithInvalidToken(t *testing.T) {
	// A stale token must not lock clients out of the login path.
	mw, _ := newAuthMiddleware(t)
	called := false
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	r := httptest.NewRequest(http.MethodGet, "/public", nil)
	r.Header.Set("Authorization", "Bearer expired-garbage")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	if !called {
		t.Fatal("handler should run on a public path despite a bad token")
	}
}

func TestAuth_PublicPathWithValidToken(t *testing.T) {
	mw, tokens := newAuthMiddleware(t)
	var ok bool
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok = GetUserID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/public", nil)
	r.Header.Set("Authorization", "Bearer "+issueToken(t, tokens))
	h.ServeHTTP(httptest.NewRecorder(), r)

	if !ok {
		t.Error("valid token on a public path should still install identity")
	}
}

func TestAuth_PublicPrefix(t *testing.T) {
	mw, _ := newAuthMiddleware(t)
	called := false
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/oauth/github/callback", nil))
	if !called {
		t.Error("paths under a public prefix should not require a token")
	}
}

func TestExtractBearer(t *testing.T) {
	testCases := []struct {
		name   string
		header string
		want   string
	}{
		{"empty", "", ""},
		{"standard", "Bearer abc123", "abc123"},
		{"lowercase scheme", "bearer abc123", "abc123"},
		{"extra whitespace", "  Bearer   abc123  ", "abc123"},
		{"wrong scheme", "Basic abc123", ""},
		{"scheme only", "Bearer", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			if got := extractBearer(r); got != tc.want {
				t.Errorf("extractBearer(%q) = %q, want %q", tc.header, got, tc.want)
			}
		})
	}
}
