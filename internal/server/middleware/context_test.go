package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithIdentity_Accessors(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", "tenant-1", "session-1", []string{"admin"})

	if got, ok := GetUserID(ctx); !ok || got != "user-1" {
		t.Errorf("GetUserID = %q, %v; want user-1, true", got, ok)
	}
	if got, ok := GetTenantID(ctx); !ok || got != "tenant-1" {
		t.Errorf("GetTenantID = %q, %v; want tenant-1, true", got, ok)
	}
	if got, ok := GetSessionID(ctx); !ok || got != "session-1" {
		t.Errorf("GetSessionID = %q, %v; want session-1, true", got, ok)
	}
	if !HasRole(ctx, "admin") {
		t.Error("HasRole(admin) = false, want true")
	}
	if HasRole(ctx, "owner") {
		t.Error("HasRole(owner) = true, want false")
	}
}

func TestAccessors_EmptyContext(t *testing.T) {
	ctx := context.Background()
	if _, ok := GetUserID(ctx); ok {
		t.Error("GetUserID on empty context should report false")
	}
	if _, ok := GetTenantID(ctx); ok {
		t.Error("GetTenantID on empty context should report false")
	}
	if roles := GetRoles(ctx); roles != nil {
		t.Errorf("GetRoles on empty context = %v, want nil", roles)
	}
	if HasRole(ctx, "admin") {
		t.Error("HasRole on empty context should be false")
	}
}

func TestClientIP(t *testing.T) {
	testCases := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr only", "203.0.113.9:4455", nil, "203.0.113.9"},
		{"x-forwarded-for single", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "198.51.100.7"}, "198.51.100.7"},
		{"x-forwarded-for chain", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.2"}, "198.51.100.7"},
		{"x-real-ip", "10.0.0.1:1234", map[string]string{"X-Real-Ip": "192.0.2.44"}, "192.0.2.44"},
		{"forwarded-for beats real-ip", "10.0.0.1:1234", map[string]string{"X-Forwarded-For": "198.51.100.7", "X-Real-Ip": "192.0.2.44"}, "198.51.100.7"},
		{"no port", "203.0.113.9", nil, "203.0.113.9"},
		{"empty", "", nil, "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			if got := ClientIP(r); got != tc.want {
				t.Errorf("ClientIP = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestClientIPContext(t *testing.T) {
	var got string
	h := ClientIPContext(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ClientIPFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:4455"
	h.ServeHTTP(httptest.NewRecorder(), r)

	if got != "203.0.113.9" {
		t.Errorf("ClientIPFromContext = %q, want 203.0.113.9", got)
	}
}

func TestClientIPFromContext_Unset(t *testing.T) {
	if got := ClientIPFromContext(context.Background()); got != "unknown" {
		t.Errorf("ClientIPFromContext = %q, want unknown", got)
	}
}
