package domain

import (
	"testing"
	"time"
)

func TestScopeAllows(t *testing.T) {
	tests := []struct {
		name     string
		granted  []string
		required string
		want     bool
	}{
		{"exact match", []string{"files:read"}, "files:read", true},
		{"exact mismatch", []string{"files:read"}, "files:write", false},
		{"namespace wildcard", []string{"files:*"}, "files:read", true},
		{"namespace wildcard other ns", []string{"files:*"}, "users:read", false},
		{"namespace wildcard deep", []string{"files:*"}, "files:meta:read", true},
		{"global wildcard", []string{"*"}, "admin", true},
		{"plain grants do not cover admin", []string{"read", "write"}, "admin", false},
		{"empty required denied", []string{"*"}, "", false},
		{"no grants", nil, "files:read", false},
		{"bare colon-star is not global", []string{":*"}, "files:read", false},
		{"wildcard among others", []string{"users:read", "files:*"}, "files:write", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScopeAllows(tt.granted, tt.required); got != tt.want {
				t.Errorf("ScopeAllows(%v, %q) = %v, want %v", tt.granted, tt.required, got, tt.want)
			}
		})
	}
}

func TestApiKey_Usable(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	if !(&ApiKey{}).Usable(now) {
		t.Error("key with no expiry and no revocation should be usable")
	}
	if (&ApiKey{RevokedAt: &past}).Usable(now) {
		t.Error("revoked key should not be usable")
	}
	if (&ApiKey{ExpiresAt: &past}).Usable(now) {
		t.Error("expired key should not be usable")
	}
	if !(&ApiKey{ExpiresAt: &future}).Usable(now) {
		t.Error("key expiring in the future should be usable")
	}
	var nilKey *ApiKey
	if nilKey.Usable(now) {
		t.Error("nil key should not be usable")
	}
}
