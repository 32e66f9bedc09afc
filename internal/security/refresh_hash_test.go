package security

import (
	"strings"
	"testing"
)

func TestGenerateOpaqueToken(t *testing.T) {
	a, err := GenerateOpaqueToken(32)
	if err != nil {
		t.Fatalf("GenerateOpaqueToken: %v", err)
	}
	b, err := GenerateOpaqueToken(32)
	if err != nil {
		t.Fatalf("GenerateOpaqueToken: %v", err)
	}
	if a == b {
		t.Error("two tokens should differ")
	}
	// 32 bytes -> 43 base64url chars, no padding.
	if len(a) != 43 {
		t.Errorf("token length = %d, want 43", len(a))
	}
	if strings.ContainsAny(a, "+/=") {
		t.Errorf("token %q contains non-url-safe characters", a)
	}
}

func TestHashRefreshSecret_SaltMatters(t *testing.T) {
	h1 := HashRefreshSecret("salt-a", "secret")
	h2 := HashRefreshSecret("salt-b", "secret")
	if h1 == h2 {
		t.Error("different salts should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 (SHA-256 hex)", len(h1))
	}
}

func TestRefreshHashEqual(t *testing.T) {
	salt, err := NewRefreshSalt()
	if err != nil {
		t.Fatalf("NewRefreshSalt: %v", err)
	}
	stored := HashRefreshSecret(salt, "the-secret")

	if !RefreshHashEqual(salt, "the-secret", stored) {
		t.Error("RefreshHashEqual should match correct secret")
	}
	if RefreshHashEqual(salt, "wrong-secret", stored) {
		t.Error("RefreshHashEqual should reject wrong secret")
	}
	if RefreshHashEqual("other-salt", "the-secret", stored) {
		t.Error("RefreshHashEqual should reject wrong salt")
	}
	if RefreshHashEqual(salt, "the-secret", "a"+stored) {
		t.Error("RefreshHashEqual should reject hash of different length")
	}
}

func TestEncodeParseRefreshToken(t *testing.T) {
	token := EncodeRefreshToken("sess-1", "secret.with.dots")
	sid, secret, ok := ParseRefreshToken(token)
	if !ok {
		t.Fatal("ParseRefreshToken should accept encoded token")
	}
	if sid != "sess-1" {
		t.Errorf("sessionID = %q, want sess-1", sid)
	}
	// Only the first dot separates; the secret may contain dots.
	if secret != "secret.with.dots" {
		t.Errorf("secret = %q, want secret.with.dots", secret)
	}
}

func TestParseRefreshToken_Malformed(t *testing.T) {
	for _, bad := range []string{"", "nodot", ".leading", "trailing.", "."} {
		if _, _, ok := ParseRefreshToken(bad); ok {
			t.Errorf("ParseRefreshToken(%q) should fail", bad)
		}
	}
}
