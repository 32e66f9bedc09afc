package mfa

import (
	"strings"
	"testing"
	"time"
)

func newTestKey(t *testing.T) string {
	t.Helper()
	secret, url, err := NewTOTPKey("identity-plane", "user@example.test")
	if err != nil {
		t.Fatalf("NewTOTPKey: %v", err)
	}
	if secret == "" {
		t.Fatal("secret is empty")
	}
	if !strings.HasPrefix(url, "otpauth://totp/") {
		t.Errorf("provisioning URL = %q, want otpauth://totp/ prefix", url)
	}
	if !strings.Contains(url, "issuer=identity-plane") {
		t.Errorf("provisioning URL %q missing issuer", url)
	}
	return secret
}

func TestValidateTOTP_CurrentStep(t *testing.T) {
	secret := newTestKey(t)
	now := time.Now().UTC()

	code, err := TOTPCodeAt(secret, now)
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	if !ValidateTOTP(code, secret, now) {
		t.Error("current-step code rejected")
	}
}

func TestValidateTOTP_AdjacentStepsAccepted(t *testing.T) {
	secret := newTestKey(t)
	now := time.Now().UTC()

	prev, err := TOTPCodeAt(secret, now.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	next, err := TOTPCodeAt(secret, now.Add(30*time.Second))
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	if !ValidateTOTP(prev, secret, now) {
		t.Error("previous-step code rejected, want accepted within skew")
	}
	if !ValidateTOTP(next, secret, now) {
		t.Error("next-step code rejected, want accepted within skew")
	}
}

func TestValidateTOTP_TwoStepsRejected(t *testing.T) {
	secret := newTestKey(t)
	now := time.Now().UTC()

	// Codes repeat across steps only by coincidence; skip the rare case where
	// a distant step produces the same six digits as an accepted one.
	accepted := make(map[string]bool)
	for _, offset := range []time.Duration{-30 * time.Second, 0, 30 * time.Second} {
		code, err := TOTPCodeAt(secret, now.Add(offset))
		if err != nil {
			t.Fatalf("TOTPCodeAt: %v", err)
		}
		accepted[code] = true
	}
	for _, offset := range []time.Duration{-90 * time.Second, 90 * time.Second} {
		code, err := TOTPCodeAt(secret, now.Add(offset))
		if err != nil {
			t.Fatalf("TOTPCodeAt: %v", err)
		}
		if accepted[code] {
			continue
		}
		if ValidateTOTP(code, secret, now) {
			t.Errorf("code from %v away accepted, want rejected", offset)
		}
	}
}

func TestValidateTOTP_WrongCode(t *testing.T) {
	secret := newTestKey(t)
	now := time.Now().UTC()

	code, err := TOTPCodeAt(secret, now)
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if ValidateTOTP(wrong, secret, now) {
		t.Error("wrong code accepted")
	}
	if ValidateTOTP("", secret, now) {
		t.Error("empty code accepted")
	}
	if ValidateTOTP("12345", secret, now) {
		t.Error("five-digit code accepted")
	}
}

func TestNewTOTPKey_SecretsDiffer(t *testing.T) {
	a := newTestKey(t)
	b := newTestKey(t)
	if a == b {
		t.Error("two generated secrets are identical")
	}
}
