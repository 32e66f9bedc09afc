package domain

import (
	"errors"
	"strings"
	"time"
)

// User is the core user entity. A user belongs to exactly one tenant; email is
// unique across the platform (case-folded).
type User struct {
	ID        string
	TenantID  string
	Email     string
	Name      string
	Roles     []string
	Status    UserStatus
	MfaState  MfaState
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// MfaState tracks the user's TOTP lifecycle. Transitions only move forward
// through EnrollTOTP/VerifyTOTP and back to none through DisableTOTP.
type MfaState string

const (
	MfaStateNone     MfaState = "none"
	MfaStatePending  MfaState = "pending"
	MfaStateEnrolled MfaState = "enrolled"
)

// NormalizeEmail lowercases and trims an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("email is malformed")
	}
	if u.TenantID == "" {
		return errors.New("tenant id is required")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	if u.MfaState == "" {
		u.MfaState = MfaStateNone
	}
	return nil
}

// Active reports whether the user may authenticate.
func (u *User) Active() bool {
	return u != nil && u.Status == UserStatusActive
}
