package migrate

import (
	"errors"
	"strings"
	"testing"
)

func TestRun_EmptyDSN(t *testing.T) {
	err := Run("", "up")
	if err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("error = %q, should mention DATABASE_URL", err.Error())
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	testCases := []struct {
		name      string
		direction string
	}{
		{"empty", ""},
		{"invalid", "invalid"},
		{"upcase", "UP"},
		{"mixed", "Up"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Run("postgres://localhost/test", tc.direction)
			if err == nil {
				t.Fatalf("Run with direction %q should return error", tc.direction)
			}
			if !strings.Contains(err.Error(), "direction") {
				t.Errorf("error = %q, should mention direction", err.Error())
			}
		})
	}
}

func TestSteps_Validation(t *testing.T) {
	if err := Steps("", 1); err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("Steps with empty DSN: err = %v, should mention DATABASE_URL", err)
	}
	if err := Steps("postgres://localhost/test", 0); err == nil || !strings.Contains(err.Error(), "non-zero") {
		t.Errorf("Steps with n=0: err = %v, should reject zero steps", err)
	}
}

func TestVersion_EmptyDSN(t *testing.T) {
	_, _, err := Version("")
	if err == nil || !strings.Contains(err.Error(), "DATABASE_URL") {
		t.Errorf("Version with empty DSN: err = %v, should mention DATABASE_URL", err)
	}
}

func TestErrNoChange(t *testing.T) {
	if ErrNoChange == nil {
		t.Fatal("ErrNoChange should not be nil")
	}
	if !errors.Is(ErrNoChange, ErrNoChange) {
		t.Error("ErrNoChange should be errors.Is compatible")
	}
}
