package audit

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"identity-plane/internal/audit/domain"
)

type memRepo struct {
	mu     sync.Mutex
	events []*domain.Event
	err    error
}

func (m *memRepo) Create(ctx context.Context, e *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

func (m *memRepo) ListByTenant(ctx context.Context, tenantID string, limit, offset int32) ([]*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events, nil
}

func TestLogger_LogEvent(t *testing.T) {
	repo := &memRepo{}
	l := NewLogger(repo, func(context.Context) string { return "203.0.113.9" })

	l.LogEvent(context.Background(), "tenant-1", "user-1", "refresh_reuse", "session", "session s-1 replayed")

	if len(repo.events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(repo.events))
	}
	e := repo.events[0]
	if e.TenantID != "tenant-1" || e.ActorID != "user-1" {
		t.Errorf("identity = (%q, %q), want (tenant-1, user-1)", e.TenantID, e.ActorID)
	}
	if e.Result != domain.ResultAlert {
		t.Errorf("result = %q, want %q", e.Result, domain.ResultAlert)
	}
	if e.IP != "203.0.113.9" {
		t.Errorf("ip = %q, want 203.0.113.9", e.IP)
	}
	var meta map[string]string
	if err := json.Unmarshal(e.Metadata, &meta); err != nil {
		t.Fatalf("metadata is not JSON: %v", err)
	}
	if meta["detail"] != "session s-1 replayed" {
		t.Errorf("detail = %q, want %q", meta["detail"], "session s-1 replayed")
	}
}

func TestLogger_EmptyTenantUsesSentinel(t *testing.T) {
	repo := &memRepo{}
	l := NewLogger(repo, nil)

	l.LogEvent(context.Background(), "", "", "refresh_reuse", "session", "")

	if len(repo.events) != 1 {
		t.Fatalf("recorded %d events, want 1", len(repo.events))
	}
	e := repo.events[0]
	if e.TenantID != SentinelTenantID {
		t.Errorf("tenant = %q, want %q", e.TenantID, SentinelTenantID)
	}
	if e.IP != "unknown" {
		t.Errorf("ip = %q, want unknown", e.IP)
	}
	if e.Metadata != nil {
		t.Errorf("metadata = %q, want nil", e.Metadata)
	}
}

func TestLogger_BestEffort(t *testing.T) {
	repo := &memRepo{err: errors.New("db down")}
	l := NewLogger(repo, nil)

	// Must not panic or propagate the repo failure.
	l.LogEvent(context.Background(), "tenant-1", "user-1", "mfa_disable", "mfa", "")
}

func TestLogger_NilSafe(t *testing.T) {
	var l *Logger
	l.LogEvent(context.Background(), "tenant-1", "user-1", "x", "y", "")

	NewLogger(nil, nil).LogEvent(context.Background(), "tenant-1", "user-1", "x", "y", "")
}
