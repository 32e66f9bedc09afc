// Package audit records security-relevant actions to an append-only store.
package audit

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"identity-plane/internal/audit/domain"
	auditrepo "identity-plane/internal/audit/repository"
)

// SentinelTenantID marks events with no tenant context, such as a refresh
// replay against an already revoked session.
const SentinelTenantID = "_system"

// IPExtractor returns the client IP recorded for the call (stamped into
// context by the transport).
type IPExtractor func(context.Context) string

// Logger writes single audit events with explicit action/resource. Used by
// the auth and MFA services for signals only they can see; request-level
// auditing happens in middleware. Best-effort: failures are logged, never
// returned.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
}

// NewLogger returns a Logger that persists to repo. ipExtractor may be nil;
// the IP is then recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor}
}

// LogEvent writes one event with result alert. metadata, when non-empty, is
// stored as {"detail": metadata}.
func (l *Logger) LogEvent(ctx context.Context, tenantID, actorID, action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if tenantID == "" {
		tenantID = SentinelTenantID
	}
	var meta []byte
	if metadata != "" {
		meta, _ = json.Marshal(map[string]string{"detail": metadata})
	}
	e := &domain.Event{
		TenantID:  tenantID,
		ActorID:   actorID,
		Action:    action,
		Resource:  resource,
		Result:    domain.ResultAlert,
		IP:        ip,
		Metadata:  meta,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, e); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
}
