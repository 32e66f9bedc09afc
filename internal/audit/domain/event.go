package domain

import "time"

// Event is one append-only audit record. Request-level events are written by
// the audit middleware; security signals (refresh reuse, MFA disable) come
// from the services directly.
type Event struct {
	ID        int64
	TenantID  string
	ActorID   string
	Action    string
	Resource  string
	Result    string
	IP        string
	Metadata  []byte // JSON, nil when there is nothing to add
	CreatedAt time.Time
}

// Result values. Request audits record ok or error from the response status;
// service-raised signals record alert.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultAlert = "alert"
)
