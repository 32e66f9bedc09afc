package domain

import "time"

// Session anchors one refresh-token lineage. The raw refresh secret is never
// stored; only a salted hash of the current generation is, and rotation
// replaces salt and hash together.
type Session struct {
	ID               string
	UserID           string
	TenantID         string
	RefreshSalt      string
	RefreshHash      string
	RefreshExpiresAt time.Time
	IPAddress        string
	UserAgent        string
	LastSeenAt       *time.Time
	RevokedAt        *time.Time // nil when not revoked
	CreatedAt        time.Time
}

// Usable reports whether the session can still be refreshed: not revoked and
// not past its refresh expiry. Callers treat unusable sessions as not found.
func (s *Session) Usable(now time.Time) bool {
	if s == nil || s.RevokedAt != nil {
		return false
	}
	return now.Before(s.RefreshExpiresAt)
}
