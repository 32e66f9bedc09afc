package domain

import (
	"errors"
	"time"
)

// Tenant is an isolation boundary. Every user, session and API key belongs to
// exactly one tenant, and nothing crosses the boundary.
type Tenant struct {
	ID        string
	Name      string
	Status    TenantStatus
	CreatedAt time.Time
}

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// Validate validates the tenant for persistence. Returns an error describing the first validation failure.
func (t *Tenant) Validate() error {
	if t.Name == "" {
		return errors.New("name is required")
	}
	if t.Status == "" {
		t.Status = TenantStatusActive
	}
	return nil
}

// Active reports whether the tenant may authenticate. Suspended tenants fail
// every authentication path.
func (t *Tenant) Active() bool {
	return t != nil && t.Status == TenantStatusActive
}
