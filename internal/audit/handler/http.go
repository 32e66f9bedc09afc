// Package handler exposes the tenant audit trail to admins.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"identity-plane/internal/audit/domain"
	"identity-plane/internal/audit/repository"
	"identity-plane/internal/server/middleware"
	"identity-plane/internal/server/respond"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// AuditHandler serves GET /v1/audit. Callers need the admin role; the query
// is always scoped to the caller's own tenant.
type AuditHandler struct {
	repo repository.Repository
}

func NewAuditHandler(repo repository.Repository) *AuditHandler {
	return &AuditHandler{repo: repo}
}

type eventView struct {
	ID        int64           `json:"id"`
	ActorID   string          `json:"actor_id,omitempty"`
	Action    string          `json:"action"`
	Resource  string          `json:"resource"`
	Result    string          `json:"result"`
	IP        string          `json:"ip,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type listEventsResponse struct {
	Events []eventView `json:"events"`
	Limit  int32       `json:"limit"`
	Offset int32       `json:"offset"`
}

// List handles GET /v1/audit?limit=&offset=.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	if !middleware.HasRole(r.Context(), "admin") {
		respond.PermissionDenied(w)
		return
	}

	limit, ok := queryInt(r, "limit", defaultLimit)
	if !ok || limit < 1 || limit > maxLimit {
		respond.InvalidArgument(w, "limit must be between 1 and 500")
		return
	}
	offset, ok := queryInt(r, "offset", 0)
	if !ok || offset < 0 {
		respond.InvalidArgument(w, "offset must be non-negative")
		return
	}

	events, err := h.repo.ListByTenant(r.Context(), tenantID, limit, offset)
	if err != nil {
		respond.Error(w, err)
		return
	}
	views := make([]eventView, 0, len(events))
	for _, e := range events {
		views = append(views, viewOf(e))
	}
	respond.JSON(w, http.StatusOK, listEventsResponse{Events: views, Limit: limit, Offset: offset})
}

func viewOf(e *domain.Event) eventView {
	return eventView{
		ID:        e.ID,
		ActorID:   e.ActorID,
		Action:    e.Action,
		Resource:  e.Resource,
		Result:    e.Result,
		IP:        e.IP,
		Metadata:  json.RawMessage(e.Metadata),
		CreatedAt: e.CreatedAt,
	}
}

func queryInt(r *http.Request, name string, def int32) (int32, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(n), true
}
