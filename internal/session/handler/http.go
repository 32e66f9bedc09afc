// Package handler exposes the caller's sessions over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"identity-plane/internal/server/middleware"
	"identity-plane/internal/server/respond"
	"identity-plane/internal/session/domain"
)

// SessionLister is the slice of the auth service this handler needs.
type SessionLister interface {
	ListSessions(ctx context.Context, userID string) ([]*domain.Session, error)
}

// SessionHandler serves GET /v1/sessions.
type SessionHandler struct {
	sessions SessionLister
}

func NewSessionHandler(sessions SessionLister) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

type sessionView struct {
	ID         string     `json:"id"`
	IPAddress  string     `json:"ip_address,omitempty"`
	UserAgent  string     `json:"user_agent,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Revoked    bool       `json:"revoked"`
	Current    bool       `json:"current"`
}

type listSessionsResponse struct {
	Sessions []sessionView `json:"sessions"`
}

// List handles GET /v1/sessions. Revoked and expired sessions are omitted;
// the session behind the presented access token is flagged as current.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	current, _ := middleware.GetSessionID(r.Context())

	sessions, err := h.sessions.ListSessions(r.Context(), userID)
	if err != nil {
		respond.Error(w, err)
		return
	}

	now := time.Now()
	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		if !s.Usable(now) {
			continue
		}
		views = append(views, sessionView{
			ID:         s.ID,
			IPAddress:  s.IPAddress,
			UserAgent:  s.UserAgent,
			CreatedAt:  s.CreatedAt,
			LastSeenAt: s.LastSeenAt,
			ExpiresAt:  s.RefreshExpiresAt,
			Revoked:    s.RevokedAt != nil,
			Current:    s.ID == current,
		})
	}
	respond.JSON(w, http.StatusOK, listSessionsResponse{Sessions: views})
}
