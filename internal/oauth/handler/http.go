// Package handler exposes the OAuth broker flow over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	identityhandler "identity-plane/internal/identity/handler"
	identityservice "identity-plane/internal/identity/service"
	"identity-plane/internal/server/middleware"
	"identity-plane/internal/server/respond"
)

const maxBodySize = 16 * 1024

// Broker is the surface of the OAuth broker this handler needs.
type Broker interface {
	Initiate(ctx context.Context, providerName, tenantID string) (string, error)
	HandleCallback(ctx context.Context, providerName, code, state, ip, userAgent string) (*identityservice.AuthResult, error)
}

// OAuthHandler serves /v1/oauth/{provider}.
type OAuthHandler struct {
	broker Broker
}

func NewOAuthHandler(broker Broker) *OAuthHandler {
	return &OAuthHandler{broker: broker}
}

type initiateRequest struct {
	TenantID string `json:"tenant_id"`
}

type initiateResponse struct {
	AuthorizationURL string `json:"authorization_url"`
}

// Initiate handles POST /v1/oauth/{provider}/initiate. The returned URL
// carries a signed single-use state token pinning the tenant.
func (h *OAuthHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	var req initiateRequest
	if !respond.Decode(w, r, &req, maxBodySize) {
		return
	}
	if req.TenantID == "" {
		respond.InvalidArgument(w, "tenant_id is required")
		return
	}
	url, err := h.broker.Initiate(r.Context(), provider, req.TenantID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, initiateResponse{AuthorizationURL: url})
}

// Callback handles GET /v1/oauth/{provider}/callback. On success it answers
// with the same token envelope as a credential login.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	q := r.URL.Query()
	code, state := q.Get("code"), q.Get("state")
	if code == "" || state == "" {
		respond.InvalidArgument(w, "code and state are required")
		return
	}
	res, err := h.broker.HandleCallback(r.Context(), provider, code, state,
		middleware.ClientIPFromContext(r.Context()), r.UserAgent())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.NoStore(w)
	respond.JSON(w, http.StatusOK, identityhandler.TokenResponse(res))
}
