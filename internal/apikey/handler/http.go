// Package handler exposes API key management over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"identity-plane/internal/apikey/domain"
	"identity-plane/internal/apikey/service"
	"identity-plane/internal/server/middleware"
	"identity-plane/internal/server/respond"
)

const maxBodySize = 16 * 1024

// ApiKeyService is the service surface this handler needs.
type ApiKeyService interface {
	Create(ctx context.Context, tenantID, userID, name string, scopes []string, expiresAt *time.Time) (*service.CreateResult, error)
	Validate(ctx context.Context, rawSecret, requiredScope, tenantHint string) (*domain.ApiKey, error)
	Revoke(ctx context.Context, tenantID, id string) error
	List(ctx context.Context, tenantID string) ([]*domain.ApiKey, error)
}

// ApiKeyHandler serves /v1/apikeys.
type ApiKeyHandler struct {
	keys ApiKeyService
}

func NewApiKeyHandler(keys ApiKeyService) *ApiKeyHandler {
	return &ApiKeyHandler{keys: keys}
}

type createKeyRequest struct {
	Name      string     `json:"name"`
	Scopes    []string   `json:"scopes"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type keyView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Prefix     string     `json:"prefix"`
	Scopes     []string   `json:"scopes"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type createKeyResponse struct {
	Key    keyView `json:"key"`
	Secret string  `json:"secret"` // shown once, never retrievable again
}

func viewOf(k *domain.ApiKey) keyView {
	return keyView{
		ID:         k.ID,
		Name:       k.Name,
		Prefix:     k.Prefix,
		Scopes:     k.Scopes,
		ExpiresAt:  k.ExpiresAt,
		RevokedAt:  k.RevokedAt,
		LastUsedAt: k.LastUsedAt,
		CreatedAt:  k.CreatedAt,
	}
}

// Create handles POST /v1/apikeys. The response carries the raw secret; it is
// the only time the server ever returns it.
func (h *ApiKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	userID, _ := middleware.GetUserID(r.Context())

	var req createKeyRequest
	if !respond.Decode(w, r, &req, maxBodySize) {
		return
	}
	if req.Name == "" {
		respond.InvalidArgument(w, "name is required")
		return
	}
	if len(req.Scopes) == 0 {
		respond.InvalidArgument(w, "at least one scope is required")
		return
	}
	res, err := h.keys.Create(r.Context(), tenantID, userID, req.Name, req.Scopes, req.ExpiresAt)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.NoStore(w)
	respond.JSON(w, http.StatusCreated, createKeyResponse{Key: viewOf(res.Key), Secret: res.Secret})
}

type listKeysResponse struct {
	Keys []keyView `json:"keys"`
}

// List handles GET /v1/apikeys.
func (h *ApiKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	keys, err := h.keys.List(r.Context(), tenantID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	views := make([]keyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, viewOf(k))
	}
	respond.JSON(w, http.StatusOK, listKeysResponse{Keys: views})
}

// Revoke handles POST /v1/apikeys/{id}/revoke.
func (h *ApiKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := middleware.GetTenantID(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.keys.Revoke(r.Context(), tenantID, id); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}

type validateKeyRequest struct {
	Secret string `json:"secret"`
	Scope  string `json:"scope"`
}

type validateKeyResponse struct {
	Valid    bool     `json:"valid"`
	KeyID    string   `json:"key_id"`
	TenantID string   `json:"tenant_id"`
	Scopes   []string `json:"scopes"`
}

// Validate handles POST /v1/apikeys/validate. When the caller is itself
// authenticated, its tenant is enforced against the key's; anonymous callers
// only learn whether the secret works for the named scope.
func (h *ApiKeyHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateKeyRequest
	if !respond.Decode(w, r, &req, maxBodySize) {
		return
	}
	tenantHint, _ := middleware.GetTenantID(r.Context())
	key, err := h.keys.Validate(r.Context(), req.Secret, req.Scope, tenantHint)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, validateKeyResponse{
		Valid:    true,
		KeyID:    key.ID,
		TenantID: key.TenantID,
		Scopes:   key.Scopes,
	})
}
