// Package handler binds the auth service to its HTTP surface.
package handler

import (
	"context"
	"net/http"
	"time"

	"identity-plane/internal/identity/service"
	"identity-plane/internal/security"
	"identity-plane/internal/server/middleware"
	"identity-plane/internal/server/respond"
	userdomain "identity-plane/internal/user/domain"
)

// maxBodySize bounds auth request bodies. Credentials are small.
const maxBodySize = 16 * 1024

// AuthService is the surface of the identity service the handler needs.
type AuthService interface {
	Register(ctx context.Context, tenantID, email, name, password string) (*userdomain.User, error)
	Login(ctx context.Context, email, password, ip, userAgent string) (*service.AuthResult, error)
	CompleteMfaChallenge(ctx context.Context, challengeToken, code, ip, userAgent string) (*service.AuthResult, error)
	Refresh(ctx context.Context, refreshToken, ip, userAgent string) (*service.AuthResult, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID string) error
	ValidateToken(accessToken string) (*security.AccessClaims, error)
	ChangePassword(ctx context.Context, userID, sessionID, oldPassword, newPassword string) error
}

// AuthHandler serves /v1/auth.
type AuthHandler struct {
	auth AuthService
}

// NewAuthHandler returns an AuthHandler over the given service.
func NewAuthHandler(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type registerRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type registerResponse struct {
	UserID   string `json:"user_id"`
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
}

// Register handles POST /v1/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decode(w, r, &req) {
		return
	}
	user, err := h.auth.Register(r.Context(), req.TenantID, req.Email, req.Name, req.Password)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, registerResponse{
		UserID:   user.ID,
		TenantID: user.TenantID,
		Email:    user.Email,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// tokenResponse is the session envelope shared by login, challenge
// completion, refresh and the OAuth callback.
type tokenResponse struct {
	MfaRequired    bool   `json:"mfa_required,omitempty"`
	ChallengeToken string `json:"challenge_token,omitempty"`

	AccessToken  string    `json:"access_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
	UserID       string    `json:"user_id,omitempty"`
	TenantID     string    `json:"tenant_id,omitempty"`
}

// TokenResponse converts an AuthResult to its wire form. Exported for the
// OAuth handler, which issues sessions through the same service.
func TokenResponse(res *service.AuthResult) any {
	if res.MfaRequired {
		return tokenResponse{
			MfaRequired:    true,
			ChallengeToken: res.ChallengeToken,
		}
	}
	return tokenResponse{
		AccessToken:  res.AccessToken,
		TokenType:    "Bearer",
		ExpiresAt:    res.ExpiresAt,
		RefreshToken: res.RefreshToken,
		SessionID:    res.SessionID,
		UserID:       res.UserID,
		TenantID:     res.TenantID,
	}
}

// Login handles POST /v1/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.Login(r.Context(), req.Email, req.Password, middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.NoStore(w)
	respond.JSON(w, http.StatusOK, TokenResponse(res))
}

type challengeRequest struct {
	ChallengeToken string `json:"challenge_token"`
	Code           string `json:"code"`
}

// CompleteMfaChallenge handles POST /v1/auth/mfa/challenge.
func (h *AuthHandler) CompleteMfaChallenge(w http.ResponseWriter, r *http.Request) {
	var req challengeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.ChallengeToken == "" || req.Code == "" {
		respond.InvalidArgument(w, "challenge_token and code are required")
		return
	}
	res, err := h.auth.CompleteMfaChallenge(r.Context(), req.ChallengeToken, req.Code, middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.NoStore(w)
	respond.JSON(w, http.StatusOK, TokenResponse(res))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh handles POST /v1/auth/refresh.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.auth.Refresh(r.Context(), req.RefreshToken, middleware.ClientIP(r), r.UserAgent())
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.NoStore(w)
	respond.JSON(w, http.StatusOK, TokenResponse(res))
}

// Logout handles POST /v1/auth/logout. Always 204 for well-formed input so
// clients can clear local state unconditionally.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.Logout(r.Context(), req.RefreshToken); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}

// LogoutAll handles POST /v1/auth/logout_all. Requires authentication.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	if err := h.auth.LogoutAll(r.Context(), userID); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}

type validateRequest struct {
	AccessToken string `json:"access_token"`
}

type validateResponse struct {
	UserID    string    `json:"user_id"`
	TenantID  string    `json:"tenant_id"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles,omitempty"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Validate handles POST /v1/auth/validate: a purely cryptographic check, no
// store lookup.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decode(w, r, &req) {
		return
	}
	claims, err := h.auth.ValidateToken(req.AccessToken)
	if err != nil {
		respond.Unauthenticated(w)
		return
	}
	respond.JSON(w, http.StatusOK, validateResponse{
		UserID:    claims.Subject,
		TenantID:  claims.TenantID,
		Email:     claims.Email,
		Roles:     claims.Roles,
		SessionID: claims.SessionID,
		ExpiresAt: claims.ExpiresAt.Time,
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword handles POST /v1/auth/password. The calling session
// survives; every other session of the user is revoked.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	sessionID, _ := middleware.GetSessionID(r.Context())
	var req changePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.auth.ChangePassword(r.Context(), userID, sessionID, req.OldPassword, req.NewPassword); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return respond.Decode(w, r, v, maxBodySize)
}
