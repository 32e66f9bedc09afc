// Package handler binds MFA enrollment and transient OTP flows to HTTP.
package handler

import (
	"context"
	"net/http"

	"identity-plane/internal/mfa/service"
	"identity-plane/internal/server/middleware"
	"identity-plane/internal/server/respond"
)

const maxBodySize = 16 * 1024

// MfaService is the service surface this handler needs.
type MfaService interface {
	EnrollTOTP(ctx context.Context, userID string) (*service.EnrollResult, error)
	VerifyTOTP(ctx context.Context, userID, code string) ([]string, error)
	DisableTOTP(ctx context.Context, userID, proof string) error
	SendOTP(ctx context.Context, identity, purpose, channel string) (string, error)
	VerifyOTP(ctx context.Context, identity, purpose, code string) error
}

// MfaHandler serves /v1/mfa and /v1/otp.
type MfaHandler struct {
	mfa MfaService
}

func NewMfaHandler(mfa MfaService) *MfaHandler {
	return &MfaHandler{mfa: mfa}
}

type enrollResponse struct {
	Secret          string `json:"secret"`
	ProvisioningURL string `json:"provisioning_url"`
}

// EnrollTOTP handles POST /v1/mfa/totp/enroll.
func (h *MfaHandler) EnrollTOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	res, err := h.mfa.EnrollTOTP(r.Context(), userID)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.NoStore(w)
	respond.JSON(w, http.StatusOK, enrollResponse{
		Secret:          res.Secret,
		ProvisioningURL: res.ProvisioningURL,
	})
}

type verifyTOTPRequest struct {
	Code string `json:"code"`
}

type verifyTOTPResponse struct {
	BackupCodes []string `json:"backup_codes"`
}

// VerifyTOTP handles POST /v1/mfa/totp/verify. A successful verification
// activates MFA and returns a fresh set of backup codes; these are shown
// exactly once.
func (h *MfaHandler) VerifyTOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	var req verifyTOTPRequest
	if !respond.Decode(w, r, &req, maxBodySize) {
		return
	}
	codes, err := h.mfa.VerifyTOTP(r.Context(), userID, req.Code)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.NoStore(w)
	respond.JSON(w, http.StatusOK, verifyTOTPResponse{BackupCodes: codes})
}

type disableTOTPRequest struct {
	Proof string `json:"proof"`
}

// DisableTOTP handles POST /v1/mfa/totp/disable. The proof is a current TOTP
// code or an unused backup code.
func (h *MfaHandler) DisableTOTP(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respond.Unauthenticated(w)
		return
	}
	var req disableTOTPRequest
	if !respond.Decode(w, r, &req, maxBodySize) {
		return
	}
	if err := h.mfa.DisableTOTP(r.Context(), userID, req.Proof); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusNoContent, nil)
}

type sendOTPRequest struct {
	Identity string `json:"identity"`
	Purpose  string `json:"purpose"`
	Channel  string `json:"channel"`
}

type sendOTPResponse struct {
	Sent bool   `json:"sent"`
	Code string `json:"code,omitempty"` // populated only outside production
}

// SendOTP handles POST /v1/otp/send.
func (h *MfaHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req sendOTPRequest
	if !respond.Decode(w, r, &req, maxBodySize) {
		return
	}
	code, err := h.mfa.SendOTP(r.Context(), req.Identity, req.Purpose, req.Channel)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.NoStore(w)
	respond.JSON(w, http.StatusOK, sendOTPResponse{Sent: true, Code: code})
}

type verifyOTPRequest struct {
	Identity string `json:"identity"`
	Purpose  string `json:"purpose"`
	Code     string `json:"code"`
}

type verifyOTPResponse struct {
	Verified bool `json:"verified"`
}

// VerifyOTP handles POST /v1/otp/verify.
func (h *MfaHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if !respond.Decode(w, r, &req, maxBodySize) {
		return
	}
	if err := h.mfa.VerifyOTP(r.Context(), req.Identity, req.Purpose, req.Code); err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, verifyOTPResponse{Verified: true})
}
