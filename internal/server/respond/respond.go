// Package respond writes JSON responses and owns the only mapping from
// service sentinel errors to the wire error taxonomy.
package respond

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apikeyservice "identity-plane/internal/apikey/service"
	identityservice "identity-plane/internal/identity/service"
	"identity-plane/internal/mfa"
	mfaservice "identity-plane/internal/mfa/service"
	"identity-plane/internal/oauth"
	"identity-plane/internal/ratelimit"
)

// Wire error codes. Every handler failure is one of these; the generic
// messages below keep credential and enumeration failures indistinguishable.
const (
	CodeUnauthenticated   = "unauthenticated"
	CodePermissionDenied  = "permission_denied"
	CodeResourceExhausted = "resource_exhausted"
	CodeAlreadyExists     = "already_exists"
	CodeInvalidArgument   = "invalid_argument"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal"
)

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Decode reads a JSON body of at most maxBytes into v, writing the 400
// itself on failure. Returns false when the caller should stop.
func Decode(w http.ResponseWriter, r *http.Request, v any, maxBytes int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		InvalidArgument(w, "invalid JSON body")
		return false
	}
	return true
}

// JSON writes v with the given status. Encoding failures are logged; headers
// are already gone by then.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("respond: encode: %v", err)
	}
}

// NoStore adds the cache-control headers required for responses carrying
// credentials (tokens, secrets, backup codes).
func NoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// Unauthenticated writes a 401 with the uniform credential-failure message.
func Unauthenticated(w http.ResponseWriter) {
	JSON(w, http.StatusUnauthorized, ErrorBody{Code: CodeUnauthenticated, Message: "authentication failed"})
}

// PermissionDenied writes a 403.
func PermissionDenied(w http.ResponseWriter) {
	JSON(w, http.StatusForbidden, ErrorBody{Code: CodePermissionDenied, Message: "permission denied"})
}

// InvalidArgument writes a 400 with the given message.
func InvalidArgument(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Code: CodeInvalidArgument, Message: message})
}

// Error maps err to the wire taxonomy and writes it. Unrecognized errors are
// logged and surfaced as a detail-free 500.
func Error(w http.ResponseWriter, err error) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		log.Printf("respond: internal error: %v", err)
	}
	JSON(w, status, body)
}

func classify(err error) (int, ErrorBody) {
	switch {
	case errors.Is(err, ratelimit.ErrLimited),
		errors.Is(err, mfa.ErrOTPAttemptsExceeded):
		return http.StatusTooManyRequests,
			ErrorBody{Code: CodeResourceExhausted, Message: "too many attempts, retry later"}

	// Credential-shaped failures share one message so callers cannot tell
	// unknown identity from wrong secret.
	case errors.Is(err, identityservice.ErrInvalidCredentials),
		errors.Is(err, identityservice.ErrInvalidChallenge),
		errors.Is(err, identityservice.ErrInvalidMfaCode),
		errors.Is(err, identityservice.ErrInvalidRefreshToken),
		errors.Is(err, identityservice.ErrRefreshTokenReuse),
		errors.Is(err, mfaservice.ErrInvalidCode),
		errors.Is(err, mfaservice.ErrInvalidProof),
		errors.Is(err, mfa.ErrOTPNotFound),
		errors.Is(err, mfa.ErrOTPMismatch),
		errors.Is(err, apikeyservice.ErrInvalidKey),
		errors.Is(err, oauth.ErrInvalidState),
		errors.Is(err, oauth.ErrExchangeFailed),
		errors.Is(err, oauth.ErrEmailUnavailable):
		return http.StatusUnauthorized,
			ErrorBody{Code: CodeUnauthenticated, Message: "authentication failed"}

	case errors.Is(err, identityservice.ErrTenantSuspended),
		errors.Is(err, oauth.ErrTenantSuspended),
		errors.Is(err, oauth.ErrWrongTenant),
		errors.Is(err, apikeyservice.ErrWrongTenant),
		errors.Is(err, apikeyservice.ErrScopeDenied):
		return http.StatusForbidden,
			ErrorBody{Code: CodePermissionDenied, Message: "permission denied"}

	case errors.Is(err, identityservice.ErrEmailAlreadyRegistered),
		errors.Is(err, mfaservice.ErrAlreadyEnrolled):
		return http.StatusConflict,
			ErrorBody{Code: CodeAlreadyExists, Message: err.Error()}

	case errors.Is(err, identityservice.ErrInvalidEmail),
		errors.Is(err, identityservice.ErrWeakPassword),
		errors.Is(err, identityservice.ErrTenantNotFound),
		errors.Is(err, oauth.ErrTenantNotFound),
		errors.Is(err, oauth.ErrUnknownProvider),
		errors.Is(err, mfaservice.ErrNotEnrolled),
		errors.Is(err, mfaservice.ErrUnknownChannel):
		return http.StatusBadRequest,
			ErrorBody{Code: CodeInvalidArgument, Message: err.Error()}

	case errors.Is(err, apikeyservice.ErrKeyNotFound),
		errors.Is(err, mfaservice.ErrUserNotFound):
		return http.StatusNotFound,
			ErrorBody{Code: CodeNotFound, Message: err.Error()}

	default:
		return http.StatusInternalServerError,
			ErrorBody{Code: CodeInternal, Message: "internal error"}
	}
}
