// Package handler serves the dev-only OTP lookup endpoint.
package handler

import (
	"net/http"

	"identity-plane/internal/devotp"
	"identity-plane/internal/server/respond"
)

// DevOtpHandler serves GET /dev/otp. It is mounted only outside production.
type DevOtpHandler struct {
	store devotp.Store
}

func NewDevOtpHandler(store devotp.Store) *DevOtpHandler {
	return &DevOtpHandler{store: store}
}

type devOtpResponse struct {
	Code string `json:"code"`
}

// Get returns the most recent code sent to identity for purpose.
func (h *DevOtpHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	identity, purpose := q.Get("identity"), q.Get("purpose")
	if identity == "" || purpose == "" {
		respond.InvalidArgument(w, "identity and purpose are required")
		return
	}
	code, ok := h.store.Get(r.Context(), purpose+":"+identity)
	if !ok {
		respond.JSON(w, http.StatusNotFound, respond.ErrorBody{
			Code:    respond.CodeNotFound,
			Message: "no code on record",
		})
		return
	}
	respond.JSON(w, http.StatusOK, devOtpResponse{Code: code})
}
