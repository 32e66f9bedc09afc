// Package server assembles the HTTP router: middleware chain, route table,
// and the split between public and token-guarded endpoints.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apikeyhandler "identity-plane/internal/apikey/handler"
	audithandler "identity-plane/internal/audit/handler"
	auditrepo "identity-plane/internal/audit/repository"
	devotphandler "identity-plane/internal/devotp/handler"
	healthhandler "identity-plane/internal/health/handler"
	identityhandler "identity-plane/internal/identity/handler"
	mfahandler "identity-plane/internal/mfa/handler"
	oauthhandler "identity-plane/internal/oauth/handler"
	"identity-plane/internal/security"
	"identity-plane/internal/server/middleware"
	sessionhandler "identity-plane/internal/session/handler"
	"identity-plane/internal/telemetry"
)

// Deps carries everything the router mounts. All fields are required except
// Tracer, Meter and Emitter (nil disables tracing / metrics / event emission)
// and DevOtp (nil leaves /dev/otp unmounted).
type Deps struct {
	Tokens  *security.TokenProvider
	Auth    *identityhandler.AuthHandler
	Session *sessionhandler.SessionHandler
	Mfa     *mfahandler.MfaHandler
	ApiKeys *apikeyhandler.ApiKeyHandler
	OAuth   *oauthhandler.OAuthHandler
	Audit   *audithandler.AuditHandler
	Health  *healthhandler.HealthHandler
	DevOtp  *devotphandler.DevOtpHandler

	AuditRepo auditrepo.Repository
	Tracer    trace.Tracer
	Meter     metric.Meter
	Emitter   telemetry.EventEmitter
}

// Endpoints reachable without an access token. Everything else requires a
// valid Bearer token.
var publicExact = []string{
	"/healthz",
	"/readyz",
	"/v1/auth/register",
	"/v1/auth/login",
	"/v1/auth/mfa/challenge",
	"/v1/auth/refresh",
	"/v1/auth/logout",
	"/v1/auth/validate",
	"/v1/otp/send",
	"/v1/otp/verify",
	"/v1/apikeys/validate",
	"/dev/otp",
}

var publicPrefixes = []string{
	"/v1/oauth/",
}

// Routes neither audited nor worth the noise: probes and hot validation paths.
var auditSkip = map[string]bool{
	"/v1/auth/validate":    true,
	"/v1/apikeys/validate": true,
}

var telemetrySkip = map[string]bool{
	"/healthz": true,
	"/readyz":  true,
}

// NewRouter builds the chi router over deps.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.ClientIPContext)
	r.Use(middleware.Trace(deps.Tracer))
	r.Use(middleware.Telemetry(deps.Meter, deps.Emitter, telemetrySkip))
	r.Use(middleware.Auth(deps.Tokens, middleware.PublicPaths(publicExact, publicPrefixes)))
	r.Use(middleware.Audit(deps.AuditRepo, auditSkip))

	r.Get("/healthz", deps.Health.Live)
	r.Get("/readyz", deps.Health.Ready)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", deps.Auth.Register)
			r.Post("/login", deps.Auth.Login)
			r.Post("/mfa/challenge", deps.Auth.CompleteMfaChallenge)
			r.Post("/refresh", deps.Auth.Refresh)
			r.Post("/logout", deps.Auth.Logout)
			r.Post("/logout_all", deps.Auth.LogoutAll)
			r.Post("/validate", deps.Auth.Validate)
			r.Post("/password", deps.Auth.ChangePassword)
		})

		r.Get("/sessions", deps.Session.List)

		r.Route("/mfa/totp", func(r chi.Router) {
			r.Post("/enroll", deps.Mfa.EnrollTOTP)
			r.Post("/verify", deps.Mfa.VerifyTOTP)
			r.Post("/disable", deps.Mfa.DisableTOTP)
		})
		r.Route("/otp", func(r chi.Router) {
			r.Post("/send", deps.Mfa.SendOTP)
			r.Post("/verify", deps.Mfa.VerifyOTP)
		})

		r.Route("/apikeys", func(r chi.Router) {
			r.Post("/", deps.ApiKeys.Create)
			r.Get("/", deps.ApiKeys.List)
			r.Post("/{id}/revoke", deps.ApiKeys.Revoke)
			r.Post("/validate", deps.ApiKeys.Validate)
		})

		r.Route("/oauth/{provider}", func(r chi.Router) {
			r.Post("/initiate", deps.OAuth.Initiate)
			r.Get("/callback", deps.OAuth.Callback)
		})

		r.Get("/audit", deps.Audit.List)
	})

	if deps.DevOtp != nil {
		r.Get("/dev/otp", deps.DevOtp.Get)
	}

	return r
}
