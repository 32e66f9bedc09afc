package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apikeyhandler "identity-plane/internal/apikey/handler"
	apikeyrepo "identity-plane/internal/apikey/repository"
	apikeyservice "identity-plane/internal/apikey/service"
	"identity-plane/internal/audit"
	audithandler "identity-plane/internal/audit/handler"
	auditrepo "identity-plane/internal/audit/repository"
	"identity-plane/internal/cache"
	"identity-plane/internal/config"
	"identity-plane/internal/db"
	"identity-plane/internal/devotp"
	devotphandler "identity-plane/internal/devotp/handler"
	healthhandler "identity-plane/internal/health/handler"
	identityhandler "identity-plane/internal/identity/handler"
	identityrepo "identity-plane/internal/identity/repository"
	identityservice "identity-plane/internal/identity/service"
	"identity-plane/internal/mfa"
	mfahandler "identity-plane/internal/mfa/handler"
	mfarepo "identity-plane/internal/mfa/repository"
	mfaservice "identity-plane/internal/mfa/service"
	"identity-plane/internal/mfa/sms"
	"identity-plane/internal/oauth"
	oauthhandler "identity-plane/internal/oauth/handler"
	"identity-plane/internal/ratelimit"
	"identity-plane/internal/security"
	"identity-plane/internal/server"
	"identity-plane/internal/server/middleware"
	sessionhandler "identity-plane/internal/session/handler"
	sessionrepo "identity-plane/internal/session/repository"
	"identity-plane/internal/telemetry"
	telemetryotel "identity-plane/internal/telemetry/otel"
	tenantrepo "identity-plane/internal/tenant/repository"
	userrepo "identity-plane/internal/user/repository"
)

const serviceName = "identity-plane"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	providers, err := telemetryotel.NewProviders(ctx, cfg.OTLPEndpoint, serviceName, false)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetry.ShutdownDrainDuration)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	pool, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	rdb, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	signer, verifier, err := security.ParseKeyPair(cfg.TokenPrivateKey, cfg.TokenPublicKey)
	if err != nil {
		log.Fatalf("token keys: %v", err)
	}
	tokens := security.NewTokenProvider(signer, verifier, cfg.TokenIssuer, cfg.TokenAudience, cfg.AccessTTL())
	hasher := security.NewHasher(cfg.Argon2MemoryKiB, cfg.Argon2Iterations, cfg.Argon2Parallelism)

	users := userrepo.NewPostgresRepository(pool)
	identities := identityrepo.NewPostgresRepository(pool)
	sessions := sessionrepo.NewPostgresRepository(pool)
	tenants := tenantrepo.NewPostgresRepository(pool)
	mfaSecrets := mfarepo.NewPostgresRepository(pool)
	apiKeys := apikeyrepo.NewPostgresRepository(pool)
	auditEvents := auditrepo.NewPostgresRepository(pool)

	limiter := ratelimit.New(rdb, map[ratelimit.Action]ratelimit.Limit{
		ratelimit.ActionLogin:     {Max: cfg.LoginMaxAttempts, Window: cfg.LoginWindowTTL()},
		ratelimit.ActionRefresh:   {Max: cfg.RefreshMaxAttempts, Window: cfg.RefreshWindowTTL()},
		ratelimit.ActionOTPSend:   {Max: cfg.OTPSendMax, Window: cfg.OTPSendWindowTTL()},
		ratelimit.ActionMfaVerify: {Max: cfg.MfaMaxAttempts, Window: cfg.MfaWindowTTL()},
	})
	nonces := cache.NewNonceStore(rdb)
	otps := mfa.NewOTPStore(rdb)
	auditor := audit.NewLogger(auditEvents, middleware.ClientIPFromContext)

	var devCodes devotp.Store
	if cfg.OTPReturnToClient {
		devCodes = devotp.NewMemoryStore()
	}
	var sender mfa.Sender = mfa.NewLogSender()
	if cfg.SMSLocalAPIKey != "" {
		sender = mfa.NewRouterSender(map[string]mfa.Sender{
			mfa.ChannelSMS: sms.NewSMSLocalClient(cfg.SMSLocalAPIKey, cfg.SMSLocalBaseURL, cfg.SMSLocalSender),
		}, mfa.NewLogSender())
	}

	mfaSvc := mfaservice.NewMfaService(users, identities, mfaSecrets, otps, sender, limiter, hasher,
		cfg.TokenIssuer, cfg.OTPLifetime(), cfg.OTPMaxAttempts, cfg.OTPReturnToClient, devCodes)
	authSvc := identityservice.NewAuthService(users, identities, sessions, tenants, mfaSvc,
		hasher, tokens, limiter, nonces, auditor,
		cfg.RefreshTTL(), cfg.MfaChallengeLifetime(), cfg.RevokeAllOnReuse)
	keySvc := apikeyservice.NewApiKeyService(apiKeys)

	var oauthProviders []oauth.Provider
	if cfg.OAuthGithubClientID != "" {
		oauthProviders = append(oauthProviders,
			oauth.NewGithub(cfg.OAuthGithubClientID, cfg.OAuthGithubClientSecret, cfg.OAuthGithubRedirectURL))
	}
	if cfg.OAuthGoogleClientID != "" {
		oauthProviders = append(oauthProviders,
			oauth.NewGoogle(cfg.OAuthGoogleClientID, cfg.OAuthGoogleClientSecret, cfg.OAuthGoogleRedirectURL))
	}
	broker := oauth.NewBroker(oauthProviders, users, identities, tenants, authSvc, tokens, nonces, cfg.OAuthStateLifetime())

	deps := server.Deps{
		Tokens:  tokens,
		Auth:    identityhandler.NewAuthHandler(authSvc),
		Session: sessionhandler.NewSessionHandler(authSvc),
		Mfa:     mfahandler.NewMfaHandler(mfaSvc),
		ApiKeys: apikeyhandler.NewApiKeyHandler(keySvc),
		OAuth:   oauthhandler.NewOAuthHandler(broker),
		Audit:   audithandler.NewAuditHandler(auditEvents),
		Health: healthhandler.NewHealthHandler(map[string]healthhandler.Pinger{
			"postgres": healthhandler.PingFunc(pool.Ping),
			"redis": healthhandler.PingFunc(func(ctx context.Context) error {
				return rdb.Ping(ctx).Err()
			}),
		}),
		AuditRepo: auditEvents,
		Tracer:    providers.TracerProvider.Tracer(serviceName),
		Meter:     providers.MeterProvider.Meter(serviceName),
		Emitter:   telemetryotel.NewEventEmitter(providers.LoggerProvider),
	}
	if cfg.OTPReturnToClient && cfg.Env != "production" {
		deps.DevOtp = devotphandler.NewDevOtpHandler(devCodes)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("HTTP server stopped")
}
