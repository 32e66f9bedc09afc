// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :8080).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// Env is the application environment ("dev", "staging", "production").
	Env string `mapstructure:"APP_ENV"`
	// DatabaseURL is the Postgres DSN.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// RedisAddr is the Redis host:port used for rate counters, OTP records and OAuth nonces.
	RedisAddr string `mapstructure:"REDIS_ADDR"`
	// RedisPassword is the Redis AUTH password; empty for none.
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	// RedisDB is the Redis logical database index.
	RedisDB int `mapstructure:"REDIS_DB"`

	// TokenPrivateKey is the PEM-encoded private key (RSA or ECDSA) used to sign tokens.
	TokenPrivateKey string `mapstructure:"TOKEN_PRIVATE_KEY"`
	// TokenPublicKey is the PEM-encoded public key matching TokenPrivateKey.
	TokenPublicKey string `mapstructure:"TOKEN_PUBLIC_KEY"`
	// TokenIssuer is the iss claim on every token this service signs.
	TokenIssuer string `mapstructure:"TOKEN_ISSUER"`
	// TokenAudience is the aud claim on every token this service signs.
	TokenAudience string `mapstructure:"TOKEN_AUDIENCE"`
	// AccessTokenTTL is the access token lifetime (e.g. "15m").
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh token lifetime (e.g. "168h").
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`

	// Argon2MemoryKiB is the argon2id memory parameter in KiB (default 65536 = 64 MiB).
	Argon2MemoryKiB int `mapstructure:"ARGON2_MEMORY_KIB"`
	// Argon2Iterations is the argon2id time parameter (default 3).
	Argon2Iterations int `mapstructure:"ARGON2_ITERATIONS"`
	// Argon2Parallelism is the argon2id lanes parameter (default 1).
	Argon2Parallelism int `mapstructure:"ARGON2_PARALLELISM"`

	// LoginMaxAttempts is the failed-login budget per identity within LoginWindow.
	LoginMaxAttempts int `mapstructure:"LOGIN_MAX_ATTEMPTS"`
	// LoginWindow is the fixed window for login attempts (e.g. "60s").
	LoginWindow string `mapstructure:"LOGIN_WINDOW"`
	// RefreshMaxAttempts is the refresh budget per session within RefreshWindow.
	RefreshMaxAttempts int `mapstructure:"REFRESH_MAX_ATTEMPTS"`
	// RefreshWindow is the fixed window for refresh attempts.
	RefreshWindow string `mapstructure:"REFRESH_WINDOW"`
	// OTPSendMax is the send budget per (identity, purpose) within OTPSendWindow.
	OTPSendMax int `mapstructure:"OTP_SEND_MAX"`
	// OTPSendWindow is the fixed window for OTP sends.
	OTPSendWindow string `mapstructure:"OTP_SEND_WINDOW"`
	// MfaMaxAttempts is the MFA verification budget per user within MfaWindow.
	MfaMaxAttempts int `mapstructure:"MFA_MAX_ATTEMPTS"`
	// MfaWindow is the fixed window for MFA verification attempts.
	MfaWindow string `mapstructure:"MFA_WINDOW"`

	// OTPTTL is how long a transient OTP code stays valid (e.g. "5m").
	OTPTTL string `mapstructure:"OTP_TTL"`
	// OTPMaxAttempts is how many wrong codes are tolerated before the OTP is voided.
	OTPMaxAttempts int `mapstructure:"OTP_MAX_ATTEMPTS"`
	// OTPReturnToClient when true enables dev OTP mode: codes are returned in responses instead
	// of being delivered. Must not be true when Env is production (startup error).
	OTPReturnToClient bool `mapstructure:"OTP_RETURN_TO_CLIENT"`
	// MfaChallengeTTL is the lifetime of the login MFA challenge token (e.g. "5m").
	MfaChallengeTTL string `mapstructure:"MFA_CHALLENGE_TTL"`
	// RevokeAllOnReuse revokes every session of a user when refresh-token reuse is detected.
	RevokeAllOnReuse bool `mapstructure:"REVOKE_ALL_ON_REUSE"`

	// OAuthStateTTL is the lifetime of the signed OAuth state token (e.g. "10m").
	OAuthStateTTL string `mapstructure:"OAUTH_STATE_TTL"`
	// OAuthGithubClientID and friends configure the GitHub authorization-code client.
	OAuthGithubClientID     string `mapstructure:"OAUTH_GITHUB_CLIENT_ID"`
	OAuthGithubClientSecret string `mapstructure:"OAUTH_GITHUB_CLIENT_SECRET"`
	OAuthGithubRedirectURL  string `mapstructure:"OAUTH_GITHUB_REDIRECT_URL"`
	// OAuthGoogleClientID and friends configure the Google authorization-code client.
	OAuthGoogleClientID     string `mapstructure:"OAUTH_GOOGLE_CLIENT_ID"`
	OAuthGoogleClientSecret string `mapstructure:"OAUTH_GOOGLE_CLIENT_SECRET"`
	OAuthGoogleRedirectURL  string `mapstructure:"OAUTH_GOOGLE_REDIRECT_URL"`

	// SMSLocalAPIKey enables SMS OTP delivery via the SMS Local API when set.
	// Empty routes SMS codes to the log sender (dev).
	SMSLocalAPIKey string `mapstructure:"SMSLOCAL_API_KEY"`
	// SMSLocalBaseURL overrides the SMS Local API base URL; empty uses the default.
	SMSLocalBaseURL string `mapstructure:"SMSLOCAL_BASE_URL"`
	// SMSLocalSender is the sender id stamped on outgoing SMS.
	SMSLocalSender string `mapstructure:"SMSLOCAL_SENDER"`

	// OTLPEndpoint is the OTLP gRPC collector endpoint; empty disables telemetry export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TOKEN_ISSUER", "identity-plane")
	v.SetDefault("TOKEN_AUDIENCE", "identity-plane")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h") // 7d
	v.SetDefault("ARGON2_MEMORY_KIB", 65536)
	v.SetDefault("ARGON2_ITERATIONS", 3)
	v.SetDefault("ARGON2_PARALLELISM", 1)
	v.SetDefault("LOGIN_MAX_ATTEMPTS", 6)
	v.SetDefault("LOGIN_WINDOW", "60s")
	v.SetDefault("REFRESH_MAX_ATTEMPTS", 30)
	v.SetDefault("REFRESH_WINDOW", "60s")
	v.SetDefault("OTP_SEND_MAX", 3)
	v.SetDefault("OTP_SEND_WINDOW", "10m")
	v.SetDefault("MFA_MAX_ATTEMPTS", 5)
	v.SetDefault("MFA_WINDOW", "5m")
	v.SetDefault("OTP_TTL", "5m")
	v.SetDefault("OTP_MAX_ATTEMPTS", 5)
	v.SetDefault("OTP_RETURN_TO_CLIENT", false)
	v.SetDefault("MFA_CHALLENGE_TTL", "5m")
	v.SetDefault("REVOKE_ALL_ON_REUSE", true)
	v.SetDefault("OAUTH_STATE_TTL", "10m")
	v.SetDefault("SMSLOCAL_API_KEY", "")
	v.SetDefault("SMSLOCAL_BASE_URL", "")
	v.SetDefault("SMSLOCAL_SENDER", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	if cfg.OTPReturnToClient && cfg.Env == "production" {
		return nil, errors.New("config: OTP_RETURN_TO_CLIENT must not be true when APP_ENV=production")
	}

	if cfg.Argon2MemoryKiB < 8*1024 {
		return nil, fmt.Errorf("config: ARGON2_MEMORY_KIB must be at least %d, got %d", 8*1024, cfg.Argon2MemoryKiB)
	}
	if cfg.Argon2Iterations < 1 {
		return nil, errors.New("config: ARGON2_ITERATIONS must be at least 1")
	}
	if cfg.Argon2Parallelism < 1 {
		return nil, errors.New("config: ARGON2_PARALLELISM must be at least 1")
	}
	if cfg.LoginMaxAttempts < 1 {
		return nil, errors.New("config: LOGIN_MAX_ATTEMPTS must be at least 1")
	}

	return &cfg, nil
}

// duration parses s, falling back to def when unset or invalid.
func duration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// AccessTTL parses AccessTokenTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration { return duration(c.AccessTokenTTL, 15*time.Minute) }

// RefreshTTL parses RefreshTokenTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration { return duration(c.RefreshTokenTTL, 168*time.Hour) }

// LoginWindowTTL parses LoginWindow. Returns 60s if unset or invalid.
func (c *Config) LoginWindowTTL() time.Duration { return duration(c.LoginWindow, 60*time.Second) }

// RefreshWindowTTL parses RefreshWindow. Returns 60s if unset or invalid.
func (c *Config) RefreshWindowTTL() time.Duration { return duration(c.RefreshWindow, 60*time.Second) }

// OTPSendWindowTTL parses OTPSendWindow. Returns 10m if unset or invalid.
func (c *Config) OTPSendWindowTTL() time.Duration { return duration(c.OTPSendWindow, 10*time.Minute) }

// MfaWindowTTL parses MfaWindow. Returns 5m if unset or invalid.
func (c *Config) MfaWindowTTL() time.Duration { return duration(c.MfaWindow, 5*time.Minute) }

// OTPLifetime parses OTPTTL. Returns 5m if unset or invalid.
func (c *Config) OTPLifetime() time.Duration { return duration(c.OTPTTL, 5*time.Minute) }

// MfaChallengeLifetime parses MfaChallengeTTL. Returns 5m if unset or invalid.
func (c *Config) MfaChallengeLifetime() time.Duration { return duration(c.MfaChallengeTTL, 5*time.Minute) }

// OAuthStateLifetime parses OAuthStateTTL. Returns 10m if unset or invalid.
func (c *Config) OAuthStateLifetime() time.Duration { return duration(c.OAuthStateTTL, 10*time.Minute) }
