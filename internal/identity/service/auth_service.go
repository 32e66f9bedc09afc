package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"identity-plane/internal/cache"
	identitydomain "identity-plane/internal/identity/domain"
	"identity-plane/internal/ratelimit"
	"identity-plane/internal/security"
	sessiondomain "identity-plane/internal/session/domain"
	sessionrepo "identity-plane/internal/session/repository"
	tenantdomain "identity-plane/internal/tenant/domain"
	userdomain "identity-plane/internal/user/domain"
)

// Sentinel errors for the auth service; the handler maps them to HTTP statuses.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrInvalidChallenge       = errors.New("invalid or expired mfa challenge")
	ErrInvalidMfaCode         = errors.New("invalid mfa code")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse      = errors.New("refresh token reuse detected")
	ErrTenantNotFound         = errors.New("tenant not found")
	ErrTenantSuspended        = errors.New("tenant suspended")
	ErrInvalidEmail           = errors.New("invalid email address")
	ErrWeakPassword           = errors.New("password does not meet policy")
)

// refreshSecretBytes is the entropy of the refresh secret half; the wire token
// is "<session id>.<base64url secret>".
const refreshSecretBytes = 32

// nonceKindMfa namespaces consumed MFA challenge jtis in the nonce store.
const nonceKindMfa = "mfa"

// AuthResult is the outcome of a login-family call. When MfaRequired is set
// only ChallengeToken is populated and no session exists yet; the client
// finishes with CompleteMfaChallenge to obtain tokens.
type AuthResult struct {
	MfaRequired    bool
	ChallengeToken string

	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	TenantID     string
	SessionID    string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmail(ctx context.Context, email string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User) error
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
	UpdatePasswordHash(ctx context.Context, id string, passwordHash string) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	ListByUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByUser(ctx context.Context, userID string) error
	RevokeAllByUserExcept(ctx context.Context, userID, keepID string) error
	Rotate(ctx context.Context, id, presentedSecret, newSalt, newHash string, newExpiresAt time.Time) (*sessiondomain.Session, error)
}

// TenantRepo is the minimal tenant repository needed by the auth service.
type TenantRepo interface {
	GetTenantByID(ctx context.Context, id string) (*tenantdomain.Tenant, error)
}

// MfaVerifier checks a TOTP or backup code during login. The mfa service
// implements it.
type MfaVerifier interface {
	VerifyForLogin(ctx context.Context, userID, code string) error
}

// AuditLogger records security events only the service can see, such as
// refresh-token reuse. Request-level auditing happens in middleware.
type AuditLogger interface {
	LogEvent(ctx context.Context, tenantID, userID, action, resource, metadata string)
}

// AuthService implements credential login with an MFA gate, refresh rotation
// with reuse detection, logout, registration and password changes.
type AuthService struct {
	users      UserRepo
	identities IdentityRepo
	sessions   SessionRepo
	tenants    TenantRepo
	mfa        MfaVerifier
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	limiter    *ratelimit.Limiter
	nonces     *cache.NonceStore
	audit      AuditLogger

	refreshTTL       time.Duration
	challengeTTL     time.Duration
	revokeAllOnReuse bool
}

// NewAuthService returns an AuthService with the given dependencies.
func NewAuthService(
	users UserRepo,
	identities IdentityRepo,
	sessions SessionRepo,
	tenants TenantRepo,
	mfa MfaVerifier,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	limiter *ratelimit.Limiter,
	nonces *cache.NonceStore,
	audit AuditLogger,
	refreshTTL, challengeTTL time.Duration,
	revokeAllOnReuse bool,
) *AuthService {
	return &AuthService{
		users:            users,
		identities:       identities,
		sessions:         sessions,
		tenants:          tenants,
		mfa:              mfa,
		hasher:           hasher,
		tokens:           tokens,
		limiter:          limiter,
		nonces:           nonces,
		audit:            audit,
		refreshTTL:       refreshTTL,
		challengeTTL:     challengeTTL,
		revokeAllOnReuse: revokeAllOnReuse,
	}
}

// Register creates a user and local identity in the tenant. Registration
// never issues tokens; the caller logs in separately.
func (s *AuthService) Register(ctx context.Context, tenantID, email, name, password string) (*userdomain.User, error) {
	email = userdomain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	tenant, err := s.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if tenant == nil {
		return nil, ErrTenantNotFound
	}
	if !tenant.Active() {
		return nil, ErrTenantSuspended
	}
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	user := &userdomain.User{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Email:     email,
		Name:      strings.TrimSpace(name),
		Roles:     []string{"member"},
		Status:    userdomain.UserStatusActive,
		MfaState:  userdomain.MfaStateNone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	identity := &identitydomain.Identity{
		ID:           uuid.New().String(),
		UserID:       user.ID,
		Provider:     identitydomain.IdentityProviderLocal,
		ProviderID:   email,
		PasswordHash: hashed,
		CreatedAt:    now,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the password and either issues a session or, when the user
// has TOTP enrolled, returns a short-lived challenge token instead. Unknown
// email and wrong password fail identically, with identical argon2id work.
func (s *AuthService) Login(ctx context.Context, email, password, ip, userAgent string) (*AuthResult, error) {
	email = userdomain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	subject := loginSubject(email, ip)
	// Fail closed: if the limiter is unreachable, logins wait.
	if err := s.limiter.Check(ctx, ratelimit.ActionLogin, subject); err != nil {
		return nil, err
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		s.hasher.CompareDummy([]byte(password))
		return nil, s.failLogin(ctx, subject)
	}
	ident, err := s.identities.GetByUserAndProvider(ctx, user.ID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return nil, err
	}
	if ident == nil || ident.PasswordHash == "" {
		s.hasher.CompareDummy([]byte(password))
		return nil, s.failLogin(ctx, subject)
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		return nil, s.failLogin(ctx, subject)
	}
	if s.hasher.NeedsRehash(ident.PasswordHash) {
		if rehashed, err := s.hasher.Hash([]byte(password)); err == nil {
			_ = s.identities.UpdatePasswordHash(ctx, ident.ID, rehashed)
		}
	}
	if user.Status != userdomain.UserStatusActive {
		return nil, ErrInvalidCredentials
	}
	if err := s.guardTenant(ctx, user.TenantID); err != nil {
		return nil, err
	}
	_ = s.limiter.Reset(ctx, ratelimit.ActionLogin, subject)
	if user.MfaState == userdomain.MfaStateEnrolled {
		return s.mfaChallenge(user)
	}
	return s.issueSession(ctx, user, ip, userAgent)
}

// CompleteMfaChallenge finishes a login that Login answered with MfaRequired.
// code is a current TOTP code or an unused backup code. A wrong code leaves
// the challenge valid (the mfa_verify window bounds attempts); a challenge
// that already produced a session cannot produce another.
func (s *AuthService) CompleteMfaChallenge(ctx context.Context, challengeToken, code, ip, userAgent string) (*AuthResult, error) {
	claims, err := s.tokens.ValidatePurpose(challengeToken, security.PurposeMfaChallenge)
	if err != nil {
		return nil, ErrInvalidChallenge
	}
	userID := claims.Subject
	if err := s.limiter.Check(ctx, ratelimit.ActionMfaVerify, userID); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		return nil, ErrInvalidChallenge
	}
	if err := s.guardTenant(ctx, user.TenantID); err != nil {
		return nil, err
	}
	if err := s.mfa.VerifyForLogin(ctx, userID, code); err != nil {
		_, _ = s.limiter.Hit(ctx, ratelimit.ActionMfaVerify, userID)
		return nil, ErrInvalidMfaCode
	}
	first, err := s.nonces.Consume(ctx, nonceKindMfa, claims.ID, s.challengeTTL)
	if err != nil {
		return nil, err
	}
	if !first {
		return nil, ErrInvalidChallenge
	}
	_ = s.limiter.Reset(ctx, ratelimit.ActionMfaVerify, userID)
	return s.issueSession(ctx, user, ip, userAgent)
}

// Refresh rotates the refresh credential and mints a fresh token pair. A
// well-formed token whose secret does not match the stored generation is a
// replay of an older generation, so the whole lineage is treated as stolen.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, ip, userAgent string) (*AuthResult, error) {
	sessionID, secret, ok := security.ParseRefreshToken(refreshToken)
	if !ok {
		return nil, ErrInvalidRefreshToken
	}
	// Fail open on limiter errors: a Redis outage must not strand every
	// session. Over-budget still rejects.
	if err := s.limiter.Allow(ctx, ratelimit.ActionRefresh, sessionID); errors.Is(err, ratelimit.ErrLimited) {
		return nil, err
	}
	newSecret, err := security.GenerateOpaqueToken(refreshSecretBytes)
	if err != nil {
		return nil, err
	}
	newSalt, err := security.NewRefreshSalt()
	if err != nil {
		return nil, err
	}
	newHash := security.HashRefreshSecret(newSalt, newSecret)
	sess, err := s.sessions.Rotate(ctx, sessionID, secret, newSalt, newHash, time.Now().UTC().Add(s.refreshTTL))
	if err != nil {
		switch {
		case errors.Is(err, sessionrepo.ErrSecretMismatch):
			return nil, s.onRefreshReuse(ctx, sessionID, ip, userAgent)
		case errors.Is(err, sessionrepo.ErrNotFound):
			return nil, ErrInvalidRefreshToken
		default:
			return nil, err
		}
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || user.Status != userdomain.UserStatusActive {
		return nil, ErrInvalidRefreshToken
	}
	if err := s.guardTenant(ctx, user.TenantID); err != nil {
		return nil, err
	}
	access, expiresAt, err := s.tokens.IssueAccess(user.ID, user.TenantID, user.Email, user.Roles, sess.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: security.EncodeRefreshToken(sess.ID, newSecret),
		ExpiresAt:    expiresAt,
		UserID:       user.ID,
		TenantID:     user.TenantID,
		SessionID:    sess.ID,
	}, nil
}

// onRefreshReuse handles a secret mismatch from Rotate: audit the event and,
// when configured, revoke every session of the user.
func (s *AuthService) onRefreshReuse(ctx context.Context, sessionID, ip, userAgent string) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil || sess == nil {
		return ErrInvalidRefreshToken
	}
	if s.audit != nil {
		s.audit.LogEvent(ctx, sess.TenantID, sess.UserID, "refresh_reuse", "session", sessionID+" "+ip+" "+userAgent)
	}
	if s.revokeAllOnReuse {
		if err := s.sessions.RevokeAllByUser(ctx, sess.UserID); err != nil {
			return err
		}
	}
	return ErrRefreshTokenReuse
}

// Logout revokes the session the refresh token names. It is deliberately
// forgiving: malformed or mismatching tokens return nil so clients can always
// clear local state.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	sessionID, secret, ok := security.ParseRefreshToken(refreshToken)
	if !ok {
		return nil
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.RevokedAt != nil {
		return nil
	}
	if !security.RefreshHashEqual(sess.RefreshSalt, secret, sess.RefreshHash) {
		return nil
	}
	return s.sessions.Revoke(ctx, sessionID)
}

// LogoutAll revokes every session of the user, including the calling one.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	return s.sessions.RevokeAllByUser(ctx, userID)
}

// ValidateToken checks the access token's signature, expiry, issuer and
// audience. It never consults storage; a valid token is good until it expires.
func (s *AuthService) ValidateToken(accessToken string) (*security.AccessClaims, error) {
	return s.tokens.ValidateAccess(accessToken)
}

// ChangePassword verifies the old password, installs the new hash and revokes
// every other session of the user. The calling session survives.
func (s *AuthService) ChangePassword(ctx context.Context, userID, sessionID, oldPassword, newPassword string) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	ident, err := s.identities.GetByUserAndProvider(ctx, userID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return err
	}
	if ident == nil || ident.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}
	hashed, err := s.hasher.Hash([]byte(newPassword))
	if err != nil {
		return err
	}
	if err := s.identities.UpdatePasswordHash(ctx, ident.ID, hashed); err != nil {
		return err
	}
	return s.sessions.RevokeAllByUserExcept(ctx, userID, sessionID)
}

// ListSessions returns the user's active sessions.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	return s.sessions.ListByUser(ctx, userID)
}

// LoginOAuth issues a session for a user the OAuth broker already mapped. The
// same guards as password login apply, including the MFA gate.
func (s *AuthService) LoginOAuth(ctx context.Context, user *userdomain.User, ip, userAgent string) (*AuthResult, error) {
	if user == nil || user.Status != userdomain.UserStatusActive {
		return nil, ErrInvalidCredentials
	}
	if err := s.guardTenant(ctx, user.TenantID); err != nil {
		return nil, err
	}
	if user.MfaState == userdomain.MfaStateEnrolled {
		return s.mfaChallenge(user)
	}
	return s.issueSession(ctx, user, ip, userAgent)
}

// failLogin counts a failed attempt against the subject's login window.
func (s *AuthService) failLogin(ctx context.Context, subject string) error {
	_, _ = s.limiter.Hit(ctx, ratelimit.ActionLogin, subject)
	return ErrInvalidCredentials
}

// guardTenant fails authentication when the user's tenant is missing or suspended.
func (s *AuthService) guardTenant(ctx context.Context, tenantID string) error {
	tenant, err := s.tenants.GetTenantByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if !tenant.Active() {
		return ErrTenantSuspended
	}
	return nil
}

// mfaChallenge answers a verified login with a challenge token instead of a session.
func (s *AuthService) mfaChallenge(user *userdomain.User) (*AuthResult, error) {
	token, _, err := s.tokens.IssuePurpose(security.PurposeMfaChallenge, user.ID, user.TenantID, "", s.challengeTTL)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		MfaRequired:    true,
		ChallengeToken: token,
		UserID:         user.ID,
		TenantID:       user.TenantID,
	}, nil
}

// issueSession creates the durable session row and mints the token pair.
func (s *AuthService) issueSession(ctx context.Context, user *userdomain.User, ip, userAgent string) (*AuthResult, error) {
	sessionID := uuid.New().String()
	secret, err := security.GenerateOpaqueToken(refreshSecretBytes)
	if err != nil {
		return nil, err
	}
	salt, err := security.NewRefreshSalt()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &sessiondomain.Session{
		ID:               sessionID,
		UserID:           user.ID,
		TenantID:         user.TenantID,
		RefreshSalt:      salt,
		RefreshHash:      security.HashRefreshSecret(salt, secret),
		RefreshExpiresAt: now.Add(s.refreshTTL),
		IPAddress:        ip,
		UserAgent:        userAgent,
		LastSeenAt:       &now, // sessions.last_seen_at is NOT NULL
		CreatedAt:        now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	access, expiresAt, err := s.tokens.IssueAccess(user.ID, user.TenantID, user.Email, user.Roles, sessionID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: security.EncodeRefreshToken(sessionID, secret),
		ExpiresAt:    expiresAt,
		UserID:       user.ID,
		TenantID:     user.TenantID,
		SessionID:    sessionID,
	}, nil
}

func loginSubject(email, ip string) string {
	return email + "|" + ip
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	const simpleEmail = `^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`
	ok, _ := regexp.MatchString(simpleEmail, email)
	if !ok {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < 12 {
		return fmt.Errorf("%w: must be at least 12 characters", ErrWeakPassword)
	}
	var hasUpper, hasLower, hasNumber, hasSymbol bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasNumber = true
		default:
			hasSymbol = true
		}
	}
	if !hasUpper {
		return fmt.Errorf("%w: must contain an uppercase letter", ErrWeakPassword)
	}
	if !hasLower {
		return fmt.Errorf("%w: must contain a lowercase letter", ErrWeakPassword)
	}
	if !hasNumber {
		return fmt.Errorf("%w: must contain a number", ErrWeakPassword)
	}
	if !hasSymbol {
		return fmt.Errorf("%w: must contain a symbol", ErrWeakPassword)
	}
	return nil
}
