// Package service implements the MFA flows: TOTP enrollment, verification and
// disable, backup-code rotation, and transient OTP send/verify.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"identity-plane/internal/devotp"
	identitydomain "identity-plane/internal/identity/domain"
	"identity-plane/internal/mfa"
	mfadomain "identity-plane/internal/mfa/domain"
	"identity-plane/internal/ratelimit"
	"identity-plane/internal/security"
	userdomain "identity-plane/internal/user/domain"
)

// Sentinel errors for the MFA service; the handler maps them to HTTP statuses.
var (
	ErrUserNotFound    = errors.New("user not found")
	ErrAlreadyEnrolled = errors.New("totp already enrolled")
	ErrNotEnrolled     = errors.New("totp not enrolled")
	ErrInvalidCode     = errors.New("invalid mfa code")
	ErrInvalidProof    = errors.New("invalid disable proof")
	ErrUnknownChannel  = errors.New("unknown delivery channel")
)

// EnrollResult carries the enrollment material returned to the caller exactly
// once; the secret is never readable again afterwards.
type EnrollResult struct {
	Secret          string
	ProvisioningURL string
}

// UserRepo is the minimal user repository needed by the MFA service.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	SetMfaState(ctx context.Context, userID string, state userdomain.MfaState) error
}

// IdentityRepo is the minimal identity repository needed by the MFA service.
type IdentityRepo interface {
	GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error)
}

// MfaRepo is the persistence needed for TOTP secrets and backup codes.
type MfaRepo interface {
	GetTOTPSecret(ctx context.Context, userID string) (*mfadomain.TOTPSecret, error)
	UpsertPendingTOTPSecret(ctx context.Context, s *mfadomain.TOTPSecret) error
	ConfirmTOTPSecret(ctx context.Context, userID string) error
	DeleteTOTPSecret(ctx context.Context, userID string) error
	ReplaceBackupCodes(ctx context.Context, userID string, codes []*mfadomain.BackupCode) error
	ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error)
	DeleteBackupCodes(ctx context.Context, userID string) error
}

// MfaService implements TOTP enrollment/verify/disable and transient OTPs.
type MfaService struct {
	users      UserRepo
	identities IdentityRepo
	mfaRepo    MfaRepo
	otps       *mfa.OTPStore
	sender     mfa.Sender
	limiter    *ratelimit.Limiter
	hasher     *security.Hasher

	issuer         string
	otpTTL         time.Duration
	otpMaxAttempts int

	// returnCodes enables dev OTP mode: SendOTP returns the code and records
	// it in devCodes for GET /dev/otp. Wired only outside production.
	returnCodes bool
	devCodes    devotp.Store
}

// NewMfaService returns an MfaService with the given dependencies. devCodes
// may be nil when returnCodes is false.
func NewMfaService(
	users UserRepo,
	identities IdentityRepo,
	mfaRepo MfaRepo,
	otps *mfa.OTPStore,
	sender mfa.Sender,
	limiter *ratelimit.Limiter,
	hasher *security.Hasher,
	issuer string,
	otpTTL time.Duration,
	otpMaxAttempts int,
	returnCodes bool,
	devCodes devotp.Store,
) *MfaService {
	return &MfaService{
		users:          users,
		identities:     identities,
		mfaRepo:        mfaRepo,
		otps:           otps,
		sender:         sender,
		limiter:        limiter,
		hasher:         hasher,
		issuer:         issuer,
		otpTTL:         otpTTL,
		otpMaxAttempts: otpMaxAttempts,
		returnCodes:    returnCodes,
		devCodes:       devCodes,
	}
}

// EnrollTOTP generates a fresh TOTP secret for the user and stores it
// unconfirmed. Re-enrolling while pending replaces the secret; enrolling while
// already enrolled fails with ErrAlreadyEnrolled (the user must disable
// first). The secret never gates login until VerifyTOTP confirms it.
func (s *MfaService) EnrollTOTP(ctx context.Context, userID string) (*EnrollResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.MfaState == userdomain.MfaStateEnrolled {
		return nil, ErrAlreadyEnrolled
	}
	secret, url, err := mfa.NewTOTPKey(s.issuer, user.Email)
	if err != nil {
		return nil, err
	}
	pending := &mfadomain.TOTPSecret{
		UserID:    userID,
		Secret:    secret,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.mfaRepo.UpsertPendingTOTPSecret(ctx, pending); err != nil {
		return nil, err
	}
	if err := s.users.SetMfaState(ctx, userID, userdomain.MfaStatePending); err != nil {
		return nil, err
	}
	return &EnrollResult{Secret: secret, ProvisioningURL: url}, nil
}

// VerifyTOTP checks code against the user's secret. The first success
// confirms a pending enrollment and returns exactly mfa.BackupCodeCount fresh
// backup codes in plaintext, the only time they are visible. A success while
// already enrolled re-verifies and rotates the backup-code set, invalidating
// unused codes.
func (s *MfaService) VerifyTOTP(ctx context.Context, userID, code string) ([]string, error) {
	if err := s.limiter.Check(ctx, ratelimit.ActionMfaVerify, userID); err != nil {
		return nil, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	sec, err := s.mfaRepo.GetTOTPSecret(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, ErrNotEnrolled
	}
	if !mfa.ValidateTOTP(code, sec.Secret, time.Now().UTC()) {
		_, _ = s.limiter.Hit(ctx, ratelimit.ActionMfaVerify, userID)
		return nil, ErrInvalidCode
	}
	_ = s.limiter.Reset(ctx, ratelimit.ActionMfaVerify, userID)
	if !sec.Confirmed {
		if err := s.mfaRepo.ConfirmTOTPSecret(ctx, userID); err != nil {
			return nil, err
		}
		if err := s.users.SetMfaState(ctx, userID, userdomain.MfaStateEnrolled); err != nil {
			return nil, err
		}
	}
	return s.rotateBackupCodes(ctx, userID)
}

// DisableTOTP removes the user's TOTP secret and backup codes after the
// caller proves control with the account password, a current TOTP code, or an
// unused backup code. The proof requirement keeps a stolen access token from
// silently downgrading the account.
func (s *MfaService) DisableTOTP(ctx context.Context, userID, proof string) error {
	if err := s.limiter.Check(ctx, ratelimit.ActionMfaVerify, userID); err != nil {
		return err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.MfaState == userdomain.MfaStateNone {
		return ErrNotEnrolled
	}
	ok, err := s.proveDisable(ctx, userID, proof)
	if err != nil {
		return err
	}
	if !ok {
		_, _ = s.limiter.Hit(ctx, ratelimit.ActionMfaVerify, userID)
		return ErrInvalidProof
	}
	_ = s.limiter.Reset(ctx, ratelimit.ActionMfaVerify, userID)
	if err := s.mfaRepo.DeleteTOTPSecret(ctx, userID); err != nil {
		return err
	}
	if err := s.mfaRepo.DeleteBackupCodes(ctx, userID); err != nil {
		return err
	}
	return s.users.SetMfaState(ctx, userID, userdomain.MfaStateNone)
}

// proveDisable accepts the account password, a valid TOTP code, or an unused
// backup code. A backup code used as proof is consumed even though the whole
// set is deleted right after.
func (s *MfaService) proveDisable(ctx context.Context, userID, proof string) (bool, error) {
	if proof == "" {
		return false, nil
	}
	ident, err := s.identities.GetByUserAndProvider(ctx, userID, identitydomain.IdentityProviderLocal)
	if err != nil {
		return false, err
	}
	if ident != nil && ident.PasswordHash != "" {
		if err := s.hasher.Compare(ident.PasswordHash, []byte(proof)); err == nil {
			return true, nil
		}
	}
	sec, err := s.mfaRepo.GetTOTPSecret(ctx, userID)
	if err != nil {
		return false, err
	}
	if sec != nil && mfa.ValidateTOTP(proof, sec.Secret, time.Now().UTC()) {
		return true, nil
	}
	return s.mfaRepo.ConsumeBackupCode(ctx, userID, mfa.HashOTP(mfa.NormalizeBackupCode(proof)))
}

// VerifyForLogin checks a TOTP code or backup code for an enrolled user. Used
// by the login flow to complete an MFA challenge; the caller owns rate
// limiting and challenge bookkeeping.
func (s *MfaService) VerifyForLogin(ctx context.Context, userID, code string) error {
	sec, err := s.mfaRepo.GetTOTPSecret(ctx, userID)
	if err != nil {
		return err
	}
	if sec == nil || !sec.Confirmed {
		return ErrNotEnrolled
	}
	if mfa.ValidateTOTP(code, sec.Secret, time.Now().UTC()) {
		return nil
	}
	ok, err := s.mfaRepo.ConsumeBackupCode(ctx, userID, mfa.HashOTP(mfa.NormalizeBackupCode(code)))
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidCode
	}
	return nil
}

// SendOTP issues a 6-digit code to identity over channel, replacing any
// outstanding code for the same identity and purpose. Sends are rate limited
// per (purpose, identity). The returned string is the code itself in dev OTP
// mode and empty otherwise.
func (s *MfaService) SendOTP(ctx context.Context, identity, purpose, channel string) (string, error) {
	identity = strings.TrimSpace(identity)
	purpose = strings.ToLower(strings.TrimSpace(purpose))
	if channel != mfa.ChannelEmail && channel != mfa.ChannelSMS {
		return "", ErrUnknownChannel
	}
	subject := purpose + ":" + identity
	if err := s.limiter.Allow(ctx, ratelimit.ActionOTPSend, subject); err != nil {
		return "", err
	}
	code, err := mfa.GenerateOTP()
	if err != nil {
		return "", err
	}
	if err := s.otps.Save(ctx, purpose, identity, mfa.HashOTP(code), s.otpTTL); err != nil {
		return "", err
	}
	if err := s.sender.Send(ctx, channel, identity, code); err != nil {
		return "", err
	}
	if !s.returnCodes {
		return "", nil
	}
	if s.devCodes != nil {
		s.devCodes.Put(ctx, subject, code, time.Now().UTC().Add(s.otpTTL))
	}
	return code, nil
}

// VerifyOTP consumes the outstanding code for (identity, purpose). A match
// deletes the record; wrong codes burn attempts until the record voids itself.
func (s *MfaService) VerifyOTP(ctx context.Context, identity, purpose, code string) error {
	identity = strings.TrimSpace(identity)
	purpose = strings.ToLower(strings.TrimSpace(purpose))
	return s.otps.Consume(ctx, purpose, identity, code, s.otpMaxAttempts)
}

func (s *MfaService) rotateBackupCodes(ctx context.Context, userID string) ([]string, error) {
	codes, err := mfa.GenerateBackupCodes()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	stored := make([]*mfadomain.BackupCode, 0, len(codes))
	for _, c := range codes {
		stored = append(stored, &mfadomain.BackupCode{
			ID:        uuid.New().String(),
			UserID:    userID,
			CodeHash:  mfa.HashOTP(mfa.NormalizeBackupCode(c)),
			CreatedAt: now,
		})
	}
	if err := s.mfaRepo.ReplaceBackupCodes(ctx, userID, stored); err != nil {
		return nil, err
	}
	return codes, nil
}
