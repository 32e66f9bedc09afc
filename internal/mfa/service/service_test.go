package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"identity-plane/internal/devotp"
	identitydomain "identity-plane/internal/identity/domain"
	"identity-plane/internal/mfa"
	mfadomain "identity-plane/internal/mfa/domain"
	"identity-plane/internal/ratelimit"
	"identity-plane/internal/security"
	userdomain "identity-plane/internal/user/domain"
)

type memUserRepo struct {
	mu   sync.Mutex
	byID map[string]*userdomain.User
}

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byID[id], nil
}

func (r *memUserRepo) SetMfaState(ctx context.Context, userID string, state userdomain.MfaState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[userID]; ok {
		u2 := *u
		u2.MfaState = state
		r.byID[userID] = &u2
	}
	return nil
}

type memIdentityRepo struct {
	mu sync.Mutex
	m  []*identitydomain.Identity
}

func (r *memIdentityRepo) GetByUserAndProvider(ctx context.Context, userID string, provider identitydomain.IdentityProvider) (*identitydomain.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.m {
		if i.UserID == userID && i.Provider == provider {
			return i, nil
		}
	}
	return nil, nil
}

type memMfaRepo struct {
	mu      sync.Mutex
	secrets map[string]*mfadomain.TOTPSecret
	codes   map[string][]*mfadomain.BackupCode
}

func newMemMfaRepo() *memMfaRepo {
	return &memMfaRepo{
		secrets: make(map[string]*mfadomain.TOTPSecret),
		codes:   make(map[string][]*mfadomain.BackupCode),
	}
}

func (r *memMfaRepo) GetTOTPSecret(ctx context.Context, userID string) (*mfadomain.TOTPSecret, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.secrets[userID], nil
}

func (r *memMfaRepo) UpsertPendingTOTPSecret(ctx context.Context, s *mfadomain.TOTPSecret) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.secrets[s.UserID]; ok && existing.Confirmed {
		return nil
	}
	s2 := *s
	r.secrets[s.UserID] = &s2
	return nil
}

func (r *memMfaRepo) ConfirmTOTPSecret(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.secrets[userID]; ok {
		now := time.Now().UTC()
		s.Confirmed = true
		s.ConfirmedAt = &now
	}
	return nil
}

func (r *memMfaRepo) DeleteTOTPSecret(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.secrets, userID)
	return nil
}

func (r *memMfaRepo) ReplaceBackupCodes(ctx context.Context, userID string, codes []*mfadomain.BackupCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	fresh := make([]*mfadomain.BackupCode, 0, len(codes))
	for _, c := range codes {
		c2 := *c
		fresh = append(fresh, &c2)
	}
	r.codes[userID] = fresh
	return nil
}

func (r *memMfaRepo) ConsumeBackupCode(ctx context.Context, userID, codeHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes[userID] {
		if c.CodeHash == codeHash && c.ConsumedAt == nil {
			now := time.Now().UTC()
			c.ConsumedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (r *memMfaRepo) DeleteBackupCodes(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codes, userID)
	return nil
}

type senderCall struct {
	Channel  string
	Identity string
	Code     string
}

// capturingSender records deliveries so tests can read the code back.
type capturingSender struct {
	mu    sync.Mutex
	calls []senderCall
}

func (s *capturingSender) Send(ctx context.Context, channel, identity, code string) error {
	s.mu.Lock()
	s.calls = append(s.calls, senderCall{Channel: channel, Identity: identity, Code: code})
	s.mu.Unlock()
	return nil
}

func (s *capturingSender) last(t *testing.T) senderCall {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		t.Fatal("no deliveries captured")
	}
	return s.calls[len(s.calls)-1]
}

type mfaTestEnv struct {
	svc    *MfaService
	users  *memUserRepo
	repo   *memMfaRepo
	sender *capturingSender
	mr     *miniredis.Miniredis
	hasher *security.Hasher
}

func newTestMfaService(t *testing.T, returnCodes bool) *mfaTestEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users := &memUserRepo{byID: make(map[string]*userdomain.User)}
	identities := &memIdentityRepo{}
	repo := newMemMfaRepo()
	sender := &capturingSender{}
	hasher := security.NewHasher(8*1024, 1, 1)
	limiter := ratelimit.New(client, map[ratelimit.Action]ratelimit.Limit{
		ratelimit.ActionOTPSend:   {Max: 3, Window: 10 * time.Minute},
		ratelimit.ActionMfaVerify: {Max: 5, Window: 5 * time.Minute},
	})

	var devCodes devotp.Store
	if returnCodes {
		devCodes = devotp.NewMemoryStore()
	}
	svc := NewMfaService(
		users,
		identities,
		repo,
		mfa.NewOTPStore(client),
		sender,
		limiter,
		hasher,
		"identity-plane",
		5*time.Minute,
		5,
		returnCodes,
		devCodes,
	)
	return &mfaTestEnv{svc: svc, users: users, repo: repo, sender: sender, mr: mr, hasher: hasher}
}

func (e *mfaTestEnv) addUser(t *testing.T, id, email string, state userdomain.MfaState) *userdomain.User {
	t.Helper()
	u := &userdomain.User{
		ID:       id,
		TenantID: "t1",
		Email:    email,
		Status:   userdomain.UserStatusActive,
		MfaState: state,
	}
	e.users.mu.Lock()
	e.users.byID[id] = u
	e.users.mu.Unlock()
	return u
}

func (e *mfaTestEnv) addLocalIdentity(t *testing.T, userID, password string) {
	t.Helper()
	hash, err := e.hasher.Hash([]byte(password))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	ident := e.svc.identities.(*memIdentityRepo)
	ident.mu.Lock()
	ident.m = append(ident.m, &identitydomain.Identity{
		ID:           "i-" + userID,
		UserID:       userID,
		Provider:     identitydomain.IdentityProviderLocal,
		ProviderID:   "a@example.test",
		PasswordHash: hash,
	})
	ident.mu.Unlock()
}

func (e *mfaTestEnv) mfaState(t *testing.T, userID string) userdomain.MfaState {
	t.Helper()
	u, _ := e.users.GetByID(context.Background(), userID)
	if u == nil {
		t.Fatalf("user %s missing", userID)
	}
	return u.MfaState
}

// enrollAndVerify walks a user through enrollment and returns the secret and
// the backup codes from the confirming verification.
func (e *mfaTestEnv) enrollAndVerify(t *testing.T, userID string) (string, []string) {
	t.Helper()
	ctx := context.Background()
	res, err := e.svc.EnrollTOTP(ctx, userID)
	if err != nil {
		t.Fatalf("EnrollTOTP: %v", err)
	}
	code, err := mfa.TOTPCodeAt(res.Secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	codes, err := e.svc.VerifyTOTP(ctx, userID, code)
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	return res.Secret, codes
}

func TestEnrollTOTP_PendingUntilVerified(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	ctx := context.Background()

	res, err := env.svc.EnrollTOTP(ctx, "u1")
	if err != nil {
		t.Fatalf("EnrollTOTP: %v", err)
	}
	if res.Secret == "" || res.ProvisioningURL == "" {
		t.Fatal("enrollment result missing secret or URL")
	}
	if got := env.mfaState(t, "u1"); got != userdomain.MfaStatePending {
		t.Errorf("state after enroll = %q, want pending", got)
	}
	sec, _ := env.repo.GetTOTPSecret(ctx, "u1")
	if sec == nil || sec.Confirmed {
		t.Fatalf("stored secret = %+v, want unconfirmed", sec)
	}

	code, err := mfa.TOTPCodeAt(res.Secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	codes, err := env.svc.VerifyTOTP(ctx, "u1", code)
	if err != nil {
		t.Fatalf("VerifyTOTP: %v", err)
	}
	if len(codes) != mfa.BackupCodeCount {
		t.Errorf("got %d backup codes, want %d", len(codes), mfa.BackupCodeCount)
	}
	if got := env.mfaState(t, "u1"); got != userdomain.MfaStateEnrolled {
		t.Errorf("state after verify = %q, want enrolled", got)
	}
	sec, _ = env.repo.GetTOTPSecret(ctx, "u1")
	if sec == nil || !sec.Confirmed {
		t.Fatalf("stored secret = %+v, want confirmed", sec)
	}
}

func TestEnrollTOTP_WhileEnrolledFails(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	env.enrollAndVerify(t, "u1")

	_, err := env.svc.EnrollTOTP(context.Background(), "u1")
	if !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("re-enroll while enrolled: want ErrAlreadyEnrolled, got %v", err)
	}
}

func TestEnrollTOTP_ReenrollWhilePendingReplaces(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	ctx := context.Background()

	first, err := env.svc.EnrollTOTP(ctx, "u1")
	if err != nil {
		t.Fatalf("EnrollTOTP #1: %v", err)
	}
	second, err := env.svc.EnrollTOTP(ctx, "u1")
	if err != nil {
		t.Fatalf("EnrollTOTP #2: %v", err)
	}
	if first.Secret == second.Secret {
		t.Fatal("re-enroll did not replace the pending secret")
	}
	code, err := mfa.TOTPCodeAt(second.Secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	if _, err := env.svc.VerifyTOTP(ctx, "u1", code); err != nil {
		t.Fatalf("VerifyTOTP with replacement secret: %v", err)
	}
}

func TestVerifyTOTP_WrongCodeKeepsPending(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	ctx := context.Background()

	res, err := env.svc.EnrollTOTP(ctx, "u1")
	if err != nil {
		t.Fatalf("EnrollTOTP: %v", err)
	}
	current, err := mfa.TOTPCodeAt(res.Secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	wrong := "000000"
	if wrong == current {
		wrong = "000001"
	}
	_, err = env.svc.VerifyTOTP(ctx, "u1", wrong)
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("wrong code: want ErrInvalidCode, got %v", err)
	}
	if got := env.mfaState(t, "u1"); got != userdomain.MfaStatePending {
		t.Errorf("state after wrong code = %q, want pending", got)
	}
}

func TestVerifyTOTP_NotEnrolled(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)

	_, err := env.svc.VerifyTOTP(context.Background(), "u1", "123456")
	if !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("want ErrNotEnrolled, got %v", err)
	}
}

func TestVerifyTOTP_RateLimited(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	ctx := context.Background()

	res, err := env.svc.EnrollTOTP(ctx, "u1")
	if err != nil {
		t.Fatalf("EnrollTOTP: %v", err)
	}
	current, err := mfa.TOTPCodeAt(res.Secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	wrong := "000000"
	if wrong == current {
		wrong = "000001"
	}
	for i := 0; i < 5; i++ {
		if _, err := env.svc.VerifyTOTP(ctx, "u1", wrong); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("wrong code #%d: want ErrInvalidCode, got %v", i+1, err)
		}
	}
	// Budget burned; even the correct code is rejected up front.
	if _, err := env.svc.VerifyTOTP(ctx, "u1", current); !errors.Is(err, ratelimit.ErrLimited) {
		t.Fatalf("over budget: want ErrLimited, got %v", err)
	}

	env.mr.FastForward(5*time.Minute + time.Second)

	code, err := mfa.TOTPCodeAt(res.Secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	if _, err := env.svc.VerifyTOTP(ctx, "u1", code); err != nil {
		t.Fatalf("VerifyTOTP after window: %v", err)
	}
}

func TestVerifyTOTP_WhileEnrolledRotatesBackupCodes(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	ctx := context.Background()

	secret, oldCodes := env.enrollAndVerify(t, "u1")

	code, err := mfa.TOTPCodeAt(secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	newCodes, err := env.svc.VerifyTOTP(ctx, "u1", code)
	if err != nil {
		t.Fatalf("VerifyTOTP re-verify: %v", err)
	}
	if len(newCodes) != mfa.BackupCodeCount {
		t.Fatalf("got %d rotated codes, want %d", len(newCodes), mfa.BackupCodeCount)
	}
	// Old set is dead, new set works.
	if err := env.svc.VerifyForLogin(ctx, "u1", oldCodes[0]); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("old backup code: want ErrInvalidCode, got %v", err)
	}
	if err := env.svc.VerifyForLogin(ctx, "u1", newCodes[0]); err != nil {
		t.Errorf("new backup code: %v", err)
	}
}

func TestVerifyForLogin_TOTPAndBackupCodes(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	ctx := context.Background()

	secret, codes := env.enrollAndVerify(t, "u1")

	code, err := mfa.TOTPCodeAt(secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	if err := env.svc.VerifyForLogin(ctx, "u1", code); err != nil {
		t.Fatalf("VerifyForLogin with TOTP: %v", err)
	}
	if err := env.svc.VerifyForLogin(ctx, "u1", codes[0]); err != nil {
		t.Fatalf("VerifyForLogin with backup code: %v", err)
	}
	// Backup codes are single-use.
	if err := env.svc.VerifyForLogin(ctx, "u1", codes[0]); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("backup code reuse: want ErrInvalidCode, got %v", err)
	}
	if err := env.svc.VerifyForLogin(ctx, "u1", "WRONGCODE1"); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("unknown code: want ErrInvalidCode, got %v", err)
	}
}

func TestVerifyForLogin_PendingNotAccepted(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	ctx := context.Background()

	res, err := env.svc.EnrollTOTP(ctx, "u1")
	if err != nil {
		t.Fatalf("EnrollTOTP: %v", err)
	}
	code, err := mfa.TOTPCodeAt(res.Secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	// An unconfirmed secret never verifies a login.
	if err := env.svc.VerifyForLogin(ctx, "u1", code); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("pending enrollment: want ErrNotEnrolled, got %v", err)
	}
}

func TestDisableTOTP_PasswordProof(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	env.addLocalIdentity(t, "u1", "correct horse battery staple")
	env.enrollAndVerify(t, "u1")
	ctx := context.Background()

	if err := env.svc.DisableTOTP(ctx, "u1", "correct horse battery staple"); err != nil {
		t.Fatalf("DisableTOTP: %v", err)
	}
	if got := env.mfaState(t, "u1"); got != userdomain.MfaStateNone {
		t.Errorf("state after disable = %q, want none", got)
	}
	sec, _ := env.repo.GetTOTPSecret(ctx, "u1")
	if sec != nil {
		t.Error("secret still present after disable")
	}
	if err := env.svc.VerifyForLogin(ctx, "u1", "anything"); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("VerifyForLogin after disable: want ErrNotEnrolled, got %v", err)
	}
}

func TestDisableTOTP_TOTPProof(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	secret, _ := env.enrollAndVerify(t, "u1")
	ctx := context.Background()

	code, err := mfa.TOTPCodeAt(secret, time.Now().UTC())
	if err != nil {
		t.Fatalf("TOTPCodeAt: %v", err)
	}
	if err := env.svc.DisableTOTP(ctx, "u1", code); err != nil {
		t.Fatalf("DisableTOTP with TOTP proof: %v", err)
	}
	if got := env.mfaState(t, "u1"); got != userdomain.MfaStateNone {
		t.Errorf("state after disable = %q, want none", got)
	}
}

func TestDisableTOTP_BackupCodeProof(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	_, codes := env.enrollAndVerify(t, "u1")
	ctx := context.Background()

	if err := env.svc.DisableTOTP(ctx, "u1", codes[3]); err != nil {
		t.Fatalf("DisableTOTP with backup code proof: %v", err)
	}
	if got := env.mfaState(t, "u1"); got != userdomain.MfaStateNone {
		t.Errorf("state after disable = %q, want none", got)
	}
}

func TestDisableTOTP_WrongProof(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)
	env.addLocalIdentity(t, "u1", "correct horse battery staple")
	env.enrollAndVerify(t, "u1")
	ctx := context.Background()

	err := env.svc.DisableTOTP(ctx, "u1", "not the password")
	if !errors.Is(err, ErrInvalidProof) {
		t.Fatalf("wrong proof: want ErrInvalidProof, got %v", err)
	}
	if got := env.mfaState(t, "u1"); got != userdomain.MfaStateEnrolled {
		t.Errorf("state after failed disable = %q, want enrolled", got)
	}
}

func TestDisableTOTP_NotEnrolled(t *testing.T) {
	env := newTestMfaService(t, false)
	env.addUser(t, "u1", "a@example.test", userdomain.MfaStateNone)

	err := env.svc.DisableTOTP(context.Background(), "u1", "whatever")
	if !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("want ErrNotEnrolled, got %v", err)
	}
}

func TestSendOTP_DeliversAndVerifies(t *testing.T) {
	env := newTestMfaService(t, false)
	ctx := context.Background()

	devCode, err := env.svc.SendOTP(ctx, "a@example.test", "login", mfa.ChannelEmail)
	if err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if devCode != "" {
		t.Errorf("devCode = %q, want empty outside dev mode", devCode)
	}
	call := env.sender.last(t)
	if call.Channel != mfa.ChannelEmail || call.Identity != "a@example.test" {
		t.Errorf("delivery = %+v", call)
	}
	if len(call.Code) != 6 {
		t.Fatalf("delivered code %q, want 6 digits", call.Code)
	}

	if err := env.svc.VerifyOTP(ctx, "a@example.test", "login", call.Code); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	// Consumed; replay fails.
	err = env.svc.VerifyOTP(ctx, "a@example.test", "login", call.Code)
	if !errors.Is(err, mfa.ErrOTPNotFound) {
		t.Fatalf("replay: want ErrOTPNotFound, got %v", err)
	}
}

func TestSendOTP_DevModeReturnsCode(t *testing.T) {
	env := newTestMfaService(t, true)
	ctx := context.Background()

	devCode, err := env.svc.SendOTP(ctx, "15550100", "login", mfa.ChannelSMS)
	if err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if devCode == "" {
		t.Fatal("devCode empty in dev mode")
	}
	if env.sender.last(t).Code != devCode {
		t.Error("delivered code differs from dev response code")
	}
	got, ok := env.svc.devCodes.Get(ctx, "login:15550100")
	if !ok || got != devCode {
		t.Errorf("dev store code = %q ok=%v, want %q", got, ok, devCode)
	}
}

func TestSendOTP_ResendReplaces(t *testing.T) {
	env := newTestMfaService(t, false)
	ctx := context.Background()

	if _, err := env.svc.SendOTP(ctx, "a@example.test", "login", mfa.ChannelEmail); err != nil {
		t.Fatalf("SendOTP #1: %v", err)
	}
	first := env.sender.last(t).Code
	if _, err := env.svc.SendOTP(ctx, "a@example.test", "login", mfa.ChannelEmail); err != nil {
		t.Fatalf("SendOTP #2: %v", err)
	}
	second := env.sender.last(t).Code

	if first != second {
		err := env.svc.VerifyOTP(ctx, "a@example.test", "login", first)
		if !errors.Is(err, mfa.ErrOTPMismatch) {
			t.Fatalf("stale code: want ErrOTPMismatch, got %v", err)
		}
	}
	if err := env.svc.VerifyOTP(ctx, "a@example.test", "login", second); err != nil {
		t.Fatalf("current code: %v", err)
	}
}

func TestSendOTP_RateLimited(t *testing.T) {
	env := newTestMfaService(t, false)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := env.svc.SendOTP(ctx, "a@example.test", "login", mfa.ChannelEmail); err != nil {
			t.Fatalf("SendOTP #%d: %v", i+1, err)
		}
	}
	_, err := env.svc.SendOTP(ctx, "a@example.test", "login", mfa.ChannelEmail)
	if !errors.Is(err, ratelimit.ErrLimited) {
		t.Fatalf("SendOTP #4: want ErrLimited, got %v", err)
	}
	// Other purposes and identities have their own budgets.
	if _, err := env.svc.SendOTP(ctx, "a@example.test", "reset_password", mfa.ChannelEmail); err != nil {
		t.Fatalf("other purpose: %v", err)
	}
	if _, err := env.svc.SendOTP(ctx, "b@example.test", "login", mfa.ChannelEmail); err != nil {
		t.Fatalf("other identity: %v", err)
	}
}

func TestSendOTP_UnknownChannel(t *testing.T) {
	env := newTestMfaService(t, false)

	_, err := env.svc.SendOTP(context.Background(), "a@example.test", "login", "pigeon")
	if !errors.Is(err, ErrUnknownChannel) {
		t.Fatalf("want ErrUnknownChannel, got %v", err)
	}
}

func TestVerifyOTP_AttemptsExhausted(t *testing.T) {
	env := newTestMfaService(t, false)
	ctx := context.Background()

	if _, err := env.svc.SendOTP(ctx, "a@example.test", "login", mfa.ChannelEmail); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	code := env.sender.last(t).Code
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	for i := 0; i < 4; i++ {
		if err := env.svc.VerifyOTP(ctx, "a@example.test", "login", wrong); !errors.Is(err, mfa.ErrOTPMismatch) {
			t.Fatalf("wrong #%d: want ErrOTPMismatch, got %v", i+1, err)
		}
	}
	err := env.svc.VerifyOTP(ctx, "a@example.test", "login", wrong)
	if !errors.Is(err, mfa.ErrOTPAttemptsExceeded) {
		t.Fatalf("wrong #5: want ErrOTPAttemptsExceeded, got %v", err)
	}
	// Record voided; the genuine code is dead too.
	err = env.svc.VerifyOTP(ctx, "a@example.test", "login", code)
	if !errors.Is(err, mfa.ErrOTPNotFound) {
		t.Fatalf("after void: want ErrOTPNotFound, got %v", err)
	}
}
