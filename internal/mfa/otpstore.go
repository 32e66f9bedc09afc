package mfa

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrOTPNotFound means no outstanding code exists for the identity and purpose.
	ErrOTPNotFound = errors.New("otp not found or expired")
	// ErrOTPMismatch means the supplied code did not match the outstanding one.
	ErrOTPMismatch = errors.New("otp mismatch")
	// ErrOTPAttemptsExceeded means the outstanding code burned through its attempt budget.
	ErrOTPAttemptsExceeded = errors.New("otp attempts exceeded")
)

type otpRecord struct {
	CodeHash string `json:"code_hash"`
	Attempts int    `json:"attempts"`
}

// OTPStore keeps transient OTP records in Redis, keyed otp:<purpose>:<identity>.
// Expiry rides on the key TTL; the record itself only tracks the hash and the
// attempt counter.
type OTPStore struct {
	client *redis.Client
}

// NewOTPStore returns an OTPStore backed by the given Redis client.
func NewOTPStore(client *redis.Client) *OTPStore {
	return &OTPStore{client: client}
}

func otpKey(purpose, identity string) string {
	return "otp:" + purpose + ":" + identity
}

// Save stores the hash of a freshly issued code, replacing any outstanding
// record for the same identity and purpose.
func (s *OTPStore) Save(ctx context.Context, purpose, identity, codeHash string, ttl time.Duration) error {
	rec := otpRecord{CodeHash: codeHash}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, otpKey(purpose, identity), raw, ttl).Err()
}

// Consume checks code against the outstanding record inside a WATCH
// transaction, so concurrent attempts cannot stretch the attempt budget. A
// match deletes the record; a mismatch bumps the counter, and the attempt
// that reaches maxAttempts deletes the record and reports
// ErrOTPAttemptsExceeded.
func (s *OTPStore) Consume(ctx context.Context, purpose, identity, code string, maxAttempts int) error {
	const maxRetries = 4
	key := otpKey(purpose, identity)

	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			raw, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					return ErrOTPNotFound
				}
				return err
			}

			var rec otpRecord
			if err := json.Unmarshal(raw, &rec); err != nil {
				return err
			}

			if !OTPEqual(code, rec.CodeHash) {
				rec.Attempts++
				if rec.Attempts >= maxAttempts {
					_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return ErrOTPAttemptsExceeded
				}
				updated, err := json.Marshal(rec)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, redis.KeepTTL)
					return nil
				})
				if err != nil {
					return err
				}
				return ErrOTPMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrOTPNotFound
}
