// Package ratelimit provides fixed-window counters in Redis, keyed per action
// and subject. Increment and expiry happen in one Lua call, so a window can
// never be created without its TTL.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLimited is returned when the subject is over budget for the action.
var ErrLimited = errors.New("rate limited")

// Action names a guarded operation.
type Action string

const (
	ActionLogin     Action = "login"
	ActionRefresh   Action = "refresh"
	ActionOTPSend   Action = "otp_send"
	ActionMfaVerify Action = "mfa_verify"
)

// Limit is the per-action budget: Max events per fixed Window.
type Limit struct {
	Max    int
	Window time.Duration
}

// hitScript increments the counter and sets the window TTL when the counter is
// new. Returns the count after increment.
var hitScript = redis.NewScript(`
local c = redis.call('INCR', KEYS[1])
if c == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return c
`)

// Limiter applies per-action fixed-window limits using a shared Redis client.
type Limiter struct {
	client *redis.Client
	limits map[Action]Limit
}

// New returns a Limiter with the given per-action limits. Actions without an
// entry are unlimited.
func New(client *redis.Client, limits map[Action]Limit) *Limiter {
	return &Limiter{client: client, limits: limits}
}

func key(action Action, subject string) string {
	return fmt.Sprintf("rl:%s:%s", action, subject)
}

// Check reports whether the subject is already over budget without counting a
// new event. Used before attempting work whose failure would be counted by Hit.
func (l *Limiter) Check(ctx context.Context, action Action, subject string) error {
	limit, ok := l.limits[action]
	if !ok {
		return nil
	}
	n, err := l.client.Get(ctx, key(action, subject)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return err
	}
	if n >= limit.Max {
		return ErrLimited
	}
	return nil
}

// Hit counts one event and returns the count within the current window.
func (l *Limiter) Hit(ctx context.Context, action Action, subject string) (int64, error) {
	limit, ok := l.limits[action]
	if !ok {
		return 0, nil
	}
	n, err := hitScript.Run(ctx, l.client, []string{key(action, subject)}, limit.Window.Milliseconds()).Int64()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Allow counts one event and returns ErrLimited when it exceeds the budget.
// Used where the attempt itself is the counted event (OTP sends, refreshes).
func (l *Limiter) Allow(ctx context.Context, action Action, subject string) error {
	limit, ok := l.limits[action]
	if !ok {
		return nil
	}
	n, err := l.Hit(ctx, action, subject)
	if err != nil {
		return err
	}
	if n > int64(limit.Max) {
		return ErrLimited
	}
	return nil
}

// Reset clears the subject's window for the action. Called on success where
// the flow forgives earlier failures (a correct password clears login strikes).
func (l *Limiter) Reset(ctx context.Context, action Action, subject string) error {
	if _, ok := l.limits[action]; !ok {
		return nil
	}
	return l.client.Del(ctx, key(action, subject)).Err()
}
