package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestNonceStore(t *testing.T) (*NonceStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewNonceStore(client), mr
}

func TestConsume_FirstWinsSecondLoses(t *testing.T) {
	store, _ := newTestNonceStore(t)
	ctx := context.Background()

	first, err := store.Consume(ctx, "mfa", "jti-1", time.Minute)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if !first {
		t.Fatal("first consume reported as replay")
	}
	second, err := store.Consume(ctx, "mfa", "jti-1", time.Minute)
	if err != nil {
		t.Fatalf("second Consume: %v", err)
	}
	if second {
		t.Fatal("replayed nonce reported as first use")
	}
}

func TestConsume_KindsIndependent(t *testing.T) {
	store, _ := newTestNonceStore(t)
	ctx := context.Background()

	if _, err := store.Consume(ctx, "mfa", "jti-1", time.Minute); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	first, err := store.Consume(ctx, "oauth", "jti-1", time.Minute)
	if err != nil {
		t.Fatalf("Consume other kind: %v", err)
	}
	if !first {
		t.Fatal("same jti under a different kind should be independent")
	}
}

func TestConsume_MarkerExpires(t *testing.T) {
	store, mr := newTestNonceStore(t)
	ctx := context.Background()

	if _, err := store.Consume(ctx, "mfa", "jti-1", time.Minute); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	mr.FastForward(time.Minute + time.Second)

	// The signed token is expired by now too, so reuse of the jti is
	// harmless; the marker just stops taking space.
	first, err := store.Consume(ctx, "mfa", "jti-1", time.Minute)
	if err != nil {
		t.Fatalf("Consume after expiry: %v", err)
	}
	if !first {
		t.Fatal("expired marker still blocking")
	}
}
