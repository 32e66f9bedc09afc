package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore tracks consumed single-use token ids (jti claims) in Redis.
// MFA challenge completion and OAuth callbacks consume their token's jti
// exactly once; a second consume is a replay.
type NonceStore struct {
	client *redis.Client
}

// NewNonceStore returns a NonceStore backed by the given client.
func NewNonceStore(client *redis.Client) *NonceStore {
	return &NonceStore{client: client}
}

// Consume marks the nonce consumed and reports whether this call was the
// first. ttl must cover the signed token's remaining lifetime; after the
// token expires on its own the marker is no longer needed.
func (n *NonceStore) Consume(ctx context.Context, kind, nonce string, ttl time.Duration) (bool, error) {
	return n.client.SetNX(ctx, "nonce:"+kind+":"+nonce, 1, ttl).Result()
}
