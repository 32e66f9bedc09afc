// Package cache provides the Redis client used for rate counters, transient
// OTP records and OAuth state nonces.
package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// New opens a Redis client and verifies it with a ping. Caller must call Close when done.
func New(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
