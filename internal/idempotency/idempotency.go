// Package idempotency caches terminal webhook HTTP responses keyed by
// payload digest. Only completed outcomes are cached so a settlement
// failure stays retryable by the gateway.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	redisadapter "github.com/tripovia/travel-payments/internal/adapters/redis"
)

type Idempotency struct {
	redis *redisadapter.Idempotency
	ttl   time.Duration
}

func NewIdempotency(redis *redisadapter.Idempotency, ttl time.Duration) *Idempotency {
	return &Idempotency{redis: redis, ttl: ttl}
}

type Response struct {
	Status int
	Result []byte
}

// Key derives the cache key for a webhook delivery from its provider and
// payload bytes.
func Key(providerName string, payload []byte) string {
	sum := sha256.Sum256(payload)
	return providerName + ":" + hex.EncodeToString(sum[:])
}

func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	resp, err := i.redis.Get(ctx, key)
	if err != nil || resp == nil {
		return nil, err
	}
	return &Response{Status: resp.Status, Result: resp.Result}, nil
}

func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	return i.redis.Set(ctx, key, redisadapter.IdempResponse{Status: resp.Status, Result: resp.Result}, i.ttl)
}
