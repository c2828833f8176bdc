package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type Cache struct {
	client *redis.Client
}

func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Client() *redis.Client {
	return c.client
}

const settlementLockTTL = 30 * time.Second

// AcquireSettlement takes the advisory per-booking settlement lock. The
// TTL bounds how long a crashed holder can block the fast path; the
// ledger constraint remains the real guard.
func (c *Cache) AcquireSettlement(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	res := c.client.SetNX(ctx, "settle:"+bookingID.String(), "1", settlementLockTTL)
	return res.Val(), res.Err()
}

func (c *Cache) ReleaseSettlement(ctx context.Context, bookingID uuid.UUID) error {
	return c.client.Del(ctx, "settle:"+bookingID.String()).Err()
}
