package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ubl-gate/core/pkg/tenant"
)

// Redis is a Store backed by Redis's atomic SETNX, with a TTL so a
// long-dead tenant's fingerprints eventually evict rather than growing
// the keyspace forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an already-configured *redis.Client. ttl of 0 means
// "never expire" (passed straight through to SET NX as no expiration).
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) InsertIfAbsent(ctx context.Context, tid tenant.ID, fp, wfCID string) (bool, string, error) {
	k := key(tid, fp)
	ok, err := r.client.SetNX(ctx, k, wfCID, r.ttl).Result()
	if err != nil {
		return false, "", fmt.Errorf("idempotency: redis SETNX: %w", err)
	}
	if ok {
		return true, "", nil
	}
	existing, err := r.client.Get(ctx, k).Result()
	if err != nil {
		return false, "", fmt.Errorf("idempotency: redis GET after SETNX miss: %w", err)
	}
	return false, existing, nil
}

var _ Store = (*Redis)(nil)
