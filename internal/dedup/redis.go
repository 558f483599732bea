package dedup

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "paygate:webhook:event:"

// redisGuard stores event ids in redis with a TTL so deduplication survives
// restarts and is shared across instances.
type redisGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisGuard returns a Guard backed by redis SET NX with expiry.
func NewRedisGuard(client *redis.Client, ttl time.Duration) (Guard, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &redisGuard{client: client, ttl: ttl}, nil
}

func (g *redisGuard) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	n, err := g.client.Exists(ctx, keyPrefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (g *redisGuard) Record(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	return g.client.SetNX(ctx, keyPrefix+eventID, 1, g.ttl).Err()
}
