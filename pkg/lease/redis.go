package lease

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "video-splitter:lease:"

// Redis shares leases between replicas that mount the same working
// directories. Each lease is a key with a TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func (r *Redis) Acquire(ctx context.Context, sessionID string) error {
	ok, err := r.client.SetNX(ctx, keyPrefix+sessionID, time.Now().Unix(), r.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire lease %s: %w", sessionID, err)
	}
	if !ok {
		return ErrHeld
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, keyPrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("release lease %s: %w", sessionID, err)
	}
	return nil
}

func (r *Redis) Active(ctx context.Context) (map[string]struct{}, error) {
	active := map[string]struct{}{}
	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		active[strings.TrimPrefix(iter.Val(), keyPrefix)] = struct{}{}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan leases: %w", err)
	}
	return active, nil
}
