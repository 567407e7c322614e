package ticket

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
)

// Cooldown grants an action at most once per key until its TTL lapses.
type Cooldown interface {
	// Acquire returns true if the key was free and is now held for ttl.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisCooldown stores cooldown keys with SET NX EX.
type RedisCooldown struct {
	client rueidis.Client
	prefix string
}

// NewRedisCooldown creates a RedisCooldown whose keys start with prefix.
func NewRedisCooldown(client rueidis.Client, prefix string) *RedisCooldown {
	return &RedisCooldown{client: client, prefix: prefix}
}

// Acquire implements Cooldown.
func (c *RedisCooldown) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}

	err := c.client.Do(ctx, c.client.B().Set().
		Key(c.prefix+key).
		Value("1").
		Nx().
		ExSeconds(seconds).
		Build()).Error()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return false, nil
		}

		return false, fmt.Errorf("failed to acquire cooldown %s: %w", key, err)
	}

	return true, nil
}
