package ticket_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/shadowdev/shadowbot/internal/ticket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCooldown(t *testing.T) (*ticket.RedisCooldown, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return ticket.NewRedisCooldown(client, "test:"), mr
}

func TestRedisCooldownAcquire(t *testing.T) {
	t.Parallel()

	cooldown, mr := setupCooldown(t)
	ctx := t.Context()

	ok, err := cooldown.Acquire(ctx, "a", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cooldown.Acquire(ctx, "a", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok, "second acquire within ttl must fail")

	ok, err = cooldown.Acquire(ctx, "b", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "keys are independent")

	assert.True(t, mr.Exists("test:a"))
	assert.Equal(t, 30*time.Second, mr.TTL("test:a"))

	mr.FastForward(31 * time.Second)

	ok, err = cooldown.Acquire(ctx, "a", 30*time.Second)
	require.NoError(t, err)
	assert.True(t, ok, "key is free again after ttl")
}

func TestRedisCooldownMinimumTTL(t *testing.T) {
	t.Parallel()

	cooldown, mr := setupCooldown(t)

	ok, err := cooldown.Acquire(t.Context(), "short", 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Second, mr.TTL("test:short"))
}
