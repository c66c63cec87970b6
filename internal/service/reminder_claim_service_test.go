package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real Redis when TEST_REDIS_ADDR is set, e.g. localhost:6379.
func redisForTest(t *testing.T) *redis.Client {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisReminderClaimer_ClaimIsExclusive(t *testing.T) {
	client := redisForTest(t)
	claimer := NewRedisReminderClaimer(client, quietLogger())
	ctx := context.Background()
	apptID := uuid.New()

	token, ok, err := claimer.Claim(ctx, apptID, "30m:push", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = claimer.Claim(ctx, apptID, "30m:push", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must wait for release")

	require.NoError(t, claimer.Release(ctx, apptID, "30m:push", "someone-else"))
	_, ok, _ = claimer.Claim(ctx, apptID, "30m:push", time.Minute)
	assert.False(t, ok, "release with a foreign token is a no-op")

	require.NoError(t, claimer.Release(ctx, apptID, "30m:push", token))
	_, ok, err = claimer.Claim(ctx, apptID, "30m:push", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaseKey(t *testing.T) {
	id := uuid.MustParse("6f1c1a3e-3a53-4a8e-9a55-1f5b1c9b2f10")
	assert.Equal(t, "reminder:lease:6f1c1a3e-3a53-4a8e-9a55-1f5b1c9b2f10:24h:in_app", leaseKey(id, "24h:in_app"))
}
