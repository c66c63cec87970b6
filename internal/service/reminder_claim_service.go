package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisReminderLeaseKeyPrefix namespaces reminder leases
const RedisReminderLeaseKeyPrefix = "reminder:lease:"

// releaseLeaseScript deletes the lease only if it still holds the caller's token,
// so a tick whose lease already expired cannot drop a lease taken by a newer tick.
var releaseLeaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// RedisReminderClaimer hands out short leases on (appointment, reminder key) pairs so
// that overlapping reminder ticks, in one process or many, never dispatch the same
// reminder concurrently.
type RedisReminderClaimer struct {
	redisClient *redis.Client
	log         *logrus.Logger
}

func NewRedisReminderClaimer(redisClient *redis.Client, log *logrus.Logger) *RedisReminderClaimer {
	return &RedisReminderClaimer{
		redisClient: redisClient,
		log:         log,
	}
}

// Claim takes the lease with SET NX PX. ok is false when another tick holds it.
func (c *RedisReminderClaimer) Claim(ctx context.Context, appointmentID uuid.UUID, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.redisClient.SetNX(ctx, leaseKey(appointmentID, key), token, ttl).Result()
	if err != nil {
		c.log.Warnf("Failed to claim reminder lease %s/%s: %+v", appointmentID, key, err)
		return "", false, fmt.Errorf("claim reminder lease %s/%s: %w", appointmentID, key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release drops the lease if token still owns it
func (c *RedisReminderClaimer) Release(ctx context.Context, appointmentID uuid.UUID, key, token string) error {
	if err := releaseLeaseScript.Run(ctx, c.redisClient, []string{leaseKey(appointmentID, key)}, token).Err(); err != nil {
		c.log.Warnf("Failed to release reminder lease %s/%s: %+v", appointmentID, key, err)
		return fmt.Errorf("release reminder lease %s/%s: %w", appointmentID, key, err)
	}
	return nil
}

func leaseKey(appointmentID uuid.UUID, key string) string {
	return fmt.Sprintf("%s%s:%s", RedisReminderLeaseKeyPrefix, appointmentID, key)
}
