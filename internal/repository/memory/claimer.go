package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReminderClaimer is an in-process lease table with the same contract as the
// Redis claimer: one holder per (appointment, key) until release or expiry.
type ReminderClaimer struct {
	mu     sync.Mutex
	now    func() time.Time
	leases map[string]lease
}

type lease struct {
	token     string
	expiresAt time.Time
}

func NewReminderClaimer(now func() time.Time) *ReminderClaimer {
	if now == nil {
		now = time.Now
	}
	return &ReminderClaimer{now: now, leases: make(map[string]lease)}
}

func (c *ReminderClaimer) Claim(ctx context.Context, appointmentID uuid.UUID, key string, ttl time.Duration) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := appointmentID.String() + ":" + key
	now := c.now()
	if l, ok := c.leases[k]; ok && now.Before(l.expiresAt) {
		return "", false, nil
	}
	token := uuid.NewString()
	c.leases[k] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, true, nil
}

func (c *ReminderClaimer) Release(ctx context.Context, appointmentID uuid.UUID, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := appointmentID.String() + ":" + key
	if l, ok := c.leases[k]; ok && l.token == token {
		delete(c.leases, k)
	}
	return nil
}
