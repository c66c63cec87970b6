package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel identifies a notification delivery channel
type Channel string

const (
	ChannelInApp     Channel = "in_app"
	ChannelPush      Channel = "push"
	ChannelMessaging Channel = "messaging"
)

// AllChannels lists every channel the dispatcher knows about
var AllChannels = []Channel{ChannelInApp, ChannelPush, ChannelMessaging}

func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelInApp, ChannelPush, ChannelMessaging:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown notification channel %q", ErrValidation, s)
}

// ParseChannels parses a list of channel names, dropping duplicates
func ParseChannels(names []string) ([]Channel, error) {
	seen := make(map[Channel]bool, len(names))
	channels := make([]Channel, 0, len(names))
	for _, name := range names {
		ch, err := ParseChannel(name)
		if err != nil {
			return nil, err
		}
		if seen[ch] {
			continue
		}
		seen[ch] = true
		channels = append(channels, ch)
	}
	return channels, nil
}

// Notification event types
const (
	EventAppointmentCreated     = "appointment.created"
	EventAppointmentRescheduled = "appointment.rescheduled"
	EventAppointmentCancelled   = "appointment.cancelled"
	EventAppointmentReminder    = "appointment.reminder"
)

// NotificationRecord is the in-app notification shown on the user's dashboard
type NotificationRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	EventType string    `gorm:"type:varchar(100);not null" json:"event_type"`
	IsRead    bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (NotificationRecord) TableName() string {
	return "notifications"
}

// NotificationSubscription is a delivery target registered by a user for one channel.
// For push the target holds endpoint, p256dh and auth; for messaging it holds phone.
type NotificationSubscription struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Channel   Channel   `gorm:"type:varchar(20);not null" json:"channel"`
	Target    JSON      `gorm:"type:jsonb;not null" json:"target"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (NotificationSubscription) TableName() string {
	return "notification_subscriptions"
}

// TargetString returns a string field of the target, or "" when absent
func (s *NotificationSubscription) TargetString(key string) string {
	if v, ok := s.Target[key].(string); ok {
		return v
	}
	return ""
}
