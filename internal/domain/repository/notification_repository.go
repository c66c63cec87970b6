package repository

import (
	"context"

	"go-clinic-scheduling/internal/domain/entity"

	"github.com/google/uuid"
)

type NotificationRepository interface {
	// Create is a no-op when a record with the same id already exists
	Create(ctx context.Context, record *entity.NotificationRecord) error
	FindByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]entity.NotificationRecord, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (int64, error)
}

// SubscriptionRepository is a read-only view of the delivery targets registered
// by the notification-registration flow.
type SubscriptionRepository interface {
	FindByUserAndChannel(ctx context.Context, userID uuid.UUID, channel entity.Channel) ([]entity.NotificationSubscription, error)
}
