package usecase

import (
	"context"
	"fmt"

	"go-clinic-scheduling/internal/converter"
	"go-clinic-scheduling/internal/delivery/dto"
	"go-clinic-scheduling/internal/delivery/http/middleware"
	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// NotificationUsecase serves the in-app notification dashboard
type NotificationUsecase interface {
	GetMyNotifications(ctx context.Context, unreadOnly bool, limit int) (*dto.NotificationListResponse, error)
	MarkAsRead(ctx context.Context, notificationID uuid.UUID) error
}

type notificationUsecase struct {
	log              *logrus.Logger
	notificationRepo repository.NotificationRepository
}

func NewNotificationUsecase(log *logrus.Logger, notificationRepo repository.NotificationRepository) NotificationUsecase {
	return &notificationUsecase{
		log:              log,
		notificationRepo: notificationRepo,
	}
}

func (u *notificationUsecase) GetMyNotifications(ctx context.Context, unreadOnly bool, limit int) (*dto.NotificationListResponse, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return nil, ErrActorNotFound
	}
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	records, err := u.notificationRepo.FindByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		u.log.Warnf("Failed to find notifications for user %s: %+v", userID, err)
		return nil, err
	}

	return &dto.NotificationListResponse{
		Notifications: converter.NotificationsToResponses(records),
		Total:         len(records),
	}, nil
}

func (u *notificationUsecase) MarkAsRead(ctx context.Context, notificationID uuid.UUID) error {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return ErrActorNotFound
	}

	rows, err := u.notificationRepo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		u.log.Warnf("Failed to mark notification %s read: %+v", notificationID, err)
		return err
	}
	if rows == 0 {
		return fmt.Errorf("%w: notification %s", entity.ErrNotFound, notificationID)
	}
	return nil
}
