package repository

import (
	"context"

	"go-clinic-scheduling/internal/domain/entity"
	domainRepo "go-clinic-scheduling/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type notificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) domainRepo.NotificationRepository {
	return &notificationRepository{db: db}
}

// Create inserts the record. A record whose id is already stored is left as is,
// so retrying a create with the same id is safe.
func (r *notificationRepository) Create(ctx context.Context, record *entity.NotificationRecord) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(record).Error
}

func (r *notificationRepository) FindByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]entity.NotificationRecord, error) {
	var records []entity.NotificationRecord
	query := conn(ctx, r.db).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// MarkRead flags a notification owned by userID as read.
// Returns affected rows: 0 when it does not exist or belongs to someone else.
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	result := conn(ctx, r.db).Model(&entity.NotificationRecord{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

type subscriptionRepository struct {
	db *gorm.DB
}

func NewSubscriptionRepository(db *gorm.DB) domainRepo.SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) FindByUserAndChannel(ctx context.Context, userID uuid.UUID, channel entity.Channel) ([]entity.NotificationSubscription, error) {
	var subs []entity.NotificationSubscription
	err := conn(ctx, r.db).
		Where("user_id = ? AND channel = ?", userID, channel).
		Order("created_at ASC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}
