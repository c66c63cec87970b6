package repository

import (
	"context"
	"errors"
	"time"

	"go-clinic-scheduling/internal/domain/entity"
	domainRepo "go-clinic-scheduling/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type availabilityRepository struct {
	db *gorm.DB
}

func NewAvailabilityRepository(db *gorm.DB) domainRepo.AvailabilityRepository {
	return &availabilityRepository{db: db}
}

func (r *availabilityRepository) FindTemplateByDoctor(ctx context.Context, doctorID uuid.UUID) ([]entity.DoctorAvailability, error) {
	var rows []entity.DoctorAvailability
	err := conn(ctx, r.db).
		Where("doctor_id = ?", doctorID).
		Order("day_of_week ASC, start_time ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *availabilityRepository) ReplaceTemplate(ctx context.Context, doctorID uuid.UUID, rows []entity.DoctorAvailability) error {
	db := conn(ctx, r.db)
	if err := db.Where("doctor_id = ?", doctorID).Delete(&entity.DoctorAvailability{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	return translateError(db.Create(&rows).Error)
}

func (r *availabilityRepository) FindOverrides(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]entity.BusyOverride, error) {
	var overrides []entity.BusyOverride
	err := conn(ctx, r.db).
		Where("doctor_id = ? AND override_date >= ? AND override_date <= ?", doctorID, from.Format("2006-01-02"), to.Format("2006-01-02")).
		Order("override_date ASC, start_time ASC").
		Find(&overrides).Error
	if err != nil {
		return nil, err
	}
	return overrides, nil
}

func (r *availabilityRepository) CreateOverride(ctx context.Context, override *entity.BusyOverride) error {
	return translateError(conn(ctx, r.db).Create(override).Error)
}

func (r *availabilityRepository) FindOverrideByID(ctx context.Context, id int) (*entity.BusyOverride, error) {
	var override entity.BusyOverride
	err := conn(ctx, r.db).Where("id = ?", id).First(&override).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &override, nil
}

func (r *availabilityRepository) DeleteOverride(ctx context.Context, id int) (int64, error) {
	affected := conn(ctx, r.db).Where("id = ?", id).Delete(&entity.BusyOverride{})
	return affected.RowsAffected, affected.Error
}
