package repository

import (
	"context"
	"time"

	"go-clinic-scheduling/internal/domain/entity"

	"github.com/google/uuid"
)

type AvailabilityRepository interface {
	FindTemplateByDoctor(ctx context.Context, doctorID uuid.UUID) ([]entity.DoctorAvailability, error)
	// ReplaceTemplate deletes the doctor's weekly rows and inserts rows in their place.
	ReplaceTemplate(ctx context.Context, doctorID uuid.UUID, rows []entity.DoctorAvailability) error
	// FindOverrides returns overrides dated within [from, to], both inclusive dates.
	FindOverrides(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]entity.BusyOverride, error)
	CreateOverride(ctx context.Context, override *entity.BusyOverride) error
	FindOverrideByID(ctx context.Context, id int) (*entity.BusyOverride, error)
	DeleteOverride(ctx context.Context, id int) (int64, error)
}
