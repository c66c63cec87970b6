package repository

import (
	"context"
	"time"

	"go-clinic-scheduling/internal/domain/entity"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	// LockDoctor serializes booking-affecting writes for one doctor until the
	// surrounding transaction ends.
	LockDoctor(ctx context.Context, doctorID uuid.UUID) error
	Create(ctx context.Context, appt *entity.Appointment) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Appointment, error)
	// FindScheduledByDoctor returns scheduled appointments overlapping [from, to).
	FindScheduledByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]entity.Appointment, error)
	FindByParticipant(ctx context.Context, userID uuid.UUID, status *entity.AppointmentStatus) ([]entity.Appointment, error)
	// UpdateTimes moves a scheduled appointment and clears its sent reminders.
	// Returns affected rows: 0 when the appointment is no longer scheduled.
	UpdateTimes(ctx context.Context, id uuid.UUID, start, end time.Time) (int64, error)
	// UpdateStatus persists a lifecycle transition only if the stored status is still from.
	UpdateStatus(ctx context.Context, appt *entity.Appointment, from entity.AppointmentStatus) (int64, error)
	// FindDueForReminder returns one page of scheduled appointments that still miss a
	// reminder key of the band they fall in, ordered by (start_time, id).
	FindDueForReminder(ctx context.Context, scan entity.ReminderScan) ([]entity.Appointment, error)
	// MarkReminderSent adds key to reminder_sent_channels if absent.
	// Reports false when the key was already there or the row is gone.
	MarkReminderSent(ctx context.Context, id uuid.UUID, key string) (bool, error)
}
