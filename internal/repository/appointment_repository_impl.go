package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-clinic-scheduling/internal/domain/entity"
	domainRepo "go-clinic-scheduling/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type appointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) domainRepo.AppointmentRepository {
	return &appointmentRepository{db: db}
}

// LockDoctor takes a transaction-scoped advisory lock on the doctor id so that
// every instance of the service serializes bookings for that doctor.
func (r *appointmentRepository) LockDoctor(ctx context.Context, doctorID uuid.UUID) error {
	return conn(ctx, r.db).Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", doctorID.String()).Error
}

func (r *appointmentRepository) Create(ctx context.Context, appt *entity.Appointment) error {
	if appt.ReminderSentChannels == nil {
		appt.ReminderSentChannels = []string{}
	}
	return translateError(conn(ctx, r.db).Create(appt).Error)
}

func (r *appointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	return r.first(conn(ctx, r.db), id)
}

func (r *appointmentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	return r.first(conn(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *appointmentRepository) first(db *gorm.DB, id uuid.UUID) (*entity.Appointment, error) {
	var appt entity.Appointment
	err := db.Where("id = ?", id).First(&appt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &appt, nil
}

func (r *appointmentRepository) FindScheduledByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]entity.Appointment, error) {
	var appts []entity.Appointment
	err := conn(ctx, r.db).
		Where("doctor_id = ? AND status = ? AND start_time < ? AND end_time > ?", doctorID, entity.AppointmentStatusScheduled, to, from).
		Order("start_time ASC").
		Find(&appts).Error
	if err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *appointmentRepository) FindByParticipant(ctx context.Context, userID uuid.UUID, status *entity.AppointmentStatus) ([]entity.Appointment, error) {
	var appts []entity.Appointment
	query := conn(ctx, r.db).Where("patient_id = ? OR doctor_id = ?", userID, userID)
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	err := query.Order("start_time DESC").Find(&appts).Error
	if err != nil {
		return nil, err
	}
	return appts, nil
}

func (r *appointmentRepository) UpdateTimes(ctx context.Context, id uuid.UUID, start, end time.Time) (int64, error) {
	result := conn(ctx, r.db).Model(&entity.Appointment{}).
		Where("id = ? AND status = ?", id, entity.AppointmentStatusScheduled).
		Updates(map[string]interface{}{
			"start_time":             start,
			"end_time":               end,
			"reminder_sent_channels": gorm.Expr("'{}'::text[]"),
			"updated_at":             time.Now(),
		})
	return result.RowsAffected, translateError(result.Error)
}

// UpdateStatus writes the transition only if nobody moved the appointment first.
// Returns affected rows: 1 = applied, 0 = stored status differs from from.
func (r *appointmentRepository) UpdateStatus(ctx context.Context, appt *entity.Appointment, from entity.AppointmentStatus) (int64, error) {
	result := conn(ctx, r.db).Model(&entity.Appointment{}).
		Where("id = ? AND status = ?", appt.ID, from).
		Updates(map[string]interface{}{
			"status":              appt.Status,
			"cancellation_reason": appt.CancellationReason,
			"cancelled_by":        appt.CancelledBy,
			"completed_at":        appt.CompletedAt,
			"updated_at":          time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *appointmentRepository) FindDueForReminder(ctx context.Context, scan entity.ReminderScan) ([]entity.Appointment, error) {
	var bands []string
	var args []interface{}
	for _, band := range scan.Bands {
		if len(band.Keys) == 0 {
			continue
		}
		lower := "start_time > ?"
		if band.IncludeAfter {
			lower = "start_time >= ?"
		}
		bands = append(bands, "("+lower+" AND start_time <= ? AND NOT (reminder_sent_channels @> ?::text[]))")
		args = append(args, band.After, band.Until, pq.StringArray(band.Keys))
	}
	if len(bands) == 0 {
		return nil, nil
	}

	var appts []entity.Appointment
	query := conn(ctx, r.db).
		Where("status = ?", entity.AppointmentStatusScheduled).
		Where("("+strings.Join(bands, " OR ")+")", args...).
		Order("start_time ASC, id ASC")
	if scan.HasCursor() {
		query = query.Where("(start_time, id) > (?, ?)", scan.CursorStart, scan.CursorID)
	}
	if scan.Limit > 0 {
		query = query.Limit(scan.Limit)
	}
	if err := query.Find(&appts).Error; err != nil {
		return nil, err
	}
	return appts, nil
}

// MarkReminderSent is a single conditional UPDATE, so two ticks racing on the
// same key cannot both succeed.
func (r *appointmentRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, key string) (bool, error) {
	result := conn(ctx, r.db).Exec(
		`UPDATE appointments
		    SET reminder_sent_channels = array_append(reminder_sent_channels, ?), updated_at = NOW()
		  WHERE id = ? AND NOT (? = ANY(reminder_sent_channels))`,
		key, id, key,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
