// Package memory provides map-backed repositories used by tests and local runs
// without PostgreSQL. They mirror the conditional-update semantics of the gorm
// implementations; they do not enforce the appointment exclusion constraint.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"go-clinic-scheduling/internal/domain/entity"
	domainRepo "go-clinic-scheduling/internal/domain/repository"

	"github.com/google/uuid"
)

type Transactor struct{}

func (Transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ domainRepo.Transactor = Transactor{}

// AppointmentRepository

type AppointmentRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]*entity.Appointment
}

func NewAppointmentRepository() *AppointmentRepository {
	return &AppointmentRepository{items: make(map[uuid.UUID]*entity.Appointment)}
}

var _ domainRepo.AppointmentRepository = (*AppointmentRepository)(nil)

func (r *AppointmentRepository) LockDoctor(ctx context.Context, doctorID uuid.UUID) error {
	return nil
}

func (r *AppointmentRepository) Create(ctx context.Context, appt *entity.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if appt.ID == uuid.Nil {
		appt.ID = uuid.New()
	}
	now := time.Now()
	appt.CreatedAt, appt.UpdatedAt = now, now
	if appt.ReminderSentChannels == nil {
		appt.ReminderSentChannels = []string{}
	}
	r.items[appt.ID] = appt.Clone()
	return nil
}

func (r *AppointmentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.items[id]; ok {
		return a.Clone(), nil
	}
	return nil, nil
}

func (r *AppointmentRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Appointment, error) {
	return r.FindByID(ctx, id)
}

func (r *AppointmentRepository) FindScheduledByDoctor(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]entity.Appointment, error) {
	return r.filter(func(a *entity.Appointment) bool {
		return a.DoctorID == doctorID && a.IsScheduled() && a.StartTime.Before(to) && a.EndTime.After(from)
	}, true), nil
}

func (r *AppointmentRepository) FindByParticipant(ctx context.Context, userID uuid.UUID, status *entity.AppointmentStatus) ([]entity.Appointment, error) {
	return r.filter(func(a *entity.Appointment) bool {
		if a.PatientID != userID && a.DoctorID != userID {
			return false
		}
		return status == nil || a.Status == *status
	}, false), nil
}

func (r *AppointmentRepository) UpdateTimes(ctx context.Context, id uuid.UUID, start, end time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || !a.IsScheduled() {
		return 0, nil
	}
	a.StartTime, a.EndTime = start, end
	a.ReminderSentChannels = []string{}
	a.UpdatedAt = time.Now()
	return 1, nil
}

func (r *AppointmentRepository) UpdateStatus(ctx context.Context, appt *entity.Appointment, from entity.AppointmentStatus) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[appt.ID]
	if !ok || a.Status != from {
		return 0, nil
	}
	updated := appt.Clone()
	a.Status = updated.Status
	a.CancellationReason = updated.CancellationReason
	a.CancelledBy = updated.CancelledBy
	a.CompletedAt = updated.CompletedAt
	a.UpdatedAt = time.Now()
	return 1, nil
}

func (r *AppointmentRepository) FindDueForReminder(ctx context.Context, scan entity.ReminderScan) ([]entity.Appointment, error) {
	due := r.filter(func(a *entity.Appointment) bool {
		return scan.Matches(a) && scan.AfterCursor(a)
	}, true)
	sort.SliceStable(due, func(i, j int) bool {
		if !due[i].StartTime.Equal(due[j].StartTime) {
			return due[i].StartTime.Before(due[j].StartTime)
		}
		return due[i].ID.String() < due[j].ID.String()
	})
	if scan.Limit > 0 && len(due) > scan.Limit {
		due = due[:scan.Limit]
	}
	return due, nil
}

func (r *AppointmentRepository) MarkReminderSent(ctx context.Context, id uuid.UUID, key string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[id]
	if !ok || a.HasReminder(key) {
		return false, nil
	}
	a.ReminderSentChannels = append(a.ReminderSentChannels, key)
	return true, nil
}

// All returns a snapshot of every stored appointment ordered by start time
func (r *AppointmentRepository) All() []entity.Appointment {
	return r.filter(func(*entity.Appointment) bool { return true }, true)
}

func (r *AppointmentRepository) filter(keep func(a *entity.Appointment) bool, ascending bool) []entity.Appointment {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Appointment
	for _, a := range r.items {
		if keep(a) {
			out = append(out, *a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if ascending {
			return out[i].StartTime.Before(out[j].StartTime)
		}
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out
}

// AvailabilityRepository

type AvailabilityRepository struct {
	mu        sync.Mutex
	nextID    int
	templates map[uuid.UUID][]entity.DoctorAvailability
	overrides map[int]entity.BusyOverride
}

func NewAvailabilityRepository() *AvailabilityRepository {
	return &AvailabilityRepository{
		templates: make(map[uuid.UUID][]entity.DoctorAvailability),
		overrides: make(map[int]entity.BusyOverride),
	}
}

var _ domainRepo.AvailabilityRepository = (*AvailabilityRepository)(nil)

func (r *AvailabilityRepository) FindTemplateByDoctor(ctx context.Context, doctorID uuid.UUID) ([]entity.DoctorAvailability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.DoctorAvailability(nil), r.templates[doctorID]...), nil
}

func (r *AvailabilityRepository) ReplaceTemplate(ctx context.Context, doctorID uuid.UUID, rows []entity.DoctorAvailability) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := make([]entity.DoctorAvailability, len(rows))
	for i, row := range rows {
		r.nextID++
		row.ID = r.nextID
		row.DoctorID = doctorID
		rows[i] = row
		stored[i] = row
	}
	r.templates[doctorID] = stored
	return nil
}

func (r *AvailabilityRepository) FindOverrides(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]entity.BusyOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lo, hi := from.Format("2006-01-02"), to.Format("2006-01-02")
	var out []entity.BusyOverride
	for _, o := range r.overrides {
		if o.DoctorID == doctorID && o.DateKey() >= lo && o.DateKey() <= hi {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *AvailabilityRepository) CreateOverride(ctx context.Context, override *entity.BusyOverride) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	override.ID = r.nextID
	override.CreatedAt = time.Now()
	r.overrides[override.ID] = *override
	return nil
}

func (r *AvailabilityRepository) FindOverrideByID(ctx context.Context, id int) (*entity.BusyOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.overrides[id]; ok {
		return &o, nil
	}
	return nil, nil
}

func (r *AvailabilityRepository) DeleteOverride(ctx context.Context, id int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.overrides[id]; !ok {
		return 0, nil
	}
	delete(r.overrides, id)
	return 1, nil
}

// NotificationRepository

type NotificationRepository struct {
	mu      sync.Mutex
	records []entity.NotificationRecord
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

var _ domainRepo.NotificationRepository = (*NotificationRepository)(nil)

func (r *NotificationRepository) Create(ctx context.Context, record *entity.NotificationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	for _, existing := range r.records {
		if existing.ID == record.ID {
			return nil
		}
	}
	record.CreatedAt = time.Now()
	r.records = append(r.records, *record)
	return nil
}

func (r *NotificationRepository) FindByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]entity.NotificationRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.NotificationRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if rec.UserID != userID || (unreadOnly && rec.IsRead) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		if r.records[i].ID == id && r.records[i].UserID == userID {
			r.records[i].IsRead = true
			return 1, nil
		}
	}
	return 0, nil
}

// Records returns every stored record in insertion order
func (r *NotificationRepository) Records() []entity.NotificationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.NotificationRecord(nil), r.records...)
}

// SubscriptionRepository

type SubscriptionRepository struct {
	mu   sync.Mutex
	subs []entity.NotificationSubscription
}

func NewSubscriptionRepository() *SubscriptionRepository {
	return &SubscriptionRepository{}
}

var _ domainRepo.SubscriptionRepository = (*SubscriptionRepository)(nil)

func (r *SubscriptionRepository) Add(userID uuid.UUID, channel entity.Channel, target entity.JSON) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, entity.NotificationSubscription{
		ID: uuid.New(), UserID: userID, Channel: channel, Target: target, CreatedAt: time.Now(),
	})
}

func (r *SubscriptionRepository) FindByUserAndChannel(ctx context.Context, userID uuid.UUID, channel entity.Channel) ([]entity.NotificationSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.NotificationSubscription
	for _, s := range r.subs {
		if s.UserID == userID && s.Channel == channel {
			out = append(out, s)
		}
	}
	return out, nil
}

// AuditLogRepository

type AuditLogRepository struct {
	mu   sync.Mutex
	logs []entity.AuditLog
}

func NewAuditLogRepository() *AuditLogRepository {
	return &AuditLogRepository{}
}

var _ domainRepo.AuditLogRepository = (*AuditLogRepository)(nil)

func (r *AuditLogRepository) Create(ctx context.Context, log *entity.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	log.ID = int64(len(r.logs) + 1)
	log.CreatedAt = time.Now()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *AuditLogRepository) FindAll(ctx context.Context, filter entity.AuditLogFilter) ([]entity.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.AuditLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		if !filter.Matches(&r.logs[i]) {
			continue
		}
		out = append(out, r.logs[i])
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (r *AuditLogRepository) FindByID(ctx context.Context, id int64) (*entity.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.logs {
		if l.ID == id {
			return &l, nil
		}
	}
	return nil, nil
}
