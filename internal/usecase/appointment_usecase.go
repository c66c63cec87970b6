package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go-clinic-scheduling/internal/converter"
	"go-clinic-scheduling/internal/delivery/dto"
	"go-clinic-scheduling/internal/delivery/http/middleware"
	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/domain/repository"
	"go-clinic-scheduling/internal/domain/schedule"
	"go-clinic-scheduling/internal/notification"
	"go-clinic-scheduling/internal/service"
	"go-clinic-scheduling/pkg/clock"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrActorNotFound = errors.New("user not found in context")
)

// EventNotifier fans appointment events out to users; satisfied by notification.Dispatcher
type EventNotifier interface {
	BulkDispatch(ctx context.Context, userIDs []uuid.UUID, msg notification.Message, channels []entity.Channel) map[uuid.UUID]notification.Outcomes
}

type AppointmentUsecase interface {
	CreateAppointment(ctx context.Context, req *dto.CreateAppointmentRequest) (*dto.AppointmentResponse, error)
	RescheduleAppointment(ctx context.Context, appointmentID uuid.UUID, req *dto.RescheduleAppointmentRequest) (*dto.AppointmentResponse, error)
	CancelAppointment(ctx context.Context, appointmentID uuid.UUID, req *dto.CancelAppointmentRequest) (*dto.AppointmentResponse, error)
	CompleteAppointment(ctx context.Context, appointmentID uuid.UUID) (*dto.AppointmentResponse, error)
	GetAppointment(ctx context.Context, appointmentID uuid.UUID) (*dto.AppointmentResponse, error)
	GetMyAppointments(ctx context.Context, status string) (*dto.AppointmentListResponse, error)
}

type appointmentUsecase struct {
	log              *logrus.Logger
	clock            clock.Clock
	opts             BookingOptions
	transactor       repository.Transactor
	appointmentRepo  repository.AppointmentRepository
	availabilityRepo repository.AvailabilityRepository
	doctorLocker     *service.DoctorLocker
	auditService     service.AuditService
	notifier         EventNotifier
}

func NewAppointmentUsecase(
	log *logrus.Logger,
	clk clock.Clock,
	opts BookingOptions,
	transactor repository.Transactor,
	appointmentRepo repository.AppointmentRepository,
	availabilityRepo repository.AvailabilityRepository,
	doctorLocker *service.DoctorLocker,
	auditService service.AuditService,
	notifier EventNotifier,
) AppointmentUsecase {
	return &appointmentUsecase{
		log:              log,
		clock:            clk,
		opts:             opts.withDefaults(),
		transactor:       transactor,
		appointmentRepo:  appointmentRepo,
		availabilityRepo: availabilityRepo,
		doctorLocker:     doctorLocker,
		auditService:     auditService,
		notifier:         notifier,
	}
}

// CreateAppointment books a time range with a doctor.
//
// Flow:
// 1. Validate input and that the caller may book for this doctor and patient
// 2. Lock the doctor (process mutex, then advisory lock inside the transaction)
// 3. Re-check the range against availability and other scheduled appointments
// 4. Insert the appointment and its audit row, commit
// 5. After unlocking, notify patient and doctor
func (u *appointmentUsecase) CreateAppointment(ctx context.Context, req *dto.CreateAppointmentRequest) (*dto.AppointmentResponse, error) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return nil, ErrActorNotFound
	}

	mode := entity.AppointmentMode(req.Mode)
	if !mode.IsValid() {
		return nil, fmt.Errorf("%w: mode must be in-person or virtual", entity.ErrValidation)
	}
	if req.DoctorID == uuid.Nil || req.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: doctor_id and patient_id are required", entity.ErrValidation)
	}
	want, err := u.requestedRange(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	if !actor.CanBook(req.DoctorID, req.PatientID) {
		return nil, fmt.Errorf("%w: not allowed to book for this doctor and patient", entity.ErrForbidden)
	}

	appt := &entity.Appointment{
		DoctorID:  req.DoctorID,
		PatientID: req.PatientID,
		StartTime: want.Start,
		EndTime:   want.End,
		Mode:      mode,
		Status:    entity.AppointmentStatusScheduled,
	}

	err = u.withDoctorLock(ctx, req.DoctorID, func(txCtx context.Context) error {
		if err := u.ensureBookable(txCtx, req.DoctorID, want, uuid.Nil); err != nil {
			return err
		}
		if err := u.appointmentRepo.Create(txCtx, appt); err != nil {
			return err
		}
		return u.auditService.LogCreate(txCtx, &actor.UserID, entity.AuditActionAppointmentCreate, "appointment", appt.ID.String(),
			converter.AppointmentToResponse(appt))
	})
	if err != nil {
		u.logFailure("create appointment", err)
		return nil, err
	}

	u.log.Infof("Appointment created: id=%s, doctor=%s, start=%s", appt.ID, appt.DoctorID, appt.StartTime.Format(time.RFC3339))
	u.notifyParticipants(ctx, appt, entity.EventAppointmentCreated, "Appointment booked",
		fmt.Sprintf("Your %s appointment is booked for %s", appt.Mode, u.formatTime(appt.StartTime)))

	return converter.AppointmentToResponse(appt), nil
}

// RescheduleAppointment moves a scheduled appointment to a new range in a single
// update, so the old range is never free before the new one is held. Reminders
// already sent for the old time are cleared.
func (u *appointmentUsecase) RescheduleAppointment(ctx context.Context, appointmentID uuid.UUID, req *dto.RescheduleAppointmentRequest) (*dto.AppointmentResponse, error) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return nil, ErrActorNotFound
	}

	want, err := u.requestedRange(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	current, err := u.findVisible(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}

	var updated *entity.Appointment
	err = u.withDoctorLock(ctx, current.DoctorID, func(txCtx context.Context) error {
		appt, err := u.appointmentRepo.FindByIDForUpdate(txCtx, appointmentID)
		if err != nil {
			return err
		}
		if appt == nil {
			return fmt.Errorf("%w: appointment %s", entity.ErrNotFound, appointmentID)
		}
		if err := appt.EnsureReschedulable(actor); err != nil {
			return err
		}
		if err := u.ensureBookable(txCtx, appt.DoctorID, want, appt.ID); err != nil {
			return err
		}

		rows, err := u.appointmentRepo.UpdateTimes(txCtx, appt.ID, want.Start, want.End)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: appointment is no longer scheduled", entity.ErrInvalidTransition)
		}

		old := converter.AppointmentToResponse(appt)
		appt.StartTime, appt.EndTime = want.Start, want.End
		appt.ReminderSentChannels = []string{}
		updated = appt
		return u.auditService.LogUpdate(txCtx, &actor.UserID, entity.AuditActionAppointmentReschedule, "appointment", appt.ID.String(),
			old, converter.AppointmentToResponse(appt))
	})
	if err != nil {
		u.logFailure("reschedule appointment", err)
		return nil, err
	}

	u.log.Infof("Appointment rescheduled: id=%s, start=%s", updated.ID, updated.StartTime.Format(time.RFC3339))
	u.notifyParticipants(ctx, updated, entity.EventAppointmentRescheduled, "Appointment rescheduled",
		fmt.Sprintf("Your appointment was moved to %s", u.formatTime(updated.StartTime)))

	return converter.AppointmentToResponse(updated), nil
}

// CancelAppointment cancels a scheduled appointment with a reason of at least
// ten characters. The freed range is bookable again right after commit.
func (u *appointmentUsecase) CancelAppointment(ctx context.Context, appointmentID uuid.UUID, req *dto.CancelAppointmentRequest) (*dto.AppointmentResponse, error) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return nil, ErrActorNotFound
	}
	if _, err := entity.NormalizeCancellationReason(req.Reason); err != nil {
		return nil, err
	}

	appt, err := u.transition(ctx, actor, appointmentID, entity.AuditActionAppointmentCancel, func(a *entity.Appointment) error {
		return a.Cancel(actor, req.Reason)
	})
	if err != nil {
		u.logFailure("cancel appointment", err)
		return nil, err
	}

	u.log.Infof("Appointment cancelled: id=%s, by=%s", appt.ID, actor.UserID)
	u.notifyParticipants(ctx, appt, entity.EventAppointmentCancelled, "Appointment cancelled",
		fmt.Sprintf("Your appointment on %s was cancelled: %s", u.formatTime(appt.StartTime), *appt.CancellationReason))

	return converter.AppointmentToResponse(appt), nil
}

// CompleteAppointment marks a started appointment as completed. No notification is sent.
func (u *appointmentUsecase) CompleteAppointment(ctx context.Context, appointmentID uuid.UUID) (*dto.AppointmentResponse, error) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return nil, ErrActorNotFound
	}

	now := u.clock.Now()
	appt, err := u.transition(ctx, actor, appointmentID, entity.AuditActionAppointmentComplete, func(a *entity.Appointment) error {
		return a.Complete(actor, now)
	})
	if err != nil {
		u.logFailure("complete appointment", err)
		return nil, err
	}

	u.log.Infof("Appointment completed: id=%s", appt.ID)
	return converter.AppointmentToResponse(appt), nil
}

func (u *appointmentUsecase) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (*dto.AppointmentResponse, error) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return nil, ErrActorNotFound
	}

	appt, err := u.findVisible(ctx, actor, appointmentID)
	if err != nil {
		return nil, err
	}
	return converter.AppointmentToResponse(appt), nil
}

// GetMyAppointments lists the caller's appointments as patient or doctor, newest first
func (u *appointmentUsecase) GetMyAppointments(ctx context.Context, status string) (*dto.AppointmentListResponse, error) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return nil, ErrActorNotFound
	}

	var filter *entity.AppointmentStatus
	if status != "" {
		s := entity.AppointmentStatus(status)
		switch s {
		case entity.AppointmentStatusScheduled, entity.AppointmentStatusCompleted, entity.AppointmentStatusCancelled:
			filter = &s
		default:
			return nil, fmt.Errorf("%w: unknown status %q", entity.ErrValidation, status)
		}
	}

	appts, err := u.appointmentRepo.FindByParticipant(ctx, actor.UserID, filter)
	if err != nil {
		u.log.Warnf("Failed to find appointments for user %s: %+v", actor.UserID, err)
		return nil, err
	}

	return &dto.AppointmentListResponse{
		Appointments: converter.AppointmentsToResponses(appts),
		Total:        len(appts),
	}, nil
}

// requestedRange validates a start/end pair: end after start, start not in the past
func (u *appointmentUsecase) requestedRange(start, end time.Time) (schedule.Range, error) {
	if start.IsZero() || end.IsZero() {
		return schedule.Range{}, fmt.Errorf("%w: start_time and end_time are required", entity.ErrValidation)
	}
	want := schedule.Range{Start: start, End: end}
	if want.IsEmpty() {
		return schedule.Range{}, fmt.Errorf("%w: end_time must be after start_time", entity.ErrValidation)
	}
	if start.Before(u.clock.Now()) {
		return schedule.Range{}, fmt.Errorf("%w: start_time is in the past", entity.ErrSlotUnavailable)
	}
	return want, nil
}

// withDoctorLock runs fn in a transaction while holding the doctor's process mutex
// and database advisory lock. The mutex is always taken first.
func (u *appointmentUsecase) withDoctorLock(ctx context.Context, doctorID uuid.UUID, fn func(txCtx context.Context) error) error {
	unlock := u.doctorLocker.Lock(doctorID)
	defer unlock()

	return u.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := u.appointmentRepo.LockDoctor(txCtx, doctorID); err != nil {
			return err
		}
		return fn(txCtx)
	})
}

// ensureBookable checks want against the doctor's availability on its dates and
// against every other scheduled appointment of the doctor. exclude is skipped.
func (u *appointmentUsecase) ensureBookable(ctx context.Context, doctorID uuid.UUID, want schedule.Range, exclude uuid.UUID) error {
	template, err := u.availabilityRepo.FindTemplateByDoctor(ctx, doctorID)
	if err != nil {
		return err
	}
	days := schedule.Dates(want.Start, want.End, u.opts.Location)
	overrides, err := u.availabilityRepo.FindOverrides(ctx, doctorID, days[0], days[len(days)-1])
	if err != nil {
		return err
	}
	if !schedule.FitsOneDate(want, u.opts.Location, template, overrides) {
		return fmt.Errorf("%w: %s - %s", entity.ErrSlotUnavailable, u.formatTime(want.Start), u.formatTime(want.End))
	}

	existing, err := u.appointmentRepo.FindScheduledByDoctor(ctx, doctorID, want.Start.Add(-u.opts.Buffer), want.End.Add(u.opts.Buffer))
	if err != nil {
		return err
	}
	for _, a := range existing {
		if a.ID == exclude {
			continue
		}
		if want.Overlaps(schedule.Range{Start: a.StartTime, End: a.EndTime}.Expand(u.opts.Buffer)) {
			return fmt.Errorf("%w: appointment %s holds %s", entity.ErrConflict, a.ID, u.formatTime(a.StartTime))
		}
	}
	return nil
}

// transition applies a lifecycle change under the doctor lock and a row lock, and
// persists it only if the stored status is still the one it was read with.
func (u *appointmentUsecase) transition(ctx context.Context, actor entity.Actor, appointmentID uuid.UUID, action string, apply func(a *entity.Appointment) error) (*entity.Appointment, error) {
	current, err := u.appointmentRepo.FindByID(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("%w: appointment %s", entity.ErrNotFound, appointmentID)
	}

	var result *entity.Appointment
	err = u.withDoctorLock(ctx, current.DoctorID, func(txCtx context.Context) error {
		appt, err := u.appointmentRepo.FindByIDForUpdate(txCtx, appointmentID)
		if err != nil {
			return err
		}
		if appt == nil {
			return fmt.Errorf("%w: appointment %s", entity.ErrNotFound, appointmentID)
		}

		old := converter.AppointmentToResponse(appt)
		from := appt.Status
		if err := apply(appt); err != nil {
			return err
		}

		rows, err := u.appointmentRepo.UpdateStatus(txCtx, appt, from)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: appointment changed concurrently", entity.ErrInvalidTransition)
		}

		result = appt
		return u.auditService.LogUpdate(txCtx, &actor.UserID, action, "appointment", appt.ID.String(), old, converter.AppointmentToResponse(appt))
	})
	return result, err
}

func (u *appointmentUsecase) findVisible(ctx context.Context, actor entity.Actor, appointmentID uuid.UUID) (*entity.Appointment, error) {
	appt, err := u.appointmentRepo.FindByID(ctx, appointmentID)
	if err != nil {
		u.log.Warnf("Failed to find appointment %s: %+v", appointmentID, err)
		return nil, err
	}
	if appt == nil {
		return nil, fmt.Errorf("%w: appointment %s", entity.ErrNotFound, appointmentID)
	}
	if !actor.IsParticipant(appt) {
		return nil, fmt.Errorf("%w: not a participant of this appointment", entity.ErrForbidden)
	}
	return appt, nil
}

// notifyParticipants sends the event to patient and doctor after the change is
// committed. Outcomes are logged only; they never change the operation result.
func (u *appointmentUsecase) notifyParticipants(ctx context.Context, appt *entity.Appointment, eventType, title, body string) {
	if u.notifier == nil {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.opts.NotifyTimeout)
	defer cancel()

	msg := notification.Message{
		EventType: eventType,
		Title:     title,
		Body:      body,
		Data: map[string]string{
			"appointment_id": appt.ID.String(),
			"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
			"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
			"status":         string(appt.Status),
		},
	}

	results := u.notifier.BulkDispatch(notifyCtx, appt.Participants(), msg, u.opts.EventChannels)
	for userID, outcomes := range results {
		for ch, outcome := range outcomes {
			if outcome.Status == notification.StatusFailed {
				u.log.Warnf("Failed to notify user %s of %s on %s: %s", userID, eventType, ch, outcome.Reason)
			}
		}
	}
}

func (u *appointmentUsecase) formatTime(t time.Time) string {
	return t.In(u.opts.Location).Format("Mon, 02 Jan 2006 15:04 MST")
}

// logFailure logs unexpected errors; domain rejections are returned quietly
func (u *appointmentUsecase) logFailure(op string, err error) {
	for _, expected := range []error{
		entity.ErrSlotUnavailable, entity.ErrConflict, entity.ErrInvalidTransition,
		entity.ErrValidation, entity.ErrNotFound, entity.ErrForbidden,
	} {
		if errors.Is(err, expected) {
			u.log.Debugf("Rejected %s: %v", op, err)
			return
		}
	}
	u.log.Warnf("Failed to %s: %+v", op, err)
}
