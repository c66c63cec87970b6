package entity

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MinCancellationReasonLength is the minimum trimmed length of a cancellation reason
const MinCancellationReasonLength = 10

// Actor is the authenticated caller of a lifecycle operation
type Actor struct {
	UserID uuid.UUID
	RoleID int
}

func (a Actor) IsAdmin() bool {
	return a.RoleID == RoleIDAdmin
}

// IsAttendingDoctor checks if the actor is the doctor of the appointment
func (a Actor) IsAttendingDoctor(appt *Appointment) bool {
	return a.RoleID == RoleIDDoctor && a.UserID == appt.DoctorID
}

// IsOwningPatient checks if the actor is the patient of the appointment
func (a Actor) IsOwningPatient(appt *Appointment) bool {
	return a.RoleID == RoleIDPatient && a.UserID == appt.PatientID
}

// IsParticipant checks if the actor may see the appointment
func (a Actor) IsParticipant(appt *Appointment) bool {
	return a.IsAdmin() || a.IsAttendingDoctor(appt) || a.IsOwningPatient(appt)
}

// CanBook checks who may create an appointment for the given doctor and patient
func (a Actor) CanBook(doctorID, patientID uuid.UUID) bool {
	switch a.RoleID {
	case RoleIDAdmin:
		return true
	case RoleIDDoctor:
		return a.UserID == doctorID
	case RoleIDPatient:
		return a.UserID == patientID
	}
	return false
}

// NormalizeCancellationReason trims the reason and checks its minimum length
func NormalizeCancellationReason(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if utf8.RuneCountInString(trimmed) < MinCancellationReasonLength {
		return "", fmt.Errorf("%w: cancellation reason must have at least %d characters", ErrValidation, MinCancellationReasonLength)
	}
	return trimmed, nil
}

// Complete moves a scheduled appointment to completed.
// Only the attending doctor or an admin may do it, and not before the start time.
func (a *Appointment) Complete(actor Actor, now time.Time) error {
	if a.IsTerminal() {
		return fmt.Errorf("%w: appointment is already %s", ErrInvalidTransition, a.Status)
	}
	if !actor.IsAdmin() && !actor.IsAttendingDoctor(a) {
		return fmt.Errorf("%w: only the attending doctor or an admin can complete an appointment", ErrForbidden)
	}
	if now.Before(a.StartTime) {
		return fmt.Errorf("%w: appointment has not started yet", ErrInvalidTransition)
	}

	a.Status = AppointmentStatusCompleted
	a.CompletedAt = &now
	return nil
}

// Cancel moves a scheduled appointment to cancelled with a reason.
// The owning patient, the attending doctor or an admin may cancel.
func (a *Appointment) Cancel(actor Actor, reason string) error {
	trimmed, err := NormalizeCancellationReason(reason)
	if err != nil {
		return err
	}
	if a.IsTerminal() {
		return fmt.Errorf("%w: appointment is already %s", ErrInvalidTransition, a.Status)
	}
	if !actor.IsParticipant(a) {
		return fmt.Errorf("%w: not allowed to cancel this appointment", ErrForbidden)
	}

	a.Status = AppointmentStatusCancelled
	a.CancellationReason = &trimmed
	by := actor.UserID
	a.CancelledBy = &by
	return nil
}

// EnsureReschedulable checks that the appointment can move to a new time range
func (a *Appointment) EnsureReschedulable(actor Actor) error {
	if a.IsTerminal() {
		return fmt.Errorf("%w: appointment is already %s", ErrInvalidTransition, a.Status)
	}
	if !actor.IsParticipant(a) {
		return fmt.Errorf("%w: not allowed to reschedule this appointment", ErrForbidden)
	}
	return nil
}
