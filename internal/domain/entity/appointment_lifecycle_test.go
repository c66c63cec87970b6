package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScheduled() *Appointment {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &Appointment{
		ID:        uuid.New(),
		DoctorID:  uuid.New(),
		PatientID: uuid.New(),
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Mode:      AppointmentModeInPerson,
		Status:    AppointmentStatusScheduled,
	}
}

func TestComplete(t *testing.T) {
	appt := newScheduled()
	doctor := Actor{UserID: appt.DoctorID, RoleID: RoleIDDoctor}

	err := appt.Complete(doctor, appt.StartTime.Add(-time.Minute))
	assert.ErrorIs(t, err, ErrInvalidTransition, "cannot complete before start")

	err = appt.Complete(Actor{UserID: appt.PatientID, RoleID: RoleIDPatient}, appt.StartTime)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, appt.Complete(doctor, appt.StartTime))
	assert.Equal(t, AppointmentStatusCompleted, appt.Status)
	require.NotNil(t, appt.CompletedAt)
}

func TestComplete_FromCancelledIsInvalid(t *testing.T) {
	appt := newScheduled()
	admin := Actor{UserID: uuid.New(), RoleID: RoleIDAdmin}
	require.NoError(t, appt.Cancel(admin, "doctor is unavailable today"))

	err := appt.Complete(admin, appt.EndTime)

	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, AppointmentStatusCancelled, appt.Status)
	assert.Nil(t, appt.CompletedAt)
}

func TestCancel(t *testing.T) {
	tests := []struct {
		name    string
		actor   func(a *Appointment) Actor
		reason  string
		wantErr error
	}{
		{"owning patient", func(a *Appointment) Actor { return Actor{UserID: a.PatientID, RoleID: RoleIDPatient} }, "feeling better now", nil},
		{"attending doctor", func(a *Appointment) Actor { return Actor{UserID: a.DoctorID, RoleID: RoleIDDoctor} }, "  emergency surgery  ", nil},
		{"admin", func(a *Appointment) Actor { return Actor{UserID: uuid.New(), RoleID: RoleIDAdmin} }, "clinic closed for the day", nil},
		{"other patient", func(a *Appointment) Actor { return Actor{UserID: uuid.New(), RoleID: RoleIDPatient} }, "not my appointment", ErrForbidden},
		{"other doctor", func(a *Appointment) Actor { return Actor{UserID: uuid.New(), RoleID: RoleIDDoctor} }, "not my appointment", ErrForbidden},
		{"short reason", func(a *Appointment) Actor { return Actor{UserID: a.PatientID, RoleID: RoleIDPatient} }, "  busy     ", ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appt := newScheduled()
			err := appt.Cancel(tt.actor(appt), tt.reason)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, AppointmentStatusScheduled, appt.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, AppointmentStatusCancelled, appt.Status)
			require.NotNil(t, appt.CancellationReason)
			assert.Equal(t, strings.TrimSpace(tt.reason), *appt.CancellationReason)
			require.NotNil(t, appt.CancelledBy)
		})
	}
}

func TestCancel_Twice(t *testing.T) {
	appt := newScheduled()
	patient := Actor{UserID: appt.PatientID, RoleID: RoleIDPatient}
	require.NoError(t, appt.Cancel(patient, "cannot make it anymore"))

	assert.ErrorIs(t, appt.Cancel(patient, "cannot make it anymore"), ErrInvalidTransition)
}

func TestEnsureReschedulable(t *testing.T) {
	appt := newScheduled()
	assert.NoError(t, appt.EnsureReschedulable(Actor{UserID: appt.PatientID, RoleID: RoleIDPatient}))
	assert.ErrorIs(t, appt.EnsureReschedulable(Actor{UserID: uuid.New(), RoleID: RoleIDPatient}), ErrForbidden)

	appt.Status = AppointmentStatusCompleted
	assert.ErrorIs(t, appt.EnsureReschedulable(Actor{UserID: appt.PatientID, RoleID: RoleIDPatient}), ErrInvalidTransition)
}
