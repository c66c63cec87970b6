package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// AppointmentStatus represents the lifecycle state of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// AppointmentMode is how the consultation takes place
type AppointmentMode string

const (
	AppointmentModeInPerson AppointmentMode = "in-person"
	AppointmentModeVirtual  AppointmentMode = "virtual"
)

func (m AppointmentMode) IsValid() bool {
	return m == AppointmentModeInPerson || m == AppointmentModeVirtual
}

// Appointment is a booked consultation between one doctor and one patient.
// It holds only ids of its participants and is never deleted; cancellation is a status.
type Appointment struct {
	ID                   uuid.UUID         `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	DoctorID             uuid.UUID         `gorm:"type:uuid;not null;index" json:"doctor_id"`
	PatientID            uuid.UUID         `gorm:"type:uuid;not null;index" json:"patient_id"`
	StartTime            time.Time         `gorm:"type:timestamptz;not null;index" json:"start_time"`
	EndTime              time.Time         `gorm:"type:timestamptz;not null" json:"end_time"`
	Mode                 AppointmentMode   `gorm:"type:varchar(20);not null" json:"mode"`
	Status               AppointmentStatus `gorm:"type:varchar(20);not null;default:'scheduled';index" json:"status"`
	ReminderSentChannels pq.StringArray    `gorm:"type:text[];not null;default:'{}'" json:"reminder_sent_channels"`
	CancellationReason   *string           `gorm:"type:text" json:"cancellation_reason,omitempty"`
	CancelledBy          *uuid.UUID        `gorm:"type:uuid" json:"cancelled_by,omitempty"`
	CompletedAt          *time.Time        `gorm:"type:timestamptz" json:"completed_at,omitempty"`
	CreatedAt            time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// IsScheduled checks if the appointment still holds its time range
func (a *Appointment) IsScheduled() bool {
	return a.Status == AppointmentStatusScheduled
}

// IsTerminal checks if the appointment reached completed or cancelled
func (a *Appointment) IsTerminal() bool {
	return a.Status == AppointmentStatusCompleted || a.Status == AppointmentStatusCancelled
}

// HasReminder reports whether the reminder key was already recorded
func (a *Appointment) HasReminder(key string) bool {
	for _, k := range a.ReminderSentChannels {
		if k == key {
			return true
		}
	}
	return false
}

// Participants returns the patient and the doctor, in that order
func (a *Appointment) Participants() []uuid.UUID {
	return []uuid.UUID{a.PatientID, a.DoctorID}
}

// Clone returns a copy that shares no mutable state with a
func (a *Appointment) Clone() *Appointment {
	c := *a
	c.ReminderSentChannels = append(pq.StringArray(nil), a.ReminderSentChannels...)
	if a.CancellationReason != nil {
		reason := *a.CancellationReason
		c.CancellationReason = &reason
	}
	if a.CancelledBy != nil {
		by := *a.CancelledBy
		c.CancelledBy = &by
	}
	if a.CompletedAt != nil {
		at := *a.CompletedAt
		c.CompletedAt = &at
	}
	return &c
}
