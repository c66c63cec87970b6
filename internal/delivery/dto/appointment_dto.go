package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type CreateAppointmentRequest struct {
	DoctorID  uuid.UUID `json:"doctor_id" validate:"required"`
	PatientID uuid.UUID `json:"patient_id" validate:"required"`
	StartTime time.Time `json:"start_time" validate:"required"` // RFC3339
	EndTime   time.Time `json:"end_time" validate:"required"`   // RFC3339
	Mode      string    `json:"mode" validate:"required,appointment_mode"`
}

type RescheduleAppointmentRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

type CancelAppointmentRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// Response DTOs

type AppointmentResponse struct {
	ID                   uuid.UUID  `json:"id"`
	DoctorID             uuid.UUID  `json:"doctor_id"`
	PatientID            uuid.UUID  `json:"patient_id"`
	StartTime            time.Time  `json:"start_time"`
	EndTime              time.Time  `json:"end_time"`
	Mode                 string     `json:"mode"`
	Status               string     `json:"status"`
	ReminderSentChannels []string   `json:"reminder_sent_channels"`
	CancellationReason   *string    `json:"cancellation_reason,omitempty"`
	CancelledBy          *uuid.UUID `json:"cancelled_by,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Total        int                   `json:"total"`
}
