package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

type AvailabilityRangeRequest struct {
	DayOfWeek int    `json:"day_of_week" validate:"gte=0,lte=6"`
	StartTime string `json:"start_time" validate:"required"` // Format: HH:MM
	EndTime   string `json:"end_time" validate:"required"`   // Format: HH:MM
}

type ReplaceTemplateRequest struct {
	Ranges []AvailabilityRangeRequest `json:"ranges" validate:"dive"`
}

type CreateOverrideRequest struct {
	Date      string `json:"date" validate:"required"`       // Format: YYYY-MM-DD
	StartTime string `json:"start_time" validate:"required"` // Format: HH:MM
	EndTime   string `json:"end_time" validate:"required"`   // Format: HH:MM
	Reason    string `json:"reason" validate:"omitempty,max=500"`
}

type FreeSlotsRequest struct {
	From        string `validate:"required"` // Format: YYYY-MM-DD
	To          string `validate:"required"` // Format: YYYY-MM-DD
	Granularity string // Go duration, e.g. 30m; empty uses the configured default
}

// Response DTOs

type AvailabilityRangeResponse struct {
	ID        int    `json:"id"`
	DayOfWeek int    `json:"day_of_week"`
	Weekday   string `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type TemplateResponse struct {
	DoctorID uuid.UUID                   `json:"doctor_id"`
	Ranges   []AvailabilityRangeResponse `json:"ranges"`
	Total    int                         `json:"total"`
}

type OverrideResponse struct {
	ID        int       `json:"id"`
	DoctorID  uuid.UUID `json:"doctor_id"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type OverrideListResponse struct {
	Overrides []OverrideResponse `json:"overrides"`
	Total     int                `json:"total"`
}

type SlotResponse struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type FreeSlotsResponse struct {
	DoctorID    uuid.UUID      `json:"doctor_id"`
	From        string         `json:"from"`
	To          string         `json:"to"`
	Granularity string         `json:"granularity"`
	Slots       []SlotResponse `json:"slots"`
	Total       int            `json:"total"`
}
