package entity

import "errors"

// Scheduling error taxonomy. Usecases wrap these with detail via %w and the
// HTTP layer maps them with errors.Is.
var (
	ErrSlotUnavailable   = errors.New("requested time is outside the doctor's availability")
	ErrConflict          = errors.New("time range overlaps another scheduled appointment")
	ErrInvalidTransition = errors.New("invalid appointment status transition")
	ErrValidation        = errors.New("validation failed")
	ErrNoSubscription    = errors.New("no notification subscription for channel")
	ErrDelivery          = errors.New("notification delivery failed")
	ErrNotFound          = errors.New("resource not found")
	ErrForbidden         = errors.New("not permitted for this actor")
)
