package dto

import (
	"time"

	"go-clinic-scheduling/internal/domain/entity"

	"github.com/google/uuid"
)

type AuditLogFilterRequest struct {
	Action   string `validate:"omitempty,max=100"`
	Entity   string `validate:"omitempty,oneof=appointment doctor_availability doctor_busy_override"`
	EntityID string `validate:"omitempty,max=64"`
	Limit    int    `validate:"gte=0,lte=500"`
}

// Response DTOs

type AuditLogResponse struct {
	ID        int64       `json:"id"`
	UserID    *uuid.UUID  `json:"user_id,omitempty"`
	Action    string      `json:"action"`
	Metadata  entity.JSON `json:"metadata"`
	CreatedAt time.Time   `json:"created_at"`
}

type AuditLogListResponse struct {
	Logs  []AuditLogResponse `json:"logs"`
	Total int                `json:"total"`
}
