package converter

import (
	"time"

	"go-clinic-scheduling/internal/delivery/dto"
	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/domain/schedule"

	"github.com/google/uuid"
)

// clockText trims a Postgres time value ("09:00:00") to HH:MM
func clockText(s string) string {
	if len(s) == len("15:04:05") && s[5:] == ":00" {
		return s[:5]
	}
	return s
}

// TemplateToResponse converts the weekly template rows of a doctor to TemplateResponse DTO
func TemplateToResponse(doctorID uuid.UUID, rows []entity.DoctorAvailability) *dto.TemplateResponse {
	ranges := make([]dto.AvailabilityRangeResponse, len(rows))
	for i, row := range rows {
		ranges[i] = dto.AvailabilityRangeResponse{
			ID:        row.ID,
			DayOfWeek: row.DayOfWeek,
			Weekday:   time.Weekday(row.DayOfWeek).String(),
			StartTime: clockText(row.StartTime),
			EndTime:   clockText(row.EndTime),
		}
	}
	return &dto.TemplateResponse{
		DoctorID: doctorID,
		Ranges:   ranges,
		Total:    len(ranges),
	}
}

// TemplateRequestToEntities converts a ReplaceTemplateRequest into template rows
func TemplateRequestToEntities(doctorID uuid.UUID, req *dto.ReplaceTemplateRequest) []entity.DoctorAvailability {
	rows := make([]entity.DoctorAvailability, len(req.Ranges))
	for i, r := range req.Ranges {
		rows[i] = entity.DoctorAvailability{
			DoctorID:  doctorID,
			DayOfWeek: r.DayOfWeek,
			StartTime: r.StartTime,
			EndTime:   r.EndTime,
		}
	}
	return rows
}

// OverrideToResponse converts a BusyOverride entity to OverrideResponse DTO
func OverrideToResponse(override *entity.BusyOverride) *dto.OverrideResponse {
	if override == nil {
		return nil
	}

	return &dto.OverrideResponse{
		ID:        override.ID,
		DoctorID:  override.DoctorID,
		Date:      override.DateKey(),
		StartTime: clockText(override.StartTime),
		EndTime:   clockText(override.EndTime),
		Reason:    override.Reason,
		CreatedAt: override.CreatedAt,
	}
}

// OverridesToResponses converts a slice of BusyOverride entities to slice of OverrideResponse DTOs
func OverridesToResponses(overrides []entity.BusyOverride) []dto.OverrideResponse {
	responses := make([]dto.OverrideResponse, len(overrides))
	for i := range overrides {
		responses[i] = *OverrideToResponse(&overrides[i])
	}
	return responses
}

// SlotsToResponses converts free ranges to SlotResponse DTOs
func SlotsToResponses(slots []schedule.Range) []dto.SlotResponse {
	responses := make([]dto.SlotResponse, len(slots))
	for i, s := range slots {
		responses[i] = dto.SlotResponse{StartTime: s.Start, EndTime: s.End}
	}
	return responses
}
