package converter

import (
	"go-clinic-scheduling/internal/delivery/dto"
	"go-clinic-scheduling/internal/domain/entity"
)

// NotificationsToResponses converts in-app notification records to NotificationResponse DTOs
func NotificationsToResponses(records []entity.NotificationRecord) []dto.NotificationResponse {
	responses := make([]dto.NotificationResponse, len(records))
	for i, r := range records {
		responses[i] = dto.NotificationResponse{
			ID:        r.ID,
			Message:   r.Message,
			EventType: r.EventType,
			IsRead:    r.IsRead,
			CreatedAt: r.CreatedAt,
		}
	}
	return responses
}
