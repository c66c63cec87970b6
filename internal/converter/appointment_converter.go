package converter

import (
	"go-clinic-scheduling/internal/delivery/dto"
	"go-clinic-scheduling/internal/domain/entity"
)

// AppointmentToResponse converts an Appointment entity to AppointmentResponse DTO
func AppointmentToResponse(appt *entity.Appointment) *dto.AppointmentResponse {
	if appt == nil {
		return nil
	}

	sent := make([]string, len(appt.ReminderSentChannels))
	copy(sent, appt.ReminderSentChannels)

	return &dto.AppointmentResponse{
		ID:                   appt.ID,
		DoctorID:             appt.DoctorID,
		PatientID:            appt.PatientID,
		StartTime:            appt.StartTime,
		EndTime:              appt.EndTime,
		Mode:                 string(appt.Mode),
		Status:               string(appt.Status),
		ReminderSentChannels: sent,
		CancellationReason:   appt.CancellationReason,
		CancelledBy:          appt.CancelledBy,
		CompletedAt:          appt.CompletedAt,
		CreatedAt:            appt.CreatedAt,
		UpdatedAt:            appt.UpdatedAt,
	}
}

// AppointmentsToResponses converts a slice of Appointment entities to slice of AppointmentResponse DTOs
func AppointmentsToResponses(appts []entity.Appointment) []dto.AppointmentResponse {
	responses := make([]dto.AppointmentResponse, len(appts))
	for i := range appts {
		responses[i] = *AppointmentToResponse(&appts[i])
	}
	return responses
}
