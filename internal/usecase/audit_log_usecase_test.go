package usecase

import (
	"context"
	"errors"
	"testing"

	"go-clinic-scheduling/internal/delivery/dto"
	"go-clinic-scheduling/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAllAuditLogs_AppointmentHistory(t *testing.T) {
	f := newFixture(t)
	logs := NewAuditLogUsecase(quietLogger(), f.audit)

	patient := uuid.New()
	first, err := f.book(asPatient(patient), patient, monday(10, 0))
	require.NoError(t, err)
	_, err = f.book(asPatient(patient), patient, monday(11, 0))
	require.NoError(t, err)
	_, err = f.appointments.CancelAppointment(asPatient(patient), first.ID, &dto.CancelAppointmentRequest{Reason: "travelling"})
	require.NoError(t, err)

	all, err := logs.GetAllAuditLogs(context.Background(), &dto.AuditLogFilterRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)

	history, err := logs.GetAllAuditLogs(context.Background(), &dto.AuditLogFilterRequest{
		Entity: "appointment", EntityID: first.ID.String(),
	})
	require.NoError(t, err)
	require.Equal(t, 2, history.Total)
	assert.Equal(t, entity.AuditActionAppointmentCancel, history.Logs[0].Action)
	assert.Equal(t, entity.AuditActionAppointmentCreate, history.Logs[1].Action)

	created, err := logs.GetAllAuditLogs(context.Background(), &dto.AuditLogFilterRequest{
		Action: entity.AuditActionAppointmentCreate, Limit: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created.Total)
}

func TestGetAllAuditLogs_EntityIDNeedsEntity(t *testing.T) {
	f := newFixture(t)
	logs := NewAuditLogUsecase(quietLogger(), f.audit)

	_, err := logs.GetAllAuditLogs(context.Background(), &dto.AuditLogFilterRequest{EntityID: uuid.NewString()})
	assert.True(t, errors.Is(err, entity.ErrValidation))
}

func TestGetAuditLog_NotFound(t *testing.T) {
	f := newFixture(t)
	logs := NewAuditLogUsecase(quietLogger(), f.audit)

	_, err := logs.GetAuditLog(context.Background(), 404)
	assert.True(t, errors.Is(err, entity.ErrNotFound))
}
