package usecase

import (
	"context"
	"testing"
	"time"

	"go-clinic-scheduling/internal/delivery/dto"
	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/repository/memory"
	"go-clinic-scheduling/pkg/clock"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeSlots_MondayTemplate(t *testing.T) {
	f := newFixture(t)

	slots, err := f.slots.FreeSlots(context.Background(), f.doctorID, monday(0, 0), monday(0, 0), 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, slots, 16)
	assert.Equal(t, monday(9, 0), slots[0].Start)
	assert.Equal(t, monday(17, 0), slots[15].End)

	patient := uuid.New()
	_, err = f.book(asPatient(patient), patient, monday(10, 0))
	require.NoError(t, err)

	slots, err = f.slots.FreeSlots(context.Background(), f.doctorID, monday(0, 0), monday(0, 0), 30*time.Minute)
	require.NoError(t, err)
	assert.Len(t, slots, 15)
	for _, s := range slots {
		assert.NotEqual(t, monday(10, 0), s.Start)
	}
}

func TestFreeSlots_DropsPartialAndPastSlots(t *testing.T) {
	f := newFixture(t)

	slots, err := f.slots.FreeSlots(context.Background(), f.doctorID, monday(0, 0), monday(0, 0), 45*time.Minute)
	require.NoError(t, err)
	assert.Len(t, slots, 10, "8h / 45m leaves a 30m tail that is dropped")
	assert.Equal(t, monday(16, 30), slots[9].End)

	f.clock.Set(monday(10, 5))
	slots, err = f.slots.FreeSlots(context.Background(), f.doctorID, monday(0, 0), monday(0, 0), 30*time.Minute)
	require.NoError(t, err)
	assert.Len(t, slots, 13)
	assert.Equal(t, monday(10, 30), slots[0].Start)
}

func TestFreeSlots_OverridesAndMultipleDays(t *testing.T) {
	f := newFixture(t)
	_, err := f.schedules.CreateOverride(asAdmin(), f.doctorID, &dto.CreateOverrideRequest{
		Date: "2026-03-02", StartTime: "12:00", EndTime: "13:00",
	})
	require.NoError(t, err)

	slots, err := f.slots.FreeSlots(context.Background(), f.doctorID, monday(0, 0), monday(0, 0).AddDate(0, 0, 7), 30*time.Minute)
	require.NoError(t, err)
	assert.Len(t, slots, 14+16, "override only applies to the first Monday")
}

func TestFreeSlots_Buffer(t *testing.T) {
	f := newFixture(t)
	patient := uuid.New()
	_, err := f.book(asPatient(patient), patient, monday(10, 0))
	require.NoError(t, err)

	buffered := NewAvailabilityUsecase(quietLogger(), f.clock, BookingOptions{Buffer: 15 * time.Minute}, f.availability, f.appts)
	slots, err := buffered.FreeSlots(context.Background(), f.doctorID, monday(0, 0), monday(0, 0), 30*time.Minute)
	require.NoError(t, err)

	for _, s := range slots {
		assert.False(t, s.Start.Before(monday(10, 45)) && s.End.After(monday(9, 45)), "slot %s inside buffer", s.Start)
	}
}

func TestFreeSlots_EmptyTemplate(t *testing.T) {
	uc := NewAvailabilityUsecase(quietLogger(), clock.NewFake(monday(0, 0)), BookingOptions{},
		memory.NewAvailabilityRepository(), memory.NewAppointmentRepository())

	slots, err := uc.FreeSlots(context.Background(), uuid.New(), monday(0, 0), monday(0, 0), 30*time.Minute)
	require.NoError(t, err)
	assert.Empty(t, slots)
}

func TestFreeSlots_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.slots.FreeSlots(ctx, f.doctorID, monday(0, 0), monday(0, 0).AddDate(0, 0, -1), 30*time.Minute)
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = f.slots.FreeSlots(ctx, f.doctorID, monday(0, 0), monday(0, 0), time.Minute)
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = f.slots.FreeSlots(ctx, f.doctorID, monday(0, 0), monday(0, 0), 9*time.Hour)
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = f.slots.FreeSlots(ctx, f.doctorID, monday(0, 0), monday(0, 0).AddDate(0, 0, 31), 30*time.Minute)
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestGetFreeSlots_ParsesRequest(t *testing.T) {
	f := newFixture(t)

	resp, err := f.slots.GetFreeSlots(context.Background(), f.doctorID, &dto.FreeSlotsRequest{From: "2026-03-02", To: "2026-03-02", Granularity: "1h"})
	require.NoError(t, err)
	assert.Equal(t, 8, resp.Total)
	assert.Equal(t, "1h0m0s", resp.Granularity)

	resp, err = f.slots.GetFreeSlots(context.Background(), f.doctorID, &dto.FreeSlotsRequest{From: "2026-03-02", To: "2026-03-02"})
	require.NoError(t, err)
	assert.Equal(t, 16, resp.Total, "configured default granularity")

	_, err = f.slots.GetFreeSlots(context.Background(), f.doctorID, &dto.FreeSlotsRequest{From: "02/03/2026", To: "2026-03-02"})
	assert.ErrorIs(t, err, entity.ErrValidation)

	_, err = f.slots.GetFreeSlots(context.Background(), f.doctorID, &dto.FreeSlotsRequest{From: "2026-03-02", To: "2026-03-02", Granularity: "soon"})
	assert.ErrorIs(t, err, entity.ErrValidation)
}
