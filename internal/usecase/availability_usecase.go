package usecase

import (
	"context"
	"fmt"
	"time"

	"go-clinic-scheduling/internal/converter"
	"go-clinic-scheduling/internal/delivery/dto"
	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/domain/repository"
	"go-clinic-scheduling/internal/domain/schedule"
	"go-clinic-scheduling/pkg/clock"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	MinSlotGranularity = 5 * time.Minute
	MaxSlotGranularity = 8 * time.Hour
)

// BookingOptions are the facility-wide booking rules
type BookingOptions struct {
	Location        *time.Location
	SlotGranularity time.Duration
	// Buffer is kept free around every booked appointment
	Buffer        time.Duration
	MaxRangeDays  int
	EventChannels []entity.Channel
	NotifyTimeout time.Duration
}

func (o BookingOptions) withDefaults() BookingOptions {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.SlotGranularity <= 0 {
		o.SlotGranularity = 30 * time.Minute
	}
	if o.MaxRangeDays <= 0 {
		o.MaxRangeDays = 31
	}
	if len(o.EventChannels) == 0 {
		o.EventChannels = []entity.Channel{entity.ChannelInApp}
	}
	if o.NotifyTimeout <= 0 {
		o.NotifyTimeout = 10 * time.Second
	}
	return o
}

type AvailabilityUsecase interface {
	GetFreeSlots(ctx context.Context, doctorID uuid.UUID, req *dto.FreeSlotsRequest) (*dto.FreeSlotsResponse, error)
	FreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, granularity time.Duration) ([]schedule.Range, error)
}

type availabilityUsecase struct {
	log              *logrus.Logger
	clock            clock.Clock
	opts             BookingOptions
	availabilityRepo repository.AvailabilityRepository
	appointmentRepo  repository.AppointmentRepository
}

func NewAvailabilityUsecase(
	log *logrus.Logger,
	clk clock.Clock,
	opts BookingOptions,
	availabilityRepo repository.AvailabilityRepository,
	appointmentRepo repository.AppointmentRepository,
) AvailabilityUsecase {
	return &availabilityUsecase{
		log:              log,
		clock:            clk,
		opts:             opts.withDefaults(),
		availabilityRepo: availabilityRepo,
		appointmentRepo:  appointmentRepo,
	}
}

func (u *availabilityUsecase) GetFreeSlots(ctx context.Context, doctorID uuid.UUID, req *dto.FreeSlotsRequest) (*dto.FreeSlotsResponse, error) {
	from, err := time.ParseInLocation(dateLayout, req.From, u.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid from date, use YYYY-MM-DD", entity.ErrValidation)
	}
	to, err := time.ParseInLocation(dateLayout, req.To, u.opts.Location)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid to date, use YYYY-MM-DD", entity.ErrValidation)
	}

	granularity := u.opts.SlotGranularity
	if req.Granularity != "" {
		granularity, err = time.ParseDuration(req.Granularity)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid granularity %q, use a duration like 30m", entity.ErrValidation, req.Granularity)
		}
	}

	slots, err := u.FreeSlots(ctx, doctorID, from, to, granularity)
	if err != nil {
		return nil, err
	}

	return &dto.FreeSlotsResponse{
		DoctorID:    doctorID,
		From:        req.From,
		To:          req.To,
		Granularity: granularity.String(),
		Slots:       converter.SlotsToResponses(slots),
		Total:       len(slots),
	}, nil
}

// FreeSlots returns the bookable slots of a doctor for every calendar date from the
// date of from to the date of to. Per date: template ranges minus busy overrides minus
// scheduled appointments (widened by the buffer), cut into granularity-long slots.
// Slots that already started are left out. The result is advisory; booking re-checks.
func (u *availabilityUsecase) FreeSlots(ctx context.Context, doctorID uuid.UUID, from, to time.Time, granularity time.Duration) ([]schedule.Range, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: from must not be after to", entity.ErrValidation)
	}
	if granularity < MinSlotGranularity || granularity > MaxSlotGranularity {
		return nil, fmt.Errorf("%w: granularity must be between %s and %s", entity.ErrValidation, MinSlotGranularity, MaxSlotGranularity)
	}
	days := schedule.Dates(from, to, u.opts.Location)
	if len(days) > u.opts.MaxRangeDays {
		return nil, fmt.Errorf("%w: range must not exceed %d days", entity.ErrValidation, u.opts.MaxRangeDays)
	}

	template, err := u.availabilityRepo.FindTemplateByDoctor(ctx, doctorID)
	if err != nil {
		u.log.Warnf("Failed to find availability template for doctor %s: %+v", doctorID, err)
		return nil, err
	}
	if len(template) == 0 {
		return []schedule.Range{}, nil
	}

	first, last := days[0], days[len(days)-1]
	overrides, err := u.availabilityRepo.FindOverrides(ctx, doctorID, first, last)
	if err != nil {
		u.log.Warnf("Failed to find busy overrides for doctor %s: %+v", doctorID, err)
		return nil, err
	}

	windowEnd := last.AddDate(0, 0, 1)
	booked, err := u.appointmentRepo.FindScheduledByDoctor(ctx, doctorID, first.Add(-u.opts.Buffer), windowEnd.Add(u.opts.Buffer))
	if err != nil {
		u.log.Warnf("Failed to find appointments for doctor %s: %+v", doctorID, err)
		return nil, err
	}
	busy := bookedRanges(booked, u.opts.Buffer)

	now := u.clock.Now()
	slots := []schedule.Range{}
	for _, day := range days {
		free := schedule.Subtract(schedule.DayOpenRanges(day, template, overrides), busy)
		slots = append(slots, schedule.Quantize(free, granularity, now)...)
	}
	return slots, nil
}

func bookedRanges(appts []entity.Appointment, buffer time.Duration) []schedule.Range {
	ranges := make([]schedule.Range, 0, len(appts))
	for _, a := range appts {
		ranges = append(ranges, schedule.Range{Start: a.StartTime, End: a.EndTime}.Expand(buffer))
	}
	return ranges
}
