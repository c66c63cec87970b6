package usecase

import (
	"context"
	"fmt"
	"time"

	"go-clinic-scheduling/internal/converter"
	"go-clinic-scheduling/internal/delivery/dto"
	"go-clinic-scheduling/internal/delivery/http/middleware"
	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/internal/domain/repository"
	"go-clinic-scheduling/internal/domain/schedule"
	"go-clinic-scheduling/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

// DoctorScheduleUsecase manages the weekly availability template and the dated busy
// overrides of a doctor. Existing appointments are never touched by these changes.
type DoctorScheduleUsecase interface {
	ReplaceTemplate(ctx context.Context, doctorID uuid.UUID, req *dto.ReplaceTemplateRequest) (*dto.TemplateResponse, error)
	GetTemplate(ctx context.Context, doctorID uuid.UUID) (*dto.TemplateResponse, error)
	CreateOverride(ctx context.Context, doctorID uuid.UUID, req *dto.CreateOverrideRequest) (*dto.OverrideResponse, error)
	ListOverrides(ctx context.Context, doctorID uuid.UUID, from, to string) (*dto.OverrideListResponse, error)
	DeleteOverride(ctx context.Context, overrideID int) error
}

type doctorScheduleUsecase struct {
	log              *logrus.Logger
	transactor       repository.Transactor
	availabilityRepo repository.AvailabilityRepository
	doctorLocker     *service.DoctorLocker
	auditService     service.AuditService
}

func NewDoctorScheduleUsecase(
	log *logrus.Logger,
	transactor repository.Transactor,
	availabilityRepo repository.AvailabilityRepository,
	doctorLocker *service.DoctorLocker,
	auditService service.AuditService,
) DoctorScheduleUsecase {
	return &doctorScheduleUsecase{
		log:              log,
		transactor:       transactor,
		availabilityRepo: availabilityRepo,
		doctorLocker:     doctorLocker,
		auditService:     auditService,
	}
}

// authorize allows admins, and doctors acting on their own schedule
func (u *doctorScheduleUsecase) authorize(ctx context.Context, doctorID uuid.UUID) (entity.Actor, error) {
	actor, ok := middleware.ActorFromContext(ctx)
	if !ok {
		return entity.Actor{}, ErrActorNotFound
	}
	if actor.IsAdmin() || (actor.RoleID == entity.RoleIDDoctor && actor.UserID == doctorID) {
		return actor, nil
	}
	return entity.Actor{}, fmt.Errorf("%w: only an admin or the doctor can change this schedule", entity.ErrForbidden)
}

func (u *doctorScheduleUsecase) ReplaceTemplate(ctx context.Context, doctorID uuid.UUID, req *dto.ReplaceTemplateRequest) (*dto.TemplateResponse, error) {
	actor, err := u.authorize(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	rows := converter.TemplateRequestToEntities(doctorID, req)
	if err := schedule.ValidateTemplate(rows); err != nil {
		return nil, err
	}

	// Booking checks read the template under the doctor lock, so take it here too
	unlock := u.doctorLocker.Lock(doctorID)
	defer unlock()

	err = u.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		old, err := u.availabilityRepo.FindTemplateByDoctor(txCtx, doctorID)
		if err != nil {
			return err
		}
		if err := u.availabilityRepo.ReplaceTemplate(txCtx, doctorID, rows); err != nil {
			return err
		}
		return u.auditService.LogUpdate(txCtx, &actor.UserID, entity.AuditActionTemplateReplace, "doctor_availability", doctorID.String(),
			converter.TemplateToResponse(doctorID, old), converter.TemplateToResponse(doctorID, rows))
	})
	if err != nil {
		u.log.Warnf("Failed to replace availability template for doctor %s: %+v", doctorID, err)
		return nil, err
	}

	u.log.Infof("Availability template replaced: doctor=%s, ranges=%d", doctorID, len(rows))
	return converter.TemplateToResponse(doctorID, rows), nil
}

func (u *doctorScheduleUsecase) GetTemplate(ctx context.Context, doctorID uuid.UUID) (*dto.TemplateResponse, error) {
	rows, err := u.availabilityRepo.FindTemplateByDoctor(ctx, doctorID)
	if err != nil {
		u.log.Warnf("Failed to find availability template: %+v", err)
		return nil, err
	}
	return converter.TemplateToResponse(doctorID, rows), nil
}

func (u *doctorScheduleUsecase) CreateOverride(ctx context.Context, doctorID uuid.UUID, req *dto.CreateOverrideRequest) (*dto.OverrideResponse, error) {
	actor, err := u.authorize(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid date format, use YYYY-MM-DD", entity.ErrValidation)
	}
	if _, err := schedule.ParseClockRange(date, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}

	override := &entity.BusyOverride{
		DoctorID:     doctorID,
		OverrideDate: date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Reason:       req.Reason,
	}

	unlock := u.doctorLocker.Lock(doctorID)
	defer unlock()

	err = u.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := u.availabilityRepo.CreateOverride(txCtx, override); err != nil {
			return err
		}
		return u.auditService.LogCreate(txCtx, &actor.UserID, entity.AuditActionOverrideCreate, "doctor_busy_override",
			fmt.Sprint(override.ID), converter.OverrideToResponse(override))
	})
	if err != nil {
		u.log.Warnf("Failed to create busy override: %+v", err)
		return nil, err
	}

	return converter.OverrideToResponse(override), nil
}

func (u *doctorScheduleUsecase) ListOverrides(ctx context.Context, doctorID uuid.UUID, from, to string) (*dto.OverrideListResponse, error) {
	fromDate, err := time.Parse(dateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid from date, use YYYY-MM-DD", entity.ErrValidation)
	}
	toDate, err := time.Parse(dateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid to date, use YYYY-MM-DD", entity.ErrValidation)
	}
	if toDate.Before(fromDate) {
		return nil, fmt.Errorf("%w: from must not be after to", entity.ErrValidation)
	}

	overrides, err := u.availabilityRepo.FindOverrides(ctx, doctorID, fromDate, toDate)
	if err != nil {
		u.log.Warnf("Failed to find busy overrides: %+v", err)
		return nil, err
	}

	return &dto.OverrideListResponse{
		Overrides: converter.OverridesToResponses(overrides),
		Total:     len(overrides),
	}, nil
}

func (u *doctorScheduleUsecase) DeleteOverride(ctx context.Context, overrideID int) error {
	override, err := u.availabilityRepo.FindOverrideByID(ctx, overrideID)
	if err != nil {
		u.log.Warnf("Failed to find busy override: %+v", err)
		return err
	}
	if override == nil {
		return fmt.Errorf("%w: busy override %d", entity.ErrNotFound, overrideID)
	}

	actor, err := u.authorize(ctx, override.DoctorID)
	if err != nil {
		return err
	}

	unlock := u.doctorLocker.Lock(override.DoctorID)
	defer unlock()

	err = u.transactor.WithinTransaction(ctx, func(txCtx context.Context) error {
		rows, err := u.availabilityRepo.DeleteOverride(txCtx, overrideID)
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("%w: busy override %d", entity.ErrNotFound, overrideID)
		}
		return u.auditService.LogDelete(txCtx, &actor.UserID, entity.AuditActionOverrideDelete, "doctor_busy_override",
			fmt.Sprint(overrideID), converter.OverrideToResponse(override))
	})
	if err != nil {
		u.log.Warnf("Failed to delete busy override %d: %+v", overrideID, err)
		return err
	}
	return nil
}
