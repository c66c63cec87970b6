package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go-clinic-scheduling/internal/delivery/dto"
	"go-clinic-scheduling/internal/usecase"
	"go-clinic-scheduling/pkg/response"
	"go-clinic-scheduling/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

type DoctorScheduleHandler struct {
	scheduleUsecase     usecase.DoctorScheduleUsecase
	availabilityUsecase usecase.AvailabilityUsecase
	validator           *validator.CustomValidator
}

func NewDoctorScheduleHandler(
	scheduleUsecase usecase.DoctorScheduleUsecase,
	availabilityUsecase usecase.AvailabilityUsecase,
	validator *validator.CustomValidator,
) *DoctorScheduleHandler {
	return &DoctorScheduleHandler{
		scheduleUsecase:     scheduleUsecase,
		availabilityUsecase: availabilityUsecase,
		validator:           validator,
	}
}

func doctorIDFromPath(r *http.Request) (uuid.UUID, bool) {
	doctorID, err := uuid.Parse(mux.Vars(r)["doctorId"])
	return doctorID, err == nil
}

func (h *DoctorScheduleHandler) GetFreeSlots(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorIDFromPath(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid doctor ID", nil)
		return
	}

	q := r.URL.Query()
	req := dto.FreeSlotsRequest{
		From:        q.Get("from"),
		To:          q.Get("to"),
		Granularity: q.Get("granularity"),
	}
	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	slots, err := h.availabilityUsecase.GetFreeSlots(r.Context(), doctorID, &req)
	if err != nil {
		writeUsecaseError(w, err, "Failed to get free slots")
		return
	}

	response.Success(w, http.StatusOK, "Free slots retrieved successfully", slots)
}

func (h *DoctorScheduleHandler) ReplaceTemplate(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorIDFromPath(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid doctor ID", nil)
		return
	}

	var req dto.ReplaceTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	template, err := h.scheduleUsecase.ReplaceTemplate(r.Context(), doctorID, &req)
	if err != nil {
		writeUsecaseError(w, err, "Failed to replace availability template")
		return
	}

	response.Success(w, http.StatusOK, "Availability template replaced successfully", template)
}

func (h *DoctorScheduleHandler) GetTemplate(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorIDFromPath(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid doctor ID", nil)
		return
	}

	template, err := h.scheduleUsecase.GetTemplate(r.Context(), doctorID)
	if err != nil {
		writeUsecaseError(w, err, "Failed to get availability template")
		return
	}

	response.Success(w, http.StatusOK, "Availability template retrieved successfully", template)
}

func (h *DoctorScheduleHandler) CreateOverride(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorIDFromPath(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid doctor ID", nil)
		return
	}

	var req dto.CreateOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		response.ValidationError(w, h.validator.FormatValidationErrors(err))
		return
	}

	override, err := h.scheduleUsecase.CreateOverride(r.Context(), doctorID, &req)
	if err != nil {
		writeUsecaseError(w, err, "Failed to create busy override")
		return
	}

	response.Success(w, http.StatusCreated, "Busy override created successfully", override)
}

func (h *DoctorScheduleHandler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	doctorID, ok := doctorIDFromPath(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "Invalid doctor ID", nil)
		return
	}

	q := r.URL.Query()
	overrides, err := h.scheduleUsecase.ListOverrides(r.Context(), doctorID, q.Get("from"), q.Get("to"))
	if err != nil {
		writeUsecaseError(w, err, "Failed to get busy overrides")
		return
	}

	response.Success(w, http.StatusOK, "Busy overrides retrieved successfully", overrides)
}

func (h *DoctorScheduleHandler) DeleteOverride(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	overrideID, err := strconv.Atoi(vars["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid busy override ID", nil)
		return
	}

	err = h.scheduleUsecase.DeleteOverride(r.Context(), overrideID)
	if err != nil {
		writeUsecaseError(w, err, "Failed to delete busy override")
		return
	}

	response.Success(w, http.StatusOK, "Busy override deleted successfully", nil)
}
