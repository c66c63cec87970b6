package http

import (
	"context"
	"net/http"
	"time"

	"go-clinic-scheduling/internal/delivery/http/handler"
	"go-clinic-scheduling/internal/delivery/http/middleware"
	"go-clinic-scheduling/pkg/response"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// ReadyCheck is a named dependency check for /ready
type ReadyCheck struct {
	Name  string
	Check func(context.Context) error
}

type Router struct {
	router                *mux.Router
	appointmentHandler    *handler.AppointmentHandler
	doctorScheduleHandler *handler.DoctorScheduleHandler
	notificationHandler   *handler.NotificationHandler
	auditLogHandler       *handler.AuditLogHandler
	authMiddleware        *middleware.AuthMiddleware
	corsMiddleware        *middleware.CORSMiddleware
	readyChecks           []ReadyCheck
}

func NewRouter(
	appointmentHandler *handler.AppointmentHandler,
	doctorScheduleHandler *handler.DoctorScheduleHandler,
	notificationHandler *handler.NotificationHandler,
	auditLogHandler *handler.AuditLogHandler,
	authMiddleware *middleware.AuthMiddleware,
	corsMiddleware *middleware.CORSMiddleware,
	readyChecks ...ReadyCheck,
) *Router {
	return &Router{
		router:                mux.NewRouter(),
		appointmentHandler:    appointmentHandler,
		doctorScheduleHandler: doctorScheduleHandler,
		notificationHandler:   notificationHandler,
		auditLogHandler:       auditLogHandler,
		authMiddleware:        authMiddleware,
		corsMiddleware:        corsMiddleware,
		readyChecks:           readyChecks,
	}
}

// Setup registers every route and returns the root handler wrapped for tracing
func (r *Router) Setup() http.Handler {
	// API versioning
	api := r.router.PathPrefix("/api/v1").Subrouter()

	// Health checks (public)
	api.HandleFunc("/health", r.healthCheck).Methods(http.MethodGet)
	api.HandleFunc("/ready", r.readyCheck).Methods(http.MethodGet)

	// Authenticated routes, any role
	protected := api.NewRoute().Subrouter()
	protected.Use(r.authMiddleware.Authenticate)

	// Availability
	protected.HandleFunc("/doctors/{doctorId}/availability", r.doctorScheduleHandler.GetFreeSlots).Methods(http.MethodGet)
	protected.HandleFunc("/doctors/{doctorId}/availability-template", r.doctorScheduleHandler.GetTemplate).Methods(http.MethodGet)
	protected.HandleFunc("/doctors/{doctorId}/busy-overrides", r.doctorScheduleHandler.ListOverrides).Methods(http.MethodGet)

	// Appointments
	protected.HandleFunc("/appointments", r.appointmentHandler.CreateAppointment).Methods(http.MethodPost)
	protected.HandleFunc("/appointments", r.appointmentHandler.GetMyAppointments).Methods(http.MethodGet)
	protected.HandleFunc("/appointments/{id}", r.appointmentHandler.GetAppointment).Methods(http.MethodGet)
	protected.HandleFunc("/appointments/{id}/reschedule", r.appointmentHandler.RescheduleAppointment).Methods(http.MethodPatch)
	protected.HandleFunc("/appointments/{id}/cancel", r.appointmentHandler.CancelAppointment).Methods(http.MethodPatch)
	protected.HandleFunc("/appointments/{id}/complete", r.appointmentHandler.CompleteAppointment).Methods(http.MethodPatch)

	// Notification dashboard
	protected.HandleFunc("/notifications", r.notificationHandler.GetMyNotifications).Methods(http.MethodGet)
	protected.HandleFunc("/notifications/{id}/read", r.notificationHandler.MarkAsRead).Methods(http.MethodPatch)

	// Schedule management (admin or the doctor; ownership is checked in the usecase)
	staff := api.NewRoute().Subrouter()
	staff.Use(r.authMiddleware.Authenticate)
	staff.Use(middleware.RequireAdminOrDoctor)
	staff.HandleFunc("/doctors/{doctorId}/availability-template", r.doctorScheduleHandler.ReplaceTemplate).Methods(http.MethodPut)
	staff.HandleFunc("/doctors/{doctorId}/busy-overrides", r.doctorScheduleHandler.CreateOverride).Methods(http.MethodPost)
	staff.HandleFunc("/busy-overrides/{id}", r.doctorScheduleHandler.DeleteOverride).Methods(http.MethodDelete)

	// Admin routes (protected - admin only)
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(r.authMiddleware.Authenticate)
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/audit-logs", r.auditLogHandler.GetAllAuditLogs).Methods(http.MethodGet)
	admin.HandleFunc("/audit-logs/{id}", r.auditLogHandler.GetAuditLog).Methods(http.MethodGet)

	// Add CORS middleware
	r.router.Use(r.corsMiddleware.Handle)

	return otelhttp.NewHandler(r.router, "clinic-scheduling-api")
}

func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	response.Success(w, http.StatusOK, "ok", nil)
}

func (r *Router) readyCheck(w http.ResponseWriter, req *http.Request) {
	failures := make(map[string]string)
	for _, check := range r.readyChecks {
		if check.Check == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		err := check.Check(ctx)
		cancel()
		if err != nil {
			failures[check.Name] = err.Error()
		}
	}

	if len(failures) > 0 {
		response.ServiceUnavailable(w, "Dependencies not ready", failures)
		return
	}
	response.Success(w, http.StatusOK, "ready", nil)
}
