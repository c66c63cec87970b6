package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-clinic-scheduling/internal/delivery/http/middleware"

	"github.com/stretchr/testify/assert"
)

func newHealthRouter(checks ...ReadyCheck) http.Handler {
	return NewRouter(nil, nil, nil, nil, &middleware.AuthMiddleware{}, middleware.NewCORSMiddleware("*"), checks...).Setup()
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newHealthRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReady(t *testing.T) {
	ok := ReadyCheck{Name: "db", Check: func(context.Context) error { return nil }}
	down := ReadyCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}

	rec := httptest.NewRecorder()
	newHealthRouter(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	newHealthRouter(ok, down).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	rec := httptest.NewRecorder()
	newHealthRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
