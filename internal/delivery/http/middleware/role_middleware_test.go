package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-clinic-scheduling/internal/domain/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func roleRequest(ctx context.Context, guard func(http.Handler) http.Handler) int {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/doctors/x/availability-template", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	guard(next).ServeHTTP(rec, req)
	return rec.Code
}

func withRole(roleID int) context.Context {
	return ContextWithActor(context.Background(), entity.Actor{UserID: uuid.New(), RoleID: roleID})
}

func TestRequireAdminOrDoctor(t *testing.T) {
	assert.Equal(t, http.StatusOK, roleRequest(withRole(entity.RoleIDAdmin), RequireAdminOrDoctor))
	assert.Equal(t, http.StatusOK, roleRequest(withRole(entity.RoleIDDoctor), RequireAdminOrDoctor))
	assert.Equal(t, http.StatusForbidden, roleRequest(withRole(entity.RoleIDPatient), RequireAdminOrDoctor))
}

func TestRequireAdmin(t *testing.T) {
	assert.Equal(t, http.StatusOK, roleRequest(withRole(entity.RoleIDAdmin), RequireAdmin))
	assert.Equal(t, http.StatusForbidden, roleRequest(withRole(entity.RoleIDDoctor), RequireAdmin))
	assert.Equal(t, http.StatusForbidden, roleRequest(withRole(99), RequireAdmin))
	assert.Equal(t, http.StatusUnauthorized, roleRequest(context.Background(), RequireAdmin))
}
