package middleware

import (
	"net/http"
	"slices"

	"go-clinic-scheduling/internal/domain/entity"
	"go-clinic-scheduling/pkg/response"
)

// RequireRole lets the request through when the actor set by AuthMiddleware holds one of roleIDs.
// Ownership checks (a doctor editing only their own schedule) stay in the usecases.
func RequireRole(roleIDs ...int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				response.Unauthorized(w, "Role information not found")
				return
			}

			if !slices.Contains(roleIDs, actor.RoleID) {
				role := entity.RoleNameByID(actor.RoleID)
				if role == "" {
					role = "unknown role"
				}
				response.Forbidden(w, "Not available for "+role)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin guards the audit log endpoints
func RequireAdmin(next http.Handler) http.Handler {
	return RequireRole(entity.RoleIDAdmin)(next)
}

// RequireAdminOrDoctor guards availability template and busy override writes
func RequireAdminOrDoctor(next http.Handler) http.Handler {
	return RequireRole(entity.RoleIDAdmin, entity.RoleIDDoctor)(next)
}
