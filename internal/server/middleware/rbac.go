package middleware

import (
	"net/http"

	"github.com/gosuda/campus/internal/domain"
)

// RequireRole returns middleware that checks if the authenticated principal
// has one of the allowed roles. It must be chained after Auth.
//
// Returns 401 when no principal is in context and 403 when the role does not
// match.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok || role == "" {
				writeError(w, http.StatusUnauthorized, CodeNoToken, "Authentication required")
				return
			}

			if _, match := allowed[role]; !match {
				writeError(w, http.StatusForbidden, CodeForbidden, "Insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin is a convenience wrapper for RequireRole(domain.RoleSuperAdmin).
func RequireSuperAdmin() func(http.Handler) http.Handler {
	return RequireRole(domain.RoleSuperAdmin)
}

// RequireStaff admits institute owners and teachers, plus the super-admin.
func RequireStaff() func(http.Handler) http.Handler {
	return RequireRole(domain.RoleOwner, domain.RoleTeacher, domain.RoleSuperAdmin)
}
