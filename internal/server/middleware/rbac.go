package middleware

import (
	"fmt"
	"net/http"

	"github.com/gosuda/tally/internal/domain"
)

// deny writes a problem body shaped like huma's error model, so gates in
// front of huma routes fail the same way the handlers do.
func deny(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	fmt.Fprintf(w, `{"title":%q,"status":%d,"detail":%q}`, http.StatusText(status), status, detail)
}

// RequirePermission admits requests whose role grants action on entity.
// Chain it after Auth: a missing role is 401, an insufficient one 403.
func RequirePermission(entity domain.PermissionEntity, action domain.PermissionAction) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			switch {
			case !ok || role == "":
				deny(w, http.StatusUnauthorized, "authentication required")
			case !role.Can(entity, action):
				deny(w, http.StatusForbidden, fmt.Sprintf("role %q may not %s %s", role, action, entity))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
