package middleware

import (
	"net/http"

	"github.com/google/uuid"
)

// RequireOrganization rejects principals that are not scoped to an organization.
func RequireOrganization() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if orgID, ok := OrganizationIDFromContext(r.Context()); !ok || orgID == uuid.Nil {
				deny(w, http.StatusForbidden, "valid organization required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
