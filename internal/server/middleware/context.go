package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/domain"
)

type contextKey string

const (
	ContextKeyOrganizationID contextKey = "organization_id"
	ContextKeyUserID         contextKey = "user_id"
	ContextKeyUserRole       contextKey = "role"
)

func OrganizationIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyOrganizationID).(uuid.UUID)
	return v, ok
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	return v, ok
}

func RoleFromContext(ctx context.Context) (domain.Role, bool) {
	v, ok := ctx.Value(ContextKeyUserRole).(domain.Role)
	return v, ok
}

// WithIdentity returns ctx carrying the authenticated principal.
func WithIdentity(ctx context.Context, orgID, userID uuid.UUID, role domain.Role) context.Context {
	ctx = context.WithValue(ctx, ContextKeyOrganizationID, orgID)
	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	return context.WithValue(ctx, ContextKeyUserRole, role)
}
