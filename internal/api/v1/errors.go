package v1

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tally/internal/audit"
	"github.com/gosuda/tally/internal/domain"
	"github.com/gosuda/tally/internal/server/middleware"
)

// actorFromContext builds the audit actor from the identity Auth stored.
func actorFromContext(ctx context.Context) (audit.Actor, error) {
	orgID, ok := middleware.OrganizationIDFromContext(ctx)
	if !ok {
		return audit.Actor{}, huma.Error403Forbidden("missing organization context")
	}
	userID, ok := middleware.UserIDFromContext(ctx)
	if !ok {
		return audit.Actor{}, huma.Error401Unauthorized("missing user context")
	}
	role, _ := middleware.RoleFromContext(ctx)
	return audit.Actor{OrganizationID: orgID, UserID: userID, Role: role}, nil
}

// domainError maps domain sentinels to HTTP problems. Unknown errors become
// 500 with msg and are logged.
func domainError(err error, msg string) error {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return huma.Error403Forbidden("insufficient permissions")
	case errors.Is(err, domain.ErrNotFound):
		return huma.Error404NotFound("audit not found")
	case errors.Is(err, domain.ErrValidation):
		return huma.Error422UnprocessableEntity(err.Error())
	case errors.Is(err, domain.ErrTerminalState):
		return huma.Error409Conflict("audit is already completed or cancelled")
	case errors.Is(err, domain.ErrConflict):
		return huma.Error409Conflict("an open audit already exists for this target")
	default:
		log.Error().Err(err).Msg(msg)
		return huma.Error500InternalServerError(msg)
	}
}
