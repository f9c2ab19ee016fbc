package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gosuda/tally/internal/domain"
	"github.com/gosuda/tally/internal/server/middleware"
)

type LinkMessengerInput struct {
	Body struct {
		Platform   string `json:"platform" minLength:"1" maxLength:"32" doc:"Messenger platform, e.g. slack"`
		ExternalID string `json:"external_id" minLength:"1" maxLength:"255" doc:"User ID on the platform"`
	}
}

type LinkMessengerOutput struct {
	Body *domain.UserMessengerLink
}

type ListMessengerLinksOutput struct {
	Body []*domain.UserMessengerLink
}

// RegisterAccountRoutes mounts the caller's own account endpoints. known
// reports whether a messenger platform is configured.
func RegisterAccountRoutes(api huma.API, authSvc AuthService, known func(string) bool) {
	huma.Register(api, huma.Operation{
		OperationID: "link-messenger",
		Method:      http.MethodPost,
		Path:        "/me/messenger-links",
		Summary:     "Link a messenger account for reminders",
		Tags:        []string{"Account"},
	}, func(ctx context.Context, input *LinkMessengerInput) (*LinkMessengerOutput, error) {
		actor, err := actorFromContext(ctx)
		if err != nil {
			return nil, err
		}

		link, err := authSvc.LinkMessenger(ctx, actor.OrganizationID, actor.UserID, input.Body.Platform, input.Body.ExternalID, known)
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrValidation):
				return nil, huma.Error422UnprocessableEntity(err.Error())
			case errors.Is(err, domain.ErrConflict):
				return nil, huma.Error409Conflict("messenger account already linked")
			case errors.Is(err, domain.ErrNotFound):
				return nil, huma.Error404NotFound("user not found")
			}
			return nil, huma.Error500InternalServerError("failed to link messenger", err)
		}
		return &LinkMessengerOutput{Body: link}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-messenger-links",
		Method:      http.MethodGet,
		Path:        "/me/messenger-links",
		Summary:     "List linked messenger accounts",
		Tags:        []string{"Account"},
	}, func(ctx context.Context, _ *struct{}) (*ListMessengerLinksOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("missing user context")
		}

		links, err := authSvc.MessengerLinks(ctx, userID)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list messenger links", err)
		}
		return &ListMessengerLinksOutput{Body: links}, nil
	})
}
