package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/domain"
	"github.com/gosuda/tally/internal/server/middleware"
)

type CreateOrganizationInput struct {
	Body struct {
		Name string `json:"name" minLength:"1" maxLength:"255" doc:"Organization name"`
		Slug string `json:"slug" minLength:"1" maxLength:"63" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"URL-safe slug (lowercase alphanumeric with hyphens)"`
	}
}

type CreateOrganizationOutput struct {
	Body *domain.Organization
}

type ListOrganizationsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListOrganizationsOutput struct {
	Body []*domain.Organization
}

func requireOrganizationPermission(ctx context.Context, action domain.PermissionAction) error {
	role, ok := middleware.RoleFromContext(ctx)
	if !ok || !role.Can(domain.EntityOrganization, action) {
		return huma.Error403Forbidden("admin role required")
	}
	return nil
}

func newOrganization(name, slug string) *domain.Organization {
	now := time.Now()
	return &domain.Organization{
		ID:        uuid.New(),
		Name:      name,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func RegisterOrganizationRoutes(api huma.API, store DataStore) {
	huma.Register(api, huma.Operation{
		OperationID: "create-organization",
		Method:      http.MethodPost,
		Path:        "/organizations",
		Summary:     "Create a new organization",
		Tags:        []string{"Organizations"},
	}, func(ctx context.Context, input *CreateOrganizationInput) (*CreateOrganizationOutput, error) {
		if err := requireOrganizationPermission(ctx, domain.ActionCreate); err != nil {
			return nil, err
		}

		o := newOrganization(input.Body.Name, input.Body.Slug)
		if err := store.Organizations().Create(ctx, o); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("slug already taken")
			}
			return nil, huma.Error500InternalServerError("failed to create organization", err)
		}

		return &CreateOrganizationOutput{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-organizations",
		Method:      http.MethodGet,
		Path:        "/organizations",
		Summary:     "List all organizations",
		Tags:        []string{"Organizations"},
	}, func(ctx context.Context, input *ListOrganizationsInput) (*ListOrganizationsOutput, error) {
		if err := requireOrganizationPermission(ctx, domain.ActionRead); err != nil {
			return nil, err
		}

		orgs, err := store.Organizations().ListPaginated(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to list organizations", err)
		}

		return &ListOrganizationsOutput{Body: orgs}, nil
	})
}
