package v1

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/auth"
	"github.com/gosuda/tally/internal/domain"
)

type credentialsBody struct {
	Email     string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
	Password  string `json:"password" minLength:"8" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	FirstName string `json:"first_name,omitempty" maxLength:"255" doc:"First name"`
	LastName  string `json:"last_name,omitempty" maxLength:"255" doc:"Last name"`
}

type RegisterInput struct {
	Body struct {
		credentialsBody
		OrganizationSlug string `json:"organization_slug" minLength:"1" maxLength:"63" doc:"Organization slug"`
	}
}

type RegisterOutput struct {
	Body struct {
		User         *domain.User `json:"user"`
		AccessToken  string       `json:"access_token"`  //nolint:gosec // G117: auth response DTO
		RefreshToken string       `json:"refresh_token"` //nolint:gosec // G117: auth response DTO
	}
}

type SignupInput struct {
	Body struct {
		credentialsBody
		OrganizationName string `json:"organization_name" minLength:"1" maxLength:"255" doc:"Organization name"`
		OrganizationSlug string `json:"organization_slug" minLength:"1" maxLength:"63" pattern:"^[a-z0-9]+(?:-[a-z0-9]+)*$" doc:"URL-safe organization slug"`
	}
}

type SignupOutput struct {
	Body struct {
		Organization *domain.Organization `json:"organization"`
		User         *domain.User         `json:"user"`
		AccessToken  string               `json:"access_token"`  //nolint:gosec // G117: auth response DTO
		RefreshToken string               `json:"refresh_token"` //nolint:gosec // G117: auth response DTO
	}
}

type LoginInput struct {
	Body struct {
		OrganizationSlug string `json:"organization_slug" minLength:"1" maxLength:"63" doc:"Organization slug"`
		Email            string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
		Password         string `json:"password" minLength:"1" maxLength:"128" doc:"Password"` //nolint:gosec // G117: login credential DTO
	}
}

type LoginOutput struct {
	Body struct {
		AccessToken  string `json:"access_token"`  //nolint:gosec // G117: auth response DTO
		RefreshToken string `json:"refresh_token"` //nolint:gosec // G117: auth response DTO
	}
}

type RefreshInput struct {
	Body struct {
		RefreshToken string `json:"refresh_token" minLength:"1" doc:"Refresh token"` //nolint:gosec // G117: token refresh DTO
	}
}

type RefreshOutput struct {
	Body struct {
		AccessToken string `json:"access_token"` //nolint:gosec // G117: auth response DTO
	}
}

func organizationBySlug(ctx context.Context, store DataStore, slug string) (*domain.Organization, error) {
	org, err := store.Organizations().GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, huma.Error404NotFound("organization not found")
		}
		return nil, huma.Error500InternalServerError("failed to look up organization", err)
	}
	return org, nil
}

// registerAndLogin creates the user and issues its first token pair.
func registerAndLogin(ctx context.Context, authSvc AuthService, orgID uuid.UUID, c credentialsBody, role domain.Role) (*domain.User, string, string, error) {
	user, err := authSvc.Register(ctx, auth.RegisterParams{
		OrganizationID: orgID,
		Email:          c.Email,
		Password:       c.Password,
		FirstName:      c.FirstName,
		LastName:       c.LastName,
		Role:           role,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserAlreadyExists):
			return nil, "", "", huma.Error409Conflict("user already exists")
		case errors.Is(err, domain.ErrValidation):
			return nil, "", "", huma.Error422UnprocessableEntity(err.Error())
		}
		return nil, "", "", huma.Error500InternalServerError("failed to register user", err)
	}

	accessToken, refreshToken, err := authSvc.Login(ctx, orgID, c.Email, c.Password)
	if err != nil {
		return nil, "", "", huma.Error500InternalServerError("registered but failed to issue tokens", err)
	}

	user.PasswordHash = ""
	return user, accessToken, refreshToken, nil
}

func RegisterAuthRoutes(api huma.API, store DataStore, authSvc AuthService) {
	huma.Register(api, huma.Operation{
		OperationID: "signup",
		Method:      http.MethodPost,
		Path:        "/auth/signup",
		Summary:     "Create an organization and its owner",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *SignupInput) (*SignupOutput, error) {
		org := newOrganization(input.Body.OrganizationName, input.Body.OrganizationSlug)
		if err := store.Organizations().Create(ctx, org); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return nil, huma.Error409Conflict("organization slug already taken")
			}
			return nil, huma.Error500InternalServerError("failed to create organization", err)
		}

		user, accessToken, refreshToken, err := registerAndLogin(ctx, authSvc, org.ID, input.Body.credentialsBody, domain.RoleOwner)
		if err != nil {
			return nil, err
		}

		out := &SignupOutput{}
		out.Body.Organization = org
		out.Body.User = user
		out.Body.AccessToken = accessToken
		out.Body.RefreshToken = refreshToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "register",
		Method:      http.MethodPost,
		Path:        "/auth/register",
		Summary:     "Register a new member of an organization",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RegisterInput) (*RegisterOutput, error) {
		org, err := organizationBySlug(ctx, store, input.Body.OrganizationSlug)
		if err != nil {
			return nil, err
		}

		user, accessToken, refreshToken, err := registerAndLogin(ctx, authSvc, org.ID, input.Body.credentialsBody, domain.RoleMember)
		if err != nil {
			return nil, err
		}

		out := &RegisterOutput{}
		out.Body.User = user
		out.Body.AccessToken = accessToken
		out.Body.RefreshToken = refreshToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Login with email and password",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *LoginInput) (*LoginOutput, error) {
		org, err := organizationBySlug(ctx, store, input.Body.OrganizationSlug)
		if err != nil {
			return nil, err
		}

		accessToken, refreshToken, err := authSvc.Login(ctx, org.ID, input.Body.Email, input.Body.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				return nil, huma.Error401Unauthorized("invalid email or password")
			}
			return nil, huma.Error500InternalServerError("login failed", err)
		}

		out := &LoginOutput{}
		out.Body.AccessToken = accessToken
		out.Body.RefreshToken = refreshToken
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "refresh-token",
		Method:      http.MethodPost,
		Path:        "/auth/refresh",
		Summary:     "Refresh access token",
		Tags:        []string{"Auth"},
	}, func(ctx context.Context, input *RefreshInput) (*RefreshOutput, error) {
		accessToken, err := authSvc.RefreshToken(ctx, input.Body.RefreshToken)
		if err != nil {
			return nil, huma.Error401Unauthorized("invalid or expired refresh token")
		}

		out := &RefreshOutput{}
		out.Body.AccessToken = accessToken
		return out, nil
	})
}
