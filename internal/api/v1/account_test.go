package v1_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/tally/internal/api/v1"
	"github.com/gosuda/tally/internal/domain"
)

func slackOnly(p string) bool { return p == "slack" }

func TestLinkMessengerRoute(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			linkMessengerFunc: func(_ context.Context, orgID, userID uuid.UUID, platform, externalID string, known func(string) bool) (*domain.UserMessengerLink, error) {
				assert.Equal(t, fixedOrgID(), orgID)
				assert.Equal(t, fixedUserID(), userID)
				assert.Equal(t, "slack", platform)
				assert.True(t, known(platform))
				return &domain.UserMessengerLink{ID: uuid.New(), UserID: userID, OrganizationID: orgID, Platform: platform, ExternalID: externalID}, nil
			},
		}
		v1.RegisterAccountRoutes(api, authSvc, slackOnly)

		resp := api.PostCtx(memberCtx(), "/me/messenger-links", map[string]any{
			"platform":    "slack",
			"external_id": "U123",
		})
		require.Equal(t, http.StatusOK, resp.Code)

		var body domain.UserMessengerLink
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "U123", body.ExternalID)
	})

	t.Run("unknown_platform", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			linkMessengerFunc: func(context.Context, uuid.UUID, uuid.UUID, string, string, func(string) bool) (*domain.UserMessengerLink, error) {
				return nil, fmt.Errorf("auth.LinkMessenger: unknown platform: %w", domain.ErrValidation)
			},
		}
		v1.RegisterAccountRoutes(api, authSvc, slackOnly)

		resp := api.PostCtx(memberCtx(), "/me/messenger-links", map[string]any{
			"platform":    "teams",
			"external_id": "U123",
		})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("already_linked", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			linkMessengerFunc: func(context.Context, uuid.UUID, uuid.UUID, string, string, func(string) bool) (*domain.UserMessengerLink, error) {
				return nil, fmt.Errorf("postgres.CreateMessengerLink: %w", domain.ErrConflict)
			},
		}
		v1.RegisterAccountRoutes(api, authSvc, slackOnly)

		resp := api.PostCtx(memberCtx(), "/me/messenger-links", map[string]any{
			"platform":    "slack",
			"external_id": "U123",
		})
		assert.Equal(t, http.StatusConflict, resp.Code)
	})
}

func TestListMessengerLinksRoute(t *testing.T) {
	t.Parallel()

	t.Run("happy_path", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		authSvc := &mockAuthService{
			messengerLinksFunc: func(_ context.Context, userID uuid.UUID) ([]*domain.UserMessengerLink, error) {
				assert.Equal(t, fixedUserID(), userID)
				return []*domain.UserMessengerLink{{ID: uuid.New(), Platform: "slack", ExternalID: "U1"}}, nil
			},
		}
		v1.RegisterAccountRoutes(api, authSvc, slackOnly)

		resp := api.GetCtx(memberCtx(), "/me/messenger-links")
		require.Equal(t, http.StatusOK, resp.Code)

		var body []domain.UserMessengerLink
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body, 1)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterAccountRoutes(api, &mockAuthService{}, slackOnly)

		resp := api.Get("/me/messenger-links")
		assert.Equal(t, http.StatusUnauthorized, resp.Code)
	})
}
