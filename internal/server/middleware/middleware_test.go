package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/tally/internal/auth"
	"github.com/gosuda/tally/internal/domain"
	"github.com/gosuda/tally/internal/server/middleware"
)

// mockKeys implements middleware.APIKeyValidator.
type mockKeys struct {
	validateFn func(ctx context.Context, rawKey string) (*domain.User, *domain.APIKey, error)
}

func (m *mockKeys) ValidateAPIKey(ctx context.Context, rawKey string) (*domain.User, *domain.APIKey, error) {
	if m.validateFn != nil {
		return m.validateFn(ctx, rawKey)
	}
	return nil, nil, auth.ErrInvalidAPIKey
}

// contextHandler captures the identity Auth stored in the context.
type contextHandler struct {
	orgID  uuid.UUID
	userID uuid.UUID
	role   domain.Role
	called bool
}

func (h *contextHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.orgID, _ = middleware.OrganizationIDFromContext(r.Context())
	h.userID, _ = middleware.UserIDFromContext(r.Context())
	h.role, _ = middleware.RoleFromContext(r.Context())
	w.WriteHeader(http.StatusOK)
}

func setOrganization(r *http.Request, orgID uuid.UUID) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.ContextKeyOrganizationID, orgID))
}

// ===========================================================================
// 1. Context helpers
// ===========================================================================

func TestWithIdentity(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	userID := uuid.New()
	ctx := middleware.WithIdentity(context.Background(), orgID, userID, domain.RoleViewer)

	gotOrg, ok := middleware.OrganizationIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, orgID, gotOrg)

	gotUser, ok := middleware.UserIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, userID, gotUser)

	gotRole, ok := middleware.RoleFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.RoleViewer, gotRole)
}

func TestContextHelpers_AbsentOrWrongType(t *testing.T) {
	t.Parallel()

	t.Run("absent", func(t *testing.T) {
		t.Parallel()

		_, ok := middleware.OrganizationIDFromContext(context.Background())
		assert.False(t, ok)
		_, ok = middleware.UserIDFromContext(context.Background())
		assert.False(t, ok)
		_, ok = middleware.RoleFromContext(context.Background())
		assert.False(t, ok)
	})

	t.Run("wrong type", func(t *testing.T) {
		t.Parallel()

		ctx := context.WithValue(context.Background(), middleware.ContextKeyOrganizationID, "not-a-uuid")
		ctx = context.WithValue(ctx, middleware.ContextKeyUserID, 42)
		ctx = context.WithValue(ctx, middleware.ContextKeyUserRole, "admin") // plain string, not domain.Role

		got, ok := middleware.OrganizationIDFromContext(ctx)
		assert.False(t, ok)
		assert.Equal(t, uuid.Nil, got)
		_, ok = middleware.UserIDFromContext(ctx)
		assert.False(t, ok)
		_, ok = middleware.RoleFromContext(ctx)
		assert.False(t, ok)
	})
}

// ===========================================================================
// 2. RequireOrganization
// ===========================================================================

func TestRequireOrganization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		req        func() *http.Request
		wantStatus int
	}{
		{
			name: "valid organization",
			req: func() *http.Request {
				return setOrganization(httptest.NewRequest(http.MethodGet, "/", http.NoBody), uuid.New())
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "absent",
			req:        func() *http.Request { return httptest.NewRequest(http.MethodGet, "/", http.NoBody) },
			wantStatus: http.StatusForbidden,
		},
		{
			name: "nil id",
			req: func() *http.Request {
				return setOrganization(httptest.NewRequest(http.MethodGet, "/", http.NoBody), uuid.Nil)
			},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			middleware.RequireOrganization()(okHandler).ServeHTTP(rec, tc.req())

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantStatus == http.StatusForbidden {
				assert.Contains(t, rec.Body.String(), "valid organization required")
			}
		})
	}
}

// ===========================================================================
// 3. RateLimit
// ===========================================================================

func TestRateLimit_NoOrganizationInContext_PassesThrough(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler)

	for range 3 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimit_BurstExceeded_Returns429(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	handler := middleware.RateLimit(t.Context(), 0.001, 2)(okHandler)

	for i := range 2 {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, setOrganization(httptest.NewRequest(http.MethodGet, "/", http.NoBody), orgID))
		require.Equalf(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, setOrganization(httptest.NewRequest(http.MethodGet, "/", http.NoBody), orgID))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}

func TestRateLimit_IndependentPerOrganization(t *testing.T) {
	t.Parallel()

	orgA := uuid.New()
	orgB := uuid.New()
	handler := middleware.RateLimit(t.Context(), 0.001, 1)(okHandler)

	serve := func(orgID uuid.UUID) int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, setOrganization(httptest.NewRequest(http.MethodGet, "/", http.NoBody), orgID))
		return rec.Code
	}

	require.Equal(t, http.StatusOK, serve(orgA))
	assert.Equal(t, http.StatusTooManyRequests, serve(orgA))
	assert.Equal(t, http.StatusOK, serve(orgB))
}

func TestRateLimitByIP(t *testing.T) {
	t.Parallel()

	handler := middleware.RateLimitByIP(t.Context(), 0.001, 1)(okHandler)

	serve := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", http.NoBody)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, serve("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, serve("10.0.0.1:1234"))
	assert.Equal(t, http.StatusTooManyRequests, serve("10.0.0.1:5678"), "source port must not open a new bucket")
	assert.Equal(t, http.StatusOK, serve("10.0.0.2:1234"))
	assert.Equal(t, http.StatusOK, serve("10.0.0.3"), "RemoteAddr without port")
}

func TestRateLimit_SetsRetryAfter(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	handler := middleware.RateLimit(t.Context(), 1, 1)(okHandler)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, setOrganization(httptest.NewRequest(http.MethodGet, "/", http.NoBody), orgID))
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get("Retry-After"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, setOrganization(httptest.NewRequest(http.MethodGet, "/", http.NoBody), orgID))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	retry, err := strconv.Atoi(rec.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)
	assert.LessOrEqual(t, retry, 2)
}

// ===========================================================================
// 4. Auth
// ===========================================================================

const testJWTSecret = "test-jwt-secret-for-middleware-tests"

func TestAuth_JWT_ValidToken_PopulatesContext(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	userID := uuid.New()

	token, err := auth.IssueAccessToken(testJWTSecret, orgID, userID, domain.RoleAdmin, 15*time.Minute)
	require.NoError(t, err)

	capture := &contextHandler{}
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	middleware.Auth(testJWTSecret, &mockKeys{})(capture).ServeHTTP(rec, req)

	require.True(t, capture.called)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, orgID, capture.orgID)
	assert.Equal(t, userID, capture.userID)
	assert.Equal(t, domain.RoleAdmin, capture.role)
}

func TestAuth_JWT_Rejected(t *testing.T) {
	t.Parallel()

	expired, err := auth.IssueAccessToken(testJWTSecret, uuid.New(), uuid.New(), domain.RoleMember, -time.Second)
	require.NoError(t, err)
	foreign, err := auth.IssueAccessToken("some-other-secret", uuid.New(), uuid.New(), domain.RoleMember, time.Minute)
	require.NoError(t, err)
	refresh, err := auth.IssueRefreshToken(testJWTSecret, uuid.New(), uuid.New(), domain.RoleMember, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "totally.invalid.token"},
		{name: "expired", token: expired},
		{name: "wrong secret", token: foreign},
		{name: "refresh token", token: refresh},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+tc.token)
			rec := httptest.NewRecorder()

			middleware.Auth(testJWTSecret, &mockKeys{})(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), "Unauthorized")
		})
	}
}

func TestAuth_BearerFormat(t *testing.T) {
	t.Parallel()

	token, err := auth.IssueAccessToken(testJWTSecret, uuid.New(), uuid.New(), domain.RoleMember, 15*time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "uppercase Bearer", authHeader: "Bearer " + token, wantStatus: http.StatusOK},
		{name: "lowercase bearer", authHeader: "bearer " + token, wantStatus: http.StatusOK},
		{name: "mixed case BEARER", authHeader: "BEARER " + token, wantStatus: http.StatusOK},
		{name: "Basic scheme falls through to 401", authHeader: "Basic " + token, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.Header.Set("Authorization", tt.authHeader)
			rec := httptest.NewRecorder()

			middleware.Auth(testJWTSecret, &mockKeys{})(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAuth_APIKey_Valid_UsesOwnerRole(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	user := &domain.User{ID: uuid.New(), OrganizationID: orgID, Role: domain.RoleViewer}
	keys := &mockKeys{validateFn: func(_ context.Context, rawKey string) (*domain.User, *domain.APIKey, error) {
		if rawKey != "tally_scanner-key" {
			return nil, nil, auth.ErrInvalidAPIKey
		}
		return user, &domain.APIKey{ID: uuid.New(), OrganizationID: orgID, UserID: user.ID}, nil
	}}

	capture := &contextHandler{}
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-API-Key", "tally_scanner-key")
	rec := httptest.NewRecorder()

	middleware.Auth(testJWTSecret, keys)(capture).ServeHTTP(rec, req)

	require.True(t, capture.called)
	assert.Equal(t, orgID, capture.orgID)
	assert.Equal(t, user.ID, capture.userID)
	assert.Equal(t, domain.RoleViewer, capture.role)
}

func TestAuth_APIKey_Invalid_Returns401(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-API-Key", "tally_wrong")
	rec := httptest.NewRecorder()

	middleware.Auth(testJWTSecret, &mockKeys{})(okHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuth_InvalidBearerFallsBackToAPIKey(t *testing.T) {
	t.Parallel()

	user := &domain.User{ID: uuid.New(), Role: domain.RoleMember}
	keys := &mockKeys{validateFn: func(context.Context, string) (*domain.User, *domain.APIKey, error) {
		return user, &domain.APIKey{OrganizationID: uuid.New(), UserID: user.ID}, nil
	}}

	capture := &contextHandler{}
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("Authorization", "Bearer nope")
	req.Header.Set("X-API-Key", "tally_scanner-key")
	rec := httptest.NewRecorder()

	middleware.Auth(testJWTSecret, keys)(capture).ServeHTTP(rec, req)

	assert.True(t, capture.called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAuth_NoCredentials_Returns401(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	middleware.Auth(testJWTSecret, nil)(okHandler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing or invalid credentials")
}
