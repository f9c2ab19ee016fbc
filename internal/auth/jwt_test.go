package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/tally/internal/auth"
	"github.com/gosuda/tally/internal/domain"
)

const jwtTestSecret = "test-secret-key-very-long-and-secure"

func TestJWT_RoundTrip(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	userID := uuid.New()

	tests := []struct {
		name      string
		role      domain.Role
		issue     func(string, uuid.UUID, uuid.UUID, domain.Role, time.Duration) (string, error)
		tokenType string
	}{
		{name: "access", role: domain.RoleAdmin, issue: auth.IssueAccessToken, tokenType: "access"},
		{name: "refresh", role: domain.RoleViewer, issue: auth.IssueRefreshToken, tokenType: "refresh"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			token, err := tt.issue(jwtTestSecret, orgID, userID, tt.role, 10*time.Minute)
			require.NoError(t, err)

			claims, err := auth.ValidateToken(jwtTestSecret, token)
			require.NoError(t, err)

			assert.Equal(t, orgID.String(), claims.OrganizationID)
			assert.Equal(t, userID.String(), claims.UserID)
			assert.Equal(t, userID.String(), claims.Subject)
			assert.Equal(t, tt.role, claims.Role)
			assert.Equal(t, tt.tokenType, claims.TokenType)
			assert.Equal(t, "tally", claims.Issuer)
			require.NotNil(t, claims.ExpiresAt)
			assert.WithinDuration(t, time.Now().Add(10*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
		})
	}
}

func signRaw(t *testing.T, method jwt.SigningMethod, key any, claims jwt.Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWT_Rejections(t *testing.T) {
	t.Parallel()

	orgID := uuid.New()
	userID := uuid.New()

	expired, err := auth.IssueAccessToken(jwtTestSecret, orgID, userID, domain.RoleMember, -time.Second)
	require.NoError(t, err)

	otherSecret, err := auth.IssueAccessToken("another-secret", orgID, userID, domain.RoleMember, time.Minute)
	require.NoError(t, err)

	valid := auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "tally",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
		OrganizationID: orgID.String(),
		UserID:         userID.String(),
		Role:           domain.RoleOwner,
		TokenType:      "access",
	}
	foreignIssuer := valid
	foreignIssuer.Issuer = "someone-else"

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", otherSecret},
		{"malformed", "not.a.valid.jwt.token"},
		{"empty", ""},
		{"foreign issuer", signRaw(t, jwt.SigningMethodHS256, []byte(jwtTestSecret), foreignIssuer)},
		{"other hmac algorithm", signRaw(t, jwt.SigningMethodHS512, []byte(jwtTestSecret), valid)},
		{"unsigned", signRaw(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			claims, err := auth.ValidateToken(jwtTestSecret, tt.token)
			require.ErrorIs(t, err, auth.ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}
