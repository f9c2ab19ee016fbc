package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/auth"
	"github.com/gosuda/tally/internal/domain"
)

// APIKeyValidator resolves a raw API key to its owner.
type APIKeyValidator interface {
	ValidateAPIKey(ctx context.Context, rawKey string) (*domain.User, *domain.APIKey, error)
}

// Auth accepts a bearer access token or an X-API-Key header and stores the
// principal in the request context.
func Auth(jwtSecret string, keys APIKeyValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := extractBearer(r); tok != "" {
				if ctx, ok := authenticateJWT(r.Context(), tok, jwtSecret); ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			if key := r.Header.Get("X-API-Key"); key != "" && keys != nil {
				if ctx, ok := authenticateAPIKey(r.Context(), key, keys); ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			deny(w, http.StatusUnauthorized, "missing or invalid credentials")
		})
	}
}

func extractBearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return h[7:]
	}
	return ""
}

func authenticateJWT(ctx context.Context, tokenStr, secret string) (context.Context, bool) {
	claims, err := auth.ValidateToken(secret, tokenStr)
	if err != nil || claims.TokenType != "access" {
		return ctx, false
	}

	orgID, err := uuid.Parse(claims.OrganizationID)
	if err != nil {
		return ctx, false
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return ctx, false
	}

	return WithIdentity(ctx, orgID, userID, claims.Role), true
}

func authenticateAPIKey(ctx context.Context, rawKey string, keys APIKeyValidator) (context.Context, bool) {
	user, key, err := keys.ValidateAPIKey(ctx, rawKey)
	if err != nil {
		return ctx, false
	}
	return WithIdentity(ctx, key.OrganizationID, user.ID, user.Role), true
}
