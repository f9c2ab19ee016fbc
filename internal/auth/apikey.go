package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tally/internal/domain"
)

// ErrInvalidAPIKey is returned when an API key is not found or the hash does not match.
var ErrInvalidAPIKey = errors.New("auth: invalid API key")

const (
	apiKeyPrefix    = "tally_"
	apiKeyRandLen   = 16 // 16 bytes = 32 hex chars
	apiKeyPrefixLen = 12 // "tally_" plus 6 random chars, used for lookup
)

// GenerateAPIKey creates a key for a scanner device or script, stores its
// SHA-256 hash and returns the raw key. The raw key is never stored.
func (s *Service) GenerateAPIKey(ctx context.Context, orgID, userID uuid.UUID, name string, expiresAt *time.Time) (string, *domain.APIKey, error) {
	raw := make([]byte, apiKeyRandLen)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	rawKey := apiKeyPrefix + hex.EncodeToString(raw)

	key := &domain.APIKey{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         userID,
		Name:           name,
		KeyHash:        hashAPIKey(rawKey),
		Prefix:         rawKey[:apiKeyPrefixLen],
		ExpiresAt:      expiresAt,
		CreatedAt:      time.Now(),
	}

	if err := s.userRepo.CreateAPIKey(ctx, key); err != nil {
		return "", nil, fmt.Errorf("auth.GenerateAPIKey: %w", err)
	}

	return rawKey, key, nil
}

// ValidateAPIKey looks the key up by prefix, compares hashes and returns the
// owning user.
func (s *Service) ValidateAPIKey(ctx context.Context, rawKey string) (*domain.User, *domain.APIKey, error) {
	if len(rawKey) < apiKeyPrefixLen {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", ErrInvalidAPIKey)
	}

	apiKey, err := s.userRepo.GetAPIKeyByPrefix(ctx, rawKey[:apiKeyPrefixLen])
	if err != nil {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", ErrInvalidAPIKey)
	}

	if apiKey.KeyHash != hashAPIKey(rawKey) {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", ErrInvalidAPIKey)
	}

	if apiKey.ExpiresAt != nil && apiKey.ExpiresAt.Before(time.Now()) {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: key expired: %w", ErrInvalidAPIKey)
	}

	user, err := s.userRepo.GetByID(ctx, apiKey.OrganizationID, apiKey.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("auth.ValidateAPIKey: %w", err)
	}

	if updateErr := s.userRepo.UpdateAPIKeyLastUsed(ctx, apiKey.ID); updateErr != nil {
		log.Warn().Err(updateErr).Str("api_key_id", apiKey.ID.String()).Msg("auth.ValidateAPIKey: failed to update last_used_at")
	}

	return user, apiKey, nil
}

func hashAPIKey(rawKey string) string {
	sum := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(sum[:])
}
