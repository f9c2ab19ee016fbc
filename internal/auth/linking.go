package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/domain"
)

// LinkMessenger binds the user to a chat account so reminders can reach
// them. platform must be one the notifier knows.
func (s *Service) LinkMessenger(ctx context.Context, orgID, userID uuid.UUID, platform, externalID string, known func(string) bool) (*domain.UserMessengerLink, error) {
	platform = strings.ToLower(strings.TrimSpace(platform))
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, fmt.Errorf("auth.LinkMessenger: external id is required: %w", domain.ErrValidation)
	}
	if known != nil && !known(platform) {
		return nil, fmt.Errorf("auth.LinkMessenger: unsupported platform %q: %w", platform, domain.ErrValidation)
	}

	if _, err := s.userRepo.GetByID(ctx, orgID, userID); err != nil {
		return nil, fmt.Errorf("auth.LinkMessenger: %w", err)
	}

	link := &domain.UserMessengerLink{
		ID:             uuid.New(),
		UserID:         userID,
		OrganizationID: orgID,
		Platform:       platform,
		ExternalID:     externalID,
		CreatedAt:      time.Now(),
	}

	if err := s.userRepo.CreateMessengerLink(ctx, link); err != nil {
		return nil, fmt.Errorf("auth.LinkMessenger: %w", err)
	}

	return link, nil
}

// MessengerLinks lists the chat accounts linked to the user.
func (s *Service) MessengerLinks(ctx context.Context, userID uuid.UUID) ([]*domain.UserMessengerLink, error) {
	links, err := s.userRepo.ListMessengerLinks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("auth.MessengerLinks: %w", err)
	}
	return links, nil
}
