// Package notify delivers audit reminders through the messenger accounts
// users have linked.
package notify

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tally/internal/domain"
	"github.com/gosuda/tally/internal/messenger"
)

// Delivery is the outcome of one Notify call.
type Delivery string

const (
	DeliverySent     Delivery = "sent"
	DeliveryUnlinked Delivery = "unlinked"
	DeliveryFailed   Delivery = "failed"
)

// MessengerRegistry maps platform names to Messenger implementations.
type MessengerRegistry interface {
	Get(platform string) (messenger.Messenger, bool)
}

// UserLinkResolver finds messenger links for a user.
type UserLinkResolver interface {
	ListMessengerLinks(ctx context.Context, userID uuid.UUID) ([]*domain.UserMessengerLink, error)
}

type Notifier struct {
	messengers MessengerRegistry
	userLinks  UserLinkResolver
}

func New(messengers MessengerRegistry, userLinks UserLinkResolver) *Notifier {
	return &Notifier{messengers: messengers, userLinks: userLinks}
}

// Notify sends message to userID. Links are tried newest first; the first
// accepted send wins. A user with no link on a configured platform yields
// DeliveryUnlinked and no error.
func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, message string) (Delivery, error) {
	links, err := n.userLinks.ListMessengerLinks(ctx, userID)
	if err != nil {
		return DeliveryFailed, fmt.Errorf("notify.Notify: list links: %w", err)
	}

	slices.SortStableFunc(links, func(a, b *domain.UserMessengerLink) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})

	var failures []error
	for _, link := range links {
		m, ok := n.messengers.Get(link.Platform)
		if !ok {
			continue
		}
		sendErr := m.SendNotification(ctx, link.ExternalID, message)
		if sendErr == nil {
			return DeliverySent, nil
		}
		log.Debug().Err(sendErr).
			Str("user_id", userID.String()).
			Str("platform", link.Platform).
			Msg("notify: send failed, trying next link")
		failures = append(failures, fmt.Errorf("%s: %w", link.Platform, sendErr))
	}

	if len(failures) > 0 {
		return DeliveryFailed, fmt.Errorf("notify.Notify: user %s: %w", userID, errors.Join(failures...))
	}

	log.Info().
		Str("user_id", userID.String()).
		Int("links", len(links)).
		Msg("notify: no deliverable messenger link, skipping")
	return DeliveryUnlinked, nil
}
