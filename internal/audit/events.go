package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/tally/internal/domain"
	redisstore "github.com/gosuda/tally/internal/store/redis"
)

type EventType string

const (
	EventAuditCreated   EventType = "audit.created"
	EventAuditStarted   EventType = "audit.started"
	EventCountsUpdated  EventType = "audit.counts_updated"
	EventScanRecorded   EventType = "scan.recorded"
	EventAuditCompleted EventType = "audit.completed"
	EventAuditCancelled EventType = "audit.cancelled"
	EventAuditUpdated   EventType = "audit.updated"
	EventAssetsAdded    EventType = "assets.added"
	EventAssetsRemoved  EventType = "assets.removed"
	EventScanRemoved    EventType = "scan.removed"
)

// Event is the payload relayed to WebSocket clients.
type Event struct {
	Type           EventType            `json:"type"`
	AuditSessionID uuid.UUID            `json:"audit_session_id"`
	Session        *domain.AuditSession `json:"session"`
	Asset          *domain.AuditAsset   `json:"asset,omitempty"`
}

// publish sends the event to the session channel and the organization
// channel. Delivery is best effort.
func (s *Service) publish(ctx context.Context, t EventType, session *domain.AuditSession, asset *domain.AuditAsset) {
	if s.events == nil {
		return
	}

	payload, err := json.Marshal(Event{
		Type:           t,
		AuditSessionID: session.ID,
		Session:        session,
		Asset:          asset,
	})
	if err != nil {
		log.Error().Err(err).Str("event", string(t)).Msg("audit: marshal event")
		return
	}

	for _, channel := range []string{
		redisstore.AuditChannel(session.OrganizationID, session.ID),
		redisstore.OrganizationChannel(session.OrganizationID),
	} {
		if err := s.events.Publish(ctx, channel, payload); err != nil {
			log.Warn().Err(err).
				Str("channel", channel).
				Str("event", string(t)).
				Msg("audit: publish event")
		}
	}
}
