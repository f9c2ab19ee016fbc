package ws

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/gosuda/tally/internal/server/middleware"
	redisstore "github.com/gosuda/tally/internal/store/redis"
)

// Broker is the pub/sub transport behind the hub. *redisstore.PubSub
// satisfies this interface.
type Broker interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error)
}

// Hub relays audit events from the broker to WebSocket clients.
type Hub struct {
	broker Broker
}

// NewHub creates a new WebSocket hub.
func NewHub(broker Broker) *Hub {
	return &Hub{broker: broker}
}

// ServeAudit streams the events of one audit session.
// Subscribes to Redis channel "audit:<orgID>:<auditID>".
func (h *Hub) ServeAudit(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.OrganizationIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing organization", http.StatusBadRequest)
		return
	}

	auditID, err := uuid.Parse(chi.URLParam(r, "auditID"))
	if err != nil {
		http.Error(w, "invalid audit id", http.StatusBadRequest)
		return
	}

	h.stream(w, r, redisstore.AuditChannel(orgID, auditID))
}

// ServeOrganization streams every audit event of the caller's organization.
func (h *Hub) ServeOrganization(w http.ResponseWriter, r *http.Request) {
	orgID, ok := middleware.OrganizationIDFromContext(r.Context())
	if !ok {
		http.Error(w, "missing organization", http.StatusBadRequest)
		return
	}

	h.stream(w, r, redisstore.OrganizationChannel(orgID))
}

func (h *Hub) stream(w http.ResponseWriter, r *http.Request, channel string) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	// Clients only listen; CloseRead handles control frames and cancels
	// ctx when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	messages, cleanup, err := h.broker.Subscribe(ctx, channel)
	if err != nil {
		log.Error().Err(err).Str("channel", channel).Msg("websocket subscribe")
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer cleanup()

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
			return
		case msg, msgOK := <-messages:
			if !msgOK {
				_ = conn.Close(websocket.StatusNormalClosure, "channel closed")
				return
			}
			if writeErr := conn.Write(ctx, websocket.MessageText, msg); writeErr != nil {
				log.Debug().Err(writeErr).Str("channel", channel).Msg("websocket write")
				return
			}
		}
	}
}

// Publish sends an event payload to a broker channel. The audit service
// uses it to fan out lifecycle events.
func (h *Hub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := h.broker.Publish(ctx, channel, payload); err != nil {
		return fmt.Errorf("ws.Hub.Publish: %w", err)
	}
	return nil
}
