package messenger

import "context"

// Messenger delivers direct notifications through a chat platform.
type Messenger interface {
	// SendNotification sends a direct message to a user by their external
	// platform ID (e.g. Slack user ID).
	SendNotification(ctx context.Context, userExternalID, text string) error

	// Platform returns the platform identifier used in messenger links (e.g. "slack").
	Platform() string
}
