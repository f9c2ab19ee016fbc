package slack

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/tally/internal/messenger"
)

// Platform is the messenger link platform name for Slack.
const Platform = "slack"

// SlackAPI abstracts the subset of the Slack client used by SlackMessenger.
// *slacklib.Client satisfies it.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackMessenger implements messenger.Messenger for Slack.
type SlackMessenger struct {
	api SlackAPI
}

var _ messenger.Messenger = (*SlackMessenger)(nil) //nolint:gochecknoglobals // compile-time check

func NewSlackMessenger(api SlackAPI) *SlackMessenger {
	return &SlackMessenger{api: api}
}

// NewFromToken builds a messenger backed by a real Slack client.
func NewFromToken(botToken string) *SlackMessenger {
	return NewSlackMessenger(slacklib.New(botToken))
}

// SendNotification posts a direct message to a Slack user. Posting to a user
// ID opens the bot's DM with that user.
func (m *SlackMessenger) SendNotification(ctx context.Context, userExternalID, text string) error {
	_, _, err := m.api.PostMessageContext(ctx, userExternalID,
		slacklib.MsgOptionText(text, false),
		slacklib.MsgOptionBlocks(BuildNotificationBlocks(text)...),
	)
	if err != nil {
		return fmt.Errorf("slack.SlackMessenger.SendNotification: %w", err)
	}

	return nil
}

func (m *SlackMessenger) Platform() string {
	return Platform
}
