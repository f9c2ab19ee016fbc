package slack

import (
	slacklib "github.com/slack-go/slack"
)

// BuildNotificationBlocks renders a notification as a markdown section with
// a small footer.
func BuildNotificationBlocks(text string) []slacklib.Block {
	section := slacklib.NewSectionBlock(
		slacklib.NewTextBlockObject(slacklib.MarkdownType, text, false, false),
		nil,
		nil,
	)
	footer := slacklib.NewContextBlock("",
		slacklib.NewTextBlockObject(slacklib.MarkdownType, "Sent by *Tally* audit reminders", false, false),
	)

	return []slacklib.Block{section, footer}
}
