package activity

import (
	"context"
	"fmt"
	"os"

	"github.com/slack-go/slack"
	"go.temporal.io/sdk/activity"
)

// SlackActivities contains activities for Slack notifications.
type SlackActivities struct {
	client *slack.Client
}

// NewSlackActivities creates a SlackActivities instance. When SLACK_BOT_TOKEN
// is unset the activities become no-ops so notifications never block a
// workflow.
func NewSlackActivities() *SlackActivities {
	token := os.Getenv("SLACK_BOT_TOKEN")
	if token == "" {
		return &SlackActivities{}
	}
	return &SlackActivities{client: slack.New(token)}
}

// NotifySlack posts a message to a channel, optionally threading it under
// threadTS. It returns the message timestamp so callers can thread followups.
func (a *SlackActivities) NotifySlack(ctx context.Context, channel, message string, threadTS *string) (*string, error) {
	logger := activity.GetLogger(ctx)

	if a.client == nil {
		logger.Info("Slack not configured, skipping notification", "channel", channel)
		return nil, nil
	}

	opts := []slack.MsgOption{slack.MsgOptionText(message, false)}
	if threadTS != nil && *threadTS != "" {
		opts = append(opts, slack.MsgOptionTS(*threadTS))
	}

	_, ts, err := a.client.PostMessageContext(ctx, channel, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to post to %s: %w", channel, err)
	}

	logger.Info("Slack notification sent", "channel", channel, "ts", ts)
	return &ts, nil
}
