package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goslack "github.com/slack-go/slack"

	"github.com/codeready-toolchain/milton/pkg/config"
)

// SlackChannel publishes via the slack-go SDK, the same thin-wrapper shape
// as tarsy's pkg/slack.Client.
type SlackChannel struct {
	api       *goslack.Client
	channelID string
	log       *slog.Logger
}

// NewSlackChannel builds a SlackChannel from config, reading the bot token
// from the configured environment variable.
func NewSlackChannel(cfg config.SlackConfig) *SlackChannel {
	return &SlackChannel{
		api:       goslack.New(os.Getenv(cfg.TokenEnv)),
		channelID: cfg.ChannelID,
		log:       slog.With("component", "notify-slack"),
	}
}

func (c *SlackChannel) Name() string { return "slack" }

// Publish posts msg as a single Slack message with a bold title line.
func (c *SlackChannel) Publish(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	blocks := []goslack.Block{
		goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*%s*\n%s", msg.Title, msg.Body), false, false),
			nil, nil,
		),
	}

	_, _, err := c.api.PostMessageContext(ctx, c.channelID, goslack.MsgOptionBlocks(blocks...))
	if err != nil {
		c.log.Warn("slack publish failed", "error", err)
		return fmt.Errorf("slack post message: %w", err)
	}
	return nil
}
