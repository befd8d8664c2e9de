package notify

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/milton/pkg/config"
)

// PushChannel is an opaque mobile-push publisher: spec §6 describes it only
// as "opaque publish/subscribe with message IDs", so no concrete push
// provider SDK is wired here — the surface is an id-returning publish call
// a real backend would implement.
type PushChannel struct {
	topic string
	log   *slog.Logger
}

// NewPushChannel builds a PushChannel from config.
func NewPushChannel(cfg config.PushConfig) *PushChannel {
	return &PushChannel{topic: cfg.Topic, log: slog.With("component", "notify-push")}
}

func (p *PushChannel) Name() string { return "push" }

// Publish assigns a message id and logs the publish; a real deployment
// would hand this off to a push provider SDK keyed by p.topic.
func (p *PushChannel) Publish(ctx context.Context, msg Message) error {
	messageID := uuid.NewString()
	p.log.Info("push publish", "message_id", messageID, "topic", p.topic, "title", msg.Title)
	return nil
}
