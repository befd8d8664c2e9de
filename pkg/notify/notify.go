// Package notify abstracts the notification channels Milton publishes to:
// reminder deliveries and morning briefing sections (spec §6). Modeled on
// tarsy's pkg/slack (a thin wrapper around the slack-go SDK client); the
// mobile push implementation stays opaque per spec §6's own framing
// ("Mobile push channel: opaque publish/subscribe with message IDs").
package notify

import "context"

// Message is one outbound notification.
type Message struct {
	Title string
	Body  string
	// Tags lets a channel correlate a message back to its source (e.g. a
	// reminder id or briefing section name) without parsing Body.
	Tags map[string]string
}

// Channel is implemented by every concrete notification backend.
type Channel interface {
	Publish(ctx context.Context, msg Message) error
	Name() string
}
