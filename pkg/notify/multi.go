package notify

import "context"

// Multi fans a single Publish out to every configured channel, collecting
// (not short-circuiting on) the first error.
type Multi struct {
	Channels []Channel
}

func (m Multi) Publish(ctx context.Context, msg Message) error {
	var firstErr error
	for _, ch := range m.Channels {
		if err := ch.Publish(ctx, msg); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m Multi) Name() string { return "multi" }
