// Package events defines Milton's StreamEvent tagged variant (spec §3) and
// a WebSocket ConnectionManager that delivers them to subscribers of a
// request's channel. Adapted from tarsy/pkg/events: Milton has no Postgres
// and no cross-pod fan-out requirement, so the NOTIFY/LISTEN half of the
// teacher's design is dropped entirely — a single process owns the whole
// in-memory event stream per request, and catchup replays from a bounded
// in-memory ring buffer instead of a database table.
package events

import "fmt"

// Kind discriminates the StreamEvent tagged variant (spec §3).
type Kind string

const (
	KindRouting   Kind = "routing"
	KindThinking  Kind = "thinking"
	KindToken     Kind = "token"
	KindMemory    Kind = "memory"
	KindComplete  Kind = "complete"
)

// StreamEvent is spec §3's tagged variant:
// Routing{agent, confidence, reasoning}, Thinking{content}, Token{content},
// Memory{vector_id, stored, embedding_size?}, Complete{total_tokens, duration_ms}.
// Ordering per request is total and monotonic; Complete is terminal.
type StreamEvent struct {
	Kind Kind `json:"type"`
	Seq  int  `json:"seq"`

	// Routing fields.
	Agent      string  `json:"agent,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reasoning  string  `json:"reasoning,omitempty"`

	// Thinking/Token fields.
	Content string `json:"content,omitempty"`

	// Memory fields.
	VectorID      string `json:"vector_id,omitempty"`
	Stored        bool   `json:"stored,omitempty"`
	EmbeddingSize *int   `json:"embedding_size,omitempty"`

	// Complete fields.
	TotalTokens int `json:"total_tokens,omitempty"`
	DurationMS  int `json:"duration_ms,omitempty"`
}

// IsTerminal reports whether this event ends the stream (spec §3: "Complete
// is terminal").
func (e StreamEvent) IsTerminal() bool { return e.Kind == KindComplete }

// RequestChannel returns the channel name for one request's event stream.
func RequestChannel(requestID string) string {
	return fmt.Sprintf("request:%s", requestID)
}

// NewRouting builds a Routing StreamEvent.
func NewRouting(seq int, agent string, confidence float64, reasoning string) StreamEvent {
	return StreamEvent{Kind: KindRouting, Seq: seq, Agent: agent, Confidence: confidence, Reasoning: reasoning}
}

// NewThinking builds a Thinking StreamEvent.
func NewThinking(seq int, content string) StreamEvent {
	return StreamEvent{Kind: KindThinking, Seq: seq, Content: content}
}

// NewToken builds a Token StreamEvent.
func NewToken(seq int, content string) StreamEvent {
	return StreamEvent{Kind: KindToken, Seq: seq, Content: content}
}

// NewMemory builds a Memory StreamEvent.
func NewMemory(seq int, vectorID string, stored bool, embeddingSize *int) StreamEvent {
	return StreamEvent{Kind: KindMemory, Seq: seq, VectorID: vectorID, Stored: stored, EmbeddingSize: embeddingSize}
}

// NewComplete builds a terminal Complete StreamEvent.
func NewComplete(seq, totalTokens, durationMS int) StreamEvent {
	return StreamEvent{Kind: KindComplete, Seq: seq, TotalTokens: totalTokens, DurationMS: durationMS}
}
