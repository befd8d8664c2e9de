// Package intent implements Milton's deterministic intent normalizer (C4):
// a priority-ordered regex rule table, no learned model, no LLM, pure over
// (text, now, locale) per spec §4.1 / §8.
package intent

// Kind enumerates the intents the normalizer can produce (spec §3).
type Kind string

const (
	KindReminderCreate Kind = "reminder.create"
	KindGoalCreate      Kind = "goal.create"
	KindMemoryAdd       Kind = "memory.add"
	KindChat            Kind = "chat"
	KindNoop            Kind = "noop"
)

// Fields carries the extractor's structured output (spec §3).
type Fields struct {
	Task                 string
	DueEpoch             int64 // unix seconds; zero if not computed
	NeedsClarification   bool
	ClarificationPrompt  string
	// IntentHint is set only on KindNoop: the action-keyword category the
	// gateway's deterministic-NOOP path (spec §4.3) names in its response,
	// e.g. "reminder", "goal", "memory".
	IntentHint string
}

// Intent is the normalizer's output, consumed by the Request Gateway (C6).
type Intent struct {
	Kind        Kind
	Confidence  float64
	SurfaceForm string
	Fields      Fields
}

// IsAction reports whether the intent represents a concrete action the
// gateway may execute synchronously (spec §4.3's "Intent is an action").
func (i Intent) IsAction() bool {
	switch i.Kind {
	case KindReminderCreate, KindGoalCreate, KindMemoryAdd:
		return true
	default:
		return false
	}
}
