package intent

import "time"

// Normalize converts free text into an Intent by evaluating every Rule and
// picking the highest-priority match (ties broken by table order). It is
// pure over (text, now, locale) — spec §4.1's required contract — so the
// same inputs always produce a bitwise-identical Intent.
//
// If no rule matches but the text still mentions an action keyword (spec
// §4.3's conservative heuristic), the result is KindNoop carrying the
// matched category as Fields.IntentHint, so the gateway can respond without
// ever invoking the LLM. Otherwise the result is KindChat.
func Normalize(text string, now time.Time, loc *time.Location) Intent {
	if loc == nil {
		loc = time.UTC
	}

	var best *Rule
	for i := range Rules {
		r := &Rules[i]
		if !r.Predicate(text) {
			continue
		}
		if best == nil || r.Priority > best.Priority {
			best = r
		}
	}

	if best != nil {
		return Intent{
			Kind:        best.Kind,
			Confidence:  best.Confidence,
			SurfaceForm: best.Name,
			Fields:      best.Extract(text, now, loc),
		}
	}

	if hint := matchActionHint(text); hint != "" {
		return Intent{
			Kind:        KindNoop,
			Confidence:  0,
			SurfaceForm: "unrecognized_action",
			Fields:      Fields{IntentHint: hint},
		}
	}

	return Intent{Kind: KindChat, Confidence: 0, SurfaceForm: "chat"}
}
