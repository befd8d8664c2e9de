package benchmark

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/codeready-toolchain/milton/pkg/inference"
)

// coveQuestions is the fixed small question set for the CoVe (Chain-of-
// Verification) reasoning tier (spec §4.5.2).
var coveQuestions = []string{
	"Is the Eiffel Tower located in Paris, France?",
	"Does water boil at a lower temperature at high altitude than at sea level?",
	"Is Jupiter smaller than Earth?",
	"Did World War II end before the invention of the internet?",
}

// negationMarkers flag a lexical polarity flip between an answer and its
// independently-derived verification answer — the "heuristic negation/lexical
// mismatch" detector spec §4.5.2 calls for. No semantic entailment library
// exists anywhere in the retrieval pack, so this stays a hand-rolled lexical
// heuristic (see DESIGN.md).
var negationMarkers = regexp.MustCompile(`(?i)\b(no|not|isn't|doesn't|false|incorrect|never)\b`)

func runCoVeTier(ctx context.Context, client *inference.Client) map[string]MetricResult {
	passed := 0
	total := 0

	for _, q := range coveQuestions {
		answer, err := client.Stream(ctx, []inference.Message{{Role: "user", Content: q}}, nil)
		if err != nil {
			if errors.Is(err, inference.ErrUnavailable) {
				return map[string]MetricResult{
					MetricCoVePassRate: {Status: StatusError, Detail: err.Error()},
				}
			}
			continue
		}

		subQuestion := "Double-check: " + q + " Explain briefly whether that's accurate."
		verification, err := client.Stream(ctx, []inference.Message{{Role: "user", Content: subQuestion}}, nil)
		if err != nil {
			continue
		}

		total++
		if !contradicts(answer.Text, verification.Text) {
			passed++
		}
	}

	if total == 0 {
		return map[string]MetricResult{
			MetricCoVePassRate: {Status: StatusSkipped, Detail: "no questions answered"},
		}
	}

	return map[string]MetricResult{
		MetricCoVePassRate: {
			Value:  float64(passed) / float64(total),
			Unit:   "ratio",
			Status: StatusOK,
		},
	}
}

// contradicts is a cheap heuristic: a contradiction is flagged when exactly
// one of the two texts carries a negation marker — i.e. the verification
// answer flatly disagrees with the original answer's polarity.
func contradicts(answer, verification string) bool {
	a := negationMarkers.MatchString(answer)
	v := negationMarkers.MatchString(verification)
	if a != v {
		return true
	}
	return lexicalOverlap(answer, verification) < 0.15
}

// lexicalOverlap is a crude Jaccard similarity over lowercased word sets,
// used as a fallback contradiction signal when polarity markers agree.
func lexicalOverlap(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 1 // not enough signal to call it a contradiction
	}
	shared := 0
	for w := range wordsA {
		if wordsB[w] {
			shared++
		}
	}
	union := len(wordsA) + len(wordsB) - shared
	if union == 0 {
		return 1
	}
	return float64(shared) / float64(union)
}

func wordSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,!?;:\"'")
		if len(w) > 2 {
			out[w] = true
		}
	}
	return out
}
