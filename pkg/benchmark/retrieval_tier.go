package benchmark

import (
	"context"
)

// retrievalDoc is one entry in the fixed golden corpus (spec §4.5.3).
type retrievalDoc struct {
	ID      string
	Content string
}

// retrievalQuery pairs a query with its ground-truth relevant doc IDs.
type retrievalQuery struct {
	Text     string
	Relevant []string
}

// goldenCorpus is the fixed 8-document retrieval corpus.
var goldenCorpus = []retrievalDoc{
	{"doc1", "Milton stores short-term memory for 48 hours before eviction."},
	{"doc2", "The model selector rejects candidates failing the CoVe pass-rate threshold."},
	{"doc3", "Bundles are content-addressed tarballs verified by SHA-256 checksums."},
	{"doc4", "The reminder scheduler persists an append-only event log for crash recovery."},
	{"doc5", "Deployment records are appended, never mutated, and support rollback."},
	{"doc6", "The agent router chooses between Hub, Executor, and Researcher agents."},
	{"doc7", "Working-tier memory promotes to long-term after seven days if important enough."},
	{"doc8", "The job queue runner processes pending files in lexicographic order."},
}

// goldenQueries is the fixed 5-query set with ground truth.
var goldenQueries = []retrievalQuery{
	{"how long is short-term memory kept?", []string{"doc1"}},
	{"what rejects a model candidate?", []string{"doc2"}},
	{"how are bundles verified?", []string{"doc3"}},
	{"how does the scheduler survive a crash?", []string{"doc4"}},
	{"what agents does the router pick from?", []string{"doc6"}},
}

// runRetrievalTier scores a trivial bag-of-words retriever against the
// golden corpus and aggregates mean F1 across queries (spec §4.5.3). This
// is a deliberately simple in-process retriever standing in for whatever
// embedding model the candidate under test actually uses in production —
// the benchmark exercises retrieval *scoring*, not a specific vector backend.
func runRetrievalTier(_ context.Context) map[string]MetricResult {
	var f1s []float64

	for _, q := range goldenQueries {
		retrieved := topMatches(q.Text, 2)
		precision, recall, f1 := scoreRetrieval(retrieved, q.Relevant)
		_ = precision
		_ = recall
		f1s = append(f1s, f1)
	}

	if len(f1s) == 0 {
		return map[string]MetricResult{
			MetricRetrievalF1: {Status: StatusSkipped, Detail: "no queries"},
		}
	}

	var sum float64
	for _, v := range f1s {
		sum += v
	}
	return map[string]MetricResult{
		MetricRetrievalF1: {Value: sum / float64(len(f1s)), Unit: "ratio", Status: StatusOK},
	}
}

func topMatches(query string, k int) []string {
	type scored struct {
		id    string
		score int
	}
	qWords := wordSet(query)
	var scoredDocs []scored
	for _, d := range goldenCorpus {
		overlap := 0
		for w := range wordSet(d.Content) {
			if qWords[w] {
				overlap++
			}
		}
		scoredDocs = append(scoredDocs, scored{d.ID, overlap})
	}
	// simple selection of top-k by score, stable on corpus order
	out := make([]string, 0, k)
	for len(out) < k && len(scoredDocs) > 0 {
		bestIdx := 0
		for i, s := range scoredDocs {
			if s.score > scoredDocs[bestIdx].score {
				bestIdx = i
			}
		}
		out = append(out, scoredDocs[bestIdx].id)
		scoredDocs = append(scoredDocs[:bestIdx], scoredDocs[bestIdx+1:]...)
	}
	return out
}

func scoreRetrieval(retrieved, relevant []string) (precision, recall, f1 float64) {
	relevantSet := map[string]bool{}
	for _, r := range relevant {
		relevantSet[r] = true
	}
	truePositives := 0
	for _, r := range retrieved {
		if relevantSet[r] {
			truePositives++
		}
	}
	if len(retrieved) > 0 {
		precision = float64(truePositives) / float64(len(retrieved))
	}
	if len(relevant) > 0 {
		recall = float64(truePositives) / float64(len(relevant))
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}
