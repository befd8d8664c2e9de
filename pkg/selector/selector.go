// Package selector implements the model selector (C9): a weighted scoring
// pass over one BenchmarkRun, gated by hard thresholds and resolved by a
// fully deterministic tie-break chain (spec §4.6).
package selector

import (
	"sort"

	"github.com/codeready-toolchain/milton/pkg/benchmark"
	"github.com/codeready-toolchain/milton/pkg/config"
)

// requiredMetrics are the metrics that must all carry status "ok" for a
// candidate to survive the threshold gate (spec §4.6 step 1).
var requiredMetrics = []string{
	benchmark.MetricLatencyMeanMS,
	benchmark.MetricThroughputTPS,
	benchmark.MetricCoVePassRate,
	benchmark.MetricRetrievalF1,
}

// Rejection records why a candidate did not survive the threshold gate.
type Rejection struct {
	ModelVersion string `json:"model_version"`
	Reason       string `json:"reason"`
}

// Score is one surviving candidate's normalized score and inputs, kept for
// the evidence trail.
type Score struct {
	ModelVersion   string  `json:"model_version"`
	Score          float64 `json:"score"`
	NormLatency    float64 `json:"norm_latency"`
	NormThroughput float64 `json:"norm_throughput"`
	NormCoVe       float64 `json:"norm_cove"`
	NormRetrieval  float64 `json:"norm_retrieval"`
	RawLatencyMS   float64 `json:"raw_latency_ms"`
	RawThroughput  float64 `json:"raw_throughput"`
}

// Result is C9's full output: the winner (empty string if none survived),
// every surviving candidate's score, every rejection, and the evidence that
// ties the two together.
type Result struct {
	Winner     string      `json:"winner"`
	Scores     []Score     `json:"scores"`
	Rejections []Rejection `json:"rejections"`
	Evidence   []string    `json:"evidence"`
}

// Select runs the full C9 algorithm against one BenchmarkRun.
func Select(run *benchmark.BenchmarkRun, cfg config.SelectorConfig) Result {
	var result Result

	survivors := make([]benchmark.BenchmarkCandidate, 0, len(run.Candidates))
	for _, c := range run.Candidates {
		if reason, rejected := gate(c, cfg); rejected {
			result.Rejections = append(result.Rejections, Rejection{ModelVersion: c.ModelVersion, Reason: reason})
			result.Evidence = append(result.Evidence, c.ModelVersion+": rejected ("+reason+")")
			continue
		}
		survivors = append(survivors, c)
	}

	if len(survivors) == 0 {
		result.Evidence = append(result.Evidence, "no candidate survived the threshold gate")
		return result
	}

	minTPS, maxTPS := throughputRange(survivors)
	for _, c := range survivors {
		s := scoreCandidate(c, cfg, minTPS, maxTPS)
		result.Scores = append(result.Scores, s)
		result.Evidence = append(result.Evidence, c.ModelVersion+": score computed")
	}

	sort.Slice(result.Scores, func(i, j int) bool {
		return less(result.Scores[i], result.Scores[j])
	})

	winner := result.Scores[len(result.Scores)-1]
	result.Winner = winner.ModelVersion
	result.Evidence = append(result.Evidence, "winner: "+winner.ModelVersion)

	return result
}

// gate applies spec §4.6 step 1: reject on sub-threshold cove/retrieval or
// any required metric whose status isn't ok.
func gate(c benchmark.BenchmarkCandidate, cfg config.SelectorConfig) (reason string, rejected bool) {
	for _, name := range requiredMetrics {
		m, ok := c.Metrics[name]
		if !ok || m.Status != benchmark.StatusOK {
			return "required metric " + name + " not ok", true
		}
	}
	if c.Metrics[benchmark.MetricCoVePassRate].Value < cfg.MinCoVePassRate {
		return "cove_pass_rate below threshold", true
	}
	if c.Metrics[benchmark.MetricRetrievalF1].Value < cfg.MinRetrievalF1 {
		return "retrieval_f1 below threshold", true
	}
	return "", false
}

// scoreCandidate normalizes surviving metrics to [0,1] and applies the
// configured weights (spec §4.6 steps 2-3).
func scoreCandidate(c benchmark.BenchmarkCandidate, cfg config.SelectorConfig, minTPS, maxTPS float64) Score {
	latencyMS := c.Metrics[benchmark.MetricLatencyMeanMS].Value
	throughput := c.Metrics[benchmark.MetricThroughputTPS].Value
	cove := c.Metrics[benchmark.MetricCoVePassRate].Value
	retrieval := c.Metrics[benchmark.MetricRetrievalF1].Value

	normLatency := normalizeLatency(latencyMS, cfg.LatencyCapMS)
	nThroughput := normalizeThroughput(throughput, minTPS, maxTPS)
	nCove := clamp01(cove)
	nRetrieval := clamp01(retrieval)

	w := cfg.Weights
	score := w.Latency*normLatency + w.Throughput*nThroughput + w.CoVe*nCove + w.Retrieval*nRetrieval

	return Score{
		ModelVersion:   c.ModelVersion,
		Score:          score,
		NormLatency:    normLatency,
		NormThroughput: nThroughput,
		NormCoVe:       nCove,
		NormRetrieval:  nRetrieval,
		RawLatencyMS:   latencyMS,
		RawThroughput:  throughput,
	}
}

// normalizeLatency inverts latency into [0,1]: 0ms normalizes to 1 (best),
// latencies at or above the cap normalize to 0 (worst) — spec §4.6 step 2.
func normalizeLatency(ms, cap float64) float64 {
	if cap <= 0 {
		return 0
	}
	return clamp01(1 - ms/cap)
}

// throughputRange finds the min and max throughput across surviving
// candidates, the basis for min-max normalization — throughput has no fixed
// ceiling the way latency has a configured cap, so it is scaled relative to
// the other candidates in the same run.
func throughputRange(candidates []benchmark.BenchmarkCandidate) (min, max float64) {
	for i, c := range candidates {
		v := c.Metrics[benchmark.MetricThroughputTPS].Value
		if i == 0 || v < min {
			min = v
		}
		if i == 0 || v > max {
			max = v
		}
	}
	return min, max
}

// normalizeThroughput scales direct (higher is better) into [0,1] via
// min-max over the candidate set; a degenerate single-value range
// normalizes every candidate to 1 (no basis to differentiate them).
func normalizeThroughput(v, min, max float64) float64 {
	if max <= min {
		return 1
	}
	return clamp01((v - min) / (max - min))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// less defines the ascending sort order so the last element after sorting is
// the winner: lower score sorts first; ties broken by higher latency first
// (so lower latency ends up last/winning), then lower throughput first, then
// lexicographically larger version first (so smaller version wins the tie).
func less(a, b Score) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.RawLatencyMS != b.RawLatencyMS {
		return a.RawLatencyMS > b.RawLatencyMS
	}
	if a.RawThroughput != b.RawThroughput {
		return a.RawThroughput < b.RawThroughput
	}
	return a.ModelVersion > b.ModelVersion
}
