// Package benchmark implements the three-tier model evaluation runner (C8):
// inference latency/throughput, CoVe reasoning pass-rate, and retrieval
// precision/recall/F1, producing a timestamped BenchmarkRun (spec §4.5).
package benchmark

import "time"

// MetricStatus is the exhaustive status an individual metric can carry —
// spec §3's "no silent failure" invariant: every MetricResult has one.
type MetricStatus string

const (
	StatusOK      MetricStatus = "ok"
	StatusSkipped MetricStatus = "skipped"
	StatusError   MetricStatus = "error"
)

// MetricResult is one named measurement within a BenchmarkCandidate.
type MetricResult struct {
	Value  float64      `json:"value"`
	Unit   string       `json:"unit"`
	Status MetricStatus `json:"status"`
	Detail string       `json:"detail,omitempty"`
}

// BenchmarkCandidate is one model version's results across all tiers.
type BenchmarkCandidate struct {
	ModelVersion string                  `json:"model_version"`
	Metrics      map[string]MetricResult `json:"metrics"`
}

// BenchmarkRun is the full timestamped output of one evaluation pass.
// RunID ("benchmark_YYYYMMDD_HHMMSS") is lexicographically sortable by
// construction (spec §3).
type BenchmarkRun struct {
	RunID      string                `json:"run_id"`
	Candidates []BenchmarkCandidate  `json:"candidates"`
	SystemInfo map[string]string     `json:"system_info"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
}

// NewRunID formats the spec's deterministic run_id from a timestamp.
func NewRunID(t time.Time) string {
	return "benchmark_" + t.UTC().Format("20060102_150405")
}

// Metric name constants used by the selector (C9) and the bundle summary (C10).
const (
	MetricLatencyMeanMS   = "latency_ms_mean"
	MetricLatencyP95MS    = "latency_ms_p95"
	MetricLatencyP99MS    = "latency_ms_p99"
	MetricThroughputTPS   = "throughput_tokens_per_sec"
	MetricCoVePassRate    = "cove_pass_rate"
	MetricRetrievalF1     = "retrieval_f1"
)
