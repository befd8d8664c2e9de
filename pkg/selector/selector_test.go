package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/milton/pkg/benchmark"
	"github.com/codeready-toolchain/milton/pkg/config"
)

func defaultSelectorConfig() config.SelectorConfig {
	return config.SelectorConfig{
		Weights: config.SelectorWeights{
			Latency:    0.25,
			Throughput: 0.25,
			CoVe:       0.25,
			Retrieval:  0.25,
		},
		MinCoVePassRate: 0.90,
		MinRetrievalF1:  0.50,
		LatencyCapMS:    500,
	}
}

func okCandidate(version string, cove, retrieval, latencyMS, tps float64) benchmark.BenchmarkCandidate {
	return benchmark.BenchmarkCandidate{
		ModelVersion: version,
		Metrics: map[string]benchmark.MetricResult{
			benchmark.MetricCoVePassRate:   {Value: cove, Status: benchmark.StatusOK},
			benchmark.MetricRetrievalF1:    {Value: retrieval, Status: benchmark.StatusOK},
			benchmark.MetricLatencyMeanMS:  {Value: latencyMS, Status: benchmark.StatusOK},
			benchmark.MetricThroughputTPS:  {Value: tps, Status: benchmark.StatusOK},
		},
	}
}

func TestSelectRejectsJustBelowCoveThreshold(t *testing.T) {
	run := &benchmark.BenchmarkRun{Candidates: []benchmark.BenchmarkCandidate{
		okCandidate("v1", 0.8999, 0.80, 10, 50),
	}}
	result := Select(run, defaultSelectorConfig())
	require.Len(t, result.Rejections, 1)
	assert.Empty(t, result.Winner)
}

func TestSelectAcceptsExactlyAtCoveThreshold(t *testing.T) {
	run := &benchmark.BenchmarkRun{Candidates: []benchmark.BenchmarkCandidate{
		okCandidate("v1", 0.9000, 0.80, 10, 50),
	}}
	result := Select(run, defaultSelectorConfig())
	assert.Empty(t, result.Rejections)
	assert.Equal(t, "v1", result.Winner)
}

func TestSelectRejectsBelowRetrievalThreshold(t *testing.T) {
	run := &benchmark.BenchmarkRun{Candidates: []benchmark.BenchmarkCandidate{
		okCandidate("v1", 0.95, 0.4999, 10, 50),
	}}
	result := Select(run, defaultSelectorConfig())
	require.Len(t, result.Rejections, 1)
	assert.Equal(t, "v1", result.Rejections[0].ModelVersion)
}

func TestSelectRejectsNonOKRequiredMetric(t *testing.T) {
	c := okCandidate("v1", 0.95, 0.80, 10, 50)
	c.Metrics[benchmark.MetricLatencyMeanMS] = benchmark.MetricResult{Status: benchmark.StatusError}
	run := &benchmark.BenchmarkRun{Candidates: []benchmark.BenchmarkCandidate{c}}
	result := Select(run, defaultSelectorConfig())
	require.Len(t, result.Rejections, 1)
}

// TestSelectScenarioV1WinsOverV2 reproduces the end-to-end scenario: v1
// (cove=1.00, retr=0.65, lat=14.83ms, tps=81.15) beats v2 (cove=0.88,
// retr=0.70, lat=12.00ms, tps=90.00) because v2 fails the cove threshold.
func TestSelectScenarioV1WinsOverV2(t *testing.T) {
	run := &benchmark.BenchmarkRun{Candidates: []benchmark.BenchmarkCandidate{
		okCandidate("v1", 1.00, 0.65, 14.83, 81.15),
		okCandidate("v2", 0.88, 0.70, 12.00, 90.00),
	}}
	result := Select(run, defaultSelectorConfig())
	assert.Equal(t, "v1", result.Winner)
	require.Len(t, result.Rejections, 1)
	assert.Equal(t, "v2", result.Rejections[0].ModelVersion)
}

func TestSelectNoSurvivorsYieldsEmptyWinner(t *testing.T) {
	run := &benchmark.BenchmarkRun{Candidates: []benchmark.BenchmarkCandidate{
		okCandidate("v1", 0.1, 0.1, 10, 50),
	}}
	result := Select(run, defaultSelectorConfig())
	assert.Empty(t, result.Winner)
	assert.NotEmpty(t, result.Evidence)
}

func TestSelectTieBreakLowerLatencyWins(t *testing.T) {
	cfg := defaultSelectorConfig()
	// zero latency weight so both candidates score the same and the
	// latency tie-break decides
	cfg.Weights.Latency = 0
	run := &benchmark.BenchmarkRun{Candidates: []benchmark.BenchmarkCandidate{
		okCandidate("a", 1.0, 1.0, 100, 50),
		okCandidate("b", 1.0, 1.0, 50, 50),
	}}
	result := Select(run, cfg)
	assert.Equal(t, "b", result.Winner)
}

func TestSelectTieBreakLexicographicallySmallerVersionWins(t *testing.T) {
	cfg := defaultSelectorConfig()
	run := &benchmark.BenchmarkRun{Candidates: []benchmark.BenchmarkCandidate{
		okCandidate("v2", 1.0, 1.0, 10, 50),
		okCandidate("v1", 1.0, 1.0, 10, 50),
	}}
	result := Select(run, cfg)
	assert.Equal(t, "v1", result.Winner)
}

func TestSelectDeterministicAcrossRuns(t *testing.T) {
	cfg := defaultSelectorConfig()
	run := &benchmark.BenchmarkRun{Candidates: []benchmark.BenchmarkCandidate{
		okCandidate("v1", 0.95, 0.80, 20, 60),
		okCandidate("v2", 0.96, 0.81, 18, 70),
	}}
	first := Select(run, cfg)
	second := Select(run, cfg)
	assert.Equal(t, first.Winner, second.Winner)
	assert.Equal(t, first.Scores, second.Scores)
}
