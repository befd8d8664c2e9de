package benchmark

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/milton/pkg/stateroot"
)

func TestNewRunIDFormat(t *testing.T) {
	ts := time.Date(2026, 7, 31, 9, 5, 3, 0, time.UTC)
	assert.Equal(t, "benchmark_20260731_090503", NewRunID(ts))
}

func TestNewRunIDLexicographicallySortable(t *testing.T) {
	earlier := NewRunID(time.Date(2026, 7, 31, 9, 0, 0, 0, time.UTC))
	later := NewRunID(time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC))
	assert.Less(t, earlier, later)
}

func TestPersistAndLoadRunRoundTrip(t *testing.T) {
	root := stateroot.New(t.TempDir())
	require.NoError(t, root.MkdirAll())

	r := NewRunner(root)
	run := &BenchmarkRun{
		RunID:      NewRunID(time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)),
		StartedAt:  time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 7, 31, 12, 1, 0, 0, time.UTC),
		SystemInfo: map[string]string{"os": "linux"},
		Candidates: []BenchmarkCandidate{
			{
				ModelVersion: "v1",
				Metrics: map[string]MetricResult{
					MetricCoVePassRate: {Value: 0.95, Unit: "ratio", Status: StatusOK},
				},
			},
		},
	}

	require.NoError(t, r.persist(run))

	loaded, err := LoadRun(root, run.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, loaded.RunID)
	assert.Equal(t, run.Candidates[0].ModelVersion, loaded.Candidates[0].ModelVersion)
	assert.Equal(t, StatusOK, loaded.Candidates[0].Metrics[MetricCoVePassRate].Status)
}

func TestEveryMetricHasAStatus(t *testing.T) {
	run := BenchmarkRun{
		Candidates: []BenchmarkCandidate{
			{
				ModelVersion: "v1",
				Metrics: map[string]MetricResult{
					MetricLatencyMeanMS: {Status: StatusOK},
					MetricRetrievalF1:   {Status: StatusSkipped},
					MetricCoVePassRate:  {Status: StatusError},
				},
			},
		},
	}
	for _, c := range run.Candidates {
		for name, m := range c.Metrics {
			assert.Contains(t, []MetricStatus{StatusOK, StatusSkipped, StatusError}, m.Status, "metric %s missing a valid status", name)
		}
	}
}
