package benchmark

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/codeready-toolchain/milton/pkg/inference"
	"github.com/codeready-toolchain/milton/pkg/stateroot"
)

// Runner executes the three-tier evaluation for a set of candidate model
// versions against one inference client per candidate.
type Runner struct {
	root *stateroot.Root
}

// NewRunner builds a Runner rooted at the given state directory.
func NewRunner(root *stateroot.Root) *Runner {
	return &Runner{root: root}
}

// Candidate pairs a model version with the inference client that serves it.
type Candidate struct {
	Version string
	Client  *inference.Client
}

// Run executes all three tiers for every candidate and persists the result
// as benchmarks/runs/benchmark_YYYYMMDD_HHMMSS.json (spec §4.5).
func (r *Runner) Run(ctx context.Context, candidates []Candidate, now time.Time) (*BenchmarkRun, error) {
	run := &BenchmarkRun{
		RunID:     NewRunID(now),
		StartedAt: now,
		SystemInfo: map[string]string{
			"go_version": runtime.Version(),
			"os":         runtime.GOOS,
			"arch":       runtime.GOARCH,
		},
	}

	for _, c := range candidates {
		metrics := map[string]MetricResult{}
		for k, v := range runInferenceTier(ctx, c.Client) {
			metrics[k] = v
		}
		for k, v := range runCoVeTier(ctx, c.Client) {
			metrics[k] = v
		}
		for k, v := range runRetrievalTier(ctx) {
			metrics[k] = v
		}
		run.Candidates = append(run.Candidates, BenchmarkCandidate{
			ModelVersion: c.Version,
			Metrics:      metrics,
		})
	}

	run.FinishedAt = time.Now()

	if err := r.persist(run); err != nil {
		return nil, err
	}
	return run, nil
}

func (r *Runner) persist(run *BenchmarkRun) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(r.root.BenchmarkRuns(), run.RunID+".json")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadRun reads a previously persisted run by run_id.
func LoadRun(root *stateroot.Root, runID string) (*BenchmarkRun, error) {
	data, err := os.ReadFile(filepath.Join(root.BenchmarkRuns(), runID+".json"))
	if err != nil {
		return nil, err
	}
	var run BenchmarkRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}
