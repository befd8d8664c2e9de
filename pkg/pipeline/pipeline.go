// Package pipeline wires C8 (benchmark) -> C9 (select) -> C10 (package) ->
// C11 (deploy) -> C13 (registry) into the two entry points spec §6 and
// §4.10 name: the `deploy-best-model` CLI (select+package+deploy against
// an existing benchmark run) and the scheduler's autobench trigger (run a
// fresh benchmark first). Grounded on tarsy's queue.WorkerPool pattern of
// one package orchestrating several single-purpose services in sequence.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/codeready-toolchain/milton/pkg/benchmark"
	"github.com/codeready-toolchain/milton/pkg/config"
	"github.com/codeready-toolchain/milton/pkg/deploy"
	"github.com/codeready-toolchain/milton/pkg/inference"
	"github.com/codeready-toolchain/milton/pkg/milerr"
	"github.com/codeready-toolchain/milton/pkg/packager"
	"github.com/codeready-toolchain/milton/pkg/registry"
	"github.com/codeready-toolchain/milton/pkg/selector"
	"github.com/codeready-toolchain/milton/pkg/stateroot"
)

// ErrNoCandidate wraps milerr.ErrNoCandidate for the CLI's exit-code-4 case.
var ErrNoCandidate = fmt.Errorf("%w: no candidate survived selection", milerr.ErrNoCandidate)

// Options configures one end-to-end pipeline run, mirroring the
// `deploy-best-model` CLI flags (spec §6).
type Options struct {
	DryRun        bool
	SkipChecksum  bool
	SkipLoadTest  bool
	TargetPath    string
	BenchmarkFile string // run_id or empty to use the most recent run
}

// LatestRunID returns the lexicographically greatest (and therefore most
// recent, by spec §3's naming convention) run_id under benchmarks/runs/.
func LatestRunID(root *stateroot.Root) (string, error) {
	entries, err := os.ReadDir(root.BenchmarkRuns())
	if err != nil {
		return "", fmt.Errorf("%w: read benchmark runs dir: %v", milerr.ErrIO, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("%w: no benchmark runs found", ErrNoCandidate)
	}
	sort.Strings(names)
	latest := names[len(names)-1]
	return latest[:len(latest)-len(".json")], nil
}

// DeployBestModel runs select -> package -> deploy -> registry-update
// against an existing benchmark run (opts.BenchmarkFile, or the most
// recent run if empty) — the `deploy-best-model` CLI's operation.
func DeployBestModel(root *stateroot.Root, cfg *config.Config, opts Options, now time.Time) (*deploy.Record, error) {
	runID := opts.BenchmarkFile
	if runID == "" {
		var err error
		runID, err = LatestRunID(root)
		if err != nil {
			return nil, err
		}
	}

	run, err := benchmark.LoadRun(root, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: load benchmark run %s: %v", milerr.ErrIO, runID, err)
	}

	result := selector.Select(run, cfg.Selector)
	if result.Winner == "" {
		return nil, ErrNoCandidate
	}

	return packageAndDeploy(root, result, run, opts, now)
}

// AutobenchPipeline runs the full nightly/periodic pipeline (spec §4.10's
// "autobench" trigger): benchmark every candidate model directory under
// models/ against the single configured inference backend, select, package,
// and deploy the winner. Deploys for real (no dry run) with checksum and
// load-test verification both enabled, matching the trigger's unattended
// nature.
func AutobenchPipeline(ctx context.Context, root *stateroot.Root, cfg *config.Config, client *inference.Client, now time.Time) (*deploy.Record, error) {
	versions, err := candidateVersions(root)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, ErrNoCandidate
	}

	candidates := make([]benchmark.Candidate, 0, len(versions))
	for _, v := range versions {
		candidates = append(candidates, benchmark.Candidate{Version: v, Client: client})
	}

	runner := benchmark.NewRunner(root)
	run, err := runner.Run(ctx, candidates, now)
	if err != nil {
		return nil, err
	}

	result := selector.Select(run, cfg.Selector)
	if result.Winner == "" {
		return nil, ErrNoCandidate
	}

	return packageAndDeploy(root, result, run, Options{
		TargetPath: filepath.Join(root.Base, "active_model"),
	}, now)
}

// candidateVersions lists model_dir subdirectories of models/, each
// representing one benchmarkable candidate version.
func candidateVersions(root *stateroot.Root) ([]string, error) {
	entries, err := os.ReadDir(root.Models())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read models dir: %v", milerr.ErrIO, err)
	}
	var versions []string
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}

func packageAndDeploy(root *stateroot.Root, result selector.Result, run *benchmark.BenchmarkRun, opts Options, now time.Time) (*deploy.Record, error) {
	modelDir := filepath.Join(root.Models(), result.Winner)

	var winnerMetrics map[string]benchmark.MetricResult
	for _, c := range run.Candidates {
		if c.ModelVersion == result.Winner {
			winnerMetrics = c.Metrics
		}
	}

	entry := registry.Entry{
		Version:   result.Winner,
		ModelPath: modelDir,
		Timestamp: now,
		Metrics:   metricsToAny(winnerMetrics),
	}

	bundlePath, err := packager.Build(root.Bundles(), modelDir, result.Winner, entry, run, now)
	if err != nil {
		return nil, err
	}

	targetPath := opts.TargetPath
	if targetPath == "" {
		targetPath = filepath.Join(root.Base, "active_model")
	}

	mgr := deploy.New(root.Deployments(), root.DeploymentHistory())
	record, err := mgr.Deploy(bundlePath, targetPath, deploy.Options{
		DryRun:          opts.DryRun,
		VerifyChecksums: !opts.SkipChecksum,
		RunLoadTest:     !opts.SkipLoadTest,
		Replace:         true,
	}, now)
	if err != nil {
		return record, err
	}

	if record.Status == deploy.StatusSuccess {
		reg, regErr := registry.Open(root.RegistryFile())
		if regErr != nil {
			return record, fmt.Errorf("%w: open registry: %v", milerr.ErrIO, regErr)
		}
		entry.Active = true
		if appendErr := reg.Append(entry); appendErr != nil {
			return record, appendErr
		}
		if setErr := reg.SetActive(result.Winner); setErr != nil {
			return record, setErr
		}
		if record.LoadTestPassed {
			_ = reg.SetLastGood(result.Winner)
		}
	}

	return record, nil
}

func metricsToAny(m map[string]benchmark.MetricResult) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
