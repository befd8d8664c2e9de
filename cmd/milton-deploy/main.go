// milton-deploy runs the deploy-best-model pipeline (spec §6): select the
// winning candidate from an existing benchmark run, package it, and deploy
// it to the target path.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/codeready-toolchain/milton/pkg/config"
	"github.com/codeready-toolchain/milton/pkg/milerr"
	"github.com/codeready-toolchain/milton/pkg/pipeline"
	"github.com/codeready-toolchain/milton/pkg/stateroot"
)

const (
	exitSuccess          = 0
	exitValidationFailed = 2
	exitIOError          = 3
	exitNoCandidate      = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	dryRun := flag.Bool("dry-run", false, "stage the deployment without installing it")
	benchmarkFile := flag.String("benchmark-file", "", "run_id of the benchmark run to select from (default: most recent)")
	targetPath := flag.String("target-path", "", "override the deployment target path (default: <state_root>/active_model)")
	skipChecksum := flag.Bool("skip-checksum", false, "skip SHA-256 verification of the bundle")
	skipLoadTest := flag.Bool("skip-load-test", false, "skip the load-test sanity check")
	configDir := flag.String("config-dir", "./config", "path to configuration directory")
	flag.Parse()

	if err := godotenv.Load(*configDir + "/.env"); err != nil {
		slog.Warn("no .env file loaded", "config_dir", *configDir, "error", err)
	}

	cfg, err := config.Initialize(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		return exitIOError
	}

	root, err := resolveRoot(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolve state root:", err)
		return exitIOError
	}

	record, err := pipeline.DeployBestModel(root, cfg, pipeline.Options{
		DryRun:        *dryRun,
		BenchmarkFile: *benchmarkFile,
		TargetPath:    *targetPath,
		SkipChecksum:  *skipChecksum,
		SkipLoadTest:  *skipLoadTest,
	}, time.Now())

	if err != nil {
		fmt.Fprintln(os.Stderr, "deploy-best-model failed:", err)
		return exitCodeFor(err)
	}

	fmt.Printf("deployment %s: %s (version %s, status %s)\n",
		record.DeploymentID, record.TargetPath, record.Version, record.Status)
	return exitSuccess
}

func resolveRoot(cfg *config.Config) (*stateroot.Root, error) {
	if cfg.System.StateDir != "" {
		return stateroot.New(cfg.System.StateDir), nil
	}
	return stateroot.Resolve()
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrNoCandidate), errors.Is(err, milerr.ErrNoCandidate):
		return exitNoCandidate
	case errors.Is(err, milerr.ErrChecksumMismatch), errors.Is(err, milerr.ErrLoadTestFailed),
		errors.Is(err, milerr.ErrThresholdRejected), errors.Is(err, milerr.ErrBundleMalformed):
		return exitValidationFailed
	case errors.Is(err, milerr.ErrIO):
		return exitIOError
	default:
		return exitIOError
	}
}
