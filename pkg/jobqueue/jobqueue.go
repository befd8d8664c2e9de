// Package jobqueue implements the overnight Job Queue Runner (C7, spec
// §4.9): a directory-backed queue of pending job files processed in
// lexicographic order, each producing a provenance record and a set of
// output artifacts under outputs/<job_id>/. The directory-as-queue idiom
// (pending dir -> process -> move to archive dir) follows tarsy's runbook
// fetcher's filesystem-first approach of treating the filesystem itself as
// the source of truth rather than an in-memory queue.
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/codeready-toolchain/milton/pkg/stateroot"
	"github.com/codeready-toolchain/milton/pkg/version"
)

// Status is a provenance record's terminal state.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Job is the parsed contents of one pending job file.
type Job struct {
	ID      string         `json:"job_id"`
	Kind    string         `json:"kind"`
	Payload map[string]any `json:"payload"`
}

// Provenance is spec §4.9's per-job record: {job_id, commit_hash,
// started_at, finished_at, status, artifacts[]}.
type Provenance struct {
	JobID      string    `json:"job_id"`
	CommitHash string    `json:"commit_hash"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     Status    `json:"status"`
	Artifacts  []string  `json:"artifacts"`
	Error      string    `json:"error,omitempty"`
}

// Handler executes one job's payload and returns the relative artifact
// paths it wrote under its outputs directory.
type Handler func(ctx context.Context, job Job, outputsDir string) ([]string, error)

// Runner drains the pending directory file-by-file in lexicographic order.
type Runner struct {
	root    *stateroot.Root
	handler Handler
	log     *slog.Logger

	running atomic.Bool
}

// New builds a Runner bound to root's job_queue/tonight and job_queue/archive
// directories.
func New(root *stateroot.Root, handler Handler) *Runner {
	return &Runner{root: root, handler: handler, log: slog.With("component", "jobqueue")}
}

// RunAll processes every pending job file currently in tonight/, in
// lexicographic filename order, archiving each as it finishes (success or
// failure) so a crash mid-run never reprocesses an already-archived job.
// Partial output artifacts from a job that fails mid-execution are left in
// place, per spec's crash-recovery semantics.
func (r *Runner) RunAll(ctx context.Context, now func() time.Time) ([]Provenance, error) {
	r.running.Store(true)
	defer r.running.Store(false)

	entries, err := os.ReadDir(r.root.JobQueueTonight())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read job queue tonight dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var records []Provenance
	for _, name := range names {
		rec, err := r.runOne(ctx, name, now())
		if err != nil {
			r.log.Error("job processing error", "file", name, "error", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *Runner) runOne(ctx context.Context, filename string, startedAt time.Time) (Provenance, error) {
	pendingPath := filepath.Join(r.root.JobQueueTonight(), filename)

	raw, err := os.ReadFile(pendingPath)
	if err != nil {
		return Provenance{}, fmt.Errorf("read job file %s: %w", filename, err)
	}

	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		rec := Provenance{
			JobID:      filename,
			CommitHash: version.GitCommit,
			StartedAt:  startedAt,
			FinishedAt: startedAt,
			Status:     StatusFailed,
			Error:      fmt.Sprintf("malformed job file: %v", err),
		}
		r.archive(filename, rec)
		return rec, nil
	}
	if job.ID == "" {
		job.ID = filename
	}

	outputsDir := filepath.Join(r.root.Outputs(), job.ID)
	if err := os.MkdirAll(outputsDir, 0o755); err != nil {
		return Provenance{}, fmt.Errorf("create outputs dir for %s: %w", job.ID, err)
	}

	artifacts, handlerErr := r.handler(ctx, job, outputsDir)

	rec := Provenance{
		JobID:      job.ID,
		CommitHash: version.GitCommit,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
		Artifacts:  artifacts,
	}
	if handlerErr != nil {
		rec.Status = StatusFailed
		rec.Error = handlerErr.Error()
	} else {
		rec.Status = StatusSuccess
	}

	r.archive(filename, rec)
	return rec, nil
}

// archive writes the provenance record alongside the archived job file and
// moves the job out of tonight/ so a restart never reprocesses it.
func (r *Runner) archive(filename string, rec Provenance) {
	src := filepath.Join(r.root.JobQueueTonight(), filename)
	dst := filepath.Join(r.root.JobQueueArchive(), filename)

	if err := os.Rename(src, dst); err != nil {
		r.log.Error("archive job file failed", "file", filename, "error", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		r.log.Error("marshal provenance failed", "file", filename, "error", err)
		return
	}
	provPath := filepath.Join(r.root.JobQueueArchive(), filename+".provenance.json")
	if err := os.WriteFile(provPath, data, 0o644); err != nil {
		r.log.Error("write provenance failed", "file", filename, "error", err)
	}
}

// QueuedCount returns how many job files are currently waiting in tonight/.
func (r *Runner) QueuedCount() int {
	entries, err := os.ReadDir(r.root.JobQueueTonight())
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

// Running reports whether RunAll is currently draining the queue.
func (r *Runner) Running() bool { return r.running.Load() }

// Submit writes a new pending job file. Filenames are expected to sort
// lexicographically in submission order (callers typically prefix with a
// timestamp); Submit itself does not impose a naming scheme beyond writing
// the given filename verbatim.
func Submit(root *stateroot.Root, filename string, job Job) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(root.JobQueueTonight(), filename)
	return os.WriteFile(path, data, 0o644)
}
