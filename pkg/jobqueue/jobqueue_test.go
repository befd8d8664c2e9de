package jobqueue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/milton/pkg/stateroot"
)

func newTestRoot(t *testing.T) *stateroot.Root {
	root := stateroot.New(t.TempDir())
	require.NoError(t, root.MkdirAll())
	return root
}

func writeJobFile(t *testing.T, root *stateroot.Root, name string, job Job) {
	data, err := json.Marshal(job)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root.JobQueueTonight(), name), data, 0o644))
}

func TestRunAllProcessesInLexicographicOrder(t *testing.T) {
	root := newTestRoot(t)
	writeJobFile(t, root, "002_b.json", Job{ID: "job-b", Kind: "noop"})
	writeJobFile(t, root, "001_a.json", Job{ID: "job-a", Kind: "noop"})

	var order []string
	handler := func(ctx context.Context, job Job, outputsDir string) ([]string, error) {
		order = append(order, job.ID)
		return nil, nil
	}

	r := New(root, handler)
	records, err := r.RunAll(context.Background(), time.Now)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"job-a", "job-b"}, order)
}

func TestRunAllArchivesProcessedJobsAndWritesProvenance(t *testing.T) {
	root := newTestRoot(t)
	writeJobFile(t, root, "001_ok.json", Job{ID: "ok-job", Kind: "noop"})

	handler := func(ctx context.Context, job Job, outputsDir string) ([]string, error) {
		path := filepath.Join(outputsDir, "result.txt")
		require.NoError(t, os.WriteFile(path, []byte("done"), 0o644))
		return []string{"result.txt"}, nil
	}

	r := New(root, handler)
	records, err := r.RunAll(context.Background(), time.Now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusSuccess, records[0].Status)
	assert.Equal(t, []string{"result.txt"}, records[0].Artifacts)
	assert.NotEmpty(t, records[0].CommitHash)

	_, err = os.Stat(filepath.Join(root.JobQueueTonight(), "001_ok.json"))
	assert.True(t, os.IsNotExist(err), "processed job should be removed from tonight/")

	_, err = os.Stat(filepath.Join(root.JobQueueArchive(), "001_ok.json"))
	assert.NoError(t, err, "processed job should be moved to archive/")

	_, err = os.Stat(filepath.Join(root.JobQueueArchive(), "001_ok.json.provenance.json"))
	assert.NoError(t, err, "provenance record should be written alongside the archived job")
}

func TestRunAllRecordsFailureAndLeavesPartialArtifacts(t *testing.T) {
	root := newTestRoot(t)
	writeJobFile(t, root, "001_fail.json", Job{ID: "fail-job", Kind: "noop"})

	handler := func(ctx context.Context, job Job, outputsDir string) ([]string, error) {
		partial := filepath.Join(outputsDir, "partial.txt")
		require.NoError(t, os.WriteFile(partial, []byte("incomplete"), 0o644))
		return []string{"partial.txt"}, assert.AnError
	}

	r := New(root, handler)
	records, err := r.RunAll(context.Background(), time.Now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusFailed, records[0].Status)
	assert.NotEmpty(t, records[0].Error)

	_, err = os.Stat(filepath.Join(root.Outputs(), "fail-job", "partial.txt"))
	assert.NoError(t, err, "partial outputs are permitted to remain after a failed job")
}

func TestRunAllWithNoPendingJobsReturnsEmpty(t *testing.T) {
	root := newTestRoot(t)
	r := New(root, func(ctx context.Context, job Job, outputsDir string) ([]string, error) { return nil, nil })

	records, err := r.RunAll(context.Background(), time.Now)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestMalformedJobFileIsArchivedAsFailedWithoutCallingHandler(t *testing.T) {
	root := newTestRoot(t)
	require.NoError(t, os.WriteFile(filepath.Join(root.JobQueueTonight(), "001_bad.json"), []byte("{not json"), 0o644))

	called := false
	handler := func(ctx context.Context, job Job, outputsDir string) ([]string, error) {
		called = true
		return nil, nil
	}

	r := New(root, handler)
	records, err := r.RunAll(context.Background(), time.Now)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, StatusFailed, records[0].Status)
	assert.False(t, called, "handler should never run for an unparseable job file")
}

func TestSubmitWritesReadableJobFile(t *testing.T) {
	root := newTestRoot(t)
	require.NoError(t, Submit(root, "001_new.json", Job{ID: "new-job", Kind: "briefing"}))

	data, err := os.ReadFile(filepath.Join(root.JobQueueTonight(), "001_new.json"))
	require.NoError(t, err)

	var job Job
	require.NoError(t, json.Unmarshal(data, &job))
	assert.Equal(t, "new-job", job.ID)
}
