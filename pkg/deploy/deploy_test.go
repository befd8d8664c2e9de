package deploy

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/milton/pkg/milerr"
	"github.com/codeready-toolchain/milton/pkg/packager"
)

// corruptChecksumBundle rewrites bundlePath with one model file's content
// mutated (same length, so tar headers stay valid) so its SHA256SUMS entry
// no longer matches, without touching SHA256SUMS itself.
func corruptChecksumBundle(t *testing.T, bundlePath string) string {
	t.Helper()
	src, err := os.Open(bundlePath)
	require.NoError(t, err)
	defer src.Close()

	gr, err := gzip.NewReader(src)
	require.NoError(t, err)
	defer gr.Close()

	type member struct {
		hdr  *tar.Header
		data []byte
	}
	var members []member
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		if hdr.Name == "model_dir/model.safetensors" {
			mutated := make([]byte, len(data))
			copy(mutated, data)
			mutated[0] ^= 0xFF
			data = mutated
		}
		members = append(members, member{hdr: hdr, data: data})
	}

	out := filepath.Join(t.TempDir(), "corrupted.tar.gz")
	dst, err := os.Create(out)
	require.NoError(t, err)
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()
	for _, m := range members {
		require.NoError(t, tw.WriteHeader(m.hdr))
		_, err := tw.Write(m.data)
		require.NoError(t, err)
	}
	return out
}

func buildTestBundle(t *testing.T, version string) string {
	t.Helper()
	modelDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "config.json"), []byte(`{"a":1}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "tokenizer.json"), []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "model.safetensors"), []byte("weights"), 0o644))

	bundlesDir := t.TempDir()
	path, err := packager.Build(bundlesDir, modelDir, version,
		map[string]string{"version": version},
		map[string]string{"cove_pass_rate": "0.95"},
		time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return path
}

func TestDeployHappyPath(t *testing.T) {
	bundlePath := buildTestBundle(t, "v1")
	root := t.TempDir()
	target := filepath.Join(root, "live", "model")
	m := New(filepath.Join(root, "deployments"), filepath.Join(root, "deployment_history"))

	record, err := m.Deploy(bundlePath, target, Options{VerifyChecksums: true, RunLoadTest: true}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, record.Status)
	assert.True(t, record.ChecksumVerified)
	assert.True(t, record.LoadTestPassed)
	assert.DirExists(t, target)
}

func TestDeployChecksumMismatchAbortsAndLeavesTargetUntouched(t *testing.T) {
	bundlePath := buildTestBundle(t, "v1")
	corrupted := corruptChecksumBundle(t, bundlePath)

	root := t.TempDir()
	target := filepath.Join(root, "live", "model")
	m := New(filepath.Join(root, "deployments"), filepath.Join(root, "deployment_history"))

	_, err := m.Deploy(corrupted, target, Options{VerifyChecksums: true}, time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, milerr.ErrChecksumMismatch)
	assert.NoDirExists(t, target)

	history, err := m.List()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, StatusFailed, history[0].Status)
}

func TestDeployDryRunDoesNotMove(t *testing.T) {
	bundlePath := buildTestBundle(t, "v1")
	root := t.TempDir()
	target := filepath.Join(root, "live", "model")
	m := New(filepath.Join(root, "deployments"), filepath.Join(root, "deployment_history"))

	record, err := m.Deploy(bundlePath, target, Options{DryRun: true}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, StatusDryRun, record.Status)
	assert.NoDirExists(t, target)
}

func TestDeployExistingTargetRequiresReplace(t *testing.T) {
	bundlePath := buildTestBundle(t, "v1")
	root := t.TempDir()
	target := filepath.Join(root, "live", "model")
	require.NoError(t, os.MkdirAll(target, 0o755))
	m := New(filepath.Join(root, "deployments"), filepath.Join(root, "deployment_history"))

	_, err := m.Deploy(bundlePath, target, Options{}, time.Now())
	assert.ErrorIs(t, err, milerr.ErrDeploymentExists)
}

func TestRollbackSwapsTargetAndPrev(t *testing.T) {
	bundleV1 := buildTestBundle(t, "v1")
	bundleV2 := buildTestBundle(t, "v2")
	root := t.TempDir()
	target := filepath.Join(root, "live", "model")
	m := New(filepath.Join(root, "deployments"), filepath.Join(root, "deployment_history"))

	_, err := m.Deploy(bundleV1, target, Options{}, time.Now())
	require.NoError(t, err)

	_, err = m.Deploy(bundleV2, target, Options{Replace: true}, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.DirExists(t, target + ".prev")

	record, err := m.Rollback(time.Now().Add(2 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, "rollback", record.Reason)
	assert.DirExists(t, target)
}

func TestRollbackWithNoPrevReturnsNoCandidate(t *testing.T) {
	bundlePath := buildTestBundle(t, "v1")
	root := t.TempDir()
	target := filepath.Join(root, "live", "model")
	m := New(filepath.Join(root, "deployments"), filepath.Join(root, "deployment_history"))

	_, err := m.Deploy(bundlePath, target, Options{}, time.Now())
	require.NoError(t, err)

	_, err = m.Rollback(time.Now())
	assert.ErrorIs(t, err, milerr.ErrNoCandidate)
}

func TestNewDeploymentIDUniqueUnderMillisecondSpacing(t *testing.T) {
	t1 := time.Date(2026, 7, 31, 10, 0, 0, 1_000_000, time.UTC)
	t2 := time.Date(2026, 7, 31, 10, 0, 0, 2_000_000, time.UTC)
	assert.NotEqual(t, NewDeploymentID("v1", t1), NewDeploymentID("v1", t2))
}
