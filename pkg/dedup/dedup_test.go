package dedup

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeduplicateFirstSeenIsNotDuplicate(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "seen.jsonl"))
	require.NoError(t, err)

	isDup, err := d.Deduplicate("req-1", time.Now())
	require.NoError(t, err)
	assert.False(t, isDup)
}

func TestDeduplicateSecondCallIsDuplicate(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "seen.jsonl"))
	require.NoError(t, err)

	now := time.Now()
	_, err = d.Deduplicate("req-1", now)
	require.NoError(t, err)

	isDup, err := d.Deduplicate("req-1", now)
	require.NoError(t, err)
	assert.True(t, isDup)
}

func TestDeduplicateDistinctIDsAreIndependent(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "seen.jsonl"))
	require.NoError(t, err)

	now := time.Now()
	_, err = d.Deduplicate("req-1", now)
	require.NoError(t, err)

	isDup, err := d.Deduplicate("req-2", now)
	require.NoError(t, err)
	assert.False(t, isDup)
}

func TestReopenRebuildsKeySetFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seen.jsonl")
	now := time.Now()

	d1, err := Open(path)
	require.NoError(t, err)
	_, err = d1.Deduplicate("req-1", now)
	require.NoError(t, err)

	d2, err := Open(path)
	require.NoError(t, err)
	isDup, err := d2.Deduplicate("req-1", now)
	require.NoError(t, err)
	assert.True(t, isDup, "reopened deduplicator should recognize an id recorded before restart")
}

func TestDeduplicateBloomFalsePositiveStillConsultsFileForCorrectness(t *testing.T) {
	d, err := Open(filepath.Join(t.TempDir(), "seen.jsonl"))
	require.NoError(t, err)

	// Force a bloom "maybe seen" without the id actually being recorded,
	// simulating a false positive; the exact key-set check must still
	// treat it as new.
	d.filter.AddString("phantom")

	isDup, err := d.Deduplicate("phantom", time.Now())
	require.NoError(t, err)
	assert.False(t, isDup, "a bloom false positive must not be treated as a real duplicate")
}
