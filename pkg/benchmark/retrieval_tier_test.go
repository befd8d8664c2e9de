package benchmark

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunRetrievalTierProducesOKStatus(t *testing.T) {
	result := runRetrievalTier(context.Background())
	require.Contains(t, result, MetricRetrievalF1)
	m := result[MetricRetrievalF1]
	assert.Equal(t, StatusOK, m.Status)
	assert.GreaterOrEqual(t, m.Value, 0.0)
	assert.LessOrEqual(t, m.Value, 1.0)
}

func TestRunRetrievalTierDeterministic(t *testing.T) {
	a := runRetrievalTier(context.Background())
	b := runRetrievalTier(context.Background())
	assert.Equal(t, a[MetricRetrievalF1].Value, b[MetricRetrievalF1].Value)
}

func TestScoreRetrievalPerfectMatch(t *testing.T) {
	precision, recall, f1 := scoreRetrieval([]string{"a", "b"}, []string{"a", "b"})
	assert.Equal(t, 1.0, precision)
	assert.Equal(t, 1.0, recall)
	assert.Equal(t, 1.0, f1)
}

func TestScoreRetrievalNoOverlap(t *testing.T) {
	precision, recall, f1 := scoreRetrieval([]string{"x", "y"}, []string{"a", "b"})
	assert.Zero(t, precision)
	assert.Zero(t, recall)
	assert.Zero(t, f1)
}

func TestScoreRetrievalEmptyRetrieved(t *testing.T) {
	precision, recall, f1 := scoreRetrieval(nil, []string{"a"})
	assert.Zero(t, precision)
	assert.Zero(t, recall)
	assert.Zero(t, f1)
}

func TestTopMatchesRespectsK(t *testing.T) {
	matches := topMatches("how long is short-term memory kept?", 2)
	assert.LessOrEqual(t, len(matches), 2)
	assert.Contains(t, matches, "doc1")
}
