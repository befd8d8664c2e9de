package reminder

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/milton/pkg/notify"
)

type recordingChannel struct {
	published []notify.Message
	err       error
}

func (r *recordingChannel) Name() string { return "recording" }

func (r *recordingChannel) Publish(ctx context.Context, msg notify.Message) error {
	r.published = append(r.published, msg)
	return r.err
}

func logPath(t *testing.T) string {
	return filepath.Join(t.TempDir(), "log.jsonl")
}

func TestCreateAddsToPendingAndTickDeliversWhenDue(t *testing.T) {
	ch := &recordingChannel{}
	s, err := Open(logPath(t), ch)
	require.NoError(t, err)

	now := time.Now()
	_, err = s.Create("alice", "stand up", now.Add(1*time.Minute), "slack", now)
	require.NoError(t, err)

	assert.Len(t, s.Pending(), 1)

	n, err := s.Tick(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "not yet due")

	n, err = s.Tick(context.Background(), now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, ch.published, 1)
	assert.Equal(t, "stand up", ch.published[0].Body)
	assert.Empty(t, s.Pending())
}

func TestCreateRejectsDueEpochBeforeNow(t *testing.T) {
	s, err := Open(logPath(t), &recordingChannel{})
	require.NoError(t, err)

	now := time.Now()
	_, err = s.Create("alice", "past thing", now.Add(-1*time.Minute), "slack", now)
	assert.Error(t, err)
}

func TestRestartReplaysPendingOnlyNotDelivered(t *testing.T) {
	path := logPath(t)
	now := time.Now()

	s1, err := Open(path, &recordingChannel{})
	require.NoError(t, err)

	_, err = s1.Create("alice", "due soon", now.Add(1*time.Minute), "slack", now)
	require.NoError(t, err)
	_, err = s1.Create("bob", "deliver me now", now.Add(-1*time.Second).Add(2*time.Second), "slack", now)
	require.NoError(t, err)

	// Deliver the second reminder before "restart".
	_, err = s1.Tick(context.Background(), now.Add(5*time.Second))
	require.NoError(t, err)
	assert.Len(t, s1.Pending(), 1)

	s2, err := Open(path, &recordingChannel{})
	require.NoError(t, err)
	assert.Len(t, s2.Pending(), 1, "only the undelivered reminder should survive replay")
}

func TestCancelPreventsDelivery(t *testing.T) {
	ch := &recordingChannel{}
	path := logPath(t)
	now := time.Now()

	s1, err := Open(path, ch)
	require.NoError(t, err)
	r, err := s1.Create("alice", "cancel me", now.Add(1*time.Minute), "slack", now)
	require.NoError(t, err)

	require.NoError(t, s1.Cancel(r.ID, now.Add(10*time.Second)))

	s2, err := Open(path, ch)
	require.NoError(t, err)
	assert.Empty(t, s2.Pending(), "cancelled reminder should not be reconstructed as pending")
}

func TestTickDeliversInDueOrder(t *testing.T) {
	ch := &recordingChannel{}
	s, err := Open(logPath(t), ch)
	require.NoError(t, err)

	now := time.Now()
	_, err = s.Create("alice", "third", now.Add(3*time.Minute), "slack", now)
	require.NoError(t, err)
	_, err = s.Create("alice", "first", now.Add(1*time.Minute), "slack", now)
	require.NoError(t, err)
	_, err = s.Create("alice", "second", now.Add(2*time.Minute), "slack", now)
	require.NoError(t, err)

	n, err := s.Tick(context.Background(), now.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, ch.published, 3)
	assert.Equal(t, "first", ch.published[0].Body)
	assert.Equal(t, "second", ch.published[1].Body)
	assert.Equal(t, "third", ch.published[2].Body)
}

func TestLateDeliveryAfterDowntimeIsPermittedAndCounted(t *testing.T) {
	ch := &recordingChannel{}
	s, err := Open(logPath(t), ch)
	require.NoError(t, err)

	now := time.Now()
	_, err = s.Create("alice", "missed during downtime", now.Add(1*time.Minute), "slack", now)
	require.NoError(t, err)

	muchLater := now.Add(24 * time.Hour)
	n, err := s.Tick(context.Background(), muchLater)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "reminder delivered late should still be delivered and counted")
}

func TestDeliveryFailureLeavesReminderOffHeapButEventLogged(t *testing.T) {
	failing := errors.New("channel down")
	ch := &recordingChannel{err: failing}
	path := logPath(t)
	s, err := Open(path, ch)
	require.NoError(t, err)

	now := time.Now()
	_, err = s.Create("alice", "flaky delivery", now.Add(1*time.Minute), "slack", now)
	require.NoError(t, err)

	n, err := s.Tick(context.Background(), now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, n, "Tick should not count a failed publish as delivered")
	assert.Empty(t, s.Pending(), "popped reminder is not re-queued even on publish failure")

	s2, err := Open(path, &recordingChannel{})
	require.NoError(t, err)
	assert.Empty(t, s2.Pending(), "deliver event was logged before publish, so replay skips it")
}
