package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoc() *time.Location { return time.UTC }

func TestNormalize_ExplicitReminder(t *testing.T) {
	now := time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)
	got := Normalize("Set a reminder for me to submit my expense reimbursement tomorrow at 4:30 PM", now, time.UTC)

	require.Equal(t, KindReminderCreate, got.Kind)
	assert.Equal(t, "set_reminder_explicit", got.SurfaceForm)
	assert.Equal(t, 0.95, got.Confidence)
	assert.False(t, got.Fields.NeedsClarification)

	want := time.Date(2026, 1, 27, 16, 30, 0, 0, time.UTC)
	assert.Equal(t, want.Unix(), got.Fields.DueEpoch)
	assert.Contains(t, got.Fields.Task, "submit my expense reimbursement")
}

func TestNormalize_RelativeReminder(t *testing.T) {
	now := time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)
	got := Normalize("remind me to stretch in 20 minutes", now, time.UTC)

	require.Equal(t, KindReminderCreate, got.Kind)
	assert.Equal(t, "set_reminder_relative", got.SurfaceForm)
	assert.Equal(t, now.Add(20*time.Minute).Unix(), got.Fields.DueEpoch)
}

func TestNormalize_RelativeTimeOfDayNeedsClarification(t *testing.T) {
	now := time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)
	got := Normalize("remind me tomorrow morning about the standup", now, time.UTC)

	require.Equal(t, KindReminderCreate, got.Kind)
	assert.True(t, got.Fields.NeedsClarification)
}

func TestNormalize_SimpleReminderNeedsClarification(t *testing.T) {
	now := time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)
	got := Normalize("remind me to water the plants", now, time.UTC)

	require.Equal(t, KindReminderCreate, got.Kind)
	assert.Equal(t, "set_reminder_simple", got.SurfaceForm)
	assert.True(t, got.Fields.NeedsClarification)
	assert.Equal(t, "When would you like to be reminded?", got.Fields.ClarificationPrompt)
}

func TestNormalize_NegativeGuards(t *testing.T) {
	now := time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)
	cases := []string{
		"how do I set a reminder?",
		"I set a reminder once",
		"set a reminder system",
	}
	for _, text := range cases {
		got := Normalize(text, now, time.UTC)
		assert.Equalf(t, KindChat, got.Kind, "text=%q", text)
	}
}

func TestNormalize_ActionIntentNoop(t *testing.T) {
	now := time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)
	got := Normalize("Ping me about my expense reimbursement tomorrow", now, time.UTC)

	require.Equal(t, KindNoop, got.Kind)
	assert.Equal(t, "reminder", got.Fields.IntentHint)
}

func TestNormalize_PlainChat(t *testing.T) {
	now := time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)
	got := Normalize("What's the weather like today?", now, time.UTC)
	assert.Equal(t, KindChat, got.Kind)
}

// TestNormalize_PriorityIsMaximal checks spec §8's property directly: the
// selected rule's priority is >= every other matching rule's priority.
func TestNormalize_PriorityIsMaximal(t *testing.T) {
	now := time.Date(2026, 1, 26, 10, 0, 0, 0, time.UTC)
	texts := []string{
		"Set a reminder for me to submit my expense reimbursement tomorrow at 4:30 PM",
		"remind me to stretch in 20 minutes",
		"remind me to water the plants",
		"how do I set a reminder?",
		"set a goal to learn Go",
		"remember that my wifi password is on the fridge",
	}
	for _, text := range texts {
		got := Normalize(text, now, time.UTC)
		for i := range Rules {
			r := &Rules[i]
			if !r.Predicate(text) {
				continue
			}
			if r.Name == got.SurfaceForm {
				continue
			}
			assert.LessOrEqualf(t, r.Priority, priorityOf(got.SurfaceForm), "rule %q matched with higher priority than selected %q on %q", r.Name, got.SurfaceForm, text)
		}
	}
}

func priorityOf(surfaceForm string) int {
	for i := range Rules {
		if Rules[i].Name == surfaceForm {
			return Rules[i].Priority
		}
	}
	return -1
}
