package briefing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	name    string
	content string
	err     error
	delay   time.Duration
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Fetch(ctx context.Context) (string, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

func TestAssembleAllSectionsSucceed(t *testing.T) {
	a := New([]Fetcher{
		&fakeFetcher{name: "weather", content: "sunny"},
		&fakeFetcher{name: "news", content: "headline one"},
	}, time.Second)

	b := a.Assemble(context.Background(), time.Now())
	require.Len(t, b.Sections, 2)
	for _, s := range b.Sections {
		assert.Equal(t, SectionOK, s.Status)
	}
}

func TestAssembleDegradesOnlyFailingSection(t *testing.T) {
	a := New([]Fetcher{
		&fakeFetcher{name: "weather", content: "sunny"},
		&fakeFetcher{name: "news", err: errors.New("feed unreachable")},
	}, time.Second)

	b := a.Assemble(context.Background(), time.Now())
	require.Len(t, b.Sections, 2)

	byName := map[string]Section{}
	for _, s := range b.Sections {
		byName[s.Name] = s
	}
	assert.Equal(t, SectionOK, byName["weather"].Status)
	assert.Equal(t, SectionError, byName["news"].Status)
	assert.Contains(t, byName["news"].Error, "feed unreachable")
}

func TestAssembleTimesOutSlowFetcherWithoutBlockingOthers(t *testing.T) {
	a := New([]Fetcher{
		&fakeFetcher{name: "slow", delay: 50 * time.Millisecond},
		&fakeFetcher{name: "fast", content: "ok"},
	}, 10*time.Millisecond)

	start := time.Now()
	b := a.Assemble(context.Background(), time.Now())
	elapsed := time.Since(start)

	assert.Less(t, elapsed, 40*time.Millisecond, "a slow fetcher should not block the whole assembly past its own timeout")

	byName := map[string]Section{}
	for _, s := range b.Sections {
		byName[s.Name] = s
	}
	assert.Equal(t, SectionError, byName["slow"].Status)
	assert.Equal(t, SectionOK, byName["fast"].Status)
}

func TestRenderMarksDegradedSectionsExplicitly(t *testing.T) {
	b := Briefing{
		GeneratedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		Sections: []Section{
			{Name: "weather", Status: SectionOK, Content: "sunny"},
			{Name: "news", Status: SectionError, Error: "unreachable"},
		},
	}
	out := Render(b)
	assert.Contains(t, out, "sunny")
	assert.Contains(t, out, "unavailable: unreachable")
}

func TestExtractAtomTitlesDropsFeedLevelTitle(t *testing.T) {
	atom := `<feed><title>ArXiv Query Results</title><entry><title>  A real paper title  </title></entry></feed>`
	titles := extractAtomTitles(atom)
	require.Len(t, titles, 1)
	assert.Equal(t, "A real paper title", titles[0])
}
