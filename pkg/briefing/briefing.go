// Package briefing assembles Milton's daily morning briefing: a set of
// independently pluggable fetchers (weather, news, arxiv, calendar) whose
// partial failures degrade that one section rather than failing the whole
// briefing (spec §9's Open Question, resolved as "degraded by default,
// per-section status"). The HTTP-fetch-with-timeout shape is grounded on
// tarsy's pkg/runbook.GitHubClient.DownloadContent.
package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codeready-toolchain/milton/pkg/notify"
)

// SectionStatus mirrors spec §3's MetricResult status convention
// (ok/skipped/error) applied to a briefing section instead of a metric.
type SectionStatus string

const (
	SectionOK      SectionStatus = "ok"
	SectionSkipped SectionStatus = "skipped"
	SectionError   SectionStatus = "error"
)

// Section is one fetcher's contribution to the briefing.
type Section struct {
	Name    string        `json:"name"`
	Status  SectionStatus `json:"status"`
	Content string        `json:"content,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Briefing is the fully assembled (possibly partially degraded) result.
type Briefing struct {
	GeneratedAt time.Time `json:"generated_at"`
	Sections    []Section `json:"sections"`
}

// Fetcher produces one named section of the briefing. A Fetcher returning
// an error degrades only its own section; it never aborts the others.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) (string, error)
}

// Assembler runs every registered Fetcher concurrently and assembles a
// Briefing, then optionally publishes it through a notify.Channel.
type Assembler struct {
	fetchers []Fetcher
	timeout  time.Duration
	log      *slog.Logger
}

// New builds an Assembler. timeout bounds each individual fetcher, not the
// whole assembly — a single slow fetcher degrades only its own section.
func New(fetchers []Fetcher, timeout time.Duration) *Assembler {
	return &Assembler{fetchers: fetchers, timeout: timeout, log: slog.With("component", "briefing")}
}

// Assemble runs every fetcher and returns the combined Briefing. It never
// returns an error: a fetcher failure is recorded as a degraded section.
func (a *Assembler) Assemble(ctx context.Context, now time.Time) Briefing {
	sections := make([]Section, len(a.fetchers))

	var wg sync.WaitGroup
	for i, f := range a.fetchers {
		wg.Add(1)
		go func(i int, f Fetcher) {
			defer wg.Done()
			sections[i] = a.runOne(ctx, f)
		}(i, f)
	}
	wg.Wait()

	return Briefing{GeneratedAt: now, Sections: sections}
}

func (a *Assembler) runOne(ctx context.Context, f Fetcher) Section {
	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	content, err := f.Fetch(fetchCtx)
	if err != nil {
		a.log.Warn("briefing section degraded", "section", f.Name(), "error", err)
		return Section{Name: f.Name(), Status: SectionError, Error: err.Error()}
	}
	return Section{Name: f.Name(), Status: SectionOK, Content: content}
}

// Publish renders b as a single notification and sends it through ch.
func (a *Assembler) Publish(ctx context.Context, ch notify.Channel, b Briefing) error {
	return ch.Publish(ctx, notify.Message{
		Title: "Morning Briefing",
		Body:  Render(b),
		Tags:  map[string]string{"kind": "morning_briefing"},
	})
}

// Render formats a Briefing as human-readable text, marking degraded
// sections explicitly rather than silently omitting them.
func Render(b Briefing) string {
	out := fmt.Sprintf("Briefing for %s\n\n", b.GeneratedAt.Format("Monday, January 2"))
	for _, s := range b.Sections {
		switch s.Status {
		case SectionOK:
			out += fmt.Sprintf("## %s\n%s\n\n", s.Name, s.Content)
		case SectionError:
			out += fmt.Sprintf("## %s\n(unavailable: %s)\n\n", s.Name, s.Error)
		case SectionSkipped:
			out += fmt.Sprintf("## %s\n(skipped)\n\n", s.Name)
		}
	}
	return out
}
