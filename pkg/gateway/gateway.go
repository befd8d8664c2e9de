// Package gateway implements the Request Gateway (C6, spec §4.3): the
// online request path. Submit accepts a query, normalizes intent (C4),
// either executes a deterministic action synchronously or routes (C5) and
// dispatches to an agent, and streams StreamEvents (events package) back to
// subscribers while writing a working-memory summary on completion.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/milton/pkg/dedup"
	"github.com/codeready-toolchain/milton/pkg/events"
	"github.com/codeready-toolchain/milton/pkg/inference"
	"github.com/codeready-toolchain/milton/pkg/intent"
	"github.com/codeready-toolchain/milton/pkg/memory"
	"github.com/codeready-toolchain/milton/pkg/reminder"
	"github.com/codeready-toolchain/milton/pkg/router"
)

// Status is a Request's lifecycle state (spec §3).
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusRunning  Status = "RUNNING"
	StatusComplete Status = "COMPLETE"
	StatusFailed   Status = "FAILED"
)

// Request is spec §3's Request record.
type Request struct {
	ID             string
	Query          string
	Agent          string
	Status         Status
	CreatedAt      time.Time
	ResponseAccum  string
	Tokens         int
	DurationMS     int
	Error          string
}

// SubmitResult is Submit's return value: {request_id, agent_assigned, confidence}.
type SubmitResult struct {
	RequestID     string
	AgentAssigned string
	Confidence    float64
}

// actionHintExamples gives the deterministic-NOOP response concrete
// canonical phrasings per intent_hint category, per spec §4.3.
var actionHintExamples = map[string][]string{
	"reminder": {`"remind me to call mom tomorrow at 6pm"`, `"set a reminder to submit my timesheet in 2 hours"`},
	"goal":     {`"set a goal to learn Go"`},
	"memory":   {`"remember that my wifi password is on the fridge"`},
}

// actionHintNoopLead gives the deterministic-NOOP response's opening
// sentence per intent_hint, naming exactly what wasn't done. Spec §8's
// end-to-end scenario 1(b) requires the reminder case's response to
// literally contain "No reminder was created".
var actionHintNoopLead = map[string]string{
	"reminder": "No reminder was created.",
	"goal":     "No goal was created.",
	"memory":   "Nothing was saved to memory.",
}

// Gateway owns request state, wires the intent normalizer, router, memory
// store, reminder scheduler, and event fan-out.
type Gateway struct {
	router    *router.Router
	inference *inference.Client
	memory    *memory.Store
	reminders *reminder.Scheduler
	events    *events.ConnectionManager
	dedup     *dedup.Deduplicator
	log       *slog.Logger

	mu       sync.Mutex
	requests map[string]*Request
	seq      map[string]int

	healthMu      sync.Mutex
	lastCheck     time.Time
	lastErr       error
}

// AgentHealth is one agent's entry in the GET /api/system-state response.
type AgentHealth struct {
	Status    string    `json:"status"` // UP, DOWN, DEGRADED
	LastCheck time.Time `json:"last_check"`
	Error     string    `json:"error,omitempty"`
}

// InferenceHealth reports the inference backend's status as last observed
// by a dispatch call, shared across hub/executor/researcher since all three
// agents dispatch through the same backend.
func (g *Gateway) InferenceHealth() AgentHealth {
	g.healthMu.Lock()
	defer g.healthMu.Unlock()
	if g.lastCheck.IsZero() {
		return AgentHealth{Status: "UP", LastCheck: time.Now()}
	}
	if g.lastErr != nil {
		return AgentHealth{Status: "DOWN", LastCheck: g.lastCheck, Error: g.lastErr.Error()}
	}
	return AgentHealth{Status: "UP", LastCheck: g.lastCheck}
}

func (g *Gateway) recordHealth(err error) {
	g.healthMu.Lock()
	g.lastCheck = time.Now()
	g.lastErr = err
	g.healthMu.Unlock()
}

// RecentRequests returns up to limit most-recently-created requests,
// newest first, for GET /api/recent-requests.
func (g *Gateway) RecentRequests(limit int) []*Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Request, 0, len(g.requests))
	for _, r := range g.requests {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// New builds a Gateway from its dependencies. client is used directly for
// agent dispatch streaming; rt is used only for the routing decision call.
func New(rt *router.Router, client *inference.Client, mem *memory.Store, rem *reminder.Scheduler, conn *events.ConnectionManager, dd *dedup.Deduplicator) *Gateway {
	return &Gateway{
		router:    rt,
		inference: client,
		memory:    mem,
		reminders: rem,
		events:    conn,
		dedup:     dd,
		log:       slog.With("component", "gateway"),
		requests:  map[string]*Request{},
		seq:       map[string]int{},
	}
}

// Submit accepts a query, creates a PENDING Request, and runs the
// normalize -> (deterministic action | route+dispatch) decision per spec
// §4.3.
func (g *Gateway) Submit(ctx context.Context, query string, agentOverride string, now time.Time) (SubmitResult, error) {
	req := &Request{
		ID:        uuid.NewString(),
		Query:     query,
		Status:    StatusPending,
		CreatedAt: now,
	}
	g.mu.Lock()
	g.requests[req.ID] = req
	g.mu.Unlock()

	in := intent.Normalize(query, now, time.Local)

	if in.Kind == intent.KindNoop {
		g.deterministicNoop(req, in)
		return SubmitResult{RequestID: req.ID, AgentAssigned: "", Confidence: 0}, nil
	}

	if in.IsAction() && !in.Fields.NeedsClarification {
		g.executeActionSync(ctx, req, in, now)
		return SubmitResult{RequestID: req.ID, AgentAssigned: "", Confidence: in.Confidence}, nil
	}

	if in.IsAction() && in.Fields.NeedsClarification {
		g.clarificationNeeded(req, in)
		return SubmitResult{RequestID: req.ID, AgentAssigned: "", Confidence: in.Confidence}, nil
	}

	memSummary := g.recentMemorySummary(ctx)
	decision := agentDecisionForOverride(ctx, agentOverride, g.router, query, memSummary)

	req.Status = StatusRunning
	req.Agent = string(decision.Agent)

	go g.dispatch(context.Background(), req, decision)

	return SubmitResult{RequestID: req.ID, AgentAssigned: string(decision.Agent), Confidence: decision.Confidence}, nil
}

func agentDecisionForOverride(ctx context.Context, override string, rt *router.Router, query, memSummary string) router.Decision {
	switch override {
	case string(router.AgentHub), string(router.AgentExecutor), string(router.AgentResearcher):
		return router.Decision{Agent: router.Agent(override), Confidence: 1.0, Reasoning: "explicit agent override"}
	default:
		return rt.Route(ctx, query, memSummary)
	}
}

// deterministicNoop emits spec §4.3's required response for an unrecognized
// action keyword without ever invoking the LLM.
func (g *Gateway) deterministicNoop(req *Request, in intent.Intent) {
	examples := actionHintExamples[in.Fields.IntentHint]
	lead := actionHintNoopLead[in.Fields.IntentHint]
	if lead == "" {
		lead = fmt.Sprintf("No action was taken for %q.", in.Fields.IntentHint)
	}
	body := fmt.Sprintf(
		"%s I noticed you mentioned %q but I didn't take any action because I couldn't confidently parse a concrete request. Try phrasing it like: %s\n\nACTION_SUMMARY: {\"action_executed\": false, \"intent_hint\": %q}",
		lead, in.Fields.IntentHint, strings.Join(examples, ", "), in.Fields.IntentHint,
	)

	req.Status = StatusComplete
	req.ResponseAccum = body

	ch := events.RequestChannel(req.ID)
	g.events.Publish(ch, events.NewToken(g.nextSeq(req.ID), body))
	g.events.Publish(ch, events.NewComplete(g.nextSeq(req.ID), 0, 0))
}

func (g *Gateway) clarificationNeeded(req *Request, in intent.Intent) {
	req.Status = StatusComplete
	req.ResponseAccum = in.Fields.ClarificationPrompt

	ch := events.RequestChannel(req.ID)
	g.events.Publish(ch, events.NewToken(g.nextSeq(req.ID), in.Fields.ClarificationPrompt))
	g.events.Publish(ch, events.NewComplete(g.nextSeq(req.ID), 0, 0))
}

// executeActionSync runs a reminder/goal/memory action synchronously and
// emits a terminal confirmation stream, per spec §4.3.
func (g *Gateway) executeActionSync(ctx context.Context, req *Request, in intent.Intent, now time.Time) {
	ch := events.RequestChannel(req.ID)
	var confirmation string

	switch in.Kind {
	case intent.KindReminderCreate:
		due := time.Unix(in.Fields.DueEpoch, 0)
		_, err := g.reminders.Create("gateway", in.Fields.Task, due, "default", now)
		if err != nil {
			req.Status = StatusFailed
			req.Error = err.Error()
			confirmation = fmt.Sprintf("Couldn't set that reminder: %v", err)
		} else {
			confirmation = fmt.Sprintf("Reminder set: %q at %s", in.Fields.Task, due.Format(time.RFC3339))
		}
	case intent.KindGoalCreate:
		if err := g.memory.AddWorking(ctx, "gateway", "goal", in.Fields.Task, 0.7, []string{"goal"}); err != nil {
			req.Status = StatusFailed
			req.Error = err.Error()
			confirmation = fmt.Sprintf("Couldn't save that goal: %v", err)
		} else {
			confirmation = fmt.Sprintf("Goal saved: %q", in.Fields.Task)
		}
	case intent.KindMemoryAdd:
		if err := g.memory.AddLongTerm(ctx, "user_note", in.Fields.Task, 0.6, []string{"memory"}); err != nil {
			req.Status = StatusFailed
			req.Error = err.Error()
			confirmation = fmt.Sprintf("Couldn't remember that: %v", err)
		} else {
			confirmation = fmt.Sprintf("Got it, I'll remember: %q", in.Fields.Task)
		}
	}

	if req.Status != StatusFailed {
		req.Status = StatusComplete
	}
	req.ResponseAccum = confirmation

	g.events.Publish(ch, events.NewToken(g.nextSeq(req.ID), confirmation))
	g.events.Publish(ch, events.NewComplete(g.nextSeq(req.ID), 0, 0))
}

// dispatch routes a non-action request to its assigned agent, streaming
// tokens back and writing a working-memory summary on completion.
func (g *Gateway) dispatch(ctx context.Context, req *Request, decision router.Decision) {
	ch := events.RequestChannel(req.ID)
	start := time.Now()

	g.events.Publish(ch, events.NewRouting(g.nextSeq(req.ID), string(decision.Agent), decision.Confidence, decision.Reasoning))

	messages := []inference.Message{
		{Role: "system", Content: systemPromptFor(decision.Agent)},
		{Role: "user", Content: req.Query},
	}

	result, err := g.inference.Stream(ctx, messages, func(chunk inference.Chunk) {
		if chunk.Done || chunk.Content == "" {
			return
		}
		g.events.Publish(ch, events.NewToken(g.nextSeq(req.ID), chunk.Content))
	})

	g.recordHealth(err)

	g.mu.Lock()
	if err != nil {
		req.Status = StatusFailed
		req.Error = err.Error()
		g.mu.Unlock()
		g.log.Error("agent dispatch failed", "request_id", req.ID, "error", err)
		g.events.Publish(ch, events.NewComplete(g.nextSeq(req.ID), 0, int(time.Since(start).Milliseconds())))
		return
	}
	req.Status = StatusComplete
	req.ResponseAccum = result.Text
	req.Tokens = result.TotalTokens
	req.DurationMS = int(time.Since(start).Milliseconds())
	g.mu.Unlock()

	g.events.Publish(ch, events.NewComplete(g.nextSeq(req.ID), result.TotalTokens, req.DurationMS))

	g.writeExchangeSummary(context.Background(), req, decision)
}

func (g *Gateway) writeExchangeSummary(ctx context.Context, req *Request, decision router.Decision) {
	summary := fmt.Sprintf("Q: %s\nA: %s", req.Query, req.ResponseAccum)
	tags := []string{strings.ToLower(string(decision.Agent))}
	if err := g.memory.AddWorking(ctx, string(decision.Agent), "exchange", summary, 0.5, tags); err != nil {
		g.log.Warn("failed to write exchange summary to memory", "request_id", req.ID, "error", err)
	}
}

func (g *Gateway) recentMemorySummary(ctx context.Context) string {
	records, err := g.memory.GetRecentShortTerm(ctx, 24, "")
	if err != nil || len(records) == 0 {
		return ""
	}
	var b strings.Builder
	for _, r := range records {
		b.WriteString(r.Content)
		b.WriteString(". ")
	}
	return b.String()
}

func (g *Gateway) nextSeq(requestID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq[requestID]++
	return g.seq[requestID]
}

// GetRequest returns the current state of a tracked request.
func (g *Gateway) GetRequest(id string) (*Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.requests[id]
	return r, ok
}

// Memory exposes the underlying memory store for read-only status queries.
func (g *Gateway) Memory() *memory.Store { return g.memory }

// Events exposes the connection manager for transport-layer wiring (the
// per-request WebSocket handler).
func (g *Gateway) Events() *events.ConnectionManager { return g.events }

// Deduplicate reports whether externalMessageID has already been processed,
// recording it as seen if not.
func (g *Gateway) Deduplicate(externalMessageID string, now time.Time) (bool, error) {
	return g.dedup.Deduplicate(externalMessageID, now)
}

func systemPromptFor(agent router.Agent) string {
	switch agent {
	case router.AgentExecutor:
		return "You are Executor, an agent that runs and manages jobs on behalf of the user. Be concise and concrete about what you will do."
	case router.AgentResearcher:
		return "You are Researcher, an agent that helps find and summarize papers and research topics. Cite sources by name where possible."
	default:
		return "You are Hub, a helpful general-purpose assistant."
	}
}
