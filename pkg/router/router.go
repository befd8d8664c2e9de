// Package router implements the Agent Router (C5, spec §4.2): chooses one
// of {Hub, Executor, Researcher} for a request by calling C2's inference
// client with a fixed system prompt demanding a strict JSON reply, then
// validating that reply against a small hand-rolled schema check — no
// generic JSON-schema library appears anywhere in the pack, so this one
// piece is a direct struct-unmarshal-and-field-check, matching C4's own
// "no generic NLP/schema library" stance.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codeready-toolchain/milton/pkg/inference"
)

// Agent is one of the three specialized handlers a request can be routed to.
type Agent string

const (
	AgentHub        Agent = "Hub"
	AgentExecutor   Agent = "Executor"
	AgentResearcher Agent = "Researcher"
)

// Decision is the router's output: {agent, confidence, reasoning} per spec §4.2.
type Decision struct {
	Agent      Agent   `json:"agent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

const systemPrompt = `You are a request router for a multi-agent assistant. Given the user's message and a short summary of prior session memory, choose exactly one agent to handle it: "Hub" for general conversation, "Executor" for requests to run, execute, or manage a job, "Researcher" for requests about papers, arxiv, or research topics.

Reply with ONLY a JSON object of this exact shape, no other text:
{"agent": "Hub" | "Executor" | "Researcher", "confidence": <number between 0 and 1>, "reasoning": "<short explanation>"}`

// fallbackDecision is returned whenever the LLM reply can't be parsed or
// validated, per spec §4.2: "On parse failure, default to Hub with
// confidence 0."
var fallbackDecision = Decision{Agent: AgentHub, Confidence: 0, Reasoning: "fallback: router reply could not be parsed"}

// Router calls the inference client to classify a request.
type Router struct {
	client *inference.Client
	log    *slog.Logger
}

// New builds a Router bound to an inference client.
func New(client *inference.Client) *Router {
	return &Router{client: client, log: slog.With("component", "router")}
}

// Route chooses an agent for query, given a short summary of prior session
// memory (may be empty). Any inference failure, malformed JSON, or
// schema-invalid reply all resolve to fallbackDecision rather than
// propagating an error — spec §4.2 only names "Hub, confidence 0" as the
// failure behavior, not an error return.
func (r *Router) Route(ctx context.Context, query, memorySummary string) Decision {
	messages := []inference.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: fmt.Sprintf("Prior session memory summary: %s\n\nMessage: %s", memorySummary, query)},
	}

	result, err := r.client.Stream(ctx, messages, nil)
	if err != nil {
		r.log.Warn("router inference call failed, defaulting to Hub", "error", err)
		return fallbackDecision
	}

	decision, err := parseDecision(result.Text)
	if err != nil {
		r.log.Warn("router reply failed schema validation, defaulting to Hub", "error", err, "raw", result.Text)
		return fallbackDecision
	}
	return decision
}

// parseDecision unmarshals and validates raw against the router's schema:
// agent must be one of the three known values, confidence must be within
// [0,1].
func parseDecision(raw string) (Decision, error) {
	raw = extractJSONObject(raw)

	var d Decision
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Decision{}, fmt.Errorf("invalid JSON: %w", err)
	}

	switch d.Agent {
	case AgentHub, AgentExecutor, AgentResearcher:
	default:
		return Decision{}, fmt.Errorf("unknown agent %q", d.Agent)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return Decision{}, fmt.Errorf("confidence %v out of [0,1]", d.Confidence)
	}
	return d, nil
}

// extractJSONObject keeps the span from the first '{' to the last '}',
// trimming any leading/trailing prose and tolerating an LLM that wraps its JSON in a code
// fence or a short preamble despite the system prompt's instruction not to.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
