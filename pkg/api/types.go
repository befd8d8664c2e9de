package api

import "time"

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Query string `json:"query"`
	Agent string `json:"agent,omitempty"`
}

// AskResponse is the response to POST /api/ask.
type AskResponse struct {
	RequestID     string  `json:"request_id"`
	Status        string  `json:"status"`
	AgentAssigned string  `json:"agent_assigned,omitempty"`
	Confidence    float64 `json:"confidence"`
}

// ComponentState is one entry of GET /api/system-state.
type ComponentState struct {
	Status      string    `json:"status"` // UP, DOWN, DEGRADED
	LastCheck   time.Time `json:"last_check"`
	Error       string    `json:"error,omitempty"`
	RunningJobs int       `json:"running_jobs,omitempty"`
	QueuedJobs  int       `json:"queued_jobs,omitempty"`
	VectorCount int       `json:"vector_count,omitempty"`
	MemoryMB    float64   `json:"memory_mb,omitempty"`
}

// SystemStateResponse is the response to GET /api/system-state.
type SystemStateResponse struct {
	Hub        ComponentState `json:"hub"`
	Executor   ComponentState `json:"executor"`
	Researcher ComponentState `json:"researcher"`
	Memory     ComponentState `json:"memory"`
}

// RequestSummary is one entry of GET /api/recent-requests.
type RequestSummary struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Agent      string    `json:"agent"`
	Timestamp  time.Time `json:"timestamp"`
	Status     string    `json:"status"`
	DurationMS int       `json:"duration_ms"`
}
