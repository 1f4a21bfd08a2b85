// Package events implements the per-run event fan-out between the pipeline
// core and its consumers (the SSE web surface, tests).
//
// Lifecycle pattern:
//
//	bus := events.NewBus(1024)
//	ch, cancel := bus.Subscribe(64)   // consumer side
//	defer cancel()
//	bus.Publish(events.Event{...})    // producer side, never blocks
//
// Publishing is always non-blocking: when a subscriber's queue is full the
// newest event is dropped for that subscriber and logged at debug. In
// parallel the bus mirrors a last-known snapshot (agent_id -> last event per
// type) so late-joining consumers get current state without replay.
package events

import "time"

// Event types emitted by the core. The set and the field contract
// ({type, agent_id, timestamp} at minimum) are stable for consumers.
const (
	TypeAgentSpawned   = "agent_spawned"
	TypeAgentFinished  = "agent_finished"
	TypeAgentError     = "agent_error"
	TypeLLMRequest     = "llm_request"
	TypeLLMToken       = "llm_token"
	TypeToolStart      = "tool_start"
	TypeToolEnd        = "tool_end"
	TypeToolError      = "tool_error"
	TypeNotepadCreated = "notepad_created"
	TypeNotepadWrite   = "notepad_write"
	TypeStageStarted   = "stage_started"
	TypeStageFinished  = "stage_finished"
	TypeScopeDone      = "scope_done"
)

// Event is one tagged record on the bus. Only Type, AgentID and Timestamp
// are always set; the remaining fields depend on Type.
type Event struct {
	Type      string    `json:"type"`
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`

	// Delta carries one streamed LLM text fragment (llm_token).
	Delta string `json:"delta,omitempty"`
	// Tool names the tool for tool_start/tool_end/tool_error.
	Tool string `json:"tool,omitempty"`
	// Topic names the notepad topic for notepad_created/notepad_write.
	Topic string `json:"topic,omitempty"`
	// Scope names the scope for scope_done and stage events.
	Scope string `json:"scope,omitempty"`
	// Depth is the agent's delegation depth for agent_spawned.
	Depth int `json:"depth,omitempty"`
	// Detail carries error text, summaries, or stage names.
	Detail string `json:"detail,omitempty"`
}
