// Package tracker maintains the observational tree of agents and pipeline
// stages for one run: node state machine, accumulated LLM text, tool-call
// records, and an event log ordered by monotonic-clock deltas from run start.
//
// One mutex covers nodes and events. Snapshots and exports return deep
// copies; holders never see live state.
package tracker

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// State is a tracker node's lifecycle state.
type State string

const (
	StatePending State = "pending"
	StateWaiting State = "waiting"
	StateRunning State = "running"
	StateDone    State = "done"
	StateError   State = "error"
)

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}

var validTransitions = map[State]map[State]bool{
	StatePending: {StateWaiting: true, StateRunning: true},
	StateWaiting: {StateRunning: true},
	StateRunning: {StateDone: true, StateError: true},
}

// AgentType classifies a tracker node.
type AgentType string

const (
	TypeScope    AgentType = "scope"
	TypeFile     AgentType = "file"
	TypeSymbol   AgentType = "symbol"
	TypeRoot     AgentType = "root"
	TypeStage    AgentType = "stage"
	TypeDelegate AgentType = "delegate"
)

// Event log entry types.
const (
	EventNodeAdded   = "node_added"
	EventStateChange = "state_change"
	EventToolCall    = "tool_call"
)

// Event is one entry of the run's pipeline event log. At is the seconds
// elapsed since run start on the monotonic clock.
type Event struct {
	Type   string  `json:"type"`
	NodeID string  `json:"node_id"`
	At     float64 `json:"at"`
	Detail string  `json:"detail,omitempty"`
}

// ToolCallRecord is one tool invocation attributed to a node.
type ToolCallRecord struct {
	Name   string  `json:"name"`
	Args   string  `json:"args"`
	Status string  `json:"status"`
	At     float64 `json:"at"`
}

type node struct {
	id        string
	parentID  string
	name      string
	agentType AgentType
	state     State
	startedAt time.Time
	finished  time.Time
	llmText   strings.Builder
	toolCalls []ToolCallRecord
	children  []string
}

// NodeSnapshot is the exported, read-only view of one node. Elapsed is
// finished-started if finished, now-started if running, zero otherwise.
type NodeSnapshot struct {
	ID         string           `json:"id"`
	ParentID   string           `json:"parent_id,omitempty"`
	Name       string           `json:"name"`
	AgentType  AgentType        `json:"agent_type"`
	State      State            `json:"state"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	Elapsed    float64          `json:"elapsed"`
	LLMText    string           `json:"llm_text,omitempty"`
	ToolCalls  []ToolCallRecord `json:"tool_calls,omitempty"`
	Children   []string         `json:"children,omitempty"`
}

// TreeSnapshot is a consistent point-in-time view of the whole tree.
type TreeSnapshot struct {
	RunID string                  `json:"run_id"`
	Nodes map[string]NodeSnapshot `json:"nodes"`
	Roots []string                `json:"roots"`
}

// Export is the JSON-safe event log written to pipeline_events.json.
type Export struct {
	RunID         string  `json:"run_id"`
	TotalDuration float64 `json:"total_duration"`
	Events        []Event `json:"events"`
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	runID  string
	origin time.Time
	nodes  map[string]*node
	roots  []string
	events []Event
}

// New creates a tracker whose event clock starts now.
func New() *Tracker {
	return &Tracker{
		origin: time.Now(),
		nodes:  make(map[string]*node),
	}
}

// SetRunID attaches the run identifier carried by snapshots and exports.
func (t *Tracker) SetRunID(runID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runID = runID
}

// AddNode registers a new pending node. parentID may be empty for roots; an
// unknown parent is tolerated (the child becomes a root) with a debug log.
func (t *Tracker) AddNode(id, parentID, name string, agentType AgentType) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.nodes[id]; exists {
		slog.Debug("Tracker node already exists, ignoring", "node_id", id)
		return
	}

	n := &node{
		id:        id,
		parentID:  parentID,
		name:      name,
		agentType: agentType,
		state:     StatePending,
	}
	t.nodes[id] = n

	if parentID == "" {
		t.roots = append(t.roots, id)
	} else if parent, ok := t.nodes[parentID]; ok {
		parent.children = append(parent.children, id)
	} else {
		slog.Debug("Tracker parent not found, attaching as root", "node_id", id, "parent_id", parentID)
		n.parentID = ""
		t.roots = append(t.roots, id)
	}

	t.record(EventNodeAdded, id, string(agentType)+":"+name)
}

// SetState applies a state transition. Illegal transitions (including any
// transition out of a terminal state) are ignored with a debug log.
func (t *Tracker) SetState(id string, next State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		slog.Debug("Tracker node not found", "node_id", id, "state", next)
		return
	}
	if !validTransitions[n.state][next] {
		slog.Debug("Ignoring illegal tracker transition",
			"node_id", id, "from", n.state, "to", next)
		return
	}

	prev := n.state
	n.state = next
	now := time.Now()
	if next == StateRunning && n.startedAt.IsZero() {
		n.startedAt = now
	}
	if next.Terminal() {
		n.finished = now
	}

	t.record(EventStateChange, id, fmt.Sprintf("%s->%s", prev, next))
}

// AppendText accumulates streamed LLM text on a node. Token deltas land on
// the node only; the live stream goes to the event bus, not this log.
func (t *Tracker) AppendText(id, delta string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n, ok := t.nodes[id]; ok {
		n.llmText.WriteString(delta)
	}
}

// RecordToolCall attributes one tool invocation to a node.
func (t *Tracker) RecordToolCall(id, name, args, status string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	n, ok := t.nodes[id]
	if !ok {
		slog.Debug("Tracker node not found for tool call", "node_id", id, "tool", name)
		return
	}
	n.toolCalls = append(n.toolCalls, ToolCallRecord{
		Name:   name,
		Args:   args,
		Status: status,
		At:     t.elapsed(),
	})
	t.record(EventToolCall, id, name+":"+status)
}

// Snapshot returns a consistent deep copy of the tree. The lock is held for
// the duration of the copy.
func (t *Tracker) Snapshot() TreeSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	snap := TreeSnapshot{
		RunID: t.runID,
		Nodes: make(map[string]NodeSnapshot, len(t.nodes)),
		Roots: append([]string(nil), t.roots...),
	}
	for id, n := range t.nodes {
		ns := NodeSnapshot{
			ID:        id,
			ParentID:  n.parentID,
			Name:      n.name,
			AgentType: n.agentType,
			State:     n.state,
			LLMText:   n.llmText.String(),
			ToolCalls: append([]ToolCallRecord(nil), n.toolCalls...),
			Children:  append([]string(nil), n.children...),
		}
		if !n.startedAt.IsZero() {
			started := n.startedAt
			ns.StartedAt = &started
			switch {
			case !n.finished.IsZero():
				finished := n.finished
				ns.FinishedAt = &finished
				ns.Elapsed = n.finished.Sub(n.startedAt).Seconds()
			default:
				ns.Elapsed = now.Sub(n.startedAt).Seconds()
			}
		}
		snap.Nodes[id] = ns
	}
	return snap
}

// ExportEvents returns the full event log for persistence.
func (t *Tracker) ExportEvents() Export {
	t.mu.Lock()
	defer t.mu.Unlock()

	return Export{
		RunID:         t.runID,
		TotalDuration: t.elapsed(),
		Events:        append([]Event(nil), t.events...),
	}
}

// record appends an event. Callers must hold t.mu.
func (t *Tracker) record(eventType, nodeID, detail string) {
	t.events = append(t.events, Event{
		Type:   eventType,
		NodeID: nodeID,
		At:     t.elapsed(),
		Detail: detail,
	})
}

// elapsed reads the monotonic delta from run start. Callers must hold t.mu.
func (t *Tracker) elapsed() float64 {
	return time.Since(t.origin).Seconds()
}
