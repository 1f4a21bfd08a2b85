// Package agent implements the recursive exploration engine: a ReAct-style
// loop per agent over a sandboxed tool vocabulary, with streaming output,
// eager depth-bounded delegation to child agents, and a shared notepad for
// cross-agent knowledge.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/docbot-dev/docbot/pkg/events"
	"github.com/docbot-dev/docbot/pkg/llm"
	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/notepad"
	"github.com/docbot-dev/docbot/pkg/tracker"
)

// Default loop bounds, overridable through Options.
const (
	DefaultMaxSteps    = 15
	DefaultMaxDepth    = 2
	DefaultMaxParallel = 8
)

// Options bound every agent this engine runs.
type Options struct {
	MaxSteps    int // LLM steps per agent before the forced conclusion
	MaxDepth    int // delegation ceiling; depth 0 is the root
	MaxParallel int // concurrent children per agent
}

func (o Options) withDefaults() Options {
	if o.MaxSteps < 1 {
		o.MaxSteps = DefaultMaxSteps
	}
	if o.MaxDepth < 0 {
		o.MaxDepth = DefaultMaxDepth
	}
	if o.MaxParallel < 1 {
		o.MaxParallel = DefaultMaxParallel
	}
	return o
}

// Spec identifies one agent to run.
type Spec struct {
	ID            string // minted when empty
	Name          string
	Type          tracker.AgentType
	Purpose       string
	Target        string // repo-relative focus, "" for the whole repository
	ParentID      string
	Depth         int
	ContextPacket string

	// fromPlan marks deterministic-coverage children, which may enqueue
	// planned grandchildren of their own.
	fromPlan bool
}

// Engine runs agents. One engine serves a whole run; agents share its
// notepad, tracker, bus and file inventory.
type Engine struct {
	client llm.Client
	tools  *Toolkit
	notes  *notepad.Notepad
	track  *tracker.Tracker
	bus    *events.Bus
	files  []models.SourceFile
	opts   Options
}

// New wires an engine. tracker and bus may be nil (their methods are
// nil-safe); files feeds the deterministic delegation plan.
func New(client llm.Client, tools *Toolkit, notes *notepad.Notepad,
	track *tracker.Tracker, bus *events.Bus, files []models.SourceFile, opts Options) *Engine {
	if track == nil {
		track = tracker.New()
	}
	return &Engine{
		client: client,
		tools:  tools,
		notes:  notes,
		track:  track,
		bus:    bus,
		files:  files,
		opts:   opts.withDefaults(),
	}
}

// Run executes one agent to completion and returns its summary. On
// cancellation or unrecoverable failure it returns the partial summary
// alongside the error; the caller decides how to surface it.
func (e *Engine) Run(ctx context.Context, spec Spec) (string, error) {
	if spec.ID == "" {
		spec.ID = mintAgentID()
	}
	if spec.Name == "" {
		spec.Name = spec.Target
		if spec.Name == "" {
			spec.Name = "repository"
		}
	}

	logger := slog.With("agent_id", spec.ID, "depth", spec.Depth, "target", spec.Target)
	e.track.AddNode(spec.ID, spec.ParentID, spec.Name, spec.Type)
	e.track.SetState(spec.ID, tracker.StateRunning)
	e.bus.Publish(events.Event{
		Type: events.TypeAgentSpawned, AgentID: spec.ID,
		Depth: spec.Depth, Detail: spec.Purpose, Scope: spec.Target,
	})

	pool := newChildPool(int64(e.opts.MaxParallel))
	e.spawnPlanned(ctx, spec, pool)

	summary, err := e.loop(ctx, spec, pool, logger)

	// A parent concludes only after every transitive child has returned.
	for _, r := range pool.waitAll() {
		logger.Debug("Late child result after conclusion", "child_id", r.ID, "error", r.Err)
	}

	if err != nil {
		e.track.SetState(spec.ID, tracker.StateError)
		e.bus.Publish(events.Event{
			Type: events.TypeAgentError, AgentID: spec.ID, Detail: err.Error(),
		})
		return summary, err
	}

	e.track.SetState(spec.ID, tracker.StateDone)
	e.bus.Publish(events.Event{
		Type: events.TypeAgentFinished, AgentID: spec.ID, Detail: clipDetail(summary),
	})
	return summary, nil
}

// loop is the ReAct cycle: call, parse, dispatch, repeat. Spawn-type calls
// are out-of-band and do not consume steps; the counter advances once per
// LLM call.
func (e *Engine) loop(ctx context.Context, spec Spec, pool *childPool, logger *slog.Logger) (string, error) {
	delegationOpen := spec.Depth < e.opts.MaxDepth
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(spec, e.opts.MaxDepth, delegationOpen)},
		{Role: llm.RoleUser, Content: initialUserPrompt(spec)},
	}
	tools := toolDefinitions(delegationOpen)

	for step := 0; step < e.opts.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("agent %s cancelled: %w", spec.ID, err)
		}

		// Surface any child summaries that arrived while we were busy.
		for {
			r, ok := pool.tryDrain()
			if !ok {
				break
			}
			messages = append(messages, llm.Message{Role: llm.RoleUser, Content: delegationResult(r)})
		}

		text, calls, err := e.streamStep(ctx, spec.ID, messages, tools)
		if err != nil {
			if ctx.Err() != nil {
				return "", fmt.Errorf("agent %s cancelled: %w", spec.ID, ctx.Err())
			}
			logger.Warn("LLM step failed, feeding error back", "step", step+1, "error", err)
			messages = append(messages, llm.Message{
				Role:    llm.RoleUser,
				Content: fmt.Sprintf("Error from previous attempt: %v. Please try again.", err),
			})
			continue
		}

		if len(calls) == 0 {
			calls = parseTextToolCalls(text)
		}
		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: text, ToolCalls: calls})

		if len(calls) == 0 {
			// No tool calls: either children are still out, or this text is
			// the de-facto final answer.
			if pool.hasPending() {
				r, waitErr := pool.waitNext(ctx)
				if waitErr != nil {
					return "", fmt.Errorf("agent %s cancelled waiting for child: %w", spec.ID, waitErr)
				}
				messages = append(messages, llm.Message{Role: llm.RoleUser, Content: delegationResult(r)})
				continue
			}
			if strings.TrimSpace(text) != "" {
				return text, nil
			}
			messages = append(messages, llm.Message{
				Role:    llm.RoleUser,
				Content: "Your response was empty. Use a tool, or conclude with the finish tool.",
			})
			continue
		}

		finished, summary := e.dispatchCalls(ctx, spec, pool, calls, &messages)
		if finished {
			if strings.TrimSpace(summary) != "" {
				return summary, nil
			}
			// finish without a summary burns the retry below.
			break
		}
	}

	return e.conclude(ctx, spec, messages)
}

// dispatchCalls executes the step's tool calls in LLM-emission order.
// Returns finished=true when finish was called.
func (e *Engine) dispatchCalls(ctx context.Context, spec Spec, pool *childPool,
	calls []llm.ToolCall, messages *[]llm.Message) (finished bool, summary string) {

	appendResult := func(call llm.ToolCall, result string) {
		*messages = append(*messages, llm.Message{
			Role: llm.RoleTool, Content: result, ToolCallID: call.ID, ToolName: call.Name,
		})
	}

	for _, call := range calls {
		e.bus.Publish(events.Event{Type: events.TypeToolStart, AgentID: spec.ID, Tool: call.Name})

		cmd, err := parseCommand(call.Name, call.Arguments)
		if err != nil {
			e.toolFailed(spec.ID, call, "Error: "+err.Error())
			appendResult(call, "Error: "+err.Error())
			continue
		}

		switch c := cmd.(type) {
		case finishCmd:
			e.track.RecordToolCall(spec.ID, call.Name, call.Arguments, "ok")
			e.bus.Publish(events.Event{Type: events.TypeToolEnd, AgentID: spec.ID, Tool: call.Name})
			return true, c.Summary

		case delegateCmd:
			result := e.scheduleChild(ctx, spec, pool, c)
			status := "ok"
			if strings.HasPrefix(result, "Error:") {
				status = "error"
				e.bus.Publish(events.Event{
					Type: events.TypeToolError, AgentID: spec.ID, Tool: call.Name, Detail: result,
				})
			} else {
				e.bus.Publish(events.Event{Type: events.TypeToolEnd, AgentID: spec.ID, Tool: call.Name})
			}
			e.track.RecordToolCall(spec.ID, call.Name, call.Arguments, status)
			appendResult(call, result)

		default:
			result, ok := e.tools.Execute(cmd, spec.ID)
			if !ok {
				e.toolFailed(spec.ID, call, result)
			} else {
				e.track.RecordToolCall(spec.ID, call.Name, call.Arguments, "ok")
				e.bus.Publish(events.Event{Type: events.TypeToolEnd, AgentID: spec.ID, Tool: call.Name})
			}
			appendResult(call, result)
		}
	}
	return false, ""
}

func (e *Engine) toolFailed(agentID string, call llm.ToolCall, detail string) {
	e.track.RecordToolCall(agentID, call.Name, call.Arguments, "error")
	e.bus.Publish(events.Event{
		Type: events.TypeToolError, AgentID: agentID, Tool: call.Name, Detail: clipDetail(detail),
	})
}

// scheduleChild eagerly starts a delegated child and returns the immediate
// tool result (ack or rejection).
func (e *Engine) scheduleChild(ctx context.Context, spec Spec, pool *childPool, c delegateCmd) string {
	if spec.Depth >= e.opts.MaxDepth {
		return fmt.Sprintf("Error: delegation depth limit reached (%d); explore %s yourself.",
			e.opts.MaxDepth, c.Target)
	}

	child := Spec{
		ID:            mintAgentID(),
		Name:          c.Target,
		Type:          tracker.TypeDelegate,
		Purpose:       c.Purpose,
		Target:        c.Target,
		ParentID:      spec.ID,
		Depth:         spec.Depth + 1,
		ContextPacket: c.Context,
	}
	pool.spawn(ctx, child.ID, child.Target, child.Purpose, func(ctx context.Context) (string, error) {
		return e.Run(ctx, child)
	})
	return delegationAck(child.ID, c.Target)
}

// conclude is the exactly-once retry: one more LLM call, without tools,
// demanding a final summary.
func (e *Engine) conclude(ctx context.Context, spec Spec, messages []llm.Message) (string, error) {
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: finalSummaryDirective})

	text, err := e.client.Chat(ctx, messages, nil)
	if err != nil {
		return "", fmt.Errorf("agent %s exhausted %d steps and the conclusion call failed: %w",
			spec.ID, e.opts.MaxSteps, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("agent %s exhausted %d steps without a usable summary",
			spec.ID, e.opts.MaxSteps)
	}
	e.track.AppendText(spec.ID, text)
	return "[max steps reached] " + text, nil
}

// streamStep performs one LLM call, preferring the streaming path. Text
// deltas go to the tracker and the bus as they arrive.
func (e *Engine) streamStep(ctx context.Context, agentID string,
	messages []llm.Message, tools []llm.ToolDefinition) (string, []llm.ToolCall, error) {

	opts := &llm.Options{Tools: tools}
	e.bus.Publish(events.Event{Type: events.TypeLLMRequest, AgentID: agentID})
	stream, err := e.client.StreamChat(ctx, messages, opts)
	if err != nil {
		if errors.Is(err, llm.ErrDisabled) {
			return "", nil, err
		}
		// Some transports only support blocking calls.
		text, chatErr := e.client.Chat(ctx, messages, opts)
		if chatErr != nil {
			return "", nil, chatErr
		}
		e.track.AppendText(agentID, text)
		return text, nil, nil
	}

	var text strings.Builder
	var calls []llm.ToolCall
	for chunk := range stream {
		switch c := chunk.(type) {
		case *llm.TextChunk:
			text.WriteString(c.Content)
			e.track.AppendText(agentID, c.Content)
			e.bus.Publish(events.Event{Type: events.TypeLLMToken, AgentID: agentID, Delta: c.Content})
		case *llm.ToolCallChunk:
			calls = append(calls, llm.ToolCall{ID: c.CallID, Name: c.Name, Arguments: c.Arguments})
		case *llm.ErrorChunk:
			return text.String(), calls, &llm.Error{Message: c.Message, Retryable: c.Retryable}
		}
	}
	return text.String(), calls, nil
}

func mintAgentID() string {
	return "agent-" + uuid.NewString()[:8]
}

func clipDetail(s string) string {
	const max = 500
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
