package agent

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/docbot-dev/docbot/pkg/llm"
)

// scriptedResponse is one canned LLM turn.
type scriptedResponse struct {
	text  string
	calls []llm.ToolCall
}

// mockClient replays scripted responses. Thread-safe: delegated children and
// the parent hit the same instance. When the script runs out it repeats the
// final response, so a script ending in finish terminates every agent.
type mockClient struct {
	mu        sync.Mutex
	script    []scriptedResponse
	cursor    int
	callCount atomic.Int64

	// gate, when set, is acquired for the duration of each call; tests use
	// it to observe concurrency.
	gate func()
}

func newMockClient(script ...scriptedResponse) *mockClient {
	return &mockClient{script: script}
}

func (m *mockClient) next() scriptedResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.script) == 0 {
		return scriptedResponse{text: "done"}
	}
	resp := m.script[m.cursor]
	if m.cursor < len(m.script)-1 {
		m.cursor++
	}
	return resp
}

func (m *mockClient) Chat(ctx context.Context, _ []llm.Message, _ *llm.Options) (string, error) {
	m.callCount.Add(1)
	if m.gate != nil {
		m.gate()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.next().text, nil
}

func (m *mockClient) StreamChat(ctx context.Context, _ []llm.Message, _ *llm.Options) (<-chan llm.Chunk, error) {
	m.callCount.Add(1)
	if m.gate != nil {
		m.gate()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp := m.next()

	ch := make(chan llm.Chunk, len(resp.calls)+2)
	if resp.text != "" {
		ch <- &llm.TextChunk{Content: resp.text}
	}
	for _, call := range resp.calls {
		ch <- &llm.ToolCallChunk{CallID: call.ID, Name: call.Name, Arguments: call.Arguments}
	}
	close(ch)
	return ch, nil
}

func (m *mockClient) Model() string { return "mock" }
func (m *mockClient) Close() error  { return nil }

func finishCall(summary string) llm.ToolCall {
	return llm.ToolCall{ID: "call-finish", Name: ToolFinish,
		Arguments: `{"summary": ` + quoteJSON(summary) + `}`}
}

func delegateCall(id, target, purpose string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: ToolDelegate,
		Arguments: `{"target": ` + quoteJSON(target) + `, "purpose": ` + quoteJSON(purpose) + `}`}
}

func quoteJSON(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '"')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"', '\\':
			out = append(out, '\\', s[i])
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, s[i])
		}
	}
	return string(append(out, '"'))
}
