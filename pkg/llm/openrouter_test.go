package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *OpenRouterClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenRouter(OpenRouterConfig{
		APIKey:  "test-key",
		Model:   "test/model",
		BaseURL: srv.URL,
	})
}

func TestChatSuccess(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{
			"choices": [{"message": {"content": "hello from the model"}}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5}
		}`)
	}))

	text, err := client.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hi"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello from the model", text)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/chat/completions", gotPath)
	assert.Equal(t, "test/model", gotBody["model"])
	assert.Equal(t, false, gotBody["stream"])

	msgs, ok := gotBody["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 2)
}

func TestChatRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"choices": [{"message": {"content": "second try"}}]}`)
	}))

	text, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "second try", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatTerminalErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))

	_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)

	var lerr *Error
	require.ErrorAs(t, err, &lerr)
	assert.False(t, lerr.Retryable)
	assert.Equal(t, http.StatusUnauthorized, lerr.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatSendsToolsAndJSONMode(t *testing.T) {
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		fmt.Fprint(w, `{"choices": [{"message": {"content": "{}"}}]}`)
	}))

	_, err := client.Chat(context.Background(), []Message{{Role: RoleUser, Content: "go"}}, &Options{
		JSONMode: true,
		Tools: []ToolDefinition{{
			Name:             "read_file",
			Description:      "Read a file",
			ParametersSchema: `{"type": "object", "properties": {"path": {"type": "string"}}}`,
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "auto", gotBody["tool_choice"])
	rf, ok := gotBody["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", rf["type"])

	tools, ok := gotBody["tools"].([]any)
	require.True(t, ok)
	require.Len(t, tools, 1)
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	assert.Equal(t, "read_file", fn["name"])
}

func sseBody(lines ...string) string {
	out := ""
	for _, l := range lines {
		out += "data: " + l + "\n\n"
	}
	return out + "data: [DONE]\n\n"
}

func TestStreamChatTextDeltas(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"choices": [{"delta": {"content": "Hel"}}]}`,
			`{"choices": [{"delta": {"content": "lo"}}]}`,
			`{"choices": [{"delta": {}, "finish_reason": "stop"}], "usage": {"prompt_tokens": 3, "completion_tokens": 2, "total_tokens": 5}}`,
		))
	}))

	ch, err := client.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)

	var text string
	var usage *UsageChunk
	for chunk := range ch {
		switch c := chunk.(type) {
		case *TextChunk:
			text += c.Content
		case *UsageChunk:
			usage = c
		case *ErrorChunk:
			t.Fatalf("unexpected error chunk: %s", c.Message)
		}
	}
	assert.Equal(t, "Hello", text)
	require.NotNil(t, usage)
	assert.Equal(t, 3, usage.InputTokens)
	assert.Equal(t, 2, usage.OutputTokens)
}

func TestStreamChatAccumulatesToolCalls(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"choices": [{"delta": {"tool_calls": [{"index": 0, "id": "call_1", "function": {"name": "read_file", "arguments": ""}}]}}]}`,
			`{"choices": [{"delta": {"tool_calls": [{"index": 0, "function": {"arguments": "{\"path\": "}}]}}]}`,
			`{"choices": [{"delta": {"tool_calls": [{"index": 0, "function": {"arguments": "\"a.py\"}"}}]}}]}`,
			`{"choices": [{"delta": {"tool_calls": [{"index": 1, "id": "call_2", "function": {"name": "finish", "arguments": "{}"}}]}}]}`,
			`{"choices": [{"delta": {}, "finish_reason": "tool_calls"}]}`,
		))
	}))

	ch, err := client.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "go"}}, nil)
	require.NoError(t, err)

	var calls []*ToolCallChunk
	for chunk := range ch {
		if tc, ok := chunk.(*ToolCallChunk); ok {
			calls = append(calls, tc)
		}
	}
	require.Len(t, calls, 2)
	assert.Equal(t, "call_1", calls[0].CallID)
	assert.Equal(t, "read_file", calls[0].Name)
	assert.JSONEq(t, `{"path": "a.py"}`, calls[0].Arguments)
	assert.Equal(t, "finish", calls[1].Name)
	assert.Equal(t, "{}", calls[1].Arguments)
}

func TestStreamChatMalformedChunkSkipped(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody(
			`{"choices": [{"delta": {"content": "keep"}}]}`,
			`{not valid json`,
			`{"choices": [{"delta": {"content": " going"}}]}`,
		))
	}))

	ch, err := client.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.NoError(t, err)

	var text string
	for chunk := range ch {
		if tc, ok := chunk.(*TextChunk); ok {
			text += tc.Content
		}
	}
	assert.Equal(t, "keep going", text)
}

func TestStreamChatConnectFailureIsError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))

	_, err := client.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
}

func TestChatHonorsContextCancellation(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := client.Chat(ctx, []Message{{Role: RoleUser, Content: "hi"}}, nil)
	require.Error(t, err)
}

func TestNoopClient(t *testing.T) {
	n := NewNoop()
	_, err := n.Chat(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = n.StreamChat(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Equal(t, "disabled", n.Model())
	assert.NoError(t, n.Close())
}
