package e2e

import (
	"context"
	"sync"

	"github.com/docbot-dev/docbot/pkg/llm"
)

// LLMScriptEntry is one canned response of the scripted client.
type LLMScriptEntry struct {
	Text  string
	Calls []llm.ToolCall
}

// ScriptedLLMClient replays entries in order, repeating the last one once
// the script runs out so every concurrently running agent terminates.
// Safe for concurrent use.
//
// The script feeds StreamChat (the agent loop). Single-shot Chat requests
// (scope enrichment) get the fixed ChatResponse instead, so enrichment
// running concurrently with agents cannot shift the script cursor.
type ScriptedLLMClient struct {
	// ChatResponse is returned verbatim from every Chat call.
	ChatResponse string

	mu      sync.Mutex
	entries []LLMScriptEntry
	cursor  int
	calls   int
}

func NewScriptedLLMClient(entries ...LLMScriptEntry) *ScriptedLLMClient {
	return &ScriptedLLMClient{entries: entries}
}

// Add appends one entry to the script.
func (c *ScriptedLLMClient) Add(entry LLMScriptEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, entry)
}

// Calls reports how many LLM requests were made.
func (c *ScriptedLLMClient) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *ScriptedLLMClient) next() LLMScriptEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if len(c.entries) == 0 {
		return LLMScriptEntry{Text: "done"}
	}
	entry := c.entries[c.cursor]
	if c.cursor < len(c.entries)-1 {
		c.cursor++
	}
	return entry
}

func (c *ScriptedLLMClient) Chat(ctx context.Context, _ []llm.Message, _ *llm.Options) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.ChatResponse, nil
}

func (c *ScriptedLLMClient) StreamChat(ctx context.Context, _ []llm.Message, _ *llm.Options) (<-chan llm.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry := c.next()

	ch := make(chan llm.Chunk, len(entry.Calls)+2)
	if entry.Text != "" {
		ch <- &llm.TextChunk{Content: entry.Text}
	}
	for _, call := range entry.Calls {
		ch <- &llm.ToolCallChunk{CallID: call.ID, Name: call.Name, Arguments: call.Arguments}
	}
	close(ch)
	return ch, nil
}

func (c *ScriptedLLMClient) Model() string { return "scripted" }
func (c *ScriptedLLMClient) Close() error  { return nil }
