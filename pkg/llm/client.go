// Package llm defines the adapter between the core and a tool-calling LLM:
// a blocking chat call, a channel-based streaming call, bounded concurrency,
// and a retryable/terminal error classification that callers apply their own
// policy to.
package llm

import "context"

// Client is the transport-agnostic LLM interface used by the agent engine
// and the scope explorer.
type Client interface {
	// Chat sends a conversation and blocks for the full text answer.
	Chat(ctx context.Context, messages []Message, opts *Options) (string, error)

	// StreamChat sends a conversation and returns a stream of chunks. The
	// returned channel is closed when the stream completes; errors are
	// delivered as ErrorChunk values in the channel.
	StreamChat(ctx context.Context, messages []Message, opts *Options) (<-chan Chunk, error)

	// Model returns the model identifier requests are issued with.
	Model() string

	// Close releases transport resources.
	Close() error
}

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one conversation turn.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall // for assistant messages echoing prior calls
	ToolCallID string     // for tool result messages
	ToolName   string     // for tool result messages
}

// Options tune a single call. The zero value means plain text chat.
type Options struct {
	Tools       []ToolDefinition // nil = no tools
	JSONMode    bool             // request a JSON object response
	MaxTokens   int              // 0 = provider default
	Temperature float64
}

// ToolDefinition describes a tool available to the LLM.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema string // JSON Schema
}

// ToolCall represents an LLM's request to call a tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// Chunk is the interface for all streaming chunk types.
type Chunk interface {
	chunkType() ChunkType
}

// ChunkType identifies the kind of streaming chunk.
type ChunkType string

const (
	ChunkTypeText     ChunkType = "text"
	ChunkTypeToolCall ChunkType = "tool_call"
	ChunkTypeUsage    ChunkType = "usage"
	ChunkTypeError    ChunkType = "error"
)

// TextChunk is a fragment of the LLM's text response.
type TextChunk struct{ Content string }

// ToolCallChunk signals the LLM wants to call a tool. Emitted once per call
// with fully accumulated arguments.
type ToolCallChunk struct{ CallID, Name, Arguments string }

// UsageChunk reports token consumption for this call.
type UsageChunk struct{ InputTokens, OutputTokens, TotalTokens int }

// ErrorChunk signals an error from the provider mid-stream.
type ErrorChunk struct {
	Message   string
	Retryable bool
}

func (c *TextChunk) chunkType() ChunkType     { return ChunkTypeText }
func (c *ToolCallChunk) chunkType() ChunkType { return ChunkTypeToolCall }
func (c *UsageChunk) chunkType() ChunkType    { return ChunkTypeUsage }
func (c *ErrorChunk) chunkType() ChunkType    { return ChunkTypeError }
