package llm

import "context"

// NoopClient is the stand-in used when no API key is configured or the run
// was started with no_llm. Every call fails with ErrDisabled so callers can
// branch to their deterministic fallbacks.
type NoopClient struct{}

// NewNoop returns the disabled client.
func NewNoop() *NoopClient { return &NoopClient{} }

func (n *NoopClient) Chat(context.Context, []Message, *Options) (string, error) {
	return "", ErrDisabled
}

func (n *NoopClient) StreamChat(context.Context, []Message, *Options) (<-chan Chunk, error) {
	return nil, ErrDisabled
}

func (n *NoopClient) Model() string { return "disabled" }

func (n *NoopClient) Close() error { return nil }
