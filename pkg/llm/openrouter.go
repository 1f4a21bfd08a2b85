package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/docbot-dev/docbot/pkg/version"
)

// DefaultBaseURL is the OpenRouter chat-completions endpoint prefix.
const DefaultBaseURL = "https://openrouter.ai/api/v1"

const (
	defaultMaxRetries  = 3
	backoffBase        = 500 * time.Millisecond
	maxResponseBytes   = 10 << 20 // 10 MiB cap on non-streaming bodies
	streamChunkBuffer  = 64
	scannerInitialSize = 64 * 1024
	scannerMaxSize     = 2 * 1024 * 1024
)

// OpenRouterConfig configures the HTTP client.
type OpenRouterConfig struct {
	APIKey         string
	Model          string
	BaseURL        string // empty = DefaultBaseURL
	MaxConcurrency int    // in-flight request bound, <=0 = 8
	MaxRetries     int    // retryable-error retries per call, <=0 = 3
}

// OpenRouterClient speaks the OpenAI-compatible chat-completions API.
// An internal weighted semaphore bounds in-flight requests; the slot is held
// until the response (or the whole stream) has been consumed.
type OpenRouterClient struct {
	apiKey     string
	model      string
	baseURL    string
	maxRetries int
	httpClient *http.Client
	sem        *semaphore.Weighted
}

// NewOpenRouter constructs the production client.
func NewOpenRouter(cfg OpenRouterConfig) *OpenRouterClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 8
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &OpenRouterClient{
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		maxRetries: maxRetries,
		// No client-level timeout: streams are long-lived and every request
		// carries a caller context with the real deadline.
		httpClient: &http.Client{},
		sem:        semaphore.NewWeighted(int64(maxConc)),
	}
}

// Model implements Client.
func (c *OpenRouterClient) Model() string { return c.model }

// Close implements Client.
func (c *OpenRouterClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Chat implements Client. Retryable failures are retried with exponential
// backoff and ±25% jitter up to MaxRetries times.
func (c *OpenRouterClient) Chat(ctx context.Context, messages []Message, opts *Options) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.sem.Release(1)

	body, err := c.buildBody(messages, opts, false)
	if err != nil {
		return "", err
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return "", err
			}
			slog.Debug("Retrying LLM request", "attempt", attempt, "model", c.model)
		}

		text, err := c.doChat(ctx, body)
		if err == nil {
			requestsTotal.WithLabelValues("ok").Inc()
			return text, nil
		}
		lastErr = err
		if !IsRetryable(err) || ctx.Err() != nil {
			break
		}
	}
	requestsTotal.WithLabelValues("error").Inc()
	return "", lastErr
}

func (c *OpenRouterClient) doChat(ctx context.Context, body []byte) (string, error) {
	resp, err := c.post(ctx, body)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", classifyTransport(fmt.Errorf("read response: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", classifyStatus(resp.StatusCode, string(raw))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &Error{Retryable: false, Message: fmt.Sprintf("decode response: %v", err), Err: err}
	}
	if parsed.Error != nil && parsed.Error.Message != "" {
		return "", classifyStatus(resp.StatusCode, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", &Error{Retryable: true, Message: "no choices in response"}
	}
	if parsed.Usage != nil {
		observeUsage(parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens)
	}
	return parsed.Choices[0].Message.Content, nil
}

// StreamChat implements Client. The connection attempt is retried like Chat;
// once the stream is open, mid-stream failures surface as an ErrorChunk and
// are never retried here.
func (c *OpenRouterClient) StreamChat(ctx context.Context, messages []Message, opts *Options) (<-chan Chunk, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	body, err := c.buildBody(messages, opts, true)
	if err != nil {
		c.sem.Release(1)
		return nil, err
	}

	var resp *http.Response
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				c.sem.Release(1)
				return nil, err
			}
		}
		resp, lastErr = c.openStream(ctx, body)
		if lastErr == nil {
			break
		}
		if !IsRetryable(lastErr) || ctx.Err() != nil {
			break
		}
	}
	if lastErr != nil {
		c.sem.Release(1)
		requestsTotal.WithLabelValues("error").Inc()
		return nil, lastErr
	}

	out := make(chan Chunk, streamChunkBuffer)
	go func() {
		defer c.sem.Release(1)
		defer close(out)
		defer func() { _ = resp.Body.Close() }()
		c.pumpStream(ctx, resp.Body, out)
	}()
	return out, nil
}

func (c *OpenRouterClient) openStream(ctx context.Context, body []byte) (*http.Response, error) {
	resp, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		_ = resp.Body.Close()
		return nil, classifyStatus(resp.StatusCode, string(raw))
	}
	return resp, nil
}

// pumpStream decodes the SSE body into typed chunks: data-prefixed lines,
// [DONE] sentinel, per-chunk tolerant JSON decode. Tool-call deltas
// accumulate by index and flush in order once the stream ends.
func (c *OpenRouterClient) pumpStream(ctx context.Context, body io.Reader, out chan<- Chunk) {
	requestsTotal.WithLabelValues("ok").Inc()

	type toolCallDelta struct {
		Index    int    `json:"index"`
		ID       string `json:"id"`
		Function struct {
			Name      string `json:"name"`
			Arguments string `json:"arguments"`
		} `json:"function"`
	}
	type streamChunk struct {
		Choices []struct {
			Delta struct {
				Content   string          `json:"content"`
				ToolCalls []toolCallDelta `json:"tool_calls"`
			} `json:"delta"`
			FinishReason *string `json:"finish_reason"`
		} `json:"choices"`
		Usage *struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	type accumulator struct {
		id   string
		name string
		args strings.Builder
	}

	accumulators := make(map[int]*accumulator)
	var order []int
	var usage *UsageChunk

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, scannerInitialSize), scannerMaxSize)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}
		if payload == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			slog.Debug("Skipping undecodable stream chunk", "error", err)
			continue
		}
		if chunk.Usage != nil {
			usage = &UsageChunk{
				InputTokens:  chunk.Usage.PromptTokens,
				OutputTokens: chunk.Usage.CompletionTokens,
				TotalTokens:  chunk.Usage.TotalTokens,
			}
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta
		if delta.Content != "" {
			select {
			case out <- &TextChunk{Content: delta.Content}:
			case <-ctx.Done():
				return
			}
		}
		for _, tc := range delta.ToolCalls {
			acc, ok := accumulators[tc.Index]
			if !ok {
				acc = &accumulator{}
				accumulators[tc.Index] = acc
				order = append(order, tc.Index)
			}
			if tc.ID != "" {
				acc.id = tc.ID
			}
			if tc.Function.Name != "" {
				acc.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				acc.args.WriteString(tc.Function.Arguments)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		select {
		case out <- &ErrorChunk{Message: fmt.Sprintf("read stream: %v", err), Retryable: true}:
		case <-ctx.Done():
		}
		return
	}

	for _, idx := range order {
		acc := accumulators[idx]
		chunk := &ToolCallChunk{
			CallID:    acc.id,
			Name:      acc.name,
			Arguments: RepairArguments(acc.args.String()),
		}
		select {
		case out <- chunk:
		case <-ctx.Done():
			return
		}
	}
	if usage != nil {
		observeUsage(usage.InputTokens, usage.OutputTokens)
		select {
		case out <- usage:
		case <-ctx.Done():
		}
	}
}

func (c *OpenRouterClient) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.Full())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	return resp, nil
}

func (c *OpenRouterClient) buildBody(messages []Message, opts *Options, stream bool) ([]byte, error) {
	if opts == nil {
		opts = &Options{}
	}
	payload := map[string]any{
		"model":    c.model,
		"messages": convertMessages(messages),
		"stream":   stream,
	}
	if opts.Temperature > 0 {
		payload["temperature"] = opts.Temperature
	}
	if opts.MaxTokens > 0 {
		payload["max_tokens"] = opts.MaxTokens
	}
	if len(opts.Tools) > 0 {
		payload["tools"] = convertTools(opts.Tools)
		payload["tool_choice"] = "auto"
	}
	if opts.JSONMode {
		payload["response_format"] = map[string]any{"type": "json_object"}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	return body, nil
}

func convertMessages(msgs []Message) []map[string]any {
	out := make([]map[string]any, 0, len(msgs))
	for _, m := range msgs {
		entry := map[string]any{"role": m.Role, "content": m.Content}
		if m.ToolCallID != "" {
			entry["tool_call_id"] = m.ToolCallID
			if m.ToolName != "" {
				entry["name"] = m.ToolName
			}
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]any, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				calls = append(calls, map[string]any{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]any{
						"name":      tc.Name,
						"arguments": tc.Arguments,
					},
				})
			}
			entry["tool_calls"] = calls
		}
		out = append(out, entry)
	}
	return out
}

func convertTools(tools []ToolDefinition) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		var schema any = map[string]any{"type": "object"}
		if t.ParametersSchema != "" {
			var parsed any
			if err := json.Unmarshal([]byte(t.ParametersSchema), &parsed); err == nil {
				schema = parsed
			}
		}
		out = append(out, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  schema,
			},
		})
	}
	return out
}

// sleepBackoff waits base*2^(attempt-1) with ±25% jitter, or returns early
// when ctx trips.
func sleepBackoff(ctx context.Context, attempt int) error {
	d := backoffBase * time.Duration(1<<(attempt-1))
	jitter := 0.75 + rand.Float64()*0.5
	d = time.Duration(float64(d) * jitter)
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
