package agent

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/docbot-dev/docbot/pkg/llm"
)

// Text-form tool calls. Native structured calls always win; these patterns
// only run when the model emitted none. Tier two is a fenced JSON block,
// tier three an inline JSON object mentioning "tool".
var (
	fencedToolPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{[^`]*?[\"']tool[\"'][^`]*?\\})\\s*```")
	inlineToolPattern = regexp.MustCompile(`\{[^{}]*["']tool["']\s*:\s*["'][^"']+["'][^{}]*(?:\{[^{}]*\}[^{}]*)?\}`)
)

type textToolCall struct {
	Tool string          `json:"tool"`
	Args json.RawMessage `json:"args"`
}

// parseTextToolCalls extracts tool calls from plain response text with a
// deterministic fall-through: all fenced blocks first; inline objects only
// when no fenced block parsed. Returns nil when the text carries no calls.
func parseTextToolCalls(text string) []llm.ToolCall {
	if calls := matchToolCalls(fencedToolPattern.FindAllStringSubmatch(text, -1), 1); len(calls) > 0 {
		return calls
	}
	matches := inlineToolPattern.FindAllString(text, -1)
	grouped := make([][]string, 0, len(matches))
	for _, m := range matches {
		grouped = append(grouped, []string{m})
	}
	return matchToolCalls(grouped, 0)
}

func matchToolCalls(matches [][]string, idx int) []llm.ToolCall {
	var calls []llm.ToolCall
	for i, m := range matches {
		if idx >= len(m) {
			continue
		}
		var parsed textToolCall
		if err := llm.DecodeLoose(m[idx], &parsed); err != nil || parsed.Tool == "" {
			continue
		}
		args := "{}"
		if len(parsed.Args) > 0 {
			args = string(parsed.Args)
		}
		calls = append(calls, llm.ToolCall{
			ID:        textCallID(i),
			Name:      parsed.Tool,
			Arguments: args,
		})
	}
	return calls
}

func textCallID(i int) string {
	return fmt.Sprintf("text-%d", i)
}
