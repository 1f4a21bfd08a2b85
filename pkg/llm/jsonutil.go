package llm

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/kaptinlin/jsonrepair"
)

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	bareJSONPattern   = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
)

// ExtractJSON pulls the first JSON object out of an LLM response. A fenced
// ```json block wins; otherwise the greedy outermost-brace span is taken.
// Returns "" when no object-shaped text is present.
func ExtractJSON(s string) string {
	if m := fencedJSONPattern.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return bareJSONPattern.FindString(s)
}

// DecodeLoose unmarshals LLM-produced JSON into v, tolerating the usual
// model mistakes: surrounding prose, markdown fences, trailing commas,
// comments, single quotes. Strict parse first, repair second.
func DecodeLoose(s string, v any) error {
	raw := ExtractJSON(s)
	if raw == "" {
		return fmt.Errorf("llm: no JSON object found in response")
	}
	if err := json.Unmarshal([]byte(raw), v); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return fmt.Errorf("llm: repair JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), v); err != nil {
		return fmt.Errorf("llm: decode repaired JSON: %w", err)
	}
	return nil
}

// RepairArguments normalizes a tool call's argument payload to valid JSON.
// Empty input yields "{}"; unrepairable input is returned as-is for the
// dispatcher to reject with a useful message.
func RepairArguments(args string) string {
	if args == "" {
		return "{}"
	}
	if json.Valid([]byte(args)) {
		return args
	}
	repaired, err := jsonrepair.JSONRepair(args)
	if err != nil {
		return args
	}
	return repaired
}
