package explore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/docbot-dev/docbot/pkg/llm"
	"github.com/docbot-dev/docbot/pkg/models"
)

// enrichmentSchema validates the model's JSON before it replaces the
// deterministic summary. Anything failing validation falls back.
const enrichmentSchema = `{
	"type": "object",
	"required": ["summary"],
	"properties": {
		"summary": {"type": "string", "minLength": 1},
		"open_questions": {"type": "array", "items": {"type": "string"}}
	}
}`

var enrichmentSchemaLoader = gojsonschema.NewStringLoader(enrichmentSchema)

type enrichmentResponse struct {
	Summary       string   `json:"summary"`
	OpenQuestions []string `json:"open_questions"`
}

const enrichSystemPrompt = "You are a senior engineer writing documentation. " +
	"Given structured facts extracted from one area of a repository, reply with " +
	"a JSON object {\"summary\": string, \"open_questions\": [string]}. The " +
	"summary is 2-4 sentences describing what the area does and how it fits " +
	"the codebase. List genuinely unclear points as open questions. Reply with " +
	"JSON only."

// enrich replaces the template summary with an LLM-written one. Every failure
// path is non-fatal: the template stays and the cause lands in OpenQuestions
// or the log.
func (e *Explorer) enrich(ctx context.Context, result *models.ScopeResult) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: enrichSystemPrompt},
		{Role: llm.RoleUser, Content: enrichUserPrompt(result)},
	}

	raw, err := e.client.Chat(ctx, messages, &llm.Options{JSONMode: true})
	if err != nil {
		if errors.Is(err, llm.ErrDisabled) {
			return
		}
		slog.Warn("Scope enrichment failed, keeping template summary",
			"scope_id", result.ScopeID, "error", err)
		result.OpenQuestions = append(result.OpenQuestions,
			"LLM enrichment failed: "+err.Error())
		return
	}

	payload := llm.ExtractJSON(raw)
	validation, err := gojsonschema.Validate(enrichmentSchemaLoader, gojsonschema.NewStringLoader(payload))
	if err != nil || !validation.Valid() {
		slog.Warn("Scope enrichment returned invalid JSON, keeping template summary",
			"scope_id", result.ScopeID)
		result.OpenQuestions = append(result.OpenQuestions,
			"LLM enrichment returned an invalid response; deterministic summary kept.")
		return
	}

	var resp enrichmentResponse
	if err := llm.DecodeLoose(payload, &resp); err != nil || strings.TrimSpace(resp.Summary) == "" {
		result.OpenQuestions = append(result.OpenQuestions,
			"LLM enrichment returned an invalid response; deterministic summary kept.")
		return
	}

	result.Summary = strings.TrimSpace(resp.Summary)
	for _, q := range resp.OpenQuestions {
		if q = strings.TrimSpace(q); q != "" {
			result.OpenQuestions = append(result.OpenQuestions, q)
		}
	}
}

// enrichUserPrompt renders the extraction digest handed to the model.
func enrichUserPrompt(result *models.ScopeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scope: %s (%s)\n", result.Title, result.ScopeID)
	fmt.Fprintf(&b, "Files (%d):\n", len(result.Paths))
	for _, p := range limitStrings(result.Paths, 40) {
		fmt.Fprintf(&b, "  %s\n", p)
	}

	if len(result.PublicAPI) == 0 && len(result.EnvVars) == 0 && len(result.Imports) == 0 {
		b.WriteString("\nNo symbols, imports or environment variables were extracted; ")
		b.WriteString("describe the area from the file layout alone.\n")
	}

	if len(result.PublicAPI) > 0 {
		b.WriteString("\nPublic symbols:\n")
		for _, s := range result.PublicAPI[:min(len(result.PublicAPI), 60)] {
			fmt.Fprintf(&b, "  %s %s (%s:%d)", s.Kind, s.Name, s.Citation.File, s.Citation.LineStart)
			if s.DocFirstLine != "" {
				fmt.Fprintf(&b, " - %s", s.DocFirstLine)
			}
			b.WriteString("\n")
		}
	}
	if len(result.Entrypoints) > 0 {
		fmt.Fprintf(&b, "\nEntrypoints: %s\n", strings.Join(result.Entrypoints, ", "))
	}
	if len(result.EnvVars) > 0 {
		names := make([]string, 0, len(result.EnvVars))
		for _, ev := range result.EnvVars {
			names = append(names, ev.Name)
		}
		fmt.Fprintf(&b, "\nEnvironment variables: %s\n", strings.Join(names, ", "))
	}
	if len(result.Imports) > 0 {
		fmt.Fprintf(&b, "\nImports: %s\n", strings.Join(limitStrings(result.Imports, 60), ", "))
	}
	fmt.Fprintf(&b, "\nDeterministic summary for reference: %s\n", result.Summary)
	return b.String()
}

func limitStrings(in []string, n int) []string {
	if len(in) <= n {
		return in
	}
	out := append([]string(nil), in[:n]...)
	out = append(out, fmt.Sprintf("... and %d more", len(in)-n))
	return out
}
