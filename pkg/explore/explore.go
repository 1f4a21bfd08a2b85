// Package explore turns one ScopePlan into a ScopeResult: it runs the
// registered extractor over every file in the scope, classifies key files and
// entrypoints, and synthesises a deterministic template summary that LLM
// enrichment may later replace. Identical inputs yield byte-identical output.
package explore

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docbot-dev/docbot/pkg/extract"
	"github.com/docbot-dev/docbot/pkg/llm"
	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/scan"
)

// entrypointBasenames mark files a reader would start a program from.
var entrypointBasenames = map[string]bool{
	"main.py":     true,
	"__main__.py": true,
	"app.py":      true,
	"cli.py":      true,
	"server.py":   true,
	"manage.py":   true,
	"main.go":     true,
	"index.js":    true,
	"index.ts":    true,
}

// keyFileBasenames mark files that define a package or its build.
var keyFileBasenames = map[string]bool{
	"__init__.py":    true,
	"setup.py":       true,
	"settings.py":    true,
	"pyproject.toml": true,
	"go.mod":         true,
	"package.json":   true,
	"Makefile":       true,
	"Dockerfile":     true,
}

// Explorer aggregates extractor output per scope. A nil client (or one that
// reports llm.ErrDisabled) leaves the deterministic template summary in place.
type Explorer struct {
	registry *extract.Registry
	client   llm.Client
}

// New creates an explorer over the given registry. client may be nil to
// disable enrichment.
func New(registry *extract.Registry, client llm.Client) *Explorer {
	return &Explorer{registry: registry, client: client}
}

// Explore runs extraction and optional enrichment for one scope. It never
// returns an error: failures land in the result (Error for a dead scope,
// synthetic citations for per-file trouble). ctx is checked between files.
func (e *Explorer) Explore(ctx context.Context, plan models.ScopePlan, repoRoot string) models.ScopeResult {
	result := models.ScopeResult{ScopePlan: plan}

	agg := newAggregator()
	for _, rel := range plan.Paths {
		if err := ctx.Err(); err != nil {
			result.Error = ctxError(ctx)
			return result
		}
		e.exploreFile(repoRoot, rel, agg)
	}

	agg.fill(&result)
	classifyFiles(&result)
	result.Summary = templateSummary(&result)

	if e.client != nil {
		// Zero-extraction scopes still get enrichment; the prompt says so.
		e.enrich(ctx, &result)
	}
	return result
}

func (e *Explorer) exploreFile(repoRoot, rel string, agg *aggregator) {
	abs := filepath.Join(repoRoot, filepath.FromSlash(rel))
	lang := scan.DetectLanguage(abs, rel)
	if lang == "" {
		return
	}
	agg.language(lang)

	extractor := e.registry.Get(lang)
	if extractor == nil {
		agg.citation(models.Citation{
			File:    rel,
			Snippet: fmt.Sprintf("No extractor registered for %s; file skipped.", lang),
		})
		return
	}

	fx, err := extractor.Extract(abs, rel, lang)
	if err != nil {
		agg.citation(models.Citation{
			File:    rel,
			Snippet: "Extraction failed: " + err.Error(),
		})
		return
	}
	agg.merge(fx)
}

// aggregator accumulates per-file extractions with scope-level dedupe.
type aggregator struct {
	symbols   []models.PublicSymbol
	envVars   []models.EnvVar
	raised    []models.RaisedError
	citations []models.Citation
	imports   map[string]bool
	languages map[string]bool
	seenEnv   map[string]bool
}

func newAggregator() *aggregator {
	return &aggregator{
		imports:   map[string]bool{},
		languages: map[string]bool{},
		seenEnv:   map[string]bool{},
	}
}

func (a *aggregator) language(lang string) { a.languages[lang] = true }

func (a *aggregator) citation(c models.Citation) { a.citations = append(a.citations, c) }

func (a *aggregator) merge(fx *models.FileExtraction) {
	a.symbols = append(a.symbols, fx.Symbols...)
	a.raised = append(a.raised, fx.RaisedErrors...)
	a.citations = append(a.citations, fx.Citations...)
	for _, imp := range fx.Imports {
		a.imports[imp] = true
	}
	for _, ev := range fx.EnvVars {
		if a.seenEnv[ev.Name] {
			continue
		}
		a.seenEnv[ev.Name] = true
		a.envVars = append(a.envVars, ev)
	}
}

func (a *aggregator) fill(result *models.ScopeResult) {
	result.PublicAPI = a.symbols
	result.EnvVars = a.envVars
	result.RaisedErrors = a.raised
	result.Citations = a.citations

	result.Imports = make([]string, 0, len(a.imports))
	for imp := range a.imports {
		result.Imports = append(result.Imports, imp)
	}
	sort.Strings(result.Imports)

	result.Languages = make([]string, 0, len(a.languages))
	for lang := range a.languages {
		result.Languages = append(result.Languages, lang)
	}
	sort.Strings(result.Languages)
}

// classifyFiles fills KeyFiles and Entrypoints from the basename tables.
// Both stay subsets of the plan's paths; config.* counts as a key file.
func classifyFiles(result *models.ScopeResult) {
	for _, rel := range result.Paths {
		base := filepath.Base(rel)
		if entrypointBasenames[base] {
			result.Entrypoints = append(result.Entrypoints, rel)
		}
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		if keyFileBasenames[base] || stem == "config" {
			result.KeyFiles = append(result.KeyFiles, rel)
		}
	}
}

// templateSummary is the deterministic fallback built purely from counts.
func templateSummary(result *models.ScopeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s covers %d file%s", result.Title, len(result.Paths), plural(len(result.Paths)))
	if len(result.Languages) > 0 {
		fmt.Fprintf(&b, " in %s", strings.Join(result.Languages, ", "))
	}
	b.WriteString(".")

	if n := len(result.PublicAPI); n > 0 {
		fmt.Fprintf(&b, " It exposes %d public symbol%s", n, plural(n))
		if len(result.Entrypoints) > 0 {
			fmt.Fprintf(&b, " and is entered via %s", strings.Join(result.Entrypoints, ", "))
		}
		b.WriteString(".")
	} else if len(result.Entrypoints) > 0 {
		fmt.Fprintf(&b, " It is entered via %s.", strings.Join(result.Entrypoints, ", "))
	}

	if n := len(result.EnvVars); n > 0 {
		fmt.Fprintf(&b, " It reads %d environment variable%s.", n, plural(n))
	}
	if n := len(result.Imports); n > 0 {
		fmt.Fprintf(&b, " %d distinct import%s observed.", n, plural(n))
	}
	return b.String()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func ctxError(ctx context.Context) string {
	if ctx.Err() == context.DeadlineExceeded {
		return "Timed out during extraction"
	}
	return "Cancelled during extraction"
}
