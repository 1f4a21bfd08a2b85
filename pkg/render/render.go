// Package render turns a DocsIndex into markdown pages. Rendering is a pure
// function of the index: same index, byte-identical output.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/docbot-dev/docbot/pkg/models"
)

// Write renders the full documentation tree under docsDir: index.md at the
// top and one page per scope under scopes/.
func Write(idx *models.DocsIndex, docsDir string) error {
	scopesDir := filepath.Join(docsDir, "scopes")
	if err := os.MkdirAll(scopesDir, 0o755); err != nil {
		return fmt.Errorf("render: create docs dir: %w", err)
	}

	if err := writeFile(filepath.Join(docsDir, "index.md"), IndexPage(idx)); err != nil {
		return err
	}
	for i := range idx.Scopes {
		s := &idx.Scopes[i]
		page := ScopePage(s)
		if err := writeFile(filepath.Join(scopesDir, s.ScopeID+".md"), page); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("render: write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// IndexPage renders docs/index.md: repository overview, scope table,
// languages, dependency graph, global env vars and entrypoints.
func IndexPage(idx *models.DocsIndex) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Repository Documentation\n\n")
	fmt.Fprintf(&b, "Repository: `%s`\n\nGenerated: %s\n\n", idx.RepoPath, idx.GeneratedAt)

	if idx.CrossScopeAnalysis != "" {
		b.WriteString("## Architecture Notes\n\n")
		b.WriteString(strings.TrimSpace(idx.CrossScopeAnalysis))
		b.WriteString("\n\n")
	}

	b.WriteString("## Scopes\n\n")
	if len(idx.Scopes) == 0 {
		b.WriteString("No source files were found in this repository.\n\n")
	} else {
		b.WriteString("| Scope | Files | Summary |\n|---|---|---|\n")
		for i := range idx.Scopes {
			s := &idx.Scopes[i]
			summary := firstLine(s.Summary)
			if s.Failed() {
				summary = "⚠ " + s.Error
			}
			fmt.Fprintf(&b, "| [%s](scopes/%s.md) | %d | %s |\n",
				escapeCell(s.Title), s.ScopeID, len(s.Paths), escapeCell(summary))
		}
		b.WriteString("\n")
	}

	if len(idx.Languages) > 0 {
		fmt.Fprintf(&b, "## Languages\n\n%s\n\n", strings.Join(idx.Languages, ", "))
	}

	if graph := MermaidGraph(idx); graph != "" {
		fmt.Fprintf(&b, "## Scope Graph\n\n```mermaid\n%s```\n\n", graph)
	}

	if len(idx.Entrypoints) > 0 {
		b.WriteString("## Entrypoints\n\n")
		for _, ep := range idx.Entrypoints {
			fmt.Fprintf(&b, "- `%s`\n", ep)
		}
		b.WriteString("\n")
	}

	if len(idx.EnvVars) > 0 {
		b.WriteString("## Environment Variables\n\n| Name | Default | Referenced In |\n|---|---|---|\n")
		for _, ev := range idx.EnvVars {
			def := ev.Default
			if def == "" {
				def = "—"
			}
			fmt.Fprintf(&b, "| `%s` | %s | `%s` |\n", ev.Name, escapeCell(def), ev.Citation.File)
		}
		b.WriteString("\n")
	}

	if len(idx.Tours) > 0 {
		b.WriteString("## Suggested Tours\n\n")
		for _, tour := range idx.Tours {
			fmt.Fprintf(&b, "### %s\n\n%s\n\n", tour.Title, tour.Summary)
			for i, stop := range tour.Stops {
				fmt.Fprintf(&b, "%d. [%s](scopes/%s.md) — %s\n", i+1, stop.ScopeID, stop.ScopeID, stop.Reason)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// ScopePage renders one docs/scopes/<scope_id>.md page.
func ScopePage(s *models.ScopeResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.Title)

	if s.Failed() {
		fmt.Fprintf(&b, "> ⚠ Exploration failed: %s\n\n", s.Error)
	}
	if s.Summary != "" {
		b.WriteString(strings.TrimSpace(s.Summary))
		b.WriteString("\n\n")
	}

	if len(s.KeyFiles) > 0 {
		b.WriteString("## Key Files\n\n")
		for _, f := range s.KeyFiles {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
		b.WriteString("\n")
	}

	if len(s.Entrypoints) > 0 {
		b.WriteString("## Entrypoints\n\n")
		for _, ep := range s.Entrypoints {
			fmt.Fprintf(&b, "- `%s`\n", ep)
		}
		b.WriteString("\n")
	}

	if len(s.PublicAPI) > 0 {
		b.WriteString("## Public API\n\n| Symbol | Kind | Signature | Location |\n|---|---|---|---|\n")
		for _, sym := range s.PublicAPI {
			fmt.Fprintf(&b, "| `%s` | %s | `%s` | %s:%d |\n",
				sym.Name, sym.Kind, escapeCell(sym.Signature),
				sym.Citation.File, sym.Citation.LineStart)
		}
		b.WriteString("\n")
	}

	if len(s.EnvVars) > 0 {
		b.WriteString("## Environment Variables\n\n")
		for _, ev := range s.EnvVars {
			if ev.Default != "" {
				fmt.Fprintf(&b, "- `%s` (default `%s`) — %s:%d\n",
					ev.Name, ev.Default, ev.Citation.File, ev.Citation.LineStart)
			} else {
				fmt.Fprintf(&b, "- `%s` — %s:%d\n", ev.Name, ev.Citation.File, ev.Citation.LineStart)
			}
		}
		b.WriteString("\n")
	}

	if len(s.RaisedErrors) > 0 {
		b.WriteString("## Raised Errors\n\n")
		for _, re := range s.RaisedErrors {
			fmt.Fprintf(&b, "- `%s` — %s:%d\n", escapeCell(re.Expression),
				re.Citation.File, re.Citation.LineStart)
		}
		b.WriteString("\n")
	}

	if len(s.OpenQuestions) > 0 {
		b.WriteString("## Open Questions\n\n")
		for _, q := range s.OpenQuestions {
			fmt.Fprintf(&b, "- %s\n", q)
		}
		b.WriteString("\n")
	}

	if len(s.Citations) > 0 {
		b.WriteString("## Citations\n\n")
		for _, c := range s.Citations {
			if c.Symbol != "" {
				fmt.Fprintf(&b, "- %s:%d-%d (%s)\n", c.File, c.LineStart, c.LineEnd, c.Symbol)
			} else {
				fmt.Fprintf(&b, "- %s:%d-%d\n", c.File, c.LineStart, c.LineEnd)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// MermaidGraph renders the scope graph as mermaid `graph LR` source. Returns
// "" when the index has no scopes.
func MermaidGraph(idx *models.DocsIndex) string {
	if len(idx.Scopes) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("graph LR\n")
	for i := range idx.Scopes {
		s := &idx.Scopes[i]
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", s.ScopeID, strings.ReplaceAll(s.Title, `"`, "'"))
	}
	for _, e := range idx.ScopeEdges {
		fmt.Fprintf(&b, "    %s --> %s\n", e.From, e.To)
	}
	return b.String()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return s
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
