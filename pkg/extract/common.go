package extract

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/docbot-dev/docbot/pkg/models"
)

const (
	// maxFileBytes bounds how much of a single file an extractor reads.
	// Anything beyond is ignored rather than failing the file.
	maxFileBytes = 2 << 20

	maxLineBytes    = 512 * 1024
	maxSnippetChars = 160
)

var envNamePattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// readLines reads a source file into lines, capped at maxFileBytes.
func readLines(absPath string) ([]string, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var lines []string
	scanner := bufio.NewScanner(io.LimitReader(f, maxFileBytes))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		// A torn final line from the byte cap is fine; real read errors are not.
		if len(lines) == 0 {
			return nil, fmt.Errorf("read source file: %w", err)
		}
	}
	return lines, nil
}

func cite(relPath string, line int, symbol, snippet string) models.Citation {
	return models.Citation{
		File:      relPath,
		LineStart: line,
		LineEnd:   line,
		Symbol:    symbol,
		Snippet:   clip(snippet),
	}
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxSnippetChars {
		return s
	}
	return s[:maxSnippetChars] + "..."
}

func validEnvName(name string) bool { return envNamePattern.MatchString(name) }

// builder accumulates extraction results with per-file dedupe on imports and
// env var names.
type builder struct {
	rel     string
	out     models.FileExtraction
	seenImp map[string]bool
	seenEnv map[string]bool
	seenSym map[string]bool
}

func newBuilder(relPath string) *builder {
	return &builder{
		rel:     relPath,
		seenImp: map[string]bool{},
		seenEnv: map[string]bool{},
		seenSym: map[string]bool{},
	}
}

func (b *builder) symbol(name, kind, signature, doc string, line int) {
	key := kind + ":" + name
	if name == "" || b.seenSym[key] {
		return
	}
	b.seenSym[key] = true
	b.out.Symbols = append(b.out.Symbols, models.PublicSymbol{
		Name:         name,
		Kind:         kind,
		Signature:    clip(signature),
		DocFirstLine: clip(doc),
		Citation:     cite(b.rel, line, name, signature),
	})
}

func (b *builder) importPath(path string) {
	path = strings.TrimSpace(path)
	if path == "" || b.seenImp[path] {
		return
	}
	b.seenImp[path] = true
	b.out.Imports = append(b.out.Imports, path)
}

func (b *builder) envVar(name, def string, line int, snippet string) {
	if !validEnvName(name) || b.seenEnv[name] {
		return
	}
	b.seenEnv[name] = true
	b.out.EnvVars = append(b.out.EnvVars, models.EnvVar{
		Name:     name,
		Default:  def,
		Citation: cite(b.rel, line, name, snippet),
	})
}

func (b *builder) raised(expression string, line int) {
	b.out.RaisedErrors = append(b.out.RaisedErrors, models.RaisedError{
		Expression: clip(expression),
		Citation:   cite(b.rel, line, "", expression),
	})
}

func (b *builder) note(message string, line int) {
	b.out.Citations = append(b.out.Citations, cite(b.rel, line, "", message))
}

func (b *builder) build() *models.FileExtraction {
	return &b.out
}

// docAbove returns the comment line immediately above lines[idx], stripped of
// its marker, when it matches any of the given prefixes.
func docAbove(lines []string, idx int, prefixes ...string) string {
	if idx == 0 {
		return ""
	}
	prev := strings.TrimSpace(lines[idx-1])
	for _, p := range prefixes {
		if strings.HasPrefix(prev, p) {
			doc := strings.TrimPrefix(prev, p)
			doc = strings.TrimSuffix(strings.TrimSpace(doc), "*/")
			return strings.TrimSpace(doc)
		}
	}
	return ""
}

// indentOf counts leading spaces, with tabs worth four.
func indentOf(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
