// Package scan walks a repository tree and produces the typed source-file
// list the planner partitions into scopes. Noise directories, gitignored
// paths, configured ignore globs, and vendored or binary files are excluded.
package scan

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/src-d/enry/v2"

	"github.com/docbot-dev/docbot/pkg/models"
)

// NoiseDirs are directory basenames never worth documenting.
var NoiseDirs = map[string]bool{
	".git":          true,
	"node_modules":  true,
	"__pycache__":   true,
	"venv":          true,
	".venv":         true,
	"dist":          true,
	"build":         true,
	"target":        true,
	".mypy_cache":   true,
	".pytest_cache": true,
	".docbot":       true,
}

// extLanguages is the fast-path extension table. Ambiguous or unlisted
// extensions fall through to content-based detection.
var extLanguages = map[string]string{
	".py":   "Python",
	".go":   "Go",
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".mjs":  "JavaScript",
	".cjs":  "JavaScript",
	".ts":   "TypeScript",
	".tsx":  "TypeScript",
	".rs":   "Rust",
	".java": "Java",
	".rb":   "Ruby",
	".sh":   "Shell",
	".bash": "Shell",
}

const headSampleBytes = 16 * 1024

// Scanner walks repositories. Zero value is usable; ignore globs come from
// config.
type Scanner struct {
	ignoreGlobs []string
}

// New returns a Scanner honouring the given ignore globs (doublestar
// syntax, matched against repo-relative POSIX paths).
func New(ignoreGlobs []string) *Scanner {
	return &Scanner{ignoreGlobs: ignoreGlobs}
}

// Scan walks repoRoot and returns the source files sorted by path. An empty
// result is not an error here; callers decide whether that is fatal.
func (s *Scanner) Scan(repoRoot string) ([]models.SourceFile, error) {
	root, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}

	matcher := loadGitignore(root)
	var files []models.SourceFile

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			slog.Debug("Skipping unreadable path", "path", path, "error", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if NoiseDirs[d.Name()] || s.ignored(rel, matcher, true) {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if s.ignored(rel, matcher, false) {
			return nil
		}

		lang := DetectLanguage(path, rel)
		if lang == "" {
			return nil
		}
		files = append(files, models.SourceFile{Path: rel, Language: lang})
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", repoRoot, walkErr)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

func (s *Scanner) ignored(rel string, matcher gitignore.Matcher, isDir bool) bool {
	for _, pattern := range s.ignoreGlobs {
		if ok, err := doublestar.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	if matcher != nil && matcher.Match(strings.Split(rel, "/"), isDir) {
		return true
	}
	return false
}

// DetectLanguage resolves a file's language: extension table first, then
// enry by name, then enry with a head sample. Vendored and binary files
// yield "". The explorer shares this table so scan and explore never
// disagree about a file's language.
func DetectLanguage(absPath, rel string) string {
	if enry.IsVendor(rel) {
		return ""
	}
	if lang, ok := extLanguages[strings.ToLower(filepath.Ext(rel))]; ok {
		return lang
	}

	base := filepath.Base(rel)
	if lang := enry.GetLanguage(base, nil); lang != "" {
		return programmingOnly(lang)
	}

	sample, err := readHead(absPath)
	if err != nil || len(sample) == 0 {
		return ""
	}
	if enry.IsBinary(sample) {
		return ""
	}
	return programmingOnly(enry.GetLanguage(base, sample))
}

// programmingOnly drops prose, markup and data languages (Text, Markdown,
// YAML, ...) that enry detects but no extractor or agent needs as source.
func programmingOnly(lang string) string {
	if lang == "" || enry.GetLanguageType(lang) != enry.Programming {
		return ""
	}
	return lang
}

func readHead(absPath string) ([]byte, error) {
	f, err := os.Open(absPath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	sample := make([]byte, headSampleBytes)
	n, err := io.ReadFull(f, sample)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return sample[:n], nil
}

// loadGitignore parses the repository's top-level .gitignore. A missing or
// unreadable file just means no extra exclusions.
func loadGitignore(root string) gitignore.Matcher {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	var patterns []gitignore.Pattern
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}
	if len(patterns) == 0 {
		return nil
	}
	return gitignore.NewMatcher(patterns)
}
