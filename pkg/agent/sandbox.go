package agent

import (
	"fmt"
	"path/filepath"
	"strings"
)

// sandbox confines every tool path to the repository root. Paths are
// repo-relative as far as the LLM is concerned; resolution happens here.
type sandbox struct {
	root string // absolute, symlink-resolved
}

func newSandbox(repoRoot string) (*sandbox, error) {
	abs, err := filepath.Abs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve repo root: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	return &sandbox{root: abs}, nil
}

// escapeError is the exact tool-result string for a rejected path. Consumers
// match its prefix and suffix, so the wording is a contract.
func escapeError(path string) string {
	return fmt.Sprintf("Error: path %q resolves outside the repository.", path)
}

// resolve maps a repo-relative path to an absolute one, rejecting escapes.
// The boolean reports success; on failure the string is the error result for
// the LLM.
func (s *sandbox) resolve(path string) (string, string, bool) {
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if filepath.IsAbs(cleaned) {
		// Absolute paths are allowed only when already inside the root.
		if !s.within(cleaned) {
			return "", escapeError(path), false
		}
		return s.resolveSymlinks(path, cleaned)
	}

	abs := filepath.Join(s.root, cleaned)
	if !s.within(abs) {
		return "", escapeError(path), false
	}
	return s.resolveSymlinks(path, abs)
}

// resolveSymlinks re-checks containment after following links, so a symlink
// pointing outside the repository cannot smuggle reads.
func (s *sandbox) resolveSymlinks(original, abs string) (string, string, bool) {
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		// Nonexistent paths resolve as-is; the tool reports the read error.
		return abs, "", true
	}
	if !s.within(resolved) {
		return "", escapeError(original), false
	}
	return resolved, "", true
}

func (s *sandbox) within(abs string) bool {
	if abs == s.root {
		return true
	}
	return strings.HasPrefix(abs, s.root+string(filepath.Separator))
}

// rel converts an absolute path back to repo-relative POSIX form.
func (s *sandbox) rel(abs string) string {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(rel)
}
