package state

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/reduce"
)

// BuildSnapshot assembles the snapshot metadata for one completed run:
// sha256 of every rendered markdown file, the scope graph digest, and the
// headline stats.
func (s *Store) BuildSnapshot(runID string, idx *models.DocsIndex, fileCount int, commit string) (*models.DocSnapshot, error) {
	hashes, err := hashDocs(s.DocsDir())
	if err != nil {
		return nil, err
	}

	summaries := make(map[string]string, len(idx.Scopes))
	stats := models.SnapshotStats{
		EnvVars:     len(idx.EnvVars),
		Entrypoints: len(idx.Entrypoints),
	}
	for i := range idx.Scopes {
		scope := &idx.Scopes[i]
		summaries[scope.ScopeID] = scope.Summary
		stats.Symbols += len(scope.PublicAPI)
	}

	return &models.DocSnapshot{
		RunID:          runID,
		CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		RepoPath:       idx.RepoPath,
		Commit:         commit,
		ScopeCount:     len(idx.Scopes),
		FileCount:      fileCount,
		DocHashes:      hashes,
		GraphDigest:    reduce.GraphDigest(idx.ScopeEdges),
		ScopeSummaries: summaries,
		Edges:          idx.ScopeEdges,
		Stats:          stats,
	}, nil
}

// hashDocs maps each markdown file under docsDir (relative, POSIX
// separators) to its sha256 hex digest. A missing docs directory yields an
// empty map.
func hashDocs(docsDir string) (map[string]string, error) {
	hashes := make(map[string]string)
	err := filepath.WalkDir(docsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(docsDir, path)
		if err != nil {
			return err
		}
		sum := sha256.Sum256(data)
		hashes[filepath.ToSlash(rel)] = hex.EncodeToString(sum[:])
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("state: hash docs: %w", err)
	}
	return hashes, nil
}
