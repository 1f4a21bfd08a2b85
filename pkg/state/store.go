// Package state persists everything docbot keeps between runs under the
// repository's .docbot/ directory: user config, run state, the latest docs
// index, and the per-run snapshot history. Every write lands via a temp
// file in the destination directory followed by a rename, so a crashed run
// never leaves a half-written contract file behind.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/docbot-dev/docbot/pkg/config"
	"github.com/docbot-dev/docbot/pkg/models"
)

var (
	// ErrNoState is returned when state.json does not exist yet.
	ErrNoState = errors.New("state: no project state recorded")
	// ErrNoIndex is returned when docs_index.json does not exist yet.
	ErrNoIndex = errors.New("state: no documentation index recorded")
	// ErrSnapshotNotFound is returned for an unknown run id.
	ErrSnapshotNotFound = errors.New("state: snapshot not found")
)

const (
	stateFileName = "state.json"
	indexFileName = "docs_index.json"
	historyDir    = "history"
	docsDir       = "docs"
)

// Store is the filesystem-backed persistence layer rooted at one repository.
type Store struct {
	repoRoot string
}

func New(repoRoot string) *Store {
	return &Store{repoRoot: repoRoot}
}

// Dir returns the repository's .docbot directory.
func (s *Store) Dir() string {
	return filepath.Join(s.repoRoot, config.DocbotDir)
}

// DocsDir returns the rendered documentation directory.
func (s *Store) DocsDir() string {
	return filepath.Join(s.Dir(), docsDir)
}

// EnsureLayout creates the .docbot directory tree.
func (s *Store) EnsureLayout() error {
	for _, dir := range []string{s.Dir(), s.DocsDir(), filepath.Join(s.Dir(), historyDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("state: create %s: %w", dir, err)
		}
	}
	return nil
}

// LoadState reads state.json. Returns ErrNoState when absent.
func (s *Store) LoadState() (*models.ProjectState, error) {
	var st models.ProjectState
	if err := s.readJSON(filepath.Join(s.Dir(), stateFileName), &st); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		return nil, err
	}
	if st.ScopeFileMap == nil {
		st.ScopeFileMap = map[string][]string{}
	}
	return &st, nil
}

func (s *Store) SaveState(st *models.ProjectState) error {
	return s.writeJSON(filepath.Join(s.Dir(), stateFileName), st)
}

// LoadIndex reads docs_index.json. Returns ErrNoIndex when absent.
func (s *Store) LoadIndex() (*models.DocsIndex, error) {
	var idx models.DocsIndex
	if err := s.readJSON(filepath.Join(s.Dir(), indexFileName), &idx); err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoIndex
		}
		return nil, err
	}
	return &idx, nil
}

func (s *Store) SaveIndex(idx *models.DocsIndex) error {
	return s.writeJSON(filepath.Join(s.Dir(), indexFileName), idx)
}

// SaveSnapshot writes the snapshot metadata and one scope result file per
// scope under history/<run_id>/.
func (s *Store) SaveSnapshot(snap *models.DocSnapshot, scopes []models.ScopeResult) error {
	runDir := filepath.Join(s.Dir(), historyDir, snap.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("state: create snapshot dir: %w", err)
	}
	for i := range scopes {
		path := filepath.Join(runDir, scopes[i].ScopeID+".json")
		if err := s.writeJSON(path, &scopes[i]); err != nil {
			return err
		}
	}
	return s.writeJSON(filepath.Join(s.Dir(), historyDir, snap.RunID+".json"), snap)
}

// WriteRunArtifact persists an extra JSON artifact (for example the exported
// pipeline event log) inside the snapshot's directory.
func (s *Store) WriteRunArtifact(runID, name string, v any) error {
	runDir := filepath.Join(s.Dir(), historyDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("state: create snapshot dir: %w", err)
	}
	return s.writeJSON(filepath.Join(runDir, name), v)
}

// LoadSnapshot reads one snapshot's metadata.
func (s *Store) LoadSnapshot(runID string) (*models.DocSnapshot, error) {
	var snap models.DocSnapshot
	err := s.readJSON(filepath.Join(s.Dir(), historyDir, runID+".json"), &snap)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, runID)
		}
		return nil, err
	}
	return &snap, nil
}

// LoadSnapshotScopes reads the per-scope results stored with a snapshot,
// sorted by scope_id.
func (s *Store) LoadSnapshotScopes(runID string) ([]models.ScopeResult, error) {
	runDir := filepath.Join(s.Dir(), historyDir, runID)
	entries, err := os.ReadDir(runDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, runID)
		}
		return nil, fmt.Errorf("state: read snapshot dir: %w", err)
	}

	var scopes []models.ScopeResult
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || name == "pipeline_events.json" {
			continue
		}
		var scope models.ScopeResult
		if err := s.readJSON(filepath.Join(runDir, name), &scope); err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].ScopeID < scopes[j].ScopeID })
	return scopes, nil
}

// ListSnapshots returns all snapshot metadata, newest first by run
// timestamp (ties broken by run id, descending).
func (s *Store) ListSnapshots() ([]models.DocSnapshot, error) {
	dir := filepath.Join(s.Dir(), historyDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("state: read history: %w", err)
	}

	var snaps []models.DocSnapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		runID := strings.TrimSuffix(name, ".json")
		if !models.ValidRunID(runID) {
			continue
		}
		var snap models.DocSnapshot
		if err := s.readJSON(filepath.Join(dir, name), &snap); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		ti, tj := models.RunIDTime(snaps[i].RunID), models.RunIDTime(snaps[j].RunID)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return snaps[i].RunID > snaps[j].RunID
	})
	return snaps, nil
}

// PruneSnapshots removes the oldest snapshots beyond max, deleting the
// metadata file and the scope directory for each. Returns how many were
// removed.
func (s *Store) PruneSnapshots(max int) (int, error) {
	if max < 0 {
		max = 0
	}
	snaps, err := s.ListSnapshots()
	if err != nil {
		return 0, err
	}
	if len(snaps) <= max {
		return 0, nil
	}

	removed := 0
	for _, snap := range snaps[max:] {
		metaPath := filepath.Join(s.Dir(), historyDir, snap.RunID+".json")
		if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("state: prune %s: %w", snap.RunID, err)
		}
		runDir := filepath.Join(s.Dir(), historyDir, snap.RunID)
		if err := os.RemoveAll(runDir); err != nil {
			return removed, fmt.Errorf("state: prune %s: %w", snap.RunID, err)
		}
		removed++
	}
	return removed, nil
}

func (s *Store) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("state: decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// writeJSON writes v atomically: temp file in the destination directory,
// then rename.
func (s *Store) writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", filepath.Base(path), err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("state: temp file for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("state: write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state: close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("state: rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
