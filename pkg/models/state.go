package models

// ProjectState is the persisted inter-run state (.docbot/state.json).
// ScopeFileMap maps scope_id to the sorted list of files the scope covered;
// every file appears in at most one scope's list.
type ProjectState struct {
	LastCommit   string              `json:"last_commit,omitempty"`
	LastRunID    string              `json:"last_run_id,omitempty"`
	LastRunAt    string              `json:"last_run_at,omitempty"`
	ScopeFileMap map[string][]string `json:"scope_file_map"`
}

// ScopesForFiles returns the ids of scopes whose file sets intersect the
// given changed-file list.
func (s *ProjectState) ScopesForFiles(changed []string) []string {
	changedSet := make(map[string]struct{}, len(changed))
	for _, f := range changed {
		changedSet[f] = struct{}{}
	}
	var hit []string
	for scopeID, files := range s.ScopeFileMap {
		for _, f := range files {
			if _, ok := changedSet[f]; ok {
				hit = append(hit, scopeID)
				break
			}
		}
	}
	return hit
}

// SnapshotStats are the headline counts stored with a snapshot.
type SnapshotStats struct {
	Symbols     int `json:"symbols"`
	EnvVars     int `json:"env_vars"`
	Entrypoints int `json:"entrypoints"`
}

// DocSnapshot is the persisted metadata of one run
// (.docbot/history/<run_id>.json). DocHashes maps rendered doc paths to
// sha256 hex digests; GraphDigest hashes the sorted edge list.
type DocSnapshot struct {
	RunID          string            `json:"run_id"`
	CreatedAt      string            `json:"created_at"`
	RepoPath       string            `json:"repo_path"`
	Commit         string            `json:"commit,omitempty"`
	ScopeCount     int               `json:"scope_count"`
	FileCount      int               `json:"file_count"`
	DocHashes      map[string]string `json:"doc_hashes"`
	GraphDigest    string            `json:"graph_digest"`
	ScopeSummaries map[string]string `json:"scope_summaries"`
	Edges          []ScopeEdge       `json:"edges,omitempty"`
	Stats          SnapshotStats     `json:"stats"`
}

// Scope change kinds reported by ComputeDiff.
const (
	ChangeAdded    = "added"
	ChangeRemoved  = "removed"
	ChangeModified = "modified"
)

// ScopeModification describes how one scope changed between two snapshots.
type ScopeModification struct {
	ScopeID       string `json:"scope_id"`
	Change        string `json:"change"`
	SummaryBefore string `json:"summary_before,omitempty"`
	SummaryAfter  string `json:"summary_after,omitempty"`
}

// StatsDelta is the element-wise difference between two SnapshotStats.
type StatsDelta struct {
	Symbols     int `json:"symbols"`
	EnvVars     int `json:"env_vars"`
	Entrypoints int `json:"entrypoints"`
}

// DiffReport is the result of comparing two snapshots.
type DiffReport struct {
	FromRun      string              `json:"from_run"`
	ToRun        string              `json:"to_run"`
	Added        []string            `json:"added"`
	Removed      []string            `json:"removed"`
	Modified     []ScopeModification `json:"modified"`
	StatsDelta   StatsDelta          `json:"stats_delta"`
	GraphChanged bool                `json:"graph_changed"`
	SummaryDiffs map[string]string   `json:"summary_diffs,omitempty"`
}
