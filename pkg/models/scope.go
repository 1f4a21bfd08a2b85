package models

// ScopePlan is the planner's description of one documentation scope.
// ScopeID is a lowercase slug matching [a-z0-9_]+; Paths is non-empty after
// planning.
type ScopePlan struct {
	ScopeID string   `json:"scope_id"`
	Title   string   `json:"title"`
	Paths   []string `json:"paths"`
	Notes   string   `json:"notes,omitempty"`
}

// ScopeResult is the explored form of a ScopePlan. Error is set exactly when
// the scope's stage failed; the remaining fields stay valid but may be empty.
type ScopeResult struct {
	ScopePlan

	Summary       string         `json:"summary"`
	KeyFiles      []string       `json:"key_files"`
	Entrypoints   []string       `json:"entrypoints"`
	PublicAPI     []PublicSymbol `json:"public_api"`
	EnvVars       []EnvVar       `json:"env_vars"`
	RaisedErrors  []RaisedError  `json:"raised_errors"`
	Imports       []string       `json:"imports"`
	Languages     []string       `json:"languages"`
	OpenQuestions []string       `json:"open_questions"`
	Citations     []Citation     `json:"citations,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// Failed reports whether the scope's exploration failed.
func (r *ScopeResult) Failed() bool {
	return r.Error != ""
}
