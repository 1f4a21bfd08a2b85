package models

// ScopeEdge is a directed dependency between two scopes: From imports
// something that lives in To. Never a self-loop.
type ScopeEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// TourStop is one station of a guided tour.
type TourStop struct {
	ScopeID string `json:"scope_id"`
	Reason  string `json:"reason"`
}

// Tour is a suggested reading order through the documented scopes.
type Tour struct {
	Title   string     `json:"title"`
	Summary string     `json:"summary"`
	Stops   []TourStop `json:"stops"`
}

// DocsIndex is the merged documentation index for one run. GeneratedAt is
// ISO-8601 UTC. The global EnvVars/PublicAPI/Entrypoints are deduplicated
// across scopes; Languages is a sorted set.
type DocsIndex struct {
	RepoPath           string         `json:"repo_path"`
	GeneratedAt        string         `json:"generated_at"`
	Scopes             []ScopeResult  `json:"scopes"`
	EnvVars            []EnvVar       `json:"env_vars"`
	PublicAPI          []PublicSymbol `json:"public_api"`
	Entrypoints        []string       `json:"entrypoints"`
	ScopeEdges         []ScopeEdge    `json:"scope_edges"`
	Languages          []string       `json:"languages"`
	CrossScopeAnalysis string         `json:"cross_scope_analysis,omitempty"`
	MermaidGraph       string         `json:"mermaid_graph,omitempty"`
	Tours              []Tour         `json:"tours,omitempty"`
}

// Scope returns the scope with the given id, or nil.
func (idx *DocsIndex) Scope(id string) *ScopeResult {
	for i := range idx.Scopes {
		if idx.Scopes[i].ScopeID == id {
			return &idx.Scopes[i]
		}
	}
	return nil
}
