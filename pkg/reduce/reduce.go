// Package reduce merges per-scope exploration results into the global
// documentation index. The merge is deterministic: scopes are sorted by id
// before merging, every global list is deduplicated and sorted, and the
// scope graph carries a content digest so unchanged runs can be detected
// cheaply.
package reduce

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/docbot-dev/docbot/pkg/models"
)

// Merge builds a DocsIndex from scope results. Results arrive in completion
// order; Merge sorts them by scope_id so the output is independent of
// scheduling. Failed scopes are kept (their error field travels into the
// index) but contribute nothing to the global aggregates.
func Merge(repoPath string, results []models.ScopeResult, now time.Time) models.DocsIndex {
	scopes := append([]models.ScopeResult(nil), results...)
	sort.Slice(scopes, func(i, j int) bool { return scopes[i].ScopeID < scopes[j].ScopeID })

	idx := models.DocsIndex{
		RepoPath:    repoPath,
		GeneratedAt: now.UTC().Format(time.RFC3339),
		Scopes:      scopes,
		EnvVars:     mergeEnvVars(scopes),
		PublicAPI:   mergePublicAPI(scopes),
		Entrypoints: mergeEntrypoints(scopes),
		Languages:   mergeLanguages(scopes),
	}
	idx.ScopeEdges = Edges(scopes)
	return idx
}

// mergeEnvVars dedupes by variable name; the first scope (in scope_id order)
// mentioning a variable supplies its citation and default.
func mergeEnvVars(scopes []models.ScopeResult) []models.EnvVar {
	seen := make(map[string]bool)
	var out []models.EnvVar
	for _, s := range scopes {
		if s.Failed() {
			continue
		}
		for _, ev := range s.EnvVars {
			if seen[ev.Name] {
				continue
			}
			seen[ev.Name] = true
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// mergePublicAPI dedupes by (name, file): the same symbol re-exported in two
// scopes appears once.
func mergePublicAPI(scopes []models.ScopeResult) []models.PublicSymbol {
	seen := make(map[string]bool)
	var out []models.PublicSymbol
	for _, s := range scopes {
		if s.Failed() {
			continue
		}
		for _, sym := range s.PublicAPI {
			key := sym.Name + "\x00" + sym.Citation.File
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, sym)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Citation.File < out[j].Citation.File
	})
	return out
}

func mergeEntrypoints(scopes []models.ScopeResult) []string {
	set := make(map[string]bool)
	for _, s := range scopes {
		if s.Failed() {
			continue
		}
		for _, ep := range s.Entrypoints {
			set[ep] = true
		}
	}
	return sortedKeys(set)
}

func mergeLanguages(scopes []models.ScopeResult) []string {
	set := make(map[string]bool)
	for _, s := range scopes {
		if s.Failed() {
			continue
		}
		for _, lang := range s.Languages {
			set[lang] = true
		}
	}
	return sortedKeys(set)
}

// Edges infers directed scope dependencies from recorded imports. A scope
// whose imports resolve to a file owned by another scope yields one from→to
// edge. No self-loops, no duplicates, both endpoints exist; output sorted by
// (from, to). Import strings that resolve to more than one owning scope are
// ambiguous and dropped rather than guessed at.
func Edges(scopes []models.ScopeResult) []models.ScopeEdge {
	owners := moduleOwners(scopes)

	seen := make(map[models.ScopeEdge]bool)
	var edges []models.ScopeEdge
	for _, s := range scopes {
		for _, imp := range s.Imports {
			to, ok := resolveImport(imp, owners)
			if !ok || to == s.ScopeID {
				continue
			}
			e := models.ScopeEdge{From: s.ScopeID, To: to}
			if seen[e] {
				continue
			}
			seen[e] = true
			edges = append(edges, e)
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// GraphDigest is a sha256 over the sorted "from->to" edge list. Two runs
// with the same scope graph share a digest regardless of anything else in
// the index.
func GraphDigest(edges []models.ScopeEdge) string {
	lines := make([]string, 0, len(edges))
	for _, e := range edges {
		lines = append(lines, e.From+"->"+e.To)
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:])
}

// ambiguous marks module tokens claimed by more than one scope.
const ambiguous = "\x00ambiguous"

// moduleOwners maps import-style tokens to the scope owning them. Each file
// contributes its extension-less path in slash and dot form, every directory
// prefix of that path, and its bare basename (so `import util` finds
// util.py).
func moduleOwners(scopes []models.ScopeResult) map[string]string {
	owners := make(map[string]string)
	claim := func(token, scopeID string) {
		if token == "" {
			return
		}
		if prev, ok := owners[token]; ok && prev != scopeID {
			owners[token] = ambiguous
			return
		}
		owners[token] = scopeID
	}

	for _, s := range scopes {
		for _, p := range s.Paths {
			stem := strings.TrimSuffix(p, path.Ext(p))
			claim(stem, s.ScopeID)
			claim(strings.ReplaceAll(stem, "/", "."), s.ScopeID)
			claim(path.Base(stem), s.ScopeID)
			for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
				claim(dir, s.ScopeID)
				claim(strings.ReplaceAll(dir, "/", "."), s.ScopeID)
			}
		}
	}
	return owners
}

// resolveImport tries the normalized import string, then progressively
// shorter prefixes, against the owner map.
func resolveImport(imp string, owners map[string]string) (string, bool) {
	imp = strings.TrimPrefix(imp, "./")
	imp = strings.TrimLeft(imp, ".")
	for imp != "" {
		if owner, ok := owners[imp]; ok {
			if owner == ambiguous {
				return "", false
			}
			return owner, true
		}
		cut := strings.LastIndexAny(imp, "./")
		if cut < 0 {
			return "", false
		}
		imp = imp[:cut]
	}
	return "", false
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
