// Package plan partitions the scanned file list into documentation scopes.
// Scopes map to top-level directories (root-level files form the "root"
// scope); oversized directories split by second level, and the smallest
// scopes merge into "misc" when the cap is exceeded. Output is deterministic
// for a given file list.
package plan

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/docbot-dev/docbot/pkg/models"
)

// DefaultMaxScopes is the planner cap applied when the caller passes a
// non-positive limit.
const DefaultMaxScopes = 20

// splitThreshold is the file count above which a top-level directory is
// partitioned by its second-level directories.
const splitThreshold = 60

// RootScopeID collects files living directly under the repository root.
const RootScopeID = "root"

// MiscScopeID collects the smallest scopes merged away by the cap.
const MiscScopeID = "misc"

var nonSlugChars = regexp.MustCompile(`[^a-z0-9_]+`)

// Planner partitions file lists. The zero value applies DefaultMaxScopes.
type Planner struct {
	maxScopes int
}

// New returns a planner capped at maxScopes.
func New(maxScopes int) *Planner {
	if maxScopes < 1 {
		maxScopes = DefaultMaxScopes
	}
	return &Planner{maxScopes: maxScopes}
}

// Plan partitions files into at most maxScopes scopes. An empty file list is
// a planner error; callers treat it as fatal (the empty-repo path is decided
// upstream, before Plan is called).
func (p *Planner) Plan(files []models.SourceFile) ([]models.ScopePlan, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("plan: no source files to partition")
	}

	groups := groupFiles(files)

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	plans := make([]models.ScopePlan, 0, len(ids))
	for _, id := range ids {
		g := groups[id]
		sort.Strings(g.paths)
		plans = append(plans, models.ScopePlan{
			ScopeID: id,
			Title:   g.title,
			Paths:   g.paths,
			Notes:   g.notes,
		})
	}

	plans = p.capScopes(plans)
	return plans, nil
}

type group struct {
	title string
	notes string
	paths []string
}

// groupFiles buckets files by top-level directory, splitting directories
// above splitThreshold by their second-level directory.
func groupFiles(files []models.SourceFile) map[string]*group {
	byTop := make(map[string][]string)
	for _, f := range files {
		top, _, found := strings.Cut(f.Path, "/")
		if !found {
			byTop[RootScopeID] = append(byTop[RootScopeID], f.Path)
			continue
		}
		byTop[top] = append(byTop[top], f.Path)
	}

	groups := make(map[string]*group)
	add := func(dir, note string, paths []string) {
		id := uniqueSlug(groups, slugify(dir))
		groups[id] = &group{title: humanize(dir), notes: note, paths: paths}
	}

	for top, paths := range byTop {
		if top == RootScopeID {
			groups[RootScopeID] = &group{
				title: "Repository root",
				notes: "Files at the top level of the repository.",
				paths: paths,
			}
			continue
		}
		if len(paths) <= splitThreshold {
			add(top, "", paths)
			continue
		}

		bySecond := make(map[string][]string)
		for _, path := range paths {
			rest := strings.TrimPrefix(path, top+"/")
			second, _, found := strings.Cut(rest, "/")
			if !found {
				bySecond[""] = append(bySecond[""], path)
				continue
			}
			bySecond[second] = append(bySecond[second], path)
		}

		seconds := make([]string, 0, len(bySecond))
		for s := range bySecond {
			seconds = append(seconds, s)
		}
		sort.Strings(seconds)
		for _, s := range seconds {
			if s == "" {
				add(top, "Files directly under "+top+"/.", bySecond[s])
				continue
			}
			add(top+"/"+s, "", bySecond[s])
		}
	}
	return groups
}

// capScopes merges the smallest scopes into misc until the cap holds.
// Plans arrive sorted by scope_id and leave sorted by scope_id.
func (p *Planner) capScopes(plans []models.ScopePlan) []models.ScopePlan {
	if len(plans) <= p.maxScopes {
		return plans
	}

	// Keep the largest maxScopes-1 scopes; everything else merges.
	bySize := append([]models.ScopePlan(nil), plans...)
	sort.SliceStable(bySize, func(i, j int) bool {
		if len(bySize[i].Paths) != len(bySize[j].Paths) {
			return len(bySize[i].Paths) > len(bySize[j].Paths)
		}
		return bySize[i].ScopeID < bySize[j].ScopeID
	})

	keep := make(map[string]bool, p.maxScopes-1)
	for _, plan := range bySize[:p.maxScopes-1] {
		keep[plan.ScopeID] = true
	}

	var kept []models.ScopePlan
	misc := models.ScopePlan{
		ScopeID: MiscScopeID,
		Title:   "Miscellaneous",
		Notes:   "Smaller areas merged to respect the scope cap.",
	}
	for _, plan := range plans {
		if keep[plan.ScopeID] {
			kept = append(kept, plan)
			continue
		}
		misc.Paths = append(misc.Paths, plan.Paths...)
	}
	sort.Strings(misc.Paths)
	kept = append(kept, misc)

	sort.Slice(kept, func(i, j int) bool { return kept[i].ScopeID < kept[j].ScopeID })
	return kept
}

// slugify lowers a path into the [a-z0-9_]+ scope id contract.
func slugify(dir string) string {
	s := strings.ToLower(dir)
	s = nonSlugChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "scope"
	}
	return s
}

// uniqueSlug suffixes colliding slugs with _2, _3, ...
func uniqueSlug(existing map[string]*group, slug string) string {
	if _, taken := existing[slug]; !taken {
		return slug
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", slug, i)
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}

func humanize(dir string) string {
	parts := strings.FieldsFunc(dir, func(r rune) bool {
		return r == '/' || r == '_' || r == '-'
	})
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}
