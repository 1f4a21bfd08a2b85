package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/tracker"
)

// Deterministic coverage plan: whatever the model chooses to delegate, the
// root always explores the busiest top-level directories, and on large repos
// those children explore their busiest subdirectories. Coverage must not
// depend on model flakiness.
const (
	plannedRootChildren  = 3
	plannedGrandchildren = 2
	grandchildFileFloor  = 80
)

// spawnPlanned enqueues the deterministic children for this agent, if any.
func (e *Engine) spawnPlanned(ctx context.Context, spec Spec, pool *childPool) {
	var targets []string
	switch {
	case spec.Depth == 0 && e.opts.MaxDepth >= 1:
		targets = busiestDirs(e.files, "", plannedRootChildren)
	case spec.fromPlan && spec.Depth == 1 && e.opts.MaxDepth >= 2 && len(e.files) >= grandchildFileFloor:
		targets = busiestDirs(e.files, spec.Target, plannedGrandchildren)
	default:
		return
	}

	for _, target := range targets {
		child := Spec{
			ID:       mintAgentID(),
			Name:     target,
			Type:     tracker.TypeDelegate,
			Purpose:  fmt.Sprintf("Document what lives under %s/ and how it is used.", target),
			Target:   target,
			ParentID: spec.ID,
			Depth:    spec.Depth + 1,
			fromPlan: true,
		}
		pool.spawn(ctx, child.ID, child.Target, child.Purpose, func(ctx context.Context) (string, error) {
			return e.Run(ctx, child)
		})
	}
}

// busiestDirs returns up to n immediate subdirectories of prefix (repo root
// when empty), ordered by descending file count then name.
func busiestDirs(files []models.SourceFile, prefix string, n int) []string {
	counts := map[string]int{}
	for _, f := range files {
		rel := f.Path
		if prefix != "" {
			if !strings.HasPrefix(rel, prefix+"/") {
				continue
			}
			rel = strings.TrimPrefix(rel, prefix+"/")
		}
		dir, _, found := strings.Cut(rel, "/")
		if !found {
			continue
		}
		counts[dir]++
	}

	dirs := make([]string, 0, len(counts))
	for dir := range counts {
		dirs = append(dirs, dir)
	}
	sort.Slice(dirs, func(i, j int) bool {
		if counts[dirs[i]] != counts[dirs[j]] {
			return counts[dirs[i]] > counts[dirs[j]]
		}
		return dirs[i] < dirs[j]
	})

	if len(dirs) > n {
		dirs = dirs[:n]
	}
	if prefix != "" {
		for i, dir := range dirs {
			dirs[i] = prefix + "/" + dir
		}
	}
	return dirs
}
