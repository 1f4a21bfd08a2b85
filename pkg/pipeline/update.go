package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/docbot-dev/docbot/pkg/explore"
	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/plan"
	"github.com/docbot-dev/docbot/pkg/reduce"
	"github.com/docbot-dev/docbot/pkg/scan"
	"github.com/docbot-dev/docbot/pkg/state"
	"github.com/docbot-dev/docbot/pkg/vcs"
)

// Update runs an incremental pass: only scopes touched by commits since the
// last recorded run are re-explored; untouched scopes carry their previous
// results over unchanged. Falls back to Generate when there is no usable
// prior state or no git history to diff against.
func (p *Pipeline) Update(ctx context.Context) (*Result, error) {
	prior, reason := p.loadPrior()
	if prior == nil {
		slog.Warn("Incremental update not possible, regenerating", "reason", reason)
		result, err := p.Generate(ctx)
		if result != nil {
			result.Warnings = append(result.Warnings, "full regenerate: "+reason)
		}
		return result, err
	}

	changed, err := vcs.ChangedFiles(p.repoRoot, prior.state.LastCommit)
	if err != nil {
		slog.Warn("Cannot diff against last run, regenerating", "error", err)
		result, genErr := p.Generate(ctx)
		if result != nil {
			result.Warnings = append(result.Warnings, "full regenerate: "+err.Error())
		}
		return result, genErr
	}

	runID := models.NewRunID(time.Now())
	p.track.SetRunID(runID)
	result := &Result{RunID: runID}

	if err := p.store.EnsureLayout(); err != nil {
		return nil, err
	}

	var files []models.SourceFile
	err = p.stage(ctx, "scan", func() error {
		var err error
		files, err = scan.New(p.cfg.Ignore).Scan(p.repoRoot)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.FileCount = len(files)

	if len(files) == 0 {
		// The repo emptied out since the last run.
		idx := reduce.Merge(p.repoRoot, nil, time.Now())
		result.Index = &idx
		result.Warnings = append(result.Warnings, "no source files found")
		if err := p.persist(result, nil, p.headCommit()); err != nil {
			return nil, err
		}
		return result, nil
	}

	var plans []models.ScopePlan
	err = p.stage(ctx, "plan", func() error {
		var err error
		plans, err = plan.New(p.cfg.MaxScopes).Plan(files)
		return err
	})
	if err != nil {
		return nil, err
	}

	dirty := dirtyScopes(plans, prior, changed)
	slog.Info("Incremental update",
		"changed_files", len(changed), "dirty_scopes", len(dirty), "total_scopes", len(plans))

	explorer := explore.New(p.registry, p.enrichmentClient())
	scopeResults := make([]models.ScopeResult, len(plans))
	for i, scopePlan := range plans {
		if !dirty[scopePlan.ScopeID] {
			if prev := prior.index.Scope(scopePlan.ScopeID); prev != nil {
				scopeResults[i] = *prev
				continue
			}
		}
		scopeResults[i] = p.exploreScope(ctx, explorer, scopePlan)
	}

	idx, err := p.reduceAndRender(ctx, scopeResults, prior.index.CrossScopeAnalysis)
	if err != nil {
		return nil, err
	}
	result.Index = idx

	if err := p.persist(result, plans, p.headCommit()); err != nil {
		return nil, err
	}
	return result, nil
}

type priorRun struct {
	state *models.ProjectState
	index *models.DocsIndex
}

// loadPrior gathers everything an incremental run needs; a nil return with
// a reason means Update must fall back to Generate.
func (p *Pipeline) loadPrior() (*priorRun, string) {
	st, err := p.store.LoadState()
	if err != nil {
		if errors.Is(err, state.ErrNoState) {
			return nil, "no previous run recorded"
		}
		return nil, err.Error()
	}
	if st.LastCommit == "" {
		return nil, "previous run had no commit recorded"
	}

	idx, err := p.store.LoadIndex()
	if err != nil {
		return nil, "no previous index: " + err.Error()
	}

	if _, err := vcs.Head(p.repoRoot); err != nil {
		if errors.Is(err, vcs.ErrNotARepository) {
			return nil, "not a git repository"
		}
		return nil, err.Error()
	}
	return &priorRun{state: st, index: idx}, ""
}

// dirtyScopes marks the scopes that must be re-explored: any scope whose
// file set intersects the changed files, any scope new to this plan, and
// any scope whose file list no longer matches the previous run.
func dirtyScopes(plans []models.ScopePlan, prior *priorRun, changed []string) map[string]bool {
	dirty := make(map[string]bool)
	for _, id := range prior.state.ScopesForFiles(changed) {
		dirty[id] = true
	}

	changedSet := make(map[string]bool, len(changed))
	for _, f := range changed {
		changedSet[f] = true
	}

	for _, scopePlan := range plans {
		prev, existed := prior.state.ScopeFileMap[scopePlan.ScopeID]
		if !existed || !sameFiles(scopePlan.Paths, prev) {
			dirty[scopePlan.ScopeID] = true
			continue
		}
		for _, f := range scopePlan.Paths {
			if changedSet[f] {
				dirty[scopePlan.ScopeID] = true
				break
			}
		}
	}
	return dirty
}

// sameFiles compares two path lists ignoring order.
func sameFiles(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, f := range a {
		set[f] = true
	}
	for _, f := range b {
		if !set[f] {
			return false
		}
	}
	return true
}

