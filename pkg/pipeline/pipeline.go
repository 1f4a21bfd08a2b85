// Package pipeline coordinates one documentation run: scan the repository,
// partition it into scopes, explore every scope (deterministic extraction
// plus, in LLM mode, a recursive root agent), merge the results, render
// markdown, and persist the snapshot trail.
//
// Failure policy: a failed scope never aborts the run, it is recorded on
// the scope itself; a failed stage (scan, plan, reduce, render) aborts the
// run with a wrapped error.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/docbot-dev/docbot/pkg/agent"
	"github.com/docbot-dev/docbot/pkg/config"
	"github.com/docbot-dev/docbot/pkg/events"
	"github.com/docbot-dev/docbot/pkg/explore"
	"github.com/docbot-dev/docbot/pkg/extract"
	"github.com/docbot-dev/docbot/pkg/llm"
	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/notepad"
	"github.com/docbot-dev/docbot/pkg/plan"
	"github.com/docbot-dev/docbot/pkg/reduce"
	"github.com/docbot-dev/docbot/pkg/render"
	"github.com/docbot-dev/docbot/pkg/scan"
	"github.com/docbot-dev/docbot/pkg/state"
	"github.com/docbot-dev/docbot/pkg/tracker"
	"github.com/docbot-dev/docbot/pkg/vcs"
)

// Result is what one completed run hands back to the CLI.
type Result struct {
	RunID     string
	Index     *models.DocsIndex
	FileCount int
	Warnings  []string
}

// Pipeline runs documentation passes over one repository.
type Pipeline struct {
	repoRoot string
	cfg      *config.Config
	client   llm.Client
	store    *state.Store
	track    *tracker.Tracker
	bus      *events.Bus
	notes    *notepad.Notepad
	registry *extract.Registry
}

// New wires a pipeline. client may be nil or a noop client for
// deterministic runs; bus may be nil when nothing is listening.
func New(repoRoot string, cfg *config.Config, client llm.Client, bus *events.Bus) *Pipeline {
	return &Pipeline{
		repoRoot: repoRoot,
		cfg:      cfg,
		client:   client,
		store:    state.New(repoRoot),
		track:    tracker.New(),
		bus:      bus,
		notes:    notepad.New(events.NotepadSink{Bus: bus}),
		registry: extract.NewRegistry(),
	}
}

// Tracker exposes the run's tracker for live inspection (the serve surface).
func (p *Pipeline) Tracker() *tracker.Tracker { return p.track }

// Generate runs the full pipeline from scratch.
func (p *Pipeline) Generate(ctx context.Context) (*Result, error) {
	runID := models.NewRunID(time.Now())
	p.track.SetRunID(runID)
	result := &Result{RunID: runID}

	if err := p.store.EnsureLayout(); err != nil {
		return nil, err
	}

	var files []models.SourceFile
	err := p.stage(ctx, "scan", func() error {
		var err error
		files, err = scan.New(p.cfg.Ignore).Scan(p.repoRoot)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.FileCount = len(files)

	if len(files) == 0 {
		// An empty repository is a successful run over nothing.
		slog.Warn("No source files found, writing empty index", "repo", p.repoRoot)
		result.Warnings = append(result.Warnings, "no source files found")
		idx := reduce.Merge(p.repoRoot, nil, time.Now())
		result.Index = &idx
		if err := p.persist(result, nil, ""); err != nil {
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

	scopeResults, crossScope := p.exploreAll(ctx, plans, files, result)

	idx, err := p.reduceAndRender(ctx, scopeResults, crossScope)
	if err != nil {
		return nil, err
	}
	result.Index = idx

	commit := p.headCommit()
	if err := p.persist(result, plans, commit); err != nil {
		return nil, err
	}
	return result, nil
}

// exploreAll runs extraction for every scope under the run semaphore, with
// the root agent (LLM mode only) exploring the repository concurrently.
// Scope failures are recorded in the results, never returned.
func (p *Pipeline) exploreAll(ctx context.Context, plans []models.ScopePlan,
	files []models.SourceFile, result *Result) ([]models.ScopeResult, string) {

	explorer := explore.New(p.registry, p.enrichmentClient())
	sem := semaphore.NewWeighted(int64(p.cfg.Concurrency))

	stageID := "stage-extract"
	p.track.AddNode(stageID, "", "extract", tracker.TypeStage)
	p.track.SetState(stageID, tracker.StateRunning)
	p.bus.Publish(events.Event{Type: events.TypeStageStarted, AgentID: stageID, Detail: "extract"})

	results := make([]models.ScopeResult, len(plans))
	var group errgroup.Group

	var crossScope string
	if p.llmEnabled() {
		group.Go(func() error {
			crossScope = p.runRootAgent(ctx, files, result)
			return nil
		})
	}

	for i := range plans {
		group.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = models.ScopeResult{ScopePlan: plans[i], Error: "Cancelled before exploration"}
				return nil
			}
			defer sem.Release(1)
			results[i] = p.exploreScope(ctx, explorer, plans[i])
			return nil
		})
	}
	group.Wait()

	p.track.SetState(stageID, tracker.StateDone)
	p.bus.Publish(events.Event{Type: events.TypeStageFinished, AgentID: stageID, Detail: "extract"})
	return results, crossScope
}

// exploreScope runs one scope under its own deadline and tracker node.
func (p *Pipeline) exploreScope(ctx context.Context, explorer *explore.Explorer,
	scopePlan models.ScopePlan) models.ScopeResult {

	nodeID := "scope-" + scopePlan.ScopeID
	p.track.AddNode(nodeID, "stage-extract", scopePlan.Title, tracker.TypeScope)
	p.track.SetState(nodeID, tracker.StateRunning)

	scopeCtx, cancel := context.WithTimeout(ctx, p.cfg.ScopeTimeout())
	defer cancel()

	result := explorer.Explore(scopeCtx, scopePlan, p.repoRoot)
	if errors.Is(scopeCtx.Err(), context.DeadlineExceeded) {
		result.Error = fmt.Sprintf("Timed out after %gs", p.cfg.Timeout)
	}

	if result.Failed() {
		p.track.SetState(nodeID, tracker.StateError)
		slog.Warn("Scope exploration failed", "scope", scopePlan.ScopeID, "error", result.Error)
	} else {
		p.track.SetState(nodeID, tracker.StateDone)
	}
	p.bus.Publish(events.Event{
		Type: events.TypeScopeDone, AgentID: nodeID,
		Scope: scopePlan.ScopeID, Detail: result.Error,
	})
	return result
}

// runRootAgent explores the repository with the recursive agent engine. Its
// summary becomes the index's cross-scope analysis; failure is a warning,
// not a run failure.
func (p *Pipeline) runRootAgent(ctx context.Context, files []models.SourceFile, result *Result) string {
	tools, err := agent.NewToolkit(p.repoRoot, p.notes)
	if err != nil {
		result.Warnings = append(result.Warnings, "agent exploration skipped: "+err.Error())
		return ""
	}

	engine := agent.New(p.client, tools, p.notes, p.track, p.bus, files, agent.Options{
		MaxSteps:    p.cfg.AgentMaxSteps,
		MaxDepth:    p.cfg.AgentMaxDepth,
		MaxParallel: p.cfg.AgentMaxParallel,
	})
	summary, err := engine.Run(ctx, agent.Spec{
		ID:      "agent-root",
		Name:    "repository",
		Type:    tracker.TypeRoot,
		Purpose: "Explore the repository and document its architecture, major components, and how they interact.",
	})
	if err != nil {
		slog.Warn("Root agent failed", "error", err)
		result.Warnings = append(result.Warnings, "root agent failed: "+err.Error())
	}
	return summary
}

// reduceAndRender runs the two closing deterministic stages.
func (p *Pipeline) reduceAndRender(ctx context.Context, scopeResults []models.ScopeResult,
	crossScope string) (*models.DocsIndex, error) {

	var idx models.DocsIndex
	err := p.stage(ctx, "reduce", func() error {
		idx = reduce.Merge(p.repoRoot, scopeResults, time.Now())
		idx.CrossScopeAnalysis = crossScope
		idx.MermaidGraph = render.MermaidGraph(&idx)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = p.stage(ctx, "render", func() error {
		return render.Write(&idx, p.store.DocsDir())
	})
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

// persist writes the index, snapshot, state and event log, then prunes
// history to the retention limit.
func (p *Pipeline) persist(result *Result, plans []models.ScopePlan, commit string) error {
	if err := p.store.SaveIndex(result.Index); err != nil {
		return err
	}

	snap, err := p.store.BuildSnapshot(result.RunID, result.Index, result.FileCount, commit)
	if err != nil {
		return err
	}
	if err := p.store.SaveSnapshot(snap, result.Index.Scopes); err != nil {
		return err
	}
	if err := p.store.WriteRunArtifact(result.RunID, "pipeline_events.json", p.track.ExportEvents()); err != nil {
		return err
	}

	st := &models.ProjectState{
		LastCommit:   commit,
		LastRunID:    result.RunID,
		LastRunAt:    time.Now().UTC().Format(time.RFC3339),
		ScopeFileMap: scopeFileMap(plans),
	}
	if err := p.store.SaveState(st); err != nil {
		return err
	}

	if _, err := p.store.PruneSnapshots(p.cfg.MaxSnapshots); err != nil {
		return err
	}
	return nil
}

// stage runs one deterministic stage with tracker and bus instrumentation.
// A stage error aborts the run.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("pipeline: %s stage: %w", name, err)
	}

	id := "stage-" + name
	p.track.AddNode(id, "", name, tracker.TypeStage)
	p.track.SetState(id, tracker.StateRunning)
	p.bus.Publish(events.Event{Type: events.TypeStageStarted, AgentID: id, Detail: name})

	if err := fn(); err != nil {
		p.track.SetState(id, tracker.StateError)
		p.bus.Publish(events.Event{Type: events.TypeStageFinished, AgentID: id, Detail: name + ": " + err.Error()})
		return fmt.Errorf("pipeline: %s stage: %w", name, err)
	}

	p.track.SetState(id, tracker.StateDone)
	p.bus.Publish(events.Event{Type: events.TypeStageFinished, AgentID: id, Detail: name})
	return nil
}

func (p *Pipeline) llmEnabled() bool {
	if p.client == nil || p.cfg.NoLLM {
		return false
	}
	_, disabled := p.client.(*llm.NoopClient)
	return !disabled
}

// enrichmentClient returns the client the explorer should use, or nil when
// LLM calls are off.
func (p *Pipeline) enrichmentClient() llm.Client {
	if !p.llmEnabled() {
		return nil
	}
	return p.client
}

func (p *Pipeline) headCommit() string {
	commit, err := vcs.Head(p.repoRoot)
	if err != nil {
		if !errors.Is(err, vcs.ErrNotARepository) {
			slog.Debug("Could not resolve HEAD", "error", err)
		}
		return ""
	}
	return commit
}

func scopeFileMap(plans []models.ScopePlan) map[string][]string {
	m := make(map[string][]string, len(plans))
	for _, scopePlan := range plans {
		files := append([]string(nil), scopePlan.Paths...)
		sort.Strings(files)
		m[scopePlan.ScopeID] = files
	}
	return m
}
