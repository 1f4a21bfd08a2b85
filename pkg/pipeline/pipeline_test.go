package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbot-dev/docbot/pkg/config"
	"github.com/docbot-dev/docbot/pkg/events"
	"github.com/docbot-dev/docbot/pkg/explore"
	"github.com/docbot-dev/docbot/pkg/extract"
	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/reduce"
	"github.com/docbot-dev/docbot/pkg/tracker"
)

func testConfig() *config.Config {
	return &config.Config{
		Model:             config.DefaultModel,
		Concurrency:       2,
		Timeout:           30,
		MaxScopes:         10,
		MaxSnapshots:      5,
		NoLLM:             true,
		AgentMaxDepth:     1,
		AgentMaxParallel:  2,
		LLMMaxConcurrency: 2,
		AgentMaxSteps:     5,
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestGenerateEmptyRepo(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"README.md": "# Hello\n"})

	p := New(root, testConfig(), nil, events.NewBus(64))
	result, err := p.Generate(context.Background())
	require.NoError(t, err)

	assert.Contains(t, result.Warnings, "no source files found")
	assert.Zero(t, result.FileCount)
	assert.Empty(t, result.Index.Scopes)

	// Empty index and docs are still written.
	_, err = os.Stat(filepath.Join(root, ".docbot", "docs_index.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, ".docbot", "docs", "index.md"))
	assert.NoError(t, err)
}

func TestGeneratePythonRepoNoLLM(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"main.py":     "import util\n\nif __name__ == '__main__':\n    print('hi')\n",
		"util.py":     "import os\n\ndef helper(x):\n    return x\n",
		"__init__.py": "",
	})

	p := New(root, testConfig(), nil, events.NewBus(64))
	result, err := p.Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.FileCount)
	require.Len(t, result.Index.Scopes, 1)

	scope := result.Index.Scopes[0]
	assert.Empty(t, scope.Error)
	assert.Contains(t, scope.Entrypoints, "main.py")
	assert.Contains(t, scope.KeyFiles, "__init__.py")
	assert.NotEmpty(t, scope.Summary)
	assert.Contains(t, scope.Imports, "util")
	assert.Contains(t, result.Index.Languages, "Python")

	// Scope pages rendered.
	_, err = os.Stat(filepath.Join(root, ".docbot", "docs", "scopes", scope.ScopeID+".md"))
	assert.NoError(t, err)

	// Stage nodes are all terminal.
	snap := p.Tracker().Snapshot()
	for _, name := range []string{"stage-scan", "stage-plan", "stage-extract", "stage-reduce", "stage-render"} {
		require.Contains(t, snap.Nodes, name)
		assert.Equal(t, tracker.StateDone, snap.Nodes[name].State, name)
	}
}

func TestGenerateIsDeterministicWithoutLLM(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"core/engine.py": "class Engine:\n    def run(self):\n        pass\n",
		"web/app.py":     "from core import engine\n",
	})

	first, err := New(root, testConfig(), nil, nil).Generate(context.Background())
	require.NoError(t, err)
	second, err := New(root, testConfig(), nil, nil).Generate(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(first.Index.Scopes), len(second.Index.Scopes))
	for i := range first.Index.Scopes {
		assert.Equal(t, first.Index.Scopes[i].Summary, second.Index.Scopes[i].Summary)
	}
	assert.Equal(t,
		reduce.GraphDigest(first.Index.ScopeEdges),
		reduce.GraphDigest(second.Index.ScopeEdges))
}

func TestExploreScopeTimeout(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"core/a.py": "x = 1\n"})

	cfg := testConfig()
	cfg.Timeout = 120
	p := New(root, cfg, nil, nil)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	explorer := explore.New(extract.NewRegistry(), nil)
	result := p.exploreScope(ctx, explorer, models.ScopePlan{
		ScopeID: "core", Title: "Core", Paths: []string{"core/a.py"},
	})

	require.True(t, result.Failed())
	assert.Equal(t, "Timed out after 120s", result.Error)

	node := p.Tracker().Snapshot().Nodes["scope-core"]
	assert.Equal(t, tracker.StateError, node.State)
}

func TestFailedScopeDoesNotAbortRun(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"good/a.py": "def ok():\n    pass\n",
	})

	p := New(root, testConfig(), nil, nil)
	result, err := p.Generate(context.Background())
	require.NoError(t, err)

	// Force a synthetic failure through the reducer path: the merged index
	// keeps failed scopes but excludes them from aggregates.
	failed := models.ScopeResult{
		ScopePlan: models.ScopePlan{ScopeID: "zzz", Title: "Broken", Paths: []string{"zzz/x.py"}},
		Error:     "Timed out after 30s",
	}
	idx := reduce.Merge(root, append(result.Index.Scopes, failed), time.Now())
	require.Len(t, idx.Scopes, 2)
	assert.True(t, idx.Scopes[1].Failed())
}

func TestUpdateWithoutStateFallsBack(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"main.py": "print('hi')\n"})

	p := New(root, testConfig(), nil, nil)
	result, err := p.Update(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "full regenerate")
	require.Len(t, result.Index.Scopes, 1)
}

func TestUpdateNoChangesPreservesScopesAndDigest(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"core/engine.py": "def run():\n    pass\n",
		"web/app.py":     "from core import engine\n",
	})
	commitAll(t, root, "initial")

	gen, err := New(root, testConfig(), nil, nil).Generate(context.Background())
	require.NoError(t, err)

	upd, err := New(root, testConfig(), nil, nil).Update(context.Background())
	require.NoError(t, err)
	assert.Empty(t, upd.Warnings)

	require.Equal(t, len(gen.Index.Scopes), len(upd.Index.Scopes))
	for i := range gen.Index.Scopes {
		assert.Equal(t, gen.Index.Scopes[i].ScopeID, upd.Index.Scopes[i].ScopeID)
		assert.Equal(t, gen.Index.Scopes[i].Summary, upd.Index.Scopes[i].Summary)
	}
	assert.Equal(t,
		reduce.GraphDigest(gen.Index.ScopeEdges),
		reduce.GraphDigest(upd.Index.ScopeEdges))
}

func TestUpdateReExploresChangedScope(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"core/engine.py": "def run():\n    pass\n",
		"web/app.py":     "from core import engine\n",
	})
	commitAll(t, root, "initial")

	_, err := New(root, testConfig(), nil, nil).Generate(context.Background())
	require.NoError(t, err)

	writeFiles(t, root, map[string]string{
		"web/app.py": "from core import engine\n\ndef serve():\n    pass\n",
	})
	commitAll(t, root, "add serve")

	upd, err := New(root, testConfig(), nil, nil).Update(context.Background())
	require.NoError(t, err)

	web := upd.Index.Scope("web")
	require.NotNil(t, web)
	found := false
	for _, sym := range web.PublicAPI {
		if sym.Name == "serve" {
			found = true
		}
	}
	assert.True(t, found, "re-explored scope picks up the new symbol")
}

func commitAll(t *testing.T, dir, msg string) {
	t.Helper()
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{})
	if err != nil {
		repo, err = git.PlainInit(dir, false)
		require.NoError(t, err)
	}
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(".")
	require.NoError(t, err)
	_, err = wt.Commit(msg, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
}
