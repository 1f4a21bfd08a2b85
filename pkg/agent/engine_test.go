package agent

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbot-dev/docbot/pkg/events"
	"github.com/docbot-dev/docbot/pkg/llm"
	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/notepad"
	"github.com/docbot-dev/docbot/pkg/tracker"
)

func testRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "core"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("import core\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "core", "engine.py"), []byte("def run():\n    pass\n"), 0o644))
	return root
}

func newTestEngine(t *testing.T, client llm.Client, opts Options, files []models.SourceFile) (*Engine, *tracker.Tracker, *events.Bus) {
	t.Helper()
	track := tracker.New()
	bus := events.NewBus(256)
	notes := notepad.New(events.NotepadSink{Bus: bus})
	tools, err := NewToolkit(testRepo(t), notes)
	require.NoError(t, err)
	return New(client, tools, notes, track, bus, files, opts), track, bus
}

func collectEvents(bus *events.Bus) (func() []events.Event, func()) {
	ch, cancel := bus.Subscribe(256)
	var mu sync.Mutex
	var got []events.Event
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ch {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		}
	}()
	return func() []events.Event {
			cancel()
			<-done
			mu.Lock()
			defer mu.Unlock()
			return got
		}, func() {
			cancel()
			<-done
		}
}

func TestEngineFinishReturnsSummary(t *testing.T) {
	client := newMockClient(
		scriptedResponse{text: "Looking around.", calls: []llm.ToolCall{
			{ID: "c1", Name: ToolListDirectory, Arguments: `{"path": "."}`},
		}},
		scriptedResponse{calls: []llm.ToolCall{finishCall("The repo is a small Python tool.")}},
	)
	engine, track, _ := newTestEngine(t, client, Options{MaxSteps: 5, MaxDepth: 0}, nil)

	summary, err := engine.Run(context.Background(), Spec{
		ID: "root-1", Type: tracker.TypeRoot, Purpose: "Document the repository.",
	})
	require.NoError(t, err)
	assert.Equal(t, "The repo is a small Python tool.", summary)

	snap := track.Snapshot()
	require.Contains(t, snap.Nodes, "root-1")
	assert.Equal(t, tracker.StateDone, snap.Nodes["root-1"].State)
	assert.Contains(t, snap.Nodes["root-1"].LLMText, "Looking around.")
}

func TestEngineParsesFencedToolCalls(t *testing.T) {
	client := newMockClient(
		scriptedResponse{text: "I will read the entrypoint.\n```json\n" +
			`{"tool": "read_file", "args": {"path": "main.py"}}` + "\n```"},
		scriptedResponse{calls: []llm.ToolCall{finishCall("done")}},
	)
	engine, track, _ := newTestEngine(t, client, Options{MaxSteps: 5, MaxDepth: 0}, nil)

	_, err := engine.Run(context.Background(), Spec{ID: "root-2", Type: tracker.TypeRoot, Purpose: "p"})
	require.NoError(t, err)

	node := track.Snapshot().Nodes["root-2"]
	require.NotEmpty(t, node.ToolCalls)
	assert.Equal(t, ToolReadFile, node.ToolCalls[0].Name)
	assert.Equal(t, "ok", node.ToolCalls[0].Status)
}

func TestEngineExhaustionRetriesExactlyOnce(t *testing.T) {
	// Never calls finish: every step lists the root directory.
	client := newMockClient(
		scriptedResponse{text: "still looking", calls: []llm.ToolCall{
			{ID: "c", Name: ToolListDirectory, Arguments: `{}`},
		}},
	)
	const maxSteps = 3
	engine, _, _ := newTestEngine(t, client, Options{MaxSteps: maxSteps, MaxDepth: 0}, nil)

	summary, err := engine.Run(context.Background(), Spec{ID: "root-3", Type: tracker.TypeRoot, Purpose: "p"})
	require.NoError(t, err)
	assert.Contains(t, summary, "max steps reached")
	assert.LessOrEqual(t, client.callCount.Load(), int64(maxSteps+1),
		"observed LLM calls must stay within max_steps + 1")
}

func TestEngineDelegationDepthBounded(t *testing.T) {
	var five []llm.ToolCall
	for _, target := range []string{"core", "core", "core", "core", "core"} {
		five = append(five, delegateCall("d"+target, target, "look at "+target))
	}
	client := newMockClient(
		scriptedResponse{calls: five},
		scriptedResponse{calls: []llm.ToolCall{finishCall("root done")}},
	)
	engine, track, bus := newTestEngine(t, client, Options{MaxSteps: 6, MaxDepth: 1, MaxParallel: 2}, nil)
	drain, _ := collectEvents(bus)

	summary, err := engine.Run(context.Background(), Spec{
		ID: "root-4", Type: tracker.TypeRoot, Purpose: "p", Depth: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, "root done", summary)

	for _, e := range drain() {
		if e.Type == events.TypeAgentSpawned {
			assert.Contains(t, []int{0, 1}, e.Depth, "no grandchildren at max_depth=1")
		}
	}

	// Parent finish happens-after all children: every child node is terminal.
	snap := track.Snapshot()
	for id, node := range snap.Nodes {
		if node.AgentType == tracker.TypeDelegate {
			assert.True(t, node.State.Terminal(), "child %s not terminal at parent finish", id)
		}
	}
}

func TestEngineDelegateRejectedAtCeiling(t *testing.T) {
	client := newMockClient(
		scriptedResponse{calls: []llm.ToolCall{delegateCall("d1", "core", "dig")}},
		scriptedResponse{calls: []llm.ToolCall{finishCall("done")}},
	)
	engine, track, _ := newTestEngine(t, client, Options{MaxSteps: 4, MaxDepth: 0}, nil)

	_, err := engine.Run(context.Background(), Spec{ID: "root-5", Type: tracker.TypeRoot, Purpose: "p"})
	require.NoError(t, err)

	node := track.Snapshot().Nodes["root-5"]
	require.NotEmpty(t, node.ToolCalls)
	assert.Equal(t, "error", node.ToolCalls[0].Status, "delegate at ceiling is an error result")
	assert.Len(t, track.Snapshot().Nodes, 1, "no child node may exist")
}

func TestEngineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := newMockClient(scriptedResponse{calls: []llm.ToolCall{finishCall("never")}})
	engine, track, _ := newTestEngine(t, client, Options{MaxSteps: 5}, nil)

	_, err := engine.Run(ctx, Spec{ID: "root-6", Type: tracker.TypeRoot, Purpose: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, tracker.StateError, track.Snapshot().Nodes["root-6"].State)
}

func TestEngineDeterministicPlanCoversBusiestDirs(t *testing.T) {
	files := []models.SourceFile{
		{Path: "core/a.py"}, {Path: "core/b.py"}, {Path: "core/c.py"},
		{Path: "web/a.py"}, {Path: "web/b.py"},
		{Path: "docs/a.py"},
		{Path: "tiny/a.py"},
	}
	client := newMockClient(scriptedResponse{calls: []llm.ToolCall{finishCall("done")}})
	engine, track, _ := newTestEngine(t, client, Options{MaxSteps: 4, MaxDepth: 1}, files)

	_, err := engine.Run(context.Background(), Spec{ID: "root-7", Type: tracker.TypeRoot, Purpose: "p"})
	require.NoError(t, err)

	var targets []string
	for _, node := range track.Snapshot().Nodes {
		if node.AgentType == tracker.TypeDelegate {
			targets = append(targets, node.Name)
		}
	}
	assert.ElementsMatch(t, []string{"core", "web", "docs"}, targets,
		"three busiest top-level directories are always explored")
}

func TestChildPoolBoundsConcurrency(t *testing.T) {
	pool := newChildPool(2)

	var mu sync.Mutex
	running, peak := 0, 0
	for i := 0; i < 5; i++ {
		pool.spawn(context.Background(), "c", "t", "p", func(context.Context) (string, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()

			time.Sleep(20 * time.Millisecond)

			mu.Lock()
			running--
			mu.Unlock()
			return "ok", nil
		})
	}

	results := pool.waitAll()
	assert.Len(t, results, 5)
	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2, "at most max_parallel children run concurrently")
}
