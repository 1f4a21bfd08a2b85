package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbot-dev/docbot/pkg/events"
	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/state"
)

func seededServer(t *testing.T) (*Server, *events.Bus) {
	t.Helper()
	root := t.TempDir()
	store := state.New(root)
	require.NoError(t, store.EnsureLayout())

	idx := &models.DocsIndex{
		RepoPath:    root,
		GeneratedAt: "2026-08-25T12:00:00Z",
		Scopes: []models.ScopeResult{
			{
				ScopePlan: models.ScopePlan{ScopeID: "core", Title: "Core", Paths: []string{"core/a.py"}},
				Summary:   "The scheduling engine.",
			},
			{
				ScopePlan: models.ScopePlan{ScopeID: "web", Title: "Web", Paths: []string{"web/b.py"}},
				Summary:   "HTTP handlers.",
			},
		},
		ScopeEdges: []models.ScopeEdge{{From: "web", To: "core"}},
		Languages:  []string{"Python"},
	}
	require.NoError(t, store.SaveIndex(idx))

	bus := events.NewBus(64)
	srv, err := NewServer(root, bus, nil)
	require.NoError(t, err)
	return srv, bus
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	srv.Router().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := seededServer(t)
	w := get(t, srv, "/api/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestGetIndexAndScope(t *testing.T) {
	srv, _ := seededServer(t)

	w := get(t, srv, "/api/index")
	require.Equal(t, http.StatusOK, w.Code)
	var idx models.DocsIndex
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &idx))
	assert.Len(t, idx.Scopes, 2)

	w = get(t, srv, "/api/scopes/core")
	require.Equal(t, http.StatusOK, w.Code)
	var scope models.ScopeResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &scope))
	assert.Equal(t, "The scheduling engine.", scope.Summary)

	w = get(t, srv, "/api/scopes/nope")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNoIndexYet(t *testing.T) {
	srv, err := NewServer(t.TempDir(), nil, nil)
	require.NoError(t, err)

	for _, path := range []string{"/api/index", "/api/scopes/x", "/api/graph", "/api/search?q=x"} {
		w := get(t, srv, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestGetGraph(t *testing.T) {
	srv, _ := seededServer(t)

	w := get(t, srv, "/api/graph")
	require.Equal(t, http.StatusOK, w.Code)

	var payload graphPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Len(t, payload.Nodes, 2)
	assert.Equal(t, []models.ScopeEdge{{From: "web", To: "core"}}, payload.Edges)
	assert.Contains(t, payload.Mermaid, "graph LR")

	// Second request is served from the cache with identical content.
	w2 := get(t, srv, "/api/graph")
	assert.JSONEq(t, w.Body.String(), w2.Body.String())
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := seededServer(t)

	w := get(t, srv, "/api/search?q=scheduling+engine")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Results []struct {
			ScopeID string `json:"scope_id"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "core", resp.Results[0].ScopeID)

	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/search").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, srv, "/api/search?q=x&limit=0").Code)
}

func TestHistoryAndDiff(t *testing.T) {
	srv, _ := seededServer(t)

	first := &models.DocSnapshot{
		RunID:          models.NewRunID(time.Date(2026, 8, 25, 10, 0, 0, 0, time.UTC)),
		ScopeSummaries: map[string]string{"core": "v1"},
		GraphDigest:    "a",
	}
	second := &models.DocSnapshot{
		RunID:          models.NewRunID(time.Date(2026, 8, 25, 11, 0, 0, 0, time.UTC)),
		ScopeSummaries: map[string]string{"core": "v2"},
		GraphDigest:    "b",
	}
	require.NoError(t, srv.store.SaveSnapshot(first, nil))
	require.NoError(t, srv.store.SaveSnapshot(second, nil))

	w := get(t, srv, "/api/history")
	require.Equal(t, http.StatusOK, w.Code)
	var hist struct {
		Snapshots []models.DocSnapshot `json:"snapshots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hist))
	require.Len(t, hist.Snapshots, 2)
	assert.Equal(t, second.RunID, hist.Snapshots[0].RunID, "newest first")

	// Default diff compares the two newest snapshots.
	w = get(t, srv, "/api/diff")
	require.Equal(t, http.StatusOK, w.Code)
	var report models.DiffReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, first.RunID, report.FromRun)
	assert.Equal(t, second.RunID, report.ToRun)
	assert.True(t, report.GraphChanged)

	w = get(t, srv, "/api/diff?from=20200101T000000Z_aaaaaa&to="+second.RunID)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventStreamReplaysAndHeartbeats(t *testing.T) {
	srv, bus := seededServer(t)
	bus.Publish(events.Event{Type: events.TypeAgentSpawned, AgentID: "agent-root"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	srv.Router().ServeHTTP(w, req)

	body := w.Body.String()
	assert.Contains(t, body, "event: agent_spawned")
	assert.Contains(t, body, `"agent_id":"agent-root"`)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
}

func TestMetricsEndpoint(t *testing.T) {
	srv, bus := seededServer(t)
	bus.Publish(events.Event{Type: events.TypeToolStart, AgentID: "a", Tool: "read_file"})
	bus.Publish(events.Event{Type: events.TypeLLMToken, AgentID: "a", Delta: "x"})
	time.Sleep(20 * time.Millisecond)

	w := get(t, srv, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "docbot_tool_calls_total")
	assert.Contains(t, w.Body.String(), "docbot_bus_dropped_events")
}
