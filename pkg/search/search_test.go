package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docbot-dev/docbot/pkg/models"
)

func testIndex() *Index {
	return Build(&models.DocsIndex{
		Scopes: []models.ScopeResult{
			{
				ScopePlan: models.ScopePlan{ScopeID: "core", Title: "Core Engine"},
				Summary:   "The scheduling engine. Workers pull jobs from the queue.",
				KeyFiles:  []string{"core/engine.py"},
				PublicAPI: []models.PublicSymbol{{Name: "schedule_job"}},
			},
			{
				ScopePlan: models.ScopePlan{ScopeID: "web", Title: "Web Handlers"},
				Summary:   "HTTP handlers serving the dashboard.",
				KeyFiles:  []string{"web/handlers.py"},
			},
			{
				ScopePlan: models.ScopePlan{ScopeID: "docs", Title: "Documentation"},
				Summary:   "Project documentation sources.",
			},
		},
	})
}

func TestTokenize(t *testing.T) {
	tokens := Tokenize("The Engine: pulls-jobs from a queue_v2! X")
	assert.Equal(t, []string{"engine", "pulls", "jobs", "queue", "v2"}, tokens)
}

func TestSearchRanksRelevantScopeFirst(t *testing.T) {
	hits := testIndex().Search("scheduling engine workers", 10)
	require.NotEmpty(t, hits)
	assert.Equal(t, "core", hits[0].ScopeID)
	assert.Positive(t, hits[0].Score)
}

func TestSearchMatchesSymbolNames(t *testing.T) {
	hits := testIndex().Search("schedule_job", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, "core", hits[0].ScopeID)
}

func TestSearchOmitsNonMatching(t *testing.T) {
	hits := testIndex().Search("dashboard", 10)
	require.Len(t, hits, 1)
	assert.Equal(t, "web", hits[0].ScopeID)
}

func TestSearchLimitAndEmptyQuery(t *testing.T) {
	idx := testIndex()
	assert.Empty(t, idx.Search("", 10))
	assert.Empty(t, idx.Search("the a of", 10), "stopword-only query matches nothing")

	hits := idx.Search("documentation handlers engine", 1)
	assert.Len(t, hits, 1)
}

func TestSearchEmptyIndex(t *testing.T) {
	empty := Build(&models.DocsIndex{})
	assert.Empty(t, empty.Search("anything", 5))
}
