package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/render"
	"github.com/docbot-dev/docbot/pkg/search"
	"github.com/docbot-dev/docbot/pkg/state"
	"github.com/docbot-dev/docbot/pkg/version"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": version.Full(),
	})
}

func (s *Server) getIndex(c *gin.Context) {
	idx, _, err := s.latest()
	if err != nil {
		noIndex(c, err)
		return
	}
	c.JSON(http.StatusOK, idx)
}

func (s *Server) getScope(c *gin.Context) {
	idx, _, err := s.latest()
	if err != nil {
		noIndex(c, err)
		return
	}
	scope := idx.Scope(c.Param("id"))
	if scope == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "scope not found"})
		return
	}
	c.JSON(http.StatusOK, scope)
}

// graphPayload is the /api/graph response, cached per index.
type graphPayload struct {
	Nodes   []graphNode        `json:"nodes"`
	Edges   []models.ScopeEdge `json:"edges"`
	Mermaid string             `json:"mermaid"`
}

type graphNode struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Files int    `json:"files"`
}

func (s *Server) getGraph(c *gin.Context) {
	idx, key, err := s.latest()
	if err != nil {
		noIndex(c, err)
		return
	}

	if cached, ok := s.cache.Get("graph|" + key); ok {
		c.JSON(http.StatusOK, cached)
		return
	}

	payload := graphPayload{
		Edges:   idx.ScopeEdges,
		Mermaid: render.MermaidGraph(idx),
	}
	for i := range idx.Scopes {
		scope := &idx.Scopes[i]
		payload.Nodes = append(payload.Nodes, graphNode{
			ID: scope.ScopeID, Title: scope.Title, Files: len(scope.Paths),
		})
	}
	s.cache.Add("graph|"+key, payload)
	c.JSON(http.StatusOK, payload)
}

func (s *Server) searchScopes(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	idx, key, err := s.latest()
	if err != nil {
		noIndex(c, err)
		return
	}

	var searchIdx *search.Index
	if cached, ok := s.cache.Get("search|" + key); ok {
		searchIdx = cached.(*search.Index)
	} else {
		searchIdx = search.Build(idx)
		s.cache.Add("search|"+key, searchIdx)
	}

	hits := searchIdx.Search(query, limit)
	if hits == nil {
		hits = []search.Hit{}
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": hits})
}

func (s *Server) getHistory(c *gin.Context) {
	snaps, err := s.store.ListSnapshots()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snaps == nil {
		snaps = []models.DocSnapshot{}
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

func (s *Server) getDiff(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		// Default to the two newest snapshots.
		snaps, err := s.store.ListSnapshots()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if len(snaps) < 2 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "need at least two snapshots to diff"})
			return
		}
		from, to = snaps[1].RunID, snaps[0].RunID
	}

	report, err := s.store.ComputeDiff(from, to)
	if err != nil {
		if errors.Is(err, state.ErrSnapshotNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, report)
}

// getTree exposes the live tracker tree of a run in progress.
func (s *Server) getTree(c *gin.Context) {
	if s.track == nil {
		c.JSON(http.StatusOK, gin.H{"nodes": gin.H{}, "roots": []string{}})
		return
	}
	c.JSON(http.StatusOK, s.track.Snapshot())
}

func noIndex(c *gin.Context, err error) {
	if errors.Is(err, state.ErrNoIndex) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no documentation generated yet"})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
