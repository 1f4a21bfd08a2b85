// Package api serves the generated documentation over HTTP: the latest
// index, per-scope pages, the dependency graph, search, history and diffs,
// plus a live SSE event stream and Prometheus metrics. All documentation
// reads go through the state store; derived artifacts (graph payload,
// search index) are cached per generated index.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/docbot-dev/docbot/pkg/events"
	"github.com/docbot-dev/docbot/pkg/models"
	"github.com/docbot-dev/docbot/pkg/state"
	"github.com/docbot-dev/docbot/pkg/tracker"
)

const cacheSize = 32

// Server is the docbot HTTP surface for one repository.
type Server struct {
	repoRoot string
	store    *state.Store
	bus      *events.Bus
	track    *tracker.Tracker
	metrics  *Metrics

	// cache holds derived artifacts keyed by repo_path + generated_at, so
	// a newer index naturally misses and older entries age out.
	cache *lru.Cache[string, any]

	mu        sync.Mutex
	lastKey   string
	lastIndex *models.DocsIndex
	loadedAt  time.Time
}

// NewServer builds the server. bus and track may be nil (the event stream
// then serves heartbeats only and /api/tree is empty).
func NewServer(repoRoot string, bus *events.Bus, track *tracker.Tracker) (*Server, error) {
	cache, err := lru.New[string, any](cacheSize)
	if err != nil {
		return nil, err
	}
	s := &Server{
		repoRoot: repoRoot,
		store:    state.New(repoRoot),
		bus:      bus,
		track:    track,
		cache:    cache,
	}
	s.metrics = newMetrics(bus, track)
	return s, nil
}

// Router assembles the gin engine. Release mode unless DOCBOT_DEBUG is set.
func (s *Server) Router() *gin.Engine {
	if os.Getenv("DOCBOT_DEBUG") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", s.health)
		apiGroup.GET("/index", s.getIndex)
		apiGroup.GET("/scopes/:id", s.getScope)
		apiGroup.GET("/graph", s.getGraph)
		apiGroup.GET("/events", s.streamEvents)
		apiGroup.GET("/search", s.searchScopes)
		apiGroup.GET("/history", s.getHistory)
		apiGroup.GET("/diff", s.getDiff)
		apiGroup.GET("/tree", s.getTree)
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

// latest returns the current index, re-reading from disk at most once per
// second so the serve surface picks up new runs without a restart.
func (s *Server) latest() (*models.DocsIndex, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastIndex != nil && time.Since(s.loadedAt) < time.Second {
		return s.lastIndex, s.lastKey, nil
	}

	idx, err := s.store.LoadIndex()
	if err != nil {
		if s.lastIndex != nil {
			return s.lastIndex, s.lastKey, nil
		}
		return nil, "", err
	}
	s.lastIndex = idx
	s.lastKey = idx.RepoPath + "|" + idx.GeneratedAt
	s.loadedAt = time.Now()
	return idx, s.lastKey, nil
}
