package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/docbot-dev/docbot/pkg/events"
)

const (
	sseQueueSize      = 128
	heartbeatInterval = 15 * time.Second
)

// streamEvents serves GET /api/events as Server-Sent Events: the bus's
// last-known snapshot first, then live events, with a comment heartbeat
// every 15 seconds so proxies keep the connection open.
func (s *Server) streamEvents(c *gin.Context) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	var live <-chan events.Event
	if s.bus != nil {
		for _, e := range s.bus.Snapshot() {
			writeSSE(c.Writer, e)
		}
		c.Writer.Flush()

		ch, cancel := s.bus.Subscribe(sseQueueSize)
		defer cancel()
		live = ch
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	done := c.Request.Context().Done()
	for {
		select {
		case <-done:
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(c.Writer, ": heartbeat\n\n"); err != nil {
				return
			}
			c.Writer.Flush()
		case e, ok := <-live:
			if !ok {
				return
			}
			if err := writeSSE(c.Writer, e); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func writeSSE(w io.Writer, e events.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "event: "+e.Type+"\n"); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "data: "+string(data)+"\n\n"); err != nil {
		return err
	}
	return nil
}
