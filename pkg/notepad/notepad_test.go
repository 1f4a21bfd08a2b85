package notepad

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu      sync.Mutex
	created []string
	written []string
}

func (s *recordingSink) NotepadCreated(topic, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, topic)
}

func (s *recordingSink) NotepadWritten(topic, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = append(s.written, topic)
}

func TestWrite_AppendOrder(t *testing.T) {
	n := New(nil)

	n.Write("arch.layers", "first", "agent-a")
	n.Write("arch.layers", "second", "agent-b")
	echo := n.Write("arch.layers", "third", "agent-a")

	// Echo contains all entries in write order.
	require.Contains(t, echo, "[1] agent-a")
	require.Contains(t, echo, "[2] agent-b")
	require.Contains(t, echo, "[3] agent-a")
	assert.Less(t, strings.Index(echo, "first"), strings.Index(echo, "second"))
	assert.Less(t, strings.Index(echo, "second"), strings.Index(echo, "third"))

	entries := n.Serialize()["arch.layers"]
	require.Len(t, entries, 3)
	assert.Equal(t, "first", entries[0].Content)
	assert.Equal(t, "second", entries[1].Content)
	assert.Equal(t, "third", entries[2].Content)
}

func TestWrite_EmitsCreatedOncePerTopic(t *testing.T) {
	sink := &recordingSink{}
	n := New(sink)

	n.Write("t1", "a", "x")
	n.Write("t1", "b", "x")
	n.Write("t2", "c", "y")

	assert.Equal(t, []string{"t1", "t2"}, sink.created)
	assert.Equal(t, []string{"t1", "t1", "t2"}, sink.written)
}

func TestRead_UnknownTopic(t *testing.T) {
	n := New(nil)
	assert.Equal(t, `(no notes on topic "missing")`, n.Read("missing"))
}

func TestSerialize_ReturnsCopy(t *testing.T) {
	n := New(nil)
	n.Write("t", "original", "a")

	snap := n.Serialize()
	snap["t"][0].Content = "mutated"
	snap["new"] = nil

	fresh := n.Serialize()
	require.Len(t, fresh, 1)
	assert.Equal(t, "original", fresh["t"][0].Content)
}

func TestTopics_SortedWithCounts(t *testing.T) {
	n := New(nil)
	assert.Equal(t, "(notepad is empty)", n.Topics())

	n.Write("zeta", "z", "a")
	n.Write("alpha", "a1", "a")
	n.Write("alpha", "a2", "a")

	got := n.Topics()
	assert.Less(t, strings.Index(got, "alpha (2 entries)"), strings.Index(got, "zeta (1 entries)"))
}

func TestContextString_Budget(t *testing.T) {
	n := New(nil)
	for i := 0; i < 20; i++ {
		n.Write("bulk", strings.Repeat("x", 100), "a")
	}

	out := n.ContextString(500)
	assert.LessOrEqual(t, len(out), 500+len("\n... [notepad truncated]"))
	assert.Contains(t, out, "[notepad truncated]")

	full := n.ContextString(1 << 20)
	assert.NotContains(t, full, "[notepad truncated]")
}

func TestWrite_ConcurrentWriters(t *testing.T) {
	n := New(&recordingSink{})

	const writers = 32
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n.Write("shared", fmt.Sprintf("entry-%d", i), fmt.Sprintf("agent-%d", i))
		}(i)
	}
	wg.Wait()

	entries := n.Serialize()["shared"]
	require.Len(t, entries, writers)

	seen := make(map[string]bool, writers)
	for _, e := range entries {
		seen[e.Content] = true
	}
	assert.Len(t, seen, writers, "every write must land exactly once")
}
