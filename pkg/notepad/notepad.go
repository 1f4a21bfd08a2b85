// Package notepad implements the shared, topic-keyed knowledge store that
// all agents in one run write their findings into. A single mutex guards the
// topic map; per-topic entry order is strictly append in writer-arrival
// order, and every read hands out a copy, never a live view.
package notepad

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/docbot-dev/docbot/pkg/models"
)

// EventSink receives notepad lifecycle notifications. Implemented by the
// event bus adapter; declared here so the package carries no bus dependency.
type EventSink interface {
	NotepadCreated(topic, author string)
	NotepadWritten(topic, author string)
}

// NopSink discards all notifications.
type NopSink struct{}

func (NopSink) NotepadCreated(string, string) {}
func (NopSink) NotepadWritten(string, string) {}

// Notepad is safe for concurrent use.
type Notepad struct {
	mu      sync.Mutex
	entries map[string][]models.NoteEntry
	sink    EventSink
}

// New creates an empty notepad. A nil sink is replaced by NopSink.
func New(sink EventSink) *Notepad {
	if sink == nil {
		sink = NopSink{}
	}
	return &Notepad{
		entries: make(map[string][]models.NoteEntry),
		sink:    sink,
	}
}

// Write appends an entry under topic and returns the formatted dump of that
// topic for the writing tool's echo. The first write to a topic emits
// notepad_created, then every write emits notepad_write; both are emitted
// outside the critical section.
func (n *Notepad) Write(topic, content, author string) string {
	entry := models.NoteEntry{
		Content:   content,
		Author:    author,
		Timestamp: time.Now().UTC(),
		Topic:     topic,
	}

	n.mu.Lock()
	_, existed := n.entries[topic]
	n.entries[topic] = append(n.entries[topic], entry)
	dump := formatTopic(topic, n.entries[topic])
	n.mu.Unlock()

	if !existed {
		n.sink.NotepadCreated(topic, author)
	}
	n.sink.NotepadWritten(topic, author)

	return dump
}

// Read returns the formatted dump of one topic.
func (n *Notepad) Read(topic string) string {
	n.mu.Lock()
	entries := append([]models.NoteEntry(nil), n.entries[topic]...)
	n.mu.Unlock()

	if len(entries) == 0 {
		return fmt.Sprintf("(no notes on topic %q)", topic)
	}
	return formatTopic(topic, entries)
}

// Topics returns a human-readable list of topics with entry counts, sorted
// by topic name.
func (n *Notepad) Topics() string {
	n.mu.Lock()
	names := make([]string, 0, len(n.entries))
	counts := make(map[string]int, len(n.entries))
	for topic, entries := range n.entries {
		names = append(names, topic)
		counts[topic] = len(entries)
	}
	n.mu.Unlock()

	if len(names) == 0 {
		return "(notepad is empty)"
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Notepad topics:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "- %s (%d entries)\n", name, counts[name])
	}
	return strings.TrimRight(b.String(), "\n")
}

// Serialize returns a deep copy of the topic map.
func (n *Notepad) Serialize() map[string][]models.NoteEntry {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make(map[string][]models.NoteEntry, len(n.entries))
	for topic, entries := range n.entries {
		out[topic] = append([]models.NoteEntry(nil), entries...)
	}
	return out
}

// ContextString renders all topics (sorted) into a single string no longer
// than budget characters, truncating with a marker when the budget runs out.
// Used to hand a parent's accumulated knowledge to synthesis prompts.
func (n *Notepad) ContextString(budget int) string {
	snapshot := n.Serialize()
	if len(snapshot) == 0 {
		return ""
	}

	names := make([]string, 0, len(snapshot))
	for topic := range snapshot {
		names = append(names, topic)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		section := formatTopic(name, snapshot[name]) + "\n\n"
		if b.Len()+len(section) > budget {
			remaining := budget - b.Len()
			if remaining > 0 {
				b.WriteString(section[:remaining])
			}
			b.WriteString("\n... [notepad truncated]")
			return b.String()
		}
		b.WriteString(section)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTopic(topic string, entries []models.NoteEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s (%d entries)\n", topic, len(entries))
	for i, e := range entries {
		fmt.Fprintf(&b, "[%d] %s @ %s:\n%s\n", i+1, e.Author,
			e.Timestamp.Format(time.RFC3339), e.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
