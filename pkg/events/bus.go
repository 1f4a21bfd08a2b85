package events

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultCapacity is the subscriber queue size used when Subscribe is called
// with a non-positive buffer.
const DefaultCapacity = 1024

// Bus is the bounded, non-blocking event fan-out for one run. The zero value
// is not usable; construct with NewBus. All methods are safe for concurrent
// use, and all are nil-safe no-ops so components can run without a bus.
type Bus struct {
	mu        sync.Mutex
	capacity  int
	subs      map[chan Event]struct{}
	lastKnown map[string]map[string]Event
	dropped   atomic.Int64
	closed    bool
}

// NewBus creates a bus whose subscribers default to the given queue
// capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Bus{
		capacity:  capacity,
		subs:      make(map[chan Event]struct{}),
		lastKnown: make(map[string]map[string]Event),
	}
}

// Publish delivers the event to every subscriber without ever blocking the
// producer: a full subscriber queue drops this (the newest) event for that
// subscriber, counted and logged at debug. A zero Timestamp is stamped here.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	byType, ok := b.lastKnown[e.AgentID]
	if !ok {
		byType = make(map[string]Event)
		b.lastKnown[e.AgentID] = byType
	}
	byType[e.Type] = e

	targets := make([]chan Event, 0, len(b.subs))
	for ch := range b.subs {
		targets = append(targets, ch)
	}
	b.mu.Unlock()

	for _, ch := range targets {
		select {
		case ch <- e:
		default:
			b.dropped.Add(1)
			slog.Debug("Event bus queue full, dropping newest event",
				"type", e.Type, "agent_id", e.AgentID)
		}
	}
}

// Subscribe registers a consumer and returns its queue plus a cancel
// function. The queue is closed on cancel or bus Close; consumers drain in
// FIFO order. bufSize <= 0 uses the bus capacity.
func (b *Bus) Subscribe(bufSize int) (<-chan Event, func()) {
	if b == nil {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	if bufSize <= 0 {
		bufSize = b.capacity
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Snapshot returns the last-known event per (agent, type), ordered by
// timestamp then agent id. Late-joining consumers use it instead of replay.
func (b *Bus) Snapshot() []Event {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	out := make([]Event, 0, len(b.lastKnown)*2)
	for _, byType := range b.lastKnown {
		for _, e := range byType {
			out = append(out, e)
		}
	}
	b.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		if out[i].AgentID != out[j].AgentID {
			return out[i].AgentID < out[j].AgentID
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// Dropped returns how many events were discarded due to full queues.
func (b *Bus) Dropped() int64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

// Close closes every subscriber queue and rejects further publishes.
func (b *Bus) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	b.subs = make(map[chan Event]struct{})
}
