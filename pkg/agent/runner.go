package agent

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// childResult is one completed delegation.
type childResult struct {
	ID      string
	Target  string
	Purpose string
	Summary string
	Err     error
}

// childPool runs one agent's delegated children. Spawns are eager: the
// goroutine starts immediately, gated by a per-agent weighted semaphore, and
// the parent collects results either opportunistically between LLM steps or
// exhaustively at finish. Results are buffered in a slice so completing
// children never block on an unread channel.
type childPool struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu      sync.Mutex
	results []childResult
	pending int

	// notify wakes a parent blocked in waitNext; capacity one because a
	// single wakeup is enough to re-check the slice.
	notify chan struct{}
}

func newChildPool(maxParallel int64) *childPool {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &childPool{
		sem:    semaphore.NewWeighted(maxParallel),
		notify: make(chan struct{}, 1),
	}
}

// spawn schedules run in the background. The semaphore is acquired inside
// the goroutine so spawn itself never blocks the parent's loop.
func (p *childPool) spawn(ctx context.Context, id, target, purpose string,
	run func(ctx context.Context) (string, error)) {

	p.mu.Lock()
	p.pending++
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		result := childResult{ID: id, Target: target, Purpose: purpose}
		if err := p.sem.Acquire(ctx, 1); err != nil {
			result.Err = err
			p.deliver(result)
			return
		}
		defer p.sem.Release(1)

		result.Summary, result.Err = run(ctx)
		p.deliver(result)
	}()
}

func (p *childPool) deliver(r childResult) {
	p.mu.Lock()
	p.results = append(p.results, r)
	p.pending--
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// tryDrain pops one buffered result without blocking.
func (p *childPool) tryDrain() (childResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.results) == 0 {
		return childResult{}, false
	}
	r := p.results[0]
	p.results = p.results[1:]
	return r, true
}

// hasPending reports whether any child has not yet delivered a result.
func (p *childPool) hasPending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending > 0
}

// waitNext blocks until a result is available or ctx is cancelled.
func (p *childPool) waitNext(ctx context.Context) (childResult, error) {
	for {
		if r, ok := p.tryDrain(); ok {
			return r, nil
		}
		select {
		case <-p.notify:
		case <-ctx.Done():
			return childResult{}, ctx.Err()
		}
	}
}

// waitAll joins every spawned child and returns the undrained results in
// completion order. A parent's finish happens-after this returns.
func (p *childPool) waitAll() []childResult {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.results
	p.results = nil
	return out
}
