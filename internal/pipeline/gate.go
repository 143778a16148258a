package pipeline

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Gate serializes compute engine invocations across all running jobs.
type Gate struct {
	sem     *semaphore.Weighted
	waiting atomic.Int64
	held    atomic.Int64
}

// NewGate returns a single-permit admission gate.
func NewGate() *Gate {
	return &Gate{sem: semaphore.NewWeighted(1)}
}

// Acquire blocks until the engine is free or ctx is done. The returned
// function releases the permit; later calls are no-ops.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	g.waiting.Add(1)
	err := g.sem.Acquire(ctx, 1)
	g.waiting.Add(-1)
	if err != nil {
		return nil, err
	}
	g.held.Add(1)

	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			g.held.Add(-1)
			g.sem.Release(1)
		}
	}, nil
}

// Waiting returns the number of callers blocked in Acquire.
func (g *Gate) Waiting() int {
	return int(g.waiting.Load())
}

// Busy reports whether an invocation currently holds the gate.
func (g *Gate) Busy() bool {
	return g.held.Load() > 0
}
