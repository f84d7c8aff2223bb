// Package queue implements the bounded, single-consumer Tick Queue that sits
// between feed producer goroutines and the engine's owner goroutine. It is
// the only point at which ticks cross from a producer goroutine into the
// engine's single-threaded world.
package queue

import (
	"context"
	"sync"

	"github.com/horaja/arbitrage-engine/internal/domain"
)

// StopSymbol is the sentinel Tick.Symbol value Close enqueues to signal the
// consumer that no further ticks are coming, realizing the core engine's
// "STOP" convention as a typed value rather than a raw string compared at
// scattered call sites.
const StopSymbol = "STOP"

// TickQueue is a bounded channel wrapper accepting domain.Tick values from
// any number of producer goroutines and exposing a single receive channel for
// the engine's owner goroutine to drain. It is safe to call Push from
// multiple goroutines concurrently; Drain's returned channel must only be
// read by one goroutine at a time to preserve per-producer ordering.
type TickQueue struct {
	ch        chan domain.Tick
	closeOnce sync.Once
}

// New creates a TickQueue with the given buffer capacity.
func New(capacity int) *TickQueue {
	return &TickQueue{ch: make(chan domain.Tick, capacity)}
}

// Push enqueues a tick, blocking if the queue is full until space frees up
// or ctx is cancelled.
func (q *TickQueue) Push(ctx context.Context, t domain.Tick) error {
	select {
	case q.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Drain returns the receive-only channel the owner goroutine reads from.
// The consumer should treat a received Tick with Symbol == StopSymbol as the
// signal to stop draining; the channel itself is never closed, since
// producer goroutines may still be mid-send when Close runs.
func (q *TickQueue) Drain() <-chan domain.Tick {
	return q.ch
}

// Close pushes the STOP sentinel exactly once. The send runs on its own
// goroutine, so Close returns at once even when the queue is full or
// unbuffered with no reader; the sentinel is never dropped and arrives as
// soon as the consumer frees a slot.
func (q *TickQueue) Close() {
	q.closeOnce.Do(func() {
		go func() { q.ch <- domain.Tick{Symbol: StopSymbol} }()
	})
}
