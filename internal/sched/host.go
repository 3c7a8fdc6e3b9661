package sched

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Host is the environment the scheduler cooperates with. The scheduler
// yields by returning from a turn; the host is responsible for calling it
// back on a later macro-turn.
//
// A host must supply a monotonic clock, a way to schedule the next turn,
// and a single cancellable delayed callback. The input-pending probe is
// optional; see InputProber.
type Host interface {
	// Now returns the monotonic time offset since the host started.
	Now() time.Duration

	// RequestTurn asks the host to invoke run on the next macro-turn.
	// At most one turn request is outstanding at a time.
	RequestTurn(run func())

	// StartTimeout arms the host's single delayed callback. A second call
	// re-arms it; StopTimeout disarms it.
	StartTimeout(after time.Duration, fn func())

	// StopTimeout cancels the pending delayed callback, if any.
	StopTimeout()
}

// InputProber is an optional Host capability reporting whether host input
// is waiting to be handled. discreteOnly restricts the probe to discrete
// input (clicks, key presses) as opposed to continuous input (pointer
// movement, scroll).
//
// Hosts without this capability make the scheduler yield unconditionally
// once the frame interval has elapsed.
type InputProber interface {
	InputPending(discreteOnly bool) bool
}

// Painter is an optional Host capability: the scheduler calls FramePainted
// after a turn during which RequestPaint was signalled, so the host can
// flush its frame.
type Painter interface {
	FramePainted()
}

// turnQueue is a FIFO of pending macro-turn callbacks.
//
// The queue is unbounded so turn requests issued from outside the loop
// goroutine never block. Thread-safety covers external enqueuing while the
// loop goroutine dequeues; in steady state most traffic is the loop
// re-requesting itself.
type turnQueue struct {
	mu     sync.Mutex
	turns  []func()
	closed bool
	signal chan struct{} // buffered size 1, coalesces wakeups
}

func newTurnQueue() *turnQueue {
	return &turnQueue{
		turns:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// enqueue adds a turn callback. Returns false if the queue is closed.
func (q *turnQueue) enqueue(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.turns = append(q.turns, fn)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// tryDequeue removes the front callback without blocking.
func (q *turnQueue) tryDequeue() (func(), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.turns) == 0 {
		return nil, false
	}
	fn := q.turns[0]
	q.turns[0] = nil // release for GC
	q.turns = q.turns[1:]
	return fn, true
}

// wait returns the wakeup channel for select-based waiting.
func (q *turnQueue) wait() <-chan struct{} { return q.signal }

// closedAndEmpty reports whether no more turns can arrive or remain.
func (q *turnQueue) closedAndEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed && len(q.turns) == 0
}

// close marks the queue closed and wakes any waiter.
func (q *turnQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// LoopHost is the production Host: a single-goroutine event loop. Each
// requested turn is one loop iteration, which is the macro-turn granularity
// the scheduler's yield discipline assumes.
//
// CRITICAL: Run must be called from exactly one goroutine. All scheduler
// turns execute on that goroutine; RequestTurn and StartTimeout are safe
// from any goroutine.
type LoopHost struct {
	origin time.Time
	queue  *turnQueue

	timerMu sync.Mutex
	timer   *time.Timer
}

// NewLoopHost creates a host whose clock starts at zero now.
func NewLoopHost() *LoopHost {
	return &LoopHost{
		origin: time.Now(),
		queue:  newTurnQueue(),
	}
}

// Now returns the monotonic offset since the host was created.
func (h *LoopHost) Now() time.Duration {
	return time.Since(h.origin)
}

// RequestTurn enqueues run for the next loop iteration.
func (h *LoopHost) RequestTurn(run func()) {
	if !h.queue.enqueue(run) {
		slog.Warn("turn requested after host stopped")
	}
}

// StartTimeout arms the host timer. The callback is delivered as a turn so
// it runs on the loop goroutine like any other.
func (h *LoopHost) StartTimeout(after time.Duration, fn func()) {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(after, func() {
		h.RequestTurn(fn)
	})
}

// StopTimeout disarms the host timer.
func (h *LoopHost) StopTimeout() {
	h.timerMu.Lock()
	defer h.timerMu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// Run drives the loop until the context is cancelled or Stop is called.
//
// Turn callbacks that panic propagate out of Run: the scheduler has
// already reset its own bookkeeping by then (deferred cleanup in its work
// loop), so a supervisor may recover and call Run again.
func (h *LoopHost) Run(ctx context.Context) error {
	slog.Info("host loop starting")

	for {
		turn, ok := h.queue.tryDequeue()
		if ok {
			turn()
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("host loop stopping: context cancelled")
			h.queue.close()
			h.StopTimeout()
			return ctx.Err()

		case <-h.queue.wait():
			// A closed queue fires this case immediately and forever.
			if h.queue.closedAndEmpty() {
				slog.Info("host loop stopping: queue closed")
				return nil
			}
			// Loop back to tryDequeue.
		}
	}
}

// Stop closes the turn queue, which makes Run return after draining.
func (h *LoopHost) Stop() {
	h.queue.close()
	h.StopTimeout()
}
