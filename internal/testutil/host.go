// Package testutil provides deterministic hosts and clocks for tests.
//
// The manual host replaces wall-clock time and goroutine scheduling with
// explicit, hand-driven steps so scheduler behavior can be asserted
// exactly: tests advance the clock, pump macro-turns one at a time, and
// flip input/paint signals between steps.
package testutil

import "time"

// ManualHost is a host whose clock and macro-turns advance only when the
// test says so. It satisfies the scheduler's Host interface but has no
// input probe, so the scheduler under it always yields once the frame
// interval elapses.
type ManualHost struct {
	now   time.Duration
	turns []func()

	hasTimeout bool
	timeoutAt  time.Duration
	timeoutFn  func()
}

// NewManualHost creates a host with the clock at zero and no turns queued.
func NewManualHost() *ManualHost {
	return &ManualHost{}
}

// Now returns the manual clock.
func (h *ManualHost) Now() time.Duration { return h.now }

// Advance moves the clock forward, delivering the armed timeout as a
// queued turn if it comes due.
func (h *ManualHost) Advance(d time.Duration) {
	h.now += d
	if h.hasTimeout && h.timeoutAt <= h.now {
		fn := h.timeoutFn
		h.hasTimeout = false
		h.timeoutFn = nil
		h.turns = append(h.turns, fn)
	}
}

// RequestTurn queues run for a later RunTurn call.
func (h *ManualHost) RequestTurn(run func()) {
	h.turns = append(h.turns, run)
}

// StartTimeout arms the single host timeout.
func (h *ManualHost) StartTimeout(after time.Duration, fn func()) {
	h.hasTimeout = true
	h.timeoutAt = h.now + after
	h.timeoutFn = fn
}

// StopTimeout disarms the host timeout.
func (h *ManualHost) StopTimeout() {
	h.hasTimeout = false
	h.timeoutFn = nil
}

// HasTimeout reports whether a host timeout is armed.
func (h *ManualHost) HasTimeout() bool { return h.hasTimeout }

// TimeoutAt returns the armed timeout's due offset. Only meaningful when
// HasTimeout is true.
func (h *ManualHost) TimeoutAt() time.Duration { return h.timeoutAt }

// PendingTurns returns the number of queued macro-turns.
func (h *ManualHost) PendingTurns() int { return len(h.turns) }

// RunTurn executes the next queued macro-turn. Returns false when none
// are queued.
func (h *ManualHost) RunTurn() bool {
	if len(h.turns) == 0 {
		return false
	}
	turn := h.turns[0]
	h.turns[0] = nil
	h.turns = h.turns[1:]
	turn()
	return true
}

// FlushTurns pumps turns until the queue drains or max turns have run,
// returning the number executed. The bound guards against tests looping
// on a scheduler that keeps re-requesting itself.
func (h *ManualHost) FlushTurns(max int) int {
	ran := 0
	for ran < max && h.RunTurn() {
		ran++
	}
	return ran
}

// InputHost extends ManualHost with an input-pending probe and a paint
// acknowledgement counter, for exercising the yield escalation rules.
type InputHost struct {
	*ManualHost

	// DiscretePending simulates a pending click or key press.
	DiscretePending bool
	// ContinuousPending simulates pending pointer movement or scroll.
	ContinuousPending bool

	// PaintCount counts frames acknowledged after paint requests.
	PaintCount int
}

// NewInputHost creates an InputHost with no input pending.
func NewInputHost() *InputHost {
	return &InputHost{ManualHost: NewManualHost()}
}

// InputPending implements the scheduler's optional input probe.
func (h *InputHost) InputPending(discreteOnly bool) bool {
	if discreteOnly {
		return h.DiscretePending
	}
	return h.DiscretePending || h.ContinuousPending
}

// FramePainted implements the scheduler's optional paint acknowledgement.
func (h *InputHost) FramePainted() { h.PaintCount++ }
