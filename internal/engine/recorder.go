package engine

import (
	"sync/atomic"

	"github.com/strandworks/strand/internal/lanes"
)

// Clock is a monotonic logical clock for trace-event ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// The engine's single-writer design means only the work-loop goroutine
// normally calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Used when extending a previously recorded trace.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// EventKind classifies a trace event.
type EventKind string

const (
	// EventSchedule records a unit being queued for a render pass.
	EventSchedule EventKind = "schedule"
	// EventPass records the start of a render pass.
	EventPass EventKind = "pass"
	// EventCommit records a committed pass and its output value.
	EventCommit EventKind = "commit"
	// EventCarryOver records lanes skipped by a pass and rescheduled.
	EventCarryOver EventKind = "carry-over"
	// EventEffects records the number of effects run after a commit.
	EventEffects EventKind = "effects"
	// EventTransition records a transition lane allocation.
	EventTransition EventKind = "transition"
	// EventUnmount records a unit teardown.
	EventUnmount EventKind = "unmount"
	// EventFatal records a protocol violation that aborted a pass.
	EventFatal EventKind = "fatal"
)

// Event is one entry in a recorded trace.
type Event struct {
	Seq    int64     `json:"seq"`
	Kind   EventKind `json:"kind"`
	Unit   string    `json:"unit,omitempty"`
	Lanes  string    `json:"lanes,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Recorder accumulates an append-only trace of engine activity, stamped
// by a logical sequence clock. It is purely observational: the engine
// never reads it back, so recording can be disabled (nil Recorder) with
// no behavioral change.
type Recorder struct {
	clock  *Clock
	events []Event
}

// NewRecorder creates an empty recorder with a fresh clock.
func NewRecorder() *Recorder {
	return &Recorder{clock: NewClock()}
}

// Record appends one event. A nil recorder drops it.
func (r *Recorder) Record(kind EventKind, unit string, l lanes.Lanes, detail string) {
	if r == nil {
		return
	}
	ev := Event{
		Seq:    r.clock.Next(),
		Kind:   kind,
		Unit:   unit,
		Detail: detail,
	}
	if l != lanes.NoLanes {
		ev.Lanes = l.String()
	}
	r.events = append(r.events, ev)
}

// Events returns a copy of the recorded trace in sequence order.
func (r *Recorder) Events() []Event {
	if r == nil {
		return nil
	}
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	if r == nil {
		return 0
	}
	return len(r.events)
}

// Reset drops all events and restarts the clock.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.events = nil
	r.clock = NewClock()
}
