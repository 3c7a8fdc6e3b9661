package sched

import "time"

// Priority orders tasks. Smaller timeout means more urgent.
type Priority int

const (
	// ImmediatePriority tasks are already expired when scheduled and run
	// synchronously in the next work turn, uninterruptible.
	ImmediatePriority Priority = iota + 1
	// UserBlockingPriority is for work the user is actively waiting on.
	UserBlockingPriority
	// NormalPriority is the default for external work.
	NormalPriority
	// LowPriority work may be deferred for several seconds.
	LowPriority
	// IdlePriority work never expires and runs only in spare time.
	IdlePriority
)

// Timeout table. Expiration is startTime + timeout; a task whose expiration
// has passed must run to completion without yielding.
const (
	immediateTimeout    = -1 * time.Millisecond
	userBlockingTimeout = 250 * time.Millisecond
	normalTimeout       = 5000 * time.Millisecond
	lowTimeout          = 10000 * time.Millisecond
	// IdlePriority never times out.
	neverTimeout = time.Duration(1<<63 - 1)
)

// timeoutFor maps a priority to its expiration timeout.
// Unknown priorities get the normal timeout.
func timeoutFor(p Priority) time.Duration {
	switch p {
	case ImmediatePriority:
		return immediateTimeout
	case UserBlockingPriority:
		return userBlockingTimeout
	case LowPriority:
		return lowTimeout
	case IdlePriority:
		return neverTimeout
	default:
		return normalTimeout
	}
}

func (p Priority) String() string {
	switch p {
	case ImmediatePriority:
		return "immediate"
	case UserBlockingPriority:
		return "user-blocking"
	case NormalPriority:
		return "normal"
	case LowPriority:
		return "low"
	case IdlePriority:
		return "idle"
	default:
		return "unknown"
	}
}

// Callback is a unit of scheduled work. It receives whether the task is
// already past due (and therefore running without a time budget). A non-nil
// return value is a continuation: the task is not finished, and the
// continuation is invoked on a future turn in the task's original slot.
type Callback func(didTimeout bool) Callback

// Task is a scheduled unit of work. Tasks are owned exclusively by the
// scheduler's heaps; cancellation nulls the callback rather than removing
// the heap entry, and payload-less entries are discarded when popped.
type Task struct {
	id       int64
	callback Callback
	priority Priority

	// Times are offsets from the host clock's origin.
	startTime      time.Duration
	expirationTime time.Duration

	// sortKey is expirationTime in the ready heap and startTime in the
	// timer heap. Ties break on id, preserving enqueue order.
	sortKey time.Duration
}

// Priority returns the priority the task was scheduled at.
func (t *Task) Priority() Priority { return t.priority }

// Expiration returns the task's expiration offset.
func (t *Task) Expiration() time.Duration { return t.expirationTime }

// cancelled reports whether the callback has been cleared.
func (t *Task) cancelled() bool { return t.callback == nil }
