package sched

import (
	"log/slog"
	"time"

	"github.com/petermattis/goid"
)

// Yield thresholds. Before frameInterval elapses a turn never yields.
// Past it, the scheduler escalates: paint pending yields immediately,
// discrete input yields below continuousInputInterval, any input yields
// below maxYieldInterval, and anything longer always yields.
const (
	defaultFrameInterval    = 5 * time.Millisecond
	continuousInputInterval = 50 * time.Millisecond
	maxYieldInterval        = 300 * time.Millisecond

	maxFrameRate = 125
)

// Options configures a scheduled task.
type Options struct {
	// Delay postpones the task's start time. Delayed tasks live in the
	// timer heap until due, then are promoted to the ready heap.
	Delay time.Duration
}

// Scheduler owns a ready heap and a timer heap of tasks and drives a
// cooperative work loop over them, yielding to the host on a time budget.
//
// CRITICAL: The scheduler is single-threaded by design. All mutation
// happens on the host's loop goroutine, from within the work loop or the
// schedule/cancel APIs called on that goroutine. There are no locks; the
// single-writer execution model is the protection.
type Scheduler struct {
	host    Host
	prober  InputProber // nil when the host lacks the capability
	painter Painter     // nil when the host lacks the capability

	taskIDCounter int64
	taskQueue     taskHeap // ready tasks, sortKey = expirationTime
	timerQueue    taskHeap // delayed tasks, sortKey = startTime

	currentTask     *Task
	currentPriority Priority

	isPerformingWork        bool
	isHostCallbackScheduled bool
	isHostTimeoutScheduled  bool

	needsPaint    bool
	frameInterval time.Duration
	turnStart     time.Duration

	// loopGID is a diagnostic only: the goroutine id of the first work
	// turn, used to warn when the single-writer discipline is broken.
	loopGID int64
}

// New creates a scheduler bound to the given host. Optional host
// capabilities (InputProber, Painter) are detected here.
func New(host Host) *Scheduler {
	s := &Scheduler{
		host:            host,
		currentPriority: NormalPriority,
		frameInterval:   defaultFrameInterval,
	}
	s.prober, _ = host.(InputProber)
	s.painter, _ = host.(Painter)
	return s
}

// Now returns the host's monotonic clock offset.
func (s *Scheduler) Now() time.Duration { return s.host.Now() }

// CurrentPriority returns the priority context of the running code.
func (s *Scheduler) CurrentPriority() Priority { return s.currentPriority }

// ScheduleTask enqueues cb at the given priority. The returned handle can
// be passed to CancelTask; the task itself stays owned by the heaps.
func (s *Scheduler) ScheduleTask(p Priority, cb Callback, opts Options) *Task {
	now := s.host.Now()

	startTime := now
	if opts.Delay > 0 {
		startTime = now + opts.Delay
	}

	timeout := timeoutFor(p)
	expirationTime := neverTimeout
	if timeout != neverTimeout {
		expirationTime = startTime + timeout
	}

	s.taskIDCounter++
	task := &Task{
		id:             s.taskIDCounter,
		callback:       cb,
		priority:       p,
		startTime:      startTime,
		expirationTime: expirationTime,
	}

	if startTime > now {
		// Delayed task: park in the timer heap.
		task.sortKey = startTime
		s.timerQueue.push(task)

		if s.taskQueue.peek() == nil && task == s.timerQueue.peek() {
			// This is the earliest timer and no ready work exists;
			// (re-)arm the host timeout for it.
			if s.isHostTimeoutScheduled {
				s.host.StopTimeout()
			}
			s.requestHostTimeout(startTime - now)
		}
		return task
	}

	task.sortKey = expirationTime
	s.taskQueue.push(task)

	if !s.isHostCallbackScheduled && !s.isPerformingWork {
		s.isHostCallbackScheduled = true
		s.host.RequestTurn(s.flushWork)
	}
	return task
}

// CancelTask clears the task's callback. The heap entry remains and is
// discarded when popped. Cancelling twice, or cancelling a finished task,
// is a no-op.
func (s *Scheduler) CancelTask(t *Task) {
	if t == nil {
		return
	}
	t.callback = nil
}

// RunAtPriority runs fn with the priority context set to p, restoring the
// previous context afterwards even if fn panics.
func (s *Scheduler) RunAtPriority(p Priority, fn func()) {
	switch p {
	case ImmediatePriority, UserBlockingPriority, NormalPriority, LowPriority, IdlePriority:
	default:
		p = NormalPriority
	}
	prev := s.currentPriority
	s.currentPriority = p
	defer func() { s.currentPriority = prev }()
	fn()
}

// ShiftToNormal runs fn at NormalPriority when the current context is at
// or above normal; below-normal contexts are left untouched.
func (s *Scheduler) ShiftToNormal(fn func()) {
	p := s.currentPriority
	if p == ImmediatePriority || p == UserBlockingPriority || p == NormalPriority {
		p = NormalPriority
	}
	prev := s.currentPriority
	s.currentPriority = p
	defer func() { s.currentPriority = prev }()
	fn()
}

// RequestPaint marks that the host wants to paint, escalating the next
// yield decision.
func (s *Scheduler) RequestPaint() { s.needsPaint = true }

// SetFrameRate adjusts the per-turn time budget. Rates outside (0, 125]
// fall back to the default 5ms budget with a warning; forcing higher
// frame rates than the host can deliver only causes churn.
func (s *Scheduler) SetFrameRate(fps int) {
	if fps <= 0 || fps > maxFrameRate {
		slog.Warn("unsupported frame rate, using default", "fps", fps)
		s.frameInterval = defaultFrameInterval
		return
	}
	s.frameInterval = time.Second / time.Duration(fps)
}

// ShouldYield reports whether the running task should return control to
// the host. The first frameInterval of a turn never yields; past it the
// paint/input escalation applies. Without an input probe, any elapsed
// frame interval yields.
func (s *Scheduler) ShouldYield() bool {
	elapsed := s.host.Now() - s.turnStart
	if elapsed < s.frameInterval {
		return false
	}
	if s.needsPaint {
		return true
	}
	if s.prober == nil {
		return true
	}
	if elapsed < continuousInputInterval {
		return s.prober.InputPending(true)
	}
	if elapsed < maxYieldInterval {
		return s.prober.InputPending(false)
	}
	return true
}

// HasPendingWork reports whether any task (ready or delayed) remains.
// Cancelled-but-unpopped tasks count until they surface.
func (s *Scheduler) HasPendingWork() bool {
	return s.taskQueue.len() > 0 || s.timerQueue.len() > 0
}

// flushWork is one macro-turn of the work loop.
//
// The deferred cleanup always runs: a panicking task propagates to the
// host turn boundary, but currentTask, the priority context, and the
// performing flag are reset first, and the next turn is still requested,
// so one bad task cannot wedge the scheduler.
func (s *Scheduler) flushWork() {
	s.checkLoopGoroutine()

	initialTime := s.host.Now()
	s.turnStart = initialTime

	s.isHostCallbackScheduled = false
	if s.isHostTimeoutScheduled {
		// A turn is starting; the ready heap takes precedence over the
		// armed timeout.
		s.isHostTimeoutScheduled = false
		s.host.StopTimeout()
	}

	prevPriority := s.currentPriority
	s.isPerformingWork = true

	// Assume more work remains if we exit abnormally, so the loop
	// resumes on the next turn after a task panic.
	hasMore := true
	defer func() {
		s.currentTask = nil
		s.currentPriority = prevPriority
		s.isPerformingWork = false

		painted := s.needsPaint
		s.needsPaint = false
		if painted && s.painter != nil {
			s.painter.FramePainted()
		}

		if hasMore {
			s.isHostCallbackScheduled = true
			s.host.RequestTurn(s.flushWork)
		}
	}()

	hasMore = s.workLoop(initialTime)
}

// workLoop runs ready tasks until the heap drains or the yield point is
// hit. Returns true when ready work remains (the host should schedule
// another turn); otherwise arms the host timeout for the earliest delayed
// task, if any, and returns false.
func (s *Scheduler) workLoop(initialTime time.Duration) bool {
	now := initialTime
	s.advanceTimers(now)

	s.currentTask = s.taskQueue.peek()
	for s.currentTask != nil {
		task := s.currentTask

		if task.expirationTime > now && s.ShouldYield() {
			// Not yet due and the turn budget is spent: the
			// cooperative yield point.
			break
		}

		cb := task.callback
		if cb == nil {
			// Cancelled; discard.
			s.taskQueue.pop()
			s.currentTask = s.taskQueue.peek()
			continue
		}

		task.callback = nil
		s.currentPriority = task.priority
		didTimeout := task.expirationTime <= now

		continuation := cb(didTimeout)
		now = s.host.Now()

		if continuation != nil {
			// Unfinished: leave the task at the heap head with the
			// continuation substituted for future re-entry.
			task.callback = continuation
		} else if s.taskQueue.peek() == task {
			s.taskQueue.pop()
		}

		s.advanceTimers(now)
		s.currentTask = s.taskQueue.peek()
	}

	if s.currentTask != nil {
		return true
	}
	if first := s.timerQueue.peek(); first != nil {
		s.requestHostTimeout(first.startTime - now)
	}
	return false
}

// advanceTimers promotes due delayed tasks into the ready heap and drops
// cancelled ones.
func (s *Scheduler) advanceTimers(now time.Duration) {
	for {
		timer := s.timerQueue.peek()
		if timer == nil {
			return
		}
		if timer.cancelled() {
			s.timerQueue.pop()
			continue
		}
		if timer.startTime > now {
			// Earliest timer not yet due; the rest are later still.
			return
		}
		s.timerQueue.pop()
		timer.sortKey = timer.expirationTime
		s.taskQueue.push(timer)
	}
}

// handleTimeout is the host timer firing: promote due timers, then either
// resume the work loop or re-arm a shorter timeout.
func (s *Scheduler) handleTimeout() {
	s.isHostTimeoutScheduled = false
	now := s.host.Now()
	s.advanceTimers(now)

	if s.isHostCallbackScheduled {
		return
	}
	if s.taskQueue.peek() != nil {
		s.isHostCallbackScheduled = true
		s.host.RequestTurn(s.flushWork)
		return
	}
	if first := s.timerQueue.peek(); first != nil {
		s.requestHostTimeout(first.startTime - now)
	}
}

func (s *Scheduler) requestHostTimeout(after time.Duration) {
	s.isHostTimeoutScheduled = true
	s.host.StartTimeout(after, s.handleTimeout)
}

// checkLoopGoroutine warns when a work turn runs on a different goroutine
// than earlier turns. Diagnostic only, never fatal.
func (s *Scheduler) checkLoopGoroutine() {
	gid := goid.Get()
	if s.loopGID == 0 {
		s.loopGID = gid
		return
	}
	if s.loopGID != gid {
		slog.Warn("work turn ran on a different goroutine than previous turns",
			"previous", s.loopGID,
			"current", gid,
		)
		s.loopGID = gid
	}
}
