package engine

import (
	"fmt"
	"log/slog"

	"github.com/strandworks/strand/internal/cells"
	"github.com/strandworks/strand/internal/lanes"
	"github.com/strandworks/strand/internal/sched"
)

// CommitHook observes a committed pass: the unit and its new output
// value. Called from the work loop, after effects have flushed.
type CommitHook func(u *cells.Unit, value any)

// FatalHook observes a protocol violation that aborted a unit's pass.
// The unit is quarantined afterwards: its pending work is dropped and no
// further passes are scheduled for it.
type FatalHook func(u *cells.Unit, err error)

// unitRecord is the engine's per-unit scheduling bookkeeping.
type unitRecord struct {
	unit   *cells.Unit
	value  any
	task   *sched.Task
	taskAt sched.Priority
	failed error
}

// Engine is the root coordinator.
//
// CRITICAL: the engine is single-writer. Mount, Unmount, StartTransition
// and every setter captured from a render body must be called from the
// host's work-loop goroutine (or, under a manual test host, from the
// single test goroutine driving it).
type Engine struct {
	sched    *sched.Scheduler
	runtime  *cells.Runtime
	entangle *lanes.Entanglement
	alloc    *lanes.Allocator
	rec      *Recorder
	log      *slog.Logger

	units map[*cells.Unit]*unitRecord

	// transition is the lane forced onto mutations issued inside a
	// StartTransition block, NoLane outside one.
	transition Lane

	onCommit CommitHook
	onFatal  FatalHook

	// entangleTransitions groups all transition lanes so they resolve in
	// one pass.
	entangleTransitions bool
}

// Lane aliases the lanes type for option signatures.
type Lane = lanes.Lane

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder attaches a trace recorder.
func WithRecorder(r *Recorder) Option {
	return func(e *Engine) { e.rec = r }
}

// WithLogger replaces the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithCommitHook registers the commit observer.
func WithCommitHook(h CommitHook) Option {
	return func(e *Engine) { e.onCommit = h }
}

// WithFatalHook registers the protocol-violation observer.
func WithFatalHook(h FatalHook) Option {
	return func(e *Engine) { e.onFatal = h }
}

// WithEntangledTransitions makes every transition lane entangle with the
// whole transition group, so logically concurrent transitions commit
// together.
func WithEntangledTransitions() Option {
	return func(e *Engine) { e.entangleTransitions = true }
}

// New creates an engine driving its own scheduler on the given host.
func New(host sched.Host, opts ...Option) *Engine {
	e := &Engine{
		sched:    sched.New(host),
		entangle: lanes.NewEntanglement(),
		alloc:    lanes.NewAllocator(),
		log:      slog.Default(),
		units:    make(map[*cells.Unit]*unitRecord),
	}
	e.runtime = cells.NewRuntime(e)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Scheduler exposes the underlying task scheduler, mainly for hosts and
// harnesses that need to pump or inspect it.
func (e *Engine) Scheduler() *sched.Scheduler { return e.sched }

// Recorder returns the attached trace recorder, or nil.
func (e *Engine) Recorder() *Recorder { return e.rec }

// laneToPriority maps a lane to the scheduler priority its render pass
// runs at.
func laneToPriority(l lanes.Lane) sched.Priority {
	switch l {
	case lanes.SyncLane:
		return sched.ImmediatePriority
	case lanes.InputContinuousLane:
		return sched.UserBlockingPriority
	case lanes.DefaultLane,
		lanes.TransitionLane1, lanes.TransitionLane2,
		lanes.TransitionLane3, lanes.TransitionLane4:
		return sched.NormalPriority
	case lanes.RetryLane:
		return sched.LowPriority
	case lanes.IdleLane, lanes.OffscreenLane:
		return sched.IdlePriority
	default:
		return sched.NormalPriority
	}
}

// priorityToLane maps the current scheduler priority to the lane a
// mutation issued at that priority lands on.
func priorityToLane(p sched.Priority) lanes.Lane {
	switch p {
	case sched.ImmediatePriority:
		return lanes.SyncLane
	case sched.UserBlockingPriority:
		return lanes.InputContinuousLane
	case sched.LowPriority:
		return lanes.RetryLane
	case sched.IdlePriority:
		return lanes.IdleLane
	default:
		return lanes.DefaultLane
	}
}

// RequestLane derives the lane for a mutation issued right now: the
// active transition lane inside a StartTransition block, otherwise the
// lane of the scheduler's current priority context.
func (e *Engine) RequestLane() lanes.Lane {
	if e.transition != lanes.NoLane {
		return e.transition
	}
	return priorityToLane(e.sched.CurrentPriority())
}

// ScheduleUnit merges the lane into the unit's pending set and makes
// sure a render task is queued at a compatible priority. Part of the
// cells runtime's scheduling contract.
func (e *Engine) ScheduleUnit(u *cells.Unit, lane lanes.Lane) {
	rec, ok := e.units[u]
	if !ok || rec.failed != nil {
		// Unknown or quarantined owner: a wrong lane or a late setter
		// costs at most a dropped pass, never corrupted state.
		e.log.Warn("update for unmanaged unit dropped",
			"unit", u.Name(), "lane", lane.Set().String())
		return
	}
	u.MergePendingLanes(lane.Set())
	e.rec.Record(EventSchedule, u.Name(), lane.Set(), "")
	e.ensureScheduled(rec)
}

// ensureScheduled queues (or requeues) the unit's render task at the
// priority of its most urgent pending lane. An already queued task at
// the same or higher priority is kept; a less urgent one is superseded.
func (e *Engine) ensureScheduled(rec *unitRecord) {
	pending := rec.unit.PendingLanes()
	if pending.IsEmpty() {
		return
	}
	want := laneToPriority(lanes.HighestPriority(pending))
	if rec.task != nil {
		if rec.taskAt <= want {
			return
		}
		e.sched.CancelTask(rec.task)
	}
	rec.taskAt = want
	rec.task = e.sched.ScheduleTask(want, func(bool) sched.Callback {
		rec.task = nil
		e.renderUnit(rec)
		return nil
	}, sched.Options{})
}

// Mount registers a render unit and schedules its first pass at the lane
// of the current priority context.
func (e *Engine) Mount(name string, body cells.Body) *cells.Unit {
	u := cells.NewUnit(name, body)
	rec := &unitRecord{unit: u}
	e.units[u] = rec
	e.log.Info("unit mounted", "unit", name)
	e.ScheduleUnit(u, e.RequestLane())
	return u
}

// Unmount tears the unit down: pending work is dropped, the queued task
// is cancelled, and committed effect teardowns run in list order.
func (e *Engine) Unmount(u *cells.Unit) {
	rec, ok := e.units[u]
	if !ok {
		return
	}
	if rec.task != nil {
		e.sched.CancelTask(rec.task)
		rec.task = nil
	}
	runTeardowns(u.Effects())
	delete(e.units, u)
	e.rec.Record(EventUnmount, u.Name(), lanes.NoLanes, "")
	e.log.Info("unit unmounted", "unit", u.Name())
}

// Value returns the unit's last committed output.
func (e *Engine) Value(u *cells.Unit) any {
	if rec, ok := e.units[u]; ok {
		return rec.value
	}
	return nil
}

// Err returns the protocol violation that quarantined the unit, or nil.
func (e *Engine) Err(u *cells.Unit) error {
	if rec, ok := e.units[u]; ok {
		return rec.failed
	}
	return nil
}

// StartTransition runs fn with mutations routed onto a freshly allocated
// transition lane. Nested transitions reuse the outer lane.
func (e *Engine) StartTransition(fn func()) {
	if e.transition != lanes.NoLane {
		fn()
		return
	}
	lane := e.alloc.NextTransitionLane()
	if e.entangleTransitions {
		e.entangle.EntangleAll(lanes.Merge(lane.Set(), e.pendingTransitions()))
	}
	e.rec.Record(EventTransition, "", lane.Set(), "")
	e.transition = lane
	defer func() { e.transition = lanes.NoLane }()
	fn()
}

// pendingTransitions collects transition lanes pending on any unit.
func (e *Engine) pendingTransitions() lanes.Lanes {
	all := lanes.NoLanes
	for _, rec := range e.units {
		all = lanes.Merge(all, rec.unit.PendingLanes())
	}
	return lanes.Intersect(all, lanes.TransitionLanes)
}

// nextRenderLanes picks the lanes for a pass: the most urgent pending
// lane, expanded through the entanglement table, intersected back with
// what is actually pending plus the entangled extras.
func (e *Engine) nextRenderLanes(pending lanes.Lanes) lanes.Lanes {
	highest := lanes.HighestPriority(pending)
	return e.entangle.Expand(highest.Set())
}

// renderUnit runs one full pass for the unit and commits it.
func (e *Engine) renderUnit(rec *unitRecord) {
	u := rec.unit
	pending := u.PendingLanes()
	if pending.IsEmpty() {
		return
	}
	renderLanes := e.nextRenderLanes(pending)
	e.rec.Record(EventPass, u.Name(), renderLanes, "")
	e.log.Debug("render pass", "unit", u.Name(), "lanes", renderLanes.String())

	pass, err := e.runtime.Evaluate(u, renderLanes)
	if err != nil {
		rec.failed = err
		u.SetPendingLanes(lanes.NoLanes)
		e.rec.Record(EventFatal, u.Name(), renderLanes, err.Error())
		e.log.Error("render pass aborted", "unit", u.Name(), "err", err)
		if e.onFatal != nil {
			e.onFatal(u, err)
		}
		return
	}

	u.Commit(pass)
	u.SetPendingLanes(pass.Remaining)
	rec.value = pass.Value

	ran := flushEffects(pass.Effects)
	if ran > 0 {
		e.rec.Record(EventEffects, u.Name(), lanes.NoLanes, fmt.Sprintf("ran=%d", ran))
	}
	for _, cb := range pass.Callbacks {
		cb()
	}

	e.rec.Record(EventCommit, u.Name(), renderLanes, fmt.Sprintf("%v", pass.Value))
	if e.onCommit != nil {
		e.onCommit(u, pass.Value)
	}

	if !pass.Remaining.IsEmpty() {
		e.rec.Record(EventCarryOver, u.Name(), pass.Remaining, "")
		e.ensureScheduled(rec)
	}
	e.entangle.Resolve(e.pendingTransitions())
}

// flushEffects walks the committed circular effect list, running the
// previous teardown and the new setup for every entry whose dependencies
// changed. Returns the number of setups run.
func flushEffects(head *cells.Effect) int {
	if head == nil {
		return 0
	}
	ran := 0
	eff := head
	for {
		if eff.Flags&cells.EffectNeedsRun != 0 {
			if eff.Inst.Teardown != nil {
				eff.Inst.Teardown()
				eff.Inst.Teardown = nil
			}
			if eff.Setup != nil {
				eff.Inst.Teardown = eff.Setup()
			}
			ran++
		}
		eff = eff.Next
		if eff == head {
			return ran
		}
	}
}

// runTeardowns runs every live teardown in the list, for unmount.
func runTeardowns(head *cells.Effect) {
	if head == nil {
		return
	}
	eff := head
	for {
		if eff.Inst != nil && eff.Inst.Teardown != nil {
			eff.Inst.Teardown()
			eff.Inst.Teardown = nil
		}
		eff = eff.Next
		if eff == head {
			return
		}
	}
}
