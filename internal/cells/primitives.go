package cells

import (
	"github.com/strandworks/strand/internal/lanes"
	"github.com/strandworks/strand/internal/updatelog"
)

// Invocation is the handle a render body uses to reach its cells. It is
// valid only for the duration of one body call.
type Invocation struct {
	r    *Runtime
	unit *Unit
}

// Setter writes a value cell. The argument is either a replacement value
// or a func(prev any) any applied to the previous value.
type Setter func(action any)

// Dispatch feeds an action to a reducer cell.
type Dispatch func(action any)

// basicReducer is the value-cell reducer: replace, or call the function
// with the previous value.
func basicReducer(prev, action any) any {
	if f, ok := action.(func(any) any); ok {
		return f(prev)
	}
	return action
}

// State is the basic value-and-setter primitive.
//
// On mount the cell stores initial and creates its update log. The
// returned setter derives a lane from the current priority context; a
// call made while this unit's own body is running is a render-phase
// update and loops inside the pass instead of going through the
// scheduler. When the owner has no outstanding work at all, the new
// value is eagerly precomputed: an identical result is still recorded
// (entangled lanes may need it) but schedules nothing.
func (inv *Invocation) State(initial any) (any, Setter) {
	value, dispatch := inv.Reducer(basicReducer, initial)
	return value, Setter(dispatch)
}

// Reducer is the generalized state primitive: next = reducer(prev, action).
func (inv *Invocation) Reducer(reducer updatelog.Mutator, initial any) (any, Dispatch) {
	r := inv.r

	if r.strategy == StrategyMount {
		cell := r.nextCell(kindState)
		log := updatelog.New(initial)
		cell.log = log
		cell.value = initial
		log.SetLastRendered(reducer, initial)

		dispatch := r.makeDispatch(inv.unit, log, reducer)
		log.SetDispatch(dispatch)

		// Drain anything appended between unit creation and first
		// evaluation, render-phase updates included.
		value := r.drainCell(cell, reducer)
		return value, dispatch
	}

	cell := r.nextCell(kindState)
	if cell.log == nil {
		panic(protocolErr(ErrCodeUninitializedLog, inv.unit.name,
			"state cell has no update log"))
	}
	dispatch, _ := cell.log.Dispatch().(Dispatch)
	value := r.drainCell(cell, reducer)
	return value, dispatch
}

// drainCell processes the cell's log at the render lanes and refreshes
// the cell and eager-path bookkeeping.
func (r *Runtime) drainCell(cell *Cell, reducer updatelog.Mutator) any {
	res := cell.log.Process(r.currentLog(), r.renderLanes)
	cell.value = res.Value
	cell.log.SetLastRendered(reducer, res.Value)

	r.remaining = lanes.Merge(r.remaining, res.RemainingLanes)
	r.callbacks = append(r.callbacks, res.Callbacks...)
	return res.Value
}

// makeDispatch builds the stable dispatch function for a state cell. It
// captures the mount-time log handle: every later copy shares the same
// append side, so the handle never goes stale.
func (r *Runtime) makeDispatch(u *Unit, log *updatelog.Log, reducer updatelog.Mutator) Dispatch {
	return func(action any) {
		lane := r.sched.RequestLane()

		if r.rendering == u {
			// Render-phase update: visible to the in-flight drain and
			// the bounded re-render loop, never the scheduler.
			log.Append(updatelog.Update{Lane: lane, Reducer: reducer, Arg: action})
			r.didScheduleRenderPhase = true
			return
		}

		upd := updatelog.Update{Lane: lane, Reducer: reducer, Arg: action}

		if u.pendingLanes.IsEmpty() && log.PendingLanes().IsEmpty() {
			// Owner is fully idle: precompute eagerly with the last
			// rendered reducer. Idleness is the owner's lanes plus the
			// shared pending run; a pass that skips updates always
			// leaves remaining lanes on the owner.
			if eager, prev, ok := log.EagerCompute(action); ok {
				upd.HasEager, upd.Eager = true, eager
				log.Append(upd)
				if is(eager, prev) {
					// Bail out: recorded, not scheduled.
					return
				}
				r.sched.ScheduleUnit(u, lane)
				return
			}
		}

		log.Append(upd)
		r.sched.ScheduleUnit(u, lane)
	}
}

// Effect registers setup to run after commit whenever deps changed since
// the previous pass. Setup may return a teardown, run before the next
// setup and at unmount. A nil deps list re-runs every pass; an empty one
// runs on mount only.
func (inv *Invocation) Effect(setup func() func(), deps []any) {
	r := inv.r

	if r.strategy == StrategyMount {
		cell := r.nextCell(kindEffect)
		inst := &EffectInstance{}
		cell.value = &effectState{inst: inst, deps: deps}
		r.pushEffect(EffectNeedsRun, setup, inst, deps)
		return
	}

	cell := r.nextCell(kindEffect)
	prev := cell.value.(*effectState)
	cell.value = &effectState{inst: prev.inst, deps: deps}

	if depsEqual(prev.deps, deps) {
		// Unchanged: keep the record (the commit collaborator owns the
		// whole list) but do not re-run.
		r.pushEffect(0, setup, prev.inst, deps)
		return
	}
	r.pushEffect(EffectNeedsRun, setup, prev.inst, deps)
}

// Memo caches a computed value until deps change.
func (inv *Invocation) Memo(compute func() any, deps []any) any {
	r := inv.r

	if r.strategy == StrategyMount {
		cell := r.nextCell(kindMemo)
		value := compute()
		cell.value = &memoState{value: value, deps: deps}
		return value
	}

	cell := r.nextCell(kindMemo)
	prev := cell.value.(*memoState)
	if depsEqual(prev.deps, deps) {
		return prev.value
	}
	value := compute()
	cell.value = &memoState{value: value, deps: deps}
	return value
}

// RefCell returns a mutable box with stable identity across invocations.
func (inv *Invocation) RefCell(initial any) *Ref {
	r := inv.r

	if r.strategy == StrategyMount {
		cell := r.nextCell(kindRef)
		ref := &Ref{Current: initial}
		cell.value = ref
		return ref
	}

	cell := r.nextCell(kindRef)
	return cell.value.(*Ref)
}
