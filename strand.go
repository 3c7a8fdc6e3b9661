// Package strand is an incremental, priority-aware computation engine: a
// cooperative time-slicing scheduler, priority-tagged update logs with
// deterministic replay, and per-unit state cells, behind a small typed
// facade.
package strand

import (
	"context"

	"github.com/strandworks/strand/internal/cells"
	"github.com/strandworks/strand/internal/engine"
	"github.com/strandworks/strand/internal/sched"
)

func as[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}

	return v.(T)
}

// Engine owns the event loop and the render units mounted on it.
type Engine struct {
	host *sched.LoopHost
	core *engine.Engine
}

// New creates an engine on its own event loop. Call Run to start it.
func New() *Engine {
	host := sched.NewLoopHost()
	return &Engine{
		host: host,
		core: engine.New(host),
	}
}

// Run drives the event loop until ctx is cancelled or Stop is called.
// Everything the engine does happens on the calling goroutine.
func (e *Engine) Run(ctx context.Context) error {
	return e.host.Run(ctx)
}

// Stop shuts the event loop down after the current turn.
func (e *Engine) Stop() {
	e.host.Stop()
}

// Do runs fn on the engine's loop goroutine as its own turn. Mounting
// units, unmounting them, and calling setters must all happen there.
func (e *Engine) Do(fn func()) {
	e.host.RequestTurn(fn)
}

// StartTransition runs fn with its mutations routed onto a transition
// lane, so urgent work can overtake them.
func (e *Engine) StartTransition(fn func()) {
	e.core.StartTransition(fn)
}

// Ctx is the handle a unit body uses to reach its state cells. Valid
// only during the body call it was passed to.
type Ctx struct {
	inv *cells.Invocation
}

// Unit is a mounted render unit producing values of type T.
type Unit[T any] struct {
	e *engine.Engine
	u *cells.Unit
}

// Mount registers body as a render unit and schedules its first pass.
// Must be called on the engine's loop goroutine (see Do).
func Mount[T any](e *Engine, name string, body func(*Ctx) T) *Unit[T] {
	u := e.core.Mount(name, func(inv *cells.Invocation) any {
		return body(&Ctx{inv: inv})
	})
	return &Unit[T]{e: e.core, u: u}
}

// Value returns the unit's last committed output.
func (u *Unit[T]) Value() T {
	return as[T](u.e.Value(u.u))
}

// Err returns the protocol violation that stopped the unit, or nil.
func (u *Unit[T]) Err() error {
	return u.e.Err(u.u)
}

// Unmount tears the unit down, running its effect teardowns.
func (u *Unit[T]) Unmount() {
	u.e.Unmount(u.u)
}

// UseState is the basic value cell: the current value and a setter. The
// setter schedules a new pass at the priority of its calling context,
// unless the new value is identical to the current one and nothing else
// is pending.
func UseState[T any](c *Ctx, initial T) (T, func(T)) {
	v, set := c.inv.State(initial)
	return as[T](v), func(next T) { set(next) }
}

// UseReducer is the generalized state cell: next = reducer(prev, action).
func UseReducer[S, A any](c *Ctx, reducer func(S, A) S, initial S) (S, func(A)) {
	v, dispatch := c.inv.Reducer(func(prev, action any) any {
		return reducer(as[S](prev), as[A](action))
	}, initial)
	return as[S](v), func(action A) { dispatch(action) }
}

// UseEffect registers setup to run after commit whenever deps changed.
// Setup may return a teardown, run before the next setup and at unmount.
// Nil deps re-run every pass; an empty slice runs on mount only.
func UseEffect(c *Ctx, setup func() func(), deps []any) {
	c.inv.Effect(setup, deps)
}

// UseMemo caches compute's result until deps change.
func UseMemo[T any](c *Ctx, compute func() T, deps []any) T {
	return as[T](c.inv.Memo(func() any { return compute() }, deps))
}

// Ref is a typed mutable box with stable identity across invocations.
// Writing it never schedules work.
type Ref[T any] struct {
	ref *cells.Ref
}

// UseRef returns the unit's ref cell at this position.
func UseRef[T any](c *Ctx, initial T) *Ref[T] {
	return &Ref[T]{ref: c.inv.RefCell(initial)}
}

// Get reads the box.
func (r *Ref[T]) Get() T { return as[T](r.ref.Current) }

// Set writes the box.
func (r *Ref[T]) Set(v T) { r.ref.Current = v }
