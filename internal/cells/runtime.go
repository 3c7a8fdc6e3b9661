// Package cells implements the per-unit state-threading runtime: the
// ordered sequence of state cells a render unit reads and writes across
// repeated invocations.
//
// Each invocation resolves a dispatch strategy exactly once: mount (no
// committed list), update (walk the committed list), or re-render (a
// synchronous self-mutation restarted the body). The strategy is threaded
// through every primitive call instead of swapping dispatcher state
// mid-render.
// Call-order stability is enforced: the cell visited at position N must
// be the same primitive kind on every invocation, and the committed list
// may neither be under- nor over-walked without a remount.
package cells

import (
	"github.com/strandworks/strand/internal/lanes"
	"github.com/strandworks/strand/internal/updatelog"
)

// Strategy selects how primitive calls resolve their cells during one
// invocation.
type Strategy uint8

const (
	// StrategyInvalid rejects all primitive calls; active outside render.
	StrategyInvalid Strategy = iota
	// StrategyMount appends fresh cells to the work-in-progress list.
	StrategyMount
	// StrategyUpdate pairs committed cells with lazily cloned twins.
	StrategyUpdate
	// StrategyRerender rewalks the work-in-progress list from its head
	// without touching the committed list.
	StrategyRerender
)

// MaxRerenders bounds synchronous self-mutation loops. A body that is
// still scheduling render-phase updates after this many attempts is
// almost certainly an accidental infinite loop.
const MaxRerenders = 25

// Scheduler is what the runtime needs from its scheduling collaborator:
// a lane for the calling context and a way to request a new pass.
type Scheduler interface {
	// RequestLane derives the lane for a mutation issued right now.
	RequestLane() lanes.Lane

	// ScheduleUnit requests that the unit be re-evaluated at the lane.
	ScheduleUnit(u *Unit, lane lanes.Lane)
}

// Runtime evaluates render units. One runtime serves one engine; like
// the rest of the core it is single-threaded by design and unlocked.
type Runtime struct {
	sched Scheduler

	// rendering is the draining-owner token: the unit whose body is
	// currently executing. Updates issued against it are render-phase
	// updates; updates against any other unit take the scheduling path.
	rendering   *Unit
	renderLanes lanes.Lanes
	strategy    Strategy

	// List cursors for the invocation in progress.
	currentCell *Cell // last visited committed cell
	wipHead     *Cell // head of the work-in-progress list
	wipCell     *Cell // last visited work-in-progress cell

	// Per-pass effect list under construction.
	firstEffect, lastEffect *Effect

	// Carry-over lanes and applied-update callbacks collected from cell
	// drains this pass.
	remaining lanes.Lanes
	callbacks []func()

	didScheduleRenderPhase bool
	rerenders              int
}

// NewRuntime creates a runtime that reports mutations to sched.
func NewRuntime(sched Scheduler) *Runtime {
	return &Runtime{sched: sched}
}

// Strategy returns the dispatch strategy of the invocation in progress,
// or StrategyInvalid between invocations.
func (r *Runtime) Strategy() Strategy { return r.strategy }

// Rendering returns the unit currently being evaluated, or nil.
func (r *Runtime) Rendering() *Unit { return r.rendering }

// Pass is the outcome of one full evaluation of a unit: the body's
// output, the new cell list awaiting commit, the sealed effect list, the
// lanes skipped during cell drains, and the applied-update callbacks.
//
// A pass is speculative until Commit: discarding it loses nothing,
// because pending updates live on the shared append side of each cell's
// log.
type Pass struct {
	Value     any
	head      *Cell
	Effects   *Effect
	Remaining lanes.Lanes
	Callbacks []func()
}

// Evaluate runs the unit's body once (plus bounded re-renders) at the
// given render lanes and returns the resulting pass.
//
// Protocol violations abort the evaluation and are returned as a
// *ProtocolError; any other panic from the body propagates unchanged.
func (r *Runtime) Evaluate(u *Unit, renderLanes lanes.Lanes) (pass *Pass, err error) {
	defer func() {
		r.rendering = nil
		r.strategy = StrategyInvalid
		r.renderLanes = lanes.NoLanes
		r.currentCell, r.wipHead, r.wipCell = nil, nil, nil
		r.firstEffect, r.lastEffect = nil, nil
		r.callbacks = nil

		if rec := recover(); rec != nil {
			if pe, ok := rec.(*ProtocolError); ok {
				pass, err = nil, pe
				return
			}
			panic(rec)
		}
	}()

	r.rendering = u
	r.renderLanes = renderLanes
	r.rerenders = 0

	if u.head == nil {
		r.strategy = StrategyMount
	} else {
		r.strategy = StrategyUpdate
	}

	var out any
	for {
		r.didScheduleRenderPhase = false
		r.currentCell = nil
		r.wipCell = nil
		r.firstEffect, r.lastEffect = nil, nil
		r.remaining = lanes.NoLanes
		r.callbacks = nil

		out = u.body(&Invocation{r: r, unit: u})

		if !r.didScheduleRenderPhase {
			break
		}

		r.rerenders++
		if r.rerenders >= MaxRerenders {
			panic(protocolErr(ErrCodeTooManyRerenders, u.name,
				"body issued render-phase updates on %d consecutive attempts", MaxRerenders))
		}
		// Restart from the head of the work-in-progress list; the
		// committed list is untouched.
		r.strategy = StrategyRerender
	}

	r.checkCellCount(u)

	return &Pass{
		Value:     out,
		head:      r.wipHead,
		Effects:   r.sealEffects(),
		Remaining: r.remaining,
		Callbacks: r.callbacks,
	}, nil
}

// Commit installs a finished pass as the unit's committed state. The
// caller (the commit collaborator) is responsible for flushing the
// effect list afterwards.
func (u *Unit) Commit(p *Pass) {
	u.head = p.head
	u.effects = p.Effects
}

// checkCellCount enforces the shrinking side of call-order stability:
// committed cells that were not visited this pass mean the body dropped
// primitive calls without a remount.
func (r *Runtime) checkCellCount(u *Unit) {
	if r.strategy == StrategyMount {
		return
	}
	var unvisited *Cell
	if r.currentCell == nil {
		unvisited = u.head
	} else {
		unvisited = r.currentCell.next
	}
	if unvisited != nil {
		panic(protocolErr(ErrCodeFewerCells, u.name,
			"body visited fewer cells than the committed list holds"))
	}
}

// nextCell returns the work-in-progress cell for the next primitive call,
// creating or pairing as the strategy dictates.
func (r *Runtime) nextCell(kind cellKind) *Cell {
	u := r.rendering
	if u == nil || r.strategy == StrategyInvalid {
		panic(protocolErr(ErrCodeCellOutsideRender, "",
			"cell primitive called outside a render body"))
	}

	if r.strategy == StrategyMount {
		cell := &Cell{kind: kind}
		if r.wipCell == nil {
			r.wipHead = cell
		} else {
			r.wipCell.next = cell
		}
		r.wipCell = cell
		return cell
	}

	// Update / re-render: prefer an existing work-in-progress cell (a
	// resumed or restarted pass); otherwise pair the next committed cell
	// with a fresh clone.
	var nextCurrent *Cell
	if r.currentCell == nil {
		nextCurrent = u.head
	} else {
		nextCurrent = r.currentCell.next
	}

	var nextWip *Cell
	if r.wipCell == nil {
		nextWip = r.wipHead
	} else {
		nextWip = r.wipCell.next
	}

	var cell *Cell
	if nextWip != nil {
		cell = nextWip
		r.wipCell = nextWip
		r.currentCell = nextCurrent // may be nil on a mount re-render
	} else {
		if nextCurrent == nil {
			panic(protocolErr(ErrCodeMoreCells, u.name,
				"body visited more cells than the committed list holds"))
		}
		r.currentCell = nextCurrent
		cell = nextCurrent.clone()
		if r.wipCell == nil {
			r.wipHead = cell
		} else {
			r.wipCell.next = cell
		}
		r.wipCell = cell
	}

	if cell.kind != kind {
		panic(protocolErr(ErrCodeCellKindMismatch, u.name,
			"expected a %s cell at this position, found %s", kind, cell.kind))
	}
	return cell
}

// currentLog returns the committed counterpart log for the cell just
// paired, or nil when none exists (mount re-render).
func (r *Runtime) currentLog() *updatelog.Log {
	if r.currentCell == nil {
		return nil
	}
	return r.currentCell.log
}

// pushEffect appends an effect record to the per-pass list.
func (r *Runtime) pushEffect(flags EffectFlags, setup func() func(), inst *EffectInstance, deps []any) *Effect {
	e := &Effect{Flags: flags, Setup: setup, Inst: inst, Deps: deps}
	if r.lastEffect == nil {
		r.firstEffect = e
	} else {
		r.lastEffect.Next = e
	}
	r.lastEffect = e
	return e
}

// sealEffects closes the per-pass effect list into a circle and returns
// its head, or nil when the pass registered no effects.
func (r *Runtime) sealEffects() *Effect {
	if r.firstEffect == nil {
		return nil
	}
	r.lastEffect.Next = r.firstEffect
	return r.firstEffect
}
