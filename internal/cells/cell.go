package cells

import (
	"github.com/strandworks/strand/internal/lanes"
	"github.com/strandworks/strand/internal/updatelog"
)

// cellKind tags the primitive a cell belongs to. The kind at each list
// position must be stable across invocations; a mismatch is the same
// contract breach as a change in cell count.
type cellKind uint8

const (
	kindState cellKind = iota + 1
	kindEffect
	kindMemo
	kindRef
)

func (k cellKind) String() string {
	switch k {
	case kindState:
		return "state"
	case kindEffect:
		return "effect"
	case kindMemo:
		return "memo"
	case kindRef:
		return "ref"
	default:
		return "unknown"
	}
}

// Cell is one slot in a render unit's private, call-order-stable sequence
// of primitive state. Two parallel lists exist during a pass, committed
// and work-in-progress, cloned lazily, cell by cell, as the
// work-in-progress list is walked.
type Cell struct {
	kind  cellKind
	value any

	// log is the cell's update log; only state cells carry one.
	log *updatelog.Log

	next *Cell
}

// clone produces the work-in-progress twin of a committed cell. The
// committed cell stays externally visible until commit, so it is never
// mutated in place; the twin's log copy shares the arena and pending side
// with the committed one.
func (c *Cell) clone() *Cell {
	twin := &Cell{kind: c.kind, value: c.value}
	if c.log != nil {
		twin.log = c.log.Clone()
	}
	return twin
}

// Body is a render unit's evaluation function. It is invoked repeatedly
// over the unit's lifetime and must call its cell primitives in the same
// order every time.
type Body func(inv *Invocation) any

// Unit is a render unit instance: the body plus the committed cell list
// and scheduling bookkeeping.
type Unit struct {
	name string
	body Body

	// head is the committed cell list. Nil until first commit; its
	// absence is what selects the mount strategy.
	head *Cell

	// effects is the committed circular effect list, consumed by the
	// commit collaborator.
	effects *Effect

	// pendingLanes accumulates lanes of scheduled updates. Maintained by
	// the scheduling collaborator; cleared down to the carry-over lanes
	// when a pass commits.
	pendingLanes lanes.Lanes
}

// NewUnit creates a render unit with the given diagnostic name.
func NewUnit(name string, body Body) *Unit {
	return &Unit{name: name, body: body}
}

// Name returns the unit's diagnostic name.
func (u *Unit) Name() string { return u.name }

// Mounted reports whether the unit has committed at least one pass.
func (u *Unit) Mounted() bool { return u.head != nil }

// PendingLanes returns the lanes with scheduled, uncommitted updates.
func (u *Unit) PendingLanes() lanes.Lanes { return u.pendingLanes }

// MergePendingLanes adds lanes to the pending set.
func (u *Unit) MergePendingLanes(l lanes.Lanes) {
	u.pendingLanes = lanes.Merge(u.pendingLanes, l)
}

// SetPendingLanes replaces the pending set; used at commit to retain only
// the carry-over lanes.
func (u *Unit) SetPendingLanes(l lanes.Lanes) { u.pendingLanes = l }

// Effects returns the committed circular effect list, or nil.
func (u *Unit) Effects() *Effect { return u.effects }

// EffectFlags mark what the commit collaborator must do with an effect.
type EffectFlags uint8

const (
	// EffectNeedsRun means dependencies changed (or mounted): run the
	// teardown of the previous setup, then the new setup.
	EffectNeedsRun EffectFlags = 1 << 0
)

// EffectInstance carries an effect's teardown across passes. It is shared
// between the committed and work-in-progress cells so the teardown
// registered by an old setup survives a discarded pass.
type EffectInstance struct {
	Teardown func()
}

// Effect is one entry in a unit's circular per-pass effect list.
type Effect struct {
	Flags EffectFlags
	Setup func() func()
	Inst  *EffectInstance
	Deps  []any
	Next  *Effect
}

// effectState is the value stored in an effect cell.
type effectState struct {
	inst *EffectInstance
	deps []any
}

// memoState is the value stored in a memo cell.
type memoState struct {
	value any
	deps  []any
}

// Ref is a mutable box that keeps identity across invocations. Writing
// it never schedules work.
type Ref struct {
	Current any
}
