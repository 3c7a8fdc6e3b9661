// Package updatelog implements the versioned, priority-tagged mutation log
// for a single state owner.
//
// A log accumulates prioritized updates against a base value and replays
// them deterministically: updates always apply in insertion order, and an
// update whose lane is not part of the pass being rendered is skipped and
// carried over rather than dropped. Applied updates that follow a skipped
// one are re-recorded unconditionally applicable (a rebase), so a later
// pass replays them on top of the previously skipped work. Given a fixed
// insertion order and pure mutators, the final value once every lane has
// drained is independent of how many passes ran or in what order lanes
// were serviced.
//
// ARCHITECTURE:
//
// Update nodes live in an arena addressed by index, never by pointer. The
// two copies of a log that exist during a pass (the committed "current"
// log and the "work-in-progress" log) hold head/tail indices into the
// same arena, and both reference one shared append side (the circular
// pending list). Appends therefore survive no matter which copy is
// discarded, and detaching the pending run is an index operation with no
// pointer surgery to go wrong.
package updatelog

import "github.com/strandworks/strand/internal/lanes"

// Mutator computes the next value from the previous one and the update's
// argument. Mutators must be pure: a rebased update may be applied twice
// (once in a preview pass, once for real), never reordered or dropped.
type Mutator func(prev, arg any) any

// nilIdx marks the absence of a node.
const nilIdx = int32(-1)

// node is one link in the log. The pending list is circular while open
// for append (tail points back to head) and is unlinked into a straight
// run exactly once, when drained.
type node struct {
	lane     lanes.Lane
	reducer  Mutator // nil means: replace with arg
	arg      any
	hasEager bool
	eager    any
	callback func()
	next     int32
}

// arena owns every node ever appended to one owner's log pair.
type arena struct {
	nodes []node
}

func (a *arena) alloc(n node) int32 {
	a.nodes = append(a.nodes, n)
	return int32(len(a.nodes) - 1)
}

func (a *arena) at(i int32) *node { return &a.nodes[i] }

// pending is the shared append side of a log pair: the circular pending
// list plus bookkeeping for the eager-precompute fast path. Exactly one
// pending exists per state owner; current and work-in-progress logs both
// point at it.
type pending struct {
	arena *arena
	tail  int32 // last appended node; nodes[tail].next is the head
	lanes lanes.Lanes

	// Last rendered reducer and value, for eager precompute when the
	// owner has no other outstanding work.
	lastReducer Mutator
	lastValue   any
	hasLast     bool

	// dispatch is the stable mutation entry point bound to this owner,
	// stored here so every copy of the log hands back the same function.
	dispatch any
}

// Update describes one mutation request.
type Update struct {
	// Lane gates visibility: the update applies only in a pass whose
	// render lanes include it.
	Lane lanes.Lane

	// Reducer computes the next value from (prev, Arg). A nil Reducer
	// means Arg is a replacement value.
	Reducer Mutator

	// Arg is the reducer argument, or the replacement value.
	Arg any

	// HasEager marks that Eager holds the precomputed result. It is only
	// set when the update was appended to an otherwise empty log, so the
	// cached value is valid whenever the update applies.
	HasEager bool
	Eager    any

	// Callback, if set, is collected when the update is applied at full
	// priority and handed back from Process.
	Callback func()
}

// Log is one copy, current or work-in-progress, of a state owner's
// update log. Copies are cheap: base bookkeeping is copied, the arena and
// pending side are shared.
type Log struct {
	pending *pending

	baseValue any

	// Carry-over run of unprocessed updates, in insertion order.
	firstBase, lastBase int32

	callbacks []func()
}

// New creates the log for a state owner, with its own arena. Called once
// at the owner's first evaluation; the log persists for the owner's
// lifetime.
func New(initial any) *Log {
	return &Log{
		pending:   &pending{arena: &arena{}, tail: nilIdx},
		baseValue: initial,
		firstBase: nilIdx,
		lastBase:  nilIdx,
	}
}

// Clone returns a work-in-progress copy for a speculative pass. The copy
// shares the arena and the pending append side; base bookkeeping is
// independent, so discarding the copy loses nothing.
func (l *Log) Clone() *Log {
	return &Log{
		pending:   l.pending,
		baseValue: l.baseValue,
		firstBase: l.firstBase,
		lastBase:  l.lastBase,
	}
}

// BaseValue returns the committed base value.
func (l *Log) BaseValue() any { return l.baseValue }

// PendingLanes returns the lanes accumulated by appends that have not yet
// fully drained. Advisory: the scheduler of the owning unit is the source
// of truth for what is scheduled.
func (l *Log) PendingLanes() lanes.Lanes { return l.pending.lanes }

// HasCarryOver reports whether a previous pass skipped updates that are
// still waiting to be re-applied.
func (l *Log) HasCarryOver() bool { return l.firstBase != nilIdx }

// SetLastRendered records the reducer and value of the owner's latest
// finished render, enabling the eager-precompute path.
func (l *Log) SetLastRendered(reducer Mutator, value any) {
	l.pending.lastReducer = reducer
	l.pending.lastValue = value
	l.pending.hasLast = true
}

// SetDispatch stores the owner's stable mutation entry point.
func (l *Log) SetDispatch(d any) { l.pending.dispatch = d }

// Dispatch returns the stored mutation entry point, or nil.
func (l *Log) Dispatch() any { return l.pending.dispatch }

// EagerCompute applies the last rendered reducer to the last rendered
// value. ok is false when no render has finished yet.
func (l *Log) EagerCompute(arg any) (result any, prev any, ok bool) {
	p := l.pending
	if !p.hasLast || p.lastReducer == nil {
		return nil, nil, false
	}
	return p.lastReducer(p.lastValue, arg), p.lastValue, true
}

// Append splices an update into the shared circular pending list and
// returns the accumulated pending lanes. Visible to both log copies
// immediately, including a drain of this owner already in flight, which
// picks the update up before finishing.
func (l *Log) Append(u Update) lanes.Lanes {
	p := l.pending
	a := p.arena

	idx := a.alloc(node{
		lane:     u.Lane,
		reducer:  u.Reducer,
		arg:      u.Arg,
		hasEager: u.HasEager,
		eager:    u.Eager,
		callback: u.Callback,
		next:     nilIdx,
	})

	if p.tail == nilIdx {
		a.at(idx).next = idx // circular: points at itself
	} else {
		a.at(idx).next = a.at(p.tail).next
		a.at(p.tail).next = idx
	}
	p.tail = idx

	p.lanes = lanes.Merge(p.lanes, u.Lane.Set())
	return p.lanes
}
