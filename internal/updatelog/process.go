package updatelog

import "github.com/strandworks/strand/internal/lanes"

// Result is the outcome of draining a log at a set of render lanes.
type Result struct {
	// Value is the externally visible value for this pass: every
	// applicable update applied in insertion order.
	Value any

	// RemainingLanes are the lanes of updates that were skipped and
	// carried over for a later pass. Empty when the drain was complete.
	RemainingLanes lanes.Lanes

	// Callbacks collected from updates applied this pass, in order.
	Callbacks []func()
}

// Process drains the log against renderLanes.
//
// l is the work-in-progress copy being computed; current is the committed
// counterpart (nil on first mount, when no distinct counterpart exists).
// The detached pending run is appended to both copies' carry-over tails,
// so the updates survive even if this pass is later discarded.
//
// An update whose lane is not a subset of renderLanes is skipped: it is
// cloned onto the new carry-over list, and the base value is frozen at
// the value accumulated so far (first skip only). An applicable update
// that follows a skip is additionally re-cloned with NoLane (about to be
// committed, it must never be skipped again) before being applied; that
// replay-on-top is the rebase. If appends land on the pending list while
// the walk is in progress, the walk is extended rather than cut short;
// processing finishes only when a full pass produces no new work.
func (l *Log) Process(current *Log, renderLanes lanes.Lanes) Result {
	a := l.pending.arena

	// Step 1: detach the shared pending circular run onto the carry-over
	// tails of both copies.
	if l.pending.tail != nilIdx {
		first, tail := l.detachPending()
		l.appendRun(first, tail)
		if current != nil && current != l {
			current.appendRun(first, tail)
		}
	}

	if l.firstBase == nilIdx {
		return Result{Value: l.baseValue}
	}

	// Step 2: walk the unprocessed run from the base value.
	value := l.baseValue
	var newBase any
	haveNewBase := false
	newFirst, newLast := nilIdx, nilIdx
	remaining := lanes.NoLanes

	idx := l.firstBase
	for idx != nilIdx {
		// Copy the node: alloc below may grow the arena slice.
		n := *a.at(idx)

		if !n.lane.Set().IsSubsetOf(renderLanes) {
			// Skipped: carry over, freezing the base at the first skip.
			clone := a.alloc(node{
				lane:     n.lane,
				reducer:  n.reducer,
				arg:      n.arg,
				hasEager: n.hasEager,
				eager:    n.eager,
				callback: n.callback,
				next:     nilIdx,
			})
			if newLast == nilIdx {
				newFirst = clone
				haveNewBase = true
				newBase = value
			} else {
				a.at(newLast).next = clone
			}
			newLast = clone
			remaining = lanes.Merge(remaining, n.lane.Set())
		} else {
			if newLast != nilIdx {
				// Rebase: about to commit, so re-record as
				// unconditionally applicable for future passes.
				clone := a.alloc(node{
					lane:     lanes.NoLane,
					reducer:  n.reducer,
					arg:      n.arg,
					hasEager: n.hasEager,
					eager:    n.eager,
					next:     nilIdx,
				})
				a.at(newLast).next = clone
				newLast = clone
			}
			value = applyNode(n, value)
			if n.callback != nil {
				l.callbacks = append(l.callbacks, n.callback)
			}
		}

		next := n.next
		if next == nilIdx {
			// Step 4: re-entrant appends during the walk extend it.
			if l.pending.tail == nilIdx {
				break
			}
			first, tail := l.detachPending()
			prevLast := l.lastBase
			l.appendRun(first, tail)
			if current != nil && current != l && current.lastBase == prevLast {
				current.lastBase = tail
			}
			next = first
		}
		idx = next
	}

	// Step 3: persist. With no skips, the new base is simply the final
	// value and the carry-over is empty.
	if !haveNewBase {
		newBase = value
	}
	l.baseValue = newBase
	l.firstBase, l.lastBase = newFirst, newLast
	l.pending.lanes = remaining

	cbs := l.callbacks
	l.callbacks = nil

	return Result{Value: value, RemainingLanes: remaining, Callbacks: cbs}
}

// detachPending cuts the circular pending run into a straight one and
// returns its head and tail indices.
func (l *Log) detachPending() (first, tail int32) {
	a := l.pending.arena
	tail = l.pending.tail
	l.pending.tail = nilIdx
	first = a.at(tail).next
	a.at(tail).next = nilIdx
	return first, tail
}

// appendRun links a straight run onto the log's carry-over tail.
func (l *Log) appendRun(first, tail int32) {
	a := l.pending.arena
	if l.lastBase == nilIdx {
		l.firstBase = first
	} else if l.lastBase != tail {
		a.at(l.lastBase).next = first
	}
	l.lastBase = tail
}

// applyNode computes an update's effect on prev. A cached eager result is
// reused; it was computed against an empty log, so the update is
// necessarily first in any walk that applies it.
func applyNode(n node, prev any) any {
	if n.hasEager {
		return n.eager
	}
	if n.reducer != nil {
		return n.reducer(prev, n.arg)
	}
	return n.arg
}
