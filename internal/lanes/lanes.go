package lanes

import "math/bits"

// Lane is a single priority tag. Lanes is a set of them.
//
// Lower bit positions are more urgent. NoLane/NoLanes is the zero element
// for both types: it is a subset of every set, which is what lets a rebased
// update (re-tagged with NoLane) apply on every subsequent pass.
type Lane uint16

// Lanes is a bitmask set of Lane values.
type Lanes uint16

const (
	// NoLane is the distinguished "no priority" tag.
	NoLane Lane = 0

	// SyncLane work must complete in the turn that scheduled it.
	SyncLane Lane = 1 << 0

	// InputContinuousLane carries updates from continuous input
	// (drag, scroll) that should preempt default work.
	InputContinuousLane Lane = 1 << 1

	// DefaultLane is the lane for ordinary external updates.
	DefaultLane Lane = 1 << 2

	// TransitionLane1..4 carry deprioritized transition updates.
	// Transitions are assigned round-robin; see Allocator.
	TransitionLane1 Lane = 1 << 3
	TransitionLane2 Lane = 1 << 4
	TransitionLane3 Lane = 1 << 5
	TransitionLane4 Lane = 1 << 6

	// RetryLane re-runs work that was previously interrupted.
	RetryLane Lane = 1 << 7

	// IdleLane work runs only when nothing else is pending.
	IdleLane Lane = 1 << 8

	// OffscreenLane is the least urgent lane.
	OffscreenLane Lane = 1 << 9
)

const (
	// NoLanes is the empty set.
	NoLanes Lanes = 0

	// TransitionLanes is the set of all transition lanes.
	TransitionLanes Lanes = Lanes(TransitionLane1 | TransitionLane2 | TransitionLane3 | TransitionLane4)

	// AllLanes is the full domain.
	AllLanes Lanes = Lanes(SyncLane|InputContinuousLane|DefaultLane) |
		TransitionLanes |
		Lanes(RetryLane|IdleLane|OffscreenLane)
)

// Set returns the singleton set containing l.
func (l Lane) Set() Lanes { return Lanes(l) }

// In reports whether l is a member of set.
// NoLane is a member of every set, including the empty one.
func (l Lane) In(set Lanes) bool { return Lanes(l)&set == Lanes(l) }

// Merge returns the union of a and b.
func Merge(a, b Lanes) Lanes { return a | b }

// Intersect returns the lanes present in both a and b.
func Intersect(a, b Lanes) Lanes { return a & b }

// Subtract returns the lanes of a that are not in b.
func Subtract(a, b Lanes) Lanes { return a &^ b }

// IsSubsetOf reports whether every lane of l is present in set.
func (l Lanes) IsSubsetOf(set Lanes) bool { return l&set == l }

// IsEmpty reports whether the set contains no lanes.
func (l Lanes) IsEmpty() bool { return l == NoLanes }

// HighestPriority returns the most urgent lane in the set, or NoLane
// for the empty set. Urgency is the lowest set bit.
func HighestPriority(l Lanes) Lane {
	return Lane(l & -l)
}

// AtOrAbove returns the lanes of set that are at least as urgent as pivot.
// With pivot == NoLane the result is empty.
func AtOrAbove(set Lanes, pivot Lane) Lanes {
	if pivot == NoLane {
		return NoLanes
	}
	// pivot's bit and every bit below it
	mask := Lanes(pivot) | (Lanes(pivot) - 1)
	return set & mask
}

// Count returns the number of lanes in the set.
func Count(l Lanes) int { return bits.OnesCount16(uint16(l)) }

// String renders a set for logs and traces, most urgent lane first.
func (l Lanes) String() string {
	if l == NoLanes {
		return "none"
	}
	names := []struct {
		lane Lane
		name string
	}{
		{SyncLane, "sync"},
		{InputContinuousLane, "input-continuous"},
		{DefaultLane, "default"},
		{TransitionLane1, "transition-1"},
		{TransitionLane2, "transition-2"},
		{TransitionLane3, "transition-3"},
		{TransitionLane4, "transition-4"},
		{RetryLane, "retry"},
		{IdleLane, "idle"},
		{OffscreenLane, "offscreen"},
	}
	out := ""
	for _, n := range names {
		if n.lane.In(l) && n.lane != NoLane {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	return out
}

// String renders a single lane.
func (l Lane) String() string { return Lanes(l).String() }
