package lanes

// Entanglement records lanes that must be rendered together.
//
// Entangling lane A with set S means: any render pass whose lanes include A
// must also include S. Entanglement is symmetric in practice because callers
// entangle both directions, but the table itself is directional.
//
// The table is owned by a single root and mutated only from the engine's
// work loop, so it carries no locking.
type Entanglement struct {
	entangled map[Lane]Lanes
}

// NewEntanglement returns an empty table.
func NewEntanglement() *Entanglement {
	return &Entanglement{entangled: make(map[Lane]Lanes)}
}

// Entangle records that any pass rendering lane must also render with.
func (e *Entanglement) Entangle(lane Lane, with Lanes) {
	e.entangled[lane] = Merge(e.entangled[lane], Subtract(with, lane.Set()))
}

// EntangleAll entangles every lane in the set with every other, so the
// whole group always resolves together.
func (e *Entanglement) EntangleAll(set Lanes) {
	for bit := Lane(1); bit != 0; bit <<= 1 {
		if bit.In(set) {
			e.Entangle(bit, set)
		}
	}
}

// Expand returns the closure of set under the entanglement table: the
// smallest superset of set such that every entangled partner of a member
// is also a member.
func (e *Entanglement) Expand(set Lanes) Lanes {
	for {
		grown := set
		for bit := Lane(1); bit != 0; bit <<= 1 {
			if bit.In(grown) {
				grown = Merge(grown, e.entangled[bit])
			}
		}
		if grown == set {
			return set
		}
		set = grown
	}
}

// Resolve drops entanglement entries whose lane is no longer pending.
// Called after a pass commits so stale pairs do not grow passes forever.
func (e *Entanglement) Resolve(stillPending Lanes) {
	for lane := range e.entangled {
		if !lane.In(stillPending) {
			delete(e.entangled, lane)
		}
	}
}

// Allocator hands out transition lanes round-robin so that unrelated
// transitions land on distinct lanes and can be drained independently.
type Allocator struct {
	next Lane
}

// NewAllocator returns an allocator starting at the first transition lane.
func NewAllocator() *Allocator {
	return &Allocator{next: TransitionLane1}
}

// NextTransitionLane returns the next transition lane, cycling through
// the transition group.
func (a *Allocator) NextTransitionLane() Lane {
	lane := a.next
	a.next <<= 1
	if !a.next.In(TransitionLanes) || a.next == NoLane {
		a.next = TransitionLane1
	}
	return lane
}
