package lanes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLanes_SetOperations(t *testing.T) {
	a := Merge(SyncLane.Set(), DefaultLane.Set())
	b := Merge(DefaultLane.Set(), IdleLane.Set())

	assert.Equal(t, DefaultLane.Set(), Intersect(a, b))
	assert.Equal(t, SyncLane.Set(), Subtract(a, b))
	assert.Equal(t, Merge(a, b), Merge(b, a), "merge is commutative")
}

func TestLanes_NoLaneIsZeroElement(t *testing.T) {
	assert.True(t, NoLane.In(NoLanes), "NoLane is in the empty set")
	assert.True(t, NoLane.In(AllLanes))
	assert.True(t, NoLanes.IsSubsetOf(DefaultLane.Set()))
	assert.Equal(t, DefaultLane.Set(), Merge(DefaultLane.Set(), NoLanes))
}

func TestLanes_Subset(t *testing.T) {
	set := Merge(SyncLane.Set(), DefaultLane.Set())

	assert.True(t, SyncLane.Set().IsSubsetOf(set))
	assert.True(t, set.IsSubsetOf(set))
	assert.False(t, IdleLane.Set().IsSubsetOf(set))
	assert.False(t, Merge(set, IdleLane.Set()).IsSubsetOf(set))
}

func TestLanes_HighestPriority(t *testing.T) {
	assert.Equal(t, NoLane, HighestPriority(NoLanes))
	assert.Equal(t, SyncLane, HighestPriority(AllLanes))
	assert.Equal(t, DefaultLane, HighestPriority(Merge(DefaultLane.Set(), IdleLane.Set())))
	assert.Equal(t, TransitionLane2, HighestPriority(Merge(TransitionLane2.Set(), OffscreenLane.Set())))
}

func TestLanes_AtOrAbove(t *testing.T) {
	pending := Merge(Merge(SyncLane.Set(), DefaultLane.Set()), IdleLane.Set())

	assert.Equal(t, Merge(SyncLane.Set(), DefaultLane.Set()), AtOrAbove(pending, DefaultLane))
	assert.Equal(t, SyncLane.Set(), AtOrAbove(pending, SyncLane))
	assert.Equal(t, pending, AtOrAbove(pending, IdleLane))
	assert.Equal(t, NoLanes, AtOrAbove(pending, NoLane))
}

func TestLanes_String(t *testing.T) {
	assert.Equal(t, "none", NoLanes.String())
	assert.Equal(t, "sync|default", Merge(SyncLane.Set(), DefaultLane.Set()).String())
}

func TestEntanglement_Expand(t *testing.T) {
	e := NewEntanglement()
	e.Entangle(TransitionLane1, TransitionLane2.Set())

	got := e.Expand(TransitionLane1.Set())
	assert.Equal(t, Merge(TransitionLane1.Set(), TransitionLane2.Set()), got)

	// Unrelated lanes are untouched.
	assert.Equal(t, DefaultLane.Set(), e.Expand(DefaultLane.Set()))
}

func TestEntanglement_ExpandTransitive(t *testing.T) {
	e := NewEntanglement()
	e.Entangle(TransitionLane1, TransitionLane2.Set())
	e.Entangle(TransitionLane2, TransitionLane3.Set())

	got := e.Expand(TransitionLane1.Set())
	want := Merge(TransitionLane1.Set(), Merge(TransitionLane2.Set(), TransitionLane3.Set()))
	assert.Equal(t, want, got, "entanglement closure is transitive")
}

func TestEntanglement_EntangleAll(t *testing.T) {
	e := NewEntanglement()
	group := Merge(TransitionLane1.Set(), TransitionLane3.Set())
	e.EntangleAll(group)

	assert.Equal(t, group, e.Expand(TransitionLane1.Set()))
	assert.Equal(t, group, e.Expand(TransitionLane3.Set()))
}

func TestEntanglement_Resolve(t *testing.T) {
	e := NewEntanglement()
	e.Entangle(TransitionLane1, TransitionLane2.Set())
	e.Resolve(NoLanes)

	assert.Equal(t, TransitionLane1.Set(), e.Expand(TransitionLane1.Set()),
		"resolved entries no longer expand")
}

func TestAllocator_RoundRobin(t *testing.T) {
	a := NewAllocator()

	seen := NoLanes
	for i := 0; i < 4; i++ {
		lane := a.NextTransitionLane()
		require.True(t, lane.In(TransitionLanes))
		require.False(t, lane.In(seen), "each transition lane handed out once per cycle")
		seen = Merge(seen, lane.Set())
	}
	assert.Equal(t, TransitionLanes, seen)
	assert.Equal(t, TransitionLane1, a.NextTransitionLane(), "allocator wraps around")
}
