package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTask(id int64, key time.Duration) *Task {
	return &Task{id: id, sortKey: key, callback: func(bool) Callback { return nil }}
}

func TestTaskHeap_PopsInKeyOrder(t *testing.T) {
	h := &taskHeap{}
	h.push(mkTask(1, 30*time.Millisecond))
	h.push(mkTask(2, 10*time.Millisecond))
	h.push(mkTask(3, 20*time.Millisecond))

	require.Equal(t, int64(2), h.pop().id)
	require.Equal(t, int64(3), h.pop().id)
	require.Equal(t, int64(1), h.pop().id)
	assert.Nil(t, h.pop())
}

func TestTaskHeap_TieBreaksOnInsertionOrder(t *testing.T) {
	h := &taskHeap{}
	for id := int64(1); id <= 5; id++ {
		h.push(mkTask(id, 100*time.Millisecond))
	}

	for want := int64(1); want <= 5; want++ {
		got := h.pop()
		require.NotNil(t, got)
		assert.Equal(t, want, got.id, "equal keys pop in insertion order")
	}
}

func TestTaskHeap_PeekDoesNotRemove(t *testing.T) {
	h := &taskHeap{}
	assert.Nil(t, h.peek())

	h.push(mkTask(1, time.Millisecond))
	require.Equal(t, int64(1), h.peek().id)
	assert.Equal(t, 1, h.len())
	require.Equal(t, int64(1), h.pop().id)
	assert.Equal(t, 0, h.len())
}

func TestTaskHeap_InterleavedPushPop(t *testing.T) {
	h := &taskHeap{}
	h.push(mkTask(1, 50*time.Millisecond))
	h.push(mkTask(2, 10*time.Millisecond))
	require.Equal(t, int64(2), h.pop().id)

	h.push(mkTask(3, 5*time.Millisecond))
	h.push(mkTask(4, 60*time.Millisecond))
	require.Equal(t, int64(3), h.pop().id)
	require.Equal(t, int64(1), h.pop().id)
	require.Equal(t, int64(4), h.pop().id)
}
