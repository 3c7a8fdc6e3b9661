package sched

// taskHeap is a binary min-heap of tasks ordered by sortKey, with ties
// broken by insertion id so equal keys pop in enqueue order.
//
// There is deliberately no arbitrary-element removal: cancellation clears
// the task's callback, and the work loop skips payload-less tasks as they
// surface at the head.
type taskHeap struct {
	tasks []*Task
}

// push inserts a task and sifts it up to its position.
func (h *taskHeap) push(t *Task) {
	h.tasks = append(h.tasks, t)
	h.siftUp(len(h.tasks) - 1)
}

// peek returns the minimum task without removing it, or nil when empty.
func (h *taskHeap) peek() *Task {
	if len(h.tasks) == 0 {
		return nil
	}
	return h.tasks[0]
}

// pop removes and returns the minimum task, or nil when empty.
func (h *taskHeap) pop() *Task {
	n := len(h.tasks)
	if n == 0 {
		return nil
	}
	top := h.tasks[0]
	last := h.tasks[n-1]
	h.tasks[n-1] = nil // release for GC
	h.tasks = h.tasks[:n-1]
	if n > 1 {
		h.tasks[0] = last
		h.siftDown(0)
	}
	return top
}

// len returns the number of tasks, including cancelled ones not yet popped.
func (h *taskHeap) len() int { return len(h.tasks) }

func (h *taskHeap) siftUp(i int) {
	node := h.tasks[i]
	for i > 0 {
		parent := (i - 1) / 2
		if !less(node, h.tasks[parent]) {
			break
		}
		h.tasks[i] = h.tasks[parent]
		i = parent
	}
	h.tasks[i] = node
}

func (h *taskHeap) siftDown(i int) {
	node := h.tasks[i]
	n := len(h.tasks)
	for {
		left := 2*i + 1
		if left >= n {
			break
		}
		child := left
		if right := left + 1; right < n && less(h.tasks[right], h.tasks[left]) {
			child = right
		}
		if !less(h.tasks[child], node) {
			break
		}
		h.tasks[i] = h.tasks[child]
		i = child
	}
	h.tasks[i] = node
}

// less orders by sortKey, then by insertion id for stability.
func less(a, b *Task) bool {
	if a.sortKey != b.sortKey {
		return a.sortKey < b.sortKey
	}
	return a.id < b.id
}
