package core

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// groupFIFO holds TaskGroups waiting for the active group to drain.
// It is not safe for concurrent use; TaskQueue guards it with its
// scheduling lock.
type groupFIFO struct {
	groups []*TaskGroup
}

func newGroupFIFO() *groupFIFO {
	return &groupFIFO{
		groups: make([]*TaskGroup, 0, defaultQueueCap),
	}
}

func (q *groupFIFO) Push(g *TaskGroup) {
	q.groups = append(q.groups, g)
}

func (q *groupFIFO) Pop() (*TaskGroup, bool) {
	if len(q.groups) == 0 {
		return nil, false
	}

	g := q.groups[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.groups[0] = nil
	q.groups = q.groups[1:]
	q.maybeCompact()

	return g, true
}

func (q *groupFIFO) Len() int {
	return len(q.groups)
}

func (q *groupFIFO) IsEmpty() bool {
	return len(q.groups) == 0
}

// Drain removes and returns every queued group in FIFO order.
func (q *groupFIFO) Drain() []*TaskGroup {
	drained := q.groups
	q.groups = make([]*TaskGroup, 0, defaultQueueCap)
	return drained
}

func (q *groupFIFO) maybeCompact() {
	n := len(q.groups)
	c := cap(q.groups)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.groups = make([]*TaskGroup, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]*TaskGroup, n, newCap)
	copy(newSlice, q.groups)
	q.groups = newSlice
}
