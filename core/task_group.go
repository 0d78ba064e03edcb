package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// TaskGroup is an ordered batch of Tasks submitted to a TaskQueue together.
//
// A group is populated while idle, handed to TaskQueue.ScheduleForExecution
// exactly once, and executed exactly once. When its last task finishes the
// OnFinished callback runs on the worker that completed it, after every task
// of the group has returned. The group can then be recycled through
// TaskQueue.DeleteGroup.
//
// Groups are obtained from TaskQueue.CreateGroup; the zero value is not usable.
type TaskGroup struct {
	queue *TaskQueue

	id   string
	name string

	// tasks is append-only while idle and immutable while executing.
	tasks      []Task
	onFinished func(tasks []Task)

	remaining atomic.Int64
	executing atomic.Bool

	// distributedAt is written under the queue's scheduling lock and read by
	// the worker that drives remaining to zero.
	distributedAt time.Time

	// pooled is guarded by the queue's free list lock.
	pooled bool
}

func newTaskGroup(q *TaskQueue) *TaskGroup {
	return &TaskGroup{queue: q}
}

// ID returns the identifier assigned by CreateGroup. Recycled groups get a new one.
func (g *TaskGroup) ID() string {
	return g.id
}

// Name returns the optional group name used in logs.
func (g *TaskGroup) Name() string {
	return g.name
}

// SetName sets the group name used in logs.
func (g *TaskGroup) SetName(name string) {
	g.mustBeIdle("SetName")
	g.name = name
}

// AddTask appends task to the group.
// It panics if the group is executing or task is nil.
func (g *TaskGroup) AddTask(task Task) {
	g.mustBeIdle("AddTask")
	if task == nil {
		panic("taskrunner: AddTask called with nil task")
	}
	g.tasks = append(g.tasks, task)
}

// AddTaskFunc appends a closure-backed task to the group.
func (g *TaskGroup) AddTaskFunc(fn func(ctx context.Context)) {
	if fn == nil {
		panic("taskrunner: AddTaskFunc called with nil func")
	}
	g.AddTask(TaskFunc(fn))
}

// SetOnFinished installs the completion callback. The callback receives the
// group's full task list in insertion order.
// It panics if the group is executing.
func (g *TaskGroup) SetOnFinished(cb func(tasks []Task)) {
	g.mustBeIdle("SetOnFinished")
	g.onFinished = cb
}

// TaskCount returns the number of tasks in the group.
func (g *TaskGroup) TaskCount() int {
	return len(g.tasks)
}

// RemainingCount returns the number of tasks not yet finished.
func (g *TaskGroup) RemainingCount() int {
	return int(g.remaining.Load())
}

// IsExecuting reports whether the group is scheduled and not yet finished.
func (g *TaskGroup) IsExecuting() bool {
	return g.executing.Load()
}

func (g *TaskGroup) mustBeIdle(op string) {
	if g.executing.Load() {
		panic(fmt.Sprintf("taskrunner: %s called on executing group %s", op, g.id))
	}
}

// reset returns the group to its freshly created state.
func (g *TaskGroup) reset() {
	g.tasks = nil
	g.onFinished = nil
	g.name = ""
	g.distributedAt = time.Time{}
	g.remaining.Store(0)
	g.executing.Store(false)
}

// taskFinished records the completion of one task. The caller that drives the
// remaining count to zero fires the callback and promotes the next group.
func (g *TaskGroup) taskFinished() {
	n := g.remaining.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		panic(fmt.Sprintf("taskrunner: group %s finished more tasks than it holds", g.id))
	}

	// Everything the finishing worker needs is read before the group becomes
	// idle; from then on the owner may reset or reschedule it.
	q := g.queue
	id := g.id
	tasks := g.tasks
	cb := g.onFinished
	q.metrics.RecordGroupDuration(q.name, len(tasks), time.Since(g.distributedAt))

	// Promote the next group even if the callback panics.
	defer q.onGroupFinished(g, id)

	g.executing.Store(false)
	if cb != nil {
		cb(tasks)
	}
}
