package core

import "context"

// Task is the unit of work executed by a TaskWorker.
//
// Execute either runs to completion or panics. A panic escaping Execute is
// treated as a task failure: see TaskQueue for how background and local
// workers react to it.
type Task interface {
	Execute(ctx context.Context)
}

// TaskFunc adapts a closure to the Task interface.
type TaskFunc func(ctx context.Context)

// Execute calls f(ctx).
func (f TaskFunc) Execute(ctx context.Context) {
	f(ctx)
}

// =============================================================================
// Context Helper
// =============================================================================

type taskQueueKeyType struct{}

type workerIDKeyType struct{}

var (
	taskQueueKey taskQueueKeyType
	workerIDKey  workerIDKeyType
)

// GetCurrentTaskQueue returns the TaskQueue executing the current task, or nil
// when ctx was not produced by a TaskWorker.
func GetCurrentTaskQueue(ctx context.Context) *TaskQueue {
	if v := ctx.Value(taskQueueKey); v != nil {
		return v.(*TaskQueue)
	}
	return nil
}

// GetCurrentWorkerID returns the index of the worker executing the current
// task (0 is the local worker), or -1 when ctx was not produced by a TaskWorker.
func GetCurrentWorkerID(ctx context.Context) int {
	if v := ctx.Value(workerIDKey); v != nil {
		return v.(int)
	}
	return -1
}

func withWorker(ctx context.Context, q *TaskQueue, id int) context.Context {
	ctx = context.WithValue(ctx, taskQueueKey, q)
	return context.WithValue(ctx, workerIDKey, id)
}
