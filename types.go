package taskrunner

import "github.com/marijnz/bouncingballs-sub001/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the taskrunner package for most use cases.

// Task is the unit of work
type Task = core.Task

// TaskFunc adapts a closure to Task
type TaskFunc = core.TaskFunc

// TaskGroup is a batch of tasks executed together
type TaskGroup = core.TaskGroup

// TaskQueue runs task groups one at a time on a work-stealing pool
type TaskQueue = core.TaskQueue

// TaskWorker is one execution agent of a TaskQueue
type TaskWorker = core.TaskWorker

// TaskQueueConfig holds optional handlers for a TaskQueue
type TaskQueueConfig = core.TaskQueueConfig

// QueueStats and WorkerStats are Stats() snapshots
type QueueStats = core.QueueStats
type WorkerStats = core.WorkerStats

// WorkerPanicError is returned by Stop when a background worker panicked
type WorkerPanicError = core.WorkerPanicError

// ErrQueueStopped is returned when scheduling on a stopped queue
var ErrQueueStopped = core.ErrQueueStopped

// NewTaskQueue creates a TaskQueue with default handlers.
func NewTaskQueue(workerCount int) *TaskQueue {
	return core.NewTaskQueue(workerCount)
}

// NewTaskQueueWithConfig creates a TaskQueue with custom handlers.
func NewTaskQueueWithConfig(workerCount int, config *TaskQueueConfig) *TaskQueue {
	return core.NewTaskQueueWithConfig(workerCount, config)
}

// GetCurrentTaskQueue retrieves the executing TaskQueue from a task context
var GetCurrentTaskQueue = core.GetCurrentTaskQueue

// GetCurrentWorkerID retrieves the executing worker index from a task context
var GetCurrentWorkerID = core.GetCurrentWorkerID
