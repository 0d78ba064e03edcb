// Package taskrunner executes batches of independent tasks on a fixed pool of
// workers with work stealing.
//
// Work is submitted as TaskGroups. The groups of one TaskQueue run strictly one
// after another: every task of a group finishes, and its completion callback
// returns, before any task of the next group is handed to a worker. Within a
// group the tasks are split into contiguous slices, one per worker, and idle
// workers steal half of a busy sibling's remaining slice.
//
// # Quick Start
//
// Initialize the global queue at application startup:
//
//	taskrunner.InitGlobalTaskQueue(8) // 1 local + 7 background workers
//	defer taskrunner.ShutdownGlobalTaskQueue()
//
// Build a group and wait for it, helping on the calling goroutine:
//
//	q := taskrunner.GetGlobalTaskQueue()
//	err := taskrunner.RunGroup(ctx, q, tasks...)
//
// # Key Concepts
//
// TaskQueue: owns the workers, the pending group FIFO and a pool of recycled
// groups. Worker 0 is the local worker; it only runs when a caller invokes
// RunSingleTask, RunTasks or WaitIdle.
//
// TaskGroup: an ordered batch of tasks with an optional completion callback.
// A group is filled while idle, scheduled once, and may be recycled with
// DeleteGroup after it finishes.
//
// TaskWorker: drains its own slice from the back, then steals.
//
// # Failures
//
// A task that panics on a background worker retires that worker. The panic is
// logged, handed to the PanicHandler and reported by Stop as a
// *WorkerPanicError. The task still counts as finished, so its group completes
// and later groups run on the remaining workers. A panic on the local worker
// propagates to the caller.
package taskrunner
