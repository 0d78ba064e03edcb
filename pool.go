package taskrunner

import (
	"context"
	"sync"
	"time"

	"github.com/marijnz/bouncingballs-sub001/core"
)

// helpInterval bounds how long RunGroup sleeps before helping again.
const helpInterval = 2 * time.Millisecond

// RunGroup schedules tasks as one group on q and blocks until the group
// finishes, running tasks on the calling goroutine while it waits. The group
// is recycled afterwards. If ctx ends first the group keeps running and
// ctx.Err() is returned.
func RunGroup(ctx context.Context, q *TaskQueue, tasks ...Task) error {
	if len(tasks) == 0 {
		return nil
	}

	g := q.CreateGroup()
	for _, task := range tasks {
		g.AddTask(task)
	}
	done := make(chan struct{})
	g.SetOnFinished(func([]core.Task) { close(done) })

	if err := q.ScheduleForExecution(g); err != nil {
		q.DeleteGroup(g)
		return err
	}

	ticker := time.NewTicker(helpInterval)
	defer ticker.Stop()

	for {
		q.RunTasks()
		select {
		case <-done:
			q.DeleteGroup(g)
			return nil
		default:
		}
		if !q.IsRunning() {
			return ErrQueueStopped
		}

		select {
		case <-done:
			q.DeleteGroup(g)
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// =============================================================================
// Global Task Queue Helper (Singleton)
// =============================================================================

var (
	globalTaskQueue *TaskQueue
	globalMu        sync.Mutex
)

// InitGlobalTaskQueue initializes the global task queue with the specified
// number of workers, including the local one. It starts the queue immediately.
// Repeated calls are no-ops until ShutdownGlobalTaskQueue.
func InitGlobalTaskQueue(workers int) {
	InitGlobalTaskQueueWithConfig(workers, &TaskQueueConfig{Name: "global-queue"})
}

// InitGlobalTaskQueueWithConfig is InitGlobalTaskQueue with custom handlers.
func InitGlobalTaskQueueWithConfig(workers int, config *TaskQueueConfig) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalTaskQueue != nil {
		return // Already initialized
	}

	globalTaskQueue = core.NewTaskQueueWithConfig(workers, config)
	globalTaskQueue.Start(context.Background())
}

// GetGlobalTaskQueue returns the global task queue instance.
// It panics if InitGlobalTaskQueue has not been called.
func GetGlobalTaskQueue() *TaskQueue {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalTaskQueue == nil {
		panic("GlobalTaskQueue not initialized. Call InitGlobalTaskQueue() first.")
	}
	return globalTaskQueue
}

// ShutdownGlobalTaskQueue stops and closes the global task queue. It returns
// the first worker panic the queue recorded, if any.
func ShutdownGlobalTaskQueue() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalTaskQueue == nil {
		return nil
	}
	err := globalTaskQueue.Close()
	globalTaskQueue = nil
	return err
}
