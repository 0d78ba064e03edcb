package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jacobsa/syncutil"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkerCount is the pool size used when none is configured.
const DefaultWorkerCount = 8

// idlePollInterval bounds how long WaitIdle sleeps before helping again.
const idlePollInterval = 2 * time.Millisecond

// TaskQueue executes TaskGroups one at a time on a fixed pool of TaskWorkers.
//
// Worker 0 is driven by whichever goroutine calls RunSingleTask, RunTasks or
// WaitIdle; the remaining workers run on background goroutines launched by
// Start. Tasks of one group are spread over the workers and balanced by work
// stealing. All tasks of a group finish before any task of the next group is
// handed out.
type TaskQueue struct {
	name    string
	workers []*TaskWorker

	// schedMu guards pending and active.
	//
	// INVARIANT: If active == nil, pending is empty
	schedMu syncutil.InvariantMutex
	pending *groupFIFO
	active  *TaskGroup

	freeMu sync.Mutex
	free   []*TaskGroup

	running atomic.Bool

	// lifecycleMu serializes Start and Stop.
	lifecycleMu sync.Mutex
	started     bool
	cancel      context.CancelFunc
	background  errgroup.Group

	logger       Logger
	panicHandler PanicHandler
	metrics      Metrics
}

// NewTaskQueue creates a TaskQueue with workerCount workers (one local, the
// rest background) and default handlers.
func NewTaskQueue(workerCount int) *TaskQueue {
	return NewTaskQueueWithConfig(workerCount, DefaultTaskQueueConfig())
}

// NewTaskQueueWithConfig creates a TaskQueue with custom handlers.
// workerCount below 1 is raised to 1, which leaves only the local worker.
func NewTaskQueueWithConfig(workerCount int, config *TaskQueueConfig) *TaskQueue {
	workerCount = max(workerCount, 1)

	q := &TaskQueue{
		pending: newGroupFIFO(),
	}

	// Apply config
	if config != nil {
		q.name = config.Name
		q.logger = config.Logger
		q.panicHandler = config.PanicHandler
		q.metrics = config.Metrics
	}

	// Use defaults if not provided
	if q.name == "" {
		q.name = "task-queue-" + uuid.NewString()[:8]
	}
	if q.logger == nil {
		q.logger = NewDefaultLogger()
	}
	if q.panicHandler == nil {
		q.panicHandler = &DefaultPanicHandler{}
	}
	if q.metrics == nil {
		q.metrics = &NilMetrics{}
	}

	q.schedMu = syncutil.NewInvariantMutex(q.checkInvariants)
	q.workers = make([]*TaskWorker, workerCount)
	for i := range q.workers {
		q.workers[i] = newTaskWorker(q, i)
	}
	q.running.Store(true)

	return q
}

func (q *TaskQueue) checkInvariants() {
	if q.active == nil && !q.pending.IsEmpty() {
		panic(fmt.Sprintf("queue %s: %d pending groups but none active", q.name, q.pending.Len()))
	}
}

// Name returns the queue name used in logs and metrics.
func (q *TaskQueue) Name() string {
	return q.name
}

// WorkerCount returns the number of workers, including the local one.
func (q *TaskQueue) WorkerCount() int {
	return len(q.workers)
}

// Worker returns the worker at index i; 0 is the local worker.
func (q *TaskQueue) Worker(i int) *TaskWorker {
	return q.workers[i]
}

// IsRunning reports whether Stop has not been called yet.
func (q *TaskQueue) IsRunning() bool {
	return q.running.Load()
}

// =============================================================================
// Lifecycle
// =============================================================================

// Start launches the background workers. Tasks receive a context derived from
// ctx. Repeated calls, and calls after Stop, are no-ops.
func (q *TaskQueue) Start(ctx context.Context) {
	q.lifecycleMu.Lock()
	defer q.lifecycleMu.Unlock()

	if q.started || !q.IsRunning() {
		return
	}

	workerCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.started = true

	for _, w := range q.workers[1:] {
		w.ctx = withWorker(workerCtx, q, w.id)
		q.background.Go(w.run)
	}

	q.logger.Info("Task queue started",
		F("queue", q.name),
		F("workers", len(q.workers)),
	)
}

// Stop halts the background workers and waits for their goroutines to exit.
// Tasks already running are not interrupted; tasks still sitting in worker
// lists are abandoned. It returns the first *WorkerPanicError of a worker that
// stopped after a panic. Repeated calls return nil.
//
// Stop must not be called from inside a task.
func (q *TaskQueue) Stop() error {
	q.lifecycleMu.Lock()
	defer q.lifecycleMu.Unlock()

	if !q.running.CompareAndSwap(true, false) {
		return nil
	}

	for _, w := range q.workers[1:] {
		w.sem.Increment()
	}
	err := q.background.Wait()

	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}

	q.logger.Info("Task queue stopped",
		F("queue", q.name),
		F("started", q.started),
	)
	return err
}

// Close stops the queue and releases every group still active, pending or
// pooled, together with any tasks left in worker lists.
func (q *TaskQueue) Close() error {
	err := q.Stop()

	q.schedMu.Lock()
	dropped := q.pending.Drain()
	if q.active != nil {
		dropped = append(dropped, q.active)
		q.active = nil
	}
	q.schedMu.Unlock()

	for _, w := range q.workers {
		w.mu.Lock()
		clear(w.tasks)
		w.tasks = nil
		w.mu.Unlock()
		w.activeGroup.Store(nil)
	}
	for _, g := range dropped {
		g.reset()
	}

	q.freeMu.Lock()
	clear(q.free)
	q.free = nil
	q.freeMu.Unlock()

	if len(dropped) > 0 {
		q.logger.Warn("Task queue closed with unfinished groups",
			F("queue", q.name),
			F("dropped", len(dropped)),
		)
	}
	return err
}

// =============================================================================
// Group pool
// =============================================================================

// CreateGroup returns an empty group, recycled from DeleteGroup when possible.
func (q *TaskQueue) CreateGroup() *TaskGroup {
	q.freeMu.Lock()
	var g *TaskGroup
	if n := len(q.free); n > 0 {
		g = q.free[n-1]
		q.free[n-1] = nil
		q.free = q.free[:n-1]
		g.pooled = false
	}
	q.freeMu.Unlock()

	if g == nil {
		g = newTaskGroup(q)
	}
	g.id = uuid.NewString()
	return g
}

// DeleteGroup returns g to the queue for reuse. A nil group is ignored.
// It panics if g is executing, belongs to another queue, or was already deleted.
func (q *TaskQueue) DeleteGroup(g *TaskGroup) {
	if g == nil {
		return
	}
	if g.queue != q {
		panic(fmt.Sprintf("taskrunner: group %s deleted on foreign queue %s", g.id, q.name))
	}
	if g.IsExecuting() {
		panic(fmt.Sprintf("taskrunner: DeleteGroup called on executing group %s", g.id))
	}

	q.freeMu.Lock()
	defer q.freeMu.Unlock()

	if g.pooled {
		panic(fmt.Sprintf("taskrunner: group %s deleted twice", g.id))
	}
	g.reset()
	g.pooled = true
	q.free = append(q.free, g)
}

// =============================================================================
// Scheduling
// =============================================================================

// ScheduleForExecution submits g. If no group is active its tasks are
// distributed immediately; otherwise g waits behind the groups submitted
// before it.
//
// It panics if g is nil, empty, already executing, pooled, or owned by another
// queue. After Stop it returns ErrQueueStopped and leaves g untouched.
func (q *TaskQueue) ScheduleForExecution(g *TaskGroup) error {
	if g == nil {
		panic("taskrunner: ScheduleForExecution called with nil group")
	}
	if g.queue != q {
		panic(fmt.Sprintf("taskrunner: group %s scheduled on foreign queue %s", g.id, q.name))
	}
	q.freeMu.Lock()
	pooled := g.pooled
	q.freeMu.Unlock()
	if pooled {
		panic(fmt.Sprintf("taskrunner: group %s scheduled after DeleteGroup", g.id))
	}
	if len(g.tasks) == 0 {
		panic(fmt.Sprintf("taskrunner: group %s scheduled without tasks", g.id))
	}
	if !q.IsRunning() {
		q.metrics.RecordGroupRejected(q.name, "stopped")
		q.logger.Warn("Task group rejected",
			F("queue", q.name),
			F("group", g.id),
			F("reason", "stopped"),
		)
		return ErrQueueStopped
	}
	if !g.executing.CompareAndSwap(false, true) {
		panic(fmt.Sprintf("taskrunner: group %s scheduled while executing", g.id))
	}
	g.remaining.Store(int64(len(g.tasks)))

	q.schedMu.Lock()
	defer q.schedMu.Unlock()

	q.pending.Push(g)
	if q.active == nil {
		q.scheduleNextGroupLocked()
	}
	q.metrics.RecordPendingGroups(q.name, q.pending.Len())
	return nil
}

// onGroupFinished is called by the worker that finished the last task of g.
func (q *TaskQueue) onGroupFinished(g *TaskGroup, id string) {
	q.schedMu.Lock()
	defer q.schedMu.Unlock()

	if q.active != g {
		panic(fmt.Sprintf("taskrunner: finished group %s is not the active group", id))
	}
	q.active = nil
	q.scheduleNextGroupLocked()
	q.metrics.RecordPendingGroups(q.name, q.pending.Len())
}

// scheduleNextGroupLocked promotes the front pending group and hands its tasks
// to the workers. q.schedMu must be held.
func (q *TaskQueue) scheduleNextGroupLocked() {
	g, ok := q.pending.Pop()
	if !ok {
		q.active = nil
		return
	}
	q.active = g
	g.distributedAt = time.Now()

	targets := make([]*TaskWorker, 0, len(q.workers))
	for _, w := range q.workers {
		w.activeGroup.Store(g)
		if !w.IsRetired() {
			targets = append(targets, w)
		}
	}

	// Each target gets a contiguous slice; the last one takes the remainder.
	n := len(g.tasks)
	perWorker := max(n/len(targets), 1)
	start := 0
	for i, w := range targets {
		if start >= n {
			break
		}
		end := start + perWorker
		if i == len(targets)-1 || end > n {
			end = n
		}
		w.addTasks(g.tasks[start:end])
		start = end
	}

	// The local worker is driven by callers and is never woken.
	for _, w := range targets {
		if !w.IsLocal() {
			w.sem.Increment()
		}
	}

	q.logger.Debug("Task group distributed",
		F("queue", q.name),
		F("group", g.id),
		F("name", g.name),
		F("tasks", n),
		F("workers", len(targets)),
	)
}

// =============================================================================
// Local worker
// =============================================================================

// RunSingleTask runs at most one task on the local worker, on the calling
// goroutine. It returns false if the local worker had nothing queued.
// A panic from the task propagates to the caller.
func (q *TaskQueue) RunSingleTask() bool {
	return q.workers[0].runSingleTask()
}

// RunTasks drains and steals on the local worker, on the calling goroutine,
// until no work is found or the queue stops. It returns the number of tasks
// run. A panic from a task propagates to the caller.
func (q *TaskQueue) RunTasks() int {
	return q.workers[0].runTasks()
}

// WaitIdle blocks until no group is active or pending, helping with the work
// on the calling goroutine while it waits.
func (q *TaskQueue) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()

	for {
		q.RunTasks()
		if q.isIdle() {
			return nil
		}
		if !q.IsRunning() {
			return ErrQueueStopped
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *TaskQueue) isIdle() bool {
	q.schedMu.Lock()
	defer q.schedMu.Unlock()
	return q.active == nil
}

// =============================================================================
// Stats
// =============================================================================

// Stats returns a snapshot of the queue state.
func (q *TaskQueue) Stats() QueueStats {
	stats := QueueStats{
		Name:        q.name,
		Workers:     len(q.workers),
		Running:     q.IsRunning(),
		WorkerStats: make([]WorkerStats, 0, len(q.workers)),
	}

	q.schedMu.Lock()
	stats.PendingGroups = q.pending.Len()
	if q.active != nil {
		stats.ActiveGroup = true
		stats.ActiveTasks = q.active.RemainingCount()
	}
	q.schedMu.Unlock()

	for _, w := range q.workers {
		ws := w.stats()
		if !ws.Retired {
			stats.LiveWorkers++
		}
		stats.QueuedTasks += ws.Queued
		stats.WorkerStats = append(stats.WorkerStats, ws)
	}

	q.freeMu.Lock()
	stats.FreeGroups = len(q.free)
	q.freeMu.Unlock()

	return stats
}
