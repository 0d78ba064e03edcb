package core

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/jacobsa/syncutil"
)

// TaskWorker is an execution agent of a TaskQueue. It owns a private list of
// tasks of the active group, drains it, then steals from its siblings.
//
// Worker 0 is the local worker: it has no goroutine of its own and runs only
// when a caller invokes TaskQueue.RunSingleTask, RunTasks or WaitIdle. Every
// other worker runs on a background goroutine that sleeps on its Semaphore
// between bursts of work.
type TaskWorker struct {
	queue *TaskQueue
	id    int
	ctx   context.Context

	// activeGroup is the group whose tasks are in the worker lists. Every
	// worker holds the same pointer while a group executes.
	activeGroup atomic.Pointer[TaskGroup]

	// mu guards tasks. Siblings take it to steal.
	//
	// INVARIANT: No element of tasks is nil
	mu    syncutil.InvariantMutex
	tasks []Task

	sem *Semaphore

	retired  atomic.Bool
	executed atomic.Int64
	stolen   atomic.Int64
}

func newTaskWorker(q *TaskQueue, id int) *TaskWorker {
	w := &TaskWorker{
		queue: q,
		id:    id,
		ctx:   withWorker(context.Background(), q, id),
		sem:   NewSemaphore(0),
	}
	w.mu = syncutil.NewInvariantMutex(w.checkInvariants)
	return w
}

func (w *TaskWorker) checkInvariants() {
	for i, t := range w.tasks {
		if t == nil {
			panic(fmt.Sprintf("worker %d: nil task at index %d", w.id, i))
		}
	}
}

// ID returns the worker index; 0 is the local worker.
func (w *TaskWorker) ID() int {
	return w.id
}

// IsLocal reports whether this is the worker driven by callers of the queue.
func (w *TaskWorker) IsLocal() bool {
	return w.id == 0
}

// IsRetired reports whether the worker stopped after a task panicked.
func (w *TaskWorker) IsRetired() bool {
	return w.retired.Load()
}

// QueuedTaskCount returns the number of tasks in the worker's private list.
func (w *TaskWorker) QueuedTaskCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tasks)
}

func (w *TaskWorker) stats() WorkerStats {
	return WorkerStats{
		ID:       w.id,
		Local:    w.IsLocal(),
		Queued:   w.QueuedTaskCount(),
		Executed: w.executed.Load(),
		Stolen:   w.stolen.Load(),
		Retired:  w.IsRetired(),
	}
}

// addTasks appends a batch of tasks pushed to this worker.
func (w *TaskWorker) addTasks(tasks []Task) {
	if len(tasks) == 0 {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tasks = append(w.tasks, tasks...)
}

// runSingleTask pops one task from the back of the private list and runs it.
// It returns false if the list was empty.
func (w *TaskWorker) runSingleTask() bool {
	w.mu.Lock()
	n := len(w.tasks)
	if n == 0 {
		w.mu.Unlock()
		return false
	}
	task := w.tasks[n-1]
	w.tasks[n-1] = nil
	w.tasks = w.tasks[:n-1]
	w.mu.Unlock()

	w.execute(task)
	return true
}

// taskPanic carries a task panic from execute to run with the stack of the
// panicking goroutine.
type taskPanic struct {
	value any
	stack []byte
}

// execute runs task and reports it to the active group. The report also
// happens when the task panics, so the group still drains.
//
// A background worker is marked retired before the report: finishing the last
// task promotes the next group, and that distribution must skip this worker.
func (w *TaskWorker) execute(task Task) {
	group := w.activeGroup.Load()
	start := time.Now()
	defer func() {
		w.executed.Add(1)
		w.queue.metrics.RecordTaskDuration(w.queue.name, time.Since(start))
		if w.IsLocal() {
			group.taskFinished()
			return
		}
		if r := recover(); r != nil {
			p := &taskPanic{value: r, stack: debug.Stack()}
			w.retired.Store(true)
			group.taskFinished()
			panic(p)
		}
		group.taskFinished()
	}()

	task.Execute(w.ctx)
}

// stealTasks moves the back half (at least one task) of the first sibling
// with work into this worker's list. Siblings are visited starting after
// this worker's index. It returns false if no sibling had any work.
func (w *TaskWorker) stealTasks() bool {
	workers := w.queue.workers
	for i := 1; i < len(workers); i++ {
		victim := workers[(w.id+i)%len(workers)]
		stolen := victim.giveUpTasks()
		if len(stolen) == 0 {
			continue
		}

		w.addTasks(stolen)
		w.stolen.Add(int64(len(stolen)))
		w.queue.metrics.RecordSteal(w.queue.name, len(stolen))
		return true
	}
	return false
}

// giveUpTasks removes and returns the back max(1, k/2) tasks of the list.
func (w *TaskWorker) giveUpTasks() []Task {
	w.mu.Lock()
	defer w.mu.Unlock()

	k := len(w.tasks)
	if k == 0 {
		return nil
	}
	n := max(k/2, 1)

	out := make([]Task, n)
	copy(out, w.tasks[k-n:])
	clear(w.tasks[k-n:])
	w.tasks = w.tasks[:k-n]
	return out
}

// runTasks drains the private list, steals when it runs dry, and stops when
// neither yields work or the queue stops. It returns the number of tasks run.
func (w *TaskWorker) runTasks() int {
	executed := 0
	for w.queue.IsRunning() {
		for w.queue.IsRunning() && w.runSingleTask() {
			executed++
		}
		if !w.queue.IsRunning() || !w.stealTasks() {
			break
		}
	}
	return executed
}

// run is the loop of a background worker. A panic escaping a task stops this
// worker for good and is returned as a *WorkerPanicError.
func (w *TaskWorker) run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			if p, ok := r.(*taskPanic); ok {
				err = w.retire(p.value, p.stack)
				return
			}
			err = w.retire(r, debug.Stack())
		}
	}()

	for w.queue.IsRunning() {
		w.sem.WaitAndDecrement()
		if !w.queue.IsRunning() {
			return nil
		}
		w.runTasks()
	}
	return nil
}

// retire marks the worker retired and reports the panic. Tasks left in its
// list stay there for siblings to steal.
func (w *TaskWorker) retire(panicInfo any, stack []byte) error {
	q := w.queue
	w.retired.Store(true)
	q.logger.Error("Task worker stopped after panic",
		F("queue", q.name),
		F("worker", w.id),
		F("panic", panicInfo),
		F("queued", w.QueuedTaskCount()),
	)
	q.panicHandler.HandlePanic(w.ctx, q.name, w.id, panicInfo, stack)
	q.metrics.RecordTaskPanic(q.name, panicInfo)
	q.metrics.RecordWorkerRetired(q.name, w.id)

	return &WorkerPanicError{QueueName: q.name, WorkerID: w.id, Value: panicInfo}
}
