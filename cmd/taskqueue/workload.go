package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/marijnz/bouncingballs-sub001/core"
)

// workload describes the synthetic groups submitted by the run command.
type workload struct {
	Groups        int
	TasksPerGroup int
	TaskDuration  time.Duration
	// Jitter adds up to this much random extra time to each task.
	Jitter time.Duration
}

func (w workload) validate() error {
	if w.Groups < 1 {
		return fmt.Errorf("groups must be at least 1, got %d", w.Groups)
	}
	if w.TasksPerGroup < 1 {
		return fmt.Errorf("tasks must be at least 1, got %d", w.TasksPerGroup)
	}
	if w.TaskDuration < 0 || w.Jitter < 0 {
		return fmt.Errorf("task duration and jitter must not be negative")
	}
	return nil
}

type workloadResult struct {
	Groups   int
	Tasks    int64
	Finished int64
	Elapsed  time.Duration
}

// runWorkload schedules every group up front, then helps on the calling
// goroutine until the queue is idle. Groups are recycled afterwards.
func runWorkload(ctx context.Context, q *core.TaskQueue, w workload) (workloadResult, error) {
	if err := w.validate(); err != nil {
		return workloadResult{}, err
	}

	var executed, finished atomic.Int64
	groups := make([]*core.TaskGroup, 0, w.Groups)
	start := time.Now()

	for i := range w.Groups {
		g := q.CreateGroup()
		g.SetName(fmt.Sprintf("group-%d", i))
		for range w.TasksPerGroup {
			g.AddTaskFunc(func(ctx context.Context) {
				d := w.TaskDuration
				if w.Jitter > 0 {
					d += rand.N(w.Jitter)
				}
				if d > 0 {
					time.Sleep(d)
				}
				executed.Add(1)
			})
		}
		g.SetOnFinished(func([]core.Task) { finished.Add(1) })

		if err := q.ScheduleForExecution(g); err != nil {
			q.DeleteGroup(g)
			return workloadResult{}, fmt.Errorf("scheduling group %d: %w", i, err)
		}
		groups = append(groups, g)
	}

	if err := q.WaitIdle(ctx); err != nil {
		return workloadResult{}, fmt.Errorf("waiting for queue: %w", err)
	}
	for _, g := range groups {
		q.DeleteGroup(g)
	}

	return workloadResult{
		Groups:   w.Groups,
		Tasks:    executed.Load(),
		Finished: finished.Load(),
		Elapsed:  time.Since(start),
	}, nil
}
