package taskrunner_test

import (
	"context"
	"fmt"
	"sync/atomic"

	taskrunner "github.com/marijnz/bouncingballs-sub001"
)

// ExampleRunGroup demonstrates the basic usage with only one import.
func ExampleRunGroup() {
	// Initialize global task queue
	taskrunner.InitGlobalTaskQueue(4)
	defer taskrunner.ShutdownGlobalTaskQueue()

	q := taskrunner.GetGlobalTaskQueue()

	var sum atomic.Int64
	tasks := make([]taskrunner.Task, 10)
	for i := range tasks {
		tasks[i] = taskrunner.TaskFunc(func(ctx context.Context) {
			sum.Add(int64(i + 1))
		})
	}

	if err := taskrunner.RunGroup(context.Background(), q, tasks...); err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println("sum:", sum.Load())

	// Output:
	// sum: 55
}

// ExampleTaskGroup demonstrates completion callbacks and group ordering.
func ExampleTaskGroup() {
	// A single worker: only the caller runs tasks
	q := taskrunner.NewTaskQueueWithConfig(1, &taskrunner.TaskQueueConfig{Name: "example"})
	defer q.Close()

	first := q.CreateGroup()
	first.SetName("first")
	for i := range 3 {
		first.AddTaskFunc(func(ctx context.Context) {
			fmt.Println("first task", i)
		})
	}
	first.SetOnFinished(func(tasks []taskrunner.Task) {
		fmt.Println("first done with", len(tasks), "tasks")
	})

	second := q.CreateGroup()
	second.AddTaskFunc(func(ctx context.Context) {
		fmt.Println("second task on worker", taskrunner.GetCurrentWorkerID(ctx))
	})
	second.SetOnFinished(func(tasks []taskrunner.Task) {
		fmt.Println("second done")
	})

	_ = q.ScheduleForExecution(first)
	_ = q.ScheduleForExecution(second)
	q.RunTasks()

	// Output:
	// first task 2
	// first task 1
	// first task 0
	// first done with 3 tasks
	// second task on worker 0
	// second done
}
