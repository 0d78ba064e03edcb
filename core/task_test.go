package core

import (
	"context"
	"testing"
)

// TestTaskFunc_Execute verifies the closure adapter
// Given: A TaskFunc capturing a flag
// When: Execute is called through the Task interface
// Then: The closure runs with the supplied context
func TestTaskFunc_Execute(t *testing.T) {
	// Arrange
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "v")
	var got any
	var task Task = TaskFunc(func(ctx context.Context) {
		got = ctx.Value(key{})
	})

	// Act
	task.Execute(ctx)

	// Assert
	if got != "v" {
		t.Errorf("context value = %v, want v", got)
	}
}

// TestGetCurrentTaskQueue verifies extracting the queue and worker from context
// Given: A plain context and a worker context
// When: GetCurrentTaskQueue and GetCurrentWorkerID are called
// Then: They return nil/-1 for the plain context and the stored values otherwise
func TestGetCurrentTaskQueue(t *testing.T) {
	// Arrange, Act and Assert - plain context
	if got := GetCurrentTaskQueue(context.Background()); got != nil {
		t.Fatalf("GetCurrentTaskQueue(background) = %#v, want nil", got)
	}
	if got := GetCurrentWorkerID(context.Background()); got != -1 {
		t.Fatalf("GetCurrentWorkerID(background) = %d, want -1", got)
	}

	// Arrange
	q := NewTaskQueueWithConfig(1, &TaskQueueConfig{Logger: NewNoOpLogger()})
	ctx := withWorker(context.Background(), q, 3)

	// Act and Assert
	if got := GetCurrentTaskQueue(ctx); got != q {
		t.Fatal("GetCurrentTaskQueue(ctx) did not return the queue from context")
	}
	if got := GetCurrentWorkerID(ctx); got != 3 {
		t.Fatalf("GetCurrentWorkerID(ctx) = %d, want 3", got)
	}
}

// TestTask_ContextFromLocalWorker verifies tasks see the executing worker
func TestTask_ContextFromLocalWorker(t *testing.T) {
	// Arrange
	q, _, _ := newTestQueue(1)
	var gotQueue *TaskQueue
	gotWorker := -2

	g := q.CreateGroup()
	g.AddTaskFunc(func(ctx context.Context) {
		gotQueue = GetCurrentTaskQueue(ctx)
		gotWorker = GetCurrentWorkerID(ctx)
	})
	if err := q.ScheduleForExecution(g); err != nil {
		t.Fatalf("ScheduleForExecution failed: %v", err)
	}

	// Act
	q.RunTasks()

	// Assert
	if gotQueue != q {
		t.Error("task did not see its queue in context")
	}
	if gotWorker != 0 {
		t.Errorf("worker id = %d, want 0", gotWorker)
	}
}
