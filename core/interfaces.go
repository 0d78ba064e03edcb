package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrQueueStopped is returned when a group is scheduled on a stopped TaskQueue.
var ErrQueueStopped = errors.New("task queue is stopped")

// WorkerPanicError describes a background worker that stopped because a task
// panicked.
type WorkerPanicError struct {
	QueueName string
	WorkerID  int
	Value     any
}

func (e *WorkerPanicError) Error() string {
	return fmt.Sprintf("task queue %s: worker %d stopped after panic: %v", e.QueueName, e.WorkerID, e.Value)
}

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a task panics on a background worker.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called once per retired worker.
	//
	// Parameters:
	// - ctx: The worker context (carries the queue and worker id)
	// - queueName: The name of the task queue
	// - workerID: The index of the worker that ran the task
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, queueName string, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler provides a basic panic handler that prints to stdout.
type DefaultPanicHandler struct{}

// HandlePanic prints panic information to stdout.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, queueName string, workerID int, panicInfo any, stackTrace []byte) {
	fmt.Printf("[Worker %d @ %s] Panic: %v\nStack trace:\n%s", workerID, queueName, panicInfo, stackTrace)
}

// NoOpPanicHandler ignores panics. The worker is still retired and the
// event still reaches the Logger.
type NoOpPanicHandler struct{}

func (h *NoOpPanicHandler) HandlePanic(ctx context.Context, queueName string, workerID int, panicInfo any, stackTrace []byte) {
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting task queue metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods are called from worker goroutines on the task path and should be
// non-blocking and fast.
type Metrics interface {
	// RecordTaskDuration records how long a single task took to execute.
	RecordTaskDuration(queueName string, duration time.Duration)

	// RecordTaskPanic records that a task panicked on a background worker.
	RecordTaskPanic(queueName string, panicInfo any)

	// RecordGroupDuration records the time between a group's distribution
	// and the completion of its last task.
	RecordGroupDuration(queueName string, taskCount int, duration time.Duration)

	// RecordSteal records a successful steal of n tasks.
	RecordSteal(queueName string, n int)

	// RecordPendingGroups records the number of groups waiting behind the
	// active group.
	RecordPendingGroups(queueName string, depth int)

	// RecordGroupRejected records that a group was rejected (e.g., after Stop).
	RecordGroupRejected(queueName string, reason string)

	// RecordWorkerRetired records that a background worker stopped after a panic.
	RecordWorkerRetired(queueName string, workerID int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(queueName string, duration time.Duration) {
}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(queueName string, panicInfo any) {
}

// RecordGroupDuration is a no-op.
func (m *NilMetrics) RecordGroupDuration(queueName string, taskCount int, duration time.Duration) {
}

// RecordSteal is a no-op.
func (m *NilMetrics) RecordSteal(queueName string, n int) {
}

// RecordPendingGroups is a no-op.
func (m *NilMetrics) RecordPendingGroups(queueName string, depth int) {
}

// RecordGroupRejected is a no-op.
func (m *NilMetrics) RecordGroupRejected(queueName string, reason string) {
}

// RecordWorkerRetired is a no-op.
func (m *NilMetrics) RecordWorkerRetired(queueName string, workerID int) {
}

// =============================================================================
// TaskQueueConfig: Configuration for TaskQueue
// =============================================================================

// TaskQueueConfig holds configuration options for TaskQueue.
// All fields are optional; zero values are replaced with defaults.
type TaskQueueConfig struct {
	// Name identifies the queue in logs and metrics. Defaults to "task-queue-<uuid>".
	Name string

	// Logger receives lifecycle events and worker failures. Defaults to DefaultLogger.
	Logger Logger

	// PanicHandler is called when a background task panics. Defaults to DefaultPanicHandler.
	PanicHandler PanicHandler

	// Metrics is called to record queue metrics. Defaults to NilMetrics.
	Metrics Metrics
}

// DefaultTaskQueueConfig returns a config with default handlers.
func DefaultTaskQueueConfig() *TaskQueueConfig {
	return &TaskQueueConfig{
		Logger:       NewDefaultLogger(),
		PanicHandler: &DefaultPanicHandler{},
		Metrics:      &NilMetrics{},
	}
}
