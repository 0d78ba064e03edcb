package core

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// Test PanicHandler
// =============================================================================

// TestPanicHandler is a mock panic handler for testing
type TestPanicHandler struct {
	mu    sync.Mutex
	calls []PanicCall
}

type PanicCall struct {
	QueueName string
	WorkerID  int
	PanicInfo any
	Stack     []byte
}

func NewTestPanicHandler() *TestPanicHandler {
	return &TestPanicHandler{}
}

func (h *TestPanicHandler) HandlePanic(ctx context.Context, queueName string, workerID int, panicInfo any, stackTrace []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, PanicCall{
		QueueName: queueName,
		WorkerID:  workerID,
		PanicInfo: panicInfo,
		Stack:     stackTrace,
	})
}

func (h *TestPanicHandler) GetCalls() []PanicCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]PanicCall(nil), h.calls...)
}

// =============================================================================
// Test Metrics
// =============================================================================

// TestMetrics is a mock metrics collector for testing
type TestMetrics struct {
	mu             sync.Mutex
	taskDurations  int
	taskPanics     []any
	groupDurations []int
	steals         []int
	pendingDepths  []int
	rejections     []string
	retired        []int
}

func NewTestMetrics() *TestMetrics {
	return &TestMetrics{}
}

func (m *TestMetrics) RecordTaskDuration(queueName string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskDurations++
}

func (m *TestMetrics) RecordTaskPanic(queueName string, panicInfo any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.taskPanics = append(m.taskPanics, panicInfo)
}

func (m *TestMetrics) RecordGroupDuration(queueName string, taskCount int, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groupDurations = append(m.groupDurations, taskCount)
}

func (m *TestMetrics) RecordSteal(queueName string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steals = append(m.steals, n)
}

func (m *TestMetrics) RecordPendingGroups(queueName string, depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pendingDepths = append(m.pendingDepths, depth)
}

func (m *TestMetrics) RecordGroupRejected(queueName string, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, reason)
}

func (m *TestMetrics) RecordWorkerRetired(queueName string, workerID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retired = append(m.retired, workerID)
}

func (m *TestMetrics) TaskDurationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.taskDurations
}

func (m *TestMetrics) GroupDurations() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.groupDurations...)
}

func (m *TestMetrics) Rejections() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.rejections...)
}

func (m *TestMetrics) Retired() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.retired...)
}

// =============================================================================
// Test Logger
// =============================================================================

type LogEntry struct {
	Level  string
	Msg    string
	Fields map[string]any
}

// TestLogger records every entry for later inspection
type TestLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

func NewTestLogger() *TestLogger {
	return &TestLogger{}
}

func (l *TestLogger) Debug(msg string, fields ...Field) { l.record("DEBUG", msg, fields) }
func (l *TestLogger) Info(msg string, fields ...Field)  { l.record("INFO", msg, fields) }
func (l *TestLogger) Warn(msg string, fields ...Field)  { l.record("WARN", msg, fields) }
func (l *TestLogger) Error(msg string, fields ...Field) { l.record("ERROR", msg, fields) }

func (l *TestLogger) record(level, msg string, fields []Field) {
	m := make(map[string]any, len(fields))
	for _, f := range fields {
		m[f.Key] = f.Value
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Msg: msg, Fields: m})
}

func (l *TestLogger) EntriesAt(level string) []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []LogEntry
	for _, e := range l.entries {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// newTestQueue builds a queue with recording handlers and no stdout noise.
func newTestQueue(workers int) (*TaskQueue, *TestLogger, *TestMetrics) {
	logger := NewTestLogger()
	metrics := NewTestMetrics()
	q := NewTaskQueueWithConfig(workers, &TaskQueueConfig{
		Name:         "test-queue",
		Logger:       logger,
		PanicHandler: &NoOpPanicHandler{},
		Metrics:      metrics,
	})
	return q, logger, metrics
}

// =============================================================================
// Tests
// =============================================================================

func TestDefaultPanicHandler(t *testing.T) {
	// Given: A DefaultPanicHandler
	handler := &DefaultPanicHandler{}

	// When: HandlePanic is called
	handler.HandlePanic(context.Background(), "test-queue", 3, "test panic", []byte("stack trace"))

	// Then: No panic should occur (handler should not crash)
}

// TestNewTaskQueueWithConfig_Defaults verifies nil config fields are defaulted
// Given: A config with only a name
// When: A queue is created from it
// Then: Logger, PanicHandler and Metrics fall back to the defaults
func TestNewTaskQueueWithConfig_Defaults(t *testing.T) {
	// Arrange and Act
	q := NewTaskQueueWithConfig(2, &TaskQueueConfig{Name: "named"})

	// Assert
	if q.Name() != "named" {
		t.Errorf("Name() = %q, want %q", q.Name(), "named")
	}
	if _, ok := q.logger.(*DefaultLogger); !ok {
		t.Errorf("logger = %T, want *DefaultLogger", q.logger)
	}
	if _, ok := q.panicHandler.(*DefaultPanicHandler); !ok {
		t.Errorf("panicHandler = %T, want *DefaultPanicHandler", q.panicHandler)
	}
	if _, ok := q.metrics.(*NilMetrics); !ok {
		t.Errorf("metrics = %T, want *NilMetrics", q.metrics)
	}
}

// TestNewTaskQueue_GeneratedName verifies unnamed queues get a unique name
func TestNewTaskQueue_GeneratedName(t *testing.T) {
	a := NewTaskQueueWithConfig(1, nil)
	b := NewTaskQueueWithConfig(1, nil)

	if !strings.HasPrefix(a.Name(), "task-queue-") {
		t.Errorf("Name() = %q, want prefix task-queue-", a.Name())
	}
	if a.Name() == b.Name() {
		t.Errorf("two queues share generated name %q", a.Name())
	}
}

func TestWorkerPanicError(t *testing.T) {
	var err error = &WorkerPanicError{QueueName: "q", WorkerID: 2, Value: "boom"}

	var wpe *WorkerPanicError
	if !errors.As(err, &wpe) {
		t.Fatal("errors.As did not match *WorkerPanicError")
	}
	if got, want := err.Error(), "task queue q: worker 2 stopped after panic: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
