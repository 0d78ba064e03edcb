package prometheus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/marijnz/bouncingballs-sub001/core"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	// DurationBuckets applies to task durations. Defaults to prom.DefBuckets.
	DurationBuckets []float64

	// GroupDurationBuckets applies to group durations. Defaults to prom.DefBuckets.
	GroupDurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds  *prom.HistogramVec
	taskPanicTotal       *prom.CounterVec
	groupDurationSeconds *prom.HistogramVec
	groupTasksTotal      *prom.CounterVec
	stealTotal           *prom.CounterVec
	stolenTasksTotal     *prom.CounterVec
	pendingGroups        *prom.GaugeVec
	groupRejectedTotal   *prom.CounterVec
	workerRetiredTotal   *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
// Collectors already registered on reg by an earlier exporter are shared.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskrunner"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	groupBuckets := opts.GroupDurationBuckets
	if len(groupBuckets) == 0 {
		groupBuckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"queue"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of tasks that panicked on a background worker.",
	}, []string{"queue"})
	groupDurationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "group_duration_seconds",
		Help:      "Time from group distribution to completion of its last task.",
		Buckets:   groupBuckets,
	}, []string{"queue"})
	groupTasksVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "group_tasks_total",
		Help:      "Total number of tasks in completed groups.",
	}, []string{"queue"})
	stealVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "steal_total",
		Help:      "Total number of successful steals.",
	}, []string{"queue"})
	stolenVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "stolen_tasks_total",
		Help:      "Total number of tasks moved by steals.",
	}, []string{"queue"})
	pendingVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pending_groups",
		Help:      "Groups waiting behind the active group.",
	}, []string{"queue"})
	rejectedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "group_rejected_total",
		Help:      "Total number of rejected groups.",
	}, []string{"queue", "reason"})
	retiredVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "worker_retired_total",
		Help:      "Total number of workers stopped after a panic.",
	}, []string{"queue", "worker"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if groupDurationVec, err = registerCollector(reg, groupDurationVec); err != nil {
		return nil, err
	}
	if groupTasksVec, err = registerCollector(reg, groupTasksVec); err != nil {
		return nil, err
	}
	if stealVec, err = registerCollector(reg, stealVec); err != nil {
		return nil, err
	}
	if stolenVec, err = registerCollector(reg, stolenVec); err != nil {
		return nil, err
	}
	if pendingVec, err = registerCollector(reg, pendingVec); err != nil {
		return nil, err
	}
	if rejectedVec, err = registerCollector(reg, rejectedVec); err != nil {
		return nil, err
	}
	if retiredVec, err = registerCollector(reg, retiredVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds:  durationVec,
		taskPanicTotal:       panicVec,
		groupDurationSeconds: groupDurationVec,
		groupTasksTotal:      groupTasksVec,
		stealTotal:           stealVec,
		stolenTasksTotal:     stolenVec,
		pendingGroups:        pendingVec,
		groupRejectedTotal:   rejectedVec,
		workerRetiredTotal:   retiredVec,
	}, nil
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(queueName string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(queueName, "unknown")).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(queueName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(queueName, "unknown")).Inc()
}

// RecordGroupDuration records a completed group.
func (m *MetricsExporter) RecordGroupDuration(queueName string, taskCount int, duration time.Duration) {
	if m == nil {
		return
	}
	queue := normalizeLabel(queueName, "unknown")
	m.groupDurationSeconds.WithLabelValues(queue).Observe(duration.Seconds())
	m.groupTasksTotal.WithLabelValues(queue).Add(float64(taskCount))
}

// RecordSteal records a successful steal of n tasks.
func (m *MetricsExporter) RecordSteal(queueName string, n int) {
	if m == nil {
		return
	}
	queue := normalizeLabel(queueName, "unknown")
	m.stealTotal.WithLabelValues(queue).Inc()
	m.stolenTasksTotal.WithLabelValues(queue).Add(float64(n))
}

// RecordPendingGroups records the pending group depth.
func (m *MetricsExporter) RecordPendingGroups(queueName string, depth int) {
	if m == nil {
		return
	}
	m.pendingGroups.WithLabelValues(normalizeLabel(queueName, "unknown")).Set(float64(depth))
}

// RecordGroupRejected records group rejection events.
func (m *MetricsExporter) RecordGroupRejected(queueName string, reason string) {
	if m == nil {
		return
	}
	m.groupRejectedTotal.WithLabelValues(normalizeLabel(queueName, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

// RecordWorkerRetired records a worker stopped after a panic.
func (m *MetricsExporter) RecordWorkerRetired(queueName string, workerID int) {
	if m == nil {
		return
	}
	m.workerRetiredTotal.WithLabelValues(normalizeLabel(queueName, "unknown"), strconv.Itoa(workerID)).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
