package prometheus

import (
	"context"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/marijnz/bouncingballs-sub001/core"
)

// QueueSnapshotProvider provides current queue stats snapshots.
// *core.TaskQueue implements it.
type QueueSnapshotProvider interface {
	Stats() core.QueueStats
}

// SnapshotPoller periodically exports queue Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	queuesMu sync.RWMutex
	queues   map[string]QueueSnapshotProvider

	queuePending     *prom.GaugeVec
	queueActiveTasks *prom.GaugeVec
	queueQueuedTasks *prom.GaugeVec
	queueFreeGroups  *prom.GaugeVec
	queueWorkers     *prom.GaugeVec
	queueLiveWorkers *prom.GaugeVec
	queueRunning     *prom.GaugeVec
	workerQueued     *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(namespace string, reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if namespace == "" {
		namespace = "taskrunner"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}

	queuePending := gauge("queue_pending_groups", "Groups waiting behind the active group.", "queue")
	queueActiveTasks := gauge("queue_active_tasks", "Unfinished tasks of the active group.", "queue")
	queueQueuedTasks := gauge("queue_queued_tasks", "Tasks sitting in worker lists.", "queue")
	queueFreeGroups := gauge("queue_free_groups", "Recycled groups available for reuse.", "queue")
	queueWorkers := gauge("queue_workers", "Worker count per queue, including the local worker.", "queue")
	queueLiveWorkers := gauge("queue_live_workers", "Workers not retired after a panic.", "queue")
	queueRunning := gauge("queue_running", "Queue running state (1=running, 0=stopped).", "queue")
	workerQueued := gauge("worker_queued_tasks", "Tasks in a single worker list.", "queue", "worker")

	var err error
	for _, g := range []**prom.GaugeVec{
		&queuePending, &queueActiveTasks, &queueQueuedTasks, &queueFreeGroups,
		&queueWorkers, &queueLiveWorkers, &queueRunning, &workerQueued,
	} {
		if *g, err = registerCollector(reg, *g); err != nil {
			return nil, err
		}
	}

	return &SnapshotPoller{
		interval:         interval,
		queues:           make(map[string]QueueSnapshotProvider),
		queuePending:     queuePending,
		queueActiveTasks: queueActiveTasks,
		queueQueuedTasks: queueQueuedTasks,
		queueFreeGroups:  queueFreeGroups,
		queueWorkers:     queueWorkers,
		queueLiveWorkers: queueLiveWorkers,
		queueRunning:     queueRunning,
		workerQueued:     workerQueued,
	}, nil
}

// AddQueue adds or replaces a queue snapshot provider by name.
func (p *SnapshotPoller) AddQueue(name string, provider QueueSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "queue")
	p.queuesMu.Lock()
	p.queues[name] = provider
	p.queuesMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, p.done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	cancel()
	<-done

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.queuesMu.RLock()
	defer p.queuesMu.RUnlock()

	for name, provider := range p.queues {
		stats := provider.Stats()
		p.queuePending.WithLabelValues(name).Set(float64(stats.PendingGroups))
		p.queueActiveTasks.WithLabelValues(name).Set(float64(stats.ActiveTasks))
		p.queueQueuedTasks.WithLabelValues(name).Set(float64(stats.QueuedTasks))
		p.queueFreeGroups.WithLabelValues(name).Set(float64(stats.FreeGroups))
		p.queueWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.queueLiveWorkers.WithLabelValues(name).Set(float64(stats.LiveWorkers))
		if stats.Running {
			p.queueRunning.WithLabelValues(name).Set(1)
		} else {
			p.queueRunning.WithLabelValues(name).Set(0)
		}
		for _, ws := range stats.WorkerStats {
			p.workerQueued.WithLabelValues(name, strconv.Itoa(ws.ID)).Set(float64(ws.Queued))
		}
	}
}
