package core

// WorkerStats represents runtime observability state for a single TaskWorker.
type WorkerStats struct {
	ID       int
	Local    bool
	Queued   int
	Executed int64
	Stolen   int64
	Retired  bool
}

// QueueStats represents runtime observability state for a TaskQueue.
type QueueStats struct {
	Name          string
	Workers       int
	LiveWorkers   int
	PendingGroups int
	ActiveGroup   bool
	ActiveTasks   int // remaining tasks of the active group
	QueuedTasks   int // tasks sitting in worker lists
	FreeGroups    int
	Running       bool
	WorkerStats   []WorkerStats
}
