package persist

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/brokerd/brokerd/session"
)

// rebuildChanSize matches the original's mpsc::channel(100_000) for the
// rebuild task queue.
const rebuildChanSize = 100_000

// progressEvery controls how often Rebuilder logs a running count, the Go
// equivalent of the original's "completed_count % 5000 == 0" check.
const progressEvery = 5000

// rebuildJob is what gets pushed onto the channel the rebuilder goroutine
// drains: either a session to restart, or a "done" sentinel that asks the
// goroutine to flush and signal back.
type rebuildJob struct {
	session *session.Session
	done    chan struct{}
}

// Restarter brings a rebuilt offline session back into the broker's live
// session table. It is implemented by whatever owns session lifecycle
// (the broker core), not by persist itself.
type Restarter interface {
	RestartOffline(ctx context.Context, s *session.Session) error
}

// Rebuilder drains rebuild jobs on a single long-lived goroutine, mirroring
// start_local_runtime's dedicated single-thread executor: Rust's Session
// future is !Send, so the original pins rebuild work to one thread rather
// than fanning it across a pool. Go's session.Session has no such
// constraint, but serializing rebuild keeps restart order and log ordering
// predictable, and keeps this package's concurrency story simple.
type Rebuilder struct {
	jobs      chan rebuildJob
	restarter Restarter
	logger    *slog.Logger

	rebuiltTotal prometheus.Counter
}

// NewRebuilder starts the drain goroutine and returns a handle to submit
// work to it. Call Close to stop it.
func NewRebuilder(restarter Restarter, logger *slog.Logger) *Rebuilder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Rebuilder{
		jobs:      make(chan rebuildJob, rebuildChanSize),
		restarter: restarter,
		logger:    logger,
		rebuiltTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brokerd_session_rebuild_total",
			Help: "Offline sessions successfully rebuilt and restarted.",
		}),
	}
	go r.run()
	return r
}

// Collectors exposes the rebuilder's metrics for registration alongside
// the rest of the broker's prometheus collectors.
func (r *Rebuilder) Collectors() []prometheus.Collector {
	return []prometheus.Collector{r.rebuiltTotal}
}

func (r *Rebuilder) run() {
	completed := 0
	for job := range r.jobs {
		if job.done != nil {
			r.logger.Info("offline session rebuild finished", "completed", completed)
			close(job.done)
			continue
		}

		if err := r.restarter.RestartOffline(context.Background(), job.session); err != nil {
			r.logger.Warn("rebuild offline session failed", "client_id", job.session.ClientID, "error", err)
			continue
		}

		completed++
		r.rebuiltTotal.Inc()
		if completed%progressEvery == 0 {
			r.logger.Info("rebuilding offline sessions", "completed", completed)
		}
	}
}

// Submit enqueues a session for rebuild. It blocks if the channel is full.
func (r *Rebuilder) Submit(s *session.Session) {
	r.jobs <- rebuildJob{session: s}
}

// Flush blocks until every job submitted before this call has been
// processed, mirroring RebuildChanType::Done's oneshot-channel handshake.
func (r *Rebuilder) Flush() {
	done := make(chan struct{})
	r.jobs <- rebuildJob{done: done}
	<-done
}

// Close stops the drain goroutine once pending jobs finish.
func (r *Rebuilder) Close() {
	close(r.jobs)
}
