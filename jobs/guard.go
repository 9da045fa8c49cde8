package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	jobmetrics "github.com/condohub/condohub/internal/jobs"
)

// ErrJobRunning is returned when a trigger finds the job already running.
var ErrJobRunning = errors.New("jobs: job already running")

// Guard serializes runs of the same job: an in-process flag stops overlap
// inside one process and the Redis lease stops it across processes.
type Guard struct {
	mu       sync.Mutex
	inflight map[string]bool
	lease    *Lease
	metrics  *jobmetrics.Metrics
	logger   *slog.Logger
}

// NewGuard builds a guard. lease may be nil for single-process use.
func NewGuard(lease *Lease, metrics *jobmetrics.Metrics, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{inflight: make(map[string]bool), lease: lease, metrics: metrics, logger: logger}
}

// Do runs fn unless job is already running, in which case it returns ErrJobRunning.
func (g *Guard) Do(ctx context.Context, job string, fn func(context.Context) error) error {
	if !g.claim(job) {
		return g.skip(job, "in-process")
	}
	defer g.unclaim(job)

	release, ok, err := g.lease.Acquire(ctx, job)
	if err != nil {
		g.logger.Error("job lease failed", slog.String("job", job), slog.Any("error", err))
		return err
	}
	if !ok {
		return g.skip(job, "lease")
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			g.logger.Warn("job lease release failed", slog.String("job", job), slog.Any("error", err))
		}
	}()

	return fn(ctx)
}

func (g *Guard) claim(job string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inflight[job] {
		return false
	}
	g.inflight[job] = true
	return true
}

func (g *Guard) unclaim(job string) {
	g.mu.Lock()
	delete(g.inflight, job)
	g.mu.Unlock()
}

func (g *Guard) skip(job, holder string) error {
	g.metrics.Skipped(job)
	g.logger.Warn("job skipped, previous run still active", slog.String("job", job), slog.String("holder", holder))
	return ErrJobRunning
}
