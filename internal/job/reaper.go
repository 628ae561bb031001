package job

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Default eviction timings, matching the service's historical constants.
const (
	DefaultCleanupInterval = 60 * time.Second
	DefaultResultTTL       = 30 * time.Minute
	DefaultFailureTTL      = 15 * time.Minute
)

// Reaper periodically evicts finished jobs whose terminal state has
// outlived its TTL. Completed jobs keep their result bundle for
// ResultTTL; failed jobs are dropped after the shorter FailureTTL.
// Jobs that are still queued or running are never evicted.
type Reaper struct {
	store      *Store
	interval   time.Duration
	resultTTL  time.Duration
	failureTTL time.Duration
	logger     *slog.Logger

	startOnce sync.Once
	now       func() time.Time // test hook
}

// NewReaper creates a reaper over store. Non-positive durations fall back
// to the defaults.
func NewReaper(store *Store, interval, resultTTL, failureTTL time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	if resultTTL <= 0 {
		resultTTL = DefaultResultTTL
	}
	if failureTTL <= 0 {
		failureTTL = DefaultFailureTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		store:      store,
		interval:   interval,
		resultTTL:  resultTTL,
		failureTTL: failureTTL,
		logger:     logger,
		now:        time.Now,
	}
}

// Start launches the background sweep loop. It runs until ctx is
// cancelled and is guarded against duplicate starts: only the first call
// per process has any effect.
func (r *Reaper) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		go r.loop(ctx)
	})
}

func (r *Reaper) loop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.sweep(r.now()); n > 0 {
				r.logger.Info("evicted expired jobs", "count", n, "remaining", r.store.Len())
			}
		}
	}
}

// sweep evicts every terminal record whose age since FinishedAt has
// reached its TTL and returns the number of evictions. Scanning is
// best-effort per record: one job never blocks eviction of the others.
func (r *Reaper) sweep(now time.Time) int {
	var expired []string
	for _, rec := range r.store.Records() {
		snap := rec.Snapshot()
		if !snap.Status.Terminal() || snap.FinishedAt.IsZero() {
			continue
		}
		age := now.Sub(snap.FinishedAt)
		switch snap.Status {
		case StatusCompleted:
			if age >= r.resultTTL {
				expired = append(expired, rec.ID)
			}
		case StatusFailed:
			if age >= r.failureTTL {
				expired = append(expired, rec.ID)
			}
		}
	}

	for _, id := range expired {
		r.store.Remove(id)
	}
	return len(expired)
}
