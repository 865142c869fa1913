package files

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the expiry sweeper
var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vlmodel_file_sweep_runs_total",
		Help: "Total number of expiry sweep runs",
	})

	sweepDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vlmodel_file_sweep_deleted_total",
		Help: "Total number of expired files removed by the sweeper",
	})

	sweepErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vlmodel_file_sweep_errors_total",
		Help: "Total number of per-record errors during expiry sweeps",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vlmodel_file_sweep_duration_seconds",
		Help:    "Duration of expiry sweep runs in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
)

// DefaultSweepInterval matches the source system's daily cleanup cadence.
const DefaultSweepInterval = 24 * time.Hour

// SweepResult summarizes one sweep run.
type SweepResult struct {
	Deleted  int
	Errors   int
	Duration time.Duration
}

// Sweeper periodically deletes file records and cached bytes past their
// expiration. It runs outside the request path; per-record deletes keep it
// from blocking unrelated traffic, and a failure on one record never aborts
// the rest of the sweep.
type Sweeper struct {
	store    Store
	cache    *Cache
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex // guards against overlapping RunOnce
	cancel context.CancelFunc
	done   chan struct{}

	now func() time.Time
}

// NewSweeper creates an expiry sweeper. interval <= 0 selects the default.
func NewSweeper(store Store, cache *Cache, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		cache:    cache,
		interval: interval,
		logger:   logger.With("component", "sweeper"),
		now:      time.Now,
	}
}

// Start launches the background sweep goroutine. The first sweep runs
// immediately, which also collects anything a previous crash left behind.
func (s *Sweeper) Start(ctx context.Context) {
	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sweepCtx)

	s.logger.Info("expiry sweeper started", "interval", s.interval.String())
}

// Stop halts the background goroutine and waits for it to exit.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info("expiry sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep. For each expired record the metadata
// delete is committed before the bytes are removed, so a crash mid-sweep
// leaves at most orphaned bytes, never a record pointing at nothing.
func (s *Sweeper) RunOnce(ctx context.Context) *SweepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	result := &SweepResult{}

	expired, err := s.store.ListExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("sweep: failed to list expired records", "error", err)
		result.Errors++
		sweepErrorsTotal.Inc()
		return result
	}

	for _, rec := range expired {
		if err := s.store.Delete(ctx, rec.ID); err != nil {
			s.logger.Error("sweep: failed to delete record", "file_id", rec.ID, "error", err)
			result.Errors++
			sweepErrorsTotal.Inc()
			continue
		}
		if err := s.cache.Remove(rec.ID); err != nil {
			// Orphaned bytes only; the row is already gone.
			s.logger.Error("sweep: failed to remove bytes", "file_id", rec.ID, "error", err)
			result.Errors++
			sweepErrorsTotal.Inc()
			continue
		}
		result.Deleted++
	}

	result.Duration = time.Since(start)

	sweepRunsTotal.Inc()
	sweepDeletedTotal.Add(float64(result.Deleted))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if result.Deleted > 0 || result.Errors > 0 {
		s.logger.Info("sweep finished",
			"deleted", result.Deleted,
			"errors", result.Errors,
			"duration", result.Duration,
		)
	}
	return result
}
