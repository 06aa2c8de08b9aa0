// Package reclaim permanently removes soft-deleted wishes once their grace
// period has passed. It is the only code that deletes wish rows.
package reclaim

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hpungsan/wishaday/internal/config"
	"github.com/hpungsan/wishaday/internal/db"
	"github.com/hpungsan/wishaday/internal/logging"
	"github.com/hpungsan/wishaday/internal/metrics"
	"github.com/hpungsan/wishaday/internal/quota"
)

// DefaultBatchSize is the number of wishes read per keyset page.
const DefaultBatchSize = 100

// MediaReleaser deletes all media stored for a wish.
type MediaReleaser interface {
	DeleteAll(wishID string) error
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Cutoff      time.Time     `json:"cutoff"`
	Scanned     int           `json:"scanned"`
	Removed     int           `json:"removed"`
	AlreadyGone int           `json:"already_gone"`
	MediaErrors int           `json:"media_errors"`
	Errors      int           `json:"errors"`
	QuotaPruned int64         `json:"quota_pruned"`
	Duration    time.Duration `json:"duration_ns"`
}

// Scheduler runs reclamation sweeps on a fixed interval.
type Scheduler struct {
	db        *sql.DB
	media     MediaReleaser
	quota     *quota.Tracker
	grace     time.Duration
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
	wg   sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now when computing the grace cutoff.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMetrics records sweep outcomes on met.
func WithMetrics(met *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = met
	}
}

// WithBatchSize overrides DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewScheduler creates a Scheduler using the grace period and interval from cfg.
// media may be nil, in which case only rows are removed.
func NewScheduler(database *sql.DB, cfg *config.Config, media MediaReleaser, opts ...Option) *Scheduler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	s := &Scheduler{
		db:        database,
		media:     media,
		grace:     cfg.GracePeriod(),
		interval:  cfg.CleanupInterval(),
		batchSize: DefaultBatchSize,
		logger:    logging.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.quota = quota.NewTracker(database, cfg.MaxWishesPerOriginPerDay, quota.WithClock(s.now))
	return s
}

// Sweep removes every wish soft-deleted at or before now minus the grace
// period. Wishes are visited in (soft_deleted_at, id) order with a keyset
// cursor, so a sweep never revisits a row and tolerates concurrent sweeps:
// a row another sweep already removed is counted as AlreadyGone.
//
// Per-wish failures are logged and counted; they never abort the sweep.
// The returned error is non-nil only if listing candidates fails.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepResult, error) {
	start := time.Now()
	result := &SweepResult{Cutoff: s.now().Add(-s.grace).UTC()}

	defer func() {
		result.Duration = time.Since(start)
		s.metrics.ObserveSweep(result.Duration.Seconds())
		s.metrics.Reclaimed(result.Removed)
	}()

	var cursor db.ReclaimCursor
	for {
		batch, err := db.ListReclaimable(ctx, s.db, result.Cutoff, cursor, s.batchSize)
		if err != nil {
			return result, err
		}

		for _, item := range batch {
			s.reclaimOne(ctx, item, result)
			cursor = db.ReclaimCursor{SoftDeletedAt: item.SoftDeletedAt, ID: item.ID}
		}

		if len(batch) < s.batchSize {
			break
		}
	}

	pruned, err := s.quota.Prune(ctx)
	if err != nil {
		s.logger.Warn("failed to prune quota records", "error", err)
	}
	result.QuotaPruned = pruned

	return result, nil
}

func (s *Scheduler) reclaimOne(ctx context.Context, item db.Reclaimable, result *SweepResult) {
	result.Scanned++

	if s.media != nil {
		if err := s.media.DeleteAll(item.ID); err != nil {
			result.MediaErrors++
			s.metrics.ReclaimError("media")
			s.logger.Warn("failed to delete media", "wish_id", item.ID, "error", err)
		}
	}

	removed, err := db.HardDelete(ctx, s.db, item.ID, result.Cutoff)
	if err != nil {
		result.Errors++
		s.metrics.ReclaimError("remove")
		s.logger.Error("failed to remove wish", "wish_id", item.ID, "error", err)
		return
	}
	if !removed {
		result.AlreadyGone++
		return
	}

	result.Removed++
	s.logger.Debug("wish reclaimed", "wish_id", item.ID, "slug", item.Slug)
}

// Start schedules Sweep every interval and runs one sweep immediately in
// the background. Overlapping runs are skipped. Calling Start twice is an error.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return fmt.Errorf("reclaim scheduler already started")
	}
	if s.interval <= 0 {
		return fmt.Errorf("cleanup interval must be positive, got %s", s.interval)
	}

	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	if _, err := c.AddFunc("@every "+s.interval.String(), s.run); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	c.Start()
	s.cron = c

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run()
	}()

	s.logger.Info("reclaim scheduler started", "interval", s.interval, "grace_period", s.grace)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return nil
	}

	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("reclaim scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout())
	defer cancel()

	result, err := s.Sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "error", err)
		return
	}
	if result.Scanned > 0 || result.QuotaPruned > 0 {
		s.logger.Info("sweep finished",
			"removed", result.Removed,
			"already_gone", result.AlreadyGone,
			"errors", result.Errors,
			"media_errors", result.MediaErrors,
			"quota_pruned", result.QuotaPruned,
			"duration", result.Duration,
		)
	}
}

// runTimeout keeps one scheduled sweep from outliving its interval by much.
func (s *Scheduler) runTimeout() time.Duration {
	if s.interval < time.Minute {
		return time.Minute
	}
	return s.interval
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
