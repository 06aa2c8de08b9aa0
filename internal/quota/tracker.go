// Package quota enforces the per-origin creation ceiling.
package quota

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/wishaday/internal/db"
	"github.com/hpungsan/wishaday/internal/errors"
)

// Window is the trailing period a creation counts against its origin.
const Window = 24 * time.Hour

// Tracker counts creations per origin fingerprint over a sliding Window.
// The persisted quota_events table is the only source of truth, so counts
// hold across restarts and across processes sharing the database.
type Tracker struct {
	db    *sql.DB
	limit int
	now   func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker creates a Tracker allowing limit creations per origin per Window.
// A limit of zero or less disables the ceiling (creations are still recorded).
func NewTracker(database *sql.DB, limit int, opts ...Option) *Tracker {
	t := &Tracker{db: database, limit: limit, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Limit returns the configured ceiling.
func (t *Tracker) Limit() int {
	return t.limit
}

// CheckAndRecord admits one creation for originFP or rejects it with
// RATE_LIMITED. On admission it records the creation and returns the
// reservation id, which the caller passes to Release if the creation is
// then abandoned.
func (t *Tracker) CheckAndRecord(ctx context.Context, originFP string) (int64, error) {
	now := t.now()

	var id int64
	err := db.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		if t.limit > 0 {
			win, err := db.GetQuotaWindow(ctx, tx, originFP, now.Add(-Window))
			if err != nil {
				return err
			}
			if win.Count >= t.limit {
				return errors.NewRateLimited(t.limit, retryAfter(win.Oldest, now))
			}
		}

		var err error
		id, err = db.InsertQuotaEvent(ctx, tx, originFP, now)
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Release gives back a reservation whose creation did not complete.
func (t *Tracker) Release(ctx context.Context, reservation int64) error {
	return db.DeleteQuotaEvent(ctx, t.db, reservation)
}

// Remaining reports how many more creations originFP may make right now.
// It returns -1 when no ceiling is configured.
func (t *Tracker) Remaining(ctx context.Context, originFP string) (int, error) {
	if t.limit <= 0 {
		return -1, nil
	}
	win, err := db.GetQuotaWindow(ctx, t.db, originFP, t.now().Add(-Window))
	if err != nil {
		return 0, err
	}
	if win.Count >= t.limit {
		return 0, nil
	}
	return t.limit - win.Count, nil
}

// Prune deletes records that have left the window. It returns the number removed.
func (t *Tracker) Prune(ctx context.Context) (int64, error) {
	return db.PruneQuotaEvents(ctx, t.db, t.now().Add(-Window))
}

// retryAfter is the whole seconds until the oldest in-window creation expires.
func retryAfter(oldest, now time.Time) int64 {
	wait := oldest.Add(Window).Sub(now)
	secs := int64(wait / time.Second)
	if wait%time.Second != 0 {
		secs++
	}
	if secs < 1 {
		secs = 1
	}
	return secs
}
