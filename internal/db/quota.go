package db

import (
	"context"
	"database/sql"
	"time"
)

// InsertQuotaEvent records one creation by origin at the given time.
func InsertQuotaEvent(ctx context.Context, q Querier, originFP string, at time.Time) (int64, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO quota_events (origin_fp, created_at) VALUES (?, ?)`,
		originFP, at.Unix(),
	)
	if err != nil {
		return 0, wrapErr(err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, wrapErr(err)
	}
	return id, nil
}

// QuotaWindow summarizes an origin's creations strictly after a window start.
type QuotaWindow struct {
	Count int
	// Oldest is the earliest in-window creation; zero if Count is 0.
	Oldest time.Time
}

// GetQuotaWindow counts creations by origin with created_at > since.
func GetQuotaWindow(ctx context.Context, q Querier, originFP string, since time.Time) (QuotaWindow, error) {
	var (
		count  int
		oldest sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*), MIN(created_at) FROM quota_events WHERE origin_fp = ? AND created_at > ?`,
		originFP, since.Unix(),
	).Scan(&count, &oldest)
	if err != nil {
		return QuotaWindow{}, wrapErr(err)
	}

	w := QuotaWindow{Count: count}
	if oldest.Valid {
		w.Oldest = time.Unix(oldest.Int64, 0).UTC()
	}
	return w, nil
}

// DeleteQuotaEvent removes a single event (used to release an unused reservation).
func DeleteQuotaEvent(ctx context.Context, q Querier, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM quota_events WHERE id = ?`, id); err != nil {
		return wrapErr(err)
	}
	return nil
}

// PruneQuotaEvents deletes events at or before the given time.
func PruneQuotaEvents(ctx context.Context, q Querier, before time.Time) (int64, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM quota_events WHERE created_at <= ?`, before.Unix())
	if err != nil {
		return 0, wrapErr(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, wrapErr(err)
	}
	return n, nil
}
