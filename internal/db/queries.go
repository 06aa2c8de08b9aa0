package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"time"

	"github.com/hpungsan/wishaday/internal/errors"
	"github.com/hpungsan/wishaday/internal/wish"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.WishError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const wishColumns = `
	id, slug, title, message, theme, expires_at, max_views,
	current_views, origin_fp, created_at, soft_deleted_at
`

// InsertWish stores a new Active wish.
func InsertWish(ctx context.Context, q Querier, w *wish.Wish) error {
	query := `
		INSERT INTO wishes (
			id, slug, title, message, theme, expires_at, max_views,
			current_views, origin_fp, created_at, soft_deleted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err := q.ExecContext(ctx, query,
		w.ID, w.Slug, toNullString(w.Title), w.Message, w.Theme,
		toNullUnixMilli(w.ExpiresAt), toNullInt(w.MaxViews),
		w.CurrentViews, w.OriginFingerprint, w.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return wrapErr(err)
	}

	return nil
}

// GetWishBySlug retrieves a wish in any persisted state (Active or SoftDeleted).
func GetWishBySlug(ctx context.Context, q Querier, slug string) (*wish.Wish, error) {
	row := q.QueryRowContext(ctx, `SELECT `+wishColumns+` FROM wishes WHERE slug = ?`, slug)
	w, err := scanWish(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(slug)
	}
	if err != nil {
		return nil, wrapErr(err)
	}
	return w, nil
}

// SlugExists reports whether any persisted wish (Active or SoftDeleted) uses slug.
func SlugExists(ctx context.Context, q Querier, slug string) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM wishes WHERE slug = ? LIMIT 1`, slug).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, wrapErr(err)
	}
	return true, nil
}

// IncrementViews adds exactly one view to an Active wish, guarded by a
// compare-and-swap on the current count. It returns CONFLICT if the row is
// no longer Active or its count moved since it was read.
func IncrementViews(ctx context.Context, q Querier, id string, expected int) error {
	query := `
		UPDATE wishes
		SET current_views = current_views + 1
		WHERE id = ? AND current_views = ? AND soft_deleted_at IS NULL
	`

	result, err := q.ExecContext(ctx, query, id, expected)
	if err != nil {
		return wrapErr(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return wrapErr(err)
	}
	if rowsAffected == 0 {
		return errors.NewConflict("view count changed concurrently")
	}

	return nil
}

// MarkSoftDeleted sets soft_deleted_at on an Active wish.
// It reports false (and no error) if the wish was already soft-deleted or is absent.
// The instant is stored rounded up to the millisecond, so the grace period
// measured from the stored value is never shorter than from at.
func MarkSoftDeleted(ctx context.Context, q Querier, id string, at time.Time) (bool, error) {
	query := `
		UPDATE wishes
		SET soft_deleted_at = ?
		WHERE id = ? AND soft_deleted_at IS NULL
	`

	result, err := q.ExecContext(ctx, query, ceilUnixMilli(at), id)
	if err != nil {
		return false, wrapErr(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, wrapErr(err)
	}

	return rowsAffected > 0, nil
}

// Reclaimable identifies a soft-deleted wish past its grace period.
type Reclaimable struct {
	ID            string
	Slug          string
	SoftDeletedAt int64
}

// ReclaimCursor is a keyset position in (soft_deleted_at, id) order.
// SoftDeletedAt is in Unix milliseconds, as stored.
// The zero value starts from the beginning.
type ReclaimCursor struct {
	SoftDeletedAt int64
	ID            string
}

// ListReclaimable returns up to limit wishes soft-deleted at or before cutoff,
// ordered by (soft_deleted_at, id) and strictly after cursor.
func ListReclaimable(ctx context.Context, q Querier, cutoff time.Time, after ReclaimCursor, limit int) ([]Reclaimable, error) {
	query := `
		SELECT id, slug, soft_deleted_at
		FROM wishes
		WHERE soft_deleted_at IS NOT NULL
		  AND soft_deleted_at <= ?
		  AND (soft_deleted_at > ? OR (soft_deleted_at = ? AND id > ?))
		ORDER BY soft_deleted_at, id
		LIMIT ?
	`

	rows, err := q.QueryContext(ctx, query, cutoff.UnixMilli(), after.SoftDeletedAt, after.SoftDeletedAt, after.ID, limit)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	var items []Reclaimable
	for rows.Next() {
		var r Reclaimable
		if err := rows.Scan(&r.ID, &r.Slug, &r.SoftDeletedAt); err != nil {
			return nil, wrapErr(err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}

	return items, nil
}

// HardDelete permanently removes a soft-deleted wish whose soft_deleted_at
// is at or before cutoff. Image rows cascade. It reports false (and no error)
// if the row was already removed or does not qualify.
func HardDelete(ctx context.Context, q Querier, id string, cutoff time.Time) (bool, error) {
	query := `
		DELETE FROM wishes
		WHERE id = ? AND soft_deleted_at IS NOT NULL AND soft_deleted_at <= ?
	`

	result, err := q.ExecContext(ctx, query, id, cutoff.UnixMilli())
	if err != nil {
		return false, wrapErr(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, wrapErr(err)
	}

	return rowsAffected > 0, nil
}

// scanWish scans a single row into a Wish struct.
func scanWish(row *sql.Row) (*wish.Wish, error) {
	var (
		w             wish.Wish
		title         sql.NullString
		expiresAt     sql.NullInt64
		maxViews      sql.NullInt64
		createdAt     int64
		softDeletedAt sql.NullInt64
	)

	err := row.Scan(
		&w.ID, &w.Slug, &title, &w.Message, &w.Theme, &expiresAt, &maxViews,
		&w.CurrentViews, &w.OriginFingerprint, &createdAt, &softDeletedAt,
	)
	if err != nil {
		return nil, err
	}

	w.Title = fromNullString(title)
	w.ExpiresAt = fromNullUnixMilli(expiresAt)
	w.CreatedAt = time.Unix(createdAt, 0).UTC()
	w.SoftDeletedAt = fromNullUnixMilli(softDeletedAt)
	if maxViews.Valid {
		n := int(maxViews.Int64)
		w.MaxViews = &n
	}

	return &w, nil
}

// wrapErr classifies a driver error. Lock contention and cancellation are
// TRANSIENT (retryable); everything else is INTERNAL.
func wrapErr(err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewTransient(err)
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return errors.NewTransient(err)
	}
	return errors.NewInternal(err)
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func toNullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

// Lifecycle boundaries (expires_at, soft_deleted_at) are stored as Unix
// milliseconds rounded up: a stored boundary is never earlier than the real one.
func toNullUnixMilli(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ceilUnixMilli(*t), Valid: true}
}

func fromNullUnixMilli(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.UnixMilli(n.Int64).UTC()
	return &t
}

func ceilUnixMilli(t time.Time) int64 {
	ms := t.UnixMilli()
	if time.UnixMilli(ms).Before(t) {
		ms++
	}
	return ms
}
