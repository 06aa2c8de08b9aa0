package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/wishaday/internal/errors"
	"github.com/hpungsan/wishaday/internal/wish"
)

// InsertImage records a stored image for a wish.
func InsertImage(ctx context.Context, q Querier, img *wish.Image) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO wish_images (id, wish_id, path, created_at) VALUES (?, ?, ?, ?)`,
		img.ID, img.WishID, img.Path, img.CreatedAt.Unix(),
	)
	if err != nil {
		return wrapErr(err)
	}
	return nil
}

// CountImages returns the number of images attached to a wish.
func CountImages(ctx context.Context, q Querier, wishID string) (int, error) {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM wish_images WHERE wish_id = ?`, wishID).Scan(&n); err != nil {
		return 0, wrapErr(err)
	}
	return n, nil
}

// ListImages returns a wish's images in upload order.
func ListImages(ctx context.Context, q Querier, wishID string) ([]wish.Image, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, wish_id, path, created_at
		FROM wish_images
		WHERE wish_id = ?
		ORDER BY created_at, id
	`, wishID)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer rows.Close()

	images := make([]wish.Image, 0)
	for rows.Next() {
		var (
			img       wish.Image
			createdAt int64
		)
		if err := rows.Scan(&img.ID, &img.WishID, &img.Path, &createdAt); err != nil {
			return nil, wrapErr(err)
		}
		img.CreatedAt = time.Unix(createdAt, 0).UTC()
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(err)
	}

	return images, nil
}

// GetImage retrieves one image belonging to wishID.
func GetImage(ctx context.Context, q Querier, wishID, imageID string) (*wish.Image, error) {
	var (
		img       wish.Image
		createdAt int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, wish_id, path, created_at FROM wish_images WHERE id = ? AND wish_id = ?`,
		imageID, wishID,
	).Scan(&img.ID, &img.WishID, &img.Path, &createdAt)
	if err == sql.ErrNoRows {
		return nil, &errors.WishError{
			Code:    errors.ErrNotFound,
			Status:  404,
			Message: "image not found: " + imageID,
			Details: map[string]any{"image_id": imageID},
		}
	}
	if err != nil {
		return nil, wrapErr(err)
	}
	img.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &img, nil
}

// DeleteImage removes one image row.
func DeleteImage(ctx context.Context, q Querier, imageID string) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM wish_images WHERE id = ?`, imageID); err != nil {
		return wrapErr(err)
	}
	return nil
}
