package lifecycle

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/hpungsan/wishaday/internal/db"
	"github.com/hpungsan/wishaday/internal/errors"
	"github.com/hpungsan/wishaday/internal/wish"
)

// AttachImageInput contains parameters for the AttachImage operation.
type AttachImageInput struct {
	Slug     string
	Filename string
	Data     []byte
}

// AttachImage stores an image for an Active, unexpired wish. The per-wish
// ceiling is re-checked in the same transaction as the image row insert, so
// concurrent uploads cannot exceed it. Format and size are validated by the
// media store.
func (m *Manager) AttachImage(ctx context.Context, input AttachImageInput) (*ImageOutput, error) {
	if m.media == nil {
		return nil, errors.NewInternal(stderrors.New("no media store configured"))
	}

	w, err := m.openWish(ctx, m.db, input.Slug)
	if err != nil {
		return nil, err
	}

	limit := m.cfg.MaxImagesPerWish
	count, err := db.CountImages(ctx, m.db, w.ID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && count >= limit {
		return nil, errors.NewTooManyImages(limit)
	}

	relPath, err := m.media.Save(w.ID, input.Filename, input.Data)
	if err != nil {
		return nil, err
	}

	now := m.now().UTC().Truncate(time.Second)
	img := &wish.Image{ID: newID(now), WishID: w.ID, Path: relPath, CreatedAt: now}

	err = db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if _, err := m.openWish(ctx, tx, input.Slug); err != nil {
			return err
		}
		count, err := db.CountImages(ctx, tx, w.ID)
		if err != nil {
			return err
		}
		if limit > 0 && count >= limit {
			return errors.NewTooManyImages(limit)
		}
		return db.InsertImage(ctx, tx, img)
	})
	if err != nil {
		if delErr := m.media.Delete(relPath); delErr != nil {
			m.logger.Warn("failed to remove unattached image", "path", relPath, "error", delErr)
		}
		return nil, err
	}

	m.logger.Info("image attached", "wish_id", w.ID, "image_id", img.ID)
	return &ImageOutput{ID: img.ID, Path: img.Path, CreatedAt: img.CreatedAt}, nil
}

// ListImagesOutput contains the result of the ListImages operation.
type ListImagesOutput struct {
	Slug   string        `json:"slug"`
	Images []ImageOutput `json:"images"`
}

// ListImages returns a wish's images without counting a view.
func (m *Manager) ListImages(ctx context.Context, slug string) (*ListImagesOutput, error) {
	w, err := m.openWish(ctx, m.db, slug)
	if err != nil {
		return nil, err
	}

	images, err := db.ListImages(ctx, m.db, w.ID)
	if err != nil {
		return nil, err
	}

	return &ListImagesOutput{Slug: w.Slug, Images: toImageOutputs(images)}, nil
}

// DetachImageInput contains parameters for the DetachImage operation.
type DetachImageInput struct {
	Slug    string
	ImageID string
}

// DetachImageOutput contains the result of the DetachImage operation.
type DetachImageOutput struct {
	Detached bool   `json:"detached"`
	ImageID  string `json:"image_id"`
}

// DetachImage removes one image from an Active wish. The row is deleted
// first; the file is removed afterwards, best-effort.
func (m *Manager) DetachImage(ctx context.Context, input DetachImageInput) (*DetachImageOutput, error) {
	if input.ImageID == "" {
		return nil, errors.NewInvalidRequest("image_id is required")
	}

	var img *wish.Image
	err := db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		w, err := m.openWish(ctx, tx, input.Slug)
		if err != nil {
			return err
		}
		img, err = db.GetImage(ctx, tx, w.ID, input.ImageID)
		if err != nil {
			return err
		}
		return db.DeleteImage(ctx, tx, img.ID)
	})
	if err != nil {
		return nil, err
	}

	if m.media != nil {
		if err := m.media.Delete(img.Path); err != nil {
			m.logger.Warn("failed to remove detached image", "image_id", img.ID, "error", err)
		}
	}

	return &DetachImageOutput{Detached: true, ImageID: img.ID}, nil
}

// openWish loads a wish that may still be modified: present, not
// soft-deleted, and within its boundaries. Anything else is GONE.
func (m *Manager) openWish(ctx context.Context, q db.Querier, slug string) (*wish.Wish, error) {
	if slug == "" {
		return nil, errors.NewInvalidRequest("slug is required")
	}

	w, err := db.GetWishBySlug(ctx, q, slug)
	if err != nil {
		return nil, err
	}
	if w.SoftDeletedAt != nil || wish.Evaluate(w, m.now()).Expired {
		return nil, errors.NewGone(slug)
	}
	return w, nil
}
