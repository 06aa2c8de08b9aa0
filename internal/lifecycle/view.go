package lifecycle

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/wishaday/internal/db"
	"github.com/hpungsan/wishaday/internal/errors"
	"github.com/hpungsan/wishaday/internal/wish"
)

// ImageOutput describes one stored image.
type ImageOutput struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// ViewOutput is the snapshot returned to a viewer who was shown the wish.
type ViewOutput struct {
	Slug           string        `json:"slug"`
	Title          *string       `json:"title,omitempty"`
	Message        string        `json:"message"`
	Theme          string        `json:"theme"`
	Images         []ImageOutput `json:"images"`
	CurrentViews   int           `json:"current_views"`
	MaxViews       *int          `json:"max_views,omitempty"`
	RemainingViews *int          `json:"remaining_views,omitempty"`
	ExpiresAt      *time.Time    `json:"expires_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`

	// FinalView is true when this view consumed the last allowed view.
	FinalView bool `json:"final_view"`
}

// View counts one view of the wish identified by slug and returns its content.
//
// The lookup, pre-increment expiry check, increment, and post-increment
// transition run in one immediate transaction, so concurrent viewers of the
// same wish are serialized and exactly max_views of them are shown content.
// A wish already past a boundary is soft-deleted and reported GONE without
// being counted. If the transaction cannot commit, the caller gets TRANSIENT
// and no view is recorded.
func (m *Manager) View(ctx context.Context, slug string) (*ViewOutput, error) {
	if slug == "" {
		return nil, errors.NewInvalidRequest("slug is required")
	}

	var (
		out     *ViewOutput
		wishID  string
		expired wish.Reason
	)

	err := db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		w, err := db.GetWishBySlug(ctx, tx, slug)
		if err != nil {
			return err
		}
		if w.SoftDeletedAt != nil {
			return errors.NewGone(slug)
		}
		wishID = w.ID
		now := m.now()

		if v := wish.Evaluate(w, now); v.Expired {
			if _, err := db.MarkSoftDeleted(ctx, tx, w.ID, now); err != nil {
				return err
			}
			expired = v.Reason
			return nil
		}

		if err := db.IncrementViews(ctx, tx, w.ID, w.CurrentViews); err != nil {
			if errors.Is(err, errors.ErrConflict) {
				return errors.NewTransient(err)
			}
			return err
		}
		w.CurrentViews++

		final := false
		if v := wish.Evaluate(w, now); v.Expired {
			if _, err := db.MarkSoftDeleted(ctx, tx, w.ID, now); err != nil {
				return err
			}
			expired = v.Reason
			final = true
		}

		images, err := db.ListImages(ctx, tx, w.ID)
		if err != nil {
			return err
		}

		out = newViewOutput(w, images)
		out.FinalView = final
		return nil
	})

	if err != nil {
		m.metrics.ViewResult(viewResultLabel(err))
		if errors.Is(err, errors.ErrTransient) {
			m.logger.Warn("view not committed", "slug", slug, "error", err)
		}
		return nil, err
	}

	if expired != wish.ReasonNone {
		m.metrics.SoftDeleted(string(expired))
		m.logger.Info("wish expired", "wish_id", wishID, "reason", string(expired))
	}

	if out == nil {
		m.metrics.ViewResult("gone")
		return nil, errors.NewGone(slug)
	}

	m.metrics.ViewResult("shown")
	return out, nil
}

func newViewOutput(w *wish.Wish, images []wish.Image) *ViewOutput {
	return &ViewOutput{
		Slug:           w.Slug,
		Title:          w.Title,
		Message:        w.Message,
		Theme:          w.Theme,
		Images:         toImageOutputs(images),
		CurrentViews:   w.CurrentViews,
		MaxViews:       w.MaxViews,
		RemainingViews: wish.RemainingViews(w),
		ExpiresAt:      w.ExpiresAt,
		CreatedAt:      w.CreatedAt,
	}
}

func toImageOutputs(images []wish.Image) []ImageOutput {
	out := make([]ImageOutput, len(images))
	for i, img := range images {
		out[i] = ImageOutput{ID: img.ID, Path: img.Path, CreatedAt: img.CreatedAt}
	}
	return out
}

func viewResultLabel(err error) string {
	switch {
	case errors.Is(err, errors.ErrGone):
		return "gone"
	case errors.Is(err, errors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
