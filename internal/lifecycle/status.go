package lifecycle

import (
	"context"
	"time"

	"github.com/hpungsan/wishaday/internal/db"
	"github.com/hpungsan/wishaday/internal/errors"
	"github.com/hpungsan/wishaday/internal/wish"
)

// Status values reported by Status.
const (
	StatusActive  = "active"
	StatusExpired = "expired"
	StatusDeleted = "deleted"
)

// StatusOutput describes a wish without counting a view.
type StatusOutput struct {
	Exists         bool       `json:"exists"`
	Slug           string     `json:"slug"`
	State          string     `json:"state"`
	CurrentViews   int        `json:"current_views"`
	MaxViews       *int       `json:"max_views,omitempty"`
	RemainingViews *int       `json:"remaining_views,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
	ImageCount     int        `json:"image_count"`
}

// Status reports a wish's state read-only. An Active wish whose boundary has
// passed but which nobody has viewed since is reported as "expired".
// A slug with no persisted wish returns NOT_FOUND.
func (m *Manager) Status(ctx context.Context, slug string) (*StatusOutput, error) {
	if slug == "" {
		return nil, errors.NewInvalidRequest("slug is required")
	}

	w, err := db.GetWishBySlug(ctx, m.db, slug)
	if err != nil {
		return nil, err
	}

	images, err := db.CountImages(ctx, m.db, w.ID)
	if err != nil {
		return nil, err
	}

	state := StatusActive
	switch {
	case w.SoftDeletedAt != nil:
		state = StatusDeleted
	case wish.Evaluate(w, m.now()).Expired:
		state = StatusExpired
	}

	return &StatusOutput{
		Exists:         true,
		Slug:           w.Slug,
		State:          state,
		CurrentViews:   w.CurrentViews,
		MaxViews:       w.MaxViews,
		RemainingViews: wish.RemainingViews(w),
		ExpiresAt:      w.ExpiresAt,
		CreatedAt:      w.CreatedAt,
		DeletedAt:      w.SoftDeletedAt,
		ImageCount:     images,
	}, nil
}
