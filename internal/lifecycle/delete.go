package lifecycle

import (
	"context"
	"database/sql"

	"github.com/hpungsan/wishaday/internal/db"
	"github.com/hpungsan/wishaday/internal/errors"
)

// DeleteInput contains parameters for the Delete operation.
type DeleteInput struct {
	Slug        string
	RequestedBy string // free-form actor label, logged only
}

// DeleteOutput contains the result of the Delete operation.
type DeleteOutput struct {
	// Deleted is true only when this call moved the wish out of Active.
	Deleted bool   `json:"deleted"`
	Slug    string `json:"slug"`
}

// Delete soft-deletes a wish regardless of its expiry rules. Deleting an
// already soft-deleted or unknown slug succeeds without changing anything.
// On a transition the wish's media is released right away (best-effort);
// the row stays until reclamation.
func (m *Manager) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	if input.Slug == "" {
		return nil, errors.NewInvalidRequest("slug is required")
	}

	var (
		wishID  string
		changed bool
	)

	err := db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		w, err := db.GetWishBySlug(ctx, tx, input.Slug)
		if errors.Is(err, errors.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if w.SoftDeletedAt != nil {
			return nil
		}

		wishID = w.ID
		changed, err = db.MarkSoftDeleted(ctx, tx, w.ID, m.now())
		return err
	})
	if err != nil {
		return nil, err
	}

	if changed {
		m.metrics.SoftDeleted("explicit")
		m.logger.Info("wish deleted", "wish_id", wishID, "requested_by", input.RequestedBy)

		if m.media != nil {
			if err := m.media.DeleteAll(wishID); err != nil {
				m.logger.Warn("failed to release media after delete", "wish_id", wishID, "error", err)
			}
		}
	}

	return &DeleteOutput{Deleted: changed, Slug: input.Slug}, nil
}
