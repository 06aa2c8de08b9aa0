package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/hpungsan/wishaday/internal/db"
	"github.com/hpungsan/wishaday/internal/errors"
	"github.com/hpungsan/wishaday/internal/wish"
)

// DefaultTheme is applied when no theme is given.
const DefaultTheme = "default"

// maxInsertAttempts bounds full allocate-and-insert rounds when a concurrent
// creation claims the same slug between the existence check and the insert.
const maxInsertAttempts = 3

// CreateInput contains parameters for the Create operation.
type CreateInput struct {
	Title     *string
	Message   string // required
	Theme     string // default: DefaultTheme
	ExpiresAt *time.Time
	MaxViews  *int
	Origin    string // client network origin; hashed, never stored
}

// CreateOutput contains the result of the Create operation.
type CreateOutput struct {
	ID        string     `json:"id"`
	Slug      string     `json:"slug"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	MaxViews  *int       `json:"max_views,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Create persists a new Active wish. The origin's quota is checked first; a
// rejected request never reaches slug allocation.
func (m *Manager) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	now := m.now().UTC()
	createdAt := now.Truncate(time.Second)

	if strings.TrimSpace(input.Message) == "" {
		return nil, errors.NewInvalidRequest("message is required")
	}
	if strings.TrimSpace(input.Origin) == "" {
		return nil, errors.NewInvalidRequest("origin is required")
	}
	if input.MaxViews != nil && *input.MaxViews <= 0 {
		return nil, errors.NewInvalidRequest("max_views must be positive")
	}
	if input.ExpiresAt != nil && !input.ExpiresAt.After(now) {
		return nil, errors.NewInvalidRequest("expires_at must be in the future")
	}
	if strings.TrimSpace(input.Theme) == "" {
		input.Theme = DefaultTheme
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		input.Title = nil
	}

	fp := m.fingerprints.Fingerprint(input.Origin)
	reservation, err := m.quota.CheckAndRecord(ctx, fp)
	if err != nil {
		if errors.Is(err, errors.ErrRateLimited) {
			m.metrics.QuotaRejected()
			m.logger.Info("creation rate limited", "origin_fp", fp[:12])
		}
		return nil, err
	}

	w := &wish.Wish{
		ID:                newID(now),
		Title:             input.Title,
		Message:           input.Message,
		Theme:             input.Theme,
		ExpiresAt:         timePtrUTC(input.ExpiresAt),
		MaxViews:          input.MaxViews,
		OriginFingerprint: fp,
		CreatedAt:         createdAt,
	}

	if err := m.insertWithFreshSlug(ctx, w); err != nil {
		if relErr := m.quota.Release(ctx, reservation); relErr != nil {
			m.logger.Warn("failed to release quota reservation", "error", relErr)
		}
		return nil, err
	}

	m.metrics.WishCreated()
	m.logger.Info("wish created", "wish_id", w.ID, "slug", w.Slug)

	return &CreateOutput{
		ID:        w.ID,
		Slug:      w.Slug,
		ExpiresAt: w.ExpiresAt,
		MaxViews:  w.MaxViews,
		CreatedAt: w.CreatedAt,
	}, nil
}

// insertWithFreshSlug allocates a slug and inserts w, retrying the pair when
// the UNIQUE constraint reports a slug claimed since the existence check.
func (m *Manager) insertWithFreshSlug(ctx context.Context, w *wish.Wish) error {
	for attempt := 0; attempt < maxInsertAttempts; attempt++ {
		s, err := m.slugs.Allocate(ctx)
		if err != nil {
			return err
		}
		w.Slug = s

		err = db.InsertWish(ctx, m.db, w)
		if err == nil {
			return nil
		}
		if err != db.ErrUniqueConstraint {
			return err
		}
		m.logger.Debug("slug claimed concurrently, reallocating", "slug", s)
	}
	return errors.NewAllocationExhausted(maxInsertAttempts)
}
