// Package lifecycle owns the wish state machine. Manager is the only
// component that moves a wish between Active and SoftDeleted; permanent
// removal belongs to the reclaim package.
package lifecycle

import (
	"context"
	"crypto/rand"
	"database/sql"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/wishaday/internal/config"
	"github.com/hpungsan/wishaday/internal/db"
	"github.com/hpungsan/wishaday/internal/logging"
	"github.com/hpungsan/wishaday/internal/metrics"
	"github.com/hpungsan/wishaday/internal/quota"
	"github.com/hpungsan/wishaday/internal/slug"
)

// MediaStore is the image collaborator contract.
type MediaStore interface {
	Save(wishID, filename string, data []byte) (string, error)
	Delete(relPath string) error
	DeleteAll(wishID string) error
}

// Manager orchestrates creation, viewing, deletion, and image attachment.
type Manager struct {
	db           *sql.DB
	cfg          *config.Config
	media        MediaStore
	quota        *quota.Tracker
	slugs        *slug.Allocator
	fingerprints *quota.Fingerprinter
	logger       *slog.Logger
	metrics      *metrics.Metrics
	now          func() time.Time
	slugOpts     []slug.Option
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards output.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides time.Now for the manager and its quota tracker.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithMetrics records lifecycle events on met.
func WithMetrics(met *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = met
	}
}

// WithFingerprinter overrides the fingerprinter derived from cfg.FingerprintSecret.
func WithFingerprinter(f *quota.Fingerprinter) Option {
	return func(m *Manager) {
		if f != nil {
			m.fingerprints = f
		}
	}
}

// WithSlugOptions passes options through to the slug allocator.
func WithSlugOptions(opts ...slug.Option) Option {
	return func(m *Manager) {
		m.slugOpts = append(m.slugOpts, opts...)
	}
}

// NewManager creates a Manager over database. A nil cfg uses config.DefaultConfig.
func NewManager(database *sql.DB, cfg *config.Config, media MediaStore, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	m := &Manager{
		db:     database,
		cfg:    cfg,
		media:  media,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.fingerprints == nil {
		m.fingerprints = quota.NewFingerprinter(cfg.FingerprintSecret)
	}
	m.quota = quota.NewTracker(database, cfg.MaxWishesPerOriginPerDay, quota.WithClock(m.now))
	m.slugs = slug.NewAllocator(func(ctx context.Context, s string) (bool, error) {
		return db.SlugExists(ctx, database, s)
	}, m.slugOpts...)

	return m
}

// Quota returns the manager's quota tracker.
func (m *Manager) Quota() *quota.Tracker {
	return m.quota
}

// newID returns a ULID stamped with t.
func newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

// timePtrUTC returns a UTC copy of t, or nil.
func timePtrUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
