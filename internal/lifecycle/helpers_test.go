package lifecycle

import (
	"bytes"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/hpungsan/wishaday/internal/config"
	"github.com/hpungsan/wishaday/internal/db"
	"github.com/hpungsan/wishaday/internal/media"
)

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	db      *sql.DB
	cfg     *config.Config
	media   *media.Store
	clock   *fakeClock
	manager *Manager
}

func setup(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return setupWithConfig(t, config.DefaultConfig(), opts...)
}

func setupWithConfig(t *testing.T, cfg *config.Config, opts ...Option) *testEnv {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	env := &testEnv{
		db:    database,
		cfg:   cfg,
		media: media.NewStore(t.TempDir(), 1024),
		clock: newFakeClock(),
	}
	opts = append([]Option{WithClock(env.clock.Now)}, opts...)
	env.manager = NewManager(database, cfg, env.media, opts...)
	return env
}

func intPtr(n int) *int { return &n }

func stringPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
