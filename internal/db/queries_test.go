package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/wishaday/internal/errors"
	"github.com/hpungsan/wishaday/internal/wish"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func newTestWish(id, slug string) *wish.Wish {
	return &wish.Wish{
		ID:                id,
		Slug:              slug,
		Message:           "happy birthday",
		Theme:             "default",
		OriginFingerprint: "fp-test",
		CreatedAt:         time.Now().UTC().Truncate(time.Second),
	}
}

func intPtr(n int) *int { return &n }

func stringPtr(s string) *string { return &s }

func TestInsertAndGetBySlug(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	w := newTestWish("01WISH1", "abcd2345")
	w.Title = stringPtr("For you")
	w.ExpiresAt = &expires
	w.MaxViews = intPtr(3)

	if err := InsertWish(ctx, database, w); err != nil {
		t.Fatalf("InsertWish() error = %v", err)
	}

	got, err := GetWishBySlug(ctx, database, "abcd2345")
	if err != nil {
		t.Fatalf("GetWishBySlug() error = %v", err)
	}

	if got.ID != w.ID {
		t.Errorf("ID = %q, want %q", got.ID, w.ID)
	}
	if got.Title == nil || *got.Title != "For you" {
		t.Errorf("Title = %v, want %q", got.Title, "For you")
	}
	if got.ExpiresAt == nil || !got.ExpiresAt.Equal(expires) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, expires)
	}
	if got.MaxViews == nil || *got.MaxViews != 3 {
		t.Errorf("MaxViews = %v, want 3", got.MaxViews)
	}
	if got.CurrentViews != 0 {
		t.Errorf("CurrentViews = %d, want 0", got.CurrentViews)
	}
	if got.OriginFingerprint != "fp-test" {
		t.Errorf("OriginFingerprint = %q, want fp-test", got.OriginFingerprint)
	}
	if !got.CreatedAt.Equal(w.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, w.CreatedAt)
	}
	if got.State() != wish.StateActive {
		t.Errorf("State() = %q, want active", got.State())
	}
}

func TestInsertWish_NullableFields(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	if err := InsertWish(ctx, database, newTestWish("01WISH1", "abcd2345")); err != nil {
		t.Fatalf("InsertWish() error = %v", err)
	}

	got, err := GetWishBySlug(ctx, database, "abcd2345")
	if err != nil {
		t.Fatalf("GetWishBySlug() error = %v", err)
	}
	if got.Title != nil || got.ExpiresAt != nil || got.MaxViews != nil || got.SoftDeletedAt != nil {
		t.Errorf("nullable fields should be nil: %+v", got)
	}
}

func TestInsertWish_DuplicateSlug(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	if err := InsertWish(ctx, database, newTestWish("01WISH1", "abcd2345")); err != nil {
		t.Fatalf("InsertWish() error = %v", err)
	}

	err := InsertWish(ctx, database, newTestWish("01WISH2", "abcd2345"))
	if err != ErrUniqueConstraint {
		t.Errorf("InsertWish(dup slug) error = %v, want ErrUniqueConstraint", err)
	}
}

func TestGetWishBySlug_NotFound(t *testing.T) {
	database := setupDB(t)

	_, err := GetWishBySlug(context.Background(), database, "missing")
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetWishBySlug() error = %v, want NOT_FOUND", err)
	}
}

func TestSlugExists(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	exists, err := SlugExists(ctx, database, "abcd2345")
	if err != nil || exists {
		t.Fatalf("SlugExists(before insert) = %v, %v; want false, nil", exists, err)
	}

	w := newTestWish("01WISH1", "abcd2345")
	if err := InsertWish(ctx, database, w); err != nil {
		t.Fatalf("InsertWish() error = %v", err)
	}
	if _, err := MarkSoftDeleted(ctx, database, w.ID, time.Now()); err != nil {
		t.Fatalf("MarkSoftDeleted() error = %v", err)
	}

	// Soft-deleted wishes still hold their slug
	exists, err = SlugExists(ctx, database, "abcd2345")
	if err != nil || !exists {
		t.Fatalf("SlugExists(soft-deleted) = %v, %v; want true, nil", exists, err)
	}
}

func TestIncrementViews(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := newTestWish("01WISH1", "abcd2345")
	if err := InsertWish(ctx, database, w); err != nil {
		t.Fatalf("InsertWish() error = %v", err)
	}

	if err := IncrementViews(ctx, database, w.ID, 0); err != nil {
		t.Fatalf("IncrementViews() error = %v", err)
	}

	// Stale expectation loses the compare-and-swap
	err := IncrementViews(ctx, database, w.ID, 0)
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("IncrementViews(stale) error = %v, want CONFLICT", err)
	}

	got, _ := GetWishBySlug(ctx, database, w.Slug)
	if got.CurrentViews != 1 {
		t.Errorf("CurrentViews = %d, want 1", got.CurrentViews)
	}
}

func TestIncrementViews_SoftDeletedRejected(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := newTestWish("01WISH1", "abcd2345")
	if err := InsertWish(ctx, database, w); err != nil {
		t.Fatalf("InsertWish() error = %v", err)
	}
	if _, err := MarkSoftDeleted(ctx, database, w.ID, time.Now()); err != nil {
		t.Fatalf("MarkSoftDeleted() error = %v", err)
	}

	err := IncrementViews(ctx, database, w.ID, 0)
	if !errors.Is(err, errors.ErrConflict) {
		t.Errorf("IncrementViews(soft-deleted) error = %v, want CONFLICT", err)
	}
}

func TestMarkSoftDeleted_SetOnce(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := newTestWish("01WISH1", "abcd2345")
	if err := InsertWish(ctx, database, w); err != nil {
		t.Fatalf("InsertWish() error = %v", err)
	}

	first := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	changed, err := MarkSoftDeleted(ctx, database, w.ID, first)
	if err != nil || !changed {
		t.Fatalf("MarkSoftDeleted() = %v, %v; want true, nil", changed, err)
	}

	changed, err = MarkSoftDeleted(ctx, database, w.ID, first.Add(time.Hour))
	if err != nil || changed {
		t.Fatalf("MarkSoftDeleted(again) = %v, %v; want false, nil", changed, err)
	}

	got, _ := GetWishBySlug(ctx, database, w.Slug)
	if got.SoftDeletedAt == nil || !got.SoftDeletedAt.Equal(first) {
		t.Errorf("SoftDeletedAt = %v, want %v (never reset)", got.SoftDeletedAt, first)
	}
}

func TestBoundaryTimestampsNeverRoundEarlier(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	expiresAt := time.Date(2026, 1, 1, 10, 0, 1, 500_400_000, time.UTC)
	w := newTestWish("01WISH1", "abcd2345")
	w.ExpiresAt = &expiresAt
	if err := InsertWish(ctx, database, w); err != nil {
		t.Fatalf("InsertWish() error = %v", err)
	}

	deletedAt := time.Date(2026, 1, 1, 10, 0, 0, 900_000_001, time.UTC)
	if _, err := MarkSoftDeleted(ctx, database, w.ID, deletedAt); err != nil {
		t.Fatalf("MarkSoftDeleted() error = %v", err)
	}

	got, err := GetWishBySlug(ctx, database, w.Slug)
	if err != nil {
		t.Fatalf("GetWishBySlug() error = %v", err)
	}
	if want := time.Date(2026, 1, 1, 10, 0, 1, 501_000_000, time.UTC); !got.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, want)
	}
	if want := time.Date(2026, 1, 1, 10, 0, 0, 901_000_000, time.UTC); !got.SoftDeletedAt.Equal(want) {
		t.Errorf("SoftDeletedAt = %v, want %v", got.SoftDeletedAt, want)
	}

	// A cutoff just short of the stored instant does not qualify
	items, err := ListReclaimable(ctx, database, deletedAt, ReclaimCursor{}, 10)
	if err != nil {
		t.Fatalf("ListReclaimable() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("ListReclaimable() = %+v, want none before soft_deleted_at", items)
	}
	if removed, err := HardDelete(ctx, database, w.ID, deletedAt); err != nil || removed {
		t.Errorf("HardDelete() = %v, %v; want false, nil", removed, err)
	}
}

func TestListReclaimableAndHardDelete(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	for i, slug := range []string{"aaaa2222", "bbbb3333", "cccc4444", "dddd5555"} {
		w := newTestWish("01WISH"+string(rune('A'+i)), slug)
		if err := InsertWish(ctx, database, w); err != nil {
			t.Fatalf("InsertWish() error = %v", err)
		}
		if i < 3 {
			if _, err := MarkSoftDeleted(ctx, database, w.ID, base.Add(time.Duration(i)*time.Minute)); err != nil {
				t.Fatalf("MarkSoftDeleted() error = %v", err)
			}
		}
	}

	// Cutoff at +1m includes the first two soft-deleted wishes
	cutoff := base.Add(time.Minute)
	items, err := ListReclaimable(ctx, database, cutoff, ReclaimCursor{}, 10)
	if err != nil {
		t.Fatalf("ListReclaimable() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("ListReclaimable() returned %d items, want 2", len(items))
	}

	// Keyset cursor continues after the first item
	page, err := ListReclaimable(ctx, database, cutoff, ReclaimCursor{SoftDeletedAt: items[0].SoftDeletedAt, ID: items[0].ID}, 10)
	if err != nil {
		t.Fatalf("ListReclaimable(cursor) error = %v", err)
	}
	if len(page) != 1 || page[0].ID != items[1].ID {
		t.Fatalf("ListReclaimable(cursor) = %+v, want only %s", page, items[1].ID)
	}

	removed, err := HardDelete(ctx, database, items[0].ID, cutoff)
	if err != nil || !removed {
		t.Fatalf("HardDelete() = %v, %v; want true, nil", removed, err)
	}

	// Second removal is a no-op, not an error
	removed, err = HardDelete(ctx, database, items[0].ID, cutoff)
	if err != nil || removed {
		t.Fatalf("HardDelete(again) = %v, %v; want false, nil", removed, err)
	}

	// Active and not-yet-due wishes are never removed
	removed, err = HardDelete(ctx, database, "01WISHD", cutoff)
	if err != nil || removed {
		t.Errorf("HardDelete(active) = %v, %v; want false, nil", removed, err)
	}
	removed, err = HardDelete(ctx, database, "01WISHC", cutoff)
	if err != nil || removed {
		t.Errorf("HardDelete(within grace) = %v, %v; want false, nil", removed, err)
	}
}

func TestHardDelete_CascadesImages(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := newTestWish("01WISH1", "abcd2345")
	if err := InsertWish(ctx, database, w); err != nil {
		t.Fatalf("InsertWish() error = %v", err)
	}
	img := &wish.Image{ID: "01IMG1", WishID: w.ID, Path: "wishes/01WISH1/a.png", CreatedAt: time.Now()}
	if err := InsertImage(ctx, database, img); err != nil {
		t.Fatalf("InsertImage() error = %v", err)
	}

	at := time.Now().Add(-time.Hour)
	if _, err := MarkSoftDeleted(ctx, database, w.ID, at); err != nil {
		t.Fatalf("MarkSoftDeleted() error = %v", err)
	}
	if _, err := HardDelete(ctx, database, w.ID, time.Now()); err != nil {
		t.Fatalf("HardDelete() error = %v", err)
	}

	n, err := CountImages(ctx, database, w.ID)
	if err != nil {
		t.Fatalf("CountImages() error = %v", err)
	}
	if n != 0 {
		t.Errorf("CountImages() = %d after hard delete, want 0", n)
	}
}

func TestImages(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	w := newTestWish("01WISH1", "abcd2345")
	if err := InsertWish(ctx, database, w); err != nil {
		t.Fatalf("InsertWish() error = %v", err)
	}

	now := time.Now()
	for i, id := range []string{"01IMG1", "01IMG2"} {
		img := &wish.Image{ID: id, WishID: w.ID, Path: "wishes/" + id + ".png", CreatedAt: now.Add(time.Duration(i) * time.Second)}
		if err := InsertImage(ctx, database, img); err != nil {
			t.Fatalf("InsertImage() error = %v", err)
		}
	}

	images, err := ListImages(ctx, database, w.ID)
	if err != nil {
		t.Fatalf("ListImages() error = %v", err)
	}
	if len(images) != 2 || images[0].ID != "01IMG1" {
		t.Fatalf("ListImages() = %+v, want 2 images in upload order", images)
	}

	got, err := GetImage(ctx, database, w.ID, "01IMG2")
	if err != nil {
		t.Fatalf("GetImage() error = %v", err)
	}
	if got.Path != "wishes/01IMG2.png" {
		t.Errorf("Path = %q", got.Path)
	}

	if _, err := GetImage(ctx, database, "other-wish", "01IMG2"); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("GetImage(wrong wish) error = %v, want NOT_FOUND", err)
	}

	if err := DeleteImage(ctx, database, "01IMG1"); err != nil {
		t.Fatalf("DeleteImage() error = %v", err)
	}
	n, _ := CountImages(ctx, database, w.ID)
	if n != 1 {
		t.Errorf("CountImages() = %d, want 1", n)
	}
}

func TestQuotaEvents(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := InsertQuotaEvent(ctx, database, "fp-a", base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("InsertQuotaEvent() error = %v", err)
		}
	}
	if _, err := InsertQuotaEvent(ctx, database, "fp-b", base); err != nil {
		t.Fatalf("InsertQuotaEvent() error = %v", err)
	}

	win, err := GetQuotaWindow(ctx, database, "fp-a", base)
	if err != nil {
		t.Fatalf("GetQuotaWindow() error = %v", err)
	}
	// Window start is exclusive
	if win.Count != 2 {
		t.Errorf("Count = %d, want 2", win.Count)
	}
	if !win.Oldest.Equal(base.Add(time.Hour)) {
		t.Errorf("Oldest = %v, want %v", win.Oldest, base.Add(time.Hour))
	}

	empty, err := GetQuotaWindow(ctx, database, "fp-none", base)
	if err != nil {
		t.Fatalf("GetQuotaWindow(empty) error = %v", err)
	}
	if empty.Count != 0 || !empty.Oldest.IsZero() {
		t.Errorf("empty window = %+v, want zero", empty)
	}

	pruned, err := PruneQuotaEvents(ctx, database, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("PruneQuotaEvents() error = %v", err)
	}
	if pruned != 3 {
		t.Errorf("PruneQuotaEvents() = %d, want 3", pruned)
	}
}
