package lifecycle

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/hpungsan/wishaday/internal/db"
	"github.com/hpungsan/wishaday/internal/errors"
)

func TestDelete_Active(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	created, err := env.manager.Create(ctx, CreateInput{Message: "hi", Origin: "o", MaxViews: intPtr(10)})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	out, err := env.manager.Delete(ctx, DeleteInput{Slug: created.Slug, RequestedBy: "owner"})
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !out.Deleted {
		t.Error("Deleted = false, want true")
	}

	w, err := db.GetWishBySlug(ctx, env.db, created.Slug)
	if err != nil {
		t.Fatalf("soft-deleted wish should remain persisted: %v", err)
	}
	if w.SoftDeletedAt == nil || !w.SoftDeletedAt.Equal(env.clock.Now()) {
		t.Errorf("SoftDeletedAt = %v, want %v", w.SoftDeletedAt, env.clock.Now())
	}
}

func TestDelete_Idempotent(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	created, err := env.manager.Create(ctx, CreateInput{Message: "hi", Origin: "o"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if _, err := env.manager.Delete(ctx, DeleteInput{Slug: created.Slug}); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	first, _ := db.GetWishBySlug(ctx, env.db, created.Slug)

	env.clock.Advance(5 * time.Minute)

	out, err := env.manager.Delete(ctx, DeleteInput{Slug: created.Slug})
	if err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}
	if out.Deleted {
		t.Error("second Delete reported a transition")
	}

	second, _ := db.GetWishBySlug(ctx, env.db, created.Slug)
	if !second.SoftDeletedAt.Equal(*first.SoftDeletedAt) {
		t.Errorf("SoftDeletedAt changed from %v to %v", first.SoftDeletedAt, second.SoftDeletedAt)
	}
}

func TestDelete_UnknownSlug(t *testing.T) {
	env := setup(t)

	out, err := env.manager.Delete(context.Background(), DeleteInput{Slug: "zzzz9999"})
	if err != nil {
		t.Fatalf("Delete(unknown) error = %v, want nil", err)
	}
	if out.Deleted {
		t.Error("Deleted = true for unknown slug")
	}
}

func TestDelete_RequiresSlug(t *testing.T) {
	env := setup(t)

	_, err := env.manager.Delete(context.Background(), DeleteInput{})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Delete(empty) error = %v, want INVALID_REQUEST", err)
	}
}

func TestDelete_ReleasesMediaKeepsRows(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	created, err := env.manager.Create(ctx, CreateInput{Message: "hi", Origin: "o"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	img, err := env.manager.AttachImage(ctx, AttachImageInput{Slug: created.Slug, Filename: "a.png", Data: pngData})
	if err != nil {
		t.Fatalf("AttachImage failed: %v", err)
	}
	abs, _ := env.media.Path(img.Path)

	if _, err := env.manager.Delete(ctx, DeleteInput{Slug: created.Slug}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, err := os.Stat(abs); !os.IsNotExist(err) {
		t.Error("image file still present after delete")
	}

	n, err := db.CountImages(ctx, env.db, created.ID)
	if err != nil {
		t.Fatalf("CountImages failed: %v", err)
	}
	if n != 1 {
		t.Errorf("image rows = %d, want 1 until reclamation", n)
	}
}
