package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/picvault/picvault/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// A named shared-cache memory DB keeps every pooled connection on the
	// same data; the name keeps tests isolated from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func testImage(n int) *domain.Image {
	return &domain.Image{
		OriginalURL:   fmt.Sprintf("https://imgs.test/pic%d.jpg", n),
		R2URL:         fmt.Sprintf("https://cdn.test/pic%d.jpg", n),
		R2Path:        fmt.Sprintf("1700000000000-abc-pic%d.jpg", n),
		SourceWebsite: "imgs.test",
		SourcePageURL: "https://imgs.test/gallery",
		FileHash:      fmt.Sprintf("%064d", n),
	}
}

func TestInsertValidation(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))
	ctx := context.Background()

	img := testImage(1)
	img.FileHash = ""
	err := repo.Insert(ctx, img)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("got %v, want ErrValidation", err)
	}
	if err.Error() != "validation failed: missing required field: file_hash" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestInsertNormalizesAndDefaults(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))
	ctx := context.Background()

	img := testImage(1)
	img.OriginalURL = "https://imgs.test/pic1.jpg?w=1200#zoom"
	img.SourcePageURL = "https://imgs.test/gallery?page=2"
	if err := repo.Insert(ctx, img); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if img.ID == "" {
		t.Error("ID not assigned")
	}
	if img.OriginalURL != "https://imgs.test/pic1.jpg" {
		t.Errorf("original_url = %q, want normalized", img.OriginalURL)
	}
	if img.SourcePageURL != "https://imgs.test/gallery" {
		t.Errorf("source_page_url = %q, want normalized", img.SourcePageURL)
	}
	if img.Title != "pic1.jpg" {
		t.Errorf("title = %q, want filename default", img.Title)
	}
}

func TestFindByPageAndURL(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))
	ctx := context.Background()

	if err := repo.Insert(ctx, testImage(1)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	// Query-string variants resolve to the same stored row.
	found, err := repo.FindByPageAndURL(ctx, "https://imgs.test/gallery?sort=new", "https://imgs.test/pic1.jpg?thumb=1")
	if err != nil {
		t.Fatalf("FindByPageAndURL: %v", err)
	}
	if found == nil {
		t.Fatal("expected a match")
	}

	missing, err := repo.FindByPageAndURL(ctx, "https://imgs.test/gallery", "https://imgs.test/other.jpg")
	if err != nil {
		t.Fatalf("FindByPageAndURL miss: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for unknown URL")
	}
}

func TestListByPageURL(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		if err := repo.Insert(ctx, testImage(n)); err != nil {
			t.Fatalf("Insert %d: %v", n, err)
		}
	}
	other := testImage(4)
	other.SourcePageURL = "https://imgs.test/another"
	if err := repo.Insert(ctx, other); err != nil {
		t.Fatalf("Insert other: %v", err)
	}

	collected, err := repo.ListByPageURL(ctx, "https://imgs.test/gallery#top")
	if err != nil {
		t.Fatalf("ListByPageURL: %v", err)
	}
	if len(collected) != 3 {
		t.Fatalf("collected = %d, want 3", len(collected))
	}
	for _, ci := range collected {
		if ci.OriginalURL == "" || ci.FileHash == "" || ci.R2Path == "" {
			t.Errorf("incomplete projection: %+v", ci)
		}
	}
}

func TestDeleteByHash(t *testing.T) {
	db := newTestDB(t)
	imageRepo := NewImageRepository(db)
	tagRepo := NewTagRepository(db)
	ctx := context.Background()

	// Two rows share a hash, one does not.
	dup1 := testImage(1)
	dup2 := testImage(2)
	dup2.FileHash = dup1.FileHash
	solo := testImage(3)
	for _, img := range []*domain.Image{dup1, dup2, solo} {
		if err := imageRepo.Insert(ctx, img); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	tag, err := tagRepo.Upsert(ctx, "sunset")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := tagRepo.AddTagToImage(ctx, dup1.ID, tag.ID); err != nil {
		t.Fatalf("AddTagToImage: %v", err)
	}

	deleted, err := imageRepo.DeleteByHash(ctx, dup1.FileHash)
	if err != nil {
		t.Fatalf("DeleteByHash: %v", err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}

	// Associations go with the rows.
	ids, err := tagRepo.TagIDsForImage(ctx, dup1.ID)
	if err != nil {
		t.Fatalf("TagIDsForImage: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("stale tag associations: %v", ids)
	}

	// The unrelated row survives.
	if _, err := imageRepo.GetByID(ctx, solo.ID); err != nil {
		t.Errorf("unrelated row gone: %v", err)
	}

	// A second delete of the same hash finds nothing.
	if _, err := imageRepo.DeleteByHash(ctx, dup1.FileHash); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestQueryFilters(t *testing.T) {
	db := newTestDB(t)
	imageRepo := NewImageRepository(db)
	tagRepo := NewTagRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mk := func(n int, website string, age time.Duration) *domain.Image {
		img := testImage(n)
		img.SourceWebsite = website
		img.CreatedAt = base.Add(-age)
		return img
	}

	imgA := mk(1, "a.test", 2*time.Hour)
	imgB := mk(2, "a.test", 1*time.Hour)
	imgC := mk(3, "b.test", 3*time.Hour)
	for _, img := range []*domain.Image{imgA, imgB, imgC} {
		if err := imageRepo.Insert(ctx, img); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	t1, _ := tagRepo.Upsert(ctx, "cats")
	t2, _ := tagRepo.Upsert(ctx, "macro")
	t3, _ := tagRepo.Upsert(ctx, "film")
	// A carries {cats, macro}, B carries {cats}, C carries {macro, film}.
	tagRepo.AddTagToImage(ctx, imgA.ID, t1.ID)
	tagRepo.AddTagToImage(ctx, imgA.ID, t2.ID)
	tagRepo.AddTagToImage(ctx, imgB.ID, t1.ID)
	tagRepo.AddTagToImage(ctx, imgC.ID, t2.ID)
	tagRepo.AddTagToImage(ctx, imgC.ID, t3.ID)

	t.Run("website filter newest first", func(t *testing.T) {
		images, total, err := imageRepo.Query(ctx, ImageFilter{Websites: []string{"a.test"}})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if total != 2 || len(images) != 2 {
			t.Fatalf("total=%d len=%d, want 2/2", total, len(images))
		}
		if images[0].ID != imgB.ID {
			t.Errorf("first result = %s, want newest (%s)", images[0].ID, imgB.ID)
		}
	})

	t.Run("tag intersection", func(t *testing.T) {
		images, total, err := imageRepo.Query(ctx, ImageFilter{TagIDs: []string{t1.ID, t2.ID}})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if total != 1 || len(images) != 1 {
			t.Fatalf("total=%d len=%d, want 1/1", total, len(images))
		}
		if images[0].ID != imgA.ID {
			t.Errorf("result = %s, want %s", images[0].ID, imgA.ID)
		}
		if len(images[0].Tags) != 2 {
			t.Errorf("tags not preloaded: %+v", images[0].Tags)
		}
	})

	t.Run("empty intersection short-circuits", func(t *testing.T) {
		images, total, err := imageRepo.Query(ctx, ImageFilter{TagIDs: []string{t1.ID, t3.ID}})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if total != 0 || len(images) != 0 {
			t.Errorf("total=%d len=%d, want 0/0", total, len(images))
		}
	})

	t.Run("pagination", func(t *testing.T) {
		images, total, err := imageRepo.Query(ctx, ImageFilter{Offset: 1, Limit: 1})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		if len(images) != 1 {
			t.Fatalf("page size = %d, want 1", len(images))
		}
		if images[0].ID != imgA.ID {
			t.Errorf("second-newest = %s, want %s", images[0].ID, imgA.ID)
		}
	})
}

func TestUpdateTitle(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))
	ctx := context.Background()

	img := testImage(1)
	if err := repo.Insert(ctx, img); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	if err := repo.UpdateTitle(ctx, img.ID, "renamed"); err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	got, err := repo.GetByID(ctx, img.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "renamed" {
		t.Errorf("title = %q", got.Title)
	}

	if err := repo.UpdateTitle(ctx, "no-such-id", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestWebsiteStats(t *testing.T) {
	repo := NewImageRepository(newTestDB(t))
	ctx := context.Background()

	for n := 1; n <= 3; n++ {
		img := testImage(n)
		img.SourceWebsite = "big.test"
		if err := repo.Insert(ctx, img); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	small := testImage(4)
	small.SourceWebsite = "small.test"
	if err := repo.Insert(ctx, small); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	stats, err := repo.WebsiteStats(ctx)
	if err != nil {
		t.Fatalf("WebsiteStats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("stats = %d, want 2", len(stats))
	}
	if stats[0].Domain != "big.test" || stats[0].ImageCount != 3 {
		t.Errorf("first stat = %+v, want big.test/3", stats[0])
	}
	if stats[0].LastCollectedAt == nil {
		t.Error("last_collected_at missing")
	}
}

func TestTagUpsertIdempotent(t *testing.T) {
	repo := NewTagRepository(newTestDB(t))
	ctx := context.Background()

	first, err := repo.Upsert(ctx, "landscape")
	if err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	second, err := repo.Upsert(ctx, "landscape")
	if err != nil {
		t.Fatalf("second Upsert: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("ids differ: %s vs %s", first.ID, second.ID)
	}

	// Case-sensitive: a different casing is a different tag.
	other, err := repo.Upsert(ctx, "Landscape")
	if err != nil {
		t.Fatalf("cased Upsert: %v", err)
	}
	if other.ID == first.ID {
		t.Error("case-sensitive names collapsed into one tag")
	}

	tags, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(tags) != 2 {
		t.Errorf("tags = %d, want 2", len(tags))
	}
}

func TestAddTagToImageIdempotent(t *testing.T) {
	db := newTestDB(t)
	imageRepo := NewImageRepository(db)
	tagRepo := NewTagRepository(db)
	ctx := context.Background()

	img := testImage(1)
	if err := imageRepo.Insert(ctx, img); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	tag, err := tagRepo.Upsert(ctx, "street")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := tagRepo.AddTagToImage(ctx, img.ID, tag.ID); err != nil {
			t.Fatalf("AddTagToImage #%d: %v", i+1, err)
		}
	}

	ids, err := tagRepo.TagIDsForImage(ctx, img.ID)
	if err != nil {
		t.Fatalf("TagIDsForImage: %v", err)
	}
	if len(ids) != 1 {
		t.Errorf("associations = %d, want 1", len(ids))
	}

	if err := tagRepo.RemoveTagFromImage(ctx, img.ID, tag.ID); err != nil {
		t.Fatalf("RemoveTagFromImage: %v", err)
	}
	ids, _ = tagRepo.TagIDsForImage(ctx, img.ID)
	if len(ids) != 0 {
		t.Errorf("association not removed: %v", ids)
	}
}
