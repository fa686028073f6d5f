package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/totegamma/mediafetch"
	"github.com/totegamma/mediafetch/internal/domain"
	"github.com/totegamma/mediafetch/internal/infra/database"
	"github.com/totegamma/mediafetch/internal/infra/database/models"
)

// These tests need a postgres instance.
// Example: TEST_DATABASE_URL="host=localhost user=postgres password=postgres dbname=mediafetch_test sslmode=disable"
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := database.NewPostgres(dsn)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func uniqueID(t *testing.T) string {
	return fmt.Sprintf("%s-%d", t.Name(), time.Now().UnixNano())
}

func cleanup(t *testing.T, db *gorm.DB, id string) {
	t.Cleanup(func() {
		db.Where("item_id = ?", id).Delete(&models.FetchLog{})
		db.Where("id = ?", id).Delete(&models.Item{})
	})
}

func TestItemRepositorySaveAndGet(t *testing.T) {
	db := setupDB(t)
	repo := NewItemRepository(db)
	ctx := context.Background()

	id := uniqueID(t)
	cleanup(t, db, id)

	record := domain.ItemRecord{
		ID:        id,
		Item:      mediafetch.Item{"title": "first", "file_urls": []any{"http://a/x.jpg", "http://a/y.jpg"}},
		Succeeded: 1,
		Failed:    1,
		Fetches: []domain.FetchLog{
			{SourceURL: "http://a/x.jpg", Bucket: "media", Key: "img_x", Checksum: "hx", Status: "fetched"},
			{SourceURL: "http://a/y.jpg", Bucket: "media", Key: "img_y", Status: "failed", Reason: "store rejected url"},
		},
	}
	if err := repo.Save(ctx, record); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Succeeded != 1 || got.Failed != 1 || got.Item["title"] != "first" {
		t.Fatalf("unexpected record %+v", got)
	}
	if len(got.Fetches) != 2 {
		t.Fatalf("expected 2 fetch logs got %d", len(got.Fetches))
	}
	if got.Fetches[0].Key != "img_x" || got.Fetches[1].Reason != "store rejected url" {
		t.Fatalf("fetch logs out of order %+v", got.Fetches)
	}
}

func TestItemRepositorySaveReplacesLog(t *testing.T) {
	db := setupDB(t)
	repo := NewItemRepository(db)
	ctx := context.Background()

	id := uniqueID(t)
	cleanup(t, db, id)

	first := domain.ItemRecord{
		ID:     id,
		Item:   mediafetch.Item{"title": "first"},
		Failed: 2,
		Fetches: []domain.FetchLog{
			{SourceURL: "http://a/1", Bucket: "media", Key: "k1", Status: "failed"},
			{SourceURL: "http://a/2", Bucket: "media", Key: "k2", Status: "failed"},
		},
	}
	if err := repo.Save(ctx, first); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	second := domain.ItemRecord{
		ID:        id,
		Item:      mediafetch.Item{"title": "second"},
		Succeeded: 1,
		Fetches: []domain.FetchLog{
			{SourceURL: "http://a/3", Bucket: "media", Key: "k3", Checksum: "h3", Status: "cached"},
		},
	}
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Item["title"] != "second" || got.Succeeded != 1 || got.Failed != 0 {
		t.Fatalf("item not upserted %+v", got)
	}
	if len(got.Fetches) != 1 || got.Fetches[0].Key != "k3" {
		t.Fatalf("expected log to be replaced, got %+v", got.Fetches)
	}

	var rows int64
	db.Model(&models.FetchLog{}).Where("item_id = ?", id).Count(&rows)
	if rows != 1 {
		t.Fatalf("expected 1 fetch_logs row got %d", rows)
	}
}

func TestItemRepositoryGetUnknown(t *testing.T) {
	db := setupDB(t)
	repo := NewItemRepository(db)

	_, err := repo.Get(context.Background(), uniqueID(t))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
}
