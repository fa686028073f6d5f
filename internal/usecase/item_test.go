package usecase

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/totegamma/mediafetch"
	"github.com/totegamma/mediafetch/internal/domain"
)

func newItemUsecase(store StoreClient, repo ItemRepository, pub EventPublisher) *ItemUsecase {
	fetch := NewFetchUsecase(store, FetchOptions{}, nil)
	return NewItemUsecase(fetch, repo, pub, ItemOptions{Bucket: "media", Prefix: "img_"}, nil)
}

func filesOf(t *testing.T, item mediafetch.Item) []mediafetch.FileResult {
	t.Helper()
	files, ok := item["files"].([]mediafetch.FileResult)
	if !ok {
		t.Fatalf("expected files field, got %T", item["files"])
	}
	return files
}

func TestProcessFetchesUncachedURLs(t *testing.T) {
	store := newMockStore()
	uc := newItemUsecase(store, nil, nil)

	item := mediafetch.Item{"file_urls": []any{"http://a/x.jpg", "http://a/y.jpg"}}
	out, err := uc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if store.fetchCount() != 2 {
		t.Fatalf("expected 2 fetches got %d", store.fetchCount())
	}

	files := filesOf(t, out)
	if len(files) != 2 {
		t.Fatalf("expected 2 results got %d", len(files))
	}

	fpX := Fingerprint(ResourceRequest{URL: "http://a/x.jpg"})
	if files[0].Container != "media" || files[0].Key != "img_"+fpX {
		t.Fatalf("unexpected destination %+v", files[0])
	}
	if files[0].Checksum != "hash-http://a/x.jpg" || files[1].Checksum != "hash-http://a/y.jpg" {
		t.Fatalf("unexpected checksums %+v", files)
	}
}

func TestProcessSkipsCachedURL(t *testing.T) {
	store := newMockStore()
	uc := newItemUsecase(store, nil, nil)

	dest, _ := uc.ResolveURL("http://a/x.jpg", "")
	store.put(dest.Bucket, dest.Key, domain.Stat{Checksum: "cached"})

	item := mediafetch.Item{"file_urls": []any{"http://a/x.jpg", "http://a/y.jpg"}}
	out, err := uc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if store.fetchCount() != 1 {
		t.Fatalf("expected 1 fetch got %d", store.fetchCount())
	}
	files := filesOf(t, out)
	if len(files) != 2 {
		t.Fatalf("expected 2 results got %d", len(files))
	}
	if files[0].Checksum != "cached" {
		t.Fatalf("expected cached checksum first, got %+v", files[0])
	}
}

func TestProcessCustomRule(t *testing.T) {
	store := newMockStore()
	uc := newItemUsecase(store, nil, nil)

	item := mediafetch.Item{
		"file_urls": []any{"http://a/x.jpg"},
		"file_keygen": KeyRule(func(string) (string, string) {
			return "", "custom/1"
		}),
	}
	out, err := uc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	files := filesOf(t, out)
	if len(files) != 1 || files[0].Container != "media" || files[0].Key != "custom/1" {
		t.Fatalf("unexpected files %+v", files)
	}
}

func TestProcessNamedRule(t *testing.T) {
	store := newMockStore()
	uc := newItemUsecase(store, nil, nil)

	item := mediafetch.Item{
		"file_urls":   []string{"http://cdn.example/a/b.png"},
		"file_keygen": "path",
	}
	out, err := uc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	files := filesOf(t, out)
	if len(files) != 1 || files[0].Key != "cdn.example/a/b.png" {
		t.Fatalf("unexpected files %+v", files)
	}
}

func TestProcessUnknownRuleCompletesEmpty(t *testing.T) {
	store := newMockStore()
	repo := &mockItemRepo{}
	uc := newItemUsecase(store, repo, nil)

	item := mediafetch.Item{
		"id":          "item-1",
		"file_urls":   []any{"http://a/x.jpg"},
		"file_keygen": "missing",
	}
	out, err := uc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if files := filesOf(t, out); len(files) != 0 {
		t.Fatalf("expected no files got %+v", files)
	}
	record, err := repo.Get(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("record not saved: %v", err)
	}
	if record.Failed != 1 || !strings.Contains(record.Fetches[0].Reason, "missing") {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestProcessPartialFailureRecordsAndPublishes(t *testing.T) {
	store := newMockStore()
	store.failURLs["http://a/bad.jpg"] = true
	repo := &mockItemRepo{}
	pub := &mockPublisher{}
	uc := newItemUsecase(store, repo, pub)

	item := mediafetch.Item{"id": "p-1", "file_urls": []any{"http://a/ok.jpg", "http://a/bad.jpg", 42}}
	out, err := uc.Process(context.Background(), item)
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if files := filesOf(t, out); len(files) != 1 || files[0].SourceURL != "http://a/ok.jpg" {
		t.Fatalf("unexpected files %+v", files)
	}

	record, err := uc.Get(context.Background(), "p-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if record.Succeeded != 1 || record.Failed != 1 || len(record.Fetches) != 2 {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.Fetches[1].Status != "failed" || record.Fetches[1].Reason == "" {
		t.Fatalf("expected failure reason in log, got %+v", record.Fetches[1])
	}

	if len(pub.events) != 1 {
		t.Fatalf("expected one event got %d", len(pub.events))
	}
	if ev := pub.events[0]; ev.ItemID != "p-1" || ev.Succeeded != 1 || ev.Failed != 1 || ev.Type != mediafetch.EventItemCompleted {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestProcessItemWithoutURLs(t *testing.T) {
	store := newMockStore()
	uc := newItemUsecase(store, nil, nil)

	out, err := uc.Process(context.Background(), mediafetch.Item{"title": "no media"})
	if err != nil {
		t.Fatalf("process failed: %v", err)
	}
	if files := filesOf(t, out); len(files) != 0 {
		t.Fatalf("expected empty result list")
	}
}

func TestProcessCancelled(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	defer close(store.release)
	uc := newItemUsecase(store, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := uc.Process(ctx, mediafetch.Item{"file_urls": []any{"http://a/x.jpg"}})
	if err == nil {
		t.Fatalf("expected cancellation error")
	}
}

func TestItemID(t *testing.T) {
	if id := ItemID(mediafetch.Item{"id": "abc"}, "file_urls"); id != "abc" {
		t.Fatalf("expected explicit id, got %s", id)
	}
	if id := ItemID(mediafetch.Item{"id": float64(12)}, "file_urls"); id != "12" {
		t.Fatalf("expected numeric id, got %s", id)
	}

	a := ItemID(mediafetch.Item{"file_urls": []any{"http://a/1", "http://a/2"}}, "file_urls")
	b := ItemID(mediafetch.Item{"file_urls": []string{"http://a/1", "http://a/2"}}, "file_urls")
	if a != b || len(a) != 32 {
		t.Fatalf("expected stable hashed id, got %s and %s", a, b)
	}
}

func TestProcessDuplicateURLsFetchOnce(t *testing.T) {
	store := &gatedStore{
		mockStore: newMockStore(),
		entered:   make(chan struct{}, 1),
		release:   make(chan struct{}),
	}
	uc := newItemUsecase(store, nil, nil)

	item := mediafetch.Item{"file_urls": []any{"http://a/x.jpg", "http://a/x.jpg", "http://a/x.jpg"}}
	done := make(chan mediafetch.Item, 1)
	go func() {
		out, err := uc.Process(context.Background(), item)
		if err != nil {
			t.Errorf("process failed: %v", err)
		}
		done <- out
	}()

	<-store.entered
	time.Sleep(20 * time.Millisecond)
	close(store.release)

	out := <-done
	if files := filesOf(t, out); len(files) != 3 {
		t.Fatalf("expected one result per listed URL, got %d", len(files))
	}
	if n := store.fetchCount(); n != 1 {
		t.Fatalf("expected a single fetch trigger, got %d", n)
	}
}

func TestProcessWarnsOnUnsupportedRuleReference(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	store := newMockStore()
	fetch := NewFetchUsecase(store, FetchOptions{}, logger)
	uc := NewItemUsecase(fetch, nil, nil, ItemOptions{Bucket: "media", Prefix: "img_"}, logger)

	item := mediafetch.Item{
		"file_urls":   []any{"http://a/x.jpg", "http://a/y.jpg"},
		"file_keygen": float64(7),
	}
	if _, err := uc.Process(context.Background(), item); err != nil {
		t.Fatalf("process failed: %v", err)
	}

	if n := strings.Count(buf.String(), "unsupported key rule reference"); n != 1 {
		t.Fatalf("expected one warning per item, got %d:\n%s", n, buf.String())
	}
	if store.fetchCount() != 0 {
		t.Fatalf("no resource should be fetched")
	}
}
