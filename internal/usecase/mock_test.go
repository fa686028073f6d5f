package usecase

import (
	"context"
	"sync"

	"github.com/totegamma/mediafetch"
	"github.com/totegamma/mediafetch/internal/domain"
)

type mockStore struct {
	mu       sync.Mutex
	objects  map[string]domain.Stat
	failURLs map[string]bool
	statErr  error
	stats    []string
	fetches  []string
}

func newMockStore() *mockStore {
	return &mockStore{
		objects:  map[string]domain.Stat{},
		failURLs: map[string]bool{},
	}
}

func (m *mockStore) put(bucket, key string, stat domain.Stat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[bucket+"/"+key] = stat
}

func (m *mockStore) Stat(ctx context.Context, bucket, key string) (*domain.Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = append(m.stats, bucket+"/"+key)
	if m.statErr != nil {
		return nil, m.statErr
	}
	stat, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, nil
	}
	return &stat, nil
}

func (m *mockStore) Fetch(ctx context.Context, url, bucket, key string) (domain.Stat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches = append(m.fetches, url)
	if m.failURLs[url] {
		return domain.Stat{}, &domain.FetchError{
			URL:         url,
			Destination: domain.Destination{Bucket: bucket, Key: key},
			Message:     "store rejected url",
		}
	}
	stat := domain.Stat{Checksum: "hash-" + url, LastModified: 1700000000}
	m.objects[bucket+"/"+key] = stat
	return stat, nil
}

func (m *mockStore) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetches)
}

type mockItemRepo struct {
	mu      sync.Mutex
	records map[string]domain.ItemRecord
}

func (m *mockItemRepo) Save(ctx context.Context, record domain.ItemRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records == nil {
		m.records = map[string]domain.ItemRecord{}
	}
	m.records[record.ID] = record
	return nil
}

func (m *mockItemRepo) Get(ctx context.Context, id string) (domain.ItemRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return domain.ItemRecord{}, domain.NotFoundError{Resource: "item"}
	}
	return record, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []mediafetch.Event
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, event mediafetch.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}
