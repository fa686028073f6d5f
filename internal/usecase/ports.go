package usecase

import (
	"context"

	"github.com/totegamma/mediafetch"
	"github.com/totegamma/mediafetch/internal/domain"
)

// StoreClient is the contract needed from the remote object store.
// Stat returns (nil, nil) when the object does not exist.
type StoreClient interface {
	Stat(ctx context.Context, bucket, key string) (*domain.Stat, error)
	Fetch(ctx context.Context, url, bucket, key string) (domain.Stat, error)
}

// ItemRepository persists processed items together with their fetch log.
type ItemRepository interface {
	Save(ctx context.Context, record domain.ItemRecord) error
	Get(ctx context.Context, id string) (domain.ItemRecord, error)
}

// EventPublisher announces processed items.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, event mediafetch.Event) error
}
