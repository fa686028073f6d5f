package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/mediafetch/internal/domain"
	"github.com/totegamma/mediafetch/internal/usecase"
)

// Backend is a shared memo tier (memcached or redis).
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// StatStore memoises positive stat answers in front of the object store.
// Objects under a destination do not change once written, so a hit can be
// reused; misses always go to the store.
type StatStore struct {
	next   usecase.StoreClient
	local  *gocache.Cache
	remote Backend
	ttl    time.Duration
	logger *slog.Logger
}

func NewStatStore(next usecase.StoreClient, remote Backend, ttl time.Duration, logger *slog.Logger) *StatStore {
	if ttl <= 0 {
		ttl = domain.DefaultStatTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatStore{
		next:   next,
		local:  gocache.New(ttl, ttl+ttl/2),
		remote: remote,
		ttl:    ttl,
		logger: logger,
	}
}

// Key derives the memo key for a destination.
func Key(bucket, key string) string {
	sum := xxh3.HashString128(bucket + ":" + key).Bytes()
	return "stat:" + hex.EncodeToString(sum[:])
}

func (s *StatStore) Stat(ctx context.Context, bucket, key string) (*domain.Stat, error) {
	k := Key(bucket, key)

	if x, found := s.local.Get(k); found {
		stat := x.(domain.Stat)
		return &stat, nil
	}

	if s.remote != nil {
		raw, found, err := s.remote.Get(ctx, k)
		if err != nil {
			s.logger.Warn("stat memo unavailable", "key", k, "error", err)
		} else if found {
			var stat domain.Stat
			if err := json.Unmarshal(raw, &stat); err == nil {
				s.local.Set(k, stat, gocache.DefaultExpiration)
				return &stat, nil
			}
		}
	}

	stat, err := s.next.Stat(ctx, bucket, key)
	if err != nil || stat == nil {
		return stat, err
	}

	s.remember(ctx, k, *stat)
	return stat, nil
}

func (s *StatStore) Fetch(ctx context.Context, url, bucket, key string) (domain.Stat, error) {
	stat, err := s.next.Fetch(ctx, url, bucket, key)
	if err != nil {
		return stat, err
	}

	s.remember(ctx, Key(bucket, key), stat)
	return stat, nil
}

func (s *StatStore) remember(ctx context.Context, k string, stat domain.Stat) {
	s.local.Set(k, stat, gocache.DefaultExpiration)

	if s.remote == nil {
		return
	}
	raw, err := json.Marshal(stat)
	if err != nil {
		return
	}
	if err := s.remote.Set(ctx, k, raw, s.ttl); err != nil {
		s.logger.Warn("failed to store stat memo", "key", k, "error", err)
	}
}

var _ usecase.StoreClient = (*StatStore)(nil)
