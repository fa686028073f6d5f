package database

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/totegamma/mediafetch/internal/infra/database/models"
)

const slowQueryThreshold = 300 * time.Millisecond

// NewPostgres opens the item store and migrates its tables.
func NewPostgres(dsn string) (*gorm.DB, error) {
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             slowQueryThreshold,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := Migrate(db); err != nil {
		return nil, errors.Wrap(err, "failed to migrate database")
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Item{},
		&models.FetchLog{},
	)
}

// NewRedis connects and pings so a bad address fails at startup.
func NewRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "failed to reach redis at %s", addr)
	}
	return rdb, nil
}

// NewMemcached accepts a comma separated server list.
func NewMemcached(servers string) (*memcache.Client, error) {
	list := strings.Split(servers, ",")
	for i := range list {
		list[i] = strings.TrimSpace(list[i])
	}

	mc := memcache.New(list...)
	mc.Timeout = 200 * time.Millisecond
	if err := mc.Ping(); err != nil {
		return nil, errors.Wrapf(err, "failed to reach memcached at %s", servers)
	}
	return mc, nil
}
