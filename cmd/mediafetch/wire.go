package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/pkg/errors"

	"github.com/totegamma/mediafetch/client"
	"github.com/totegamma/mediafetch/internal/config"
	"github.com/totegamma/mediafetch/internal/infra/cache"
	"github.com/totegamma/mediafetch/internal/infra/database"
	"github.com/totegamma/mediafetch/internal/infra/repository"
	"github.com/totegamma/mediafetch/internal/observability"
	"github.com/totegamma/mediafetch/internal/service"
	"github.com/totegamma/mediafetch/internal/usecase"
)

type app struct {
	config  config.Config
	logger  *slog.Logger
	item    *usecase.ItemUsecase
	signal  *service.SignalService
	tracing *observability.TracerProvider
	closers []func() error
}

// setup loads configuration and builds the pipeline. Optional backends are
// only connected when their address is configured.
func setup(ctx context.Context) (*app, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := conf.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	logger := observability.NewLogger(os.Stderr, conf.Server.LogLevel, conf.Server.LogFormat)
	slog.SetDefault(logger)

	a := &app{config: conf, logger: logger}

	a.tracing, err = observability.NewTracerProvider(ctx, observability.TracingConfig{
		Enabled:  conf.Server.EnableTrace,
		Endpoint: conf.Server.TraceEndpoint,
		Version:  version,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to set up tracing")
	}
	a.closers = append(a.closers, func() error { return a.tracing.Shutdown(context.Background()) })

	store, err := client.New(client.Options{
		AccessKey: conf.Store.AccessKey,
		SecretKey: conf.Store.SecretKey,
		RSHost:    conf.Store.RSHost,
		IOHost:    conf.Store.IOHost,
		UserAgent: conf.Store.UserAgent,
		Timeout:   conf.Store.Timeout(),
		Logger:    logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	var memo cache.Backend
	var signal usecase.EventPublisher
	var repo usecase.ItemRepository

	if conf.Server.RedisAddr != "" {
		rdb, err := database.NewRedis(ctx, conf.Server.RedisAddr, conf.Server.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, rdb.Close)

		a.signal = service.NewSignalService(rdb)
		signal = a.signal
		memo = cache.NewRedisBackend(rdb)
	}

	if conf.Server.MemcachedAddr != "" {
		mc, err := database.NewMemcached(conf.Server.MemcachedAddr)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, mc.Close)
		memo = cache.NewMemcacheBackend(mc)
	}

	if conf.Server.PostgresDsn != "" {
		db, err := database.NewPostgres(conf.Server.PostgresDsn)
		if err != nil {
			a.Close()
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		repo = repository.NewItemRepository(db)
	}

	statStore := cache.NewStatStore(store, memo, conf.Store.StatCacheTTL(), logger)

	fetch := usecase.NewFetchUsecase(statStore, usecase.FetchOptions{
		Concurrency: conf.Pipeline.Concurrency,
		Expires:     conf.Pipeline.Expires(),
	}, logger)

	a.item = usecase.NewItemUsecase(fetch, repo, signal, usecase.ItemOptions{
		Fields: conf.Pipeline.Fields,
		Bucket: conf.Pipeline.Bucket,
		Prefix: conf.Pipeline.KeyPrefix,
	}, logger)

	logger.Info("pipeline ready",
		"bucket", conf.Pipeline.Bucket,
		"prefix", conf.Pipeline.KeyPrefix,
		"postgres", repo != nil,
		"redis", conf.Server.RedisAddr != "",
		"memcached", conf.Server.MemcachedAddr != "",
	)

	return a, nil
}

// Close releases backends in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
