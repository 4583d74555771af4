// SPDX-License-Identifier: MIT

// Package daemon wires the configured components together and owns the
// process lifecycle.
package daemon

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/meetd/internal/api"
	"github.com/ManuGH/meetd/internal/config"
	"github.com/ManuGH/meetd/internal/domain/recordings/coordinator"
	"github.com/ManuGH/meetd/internal/domain/recordings/ports"
	"github.com/ManuGH/meetd/internal/infra/bus"
	"github.com/ManuGH/meetd/internal/infra/egress"
	"github.com/ManuGH/meetd/internal/infra/lock"
	"github.com/ManuGH/meetd/internal/infra/redisconn"
	"github.com/ManuGH/meetd/internal/infra/roomstore"
	"github.com/ManuGH/meetd/internal/infra/storage"
	"github.com/ManuGH/meetd/internal/log"
	"github.com/ManuGH/meetd/internal/resilience"
	"github.com/ManuGH/meetd/internal/scheduler"
	"github.com/ManuGH/meetd/internal/webhook"
)

const (
	lockKeyPrefix   = "meetd:lock:"
	busPrefix       = "meetd:"
	rateLimitWindow = time.Minute
)

// Bootstrap builds every component described by cfg and returns an App ready
// to Run. Resources opened here are released by the manager's shutdown hooks,
// or immediately when Bootstrap fails.
func Bootstrap(ctx context.Context, cfg config.AppConfig) (_ *App, err error) {
	logger := log.WithComponent("daemon")

	var closers []namedHook
	defer func() {
		if err == nil {
			return
		}
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].hook(context.Background())
		}
	}()

	owner := lockOwner()

	var rdb *redis.Client
	if cfg.UsesRedis() {
		rdb, err = redisconn.Dial(ctx, redisconn.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return nil, err
		}
		closers = append(closers, namedHook{name: "redis", hook: func(context.Context) error { return rdb.Close() }})
	}

	var locker ports.Locker = lock.NewMemoryLocker(owner)
	if cfg.Backend.Lock == config.BackendRedis {
		locker = lock.NewRedisLocker(rdb, lockKeyPrefix, owner)
	}
	var eventBus ports.Bus = bus.NewMemoryBus()
	if cfg.Backend.Bus == config.BackendRedis {
		eventBus = bus.NewRedisBus(rdb, busPrefix)
	}

	var blobs ports.BlobStore
	if cfg.Storage.Endpoint != "" {
		blobs, err = storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn().Msg("no storage endpoint configured, keeping recordings metadata in memory")
		blobs = storage.NewMemoryBlobStore()
	}
	meta := storage.NewMetadataStore(blobs, cfg.Storage.Prefix)

	rooms, err := roomstore.NewSqliteStore(cfg.Rooms.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open room store: %w", err)
	}
	closers = append(closers, namedHook{name: "rooms", hook: func(context.Context) error { return rooms.Close() }})

	gateway := egress.NewLiveKitGateway(egress.Config{
		URL:       cfg.LiveKit.URL,
		APIKey:    cfg.LiveKit.APIKey,
		APISecret: cfg.LiveKit.APISecret,
		Prefix:    cfg.Storage.Prefix,
		Output: egress.S3Output{
			Endpoint:       storageURL(cfg.Storage),
			AccessKey:      cfg.Storage.AccessKey,
			Secret:         cfg.Storage.SecretKey,
			Bucket:         cfg.Storage.Bucket,
			Region:         cfg.Storage.Region,
			ForcePathStyle: cfg.Storage.Endpoint != "",
		},
	}, resilience.NewCircuitBreaker("livekit", 5, 30*time.Second))

	sched := scheduler.New()

	coord, err := coordinator.New(coordinator.Deps{
		Locker:    locker,
		Gateway:   gateway,
		Metadata:  meta,
		Blobs:     blobs,
		Rooms:     rooms,
		Bus:       eventBus,
		Scheduler: sched,
	}, coordinator.Config{
		StartTimeout:       cfg.Recording.StartTimeout,
		LockTTL:            cfg.Recording.LockTTL,
		Layout:             cfg.Recording.Layout,
		Encoding:           cfg.Recording.Encoding,
		OrphanLockSchedule: cfg.GC.OrphanLockSchedule,
		LockGracePeriod:    cfg.GC.LockGracePeriod,
		StaleSchedule:      cfg.GC.StaleSchedule,
		StaleThreshold:     cfg.GC.StaleThreshold,
		StaleBatchSize:     cfg.GC.StaleBatchSize,
	})
	if err != nil {
		return nil, err
	}
	if err := coord.RegisterSweeps(); err != nil {
		return nil, err
	}

	ingest := webhook.NewIngestor(coord, cfg.Storage.Prefix)
	opts := []api.Option{
		api.WithWebhookHandler(ingest.LiveKitHandler(auth.NewSimpleKeyProvider(cfg.LiveKit.APIKey, cfg.LiveKit.APISecret))),
		api.WithHealthCheck("rooms", func(ctx context.Context) error { return rooms.DB.PingContext(ctx) }),
	}
	if rdb != nil {
		opts = append(opts, api.WithHealthCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }))
	}
	server := api.NewServer(coord, api.Config{
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: rateLimitWindow,
	}, opts...)

	mgr, err := NewManager(cfg.Server, Deps{Logger: logger, APIHandler: server.Handler()})
	if err != nil {
		return nil, err
	}
	app := NewApp(logger, mgr)

	app.AddRunner("scheduler", sched.Run)
	if cfg.Webhook.NotifyURL != "" {
		notifier := webhook.NewNotifier(cfg.Webhook.NotifyURL, []byte(cfg.Webhook.SigningKey))
		app.AddRunner("notifier", func(ctx context.Context) error { return notifier.Run(ctx, eventBus) })
	}
	if cfg.Kafka.Topic != "" {
		consumer := webhook.NewKafkaConsumer(webhook.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, ingest)
		app.AddRunner("kafka", consumer.Run)
	}

	for _, c := range closers {
		mgr.RegisterShutdownHook(c.name, c.hook)
	}

	logger.Info().
		Str("version", cfg.Version).
		Str("lock_backend", cfg.Backend.Lock).
		Str("bus_backend", cfg.Backend.Bus).
		Bool("object_store", cfg.Storage.Endpoint != "").
		Bool("notifier", cfg.Webhook.NotifyURL != "").
		Bool("kafka", cfg.Kafka.Topic != "").
		Msg("daemon bootstrapped")
	return app, nil
}

// lockOwner identifies this process in lock values.
func lockOwner() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "meetd"
	}
	return host + "-" + uuid.NewString()[:8]
}

// storageURL is the endpoint as the media server must see it.
func storageURL(s config.StorageConfig) string {
	if s.Endpoint == "" {
		return ""
	}
	scheme := "http://"
	if s.UseSSL {
		scheme = "https://"
	}
	return scheme + s.Endpoint
}
