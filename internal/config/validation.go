// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/meetd/internal/validate"
)

var backends = []string{BackendRedis, BackendMemory}

// Validate validates an AppConfig using the centralized validation package
func Validate(cfg AppConfig) error {
	v := validate.New()

	v.HostPort("server.listenAddr", cfg.Server.ListenAddr)
	if cfg.Server.RateLimit < 0 {
		v.AddError("server.rateLimit", "value cannot be negative", cfg.Server.RateLimit)
	}
	v.LogLevel("log.level", cfg.Log.Level)

	v.OneOf("backend.lock", cfg.Backend.Lock, backends)
	v.OneOf("backend.bus", cfg.Backend.Bus, backends)
	if cfg.UsesRedis() {
		v.HostPort("redis.addr", cfg.Redis.Addr)
		v.Range("redis.db", cfg.Redis.DB, 0, 15)
	}

	v.URL("livekit.url", cfg.LiveKit.URL, []string{"ws", "wss", "http", "https"})
	v.NotEmpty("livekit.apiKey", cfg.LiveKit.APIKey)
	v.NotEmpty("livekit.apiSecret", cfg.LiveKit.APISecret)

	if cfg.Storage.Endpoint != "" {
		v.NotEmpty("storage.bucket", cfg.Storage.Bucket)
		v.NotEmpty("storage.accessKey", cfg.Storage.AccessKey)
		v.NotEmpty("storage.secretKey", cfg.Storage.SecretKey)
	}
	v.NotEmpty("rooms.dbPath", cfg.Rooms.DBPath)

	v.DurationRange("recording.startTimeout", cfg.Recording.StartTimeout, time.Second, 10*time.Minute)
	v.DurationRange("recording.lockTTL", cfg.Recording.LockTTL, time.Minute, 48*time.Hour)
	if cfg.Recording.LockTTL < cfg.Recording.StartTimeout {
		v.AddError("recording.lockTTL", "must not be shorter than recording.startTimeout", cfg.Recording.LockTTL)
	}

	v.CronSpec("gc.orphanLockSchedule", cfg.GC.OrphanLockSchedule)
	v.CronSpec("gc.staleSchedule", cfg.GC.StaleSchedule)
	v.DurationRange("gc.lockGracePeriod", cfg.GC.LockGracePeriod, time.Second, 24*time.Hour)
	v.DurationRange("gc.staleThreshold", cfg.GC.StaleThreshold, time.Minute, 24*time.Hour)
	v.Range("gc.staleBatchSize", cfg.GC.StaleBatchSize, 1, 1000)

	if cfg.Webhook.NotifyURL != "" {
		v.URL("webhook.notifyURL", cfg.Webhook.NotifyURL, []string{"http", "https"})
		v.NotEmpty("webhook.signingKey", cfg.Webhook.SigningKey)
		v.DurationRange("webhook.maxAge", cfg.Webhook.MaxAge, time.Second, time.Hour)
	}

	if cfg.Kafka.Topic != "" {
		if len(cfg.Kafka.Brokers) == 0 {
			v.AddError("kafka.brokers", "at least one broker is required when kafka.topic is set", nil)
		}
		v.NotEmpty("kafka.groupID", cfg.Kafka.GroupID)
	}

	return v.Err()
}
