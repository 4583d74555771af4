// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

func (l *Loader) envList(key string, defaultVal []string) []string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseStringList(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults,
// then validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnvConfig(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Keys absent from the file keep their current values.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %w", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	// Strict: Ensure no multiple documents or trailing content
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.Server.ListenAddr = l.envString("MEETD_LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Server.RateLimit = l.envInt("MEETD_RATE_LIMIT", cfg.Server.RateLimit)
	cfg.Server.ShutdownTimeout = l.envDuration("MEETD_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Log.Level = l.envString("MEETD_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Service = l.envString("MEETD_LOG_SERVICE", cfg.Log.Service)

	cfg.Redis.Addr = l.envString("MEETD_REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = l.envString("MEETD_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = l.envInt("MEETD_REDIS_DB", cfg.Redis.DB)

	cfg.LiveKit.URL = l.envString("MEETD_LIVEKIT_URL", cfg.LiveKit.URL)
	cfg.LiveKit.APIKey = l.envString("MEETD_LIVEKIT_API_KEY", cfg.LiveKit.APIKey)
	cfg.LiveKit.APISecret = l.envString("MEETD_LIVEKIT_API_SECRET", cfg.LiveKit.APISecret)

	cfg.Storage.Endpoint = l.envString("MEETD_STORAGE_ENDPOINT", cfg.Storage.Endpoint)
	cfg.Storage.AccessKey = l.envString("MEETD_STORAGE_ACCESS_KEY", cfg.Storage.AccessKey)
	cfg.Storage.SecretKey = l.envString("MEETD_STORAGE_SECRET_KEY", cfg.Storage.SecretKey)
	cfg.Storage.Bucket = l.envString("MEETD_STORAGE_BUCKET", cfg.Storage.Bucket)
	cfg.Storage.Region = l.envString("MEETD_STORAGE_REGION", cfg.Storage.Region)
	cfg.Storage.UseSSL = l.envBool("MEETD_STORAGE_USE_SSL", cfg.Storage.UseSSL)
	cfg.Storage.Prefix = l.envString("MEETD_STORAGE_PREFIX", cfg.Storage.Prefix)

	cfg.Rooms.DBPath = l.envString("MEETD_ROOMS_DB_PATH", cfg.Rooms.DBPath)

	cfg.Recording.StartTimeout = l.envDuration("MEETD_RECORDING_START_TIMEOUT", cfg.Recording.StartTimeout)
	cfg.Recording.LockTTL = l.envDuration("MEETD_RECORDING_LOCK_TTL", cfg.Recording.LockTTL)
	cfg.Recording.Layout = l.envString("MEETD_RECORDING_LAYOUT", cfg.Recording.Layout)
	cfg.Recording.Encoding = l.envString("MEETD_RECORDING_ENCODING", cfg.Recording.Encoding)

	cfg.GC.OrphanLockSchedule = l.envString("MEETD_GC_ORPHAN_LOCK_SCHEDULE", cfg.GC.OrphanLockSchedule)
	cfg.GC.LockGracePeriod = l.envDuration("MEETD_GC_LOCK_GRACE_PERIOD", cfg.GC.LockGracePeriod)
	cfg.GC.StaleSchedule = l.envString("MEETD_GC_STALE_SCHEDULE", cfg.GC.StaleSchedule)
	cfg.GC.StaleThreshold = l.envDuration("MEETD_GC_STALE_THRESHOLD", cfg.GC.StaleThreshold)
	cfg.GC.StaleBatchSize = l.envInt("MEETD_GC_STALE_BATCH_SIZE", cfg.GC.StaleBatchSize)

	cfg.Webhook.NotifyURL = l.envString("MEETD_WEBHOOK_NOTIFY_URL", cfg.Webhook.NotifyURL)
	cfg.Webhook.SigningKey = l.envString("MEETD_WEBHOOK_SIGNING_KEY", cfg.Webhook.SigningKey)
	cfg.Webhook.MaxAge = l.envDuration("MEETD_WEBHOOK_MAX_AGE", cfg.Webhook.MaxAge)

	cfg.Kafka.Brokers = l.envList("MEETD_KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.Topic = l.envString("MEETD_KAFKA_TOPIC", cfg.Kafka.Topic)
	cfg.Kafka.GroupID = l.envString("MEETD_KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	cfg.Backend.Lock = l.envString("MEETD_BACKEND_LOCK", cfg.Backend.Lock)
	cfg.Backend.Bus = l.envString("MEETD_BACKEND_BUS", cfg.Backend.Bus)
}
