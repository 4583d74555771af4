// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
livekit:
  apiKey: devkey
  apiSecret: devsecret
`

func TestLoader_DefaultsAndFile(t *testing.T) {
	path := writeConfig(t, "meetd.yaml", `
server:
  listenAddr: "127.0.0.1:9000"
livekit:
  url: wss://lk.example.com
  apiKey: devkey
  apiSecret: devsecret
recording:
  startTimeout: 45s
gc:
  staleBatchSize: 25
kafka:
  brokers: ["k1:9092", "k2:9092"]
  topic: livekit-events
`)

	cfg, err := NewLoader(path, "1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, "1.2.3", cfg.Version)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.ListenAddr)
	assert.Equal(t, "wss://lk.example.com", cfg.LiveKit.URL)
	assert.Equal(t, 45*time.Second, cfg.Recording.StartTimeout)
	assert.Equal(t, 25, cfg.GC.StaleBatchSize)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)

	// untouched keys keep their defaults
	assert.Equal(t, 6*time.Hour, cfg.Recording.LockTTL)
	assert.Equal(t, "@every 30m", cfg.GC.OrphanLockSchedule)
	assert.Equal(t, "meetd", cfg.Kafka.GroupID)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "meetd.yml", minimalYAML+`
redis:
  addr: "file:6379"
`)
	t.Setenv("MEETD_REDIS_ADDR", "env:6380")
	t.Setenv("MEETD_BACKEND_BUS", "memory")
	t.Setenv("MEETD_KAFKA_BROKERS", "a:1,b:2")
	t.Setenv("MEETD_GC_STALE_THRESHOLD", "7m")

	l := NewLoader(path, "dev")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "env:6380", cfg.Redis.Addr)
	assert.Equal(t, BackendMemory, cfg.Backend.Bus)
	assert.Equal(t, []string{"a:1", "b:2"}, cfg.Kafka.Brokers)
	assert.Equal(t, 7*time.Minute, cfg.GC.StaleThreshold)
	assert.Contains(t, l.ConsumedEnvKeys, "MEETD_REDIS_ADDR")
	assert.Contains(t, l.ConsumedEnvKeys, "MEETD_LIVEKIT_API_SECRET")
}

func TestLoader_NoFileUsesEnv(t *testing.T) {
	t.Setenv("MEETD_LIVEKIT_API_KEY", "k")
	t.Setenv("MEETD_LIVEKIT_API_SECRET", "s")

	cfg, err := NewLoader("", "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, ":6080", cfg.Server.ListenAddr)
	assert.Equal(t, "k", cfg.LiveKit.APIKey)
}

func TestLoader_StrictUnknownField(t *testing.T) {
	path := writeConfig(t, "meetd.yaml", minimalYAML+`
recording:
  startTimout: 10s
`)
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoader_RejectsMultipleDocuments(t *testing.T) {
	path := writeConfig(t, "meetd.yaml", minimalYAML+"---\nlog:\n  level: debug\n")
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoader_RejectsNonYAML(t *testing.T) {
	path := writeConfig(t, "meetd.json", `{}`)
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only YAML supported")
}

func TestLoader_EmptyFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "meetd.yaml", "")
	t.Setenv("MEETD_LIVEKIT_API_KEY", "k")
	t.Setenv("MEETD_LIVEKIT_API_SECRET", "s")

	cfg, err := NewLoader(path, "dev").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults().Server, cfg.Server)
}

func TestLoader_ValidationFailure(t *testing.T) {
	path := writeConfig(t, "meetd.yaml", minimalYAML+`
backend:
  lock: etcd
`)
	_, err := NewLoader(path, "dev").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backend.lock")
}
