package config

import "time"

// Backend names for the lock provider and the event bus.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// AppConfig is the fully resolved daemon configuration.
type AppConfig struct {
	Version string `yaml:"-"`

	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Redis     RedisConfig     `yaml:"redis"`
	LiveKit   LiveKitConfig   `yaml:"livekit"`
	Storage   StorageConfig   `yaml:"storage"`
	Rooms     RoomsConfig     `yaml:"rooms"`
	Recording RecordingConfig `yaml:"recording"`
	GC        GCConfig        `yaml:"gc"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Backend   BackendConfig   `yaml:"backend"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listenAddr"`
	RateLimit       int           `yaml:"rateLimit"` // requests per minute per client, 0 disables
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LiveKitConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"apiKey"`
	APISecret string `yaml:"apiSecret"`
}

// StorageConfig selects the object store. An empty Endpoint keeps recordings
// in memory, which is only useful for development.
type StorageConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"useSSL"`
	Prefix    string `yaml:"prefix"`
}

type RoomsConfig struct {
	DBPath string `yaml:"dbPath"`
}

type RecordingConfig struct {
	StartTimeout time.Duration `yaml:"startTimeout"`
	LockTTL      time.Duration `yaml:"lockTTL"`
	Layout       string        `yaml:"layout"`
	Encoding     string        `yaml:"encoding"`
}

type GCConfig struct {
	OrphanLockSchedule string        `yaml:"orphanLockSchedule"`
	LockGracePeriod    time.Duration `yaml:"lockGracePeriod"`
	StaleSchedule      string        `yaml:"staleSchedule"`
	StaleThreshold     time.Duration `yaml:"staleThreshold"`
	StaleBatchSize     int           `yaml:"staleBatchSize"`
}

// WebhookConfig configures signed outbound notifications. An empty NotifyURL
// disables them.
type WebhookConfig struct {
	NotifyURL  string        `yaml:"notifyURL"`
	SigningKey string        `yaml:"signingKey"`
	MaxAge     time.Duration `yaml:"maxAge"`
}

// KafkaConfig enables event ingestion from a topic when Topic is set.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"groupID"`
}

type BackendConfig struct {
	Lock string `yaml:"lock"`
	Bus  string `yaml:"bus"`
}

// UsesRedis reports whether any backend needs a Redis connection.
func (c AppConfig) UsesRedis() bool {
	return c.Backend.Lock == BackendRedis || c.Backend.Bus == BackendRedis
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			ListenAddr:      ":6080",
			RateLimit:       600,
			ShutdownTimeout: 15 * time.Second,
		},
		Log: LogConfig{Level: "info", Service: "meetd"},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		LiveKit: LiveKitConfig{URL: "ws://localhost:7880"},
		Storage: StorageConfig{
			Bucket: "meetd",
			Region: "us-east-1",
			Prefix: "recordings/",
		},
		Rooms: RoomsConfig{DBPath: "meetd.db"},
		Recording: RecordingConfig{
			StartTimeout: 30 * time.Second,
			LockTTL:      6 * time.Hour,
			Layout:       "grid",
		},
		GC: GCConfig{
			OrphanLockSchedule: "@every 30m",
			LockGracePeriod:    2 * time.Minute,
			StaleSchedule:      "@every 15m",
			StaleThreshold:     5 * time.Minute,
			StaleBatchSize:     10,
		},
		Webhook: WebhookConfig{MaxAge: 120 * time.Second},
		Kafka:   KafkaConfig{GroupID: "meetd"},
		Backend: BackendConfig{Lock: BackendRedis, Bus: BackendRedis},
	}
}
