// Package config defines the configuration structures for MedSimplify. Only
// plain data types and validation live here; loading is in loader.go.
package config

import (
	"fmt"
	"time"

	"github.com/sneharawat080/medsimplify/internal/infrastructure/monitoring/logging"
)

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadSize   int64         `mapstructure:"max_upload_size"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// GRPCConfig holds gRPC server tunables.
type GRPCConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	Port             int  `mapstructure:"port"`
	MaxRecvMsgSize   int  `mapstructure:"max_recv_msg_size"`
	EnableReflection bool `mapstructure:"enable_reflection"`
}

// KBConfig selects where the knowledge base document is read from at
// startup. The KB is never reloaded while the process runs.
type KBConfig struct {
	Source string `mapstructure:"source"` // "embedded" | "file" | "minio"
	Path   string `mapstructure:"path"`
	Bucket string `mapstructure:"bucket"`
	Object string `mapstructure:"object"`
}

// EngineConfig holds request-level limits enforced around the engine.
type EngineConfig struct {
	MaxTextLength    int  `mapstructure:"max_text_length"`
	PreviewLength    int  `mapstructure:"preview_length"`
	LogLowConfidence bool `mapstructure:"log_low_confidence"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Backend           string `mapstructure:"backend"` // "memory" | "redis"
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	Burst             int    `mapstructure:"burst"`
}

// KafkaConfig holds the worker's consumer and the report event producer
// settings.
type KafkaConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	InputTopic      string   `mapstructure:"input_topic"`
	OutputTopic     string   `mapstructure:"output_topic"`
	DeadLetterTopic string   `mapstructure:"dead_letter_topic"`
	AutoOffsetReset string   `mapstructure:"auto_offset_reset"` // "earliest" | "latest"
	MaxRetries      int      `mapstructure:"max_retries"`
	PublishReports  bool     `mapstructure:"publish_reports"`
}

// MinIOConfig holds object storage credentials for the KB source.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
}

// MetricsConfig controls the Prometheus exposition.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Path      string `mapstructure:"path"`
	Namespace string `mapstructure:"namespace"`
}

// WorkerConfig holds settings specific to cmd/worker.
type WorkerConfig struct {
	HealthPort     int           `mapstructure:"health_port"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

// Config is the root configuration object.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	GRPC      GRPCConfig        `mapstructure:"grpc"`
	Log       logging.LogConfig `mapstructure:"log"`
	KB        KBConfig          `mapstructure:"kb"`
	Engine    EngineConfig      `mapstructure:"engine"`
	Redis     RedisConfig       `mapstructure:"redis"`
	RateLimit RateLimitConfig   `mapstructure:"rate_limit"`
	Kafka     KafkaConfig       `mapstructure:"kafka"`
	MinIO     MinIOConfig       `mapstructure:"minio"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	Worker    WorkerConfig      `mapstructure:"worker"`
}

var (
	validModes      = map[string]bool{"debug": true, "release": true, "test": true}
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "console": true}
	validKBSources  = map[string]bool{KBSourceEmbedded: true, KBSourceFile: true, KBSourceMinIO: true}
)

// KB source names.
const (
	KBSourceEmbedded = "embedded"
	KBSourceFile     = "file"
	KBSourceMinIO    = "minio"
)

// Validate checks cross-field consistency. Call ApplyDefaults first.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if !validModes[c.Server.Mode] {
		return fmt.Errorf("config: server.mode %q must be debug, release or test", c.Server.Mode)
	}
	if c.Server.MaxUploadSize <= 0 {
		return fmt.Errorf("config: server.max_upload_size must be positive")
	}

	if c.GRPC.Enabled {
		if c.GRPC.Port < 1 || c.GRPC.Port > 65535 {
			return fmt.Errorf("config: grpc.port %d out of range", c.GRPC.Port)
		}
		if c.GRPC.Port == c.Server.Port {
			return fmt.Errorf("config: grpc.port must differ from server.port")
		}
	}

	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("config: log.level %q is invalid", c.Log.Level)
	}
	if !validLogFormats[c.Log.Format] {
		return fmt.Errorf("config: log.format %q is invalid", c.Log.Format)
	}

	if !validKBSources[c.KB.Source] {
		return fmt.Errorf("config: kb.source %q must be embedded, file or minio", c.KB.Source)
	}
	switch c.KB.Source {
	case KBSourceFile:
		if c.KB.Path == "" {
			return fmt.Errorf("config: kb.path is required when kb.source is file")
		}
	case KBSourceMinIO:
		if c.KB.Bucket == "" || c.KB.Object == "" {
			return fmt.Errorf("config: kb.bucket and kb.object are required when kb.source is minio")
		}
		if c.MinIO.Endpoint == "" {
			return fmt.Errorf("config: minio.endpoint is required when kb.source is minio")
		}
	}

	if c.Engine.MaxTextLength < 1 {
		return fmt.Errorf("config: engine.max_text_length must be >= 1")
	}
	if c.Engine.PreviewLength < 0 {
		return fmt.Errorf("config: engine.preview_length must be >= 0")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required when redis is enabled")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerMinute < 1 {
			return fmt.Errorf("config: rate_limit.requests_per_minute must be >= 1")
		}
		switch c.RateLimit.Backend {
		case "memory":
		case "redis":
			if !c.Redis.Enabled {
				return fmt.Errorf("config: rate_limit.backend redis requires redis.enabled")
			}
		default:
			return fmt.Errorf("config: rate_limit.backend %q must be memory or redis", c.RateLimit.Backend)
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("config: kafka.brokers must not be empty when kafka is enabled")
		}
		if c.Kafka.GroupID == "" {
			return fmt.Errorf("config: kafka.group_id is required when kafka is enabled")
		}
		if c.Kafka.AutoOffsetReset != "earliest" && c.Kafka.AutoOffsetReset != "latest" {
			return fmt.Errorf("config: kafka.auto_offset_reset %q must be earliest or latest", c.Kafka.AutoOffsetReset)
		}
	}

	return nil
}

// ListenAddr returns the HTTP listen address.
func (s ServerConfig) ListenAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
