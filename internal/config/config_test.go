package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sneharawat080/medsimplify/internal/config"
)

func validConfig() *config.Config {
	return config.Default()
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_Failures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		mutate  func(c *config.Config)
		wantMsg string
	}{
		{"server port zero", func(c *config.Config) { c.Server.Port = 0 }, "server.port"},
		{"server port too high", func(c *config.Config) { c.Server.Port = 70000 }, "server.port"},
		{"bad server mode", func(c *config.Config) { c.Server.Mode = "prod" }, "server.mode"},
		{"non-positive upload size", func(c *config.Config) { c.Server.MaxUploadSize = -1 }, "max_upload_size"},
		{"grpc port collides", func(c *config.Config) { c.GRPC.Port = c.Server.Port }, "grpc.port"},
		{"bad log level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *config.Config) { c.Log.Format = "xml" }, "log.format"},
		{"bad kb source", func(c *config.Config) { c.KB.Source = "postgres" }, "kb.source"},
		{"file kb without path", func(c *config.Config) { c.KB.Source = config.KBSourceFile }, "kb.path"},
		{"minio kb without object", func(c *config.Config) {
			c.KB.Source = config.KBSourceMinIO
			c.KB.Bucket = "kb"
		}, "kb.bucket"},
		{"minio kb without endpoint", func(c *config.Config) {
			c.KB.Source = config.KBSourceMinIO
			c.KB.Bucket = "kb"
			c.KB.Object = "lab_tests.yaml"
		}, "minio.endpoint"},
		{"zero max text length", func(c *config.Config) { c.Engine.MaxTextLength = 0 }, "max_text_length"},
		{"redis without addr", func(c *config.Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "redis.addr"},
		{"redis limiter without redis", func(c *config.Config) { c.RateLimit.Backend = "redis" }, "requires redis.enabled"},
		{"unknown limiter backend", func(c *config.Config) { c.RateLimit.Backend = "memcached" }, "rate_limit.backend"},
		{"kafka without brokers", func(c *config.Config) {
			c.Kafka.Enabled = true
			c.Kafka.Brokers = nil
		}, "kafka.brokers"},
		{"kafka bad offset reset", func(c *config.Config) {
			c.Kafka.Enabled = true
			c.Kafka.AutoOffsetReset = "middle"
		}, "auto_offset_reset"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantMsg)
		})
	}
}

func TestConfig_Validate_RateLimitDisabledSkipsBackendCheck(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Backend = "redis"
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_RedisLimiterWithRedis(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Redis.Enabled = true
	cfg.RateLimit.Backend = "redis"
	assert.NoError(t, cfg.Validate())
}

func TestServerConfig_ListenAddr(t *testing.T) {
	t.Parallel()
	s := config.ServerConfig{Host: "127.0.0.1", Port: 5000}
	assert.Equal(t, "127.0.0.1:5000", s.ListenAddr())
}
