package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sneharawat080/medsimplify/internal/config"
)

func TestApplyDefaults_EmptyConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	assert.Equal(t, config.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, config.DefaultServerMode, cfg.Server.Mode)
	assert.Equal(t, int64(config.DefaultMaxUploadSize), cfg.Server.MaxUploadSize)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, config.KBSourceEmbedded, cfg.KB.Source)
	assert.Equal(t, 20000, cfg.Engine.MaxTextLength)
	assert.Equal(t, 1000, cfg.Engine.PreviewLength)
	assert.Equal(t, []string{config.DefaultKafkaBroker}, cfg.Kafka.Brokers)
	assert.Equal(t, "lab.text.submitted", cfg.Kafka.InputTopic)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Metrics.Enabled, "booleans are left alone")
}

func TestApplyDefaults_PreserveExistingValues(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Server.Port = 9090
	cfg.Server.ReadTimeout = time.Minute
	cfg.Engine.MaxTextLength = 500
	cfg.Log.Level = "debug"
	config.ApplyDefaults(cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, time.Minute, cfg.Server.ReadTimeout)
	assert.Equal(t, 500, cfg.Engine.MaxTextLength)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestApplyDefaults_Nil(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() { config.ApplyDefaults(nil) })
}

func TestDefault_EnablesSwitches(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	assert.True(t, cfg.Metrics.Enabled)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.True(t, cfg.GRPC.Enabled)
	assert.False(t, cfg.Kafka.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}
