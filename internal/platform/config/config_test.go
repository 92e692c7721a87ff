package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(PathEnvVar, "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.ODL.BatchSize)
	assert.Equal(t, []string{"ODL", "ODL 2.0"}, cfg.ODL.Protocols)
	assert.Equal(t, 15*time.Minute, cfg.Mutex.TTL)
	assert.Equal(t, "redis", cfg.Mutex.Backend)
	assert.False(t, cfg.KafkaEnabled())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	t.Setenv("CIRCULATION_ODL__BATCH_SIZE", "25")
	t.Setenv("CIRCULATION_ODL__PROTOCOLS", " ODL 2.0 ,ODL 2.0, ")
	t.Setenv("CIRCULATION_ODL__REAP_INTERVAL", "90s")
	t.Setenv("CIRCULATION_KAFKA__BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("CIRCULATION_ANALYTICS__SINKS", "LOG,kafka")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.ODL.BatchSize)
	assert.Equal(t, []string{"ODL 2.0"}, cfg.ODL.Protocols)
	assert.Equal(t, 90*time.Second, cfg.ODL.ReapInterval)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, []string{"log", "kafka"}, cfg.Analytics.Sinks)
	assert.True(t, cfg.KafkaEnabled())
}

func TestLoadFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := []byte(`
odl:
  batch_size: 7
  workers: 2
mutex:
  backend: local
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))
	t.Setenv(PathEnvVar, path)
	t.Setenv("CIRCULATION_ODL__WORKERS", "9")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.ODL.BatchSize)
	assert.Equal(t, 9, cfg.ODL.Workers, "environment wins over file")
	assert.Equal(t, "local", cfg.Mutex.Backend)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero batch size", func(c *Config) { c.ODL.BatchSize = 0 }},
		{"unknown sink", func(c *Config) { c.Analytics.Sinks = []string{"s3"} }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
		{"redis mutex without url", func(c *Config) { c.Redis.URL = "" }},
		{"kafka sink without brokers", func(c *Config) { c.Analytics.Sinks = []string{"kafka"} }},
		{"kafka sender without brokers", func(c *Config) { c.Notify.Sender = "kafka" }},
		{"no protocols", func(c *Config) { c.ODL.Protocols = nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	t.Run("defaults are valid", func(t *testing.T) {
		cfg := Default()
		assert.NoError(t, cfg.Validate())
	})
}
