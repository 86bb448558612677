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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, 0.5, cfg.Engine.DefaultAlpha)
	assert.Equal(t, 500, cfg.Engine.MaxCandidates)
	assert.Equal(t, 5*time.Minute, cfg.Sampler.Interval)
	assert.Equal(t, "sampler", cfg.Sampler.Source)
	assert.False(t, cfg.Auth.Enabled)
	assert.Equal(t, time.Minute, cfg.Auth.RateWindow)
	assert.True(t, cfg.Analytics.Enabled)
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9999
engine:
  maxCandidates: 50
  defaultAlpha: 0.7
store:
  backend: postgres
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Engine.MaxCandidates)
	assert.Equal(t, 0.7, cfg.Engine.DefaultAlpha)
	assert.Equal(t, "postgres", cfg.Store.Backend)

	// Everything the file does not mention keeps its default.
	assert.Equal(t, 20, cfg.Engine.DefaultPageSize)
	assert.Equal(t, 5432, cfg.Postgres.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FS_SERVER_PORT", "7777")
	t.Setenv("FS_STORE_BACKEND", "postgres")
	t.Setenv("FS_ENGINE_DEFAULT_ALPHA", "0.25")
	t.Setenv("FS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FS_REDIS_ENABLED", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Store.Backend)
	assert.Equal(t, 0.25, cfg.Engine.DefaultAlpha)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "server.port",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "sqlite" },
			wantErr: "store.backend",
		},
		{
			name:    "alpha above one",
			mutate:  func(c *Config) { c.Engine.DefaultAlpha = 1.5 },
			wantErr: "defaultAlpha",
		},
		{
			name:    "page size above max",
			mutate:  func(c *Config) { c.Engine.DefaultPageSize = 200 },
			wantErr: "defaultPageSize",
		},
		{
			name:    "zero sampler workers",
			mutate:  func(c *Config) { c.Sampler.Workers = 0 },
			wantErr: "sampler.workers",
		},
		{
			name:    "auth without postgres",
			mutate:  func(c *Config) { c.Auth.Enabled = true },
			wantErr: "auth.enabled requires store.backend postgres",
		},
		{
			name: "auth with postgres",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Store.Backend = "postgres"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db.internal",
		Port:     5433,
		Database: "fares",
		User:     "svc",
		Password: "secret",
		SSLMode:  "require",
	}
	assert.Equal(t,
		"host=db.internal port=5433 user=svc password=secret dbname=fares sslmode=require",
		cfg.DSN())
}
