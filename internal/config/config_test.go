package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ECOVEST_MODEL_DIR", "ECOVEST_DB_PATH", "ECOVEST_CORPUS_PATH", "LOG_LEVEL",
		"ECOVEST_PORT", "DEV_MODE", "ECOVEST_CORS_ORIGINS", "ECOVEST_JITTER_ENABLED", "ECOVEST_JITTER_AMPLITUDE",
		"ECOVEST_REFRESH_SCHEDULE", "ECOVEST_MODEL_MIRROR_BUCKET", "ECOVEST_MODEL_MIRROR_PREFIX",
		"ECOVEST_MODEL_MIRROR_REGION", "ECOVEST_MODEL_MIRROR_ENDPOINT",
		"ECOVEST_MODEL_MIRROR_ACCESS_KEY_ID", "ECOVEST_MODEL_MIRROR_SECRET_ACCESS_KEY",
	} {
		// Setenv registers the restore; the key itself must be absent.
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	t.Setenv("ECOVEST_DATA_DIR", t.TempDir())
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	dataDir := os.Getenv("ECOVEST_DATA_DIR")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dataDir, cfg.DataDir)
	assert.Equal(t, filepath.Join(dataDir, "models"), cfg.ModelDir)
	assert.Equal(t, filepath.Join(dataDir, "ecovest.db"), cfg.DBPath)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.JitterEnabled)
	assert.InDelta(t, 0.05, cfg.JitterAmplitude, 1e-12)
	assert.Equal(t, "0 0 3 * * *", cfg.RefreshSchedule)
	assert.Nil(t, cfg.Mirror)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoad_EmptyRefreshScheduleDisablesJob(t *testing.T) {
	clearEnv(t)
	t.Setenv("ECOVEST_REFRESH_SCHEDULE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.RefreshSchedule)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_CreatesDataDir(t *testing.T) {
	clearEnv(t)
	dir := filepath.Join(t.TempDir(), "nested", "data")
	t.Setenv("ECOVEST_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)
	assert.DirExists(t, cfg.DataDir)
	assert.True(t, filepath.IsAbs(cfg.DataDir))
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("ECOVEST_PORT", "9090")
	t.Setenv("ECOVEST_JITTER_ENABLED", "false")
	t.Setenv("ECOVEST_JITTER_AMPLITUDE", "0.1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("ECOVEST_REFRESH_SCHEDULE", "")
	t.Setenv("ECOVEST_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.RefreshSchedule)
	assert.Equal(t, "debug", cfg.LogLevel)

	jitter := cfg.Jitter()
	assert.False(t, jitter.Enabled)
	assert.InDelta(t, 0.1, jitter.Amplitude, 1e-12)
}

func TestLoad_UnparsableNumbersFallBack(t *testing.T) {
	clearEnv(t)
	t.Setenv("ECOVEST_PORT", "not-a-port")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
}

func TestLoad_Mirror(t *testing.T) {
	clearEnv(t)
	t.Setenv("ECOVEST_MODEL_MIRROR_BUCKET", "models")
	t.Setenv("ECOVEST_MODEL_MIRROR_ENDPOINT", "http://localhost:9000")

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg.Mirror)
	assert.Equal(t, "models", cfg.Mirror.Bucket)
	assert.Equal(t, "impact-models", cfg.Mirror.Prefix)
	assert.Equal(t, "auto", cfg.Mirror.Region)
	assert.Equal(t, "http://localhost:9000", cfg.Mirror.Endpoint)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Port: 8080, LogLevel: "info", CORSOrigins: []string{"*"}, JitterAmplitude: 0.05, RefreshSchedule: "0 0 3 * * *"}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero port", func(c *Config) { c.Port = 0 }, true},
		{"port too large", func(c *Config) { c.Port = 70000 }, true},
		{"no cors origins", func(c *Config) { c.CORSOrigins = nil }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"negative amplitude", func(c *Config) { c.JitterAmplitude = -0.1 }, true},
		{"amplitude of one", func(c *Config) { c.JitterAmplitude = 1 }, true},
		{"bad schedule", func(c *Config) { c.RefreshSchedule = "every day" }, true},
		{"descriptor schedule", func(c *Config) { c.RefreshSchedule = "@daily" }, false},
		{"disabled schedule", func(c *Config) { c.RefreshSchedule = "" }, false},
		{"missing corpus", func(c *Config) { c.CorpusPath = "/does/not/exist.yaml" }, true},
		{"half mirror credentials", func(c *Config) {
			c.Mirror = &MirrorConfig{Bucket: "b", AccessKeyID: "id"}
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
