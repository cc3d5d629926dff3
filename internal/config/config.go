// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/aristath/ecovest/internal/modules/impact"
	"github.com/aristath/ecovest/internal/utils"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for the database and model artifacts (always absolute)
	ModelDir   string // Model bundle artifacts (defaults to DataDir/models)
	DBPath     string // SQLite database (defaults to DataDir/ecovest.db)
	CorpusPath string // Optional external seed corpus; empty uses the embedded one
	LogLevel   string
	Port       int
	DevMode    bool

	CORSOrigins []string // Allowed origins for the web tier; defaults to "*"

	JitterEnabled   bool
	JitterAmplitude float64

	RefreshSchedule string // cron spec for the impact-metric refresh, empty disables it

	Mirror *MirrorConfig // nil when no bucket is configured
}

// MirrorConfig locates the S3-compatible bucket model artifacts are mirrored to
type MirrorConfig struct {
	Bucket          string
	Prefix          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

// Load reads configuration from environment variables, after loading a .env
// file from the working directory if there is one.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("ECOVEST_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		ModelDir:        getEnv("ECOVEST_MODEL_DIR", filepath.Join(absDataDir, "models")),
		DBPath:          getEnv("ECOVEST_DB_PATH", filepath.Join(absDataDir, "ecovest.db")),
		CorpusPath:      getEnv("ECOVEST_CORPUS_PATH", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		Port:            getEnvAsInt("ECOVEST_PORT", 8080),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		CORSOrigins:     utils.ParseCSV(getEnv("ECOVEST_CORS_ORIGINS", "*")),
		JitterEnabled:   getEnvAsBool("ECOVEST_JITTER_ENABLED", true),
		JitterAmplitude: getEnvAsFloat("ECOVEST_JITTER_AMPLITUDE", impact.DefaultJitterAmplitude),
		RefreshSchedule: getEnvAllowEmpty("ECOVEST_REFRESH_SCHEDULE", "0 0 3 * * *"),
		Mirror:          loadMirrorConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadMirrorConfig() *MirrorConfig {
	bucket := getEnv("ECOVEST_MODEL_MIRROR_BUCKET", "")
	if bucket == "" {
		return nil
	}
	return &MirrorConfig{
		Bucket:          bucket,
		Prefix:          getEnv("ECOVEST_MODEL_MIRROR_PREFIX", "impact-models"),
		Region:          getEnv("ECOVEST_MODEL_MIRROR_REGION", "auto"),
		Endpoint:        getEnv("ECOVEST_MODEL_MIRROR_ENDPOINT", ""),
		AccessKeyID:     getEnv("ECOVEST_MODEL_MIRROR_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("ECOVEST_MODEL_MIRROR_SECRET_ACCESS_KEY", ""),
	}
}

// Validate rejects values the rest of the application cannot work with
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel)
	}
	if len(c.CORSOrigins) == 0 {
		return fmt.Errorf("ECOVEST_CORS_ORIGINS must list at least one origin")
	}
	if c.JitterAmplitude < 0 || c.JitterAmplitude >= 1 {
		return fmt.Errorf("jitter amplitude must be in [0, 1), got %g", c.JitterAmplitude)
	}
	if c.RefreshSchedule != "" {
		parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(c.RefreshSchedule); err != nil {
			return fmt.Errorf("invalid ECOVEST_REFRESH_SCHEDULE %q: %w", c.RefreshSchedule, err)
		}
	}
	if c.CorpusPath != "" {
		if _, err := os.Stat(c.CorpusPath); err != nil {
			return fmt.Errorf("corpus file: %w", err)
		}
	}
	if c.Mirror != nil && (c.Mirror.AccessKeyID == "") != (c.Mirror.SecretAccessKey == "") {
		return fmt.Errorf("mirror access key id and secret must be set together")
	}
	return nil
}

// Jitter returns the configured impact jitter
func (c *Config) Jitter() impact.Jitter {
	return impact.Jitter{Enabled: c.JitterEnabled, Amplitude: c.JitterAmplitude}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty keeps an explicitly empty value, which switches a feature off.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
