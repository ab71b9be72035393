package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/doccapture/constants"
)

// Config holds all application configuration
type Config struct {
	Capture    CaptureConfig
	Extraction ExtractionConfig
	Store      StoreConfig
}

// CaptureConfig holds auto-capture tuning
type CaptureConfig struct {
	StabilityThreshold int
	AutoCaptureDelay   time.Duration
	Preset             string
}

// ExtractionConfig holds extraction backend configuration
type ExtractionConfig struct {
	Mode       string // "remote" | "local" | "hybrid"
	RemoteURL  string
	Timeout    time.Duration
	MaxRetries int
}

// StoreConfig holds local persistence configuration
type StoreConfig struct {
	DBPath       string
	KeyPrefix    string
	SyncInterval time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Capture: CaptureConfig{
			StabilityThreshold: getEnvAsInt("CAPTURE_STABILITY_THRESHOLD", 5),
			AutoCaptureDelay:   getEnvAsDuration("CAPTURE_AUTO_DELAY", time.Second),
			Preset:             getEnv("CAPTURE_QUALITY_PRESET", string(constants.PresetMedium)),
		},
		Extraction: ExtractionConfig{
			Mode:       getEnv("EXTRACTION_MODE", "hybrid"),
			RemoteURL:  getEnv("EXTRACTION_URL", ""),
			Timeout:    getEnvAsDuration("EXTRACTION_TIMEOUT", 30*time.Second),
			MaxRetries: getEnvAsInt("EXTRACTION_MAX_RETRIES", 3),
		},
		Store: StoreConfig{
			DBPath:       getEnv("STORE_DB_PATH", "./doccapture.db"),
			KeyPrefix:    getEnv("STORE_KEY_PREFIX", "doccapture"),
			SyncInterval: getEnvAsDuration("SYNC_INTERVAL", time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	switch c.Extraction.Mode {
	case "remote", "local", "hybrid":
	default:
		return NewAppError("CONFIG_ERROR", "EXTRACTION_MODE must be remote, local or hybrid", ErrInvalidInput)
	}
	if c.Extraction.Mode != "local" && c.Extraction.RemoteURL == "" {
		return NewAppError("CONFIG_ERROR", "EXTRACTION_URL is required for remote/hybrid mode", ErrInvalidInput)
	}
	if c.Capture.StabilityThreshold < 1 {
		return NewAppError("CONFIG_ERROR", "CAPTURE_STABILITY_THRESHOLD must be >= 1", ErrInvalidInput)
	}
	if !constants.IsValidPreset(c.Capture.Preset) {
		return NewAppError("CONFIG_ERROR", "CAPTURE_QUALITY_PRESET must be low, medium or high", ErrInvalidInput)
	}
	if c.Store.KeyPrefix == "" {
		return NewAppError("CONFIG_ERROR", "STORE_KEY_PREFIX is required", ErrInvalidInput)
	}
	return nil
}
