// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir        string // Base directory for all databases and weight files (always absolute)
	Port           int
	LogLevel       string
	DevMode        bool
	PolygonAPIKey  string // Market data (quotes, options chains, trade tape)
	FREDAPIKey     string // Federal Reserve economic data series
	CoinGlassKey   string // Crypto liquidation history
	WhaleAlertKey  string // Large on-chain transfer feed
	GitHubToken    string // Raises the API rate limit; connector works unauthenticated too
	AWSRegion      string // Bedrock + S3 region
	AWSAccessKey   string // Explicit AWS key pair; empty uses the default credential chain
	AWSSecretKey   string
	BedrockEnabled bool   // Gate for LLM/embedding calls; fallbacks apply when false
	S3BackupBucket string // Optional nightly data backup target; empty disables the job
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Determine data directory with fallback logic
	// 1. Check HYDRA_DATA_DIR environment variable
	// 2. If not set, default to ./data
	// 3. Always resolve to absolute path
	// 4. Ensure directory exists
	dataDir := getEnv("HYDRA_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "data"
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:        absDataDir,
		Port:           getEnvAsInt("PORT", 8000),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DevMode:        getEnvAsBool("DEV_MODE", false),
		PolygonAPIKey:  getEnv("POLYGON_API_KEY", ""),
		FREDAPIKey:     getEnv("FRED_API_KEY", ""),
		CoinGlassKey:   getEnv("COINGLASS_API_KEY", ""),
		WhaleAlertKey:  getEnv("WHALE_ALERT_KEY", ""),
		GitHubToken:    getEnv("GITHUB_TOKEN", ""),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKey:   getEnv("HYDRA_AWS_ACCESS_KEY", ""),
		AWSSecretKey:   getEnv("HYDRA_AWS_SECRET_KEY", ""),
		BedrockEnabled: getEnvAsBool("BEDROCK_ENABLED", true),
		S3BackupBucket: getEnv("S3_BACKUP_BUCKET", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	// API keys are optional: every consumer degrades gracefully when its key
	// is absent (components report healthy=false, LLM paths fall back).
	return nil
}

// DatabasePath returns the absolute path of a named database file under DataDir.
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name)
}

// WeightsPath returns the path of the scorer weights file.
func (c *Config) WeightsPath() string {
	return filepath.Join(c.DataDir, "blowup_weights.json")
}

// EventsPath returns the path of the economic events calendar file.
func (c *Config) EventsPath() string {
	return filepath.Join(c.DataDir, "economic_events.json")
}

// Helper functions
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
