// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	DataDir      string `yaml:"data_dir"`  // Base directory for all databases, always absolute
	Port         int    `yaml:"port"`      // HTTP listen port
	LogLevel     string `yaml:"log_level"` // debug, info, warn, error
	DevMode      bool   `yaml:"dev_mode"`
	FlexToken    string `yaml:"flex_token"`    // IBKR Flex Web Service token
	FlexQueryID  string `yaml:"flex_query_id"` // IBKR Flex query identifier
	FlexBaseURL  string `yaml:"flex_base_url"` // Overridable for tests
	FlexSchedule string `yaml:"flex_schedule"` // Cron expression for automatic imports
	LogRetention int    `yaml:"log_retention_days"`
}

// Load reads configuration from an optional YAML file, a .env file, and
// environment variables. Environment variables win over the YAML file so
// deployments can override individual values without editing config.yaml.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:         8000,
		LogLevel:     "info",
		FlexBaseURL:  "https://ndcdyn.interactivebrokers.com/AccountManagement/FlexWebService",
		FlexSchedule: "0 */6 * * *",
		LogRetention: 30,
	}

	// Optional YAML config file (PORTFOLIO_CONFIG_FILE or ./config.yaml)
	configFile := getEnv("PORTFOLIO_CONFIG_FILE", "config.yaml")
	if data, err := os.ReadFile(configFile); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	dataDir := getEnv("PORTFOLIO_DATA_DIR", cfg.DataDir)
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	cfg.DataDir = absDataDir

	cfg.Port = getEnvAsInt("PORTFOLIO_PORT", cfg.Port)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.DevMode = getEnvAsBool("DEV_MODE", cfg.DevMode)
	cfg.FlexToken = getEnv("IBKR_FLEX_TOKEN", cfg.FlexToken)
	cfg.FlexQueryID = getEnv("IBKR_FLEX_QUERY_ID", cfg.FlexQueryID)
	cfg.FlexBaseURL = getEnv("IBKR_FLEX_BASE_URL", cfg.FlexBaseURL)
	cfg.FlexSchedule = getEnv("IBKR_FLEX_SCHEDULE", cfg.FlexSchedule)
	cfg.LogRetention = getEnvAsInt("LOG_RETENTION_DAYS", cfg.LogRetention)

	return cfg, nil
}

// SettingsProvider exposes the subset of the settings repository the config
// layer needs. Settings stored in config.db take precedence over environment
// variables so credentials can be rotated from the UI without a restart.
type SettingsProvider interface {
	Get(key string) (*string, error)
}

// UpdateFromSettings overlays credential values from the settings database.
func (c *Config) UpdateFromSettings(settings SettingsProvider) error {
	for key, dst := range map[string]*string{
		"flex_token":    &c.FlexToken,
		"flex_query_id": &c.FlexQueryID,
	} {
		value, err := settings.Get(key)
		if err != nil {
			return fmt.Errorf("failed to read setting %s: %w", key, err)
		}
		if value != nil && *value != "" {
			*dst = *value
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
