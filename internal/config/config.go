package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Recalculation modes.
const (
	RecalcSync  = "sync"
	RecalcAsync = "async"
)

type Config struct {
	// HTTP Server
	Port string

	// Backend selection
	DataBackend string

	// Database
	SQLiteDBPath string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Cascade
	RecalcMode       string
	SweepConcurrency int

	// Google Sheets export
	GoogleSpreadsheetID     string
	GoogleBalancesSheetName string
	ExportInterval          time.Duration

	// Observability
	LogLevel       string
	LogFormat      string
	MetricsEnabled bool
}

func Load() *Config {
	cfg := &Config{
		Port:        getEnv("PORT", "8081"),
		DataBackend: getEnv("DATA_BACKEND", "sqlite"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/tesouraria.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "tesouraria"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "recalculate_balances"),

		RecalcMode:       getEnv("RECALC_MODE", RecalcSync),
		SweepConcurrency: getEnvInt("SWEEP_CONCURRENCY", 4),

		GoogleSpreadsheetID:     getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleBalancesSheetName: getEnv("GOOGLE_BALANCES_SHEET_NAME", "Saldos"),
		ExportInterval:          getEnvDuration("EXPORT_INTERVAL", 15*time.Minute),

		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}

	return cfg
}

// ExportEnabled reports whether balances are mirrored to a spreadsheet.
func (c *Config) ExportEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite"}
	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	}

	// Validate recalculation mode
	validModes := []string{RecalcSync, RecalcAsync}
	if !slices.Contains(validModes, c.RecalcMode) {
		errors = append(errors, fmt.Sprintf("invalid recalc mode '%s': must be one of %v", c.RecalcMode, validModes))
	}
	if c.RecalcMode == RecalcAsync && c.AMQPURL == "" {
		errors = append(errors, "AMQP URL is required when recalc mode is async")
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate export configuration if a spreadsheet is set
	if c.ExportEnabled() {
		if strings.TrimSpace(c.GoogleBalancesSheetName) == "" {
			errors = append(errors, "Google balances sheet name is required when a spreadsheet is configured")
		}
		if c.ExportInterval < time.Minute {
			errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at least 1 minute", c.ExportInterval))
		} else if c.ExportInterval > 24*time.Hour {
			errors = append(errors, fmt.Sprintf("invalid export interval %v: must be at most 24 hours", c.ExportInterval))
		}
	}

	// Validate worker configuration
	if c.SweepConcurrency < 1 {
		errors = append(errors, fmt.Sprintf("invalid sweep concurrency %d: must be at least 1", c.SweepConcurrency))
	} else if c.SweepConcurrency > 64 {
		errors = append(errors, fmt.Sprintf("invalid sweep concurrency %d: must be at most 64", c.SweepConcurrency))
	}

	// Validate logging
	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(c.LogLevel)) {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of %v", c.LogLevel, validLevels))
	}
	validFormats := []string{"text", "json", "tint"}
	if !slices.Contains(validFormats, strings.ToLower(c.LogFormat)) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validFormats))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
