package config

import (
	"os"
	"strconv"
	"strings"

	"quotebias/domain/discrimination"
	"quotebias/internal"
	"quotebias/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Data        DataConfig
	Database    DatabaseConfig
	Analysis    AnalysisConfig
	Diagnostics DiagnosticsConfig
	Report      ReportConfig
	Server      ServerConfig
	LogLevel    string
}

// DataConfig locates the survey dataset and the optional control dataset.
// URL serves the survey as JSON records when no File is set.
type DataConfig struct {
	File        string
	ControlFile string
	Sheet       string
	Separator   rune
	URL         string
	URLPath     string
	URLToken    string
	URLPaging   string
}

// DatabaseConfig holds PostgreSQL settings; an empty URL disables the source.
type DatabaseConfig struct {
	URL   string
	Table string
}

// AnalysisConfig holds defaults applied to every comparison
type AnalysisConfig struct {
	PlanFile string
	Outcome  string
	Dedup    discrimination.DedupPolicy
	Workers  int
}

// DiagnosticsConfig enables matched-pair dumps when Dir is set.
type DiagnosticsConfig struct {
	Dir string
}

// ReportConfig controls rendering
type ReportConfig struct {
	Currency string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Data:        loadDataConfig(),
		Database:    loadDatabaseConfig(),
		Diagnostics: DiagnosticsConfig{Dir: getEnvOrDefault("DIAGNOSTICS_DIR", "")},
		Report:      ReportConfig{Currency: getEnvOrDefault("CURRENCY", "€")},
		Server:      ServerConfig{Port: getEnvOrDefault("PORT", "8080")},
		LogLevel:    getEnvOrDefault("LOG_LEVEL", "INFO"),
	}

	analysis, err := loadAnalysisConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load analysis configuration")
	}
	config.Analysis = *analysis

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDataConfig() DataConfig {
	return DataConfig{
		File:        getEnvOrDefault("DATA_FILE", ""),
		ControlFile: getEnvOrDefault("CONTROL_FILE", ""),
		Sheet:       getEnvOrDefault("DATA_SHEET", ""),
		Separator:   getEnvRuneOrDefault("CSV_SEPARATOR", ';'),
		URL:         getEnvOrDefault("DATA_URL", ""),
		URLPath:     getEnvOrDefault("DATA_URL_PATH", ""),
		URLToken:    getEnvOrDefault("DATA_URL_TOKEN", ""),
		URLPaging:   getEnvOrDefault("DATA_URL_PAGINATION", "none"),
	}
}

func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:   getEnvOrDefault("DATABASE_URL", ""),
		Table: getEnvOrDefault("QUOTES_TABLE", "quotes"),
	}
}

func loadAnalysisConfig() (*AnalysisConfig, error) {
	policy, err := discrimination.ParseDedupPolicy(os.Getenv("DEDUP_POLICY"))
	if err != nil {
		return nil, errors.WithCode(errors.CodeConfigInvalid, err)
	}

	return &AnalysisConfig{
		PlanFile: getEnvOrDefault("PLAN_FILE", ""),
		Outcome:  getEnvOrDefault("OUTCOME", "top1"),
		Dedup:    policy,
		Workers:  getEnvIntOrDefault("WORKERS", 4),
	}, nil
}

func validateConfig(config *Config) error {
	if config.Analysis.Workers < 1 {
		return errors.ConfigInvalid("WORKERS must be at least 1")
	}
	if strings.TrimSpace(config.Analysis.Outcome) == "" {
		return errors.ConfigInvalid("OUTCOME cannot be empty")
	}
	if config.Database.URL != "" && !validIdentifier(config.Database.Table) {
		return errors.ConfigInvalid("QUOTES_TABLE must be a plain SQL identifier")
	}
	if _, err := internal.ParseLogLevel(config.LogLevel); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	return nil
}

// HasDatabase reports whether quotes are loaded from PostgreSQL.
func (c *Config) HasDatabase() bool {
	return c.Database.URL != ""
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r == '.', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvRuneOrDefault(key string, defaultValue rune) rune {
	value := os.Getenv(key)
	if value == `\t` {
		return '\t'
	}
	if r := []rune(value); len(r) == 1 {
		return r[0]
	}
	return defaultValue
}
