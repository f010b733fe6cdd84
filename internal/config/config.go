/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	DBBackend   DatabaseBackend
	DBDSN       string
	MetricsBind string

	// Recovery sweeper
	SweepInterval time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("SLATEPLAN_ENV", "development"),
		DBBackend:   DatabaseBackend(getEnv("SLATEPLAN_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:       getEnv("SLATEPLAN_DB_DSN", "slateplan.db"),
		MetricsBind: getEnv("SLATEPLAN_METRICS_BIND", "127.0.0.1:9000"),

		SweepInterval: time.Duration(getEnvInt("SLATEPLAN_SWEEP_INTERVAL_MINUTES", 15)) * time.Minute,

		TracingEnabled:    getEnvBool("SLATEPLAN_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("SLATEPLAN_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("SLATEPLAN_TRACING_SAMPLE_RATE", 1.0),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBBackend {
	case DatabasePostgres, DatabaseMySQL, DatabaseSQLite:
	default:
		return fmt.Errorf("invalid database backend %q", c.DBBackend)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("database DSN must be set")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		return fmt.Errorf("tracing sample rate must be within [0, 1]")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}
