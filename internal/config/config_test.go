/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %s, want development", cfg.Environment)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Errorf("DBBackend = %s, want sqlite", cfg.DBBackend)
	}
	if cfg.SweepInterval != 15*time.Minute {
		t.Errorf("SweepInterval = %v, want 15m", cfg.SweepInterval)
	}
	if cfg.TracingEnabled {
		t.Error("tracing must default off")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SLATEPLAN_ENV", "production")
	t.Setenv("SLATEPLAN_DB_BACKEND", "postgres")
	t.Setenv("SLATEPLAN_DB_DSN", "host=db user=slateplan dbname=slateplan")
	t.Setenv("SLATEPLAN_SWEEP_INTERVAL_MINUTES", "5")
	t.Setenv("SLATEPLAN_TRACING_ENABLED", "true")
	t.Setenv("SLATEPLAN_TRACING_SAMPLE_RATE", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Environment != "production" || cfg.DBBackend != DatabasePostgres {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.SweepInterval != 5*time.Minute {
		t.Errorf("SweepInterval = %v, want 5m", cfg.SweepInterval)
	}
	if !cfg.TracingEnabled || cfg.TracingSampleRate != 0.25 {
		t.Errorf("tracing cfg = %v %v", cfg.TracingEnabled, cfg.TracingSampleRate)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown backend", "SLATEPLAN_DB_BACKEND", "oracle"},
		{"negative sweep interval", "SLATEPLAN_SWEEP_INTERVAL_MINUTES", "-1"},
		{"sample rate above one", "SLATEPLAN_TRACING_SAMPLE_RATE", "1.5"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			if _, err := Load(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestGetEnvTrimsWhitespace(t *testing.T) {
	t.Setenv("SLATEPLAN_METRICS_BIND", "  0.0.0.0:9100  ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MetricsBind != "0.0.0.0:9100" {
		t.Errorf("MetricsBind = %q", cfg.MetricsBind)
	}
}
