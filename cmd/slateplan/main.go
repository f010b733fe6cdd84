/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/slateplan/slateplan/internal/config"
	"github.com/slateplan/slateplan/internal/db"
	"github.com/slateplan/slateplan/internal/logging"
	"github.com/slateplan/slateplan/internal/store"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "slateplan",
	Short: "Slateplan - study schedule planner",
	Long:  "Slateplan allocates study topics onto a bounded calendar under availability and cognitive-load constraints, and repairs the schedule when planned work is missed.",
}

func init() {
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(gridCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(recoverCmd)
	rootCmd.AddCommand(workerCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

// openStore connects to the configured database, applies migrations, and
// returns a ready store.
func openStore() (*gorm.DB, *store.Store, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.RegisterCallbacks(database); err != nil {
		return nil, nil, fmt.Errorf("register callbacks: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return nil, nil, fmt.Errorf("migrate database: %w", err)
	}
	return database, store.New(database, logger), nil
}
