/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/slateplan/slateplan/internal/availability"
	"github.com/slateplan/slateplan/internal/db"
	"github.com/slateplan/slateplan/internal/recovery"
)

var (
	recoverUser string
	recoverPlan string
)

var recoverCmd = &cobra.Command{
	Use:   "recover",
	Short: "Reschedule a plan's missed sessions",
	RunE:  runRecover,
}

func init() {
	recoverCmd.Flags().StringVar(&recoverUser, "user", "", "user ID")
	recoverCmd.Flags().StringVar(&recoverPlan, "plan", "", "plan ID")
	_ = recoverCmd.MarkFlagRequired("user")
	_ = recoverCmd.MarkFlagRequired("plan")
}

func runRecover(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	database, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	grid := availability.NewBuilder(logger)
	svc := recovery.New(st, grid, logger)

	result, err := svc.RecoverMissed(cmd.Context(), recoverUser, recoverPlan)
	if err != nil {
		return err
	}

	fmt.Printf("rescheduled: %d\ntotal missed: %d\n", result.Rescheduled, result.TotalMissed)
	return nil
}
