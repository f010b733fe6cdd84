/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/slateplan/slateplan/internal/availability"
	"github.com/slateplan/slateplan/internal/db"
	"github.com/slateplan/slateplan/internal/events"
	"github.com/slateplan/slateplan/internal/recovery"
	"github.com/slateplan/slateplan/internal/telemetry"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the recovery sweeper",
	Long:  "Periodically scan every active plan for overdue pending sessions and reschedule them, serving Prometheus metrics while running.",
	RunE:  runWorker,
}

func runWorker(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Msg("Slateplan worker starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "slateplan-worker",
		ServiceVersion: "0.1.0",
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	database, st, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close(database) }()

	bus := events.NewBus()
	grid := availability.NewBuilder(logger)
	svc := recovery.New(st, grid, logger)
	svc.SetBus(bus)
	sweeper := recovery.NewSweeper(st, svc, cfg.SweepInterval, logger)

	go logRecoveryEvents(bus)

	mux := http.NewServeMux()
	mux.Handle("/metrics", telemetry.Handler())
	metricsServer := &http.Server{Addr: cfg.MetricsBind, Handler: mux}
	go func() {
		logger.Info().Str("addr", cfg.MetricsBind).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server error")
		}
	}()

	ctx, cancel := context.WithCancel(cmd.Context())
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info().Msg("shutting down gracefully...")
		cancel()
	}()

	err = sweeper.Run(ctx)

	timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer timeoutCancel()
	if shutdownErr := metricsServer.Shutdown(timeoutCtx); shutdownErr != nil {
		logger.Error().Err(shutdownErr).Msg("metrics shutdown failed")
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("Slateplan worker stopped")
	return nil
}

// logRecoveryEvents mirrors recovery lifecycle events into the log.
func logRecoveryEvents(bus *events.Bus) {
	rescheduled := bus.Subscribe(events.EventSessionRescheduled)
	missed := bus.Subscribe(events.EventSessionMissed)
	for {
		select {
		case payload, ok := <-rescheduled:
			if !ok {
				return
			}
			logger.Info().Interface("event", payload).Msg("session rescheduled")
		case payload, ok := <-missed:
			if !ok {
				return
			}
			logger.Warn().Interface("event", payload).Msg("session missed")
		}
	}
}
