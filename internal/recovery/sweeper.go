/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recovery

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/slateplan/slateplan/internal/models"
	"github.com/slateplan/slateplan/internal/telemetry"
)

// SweepStore lists the plans a sweep should consider.
type SweepStore interface {
	ListActivePlans(ctx context.Context) ([]models.StudyPlan, error)
	HasOverdue(ctx context.Context, userID, planID string, cutoff time.Time) (bool, error)
}

// Sweeper periodically runs the recovery pass over every active plan with
// overdue work.
type Sweeper struct {
	store    SweepStore
	service  *Service
	interval time.Duration
	logger   zerolog.Logger
}

// NewSweeper constructs a recovery sweeper.
func NewSweeper(store SweepStore, service *Service, interval time.Duration, logger zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Sweeper{
		store:    store,
		service:  service,
		interval: interval,
		logger:   logger.With().Str("component", "recovery_sweeper").Logger(),
	}
}

// Run executes the sweep loop until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", s.interval).Msg("recovery sweeper started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("recovery sweeper stopped")
			return ctx.Err()
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	telemetry.RecoverySweepsTotal.Inc()

	plans, err := s.store.ListActivePlans(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("sweep failed to list plans")
		telemetry.WorkerErrorsTotal.WithLabelValues("list_plans").Inc()
		return
	}

	now := s.service.now()
	for _, plan := range plans {
		overdue, err := s.store.HasOverdue(ctx, plan.UserID, plan.ID, now)
		if err != nil {
			s.logger.Warn().Err(err).Str("plan", plan.ID).Msg("overdue check failed")
			telemetry.WorkerErrorsTotal.WithLabelValues("check_overdue").Inc()
			continue
		}
		if !overdue {
			continue
		}

		result, err := s.service.RecoverMissed(ctx, plan.UserID, plan.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("plan", plan.ID).Msg("recovery pass failed")
			telemetry.WorkerErrorsTotal.WithLabelValues("recover").Inc()
			continue
		}
		if result.TotalMissed > 0 {
			s.logger.Info().
				Str("plan", plan.ID).
				Int("rescheduled", result.Rescheduled).
				Int("total_missed", result.TotalMissed).
				Msg("plan swept")
		}
	}
}
