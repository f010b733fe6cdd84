/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recovery

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/slateplan/slateplan/internal/availability"
	"github.com/slateplan/slateplan/internal/events"
	"github.com/slateplan/slateplan/internal/models"
	"github.com/slateplan/slateplan/internal/telemetry"
)

// SessionStore is the slice of the event store the recovery pass needs.
type SessionStore interface {
	GetPlan(ctx context.Context, planID string) (*models.StudyPlan, error)
	PendingBefore(ctx context.Context, userID, planID string, cutoff time.Time) ([]models.StudySession, error)
	BusyIntervals(ctx context.Context, userID string, from, to time.Time) ([]models.Interval, error)
	UpdateSession(ctx context.Context, session *models.StudySession) error
}

// Result reports one recovery invocation.
type Result struct {
	Rescheduled int `json:"rescheduled"`
	TotalMissed int `json:"total_missed"`
}

// Service repacks missed study sessions into remaining free time. It mutates
// existing session records in place and never creates new ones.
type Service struct {
	store  SessionStore
	grid   *availability.Builder
	bus    *events.Bus
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs the recovery service.
func New(store SessionStore, grid *availability.Builder, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		grid:   grid,
		logger: logger.With().Str("component", "recovery").Logger(),
		now:    time.Now,
	}
}

// SetBus attaches an event bus for lifecycle notifications.
func (s *Service) SetBus(bus *events.Bus) {
	s.bus = bus
}

// SetNow overrides the clock, for tests.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

// unit is one atomic 30-minute grid cell with a claim flag.
type unit struct {
	startsAt time.Time
	endsAt   time.Time
	used     bool
}

// RecoverMissed finds the user's pending sessions whose start is already in
// the past and relocates each onto the first contiguous run of free atomic
// units that fits its original duration. Sessions that cannot be placed are
// marked missed; that is terminal for this invocation only.
func (s *Service) RecoverMissed(ctx context.Context, userID, planID string) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "recovery", "RecoverMissed")
	defer span.End()

	now := s.now()

	missed, err := s.store.PendingBefore(ctx, userID, planID, now)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load overdue sessions: %w", err)
	}
	if len(missed) == 0 {
		return &Result{}, nil
	}

	plan, err := s.store.GetPlan(ctx, planID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load plan %s: %w", planID, err)
	}
	if err := plan.Validate(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	busy, err := s.store.BusyIntervals(ctx, userID, now, plan.EndDate)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("load busy intervals: %w", err)
	}

	units := s.buildUnits(plan, busy, now)
	telemetry.AddSpanAttributes(span, map[string]any{
		"plan_id":    planID,
		"missed":     len(missed),
		"unit_count": len(units),
	})

	sort.SliceStable(missed, func(i, j int) bool {
		return missed[i].StartsAt.Before(missed[j].StartsAt)
	})

	result := &Result{TotalMissed: len(missed)}
	for i := range missed {
		session := &missed[i]
		if s.reschedule(ctx, session, units) {
			result.Rescheduled++
		}
	}

	if s.bus != nil {
		s.bus.Publish(events.EventRecoveryCompleted, events.Payload{
			"plan_id":     planID,
			"rescheduled": result.Rescheduled,
			"missed":      result.TotalMissed,
		})
	}

	s.logger.Info().
		Str("plan", planID).
		Int("rescheduled", result.Rescheduled).
		Int("total_missed", result.TotalMissed).
		Msg("recovery pass complete")

	return result, nil
}

// buildUnits builds the grid over [now, plan end] using the plan's stored
// constraints and flattens it into atomic units. Slots from earlier today
// that precede now are discarded.
func (s *Service) buildUnits(plan *models.StudyPlan, busy []models.Interval, now time.Time) []unit {
	req := availability.FromPlan(plan, busy)
	req.StartDate = now

	slots := s.grid.BuildGrid(req)
	units := make([]unit, 0, len(slots))
	for _, slot := range slots {
		if slot.StartsAt.Before(now) {
			continue
		}
		units = append(units, unit{startsAt: slot.StartsAt, endsAt: slot.EndsAt})
	}
	return units
}

// reschedule relocates one session onto the first fitting run of units, or
// marks it missed when none exists. Store failures on the final update are
// logged and counted against the item, not the batch.
func (s *Service) reschedule(ctx context.Context, session *models.StudySession, units []unit) bool {
	duration := time.Duration(session.DurationMinutes) * time.Minute
	slotsNeeded := (session.DurationMinutes + availability.SlotMinutes - 1) / availability.SlotMinutes

	start := findRun(units, slotsNeeded, duration)
	if start < 0 {
		session.Status = models.SessionMissed
		if err := s.store.UpdateSession(ctx, session); err != nil {
			s.logger.Error().Err(err).Str("session", session.ID).Msg("failed to mark session missed")
			return false
		}
		telemetry.RecoverySessionsTotal.WithLabelValues("missed").Inc()
		if s.bus != nil {
			s.bus.Publish(events.EventSessionMissed, events.Payload{"session_id": session.ID})
		}
		return false
	}

	oldStart := session.StartsAt
	session.StartsAt = units[start].startsAt
	session.EndsAt = units[start].startsAt.Add(duration)
	session.Status = models.SessionRescheduled
	session.RescheduleCount++

	if err := s.store.UpdateSession(ctx, session); err != nil {
		s.logger.Error().Err(err).Str("session", session.ID).Msg("failed to persist rescheduled session")
		return false
	}

	for i := start; i < start+slotsNeeded; i++ {
		units[i].used = true
	}

	telemetry.RecoverySessionsTotal.WithLabelValues("rescheduled").Inc()
	if s.bus != nil {
		s.bus.Publish(events.EventSessionRescheduled, events.Payload{
			"session_id": session.ID,
			"old_start":  oldStart,
			"new_start":  session.StartsAt,
		})
	}

	s.logger.Debug().
		Str("session", session.ID).
		Time("old_start", oldStart).
		Time("new_start", session.StartsAt).
		Int("reschedule_count", session.RescheduleCount).
		Msg("session rescheduled")

	return true
}

// findRun returns the index of the first run of slotsNeeded unused,
// time-contiguous units whose span contains the full duration, or -1. The
// contiguity requirement keeps a run from silently spanning a grid
// discontinuity such as an overnight gap.
func findRun(units []unit, slotsNeeded int, duration time.Duration) int {
	for i := 0; i+slotsNeeded <= len(units); i++ {
		if !runFits(units[i:i+slotsNeeded], duration) {
			continue
		}
		return i
	}
	return -1
}

func runFits(run []unit, duration time.Duration) bool {
	for j, u := range run {
		if u.used {
			return false
		}
		if j > 0 && !run[j-1].endsAt.Equal(u.startsAt) {
			return false
		}
	}
	end := run[0].startsAt.Add(duration)
	return !end.After(run[len(run)-1].endsAt)
}
