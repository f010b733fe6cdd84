/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package allocator

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slateplan/slateplan/internal/availability"
	"github.com/slateplan/slateplan/internal/events"
	"github.com/slateplan/slateplan/internal/models"
	"github.com/slateplan/slateplan/internal/scheduling"
	"github.com/slateplan/slateplan/internal/telemetry"
)

// Session duration bounds in minutes. Sessions drawn from the standard grid
// never exceed one slot; the cap matters for multi-slot recovery runs and
// guards against future grid granularity changes.
const (
	MinSessionMinutes = 30
	MaxSessionMinutes = 120

	// Post-hoc validation uses the daily limit stretched by this factor so
	// that deliberate dense plans warn instead of failing.
	advisoryLoadFactor = 1.2
)

// InvariantError reports the internal defect of producing zero sessions from
// a non-empty grid. It carries full diagnostic context and is never retried.
type InvariantError struct {
	SlotCount      int
	ClaimedSlots   int
	UnclaimedSlots int
	Topics         []TopicDiagnostic
}

// TopicDiagnostic is one topic's size as seen by the placement loop.
type TopicDiagnostic struct {
	Name    string
	Minutes int
}

func (e *InvariantError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "allocation produced no sessions from %d available slots (%d claimed, %d unclaimed); topics:",
		e.SlotCount, e.ClaimedSlots, e.UnclaimedSlots)
	for _, t := range e.Topics {
		fmt.Fprintf(&b, " %s=%dm", t.Name, t.Minutes)
	}
	return b.String()
}

// ScheduleResult is the allocator's output: the produced sessions plus
// user-facing warnings accumulated along the way.
type ScheduleResult struct {
	Sessions []models.StudySession
	Warnings []string
}

// Service assigns topics to availability slots. Collaborators are injected;
// the service holds no storage.
type Service struct {
	grid      *availability.Builder
	validator *scheduling.Validator
	bus       *events.Bus
	logger    zerolog.Logger
}

// New constructs the allocator service.
func New(grid *availability.Builder, validator *scheduling.Validator, logger zerolog.Logger) *Service {
	return &Service{
		grid:      grid,
		validator: validator,
		logger:    logger.With().Str("component", "allocator").Logger(),
	}
}

// SetBus attaches an event bus for lifecycle notifications.
func (s *Service) SetBus(bus *events.Bus) {
	s.bus = bus
}

// Schedule builds the availability grid for the plan, places topics onto it
// in priority order, and validates the result. An empty grid triggers the
// relaxation ladder; exhausting the ladder is reported through warnings, not
// as an error.
func (s *Service) Schedule(ctx context.Context, topics []models.Topic, plan *models.StudyPlan, busy []models.Interval) (*ScheduleResult, error) {
	_, span := telemetry.StartSpan(ctx, "allocator", "Schedule")
	defer span.End()

	if err := plan.Validate(); err != nil {
		telemetry.RecordError(span, err)
		telemetry.AllocationRunsTotal.WithLabelValues("config_error").Inc()
		return nil, err
	}

	slots, warnings := s.buildWithRelaxation(availability.FromPlan(plan, busy))
	telemetry.AddSpanAttributes(span, map[string]any{
		"plan_id":     plan.ID,
		"topic_count": len(topics),
		"slot_count":  len(slots),
	})

	if len(slots) == 0 {
		warnings = append(warnings,
			"No available time slots could be found for this plan. Extend the date range, raise the daily study hours, or remove fixed commitments.")
		s.logger.Info().Str("plan", plan.ID).Msg("allocation exhausted all relaxation options")
		telemetry.AllocationRunsTotal.WithLabelValues("exhausted").Inc()
		return &ScheduleResult{Sessions: []models.StudySession{}, Warnings: warnings}, nil
	}

	sessions, claimed := s.place(topics, slots, plan)

	if len(sessions) == 0 && len(topics) > 0 {
		diag := &InvariantError{
			SlotCount:      len(slots),
			ClaimedSlots:   claimed,
			UnclaimedSlots: len(slots) - claimed,
		}
		for _, t := range topics {
			diag.Topics = append(diag.Topics, TopicDiagnostic{Name: t.Name, Minutes: topicMinutes(t)})
		}
		telemetry.RecordError(span, diag)
		telemetry.AllocationRunsTotal.WithLabelValues("invariant_violation").Inc()
		return nil, diag
	}

	limit := math.Max(plan.RecommendedMaxHours, plan.DailyStudyHours) * advisoryLoadFactor
	report := s.validator.Validate(scheduling.ValidateRequest{
		Schedule:        sessions,
		DailyHoursLimit: limit,
		ExamDate:        plan.ExamDate,
	})
	warnings = append(warnings, report.Violations...)
	warnings = append(warnings, report.Warnings...)
	telemetry.ValidationScore.Observe(float64(report.Score))

	telemetry.SessionsScheduledTotal.Add(float64(len(sessions)))
	telemetry.AllocationRunsTotal.WithLabelValues("ok").Inc()
	if s.bus != nil {
		s.bus.Publish(events.EventScheduleValidated, events.Payload{
			"plan_id": plan.ID,
			"valid":   report.Valid,
			"score":   report.Score,
		})
		s.bus.Publish(events.EventPlanScheduled, events.Payload{
			"plan_id":  plan.ID,
			"sessions": len(sessions),
			"score":    report.Score,
		})
	}

	s.logger.Info().
		Str("plan", plan.ID).
		Int("topics", len(topics)).
		Int("sessions", len(sessions)).
		Int("score", report.Score).
		Msg("allocation complete")

	return &ScheduleResult{Sessions: sessions, Warnings: warnings}, nil
}

// buildWithRelaxation builds the grid and, when it comes back empty, walks
// the two-step relaxation ladder: drop recurring blocks, then swap the
// caller's preferred windows for the defaults. Relaxations are cumulative.
func (s *Service) buildWithRelaxation(req availability.GridRequest) ([]availability.Slot, []string) {
	var warnings []string

	start := time.Now()
	slots := s.grid.BuildGrid(req)
	telemetry.GridBuildDuration.Observe(time.Since(start).Seconds())
	if len(slots) > 0 {
		return slots, warnings
	}

	relaxed := req
	relaxed.RecurringBlocks = nil
	slots = s.grid.BuildGrid(relaxed)
	warnings = append(warnings,
		"Fixed commitments were ignored to find study time; some sessions may collide with them.")
	telemetry.RelaxationStepsTotal.WithLabelValues("drop_recurring").Inc()
	s.logger.Warn().Msg("grid empty, rebuilt ignoring recurring blocks")
	if len(slots) > 0 {
		return slots, warnings
	}

	relaxed.PreferredWindows = availability.DefaultPreferredWindows()
	slots = s.grid.BuildGrid(relaxed)
	warnings = append(warnings,
		"Preferred study times could not be honored; default daytime windows were used instead.")
	telemetry.RelaxationStepsTotal.WithLabelValues("drop_windows").Inc()
	s.logger.Warn().Msg("grid still empty, rebuilt with default preferred windows")

	return slots, warnings
}

// place walks the grid chronologically for each topic in priority order and
// claims slots greedily. A session may span several contiguous slots, up to
// the duration cap; every covered slot is claimed so no later topic can reuse
// it. Returns the produced sessions and the number of claimed slots.
func (s *Service) place(topics []models.Topic, slots []availability.Slot, plan *models.StudyPlan) ([]models.StudySession, int) {
	ordered := make([]models.Topic, len(topics))
	copy(ordered, topics)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].PriorityWeight > ordered[j].PriorityWeight
	})

	claimed := make([]bool, len(slots))
	claimedCount := 0
	sessions := make([]models.StudySession, 0, len(slots))

	for _, topic := range ordered {
		remaining := topicMinutes(topic)

		for i := 0; i < len(slots) && remaining > 0; i++ {
			if claimed[i] {
				continue
			}
			capacity := contiguousCapacity(slots, claimed, i)
			if capacity < MinSessionMinutes {
				continue
			}
			duration := minInt(remaining, capacity, MaxSessionMinutes)
			if duration < MinSessionMinutes {
				// Leftover too small to be a useful session.
				continue
			}

			covered := (duration + availability.SlotMinutes - 1) / availability.SlotMinutes
			for j := i; j < i+covered; j++ {
				claimed[j] = true
			}
			claimedCount += covered

			sessions = append(sessions, newSession(topic, plan, slots[i].StartsAt, duration))
			remaining -= duration
			i += covered - 1
		}
	}

	return sessions, claimedCount
}

// contiguousCapacity returns the minutes of unclaimed, time-contiguous grid
// starting at slot i. A gap between consecutive slots (window boundary,
// filtered slot, day change) ends the run.
func contiguousCapacity(slots []availability.Slot, claimed []bool, i int) int {
	capacity := int(slots[i].Duration().Minutes())
	for j := i + 1; j < len(slots); j++ {
		if claimed[j] || !slots[j-1].EndsAt.Equal(slots[j].StartsAt) {
			break
		}
		capacity += int(slots[j].Duration().Minutes())
	}
	return capacity
}

// topicMinutes rounds the estimate to minutes, clamped to the minimum
// session length so tiny topics are rounded up rather than dropped.
func topicMinutes(t models.Topic) int {
	minutes := int(math.Round(t.EstimatedHours * 60))
	if minutes < MinSessionMinutes {
		minutes = MinSessionMinutes
	}
	return minutes
}

func newSession(topic models.Topic, plan *models.StudyPlan, start time.Time, durationMinutes int) models.StudySession {
	end := start.Add(time.Duration(durationMinutes) * time.Minute)
	return models.StudySession{
		ID:              sessionID(plan.ID, topic.Name, start),
		UserID:          plan.UserID,
		PlanID:          plan.ID,
		Title:           topic.Name,
		Topic:           topic.Name,
		StartsAt:        start,
		EndsAt:          end,
		DurationMinutes: durationMinutes,
		Difficulty:      models.DifficultyFor(topic.DifficultyScore),
		Priority:        models.PriorityFor(topic.PriorityWeight),
		IsDeepWork:      durationMinutes >= 90,
		EstimatedEffort: topic.EstimatedHours,
		Status:          models.SessionPending,
	}
}

// sessionID derives a stable UUID from the placement coordinates so that
// identical inputs produce identical output, as the scheduler promises.
func sessionID(planID, topic string, start time.Time) string {
	name := planID + "/" + topic + "/" + start.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
