/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/slateplan/slateplan/internal/models"
)

// Penalty and threshold constants for the compliance score.
const (
	maxEventsPerDay = 8

	dayViolationPenalty = 15
	conflictPenalty     = 20
	softLoadRatio       = 0.9
	minPassingScore     = 50
)

// Validator checks schedules for load compliance and pairwise conflicts.
type Validator struct {
	logger zerolog.Logger
}

// NewValidator creates a schedule validator.
func NewValidator(logger zerolog.Logger) *Validator {
	return &Validator{
		logger: logger.With().Str("component", "schedule_validator").Logger(),
	}
}

// ValidateDayLoad checks one day's sessions against the hour and event caps.
func (v *Validator) ValidateDayLoad(sessions []models.StudySession, maxHoursPerDay float64) models.DayLoad {
	load := models.DayLoad{EventCount: len(sessions)}
	for _, s := range sessions {
		load.TotalMinutes += s.DurationMinutes
	}
	load.TotalHours = float64(load.TotalMinutes) / 60
	load.Valid = load.TotalHours <= maxHoursPerDay && load.EventCount <= maxEventsPerDay
	return load
}

// DetectConflicts reports every pair of sessions whose spans overlap
// (half-open comparison). Quadratic; callers bound input size.
func (v *Validator) DetectConflicts(sessions []models.StudySession) []models.ConflictPair {
	var conflicts []models.ConflictPair
	for i := 0; i < len(sessions); i++ {
		for j := i + 1; j < len(sessions); j++ {
			if sessionsOverlap(sessions[i], sessions[j]) {
				conflicts = append(conflicts, models.ConflictPair{A: sessions[i], B: sessions[j]})
			}
		}
	}
	return conflicts
}

// ValidateRequest carries a schedule to score.
type ValidateRequest struct {
	Schedule        []models.StudySession
	DailyHoursLimit float64
	ExamDate        *time.Time
}

// Validate groups the schedule by calendar day, checks per-day load and
// whole-schedule conflicts, and produces a scored compliance report.
func (v *Validator) Validate(req ValidateRequest) models.ValidationReport {
	report := models.ValidationReport{
		Valid:      true,
		Score:      100,
		Warnings:   []string{},
		Violations: []string{},
	}

	if len(req.Schedule) == 0 {
		report.Warnings = append(report.Warnings, "Empty schedule")
		return report
	}

	byDay := make(map[string][]models.StudySession)
	days := make([]string, 0)
	for _, s := range req.Schedule {
		key := s.StartsAt.Format("2006-01-02")
		if _, seen := byDay[key]; !seen {
			days = append(days, key)
		}
		byDay[key] = append(byDay[key], s)
	}
	sort.Strings(days)

	for _, day := range days {
		load := v.ValidateDayLoad(byDay[day], req.DailyHoursLimit)
		if !load.Valid {
			report.Violations = append(report.Violations, fmt.Sprintf(
				"%s: %.1f hours across %d sessions exceeds the daily limit of %.1f hours",
				day, load.TotalHours, load.EventCount, req.DailyHoursLimit))
			report.Score -= dayViolationPenalty
			continue
		}
		if load.TotalHours > softLoadRatio*req.DailyHoursLimit {
			report.Warnings = append(report.Warnings, fmt.Sprintf(
				"%s: %.1f hours is over 90%% of the daily limit; consider spreading work out",
				day, load.TotalHours))
		}
	}

	conflicts := v.DetectConflicts(req.Schedule)
	for _, pair := range conflicts {
		report.Violations = append(report.Violations, fmt.Sprintf(
			"%q and %q overlap between %s and %s",
			pair.A.Title, pair.B.Title,
			maxTime(pair.A.StartsAt, pair.B.StartsAt).Format(time.RFC3339),
			minTime(pair.A.EndsAt, pair.B.EndsAt).Format(time.RFC3339)))
		report.Score -= conflictPenalty
	}

	if req.ExamDate != nil {
		for _, s := range req.Schedule {
			if s.StartsAt.After(*req.ExamDate) {
				report.Warnings = append(report.Warnings, fmt.Sprintf(
					"%q is scheduled after the exam date", s.Title))
			}
		}
	}

	if report.Score < 0 {
		report.Score = 0
	}
	report.Valid = len(report.Violations) == 0 && report.Score >= minPassingScore

	if !report.Valid {
		v.logger.Debug().
			Int("score", report.Score).
			Int("violations", len(report.Violations)).
			Int("conflicts", len(conflicts)).
			Msg("schedule failed validation")
	}

	return report
}

func sessionsOverlap(a, b models.StudySession) bool {
	// a starts before b ends AND a ends after b starts
	return a.StartsAt.Before(b.EndsAt) && a.EndsAt.After(b.StartsAt)
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
