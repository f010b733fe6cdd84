/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/slateplan/slateplan/internal/models"
)

func session(title string, start time.Time, minutes int) models.StudySession {
	return models.StudySession{
		Title:           title,
		Topic:           title,
		StartsAt:        start,
		EndsAt:          start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		Status:          models.SessionPending,
	}
}

func at(day, hour int) time.Time {
	return time.Date(2026, 4, 6+day, hour, 0, 0, 0, time.UTC)
}

func TestValidateEmptySchedule(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	report := v.Validate(ValidateRequest{DailyHoursLimit: 4})

	if !report.Valid {
		t.Error("empty schedule should be valid")
	}
	if report.Score != 100 {
		t.Errorf("score = %d, want 100", report.Score)
	}
	if len(report.Warnings) != 1 || report.Warnings[0] != "Empty schedule" {
		t.Errorf("warnings = %v, want [Empty schedule]", report.Warnings)
	}
}

func TestValidateCleanSchedule(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	report := v.Validate(ValidateRequest{
		Schedule: []models.StudySession{
			session("Algebra", at(0, 9), 60),
			session("Chemistry", at(0, 11), 60),
			session("History", at(1, 9), 90),
		},
		DailyHoursLimit: 4,
	})

	if !report.Valid {
		t.Errorf("report invalid: %v", report.Violations)
	}
	if report.Score != 100 {
		t.Errorf("score = %d, want 100", report.Score)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", report.Warnings)
	}
}

func TestValidateSingleConflictInvalidatesSchedule(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	report := v.Validate(ValidateRequest{
		Schedule: []models.StudySession{
			session("Algebra", at(0, 9), 60),
			session("Chemistry", at(0, 9).Add(30*time.Minute), 60),
		},
		DailyHoursLimit: 4,
	})

	if report.Valid {
		t.Error("overlapping sessions must fail validation even above the score floor")
	}
	if report.Score != 80 {
		t.Errorf("score = %d, want 80", report.Score)
	}
	if len(report.Violations) != 1 {
		t.Fatalf("violations = %v, want exactly one", report.Violations)
	}
	if !strings.Contains(report.Violations[0], "overlap") {
		t.Errorf("violation message %q should mention the overlap", report.Violations[0])
	}
}

func TestValidateDayOverload(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	report := v.Validate(ValidateRequest{
		Schedule: []models.StudySession{
			session("Algebra", at(0, 9), 120),
			session("Chemistry", at(0, 14), 120),
			session("History", at(0, 17), 60),
		},
		DailyHoursLimit: 4,
	})

	if report.Valid {
		t.Error("overloaded day must fail validation")
	}
	if report.Score != 85 {
		t.Errorf("score = %d, want 85", report.Score)
	}
	if len(report.Violations) != 1 {
		t.Fatalf("violations = %v, want exactly one", report.Violations)
	}
}

func TestValidateSoftLoadWarning(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	// 3.75 hours against a 4-hour limit crosses the 90% line without
	// breaching it.
	report := v.Validate(ValidateRequest{
		Schedule: []models.StudySession{
			session("Algebra", at(0, 9), 120),
			session("Chemistry", at(0, 14), 105),
		},
		DailyHoursLimit: 4,
	})

	if !report.Valid {
		t.Errorf("report invalid: %v", report.Violations)
	}
	if report.Score != 100 {
		t.Errorf("score = %d, want 100", report.Score)
	}
	if len(report.Warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", report.Warnings)
	}
}

func TestValidateTooManyEvents(t *testing.T) {
	var schedule []models.StudySession
	for i := 0; i < 9; i++ {
		schedule = append(schedule, session("S", at(0, 8).Add(time.Duration(i)*30*time.Minute), 30))
	}

	v := NewValidator(zerolog.Nop())
	report := v.Validate(ValidateRequest{Schedule: schedule, DailyHoursLimit: 10})

	if report.Valid {
		t.Error("nine sessions on one day must fail validation")
	}
	if len(report.Violations) != 1 {
		t.Fatalf("violations = %v, want exactly one", report.Violations)
	}
}

func TestValidateScoreFloor(t *testing.T) {
	// Six mutually overlapping sessions produce 15 conflict pairs; the score
	// must clamp at zero instead of going negative.
	var schedule []models.StudySession
	for i := 0; i < 6; i++ {
		schedule = append(schedule, session("S", at(0, 9), 60))
	}

	v := NewValidator(zerolog.Nop())
	report := v.Validate(ValidateRequest{Schedule: schedule, DailyHoursLimit: 10})

	if report.Valid {
		t.Error("schedule must be invalid")
	}
	if report.Score != 0 {
		t.Errorf("score = %d, want 0", report.Score)
	}
}

func TestValidateExamDateWarning(t *testing.T) {
	exam := at(1, 0)
	v := NewValidator(zerolog.Nop())
	report := v.Validate(ValidateRequest{
		Schedule: []models.StudySession{
			session("Before", at(0, 9), 60),
			session("After", at(2, 9), 60),
		},
		DailyHoursLimit: 4,
		ExamDate:        &exam,
	})

	if !report.Valid {
		t.Errorf("report invalid: %v", report.Violations)
	}
	if len(report.Warnings) != 1 || !strings.Contains(report.Warnings[0], "After") {
		t.Errorf("warnings = %v, want one naming the late session", report.Warnings)
	}
}

func TestValidateDayLoad(t *testing.T) {
	v := NewValidator(zerolog.Nop())

	tests := []struct {
		name      string
		minutes   []int
		limit     float64
		wantValid bool
		wantHours float64
	}{
		{"under limit", []int{60, 60}, 4, true, 2},
		{"exactly at limit", []int{120, 120}, 4, true, 4},
		{"over limit", []int{120, 150}, 4, false, 4.5},
		{"empty day", nil, 4, true, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var sessions []models.StudySession
			for i, m := range tc.minutes {
				sessions = append(sessions, session("S", at(0, 8+i*2), m))
			}
			load := v.ValidateDayLoad(sessions, tc.limit)
			if load.Valid != tc.wantValid {
				t.Errorf("Valid = %v, want %v", load.Valid, tc.wantValid)
			}
			if load.TotalHours != tc.wantHours {
				t.Errorf("TotalHours = %v, want %v", load.TotalHours, tc.wantHours)
			}
			if load.EventCount != len(tc.minutes) {
				t.Errorf("EventCount = %d, want %d", load.EventCount, len(tc.minutes))
			}
		})
	}
}

func TestDetectConflicts(t *testing.T) {
	v := NewValidator(zerolog.Nop())

	a := session("A", at(0, 9), 60)
	b := session("B", at(0, 9).Add(30*time.Minute), 60) // overlaps a
	c := session("C", at(0, 11), 60)                    // clear
	d := session("D", at(0, 10), 60)                    // back-to-back with a, overlaps b

	conflicts := v.DetectConflicts([]models.StudySession{a, b, c, d})

	if len(conflicts) != 2 {
		t.Fatalf("got %d conflicts, want 2: %+v", len(conflicts), conflicts)
	}
	// Back-to-back sessions (a ends 10:00, d starts 10:00) never conflict.
	for _, pair := range conflicts {
		if pair.A.Title == "A" && pair.B.Title == "D" {
			t.Error("adjacent sessions reported as conflicting")
		}
	}
}
