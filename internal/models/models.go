/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"fmt"
	"time"
)

// SessionStatus tracks the lifecycle of a scheduled study session.
type SessionStatus string

const (
	SessionPending     SessionStatus = "pending"
	SessionCompleted   SessionStatus = "completed"
	SessionSkipped     SessionStatus = "skipped"
	SessionMissed      SessionStatus = "missed"
	SessionRescheduled SessionStatus = "rescheduled"
)

// Difficulty buckets a topic's numeric difficulty score for display.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// DifficultyFor maps a 0-10 difficulty score onto a bucket.
func DifficultyFor(score float64) Difficulty {
	switch {
	case score >= 7:
		return DifficultyHard
	case score >= 4:
		return DifficultyMedium
	default:
		return DifficultyEasy
	}
}

// SessionPriority buckets a topic's priority weight.
type SessionPriority string

const (
	PriorityHigh   SessionPriority = "high"
	PriorityMedium SessionPriority = "medium"
)

// PriorityFor maps a 0-1 priority weight onto a bucket.
func PriorityFor(weight float64) SessionPriority {
	if weight >= 0.7 {
		return PriorityHigh
	}
	return PriorityMedium
}

// Topic is one unit of required study work. Immutable input to the allocator;
// the topic source (heuristic or external generator) owns its construction.
type Topic struct {
	Name             string  `json:"name" yaml:"name"`
	EstimatedHours   float64 `json:"estimated_hours" yaml:"estimated_hours"`
	PriorityWeight   float64 `json:"priority_weight" yaml:"priority_weight"`     // 0..1
	DifficultyScore  float64 `json:"difficulty_score" yaml:"difficulty_score"`   // 0..10
	RevisionStrategy string  `json:"revision_strategy" yaml:"revision_strategy"` // e.g. "spaced", "massed"
}

// Interval is an absolute busy span on the calendar.
type Interval struct {
	Start time.Time `json:"start" yaml:"start"`
	End   time.Time `json:"end" yaml:"end"`
}

// Overlaps reports half-open interval intersection.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// TimeWindow is a local wall-clock window in HH:MM form. A window whose end
// is at or before its start is treated as wrapping midnight by callers that
// allow it (the sleep window does, preferred windows do not).
type TimeWindow struct {
	Start string `json:"start" yaml:"start"` // HH:MM
	End   string `json:"end" yaml:"end"`     // HH:MM
}

// Minutes returns the window bounds as minutes from local midnight.
func (w TimeWindow) Minutes() (start, end int, err error) {
	start, err = ParseClock(w.Start)
	if err != nil {
		return 0, 0, err
	}
	end, err = ParseClock(w.End)
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

// RecurringBlock is a fixed weekly commitment (class, work shift) expressed
// as day-of-week plus a local time window.
type RecurringBlock struct {
	DayOfWeek int    `json:"day_of_week" yaml:"day_of_week"` // 0=Sunday .. 6=Saturday
	Start     string `json:"start" yaml:"start"`             // HH:MM
	End       string `json:"end" yaml:"end"`                 // HH:MM
}

// ParseClock parses an HH:MM string into minutes from midnight.
func ParseClock(value string) (int, error) {
	var h, m int
	if _, err := fmt.Sscanf(value, "%d:%d", &h, &m); err != nil {
		return 0, fmt.Errorf("parse clock %q: %w", value, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("parse clock %q: out of range", value)
	}
	return h*60 + m, nil
}

// StudyPlan holds the constraints for one user's plan. Read-only for the
// duration of one allocation call.
type StudyPlan struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id" yaml:"id"`
	UserID string `gorm:"type:uuid;index:idx_study_plans_user;not null" json:"user_id" yaml:"user_id"`
	Name   string `gorm:"type:varchar(255)" json:"name" yaml:"name"`

	StartDate       time.Time `gorm:"not null" json:"start_date" yaml:"start_date"`
	EndDate         time.Time `gorm:"not null" json:"end_date" yaml:"end_date"`
	DailyStudyHours float64   `gorm:"not null" json:"daily_study_hours" yaml:"daily_study_hours"`

	PreferredWindows []TimeWindow     `gorm:"type:jsonb;serializer:json" json:"preferred_windows" yaml:"preferred_windows"`
	RecurringBlocks  []RecurringBlock `gorm:"type:jsonb;serializer:json" json:"recurring_blocks" yaml:"recurring_blocks"`
	SleepWindow      TimeWindow       `gorm:"type:jsonb;serializer:json" json:"sleep_window" yaml:"sleep_window"`

	// Upper bound of the recommended daily load range, used to derive the
	// advisory validation limit after allocation.
	RecommendedMaxHours float64    `json:"recommended_max_hours" yaml:"recommended_max_hours"`
	ExamDate            *time.Time `json:"exam_date,omitempty" yaml:"exam_date,omitempty"`
	Active              bool       `gorm:"not null;default:true" json:"active" yaml:"active"`

	CreatedAt time.Time `json:"created_at" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// TableName returns the table name for GORM.
func (StudyPlan) TableName() string {
	return "study_plans"
}

// Validate reports configuration errors that must abort an allocation call.
func (p *StudyPlan) Validate() error {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return fmt.Errorf("plan %s: missing date range", p.ID)
	}
	if p.EndDate.Before(p.StartDate) {
		return fmt.Errorf("plan %s: end date before start date", p.ID)
	}
	if p.DailyStudyHours <= 0 {
		return fmt.Errorf("plan %s: daily study hours must be positive", p.ID)
	}
	return nil
}

// StudySession is one concrete scheduled block of work on a topic.
type StudySession struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID string `gorm:"type:uuid;index:idx_study_sessions_user;not null" json:"user_id"`
	PlanID string `gorm:"type:uuid;index:idx_study_sessions_plan;not null" json:"plan_id"`

	Title string `gorm:"type:varchar(255);not null" json:"title"`
	Topic string `gorm:"type:varchar(255);not null" json:"topic"`

	StartsAt        time.Time `gorm:"index;not null" json:"starts_at"`
	EndsAt          time.Time `gorm:"not null" json:"ends_at"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`

	Difficulty      Difficulty      `gorm:"type:varchar(16);not null" json:"difficulty"`
	Priority        SessionPriority `gorm:"type:varchar(16);not null" json:"priority"`
	IsDeepWork      bool            `gorm:"not null;default:false" json:"is_deep_work"`
	EstimatedEffort float64         `json:"estimated_effort"`

	Status          SessionStatus `gorm:"type:varchar(32);not null;default:'pending';index:idx_study_sessions_status" json:"status"`
	RescheduleCount int           `gorm:"not null;default:0" json:"reschedule_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM.
func (StudySession) TableName() string {
	return "study_sessions"
}

// Interval returns the session's occupied span.
func (s *StudySession) Interval() Interval {
	return Interval{Start: s.StartsAt, End: s.EndsAt}
}

// DayLoad is the per-day compliance result produced by the validator.
type DayLoad struct {
	Valid        bool    `json:"valid"`
	TotalMinutes int     `json:"total_minutes"`
	TotalHours   float64 `json:"total_hours"`
	EventCount   int     `json:"event_count"`
}

// ConflictPair identifies two sessions that overlap in time.
type ConflictPair struct {
	A StudySession `json:"a"`
	B StudySession `json:"b"`
}

// ValidationReport is the scored compliance result for a whole schedule.
// Derived on demand, never persisted.
type ValidationReport struct {
	Valid      bool     `json:"valid"`
	Score      int      `json:"score"` // 0..100
	Warnings   []string `json:"warnings"`
	Violations []string `json:"violations"`
}
