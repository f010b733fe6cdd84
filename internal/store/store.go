/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/slateplan/slateplan/internal/models"
)

// ErrPlanNotFound indicates the requested plan does not exist.
var ErrPlanNotFound = errors.New("study plan not found")

// Store persists plans and sessions. It performs plain reads and writes;
// callers needing strict exclusivity must serialize externally.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// New constructs a store.
func New(database *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     database,
		logger: logger.With().Str("component", "store").Logger(),
	}
}

// GetPlan loads one plan by ID.
func (s *Store) GetPlan(ctx context.Context, planID string) (*models.StudyPlan, error) {
	var plan models.StudyPlan
	err := s.db.WithContext(ctx).Where("id = ?", planID).First(&plan).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query plan: %w", err)
	}
	return &plan, nil
}

// SavePlan inserts or updates a plan.
func (s *Store) SavePlan(ctx context.Context, plan *models.StudyPlan) error {
	return s.db.WithContext(ctx).Save(plan).Error
}

// ListActivePlans returns all active plans ordered by creation time.
func (s *Store) ListActivePlans(ctx context.Context) ([]models.StudyPlan, error) {
	var plans []models.StudyPlan
	err := s.db.WithContext(ctx).
		Where("active = ?", true).
		Order("created_at ASC").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("query active plans: %w", err)
	}
	return plans, nil
}

// SaveSessions persists a batch of allocator output.
func (s *Store) SaveSessions(ctx context.Context, sessions []models.StudySession) error {
	if len(sessions) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&sessions).Error
}

// UpdateSession persists in-place mutations made by the recovery pass.
func (s *Store) UpdateSession(ctx context.Context, session *models.StudySession) error {
	return s.db.WithContext(ctx).Save(session).Error
}

// PendingBefore returns the user's pending sessions for a plan whose start
// is strictly before the cutoff, ordered by original start time.
func (s *Store) PendingBefore(ctx context.Context, userID, planID string, cutoff time.Time) ([]models.StudySession, error) {
	var sessions []models.StudySession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND plan_id = ?", userID, planID).
		Where("status = ?", models.SessionPending).
		Where("starts_at < ?", cutoff).
		Order("starts_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("query pending sessions: %w", err)
	}
	return sessions, nil
}

// HasOverdue reports whether a plan has any pending session already in the
// past, without loading the rows. Used by the recovery sweeper.
func (s *Store) HasOverdue(ctx context.Context, userID, planID string, cutoff time.Time) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.StudySession{}).
		Where("user_id = ? AND plan_id = ?", userID, planID).
		Where("status = ?", models.SessionPending).
		Where("starts_at < ?", cutoff).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count overdue sessions: %w", err)
	}
	return count > 0, nil
}

// BusyIntervals returns the occupied spans overlapping [from, to) for a user:
// every session still on the calendar, regardless of plan. Missed and skipped
// sessions no longer occupy time.
func (s *Store) BusyIntervals(ctx context.Context, userID string, from, to time.Time) ([]models.Interval, error) {
	var sessions []models.StudySession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Where("starts_at < ? AND ends_at > ?", to, from).
		Where("status NOT IN ?", []models.SessionStatus{models.SessionMissed, models.SessionSkipped}).
		Order("starts_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("query busy intervals: %w", err)
	}

	intervals := make([]models.Interval, 0, len(sessions))
	for _, session := range sessions {
		intervals = append(intervals, session.Interval())
	}
	return intervals, nil
}

// SessionsForPlan returns all sessions belonging to a plan, ordered by start.
func (s *Store) SessionsForPlan(ctx context.Context, planID string) ([]models.StudySession, error) {
	var sessions []models.StudySession
	err := s.db.WithContext(ctx).
		Where("plan_id = ?", planID).
		Order("starts_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("query plan sessions: %w", err)
	}
	return sessions, nil
}
