/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package recovery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/slateplan/slateplan/internal/availability"
	"github.com/slateplan/slateplan/internal/models"
	"github.com/slateplan/slateplan/internal/store"
)

const (
	testUserID = "7d0b9a10-0000-4000-8000-000000000001"
	testPlanID = "7d0b9a10-0000-4000-8000-000000000002"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.StudyPlan{}, &models.StudySession{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(db, zerolog.Nop())
}

func newTestService(t *testing.T, st *store.Store, now time.Time) *Service {
	t.Helper()
	svc := New(st, availability.NewBuilder(zerolog.Nop()), zerolog.Nop())
	svc.SetNow(func() time.Time { return now })
	return svc
}

func seedPlan(t *testing.T, st *store.Store, plan *models.StudyPlan) {
	t.Helper()
	if err := st.SavePlan(context.Background(), plan); err != nil {
		t.Fatalf("save plan: %v", err)
	}
}

func seedSession(t *testing.T, st *store.Store, start time.Time, minutes int, status models.SessionStatus) models.StudySession {
	t.Helper()
	session := models.StudySession{
		ID:              uuid.NewString(),
		UserID:          testUserID,
		PlanID:          testPlanID,
		Title:           "Algebra",
		Topic:           "Algebra",
		StartsAt:        start,
		EndsAt:          start.Add(time.Duration(minutes) * time.Minute),
		DurationMinutes: minutes,
		Difficulty:      models.DifficultyMedium,
		Priority:        models.PriorityHigh,
		Status:          status,
	}
	if err := st.SaveSessions(context.Background(), []models.StudySession{session}); err != nil {
		t.Fatalf("save session: %v", err)
	}
	return session
}

func recoveryPlan() *models.StudyPlan {
	monday := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	return &models.StudyPlan{
		ID:              testPlanID,
		UserID:          testUserID,
		Name:            "finals",
		StartDate:       monday,
		EndDate:         monday.AddDate(0, 0, 1),
		DailyStudyHours: 4,
		PreferredWindows: []models.TimeWindow{
			{Start: "14:00", End: "18:00"},
		},
		SleepWindow: models.TimeWindow{Start: "23:00", End: "07:00"},
		Active:      true,
	}
}

func TestRecoverMissedRelocatesSession(t *testing.T) {
	st := openTestStore(t)
	plan := recoveryPlan()
	seedPlan(t, st, plan)

	// A 90-minute session the user slept through this morning.
	original := seedSession(t, st, plan.StartDate.Add(9*time.Hour), 90, models.SessionPending)

	now := plan.StartDate.Add(12 * time.Hour)
	svc := newTestService(t, st, now)

	result, err := svc.RecoverMissed(context.Background(), testUserID, testPlanID)
	if err != nil {
		t.Fatalf("RecoverMissed: %v", err)
	}
	if result.TotalMissed != 1 || result.Rescheduled != 1 {
		t.Fatalf("result = %+v, want 1 missed, 1 rescheduled", result)
	}

	sessions, err := st.SessionsForPlan(context.Background(), testPlanID)
	if err != nil {
		t.Fatalf("reload sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Fatalf("recovery must never create sessions, found %d", len(sessions))
	}

	got := sessions[0]
	wantStart := plan.StartDate.Add(14 * time.Hour)
	if !got.StartsAt.Equal(wantStart) {
		t.Errorf("relocated start = %v, want 14:00", got.StartsAt)
	}
	if !got.EndsAt.Equal(wantStart.Add(90 * time.Minute)) {
		t.Errorf("relocated end = %v, want 15:30", got.EndsAt)
	}
	if got.Status != models.SessionRescheduled {
		t.Errorf("status = %s, want rescheduled", got.Status)
	}
	if got.RescheduleCount != original.RescheduleCount+1 {
		t.Errorf("reschedule count = %d, want %d", got.RescheduleCount, original.RescheduleCount+1)
	}
	if got.DurationMinutes != 90 {
		t.Errorf("duration changed to %d", got.DurationMinutes)
	}
}

func TestRecoverMissedMarksUnplaceableSession(t *testing.T) {
	st := openTestStore(t)
	plan := recoveryPlan()
	plan.EndDate = plan.StartDate
	plan.PreferredWindows = []models.TimeWindow{{Start: "14:00", End: "15:00"}}
	seedPlan(t, st, plan)

	// 90 minutes cannot fit a one-hour window.
	seedSession(t, st, plan.StartDate.Add(9*time.Hour), 90, models.SessionPending)

	svc := newTestService(t, st, plan.StartDate.Add(12*time.Hour))
	result, err := svc.RecoverMissed(context.Background(), testUserID, testPlanID)
	if err != nil {
		t.Fatalf("RecoverMissed: %v", err)
	}
	if result.TotalMissed != 1 || result.Rescheduled != 0 {
		t.Fatalf("result = %+v, want 1 missed, 0 rescheduled", result)
	}

	sessions, _ := st.SessionsForPlan(context.Background(), testPlanID)
	if sessions[0].Status != models.SessionMissed {
		t.Errorf("status = %s, want missed", sessions[0].Status)
	}
	if sessions[0].RescheduleCount != 0 {
		t.Errorf("reschedule count = %d, want 0", sessions[0].RescheduleCount)
	}
}

func TestRecoverMissedNothingOverdue(t *testing.T) {
	st := openTestStore(t)
	plan := recoveryPlan()
	seedPlan(t, st, plan)

	// A future pending session is not overdue.
	seedSession(t, st, plan.StartDate.Add(16*time.Hour), 60, models.SessionPending)

	svc := newTestService(t, st, plan.StartDate.Add(12*time.Hour))
	result, err := svc.RecoverMissed(context.Background(), testUserID, testPlanID)
	if err != nil {
		t.Fatalf("RecoverMissed: %v", err)
	}
	if result.TotalMissed != 0 || result.Rescheduled != 0 {
		t.Errorf("result = %+v, want zero activity", result)
	}
}

func TestRecoverMissedSkipsOccupiedTime(t *testing.T) {
	st := openTestStore(t)
	plan := recoveryPlan()
	seedPlan(t, st, plan)

	// A future session already owns 14:00-15:00; the relocated session must
	// land after it.
	seedSession(t, st, plan.StartDate.Add(14*time.Hour), 60, models.SessionPending)
	seedSession(t, st, plan.StartDate.Add(9*time.Hour), 60, models.SessionPending)

	svc := newTestService(t, st, plan.StartDate.Add(12*time.Hour))
	result, err := svc.RecoverMissed(context.Background(), testUserID, testPlanID)
	if err != nil {
		t.Fatalf("RecoverMissed: %v", err)
	}
	if result.Rescheduled != 1 {
		t.Fatalf("result = %+v, want 1 rescheduled", result)
	}

	sessions, _ := st.SessionsForPlan(context.Background(), testPlanID)
	for _, s := range sessions {
		if s.Status != models.SessionRescheduled {
			continue
		}
		if want := plan.StartDate.Add(15 * time.Hour); !s.StartsAt.Equal(want) {
			t.Errorf("relocated start = %v, want 15:00", s.StartsAt)
		}
	}
}

func TestRecoverMissedOrdersByOriginalStart(t *testing.T) {
	st := openTestStore(t)
	plan := recoveryPlan()
	seedPlan(t, st, plan)

	later := seedSession(t, st, plan.StartDate.Add(10*time.Hour), 60, models.SessionPending)
	earlier := seedSession(t, st, plan.StartDate.Add(8*time.Hour), 60, models.SessionPending)

	svc := newTestService(t, st, plan.StartDate.Add(12*time.Hour))
	result, err := svc.RecoverMissed(context.Background(), testUserID, testPlanID)
	if err != nil {
		t.Fatalf("RecoverMissed: %v", err)
	}
	if result.Rescheduled != 2 {
		t.Fatalf("result = %+v, want 2 rescheduled", result)
	}

	sessions, _ := st.SessionsForPlan(context.Background(), testPlanID)
	byID := make(map[string]models.StudySession, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
	}
	if !byID[earlier.ID].StartsAt.Before(byID[later.ID].StartsAt) {
		t.Errorf("earlier original session must claim the earlier run: %v vs %v",
			byID[earlier.ID].StartsAt, byID[later.ID].StartsAt)
	}
}

func TestRecoverMissedDoesNotSpanGridGaps(t *testing.T) {
	st := openTestStore(t)
	plan := recoveryPlan()
	plan.EndDate = plan.StartDate
	// Two one-hour windows with a gap: four free units, but no contiguous
	// run of three.
	plan.PreferredWindows = []models.TimeWindow{
		{Start: "14:00", End: "15:00"},
		{Start: "16:00", End: "17:00"},
	}
	seedPlan(t, st, plan)
	seedSession(t, st, plan.StartDate.Add(9*time.Hour), 90, models.SessionPending)

	svc := newTestService(t, st, plan.StartDate.Add(12*time.Hour))
	result, err := svc.RecoverMissed(context.Background(), testUserID, testPlanID)
	if err != nil {
		t.Fatalf("RecoverMissed: %v", err)
	}
	if result.Rescheduled != 0 || result.TotalMissed != 1 {
		t.Errorf("result = %+v, want the session marked missed", result)
	}
}

func TestRecoverMissedIgnoresCompletedAndSkipped(t *testing.T) {
	st := openTestStore(t)
	plan := recoveryPlan()
	seedPlan(t, st, plan)

	seedSession(t, st, plan.StartDate.Add(8*time.Hour), 60, models.SessionCompleted)
	seedSession(t, st, plan.StartDate.Add(9*time.Hour), 60, models.SessionSkipped)

	svc := newTestService(t, st, plan.StartDate.Add(12*time.Hour))
	result, err := svc.RecoverMissed(context.Background(), testUserID, testPlanID)
	if err != nil {
		t.Fatalf("RecoverMissed: %v", err)
	}
	if result.TotalMissed != 0 {
		t.Errorf("result = %+v, completed and skipped sessions are never recovered", result)
	}
}

func TestRecoverMissedRejectsMisconfiguredPlan(t *testing.T) {
	st := openTestStore(t)
	plan := recoveryPlan()
	plan.DailyStudyHours = 0
	seedPlan(t, st, plan)

	// The afternoon window has room; a zero budget must abort the call, not
	// quietly produce an empty grid that writes the session off.
	seedSession(t, st, plan.StartDate.Add(9*time.Hour), 60, models.SessionPending)

	svc := newTestService(t, st, plan.StartDate.Add(12*time.Hour))
	result, err := svc.RecoverMissed(context.Background(), testUserID, testPlanID)
	if err == nil {
		t.Fatalf("expected a configuration error, got result %+v", result)
	}

	sessions, loadErr := st.SessionsForPlan(context.Background(), testPlanID)
	if loadErr != nil {
		t.Fatalf("reload sessions: %v", loadErr)
	}
	if sessions[0].Status != models.SessionPending {
		t.Errorf("status = %s, a rejected call must leave sessions untouched", sessions[0].Status)
	}
	if sessions[0].RescheduleCount != 0 {
		t.Errorf("reschedule count = %d, want 0", sessions[0].RescheduleCount)
	}
}

func TestRecoverMissedUnknownPlan(t *testing.T) {
	st := openTestStore(t)
	// Session rows exist but the plan record is gone.
	seedSession(t, st, time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC), 60, models.SessionPending)

	svc := newTestService(t, st, time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC))
	if _, err := svc.RecoverMissed(context.Background(), testUserID, testPlanID); err == nil {
		t.Fatal("expected an error for a missing plan")
	}
}
