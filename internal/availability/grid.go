/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package availability

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/slateplan/slateplan/internal/models"
)

// SlotMinutes is the fixed grid granularity.
const SlotMinutes = 30

// Quality scores assigned to slots based on remaining room in their window.
const (
	qualityHigh     = 85
	qualityStandard = 65

	// A slot is high quality when its containing window still has at least
	// this many minutes left after the slot ends.
	qualityRunwayMinutes = 120

	deepWorkMinutes = 60
)

// Slot is a fixed-size candidate interval produced by the grid builder.
// Slots are immutable once produced; within one allocation run a slot is
// identified by its position in the ordered grid.
type Slot struct {
	StartsAt        time.Time
	EndsAt          time.Time
	DeepWorkCapable bool
	Quality         int
}

// Duration returns the slot's span.
func (s Slot) Duration() time.Duration {
	return s.EndsAt.Sub(s.StartsAt)
}

// GridRequest carries the constraints for one grid construction.
type GridRequest struct {
	StartDate        time.Time
	EndDate          time.Time
	DailyStudyHours  float64
	PreferredWindows []models.TimeWindow
	BusyIntervals    []models.Interval
	SleepWindow      models.TimeWindow
	RecurringBlocks  []models.RecurringBlock
}

// FromPlan builds a grid request from a plan's stored constraints plus the
// caller-supplied busy intervals.
func FromPlan(plan *models.StudyPlan, busy []models.Interval) GridRequest {
	return GridRequest{
		StartDate:        plan.StartDate,
		EndDate:          plan.EndDate,
		DailyStudyHours:  plan.DailyStudyHours,
		PreferredWindows: plan.PreferredWindows,
		BusyIntervals:    busy,
		SleepWindow:      plan.SleepWindow,
		RecurringBlocks:  plan.RecurringBlocks,
	}
}

// Builder produces availability grids.
type Builder struct {
	logger zerolog.Logger
}

// NewBuilder constructs a grid builder.
func NewBuilder(logger zerolog.Logger) *Builder {
	return &Builder{logger: logger.With().Str("component", "grid_builder").Logger()}
}

// window is a preferred window resolved to minutes from midnight.
type window struct {
	startMin int
	endMin   int
}

// BuildGrid walks every calendar day in the range and emits the ordered
// sequence of free 30-minute slots that survive the sleep-window, recurring
// block, busy-interval, and daily-budget constraints.
func (b *Builder) BuildGrid(req GridRequest) []Slot {
	windows := b.resolveWindows(req.PreferredWindows)
	budget := int(req.DailyStudyHours * 60)

	sleepStart, sleepEnd, sleepOK := b.resolveSleep(req.SleepWindow)

	var slots []Slot
	day := midnight(req.StartDate)
	last := midnight(req.EndDate)

	for !day.After(last) {
		accumulated := 0
	dayLoop:
		for _, w := range windows {
			for startMin := w.startMin; startMin+SlotMinutes <= w.endMin; startMin += SlotMinutes {
				if accumulated >= budget {
					break dayLoop
				}
				endMin := startMin + SlotMinutes

				if sleepOK && intersectsSleep(startMin, endMin, sleepStart, sleepEnd) {
					continue
				}
				if b.intersectsRecurring(day, startMin, endMin, req.RecurringBlocks) {
					continue
				}

				slotStart := day.Add(time.Duration(startMin) * time.Minute)
				slotEnd := day.Add(time.Duration(endMin) * time.Minute)
				if intersectsBusy(slotStart, slotEnd, req.BusyIntervals) {
					continue
				}

				quality := qualityStandard
				if w.endMin-endMin >= qualityRunwayMinutes {
					quality = qualityHigh
				}
				slots = append(slots, Slot{
					StartsAt:        slotStart,
					EndsAt:          slotEnd,
					DeepWorkCapable: endMin-startMin >= deepWorkMinutes,
					Quality:         quality,
				})
				accumulated += SlotMinutes
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	return slots
}

// resolveWindows parses and filters the caller's preferred windows. When the
// caller supplies none, the default morning/afternoon pair is used; when all
// supplied windows are discarded, a single full-day window stands in. The
// caller's slice is never mutated.
func (b *Builder) resolveWindows(preferred []models.TimeWindow) []window {
	if len(preferred) == 0 {
		return defaultWindows()
	}

	out := make([]window, 0, len(preferred))
	for _, tw := range preferred {
		startMin, endMin, err := tw.Minutes()
		if err != nil {
			b.logger.Warn().Err(err).Str("start", tw.Start).Str("end", tw.End).Msg("skipping malformed preferred window")
			continue
		}
		if endMin <= startMin {
			continue
		}
		out = append(out, window{startMin: startMin, endMin: endMin})
	}

	if len(out) == 0 {
		return []window{{startMin: 9 * 60, endMin: 18 * 60}}
	}
	return out
}

func defaultWindows() []window {
	return []window{
		{startMin: 9 * 60, endMin: 12 * 60},
		{startMin: 14 * 60, endMin: 18 * 60},
	}
}

// DefaultPreferredWindows returns the substitute windows used when a plan
// supplies none, in HH:MM form for callers that rebuild constraints.
func DefaultPreferredWindows() []models.TimeWindow {
	return []models.TimeWindow{
		{Start: "09:00", End: "12:00"},
		{Start: "14:00", End: "18:00"},
	}
}

func (b *Builder) resolveSleep(sleep models.TimeWindow) (startMin, endMin int, ok bool) {
	if sleep.Start == "" || sleep.End == "" {
		return 0, 0, false
	}
	startMin, endMin, err := sleep.Minutes()
	if err != nil {
		b.logger.Warn().Err(err).Str("start", sleep.Start).Str("end", sleep.End).Msg("skipping malformed sleep window")
		return 0, 0, false
	}
	return startMin, endMin, true
}

// intersectsSleep checks a candidate slot against the sleep window. A window
// whose end is numerically at or before its start wraps midnight.
func intersectsSleep(slotStart, slotEnd, sleepStart, sleepEnd int) bool {
	if sleepEnd <= sleepStart {
		return slotStart >= sleepStart || slotEnd <= sleepEnd
	}
	return slotStart >= sleepStart && slotEnd <= sleepEnd
}

func (b *Builder) intersectsRecurring(day time.Time, slotStart, slotEnd int, blocks []models.RecurringBlock) bool {
	dow := int(day.Weekday())
	for _, block := range blocks {
		if block.DayOfWeek != dow {
			continue
		}
		blockStart, err := models.ParseClock(block.Start)
		if err != nil {
			b.logger.Warn().Err(err).Int("day_of_week", block.DayOfWeek).Msg("skipping malformed recurring block")
			continue
		}
		blockEnd, err := models.ParseClock(block.End)
		if err != nil {
			b.logger.Warn().Err(err).Int("day_of_week", block.DayOfWeek).Msg("skipping malformed recurring block")
			continue
		}
		if slotStart < blockEnd && blockStart < slotEnd {
			return true
		}
	}
	return false
}

func intersectsBusy(start, end time.Time, busy []models.Interval) bool {
	for _, iv := range busy {
		if start.Before(iv.End) && iv.Start.Before(end) {
			return true
		}
	}
	return false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Statistics summarizes a grid.
type Statistics struct {
	TotalSlots    int `json:"total_slots"`
	TotalMinutes  int `json:"total_minutes"`
	DaysWithSlots int `json:"days_with_slots"`
	DeepWork      int `json:"deep_work_slots"`
	HighQuality   int `json:"high_quality_slots"`
}

// GetStatistics reduces a grid into per-run totals, grouping by calendar date.
func GetStatistics(slots []Slot) Statistics {
	stats := Statistics{TotalSlots: len(slots)}
	var lastDay time.Time
	for _, slot := range slots {
		stats.TotalMinutes += int(slot.Duration().Minutes())
		if slot.DeepWorkCapable {
			stats.DeepWork++
		}
		if slot.Quality >= qualityHigh {
			stats.HighQuality++
		}
		day := midnight(slot.StartsAt)
		if !day.Equal(lastDay) {
			stats.DaysWithSlots++
			lastDay = day
		}
	}
	return stats
}
