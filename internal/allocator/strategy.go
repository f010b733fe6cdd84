/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package allocator

import (
	"context"

	"github.com/slateplan/slateplan/internal/models"
)

// A plan with at least this many topics outstanding is treated as a large
// backlog and routed to the adaptive strategy.
const adaptiveBacklogThreshold = 12

// ExecuteRequest carries one allocation's inputs. The plan record and busy
// intervals are read once, up front, by the caller.
type ExecuteRequest struct {
	Plan   *models.StudyPlan
	Topics []models.Topic
	Busy   []models.Interval
}

// Strategy is the capability interface for allocation variants.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, req ExecuteRequest) (*ScheduleResult, error)
}

// StrategyFor selects an allocation variant from plan attributes: exam-driven
// plans and large backlogs get the adaptive variant, everything else the
// balanced one.
func StrategyFor(svc *Service, plan *models.StudyPlan, backlog int) Strategy {
	if plan.ExamDate != nil || backlog >= adaptiveBacklogThreshold {
		return &adaptiveStrategy{svc: svc}
	}
	return &balancedStrategy{svc: svc}
}

// balancedStrategy schedules topics exactly as given.
type balancedStrategy struct {
	svc *Service
}

func (s *balancedStrategy) Name() string { return "balanced" }

func (s *balancedStrategy) Execute(ctx context.Context, req ExecuteRequest) (*ScheduleResult, error) {
	return s.svc.Schedule(ctx, req.Topics, req.Plan, req.Busy)
}

// adaptiveStrategy boosts the effective priority of difficult topics before
// scheduling, so harder material lands in the earliest slots when a plan is
// exam-driven or the backlog is large. The boost preserves input order among
// equals (stable sort downstream) and never pushes a weight past 1.
type adaptiveStrategy struct {
	svc *Service
}

func (s *adaptiveStrategy) Name() string { return "adaptive" }

func (s *adaptiveStrategy) Execute(ctx context.Context, req ExecuteRequest) (*ScheduleResult, error) {
	boosted := make([]models.Topic, len(req.Topics))
	copy(boosted, req.Topics)
	for i := range boosted {
		weight := boosted[i].PriorityWeight + 0.2*(boosted[i].DifficultyScore/10)
		if weight > 1 {
			weight = 1
		}
		boosted[i].PriorityWeight = weight
	}
	return s.svc.Schedule(ctx, boosted, req.Plan, req.Busy)
}
