/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// AllocationRunsTotal counts allocator invocations by outcome.
	AllocationRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slateplan_allocation_runs_total",
		Help: "Number of allocation runs by outcome.",
	}, []string{"outcome"})

	// SessionsScheduledTotal counts sessions emitted by the allocator.
	SessionsScheduledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slateplan_sessions_scheduled_total",
		Help: "Number of study sessions produced by the allocator.",
	})

	// RelaxationStepsTotal counts constraint relaxations by ladder step.
	RelaxationStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slateplan_relaxation_steps_total",
		Help: "Number of relaxation-ladder steps taken when the grid was empty.",
	}, []string{"step"})

	// GridBuildDuration observes grid construction time in seconds.
	GridBuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slateplan_grid_build_duration_seconds",
		Help:    "Time spent building availability grids.",
		Buckets: prometheus.DefBuckets,
	})

	// ValidationScore observes the compliance score of validated schedules.
	ValidationScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "slateplan_validation_score",
		Help:    "Compliance scores produced by the schedule validator.",
		Buckets: []float64{0, 20, 40, 50, 60, 80, 90, 100},
	})

	// RecoverySessionsTotal counts recovery outcomes per session.
	RecoverySessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slateplan_recovery_sessions_total",
		Help: "Number of missed sessions handled by the recovery pass, by outcome.",
	}, []string{"outcome"})

	// RecoverySweepsTotal counts worker recovery sweeps.
	RecoverySweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slateplan_recovery_sweeps_total",
		Help: "Number of recovery sweeps executed by the worker.",
	})

	// WorkerErrorsTotal counts worker loop failures by stage.
	WorkerErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slateplan_worker_errors_total",
		Help: "Number of worker errors by stage.",
	}, []string{"stage"})

	// DatabaseQueryDuration observes GORM operation latency.
	DatabaseQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "slateplan_database_query_duration_seconds",
		Help:    "Database operation latency by operation and table.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// DatabaseErrorsTotal counts GORM operation failures.
	DatabaseErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slateplan_database_errors_total",
		Help: "Database operation failures by operation and table.",
	}, []string{"operation", "table"})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
