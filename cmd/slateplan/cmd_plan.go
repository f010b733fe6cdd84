/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/slateplan/slateplan/internal/allocator"
	"github.com/slateplan/slateplan/internal/availability"
	"github.com/slateplan/slateplan/internal/db"
	"github.com/slateplan/slateplan/internal/events"
	"github.com/slateplan/slateplan/internal/models"
	"github.com/slateplan/slateplan/internal/scheduling"
)

// planDocument is the YAML input for plan and grid commands.
type planDocument struct {
	Plan   models.StudyPlan  `yaml:"plan"`
	Topics []models.Topic    `yaml:"topics"`
	Busy   []models.Interval `yaml:"busy"`
}

var (
	planInput   string
	planPersist bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Allocate topics onto the calendar",
	Long:  "Read a plan document, run the allocator, and print the resulting sessions and warnings.",
	RunE:  runPlan,
}

var gridInput string

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Summarize the availability grid for a plan",
	RunE:  runGrid,
}

func init() {
	planCmd.Flags().StringVar(&planInput, "input", "", "plan document (YAML)")
	planCmd.Flags().BoolVar(&planPersist, "persist", false, "persist plan and sessions to the database")
	_ = planCmd.MarkFlagRequired("input")

	gridCmd.Flags().StringVar(&gridInput, "input", "", "plan document (YAML)")
	_ = gridCmd.MarkFlagRequired("input")
}

func readPlanDocument(path string) (*planDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc planDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if doc.Plan.ID == "" {
		doc.Plan.ID = uuid.NewString()
	}
	if doc.Plan.UserID == "" {
		doc.Plan.UserID = uuid.NewString()
	}
	return &doc, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	doc, err := readPlanDocument(planInput)
	if err != nil {
		return err
	}

	grid := availability.NewBuilder(logger)
	validator := scheduling.NewValidator(logger)
	svc := allocator.New(grid, validator, logger)

	bus := events.NewBus()
	svc.SetBus(bus)
	go logPlanEvents(bus)

	strategy := allocator.StrategyFor(svc, &doc.Plan, len(doc.Topics))
	logger.Debug().Str("strategy", strategy.Name()).Msg("strategy selected")

	result, err := strategy.Execute(cmd.Context(), allocator.ExecuteRequest{
		Plan:   &doc.Plan,
		Topics: doc.Topics,
		Busy:   doc.Busy,
	})
	if err != nil {
		return err
	}

	printSessions(result.Sessions)
	printWarnings(result.Warnings)

	if planPersist {
		database, st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = db.Close(database) }()

		if err := st.SavePlan(cmd.Context(), &doc.Plan); err != nil {
			return fmt.Errorf("persist plan: %w", err)
		}
		if err := st.SaveSessions(cmd.Context(), result.Sessions); err != nil {
			return fmt.Errorf("persist sessions: %w", err)
		}
		logger.Info().Str("plan", doc.Plan.ID).Int("sessions", len(result.Sessions)).Msg("plan persisted")
	}

	return nil
}

func runGrid(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	doc, err := readPlanDocument(gridInput)
	if err != nil {
		return err
	}
	if err := doc.Plan.Validate(); err != nil {
		return err
	}

	grid := availability.NewBuilder(logger)
	slots := grid.BuildGrid(availability.FromPlan(&doc.Plan, doc.Busy))
	stats := availability.GetStatistics(slots)

	fmt.Printf("slots: %d\nminutes: %d\ndays with slots: %d\ndeep-work capable: %d\nhigh quality: %d\n",
		stats.TotalSlots, stats.TotalMinutes, stats.DaysWithSlots, stats.DeepWork, stats.HighQuality)
	return nil
}

func printSessions(sessions []models.StudySession) {
	if len(sessions) == 0 {
		fmt.Println("no sessions scheduled")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "START\tEND\tTOPIC\tMINUTES\tDIFFICULTY\tPRIORITY")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			s.StartsAt.Format(time.RFC3339),
			s.EndsAt.Format(time.RFC3339),
			s.Topic, s.DurationMinutes, s.Difficulty, s.Priority)
	}
	_ = w.Flush()
}

// logPlanEvents mirrors allocation lifecycle events into the log.
func logPlanEvents(bus *events.Bus) {
	validated := bus.Subscribe(events.EventScheduleValidated)
	scheduled := bus.Subscribe(events.EventPlanScheduled)
	for {
		select {
		case payload, ok := <-validated:
			if !ok {
				return
			}
			logger.Debug().Interface("event", payload).Msg("schedule validated")
		case payload, ok := <-scheduled:
			if !ok {
				return
			}
			logger.Info().Interface("event", payload).Msg("plan scheduled")
		}
	}
}

func printWarnings(warnings []string) {
	for _, warning := range warnings {
		fmt.Printf("warning: %s\n", warning)
	}
}
