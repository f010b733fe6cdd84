/*
Copyright (C) 2026 Slateplan Authors

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/slateplan/slateplan/internal/models"
	"github.com/slateplan/slateplan/internal/scheduling"
)

// scheduleDocument is the YAML input for the validate command.
type scheduleDocument struct {
	Sessions        []sessionEntry `yaml:"sessions"`
	DailyHoursLimit float64        `yaml:"daily_hours_limit"`
	ExamDate        *time.Time     `yaml:"exam_date"`
}

type sessionEntry struct {
	Title string    `yaml:"title"`
	Topic string    `yaml:"topic"`
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

var validateInput string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Score a schedule for load compliance and conflicts",
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateInput, "input", "", "schedule document (YAML)")
	_ = validateCmd.MarkFlagRequired("input")
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	raw, err := os.ReadFile(validateInput)
	if err != nil {
		return fmt.Errorf("read %s: %w", validateInput, err)
	}
	var doc scheduleDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", validateInput, err)
	}
	if doc.DailyHoursLimit <= 0 {
		return fmt.Errorf("daily_hours_limit must be positive")
	}

	sessions := make([]models.StudySession, 0, len(doc.Sessions))
	for _, entry := range doc.Sessions {
		sessions = append(sessions, models.StudySession{
			Title:           entry.Title,
			Topic:           entry.Topic,
			StartsAt:        entry.Start,
			EndsAt:          entry.End,
			DurationMinutes: int(entry.End.Sub(entry.Start).Minutes()),
		})
	}

	validator := scheduling.NewValidator(logger)
	report := validator.Validate(scheduling.ValidateRequest{
		Schedule:        sessions,
		DailyHoursLimit: doc.DailyHoursLimit,
		ExamDate:        doc.ExamDate,
	})

	fmt.Printf("valid: %t\nscore: %d\n", report.Valid, report.Score)
	for _, violation := range report.Violations {
		fmt.Printf("violation: %s\n", violation)
	}
	for _, warning := range report.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}
	return nil
}
