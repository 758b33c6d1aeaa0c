package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

func initCmd() *cobra.Command {
	var projectName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new caregraph project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(projectName)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	return cmd
}

const exampleConfig = `project: %s
version: 1

database:
  driver: sqlite
  dsn: sqlite://%s.db

sources:
  - ./patients/

exclude: []

# Uncomment to override the rule-based model defaults.
# model:
#   base_risk: 0.5
#   recent_use_window_days: 30
#   sobriety_threshold_days: 180
`

const examplePatient = `patient_id: example-patient
events:
  - id: evt-housing-loss
    type: housing_change
    description: Lost stable housing after lease ended
    date: 2026-06-10
    impact_score: -0.6
substance_use:
  - id: use-initial
    substance: opioids
    status: active_use
    date: 2026-06-20
    severity: 7
interventions:
  - id: iv-counseling
    type: therapy
    description: Weekly outpatient counseling
    start_date: 2026-07-01
    effectiveness_score: 0.5
`

const exampleScenarios = `scenarios:
  - name: Stable Housing
    mutations:
      - kind: stable_housing
  - name: Start MAT
    mutations:
      - kind: start_mat
        medication: buprenorphine
  - name: Housing and MAT
    mutations:
      - kind: stable_housing
      - kind: start_mat
        medication: buprenorphine
`

func runInit(projectName string) error {
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("%s already exists", configFile)
	}

	if err := os.MkdirAll("patients", 0o750); err != nil {
		return fmt.Errorf("creating patients directory: %w", err)
	}

	configContents := fmt.Sprintf(exampleConfig, projectName, projectName)
	if err := os.WriteFile(configFile, []byte(configContents), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configFile, err)
	}

	patientPath := filepath.Join("patients", "example-patient.yaml")
	if err := os.WriteFile(patientPath, []byte(examplePatient), 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", patientPath, err)
	}

	if err := os.WriteFile("scenarios.yaml", []byte(exampleScenarios), 0o600); err != nil {
		return fmt.Errorf("writing scenarios.yaml: %w", err)
	}

	return nil
}
