package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"caregraph/internal/config"
	"caregraph/internal/ingest"
	"caregraph/internal/risk"
	"caregraph/internal/sim"
	"caregraph/internal/store"
)

func simulateCmd() *cobra.Command {
	var scenarioPath string
	var stableHousing, employed, unemployed bool
	var mat string
	var save bool
	cmd := &cobra.Command{
		Use:   "simulate <patient-id>",
		Short: "Compare what-if scenarios against a patient's baseline risk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := collectScenarios(scenarioPath, stableHousing, employed, unemployed, mat)
			if err != nil {
				return err
			}
			return runSimulate(args[0], scenarios, save)
		},
	}
	cmd.Flags().StringVar(&scenarioPath, "scenarios", "", "Path to a scenario YAML file")
	cmd.Flags().BoolVar(&stableHousing, "stable-housing", false, "Add a stable housing scenario")
	cmd.Flags().BoolVar(&employed, "employed", false, "Add an employment gained scenario")
	cmd.Flags().BoolVar(&unemployed, "unemployed", false, "Add a job loss scenario")
	cmd.Flags().StringVar(&mat, "mat", "", "Add a medication-assisted treatment scenario with the given medication")
	cmd.Flags().BoolVar(&save, "save", false, "Persist the outcomes to the audit trail")
	return cmd
}

func collectScenarios(scenarioPath string, stableHousing, employed, unemployed bool, mat string) ([]sim.Scenario, error) {
	var scenarios []sim.Scenario
	if scenarioPath != "" {
		parsed, err := ingest.ParseScenarioFile(scenarioPath)
		if err != nil {
			return nil, err
		}
		scenarios = parsed
	}
	if stableHousing {
		scenarios = append(scenarios, sim.Scenario{Name: "Stable Housing", Mutations: []sim.Mutation{sim.StableHousing()}})
	}
	if employed {
		scenarios = append(scenarios, sim.Scenario{Name: "Employment Gained", Mutations: []sim.Mutation{sim.Employment(true)}})
	}
	if unemployed {
		scenarios = append(scenarios, sim.Scenario{Name: "Job Loss", Mutations: []sim.Mutation{sim.Employment(false)}})
	}
	if mat != "" {
		scenarios = append(scenarios, sim.Scenario{Name: "Start MAT", Mutations: []sim.Mutation{sim.MATIntervention(mat)}})
	}
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no scenarios given: use --scenarios or one of the scenario flags")
	}
	return scenarios, nil
}

func runSimulate(patientID string, scenarios []sim.Scenario, save bool) error {
	ctx := context.Background()

	cfg, err := config.LoadProjectConfig(configFile)
	if err != nil {
		return err
	}

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	g, err := db.GetPatient(ctx, patientID)
	if err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("patient %s not found", patientID)
	}

	model := risk.NewRuleBasedModel(cfg.RuleWeights())
	orchestrator := sim.NewOrchestrator(g, model, risk.Options{})
	comparison, err := orchestrator.CompareScenarios(ctx, scenarios)
	if err != nil {
		return err
	}

	printComparison(comparison)

	if save {
		now := time.Now().UTC()
		for _, name := range comparison.Ranked {
			if name == sim.BaselineScenarioName {
				continue
			}
			result := comparison.Results[name]
			rec := store.SimulationRecord{
				PatientID:    patientID,
				Scenario:     name,
				ModelVersion: model.Version(),
				BaselineRisk: result.BaselineRisk,
				ModifiedRisk: result.ModifiedRisk,
				Delta:        result.Delta,
				Explanation:  result.Explanation,
				CreatedAt:    now,
			}
			if err := db.SaveSimulation(ctx, rec); err != nil {
				return fmt.Errorf("saving simulation %s: %w", name, err)
			}
		}
	}
	return nil
}

func printComparison(comparison *sim.Comparison) {
	baseline := comparison.Results[sim.BaselineScenarioName]
	fmt.Fprintf(os.Stdout, "Baseline risk: %.1f%%\n\n", baseline.BaselineRisk*100)
	fmt.Fprintln(os.Stdout, "Scenarios, lowest risk first:")
	for i, name := range comparison.Ranked {
		result := comparison.Results[name]
		fmt.Fprintf(os.Stdout, "  %d. %-24s %.1f%%  (%+.1f%%)\n", i+1, name, result.ModifiedRisk*100, result.Delta*100)
		if name != sim.BaselineScenarioName {
			fmt.Fprintf(os.Stdout, "     %s\n", result.Explanation)
		}
	}
	fmt.Fprintf(os.Stdout, "\nBest scenario: %s\n", comparison.BestScenario)
}
