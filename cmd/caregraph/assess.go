package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"caregraph/internal/config"
	"caregraph/internal/risk"
)

func assessCmd() *cobra.Command {
	var save bool
	cmd := &cobra.Command{
		Use:   "assess <patient-id>",
		Short: "Calculate the current relapse risk for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAssess(args[0], save)
		},
	}
	cmd.Flags().BoolVar(&save, "save", false, "Persist the report to the audit trail")
	return cmd
}

func runAssess(patientID string, save bool) error {
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
	report, err := model.CalculateRisk(g, risk.Options{})
	if err != nil {
		return err
	}

	if save {
		if err := db.SaveReport(ctx, report); err != nil {
			return fmt.Errorf("saving report: %w", err)
		}
	}

	printReport(report)
	return nil
}

func printReport(report *risk.Report) {
	fmt.Fprintf(os.Stdout, "Patient:  %s\n", report.PatientID)
	fmt.Fprintf(os.Stdout, "Risk:     %.1f%%\n", report.Score*100)
	fmt.Fprintf(os.Stdout, "Model:    %s\n", report.ModelVersion)
	fmt.Fprintf(os.Stdout, "As of:    %s\n", report.GeneratedAt.Format("2006-01-02"))

	if len(report.Factors) == 0 {
		return
	}
	fmt.Fprintln(os.Stdout, "\nContributing factors:")
	for _, factor := range report.Factors {
		fmt.Fprintf(os.Stdout, "  %+.2f  %s\n", factor.Contribution, factor.Name)
		for _, evidence := range factor.Evidence {
			fmt.Fprintf(os.Stdout, "         - %s\n", evidence)
		}
	}
}
