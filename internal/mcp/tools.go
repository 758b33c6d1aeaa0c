package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"caregraph/internal/ingest"
	"caregraph/internal/patient"
	"caregraph/internal/risk"
	"caregraph/internal/sim"
	"caregraph/internal/store"
)

type AssessRiskInput struct {
	PatientID string `json:"patient_id" jsonschema:"patient identifier"`
	Save      bool   `json:"save,omitempty" jsonschema:"persist the report to the audit trail"`
}

type SimulateScenariosInput struct {
	PatientID string                `json:"patient_id" jsonschema:"patient identifier"`
	Scenarios []ingest.ScenarioSpec `json:"scenarios" jsonschema:"named what-if scenarios to compare"`
	Save      bool                  `json:"save,omitempty" jsonschema:"persist the outcomes to the audit trail"`
}

type ListPatientsInput struct{}

type GetPatientInput struct {
	PatientID string `json:"patient_id" jsonschema:"patient identifier"`
}

type GetModelInput struct{}

type FactorOutput struct {
	Name         string   `json:"name"`
	Contribution float64  `json:"contribution"`
	Evidence     []string `json:"evidence"`
}

type ReportOutput struct {
	PatientID    string         `json:"patient_id"`
	Score        float64        `json:"score"`
	Factors      []FactorOutput `json:"factors"`
	GeneratedAt  string         `json:"generated_at"`
	ModelVersion string         `json:"model_version"`
}

type ScenarioResultOutput struct {
	Name         string  `json:"name"`
	ModifiedRisk float64 `json:"modified_risk"`
	Delta        float64 `json:"delta"`
	Explanation  string  `json:"explanation"`
}

type SimulateScenariosOutput struct {
	PatientID    string                 `json:"patient_id"`
	BaselineRisk float64                `json:"baseline_risk"`
	BestScenario string                 `json:"best_scenario"`
	Ranked       []ScenarioResultOutput `json:"ranked"`
}

type PatientSummaryOutput struct {
	PatientID     string `json:"patient_id"`
	Events        int    `json:"events"`
	SubstanceUse  int    `json:"substance_use_records"`
	Interventions int    `json:"interventions"`
	UpdatedAt     string `json:"updated_at"`
}

type ListPatientsOutput struct {
	Patients []PatientSummaryOutput `json:"patients"`
}

type EventOutput struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	ImpactScore float64 `json:"impact_score"`
}

type SubstanceUseOutput struct {
	ID        string `json:"id"`
	Substance string `json:"substance"`
	Status    string `json:"status"`
	Date      string `json:"date"`
	Severity  int    `json:"severity,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type InterventionOutput struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date,omitempty"`
	Effectiveness float64 `json:"effectiveness_score"`
}

type PatientOutput struct {
	PatientID     string               `json:"patient_id"`
	CreatedAt     string               `json:"created_at"`
	Events        []EventOutput        `json:"events"`
	SubstanceUse  []SubstanceUseOutput `json:"substance_use"`
	Interventions []InterventionOutput `json:"interventions"`
	Metadata      map[string]string    `json:"metadata,omitempty"`
}

type ModelOutput struct {
	Version string              `json:"version"`
	Weights *ModelWeightsOutput `json:"weights,omitempty"`
}

type ModelWeightsOutput struct {
	BaseRisk                float64 `json:"base_risk"`
	RecentUseWindowDays     int     `json:"recent_use_window_days"`
	RecentUseWeight         float64 `json:"recent_use_weight"`
	NegativeEventWindowDays int     `json:"negative_event_window_days"`
	NegativeEventWeight     float64 `json:"negative_event_weight"`
	NegativeImpactThreshold float64 `json:"negative_impact_threshold"`
	ActiveTreatmentWeight   float64 `json:"active_treatment_weight"`
	SobrietyThresholdDays   int     `json:"sobriety_threshold_days"`
	SobrietyWeight          float64 `json:"sobriety_weight"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "assess_risk",
		Description: "Calculate the current relapse risk score for a patient",
	}, s.handleAssessRisk)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "simulate_scenarios",
		Description: "Compare hypothetical intervention scenarios against the patient's baseline risk",
	}, s.handleSimulateScenarios)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_patients",
		Description: "List stored patients with record counts",
	}, s.handleListPatients)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_patient",
		Description: "Retrieve a patient's full clinical history",
	}, s.handleGetPatient)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_model",
		Description: "Return the active risk model version and its parameters",
	}, s.handleGetModel)
}

func (s *Server) handleAssessRisk(ctx context.Context, req *sdk.CallToolRequest, input AssessRiskInput) (*sdk.CallToolResult, ReportOutput, error) {
	if input.PatientID == "" {
		return nil, ReportOutput{}, fmt.Errorf("patient_id is required")
	}
	g, err := s.loadPatient(ctx, input.PatientID)
	if err != nil {
		return nil, ReportOutput{}, err
	}

	report, err := s.model.CalculateRisk(g, risk.Options{})
	if err != nil {
		return nil, ReportOutput{}, err
	}
	if input.Save {
		if err := s.db.SaveReport(ctx, report); err != nil {
			return nil, ReportOutput{}, fmt.Errorf("saving report: %w", err)
		}
	}
	return nil, reportOutputFromRisk(report), nil
}

func (s *Server) handleSimulateScenarios(ctx context.Context, req *sdk.CallToolRequest, input SimulateScenariosInput) (*sdk.CallToolResult, SimulateScenariosOutput, error) {
	if input.PatientID == "" {
		return nil, SimulateScenariosOutput{}, fmt.Errorf("patient_id is required")
	}
	if len(input.Scenarios) == 0 {
		return nil, SimulateScenariosOutput{}, fmt.Errorf("at least one scenario is required")
	}
	g, err := s.loadPatient(ctx, input.PatientID)
	if err != nil {
		return nil, SimulateScenariosOutput{}, err
	}
	scenarios, err := ingest.Scenarios(input.Scenarios)
	if err != nil {
		return nil, SimulateScenariosOutput{}, err
	}

	orchestrator := sim.NewOrchestrator(g, s.model, risk.Options{})
	comparison, err := orchestrator.CompareScenarios(ctx, scenarios)
	if err != nil {
		return nil, SimulateScenariosOutput{}, err
	}

	baseline := comparison.Results[sim.BaselineScenarioName]
	output := SimulateScenariosOutput{
		PatientID:    input.PatientID,
		BaselineRisk: baseline.BaselineRisk,
		BestScenario: comparison.BestScenario,
		Ranked:       make([]ScenarioResultOutput, 0, len(comparison.Ranked)),
	}
	for _, name := range comparison.Ranked {
		result := comparison.Results[name]
		output.Ranked = append(output.Ranked, ScenarioResultOutput{
			Name:         name,
			ModifiedRisk: result.ModifiedRisk,
			Delta:        result.Delta,
			Explanation:  result.Explanation,
		})
	}

	if input.Save {
		now := time.Now().UTC()
		for _, name := range comparison.Ranked {
			if name == sim.BaselineScenarioName {
				continue
			}
			result := comparison.Results[name]
			rec := store.SimulationRecord{
				PatientID:    input.PatientID,
				Scenario:     name,
				ModelVersion: s.model.Version(),
				BaselineRisk: result.BaselineRisk,
				ModifiedRisk: result.ModifiedRisk,
				Delta:        result.Delta,
				Explanation:  result.Explanation,
				CreatedAt:    now,
			}
			if err := s.db.SaveSimulation(ctx, rec); err != nil {
				return nil, SimulateScenariosOutput{}, fmt.Errorf("saving simulation %s: %w", name, err)
			}
		}
	}
	return nil, output, nil
}

func (s *Server) handleListPatients(ctx context.Context, req *sdk.CallToolRequest, input ListPatientsInput) (*sdk.CallToolResult, ListPatientsOutput, error) {
	summaries, err := s.db.ListPatients(ctx)
	if err != nil {
		return nil, ListPatientsOutput{}, err
	}

	output := make([]PatientSummaryOutput, 0, len(summaries))
	for _, summary := range summaries {
		output = append(output, PatientSummaryOutput{
			PatientID:     summary.PatientID,
			Events:        summary.Events,
			SubstanceUse:  summary.SubstanceUse,
			Interventions: summary.Interventions,
			UpdatedAt:     summary.UpdatedAt.Format(time.RFC3339),
		})
	}
	return nil, ListPatientsOutput{Patients: output}, nil
}

func (s *Server) handleGetPatient(ctx context.Context, req *sdk.CallToolRequest, input GetPatientInput) (*sdk.CallToolResult, PatientOutput, error) {
	if input.PatientID == "" {
		return nil, PatientOutput{}, fmt.Errorf("patient_id is required")
	}
	g, err := s.loadPatient(ctx, input.PatientID)
	if err != nil {
		return nil, PatientOutput{}, err
	}
	return nil, patientOutputFromGraph(g), nil
}

func (s *Server) handleGetModel(ctx context.Context, req *sdk.CallToolRequest, input GetModelInput) (*sdk.CallToolResult, ModelOutput, error) {
	output := ModelOutput{Version: s.model.Version()}
	if rb, ok := s.model.(*risk.RuleBasedModel); ok {
		w := rb.Weights()
		output.Weights = &ModelWeightsOutput{
			BaseRisk:                w.BaseRisk,
			RecentUseWindowDays:     w.RecentUseWindowDays,
			RecentUseWeight:         w.RecentUseWeight,
			NegativeEventWindowDays: w.NegativeEventWindowDays,
			NegativeEventWeight:     w.NegativeEventWeight,
			NegativeImpactThreshold: w.NegativeImpactThreshold,
			ActiveTreatmentWeight:   w.ActiveTreatmentWeight,
			SobrietyThresholdDays:   w.SobrietyThresholdDays,
			SobrietyWeight:          w.SobrietyWeight,
		}
	}
	return nil, output, nil
}

func (s *Server) loadPatient(ctx context.Context, patientID string) (*patient.ClinicalGraph, error) {
	g, err := s.db.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("patient %s not found", patientID)
	}
	return g, nil
}

func reportOutputFromRisk(report *risk.Report) ReportOutput {
	factors := make([]FactorOutput, 0, len(report.Factors))
	for _, f := range report.Factors {
		factors = append(factors, FactorOutput{
			Name:         f.Name,
			Contribution: f.Contribution,
			Evidence:     append([]string{}, f.Evidence...),
		})
	}
	return ReportOutput{
		PatientID:    report.PatientID,
		Score:        report.Score,
		Factors:      factors,
		GeneratedAt:  report.GeneratedAt.Format(time.RFC3339),
		ModelVersion: report.ModelVersion,
	}
}

func patientOutputFromGraph(g *patient.ClinicalGraph) PatientOutput {
	out := PatientOutput{
		PatientID: g.PatientID(),
		CreatedAt: g.CreatedAt().Format(time.RFC3339),
		Metadata:  g.Metadata(),
	}
	for _, e := range g.Events() {
		out.Events = append(out.Events, EventOutput{
			ID:          e.ID,
			Type:        string(e.Type),
			Description: e.Description,
			Date:        e.Date.Format(time.RFC3339),
			ImpactScore: e.ImpactScore,
		})
	}
	for _, r := range g.SubstanceUse() {
		out.SubstanceUse = append(out.SubstanceUse, SubstanceUseOutput{
			ID:        r.ID,
			Substance: string(r.Substance),
			Status:    string(r.Status),
			Date:      r.Date.Format(time.RFC3339),
			Severity:  r.Severity,
			Notes:     r.Notes,
		})
	}
	for _, iv := range g.Interventions() {
		ivOut := InterventionOutput{
			ID:            iv.ID,
			Type:          string(iv.Type),
			Description:   iv.Description,
			StartDate:     iv.StartDate.Format(time.RFC3339),
			Effectiveness: iv.Effectiveness,
		}
		if iv.EndDate != nil {
			ivOut.EndDate = iv.EndDate.Format(time.RFC3339)
		}
		out.Interventions = append(out.Interventions, ivOut)
	}
	return out
}
