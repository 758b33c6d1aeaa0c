package validate

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"caregraph/internal/patient"
	"caregraph/internal/risk"
	"caregraph/internal/store"
)

type mockAuditor struct {
	summaries []store.PatientSummary
	patients  map[string]*patient.ClinicalGraph
	getErrs   map[string]error
	reports   map[string][]store.StoredReport
}

func (m *mockAuditor) ListPatients(ctx context.Context) ([]store.PatientSummary, error) {
	return m.summaries, nil
}

func (m *mockAuditor) GetPatient(ctx context.Context, patientID string) (*patient.ClinicalGraph, error) {
	if err := m.getErrs[patientID]; err != nil {
		return nil, err
	}
	return m.patients[patientID], nil
}

func (m *mockAuditor) ListReports(ctx context.Context, patientID string, limit int) ([]store.StoredReport, error) {
	return m.reports[patientID], nil
}

func healthyGraph(t *testing.T, id string) *patient.ClinicalGraph {
	t.Helper()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	g, err := patient.NewAt(id, now, []patient.Event{
		{ID: "evt-1", Type: patient.EventOther, Date: now.AddDate(0, 0, -5)},
	}, nil, nil)
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	return g
}

func issuesByCode(report *Report) map[string]int {
	counts := make(map[string]int)
	for _, issue := range report.Issues {
		counts[issue.Code]++
	}
	return counts
}

func TestRun_CleanStore(t *testing.T) {
	db := &mockAuditor{
		summaries: []store.PatientSummary{{PatientID: "p1", Events: 1}},
		patients:  map[string]*patient.ClinicalGraph{"p1": healthyGraph(t, "p1")},
		reports: map[string][]store.StoredReport{
			"p1": {{ID: 1, PatientID: "p1", Score: 0.5, ModelVersion: "rule-based-v1"}},
		},
	}

	report, err := Run(context.Background(), db)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(report.Issues) != 0 {
		t.Fatalf("expected no issues, got %+v", report.Issues)
	}
}

func TestRun_NilStore(t *testing.T) {
	if _, err := Run(context.Background(), nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRun_BrokenGraph(t *testing.T) {
	db := &mockAuditor{
		summaries: []store.PatientSummary{{PatientID: "p1", Events: 1}},
		getErrs:   map[string]error{"p1": fmt.Errorf("rebuilding graph for p1: invalid")},
	}

	report, err := Run(context.Background(), db)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if issuesByCode(report)["graph_invalid"] != 1 {
		t.Fatalf("expected graph_invalid issue, got %+v", report.Issues)
	}
}

func TestRun_EmptyHistory(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	empty, err := patient.NewAt("p1", now, nil, nil, nil)
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	db := &mockAuditor{
		summaries: []store.PatientSummary{{PatientID: "p1"}},
		patients:  map[string]*patient.ClinicalGraph{"p1": empty},
	}

	report, err := Run(context.Background(), db)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if issuesByCode(report)["empty_clinical_history"] != 1 {
		t.Fatalf("expected empty history warning, got %+v", report.Issues)
	}
	for _, issue := range report.Issues {
		if issue.Code == "empty_clinical_history" && issue.Severity != SeverityWarn {
			t.Fatalf("empty history should be a warning, got %s", issue.Severity)
		}
	}
}

func TestRun_ReportProblems(t *testing.T) {
	db := &mockAuditor{
		summaries: []store.PatientSummary{{PatientID: "p1", Events: 1}},
		patients:  map[string]*patient.ClinicalGraph{"p1": healthyGraph(t, "p1")},
		reports: map[string][]store.StoredReport{
			"p1": {
				{ID: 1, PatientID: "p1", Score: 1.4},
				{ID: 2, PatientID: "ghost", Score: 0.5},
				{ID: 3, PatientID: "p1", Score: 0.5, Factors: []risk.Factor{
					{Name: "Recent Substance Use", Contribution: 0.25},
				}},
			},
		},
	}

	report, err := Run(context.Background(), db)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	counts := issuesByCode(report)
	if counts["score_out_of_range"] != 1 {
		t.Fatalf("expected score issue, got %+v", report.Issues)
	}
	if counts["report_for_unknown_patient"] != 1 {
		t.Fatalf("expected unknown patient issue, got %+v", report.Issues)
	}
	if counts["factor_without_evidence"] != 1 {
		t.Fatalf("expected evidence issue, got %+v", report.Issues)
	}
	// Report IDs are numeric; the messages must render them as such.
	for _, issue := range report.Issues {
		if strings.Contains(issue.Message, "%!") {
			t.Fatalf("malformed message %q", issue.Message)
		}
	}
	found := false
	for _, issue := range report.Issues {
		if issue.Code == "report_for_unknown_patient" {
			found = true
			if !strings.Contains(issue.Message, "report 2") {
				t.Fatalf("message should name report 2: %q", issue.Message)
			}
		}
	}
	if !found {
		t.Fatalf("missing unknown patient issue")
	}
}
