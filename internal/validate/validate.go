package validate

import (
	"context"
	"fmt"

	"caregraph/internal/patient"
	"caregraph/internal/store"
)

type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warning"
)

const (
	codeGraphInvalid     = "graph_invalid"
	codeScoreOutOfRange  = "score_out_of_range"
	codeFactorNoEvidence = "factor_without_evidence"
	codeUnknownPatient   = "report_for_unknown_patient"
	codeEmptyHistory     = "empty_clinical_history"
)

type Issue struct {
	Severity  Severity
	Code      string
	Message   string
	PatientID string
}

type Report struct {
	Issues []Issue
}

// Auditor is the read-only slice of the store the audit needs.
type Auditor interface {
	ListPatients(ctx context.Context) ([]store.PatientSummary, error)
	GetPatient(ctx context.Context, patientID string) (*patient.ClinicalGraph, error)
	ListReports(ctx context.Context, patientID string, limit int) ([]store.StoredReport, error)
}

// Run audits the stored patient graphs and risk reports for integrity
// problems that the write paths cannot catch on their own, such as rows
// edited out from under the engine or reports written by older model
// versions with different bounds.
func Run(ctx context.Context, db Auditor) (*Report, error) {
	if db == nil {
		return nil, fmt.Errorf("store is required")
	}

	issues := make([]Issue, 0)

	summaries, err := db.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	known := make(map[string]bool, len(summaries))
	for _, summary := range summaries {
		known[summary.PatientID] = true
	}

	for _, summary := range summaries {
		g, err := db.GetPatient(ctx, summary.PatientID)
		if err != nil {
			issues = append(issues, Issue{
				Severity:  SeverityError,
				Code:      codeGraphInvalid,
				Message:   fmt.Sprintf("stored patient cannot be reconstructed: %v", err),
				PatientID: summary.PatientID,
			})
			continue
		}
		if g == nil {
			issues = append(issues, Issue{
				Severity:  SeverityError,
				Code:      codeGraphInvalid,
				Message:   "patient listed but not retrievable",
				PatientID: summary.PatientID,
			})
			continue
		}
		if summary.Events == 0 && summary.SubstanceUse == 0 && summary.Interventions == 0 {
			issues = append(issues, Issue{
				Severity:  SeverityWarn,
				Code:      codeEmptyHistory,
				Message:   "patient has no events, substance use records, or interventions",
				PatientID: summary.PatientID,
			})
		}

		issues = append(issues, auditReports(ctx, db, summary.PatientID, known)...)
	}

	return &Report{Issues: issues}, nil
}

func auditReports(ctx context.Context, db Auditor, patientID string, known map[string]bool) []Issue {
	reports, err := db.ListReports(ctx, patientID, 0)
	if err != nil {
		return []Issue{{
			Severity:  SeverityError,
			Code:      codeGraphInvalid,
			Message:   fmt.Sprintf("list reports: %v", err),
			PatientID: patientID,
		}}
	}

	var issues []Issue
	for _, report := range reports {
		if !known[report.PatientID] {
			issues = append(issues, Issue{
				Severity:  SeverityError,
				Code:      codeUnknownPatient,
				Message:   fmt.Sprintf("report %d references unknown patient %s", report.ID, report.PatientID),
				PatientID: report.PatientID,
			})
		}
		if report.Score < 0 || report.Score > 1 {
			issues = append(issues, Issue{
				Severity:  SeverityError,
				Code:      codeScoreOutOfRange,
				Message:   fmt.Sprintf("report %d has score %.4f outside [0, 1]", report.ID, report.Score),
				PatientID: patientID,
			})
		}
		for _, factor := range report.Factors {
			if factor.Contribution != 0 && len(factor.Evidence) == 0 {
				issues = append(issues, Issue{
					Severity:  SeverityWarn,
					Code:      codeFactorNoEvidence,
					Message:   fmt.Sprintf("report %d factor %q contributes %.2f with no evidence", report.ID, factor.Name, factor.Contribution),
					PatientID: patientID,
				})
			}
		}
	}
	return issues
}
