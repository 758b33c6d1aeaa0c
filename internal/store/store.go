package store

import (
	"context"

	"caregraph/internal/patient"
	"caregraph/internal/risk"
)

// Store is the audit persistence boundary: patient graphs, risk reports,
// and simulation outcomes. The engine itself never touches it; callers use
// it to load baselines and to keep an evidence trail of what was computed.
type Store interface {
	Close(ctx context.Context) error
	EnsureSchema(ctx context.Context) error

	UpsertPatient(ctx context.Context, g *patient.ClinicalGraph) error
	GetPatient(ctx context.Context, patientID string) (*patient.ClinicalGraph, error)
	ListPatients(ctx context.Context) ([]PatientSummary, error)

	SaveReport(ctx context.Context, report *risk.Report) error
	ListReports(ctx context.Context, patientID string, limit int) ([]StoredReport, error)

	SaveSimulation(ctx context.Context, rec SimulationRecord) error
	ListSimulations(ctx context.Context, patientID string, limit int) ([]SimulationRecord, error)
}
