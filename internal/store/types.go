package store

import (
	"time"

	"caregraph/internal/risk"
)

type PatientSummary struct {
	PatientID     string
	Events        int
	SubstanceUse  int
	Interventions int
	UpdatedAt     time.Time
}

type StoredReport struct {
	ID           int64
	PatientID    string
	Score        float64
	ModelVersion string
	GeneratedAt  time.Time
	Factors      []risk.Factor
}

// SimulationRecord is the audit row for one simulated scenario.
type SimulationRecord struct {
	ID           int64
	PatientID    string
	Scenario     string
	ModelVersion string
	BaselineRisk float64
	ModifiedRisk float64
	Delta        float64
	Explanation  string
	CreatedAt    time.Time
}
