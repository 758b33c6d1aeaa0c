package risk

import (
	"fmt"
	"time"

	"caregraph/internal/patient"
)

// Options configures a scoring call. AsOf anchors every recency window; the
// zero value means the graph's own construction time, which keeps scoring a
// pure function of its arguments.
type Options struct {
	AsOf time.Time
}

func (o Options) resolveAsOf(g *patient.ClinicalGraph) time.Time {
	if !o.AsOf.IsZero() {
		return o.AsOf.UTC()
	}
	return g.CreatedAt()
}

// Model is the scoring capability every risk model must provide. Equal
// inputs must yield equal reports; implementations hold no hidden state.
type Model interface {
	CalculateRisk(g *patient.ClinicalGraph, opts Options) (*Report, error)
	Version() string
}

// SimulationModel extends Model with delta computation between a baseline
// and a hypothetical graph. Implementations may compute deltas more
// efficiently than two full scoring passes, but must still return two
// independently explainable reports.
type SimulationModel interface {
	Model
	CalculateRiskDelta(baseline, modified *patient.ClinicalGraph, opts Options) (*Delta, error)
}

// Delta is the outcome of comparing two scoring passes.
type Delta struct {
	Baseline *Report
	Modified *Report
	Delta    float64
}

// ScoreDelta derives a Delta from the scoring capability alone: score both
// graphs independently and subtract. Any Model gets simulation support by
// delegating to it.
func ScoreDelta(m Model, baseline, modified *patient.ClinicalGraph, opts Options) (*Delta, error) {
	baseReport, err := m.CalculateRisk(baseline, opts)
	if err != nil {
		return nil, fmt.Errorf("scoring baseline: %w", err)
	}
	modReport, err := m.CalculateRisk(modified, opts)
	if err != nil {
		return nil, fmt.Errorf("scoring modified graph: %w", err)
	}
	return &Delta{
		Baseline: baseReport,
		Modified: modReport,
		Delta:    modReport.Score - baseReport.Score,
	}, nil
}
