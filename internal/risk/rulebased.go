package risk

import (
	"fmt"
	"time"

	"caregraph/internal/patient"
)

const ruleBasedVersion = "rule-based-v1"

// Factor names produced by the rule-based model.
const (
	FactorRecentUse        = "Recent Substance Use"
	FactorNegativeEvents   = "Recent Negative Life Events"
	FactorActiveTreatment  = "Active Treatment"
	FactorExtendedSobriety = "Extended Sobriety"
)

// RuleWeights parameterizes the rule-based model. Defaults reproduce the
// reference heuristics; the project config may override any of them.
type RuleWeights struct {
	BaseRisk                float64
	RecentUseWindowDays     int
	RecentUseWeight         float64
	NegativeEventWindowDays int
	NegativeEventWeight     float64
	NegativeImpactThreshold float64
	ActiveTreatmentWeight   float64
	SobrietyThresholdDays   int
	SobrietyWeight          float64
}

func DefaultRuleWeights() RuleWeights {
	return RuleWeights{
		BaseRisk:                0.50,
		RecentUseWindowDays:     30,
		RecentUseWeight:         0.25,
		NegativeEventWindowDays: 90,
		NegativeEventWeight:     0.15,
		NegativeImpactThreshold: -0.3,
		ActiveTreatmentWeight:   -0.20,
		SobrietyThresholdDays:   180,
		SobrietyWeight:          -0.15,
	}
}

// RuleBasedModel is the deterministic reference implementation of the risk
// contract: a base risk plus one additive adjustment per observed rule, each
// reified as a Factor whose evidence quotes the triggering entities. The
// final score is hard-clamped to [0, 1]; smoother saturation is left to
// other models.
type RuleBasedModel struct {
	weights RuleWeights
}

func NewRuleBasedModel(weights RuleWeights) *RuleBasedModel {
	return &RuleBasedModel{weights: weights}
}

func (m *RuleBasedModel) Version() string { return ruleBasedVersion }

func (m *RuleBasedModel) Weights() RuleWeights { return m.weights }

func (m *RuleBasedModel) CalculateRisk(g *patient.ClinicalGraph, opts Options) (*Report, error) {
	if g == nil {
		return nil, &InvalidGraphError{Model: ruleBasedVersion, Reason: "graph is nil"}
	}
	asOf := opts.resolveAsOf(g)

	score := m.weights.BaseRisk
	var factors []Factor

	if evidence := m.recentUseEvidence(g, asOf); len(evidence) > 0 {
		score += m.weights.RecentUseWeight
		factors = append(factors, Factor{
			Name:         FactorRecentUse,
			Contribution: m.weights.RecentUseWeight,
			Evidence:     evidence,
		})
	}

	if evidence := m.negativeEventEvidence(g, asOf); len(evidence) > 0 {
		score += m.weights.NegativeEventWeight
		factors = append(factors, Factor{
			Name:         FactorNegativeEvents,
			Contribution: m.weights.NegativeEventWeight,
			Evidence:     evidence,
		})
	}

	if evidence := m.activeTreatmentEvidence(g, asOf); len(evidence) > 0 {
		score += m.weights.ActiveTreatmentWeight
		factors = append(factors, Factor{
			Name:         FactorActiveTreatment,
			Contribution: m.weights.ActiveTreatmentWeight,
			Evidence:     evidence,
		})
	}

	if evidence, ok := m.sobrietyEvidence(g, asOf); ok {
		score += m.weights.SobrietyWeight
		factors = append(factors, Factor{
			Name:         FactorExtendedSobriety,
			Contribution: m.weights.SobrietyWeight,
			Evidence:     evidence,
		})
	}

	if score < 0.0 {
		score = 0.0
	}
	if score > 1.0 {
		score = 1.0
	}
	SortFactors(factors)

	return &Report{
		PatientID:    g.PatientID(),
		Score:        score,
		Factors:      factors,
		GeneratedAt:  asOf,
		ModelVersion: ruleBasedVersion,
	}, nil
}

func (m *RuleBasedModel) CalculateRiskDelta(baseline, modified *patient.ClinicalGraph, opts Options) (*Delta, error) {
	return ScoreDelta(m, baseline, modified, opts)
}

func (m *RuleBasedModel) recentUseEvidence(g *patient.ClinicalGraph, asOf time.Time) []string {
	cutoff := asOf.AddDate(0, 0, -m.weights.RecentUseWindowDays)
	var evidence []string
	for _, r := range g.SubstanceUse() {
		if r.Date.Before(cutoff) {
			continue
		}
		if r.Status != patient.UseActive && r.Status != patient.UseRelapse {
			continue
		}
		evidence = append(evidence, fmt.Sprintf("%s %s on %s (%s)",
			r.Substance, r.Status, r.Date.Format("2006-01-02"), r.ID))
	}
	return evidence
}

func (m *RuleBasedModel) negativeEventEvidence(g *patient.ClinicalGraph, asOf time.Time) []string {
	cutoff := asOf.AddDate(0, 0, -m.weights.NegativeEventWindowDays)
	var evidence []string
	for _, e := range g.Events() {
		if e.Date.Before(cutoff) {
			continue
		}
		negativeType := e.Type == patient.EventTrauma ||
			e.Type == patient.EventJobChange ||
			e.Type == patient.EventLegal
		if !negativeType && e.ImpactScore >= m.weights.NegativeImpactThreshold {
			continue
		}
		if negativeType && e.ImpactScore > 0 {
			// A categorically risky event recorded with positive impact
			// (e.g. a favourable job change) is not destabilizing.
			continue
		}
		evidence = append(evidence, fmt.Sprintf("%q on %s (%s)",
			e.Description, e.Date.Format("2006-01-02"), e.ID))
	}
	return evidence
}

func (m *RuleBasedModel) activeTreatmentEvidence(g *patient.ClinicalGraph, asOf time.Time) []string {
	var evidence []string
	for _, iv := range g.Interventions() {
		if !iv.Active(asOf) {
			continue
		}
		evidence = append(evidence, fmt.Sprintf("%q since %s (%s)",
			iv.Description, iv.StartDate.Format("2006-01-02"), iv.ID))
	}
	return evidence
}

func (m *RuleBasedModel) sobrietyEvidence(g *patient.ClinicalGraph, asOf time.Time) ([]string, bool) {
	records := g.SubstanceUse()
	if len(records) == 0 {
		// No use on record reads as long-standing sobriety.
		return []string{"no substance use on record"}, true
	}

	latest := records[0]
	for _, r := range records[1:] {
		if r.Date.After(latest.Date) {
			latest = r
		}
	}
	if latest.Status != patient.UseRemission && latest.Status != patient.UseRecovery {
		return nil, false
	}

	days := int(asOf.Sub(latest.Date).Hours() / 24)
	if days <= m.weights.SobrietyThresholdDays {
		return nil, false
	}
	return []string{fmt.Sprintf("%s since %s (%s): %d days",
		latest.Status, latest.Date.Format("2006-01-02"), latest.ID, days)}, true
}
