package risk

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"caregraph/internal/patient"
)

var asOf = time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

func mustGraph(t *testing.T, events []patient.Event, uses []patient.SubstanceUseRecord, interventions []patient.Intervention) *patient.ClinicalGraph {
	t.Helper()
	g, err := patient.NewAt("patient-1", asOf, events, uses, interventions)
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	return g
}

func score(t *testing.T, g *patient.ClinicalGraph) *Report {
	t.Helper()
	model := NewRuleBasedModel(DefaultRuleWeights())
	report, err := model.CalculateRisk(g, Options{AsOf: asOf})
	if err != nil {
		t.Fatalf("CalculateRisk: %v", err)
	}
	return report
}

func TestCalculateRisk_NilGraph(t *testing.T) {
	model := NewRuleBasedModel(DefaultRuleWeights())
	_, err := model.CalculateRisk(nil, Options{})
	var gerr *InvalidGraphError
	if !errors.As(err, &gerr) {
		t.Fatalf("expected InvalidGraphError, got %v", err)
	}
}

func TestCalculateRisk_BaseOnly(t *testing.T) {
	g := mustGraph(t, nil, []patient.SubstanceUseRecord{
		{ID: "use-1", Substance: patient.SubstanceAlcohol, Status: patient.UseActive, Date: asOf.AddDate(0, -6, 0)},
	}, nil)

	report := score(t, g)
	if report.Score != 0.50 {
		t.Fatalf("expected base risk 0.50, got %v", report.Score)
	}
	if len(report.Factors) != 0 {
		t.Fatalf("expected no factors, got %+v", report.Factors)
	}
}

func TestCalculateRisk_RecentUse(t *testing.T) {
	g := mustGraph(t, nil, []patient.SubstanceUseRecord{
		{ID: "use-1", Substance: patient.SubstanceOpioids, Status: patient.UseRelapse, Date: asOf.AddDate(0, 0, -10), Severity: 7},
	}, nil)

	report := score(t, g)
	if report.Score != 0.75 {
		t.Fatalf("expected 0.75, got %v", report.Score)
	}
	factor, ok := report.FactorByName(FactorRecentUse)
	if !ok {
		t.Fatalf("missing recent use factor: %+v", report.Factors)
	}
	if factor.Contribution != 0.25 {
		t.Fatalf("expected contribution 0.25, got %v", factor.Contribution)
	}
	if len(factor.Evidence) != 1 {
		t.Fatalf("expected one evidence line, got %v", factor.Evidence)
	}
}

func TestCalculateRisk_NegativeEvents(t *testing.T) {
	t.Run("categorical negative event", func(t *testing.T) {
		g := mustGraph(t, []patient.Event{
			{ID: "evt-1", Type: patient.EventTrauma, Description: "Assault", Date: asOf.AddDate(0, 0, -30), ImpactScore: -0.8},
		}, nil, nil)

		report := score(t, g)
		if _, ok := report.FactorByName(FactorNegativeEvents); !ok {
			t.Fatalf("expected negative events factor")
		}
	})

	t.Run("low impact other event", func(t *testing.T) {
		g := mustGraph(t, []patient.Event{
			{ID: "evt-1", Type: patient.EventOther, Description: "Setback", Date: asOf.AddDate(0, 0, -30), ImpactScore: -0.5},
		}, nil, nil)

		report := score(t, g)
		if _, ok := report.FactorByName(FactorNegativeEvents); !ok {
			t.Fatalf("impact below threshold should trigger the factor")
		}
	})

	t.Run("positive job change does not count", func(t *testing.T) {
		g := mustGraph(t, []patient.Event{
			{ID: "evt-1", Type: patient.EventJobChange, Description: "Promotion", Date: asOf.AddDate(0, 0, -30), ImpactScore: 0.6},
		}, nil, nil)

		report := score(t, g)
		if _, ok := report.FactorByName(FactorNegativeEvents); ok {
			t.Fatalf("favourable job change should not raise risk")
		}
	})

	t.Run("outside window", func(t *testing.T) {
		g := mustGraph(t, []patient.Event{
			{ID: "evt-1", Type: patient.EventTrauma, Description: "Old trauma", Date: asOf.AddDate(0, 0, -120), ImpactScore: -0.8},
		}, nil, nil)

		report := score(t, g)
		if _, ok := report.FactorByName(FactorNegativeEvents); ok {
			t.Fatalf("event outside 90 day window should not count")
		}
	})
}

func TestCalculateRisk_ActiveTreatment(t *testing.T) {
	g := mustGraph(t, nil, []patient.SubstanceUseRecord{
		{ID: "use-1", Substance: patient.SubstanceAlcohol, Status: patient.UseActive, Date: asOf.AddDate(0, -6, 0)},
	}, []patient.Intervention{
		{ID: "iv-1", Type: patient.InterventionTherapy, Description: "Therapy", StartDate: asOf.AddDate(0, -2, 0), Effectiveness: 0.5},
	})

	report := score(t, g)
	if report.Score != 0.30 {
		t.Fatalf("expected 0.30, got %v", report.Score)
	}
	factor, ok := report.FactorByName(FactorActiveTreatment)
	if !ok || factor.Contribution != -0.20 {
		t.Fatalf("expected active treatment factor at -0.20, got %+v", factor)
	}
}

func TestCalculateRisk_EndedTreatmentIgnored(t *testing.T) {
	end := asOf.AddDate(0, -1, 0)
	g := mustGraph(t, nil, nil, []patient.Intervention{
		{ID: "iv-1", Type: patient.InterventionTherapy, StartDate: asOf.AddDate(0, -3, 0), EndDate: &end, Effectiveness: 0.5},
	})

	report := score(t, g)
	if _, ok := report.FactorByName(FactorActiveTreatment); ok {
		t.Fatalf("ended treatment should not count")
	}
}

func TestCalculateRisk_Sobriety(t *testing.T) {
	t.Run("long remission", func(t *testing.T) {
		g := mustGraph(t, nil, []patient.SubstanceUseRecord{
			{ID: "use-1", Substance: patient.SubstanceOpioids, Status: patient.UseRemission, Date: asOf.AddDate(0, 0, -200)},
		}, nil)

		report := score(t, g)
		factor, ok := report.FactorByName(FactorExtendedSobriety)
		if !ok || factor.Contribution != -0.15 {
			t.Fatalf("expected sobriety factor at -0.15, got %+v", factor)
		}
	})

	t.Run("no records reads as sobriety", func(t *testing.T) {
		g := mustGraph(t, nil, nil, nil)
		report := score(t, g)
		if _, ok := report.FactorByName(FactorExtendedSobriety); !ok {
			t.Fatalf("empty history should read as sobriety")
		}
		if report.Score != 0.35 {
			t.Fatalf("expected 0.35, got %v", report.Score)
		}
	})

	t.Run("remission too short", func(t *testing.T) {
		g := mustGraph(t, nil, []patient.SubstanceUseRecord{
			{ID: "use-1", Substance: patient.SubstanceOpioids, Status: patient.UseRemission, Date: asOf.AddDate(0, 0, -100)},
		}, nil)
		report := score(t, g)
		if _, ok := report.FactorByName(FactorExtendedSobriety); ok {
			t.Fatalf("100 days should not qualify")
		}
	})

	t.Run("latest record governs", func(t *testing.T) {
		g := mustGraph(t, nil, []patient.SubstanceUseRecord{
			{ID: "use-1", Substance: patient.SubstanceOpioids, Status: patient.UseRemission, Date: asOf.AddDate(0, 0, -300)},
			{ID: "use-2", Substance: patient.SubstanceOpioids, Status: patient.UseRelapse, Date: asOf.AddDate(0, 0, -200)},
		}, nil)
		report := score(t, g)
		if _, ok := report.FactorByName(FactorExtendedSobriety); ok {
			t.Fatalf("a later relapse should break the sobriety streak")
		}
	})
}

func TestCalculateRisk_Deterministic(t *testing.T) {
	g := mustGraph(t,
		[]patient.Event{{ID: "evt-1", Type: patient.EventLegal, Description: "Arrest", Date: asOf.AddDate(0, 0, -15), ImpactScore: -0.7}},
		[]patient.SubstanceUseRecord{{ID: "use-1", Substance: patient.SubstanceStimulants, Status: patient.UseActive, Date: asOf.AddDate(0, 0, -5), Severity: 8}},
		[]patient.Intervention{{ID: "iv-1", Type: patient.InterventionSupportGroup, Description: "NA meetings", StartDate: asOf.AddDate(0, -1, 0), Effectiveness: 0.4}},
	)

	first := score(t, g)
	for i := 0; i < 10; i++ {
		again := score(t, g)
		if again.Score != first.Score {
			t.Fatalf("score changed between runs: %v vs %v", again.Score, first.Score)
		}
		if len(again.Factors) != len(first.Factors) {
			t.Fatalf("factor count changed between runs")
		}
		for j := range again.Factors {
			if again.Factors[j].Name != first.Factors[j].Name {
				t.Fatalf("factor order changed between runs")
			}
		}
		if !again.GeneratedAt.Equal(first.GeneratedAt) {
			t.Fatalf("generated at changed between runs")
		}
	}
}

func TestCalculateRisk_FactorsSortedByMagnitude(t *testing.T) {
	g := mustGraph(t,
		[]patient.Event{{ID: "evt-1", Type: patient.EventTrauma, Description: "Trauma", Date: asOf.AddDate(0, 0, -10), ImpactScore: -0.9}},
		[]patient.SubstanceUseRecord{{ID: "use-1", Substance: patient.SubstanceOpioids, Status: patient.UseRelapse, Date: asOf.AddDate(0, 0, -5)}},
		[]patient.Intervention{{ID: "iv-1", Type: patient.InterventionMedication, Description: "MAT", StartDate: asOf.AddDate(0, 0, -20), Effectiveness: 0.75}},
	)

	report := score(t, g)
	for i := 1; i < len(report.Factors); i++ {
		if math.Abs(report.Factors[i].Contribution) > math.Abs(report.Factors[i-1].Contribution) {
			t.Fatalf("factors not sorted by |contribution|: %+v", report.Factors)
		}
	}
}

func TestCalculateRisk_ScoreAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	model := NewRuleBasedModel(DefaultRuleWeights())

	substances := []patient.SubstanceType{patient.SubstanceAlcohol, patient.SubstanceOpioids, patient.SubstanceStimulants}
	statuses := []patient.UseStatus{patient.UseActive, patient.UseRelapse, patient.UseRemission, patient.UseRecovery}
	eventTypes := []patient.EventType{patient.EventTrauma, patient.EventJobChange, patient.EventLegal, patient.EventOther, patient.EventMedical}

	for i := 0; i < 200; i++ {
		var events []patient.Event
		for j := 0; j < rng.Intn(5); j++ {
			events = append(events, patient.Event{
				ID:          fmt.Sprintf("evt-%d", j),
				Type:        eventTypes[rng.Intn(len(eventTypes))],
				Date:        asOf.AddDate(0, 0, -rng.Intn(365)),
				ImpactScore: rng.Float64()*2 - 1,
			})
		}
		var uses []patient.SubstanceUseRecord
		for j := 0; j < rng.Intn(5); j++ {
			uses = append(uses, patient.SubstanceUseRecord{
				ID:        fmt.Sprintf("use-%d", j),
				Substance: substances[rng.Intn(len(substances))],
				Status:    statuses[rng.Intn(len(statuses))],
				Date:      asOf.AddDate(0, 0, -rng.Intn(365)),
			})
		}
		var interventions []patient.Intervention
		for j := 0; j < rng.Intn(3); j++ {
			interventions = append(interventions, patient.Intervention{
				ID:            fmt.Sprintf("iv-%d", j),
				Type:          patient.InterventionTherapy,
				StartDate:     asOf.AddDate(0, 0, -rng.Intn(365)),
				Effectiveness: rng.Float64(),
			})
		}

		g, err := patient.NewAt("patient-1", asOf, events, uses, interventions)
		if err != nil {
			t.Fatalf("building random graph: %v", err)
		}
		report, err := model.CalculateRisk(g, Options{AsOf: asOf})
		if err != nil {
			t.Fatalf("CalculateRisk: %v", err)
		}
		if report.Score < 0 || report.Score > 1 {
			t.Fatalf("score %v outside [0, 1]", report.Score)
		}
		for _, factor := range report.Factors {
			if factor.Contribution != 0 && len(factor.Evidence) == 0 {
				t.Fatalf("factor %q has contribution %v but no evidence", factor.Name, factor.Contribution)
			}
		}
	}
}

func TestCalculateRisk_TreatmentLowersRisk(t *testing.T) {
	withTreatment := mustGraph(t,
		[]patient.Event{{ID: "evt-1", Type: patient.EventTrauma, Description: "Assault", Date: asOf.AddDate(0, 0, -15), ImpactScore: -0.7}},
		[]patient.SubstanceUseRecord{{ID: "use-1", Substance: patient.SubstanceOpioids, Status: patient.UseRemission, Date: asOf.AddDate(0, 0, -180)}},
		[]patient.Intervention{{ID: "iv-1", Type: patient.InterventionMedication, Description: "MAT", StartDate: asOf.AddDate(0, 0, -60), Effectiveness: 0.85}},
	)
	withoutTreatment, err := withTreatment.WithoutIntervention("iv-1")
	if err != nil {
		t.Fatalf("WithoutIntervention: %v", err)
	}

	if a, b := score(t, withTreatment).Score, score(t, withoutTreatment).Score; a >= b {
		t.Fatalf("treatment should lower risk: %v vs %v", a, b)
	}
}

func TestScoreDelta(t *testing.T) {
	baseline := mustGraph(t, nil, []patient.SubstanceUseRecord{
		{ID: "use-1", Substance: patient.SubstanceOpioids, Status: patient.UseActive, Date: asOf.AddDate(0, 0, -5)},
	}, nil)

	modified, err := baseline.WithIntervention(patient.Intervention{
		ID: "iv-1", Type: patient.InterventionMedication, Description: "MAT", StartDate: asOf.AddDate(0, 0, -1), Effectiveness: 0.75,
	})
	if err != nil {
		t.Fatalf("WithIntervention: %v", err)
	}

	model := NewRuleBasedModel(DefaultRuleWeights())
	delta, err := model.CalculateRiskDelta(baseline, modified, Options{AsOf: asOf})
	if err != nil {
		t.Fatalf("CalculateRiskDelta: %v", err)
	}
	if got := delta.Modified.Score - delta.Baseline.Score; math.Abs(delta.Delta-got) > 1e-12 {
		t.Fatalf("delta %v inconsistent with reports (%v)", delta.Delta, got)
	}
	if delta.Delta >= 0 {
		t.Fatalf("adding treatment should lower risk, delta %v", delta.Delta)
	}
}

func TestOptions_ZeroAsOfUsesGraphTime(t *testing.T) {
	g := mustGraph(t, nil, nil, nil)
	model := NewRuleBasedModel(DefaultRuleWeights())
	report, err := model.CalculateRisk(g, Options{})
	if err != nil {
		t.Fatalf("CalculateRisk: %v", err)
	}
	if !report.GeneratedAt.Equal(g.CreatedAt()) {
		t.Fatalf("expected generated at %v, got %v", g.CreatedAt(), report.GeneratedAt)
	}
}
