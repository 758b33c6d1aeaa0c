package sqlite

import (
	"context"
	"testing"
	"time"

	"caregraph/internal/patient"
	"caregraph/internal/risk"
	"caregraph/internal/store"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()
	client, err := New(ctx, "sqlite://:memory:")
	if err != nil {
		t.Fatalf("opening in-memory database: %v", err)
	}
	t.Cleanup(func() { client.Close(ctx) })
	if err := client.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return client
}

func storedGraph(t *testing.T) *patient.ClinicalGraph {
	t.Helper()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	end := now.AddDate(0, 3, 0)
	g, err := patient.NewAt("patient-1", now,
		[]patient.Event{
			{ID: "evt-1", Type: patient.EventHousingChange, Description: "Evicted", Date: now.AddDate(0, 0, -30), ImpactScore: -0.6},
		},
		[]patient.SubstanceUseRecord{
			{ID: "use-1", Substance: patient.SubstanceOpioids, Status: patient.UseActive, Date: now.AddDate(0, 0, -10), Severity: 7, Notes: "daily"},
		},
		[]patient.Intervention{
			{ID: "iv-1", Type: patient.InterventionMedication, Description: "MAT", StartDate: now.AddDate(0, -1, 0), EndDate: &end, Effectiveness: 0.75},
		},
	)
	if err != nil {
		t.Fatalf("building graph: %v", err)
	}
	return g.WithMetadata("cohort", "a")
}

func TestParseDSN(t *testing.T) {
	cases := []struct {
		name    string
		dsn     string
		want    string
		wantErr bool
	}{
		{name: "memory", dsn: "sqlite://:memory:", want: ":memory:"},
		{name: "relative path", dsn: "sqlite://caregraph.db", want: "./caregraph.db"},
		{name: "absolute path", dsn: "sqlite:///var/lib/caregraph.db", want: "/var/lib/caregraph.db"},
		{name: "with query", dsn: "sqlite://caregraph.db?mode=ro", want: "./caregraph.db?mode=ro"},
		{name: "wrong scheme", dsn: "postgres://localhost/db", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseDSN(tc.dsn)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDSN: %v", err)
			}
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestPatientRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)
	g := storedGraph(t)

	if err := client.UpsertPatient(ctx, g); err != nil {
		t.Fatalf("UpsertPatient: %v", err)
	}

	loaded, err := client.GetPatient(ctx, "patient-1")
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if loaded == nil {
		t.Fatalf("patient not found after upsert")
	}
	if !g.Equal(loaded) {
		t.Fatalf("round trip changed the graph:\nstored %v\nloaded %v", g.NodeIDs(), loaded.NodeIDs())
	}
	if v, _ := loaded.MetadataValue("cohort"); v != "a" {
		t.Fatalf("metadata not round-tripped, got %q", v)
	}
}

func TestGetPatient_Missing(t *testing.T) {
	client := testClient(t)
	g, err := client.GetPatient(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if g != nil {
		t.Fatalf("expected nil graph for missing patient")
	}
}

func TestUpsertPatient_ReplacesChildren(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)
	g := storedGraph(t)

	if err := client.UpsertPatient(ctx, g); err != nil {
		t.Fatalf("first upsert: %v", err)
	}

	trimmed, err := g.WithoutEvent("evt-1")
	if err != nil {
		t.Fatalf("WithoutEvent: %v", err)
	}
	if err := client.UpsertPatient(ctx, trimmed); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	loaded, err := client.GetPatient(ctx, "patient-1")
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if len(loaded.Events()) != 0 {
		t.Fatalf("stale events survived the upsert: %v", loaded.NodeIDs())
	}
}

func TestListPatients(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)

	if err := client.UpsertPatient(ctx, storedGraph(t)); err != nil {
		t.Fatalf("UpsertPatient: %v", err)
	}

	summaries, err := client.ListPatients(ctx)
	if err != nil {
		t.Fatalf("ListPatients: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected one summary, got %d", len(summaries))
	}
	s := summaries[0]
	if s.PatientID != "patient-1" || s.Events != 1 || s.SubstanceUse != 1 || s.Interventions != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}

func TestReportRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)

	report := &risk.Report{
		PatientID:    "patient-1",
		Score:        0.75,
		ModelVersion: "rule-based-v1",
		GeneratedAt:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Factors: []risk.Factor{
			{Name: "Recent Substance Use", Contribution: 0.25, Evidence: []string{"opioids active_use on 2026-07-22 (use-1)"}},
		},
	}
	if err := client.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport: %v", err)
	}

	reports, err := client.ListReports(ctx, "patient-1", 0)
	if err != nil {
		t.Fatalf("ListReports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	got := reports[0]
	if got.Score != 0.75 || got.ModelVersion != "rule-based-v1" {
		t.Fatalf("unexpected report: %+v", got)
	}
	if len(got.Factors) != 1 || got.Factors[0].Name != "Recent Substance Use" || len(got.Factors[0].Evidence) != 1 {
		t.Fatalf("factors not round-tripped: %+v", got.Factors)
	}
	if !got.GeneratedAt.Equal(report.GeneratedAt) {
		t.Fatalf("timestamp not round-tripped: %v", got.GeneratedAt)
	}

	if others, err := client.ListReports(ctx, "someone-else", 0); err != nil || len(others) != 0 {
		t.Fatalf("patient filter not applied: %v, %v", others, err)
	}
}

func TestSimulationRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := testClient(t)

	rec := store.SimulationRecord{
		PatientID:    "patient-1",
		Scenario:     "Stable Housing",
		ModelVersion: "rule-based-v1",
		BaselineRisk: 0.75,
		ModifiedRisk: 0.60,
		Delta:        -0.15,
		Explanation:  "Risk decreased by 15.0%.",
	}
	if err := client.SaveSimulation(ctx, rec); err != nil {
		t.Fatalf("SaveSimulation: %v", err)
	}

	records, err := client.ListSimulations(ctx, "patient-1", 10)
	if err != nil {
		t.Fatalf("ListSimulations: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	got := records[0]
	if got.Scenario != rec.Scenario || got.Delta != rec.Delta || got.Explanation != rec.Explanation {
		t.Fatalf("unexpected record: %+v", got)
	}
}
