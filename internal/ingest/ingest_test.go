package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"caregraph/internal/config"
	"caregraph/internal/patient"
)

const patientYAML = `patient_id: patient-1
events:
  - id: evt-1
    type: housing_change
    description: Evicted
    date: 2026-06-10
    impact_score: -0.6
substance_use:
  - id: use-1
    substance: opioids
    status: active_use
    date: 2026-06-20
    severity: 7
interventions:
  - id: iv-1
    type: therapy
    description: Weekly therapy
    start_date: 2026-07-01
    effectiveness_score: 0.5
metadata:
  cohort: a
`

type mockPatientStore struct {
	ensureErr error
	upsertErr error
	ensured   int
	upserted  []string
}

func (m *mockPatientStore) EnsureSchema(ctx context.Context) error { m.ensured++; return m.ensureErr }

func (m *mockPatientStore) UpsertPatient(ctx context.Context, g *patient.ClinicalGraph) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserted = append(m.upserted, g.PatientID())
	return nil
}

func writePatientFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestParsePatient(t *testing.T) {
	g, err := ParsePatient([]byte(patientYAML))
	if err != nil {
		t.Fatalf("ParsePatient: %v", err)
	}
	if g.PatientID() != "patient-1" {
		t.Fatalf("unexpected patient id %q", g.PatientID())
	}
	if len(g.Events()) != 1 || len(g.SubstanceUse()) != 1 || len(g.Interventions()) != 1 {
		t.Fatalf("entities not parsed: %v", g.NodeIDs())
	}
	e, _ := g.EventByID("evt-1")
	if e.ImpactScore != -0.6 || e.Type != patient.EventHousingChange {
		t.Fatalf("unexpected event: %+v", e)
	}
	if v, _ := g.MetadataValue("cohort"); v != "a" {
		t.Fatalf("metadata not carried, got %q", v)
	}
}

func TestParsePatient_Errors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"not yaml", "{{"},
		{"missing patient id", "events: []\n"},
		{"bad date", "patient_id: p\nevents:\n  - id: e\n    type: trauma\n    date: June 10th\n"},
		{"unknown event type", "patient_id: p\nevents:\n  - id: e\n    type: divorce\n    date: 2026-06-10\n"},
		{"duplicate ids", "patient_id: p\nevents:\n  - id: e\n    type: trauma\n    date: 2026-06-10\n  - id: e\n    type: trauma\n    date: 2026-06-11\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParsePatient([]byte(tc.yaml)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	writePatientFile(t, dir, "patient-1.yaml", patientYAML)
	writePatientFile(t, dir, "patient-2.yml", "patient_id: patient-2\n")
	writePatientFile(t, dir, "notes.txt", "not a patient file")
	writePatientFile(t, dir, "broken.yaml", "events: []\n")

	db := &mockPatientStore{}
	cfg := &config.ProjectConfig{Sources: []string{dir}}

	result, err := Run(context.Background(), cfg, db)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if db.ensured != 1 {
		t.Fatalf("schema should be ensured once, got %d", db.ensured)
	}
	if result.PatientsUpserted != 2 {
		t.Fatalf("expected 2 patients upserted, got %d", result.PatientsUpserted)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 parse error, got %v", result.Errors)
	}
	if result.FilesSkipped != 1 {
		t.Fatalf("expected the text file to be skipped, got %d", result.FilesSkipped)
	}
	if len(db.upserted) != 2 {
		t.Fatalf("unexpected upserts: %v", db.upserted)
	}
}

func TestRun_Excludes(t *testing.T) {
	dir := t.TempDir()
	writePatientFile(t, dir, "patient-1.yaml", patientYAML)
	sub := filepath.Join(dir, "archive")
	if err := os.MkdirAll(sub, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writePatientFile(t, sub, "old.yaml", "patient_id: old-patient\n")

	db := &mockPatientStore{}
	cfg := &config.ProjectConfig{Sources: []string{dir}, Exclude: []string{sub}}

	result, err := Run(context.Background(), cfg, db)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.PatientsUpserted != 1 {
		t.Fatalf("excluded directory was ingested: %v", db.upserted)
	}
}

func TestRun_NoSources(t *testing.T) {
	if _, err := Run(context.Background(), &config.ProjectConfig{}, &mockPatientStore{}); err == nil {
		t.Fatalf("expected error")
	}
}
