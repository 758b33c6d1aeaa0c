package ingest

import (
	"fmt"
	"time"

	"caregraph/internal/patient"
)

// Specs are the external YAML/JSON shape of clinical entities. They exist so
// that patient files, scenario files, and MCP tool inputs all share one
// parsing and validation path into the domain types.

type EventSpec struct {
	ID          string   `yaml:"id" json:"id"`
	Type        string   `yaml:"type" json:"type"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Date        string   `yaml:"date" json:"date"`
	ImpactScore *float64 `yaml:"impact_score" json:"impact_score,omitempty"`
}

type UseSpec struct {
	ID        string `yaml:"id" json:"id"`
	Substance string `yaml:"substance" json:"substance"`
	Status    string `yaml:"status" json:"status"`
	Date      string `yaml:"date" json:"date"`
	Severity  int    `yaml:"severity" json:"severity,omitempty"`
	Notes     string `yaml:"notes" json:"notes,omitempty"`
}

type InterventionSpec struct {
	ID            string   `yaml:"id" json:"id"`
	Type          string   `yaml:"type" json:"type"`
	Description   string   `yaml:"description" json:"description,omitempty"`
	StartDate     string   `yaml:"start_date" json:"start_date"`
	EndDate       string   `yaml:"end_date" json:"end_date,omitempty"`
	Effectiveness *float64 `yaml:"effectiveness_score" json:"effectiveness_score,omitempty"`
}

type PatientFile struct {
	PatientID     string             `yaml:"patient_id" json:"patient_id"`
	Events        []EventSpec        `yaml:"events" json:"events,omitempty"`
	SubstanceUse  []UseSpec          `yaml:"substance_use" json:"substance_use,omitempty"`
	Interventions []InterventionSpec `yaml:"interventions" json:"interventions,omitempty"`
	Metadata      map[string]string  `yaml:"metadata" json:"metadata,omitempty"`
}

func (s EventSpec) ToEvent() (patient.Event, error) {
	date, err := parseDate(s.Date)
	if err != nil {
		return patient.Event{}, fmt.Errorf("event %s: %w", s.ID, err)
	}
	e := patient.Event{
		ID:          s.ID,
		Type:        patient.EventType(s.Type),
		Description: s.Description,
		Date:        date,
	}
	if s.ImpactScore != nil {
		e.ImpactScore = *s.ImpactScore
	}
	return e, nil
}

func (s UseSpec) ToRecord() (patient.SubstanceUseRecord, error) {
	date, err := parseDate(s.Date)
	if err != nil {
		return patient.SubstanceUseRecord{}, fmt.Errorf("substance use %s: %w", s.ID, err)
	}
	return patient.SubstanceUseRecord{
		ID:        s.ID,
		Substance: patient.SubstanceType(s.Substance),
		Status:    patient.UseStatus(s.Status),
		Date:      date,
		Severity:  s.Severity,
		Notes:     s.Notes,
	}, nil
}

func (s InterventionSpec) ToIntervention() (patient.Intervention, error) {
	start, err := parseDate(s.StartDate)
	if err != nil {
		return patient.Intervention{}, fmt.Errorf("intervention %s: %w", s.ID, err)
	}
	iv := patient.Intervention{
		ID:          s.ID,
		Type:        patient.InterventionType(s.Type),
		Description: s.Description,
		StartDate:   start,
	}
	if s.EndDate != "" {
		end, err := parseDate(s.EndDate)
		if err != nil {
			return patient.Intervention{}, fmt.Errorf("intervention %s: %w", s.ID, err)
		}
		iv.EndDate = &end
	}
	if s.Effectiveness != nil {
		iv.Effectiveness = *s.Effectiveness
	}
	return iv, nil
}

// ToGraph validates the file into a clinical graph.
func (f PatientFile) ToGraph() (*patient.ClinicalGraph, error) {
	if f.PatientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}

	events := make([]patient.Event, 0, len(f.Events))
	for _, spec := range f.Events {
		e, err := spec.ToEvent()
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}

	uses := make([]patient.SubstanceUseRecord, 0, len(f.SubstanceUse))
	for _, spec := range f.SubstanceUse {
		r, err := spec.ToRecord()
		if err != nil {
			return nil, err
		}
		uses = append(uses, r)
	}

	interventions := make([]patient.Intervention, 0, len(f.Interventions))
	for _, spec := range f.Interventions {
		iv, err := spec.ToIntervention()
		if err != nil {
			return nil, err
		}
		interventions = append(interventions, iv)
	}

	g, err := patient.New(f.PatientID, events, uses, interventions)
	if err != nil {
		return nil, err
	}
	for k, v := range f.Metadata {
		g = g.WithMetadata(k, v)
	}
	return g, nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q (want YYYY-MM-DD or RFC 3339)", value)
}
