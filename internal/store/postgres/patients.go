package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"caregraph/internal/patient"
	"caregraph/internal/store"
)

func (c *Client) UpsertPatient(ctx context.Context, g *patient.ClinicalGraph) error {
	if g == nil {
		return fmt.Errorf("graph is required")
	}

	metadataJSON, err := json.Marshal(g.Metadata())
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
	INSERT INTO patients (patient_id, created_at, metadata, updated_at)
	VALUES ($1, $2, $3, now())
	ON CONFLICT (patient_id) DO UPDATE SET
		created_at = excluded.created_at,
		metadata = excluded.metadata,
		updated_at = now()
	`, g.PatientID(), g.CreatedAt(), metadataJSON)
	if err != nil {
		return fmt.Errorf("upserting patient: %w", err)
	}

	for _, table := range []string{"events", "substance_use_records", "interventions"} {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE patient_id = $1", table), g.PatientID()); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, e := range g.Events() {
		_, err := tx.Exec(ctx, `
		INSERT INTO events (patient_id, event_id, event_type, description, event_date, impact_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		`, g.PatientID(), e.ID, string(e.Type), e.Description, e.Date, e.ImpactScore)
		if err != nil {
			return fmt.Errorf("inserting event %s: %w", e.ID, err)
		}
	}

	for _, r := range g.SubstanceUse() {
		_, err := tx.Exec(ctx, `
		INSERT INTO substance_use_records (patient_id, record_id, substance, status, use_date, severity, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, g.PatientID(), r.ID, string(r.Substance), string(r.Status), r.Date, r.Severity, r.Notes)
		if err != nil {
			return fmt.Errorf("inserting substance use %s: %w", r.ID, err)
		}
	}

	for _, iv := range g.Interventions() {
		_, err := tx.Exec(ctx, `
		INSERT INTO interventions (patient_id, intervention_id, kind, description, start_date, end_date, effectiveness)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, g.PatientID(), iv.ID, string(iv.Type), iv.Description, iv.StartDate, iv.EndDate, iv.Effectiveness)
		if err != nil {
			return fmt.Errorf("inserting intervention %s: %w", iv.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing patient transaction: %w", err)
	}
	return nil
}

func (c *Client) GetPatient(ctx context.Context, patientID string) (*patient.ClinicalGraph, error) {
	var createdAt time.Time
	var metadataRaw []byte
	err := c.pool.QueryRow(ctx,
		"SELECT created_at, metadata FROM patients WHERE patient_id = $1", patientID).
		Scan(&createdAt, &metadataRaw)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}

	events, err := c.loadEvents(ctx, patientID)
	if err != nil {
		return nil, err
	}
	uses, err := c.loadSubstanceUse(ctx, patientID)
	if err != nil {
		return nil, err
	}
	interventions, err := c.loadInterventions(ctx, patientID)
	if err != nil {
		return nil, err
	}

	g, err := patient.NewAt(patientID, createdAt, events, uses, interventions)
	if err != nil {
		return nil, fmt.Errorf("rebuilding graph for %s: %w", patientID, err)
	}

	var metadata map[string]string
	if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
		return nil, fmt.Errorf("parsing patient metadata: %w", err)
	}
	for k, v := range metadata {
		g = g.WithMetadata(k, v)
	}
	return g, nil
}

func (c *Client) loadEvents(ctx context.Context, patientID string) ([]patient.Event, error) {
	rows, err := c.pool.Query(ctx, `
	SELECT event_id, event_type, description, event_date, impact_score
	FROM events WHERE patient_id = $1 ORDER BY event_date
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	defer rows.Close()

	var events []patient.Event
	for rows.Next() {
		var e patient.Event
		var eventType string
		if err := rows.Scan(&e.ID, &eventType, &e.Description, &e.Date, &e.ImpactScore); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Type = patient.EventType(eventType)
		events = append(events, e)
	}
	return events, rows.Err()
}

func (c *Client) loadSubstanceUse(ctx context.Context, patientID string) ([]patient.SubstanceUseRecord, error) {
	rows, err := c.pool.Query(ctx, `
	SELECT record_id, substance, status, use_date, severity, notes
	FROM substance_use_records WHERE patient_id = $1 ORDER BY use_date
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("loading substance use records: %w", err)
	}
	defer rows.Close()

	var records []patient.SubstanceUseRecord
	for rows.Next() {
		var r patient.SubstanceUseRecord
		var substance, status string
		if err := rows.Scan(&r.ID, &substance, &status, &r.Date, &r.Severity, &r.Notes); err != nil {
			return nil, fmt.Errorf("scanning substance use record: %w", err)
		}
		r.Substance = patient.SubstanceType(substance)
		r.Status = patient.UseStatus(status)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (c *Client) loadInterventions(ctx context.Context, patientID string) ([]patient.Intervention, error) {
	rows, err := c.pool.Query(ctx, `
	SELECT intervention_id, kind, description, start_date, end_date, effectiveness
	FROM interventions WHERE patient_id = $1 ORDER BY start_date
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("loading interventions: %w", err)
	}
	defer rows.Close()

	var interventions []patient.Intervention
	for rows.Next() {
		var iv patient.Intervention
		var kind string
		if err := rows.Scan(&iv.ID, &kind, &iv.Description, &iv.StartDate, &iv.EndDate, &iv.Effectiveness); err != nil {
			return nil, fmt.Errorf("scanning intervention: %w", err)
		}
		iv.Type = patient.InterventionType(kind)
		interventions = append(interventions, iv)
	}
	return interventions, rows.Err()
}

func (c *Client) ListPatients(ctx context.Context) ([]store.PatientSummary, error) {
	rows, err := c.pool.Query(ctx, `
	SELECT p.patient_id,
		(SELECT COUNT(*) FROM events e WHERE e.patient_id = p.patient_id),
		(SELECT COUNT(*) FROM substance_use_records s WHERE s.patient_id = p.patient_id),
		(SELECT COUNT(*) FROM interventions i WHERE i.patient_id = p.patient_id),
		p.updated_at
	FROM patients p
	ORDER BY p.patient_id
	`)
	if err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	defer rows.Close()

	var summaries []store.PatientSummary
	for rows.Next() {
		var s store.PatientSummary
		if err := rows.Scan(&s.PatientID, &s.Events, &s.SubstanceUse, &s.Interventions, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning patient summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
