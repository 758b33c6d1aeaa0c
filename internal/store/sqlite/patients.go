package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

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

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO patients (patient_id, created_at, metadata, updated_at)
	VALUES (?, ?, ?, datetime('now'))
	ON CONFLICT (patient_id) DO UPDATE SET
		created_at = excluded.created_at,
		metadata = excluded.metadata,
		updated_at = datetime('now')
	`, g.PatientID(), g.CreatedAt().Format(time.RFC3339Nano), string(metadataJSON))
	if err != nil {
		return fmt.Errorf("upserting patient: %w", err)
	}

	// Child rows are replaced wholesale; the graph is the source of truth.
	for _, table := range []string{"events", "substance_use_records", "interventions"} {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE patient_id = ?", table), g.PatientID()); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, e := range g.Events() {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO events (patient_id, event_id, event_type, description, event_date, impact_score)
		VALUES (?, ?, ?, ?, ?, ?)
		`, g.PatientID(), e.ID, string(e.Type), e.Description, e.Date.Format(time.RFC3339Nano), e.ImpactScore)
		if err != nil {
			return fmt.Errorf("inserting event %s: %w", e.ID, err)
		}
	}

	for _, r := range g.SubstanceUse() {
		_, err := tx.ExecContext(ctx, `
		INSERT INTO substance_use_records (patient_id, record_id, substance, status, use_date, severity, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`, g.PatientID(), r.ID, string(r.Substance), string(r.Status), r.Date.Format(time.RFC3339Nano), r.Severity, r.Notes)
		if err != nil {
			return fmt.Errorf("inserting substance use %s: %w", r.ID, err)
		}
	}

	for _, iv := range g.Interventions() {
		var endDate any
		if iv.EndDate != nil {
			endDate = iv.EndDate.Format(time.RFC3339Nano)
		}
		_, err := tx.ExecContext(ctx, `
		INSERT INTO interventions (patient_id, intervention_id, kind, description, start_date, end_date, effectiveness)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		`, g.PatientID(), iv.ID, string(iv.Type), iv.Description, iv.StartDate.Format(time.RFC3339Nano), endDate, iv.Effectiveness)
		if err != nil {
			return fmt.Errorf("inserting intervention %s: %w", iv.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing patient transaction: %w", err)
	}
	return nil
}

func (c *Client) GetPatient(ctx context.Context, patientID string) (*patient.ClinicalGraph, error) {
	var createdAtRaw, metadataRaw string
	err := c.db.QueryRowContext(ctx,
		"SELECT created_at, metadata FROM patients WHERE patient_id = ?", patientID).
		Scan(&createdAtRaw, &metadataRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting patient: %w", err)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, createdAtRaw)
	if err != nil {
		return nil, fmt.Errorf("parsing patient created_at: %w", err)
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
	if err := json.Unmarshal([]byte(metadataRaw), &metadata); err != nil {
		return nil, fmt.Errorf("parsing patient metadata: %w", err)
	}
	for k, v := range metadata {
		g = g.WithMetadata(k, v)
	}
	return g, nil
}

func (c *Client) loadEvents(ctx context.Context, patientID string) ([]patient.Event, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT event_id, event_type, description, event_date, impact_score
	FROM events WHERE patient_id = ? ORDER BY event_date
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("loading events: %w", err)
	}
	defer rows.Close()

	var events []patient.Event
	for rows.Next() {
		var e patient.Event
		var eventType, dateRaw string
		if err := rows.Scan(&e.ID, &eventType, &e.Description, &dateRaw, &e.ImpactScore); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Type = patient.EventType(eventType)
		if e.Date, err = time.Parse(time.RFC3339Nano, dateRaw); err != nil {
			return nil, fmt.Errorf("parsing event date: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (c *Client) loadSubstanceUse(ctx context.Context, patientID string) ([]patient.SubstanceUseRecord, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT record_id, substance, status, use_date, severity, notes
	FROM substance_use_records WHERE patient_id = ? ORDER BY use_date
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("loading substance use records: %w", err)
	}
	defer rows.Close()

	var records []patient.SubstanceUseRecord
	for rows.Next() {
		var r patient.SubstanceUseRecord
		var substance, status, dateRaw string
		if err := rows.Scan(&r.ID, &substance, &status, &dateRaw, &r.Severity, &r.Notes); err != nil {
			return nil, fmt.Errorf("scanning substance use record: %w", err)
		}
		r.Substance = patient.SubstanceType(substance)
		r.Status = patient.UseStatus(status)
		if r.Date, err = time.Parse(time.RFC3339Nano, dateRaw); err != nil {
			return nil, fmt.Errorf("parsing substance use date: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (c *Client) loadInterventions(ctx context.Context, patientID string) ([]patient.Intervention, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT intervention_id, kind, description, start_date, end_date, effectiveness
	FROM interventions WHERE patient_id = ? ORDER BY start_date
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("loading interventions: %w", err)
	}
	defer rows.Close()

	var interventions []patient.Intervention
	for rows.Next() {
		var iv patient.Intervention
		var kind, startRaw string
		var endRaw sql.NullString
		if err := rows.Scan(&iv.ID, &kind, &iv.Description, &startRaw, &endRaw, &iv.Effectiveness); err != nil {
			return nil, fmt.Errorf("scanning intervention: %w", err)
		}
		iv.Type = patient.InterventionType(kind)
		if iv.StartDate, err = time.Parse(time.RFC3339Nano, startRaw); err != nil {
			return nil, fmt.Errorf("parsing intervention start date: %w", err)
		}
		if endRaw.Valid {
			end, err := time.Parse(time.RFC3339Nano, endRaw.String)
			if err != nil {
				return nil, fmt.Errorf("parsing intervention end date: %w", err)
			}
			iv.EndDate = &end
		}
		interventions = append(interventions, iv)
	}
	return interventions, rows.Err()
}

func (c *Client) ListPatients(ctx context.Context) ([]store.PatientSummary, error) {
	rows, err := c.db.QueryContext(ctx, `
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
		var updatedRaw string
		if err := rows.Scan(&s.PatientID, &s.Events, &s.SubstanceUse, &s.Interventions, &updatedRaw); err != nil {
			return nil, fmt.Errorf("scanning patient summary: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", updatedRaw); err == nil {
			s.UpdatedAt = t
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}
