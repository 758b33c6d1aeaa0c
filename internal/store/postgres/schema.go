package postgres

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS patients (
			patient_id TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			metadata   JSONB NOT NULL DEFAULT '{}',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id           BIGSERIAL PRIMARY KEY,
			patient_id   TEXT NOT NULL REFERENCES patients(patient_id) ON DELETE CASCADE,
			event_id     TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			event_date   TIMESTAMPTZ NOT NULL,
			impact_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			CONSTRAINT uq_event UNIQUE (patient_id, event_id)
		)`,
		`CREATE TABLE IF NOT EXISTS substance_use_records (
			id         BIGSERIAL PRIMARY KEY,
			patient_id TEXT NOT NULL REFERENCES patients(patient_id) ON DELETE CASCADE,
			record_id  TEXT NOT NULL,
			substance  TEXT NOT NULL,
			status     TEXT NOT NULL,
			use_date   TIMESTAMPTZ NOT NULL,
			severity   INTEGER NOT NULL DEFAULT 0,
			notes      TEXT NOT NULL DEFAULT '',
			CONSTRAINT uq_use UNIQUE (patient_id, record_id)
		)`,
		`CREATE TABLE IF NOT EXISTS interventions (
			id              BIGSERIAL PRIMARY KEY,
			patient_id      TEXT NOT NULL REFERENCES patients(patient_id) ON DELETE CASCADE,
			intervention_id TEXT NOT NULL,
			kind            TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			start_date      TIMESTAMPTZ NOT NULL,
			end_date        TIMESTAMPTZ,
			effectiveness   DOUBLE PRECISION NOT NULL DEFAULT 0,
			CONSTRAINT uq_intervention UNIQUE (patient_id, intervention_id)
		)`,
		`CREATE TABLE IF NOT EXISTS risk_reports (
			id            BIGSERIAL PRIMARY KEY,
			patient_id    TEXT NOT NULL,
			score         DOUBLE PRECISION NOT NULL,
			model_version TEXT NOT NULL,
			generated_at  TIMESTAMPTZ NOT NULL,
			factors       JSONB NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS simulations (
			id            BIGSERIAL PRIMARY KEY,
			patient_id    TEXT NOT NULL,
			scenario      TEXT NOT NULL,
			model_version TEXT NOT NULL,
			baseline_risk DOUBLE PRECISION NOT NULL,
			modified_risk DOUBLE PRECISION NOT NULL,
			delta         DOUBLE PRECISION NOT NULL,
			explanation   TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_patient ON events (patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_use_patient ON substance_use_records (patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_interventions_patient ON interventions (patient_id)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_patient ON risk_reports (patient_id, generated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_simulations_patient ON simulations (patient_id, created_at)`,
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range ddl {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}
	return nil
}
