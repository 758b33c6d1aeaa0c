package sqlite

import (
	"context"
	"fmt"
	"strings"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS patients (
		patient_id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		metadata   TEXT DEFAULT '{}',
		updated_at TEXT DEFAULT (datetime('now'))
	);

	CREATE TABLE IF NOT EXISTS events (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id   TEXT NOT NULL REFERENCES patients(patient_id) ON DELETE CASCADE,
		event_id     TEXT NOT NULL,
		event_type   TEXT NOT NULL,
		description  TEXT DEFAULT '',
		event_date   TEXT NOT NULL,
		impact_score REAL DEFAULT 0,
		CONSTRAINT uq_event UNIQUE (patient_id, event_id)
	);

	CREATE TABLE IF NOT EXISTS substance_use_records (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id TEXT NOT NULL REFERENCES patients(patient_id) ON DELETE CASCADE,
		record_id  TEXT NOT NULL,
		substance  TEXT NOT NULL,
		status     TEXT NOT NULL,
		use_date   TEXT NOT NULL,
		severity   INTEGER DEFAULT 0,
		notes      TEXT DEFAULT '',
		CONSTRAINT uq_use UNIQUE (patient_id, record_id)
	);

	CREATE TABLE IF NOT EXISTS interventions (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id      TEXT NOT NULL REFERENCES patients(patient_id) ON DELETE CASCADE,
		intervention_id TEXT NOT NULL,
		kind            TEXT NOT NULL,
		description     TEXT DEFAULT '',
		start_date      TEXT NOT NULL,
		end_date        TEXT,
		effectiveness   REAL DEFAULT 0,
		CONSTRAINT uq_intervention UNIQUE (patient_id, intervention_id)
	);

	CREATE TABLE IF NOT EXISTS risk_reports (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id    TEXT NOT NULL,
		score         REAL NOT NULL,
		model_version TEXT NOT NULL,
		generated_at  TEXT NOT NULL,
		factors       TEXT DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS simulations (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		patient_id    TEXT NOT NULL,
		scenario      TEXT NOT NULL,
		model_version TEXT NOT NULL,
		baseline_risk REAL NOT NULL,
		modified_risk REAL NOT NULL,
		delta         REAL NOT NULL,
		explanation   TEXT DEFAULT '',
		created_at    TEXT DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_events_patient ON events (patient_id);
	CREATE INDEX IF NOT EXISTS idx_use_patient ON substance_use_records (patient_id);
	CREATE INDEX IF NOT EXISTS idx_interventions_patient ON interventions (patient_id);
	CREATE INDEX IF NOT EXISTS idx_reports_patient ON risk_reports (patient_id, generated_at);
	CREATE INDEX IF NOT EXISTS idx_simulations_patient ON simulations (patient_id, created_at);
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(ddl) {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing DDL: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema transaction: %w", err)
	}

	return nil
}

func splitStatements(ddl string) []string {
	var statements []string
	var current strings.Builder

	for _, line := range strings.Split(ddl, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "--") {
			continue
		}
		current.WriteString(line)
		current.WriteString("\n")
		if strings.HasSuffix(stripped, ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}
