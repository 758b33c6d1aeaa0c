package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"caregraph/internal/risk"
	"caregraph/internal/store"
)

func (c *Client) SaveReport(ctx context.Context, report *risk.Report) error {
	if report == nil {
		return fmt.Errorf("report is required")
	}

	factorsJSON, err := json.Marshal(factorRowsFromReport(report.Factors))
	if err != nil {
		return fmt.Errorf("marshaling factors: %w", err)
	}

	_, err = c.db.ExecContext(ctx, `
	INSERT INTO risk_reports (patient_id, score, model_version, generated_at, factors)
	VALUES (?, ?, ?, ?, ?)
	`, report.PatientID, report.Score, report.ModelVersion,
		report.GeneratedAt.Format(time.RFC3339Nano), string(factorsJSON))
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

func (c *Client) ListReports(ctx context.Context, patientID string, limit int) ([]store.StoredReport, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx, `
	SELECT id, patient_id, score, model_version, generated_at, factors
	FROM risk_reports
	WHERE (? = '' OR patient_id = ?)
	ORDER BY id DESC
	LIMIT ?
	`, patientID, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var reports []store.StoredReport
	for rows.Next() {
		var r store.StoredReport
		var generatedRaw, factorsRaw string
		if err := rows.Scan(&r.ID, &r.PatientID, &r.Score, &r.ModelVersion, &generatedRaw, &factorsRaw); err != nil {
			return nil, fmt.Errorf("scanning report: %w", err)
		}
		if r.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedRaw); err != nil {
			return nil, fmt.Errorf("parsing report timestamp: %w", err)
		}
		var factorRows []factorRow
		if err := json.Unmarshal([]byte(factorsRaw), &factorRows); err != nil {
			return nil, fmt.Errorf("parsing report factors: %w", err)
		}
		r.Factors = factorsFromRows(factorRows)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (c *Client) SaveSimulation(ctx context.Context, rec store.SimulationRecord) error {
	_, err := c.db.ExecContext(ctx, `
	INSERT INTO simulations (patient_id, scenario, model_version, baseline_risk, modified_risk, delta, explanation)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.PatientID, rec.Scenario, rec.ModelVersion, rec.BaselineRisk, rec.ModifiedRisk, rec.Delta, rec.Explanation)
	if err != nil {
		return fmt.Errorf("saving simulation: %w", err)
	}
	return nil
}

func (c *Client) ListSimulations(ctx context.Context, patientID string, limit int) ([]store.SimulationRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx, `
	SELECT id, patient_id, scenario, model_version, baseline_risk, modified_risk, delta, explanation, created_at
	FROM simulations
	WHERE (? = '' OR patient_id = ?)
	ORDER BY id DESC
	LIMIT ?
	`, patientID, patientID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing simulations: %w", err)
	}
	defer rows.Close()

	var records []store.SimulationRecord
	for rows.Next() {
		var rec store.SimulationRecord
		var createdRaw string
		if err := rows.Scan(&rec.ID, &rec.PatientID, &rec.Scenario, &rec.ModelVersion,
			&rec.BaselineRisk, &rec.ModifiedRisk, &rec.Delta, &rec.Explanation, &createdRaw); err != nil {
			return nil, fmt.Errorf("scanning simulation: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", createdRaw); err == nil {
			rec.CreatedAt = t
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type factorRow struct {
	Name         string   `json:"name"`
	Contribution float64  `json:"contribution"`
	Evidence     []string `json:"evidence"`
}

func factorRowsFromReport(factors []risk.Factor) []factorRow {
	rows := make([]factorRow, 0, len(factors))
	for _, f := range factors {
		rows = append(rows, factorRow{Name: f.Name, Contribution: f.Contribution, Evidence: f.Evidence})
	}
	return rows
}

func factorsFromRows(rows []factorRow) []risk.Factor {
	factors := make([]risk.Factor, 0, len(rows))
	for _, r := range rows {
		factors = append(factors, risk.Factor{Name: r.Name, Contribution: r.Contribution, Evidence: r.Evidence})
	}
	return factors
}
