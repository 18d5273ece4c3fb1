package snapshots

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Persist writes the snapshot and all sub-records in one transaction.
func (r *PGRepo) Persist(ctx context.Context, bundle Bundle) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	payload, err := json.Marshal(bundle.Snapshot.Payload)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO snapshots (id, analysis_id, payload, created_at)
VALUES ($1, $2, $3, $4)`,
		bundle.Snapshot.ID, bundle.Snapshot.AnalysisID, payload, bundle.Snapshot.CreatedAt,
	); err != nil {
		return err
	}

	if p := bundle.Project; p != nil {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO snapshot_projects (id, snapshot_id, code, name, technical_lead)
VALUES ($1, $2, $3, $4, $5)`,
			p.ID, p.SnapshotID, p.Code, p.Name, p.TechnicalLead,
		); err != nil {
			return err
		}
	}

	for _, stage := range bundle.Stages {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO snapshot_stages (id, snapshot_id, name, status, estimated_progress)
VALUES ($1, $2, $3, $4, $5)`,
			stage.ID, stage.SnapshotID, stage.Name, stage.Status, stage.EstimatedProgress,
		); err != nil {
			return err
		}
	}

	for _, entry := range bundle.Progress {
		tasks, err := json.Marshal(entry.Tasks)
		if err != nil {
			return err
		}
		trades, err := json.Marshal(entry.ActiveTrades)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO snapshot_progress (id, snapshot_id, recorded_on, supervisor, percentage, has_deviations, tasks, active_trades)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			entry.ID, entry.SnapshotID, entry.RecordedOn, entry.Supervisor, entry.Percentage, entry.HasDeviations, tasks, trades,
		); err != nil {
			return err
		}
	}

	if s := bundle.Safety; s != nil {
		measures, err := json.Marshal(s.Measures)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO snapshot_safety (id, snapshot_id, recorded_on, measures, total_checked, all_compliant)
VALUES ($1, $2, $3, $4, $5, $6)`,
			s.ID, s.SnapshotID, s.RecordedOn, measures, s.TotalChecked, s.AllCompliant,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetByAnalysisID returns the snapshot for an analysis.
func (r *PGRepo) GetByAnalysisID(ctx context.Context, analysisID string) (Snapshot, error) {
	const query = `
SELECT id, analysis_id, payload, created_at
FROM snapshots
WHERE analysis_id = $1
LIMIT 1`
	var snap Snapshot
	var payload []byte
	err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(&snap.ID, &snap.AnalysisID, &payload, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, err
	}
	if err := json.Unmarshal(payload, &snap.Payload); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// SummaryByAnalysisID builds the compact projection used by read APIs.
func (r *PGRepo) SummaryByAnalysisID(ctx context.Context, analysisID string) (Summary, error) {
	const query = `
SELECT s.id,
       COALESCE(p.code, ''),
       COALESCE(p.name, ''),
       (SELECT count(*) FROM snapshot_stages st WHERE st.snapshot_id = s.id),
       (SELECT count(*) FROM snapshot_progress pr WHERE pr.snapshot_id = s.id),
       sa.id IS NOT NULL,
       COALESCE(sa.total_checked, 0),
       COALESCE(sa.all_compliant, false)
FROM snapshots s
LEFT JOIN snapshot_projects p ON p.snapshot_id = s.id
LEFT JOIN snapshot_safety sa ON sa.snapshot_id = s.id
WHERE s.analysis_id = $1
LIMIT 1`
	var summary Summary
	err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(
		&summary.SnapshotID,
		&summary.ProjectCode,
		&summary.ProjectName,
		&summary.StageCount,
		&summary.ProgressCount,
		&summary.HasSafety,
		&summary.TotalChecked,
		&summary.AllCompliant,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Summary{}, ErrNotFound
		}
		return Summary{}, err
	}
	return summary, nil
}

var _ Repo = (*PGRepo)(nil)
