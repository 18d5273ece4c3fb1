package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts a new analysis row in the pending state.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	payload, err := json.Marshal(analysis.RequestPayload)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, `
INSERT INTO analyses (id, project_code, status, request_payload, model_override, temperature, system_prompt_override, extra_instructions, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		analysis.ID, analysis.ProjectCode, analysis.Status, payload,
		analysis.ModelOverride, analysis.Temperature,
		analysis.SystemPromptOverride, analysis.ExtraInstructions,
		analysis.CreatedAt, analysis.UpdatedAt,
	)
	return err
}

// GetByID loads a single analysis including its stored request.
func (r *PGRepo) GetByID(ctx context.Context, id string) (Analysis, error) {
	const query = `
SELECT id, project_code, status, error_message, request_payload, COALESCE(model_override, ''), temperature,
       COALESCE(system_prompt_override, ''), COALESCE(extra_instructions, ''),
       started_at, completed_at, created_at, updated_at
FROM analyses
WHERE id = $1`
	var a Analysis
	var payload []byte
	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.ProjectCode, &a.Status, &a.ErrorMessage, &payload,
		&a.ModelOverride, &a.Temperature,
		&a.SystemPromptOverride, &a.ExtraInstructions,
		&a.StartedAt, &a.CompletedAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &a.RequestPayload); err != nil {
			return Analysis{}, err
		}
	}
	return a, nil
}

// UpdateStatus performs a guarded transition. The WHERE clause on the
// previous status makes concurrent workers lose cleanly instead of
// double-processing.
func (r *PGRepo) UpdateStatus(ctx context.Context, id, from, to string) error {
	now := time.Now().UTC()
	query := `
UPDATE analyses
SET status = $1, updated_at = $2
WHERE id = $3 AND status = $4`
	args := []any{to, now, id, from}
	if to == StatusProcessing {
		query = `
UPDATE analyses
SET status = $1, updated_at = $2, started_at = $2
WHERE id = $3 AND status = $4`
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, err := r.GetByID(ctx, id); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrInvalidTransition
	}
	return nil
}

// RecordOutcome persists the full audit trail of a successful run and marks
// the analysis completed, all in one transaction.
func (r *PGRepo) RecordOutcome(ctx context.Context, outcome Outcome) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertInvocationTrail(ctx, tx, outcome); err != nil {
		return err
	}

	if res := outcome.Result; res != nil {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO results (id, analysis_id, summary, coherence_score, risk_detected, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
			res.ID, res.AnalysisID, res.Summary, res.CoherenceScore, res.RiskDetected, res.CreatedAt,
		); err != nil {
			return err
		}
		for _, finding := range outcome.Findings {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO findings (id, result_id, position, title, description, severity)
VALUES ($1, $2, $3, $4, $5, $6)`,
				finding.ID, finding.ResultID, finding.Position, finding.Title, finding.Description, finding.Severity,
			); err != nil {
				return err
			}
		}
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
UPDATE analyses
SET status = $1, completed_at = $2, updated_at = $2
WHERE id = $3`,
		StatusCompleted, now, outcome.AnalysisID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// MarkError records the failure reason on the analysis and, when a failed
// invocation was staged, its audit trail. Runs in one transaction.
func (r *PGRepo) MarkError(ctx context.Context, id, reason string, outcome *Outcome) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if outcome != nil {
		if err := insertInvocationTrail(ctx, tx, *outcome); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
UPDATE analyses
SET status = $1, error_message = $2, completed_at = $3, updated_at = $3
WHERE id = $4`,
		StatusError, reason, now, id,
	); err != nil {
		return err
	}

	return tx.Commit()
}

func insertInvocationTrail(ctx context.Context, tx *sql.Tx, outcome Outcome) error {
	inv := outcome.Invocation
	if _, err := tx.ExecContext(ctx, `
INSERT INTO invocations (id, analysis_id, model_used, prompt_tokens, completion_tokens, total_tokens, duration_ms, success, error_detail, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		inv.ID, inv.AnalysisID, inv.ModelUsed,
		inv.PromptTokens, inv.CompletionTokens, inv.TotalTokens,
		inv.DurationMs, inv.Success, inv.ErrorDetail, inv.CreatedAt,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO prompt_records (id, invocation_id, system_prompt, user_prompt)
VALUES ($1, $2, $3, $4)`,
		outcome.Prompt.ID, outcome.Prompt.InvocationID, outcome.Prompt.SystemPrompt, outcome.Prompt.UserPrompt,
	); err != nil {
		return err
	}

	var parsed []byte
	if outcome.Response.Parsed != nil {
		var err error
		parsed, err = json.Marshal(outcome.Response.Parsed)
		if err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO response_records (id, invocation_id, raw_text, parsed)
VALUES ($1, $2, $3, $4)`,
		outcome.Response.ID, outcome.Response.InvocationID, outcome.Response.RawText, parsed,
	); err != nil {
		return err
	}
	return nil
}

// ResultByAnalysisID loads the derived result and its findings.
func (r *PGRepo) ResultByAnalysisID(ctx context.Context, analysisID string) (Result, []Finding, error) {
	const query = `
SELECT id, analysis_id, summary, coherence_score, risk_detected, created_at
FROM results
WHERE analysis_id = $1`
	var res Result
	err := r.DB.QueryRowContext(ctx, query, analysisID).Scan(
		&res.ID, &res.AnalysisID, &res.Summary, &res.CoherenceScore, &res.RiskDetected, &res.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Result{}, nil, ErrNotFound
		}
		return Result{}, nil, err
	}

	rows, err := r.DB.QueryContext(ctx, `
SELECT id, result_id, position, title, description, severity
FROM findings
WHERE result_id = $1
ORDER BY position`,
		res.ID,
	)
	if err != nil {
		return Result{}, nil, err
	}
	defer rows.Close()

	var findings []Finding
	for rows.Next() {
		var f Finding
		if err := rows.Scan(&f.ID, &f.ResultID, &f.Position, &f.Title, &f.Description, &f.Severity); err != nil {
			return Result{}, nil, err
		}
		findings = append(findings, f)
	}
	if err := rows.Err(); err != nil {
		return Result{}, nil, err
	}
	return res, findings, nil
}

// InvocationsByAnalysisID lists the audit trail of provider calls.
func (r *PGRepo) InvocationsByAnalysisID(ctx context.Context, analysisID string) ([]Invocation, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT id, analysis_id, model_used, prompt_tokens, completion_tokens, total_tokens, duration_ms, success, error_detail, created_at
FROM invocations
WHERE analysis_id = $1
ORDER BY created_at`,
		analysisID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invocations []Invocation
	for rows.Next() {
		var inv Invocation
		if err := rows.Scan(
			&inv.ID, &inv.AnalysisID, &inv.ModelUsed,
			&inv.PromptTokens, &inv.CompletionTokens, &inv.TotalTokens,
			&inv.DurationMs, &inv.Success, &inv.ErrorDetail, &inv.CreatedAt,
		); err != nil {
			return nil, err
		}
		invocations = append(invocations, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return invocations, nil
}

var _ Repo = (*PGRepo)(nil)
