package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/fbr-submission/internal/application/port"
	"github.com/garyjia/fbr-submission/internal/domain/entity"
	"github.com/garyjia/fbr-submission/internal/infrastructure/persistence/sqlite"
)

// RunRepository implements port.RunRepository
type RunRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRunRepository creates a new run repository
func NewRunRepository(db *sql.DB, logger *zap.Logger) *RunRepository {
	return &RunRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a run header
func (r *RunRepository) Create(ctx context.Context, run *entity.SubmissionRun) error {
	query := `
		INSERT INTO submission_runs (id, company_id, mode, state, total, succeeded, failed, skipped, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		run.ID,
		run.CompanyID,
		string(run.Mode),
		run.State,
		run.Total,
		run.Succeeded,
		run.Failed,
		run.Skipped,
		run.StartedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// GetByID returns nil, nil for unknown runs
func (r *RunRepository) GetByID(ctx context.Context, id string) (*entity.SubmissionRun, error) {
	query := `
		SELECT id, company_id, mode, state, total, succeeded, failed, skipped, started_at, completed_at
		FROM submission_runs
		WHERE id = ?
	`

	var run entity.SubmissionRun
	var mode string
	var completedAt sql.NullTime

	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&run.ID,
		&run.CompanyID,
		&mode,
		&run.State,
		&run.Total,
		&run.Succeeded,
		&run.Failed,
		&run.Skipped,
		&run.StartedAt,
		&completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get run", zap.String("run_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Mode = entity.SubmissionMode(mode)
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}

// Complete stores the final state and counts of a run
func (r *RunRepository) Complete(ctx context.Context, run *entity.SubmissionRun) error {
	query := `
		UPDATE submission_runs
		SET state = ?, total = ?, succeeded = ?, failed = ?, skipped = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		run.State,
		run.Total,
		run.Succeeded,
		run.Failed,
		run.Skipped,
		run.CompletedAt,
		run.ID,
	)
	if err != nil {
		r.logger.Error("Failed to complete run", zap.String("run_id", run.ID), zap.Error(err))
		return fmt.Errorf("failed to complete run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run not found: %s", run.ID)
	}
	return nil
}

// Delete removes a run and its results
func (r *RunRepository) Delete(ctx context.Context, id string) error {
	if _, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM submission_runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	return nil
}

// AppendResult stores one invoice outcome; a second result for the same invoice is rejected
func (r *RunRepository) AppendResult(ctx context.Context, runID string, result *entity.ProcessResult) error {
	query := `
		INSERT INTO submission_results (
			run_id, invoice_id, invoice_number, position, sequence, outcome,
			reference, message, error, failure_kind, skip_reason, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		runID,
		result.InvoiceID,
		result.InvoiceNumber,
		result.Position,
		result.Sequence,
		string(result.Outcome),
		result.Reference,
		result.Message,
		result.Error,
		string(result.FailureKind),
		string(result.SkipReason),
		result.RecordedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append result",
			zap.String("run_id", runID),
			zap.Int64("invoice_id", result.InvoiceID),
			zap.Error(err))
		return fmt.Errorf("failed to append result: %w", err)
	}
	return nil
}

// GetResults returns the results of a run ordered by candidate position
func (r *RunRepository) GetResults(ctx context.Context, runID string) ([]*entity.ProcessResult, error) {
	query := `
		SELECT invoice_id, invoice_number, position, sequence, outcome,
			reference, message, error, failure_kind, skip_reason, recorded_at
		FROM submission_results
		WHERE run_id = ?
		ORDER BY position, sequence
	`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, runID)
	if err != nil {
		r.logger.Error("Failed to query results", zap.String("run_id", runID), zap.Error(err))
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := make([]*entity.ProcessResult, 0)
	for rows.Next() {
		var res entity.ProcessResult
		var outcome, failureKind, skipReason string
		if err := rows.Scan(
			&res.InvoiceID,
			&res.InvoiceNumber,
			&res.Position,
			&res.Sequence,
			&outcome,
			&res.Reference,
			&res.Message,
			&res.Error,
			&failureKind,
			&skipReason,
			&res.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		res.Outcome = entity.Outcome(outcome)
		res.FailureKind = entity.FailureKind(failureKind)
		res.SkipReason = entity.SkipReason(skipReason)
		results = append(results, &res)
	}

	return results, rows.Err()
}

// Verify interface compliance
var _ port.RunRepository = (*RunRepository)(nil)
