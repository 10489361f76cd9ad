package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"go.uber.org/zap"
)

// StepRepository implements port.StepRepository
type StepRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStepRepository creates a new approval step repository
func NewStepRepository(db *sql.DB, logger *zap.Logger) port.StepRepository {
	return &StepRepository{db: db, logger: logger}
}

const stepColumns = `id, header_id, kind, authorizer_type, level_label, level_ordinal, level_ranked,
	cost_center, status, rejection_reason_code, comment, superseded, created_at, modified_at, modified_by`

// Create inserts a step. The live-key unique index rejects a second live
// checkpoint with the same (kind, type, level) on one header.
func (r *StepRepository) Create(ctx context.Context, step *entity.ApprovalStep) error {
	now := time.Now().UTC()
	if step.CreatedAt.IsZero() {
		step.CreatedAt = now
	}
	if step.ModifiedAt.IsZero() {
		step.ModifiedAt = step.CreatedAt
	}

	result, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO approval_steps (
			header_id, kind, authorizer_type, level_label, level_ordinal, level_ranked,
			cost_center, status, rejection_reason_code, comment, superseded,
			created_at, modified_at, modified_by
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		step.HeaderID,
		string(step.Kind),
		nullableString(step.AuthorizerType),
		step.Level.Label,
		step.Level.Ordinal,
		boolToInt(step.Level.Ranked),
		step.CostCenter,
		string(step.Status),
		nullIfEmpty(step.RejectionReasonCode),
		step.Comment,
		boolToInt(step.Superseded),
		step.CreatedAt,
		step.ModifiedAt,
		step.ModifiedBy,
	)
	if err != nil {
		r.logger.Error("Failed to create approval step",
			zap.Int64("header_id", step.HeaderID),
			zap.String("level", step.Level.Label),
			zap.Error(err))
		return fmt.Errorf("failed to create approval step: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	step.ID = id
	return nil
}

// GetByID returns nil when the step does not exist
func (r *StepRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalStep, error) {
	steps, err := r.query(ctx, `SELECT `+stepColumns+` FROM approval_steps WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(steps) == 0 {
		return nil, nil
	}
	return steps[0], nil
}

func (r *StepRepository) ListByHeader(ctx context.Context, headerID int64) ([]*entity.ApprovalStep, error) {
	return r.query(ctx, `SELECT `+stepColumns+` FROM approval_steps WHERE header_id = ? ORDER BY id`, headerID)
}

func (r *StepRepository) ListPending(ctx context.Context) ([]*entity.ApprovalStep, error) {
	return r.query(ctx, `
		SELECT `+stepColumns+`
		FROM approval_steps
		WHERE status = 'PENDING' AND superseded = 0
		ORDER BY header_id, id
	`)
}

// TransitionIfPending is the conditional update concurrent approvals race on
func (r *StepRepository) TransitionIfPending(ctx context.Context, id int64, to entity.StepStatus, actor, reasonCode, comment string, at time.Time) (bool, error) {
	if to != entity.StepStatusRejected {
		reasonCode = ""
	}

	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE approval_steps
		SET status = ?, rejection_reason_code = ?, comment = ?, modified_at = ?, modified_by = ?
		WHERE id = ? AND status = 'PENDING' AND superseded = 0
	`, string(to), nullIfEmpty(reasonCode), comment, at.UTC(), actor, id)
	if err != nil {
		r.logger.Error("Failed to transition approval step", zap.Int64("id", id), zap.String("to", string(to)), zap.Error(err))
		return false, fmt.Errorf("failed to transition approval step: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *StepRepository) Supersede(ctx context.Context, id int64, actor string, at time.Time) (bool, error) {
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE approval_steps
		SET superseded = 1, modified_at = ?, modified_by = ?
		WHERE id = ? AND superseded = 0
	`, at.UTC(), actor, id)
	if err != nil {
		r.logger.Error("Failed to supersede approval step", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to supersede approval step: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

func (r *StepRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.ApprovalStep, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query approval steps", zap.Error(err))
		return nil, fmt.Errorf("failed to query approval steps: %w", err)
	}
	defer rows.Close()

	steps := make([]*entity.ApprovalStep, 0)
	for rows.Next() {
		var (
			s          entity.ApprovalStep
			kind       string
			typ        sql.NullString
			ranked     int
			status     string
			reason     sql.NullString
			superseded int
		)
		if err := rows.Scan(&s.ID, &s.HeaderID, &kind, &typ, &s.Level.Label, &s.Level.Ordinal, &ranked,
			&s.CostCenter, &status, &reason, &s.Comment, &superseded, &s.CreatedAt, &s.ModifiedAt, &s.ModifiedBy); err != nil {
			return nil, fmt.Errorf("failed to scan approval step: %w", err)
		}
		s.Kind = entity.StepKind(kind)
		s.AuthorizerType = stringPtr(typ)
		s.Level.Ranked = ranked == 1
		s.Status = entity.StepStatus(status)
		s.RejectionReasonCode = reason.String
		s.Superseded = superseded == 1
		steps = append(steps, &s)
	}
	return steps, rows.Err()
}

var _ port.StepRepository = (*StepRepository)(nil)
