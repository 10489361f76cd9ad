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

// HeaderRepository implements port.HeaderRepository
type HeaderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHeaderRepository creates a new header repository
func NewHeaderRepository(db *sql.DB, logger *zap.Logger) port.HeaderRepository {
	return &HeaderRepository{db: db, logger: logger}
}

// Create inserts a header in PENDING
func (r *HeaderRepository) Create(ctx context.Context, header *entity.Header) error {
	now := time.Now().UTC()
	if header.AggregateStatus == "" {
		header.AggregateStatus = entity.AggregatePending
	}

	result, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO po_headers (
			requester_id, cost_center, category, business_rule_type,
			net_amount_cents, aggregate_status, rule_id, created_at, modified_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		header.RequesterID,
		header.CostCenter,
		header.Category,
		nullIfEmpty(string(header.BusinessRuleType)),
		header.NetAmountCents,
		string(header.AggregateStatus),
		nullableInt64(header.RuleID),
		now,
		now,
	)
	if err != nil {
		r.logger.Error("Failed to create header", zap.Error(err))
		return fmt.Errorf("failed to create header: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	header.ID = id
	header.CreatedAt = now
	header.ModifiedAt = now
	return nil
}

// GetByID returns nil when the header does not exist
func (r *HeaderRepository) GetByID(ctx context.Context, id int64) (*entity.Header, error) {
	var (
		h      entity.Header
		brt    sql.NullString
		status string
		ruleID sql.NullInt64
	)
	err := executor(ctx, r.db).QueryRowContext(ctx, `
		SELECT id, requester_id, cost_center, category, business_rule_type,
			net_amount_cents, aggregate_status, rule_id, created_at, modified_at
		FROM po_headers
		WHERE id = ?
	`, id).Scan(&h.ID, &h.RequesterID, &h.CostCenter, &h.Category, &brt,
		&h.NetAmountCents, &status, &ruleID, &h.CreatedAt, &h.ModifiedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get header", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get header: %w", err)
	}

	h.BusinessRuleType = entity.BusinessRuleType(brt.String)
	h.AggregateStatus = entity.AggregateStatus(status)
	h.RuleID = int64Ptr(ruleID)
	return &h, nil
}

// Lock writes to the header row so the transaction owns it before any step is touched.
// Returns nil when the header does not exist.
func (r *HeaderRepository) Lock(ctx context.Context, id int64) (*entity.Header, error) {
	result, err := executor(ctx, r.db).ExecContext(ctx,
		`UPDATE po_headers SET lock_version = lock_version + 1 WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to lock header", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to lock header: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	} else if n == 0 {
		return nil, nil
	}
	return r.GetByID(ctx, id)
}

// SetResolution records the classification and matched rule of a submitted header
func (r *HeaderRepository) SetResolution(ctx context.Context, id int64, businessRuleType entity.BusinessRuleType, ruleID *int64) error {
	_, err := executor(ctx, r.db).ExecContext(ctx, `
		UPDATE po_headers
		SET business_rule_type = ?, rule_id = ?, modified_at = ?
		WHERE id = ?
	`, nullIfEmpty(string(businessRuleType)), nullableInt64(ruleID), time.Now().UTC(), id)
	if err != nil {
		r.logger.Error("Failed to set header resolution", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to set header resolution: %w", err)
	}
	return nil
}

// UpdateAggregateStatus writes the derived status and modification time
func (r *HeaderRepository) UpdateAggregateStatus(ctx context.Context, id int64, status entity.AggregateStatus, modifiedAt time.Time) error {
	result, err := executor(ctx, r.db).ExecContext(ctx,
		`UPDATE po_headers SET aggregate_status = ?, modified_at = ? WHERE id = ?`,
		string(status), modifiedAt.UTC(), id)
	if err != nil {
		r.logger.Error("Failed to update aggregate status", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update aggregate status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", entity.ErrHeaderNotFound, id)
	}
	return nil
}

var _ port.HeaderRepository = (*HeaderRepository)(nil)
