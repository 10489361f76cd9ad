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

// HistoryRepository implements port.HistoryRepository. Entries are never updated or deleted.
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{db: db, logger: logger}
}

// Append records one step transition
func (r *HistoryRepository) Append(ctx context.Context, entry *entity.HistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	result, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO step_history (step_id, header_id, from_status, to_status, actor, comment, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		entry.StepID,
		entry.HeaderID,
		string(entry.FromStatus),
		string(entry.ToStatus),
		entry.Actor,
		entry.Comment,
		entry.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to append history entry", zap.Int64("step_id", entry.StepID), zap.Error(err))
		return fmt.Errorf("failed to append history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListByHeader returns the audit trail of a header in insertion order
func (r *HistoryRepository) ListByHeader(ctx context.Context, headerID int64) ([]*entity.HistoryEntry, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `
		SELECT id, step_id, header_id, from_status, to_status, actor, comment, timestamp
		FROM step_history
		WHERE header_id = ?
		ORDER BY id ASC
	`, headerID)
	if err != nil {
		r.logger.Error("Failed to get history by header ID", zap.Int64("header_id", headerID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	entries := make([]*entity.HistoryEntry, 0)
	for rows.Next() {
		var (
			e        entity.HistoryEntry
			from, to string
		)
		if err := rows.Scan(&e.ID, &e.StepID, &e.HeaderID, &from, &to, &e.Actor, &e.Comment, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.FromStatus = entity.StepStatus(from)
		e.ToStatus = entity.StepStatus(to)
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// HasRejection reports whether any step of the header was ever rejected
func (r *HistoryRepository) HasRejection(ctx context.Context, headerID int64) (bool, error) {
	var exists int
	err := executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM step_history WHERE header_id = ? AND to_status = 'REJECTED')`,
		headerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check rejection history: %w", err)
	}
	return exists == 1, nil
}

var _ port.HistoryRepository = (*HistoryRepository)(nil)
