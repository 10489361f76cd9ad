package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"go.uber.org/zap"
)

// AssignmentRepository implements port.AssignmentRepository
type AssignmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAssignmentRepository creates a new authorizer assignment repository
func NewAssignmentRepository(db *sql.DB, logger *zap.Logger) port.AssignmentRepository {
	return &AssignmentRepository{db: db, logger: logger}
}

func (r *AssignmentRepository) UpsertPerson(ctx context.Context, person *entity.Person) error {
	_, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO persons (id, name, email, lark_open_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			lark_open_id = excluded.lark_open_id
	`, person.ID, person.Name, person.Email, person.LarkOpenID)
	if err != nil {
		r.logger.Error("Failed to upsert person", zap.String("id", person.ID), zap.Error(err))
		return fmt.Errorf("failed to upsert person: %w", err)
	}
	return nil
}

// GetPersons returns the known persons among ids ordered by id; unknown ids are ignored
func (r *AssignmentRepository) GetPersons(ctx context.Context, ids []string) ([]entity.Person, error) {
	persons := make([]entity.Person, 0, len(ids))
	if len(ids) == 0 {
		return persons, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := executor(ctx, r.db).QueryContext(ctx,
		`SELECT id, name, email, lark_open_id FROM persons WHERE id IN (`+placeholders+`) ORDER BY id`, args...)
	if err != nil {
		r.logger.Error("Failed to get persons", zap.Int("count", len(ids)), zap.Error(err))
		return nil, fmt.Errorf("failed to get persons: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p entity.Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.LarkOpenID); err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		persons = append(persons, p)
	}
	return persons, rows.Err()
}

func (r *AssignmentRepository) Create(ctx context.Context, a *entity.AuthorizerAssignment) error {
	result, err := executor(ctx, r.db).ExecContext(ctx, `
		INSERT INTO authorizer_assignments (
			person_id, authorizer_type, level, cost_center, temporary, valid_from, valid_to
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		a.PersonID,
		nullableString(a.AuthorizerType),
		a.Level,
		nullableString(a.CostCenter),
		boolToInt(a.Temporary),
		nullableTime(a.ValidFrom),
		nullableTime(a.ValidTo),
	)
	if err != nil {
		r.logger.Error("Failed to create assignment", zap.String("person_id", a.PersonID), zap.Error(err))
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	a.ID = id
	return nil
}

func (r *AssignmentRepository) ListByLevel(ctx context.Context, level string) ([]*entity.AuthorizerAssignment, error) {
	return r.query(ctx, `
		SELECT id, person_id, authorizer_type, level, cost_center, temporary, valid_from, valid_to
		FROM authorizer_assignments
		WHERE level = ?
		ORDER BY person_id, id
	`, level)
}

func (r *AssignmentRepository) ListByPerson(ctx context.Context, personID string) ([]*entity.AuthorizerAssignment, error) {
	return r.query(ctx, `
		SELECT id, person_id, authorizer_type, level, cost_center, temporary, valid_from, valid_to
		FROM authorizer_assignments
		WHERE person_id = ?
		ORDER BY id
	`, personID)
}

func (r *AssignmentRepository) query(ctx context.Context, query string, args ...interface{}) ([]*entity.AuthorizerAssignment, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query assignments", zap.Error(err))
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.AuthorizerAssignment, 0)
	for rows.Next() {
		var (
			a        entity.AuthorizerAssignment
			typ, cc  sql.NullString
			temp     int
			from, to sql.NullTime
		)
		if err := rows.Scan(&a.ID, &a.PersonID, &typ, &a.Level, &cc, &temp, &from, &to); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		a.AuthorizerType = stringPtr(typ)
		a.CostCenter = stringPtr(cc)
		a.Temporary = temp == 1
		a.ValidFrom = timePtr(from)
		a.ValidTo = timePtr(to)
		out = append(out, &a)
	}
	return out, rows.Err()
}

var _ port.AssignmentRepository = (*AssignmentRepository)(nil)
