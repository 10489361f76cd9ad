package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"go.uber.org/zap"
)

// CatalogRepository implements port.CatalogRepository over the master-data tables
type CatalogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *sql.DB, logger *zap.Logger) port.CatalogRepository {
	return &CatalogRepository{db: db, logger: logger}
}

func (r *CatalogRepository) UpsertCostCenter(ctx context.Context, cc *entity.CostCenter) error {
	return r.exec(ctx, "cost center", `
		INSERT INTO cost_centers (code, name) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name
	`, cc.Code, cc.Name)
}

func (r *CatalogRepository) UpsertCategory(ctx context.Context, c *entity.Category) error {
	return r.exec(ctx, "category", `
		INSERT INTO categories (code, name, business_rule_type) VALUES (?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			business_rule_type = COALESCE(excluded.business_rule_type, categories.business_rule_type)
	`, c.Code, c.Name, nullIfEmpty(string(c.BusinessRuleType)))
}

func (r *CatalogRepository) UpsertAuthorizerType(ctx context.Context, t *entity.AuthorizerType) error {
	return r.exec(ctx, "authorizer type", `
		INSERT INTO authorizer_types (code, name) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name
	`, t.Code, t.Name)
}

// UpsertLevel stores the level with the ordinal parsed at definition time
func (r *CatalogRepository) UpsertLevel(ctx context.Context, level entity.Level) error {
	if level.IsOwner() {
		return fmt.Errorf("%w: level %q is reserved", entity.ErrValidation, level.Label)
	}
	return r.exec(ctx, "level", `
		INSERT INTO levels (label, ordinal, ranked) VALUES (?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET ordinal = excluded.ordinal, ranked = excluded.ranked
	`, level.Label, level.Ordinal, boolToInt(level.Ranked))
}

// GetCostCenter returns nil when the code is unknown
func (r *CatalogRepository) GetCostCenter(ctx context.Context, code string) (*entity.CostCenter, error) {
	var cc entity.CostCenter
	err := executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT code, name FROM cost_centers WHERE code = ?`, code).Scan(&cc.Code, &cc.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get cost center", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get cost center: %w", err)
	}
	return &cc, nil
}

// GetCategory returns nil when the code is unknown
func (r *CatalogRepository) GetCategory(ctx context.Context, code string) (*entity.Category, error) {
	var (
		c   entity.Category
		brt sql.NullString
	)
	err := executor(ctx, r.db).QueryRowContext(ctx,
		`SELECT code, name, business_rule_type FROM categories WHERE code = ?`, code).Scan(&c.Code, &c.Name, &brt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get category", zap.String("code", code), zap.Error(err))
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	c.BusinessRuleType = entity.BusinessRuleType(brt.String)
	return &c, nil
}

func (r *CatalogRepository) ListCostCenters(ctx context.Context) ([]*entity.CostCenter, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `SELECT code, name FROM cost_centers ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cost centers: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.CostCenter, 0)
	for rows.Next() {
		var cc entity.CostCenter
		if err := rows.Scan(&cc.Code, &cc.Name); err != nil {
			return nil, fmt.Errorf("failed to scan cost center: %w", err)
		}
		out = append(out, &cc)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) ListCategories(ctx context.Context) ([]*entity.Category, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `SELECT code, name, business_rule_type FROM categories ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.Category, 0)
	for rows.Next() {
		var (
			c   entity.Category
			brt sql.NullString
		)
		if err := rows.Scan(&c.Code, &c.Name, &brt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		c.BusinessRuleType = entity.BusinessRuleType(brt.String)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (r *CatalogRepository) ListAuthorizerTypes(ctx context.Context) ([]*entity.AuthorizerType, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `SELECT code, name FROM authorizer_types ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("failed to list authorizer types: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.AuthorizerType, 0)
	for rows.Next() {
		var t entity.AuthorizerType
		if err := rows.Scan(&t.Code, &t.Name); err != nil {
			return nil, fmt.Errorf("failed to scan authorizer type: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

// ListLevels returns levels ranked first by ordinal, then unranked by label
func (r *CatalogRepository) ListLevels(ctx context.Context) ([]entity.Level, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx,
		`SELECT label, ordinal, ranked FROM levels ORDER BY ranked DESC, ordinal ASC, label ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list levels: %w", err)
	}
	defer rows.Close()

	out := make([]entity.Level, 0)
	for rows.Next() {
		var (
			l      entity.Level
			ranked int
		)
		if err := rows.Scan(&l.Label, &l.Ordinal, &ranked); err != nil {
			return nil, fmt.Errorf("failed to scan level: %w", err)
		}
		l.Ranked = ranked == 1
		out = append(out, l)
	}
	return out, rows.Err()
}

// BackfillCategoryTypes classifies every category whose type is still unset.
// Categories the classifier cannot place stay unset.
func (r *CatalogRepository) BackfillCategoryTypes(ctx context.Context, classify port.CategoryClassifier) (int, error) {
	updated := 0
	err := inTx(ctx, r.db, r.logger, func(ctx context.Context) error {
		rows, err := executor(ctx, r.db).QueryContext(ctx,
			`SELECT code, name FROM categories WHERE business_rule_type IS NULL ORDER BY code`)
		if err != nil {
			return fmt.Errorf("failed to list unclassified categories: %w", err)
		}

		type pending struct{ code, name string }
		todo := make([]pending, 0)
		for rows.Next() {
			var p pending
			if err := rows.Scan(&p.code, &p.name); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan category: %w", err)
			}
			todo = append(todo, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		for _, p := range todo {
			brt, ok := classify(p.name)
			if !ok {
				r.logger.Warn("Category could not be classified", zap.String("code", p.code), zap.String("name", p.name))
				continue
			}
			if _, err := executor(ctx, r.db).ExecContext(ctx,
				`UPDATE categories SET business_rule_type = ? WHERE code = ? AND business_rule_type IS NULL`,
				string(brt), p.code); err != nil {
				return fmt.Errorf("failed to classify category %s: %w", p.code, err)
			}
			updated++
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Category backfill failed", zap.Error(err))
		return 0, err
	}

	r.logger.Info("Category backfill completed", zap.Int("classified", updated))
	return updated, nil
}

func (r *CatalogRepository) exec(ctx context.Context, what, query string, args ...interface{}) error {
	if _, err := executor(ctx, r.db).ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("Failed to upsert "+what, zap.Error(err))
		return fmt.Errorf("failed to upsert %s: %w", what, err)
	}
	return nil
}

var _ port.CatalogRepository = (*CatalogRepository)(nil)
