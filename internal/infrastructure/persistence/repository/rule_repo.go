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

// RuleRepository implements port.RuleRepository on versioned rule_sets
type RuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRuleRepository creates a new rule repository
func NewRuleRepository(db *sql.DB, logger *zap.Logger) port.RuleRepository {
	return &RuleRepository{db: db, logger: logger}
}

const ruleColumns = `id, version, business_rule_type, cost_center, category,
	min_amount_cents, max_amount_cents, active, last_updated`

// CurrentVersion returns 0 when no rule set exists
func (r *RuleRepository) CurrentVersion(ctx context.Context) (int64, error) {
	var version int64
	err := executor(ctx, r.db).QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM rule_sets`).Scan(&version)
	if err != nil {
		r.logger.Error("Failed to read rule set version", zap.Error(err))
		return 0, fmt.Errorf("failed to read rule set version: %w", err)
	}
	return version, nil
}

// LoadActive returns the newest snapshot, or nil if none exists
func (r *RuleRepository) LoadActive(ctx context.Context) (*entity.RuleSetSnapshot, error) {
	var snap entity.RuleSetSnapshot
	err := executor(ctx, r.db).QueryRowContext(ctx, `
		SELECT version, created_by, created_at
		FROM rule_sets
		ORDER BY version DESC
		LIMIT 1
	`).Scan(&snap.Version, &snap.CreatedBy, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to load active rule set", zap.Error(err))
		return nil, fmt.Errorf("failed to load active rule set: %w", err)
	}

	rules, err := r.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules WHERE version = ? ORDER BY id`, snap.Version)
	if err != nil {
		return nil, err
	}
	snap.Rules = rules
	return &snap, nil
}

// GetRule returns a rule of any version, or nil
func (r *RuleRepository) GetRule(ctx context.Context, id int64) (*entity.Rule, error) {
	rules, err := r.queryRules(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return rules[0], nil
}

// ReplaceAll writes rules as version expectedVersion+1 in one transaction
func (r *RuleRepository) ReplaceAll(ctx context.Context, rules []*entity.Rule, actor string, expectedVersion int64) (int64, error) {
	var newVersion int64

	err := inTx(ctx, r.db, r.logger, func(ctx context.Context) error {
		current, err := r.CurrentVersion(ctx)
		if err != nil {
			return err
		}
		if current != expectedVersion {
			return fmt.Errorf("%w: expected version %d, current is %d", entity.ErrRuleSetVersionConflict, expectedVersion, current)
		}

		newVersion = current + 1
		now := time.Now().UTC()
		exec := executor(ctx, r.db)

		if _, err := exec.ExecContext(ctx,
			`INSERT INTO rule_sets (version, created_by, created_at, rule_count) VALUES (?, ?, ?, ?)`,
			newVersion, actor, now, len(rules),
		); err != nil {
			return fmt.Errorf("failed to insert rule set: %w", err)
		}

		for _, rule := range rules {
			res, err := exec.ExecContext(ctx, `
				INSERT INTO rules (
					version, business_rule_type, cost_center, category,
					min_amount_cents, max_amount_cents, active, last_updated
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			`,
				newVersion,
				string(rule.BusinessRuleType),
				rule.CostCenter,
				rule.Category,
				nullableInt64(rule.MinAmountCents),
				rule.MaxAmountCents,
				boolToInt(rule.Active),
				now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert rule: %w", err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("failed to get last insert id: %w", err)
			}

			for pos, step := range rule.ApproverSteps {
				if _, err := exec.ExecContext(ctx, `
					INSERT INTO rule_steps (rule_id, position, authorizer_type, level_label, level_ordinal, level_ranked)
					VALUES (?, ?, ?, ?, ?, ?)
				`, id, pos, nullableString(step.AuthorizerType), step.Level.Label, step.Level.Ordinal, boolToInt(step.Level.Ranked)); err != nil {
					return fmt.Errorf("failed to insert rule step: %w", err)
				}
			}

			rule.ID = id
			rule.Version = newVersion
			rule.LastUpdated = now
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to replace rule set",
			zap.Int64("expected_version", expectedVersion),
			zap.String("actor", actor),
			zap.Error(err))
		return 0, err
	}

	r.logger.Info("Rule set replaced",
		zap.Int64("version", newVersion),
		zap.Int("rules", len(rules)),
		zap.String("actor", actor))
	return newVersion, nil
}

func (r *RuleRepository) queryRules(ctx context.Context, query string, args ...interface{}) ([]*entity.Rule, error) {
	rows, err := executor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to query rules", zap.Error(err))
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}

	rules := make([]*entity.Rule, 0)
	byID := make(map[int64]*entity.Rule)
	for rows.Next() {
		var (
			rule   entity.Rule
			brt    string
			minAmt sql.NullInt64
			active int
		)
		if err := rows.Scan(&rule.ID, &rule.Version, &brt, &rule.CostCenter, &rule.Category,
			&minAmt, &rule.MaxAmountCents, &active, &rule.LastUpdated); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rule.BusinessRuleType = entity.BusinessRuleType(brt)
		rule.MinAmountCents = int64Ptr(minAmt)
		rule.Active = active == 1
		rules = append(rules, &rule)
		byID[rule.ID] = &rule
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(rules) == 0 {
		return rules, nil
	}
	if err := r.attachSteps(ctx, rules[0].Version, byID); err != nil {
		return nil, err
	}
	return rules, nil
}

// attachSteps loads the approver steps of every rule in byID; rules share one version
func (r *RuleRepository) attachSteps(ctx context.Context, version int64, byID map[int64]*entity.Rule) error {
	rows, err := executor(ctx, r.db).QueryContext(ctx, `
		SELECT s.rule_id, s.authorizer_type, s.level_label, s.level_ordinal, s.level_ranked
		FROM rule_steps s
		JOIN rules r ON r.id = s.rule_id
		WHERE r.version = ?
		ORDER BY s.rule_id, s.position
	`, version)
	if err != nil {
		return fmt.Errorf("failed to query rule steps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ruleID int64
			typ    sql.NullString
			step   entity.ApproverStep
			ranked int
		)
		if err := rows.Scan(&ruleID, &typ, &step.Level.Label, &step.Level.Ordinal, &ranked); err != nil {
			return fmt.Errorf("failed to scan rule step: %w", err)
		}
		rule, ok := byID[ruleID]
		if !ok {
			continue
		}
		step.AuthorizerType = stringPtr(typ)
		step.Level.Ranked = ranked == 1
		rule.ApproverSteps = append(rule.ApproverSteps, step)
	}
	return rows.Err()
}

var _ port.RuleRepository = (*RuleRepository)(nil)
