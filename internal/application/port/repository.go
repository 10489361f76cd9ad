package port

import (
	"context"
	"time"

	"github.com/garyjia/po-authorization/internal/domain/entity"
)

// TransactionManager runs fn inside one database transaction carried by ctx
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// RuleRepository persists rule sets as immutable versioned snapshots
type RuleRepository interface {
	// LoadActive returns the highest version, or nil when no rule set was ever imported
	LoadActive(ctx context.Context) (*entity.RuleSetSnapshot, error)

	CurrentVersion(ctx context.Context) (int64, error)

	// ReplaceAll stores rules as a new version if expectedVersion is still current.
	// It fails with entity.ErrRuleSetVersionConflict otherwise.
	ReplaceAll(ctx context.Context, rules []*entity.Rule, actor string, expectedVersion int64) (int64, error)

	// GetRule looks a rule up by id across every version
	GetRule(ctx context.Context, id int64) (*entity.Rule, error)
}

// HeaderRepository defines persistence operations for purchase order headers
type HeaderRepository interface {
	Create(ctx context.Context, header *entity.Header) error
	GetByID(ctx context.Context, id int64) (*entity.Header, error)

	// Lock takes the header's write lock inside the current transaction and returns it
	Lock(ctx context.Context, id int64) (*entity.Header, error)

	SetResolution(ctx context.Context, id int64, businessRuleType entity.BusinessRuleType, ruleID *int64) error
	UpdateAggregateStatus(ctx context.Context, id int64, status entity.AggregateStatus, modifiedAt time.Time) error
}

// StepRepository defines persistence operations for approval steps
type StepRepository interface {
	Create(ctx context.Context, step *entity.ApprovalStep) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalStep, error)

	// ListByHeader returns every step of the header, superseded ones included, in creation order
	ListByHeader(ctx context.Context, headerID int64) ([]*entity.ApprovalStep, error)

	// ListPending returns the open, non-superseded steps of every header
	ListPending(ctx context.Context) ([]*entity.ApprovalStep, error)

	// TransitionIfPending moves a step out of PENDING. It reports false when the
	// step was no longer PENDING, which callers treat as a no-op.
	TransitionIfPending(ctx context.Context, id int64, to entity.StepStatus, actor, reasonCode, comment string, at time.Time) (bool, error)

	// Supersede flags a step as superseded; false when it already was
	Supersede(ctx context.Context, id int64, actor string, at time.Time) (bool, error)
}

// HistoryRepository is the append-only audit trail of step transitions
type HistoryRepository interface {
	Append(ctx context.Context, entry *entity.HistoryEntry) error
	ListByHeader(ctx context.Context, headerID int64) ([]*entity.HistoryEntry, error)
	HasRejection(ctx context.Context, headerID int64) (bool, error)
}

// AssignmentRepository stores persons and their authorizer assignments.
// The engine only reads assignments; Create exists for the delegation subsystem and tests.
type AssignmentRepository interface {
	UpsertPerson(ctx context.Context, person *entity.Person) error
	GetPersons(ctx context.Context, ids []string) ([]entity.Person, error)
	Create(ctx context.Context, assignment *entity.AuthorizerAssignment) error
	ListByLevel(ctx context.Context, level string) ([]*entity.AuthorizerAssignment, error)
	ListByPerson(ctx context.Context, personID string) ([]*entity.AuthorizerAssignment, error)
}

// CategoryClassifier derives a business rule type from a category name
type CategoryClassifier func(name string) (entity.BusinessRuleType, bool)

// CatalogRepository exposes the master-data catalogs the engine resolves against
type CatalogRepository interface {
	UpsertCostCenter(ctx context.Context, cc *entity.CostCenter) error
	UpsertCategory(ctx context.Context, category *entity.Category) error
	UpsertAuthorizerType(ctx context.Context, t *entity.AuthorizerType) error
	UpsertLevel(ctx context.Context, level entity.Level) error

	GetCostCenter(ctx context.Context, code string) (*entity.CostCenter, error)
	GetCategory(ctx context.Context, code string) (*entity.Category, error)

	ListCostCenters(ctx context.Context) ([]*entity.CostCenter, error)
	ListCategories(ctx context.Context) ([]*entity.Category, error)
	ListAuthorizerTypes(ctx context.Context) ([]*entity.AuthorizerType, error)
	ListLevels(ctx context.Context) ([]entity.Level, error)

	// BackfillCategoryTypes classifies categories that have no explicit type yet
	BackfillCategoryTypes(ctx context.Context, classify CategoryClassifier) (int, error)
}
