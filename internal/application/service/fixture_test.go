package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/internal/domain/event"
	"github.com/garyjia/po-authorization/internal/infrastructure/persistence/repository"
	"github.com/garyjia/po-authorization/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/po-authorization/pkg/database"
)

type nopLogger struct{}

func (nopLogger) Info(msg string, keysAndValues ...interface{})  {}
func (nopLogger) Error(msg string, keysAndValues ...interface{}) {}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, evts ...*event.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evts...)
}

func (p *recordingPublisher) ofType(t event.Type) []*event.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*event.Event, 0)
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	headers     port.HeaderRepository
	steps       port.StepRepository
	history     port.HistoryRepository
	assignments port.AssignmentRepository
	catalog     port.CatalogRepository
	ruleRepo    port.RuleRepository
	tx          port.TransactionManager

	directory  port.AuthorizerDirectory
	rules      RuleService
	generator  StepGenerator
	aggregator HeaderAggregator
	submission SubmissionService
	publisher  *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "service.db"), MaxOpenConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunEmbedded())

	f := &fixture{
		headers:     repository.NewHeaderRepository(db.DB, logger),
		steps:       repository.NewStepRepository(db.DB, logger),
		history:     repository.NewHistoryRepository(db.DB, logger),
		assignments: repository.NewAssignmentRepository(db.DB, logger),
		catalog:     repository.NewCatalogRepository(db.DB, logger),
		ruleRepo:    repository.NewRuleRepository(db.DB, logger),
		tx:          sqlite.NewDB(db.DB, logger),
		publisher:   &recordingPublisher{},
	}
	f.directory = NewAuthorizerDirectory(f.assignments, nopLogger{})
	f.rules = NewRuleService(f.ruleRepo, f.catalog, nil, nil, f.publisher, nopLogger{})
	f.generator = NewStepGenerator(f.steps, f.history, f.directory, nopLogger{})
	f.aggregator = NewHeaderAggregator(f.headers, f.steps, nopLogger{})
	f.submission = NewSubmissionService(f.headers, f.steps, f.catalog, f.tx, f.rules, f.generator, f.aggregator, f.publisher, nopLogger{})

	f.seedCatalog(t)
	return f
}

func (f *fixture) seedCatalog(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.catalog.UpsertCostCenter(ctx, &entity.CostCenter{Code: "AF25", Name: "Plant"}))
	require.NoError(t, f.catalog.UpsertCategory(ctx, &entity.Category{Code: "OFFICE", Name: "Indirecto oficina", BusinessRuleType: entity.BusinessRuleIndirect}))
	require.NoError(t, f.catalog.UpsertAuthorizerType(ctx, &entity.AuthorizerType{Code: "COMPRAS"}))
	require.NoError(t, f.catalog.UpsertAuthorizerType(ctx, &entity.AuthorizerType{Code: "FINANZAS"}))
	for _, l := range []string{"10", "20", "30"} {
		require.NoError(t, f.catalog.UpsertLevel(ctx, entity.ParseLevel(l)))
	}
}

func (f *fixture) assign(t *testing.T, personID string, authorizerType *string, level string, costCenter *string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.assignments.UpsertPerson(ctx, &entity.Person{ID: personID, Name: personID, LarkOpenID: "ou_" + personID}))
	require.NoError(t, f.assignments.Create(ctx, &entity.AuthorizerAssignment{
		PersonID:       personID,
		AuthorizerType: authorizerType,
		Level:          level,
		CostCenter:     costCenter,
	}))
}

func (f *fixture) importRules(t *testing.T, rules ...*entity.Rule) int64 {
	t.Helper()
	ctx := context.Background()
	current, err := f.ruleRepo.CurrentVersion(ctx)
	require.NoError(t, err)
	version, err := f.rules.Replace(ctx, rules, "admin", current)
	require.NoError(t, err)
	return version
}

func (f *fixture) newHeader(t *testing.T, amountCents int64) *entity.Header {
	t.Helper()
	h := &entity.Header{RequesterID: "req-1", CostCenter: "AF25", Category: "OFFICE", NetAmountCents: amountCents}
	require.NoError(t, f.submission.CreateHeader(context.Background(), h))
	return h
}

func strPtr(s string) *string { return &s }

func indirectRule(maxCents int64, steps ...entity.ApproverStep) *entity.Rule {
	return &entity.Rule{
		BusinessRuleType: entity.BusinessRuleIndirect,
		CostCenter:       "AF25",
		Category:         "OFFICE",
		MaxAmountCents:   maxCents,
		ApproverSteps:    steps,
		Active:           true,
	}
}

func step(authorizerType, level string) entity.ApproverStep {
	s := entity.ApproverStep{Level: entity.Level{Label: level}}
	if authorizerType != "" {
		s.AuthorizerType = strPtr(authorizerType)
	}
	return s
}

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
