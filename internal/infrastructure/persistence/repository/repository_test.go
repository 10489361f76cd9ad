package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/po-authorization/pkg/database"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "repo.db"), MaxOpenConns: 4}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.NewMigrator(db, logger).RunEmbedded())
	return db.DB
}

func strPtr(s string) *string { return &s }

func sampleRule(max int64, steps ...entity.ApproverStep) *entity.Rule {
	return &entity.Rule{
		BusinessRuleType: entity.BusinessRuleIndirect,
		CostCenter:       "AF25",
		Category:         "OFFICE",
		MaxAmountCents:   max,
		ApproverSteps:    steps,
		Active:           true,
	}
}

func TestRuleRepository_ReplaceAllAndLoad(t *testing.T) {
	ctx := context.Background()
	repo := NewRuleRepository(setupDB(t), zap.NewNop())

	snap, err := repo.LoadActive(ctx)
	require.NoError(t, err)
	assert.Nil(t, snap)

	zero := int64(0)
	first := sampleRule(500000,
		entity.ApproverStep{AuthorizerType: strPtr("COMPRAS"), Level: entity.ParseLevel("10")},
		entity.ApproverStep{Level: entity.ParseLevel("30")},
	)
	first.MinAmountCents = &zero

	version, err := repo.ReplaceAll(ctx, []*entity.Rule{first, sampleRule(900000)}, "admin", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)
	assert.NotZero(t, first.ID)

	snap, err = repo.LoadActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, "admin", snap.CreatedBy)
	require.Len(t, snap.Rules, 2)

	loaded := snap.RuleByID(first.ID)
	require.NotNil(t, loaded)
	require.NotNil(t, loaded.MinAmountCents)
	assert.Equal(t, int64(0), *loaded.MinAmountCents)
	require.Len(t, loaded.ApproverSteps, 2)
	assert.Equal(t, "COMPRAS", *loaded.ApproverSteps[0].AuthorizerType)
	assert.Equal(t, 10, loaded.ApproverSteps[0].Level.Ordinal)
	assert.True(t, loaded.ApproverSteps[0].Level.Ranked)
	assert.Nil(t, loaded.ApproverSteps[1].AuthorizerType)
}

func TestRuleRepository_VersionConflict(t *testing.T) {
	ctx := context.Background()
	repo := NewRuleRepository(setupDB(t), zap.NewNop())

	_, err := repo.ReplaceAll(ctx, []*entity.Rule{sampleRule(100)}, "a", 0)
	require.NoError(t, err)

	_, err = repo.ReplaceAll(ctx, []*entity.Rule{sampleRule(200)}, "b", 0)
	assert.ErrorIs(t, err, entity.ErrRuleSetVersionConflict)

	v, err := repo.ReplaceAll(ctx, []*entity.Rule{sampleRule(300)}, "b", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestRuleRepository_OldRulesStayReachable(t *testing.T) {
	ctx := context.Background()
	repo := NewRuleRepository(setupDB(t), zap.NewNop())

	old := sampleRule(100, entity.ApproverStep{AuthorizerType: strPtr("COMPRAS"), Level: entity.ParseLevel("10")})
	_, err := repo.ReplaceAll(ctx, []*entity.Rule{old}, "a", 0)
	require.NoError(t, err)
	_, err = repo.ReplaceAll(ctx, []*entity.Rule{sampleRule(999)}, "a", 1)
	require.NoError(t, err)

	got, err := repo.GetRule(ctx, old.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.Version)
	assert.Len(t, got.ApproverSteps, 1)

	missing, err := repo.GetRule(ctx, 4242)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func createHeader(t *testing.T, repo interface {
	Create(context.Context, *entity.Header) error
}) *entity.Header {
	t.Helper()
	h := &entity.Header{RequesterID: "req-1", CostCenter: "AF25", Category: "OFFICE", NetAmountCents: 300000}
	require.NoError(t, repo.Create(context.Background(), h))
	return h
}

func TestHeaderRepository(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	repo := NewHeaderRepository(db, zap.NewNop())

	h := createHeader(t, repo)
	assert.NotZero(t, h.ID)
	assert.Equal(t, entity.AggregatePending, h.AggregateStatus)

	locked, err := repo.Lock(ctx, h.ID)
	require.NoError(t, err)
	require.NotNil(t, locked)

	none, err := repo.Lock(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, repo.SetResolution(ctx, h.ID, entity.BusinessRuleIndirect, nil))
	require.NoError(t, repo.UpdateAggregateStatus(ctx, h.ID, entity.AggregateApproved, time.Now()))

	got, err := repo.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BusinessRuleIndirect, got.BusinessRuleType)
	assert.Equal(t, entity.AggregateApproved, got.AggregateStatus)
	assert.Nil(t, got.RuleID)

	err = repo.UpdateAggregateStatus(ctx, 999, entity.AggregateApproved, time.Now())
	assert.ErrorIs(t, err, entity.ErrHeaderNotFound)
}

func TestStepRepository_TransitionIfPending(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	h := createHeader(t, NewHeaderRepository(db, zap.NewNop()))
	repo := NewStepRepository(db, zap.NewNop())

	step := &entity.ApprovalStep{
		HeaderID:   h.ID,
		Kind:       entity.StepKindOwner,
		Level:      entity.OwnerLevel(),
		CostCenter: "AF25",
		Status:     entity.StepStatusPending,
	}
	require.NoError(t, repo.Create(ctx, step))

	ok, err := repo.TransitionIfPending(ctx, step.ID, entity.StepStatusApproved, "ana", "IGNORED", "fine", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.TransitionIfPending(ctx, step.ID, entity.StepStatusRejected, "bob", "PRICE", "", time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "second transition is a no-op")

	got, err := repo.GetByID(ctx, step.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StepStatusApproved, got.Status)
	assert.Equal(t, "ana", got.ModifiedBy)
	assert.Empty(t, got.RejectionReasonCode)
	assert.True(t, got.Level.IsOwner())
	assert.Nil(t, got.AuthorizerType)
}

func TestStepRepository_LiveKeyIsUnique(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	h := createHeader(t, NewHeaderRepository(db, zap.NewNop()))
	repo := NewStepRepository(db, zap.NewNop())

	mk := func(status entity.StepStatus) *entity.ApprovalStep {
		return &entity.ApprovalStep{
			HeaderID:       h.ID,
			Kind:           entity.StepKindRule,
			AuthorizerType: strPtr("COMPRAS"),
			Level:          entity.ParseLevel("10"),
			CostCenter:     "AF25",
			Status:         status,
		}
	}

	first := mk(entity.StepStatusPending)
	require.NoError(t, repo.Create(ctx, first))
	assert.Error(t, repo.Create(ctx, mk(entity.StepStatusPending)))

	marker := mk(entity.StepStatusNeedsInfo)
	require.NoError(t, repo.Create(ctx, marker), "info markers sit beside the live step")

	ok, err := repo.Supersede(ctx, first.ID, "req-1", time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.Supersede(ctx, first.ID, "req-1", time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Create(ctx, mk(entity.StepStatusPending)), "superseded step frees the key")

	pending, err := repo.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	all, err := repo.ListByHeader(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	h := createHeader(t, NewHeaderRepository(db, zap.NewNop()))
	steps := NewStepRepository(db, zap.NewNop())
	step := &entity.ApprovalStep{HeaderID: h.ID, Kind: entity.StepKindOwner, Level: entity.OwnerLevel(), CostCenter: "AF25", Status: entity.StepStatusPending}
	require.NoError(t, steps.Create(ctx, step))

	repo := NewHistoryRepository(db, zap.NewNop())
	has, err := repo.HasRejection(ctx, h.ID)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, repo.Append(ctx, &entity.HistoryEntry{StepID: step.ID, HeaderID: h.ID, ToStatus: entity.StepStatusPending, Actor: "system"}))
	require.NoError(t, repo.Append(ctx, &entity.HistoryEntry{StepID: step.ID, HeaderID: h.ID, FromStatus: entity.StepStatusPending, ToStatus: entity.StepStatusRejected, Actor: "ana", Comment: "too pricey"}))

	entries, err := repo.ListByHeader(ctx, h.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entity.StepStatusRejected, entries[1].ToStatus)
	assert.Equal(t, "too pricey", entries[1].Comment)

	has, err = repo.HasRejection(ctx, h.ID)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestHistoryRepository_RollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	db := setupDB(t)
	h := createHeader(t, NewHeaderRepository(db, zap.NewNop()))
	steps := NewStepRepository(db, zap.NewNop())
	repo := NewHistoryRepository(db, zap.NewNop())

	tx := sqlite.NewDB(db, zap.NewNop())
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		step := &entity.ApprovalStep{HeaderID: h.ID, Kind: entity.StepKindOwner, Level: entity.OwnerLevel(), CostCenter: "AF25", Status: entity.StepStatusPending}
		if err := steps.Create(ctx, step); err != nil {
			return err
		}
		if err := repo.Append(ctx, &entity.HistoryEntry{StepID: step.ID, HeaderID: h.ID, ToStatus: entity.StepStatusPending, Actor: "system"}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	entries, err := repo.ListByHeader(ctx, h.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAssignmentRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewAssignmentRepository(setupDB(t), zap.NewNop())

	require.NoError(t, repo.UpsertPerson(ctx, &entity.Person{ID: "ana", Name: "Ana", LarkOpenID: "ou_1"}))
	require.NoError(t, repo.UpsertPerson(ctx, &entity.Person{ID: "bob", Name: "Bob"}))
	require.NoError(t, repo.UpsertPerson(ctx, &entity.Person{ID: "ana", Name: "Ana Ruiz", LarkOpenID: "ou_1"}))

	from := time.Now().Add(-time.Hour)
	to := time.Now().Add(time.Hour)
	require.NoError(t, repo.Create(ctx, &entity.AuthorizerAssignment{PersonID: "ana", AuthorizerType: strPtr("COMPRAS"), Level: "10", CostCenter: strPtr("AF25")}))
	require.NoError(t, repo.Create(ctx, &entity.AuthorizerAssignment{PersonID: "bob", Level: "10", Temporary: true, ValidFrom: &from, ValidTo: &to}))

	byLevel, err := repo.ListByLevel(ctx, "10")
	require.NoError(t, err)
	require.Len(t, byLevel, 2)
	assert.Equal(t, "ana", byLevel[0].PersonID)
	assert.Nil(t, byLevel[1].AuthorizerType)
	assert.Nil(t, byLevel[1].CostCenter)
	require.NotNil(t, byLevel[1].ValidTo)
	assert.True(t, byLevel[1].ActiveAt(time.Now()))

	byPerson, err := repo.ListByPerson(ctx, "ana")
	require.NoError(t, err)
	assert.Len(t, byPerson, 1)

	persons, err := repo.GetPersons(ctx, []string{"bob", "ana", "ghost"})
	require.NoError(t, err)
	require.Len(t, persons, 2)
	assert.Equal(t, "Ana Ruiz", persons[0].Name)

	empty, err := repo.GetPersons(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCatalogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository(setupDB(t), zap.NewNop())

	require.NoError(t, repo.UpsertCostCenter(ctx, &entity.CostCenter{Code: "AF25", Name: "Plant"}))
	require.NoError(t, repo.UpsertCategory(ctx, &entity.Category{Code: "OFFICE", Name: "Indirect office supplies"}))
	require.NoError(t, repo.UpsertCategory(ctx, &entity.Category{Code: "STEEL", Name: "Raw steel", BusinessRuleType: entity.BusinessRuleDirect}))
	require.NoError(t, repo.UpsertCategory(ctx, &entity.Category{Code: "MISC", Name: "Misc"}))
	require.NoError(t, repo.UpsertAuthorizerType(ctx, &entity.AuthorizerType{Code: "COMPRAS", Name: "Purchasing"}))
	require.NoError(t, repo.UpsertLevel(ctx, entity.ParseLevel("30")))
	require.NoError(t, repo.UpsertLevel(ctx, entity.ParseLevel("BOARD")))
	require.NoError(t, repo.UpsertLevel(ctx, entity.ParseLevel("10")))
	assert.ErrorIs(t, repo.UpsertLevel(ctx, entity.OwnerLevel()), entity.ErrValidation)

	cc, err := repo.GetCostCenter(ctx, "AF25")
	require.NoError(t, err)
	assert.Equal(t, "Plant", cc.Name)
	missing, err := repo.GetCostCenter(ctx, "ZZ")
	require.NoError(t, err)
	assert.Nil(t, missing)

	levels, err := repo.ListLevels(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 3)
	assert.Equal(t, []string{"10", "30", "BOARD"}, []string{levels[0].Label, levels[1].Label, levels[2].Label})

	n, err := repo.BackfillCategoryTypes(ctx, func(name string) (entity.BusinessRuleType, bool) {
		if strings.HasPrefix(strings.ToLower(name), "indirect") {
			return entity.BusinessRuleIndirect, true
		}
		return "", false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	office, err := repo.GetCategory(ctx, "OFFICE")
	require.NoError(t, err)
	assert.Equal(t, entity.BusinessRuleIndirect, office.BusinessRuleType)

	misc, err := repo.GetCategory(ctx, "MISC")
	require.NoError(t, err)
	assert.Equal(t, entity.BusinessRuleType(""), misc.BusinessRuleType)

	require.NoError(t, repo.UpsertCategory(ctx, &entity.Category{Code: "STEEL", Name: "Raw steel bars"}))
	steel, err := repo.GetCategory(ctx, "STEEL")
	require.NoError(t, err)
	assert.Equal(t, entity.BusinessRuleDirect, steel.BusinessRuleType, "explicit type survives a rename")
}
