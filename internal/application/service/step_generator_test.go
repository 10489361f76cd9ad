package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/po-authorization/internal/domain/entity"
)

func approveAll(t *testing.T, f *fixture, headerID int64) {
	t.Helper()
	ctx := context.Background()
	steps, err := f.steps.ListByHeader(ctx, headerID)
	require.NoError(t, err)
	for _, s := range steps {
		if s.Counts() && s.Status == entity.StepStatusPending {
			ok, err := f.steps.TransitionIfPending(ctx, s.ID, entity.StepStatusApproved, "tester", "", "", testNow)
			require.NoError(t, err)
			require.True(t, ok)
		}
	}
}

func TestOpenNextLevel_WalksLevelsInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importRules(t, indirectRule(1000000, step("FINANZAS", "20"), step("COMPRAS", "10"), step("FINANZAS", "10")))
	h := f.newHeader(t, 100)
	snap, err := f.rules.Snapshot(ctx)
	require.NoError(t, err)
	r := snap.Rules[0]

	owner, err := f.generator.OpenOwnerLevel(ctx, h, "req-1", testNow)
	require.NoError(t, err)
	require.NotNil(t, owner)
	assert.Len(t, owner.Steps, 1)

	again, err := f.generator.OpenOwnerLevel(ctx, h, "req-1", testNow)
	require.NoError(t, err)
	assert.Nil(t, again)

	blocked, err := f.generator.OpenNextLevel(ctx, h, r, "req-1", testNow)
	require.NoError(t, err)
	assert.Nil(t, blocked, "owner step still pending")

	approveAll(t, f, h.ID)
	first, err := f.generator.OpenNextLevel(ctx, h, r, "req-1", testNow)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "10", first.Level.Label)
	require.Len(t, first.Steps, 2)
	assert.Equal(t, "COMPRAS", first.Steps[0].TypeLabel())
	assert.Equal(t, "FINANZAS", first.Steps[1].TypeLabel())

	approveAll(t, f, h.ID)
	second, err := f.generator.OpenNextLevel(ctx, h, r, "req-1", testNow)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, "20", second.Level.Label)

	approveAll(t, f, h.ID)
	done, err := f.generator.OpenNextLevel(ctx, h, r, "req-1", testNow)
	require.NoError(t, err)
	assert.Nil(t, done)

	steps, err := f.steps.ListByHeader(ctx, h.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 4)
	assert.Equal(t, entity.AggregateApproved, DeriveAggregate(steps))
}

func TestOpenNextLevel_StopsAfterRejection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.importRules(t, indirectRule(1000000, step("COMPRAS", "10")))
	h := f.newHeader(t, 100)
	snap, err := f.rules.Snapshot(ctx)
	require.NoError(t, err)

	owner, err := f.generator.OpenOwnerLevel(ctx, h, "req-1", testNow)
	require.NoError(t, err)
	_, err = f.steps.TransitionIfPending(ctx, owner.Steps[0].ID, entity.StepStatusRejected, "owner", "R01", "no", testNow)
	require.NoError(t, err)

	next, err := f.generator.OpenNextLevel(ctx, h, snap.Rules[0], "req-1", testNow)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestOpenLevel_ZeroCandidatesStillCreatesStep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.newHeader(t, 100)

	opened, err := f.generator.OpenOwnerLevel(ctx, h, "req-1", testNow)
	require.NoError(t, err)
	require.NotNil(t, opened)
	require.Len(t, opened.Resolved, 1)
	assert.Empty(t, opened.Resolved[0].Candidates)
	assert.Equal(t, []int64{opened.Steps[0].ID}, opened.StepIDs())
}

func TestDeriveAggregate(t *testing.T) {
	pending := &entity.ApprovalStep{Status: entity.StepStatusPending}
	approved := &entity.ApprovalStep{Status: entity.StepStatusApproved}
	rejected := &entity.ApprovalStep{Status: entity.StepStatusRejected}
	marker := &entity.ApprovalStep{Status: entity.StepStatusNeedsInfo}
	supersededReject := &entity.ApprovalStep{Status: entity.StepStatusRejected, Superseded: true}

	tests := []struct {
		name  string
		steps []*entity.ApprovalStep
		want  entity.AggregateStatus
	}{
		{"no steps", nil, entity.AggregatePending},
		{"only markers", []*entity.ApprovalStep{marker}, entity.AggregatePending},
		{"any rejected", []*entity.ApprovalStep{approved, pending, rejected}, entity.AggregateRejected},
		{"pending left", []*entity.ApprovalStep{approved, pending, marker}, entity.AggregatePending},
		{"all approved", []*entity.ApprovalStep{approved, approved, marker}, entity.AggregateApproved},
		{"superseded rejection ignored", []*entity.ApprovalStep{approved, supersededReject}, entity.AggregateApproved},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveAggregate(tt.steps))
		})
	}
}

func TestRecompute_StoresStatusAndTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	h := f.newHeader(t, 100)

	later := testNow.Add(time.Hour)
	change, err := f.aggregator.Recompute(ctx, h.ID, later)
	require.NoError(t, err)
	assert.False(t, change.Changed())

	stored, err := f.headers.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AggregatePending, stored.AggregateStatus)
	assert.True(t, stored.ModifiedAt.Equal(later), "modified_at = %v", stored.ModifiedAt)

	owner, err := f.generator.OpenOwnerLevel(ctx, h, "req-1", testNow)
	require.NoError(t, err)
	_, err = f.steps.TransitionIfPending(ctx, owner.Steps[0].ID, entity.StepStatusApproved, "owner", "", "", testNow)
	require.NoError(t, err)

	change, err = f.aggregator.Recompute(ctx, h.ID, testNow)
	require.NoError(t, err)
	assert.True(t, change.Changed())
	assert.Equal(t, entity.AggregatePending, change.Previous)
	assert.Equal(t, entity.AggregateApproved, change.Current)

	stored, err = f.headers.GetByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.AggregateApproved, stored.AggregateStatus)

	_, err = f.aggregator.Recompute(ctx, 424242, testNow)
	assert.ErrorIs(t, err, entity.ErrHeaderNotFound)
}
