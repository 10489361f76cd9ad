package rule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/po-authorization/internal/domain/entity"
)

func strPtr(s string) *string { return &s }
func i64(v int64) *int64     { return &v }

func step(typ, level string) entity.ApproverStep {
	return entity.ApproverStep{AuthorizerType: strPtr(typ), Level: entity.ParseLevel(level)}
}

func indirectRule(id, max int64, steps ...entity.ApproverStep) *entity.Rule {
	return &entity.Rule{
		ID:               id,
		BusinessRuleType: entity.BusinessRuleIndirect,
		CostCenter:       "AF25",
		Category:         "OFFICE",
		MaxAmountCents:   max,
		ApproverSteps:    steps,
		Active:           true,
	}
}

func TestDeriveBounds_Partition(t *testing.T) {
	group := []*entity.Rule{
		indirectRule(3, 100000),
		indirectRule(1, 500000),
		indirectRule(2, 2500000),
		indirectRule(4, 10000000),
	}

	bounds := DeriveBounds(group)
	require.Len(t, bounds, 4)
	assert.Equal(t, int64(0), bounds[0].Min)
	for i := 1; i < len(bounds); i++ {
		assert.Equal(t, bounds[i-1].Max+1, bounds[i].Min, "no gap and no overlap at %d", i)
		assert.Greater(t, bounds[i].Max, bounds[i-1].Max, "strictly increasing at %d", i)
	}
}

func TestDeriveBounds_ExplicitMin(t *testing.T) {
	a := indirectRule(1, 999)
	a.MinAmountCents = i64(0)
	b := indirectRule(2, 5000)
	b.MinAmountCents = i64(1000)

	bounds := DeriveBounds([]*entity.Rule{b, a})
	require.Len(t, bounds, 2)
	assert.Equal(t, int64(1), bounds[0].Rule.ID)
	assert.Equal(t, int64(1000), bounds[1].Min)
}

func snapshotOf(rules ...*entity.Rule) *entity.RuleSetSnapshot {
	return &entity.RuleSetSnapshot{Version: 1, Rules: rules}
}

func TestEvaluate(t *testing.T) {
	small := indirectRule(10, 500000)
	large := indirectRule(11, 5000000)
	inactive := indirectRule(12, 100)
	inactive.Active = false
	snap := snapshotOf(large, small, inactive)

	base := Query{BusinessRuleType: entity.BusinessRuleIndirect, CostCenter: "AF25", Category: "OFFICE"}

	tests := []struct {
		name    string
		amount  int64
		wantID  int64
		wantErr error
	}{
		{"zero amount", 0, 10, nil},
		{"upper bound inclusive", 500000, 10, nil},
		{"derived min of second rule", 500001, 11, nil},
		{"top of range", 5000000, 11, nil},
		{"above every range", 5000001, 0, entity.ErrAmountOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := base
			q.NetAmountCents = tt.amount
			got, err := Evaluate(snap, q)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestEvaluate_NoMatchingRule(t *testing.T) {
	snap := snapshotOf(indirectRule(1, 1000))

	_, err := Evaluate(snap, Query{BusinessRuleType: entity.BusinessRuleDirect, CostCenter: "AF25", Category: "OFFICE"})
	assert.ErrorIs(t, err, entity.ErrNoMatchingRule)

	_, err = Evaluate(nil, Query{})
	assert.ErrorIs(t, err, entity.ErrNoMatchingRule)
}

func TestEvaluate_TieBreakOnOverlap(t *testing.T) {
	wide := indirectRule(1, 9000)
	wide.MinAmountCents = i64(0)
	narrow := indirectRule(2, 5000)
	narrow.MinAmountCents = i64(1000)
	narrower := indirectRule(3, 5000)
	narrower.MinAmountCents = i64(2000)

	got, err := Evaluate(snapshotOf(wide, narrower, narrow), Query{
		BusinessRuleType: entity.BusinessRuleIndirect, CostCenter: "AF25", Category: "OFFICE", NetAmountCents: 3000,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ID, "smallest max, then smallest min")
}

func TestEvaluate_IsPure(t *testing.T) {
	snap := snapshotOf(indirectRule(5, 100), indirectRule(6, 200), indirectRule(7, 300))
	q := Query{BusinessRuleType: entity.BusinessRuleIndirect, CostCenter: "AF25", Category: "OFFICE", NetAmountCents: 150}

	first, err := Evaluate(snap, q)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := Evaluate(snap, q)
		require.NoError(t, err)
		assert.Equal(t, first.ID, again.ID)
	}
}

func TestOrderedSteps(t *testing.T) {
	r := indirectRule(1, 500000,
		step("GERENTE OPS", "30"),
		step("COMPRAS", "10"),
		step("FINANZAS AM", "30"),
		step("COMPRAS", "10"),
		step("AUDIT", "BOARD"),
		step("LEGAL", "2"),
	)

	got := OrderedSteps(r)
	labels := make([]string, 0, len(got))
	for _, s := range got {
		labels = append(labels, s.TypeLabel()+"/"+s.Level.Label)
	}
	assert.Equal(t, []string{"LEGAL/2", "COMPRAS/10", "FINANZAS AM/30", "GERENTE OPS/30", "AUDIT/BOARD"}, labels)
}

func TestLevelsAndStepsAt(t *testing.T) {
	r := indirectRule(1, 500000, step("COMPRAS", "10"), step("FINANZAS AM", "30"), step("GERENTE OPS", "30"))

	levels := Levels(r)
	require.Len(t, levels, 2)
	assert.Equal(t, "10", levels[0].Label)
	assert.Equal(t, "30", levels[1].Label)

	assert.Len(t, StepsAt(r, levels[0]), 1)
	assert.Len(t, StepsAt(r, levels[1]), 2)
	assert.Empty(t, StepsAt(r, entity.OwnerLevel()))
}

type fakeCatalog struct {
	levels map[string]entity.Level
}

func (f fakeCatalog) HasCostCenter(code string) bool { return code == "AF25" || code == "BX01" }
func (f fakeCatalog) HasCategory(code string) bool   { return code == "OFFICE" }
func (f fakeCatalog) HasAuthorizerType(code string) bool {
	return code == "COMPRAS" || code == "FINANZAS AM" || code == "GERENTE OPS"
}
func (f fakeCatalog) Level(label string) (entity.Level, bool) {
	l, ok := f.levels[label]
	return l, ok
}

func newFakeCatalog() fakeCatalog {
	return fakeCatalog{levels: map[string]entity.Level{
		"10": {Label: "10", Ordinal: 10, Ranked: true},
		"30": {Label: "30", Ordinal: 30, Ranked: true},
	}}
}

func TestValidate_OK(t *testing.T) {
	r := indirectRule(0, 500000, entity.ApproverStep{AuthorizerType: strPtr("COMPRAS"), Level: entity.Level{Label: "10"}})
	require.NoError(t, Validate([]*entity.Rule{r, indirectRule(0, 900000)}, newFakeCatalog()))
	assert.True(t, r.ApproverSteps[0].Level.Ranked, "level resolved from catalog")
	assert.Equal(t, 10, r.ApproverSteps[0].Level.Ordinal)
}

func TestValidate_Problems(t *testing.T) {
	badType := indirectRule(0, 100, step("NOPE", "10"))
	badLevel := indirectRule(0, 200, step("COMPRAS", "99"))
	owner := indirectRule(0, 300, entity.ApproverStep{Level: entity.OwnerLevel()})
	dupMax := indirectRule(0, 300)
	badCC := indirectRule(0, 100)
	badCC.CostCenter = "ZZ99"

	err := Validate([]*entity.Rule{badType, badLevel, owner, dupMax, badCC}, newFakeCatalog())
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrInvalidRuleSet)

	var rsErr *entity.RuleSetError
	require.True(t, errors.As(err, &rsErr))
	msg := rsErr.Error()
	assert.Contains(t, msg, `unknown authorizer type "NOPE"`)
	assert.Contains(t, msg, `unknown level "99"`)
	assert.Contains(t, msg, "reserved for the owner step")
	assert.Contains(t, msg, "duplicate max amount 300")
	assert.Contains(t, msg, `unknown cost center "ZZ99"`)
}

func TestValidate_ExplicitMinGroups(t *testing.T) {
	a := indirectRule(0, 999)
	a.MinAmountCents = i64(0)
	b := indirectRule(0, 5000)
	b.MinAmountCents = i64(900)
	err := Validate([]*entity.Rule{a, b}, newFakeCatalog())
	assert.ErrorContains(t, err, "overlaps")

	b.MinAmountCents = i64(2000)
	err = Validate([]*entity.Rule{a, b}, newFakeCatalog())
	assert.ErrorContains(t, err, "gap between 999 and 2000")

	b.MinAmountCents = nil
	err = Validate([]*entity.Rule{a, b}, newFakeCatalog())
	assert.ErrorContains(t, err, "mixes explicit and derived")

	b.MinAmountCents = i64(1000)
	assert.NoError(t, Validate([]*entity.Rule{a, b}, newFakeCatalog()))
}

func TestValidate_Empty(t *testing.T) {
	assert.ErrorIs(t, Validate(nil, newFakeCatalog()), entity.ErrInvalidRuleSet)
}
