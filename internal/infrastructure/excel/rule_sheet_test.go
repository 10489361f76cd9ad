package excel

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/po-authorization/internal/domain/entity"
)

func strPtr(s string) *string { return &s }

func workbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName(f.GetSheetName(0), RulesSheet))
	for i, row := range rows {
		row := row
		addr, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(RulesSheet, addr, &row))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return &buf
}

func TestDecode(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"BUSINESS_RULE_TYPE", "COST_CENTER", "CATEGORY", "MIN_AMOUNT", "MAX_AMOUNT", "COMPRAS", "FINANZAS AM", "ANY", "ACTIVE"},
		{"indirect", "AF25", "OFFICE", "", "5,000.00", "COMPRAS, 10", "FINANZAS AM, 30", "Dueño CC", "Y"},
		{},
		{"DIRECT", "AF25", "RAW", "0", "100", "", "30; FINANZAS AM, 40", "20", "no"},
	})

	rules, err := NewRuleSheet(zap.NewNop()).Decode(buf)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	first := rules[0]
	assert.Equal(t, entity.BusinessRuleIndirect, first.BusinessRuleType)
	assert.Nil(t, first.MinAmountCents)
	assert.Equal(t, int64(500000), first.MaxAmountCents)
	assert.True(t, first.Active)
	require.Len(t, first.ApproverSteps, 2)
	assert.Equal(t, "COMPRAS", first.ApproverSteps[0].TypeLabel())
	assert.Equal(t, 10, first.ApproverSteps[0].Level.Ordinal)
	assert.Equal(t, "FINANZAS AM", first.ApproverSteps[1].TypeLabel())

	second := rules[1]
	require.NotNil(t, second.MinAmountCents)
	assert.Equal(t, int64(0), *second.MinAmountCents)
	assert.False(t, second.Active)
	require.Len(t, second.ApproverSteps, 3)
	assert.Equal(t, "30", second.ApproverSteps[0].Level.Label)
	assert.Equal(t, "40", second.ApproverSteps[1].Level.Label)
	assert.Nil(t, second.ApproverSteps[2].AuthorizerType)
	assert.Equal(t, "20", second.ApproverSteps[2].Level.Label)
}

func TestDecode_CollectsRowProblems(t *testing.T) {
	buf := workbook(t, [][]interface{}{
		{"BUSINESS_RULE_TYPE", "COST_CENTER", "CATEGORY", "MIN_AMOUNT", "MAX_AMOUNT", "COMPRAS", "ACTIVE"},
		{"SIDEWAYS", "AF25", "OFFICE", "", "10", "", ""},
		{"DIRECT", "AF25", "OFFICE", "abc", "", "FINANZAS, 10", "maybe"},
	})

	_, err := NewRuleSheet(zap.NewNop()).Decode(buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, entity.ErrInvalidRuleSet)

	var rsErr *entity.RuleSetError
	require.True(t, errors.As(err, &rsErr))
	rows := make(map[int]int)
	for _, p := range rsErr.Problems {
		rows[p.Row]++
	}
	assert.Equal(t, 1, rows[2])
	assert.Equal(t, 4, rows[3])
}

func TestDecode_MissingColumns(t *testing.T) {
	buf := workbook(t, [][]interface{}{{"COST_CENTER", "CATEGORY"}})

	_, err := NewRuleSheet(zap.NewNop()).Decode(buf)
	assert.ErrorIs(t, err, entity.ErrInvalidRuleSet)
	assert.ErrorContains(t, err, "BUSINESS_RULE_TYPE")
}

func TestDecode_NotAWorkbook(t *testing.T) {
	_, err := NewRuleSheet(zap.NewNop()).Decode(bytes.NewReader([]byte("plain text")))
	assert.ErrorIs(t, err, entity.ErrInvalidRuleSet)
}

func TestEncode_RoundTrip(t *testing.T) {
	minCents := int64(100001)
	snapshot := &entity.RuleSetSnapshot{
		Version:   7,
		CreatedBy: "admin",
		Rules: []*entity.Rule{
			{
				BusinessRuleType: entity.BusinessRuleIndirect,
				CostCenter:       "AF25",
				Category:         "OFFICE",
				MinAmountCents:   &minCents,
				MaxAmountCents:   500000,
				Active:           true,
				ApproverSteps: []entity.ApproverStep{
					{AuthorizerType: strPtr("COMPRAS"), Level: entity.ParseLevel("10")},
					{AuthorizerType: strPtr("COMPRAS"), Level: entity.ParseLevel("30")},
					{Level: entity.ParseLevel("20")},
				},
			},
		},
	}

	codec := NewRuleSheet(zap.NewNop())
	var buf bytes.Buffer
	require.NoError(t, codec.Encode(&buf, snapshot, []string{"COMPRAS", "FINANZAS AM"}))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	version, err := f.GetCellValue(MetadataSheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "7", version)
	count, err := f.GetCellValue(MetadataSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "1", count)
	require.NoError(t, f.Close())

	rules, err := codec.Decode(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Len(t, rules, 1)
	r := rules[0]
	assert.Equal(t, int64(500000), r.MaxAmountCents)
	require.NotNil(t, r.MinAmountCents)
	assert.Equal(t, minCents, *r.MinAmountCents)
	require.Len(t, r.ApproverSteps, 3)
	assert.Equal(t, "COMPRAS", r.ApproverSteps[0].TypeLabel())
	assert.Equal(t, "10", r.ApproverSteps[0].Level.Label)
	assert.Equal(t, "30", r.ApproverSteps[1].Level.Label)
	assert.Nil(t, r.ApproverSteps[2].AuthorizerType)
}
