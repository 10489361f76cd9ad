package excel

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/po-authorization/internal/application/port"
	"github.com/garyjia/po-authorization/internal/domain/entity"
	"github.com/garyjia/po-authorization/pkg/utils"
)

// Sheet and column names of the rule workbook
const (
	RulesSheet    = "Rules"
	MetadataSheet = "Metadata"

	ColBusinessRuleType = "BUSINESS_RULE_TYPE"
	ColCostCenter       = "COST_CENTER"
	ColCategory         = "CATEGORY"
	ColMinAmount        = "MIN_AMOUNT"
	ColMaxAmount        = "MAX_AMOUNT"
	ColActive           = "ACTIVE"

	// AnyTypeColumn holds steps that any authorizer type may take
	AnyTypeColumn = "ANY"
)

var fixedColumns = []string{ColBusinessRuleType, ColCostCenter, ColCategory, ColMinAmount, ColMaxAmount}

// legacyOwnerLabels are owner-step spellings found in old workbooks. The owner
// step is always generated, so such cells are dropped on import.
var legacyOwnerLabels = map[string]bool{
	utils.NormalizeLabel(entity.OwnerLevelLabel): true,
	"DUENO CC":                  true,
	"DUENO DE CENTRO DE COSTOS": true,
	"CC OWNER":                  true,
	"OWNER":                     true,
}

// RuleSheet reads and writes the rule workbook
type RuleSheet struct {
	logger *zap.Logger
}

// NewRuleSheet creates a new rule workbook codec
func NewRuleSheet(logger *zap.Logger) port.RuleSheetCodec {
	return &RuleSheet{logger: logger}
}

// Decode parses every data row of the rules sheet. Problems are collected per
// spreadsheet row and returned together as an *entity.RuleSetError.
func (s *RuleSheet) Decode(r io.Reader) ([]*entity.Rule, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open workbook: %v", entity.ErrInvalidRuleSet, err)
	}
	defer f.Close()

	sheet := RulesSheet
	if idx, err := f.GetSheetIndex(RulesSheet); err != nil || idx < 0 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", entity.ErrInvalidRuleSet)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read sheet %s: %v", entity.ErrInvalidRuleSet, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %s is empty", entity.ErrInvalidRuleSet, sheet)
	}

	layout, err := parseLayout(rows[0])
	if err != nil {
		return nil, err
	}

	rsErr := &entity.RuleSetError{}
	rules := make([]*entity.Rule, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		rowNum := i + 2
		if rule := layout.decodeRow(rowNum, row, rsErr); rule != nil {
			rules = append(rules, rule)
		}
	}

	if rsErr.HasProblems() {
		return nil, rsErr
	}

	s.logger.Info("Rule workbook decoded", zap.String("sheet", sheet), zap.Int("rules", len(rules)))
	return rules, nil
}

// Encode writes the snapshot in the layout Decode reads, plus a metadata sheet
func (s *RuleSheet) Encode(w io.Writer, snapshot *entity.RuleSetSnapshot, authorizerTypes []string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), RulesSheet); err != nil {
		return fmt.Errorf("failed to name rules sheet: %w", err)
	}

	typeCols := append([]string{}, authorizerTypes...)
	typeCols = append(typeCols, AnyTypeColumn)

	header := append(append([]string{}, fixedColumns...), typeCols...)
	header = append(header, ColActive)
	if err := writeRow(f, RulesSheet, 1, toCells(header)); err != nil {
		return err
	}

	for i, r := range snapshot.Rules {
		cells := []interface{}{
			string(r.BusinessRuleType),
			r.CostCenter,
			r.Category,
			"",
			utils.FormatCents(r.MaxAmountCents),
		}
		if r.MinAmountCents != nil {
			cells[3] = utils.FormatCents(*r.MinAmountCents)
		}

		for _, col := range typeCols {
			cells = append(cells, stepsCell(r, col))
		}
		cells = append(cells, activeLabel(r.Active))

		if err := writeRow(f, RulesSheet, i+2, cells); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(MetadataSheet); err != nil {
		return fmt.Errorf("failed to create metadata sheet: %w", err)
	}
	meta := [][]interface{}{
		{"VERSION", snapshot.Version},
		{"ROW_COUNT", len(snapshot.Rules)},
		{"CREATED_BY", snapshot.CreatedBy},
		{"EXPORTED_AT", time.Now().UTC().Format(time.RFC3339)},
	}
	for i, m := range meta {
		if err := writeRow(f, MetadataSheet, i+1, m); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	s.logger.Info("Rule workbook encoded", zap.Int64("version", snapshot.Version), zap.Int("rules", len(snapshot.Rules)))
	return nil
}

type typeColumn struct {
	index int
	code  string
}

type layout struct {
	fixed     map[string]int
	typeCols  []typeColumn
	activeCol int
}

func parseLayout(header []string) (*layout, error) {
	l := &layout{fixed: make(map[string]int), activeCol: -1}
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		switch upper := strings.ToUpper(name); upper {
		case ColBusinessRuleType, ColCostCenter, ColCategory, ColMinAmount, ColMaxAmount:
			l.fixed[upper] = i
		case ColActive:
			l.activeCol = i
		default:
			l.typeCols = append(l.typeCols, typeColumn{index: i, code: name})
		}
	}

	missing := make([]string, 0)
	for _, c := range fixedColumns {
		if _, ok := l.fixed[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", entity.ErrInvalidRuleSet, strings.Join(missing, ", "))
	}
	return l, nil
}

func (l *layout) decodeRow(rowNum int, row []string, rsErr *entity.RuleSetError) *entity.Rule {
	before := len(rsErr.Problems)
	r := &entity.Rule{
		CostCenter: cell(row, l.fixed[ColCostCenter]),
		Category:   cell(row, l.fixed[ColCategory]),
		Active:     true,
	}

	brt, err := entity.ParseBusinessRuleType(cell(row, l.fixed[ColBusinessRuleType]))
	if err != nil {
		rsErr.Add(rowNum, "%v", err)
	}
	r.BusinessRuleType = brt

	if raw := cell(row, l.fixed[ColMinAmount]); raw != "" {
		minCents, err := utils.ParseAmountCents(raw)
		if err != nil {
			rsErr.Add(rowNum, "min amount: %v", err)
		} else {
			r.MinAmountCents = &minCents
		}
	}

	maxCents, err := utils.ParseAmountCents(cell(row, l.fixed[ColMaxAmount]))
	if err != nil {
		rsErr.Add(rowNum, "max amount: %v", err)
	}
	r.MaxAmountCents = maxCents

	if l.activeCol >= 0 {
		if raw := cell(row, l.activeCol); raw != "" {
			active, ok := parseActive(raw)
			if !ok {
				rsErr.Add(rowNum, "invalid active flag %q", raw)
			}
			r.Active = active
		}
	}

	for _, col := range l.typeCols {
		raw := cell(row, col.index)
		if raw == "" {
			continue
		}
		for _, pair := range strings.Split(raw, ";") {
			step, skip, err := parsePair(col.code, pair)
			if err != nil {
				rsErr.Add(rowNum, "%v", err)
				continue
			}
			if !skip {
				r.ApproverSteps = append(r.ApproverSteps, step)
			}
		}
	}

	if len(rsErr.Problems) > before {
		return nil
	}
	return r
}

// parsePair reads "TYPE, LEVEL" or a bare "LEVEL" from a type column.
// skip is true for legacy owner cells.
func parsePair(column, raw string) (entity.ApproverStep, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return entity.ApproverStep{}, true, nil
	}

	typ, level := column, raw
	if i := strings.LastIndex(raw, ","); i >= 0 {
		typ, level = strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i+1:])
		if utils.NormalizeLabel(typ) != utils.NormalizeLabel(column) {
			return entity.ApproverStep{}, false, fmt.Errorf("type %q does not belong in column %q", typ, column)
		}
		typ = column
	}
	if level == "" {
		return entity.ApproverStep{}, false, fmt.Errorf("column %q has no level", column)
	}
	if legacyOwnerLabels[utils.NormalizeLabel(level)] {
		return entity.ApproverStep{}, true, nil
	}

	step := entity.ApproverStep{Level: entity.ParseLevel(level)}
	if !strings.EqualFold(typ, AnyTypeColumn) {
		t := typ
		step.AuthorizerType = &t
	}
	return step, false, nil
}

func stepsCell(r *entity.Rule, column string) string {
	pairs := make([]string, 0)
	for _, s := range r.ApproverSteps {
		switch {
		case s.AuthorizerType == nil && column == AnyTypeColumn:
			pairs = append(pairs, s.Level.Label)
		case s.AuthorizerType != nil && *s.AuthorizerType == column:
			pairs = append(pairs, column+", "+s.Level.Label)
		}
	}
	return strings.Join(pairs, "; ")
}

func parseActive(raw string) (bool, bool) {
	switch utils.NormalizeLabel(raw) {
	case "1", "Y", "YES", "TRUE", "SI", "X", "ACTIVE":
		return true, true
	case "0", "N", "NO", "FALSE", "INACTIVE":
		return false, true
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b, true
	}
	return false, false
}

func activeLabel(active bool) string {
	if active {
		return "Y"
	}
	return "N"
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func toCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	addr, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("invalid row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, addr, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}
