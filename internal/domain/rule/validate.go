package rule

import (
	"sort"

	"github.com/garyjia/po-authorization/internal/domain/entity"
)

// Catalog exposes the master data a rule set is validated against
type Catalog interface {
	HasCostCenter(code string) bool
	HasCategory(code string) bool
	HasAuthorizerType(code string) bool
	Level(label string) (entity.Level, bool)
}

// Validate checks a candidate rule set and resolves every step level to its catalog value.
// Rows are reported 1-based in input order.
func Validate(rules []*entity.Rule, catalog Catalog) error {
	rsErr := &entity.RuleSetError{}
	if len(rules) == 0 {
		rsErr.Add(0, "rule set is empty")
		return rsErr
	}

	rowOf := make(map[*entity.Rule]int, len(rules))
	for i, r := range rules {
		row := i + 1
		rowOf[r] = row
		validateRule(row, r, catalog, rsErr)
	}

	active := make([]*entity.Rule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	for key, group := range GroupRules(active) {
		validateGroup(key, group, rowOf, rsErr)
	}

	if rsErr.HasProblems() {
		sort.SliceStable(rsErr.Problems, func(i, j int) bool { return rsErr.Problems[i].Row < rsErr.Problems[j].Row })
		return rsErr
	}
	return nil
}

func validateRule(row int, r *entity.Rule, catalog Catalog, rsErr *entity.RuleSetError) {
	if !r.BusinessRuleType.IsValid() {
		rsErr.Add(row, "invalid business rule type %q", r.BusinessRuleType)
	}
	if r.CostCenter == "" || !catalog.HasCostCenter(r.CostCenter) {
		rsErr.Add(row, "unknown cost center %q", r.CostCenter)
	}
	if r.Category == "" || !catalog.HasCategory(r.Category) {
		rsErr.Add(row, "unknown category %q", r.Category)
	}
	if r.MaxAmountCents < 0 {
		rsErr.Add(row, "max amount must not be negative")
	}
	if r.MinAmountCents != nil {
		if *r.MinAmountCents < 0 {
			rsErr.Add(row, "min amount must not be negative")
		}
		if *r.MinAmountCents > r.MaxAmountCents {
			rsErr.Add(row, "min amount %d exceeds max amount %d", *r.MinAmountCents, r.MaxAmountCents)
		}
	}

	for i := range r.ApproverSteps {
		step := &r.ApproverSteps[i]
		if step.AuthorizerType != nil && !catalog.HasAuthorizerType(*step.AuthorizerType) {
			rsErr.Add(row, "unknown authorizer type %q", *step.AuthorizerType)
		}
		if step.Level.Label == "" {
			rsErr.Add(row, "approver step %d has no level", i+1)
			continue
		}
		if step.Level.IsOwner() {
			rsErr.Add(row, "level %q is reserved for the owner step", step.Level.Label)
			continue
		}
		lvl, ok := catalog.Level(step.Level.Label)
		if !ok {
			rsErr.Add(row, "unknown level %q", step.Level.Label)
			continue
		}
		step.Level = lvl
	}
}

func validateGroup(key entity.GroupKey, group []*entity.Rule, rowOf map[*entity.Rule]int, rsErr *entity.RuleSetError) {
	explicit := 0
	for _, r := range group {
		if r.MinAmountCents != nil {
			explicit++
		}
	}
	if explicit > 0 && explicit < len(group) {
		rsErr.Add(rowOf[group[0]], "group %s/%s/%s mixes explicit and derived min amounts", key.BusinessRuleType, key.CostCenter, key.Category)
		return
	}

	bounds := DeriveBounds(group)
	if explicit == 0 {
		for i := 1; i < len(bounds); i++ {
			if bounds[i].Max == bounds[i-1].Max {
				rsErr.Add(rowOf[bounds[i].Rule], "duplicate max amount %d in group %s/%s/%s", bounds[i].Max, key.BusinessRuleType, key.CostCenter, key.Category)
			}
		}
		return
	}

	sort.SliceStable(bounds, func(i, j int) bool { return bounds[i].Min < bounds[j].Min })
	for i := 1; i < len(bounds); i++ {
		prev, cur := bounds[i-1], bounds[i]
		switch {
		case cur.Min <= prev.Max:
			rsErr.Add(rowOf[cur.Rule], "range [%d, %d] overlaps [%d, %d]", cur.Min, cur.Max, prev.Min, prev.Max)
		case cur.Min > prev.Max+1:
			rsErr.Add(rowOf[cur.Rule], "gap between %d and %d", prev.Max, cur.Min)
		}
	}
}
