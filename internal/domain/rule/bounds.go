package rule

import (
	"sort"

	"github.com/garyjia/po-authorization/internal/domain/entity"
)

// Candidate is a rule with its effective amount range
type Candidate struct {
	Rule *entity.Rule
	Min  int64
	Max  int64
}

// Contains reports whether the amount lies within [Min, Max]
func (c Candidate) Contains(amount int64) bool {
	return amount >= c.Min && amount <= c.Max
}

// HasExplicitMin reports whether every rule in the group declares its own minimum
func HasExplicitMin(group []*entity.Rule) bool {
	if len(group) == 0 {
		return false
	}
	for _, r := range group {
		if r.MinAmountCents == nil {
			return false
		}
	}
	return true
}

// DeriveBounds computes effective ranges for one rule group.
// When any rule lacks an explicit minimum, rules are sorted by max and each
// min becomes the previous max + 1, starting at 0.
func DeriveBounds(group []*entity.Rule) []Candidate {
	out := make([]Candidate, 0, len(group))
	if HasExplicitMin(group) {
		for _, r := range group {
			out = append(out, Candidate{Rule: r, Min: *r.MinAmountCents, Max: r.MaxAmountCents})
		}
		sortCandidates(out)
		return out
	}

	sorted := append([]*entity.Rule(nil), group...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MaxAmountCents != sorted[j].MaxAmountCents {
			return sorted[i].MaxAmountCents < sorted[j].MaxAmountCents
		}
		return sorted[i].ID < sorted[j].ID
	})

	var next int64
	for _, r := range sorted {
		out = append(out, Candidate{Rule: r, Min: next, Max: r.MaxAmountCents})
		next = r.MaxAmountCents + 1
	}
	return out
}

// sortCandidates orders by smallest max, then smallest min, then id
func sortCandidates(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Max != cs[j].Max {
			return cs[i].Max < cs[j].Max
		}
		if cs[i].Min != cs[j].Min {
			return cs[i].Min < cs[j].Min
		}
		return cs[i].Rule.ID < cs[j].Rule.ID
	})
}

// GroupRules splits rules by (type, cost center, category), keeping input order within a group
func GroupRules(rules []*entity.Rule) map[entity.GroupKey][]*entity.Rule {
	groups := make(map[entity.GroupKey][]*entity.Rule)
	for _, r := range rules {
		k := r.Group()
		groups[k] = append(groups[k], r)
	}
	return groups
}
