package rule

import (
	"fmt"

	"github.com/garyjia/po-authorization/internal/domain/entity"
)

// Query holds the header attributes a rule is matched against
type Query struct {
	BusinessRuleType entity.BusinessRuleType
	CostCenter       string
	Category         string
	NetAmountCents   int64
}

// Evaluate selects exactly one active rule for the query. It has no side effects.
func Evaluate(snapshot *entity.RuleSetSnapshot, q Query) (*entity.Rule, error) {
	if snapshot == nil {
		return nil, fmt.Errorf("%w: no active rule set", entity.ErrNoMatchingRule)
	}

	group := make([]*entity.Rule, 0)
	key := entity.GroupKey{BusinessRuleType: q.BusinessRuleType, CostCenter: q.CostCenter, Category: q.Category}
	for _, r := range snapshot.Rules {
		if r.Active && r.Group() == key {
			group = append(group, r)
		}
	}
	if len(group) == 0 {
		return nil, fmt.Errorf("%w: %s/%s/%s", entity.ErrNoMatchingRule, q.BusinessRuleType, q.CostCenter, q.Category)
	}

	matches := make([]Candidate, 0, 1)
	for _, c := range DeriveBounds(group) {
		if c.Contains(q.NetAmountCents) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: %d for %s/%s/%s", entity.ErrAmountOutOfRange, q.NetAmountCents, q.BusinessRuleType, q.CostCenter, q.Category)
	}

	sortCandidates(matches)
	return matches[0].Rule, nil
}
