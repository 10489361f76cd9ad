package entity

import (
	"fmt"
	"strings"
	"time"
)

// BusinessRuleType classifies which rule group applies to a purchase order
type BusinessRuleType string

const (
	BusinessRuleIndirect     BusinessRuleType = "INDIRECT"
	BusinessRuleDirect       BusinessRuleType = "DIRECT"
	BusinessRuleIntercompany BusinessRuleType = "INTERCOMPANY"
)

// String returns the string representation of the business rule type
func (t BusinessRuleType) String() string {
	return string(t)
}

// IsValid returns true if the type is one of the known classifications
func (t BusinessRuleType) IsValid() bool {
	switch t {
	case BusinessRuleIndirect, BusinessRuleDirect, BusinessRuleIntercompany:
		return true
	default:
		return false
	}
}

// ParseBusinessRuleType parses a classification label, ignoring case and surrounding spaces
func ParseBusinessRuleType(s string) (BusinessRuleType, error) {
	t := BusinessRuleType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown business rule type %q", s)
	}
	return t, nil
}

// ApproverStep is one configured checkpoint of a rule
type ApproverStep struct {
	AuthorizerType *string `json:"authorizer_type,omitempty"`
	Level          Level   `json:"level"`
}

// TypeLabel returns the authorizer type or an empty string when unset
func (s ApproverStep) TypeLabel() string {
	if s.AuthorizerType == nil {
		return ""
	}
	return *s.AuthorizerType
}

// Rule maps a (type, cost center, category, amount range) to an ordered set of approvers.
// Amounts are in minor currency units.
type Rule struct {
	ID               int64            `json:"id"`
	Version          int64            `json:"version"`
	BusinessRuleType BusinessRuleType `json:"business_rule_type"`
	CostCenter       string           `json:"cost_center"`
	Category         string           `json:"category"`
	MinAmountCents   *int64           `json:"min_amount_cents,omitempty"`
	MaxAmountCents   int64            `json:"max_amount_cents"`
	ApproverSteps    []ApproverStep   `json:"approver_steps"`
	Active           bool             `json:"active"`
	LastUpdated      time.Time        `json:"last_updated"`
}

// GroupKey identifies the rule group sharing one amount axis
type GroupKey struct {
	BusinessRuleType BusinessRuleType
	CostCenter       string
	Category         string
}

// Group returns the group this rule partitions
func (r *Rule) Group() GroupKey {
	return GroupKey{
		BusinessRuleType: r.BusinessRuleType,
		CostCenter:       r.CostCenter,
		Category:         r.Category,
	}
}

// RuleSetSnapshot is one immutable, versioned rule set
type RuleSetSnapshot struct {
	Version   int64     `json:"version"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	Rules     []*Rule   `json:"rules"`
}

// RuleByID returns the rule with the given id, or nil
func (s *RuleSetSnapshot) RuleByID(id int64) *Rule {
	if s == nil {
		return nil
	}
	for _, r := range s.Rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}
