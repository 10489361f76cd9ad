package entity

import "time"

// AggregateStatus is the header-level status derived from its steps
type AggregateStatus string

const (
	AggregatePending  AggregateStatus = "PENDING"
	AggregateApproved AggregateStatus = "APPROVED"
	AggregateRejected AggregateStatus = "REJECTED"
)

// String returns the string representation of the aggregate status
func (s AggregateStatus) String() string {
	return string(s)
}

// IsFinal reports whether the header reached a decision
func (s AggregateStatus) IsFinal() bool {
	return s == AggregateApproved || s == AggregateRejected
}

// Header is a purchase order header. The requester subsystem owns it;
// the engine writes only RuleID, BusinessRuleType and AggregateStatus.
type Header struct {
	ID               int64            `json:"id"`
	RequesterID      string           `json:"requester_id"`
	CostCenter       string           `json:"cost_center"`
	Category         string           `json:"category"`
	BusinessRuleType BusinessRuleType `json:"business_rule_type,omitempty"`
	NetAmountCents   int64            `json:"net_amount_cents"`
	AggregateStatus  AggregateStatus  `json:"aggregate_status"`
	RuleID           *int64           `json:"rule_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	ModifiedAt       time.Time        `json:"modified_at"`
}
