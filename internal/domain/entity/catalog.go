package entity

// CostCenter is a cost center master-data entry
type CostCenter struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Category is a purchase category with its explicit rule classification
type Category struct {
	Code             string           `json:"code"`
	Name             string           `json:"name"`
	BusinessRuleType BusinessRuleType `json:"business_rule_type,omitempty"`
}

// AuthorizerType is a recognized approver role
type AuthorizerType struct {
	Code string `json:"code"`
	Name string `json:"name"`
}
