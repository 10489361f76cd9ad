package entity

import "time"

// Person is someone who can act on approval steps
type Person struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	LarkOpenID string `json:"lark_open_id,omitempty"`
}

// AuthorizerAssignment grants a person authority over a (type, level, cost center).
// A nil AuthorizerType applies to any type; a nil CostCenter is global.
type AuthorizerAssignment struct {
	ID             int64      `json:"id"`
	PersonID       string     `json:"person_id"`
	AuthorizerType *string    `json:"authorizer_type,omitempty"`
	Level          string     `json:"level"`
	CostCenter     *string    `json:"cost_center,omitempty"`
	Temporary      bool       `json:"temporary"`
	ValidFrom      *time.Time `json:"valid_from,omitempty"`
	ValidTo        *time.Time `json:"valid_to,omitempty"`
}

// ActiveAt reports whether the assignment is in force at t.
// Permanent assignments always are; temporary ones only inside their window.
func (a *AuthorizerAssignment) ActiveAt(t time.Time) bool {
	if !a.Temporary {
		return true
	}
	if a.ValidFrom == nil || a.ValidTo == nil {
		return false
	}
	return !t.Before(*a.ValidFrom) && !t.After(*a.ValidTo)
}

// MatchesType reports whether the assignment covers the given authorizer type
func (a *AuthorizerAssignment) MatchesType(authorizerType *string) bool {
	if a.AuthorizerType == nil {
		return true
	}
	return authorizerType != nil && *a.AuthorizerType == *authorizerType
}

// IsGlobal reports whether the assignment applies to every cost center
func (a *AuthorizerAssignment) IsGlobal() bool {
	return a.CostCenter == nil
}

// Covers reports whether the assignment lets its person act on the step at t
func (a *AuthorizerAssignment) Covers(step *ApprovalStep, t time.Time) bool {
	if a.Level != step.Level.Label {
		return false
	}
	if !a.MatchesType(step.AuthorizerType) {
		return false
	}
	if a.CostCenter != nil && *a.CostCenter != step.CostCenter {
		return false
	}
	return a.ActiveAt(t)
}
