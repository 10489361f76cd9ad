package entity

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMissingCategory is returned when a header's category does not resolve in the catalog
	ErrMissingCategory = errors.New("missing category")

	// ErrUnknownCostCenter is returned when a header's cost center does not resolve in the catalog
	ErrUnknownCostCenter = errors.New("unknown cost center")

	// ErrNoMatchingRule is returned when no active rule matches the header's triple
	ErrNoMatchingRule = errors.New("no matching rule")

	// ErrAmountOutOfRange is returned when no candidate rule's range contains the amount
	ErrAmountOutOfRange = errors.New("amount out of range")

	// ErrInvalidRuleSet is returned when a rule set fails validation
	ErrInvalidRuleSet = errors.New("invalid rule set")

	// ErrRuleSetVersionConflict is returned when a rule set replacement loses the version race
	ErrRuleSetVersionConflict = errors.New("rule set version conflict")

	// ErrHeaderNotFound is returned when a header id does not exist
	ErrHeaderNotFound = errors.New("header not found")

	// ErrValidation is returned for malformed requests; nothing is persisted
	ErrValidation = errors.New("validation failed")

	// ErrNotPrivileged is returned when an actor requests a privileged operation
	ErrNotPrivileged = errors.New("actor is not privileged")
)

// RuleSetProblem is one validation finding for a rule row
type RuleSetProblem struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// RuleSetError collects every problem found while validating a rule set
type RuleSetError struct {
	Problems []RuleSetProblem
}

// Add records a problem for the given row (1-based; 0 for set-wide problems)
func (e *RuleSetError) Add(row int, format string, args ...interface{}) {
	e.Problems = append(e.Problems, RuleSetProblem{Row: row, Message: fmt.Sprintf(format, args...)})
}

// HasProblems reports whether any problem was recorded
func (e *RuleSetError) HasProblems() bool {
	return e != nil && len(e.Problems) > 0
}

func (e *RuleSetError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Row > 0 {
			parts = append(parts, fmt.Sprintf("row %d: %s", p.Row, p.Message))
		} else {
			parts = append(parts, p.Message)
		}
	}
	return fmt.Sprintf("%s: %s", ErrInvalidRuleSet, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is match ErrInvalidRuleSet
func (e *RuleSetError) Unwrap() error {
	return ErrInvalidRuleSet
}
