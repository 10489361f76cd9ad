package entity

import "time"

// StepKind tags the two variants of approval step
type StepKind string

const (
	// StepKindOwner is the mandatory cost-center-owner checkpoint
	StepKindOwner StepKind = "OWNER"
	// StepKindRule is a checkpoint driven by the matched rule
	StepKindRule StepKind = "RULE"
)

// StepStatus is the status of a single approval step
type StepStatus string

const (
	StepStatusPending   StepStatus = "PENDING"
	StepStatusApproved  StepStatus = "APPROVED"
	StepStatusRejected  StepStatus = "REJECTED"
	StepStatusNeedsInfo StepStatus = "NEEDS_INFO"
)

// String returns the string representation of the status
func (s StepStatus) String() string {
	return string(s)
}

// ApprovalStep is one authorization checkpoint ("ticket") of a header
type ApprovalStep struct {
	ID                  int64      `json:"id"`
	HeaderID            int64      `json:"header_id"`
	Kind                StepKind   `json:"kind"`
	AuthorizerType      *string    `json:"authorizer_type,omitempty"`
	Level               Level      `json:"level"`
	CostCenter          string     `json:"cost_center"`
	Status              StepStatus `json:"status"`
	RejectionReasonCode string     `json:"rejection_reason_code,omitempty"`
	Comment             string     `json:"comment,omitempty"`
	Superseded          bool       `json:"superseded"`
	CreatedAt           time.Time  `json:"created_at"`
	ModifiedAt          time.Time  `json:"modified_at"`
	ModifiedBy          string     `json:"modified_by,omitempty"`
}

// TypeLabel returns the authorizer type or an empty string for owner steps
func (s *ApprovalStep) TypeLabel() string {
	if s.AuthorizerType == nil {
		return ""
	}
	return *s.AuthorizerType
}

// StepKey identifies a checkpoint within a header independent of its row
type StepKey struct {
	Kind           StepKind
	AuthorizerType string
	Level          string
}

// Key returns the dedup key of the step
func (s *ApprovalStep) Key() StepKey {
	return StepKey{Kind: s.Kind, AuthorizerType: s.TypeLabel(), Level: s.Level.Label}
}

// Counts reports whether the step takes part in generation and aggregation.
// Superseded steps and informational markers do not.
func (s *ApprovalStep) Counts() bool {
	return !s.Superseded && s.Status != StepStatusNeedsInfo
}

// ResolvedStep is a planned step together with the persons who may act on it
type ResolvedStep struct {
	Kind           StepKind `json:"kind"`
	AuthorizerType *string  `json:"authorizer_type,omitempty"`
	Level          Level    `json:"level"`
	CostCenter     string   `json:"cost_center"`
	Candidates     []Person `json:"candidates"`
}

// TypeLabel returns the authorizer type or an empty string for owner steps
func (s ResolvedStep) TypeLabel() string {
	if s.AuthorizerType == nil {
		return ""
	}
	return *s.AuthorizerType
}

// Key returns the dedup key of the planned step
func (s ResolvedStep) Key() StepKey {
	return StepKey{Kind: s.Kind, AuthorizerType: s.TypeLabel(), Level: s.Level.Label}
}
