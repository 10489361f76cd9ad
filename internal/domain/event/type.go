package event

// Type identifies the type of domain event
type Type string

const (
	TypeHeaderSubmitted Type = "header.submitted"
	TypeHeaderApproved  Type = "header.approved"
	TypeHeaderRejected  Type = "header.rejected"
	TypeLevelOpened     Type = "level.opened"
	TypeInfoRequested   Type = "info.requested"
	TypeRuleSetReplaced Type = "ruleset.replaced"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeHeaderSubmitted,
		TypeHeaderApproved,
		TypeHeaderRejected,
		TypeLevelOpened,
		TypeInfoRequested,
		TypeRuleSetReplaced:
		return true
	default:
		return false
	}
}
