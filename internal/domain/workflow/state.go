package workflow

// State is the status of a single approval step
type State string

const (
	StatePending   State = "PENDING"
	StateApproved  State = "APPROVED"
	StateRejected  State = "REJECTED"
	StateNeedsInfo State = "NEEDS_INFO"
)

var validStates = map[State]bool{
	StatePending:   true,
	StateApproved:  true,
	StateRejected:  true,
	StateNeedsInfo: true,
}

// NEEDS_INFO markers never move; they are superseded instead
var terminalStates = map[State]bool{
	StateApproved:  true,
	StateRejected:  true,
	StateNeedsInfo: true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a known step state
func (s State) IsValid() bool {
	return validStates[s]
}
