package workflow

// Trigger is a decision applied to a step
type Trigger string

const (
	TriggerApprove     Trigger = "APPROVE"
	TriggerReject      Trigger = "REJECT"
	TriggerRequestInfo Trigger = "REQUEST_INFO"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}
