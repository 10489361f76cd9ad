package workflow

import (
	domainwf "github.com/garyjia/po-authorization/internal/domain/workflow"
)

// BuildStepStateMachine creates the state machine of one approval step.
// Only PENDING has outgoing transitions; every decision is final for the step.
func BuildStepStateMachine(initialState domainwf.State) (domainwf.StateMachine, error) {
	builder := domainwf.NewBuilder()

	builder.Configure(domainwf.StatePending).
		Permit(domainwf.TriggerApprove, domainwf.StateApproved).
		Permit(domainwf.TriggerReject, domainwf.StateRejected).
		Permit(domainwf.TriggerRequestInfo, domainwf.StateNeedsInfo)

	return builder.Build(initialState)
}
