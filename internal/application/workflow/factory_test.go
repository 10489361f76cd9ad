package workflow

import (
	"context"
	"errors"
	"testing"

	domainwf "github.com/garyjia/po-authorization/internal/domain/workflow"
)

func TestBuildStepStateMachine(t *testing.T) {
	tests := []struct {
		from    domainwf.State
		trigger domainwf.Trigger
		want    domainwf.State
		ok      bool
	}{
		{domainwf.StatePending, domainwf.TriggerApprove, domainwf.StateApproved, true},
		{domainwf.StatePending, domainwf.TriggerReject, domainwf.StateRejected, true},
		{domainwf.StatePending, domainwf.TriggerRequestInfo, domainwf.StateNeedsInfo, true},
		{domainwf.StateApproved, domainwf.TriggerReject, "", false},
		{domainwf.StateRejected, domainwf.TriggerApprove, "", false},
		{domainwf.StateNeedsInfo, domainwf.TriggerApprove, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.trigger), func(t *testing.T) {
			sm, err := BuildStepStateMachine(tt.from)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			err = sm.Fire(context.Background(), tt.trigger)
			if tt.ok {
				if err != nil || sm.State() != tt.want {
					t.Errorf("Fire(%s) = %s, %v; want %s", tt.trigger, sm.State(), err, tt.want)
				}
				return
			}
			if !errors.Is(err, domainwf.ErrInvalidTransition) {
				t.Errorf("Fire(%s) error = %v, want ErrInvalidTransition", tt.trigger, err)
			}
			if sm.State() != tt.from {
				t.Errorf("State() = %s after refused trigger, want %s", sm.State(), tt.from)
			}
		})
	}

	if _, err := BuildStepStateMachine("BOGUS"); err == nil {
		t.Error("expected error for unknown state")
	}
}
