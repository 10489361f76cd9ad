package workflow

import (
	"context"
	"fmt"
)

// StateMachine tracks one step's status and validates decisions against it
type StateMachine interface {
	State() State

	// Fire moves the machine along trigger, or fails with ErrInvalidTransition
	Fire(ctx context.Context, trigger Trigger) error
}

type stateMachine struct {
	current State
	table   transitionTable
}

func (m *stateMachine) State() State {
	return m.current
}

func (m *stateMachine) Fire(ctx context.Context, trigger Trigger) error {
	to, ok := m.table[m.current][trigger]
	if !ok {
		return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = to
	return nil
}
