package workflow

import (
	"fmt"
)

// StateMachineBuilder collects the transition table of a step machine
type StateMachineBuilder interface {
	// Configure returns the configuration of the given source state
	Configure(state State) StateConfiguration

	// Build freezes the table and returns a machine positioned at initialState
	Build(initialState State) (StateMachine, error)
}

// StateConfiguration declares the outgoing transitions of one state
type StateConfiguration interface {
	Permit(trigger Trigger, toState State) StateConfiguration
}

type transitionTable map[State]map[Trigger]State

type stateConfig struct {
	from  State
	table transitionTable
}

type stateMachineBuilder struct {
	table transitionTable
}

// NewBuilder creates an empty state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{table: make(transitionTable)}
}

// Configure panics on unknown states; tables are declared in code, not data
func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if _, ok := b.table[state]; !ok {
		b.table[state] = make(map[Trigger]State)
	}
	return &stateConfig{from: state, table: b.table}
}

func (b *stateMachineBuilder) Build(initialState State) (StateMachine, error) {
	if !initialState.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidState, initialState)
	}

	frozen := make(transitionTable, len(b.table))
	for from, triggers := range b.table {
		copied := make(map[Trigger]State, len(triggers))
		for trig, to := range triggers {
			copied[trig] = to
		}
		frozen[from] = copied
	}

	return &stateMachine{current: initialState, table: frozen}, nil
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}
	if c.from.IsTerminal() {
		panic(fmt.Sprintf("terminal state %s cannot have transitions", c.from))
	}
	c.table[c.from][trigger] = toState
	return c
}
