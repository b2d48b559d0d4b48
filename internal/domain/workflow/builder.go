package workflow

import (
	"context"
	"fmt"
)

// GuardFunc is a function that evaluates whether a transition should be allowed
type GuardFunc func(ctx context.Context) bool

// StateMachineBuilder builds a configured state machine
type StateMachineBuilder interface {
	// Configure returns a state configuration for the given state.
	// Terminal states cannot be configured.
	Configure(state State) StateConfiguration

	// Validate reports a cycle in the configured lifecycle graph
	Validate() error

	// Edges lists the configured transitions, grouped by source state in configuration order
	Edges() []Edge

	// Build creates a new state machine instance with the given initial state.
	// It panics when the graph does not validate.
	Build(initialState State) StateMachine
}

// StateConfiguration configures transitions for a specific state
type StateConfiguration interface {
	// Permit allows a trigger to transition to the target state
	Permit(trigger Trigger, toState State) StateConfiguration

	// PermitIf allows a trigger to transition to the target state if the guard condition passes
	PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration
}

// Edge is one configured transition
type Edge struct {
	From    State
	Trigger Trigger
	To      State
	Guarded bool
}

type transition struct {
	toState State
	guard   GuardFunc
}

type stateConfig struct {
	transitions map[Trigger][]transition
	order       []Trigger
}

type stateMachineBuilder struct {
	states         []State
	configurations map[State]*stateConfig
}

// NewBuilder creates a new state machine builder
func NewBuilder() StateMachineBuilder {
	return &stateMachineBuilder{
		configurations: make(map[State]*stateConfig),
	}
}

func (b *stateMachineBuilder) Configure(state State) StateConfiguration {
	if !state.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", state))
	}
	if state.IsTerminal() {
		panic(fmt.Sprintf("terminal state %q cannot have transitions", state))
	}

	config, exists := b.configurations[state]
	if !exists {
		config = &stateConfig{transitions: make(map[Trigger][]transition)}
		b.configurations[state] = config
		b.states = append(b.states, state)
	}
	return config
}

func (b *stateMachineBuilder) Edges() []Edge {
	var edges []Edge
	for _, from := range b.states {
		config := b.configurations[from]
		for _, trigger := range config.order {
			for _, t := range config.transitions[trigger] {
				edges = append(edges, Edge{From: from, Trigger: trigger, To: t.toState, Guarded: t.guard != nil})
			}
		}
	}
	return edges
}

// Validate walks the graph depth first; a claim may never return to a state it left.
func (b *stateMachineBuilder) Validate() error {
	const (
		unvisited = iota
		visiting
		done
	)
	marks := make(map[State]int, len(b.states))

	var visit func(s State) error
	visit = func(s State) error {
		switch marks[s] {
		case visiting:
			return fmt.Errorf("lifecycle cycle through %q", s)
		case done:
			return nil
		}
		marks[s] = visiting
		if config, ok := b.configurations[s]; ok {
			for _, trigger := range config.order {
				for _, t := range config.transitions[trigger] {
					if err := visit(t.toState); err != nil {
						return err
					}
				}
			}
		}
		marks[s] = done
		return nil
	}

	for _, s := range b.states {
		if err := visit(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *stateMachineBuilder) Build(initialState State) StateMachine {
	if !initialState.IsValid() {
		panic(fmt.Sprintf("invalid initial state: %s", initialState))
	}
	if err := b.Validate(); err != nil {
		panic(err.Error())
	}

	// Machines built from the same builder never share transition slices
	configs := make(map[State]*stateConfig, len(b.configurations))
	for state, config := range b.configurations {
		cp := &stateConfig{
			transitions: make(map[Trigger][]transition, len(config.transitions)),
			order:       append([]Trigger(nil), config.order...),
		}
		for trigger, ts := range config.transitions {
			cp.transitions[trigger] = append([]transition(nil), ts...)
		}
		configs[state] = cp
	}

	return &stateMachine{
		currentState:   initialState,
		configurations: configs,
	}
}

func (c *stateConfig) Permit(trigger Trigger, toState State) StateConfiguration {
	return c.PermitIf(trigger, toState, nil)
}

func (c *stateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) StateConfiguration {
	if !toState.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", toState))
	}

	if _, seen := c.transitions[trigger]; !seen {
		c.order = append(c.order, trigger)
	}
	c.transitions[trigger] = append(c.transitions[trigger], transition{
		toState: toState,
		guard:   guard,
	})
	return c
}
