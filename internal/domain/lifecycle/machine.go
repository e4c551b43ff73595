package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/ledgerpay/invoicer/internal/domain/entity"
)

// GuardFunc evaluates whether a transition should be allowed.
type GuardFunc func(ctx context.Context) bool

// Machine tracks an invoice's current lifecycle state and validates
// transitions. It is a value type: callers build one per operation from the
// loaded record and fire at most one trigger under the per-invoice lock.
type Machine struct {
	current     State
	transitions map[State]map[Trigger][]transition
}

type transition struct {
	toState State
	guard   GuardFunc
}

// Builder assembles the transition table for a Machine.
type Builder struct {
	transitions map[State]map[Trigger][]transition
}

// NewBuilder creates an empty lifecycle machine builder.
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[State]map[Trigger][]transition)}
}

// Permit allows a trigger to transition from one state to another.
func (b *Builder) Permit(from State, trigger Trigger, to State) *Builder {
	return b.PermitIf(from, trigger, to, nil)
}

// PermitIf allows a trigger to transition if the guard condition passes.
func (b *Builder) PermitIf(from State, trigger Trigger, to State, guard GuardFunc) *Builder {
	if !from.IsValid() || !to.IsValid() {
		panic(fmt.Sprintf("invalid lifecycle state in transition %s -> %s", from, to))
	}
	if b.transitions[from] == nil {
		b.transitions[from] = make(map[Trigger][]transition)
	}
	b.transitions[from][trigger] = append(b.transitions[from][trigger], transition{toState: to, guard: guard})
	return b
}

// Build creates a machine positioned at the given initial state.
func (b *Builder) Build(initial State) *Machine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial lifecycle state: %s", initial))
	}
	return &Machine{current: initial, transitions: b.transitions}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.current
}

// CanFire returns true if the trigger has at least one configured transition
// from the current state.
func (m *Machine) CanFire(trigger Trigger) bool {
	return len(m.transitions[m.current][trigger]) > 0
}

// Fire attempts to execute the trigger, advancing to the new state if a
// configured transition's guard passes.
func (m *Machine) Fire(ctx context.Context, trigger Trigger) error {
	candidates := m.transitions[m.current][trigger]
	if len(candidates) == 0 {
		return fmt.Errorf("%w: cannot fire %s from state %s", ErrInvalidTransition, trigger, m.current)
	}
	for _, t := range candidates {
		if t.guard == nil || t.guard(ctx) {
			m.current = t.toState
			return nil
		}
	}
	return fmt.Errorf("%w: trigger %s from state %s", ErrGuardFailed, trigger, m.current)
}

// PermittedTriggers returns all triggers with configured transitions from the
// current state.
func (m *Machine) PermittedTriggers() []Trigger {
	table := m.transitions[m.current]
	triggers := make([]Trigger, 0, len(table))
	for trigger := range table {
		triggers = append(triggers, trigger)
	}
	return triggers
}

// StateOf derives an invoice's lifecycle state from its record.
func StateOf(inv *entity.Invoice) State {
	switch {
	case inv.Refunded:
		return StateRefunded
	case inv.Paid:
		return StateVerified
	default:
		return StateCreated
	}
}

// ForInvoice builds the standard invoice lifecycle machine positioned at the
// invoice's current state. Verification of an unpaid invoice is guarded by
// expiry (relative to now); a refund requires an observed payment, which the
// state ordering already enforces.
func ForInvoice(inv *entity.Invoice, now time.Time) *Machine {
	b := NewBuilder()
	b.PermitIf(StateCreated, TriggerVerify, StateVerified, func(context.Context) bool {
		return !inv.Expired(now)
	})
	b.Permit(StateVerified, TriggerRefund, StateRefunded)
	return b.Build(StateOf(inv))
}
