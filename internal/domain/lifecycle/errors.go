package lifecycle

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not permitted in the
	// current state.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")

	// ErrGuardFailed is returned when every candidate transition's guard
	// rejects the trigger.
	ErrGuardFailed = errors.New("lifecycle guard rejected transition")
)
