package lifecycle

// State represents a stage in the invoice payment lifecycle. Payment and
// verification are coincident: verification is the act of observing payment,
// so there is no separate paid-but-unverified state.
type State string

const (
	StateCreated  State = "CREATED"
	StateVerified State = "VERIFIED"
	StateRefunded State = "REFUNDED"
)

var validStates = map[State]bool{
	StateCreated:  true,
	StateVerified: true,
	StateRefunded: true,
}

var terminalStates = map[State]bool{
	StateRefunded: true,
}

// IsTerminal returns true if no further transitions are allowed from the state.
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsValid returns true if the state is a valid lifecycle state.
func (s State) IsValid() bool {
	return validStates[s]
}

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}
