package lifecycle

// Trigger represents an event that can advance the invoice lifecycle.
type Trigger string

const (
	// TriggerVerify records an observed ledger deposit covering the invoice
	// amount.
	TriggerVerify Trigger = "VERIFY"

	// TriggerRefund disburses the collected balance back to the creator's
	// chosen account.
	TriggerRefund Trigger = "REFUND"
)

// String returns the string representation of the trigger.
func (t Trigger) String() string {
	return string(t)
}
