package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/ledgerpay/invoicer/internal/account"
)

// TransferErrorKind classifies a rejected ledger transfer.
type TransferErrorKind string

const (
	TransferBadFee            TransferErrorKind = "BadFee"
	TransferInsufficientFunds TransferErrorKind = "InsufficientFunds"
	TransferInvalidToken      TransferErrorKind = "InvalidToken"
	TransferOther             TransferErrorKind = "Other"
)

// TransferError is a transfer rejection reported by the ledger itself, as
// opposed to a transport failure reaching it.
type TransferError struct {
	Kind    TransferErrorKind
	Message string
}

func (e *TransferError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ledger transfer failed: %s", e.Kind)
	}
	return fmt.Sprintf("ledger transfer failed: %s: %s", e.Kind, e.Message)
}

// AsTransferError extracts a ledger transfer rejection from err, if present.
func AsTransferError(err error) (*TransferError, bool) {
	var te *TransferError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// Client is the narrow interface the core consumes from an external ledger.
// Both calls are fallible remote operations with no exactly-once guarantee: a
// Transfer that times out may or may not have landed, and only a later
// BalanceOf resolves it. Neither call is ever issued as a side effect of a
// read path.
type Client interface {
	// BalanceOf returns the balance at an account in base token units.
	BalanceOf(ctx context.Context, ident account.Identifier) (uint64, error)

	// Transfer moves amount from the service's subaccount to the destination
	// and returns the ledger block height that recorded it. The ledger
	// deducts its fixed fee from the sending subaccount in addition to the
	// amount.
	Transfer(ctx context.Context, from account.Subaccount, to account.Identifier, amount uint64) (uint64, error)
}
