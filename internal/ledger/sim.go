package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerpay/invoicer/internal/account"
)

// Transaction is one settled transfer on the simulated ledger.
type Transaction struct {
	ID          uuid.UUID
	BlockHeight uint64
	From        account.Identifier
	To          account.Identifier
	Amount      uint64
	Fee         uint64
	Timestamp   time.Time
}

// SimLedger is an in-process ledger holding balances in memory. It mirrors
// the fee model of an ICP-style ledger: every transfer deducts amount + fee
// from the sender. It backs local development mode and the test suites.
type SimLedger struct {
	mu       sync.Mutex
	owner    account.Principal
	fee      uint64
	balances map[account.Identifier]uint64
	txLog    []Transaction
	height   uint64
	logger   *zap.Logger
}

// NewSimLedger creates an empty simulated ledger owned by the service
// principal. Transfers originate from subaccounts of that principal.
func NewSimLedger(owner account.Principal, fee uint64, logger *zap.Logger) *SimLedger {
	return &SimLedger{
		owner:    owner,
		fee:      fee,
		balances: make(map[account.Identifier]uint64),
		logger:   logger,
	}
}

// Fee returns the fixed per-transfer fee.
func (l *SimLedger) Fee() uint64 {
	return l.fee
}

// Deposit credits an account directly, bypassing fees. This is the simulated
// counterpart of an external payer sending funds in.
func (l *SimLedger) Deposit(ident account.Identifier, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[ident] += amount
}

// BalanceOf returns the balance at an account in base token units.
func (l *SimLedger) BalanceOf(_ context.Context, ident account.Identifier) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[ident], nil
}

// Transfer moves amount from the service's subaccount to the destination,
// deducting amount + fee from the sender. It returns the block height that
// recorded the transaction.
func (l *SimLedger) Transfer(_ context.Context, from account.Subaccount, to account.Identifier, amount uint64) (uint64, error) {
	source := account.NewIdentifier(l.owner, from)

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[source]
	if amount > balance || balance-amount < l.fee {
		return 0, &TransferError{
			Kind:    TransferInsufficientFunds,
			Message: "sender balance too low to cover amount and fee",
		}
	}

	l.balances[source] = balance - amount - l.fee
	l.balances[to] += amount
	l.height++

	tx := Transaction{
		ID:          uuid.New(),
		BlockHeight: l.height,
		From:        source,
		To:          to,
		Amount:      amount,
		Fee:         l.fee,
		Timestamp:   time.Now(),
	}
	l.txLog = append(l.txLog, tx)

	if l.logger != nil {
		l.logger.Debug("Simulated ledger transfer settled",
			zap.String("tx_id", tx.ID.String()),
			zap.Uint64("block_height", tx.BlockHeight),
			zap.Uint64("amount", amount),
			zap.Uint64("fee", l.fee))
	}
	return tx.BlockHeight, nil
}

// Transactions returns a copy of the settled transaction log.
func (l *SimLedger) Transactions() []Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Transaction, len(l.txLog))
	copy(out, l.txLog)
	return out
}
