package token

import (
	"context"
	"sort"
	"sync"

	"github.com/ledgerpay/invoicer/internal/account"
	"github.com/ledgerpay/invoicer/internal/domain/entity"
)

// Adapter abstracts one settlement token's ledger: balance queries, transfers
// with the ledger's own fee model, and the token-specific account identifier
// derivation for deposit addresses and caller accounts.
type Adapter interface {
	// Symbol returns the token symbol the adapter is registered under.
	Symbol() string

	// Verbose returns the canonical descriptor exposed to callers.
	Verbose() entity.TokenVerbose

	// Fee returns the fixed transfer fee the ledger deducts from the sender,
	// in base units. The fee is ledger-level: it is deducted on transfer and
	// must never be re-applied when reconciling an observed deposit.
	Fee() uint64

	// BalanceOf queries the ledger balance at an account, in base units.
	BalanceOf(ctx context.Context, ident account.Identifier) (uint64, error)

	// Transfer moves amount from one of the service's subaccounts to the
	// destination and returns the recording block height.
	Transfer(ctx context.Context, from account.Subaccount, to account.Identifier, amount uint64) (uint64, error)

	// ParseDestination parses and checksums a caller-supplied destination in
	// the token's text format, before any ledger call is attempted.
	ParseDestination(text string) (account.Identifier, error)

	// InvoiceDestination derives the unique deposit account bound to an
	// invoice.
	InvoiceDestination(creator account.Principal, invoiceID uint64) account.Identifier

	// CallerAccount derives the account holding a caller's own balance with
	// the service.
	CallerAccount(caller account.Principal) account.Identifier
}

// Registry resolves token symbols to their ledger adapters. Registration
// happens at startup; resolution is concurrent-safe.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates an empty token registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its symbol, replacing any previous entry.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Symbol()] = a
}

// Resolve returns the adapter for a symbol. Unknown symbols fail InvalidToken
// uniformly across every operation path.
func (r *Registry) Resolve(symbol string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[symbol]
	if !ok {
		return nil, entity.Errorf(entity.KindInvalidToken, "unsupported token %q", symbol)
	}
	return a, nil
}

// Symbols returns the registered token symbols in sorted order.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols := make([]string, 0, len(r.adapters))
	for s := range r.adapters {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
