package token

import (
	"context"

	"github.com/ledgerpay/invoicer/internal/account"
	"github.com/ledgerpay/invoicer/internal/domain/entity"
	"github.com/ledgerpay/invoicer/internal/ledger"
)

// ICP ledger constants: 8 decimal places (base unit e8s) and a fixed
// 10_000 e8s transfer fee deducted from the sender on every transfer.
const (
	ICPSymbol   = "ICP"
	ICPDecimals = 8
	ICPFee      = 10_000
)

// ICPAdapter settles invoices against an ICP-style ledger. Deposit accounts
// are CRC-guarded hashed identifiers owned by the service principal.
type ICPAdapter struct {
	client ledger.Client
	owner  account.Principal
	fee    uint64
}

// NewICPAdapter creates the ICP adapter. owner is the principal the service
// holds ledger subaccounts under.
func NewICPAdapter(client ledger.Client, owner account.Principal, fee uint64) *ICPAdapter {
	return &ICPAdapter{client: client, owner: owner, fee: fee}
}

func (a *ICPAdapter) Symbol() string {
	return ICPSymbol
}

func (a *ICPAdapter) Verbose() entity.TokenVerbose {
	return entity.TokenVerbose{
		Symbol:   ICPSymbol,
		Decimals: ICPDecimals,
		Meta:     entity.TokenMeta{Issuer: "e8s"},
	}
}

func (a *ICPAdapter) Fee() uint64 {
	return a.fee
}

func (a *ICPAdapter) BalanceOf(ctx context.Context, ident account.Identifier) (uint64, error) {
	return a.client.BalanceOf(ctx, ident)
}

func (a *ICPAdapter) Transfer(ctx context.Context, from account.Subaccount, to account.Identifier, amount uint64) (uint64, error) {
	return a.client.Transfer(ctx, from, to, amount)
}

// ParseDestination parses the 64-character hex identifier form. Equality is
// case-insensitive; the embedded checksum is validated so a malformed
// destination fails InvalidDestination before any ledger call.
func (a *ICPAdapter) ParseDestination(text string) (account.Identifier, error) {
	ident, err := account.IdentifierFromText(text)
	if err != nil {
		return account.Identifier{}, entity.Errorf(entity.KindInvalidDestination, "invalid destination account: %v", err)
	}
	return ident, nil
}

func (a *ICPAdapter) InvoiceDestination(creator account.Principal, invoiceID uint64) account.Identifier {
	return account.NewIdentifier(a.owner, account.InvoiceSubaccount(creator, invoiceID))
}

func (a *ICPAdapter) CallerAccount(caller account.Principal) account.Identifier {
	return account.NewIdentifier(a.owner, account.PrincipalSubaccount(caller))
}
