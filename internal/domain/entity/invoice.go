package entity

import (
	"time"

	"github.com/ledgerpay/invoicer/internal/account"
)

// Details is an optional opaque description attached to an invoice at
// creation. Meta is round-tripped verbatim; callers typically store JSON.
type Details struct {
	Description string `json:"description"`
	Meta        []byte `json:"meta,omitempty"`
}

// Permissions are the per-invoice allowlists fixed at creation. CanVerify
// implies read access; neither list grants refund rights.
type Permissions struct {
	CanGet    []account.Principal `json:"canGet"`
	CanVerify []account.Principal `json:"canVerify"`
}

// TokenVerbose is the canonical descriptor of a settlement token returned to
// callers.
type TokenVerbose struct {
	Symbol   string    `json:"symbol"`
	Decimals int       `json:"decimals"`
	Meta     TokenMeta `json:"meta"`
}

// TokenMeta carries issuer metadata for a token.
type TokenMeta struct {
	Issuer string `json:"issuer,omitempty"`
}

// Invoice is the central entity: a request for payment of a fixed amount in
// a given token, with a uniquely derived deposit account.
//
// An invoice is immutable except for the payment and refund fields, each of
// which transitions at most once: Paid/AmountPaid/VerifiedAt are set together
// on the first successful verification, Refunded/RefundedAt/RefundAccount on
// the single permitted refund. Refunded implies Paid.
type Invoice struct {
	ID          uint64            `json:"id"`
	Creator     account.Principal `json:"creator"`
	Token       TokenVerbose      `json:"token"`
	Amount      uint64            `json:"amount"`
	Destination string            `json:"destination"`
	Expiration  time.Time         `json:"expiration"`
	Details     *Details          `json:"details,omitempty"`
	Permissions *Permissions      `json:"permissions,omitempty"`

	Paid       bool       `json:"paid"`
	AmountPaid uint64     `json:"amountPaid"`
	VerifiedAt *time.Time `json:"verifiedAtTime,omitempty"`

	Refunded      bool       `json:"refunded"`
	RefundedAt    *time.Time `json:"refundedAtTime,omitempty"`
	RefundAccount string     `json:"refundAccount,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Expired reports whether the invoice's expiration has passed at the given
// instant. Expiration only guards unpaid invoices; an observed payment takes
// precedence.
func (i *Invoice) Expired(now time.Time) bool {
	return now.After(i.Expiration)
}
