package token

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/ledgerpay/invoicer/internal/domain/entity"
)

// FormatAmount renders a base-unit amount as a decimal token quantity for
// logs and human-readable messages, e.g. 100_010_000 e8s -> "1.0001 ICP".
// Reconciliation never uses this form: amounts are compared as integers only.
func FormatAmount(amount uint64, verbose entity.TokenVerbose) string {
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(verbose.Decimals))
	return fmt.Sprintf("%s %s", d.String(), verbose.Symbol)
}
