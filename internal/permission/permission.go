package permission

import (
	"github.com/ledgerpay/invoicer/internal/account"
	"github.com/ledgerpay/invoicer/internal/domain/entity"
)

// MaxAllowlistSize bounds each per-invoice allowlist. The bound caps both the
// linear membership scan and the stored record size.
const MaxAllowlistSize = 256

// ValidateLists checks the per-invoice allowlist bounds at creation time.
// A violation fails before any state is persisted.
func ValidateLists(p *entity.Permissions) error {
	if p == nil {
		return nil
	}
	if len(p.CanGet) > MaxAllowlistSize {
		return entity.Errorf(entity.KindBadSize, "canGet allowlist exceeds %d entries", MaxAllowlistSize)
	}
	if len(p.CanVerify) > MaxAllowlistSize {
		return entity.Errorf(entity.KindBadSize, "canVerify allowlist exceeds %d entries", MaxAllowlistSize)
	}
	return nil
}

// CanGet reports whether the caller may read the invoice: the creator, or any
// identity in canGet or canVerify (verify implies read).
func CanGet(caller account.Principal, inv *entity.Invoice) bool {
	if caller.Equal(inv.Creator) {
		return true
	}
	if inv.Permissions == nil {
		return false
	}
	return contains(inv.Permissions.CanGet, caller) || contains(inv.Permissions.CanVerify, caller)
}

// CanVerify reports whether the caller may verify the invoice: the creator or
// any identity in canVerify.
func CanVerify(caller account.Principal, inv *entity.Invoice) bool {
	if caller.Equal(inv.Creator) {
		return true
	}
	if inv.Permissions == nil {
		return false
	}
	return contains(inv.Permissions.CanVerify, caller)
}

// CanRefund reports whether the caller may refund the invoice. Allowlists
// never grant refund rights; only the creator holds them.
func CanRefund(caller account.Principal, inv *entity.Invoice) bool {
	return caller.Equal(inv.Creator)
}

func contains(list []account.Principal, p account.Principal) bool {
	for _, entry := range list {
		if entry.Equal(p) {
			return true
		}
	}
	return false
}
