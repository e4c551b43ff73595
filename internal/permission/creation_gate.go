package permission

import (
	"context"

	"go.uber.org/zap"

	"github.com/ledgerpay/invoicer/internal/account"
	"github.com/ledgerpay/invoicer/internal/domain/entity"
)

// creationDeniedGuidance is returned verbatim to unauthorized creators so
// they know how to request access.
const creationDeniedGuidance = "You do not have permission to create an invoice. Call `authorize_creation` method to add yourself to the allowlist."

// AllowlistStore persists the global creator allowlist.
type AllowlistStore interface {
	Contains(ctx context.Context, principal string) (bool, error)
	Add(ctx context.Context, principal, grantedBy string) error
}

// CreationGate is the coarse, process-wide authorization for create_invoice.
// It is distinct from per-invoice allowlists: membership is mutable, but only
// through the admin-authorized grant operation.
type CreationGate struct {
	store  AllowlistStore
	admins map[string]bool
	logger *zap.Logger
}

// NewCreationGate creates the gate. admins may grant creation rights and are
// implicitly authorized to create.
func NewCreationGate(store AllowlistStore, admins []account.Principal, logger *zap.Logger) *CreationGate {
	adminSet := make(map[string]bool, len(admins))
	for _, p := range admins {
		adminSet[p.String()] = true
	}
	return &CreationGate{store: store, admins: adminSet, logger: logger}
}

// Authorize checks whether the caller may create invoices.
func (g *CreationGate) Authorize(ctx context.Context, caller account.Principal) error {
	text := caller.String()
	if g.admins[text] {
		return nil
	}
	ok, err := g.store.Contains(ctx, text)
	if err != nil {
		g.logger.Error("Failed to check creator allowlist", zap.Error(err))
		return entity.NewError(entity.KindOther, "creator allowlist unavailable")
	}
	if !ok {
		return entity.NewError(entity.KindNotAuthorized, creationDeniedGuidance)
	}
	return nil
}

// Grant adds a principal to the creator allowlist. Only admins may grant.
func (g *CreationGate) Grant(ctx context.Context, caller, grantee account.Principal) error {
	if !g.admins[caller.String()] {
		return entity.NewError(entity.KindNotAuthorized, "only an admin may authorize invoice creation")
	}
	if err := g.store.Add(ctx, grantee.String(), caller.String()); err != nil {
		g.logger.Error("Failed to grant creation rights",
			zap.String("grantee", grantee.String()),
			zap.Error(err))
		return entity.NewError(entity.KindOther, "failed to persist allowlist grant")
	}
	g.logger.Info("Creation rights granted",
		zap.String("grantee", grantee.String()),
		zap.String("granted_by", caller.String()))
	return nil
}
