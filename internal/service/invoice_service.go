package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerpay/invoicer/internal/account"
	"github.com/ledgerpay/invoicer/internal/domain/entity"
	"github.com/ledgerpay/invoicer/internal/domain/lifecycle"
	"github.com/ledgerpay/invoicer/internal/ledger"
	"github.com/ledgerpay/invoicer/internal/permission"
	"github.com/ledgerpay/invoicer/internal/token"
)

// Validation bounds applied at creation, before any state is persisted.
const (
	MaxDescriptionLength = 256
	MaxMetaSize          = 32_000
)

// DefaultExpiration is how long a fresh invoice stays verifiable.
const DefaultExpiration = 7 * 24 * time.Hour

// CreateInvoiceArgs are the caller-supplied creation parameters.
type CreateInvoiceArgs struct {
	TokenSymbol string
	Amount      uint64
	Details     *entity.Details
	Permissions *entity.Permissions
}

// VerifyStatus distinguishes the two success variants of verification.
type VerifyStatus string

const (
	// VerifyStatusPaid is returned when this call observed the payment and
	// applied the transition.
	VerifyStatusPaid VerifyStatus = "Paid"

	// VerifyStatusAlreadyVerified is returned when a previous call already
	// observed the payment; the ledger is not re-queried.
	VerifyStatusAlreadyVerified VerifyStatus = "AlreadyVerified"
)

// VerifyResult is the success payload of VerifyInvoice.
type VerifyResult struct {
	Status  VerifyStatus
	Invoice *entity.Invoice
}

// InvoiceService orchestrates the invoice lifecycle against the token
// registry, the permission model, and the invoice store.
//
// Every invoice-mutating operation runs inside a per-id exclusive section
// spanning load, ledger call, and persist. That serialization is what makes
// the observe-then-commit step safe against a ledger with no two-phase
// commit: two concurrent verifies cannot both see paid=false, and two
// concurrent refunds cannot both pass the remaining-balance check.
type InvoiceService struct {
	store    InvoiceStore
	registry *token.Registry
	gate     *permission.CreationGate
	locks    *keyedMutex
	expiry   time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// Option configures the invoice service.
type Option func(*InvoiceService)

// WithExpiration overrides the default invoice expiration window.
func WithExpiration(d time.Duration) Option {
	return func(s *InvoiceService) { s.expiry = d }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *InvoiceService) { s.now = now }
}

// NewInvoiceService creates the lifecycle engine.
func NewInvoiceService(store InvoiceStore, registry *token.Registry, gate *permission.CreationGate, logger *zap.Logger, opts ...Option) *InvoiceService {
	s := &InvoiceService{
		store:    store,
		registry: registry,
		gate:     gate,
		locks:    newKeyedMutex(),
		expiry:   DefaultExpiration,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInvoice validates the request, allocates a fresh id, derives the
// unique deposit destination and persists the Created record. All validation
// precedes any persist; a failure leaves no state behind.
func (s *InvoiceService) CreateInvoice(ctx context.Context, caller account.Principal, args CreateInvoiceArgs) (*entity.Invoice, error) {
	if err := s.gate.Authorize(ctx, caller); err != nil {
		return nil, err
	}
	if args.Amount == 0 {
		return nil, entity.NewError(entity.KindInvalidAmount, "amount must be greater than zero")
	}
	adapter, err := s.registry.Resolve(args.TokenSymbol)
	if err != nil {
		return nil, err
	}
	if err := validateDetails(args.Details); err != nil {
		return nil, err
	}
	if err := permission.ValidateLists(args.Permissions); err != nil {
		return nil, err
	}

	now := s.now()
	inv := &entity.Invoice{
		Creator:     caller,
		Token:       adapter.Verbose(),
		Amount:      args.Amount,
		Expiration:  now.Add(s.expiry),
		Details:     args.Details,
		Permissions: args.Permissions,
		CreatedAt:   now,
	}

	err = s.store.Create(ctx, inv, func(id uint64) string {
		return adapter.InvoiceDestination(caller, id).String()
	})
	if err != nil {
		return nil, entity.NewError(entity.KindOther, "failed to persist invoice")
	}

	s.logger.Info("Invoice created",
		zap.Uint64("id", inv.ID),
		zap.String("token", inv.Token.Symbol),
		zap.String("amount", token.FormatAmount(inv.Amount, inv.Token)),
		zap.String("destination", inv.Destination))
	return inv, nil
}

// GetInvoice returns the invoice if the caller is the creator or appears in
// canGet or canVerify. Reads take no per-id lock: the store serves a
// consistent snapshot.
func (s *InvoiceService) GetInvoice(ctx context.Context, caller account.Principal, id uint64) (*entity.Invoice, error) {
	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !permission.CanGet(caller, inv) {
		return nil, entity.NewError(entity.KindNotAuthorized, "you do not have permission to view this invoice")
	}
	return inv, nil
}

// VerifyInvoice reconciles the invoice's expected amount against the ledger
// balance at its deposit account.
//
// An already-paid invoice short-circuits to AlreadyVerified without touching
// the ledger: the deposit balance may have since changed for unrelated
// reasons, and re-reading it could only produce a contradictory answer. An
// expired, unpaid invoice fails Expired before any ledger call.
func (s *InvoiceService) VerifyInvoice(ctx context.Context, caller account.Principal, id uint64) (*VerifyResult, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	inv, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !permission.CanVerify(caller, inv) {
		return nil, entity.NewError(entity.KindNotAuthorized, "you do not have permission to verify this invoice")
	}

	if inv.Paid {
		return &VerifyResult{Status: VerifyStatusAlreadyVerified, Invoice: inv}, nil
	}

	now := s.now()
	if inv.Expired(now) {
		return nil, entity.NewError(entity.KindExpired, "invoice expired before payment was observed")
	}

	adapter, err := s.registry.Resolve(inv.Token.Symbol)
	if err != nil {
		return nil, err
	}
	destination, err := adapter.ParseDestination(inv.Destination)
	if err != nil {
		return nil, err
	}

	balance, err := adapter.BalanceOf(ctx, destination)
	if err != nil {
		s.logger.Warn("Ledger balance query failed",
			zap.Uint64("invoice_id", id),
			zap.Error(err))
		return nil, entity.Errorf(entity.KindOther, "ledger balance query failed: %v", err)
	}

	if balance < inv.Amount {
		return nil, entity.Errorf(entity.KindNotYetPaid,
			"insufficient balance: observed %d, expected %d", balance, inv.Amount)
	}

	machine := lifecycle.ForInvoice(inv, now)
	if err := machine.Fire(ctx, lifecycle.TriggerVerify); err != nil {
		return nil, entity.Errorf(entity.KindOther, "lifecycle transition rejected: %v", err)
	}

	if err := s.store.MarkPaid(ctx, id, balance, now); err != nil {
		return nil, entity.NewError(entity.KindOther, "failed to persist verification")
	}

	inv.Paid = true
	inv.AmountPaid = balance
	inv.VerifiedAt = &now

	s.logger.Info("Invoice verified",
		zap.Uint64("id", id),
		zap.String("amount_paid", token.FormatAmount(balance, inv.Token)))
	return &VerifyResult{Status: VerifyStatusPaid, Invoice: inv}, nil
}

// RefundInvoice disburses up to the collected balance, net of the token's
// transfer fee, back to a destination chosen by the creator. Exactly one
// refund is permitted per invoice.
func (s *InvoiceService) RefundInvoice(ctx context.Context, caller account.Principal, id uint64, amount uint64, refundAccount string) (uint64, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	inv, err := s.load(ctx, id)
	if err != nil {
		return 0, err
	}
	if !permission.CanRefund(caller, inv) {
		return 0, entity.NewError(entity.KindNotAuthorized, "only the invoice creator may refund")
	}
	if !inv.Paid {
		return 0, entity.NewError(entity.KindNotYetPaid, "invoice has not been paid")
	}
	if inv.Refunded {
		return 0, entity.NewError(entity.KindAlreadyRefunded, "invoice has already been refunded")
	}

	destText := refundAccount
	if destText == "" {
		destText = inv.RefundAccount
	}
	if destText == "" {
		return 0, entity.NewError(entity.KindNoRefundDest, "no refund destination supplied or recorded")
	}

	adapter, err := s.registry.Resolve(inv.Token.Symbol)
	if err != nil {
		return 0, err
	}
	destination, err := adapter.ParseDestination(destText)
	if err != nil {
		return 0, err
	}

	fee := adapter.Fee()
	var remainder uint64
	if inv.AmountPaid > fee {
		remainder = inv.AmountPaid - fee
	}
	if amount > remainder {
		return 0, entity.Errorf(entity.KindTransferError,
			"InsufficientFunds: refundable balance is %d after the %d transfer fee", remainder, fee)
	}

	now := s.now()
	machine := lifecycle.ForInvoice(inv, now)
	if err := machine.Fire(ctx, lifecycle.TriggerRefund); err != nil {
		return 0, entity.Errorf(entity.KindOther, "lifecycle transition rejected: %v", err)
	}

	blockHeight, err := adapter.Transfer(ctx, account.InvoiceSubaccount(inv.Creator, inv.ID), destination, amount)
	if err != nil {
		return 0, wrapTransferError(err)
	}

	if err := s.store.MarkRefunded(ctx, id, now, destination.String()); err != nil {
		// The transfer already settled; surface the block height so the
		// caller can reconcile against the ledger.
		s.logger.Error("Refund settled but record update failed",
			zap.Uint64("invoice_id", id),
			zap.Uint64("block_height", blockHeight),
			zap.Error(err))
		return 0, entity.Errorf(entity.KindOther,
			"refund settled at block %d but the invoice record could not be updated", blockHeight)
	}

	s.logger.Info("Invoice refunded",
		zap.Uint64("id", id),
		zap.String("amount", token.FormatAmount(amount, inv.Token)),
		zap.Uint64("block_height", blockHeight))
	return blockHeight, nil
}

// GetBalance returns the caller's balance held with the service for a token.
func (s *InvoiceService) GetBalance(ctx context.Context, caller account.Principal, symbol string) (uint64, error) {
	adapter, err := s.registry.Resolve(symbol)
	if err != nil {
		return 0, err
	}
	balance, err := adapter.BalanceOf(ctx, adapter.CallerAccount(caller))
	if err != nil {
		return 0, entity.Errorf(entity.KindOther, "ledger balance query failed: %v", err)
	}
	return balance, nil
}

// GetAccountIdentifier derives the account an identity holds with the
// service for a token.
func (s *InvoiceService) GetAccountIdentifier(_ context.Context, identity account.Principal, symbol string) (account.Identifier, error) {
	adapter, err := s.registry.Resolve(symbol)
	if err != nil {
		return account.Identifier{}, err
	}
	return adapter.CallerAccount(identity), nil
}

// Transfer moves funds from the caller's account with the service to an
// arbitrary validated destination. The ledger deducts its fee in addition to
// the amount.
func (s *InvoiceService) Transfer(ctx context.Context, caller account.Principal, symbol string, destText string, amount uint64) (uint64, error) {
	adapter, err := s.registry.Resolve(symbol)
	if err != nil {
		return 0, err
	}
	destination, err := adapter.ParseDestination(destText)
	if err != nil {
		return 0, err
	}
	blockHeight, err := adapter.Transfer(ctx, account.PrincipalSubaccount(caller), destination, amount)
	if err != nil {
		return 0, wrapTransferError(err)
	}
	return blockHeight, nil
}

// AuthorizeCreation grants invoice-creation rights to a principal. Admin
// only.
func (s *InvoiceService) AuthorizeCreation(ctx context.Context, caller, grantee account.Principal) error {
	return s.gate.Grant(ctx, caller, grantee)
}

func (s *InvoiceService) load(ctx context.Context, id uint64) (*entity.Invoice, error) {
	if id == 0 {
		return nil, entity.NewError(entity.KindInvalidInvoiceID, "invoice ids start at 1")
	}
	inv, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, entity.NewError(entity.KindOther, "invoice store unavailable")
	}
	if inv == nil {
		return nil, entity.Errorf(entity.KindNotFound, "invoice %d does not exist", id)
	}
	if adapter, err := s.registry.Resolve(inv.Token.Symbol); err == nil {
		inv.Token = adapter.Verbose()
	}
	return inv, nil
}

func validateDetails(d *entity.Details) error {
	if d == nil {
		return nil
	}
	if len(d.Description) > MaxDescriptionLength {
		return entity.Errorf(entity.KindBadSize, "description exceeds %d characters", MaxDescriptionLength)
	}
	if len(d.Meta) > MaxMetaSize {
		return entity.Errorf(entity.KindBadSize, "details meta exceeds %d bytes", MaxMetaSize)
	}
	return nil
}

func wrapTransferError(err error) error {
	if te, ok := ledger.AsTransferError(err); ok {
		return entity.Errorf(entity.KindTransferError, "%s: %s", te.Kind, te.Message)
	}
	// Transport failure: the transfer's effect on the ledger is unknown
	// until a later balance query resolves it.
	return entity.Errorf(entity.KindTransferError, "transfer did not complete: %v", err)
}
