package service

import (
	"context"
	"time"

	"github.com/ledgerpay/invoicer/internal/domain/entity"
)

// InvoiceStore is the persistence contract the engine drives all invoice
// mutation through. Implementations must make each transition column flip at
// most once (see repository.InvoiceRepository).
type InvoiceStore interface {
	// Create persists a new invoice, assigning its id and storing the
	// destination derived from that id in the same transaction.
	Create(ctx context.Context, inv *entity.Invoice, destination func(id uint64) string) error

	// GetByID returns the invoice, or nil when absent.
	GetByID(ctx context.Context, id uint64) (*entity.Invoice, error)

	// MarkPaid applies the paid transition exactly once.
	MarkPaid(ctx context.Context, id uint64, amountPaid uint64, verifiedAt time.Time) error

	// MarkRefunded applies the refunded transition exactly once.
	MarkRefunded(ctx context.Context, id uint64, refundedAt time.Time, refundAccount string) error
}
