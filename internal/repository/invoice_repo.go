package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ledgerpay/invoicer/internal/account"
	"github.com/ledgerpay/invoicer/internal/domain/entity"
	"github.com/ledgerpay/invoicer/pkg/database"
)

// InvoiceRepository is the single durable source of truth for invoice
// records. Ids are assigned by sqlite AUTOINCREMENT and never reused; the
// payment and refund columns are guarded so each transitions at most once.
type InvoiceRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *database.DB, logger *zap.Logger) *InvoiceRepository {
	return &InvoiceRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new invoice. The deposit destination depends on the
// assigned id, so the insert and the derivation run in one transaction: the
// row is only visible with its destination set.
func (r *InvoiceRepository) Create(ctx context.Context, inv *entity.Invoice, destination func(id uint64) string) error {
	canGet, canVerify, err := marshalPermissions(inv.Permissions)
	if err != nil {
		return fmt.Errorf("failed to encode permissions: %w", err)
	}

	var description sql.NullString
	var meta []byte
	if inv.Details != nil {
		description = sql.NullString{String: inv.Details.Description, Valid: true}
		meta = inv.Details.Meta
	}

	err = r.db.WithTransaction(func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO invoices (
				creator, token_symbol, amount, expiration,
				details_description, details_meta, can_get, can_verify, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			inv.Creator.String(),
			inv.Token.Symbol,
			int64(inv.Amount),
			inv.Expiration,
			description,
			meta,
			canGet,
			canVerify,
			inv.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert invoice: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}

		inv.ID = uint64(id)
		inv.Destination = destination(inv.ID)

		if _, err := tx.ExecContext(ctx,
			"UPDATE invoices SET destination = ? WHERE id = ?",
			inv.Destination, id,
		); err != nil {
			return fmt.Errorf("failed to set invoice destination: %w", err)
		}
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to create invoice", zap.Error(err))
		return err
	}
	return nil
}

// GetByID retrieves an invoice by id, or nil when absent.
func (r *InvoiceRepository) GetByID(ctx context.Context, id uint64) (*entity.Invoice, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, creator, token_symbol, amount, destination, expiration,
			details_description, details_meta, can_get, can_verify,
			paid, amount_paid, verified_at, refunded, refunded_at,
			refund_account, created_at
		FROM invoices
		WHERE id = ?
	`, int64(id))

	inv, err := scanInvoice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get invoice by ID", zap.Uint64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// MarkPaid records the first successful verification: paid flips false→true
// with the observed balance and timestamp. A second call is a no-op error so
// the transition can never be applied twice.
func (r *InvoiceRepository) MarkPaid(ctx context.Context, id uint64, amountPaid uint64, verifiedAt time.Time) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET paid = 1, amount_paid = ?, verified_at = ?
		WHERE id = ? AND paid = 0
	`, int64(amountPaid), verifiedAt, int64(id))
	if err != nil {
		r.logger.Error("Failed to mark invoice paid", zap.Uint64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark invoice paid: %w", err)
	}
	return requireOneRow(result, "invoice already paid or missing")
}

// MarkRefunded records the single permitted refund; it requires a prior paid
// transition and refuses to apply twice.
func (r *InvoiceRepository) MarkRefunded(ctx context.Context, id uint64, refundedAt time.Time, refundAccount string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE invoices
		SET refunded = 1, refunded_at = ?, refund_account = ?
		WHERE id = ? AND paid = 1 AND refunded = 0
	`, refundedAt, refundAccount, int64(id))
	if err != nil {
		r.logger.Error("Failed to mark invoice refunded", zap.Uint64("id", id), zap.Error(err))
		return fmt.Errorf("failed to mark invoice refunded: %w", err)
	}
	return requireOneRow(result, "invoice not refundable")
}

func requireOneRow(result sql.Result, msg string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n != 1 {
		return fmt.Errorf("%s", msg)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvoice(row rowScanner) (*entity.Invoice, error) {
	var (
		inv           entity.Invoice
		id            int64
		creator       string
		amount        int64
		amountPaid    int64
		description   sql.NullString
		meta          []byte
		canGet        sql.NullString
		canVerify     sql.NullString
		verifiedAt    sql.NullTime
		refundedAt    sql.NullTime
		refundAccount sql.NullString
	)

	err := row.Scan(
		&id, &creator, &inv.Token.Symbol, &amount, &inv.Destination,
		&inv.Expiration, &description, &meta, &canGet, &canVerify,
		&inv.Paid, &amountPaid, &verifiedAt, &inv.Refunded, &refundedAt,
		&refundAccount, &inv.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.ID = uint64(id)
	inv.Amount = uint64(amount)
	inv.AmountPaid = uint64(amountPaid)

	inv.Creator, err = account.PrincipalFromText(creator)
	if err != nil {
		return nil, fmt.Errorf("stored creator principal is corrupt: %w", err)
	}

	if description.Valid || len(meta) > 0 {
		inv.Details = &entity.Details{Description: description.String, Meta: meta}
	}

	perms, err := unmarshalPermissions(canGet, canVerify)
	if err != nil {
		return nil, err
	}
	inv.Permissions = perms

	if verifiedAt.Valid {
		inv.VerifiedAt = &verifiedAt.Time
	}
	if refundedAt.Valid {
		inv.RefundedAt = &refundedAt.Time
	}
	if refundAccount.Valid {
		inv.RefundAccount = refundAccount.String
	}
	return &inv, nil
}

func marshalPermissions(p *entity.Permissions) (sql.NullString, sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, sql.NullString{}, nil
	}
	canGet, err := marshalPrincipals(p.CanGet)
	if err != nil {
		return sql.NullString{}, sql.NullString{}, err
	}
	canVerify, err := marshalPrincipals(p.CanVerify)
	if err != nil {
		return sql.NullString{}, sql.NullString{}, err
	}
	return sql.NullString{String: canGet, Valid: true}, sql.NullString{String: canVerify, Valid: true}, nil
}

func marshalPrincipals(list []account.Principal) (string, error) {
	texts := make([]string, len(list))
	for i, p := range list {
		texts[i] = p.String()
	}
	encoded, err := json.Marshal(texts)
	return string(encoded), err
}

func unmarshalPermissions(canGet, canVerify sql.NullString) (*entity.Permissions, error) {
	if !canGet.Valid && !canVerify.Valid {
		return nil, nil
	}
	perms := &entity.Permissions{}
	var err error
	if perms.CanGet, err = unmarshalPrincipals(canGet); err != nil {
		return nil, err
	}
	if perms.CanVerify, err = unmarshalPrincipals(canVerify); err != nil {
		return nil, err
	}
	return perms, nil
}

func unmarshalPrincipals(col sql.NullString) ([]account.Principal, error) {
	if !col.Valid || col.String == "" {
		return nil, nil
	}
	var texts []string
	if err := json.Unmarshal([]byte(col.String), &texts); err != nil {
		return nil, fmt.Errorf("stored allowlist is corrupt: %w", err)
	}
	list := make([]account.Principal, 0, len(texts))
	for _, text := range texts {
		p, err := account.PrincipalFromText(text)
		if err != nil {
			return nil, fmt.Errorf("stored allowlist principal is corrupt: %w", err)
		}
		list = append(list, p)
	}
	return list, nil
}
