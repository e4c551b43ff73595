package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ledgerpay/invoicer/pkg/database"
)

// AllowlistRepository persists the global creator allowlist.
type AllowlistRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewAllowlistRepository creates a new allowlist repository
func NewAllowlistRepository(db *database.DB, logger *zap.Logger) *AllowlistRepository {
	return &AllowlistRepository{
		db:     db,
		logger: logger,
	}
}

// Contains reports whether the principal holds creation rights.
func (r *AllowlistRepository) Contains(ctx context.Context, principal string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM creation_allowlist WHERE principal = ?",
		principal,
	).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to query creation allowlist", zap.Error(err))
		return false, fmt.Errorf("failed to query creation allowlist: %w", err)
	}
	return count > 0, nil
}

// Add grants creation rights to a principal. Adding an existing entry is a
// no-op.
func (r *AllowlistRepository) Add(ctx context.Context, principal, grantedBy string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO creation_allowlist (principal, granted_by)
		VALUES (?, ?)
		ON CONFLICT(principal) DO NOTHING
	`, principal, grantedBy)
	if err != nil {
		r.logger.Error("Failed to add to creation allowlist",
			zap.String("principal", principal),
			zap.Error(err))
		return fmt.Errorf("failed to add to creation allowlist: %w", err)
	}
	return nil
}
