// internal/repository/sqlrepo/wallet_sql.go
package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/repository"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

const walletColumns = `account_id, currency, kind, balance, version, created_at, updated_at`

// WalletRepository implements repository.WalletRepository over sqlx.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository() repository.WalletRepository {
	return &WalletRepository{}
}

// GetWallet retrieves the wallet of an account in one currency.
func (r *WalletRepository) GetWallet(ctx context.Context, q repository.DBExecutor, accountID uuid.UUID, currency string) (*domain.Wallet, error) {
	var wallet domain.Wallet
	query := q.Rebind(`SELECT ` + walletColumns + ` FROM wallets WHERE account_id = ? AND currency = ?`)
	if err := q.GetContext(ctx, &wallet, query, accountID, currency); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet %s/%s: %w", accountID, currency, err)
	}
	return &wallet, nil
}

// EnsureWallet creates an empty wallet unless one exists, then reads it back.
func (r *WalletRepository) EnsureWallet(ctx context.Context, q repository.DBExecutor, accountID uuid.UUID, currency string, kind domain.WalletKind) (*domain.Wallet, error) {
	wallet := domain.NewWallet(accountID, currency, kind)
	query := q.Rebind(`INSERT INTO wallets (` + walletColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (account_id, currency) DO NOTHING`)
	_, err := q.ExecContext(ctx, query,
		wallet.AccountID, wallet.Currency, wallet.Kind, wallet.Balance, wallet.Version,
		wallet.CreatedAt, wallet.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create wallet %s/%s: %w", accountID, currency, err)
	}
	return r.GetWallet(ctx, q, accountID, currency)
}

// ApplyDelta writes balance+delta as a compare-and-set on the version that was read.
func (r *WalletRepository) ApplyDelta(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet, delta decimal.Decimal) (*domain.Wallet, error) {
	newBalance := wallet.Balance.Add(delta)
	if newBalance.IsNegative() {
		return nil, fmt.Errorf("wallet %s/%s: %w", wallet.AccountID, wallet.Currency, util.ErrInsufficientFunds)
	}

	now := domain.Now()
	query := q.Rebind(`UPDATE wallets SET balance = ?, version = version + 1, updated_at = ?
		WHERE account_id = ? AND currency = ? AND version = ?`)
	result, err := q.ExecContext(ctx, query, newBalance, now, wallet.AccountID, wallet.Currency, wallet.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet balance %s/%s: %w", wallet.AccountID, wallet.Currency, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected after updating wallet %s/%s: %w", wallet.AccountID, wallet.Currency, err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("wallet %s/%s at version %d: %w", wallet.AccountID, wallet.Currency, wallet.Version, util.ErrConcurrentModification)
	}

	updated := *wallet
	updated.Balance = newBalance
	updated.Version = wallet.Version + 1
	updated.UpdatedAt = now
	return &updated, nil
}

// ListWallets returns all wallets of an account.
func (r *WalletRepository) ListWallets(ctx context.Context, q repository.DBExecutor, accountID uuid.UUID) ([]domain.Wallet, error) {
	wallets := []domain.Wallet{}
	query := q.Rebind(`SELECT ` + walletColumns + ` FROM wallets WHERE account_id = ? ORDER BY currency`)
	if err := q.SelectContext(ctx, &wallets, query, accountID); err != nil {
		return nil, fmt.Errorf("failed to list wallets for account %s: %w", accountID, err)
	}
	return wallets, nil
}
