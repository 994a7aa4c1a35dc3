// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/domain"
)

// WalletRepository is the Wallet Store: one balance row per (account, currency).
type WalletRepository interface {
	// GetWallet returns util.ErrWalletNotFound when the account never held the currency.
	GetWallet(ctx context.Context, q DBExecutor, accountID uuid.UUID, currency string) (*domain.Wallet, error)
	// EnsureWallet returns the wallet, creating an empty one on first use.
	EnsureWallet(ctx context.Context, q DBExecutor, accountID uuid.UUID, currency string, kind domain.WalletKind) (*domain.Wallet, error)
	// ApplyDelta adds delta to the wallet as read. It fails with util.ErrInsufficientFunds
	// when the result would be negative and util.ErrConcurrentModification when the row
	// changed since it was read. Only the ledger commit routine calls it, inside its transaction.
	ApplyDelta(ctx context.Context, q DBExecutor, wallet *domain.Wallet, delta decimal.Decimal) (*domain.Wallet, error)
	// ListWallets returns every wallet of an account ordered by currency.
	ListWallets(ctx context.Context, q DBExecutor, accountID uuid.UUID) ([]domain.Wallet, error)
}
