// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletKind tells fiat balances apart from crypto balances.
type WalletKind string

const (
	WalletKindFiat   WalletKind = "FIAT"
	WalletKindCrypto WalletKind = "CRYPTO"
)

// Wallet is a single-currency balance owned by one account.
// Exactly one wallet exists per (AccountID, Currency); Balance is never negative.
type Wallet struct {
	AccountID uuid.UUID       `db:"account_id" json:"account_id"`
	Currency  string          `db:"currency" json:"currency"`
	Kind      WalletKind      `db:"kind" json:"kind"`
	Balance   decimal.Decimal `db:"balance" json:"balance"`
	Version   int64           `db:"version" json:"version"` // bumped on every mutation, used for optimistic conflict detection
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// NewWallet creates an empty wallet.
func NewWallet(accountID uuid.UUID, currency string, kind WalletKind) *Wallet {
	now := Now()
	return &Wallet{
		AccountID: accountID,
		Currency:  currency,
		Kind:      kind,
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CanDebit reports whether amount can be withdrawn without going negative.
func (w *Wallet) CanDebit(amount decimal.Decimal) bool {
	return w.Balance.GreaterThanOrEqual(amount)
}
