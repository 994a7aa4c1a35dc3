// internal/domain/transaction_test.go
package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to TransactionStatus
		allowed  bool
	}{
		{TransactionStatusPending, TransactionStatusCommitting, true},
		{TransactionStatusPending, TransactionStatusHeld, true},
		{TransactionStatusPending, TransactionStatusAwaitingConfirmation, true},
		{TransactionStatusAwaitingConfirmation, TransactionStatusCommitting, true},
		{TransactionStatusAwaitingConfirmation, TransactionStatusFailed, true},
		{TransactionStatusAwaitingConfirmation, TransactionStatusCancelled, true},
		{TransactionStatusCommitting, TransactionStatusCompleted, true},
		{TransactionStatusCommitting, TransactionStatusFailed, true},
		{TransactionStatusHeld, TransactionStatusCommitting, true},
		{TransactionStatusHeld, TransactionStatusFailed, true},

		{TransactionStatusCommitting, TransactionStatusCancelled, false},
		{TransactionStatusHeld, TransactionStatusCompleted, false},
		{TransactionStatusCompleted, TransactionStatusFailed, false},
		{TransactionStatusFailed, TransactionStatusCompleted, false},
		{TransactionStatusCancelled, TransactionStatusPending, false},
		{TransactionStatusPending, TransactionStatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	assert.True(t, TransactionStatusHeld.IsTerminal())
	assert.True(t, TransactionStatusCompleted.IsTerminal())
	assert.False(t, TransactionStatusCommitting.IsTerminal())

	assert.True(t, TransactionStatusPending.IsCancellable())
	assert.True(t, TransactionStatusAwaitingConfirmation.IsCancellable())
	assert.False(t, TransactionStatusCommitting.IsCancellable())
	assert.False(t, TransactionStatusHeld.IsCancellable())

	assert.False(t, TransactionStatus("BOGUS").Valid())
}

func TestCreditedAmount(t *testing.T) {
	sender := uuid.New()
	rec := NewTransactionRecord(TransactionTypeRemittance, sender, &sender, nil,
		decimal.NewFromInt(100), "USD", RemittanceDetails{RecipientIdentifier: "maria"}, "")

	amount, currency := rec.CreditedAmount()
	assert.True(t, amount.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "USD", currency)

	rec.FxDetails = &FxQuote{TargetAmount: decimal.RequireFromString("5553.90"), TargetCurrency: "PHP"}
	amount, currency = rec.CreditedAmount()
	assert.True(t, amount.Equal(decimal.RequireFromString("5553.90")))
	assert.Equal(t, "PHP", currency)
}

func TestCurrencyAcceptsAmount(t *testing.T) {
	php := Currency{Code: "PHP", Kind: WalletKindFiat, Scale: 2}

	assert.True(t, php.AcceptsAmount(decimal.RequireFromString("10.25")))
	assert.False(t, php.AcceptsAmount(decimal.RequireFromString("10.255")))
	assert.False(t, php.AcceptsAmount(decimal.Zero))
	assert.False(t, php.AcceptsAmount(decimal.NewFromInt(-5)))

	reg := NewCurrencyRegistry(php, Currency{Code: "btc", Kind: WalletKindCrypto, Scale: 8})
	_, ok := reg.Lookup("BTC")
	assert.True(t, ok)
	assert.Equal(t, WalletKindCrypto, reg.KindOf("btc"))
	assert.Equal(t, WalletKindFiat, reg.KindOf("XYZ"))
}
