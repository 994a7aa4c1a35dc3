// internal/domain/fx.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// FxQuote is a conversion offer. It lives only as long as the transaction that consumes it
// and must be checked against ExpiresAt before commit.
type FxQuote struct {
	SourceAmount   decimal.Decimal `json:"source_amount"`
	SourceCurrency string          `json:"source_currency"`
	TargetAmount   decimal.Decimal `json:"target_amount"`
	TargetCurrency string          `json:"target_currency"`
	Rate           decimal.Decimal `json:"rate"`
	Fee            decimal.Decimal `json:"fee"` // in source currency, deducted before conversion
	ExpiresAt      time.Time       `json:"expires_at"`
}

// IsExpired reports whether the quote is stale at now.
func (q *FxQuote) IsExpired(now time.Time) bool {
	return !now.Before(q.ExpiresAt)
}
