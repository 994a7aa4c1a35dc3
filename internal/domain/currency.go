// internal/domain/currency.go
package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency describes a supported currency.
type Currency struct {
	Code  string
	Kind  WalletKind
	Scale int32 // number of minor-unit digits accepted in amounts
}

// CurrencyRegistry is the set of currencies the engine accepts, keyed by upper-case code.
type CurrencyRegistry map[string]Currency

// NewCurrencyRegistry indexes the given currencies by code.
func NewCurrencyRegistry(currencies ...Currency) CurrencyRegistry {
	reg := make(CurrencyRegistry, len(currencies))
	for _, c := range currencies {
		c.Code = strings.ToUpper(c.Code)
		reg[c.Code] = c
	}
	return reg
}

// Lookup finds a currency by code.
func (r CurrencyRegistry) Lookup(code string) (Currency, bool) {
	c, ok := r[strings.ToUpper(code)]
	return c, ok
}

// KindOf returns the wallet kind for code, FIAT when unknown.
func (r CurrencyRegistry) KindOf(code string) WalletKind {
	if c, ok := r.Lookup(code); ok {
		return c.Kind
	}
	return WalletKindFiat
}

// AcceptsAmount reports whether amount is positive and fits the currency scale.
func (c Currency) AcceptsAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	return amount.Equal(amount.Truncate(c.Scale))
}
