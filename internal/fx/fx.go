// internal/fx/fx.go
package fx

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

// DefaultQuoteTTL is how long a quote stays valid when no TTL is configured.
const DefaultQuoteTTL = 60 * time.Second

// Service prices currency conversions from a static rate table.
type Service struct {
	rates      map[string]decimal.Decimal
	feeRate    decimal.Decimal
	ttl        time.Duration
	currencies domain.CurrencyRegistry
}

// NewService creates an fx Service. Rates are keyed "SRC/TGT" and give units of TGT per unit of SRC.
func NewService(currencies domain.CurrencyRegistry, rates map[string]decimal.Decimal, feeRate decimal.Decimal, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	normalized := make(map[string]decimal.Decimal, len(rates))
	for pair, rate := range rates {
		normalized[strings.ToUpper(pair)] = rate
	}
	return &Service{
		rates:      normalized,
		feeRate:    feeRate,
		ttl:        ttl,
		currencies: currencies,
	}
}

// Rate returns the conversion rate from source to target. A missing direct
// pair falls back to the inverse of the reverse pair.
func (s *Service) Rate(source, target string) (decimal.Decimal, error) {
	source, target = strings.ToUpper(source), strings.ToUpper(target)
	if source == target {
		return decimal.NewFromInt(1), nil
	}
	if rate, ok := s.rates[source+"/"+target]; ok && rate.IsPositive() {
		return rate, nil
	}
	if inverse, ok := s.rates[target+"/"+source]; ok && inverse.IsPositive() {
		return decimal.NewFromInt(1).DivRound(inverse, 12), nil
	}
	return decimal.Zero, fmt.Errorf("no rate for %s/%s: %w", source, target, util.ErrUnsupportedCurrency)
}

// Quote prices amount of source in target. The fee is taken in the source
// currency before conversion and the target amount is rounded to the target scale.
func (s *Service) Quote(amount decimal.Decimal, source, target string, now time.Time) (*domain.FxQuote, error) {
	src, ok := s.currencies.Lookup(source)
	if !ok {
		return nil, fmt.Errorf("source currency %q: %w", source, util.ErrUnsupportedCurrency)
	}
	tgt, ok := s.currencies.Lookup(target)
	if !ok {
		return nil, fmt.Errorf("target currency %q: %w", target, util.ErrUnsupportedCurrency)
	}
	if src.Code == tgt.Code {
		return nil, fmt.Errorf("source and target currency are both %s: %w", src.Code, util.ErrCurrencyMismatch)
	}
	if !src.AcceptsAmount(amount) {
		return nil, fmt.Errorf("amount %s is not valid for %s: %w", amount, src.Code, util.ErrInvalidInput)
	}

	rate, err := s.Rate(src.Code, tgt.Code)
	if err != nil {
		return nil, err
	}

	fee := amount.Mul(s.feeRate).Round(src.Scale)
	net := amount.Sub(fee)
	targetAmount := net.Mul(rate).RoundFloor(tgt.Scale)
	if !targetAmount.IsPositive() {
		return nil, fmt.Errorf("amount %s %s converts to nothing: %w", amount, src.Code, util.ErrInvalidInput)
	}

	return &domain.FxQuote{
		SourceAmount:   amount,
		SourceCurrency: src.Code,
		TargetAmount:   targetAmount,
		TargetCurrency: tgt.Code,
		Rate:           rate,
		Fee:            fee,
		ExpiresAt:      now.Add(s.ttl),
	}, nil
}

// TTL is the lifetime of quotes issued by the service.
func (s *Service) TTL() time.Duration {
	return s.ttl
}
