// internal/config/policy.go
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/risk"
)

//go:embed default_policy.yaml
var defaultPolicyYAML []byte

// Policy holds the domain tables of the engine: currencies, fx rates, risk rules,
// per-channel challenge requirements and billers.
type Policy struct {
	Currencies       domain.CurrencyRegistry
	FxRates          map[string]decimal.Decimal
	FxFeeRate        decimal.Decimal
	Risk             risk.Policy
	RequireChallenge map[domain.TransactionType]bool
	Billers          map[string]string
}

// Amount is a decimal that accepts both quoted and bare YAML scalars.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", value.Line)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q: %w", value.Line, value.Value, err)
	}
	a.Decimal = d
	return nil
}

type policyFile struct {
	Currencies []struct {
		Code  string `yaml:"code"`
		Kind  string `yaml:"kind"`
		Scale int32  `yaml:"scale"`
	} `yaml:"currencies"`
	FX struct {
		Rates   map[string]Amount `yaml:"rates"`
		FeeRate Amount            `yaml:"fee_rate"`
	} `yaml:"fx"`
	Risk struct {
		Ceilings    map[string]map[string]Amount `yaml:"ceilings"`
		Denylist    []string          `yaml:"denylist"`
		ScoreCutoff *float64          `yaml:"score_cutoff"`
	} `yaml:"risk"`
	Channels map[string]struct {
		RequireChallenge bool `yaml:"require_challenge"`
	} `yaml:"channels"`
	Billers map[string]string `yaml:"billers"`
}

// DefaultPolicy returns the built-in policy. It panics only if the embedded file is malformed.
func DefaultPolicy() *Policy {
	p, err := ParsePolicy(defaultPolicyYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded default policy: %v", err))
	}
	return p
}

// LoadPolicy reads a policy file, or returns DefaultPolicy when path is empty.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	p, err := ParsePolicy(data)
	if err != nil {
		return nil, fmt.Errorf("policy file %s: %w", path, err)
	}
	return p, nil
}

// ParsePolicy decodes and validates a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var raw policyFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid policy yaml: %w", err)
	}

	if len(raw.Currencies) == 0 {
		return nil, fmt.Errorf("at least one currency is required")
	}
	currencies := make([]domain.Currency, 0, len(raw.Currencies))
	for _, c := range raw.Currencies {
		code := strings.ToUpper(strings.TrimSpace(c.Code))
		if code == "" {
			return nil, fmt.Errorf("currency without a code")
		}
		kind := domain.WalletKind(strings.ToUpper(c.Kind))
		if kind == "" {
			kind = domain.WalletKindFiat
		}
		if kind != domain.WalletKindFiat && kind != domain.WalletKindCrypto {
			return nil, fmt.Errorf("currency %s: unknown kind %q", code, c.Kind)
		}
		if c.Scale < 0 || c.Scale > 18 {
			return nil, fmt.Errorf("currency %s: scale %d out of range", code, c.Scale)
		}
		currencies = append(currencies, domain.Currency{Code: code, Kind: kind, Scale: c.Scale})
	}
	p := &Policy{
		Currencies:       domain.NewCurrencyRegistry(currencies...),
		FxRates:          make(map[string]decimal.Decimal, len(raw.FX.Rates)),
		FxFeeRate:        raw.FX.FeeRate.Decimal,
		RequireChallenge: make(map[domain.TransactionType]bool, len(raw.Channels)),
		Billers:          make(map[string]string, len(raw.Billers)),
	}

	for pair, rate := range raw.FX.Rates {
		source, target, ok := strings.Cut(strings.ToUpper(strings.TrimSpace(pair)), "/")
		if !ok {
			return nil, fmt.Errorf("fx rate %q: pair must be SRC/TGT", pair)
		}
		for _, code := range []string{source, target} {
			if _, known := p.Currencies.Lookup(code); !known {
				return nil, fmt.Errorf("fx rate %q: unknown currency %s", pair, code)
			}
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("fx rate %q must be positive", pair)
		}
		p.FxRates[source+"/"+target] = rate.Decimal
	}
	if p.FxFeeRate.IsNegative() || p.FxFeeRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("fx fee_rate %s must be within [0,1)", p.FxFeeRate)
	}

	p.Risk = risk.Policy{
		Ceilings:    make(risk.Ceilings, len(raw.Risk.Ceilings)),
		Denylist:    raw.Risk.Denylist,
		ScoreCutoff: risk.DefaultScoreCutoff,
	}
	for channel, perCurrency := range raw.Risk.Ceilings {
		t, err := parseChannel(channel)
		if err != nil {
			return nil, fmt.Errorf("risk ceiling: %w", err)
		}
		ceilings := make(map[string]decimal.Decimal, len(perCurrency))
		for code, ceiling := range perCurrency {
			code = strings.ToUpper(strings.TrimSpace(code))
			if _, known := p.Currencies.Lookup(code); !known {
				return nil, fmt.Errorf("risk ceiling for %s: unknown currency %s", t, code)
			}
			if !ceiling.IsPositive() {
				return nil, fmt.Errorf("risk ceiling for %s %s must be positive", t, code)
			}
			ceilings[code] = ceiling.Decimal
		}
		p.Risk.Ceilings[t] = ceilings
	}
	if raw.Risk.ScoreCutoff != nil {
		if *raw.Risk.ScoreCutoff < 0 || *raw.Risk.ScoreCutoff > 1 {
			return nil, fmt.Errorf("risk score_cutoff %v must be within [0,1]", *raw.Risk.ScoreCutoff)
		}
		p.Risk.ScoreCutoff = *raw.Risk.ScoreCutoff
	}

	for channel, settings := range raw.Channels {
		t, err := parseChannel(channel)
		if err != nil {
			return nil, fmt.Errorf("channels: %w", err)
		}
		p.RequireChallenge[t] = settings.RequireChallenge
	}
	for ref, name := range raw.Billers {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return nil, fmt.Errorf("biller without a reference")
		}
		p.Billers[ref] = strings.TrimSpace(name)
	}
	return p, nil
}

func parseChannel(name string) (domain.TransactionType, error) {
	t := domain.TransactionType(strings.ToUpper(strings.TrimSpace(name)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown channel %q", name)
	}
	return t, nil
}
