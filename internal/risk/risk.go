// internal/risk/risk.go
package risk

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/domain"
)

// DefaultScoreCutoff holds accounts whose behavioral score is above it.
const DefaultScoreCutoff = 0.8

// Draft is the part of a pending transaction the rules look at.
type Draft struct {
	Type        domain.TransactionType
	Amount      decimal.Decimal
	Currency    string
	InitiatorID uuid.UUID
	// Counterparties are the identifiers funds flow to: internal account ids and
	// handles, merchant ids, biller refs, external destination accounts.
	Counterparties []string
}

// Profile is the initiating account's risk profile.
type Profile struct {
	AccountID uuid.UUID
	RiskScore float64
}

// Decision is the gate's verdict. Rule names the rule that held the draft.
type Decision struct {
	Allow  bool
	Rule   string
	Reason string
}

// Allowed is the decision returned when no rule triggers.
var Allowed = Decision{Allow: true}

// Rule is one independent screening heuristic. A rule returns a hold decision
// when it triggers and ok=false otherwise.
type Rule interface {
	Name() string
	Evaluate(draft Draft, profile Profile) (Decision, bool)
}

// Ceilings maps a channel to its per-currency amount ceilings.
type Ceilings map[domain.TransactionType]map[string]decimal.Decimal

// AmountCeilingRule holds drafts whose amount is above the ceiling of their channel
// and currency. Channels without ceilings are not limited; a limited channel holds
// drafts in a currency it has no ceiling for.
type AmountCeilingRule struct {
	Ceilings Ceilings
}

func (r AmountCeilingRule) Name() string { return "amount_ceiling" }

func (r AmountCeilingRule) Evaluate(draft Draft, _ Profile) (Decision, bool) {
	perCurrency, limited := r.Ceilings[draft.Type]
	if !limited {
		return Decision{}, false
	}
	ceiling, ok := perCurrency[strings.ToUpper(draft.Currency)]
	if !ok {
		return Decision{
			Rule:   r.Name(),
			Reason: fmt.Sprintf("%s has no ceiling for %s", draft.Type, draft.Currency),
		}, true
	}
	if !draft.Amount.GreaterThan(ceiling) {
		return Decision{}, false
	}
	return Decision{
		Rule:   r.Name(),
		Reason: fmt.Sprintf("%s amount %s %s exceeds ceiling %s", draft.Type, draft.Amount, draft.Currency, ceiling),
	}, true
}

// DenylistRule holds drafts sending funds to a listed counterparty.
type DenylistRule struct {
	entries map[string]struct{}
}

// NewDenylistRule builds a denylist. Entries match case-insensitively.
func NewDenylistRule(entries []string) DenylistRule {
	set := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e = normalize(e); e != "" {
			set[e] = struct{}{}
		}
	}
	return DenylistRule{entries: set}
}

func (r DenylistRule) Name() string { return "denylist" }

func (r DenylistRule) Evaluate(draft Draft, _ Profile) (Decision, bool) {
	for _, c := range draft.Counterparties {
		if _, listed := r.entries[normalize(c)]; listed {
			return Decision{Rule: r.Name(), Reason: fmt.Sprintf("counterparty %q is denylisted", c)}, true
		}
	}
	return Decision{}, false
}

// RiskScoreRule holds drafts initiated by accounts scoring above the cutoff.
type RiskScoreRule struct {
	Cutoff float64
}

func (r RiskScoreRule) Name() string { return "risk_score" }

func (r RiskScoreRule) Evaluate(_ Draft, profile Profile) (Decision, bool) {
	if profile.RiskScore <= r.Cutoff {
		return Decision{}, false
	}
	return Decision{
		Rule:   r.Name(),
		Reason: fmt.Sprintf("account risk score %.2f is above cutoff %.2f", profile.RiskScore, r.Cutoff),
	}, true
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
