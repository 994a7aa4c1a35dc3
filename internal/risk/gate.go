// internal/risk/gate.go
package risk

// Policy configures the default rule set.
type Policy struct {
	Ceilings    Ceilings
	Denylist    []string
	ScoreCutoff float64
}

// Gate evaluates rules in order; the first rule that triggers holds the draft.
type Gate struct {
	rules []Rule
}

// NewGate creates a gate over the given rules.
func NewGate(rules ...Rule) *Gate {
	return &Gate{rules: rules}
}

// NewPolicyGate builds the standard ceiling, denylist and score rules from a policy.
func NewPolicyGate(p Policy) *Gate {
	cutoff := p.ScoreCutoff
	if cutoff <= 0 {
		cutoff = DefaultScoreCutoff
	}
	return NewGate(
		AmountCeilingRule{Ceilings: p.Ceilings},
		NewDenylistRule(p.Denylist),
		RiskScoreRule{Cutoff: cutoff},
	)
}

// Assess screens a draft. It never has side effects.
func (g *Gate) Assess(draft Draft, profile Profile) Decision {
	for _, rule := range g.rules {
		if decision, triggered := rule.Evaluate(draft, profile); triggered {
			decision.Allow = false
			return decision
		}
	}
	return Allowed
}
