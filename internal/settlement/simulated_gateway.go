// internal/settlement/simulated_gateway.go
package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redapplexx/cpay-sub003/internal/util"
)

// Outcome is the scripted result of a simulated settlement.
type Outcome string

const (
	OutcomeSettle  Outcome = "SETTLE"
	OutcomeReject  Outcome = "REJECT"
	OutcomeTimeout Outcome = "TIMEOUT" // block until the caller's context expires
)

// SimulatedGateway settles in-process after a fixed delay. It is used when no
// provider URL is configured and to inject provider failures in tests.
type SimulatedGateway struct {
	mu      sync.Mutex
	delay   time.Duration
	outcome Outcome
	calls   []Instruction
}

// NewSimulatedGateway creates a gateway that always settles after delay.
func NewSimulatedGateway(delay time.Duration) *SimulatedGateway {
	return &SimulatedGateway{delay: delay, outcome: OutcomeSettle}
}

// SetOutcome changes the result of subsequent settlements.
func (g *SimulatedGateway) SetOutcome(o Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcome = o
}

// Calls returns the instructions received so far.
func (g *SimulatedGateway) Calls() []Instruction {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Instruction(nil), g.calls...)
}

func (g *SimulatedGateway) Settle(ctx context.Context, in Instruction) (*Receipt, error) {
	g.mu.Lock()
	outcome, delay := g.outcome, g.delay
	g.calls = append(g.calls, in)
	g.mu.Unlock()

	if outcome == OutcomeTimeout {
		<-ctx.Done()
		return nil, fmt.Errorf("settlement of %s: %w", in.TransactionID, util.ErrSettlementTimeout)
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("settlement of %s: %w", in.TransactionID, util.ErrSettlementTimeout)
	case <-timer.C:
	}

	if outcome == OutcomeReject {
		return nil, fmt.Errorf("settlement of %s rejected by provider: %w", in.TransactionID, util.ErrExternalProviderFailure)
	}
	return &Receipt{
		Reference: "SIM-" + uuid.NewString(),
		SettledAt: time.Now().UTC(),
	}, nil
}
