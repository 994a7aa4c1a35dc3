// internal/settlement/settlement.go
package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/domain"
)

// Direction tells the provider which way funds move.
type Direction string

const (
	DirectionCollect Direction = "COLLECT" // pull funds in from an external source
	DirectionPayout  Direction = "PAYOUT"  // push funds out to an external destination
)

// Instruction is a single settlement request sent to an external provider.
type Instruction struct {
	TransactionID uuid.UUID              `json:"transaction_id"`
	Channel       domain.TransactionType `json:"channel"`
	Direction     Direction              `json:"direction"`
	Amount        decimal.Decimal        `json:"amount"`
	Currency      string                 `json:"currency"`
	Method        domain.FundingMethod   `json:"method,omitempty"`
	Provider      string                 `json:"provider,omitempty"`
	Counterparty  string                 `json:"counterparty,omitempty"`
	Beneficiary   string                 `json:"beneficiary,omitempty"`
}

// Receipt confirms a settled instruction.
type Receipt struct {
	Reference string
	SettledAt time.Time
}

// Gateway is the external settlement collaborator. Implementations return an
// error wrapping util.ErrSettlementTimeout when ctx expires and
// util.ErrExternalProviderFailure for any other failure.
type Gateway interface {
	Settle(ctx context.Context, in Instruction) (*Receipt, error)
}
