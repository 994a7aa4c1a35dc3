// internal/domain/transaction.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType identifies the channel that produced a transaction.
type TransactionType string

const (
	TransactionTypeP2P         TransactionType = "P2P"
	TransactionTypeCashIn      TransactionType = "CASH_IN"
	TransactionTypeCashOut     TransactionType = "CASH_OUT"
	TransactionTypeBillPayment TransactionType = "BILL_PAYMENT"
	TransactionTypeQRPayment   TransactionType = "QR_PAYMENT"
	TransactionTypeRemittance  TransactionType = "REMITTANCE"
)

// TransactionTypes lists every channel in a stable order.
var TransactionTypes = []TransactionType{
	TransactionTypeP2P,
	TransactionTypeCashIn,
	TransactionTypeCashOut,
	TransactionTypeBillPayment,
	TransactionTypeQRPayment,
	TransactionTypeRemittance,
}

// Valid reports whether t is a known channel.
func (t TransactionType) Valid() bool {
	for _, known := range TransactionTypes {
		if t == known {
			return true
		}
	}
	return false
}

// TransactionStatus is the lifecycle state of a transaction record.
type TransactionStatus string

const (
	TransactionStatusPending              TransactionStatus = "PENDING"
	TransactionStatusAwaitingConfirmation TransactionStatus = "AWAITING_CONFIRMATION"
	TransactionStatusCommitting           TransactionStatus = "COMMITTING"
	TransactionStatusHeld                 TransactionStatus = "HELD"
	TransactionStatusCompleted            TransactionStatus = "COMPLETED"
	TransactionStatusFailed               TransactionStatus = "FAILED"
	TransactionStatusCancelled            TransactionStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// transitions is the state machine. HELD only leaves through an explicit compliance release.
var transitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {
		TransactionStatusCommitting,
		TransactionStatusHeld,
		TransactionStatusAwaitingConfirmation,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	},
	TransactionStatusAwaitingConfirmation: {
		TransactionStatusCommitting,
		TransactionStatusFailed,
		TransactionStatusCancelled,
	},
	TransactionStatusCommitting: {
		TransactionStatusCompleted,
		TransactionStatusFailed,
	},
	TransactionStatusHeld: {
		TransactionStatusCommitting,
		TransactionStatusFailed,
	},
	TransactionStatusCompleted: nil,
	TransactionStatusFailed:    nil,
	TransactionStatusCancelled: nil,
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to TransactionStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no automatic transition leaves s.
func (s TransactionStatus) IsTerminal() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusFailed, TransactionStatusCancelled, TransactionStatusHeld:
		return true
	}
	return false
}

// IsCancellable reports whether a caller may still cancel a record in status s.
func (s TransactionStatus) IsCancellable() bool {
	return s == TransactionStatusPending || s == TransactionStatusAwaitingConfirmation
}

// FailureReason is the queryable reason stored on FAILED and HELD records.
type FailureReason string

const (
	ReasonInsufficientFunds       FailureReason = "InsufficientFunds"
	ReasonConcurrentModification  FailureReason = "ConcurrentModification"
	ReasonChallengeFailed         FailureReason = "ChallengeFailed"
	ReasonChallengeExpired        FailureReason = "ChallengeExpired"
	ReasonChallengeUnavailable    FailureReason = "ChallengeUnavailable"
	ReasonExternalProviderFailure FailureReason = "ExternalProviderFailure"
	ReasonSettlementTimeout       FailureReason = "SettlementTimeout"
	ReasonQuoteExpired            FailureReason = "QuoteExpired"
	ReasonRiskHold                FailureReason = "RiskHold"
	ReasonComplianceRejected      FailureReason = "ComplianceRejected"
	ReasonLedgerError             FailureReason = "LedgerError"
)

// TransactionRecord is the journal entry for one money-movement attempt.
//
// InitiatorID is the account that submitted the request. SenderID is nil when funds
// originate outside the platform (cash-in); RecipientID is nil for external destinations.
type TransactionRecord struct {
	ID             uuid.UUID         `json:"id"`
	Type           TransactionType   `json:"type"`
	Status         TransactionStatus `json:"status"`
	Amount         decimal.Decimal   `json:"amount"`
	Currency       string            `json:"currency"`
	InitiatorID    uuid.UUID         `json:"initiator_id"`
	SenderID       *uuid.UUID        `json:"sender_id,omitempty"`
	RecipientID    *uuid.UUID        `json:"recipient_id,omitempty"`
	ChannelDetails ChannelDetails    `json:"channel_details"`
	FxDetails      *FxQuote          `json:"fx_details,omitempty"`
	Notes          string            `json:"notes,omitempty"`
	FailureReason  *FailureReason    `json:"failure_reason,omitempty"`
	ExternalRef    *string           `json:"external_ref,omitempty"`
	IdempotencyKey *string           `json:"-"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	SettledAt      *time.Time        `json:"settled_at,omitempty"`
}

// NewTransactionRecord creates a PENDING record for a validated draft.
func NewTransactionRecord(
	txType TransactionType,
	initiatorID uuid.UUID,
	senderID *uuid.UUID,
	recipientID *uuid.UUID,
	amount decimal.Decimal,
	currency string,
	details ChannelDetails,
	notes string,
) *TransactionRecord {
	now := Now()
	return &TransactionRecord{
		ID:             uuid.New(),
		Type:           txType,
		Status:         TransactionStatusPending,
		Amount:         amount,
		Currency:       currency,
		InitiatorID:    initiatorID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		ChannelDetails: details,
		Notes:          notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CreditedAmount is what the recipient side receives: the FX target amount when a quote
// is attached, the nominal amount otherwise.
func (t *TransactionRecord) CreditedAmount() (decimal.Decimal, string) {
	if t.FxDetails != nil {
		return t.FxDetails.TargetAmount, t.FxDetails.TargetCurrency
	}
	return t.Amount, t.Currency
}

// Involves reports whether accountID is a party to the transaction.
func (t *TransactionRecord) Involves(accountID uuid.UUID) bool {
	if t.InitiatorID == accountID {
		return true
	}
	if t.SenderID != nil && *t.SenderID == accountID {
		return true
	}
	return t.RecipientID != nil && *t.RecipientID == accountID
}
