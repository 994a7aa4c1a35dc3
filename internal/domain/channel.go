// internal/domain/channel.go
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ChannelDetails is the channel-specific payload of a transaction record.
// Exactly one concrete variant exists per TransactionType.
type ChannelDetails interface {
	Channel() TransactionType
	Validate() error
}

// FundingMethod is how money enters or leaves the platform.
type FundingMethod string

const (
	FundingMethodBankTransfer FundingMethod = "BANK_TRANSFER"
	FundingMethodCard         FundingMethod = "CARD"
	FundingMethodCashOutlet   FundingMethod = "CASH_OUTLET"
	FundingMethodEWallet      FundingMethod = "E_WALLET"
	FundingMethodCrypto       FundingMethod = "CRYPTO"
)

// Valid reports whether m is a known method.
func (m FundingMethod) Valid() bool {
	switch m {
	case FundingMethodBankTransfer, FundingMethodCard, FundingMethodCashOutlet, FundingMethodEWallet, FundingMethodCrypto:
		return true
	}
	return false
}

var errDetails = errors.New("invalid channel details")

// P2PDetails carries the identifier the sender typed for the recipient.
type P2PDetails struct {
	RecipientIdentifier string `json:"recipient_identifier"`
}

func (P2PDetails) Channel() TransactionType { return TransactionTypeP2P }

func (d P2PDetails) Validate() error {
	if strings.TrimSpace(d.RecipientIdentifier) == "" {
		return fmt.Errorf("%w: recipient identifier is required", errDetails)
	}
	return nil
}

// CashInDetails describes the external funding source.
type CashInDetails struct {
	Method          FundingMethod `json:"method"`
	Provider        string        `json:"provider,omitempty"`
	SourceReference string        `json:"source_reference,omitempty"`
}

func (CashInDetails) Channel() TransactionType { return TransactionTypeCashIn }

func (d CashInDetails) Validate() error {
	if !d.Method.Valid() {
		return fmt.Errorf("%w: unknown source method %q", errDetails, d.Method)
	}
	return nil
}

// CashOutDetails describes the external destination.
type CashOutDetails struct {
	Method             FundingMethod `json:"method"`
	Provider           string        `json:"provider,omitempty"`
	DestinationAccount string        `json:"destination_account"`
	BeneficiaryName    string        `json:"beneficiary_name,omitempty"`
}

func (CashOutDetails) Channel() TransactionType { return TransactionTypeCashOut }

func (d CashOutDetails) Validate() error {
	if !d.Method.Valid() {
		return fmt.Errorf("%w: unknown destination method %q", errDetails, d.Method)
	}
	if strings.TrimSpace(d.DestinationAccount) == "" {
		return fmt.Errorf("%w: destination account is required", errDetails)
	}
	return nil
}

// BillPaymentDetails identifies the biller and the customer's account with it.
type BillPaymentDetails struct {
	BillerRef     string `json:"biller_ref"`
	BillerName    string `json:"biller_name,omitempty"`
	AccountNumber string `json:"account_number"`
}

func (BillPaymentDetails) Channel() TransactionType { return TransactionTypeBillPayment }

func (d BillPaymentDetails) Validate() error {
	if strings.TrimSpace(d.BillerRef) == "" {
		return fmt.Errorf("%w: biller reference is required", errDetails)
	}
	if strings.TrimSpace(d.AccountNumber) == "" {
		return fmt.Errorf("%w: biller account number is required", errDetails)
	}
	return nil
}

// QRPaymentDetails records the merchant decoded from the scanned payload.
type QRPaymentDetails struct {
	MerchantID  uuid.UUID `json:"merchant_id"`
	QRReference string    `json:"qr_reference,omitempty"`
}

func (QRPaymentDetails) Channel() TransactionType { return TransactionTypeQRPayment }

func (d QRPaymentDetails) Validate() error {
	if d.MerchantID == uuid.Nil {
		return fmt.Errorf("%w: merchant id is required", errDetails)
	}
	return nil
}

// RemittanceDetails describes the corridor and, for external payouts, the destination.
type RemittanceDetails struct {
	RecipientIdentifier string        `json:"recipient_identifier"`
	Corridor            string        `json:"corridor"`
	External            bool          `json:"external"`
	PayoutMethod        FundingMethod `json:"payout_method,omitempty"`
	DestinationAccount  string        `json:"destination_account,omitempty"`
}

func (RemittanceDetails) Channel() TransactionType { return TransactionTypeRemittance }

func (d RemittanceDetails) Validate() error {
	if strings.TrimSpace(d.RecipientIdentifier) == "" {
		return fmt.Errorf("%w: recipient identifier is required", errDetails)
	}
	if d.External {
		if !d.PayoutMethod.Valid() {
			return fmt.Errorf("%w: unknown payout method %q", errDetails, d.PayoutMethod)
		}
		if strings.TrimSpace(d.DestinationAccount) == "" {
			return fmt.Errorf("%w: destination account is required for external payout", errDetails)
		}
	}
	return nil
}

type detailsEnvelope struct {
	Type TransactionType `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeChannelDetails serializes a variant together with its discriminator.
func EncodeChannelDetails(d ChannelDetails) ([]byte, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: missing", errDetails)
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(detailsEnvelope{Type: d.Channel(), Data: data})
}

// DecodeChannelDetails restores the variant named by the envelope discriminator.
func DecodeChannelDetails(raw []byte) (ChannelDetails, error) {
	var env detailsEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode channel details: %w", err)
	}

	var (
		d   ChannelDetails
		err error
	)
	switch env.Type {
	case TransactionTypeP2P:
		var v P2PDetails
		err = json.Unmarshal(env.Data, &v)
		d = v
	case TransactionTypeCashIn:
		var v CashInDetails
		err = json.Unmarshal(env.Data, &v)
		d = v
	case TransactionTypeCashOut:
		var v CashOutDetails
		err = json.Unmarshal(env.Data, &v)
		d = v
	case TransactionTypeBillPayment:
		var v BillPaymentDetails
		err = json.Unmarshal(env.Data, &v)
		d = v
	case TransactionTypeQRPayment:
		var v QRPaymentDetails
		err = json.Unmarshal(env.Data, &v)
		d = v
	case TransactionTypeRemittance:
		var v RemittanceDetails
		err = json.Unmarshal(env.Data, &v)
		d = v
	default:
		return nil, fmt.Errorf("%w: unknown channel %q", errDetails, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s details: %w", env.Type, err)
	}
	return d, nil
}
