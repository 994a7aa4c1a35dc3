// internal/service/channels.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

// P2PTransferRequest moves funds between two accounts in one currency.
type P2PTransferRequest struct {
	SenderID            uuid.UUID
	RecipientIdentifier string
	Amount              decimal.Decimal
	Currency            string
	Note                string
	Nonce               string
}

// CashInRequest funds a wallet from an external source.
type CashInRequest struct {
	AccountID       uuid.UUID
	Amount          decimal.Decimal
	Currency        string
	Method          domain.FundingMethod
	Provider        string
	SourceReference string
	Nonce           string
}

// CashOutRequest withdraws funds to an external destination.
type CashOutRequest struct {
	AccountID          uuid.UUID
	Amount             decimal.Decimal
	Currency           string
	Method             domain.FundingMethod
	Provider           string
	DestinationAccount string
	BeneficiaryName    string
	Nonce              string
}

// BillPaymentRequest pays a registered biller.
type BillPaymentRequest struct {
	AccountID     uuid.UUID
	BillerRef     string
	AccountNumber string
	Amount        decimal.Decimal
	Currency      string
	Nonce         string
}

// QRPaymentRequest pays the merchant encoded in a scanned QR payload. Amount and
// Currency may be left empty when the payload carries them.
type QRPaymentRequest struct {
	PayerID  uuid.UUID
	Payload  string
	Amount   decimal.Decimal
	Currency string
	Nonce    string
}

// RemittanceRequest sends funds across currencies, to an internal account or, when
// External is set, to a payout destination in the target corridor.
type RemittanceRequest struct {
	SenderID            uuid.UUID
	SourceAmount        decimal.Decimal
	SourceCurrency      string
	TargetCurrency      string
	RecipientIdentifier string
	Corridor            string
	External            bool
	PayoutMethod        domain.FundingMethod
	DestinationAccount  string
	Note                string
	Nonce               string
}

// InitiateP2PTransfer starts a peer transfer. By default it stops in
// AWAITING_CONFIRMATION with a challenge id.
func (e *Engine) InitiateP2PTransfer(ctx context.Context, req P2PTransferRequest) (*Result, error) {
	sender, currency, err := e.validateInitiator(ctx, req.SenderID, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	details := domain.P2PDetails{RecipientIdentifier: strings.TrimSpace(req.RecipientIdentifier)}
	if err := validateDetails(details); err != nil {
		return nil, err
	}
	recipient, err := e.accounts.resolveRecipient(ctx, details.RecipientIdentifier)
	if err != nil {
		return nil, err
	}
	if recipient.ID == sender.ID {
		return nil, util.ErrSelfPayment
	}

	record := domain.NewTransactionRecord(domain.TransactionTypeP2P, sender.ID, &sender.ID, &recipient.ID,
		req.Amount, currency.Code, details, req.Note)
	return e.submit(ctx, draft{
		record:         record,
		initiator:      sender,
		counterparties: []string{recipient.ID.String(), recipient.Handle},
		recipientKey:   recipient.ID.String(),
		nonce:          req.Nonce,
	})
}

// InitiateCashIn collects funds from an external source and credits the account.
func (e *Engine) InitiateCashIn(ctx context.Context, req CashInRequest) (*Result, error) {
	account, currency, err := e.validateInitiator(ctx, req.AccountID, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	details := domain.CashInDetails{
		Method:          req.Method,
		Provider:        strings.TrimSpace(req.Provider),
		SourceReference: strings.TrimSpace(req.SourceReference),
	}
	if err := validateDetails(details); err != nil {
		return nil, err
	}

	record := domain.NewTransactionRecord(domain.TransactionTypeCashIn, account.ID, nil, &account.ID,
		req.Amount, currency.Code, details, "")
	return e.submit(ctx, draft{
		record:         record,
		initiator:      account,
		counterparties: []string{details.SourceReference},
		recipientKey:   account.ID.String(),
		nonce:          req.Nonce,
	})
}

// InitiateCashOut pays funds out to an external destination.
func (e *Engine) InitiateCashOut(ctx context.Context, req CashOutRequest) (*Result, error) {
	account, currency, err := e.validateInitiator(ctx, req.AccountID, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	details := domain.CashOutDetails{
		Method:             req.Method,
		Provider:           strings.TrimSpace(req.Provider),
		DestinationAccount: strings.TrimSpace(req.DestinationAccount),
		BeneficiaryName:    strings.TrimSpace(req.BeneficiaryName),
	}
	if err := validateDetails(details); err != nil {
		return nil, err
	}

	record := domain.NewTransactionRecord(domain.TransactionTypeCashOut, account.ID, &account.ID, nil,
		req.Amount, currency.Code, details, "")
	return e.submit(ctx, draft{
		record:         record,
		initiator:      account,
		counterparties: []string{details.DestinationAccount},
		recipientKey:   string(details.Method) + ":" + details.DestinationAccount,
		nonce:          req.Nonce,
	})
}

// PayBill pays a registered biller.
func (e *Engine) PayBill(ctx context.Context, req BillPaymentRequest) (*Result, error) {
	account, currency, err := e.validateInitiator(ctx, req.AccountID, req.Amount, req.Currency)
	if err != nil {
		return nil, err
	}
	details := domain.BillPaymentDetails{
		BillerRef:     strings.TrimSpace(req.BillerRef),
		AccountNumber: strings.TrimSpace(req.AccountNumber),
	}
	if err := validateDetails(details); err != nil {
		return nil, err
	}
	name, ok := e.policy.Billers[details.BillerRef]
	if !ok {
		return nil, fmt.Errorf("biller %q: %w", details.BillerRef, util.ErrInvalidBiller)
	}
	details.BillerName = name

	record := domain.NewTransactionRecord(domain.TransactionTypeBillPayment, account.ID, &account.ID, nil,
		req.Amount, currency.Code, details, "")
	return e.submit(ctx, draft{
		record:         record,
		initiator:      account,
		counterparties: []string{details.BillerRef},
		recipientKey:   details.BillerRef + ":" + details.AccountNumber,
		nonce:          req.Nonce,
	})
}

// PayMerchantQR pays the merchant encoded in a QR payload.
func (e *Engine) PayMerchantQR(ctx context.Context, req QRPaymentRequest) (*Result, error) {
	payload, err := ParseMerchantQR(req.Payload)
	if err != nil {
		return nil, err
	}
	amount, currencyCode := req.Amount, req.Currency
	if payload.Amount != nil {
		if !amount.IsZero() && !amount.Equal(*payload.Amount) {
			return nil, fmt.Errorf("%w: amount %s differs from the QR amount %s", util.ErrInvalidInput, amount, payload.Amount)
		}
		amount = *payload.Amount
	}
	if payload.Currency != "" {
		if currencyCode != "" && !strings.EqualFold(currencyCode, payload.Currency) {
			return nil, fmt.Errorf("%w: currency %s differs from the QR currency %s", util.ErrCurrencyMismatch, currencyCode, payload.Currency)
		}
		currencyCode = payload.Currency
	}

	payer, currency, err := e.validateInitiator(ctx, req.PayerID, amount, currencyCode)
	if err != nil {
		return nil, err
	}
	merchant, err := e.accounts.activeAccount(ctx, payload.MerchantID)
	if err != nil && !errors.Is(err, util.ErrNotFound) {
		return nil, err
	}
	if err != nil || merchant.Kind != domain.AccountKindMerchant {
		return nil, fmt.Errorf("merchant %s: %w", payload.MerchantID, util.ErrMerchantNotFound)
	}
	if merchant.ID == payer.ID {
		return nil, util.ErrSelfPayment
	}

	details := domain.QRPaymentDetails{MerchantID: merchant.ID, QRReference: payload.Reference}
	if err := validateDetails(details); err != nil {
		return nil, err
	}
	record := domain.NewTransactionRecord(domain.TransactionTypeQRPayment, payer.ID, &payer.ID, &merchant.ID,
		amount, currency.Code, details, "")
	return e.submit(ctx, draft{
		record:         record,
		initiator:      payer,
		counterparties: []string{merchant.ID.String(), merchant.Handle},
		recipientKey:   merchant.ID.String() + ":" + payload.Reference,
		nonce:          req.Nonce,
	})
}

// InitiateRemittance converts and sends funds. An internal recipient is credited
// the quoted target amount; an external one is paid out the target amount.
func (e *Engine) InitiateRemittance(ctx context.Context, req RemittanceRequest) (*Result, error) {
	sender, source, err := e.validateInitiator(ctx, req.SenderID, req.SourceAmount, req.SourceCurrency)
	if err != nil {
		return nil, err
	}
	target, ok := e.currencies.Lookup(req.TargetCurrency)
	if !ok {
		return nil, fmt.Errorf("target currency %q: %w", req.TargetCurrency, util.ErrUnsupportedCurrency)
	}
	if source.Code == target.Code {
		return nil, fmt.Errorf("remittance needs two currencies, got %s twice: %w", source.Code, util.ErrCurrencyMismatch)
	}

	details := domain.RemittanceDetails{
		RecipientIdentifier: strings.TrimSpace(req.RecipientIdentifier),
		Corridor:            strings.TrimSpace(req.Corridor),
		External:            req.External,
		PayoutMethod:        req.PayoutMethod,
		DestinationAccount:  strings.TrimSpace(req.DestinationAccount),
	}
	if details.Corridor == "" {
		details.Corridor = source.Code + "-" + target.Code
	}
	if err := validateDetails(details); err != nil {
		return nil, err
	}

	var (
		recipientID    *uuid.UUID
		recipientKey   string
		counterparties []string
	)
	if details.External {
		recipientKey = string(details.PayoutMethod) + ":" + details.DestinationAccount
		counterparties = []string{details.RecipientIdentifier, details.DestinationAccount}
	} else {
		recipient, err := e.accounts.resolveRecipient(ctx, details.RecipientIdentifier)
		if err != nil {
			return nil, err
		}
		if recipient.ID == sender.ID {
			return nil, util.ErrSelfPayment
		}
		recipientID = &recipient.ID
		recipientKey = recipient.ID.String()
		counterparties = []string{recipient.ID.String(), recipient.Handle}
	}

	quote, err := e.fx.Quote(req.SourceAmount, source.Code, target.Code, e.now())
	if err != nil {
		return nil, err
	}

	record := domain.NewTransactionRecord(domain.TransactionTypeRemittance, sender.ID, &sender.ID, recipientID,
		req.SourceAmount, source.Code, details, req.Note)
	record.FxDetails = quote
	return e.submit(ctx, draft{
		record:         record,
		initiator:      sender,
		counterparties: counterparties,
		recipientKey:   recipientKey + ":" + target.Code,
		nonce:          req.Nonce,
	})
}

// validateInitiator checks the fields every channel shares: an active initiating
// account and an amount that fits a supported currency.
func (e *Engine) validateInitiator(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, currencyCode string) (*domain.Account, domain.Currency, error) {
	currency, ok := e.currencies.Lookup(currencyCode)
	if !ok {
		return nil, domain.Currency{}, fmt.Errorf("%q: %w", currencyCode, util.ErrUnsupportedCurrency)
	}
	if !currency.AcceptsAmount(amount) {
		return nil, domain.Currency{}, fmt.Errorf("%w: amount %s must be positive with at most %d decimals for %s",
			util.ErrInvalidInput, amount, currency.Scale, currency.Code)
	}
	account, err := e.accounts.activeAccount(ctx, accountID)
	if err != nil {
		return nil, domain.Currency{}, err
	}
	return account, currency, nil
}

func validateDetails(details domain.ChannelDetails) error {
	if err := details.Validate(); err != nil {
		return fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}
	return nil
}
