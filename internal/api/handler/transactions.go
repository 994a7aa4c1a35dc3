// internal/api/handler/transactions.go
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/api/middleware"
	"github.com/redapplexx/cpay-sub003/internal/api/types"
	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/repository"
	"github.com/redapplexx/cpay-sub003/internal/service"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

// DefaultTimeout bounds the handling of a single request.
const DefaultTimeout = 30 * time.Second

// PaymentEngine is the part of service.Engine the HTTP layer uses.
type PaymentEngine interface {
	InitiateP2PTransfer(ctx context.Context, req service.P2PTransferRequest) (*service.Result, error)
	InitiateCashIn(ctx context.Context, req service.CashInRequest) (*service.Result, error)
	InitiateCashOut(ctx context.Context, req service.CashOutRequest) (*service.Result, error)
	PayBill(ctx context.Context, req service.BillPaymentRequest) (*service.Result, error)
	PayMerchantQR(ctx context.Context, req service.QRPaymentRequest) (*service.Result, error)
	InitiateRemittance(ctx context.Context, req service.RemittanceRequest) (*service.Result, error)
	ConfirmWithCode(ctx context.Context, accountID, transactionID uuid.UUID, code string) (*service.Result, error)
	ResendChallenge(ctx context.Context, accountID, transactionID uuid.UUID) (*service.Result, error)
	Cancel(ctx context.Context, accountID, transactionID uuid.UUID) (*domain.TransactionRecord, error)
	ReleaseHeld(ctx context.Context, transactionID uuid.UUID, approve bool, note string) (*service.Result, error)
	GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.TransactionRecord, error)
	GetTransactionHistory(ctx context.Context, accountID uuid.UUID, filter repository.TransactionFilter, cursor string, limit int) (*service.HistoryPage, error)
	GetBalance(ctx context.Context, accountID uuid.UUID, currency string) (*domain.Wallet, error)
	ListBalances(ctx context.Context, accountID uuid.UUID) ([]domain.Wallet, error)
	QuoteFX(amount decimal.Decimal, source, target string) (*domain.FxQuote, error)
}

// TransactionHandler handles the money-movement endpoints. The initiating account
// is always the authenticated caller.
type TransactionHandler struct {
	engine PaymentEngine
	logger *slog.Logger
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(engine PaymentEngine, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{engine: engine, logger: logger}
}

// P2PTransferRequest is the body of POST /transfers/p2p.
type P2PTransferRequest struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Note      string          `json:"note"`
}

// TransferP2P handles POST /transfers/p2p
func (h *TransactionHandler) TransferP2P(w http.ResponseWriter, r *http.Request) {
	var req P2PTransferRequest
	h.submit(w, r, &req, func(ctx context.Context, accountID uuid.UUID, nonce string) (*service.Result, error) {
		return h.engine.InitiateP2PTransfer(ctx, service.P2PTransferRequest{
			SenderID:            accountID,
			RecipientIdentifier: req.Recipient,
			Amount:              req.Amount,
			Currency:            req.Currency,
			Note:                req.Note,
			Nonce:               nonce,
		})
	})
}

// CashInRequest is the body of POST /cash-in.
type CashInRequest struct {
	Amount          decimal.Decimal      `json:"amount"`
	Currency        string               `json:"currency"`
	Method          domain.FundingMethod `json:"method"`
	Provider        string               `json:"provider"`
	SourceReference string               `json:"source_reference"`
}

// CashIn handles POST /cash-in
func (h *TransactionHandler) CashIn(w http.ResponseWriter, r *http.Request) {
	var req CashInRequest
	h.submit(w, r, &req, func(ctx context.Context, accountID uuid.UUID, nonce string) (*service.Result, error) {
		return h.engine.InitiateCashIn(ctx, service.CashInRequest{
			AccountID:       accountID,
			Amount:          req.Amount,
			Currency:        req.Currency,
			Method:          req.Method,
			Provider:        req.Provider,
			SourceReference: req.SourceReference,
			Nonce:           nonce,
		})
	})
}

// CashOutRequest is the body of POST /cash-out.
type CashOutRequest struct {
	Amount             decimal.Decimal      `json:"amount"`
	Currency           string               `json:"currency"`
	Method             domain.FundingMethod `json:"method"`
	Provider           string               `json:"provider"`
	DestinationAccount string               `json:"destination_account"`
	BeneficiaryName    string               `json:"beneficiary_name"`
}

// CashOut handles POST /cash-out
func (h *TransactionHandler) CashOut(w http.ResponseWriter, r *http.Request) {
	var req CashOutRequest
	h.submit(w, r, &req, func(ctx context.Context, accountID uuid.UUID, nonce string) (*service.Result, error) {
		return h.engine.InitiateCashOut(ctx, service.CashOutRequest{
			AccountID:          accountID,
			Amount:             req.Amount,
			Currency:           req.Currency,
			Method:             req.Method,
			Provider:           req.Provider,
			DestinationAccount: req.DestinationAccount,
			BeneficiaryName:    req.BeneficiaryName,
			Nonce:              nonce,
		})
	})
}

// BillPaymentRequest is the body of POST /bills.
type BillPaymentRequest struct {
	BillerRef     string          `json:"biller_ref"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
}

// PayBill handles POST /bills
func (h *TransactionHandler) PayBill(w http.ResponseWriter, r *http.Request) {
	var req BillPaymentRequest
	h.submit(w, r, &req, func(ctx context.Context, accountID uuid.UUID, nonce string) (*service.Result, error) {
		return h.engine.PayBill(ctx, service.BillPaymentRequest{
			AccountID:     accountID,
			BillerRef:     req.BillerRef,
			AccountNumber: req.AccountNumber,
			Amount:        req.Amount,
			Currency:      req.Currency,
			Nonce:         nonce,
		})
	})
}

// QRPaymentRequest is the body of POST /qr-payments. Amount and currency may be
// omitted when the payload carries them.
type QRPaymentRequest struct {
	Payload  string          `json:"payload"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// PayQR handles POST /qr-payments
func (h *TransactionHandler) PayQR(w http.ResponseWriter, r *http.Request) {
	var req QRPaymentRequest
	h.submit(w, r, &req, func(ctx context.Context, accountID uuid.UUID, nonce string) (*service.Result, error) {
		return h.engine.PayMerchantQR(ctx, service.QRPaymentRequest{
			PayerID:  accountID,
			Payload:  req.Payload,
			Amount:   req.Amount,
			Currency: req.Currency,
			Nonce:    nonce,
		})
	})
}

// RemittanceRequest is the body of POST /remittances.
type RemittanceRequest struct {
	SourceAmount       decimal.Decimal      `json:"source_amount"`
	SourceCurrency     string               `json:"source_currency"`
	TargetCurrency     string               `json:"target_currency"`
	Recipient          string               `json:"recipient"`
	Corridor           string               `json:"corridor"`
	External           bool                 `json:"external"`
	PayoutMethod       domain.FundingMethod `json:"payout_method"`
	DestinationAccount string               `json:"destination_account"`
	Note               string               `json:"note"`
}

// Remit handles POST /remittances
func (h *TransactionHandler) Remit(w http.ResponseWriter, r *http.Request) {
	var req RemittanceRequest
	h.submit(w, r, &req, func(ctx context.Context, accountID uuid.UUID, nonce string) (*service.Result, error) {
		return h.engine.InitiateRemittance(ctx, service.RemittanceRequest{
			SenderID:            accountID,
			SourceAmount:        req.SourceAmount,
			SourceCurrency:      req.SourceCurrency,
			TargetCurrency:      req.TargetCurrency,
			RecipientIdentifier: req.Recipient,
			Corridor:            req.Corridor,
			External:            req.External,
			PayoutMethod:        req.PayoutMethod,
			DestinationAccount:  req.DestinationAccount,
			Note:                req.Note,
			Nonce:               nonce,
		})
	})
}

// submit decodes the body into req and runs initiate on behalf of the caller.
func (h *TransactionHandler) submit(w http.ResponseWriter, r *http.Request, req interface{},
	initiate func(ctx context.Context, accountID uuid.UUID, nonce string) (*service.Result, error)) {
	p, err := caller(r)
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	if err := decodeJSON(r, req); err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	res, err := initiate(r.Context(), p.AccountID, r.Header.Get(IdempotencyHeader))
	respondWithResult(w, h.logger, res, err)
}

// ConfirmRequest is the body of POST /transactions/{transactionID}/confirm.
type ConfirmRequest struct {
	Code string `json:"code"`
}

// Confirm handles POST /transactions/{transactionID}/confirm
func (h *TransactionHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.callerAndTransaction(w, r)
	if !ok {
		return
	}
	var req ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	res, err := h.engine.ConfirmWithCode(r.Context(), p.AccountID, id, req.Code)
	if err == nil {
		respondWithJSON(w, h.logger, http.StatusOK, transactionResponse(res))
		return
	}
	respondWithResult(w, h.logger, res, err)
}

// ResendCode handles POST /transactions/{transactionID}/resend-code
func (h *TransactionHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.callerAndTransaction(w, r)
	if !ok {
		return
	}
	res, err := h.engine.ResendChallenge(r.Context(), p.AccountID, id)
	if err != nil {
		respondWithResult(w, h.logger, res, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, transactionResponse(res))
}

// Cancel handles POST /transactions/{transactionID}/cancel
func (h *TransactionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.callerAndTransaction(w, r)
	if !ok {
		return
	}
	record, err := h.engine.Cancel(r.Context(), p.AccountID, id)
	if err != nil {
		respondWithError(w, h.logger, err, record)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, record)
}

// ReleaseRequest is the body of POST /transactions/{transactionID}/release.
type ReleaseRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

// Release handles POST /transactions/{transactionID}/release. Compliance only.
func (h *TransactionHandler) Release(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "transactionID")
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	var req ReleaseRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	res, err := h.engine.ReleaseHeld(r.Context(), id, req.Approve, req.Note)
	if err != nil {
		respondWithResult(w, h.logger, res, err)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, transactionResponse(res))
}

// GetTransaction handles GET /transactions/{transactionID}
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	p, id, ok := h.callerAndTransaction(w, r)
	if !ok {
		return
	}
	record, err := h.engine.GetTransaction(r.Context(), id)
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	if !record.Involves(p.AccountID) && p.Role != middleware.RoleCompliance {
		respondWithError(w, h.logger, fmt.Errorf("transaction %s: %w", id, util.ErrForbidden), nil)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, record)
}

func (h *TransactionHandler) callerAndTransaction(w http.ResponseWriter, r *http.Request) (p middleware.Principal, id uuid.UUID, ok bool) {
	p, err := caller(r)
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return p, uuid.Nil, false
	}
	id, err = uuidParam(r, "transactionID")
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return p, uuid.Nil, false
	}
	return p, id, true
}

func transactionResponse(res *service.Result) types.TransactionResponse {
	return types.TransactionResponse{
		Transaction:        res.Transaction,
		ChallengeID:        res.ChallengeID,
		ChallengeExpiresAt: res.ChallengeExpiresAt,
		Duplicate:          res.Duplicate,
	}
}
