// internal/api/handler/accounts.go
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/api/types"
	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/repository"
	"github.com/redapplexx/cpay-sub003/internal/service"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

// AccountRegistrar registers and administers accounts.
type AccountRegistrar interface {
	RegisterAccount(ctx context.Context, handle string, kind domain.AccountKind, riskScore float64) (*domain.Account, error)
	ArchiveAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	SetRiskScore(ctx context.Context, id uuid.UUID, score float64) (*domain.Account, error)
}

// TokenIssuer signs an access token for a newly registered account.
type TokenIssuer func(accountID uuid.UUID) (string, error)

// AccountHandler handles account registration, balances and history.
type AccountHandler struct {
	accounts   AccountRegistrar
	engine     PaymentEngine
	issueToken TokenIssuer
	logger     *slog.Logger
}

// NewAccountHandler creates a new AccountHandler. issueToken may be nil when tokens are not in use.
func NewAccountHandler(accounts AccountRegistrar, engine PaymentEngine, issueToken TokenIssuer, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts:   accounts,
		engine:     engine,
		issueToken: issueToken,
		logger:     logger,
	}
}

// RegisterAccountRequest is the body of POST /accounts.
type RegisterAccountRequest struct {
	Handle string             `json:"handle"`
	Kind   domain.AccountKind `json:"kind"`
}

// RegisterAccountResponse carries the new account and, when tokens are in use, its access token.
type RegisterAccountResponse struct {
	Account *domain.Account `json:"account"`
	Token   string          `json:"token,omitempty"`
}

// Register handles POST /accounts
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	account, err := h.accounts.RegisterAccount(r.Context(), req.Handle, req.Kind, 0)
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}

	resp := RegisterAccountResponse{Account: account}
	if h.issueToken != nil {
		token, err := h.issueToken(account.ID)
		if err != nil {
			respondWithError(w, h.logger, fmt.Errorf("failed to issue token: %w", err), nil)
			return
		}
		resp.Token = token
	}
	respondWithJSON(w, h.logger, http.StatusCreated, resp)
}

// Archive handles POST /accounts/{accountID}/archive. Compliance only.
func (h *AccountHandler) Archive(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuidParam(r, "accountID")
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	account, err := h.accounts.ArchiveAccount(r.Context(), accountID)
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, account)
}

// RiskScoreRequest is the body of PUT /accounts/{accountID}/risk-score.
type RiskScoreRequest struct {
	RiskScore *float64 `json:"risk_score"`
}

// SetRiskScore handles PUT /accounts/{accountID}/risk-score. Compliance only.
func (h *AccountHandler) SetRiskScore(w http.ResponseWriter, r *http.Request) {
	accountID, err := uuidParam(r, "accountID")
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	var req RiskScoreRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	if req.RiskScore == nil {
		respondWithError(w, h.logger, fmt.Errorf("%w: risk_score is required", util.ErrInvalidInput), nil)
		return
	}
	account, err := h.accounts.SetRiskScore(r.Context(), accountID, *req.RiskScore)
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, account)
}

// ListBalances handles GET /accounts/{accountID}/balances
func (h *AccountHandler) ListBalances(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	wallets, err := h.engine.ListBalances(r.Context(), accountID)
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, map[string]interface{}{"wallets": wallets})
}

// GetBalance handles GET /accounts/{accountID}/balances/{currency}
func (h *AccountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	wallet, err := h.engine.GetBalance(r.Context(), accountID, chi.URLParam(r, "currency"))
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, wallet)
}

// GetTransactionHistory handles GET /accounts/{accountID}/transactions
// Query: type, status, currency, since, until (RFC3339), cursor, limit.
func (h *AccountHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.authorizedAccount(w, r)
	if !ok {
		return
	}
	query := r.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			respondWithError(w, h.logger, fmt.Errorf("%w: limit must be a non-negative integer", util.ErrInvalidInput), nil)
			return
		}
		limit = v
	}
	filter, err := parseFilter(query.Get("type"), query.Get("status"), query.Get("currency"), query.Get("since"), query.Get("until"))
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}

	page, err := h.engine.GetTransactionHistory(r.Context(), accountID, filter, query.Get("cursor"), limit)
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, types.CursorPage[domain.TransactionRecord]{
		Data:       page.Records,
		Limit:      effectiveLimit(limit),
		NextCursor: page.NextCursor,
	})
}

func (h *AccountHandler) authorizedAccount(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	accountID, err := uuidParam(r, "accountID")
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return uuid.Nil, false
	}
	if err := ownerOrCompliance(r, accountID); err != nil {
		respondWithError(w, h.logger, err, nil)
		return uuid.Nil, false
	}
	return accountID, true
}

func parseFilter(txType, status, currency, since, until string) (repository.TransactionFilter, error) {
	filter := repository.TransactionFilter{
		Type:     domain.TransactionType(strings.ToUpper(txType)),
		Status:   domain.TransactionStatus(strings.ToUpper(status)),
		Currency: strings.ToUpper(currency),
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return filter, fmt.Errorf("%w: unknown type %q", util.ErrInvalidInput, txType)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return filter, fmt.Errorf("%w: unknown status %q", util.ErrInvalidInput, status)
	}
	for _, bound := range []struct {
		raw string
		dst **time.Time
	}{{since, &filter.Since}, {until, &filter.Until}} {
		if bound.raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, bound.raw)
		if err != nil {
			return filter, fmt.Errorf("%w: %q is not an RFC3339 time", util.ErrInvalidInput, bound.raw)
		}
		*bound.dst = &t
	}
	return filter, nil
}

// FxHandler serves FX previews.
type FxHandler struct {
	engine PaymentEngine
	logger *slog.Logger
}

// NewFxHandler creates a new FxHandler.
func NewFxHandler(engine PaymentEngine, logger *slog.Logger) *FxHandler {
	return &FxHandler{engine: engine, logger: logger}
}

// Quote handles GET /fx/quote?amount=&from=&to=
func (h *FxHandler) Quote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	amount, err := decimal.NewFromString(query.Get("amount"))
	if err != nil {
		respondWithError(w, h.logger, fmt.Errorf("%w: amount must be a decimal", util.ErrInvalidInput), nil)
		return
	}
	quote, err := h.engine.QuoteFX(amount, query.Get("from"), query.Get("to"))
	if err != nil {
		respondWithError(w, h.logger, err, nil)
		return
	}
	respondWithJSON(w, h.logger, http.StatusOK, quote)
}

func effectiveLimit(limit int) int {
	switch {
	case limit <= 0:
		return service.DefaultPageSize
	case limit > service.MaxPageSize:
		return service.MaxPageSize
	}
	return limit
}
