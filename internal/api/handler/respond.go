// internal/api/handler/respond.go
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/redapplexx/cpay-sub003/internal/api/middleware"
	"github.com/redapplexx/cpay-sub003/internal/api/types"
	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/service"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

// IdempotencyHeader carries the client nonce that makes a submission idempotent.
const IdempotencyHeader = "Idempotency-Key"

const maxBodyBytes = 1 << 20

// respondWithJSON writes payload as a JSON response.
func respondWithJSON(w http.ResponseWriter, logger *slog.Logger, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

// respondWithError maps err onto an HTTP status. record, when given, is the journal
// entry the failed operation left behind.
func respondWithError(w http.ResponseWriter, logger *slog.Logger, err error, record *domain.TransactionRecord) {
	status, code := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Unhandled service error", "error", err)
		message = "Internal server error"
	}
	respondWithJSON(w, logger, status, types.ErrorResponse{Error: message, Code: code, Transaction: record})
}

// respondWithResult writes the outcome of a money-movement operation.
func respondWithResult(w http.ResponseWriter, logger *slog.Logger, res *service.Result, err error) {
	if err != nil && !errors.Is(err, util.ErrHeld) {
		var record *domain.TransactionRecord
		if res != nil {
			record = res.Transaction
		}
		respondWithError(w, logger, err, record)
		return
	}
	if res == nil {
		respondWithError(w, logger, err, nil)
		return
	}

	status := http.StatusCreated
	switch {
	case res.Duplicate:
		status = http.StatusOK
	case res.Transaction.Status == domain.TransactionStatusAwaitingConfirmation,
		res.Transaction.Status == domain.TransactionStatusHeld:
		status = http.StatusAccepted
	}
	respondWithJSON(w, logger, status, transactionResponse(res))
}

func statusFor(err error) (int, string) {
	switch {
	case util.IsError(err, util.ErrHeld):
		return http.StatusAccepted, "held"
	case util.IsError(err, util.ErrSelfPayment):
		return http.StatusBadRequest, "self_payment"
	case util.IsError(err, util.ErrInvalidBiller):
		return http.StatusBadRequest, "invalid_biller"
	case util.IsError(err, util.ErrUnsupportedCurrency):
		return http.StatusBadRequest, "unsupported_currency"
	case util.IsError(err, util.ErrCurrencyMismatch):
		return http.StatusBadRequest, "currency_mismatch"
	case util.IsError(err, util.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case util.IsError(err, util.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case util.IsError(err, util.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case util.IsError(err, util.ErrRecipientNotFound):
		return http.StatusNotFound, "recipient_not_found"
	case util.IsError(err, util.ErrMerchantNotFound):
		return http.StatusNotFound, "merchant_not_found"
	case util.IsError(err, util.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case util.IsError(err, util.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "insufficient_funds"
	case util.IsError(err, util.ErrConcurrentModification):
		return http.StatusConflict, "concurrent_modification"
	case util.IsError(err, util.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case util.IsError(err, util.ErrNotCancellable):
		return http.StatusConflict, "not_cancellable"
	case util.IsError(err, util.ErrDuplicateEntry):
		return http.StatusConflict, "duplicate"
	case util.IsError(err, util.ErrQuoteExpired):
		return http.StatusGone, "quote_expired"
	case util.IsError(err, util.ErrChallengeExpired):
		return http.StatusGone, "challenge_expired"
	case util.IsError(err, util.ErrChallengeExhausted):
		return http.StatusUnprocessableEntity, "challenge_exhausted"
	case util.IsError(err, util.ErrChallengeFailed):
		return http.StatusUnprocessableEntity, "invalid_code"
	case util.IsError(err, util.ErrSettlementTimeout):
		return http.StatusGatewayTimeout, "settlement_timeout"
	case util.IsError(err, util.ErrExternalProviderFailure):
		return http.StatusBadGateway, "external_provider_failure"
	case util.IsError(err, util.ErrTransactionFailed):
		return http.StatusUnprocessableEntity, "transaction_failed"
	}
	return http.StatusInternalServerError, "internal"
}

// decodeJSON reads a bounded JSON body into dst.
func decodeJSON(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", util.ErrInvalidInput, err)
	}
	return nil
}

func uuidParam(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s must be a uuid", util.ErrInvalidInput, name)
	}
	return id, nil
}

// caller returns the authenticated principal. Routes using it sit behind Authenticate.
func caller(r *http.Request) (middleware.Principal, error) {
	p, ok := middleware.PrincipalFrom(r.Context())
	if !ok {
		return middleware.Principal{}, util.ErrUnauthorized
	}
	return p, nil
}

// ownerOrCompliance allows the account itself and compliance reviewers.
func ownerOrCompliance(r *http.Request, accountID uuid.UUID) error {
	p, err := caller(r)
	if err != nil {
		return err
	}
	if p.AccountID != accountID && p.Role != middleware.RoleCompliance {
		return fmt.Errorf("account %s: %w", accountID, util.ErrForbidden)
	}
	return nil
}
