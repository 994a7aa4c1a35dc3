// internal/util/errors.go
package util

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by the ledger engine, its collaborators and the HTTP layer.
var (
	ErrNotFound                = errors.New("resource not found")
	ErrInvalidInput            = errors.New("invalid input provided")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrConcurrentModification  = errors.New("concurrent modification")
	ErrHeld                    = errors.New("transaction held for review")
	ErrChallengeFailed         = errors.New("confirmation challenge failed")
	ErrExternalProviderFailure = errors.New("external provider failure")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrNotCancellable          = errors.New("transaction can no longer be cancelled")
	ErrDuplicateEntry          = errors.New("duplicate entry")
	ErrForbidden               = errors.New("forbidden")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrTransactionFailed       = errors.New("transaction failed")
)

// Refinements. Each wraps its parent so errors.Is matches both.
var (
	ErrAccountNotFound     = fmt.Errorf("account %w", ErrNotFound)
	ErrWalletNotFound      = fmt.Errorf("wallet %w", ErrNotFound)
	ErrTransactionNotFound = fmt.Errorf("transaction %w", ErrNotFound)
	ErrRecipientNotFound   = fmt.Errorf("recipient %w", ErrNotFound)
	ErrMerchantNotFound    = fmt.Errorf("merchant %w", ErrNotFound)

	ErrSelfPayment         = fmt.Errorf("%w: payer and payee are the same account", ErrInvalidInput)
	ErrInvalidBiller       = fmt.Errorf("%w: unknown biller", ErrInvalidInput)
	ErrUnsupportedCurrency = fmt.Errorf("%w: unsupported currency", ErrInvalidInput)
	ErrCurrencyMismatch    = fmt.Errorf("%w: currency mismatch", ErrInvalidInput)
	ErrQuoteExpired        = errors.New("fx quote expired")

	ErrInvalidCode        = fmt.Errorf("%w: invalid code", ErrChallengeFailed)
	ErrChallengeExpired   = fmt.Errorf("%w: code expired", ErrChallengeFailed)
	ErrChallengeExhausted = fmt.Errorf("%w: attempts exhausted", ErrChallengeFailed)

	ErrSettlementTimeout  = fmt.Errorf("%w: settlement timed out", ErrExternalProviderFailure)
	ErrComplianceRejected = fmt.Errorf("%w: rejected by compliance review", ErrTransactionFailed)
)

// IsError reports whether err matches target anywhere in its chain.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
