// internal/domain/challenge.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChallengeIntent is an outstanding one-time code guarding a transaction draft.
// Only one intent is active per transaction; the code itself is kept as a hash.
type ChallengeIntent struct {
	ID                uuid.UUID `json:"id"`
	AccountID         uuid.UUID `json:"account_id"`
	TransactionID     uuid.UUID `json:"transaction_id"`
	CodeHash          string    `json:"code_hash"`
	ExpiresAt         time.Time `json:"expires_at"`
	AttemptsRemaining int       `json:"attempts_remaining"`
	CreatedAt         time.Time `json:"created_at"`
}

// IsExpired reports whether the code can no longer be accepted at now.
func (c *ChallengeIntent) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
