// internal/api/types/response.go
package types

import (
	"time"

	"github.com/google/uuid"

	"github.com/redapplexx/cpay-sub003/internal/domain"
)

// CursorPage is a page of results ordered newest first. NextCursor is empty on the last page.
type CursorPage[T any] struct {
	Data       []T    `json:"data"`
	Limit      int    `json:"limit"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// ErrorResponse is the body of every non-2xx response. Transaction is set when the
// failure left a journal record behind.
type ErrorResponse struct {
	Error       string                    `json:"error"`
	Code        string                    `json:"code"`
	Transaction *domain.TransactionRecord `json:"transaction,omitempty"`
}

// TransactionResponse is returned by every money-movement endpoint.
type TransactionResponse struct {
	Transaction        *domain.TransactionRecord `json:"transaction"`
	ChallengeID        *uuid.UUID                `json:"challenge_id,omitempty"`
	ChallengeExpiresAt *time.Time                `json:"challenge_expires_at,omitempty"`
	Duplicate          bool                      `json:"duplicate,omitempty"`
}
