// internal/repository/history.go
package repository

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

// TransactionFilter narrows a history query. Zero values mean "any".
type TransactionFilter struct {
	Type     domain.TransactionType
	Status   domain.TransactionStatus
	Currency string
	Since    *time.Time // inclusive
	Until    *time.Time // exclusive
}

// Cursor is a keyset position in the (created_at DESC, id DESC) history order.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorFor returns the position just after record.
func CursorFor(record *domain.TransactionRecord) *Cursor {
	return &Cursor{CreatedAt: record.CreatedAt, ID: record.ID}
}

// Encode renders the cursor as an opaque URL-safe token.
func (c *Cursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by Encode. An empty token yields a nil cursor.
func DecodeCursor(token string) (*Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", util.ErrInvalidInput)
	}
	createdAt, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return nil, fmt.Errorf("%w: malformed cursor", util.ErrInvalidInput)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor time", util.ErrInvalidInput)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor id", util.ErrInvalidInput)
	}
	return &Cursor{CreatedAt: ts.UTC(), ID: parsedID}, nil
}
