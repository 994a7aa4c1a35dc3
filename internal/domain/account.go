// internal/domain/account.go
package domain

import (
	"time"

	"github.com/google/uuid"
)

// AccountKind distinguishes consumer accounts from merchant accounts.
type AccountKind string

const (
	AccountKindUser     AccountKind = "USER"
	AccountKindMerchant AccountKind = "MERCHANT"
)

// Valid reports whether k is a known account kind.
func (k AccountKind) Valid() bool {
	return k == AccountKindUser || k == AccountKindMerchant
}

// Account identifies a user or merchant. Accounts are never deleted, only archived.
type Account struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	Handle     string      `db:"handle" json:"handle"` // unique phone number, username or merchant code
	Kind       AccountKind `db:"kind" json:"kind"`
	RiskScore  float64     `db:"risk_score" json:"risk_score"` // behavioral score in [0,1] fed by an external scorer
	ArchivedAt *time.Time  `db:"archived_at" json:"archived_at,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at" json:"updated_at"`
}

// NewAccount creates a new Account instance.
func NewAccount(handle string, kind AccountKind, riskScore float64) *Account {
	now := Now()
	return &Account{
		ID:        uuid.New(),
		Handle:    handle,
		Kind:      kind,
		RiskScore: riskScore,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsArchived reports whether the account was soft-archived.
func (a *Account) IsArchived() bool {
	return a.ArchivedAt != nil
}

// Now returns the current UTC time truncated to the precision every supported store keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
