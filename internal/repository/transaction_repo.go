// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redapplexx/cpay-sub003/internal/domain"
)

// TransitionUpdate carries the fields set alongside a status change. Nil fields are left untouched.
type TransitionUpdate struct {
	FailureReason *domain.FailureReason
	ExternalRef   *string
	SettledAt     *time.Time
	At            time.Time
}

// TransactionRepository is the append/transition-only Transaction Journal store.
type TransactionRepository interface {
	// CreateTransaction appends a record. When the idempotency key is already taken it
	// inserts nothing and returns util.ErrDuplicateEntry.
	CreateTransaction(ctx context.Context, q DBExecutor, record *domain.TransactionRecord) error
	// GetTransactionByID returns util.ErrTransactionNotFound when absent.
	GetTransactionByID(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.TransactionRecord, error)
	// GetTransactionByIdempotencyKey returns util.ErrTransactionNotFound when absent.
	GetTransactionByIdempotencyKey(ctx context.Context, q DBExecutor, key string) (*domain.TransactionRecord, error)
	// TransitionTransaction moves a record from one status to another as a compare-and-set
	// on the current status. It fails with util.ErrInvalidTransition when the state machine
	// forbids the move or the record is no longer in status from.
	TransitionTransaction(ctx context.Context, q DBExecutor, id uuid.UUID, from, to domain.TransactionStatus, update TransitionUpdate) error
	// ListTransactionsByAccount returns up to limit records involving the account,
	// newest first, strictly after the cursor position when one is given.
	ListTransactionsByAccount(ctx context.Context, q DBExecutor, accountID uuid.UUID, filter TransactionFilter, after *Cursor, limit int) ([]domain.TransactionRecord, error)
}
