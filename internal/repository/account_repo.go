// internal/repository/account_repo.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/redapplexx/cpay-sub003/internal/domain"
)

// AccountRepository defines the interface for account data operations.
type AccountRepository interface {
	// CreateAccount inserts a new account. A taken handle yields util.ErrDuplicateEntry.
	CreateAccount(ctx context.Context, q DBExecutor, account *domain.Account) error
	// GetAccountByID returns util.ErrAccountNotFound when absent.
	GetAccountByID(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Account, error)
	// GetAccountByHandle returns util.ErrAccountNotFound when absent.
	GetAccountByHandle(ctx context.Context, q DBExecutor, handle string) (*domain.Account, error)
	// ArchiveAccount sets archived_at unless already set. Returns util.ErrAccountNotFound when absent.
	ArchiveAccount(ctx context.Context, q DBExecutor, id uuid.UUID, at time.Time) error
	// UpdateRiskScore replaces the behavioral score. Returns util.ErrAccountNotFound when absent.
	UpdateRiskScore(ctx context.Context, q DBExecutor, id uuid.UUID, score float64, at time.Time) error
}
