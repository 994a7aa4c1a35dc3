// internal/repository/sqlrepo/account_sql.go
package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/repository"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

const accountColumns = `id, handle, kind, risk_score, archived_at, created_at, updated_at`

// AccountRepository implements repository.AccountRepository over sqlx.
type AccountRepository struct{}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() repository.AccountRepository {
	return &AccountRepository{}
}

// CreateAccount inserts a new account using the provided DBExecutor.
func (r *AccountRepository) CreateAccount(ctx context.Context, q repository.DBExecutor, account *domain.Account) error {
	query := q.Rebind(`INSERT INTO accounts (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (handle) DO NOTHING`)
	result, err := q.ExecContext(ctx, query,
		account.ID, account.Handle, account.Kind, account.RiskScore,
		account.ArchivedAt, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after creating account: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("handle %q: %w", account.Handle, util.ErrDuplicateEntry)
	}
	return nil
}

// GetAccountByID retrieves an account by its ID.
func (r *AccountRepository) GetAccountByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Account, error) {
	var account domain.Account
	query := q.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE id = ?`)
	if err := q.GetContext(ctx, &account, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID %s: %w", id, err)
	}
	return &account, nil
}

// GetAccountByHandle retrieves an account by its unique handle.
func (r *AccountRepository) GetAccountByHandle(ctx context.Context, q repository.DBExecutor, handle string) (*domain.Account, error) {
	var account domain.Account
	query := q.Rebind(`SELECT ` + accountColumns + ` FROM accounts WHERE handle = ?`)
	if err := q.GetContext(ctx, &account, query, handle); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account by handle %q: %w", handle, err)
	}
	return &account, nil
}

// ArchiveAccount soft-archives an account. Archiving twice keeps the first timestamp.
func (r *AccountRepository) ArchiveAccount(ctx context.Context, q repository.DBExecutor, id uuid.UUID, at time.Time) error {
	query := q.Rebind(`UPDATE accounts SET archived_at = ?, updated_at = ? WHERE id = ? AND archived_at IS NULL`)
	result, err := q.ExecContext(ctx, query, at, at, id)
	if err != nil {
		return fmt.Errorf("failed to archive account %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after archiving account %s: %w", id, err)
	}
	if rows == 0 {
		_, err := r.GetAccountByID(ctx, q, id)
		return err
	}
	return nil
}

// UpdateRiskScore stores a new behavioral risk score.
func (r *AccountRepository) UpdateRiskScore(ctx context.Context, q repository.DBExecutor, id uuid.UUID, score float64, at time.Time) error {
	query := q.Rebind(`UPDATE accounts SET risk_score = ?, updated_at = ? WHERE id = ?`)
	result, err := q.ExecContext(ctx, query, score, at, id)
	if err != nil {
		return fmt.Errorf("failed to update risk score of account %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating account %s: %w", id, err)
	}
	if rows == 0 {
		return util.ErrAccountNotFound
	}
	return nil
}
