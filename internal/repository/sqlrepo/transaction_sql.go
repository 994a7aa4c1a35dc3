// internal/repository/sqlrepo/transaction_sql.go
package sqlrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/repository"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

const transactionColumns = `id, type, status, amount, currency, initiator_id, sender_id, recipient_id,
	channel_details, fx_details, notes, failure_reason, external_ref, idempotency_key,
	created_at, updated_at, settled_at`

// transactionRow is the storage shape of domain.TransactionRecord.
type transactionRow struct {
	ID             uuid.UUID       `db:"id"`
	Type           string          `db:"type"`
	Status         string          `db:"status"`
	Amount         decimal.Decimal `db:"amount"`
	Currency       string          `db:"currency"`
	InitiatorID    uuid.UUID       `db:"initiator_id"`
	SenderID       *uuid.UUID      `db:"sender_id"`
	RecipientID    *uuid.UUID      `db:"recipient_id"`
	ChannelDetails []byte          `db:"channel_details"`
	FxDetails      []byte          `db:"fx_details"`
	Notes          string          `db:"notes"`
	FailureReason  *string         `db:"failure_reason"`
	ExternalRef    *string         `db:"external_ref"`
	IdempotencyKey *string         `db:"idempotency_key"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
	SettledAt      *time.Time      `db:"settled_at"`
}

func (row *transactionRow) toDomain() (*domain.TransactionRecord, error) {
	details, err := domain.DecodeChannelDetails(row.ChannelDetails)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", row.ID, err)
	}

	record := &domain.TransactionRecord{
		ID:             row.ID,
		Type:           domain.TransactionType(row.Type),
		Status:         domain.TransactionStatus(row.Status),
		Amount:         row.Amount,
		Currency:       row.Currency,
		InitiatorID:    row.InitiatorID,
		SenderID:       row.SenderID,
		RecipientID:    row.RecipientID,
		ChannelDetails: details,
		Notes:          row.Notes,
		ExternalRef:    row.ExternalRef,
		IdempotencyKey: row.IdempotencyKey,
		CreatedAt:      row.CreatedAt.UTC(),
		UpdatedAt:      row.UpdatedAt.UTC(),
	}
	if row.SettledAt != nil {
		settled := row.SettledAt.UTC()
		record.SettledAt = &settled
	}
	if row.FailureReason != nil {
		reason := domain.FailureReason(*row.FailureReason)
		record.FailureReason = &reason
	}
	if len(row.FxDetails) > 0 {
		var quote domain.FxQuote
		if err := json.Unmarshal(row.FxDetails, &quote); err != nil {
			return nil, fmt.Errorf("transaction %s: decode fx details: %w", row.ID, err)
		}
		record.FxDetails = &quote
	}
	return record, nil
}

// TransactionRepository implements repository.TransactionRepository over sqlx.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction inserts a new journal record using the provided DBExecutor.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, record *domain.TransactionRecord) error {
	details, err := domain.EncodeChannelDetails(record.ChannelDetails)
	if err != nil {
		return fmt.Errorf("failed to encode channel details: %w", err)
	}

	var fxDetails *string
	if record.FxDetails != nil {
		raw, err := json.Marshal(record.FxDetails)
		if err != nil {
			return fmt.Errorf("failed to encode fx details: %w", err)
		}
		s := string(raw)
		fxDetails = &s
	}

	var failureReason *string
	if record.FailureReason != nil {
		s := string(*record.FailureReason)
		failureReason = &s
	}

	query := q.Rebind(`INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (idempotency_key) DO NOTHING`)
	result, err := q.ExecContext(ctx, query,
		record.ID,
		string(record.Type),
		string(record.Status),
		record.Amount,
		record.Currency,
		record.InitiatorID,
		record.SenderID,
		record.RecipientID,
		string(details),
		fxDetails,
		record.Notes,
		failureReason,
		record.ExternalRef,
		record.IdempotencyKey,
		record.CreatedAt,
		record.UpdatedAt,
		record.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after creating transaction: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("idempotency key already used: %w", util.ErrDuplicateEntry)
	}
	return nil
}

// GetTransactionByID retrieves a journal record by id.
func (r *TransactionRepository) GetTransactionByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.TransactionRecord, error) {
	query := q.Rebind(`SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`)
	return r.getOne(ctx, q, query, id)
}

// GetTransactionByIdempotencyKey retrieves the record created for an idempotency key.
func (r *TransactionRepository) GetTransactionByIdempotencyKey(ctx context.Context, q repository.DBExecutor, key string) (*domain.TransactionRecord, error) {
	query := q.Rebind(`SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = ?`)
	return r.getOne(ctx, q, query, key)
}

func (r *TransactionRepository) getOne(ctx context.Context, q repository.DBExecutor, query string, arg interface{}) (*domain.TransactionRecord, error) {
	var row transactionRow
	if err := q.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return row.toDomain()
}

// TransitionTransaction applies a state machine edge as a compare-and-set on status.
func (r *TransactionRepository) TransitionTransaction(ctx context.Context, q repository.DBExecutor, id uuid.UUID, from, to domain.TransactionStatus, update repository.TransitionUpdate) error {
	if !domain.CanTransition(from, to) {
		return fmt.Errorf("transaction %s %s -> %s: %w", id, from, to, util.ErrInvalidTransition)
	}

	var failureReason *string
	if update.FailureReason != nil {
		s := string(*update.FailureReason)
		failureReason = &s
	}
	at := update.At
	if at.IsZero() {
		at = domain.Now()
	}

	query := q.Rebind(`UPDATE transactions SET
			status = ?,
			failure_reason = COALESCE(?, failure_reason),
			external_ref = COALESCE(?, external_ref),
			settled_at = COALESCE(?, settled_at),
			updated_at = ?
		WHERE id = ? AND status = ?`)
	result, err := q.ExecContext(ctx, query,
		string(to), failureReason, update.ExternalRef, update.SettledAt, at, id, string(from))
	if err != nil {
		return fmt.Errorf("failed to transition transaction %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after transitioning transaction %s: %w", id, err)
	}
	if rows == 0 {
		if _, err := r.GetTransactionByID(ctx, q, id); err != nil {
			return err
		}
		return fmt.Errorf("transaction %s is no longer %s: %w", id, from, util.ErrInvalidTransition)
	}
	return nil
}

// ListTransactionsByAccount pages through the account's history, newest first.
func (r *TransactionRepository) ListTransactionsByAccount(ctx context.Context, q repository.DBExecutor, accountID uuid.UUID, filter repository.TransactionFilter, after *repository.Cursor, limit int) ([]domain.TransactionRecord, error) {
	var (
		where = []string{"(sender_id = ? OR recipient_id = ? OR initiator_id = ?)"}
		args  = []interface{}{accountID, accountID, accountID}
	)
	if filter.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Currency != "" {
		where = append(where, "currency = ?")
		args = append(args, filter.Currency)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		where = append(where, "created_at < ?")
		args = append(args, filter.Until.UTC())
	}
	if after != nil {
		where = append(where, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, after.CreatedAt.UTC(), after.CreatedAt.UTC(), after.ID)
	}
	args = append(args, limit)

	query := q.Rebind(`SELECT ` + transactionColumns + ` FROM transactions
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)

	rows := []transactionRow{}
	if err := q.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions for account %s: %w", accountID, err)
	}

	records := make([]domain.TransactionRecord, 0, len(rows))
	for i := range rows {
		record, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, nil
}
