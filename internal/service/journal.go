// internal/service/journal.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/repository"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// HistoryPage is one page of an account's transaction history.
type HistoryPage struct {
	Records    []domain.TransactionRecord `json:"records"`
	NextCursor string                     `json:"next_cursor,omitempty"`
}

// Journal is the Transaction Journal: records are appended once and then only
// move along the status state machine.
type Journal struct {
	dbExecutor      repository.DBExecutor
	transactionRepo repository.TransactionRepository
	logger          *slog.Logger
}

// NewJournal creates a Journal.
func NewJournal(dbExecutor repository.DBExecutor, transactionRepo repository.TransactionRepository, logger *slog.Logger) *Journal {
	return &Journal{
		dbExecutor:      dbExecutor,
		transactionRepo: transactionRepo,
		logger:          logger,
	}
}

// Create appends a PENDING record. When the record's idempotency key was already
// used, nothing is written and the original record is returned with duplicate=true.
func (j *Journal) Create(ctx context.Context, record *domain.TransactionRecord) (*domain.TransactionRecord, bool, error) {
	err := j.transactionRepo.CreateTransaction(ctx, j.dbExecutor, record)
	if err == nil {
		return record, false, nil
	}
	if !errors.Is(err, util.ErrDuplicateEntry) || record.IdempotencyKey == nil {
		return nil, false, fmt.Errorf("journal: failed to create transaction: %w", err)
	}

	existing, err := j.transactionRepo.GetTransactionByIdempotencyKey(ctx, j.dbExecutor, *record.IdempotencyKey)
	if err != nil {
		return nil, false, fmt.Errorf("journal: failed to load original of duplicate submission: %w", err)
	}
	j.logger.InfoContext(ctx, "duplicate submission collapsed", "transaction_id", existing.ID, "status", existing.Status)
	return existing, true, nil
}

// Transition moves a record along the state machine and reflects the change on record.
func (j *Journal) Transition(ctx context.Context, record *domain.TransactionRecord, to domain.TransactionStatus, update repository.TransitionUpdate) error {
	if update.At.IsZero() {
		update.At = domain.Now()
	}
	if err := j.transactionRepo.TransitionTransaction(ctx, j.dbExecutor, record.ID, record.Status, to, update); err != nil {
		return err
	}
	j.logger.DebugContext(ctx, "transaction transitioned", "transaction_id", record.ID, "from", record.Status, "to", to)
	applyTransition(record, to, update)
	return nil
}

// Fail moves a record to FAILED with a queryable reason.
func (j *Journal) Fail(ctx context.Context, record *domain.TransactionRecord, reason domain.FailureReason) error {
	if err := j.Transition(ctx, record, domain.TransactionStatusFailed, repository.TransitionUpdate{FailureReason: &reason}); err != nil {
		return fmt.Errorf("journal: failed to mark %s failed (%s): %w", record.ID, reason, err)
	}
	j.logger.InfoContext(ctx, "transaction failed", "transaction_id", record.ID, "type", record.Type, "reason", reason)
	return nil
}

// Get returns a record by id.
func (j *Journal) Get(ctx context.Context, id uuid.UUID) (*domain.TransactionRecord, error) {
	return j.transactionRepo.GetTransactionByID(ctx, j.dbExecutor, id)
}

// ListByAccount returns a page of history newest first. cursor is the NextCursor of
// the previous page, or empty for the first page.
func (j *Journal) ListByAccount(ctx context.Context, accountID uuid.UUID, filter repository.TransactionFilter, cursor string, limit int) (*HistoryPage, error) {
	after, err := repository.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	records, err := j.transactionRepo.ListTransactionsByAccount(ctx, j.dbExecutor, accountID, filter, after, limit+1)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}

	page := &HistoryPage{Records: records}
	if len(records) > limit {
		page.Records = records[:limit]
		page.NextCursor = repository.CursorFor(&page.Records[limit-1]).Encode()
	}
	return page, nil
}

func applyTransition(record *domain.TransactionRecord, to domain.TransactionStatus, update repository.TransitionUpdate) {
	record.Status = to
	record.UpdatedAt = update.At
	if update.FailureReason != nil {
		record.FailureReason = update.FailureReason
	}
	if update.ExternalRef != nil {
		record.ExternalRef = update.ExternalRef
	}
	if update.SettledAt != nil {
		record.SettledAt = update.SettledAt
	}
}
