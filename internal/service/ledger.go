// internal/service/ledger.go
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/repository"
	"github.com/redapplexx/cpay-sub003/internal/util"
	"github.com/redapplexx/cpay-sub003/pkg/db"
)

// Posting is a signed balance change on one wallet.
type Posting struct {
	AccountID uuid.UUID
	Currency  string
	Delta     decimal.Decimal
}

// CommitPlan is one atomic unit of work: apply every posting and move the journal
// record from From to To. When From equals To the postings are applied without a
// status change, which is how payouts reserve funds while the record stays COMMITTING.
type CommitPlan struct {
	TransactionID uuid.UUID
	Postings      []Posting
	From          domain.TransactionStatus
	To            domain.TransactionStatus
	Update        repository.TransitionUpdate
}

// RetryPolicy bounds how often a commit is retried after an optimistic conflict.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy returns 5 attempts with exponential backoff from 10ms capped at 200ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseBackoff: 10 * time.Millisecond,
		MaxBackoff:  200 * time.Millisecond,
	}
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := p.BaseBackoff
	for i := 1; i < attempt && d < p.MaxBackoff; i++ {
		d *= 2
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	return d
}

// Ledger is the commit routine. It is the only code path that mutates wallet balances.
type Ledger struct {
	dbBeginner      db.DBTxBeginner
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	currencies      domain.CurrencyRegistry
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	policy          RetryPolicy
	logger          *slog.Logger
	sleep           func(ctx context.Context, d time.Duration) error
}

// NewLedger creates a Ledger.
func NewLedger(
	dbBeginner db.DBTxBeginner,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	currencies domain.CurrencyRegistry,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	policy RetryPolicy,
	logger *slog.Logger,
) *Ledger {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	return &Ledger{
		dbBeginner:      dbBeginner,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		currencies:      currencies,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		policy:          policy,
		logger:          logger,
		sleep:           sleepContext,
	}
}

// Commit applies the plan atomically. Optimistic conflicts are retried from a fresh
// read until the policy is exhausted, then surfaced as util.ErrConcurrentModification.
// Any other failure, util.ErrInsufficientFunds included, aborts without retry and
// leaves balances and the journal untouched.
func (l *Ledger) Commit(ctx context.Context, plan CommitPlan) error {
	for attempt := 1; ; attempt++ {
		err := l.attemptCommit(ctx, plan)
		if err == nil {
			if attempt > 1 {
				l.logger.InfoContext(ctx, "ledger commit succeeded after retry", "transaction_id", plan.TransactionID, "attempt", attempt)
			}
			return nil
		}
		if !errors.Is(err, util.ErrConcurrentModification) {
			return err
		}
		if attempt >= l.policy.MaxAttempts {
			return fmt.Errorf("ledger commit %s: gave up after %d attempts: %w", plan.TransactionID, attempt, err)
		}

		wait := l.policy.backoff(attempt)
		l.logger.WarnContext(ctx, "ledger commit conflict, retrying",
			"transaction_id", plan.TransactionID, "attempt", attempt, "backoff", wait)
		if err := l.sleep(ctx, wait); err != nil {
			return fmt.Errorf("ledger commit %s: %w", plan.TransactionID, err)
		}
	}
}

func (l *Ledger) attemptCommit(ctx context.Context, plan CommitPlan) error {
	txController, err := l.beginTx(ctx, l.dbBeginner)
	if err != nil {
		return fmt.Errorf("ledger commit: failed to begin transaction: %w", err)
	}
	defer l.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("ledger commit: transaction controller does not implement DBExecutor")
	}

	for _, p := range mergePostings(plan.Postings) {
		var wallet *domain.Wallet
		if p.Delta.IsNegative() {
			wallet, err = l.walletRepo.GetWallet(ctx, txExecutor, p.AccountID, p.Currency)
			if errors.Is(err, util.ErrWalletNotFound) {
				return fmt.Errorf("ledger commit: no %s wallet for %s: %w", p.Currency, p.AccountID, util.ErrInsufficientFunds)
			}
		} else {
			wallet, err = l.walletRepo.EnsureWallet(ctx, txExecutor, p.AccountID, p.Currency, l.currencies.KindOf(p.Currency))
		}
		if err != nil {
			return fmt.Errorf("ledger commit: failed to read wallet %s/%s: %w", p.AccountID, p.Currency, err)
		}

		if _, err := l.walletRepo.ApplyDelta(ctx, txExecutor, wallet, p.Delta); err != nil {
			return fmt.Errorf("ledger commit: %w", err)
		}
	}

	if plan.From != plan.To {
		if err := l.transactionRepo.TransitionTransaction(ctx, txExecutor, plan.TransactionID, plan.From, plan.To, plan.Update); err != nil {
			return fmt.Errorf("ledger commit: %w", err)
		}
	}

	if err := l.commitTx(txController); err != nil {
		return fmt.Errorf("ledger commit: failed to commit transaction: %w", err)
	}
	return nil
}

// mergePostings folds postings on the same wallet together and orders them by
// (account, currency) so concurrent commits touch wallets in the same order.
func mergePostings(postings []Posting) []Posting {
	type key struct {
		account  uuid.UUID
		currency string
	}
	index := make(map[key]int, len(postings))
	merged := make([]Posting, 0, len(postings))
	for _, p := range postings {
		k := key{p.AccountID, p.Currency}
		if i, ok := index[k]; ok {
			merged[i].Delta = merged[i].Delta.Add(p.Delta)
			continue
		}
		index[k] = len(merged)
		merged = append(merged, p)
	}

	out := merged[:0]
	for _, p := range merged {
		if !p.Delta.IsZero() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].AccountID[:], out[j].AccountID[:]); c != 0 {
			return c < 0
		}
		return out[i].Currency < out[j].Currency
	})
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
