// internal/service/ledger_test.go
package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/repository"
	"github.com/redapplexx/cpay-sub003/internal/util"
	"github.com/redapplexx/cpay-sub003/pkg/db"
)

var (
	accountA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	accountB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

func decimalEq(want string) interface{} {
	d := decimal.RequireFromString(want)
	return mock.MatchedBy(func(got decimal.Decimal) bool { return got.Equal(d) })
}

type ledgerFixture struct {
	ledger          *Ledger
	walletRepo      *MockWalletRepository
	transactionRepo *MockTransactionRepository
	txController    *MockTxController
	begins          int
	sleeps          []time.Duration
}

func newLedgerFixture(policy RetryPolicy) *ledgerFixture {
	f := &ledgerFixture{
		walletRepo:      new(MockWalletRepository),
		transactionRepo: new(MockTransactionRepository),
		txController:    new(MockTxController),
	}
	currencies := domain.NewCurrencyRegistry(domain.Currency{Code: "PHP", Kind: domain.WalletKindFiat, Scale: 2})
	f.ledger = NewLedger(
		new(MockDBBeginner),
		f.walletRepo,
		f.transactionRepo,
		currencies,
		func(ctx context.Context, dbConn db.DBTxBeginner) (db.TxController, error) {
			f.begins++
			return f.txController, nil
		},
		func(tx db.TxController) error {
			return f.txController.Commit()
		},
		func(tx db.TxController) {
			_ = f.txController.Rollback()
		},
		policy,
		util.DiscardLogger(),
	)
	f.ledger.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return nil
	}
	return f
}

func transferPlan(txID uuid.UUID) CommitPlan {
	return CommitPlan{
		TransactionID: txID,
		Postings: []Posting{
			{AccountID: accountB, Currency: "PHP", Delta: decimal.RequireFromString("400")},
			{AccountID: accountA, Currency: "PHP", Delta: decimal.RequireFromString("-400")},
		},
		From: domain.TransactionStatusCommitting,
		To:   domain.TransactionStatusCompleted,
	}
}

func TestLedgerCommit(t *testing.T) {
	ctx := context.Background()
	walletA := &domain.Wallet{AccountID: accountA, Currency: "PHP", Balance: decimal.RequireFromString("1000"), Version: 3}
	walletB := &domain.Wallet{AccountID: accountB, Currency: "PHP", Balance: decimal.Zero, Version: 0}

	t.Run("SuccessfulCommit", func(t *testing.T) {
		f := newLedgerFixture(DefaultRetryPolicy())
		txID := uuid.New()

		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()
		debit := f.walletRepo.On("GetWallet", ctx, mock.Anything, accountA, "PHP").Return(walletA, nil).Once()
		f.walletRepo.On("ApplyDelta", ctx, mock.Anything, walletA, decimalEq("-400")).Return(walletA, nil).Once().NotBefore(debit)
		f.walletRepo.On("EnsureWallet", ctx, mock.Anything, accountB, "PHP", domain.WalletKindFiat).Return(walletB, nil).Once()
		f.walletRepo.On("ApplyDelta", ctx, mock.Anything, walletB, decimalEq("400")).Return(walletB, nil).Once()
		f.transactionRepo.On("TransitionTransaction", ctx, mock.Anything, txID,
			domain.TransactionStatusCommitting, domain.TransactionStatusCompleted, mock.Anything).Return(nil).Once()

		err := f.ledger.Commit(ctx, transferPlan(txID))

		assert.NoError(t, err)
		assert.Equal(t, 1, f.begins)
		assert.Empty(t, f.sleeps)
		mock.AssertExpectationsForObjects(t, f.walletRepo, f.transactionRepo, f.txController)
	})

	t.Run("RetriesAfterConflict", func(t *testing.T) {
		f := newLedgerFixture(DefaultRetryPolicy())
		txID := uuid.New()

		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()
		f.walletRepo.On("GetWallet", ctx, mock.Anything, accountA, "PHP").Return(walletA, nil).Twice()
		f.walletRepo.On("ApplyDelta", ctx, mock.Anything, walletA, decimalEq("-400")).
			Return(nil, util.ErrConcurrentModification).Once()
		f.walletRepo.On("ApplyDelta", ctx, mock.Anything, walletA, decimalEq("-400")).Return(walletA, nil).Once()
		f.walletRepo.On("EnsureWallet", ctx, mock.Anything, accountB, "PHP", domain.WalletKindFiat).Return(walletB, nil).Once()
		f.walletRepo.On("ApplyDelta", ctx, mock.Anything, walletB, decimalEq("400")).Return(walletB, nil).Once()
		f.transactionRepo.On("TransitionTransaction", ctx, mock.Anything, txID,
			domain.TransactionStatusCommitting, domain.TransactionStatusCompleted, mock.Anything).Return(nil).Once()

		err := f.ledger.Commit(ctx, transferPlan(txID))

		assert.NoError(t, err)
		assert.Equal(t, 2, f.begins)
		assert.Equal(t, []time.Duration{10 * time.Millisecond}, f.sleeps)
		mock.AssertExpectationsForObjects(t, f.walletRepo, f.transactionRepo, f.txController)
	})

	t.Run("GivesUpAfterMaxAttempts", func(t *testing.T) {
		f := newLedgerFixture(RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 3 * time.Millisecond})

		f.txController.On("Rollback").Return(nil).Maybe()
		f.walletRepo.On("GetWallet", ctx, mock.Anything, accountA, "PHP").Return(walletA, nil)
		f.walletRepo.On("ApplyDelta", ctx, mock.Anything, walletA, mock.Anything).Return(nil, util.ErrConcurrentModification)

		err := f.ledger.Commit(ctx, transferPlan(uuid.New()))

		assert.ErrorIs(t, err, util.ErrConcurrentModification)
		assert.Equal(t, 3, f.begins)
		assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, f.sleeps)
		f.txController.AssertNotCalled(t, "Commit")
		f.transactionRepo.AssertNotCalled(t, "TransitionTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("InsufficientFundsIsNotRetried", func(t *testing.T) {
		f := newLedgerFixture(DefaultRetryPolicy())

		f.txController.On("Rollback").Return(nil).Maybe()
		f.walletRepo.On("GetWallet", ctx, mock.Anything, accountA, "PHP").Return(walletA, nil).Once()
		f.walletRepo.On("ApplyDelta", ctx, mock.Anything, walletA, mock.Anything).Return(nil, util.ErrInsufficientFunds).Once()

		err := f.ledger.Commit(ctx, transferPlan(uuid.New()))

		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		assert.Equal(t, 1, f.begins)
		f.txController.AssertNotCalled(t, "Commit")
		f.walletRepo.AssertNotCalled(t, "EnsureWallet", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("MissingSourceWalletIsInsufficientFunds", func(t *testing.T) {
		f := newLedgerFixture(DefaultRetryPolicy())

		f.txController.On("Rollback").Return(nil).Maybe()
		f.walletRepo.On("GetWallet", ctx, mock.Anything, accountA, "PHP").Return(nil, util.ErrWalletNotFound).Once()

		err := f.ledger.Commit(ctx, transferPlan(uuid.New()))

		assert.ErrorIs(t, err, util.ErrInsufficientFunds)
		f.walletRepo.AssertNotCalled(t, "ApplyDelta", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("ReservationLeavesStatus", func(t *testing.T) {
		f := newLedgerFixture(DefaultRetryPolicy())

		f.txController.On("Commit").Return(nil).Once()
		f.txController.On("Rollback").Return(nil).Maybe()
		f.walletRepo.On("GetWallet", ctx, mock.Anything, accountA, "PHP").Return(walletA, nil).Once()
		f.walletRepo.On("ApplyDelta", ctx, mock.Anything, walletA, decimalEq("-250")).Return(walletA, nil).Once()

		err := f.ledger.Commit(ctx, CommitPlan{
			TransactionID: uuid.New(),
			Postings:      []Posting{{AccountID: accountA, Currency: "PHP", Delta: decimal.RequireFromString("-250")}},
			From:          domain.TransactionStatusCommitting,
			To:            domain.TransactionStatusCommitting,
		})

		assert.NoError(t, err)
		f.transactionRepo.AssertNotCalled(t, "TransitionTransaction", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		mock.AssertExpectationsForObjects(t, f.walletRepo, f.txController)
	})

	t.Run("TransitionFailureAbortsCommit", func(t *testing.T) {
		f := newLedgerFixture(DefaultRetryPolicy())
		txID := uuid.New()

		f.txController.On("Rollback").Return(nil).Maybe()
		f.walletRepo.On("GetWallet", ctx, mock.Anything, accountA, "PHP").Return(walletA, nil).Once()
		f.walletRepo.On("ApplyDelta", ctx, mock.Anything, mock.Anything, mock.Anything).Return(walletA, nil)
		f.walletRepo.On("EnsureWallet", ctx, mock.Anything, accountB, "PHP", domain.WalletKindFiat).Return(walletB, nil).Once()
		f.transactionRepo.On("TransitionTransaction", ctx, mock.Anything, txID, mock.Anything, mock.Anything, mock.Anything).
			Return(util.ErrInvalidTransition).Once()

		err := f.ledger.Commit(ctx, transferPlan(txID))

		assert.ErrorIs(t, err, util.ErrInvalidTransition)
		f.txController.AssertNotCalled(t, "Commit")
	})

	t.Run("CancelledWhileBackingOff", func(t *testing.T) {
		f := newLedgerFixture(DefaultRetryPolicy())
		f.ledger.sleep = sleepContext
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		f.txController.On("Rollback").Return(nil).Maybe()
		f.walletRepo.On("GetWallet", cctx, mock.Anything, accountA, "PHP").Return(walletA, nil)
		f.walletRepo.On("ApplyDelta", cctx, mock.Anything, mock.Anything, mock.Anything).Return(nil, util.ErrConcurrentModification)

		err := f.ledger.Commit(cctx, transferPlan(uuid.New()))

		assert.True(t, errors.Is(err, context.Canceled))
		assert.Equal(t, 1, f.begins)
	})
}

func TestMergePostings(t *testing.T) {
	merged := mergePostings([]Posting{
		{AccountID: accountB, Currency: "USD", Delta: decimal.NewFromInt(5)},
		{AccountID: accountB, Currency: "PHP", Delta: decimal.NewFromInt(7)},
		{AccountID: accountA, Currency: "PHP", Delta: decimal.NewFromInt(-3)},
		{AccountID: accountB, Currency: "USD", Delta: decimal.NewFromInt(-5)},
	})
	require.Len(t, merged, 2)
	assert.Equal(t, accountA, merged[0].AccountID)
	assert.Equal(t, accountB, merged[1].AccountID)
	assert.Equal(t, "PHP", merged[1].Currency)
	assert.True(t, merged[1].Delta.Equal(decimal.NewFromInt(7)))
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 10*time.Millisecond, p.backoff(1))
	assert.Equal(t, 20*time.Millisecond, p.backoff(2))
	assert.Equal(t, 80*time.Millisecond, p.backoff(4))
	assert.Equal(t, 200*time.Millisecond, p.backoff(10))
}

var _ repository.DBExecutor = (*MockTxController)(nil)
