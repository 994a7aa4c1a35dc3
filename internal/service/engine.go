// internal/service/engine.go
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/redapplexx/cpay-sub003/internal/challenge"
	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/repository"
	"github.com/redapplexx/cpay-sub003/internal/risk"
	"github.com/redapplexx/cpay-sub003/internal/settlement"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

// DefaultSettlementTimeout bounds a call to the settlement provider.
const DefaultSettlementTimeout = 10 * time.Second

// RiskAssessor screens drafts before any balance moves.
type RiskAssessor interface {
	Assess(draft risk.Draft, profile risk.Profile) risk.Decision
}

// FxQuoter prices currency conversions.
type FxQuoter interface {
	Quote(amount decimal.Decimal, source, target string, now time.Time) (*domain.FxQuote, error)
}

// Challenger issues and verifies step-up confirmation codes.
type Challenger interface {
	Issue(ctx context.Context, accountID, transactionID uuid.UUID) (*domain.ChallengeIntent, error)
	Verify(ctx context.Context, transactionID uuid.UUID, code string) (challenge.Outcome, int, error)
	Discard(ctx context.Context, transactionID uuid.UUID) error
}

// ChannelPolicy configures the per-channel behavior of the engine.
type ChannelPolicy struct {
	RequireChallenge map[domain.TransactionType]bool
	// Billers maps a biller reference to its display name.
	Billers           map[string]string
	SettlementTimeout time.Duration
}

// DefaultChannelPolicy requires a challenge for P2P transfers only.
func DefaultChannelPolicy() ChannelPolicy {
	return ChannelPolicy{
		RequireChallenge:  map[domain.TransactionType]bool{domain.TransactionTypeP2P: true},
		Billers:           map[string]string{},
		SettlementTimeout: DefaultSettlementTimeout,
	}
}

// EngineDeps are the collaborators of the Engine.
type EngineDeps struct {
	DBExecutor repository.DBExecutor
	WalletRepo repository.WalletRepository
	Accounts   *AccountService
	Journal    *Journal
	Ledger     *Ledger
	Currencies domain.CurrencyRegistry
	Fx         FxQuoter
	Risk       RiskAssessor
	Challenges Challenger
	Gateway    settlement.Gateway
	Policy     ChannelPolicy
	Logger     *slog.Logger
}

// Result is what a money-movement operation returns. ChallengeID is set when the
// transaction awaits confirmation; Duplicate is set when an earlier submission
// with the same idempotency key was returned instead of executing again.
type Result struct {
	Transaction        *domain.TransactionRecord `json:"transaction"`
	ChallengeID        *uuid.UUID                `json:"challenge_id,omitempty"`
	ChallengeExpiresAt *time.Time                `json:"challenge_expires_at,omitempty"`
	Duplicate          bool                      `json:"duplicate,omitempty"`
}

// Engine runs every channel through validate, journal, risk, challenge and ledger commit.
//
// Operations that leave a record in a terminal non-success state return both the
// result and the error explaining it, so callers always learn the transaction id.
type Engine struct {
	dbExecutor repository.DBExecutor
	walletRepo repository.WalletRepository
	accounts   *AccountService
	journal    *Journal
	ledger     *Ledger
	currencies domain.CurrencyRegistry
	fx         FxQuoter
	risk       RiskAssessor
	challenges Challenger
	gateway    settlement.Gateway
	policy     ChannelPolicy
	logger     *slog.Logger
	now        func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(deps EngineDeps) *Engine {
	policy := deps.Policy
	if policy.SettlementTimeout <= 0 {
		policy.SettlementTimeout = DefaultSettlementTimeout
	}
	return &Engine{
		dbExecutor: deps.DBExecutor,
		walletRepo: deps.WalletRepo,
		accounts:   deps.Accounts,
		journal:    deps.Journal,
		ledger:     deps.Ledger,
		currencies: deps.Currencies,
		fx:         deps.Fx,
		risk:       deps.Risk,
		challenges: deps.Challenges,
		gateway:    deps.Gateway,
		policy:     policy,
		logger:     deps.Logger,
		now:        domain.Now,
	}
}

// draft is a validated request ready to be journaled.
type draft struct {
	record         *domain.TransactionRecord
	initiator      *domain.Account
	counterparties []string
	// recipientKey identifies the destination in the idempotency key.
	recipientKey string
	nonce        string
}

// submit runs the common pipeline after channel validation.
func (e *Engine) submit(ctx context.Context, d draft) (*Result, error) {
	record := d.record
	if d.nonce != "" {
		key := idempotencyKey(record, d.recipientKey, d.nonce)
		record.IdempotencyKey = &key
	}

	stored, duplicate, err := e.journal.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return &Result{Transaction: stored, Duplicate: true}, errorForRecord(stored)
	}
	e.logger.InfoContext(ctx, "transaction created",
		"transaction_id", record.ID, "type", record.Type, "amount", record.Amount, "currency", record.Currency)

	decision := e.risk.Assess(risk.Draft{
		Type:           record.Type,
		Amount:         record.Amount,
		Currency:       record.Currency,
		InitiatorID:    record.InitiatorID,
		Counterparties: d.counterparties,
	}, risk.Profile{AccountID: d.initiator.ID, RiskScore: d.initiator.RiskScore})
	if !decision.Allow {
		reason := domain.ReasonRiskHold
		if err := e.journal.Transition(ctx, record, domain.TransactionStatusHeld, repository.TransitionUpdate{FailureReason: &reason}); err != nil {
			return nil, err
		}
		e.logger.WarnContext(ctx, "transaction held by risk screening",
			"transaction_id", record.ID, "rule", decision.Rule, "reason", decision.Reason)
		return &Result{Transaction: record}, fmt.Errorf("%s: %w", decision.Reason, util.ErrHeld)
	}

	if record.SenderID != nil {
		if err := e.precheckFunds(ctx, record); err != nil {
			return e.fail(ctx, record, err)
		}
	}

	if e.policy.RequireChallenge[record.Type] {
		return e.awaitConfirmation(ctx, record)
	}

	return e.commit(ctx, record)
}

// precheckFunds reports an obvious shortfall before a challenge is issued. The
// authoritative check happens inside the ledger commit.
func (e *Engine) precheckFunds(ctx context.Context, record *domain.TransactionRecord) error {
	wallet, err := e.walletRepo.GetWallet(ctx, e.dbExecutor, *record.SenderID, record.Currency)
	if errors.Is(err, util.ErrWalletNotFound) {
		return fmt.Errorf("no %s wallet: %w", record.Currency, util.ErrInsufficientFunds)
	}
	if err != nil {
		return err
	}
	if !wallet.CanDebit(record.Amount) {
		return fmt.Errorf("balance %s %s is below %s: %w", wallet.Balance, wallet.Currency, record.Amount, util.ErrInsufficientFunds)
	}
	return nil
}

func (e *Engine) awaitConfirmation(ctx context.Context, record *domain.TransactionRecord) (*Result, error) {
	intent, err := e.challenges.Issue(ctx, record.InitiatorID, record.ID)
	if err != nil {
		e.logger.ErrorContext(ctx, "failed to issue challenge", "transaction_id", record.ID, "error", err)
		if ferr := e.journal.Fail(ctx, record, domain.ReasonChallengeUnavailable); ferr != nil {
			return nil, ferr
		}
		return &Result{Transaction: record}, err
	}
	if err := e.journal.Transition(ctx, record, domain.TransactionStatusAwaitingConfirmation, repository.TransitionUpdate{}); err != nil {
		_ = e.challenges.Discard(ctx, record.ID)
		return nil, err
	}
	return &Result{Transaction: record, ChallengeID: &intent.ID, ChallengeExpiresAt: &intent.ExpiresAt}, nil
}

// commit moves record into COMMITTING and runs it to a terminal state. From here on
// the caller's cancellation is ignored; settlement is bounded by SettlementTimeout only.
func (e *Engine) commit(ctx context.Context, record *domain.TransactionRecord) (*Result, error) {
	ctx = context.WithoutCancel(ctx)
	if err := e.journal.Transition(ctx, record, domain.TransactionStatusCommitting, repository.TransitionUpdate{}); err != nil {
		return nil, err
	}
	return e.execute(ctx, record)
}

// execute runs a COMMITTING record to COMPLETED or FAILED according to its channel's
// settlement policy.
func (e *Engine) execute(ctx context.Context, record *domain.TransactionRecord) (*Result, error) {
	if record.FxDetails != nil && record.FxDetails.IsExpired(e.now()) {
		return e.fail(ctx, record, fmt.Errorf("quote expired at %s: %w", record.FxDetails.ExpiresAt.Format(time.RFC3339), util.ErrQuoteExpired))
	}

	switch settlementModeOf(record) {
	case settleCollectFirst:
		return e.collectThenCredit(ctx, record)
	case settlePayout:
		return e.reserveThenPayout(ctx, record)
	default:
		return e.commitInternal(ctx, record)
	}
}

type settlementMode int

const (
	settleNone settlementMode = iota
	settleCollectFirst
	settlePayout
)

func settlementModeOf(record *domain.TransactionRecord) settlementMode {
	switch record.Type {
	case domain.TransactionTypeCashIn:
		return settleCollectFirst
	case domain.TransactionTypeCashOut, domain.TransactionTypeBillPayment:
		return settlePayout
	case domain.TransactionTypeRemittance:
		if record.RecipientID == nil {
			return settlePayout
		}
	}
	return settleNone
}

func (e *Engine) commitInternal(ctx context.Context, record *domain.TransactionRecord) (*Result, error) {
	now := e.now()
	update := repository.TransitionUpdate{SettledAt: &now, At: now}
	err := e.ledger.Commit(ctx, CommitPlan{
		TransactionID: record.ID,
		Postings:      postingsFor(record),
		From:          domain.TransactionStatusCommitting,
		To:            domain.TransactionStatusCompleted,
		Update:        update,
	})
	if err != nil {
		return e.fail(ctx, record, err)
	}
	applyTransition(record, domain.TransactionStatusCompleted, update)
	e.logger.InfoContext(ctx, "transaction completed", "transaction_id", record.ID, "type", record.Type)
	return &Result{Transaction: record}, nil
}

// collectThenCredit pulls funds from the external source and credits the wallet only
// once the provider confirmed. A provider failure leaves balances untouched.
func (e *Engine) collectThenCredit(ctx context.Context, record *domain.TransactionRecord) (*Result, error) {
	receipt, err := e.settle(ctx, record, settlement.DirectionCollect)
	if err != nil {
		return e.fail(ctx, record, err)
	}

	update := repository.TransitionUpdate{ExternalRef: &receipt.Reference, SettledAt: &receipt.SettledAt, At: e.now()}
	err = e.ledger.Commit(ctx, CommitPlan{
		TransactionID: record.ID,
		Postings:      postingsFor(record),
		From:          domain.TransactionStatusCommitting,
		To:            domain.TransactionStatusCompleted,
		Update:        update,
	})
	if err != nil {
		e.logger.ErrorContext(ctx, "collected funds were not credited, reconciliation required",
			"transaction_id", record.ID, "external_ref", receipt.Reference, "error", err)
		reason := failureReasonFor(err)
		failed := repository.TransitionUpdate{FailureReason: &reason, ExternalRef: &receipt.Reference}
		if terr := e.journal.Transition(ctx, record, domain.TransactionStatusFailed, failed); terr != nil {
			return nil, errors.Join(err, terr)
		}
		return &Result{Transaction: record}, err
	}
	applyTransition(record, domain.TransactionStatusCompleted, update)
	e.logger.InfoContext(ctx, "transaction completed", "transaction_id", record.ID, "type", record.Type, "external_ref", receipt.Reference)
	return &Result{Transaction: record}, nil
}

// reserveThenPayout debits the wallet while the record stays COMMITTING, pays out,
// and only then completes. A failed or timed-out payout is reversed by a
// compensating credit committed together with the FAILED transition.
func (e *Engine) reserveThenPayout(ctx context.Context, record *domain.TransactionRecord) (*Result, error) {
	reserve := postingsFor(record)
	err := e.ledger.Commit(ctx, CommitPlan{
		TransactionID: record.ID,
		Postings:      reserve,
		From:          domain.TransactionStatusCommitting,
		To:            domain.TransactionStatusCommitting,
	})
	if err != nil {
		return e.fail(ctx, record, err)
	}

	receipt, settleErr := e.settle(ctx, record, settlement.DirectionPayout)
	if settleErr != nil {
		reason := failureReasonFor(settleErr)
		update := repository.TransitionUpdate{FailureReason: &reason, At: e.now()}
		err := e.ledger.Commit(ctx, CommitPlan{
			TransactionID: record.ID,
			Postings:      reversed(reserve),
			From:          domain.TransactionStatusCommitting,
			To:            domain.TransactionStatusFailed,
			Update:        update,
		})
		if err != nil {
			e.logger.ErrorContext(ctx, "payout failed and compensation did not commit, reconciliation required",
				"transaction_id", record.ID, "settlement_error", settleErr, "error", err)
			return &Result{Transaction: record}, errors.Join(settleErr, err)
		}
		applyTransition(record, domain.TransactionStatusFailed, update)
		e.logger.WarnContext(ctx, "payout failed, reservation reversed", "transaction_id", record.ID, "reason", reason)
		return &Result{Transaction: record}, settleErr
	}

	update := repository.TransitionUpdate{ExternalRef: &receipt.Reference, SettledAt: &receipt.SettledAt, At: e.now()}
	if err := e.journal.Transition(ctx, record, domain.TransactionStatusCompleted, update); err != nil {
		e.logger.ErrorContext(ctx, "payout settled but record not completed, reconciliation required",
			"transaction_id", record.ID, "external_ref", receipt.Reference, "error", err)
		return &Result{Transaction: record}, err
	}
	e.logger.InfoContext(ctx, "transaction completed", "transaction_id", record.ID, "type", record.Type, "external_ref", receipt.Reference)
	return &Result{Transaction: record}, nil
}

func (e *Engine) settle(ctx context.Context, record *domain.TransactionRecord, direction settlement.Direction) (*settlement.Receipt, error) {
	in := settlement.Instruction{
		TransactionID: record.ID,
		Channel:       record.Type,
		Direction:     direction,
		Amount:        record.Amount,
		Currency:      record.Currency,
	}
	switch d := record.ChannelDetails.(type) {
	case domain.CashInDetails:
		in.Method, in.Provider, in.Counterparty = d.Method, d.Provider, d.SourceReference
	case domain.CashOutDetails:
		in.Method, in.Provider, in.Counterparty, in.Beneficiary = d.Method, d.Provider, d.DestinationAccount, d.BeneficiaryName
	case domain.BillPaymentDetails:
		in.Provider, in.Counterparty, in.Beneficiary = d.BillerRef, d.AccountNumber, d.BillerName
	case domain.RemittanceDetails:
		in.Method, in.Counterparty, in.Beneficiary = d.PayoutMethod, d.DestinationAccount, d.RecipientIdentifier
		if record.FxDetails != nil {
			in.Amount, in.Currency = record.FxDetails.TargetAmount, record.FxDetails.TargetCurrency
		}
	}

	settleCtx, cancel := context.WithTimeout(ctx, e.policy.SettlementTimeout)
	defer cancel()
	receipt, err := e.gateway.Settle(settleCtx, in)
	if err != nil {
		if !errors.Is(err, util.ErrExternalProviderFailure) {
			err = fmt.Errorf("%v: %w", err, util.ErrExternalProviderFailure)
		}
		e.logger.WarnContext(ctx, "settlement failed", "transaction_id", record.ID, "direction", direction, "error", err)
		return nil, err
	}
	return receipt, nil
}

// fail records cause on a non-terminal record and returns it alongside cause.
func (e *Engine) fail(ctx context.Context, record *domain.TransactionRecord, cause error) (*Result, error) {
	if err := e.journal.Fail(context.WithoutCancel(ctx), record, failureReasonFor(cause)); err != nil {
		return nil, errors.Join(cause, err)
	}
	return &Result{Transaction: record}, cause
}

// ConfirmWithCode verifies the challenge of an AWAITING_CONFIRMATION transaction
// and, on success, commits it.
func (e *Engine) ConfirmWithCode(ctx context.Context, accountID, transactionID uuid.UUID, code string) (*Result, error) {
	record, err := e.ownedRecord(ctx, accountID, transactionID)
	if err != nil {
		return nil, err
	}
	if record.Status != domain.TransactionStatusAwaitingConfirmation {
		return &Result{Transaction: record}, fmt.Errorf("transaction %s is %s: %w", record.ID, record.Status, util.ErrInvalidTransition)
	}

	outcome, remaining, err := e.challenges.Verify(ctx, record.ID, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("confirm: failed to verify code: %w", err)
	}

	switch outcome {
	case challenge.Invalid:
		return &Result{Transaction: record}, fmt.Errorf("%d attempts remaining: %w", remaining, util.ErrInvalidCode)
	case challenge.Exhausted:
		return e.fail(ctx, record, util.ErrChallengeExhausted)
	case challenge.Expired:
		return e.fail(ctx, record, util.ErrChallengeExpired)
	}

	return e.commit(ctx, record)
}

// ResendChallenge replaces the code of an AWAITING_CONFIRMATION transaction.
func (e *Engine) ResendChallenge(ctx context.Context, accountID, transactionID uuid.UUID) (*Result, error) {
	record, err := e.ownedRecord(ctx, accountID, transactionID)
	if err != nil {
		return nil, err
	}
	if record.Status != domain.TransactionStatusAwaitingConfirmation {
		return &Result{Transaction: record}, fmt.Errorf("transaction %s is %s: %w", record.ID, record.Status, util.ErrInvalidTransition)
	}
	intent, err := e.challenges.Issue(ctx, record.InitiatorID, record.ID)
	if err != nil {
		return nil, fmt.Errorf("resend challenge: %w", err)
	}
	return &Result{Transaction: record, ChallengeID: &intent.ID, ChallengeExpiresAt: &intent.ExpiresAt}, nil
}

// Cancel cancels a transaction that has not started committing.
func (e *Engine) Cancel(ctx context.Context, accountID, transactionID uuid.UUID) (*domain.TransactionRecord, error) {
	record, err := e.ownedRecord(ctx, accountID, transactionID)
	if err != nil {
		return nil, err
	}
	if !record.Status.IsCancellable() {
		return record, fmt.Errorf("transaction %s is %s: %w", record.ID, record.Status, util.ErrNotCancellable)
	}
	if err := e.journal.Transition(ctx, record, domain.TransactionStatusCancelled, repository.TransitionUpdate{}); err != nil {
		if errors.Is(err, util.ErrInvalidTransition) {
			return record, fmt.Errorf("transaction %s: %w", record.ID, util.ErrNotCancellable)
		}
		return nil, err
	}
	if err := e.challenges.Discard(ctx, record.ID); err != nil {
		e.logger.WarnContext(ctx, "failed to discard challenge of cancelled transaction", "transaction_id", record.ID, "error", err)
	}
	e.logger.InfoContext(ctx, "transaction cancelled", "transaction_id", record.ID)
	return record, nil
}

// ReleaseHeld resolves a HELD transaction on behalf of compliance review. Approval
// commits it through the normal channel policy; rejection fails it.
func (e *Engine) ReleaseHeld(ctx context.Context, transactionID uuid.UUID, approve bool, note string) (*Result, error) {
	record, err := e.journal.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if record.Status != domain.TransactionStatusHeld {
		return &Result{Transaction: record}, fmt.Errorf("transaction %s is %s: %w", record.ID, record.Status, util.ErrInvalidTransition)
	}
	e.logger.InfoContext(ctx, "held transaction reviewed", "transaction_id", record.ID, "approved", approve, "note", note)

	if !approve {
		reason := domain.ReasonComplianceRejected
		if err := e.journal.Transition(ctx, record, domain.TransactionStatusFailed, repository.TransitionUpdate{FailureReason: &reason}); err != nil {
			return nil, err
		}
		return &Result{Transaction: record}, nil
	}

	return e.commit(ctx, record)
}

// GetTransaction returns a record by id.
func (e *Engine) GetTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.TransactionRecord, error) {
	return e.journal.Get(ctx, transactionID)
}

// GetTransactionHistory pages through an account's transactions, newest first.
func (e *Engine) GetTransactionHistory(ctx context.Context, accountID uuid.UUID, filter repository.TransactionFilter, cursor string, limit int) (*HistoryPage, error) {
	if _, err := e.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.journal.ListByAccount(ctx, accountID, filter, cursor, limit)
}

// GetBalance returns the account's wallet in one currency.
func (e *Engine) GetBalance(ctx context.Context, accountID uuid.UUID, currency string) (*domain.Wallet, error) {
	c, ok := e.currencies.Lookup(currency)
	if !ok {
		return nil, fmt.Errorf("%q: %w", currency, util.ErrUnsupportedCurrency)
	}
	return e.walletRepo.GetWallet(ctx, e.dbExecutor, accountID, c.Code)
}

// ListBalances returns every wallet of the account.
func (e *Engine) ListBalances(ctx context.Context, accountID uuid.UUID) ([]domain.Wallet, error) {
	if _, err := e.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return e.walletRepo.ListWallets(ctx, e.dbExecutor, accountID)
}

// QuoteFX previews a conversion without creating a transaction.
func (e *Engine) QuoteFX(amount decimal.Decimal, source, target string) (*domain.FxQuote, error) {
	return e.fx.Quote(amount, source, target, e.now())
}

func (e *Engine) ownedRecord(ctx context.Context, accountID, transactionID uuid.UUID) (*domain.TransactionRecord, error) {
	record, err := e.journal.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if record.InitiatorID != accountID {
		return nil, fmt.Errorf("transaction %s was not initiated by %s: %w", transactionID, accountID, util.ErrForbidden)
	}
	return record, nil
}

// postingsFor derives the balance changes of a record: a debit of the nominal amount
// from the sender and a credit of the credited amount to an internal recipient.
func postingsFor(record *domain.TransactionRecord) []Posting {
	var postings []Posting
	if record.SenderID != nil {
		postings = append(postings, Posting{AccountID: *record.SenderID, Currency: record.Currency, Delta: record.Amount.Neg()})
	}
	if record.RecipientID != nil {
		amount, currency := record.CreditedAmount()
		postings = append(postings, Posting{AccountID: *record.RecipientID, Currency: currency, Delta: amount})
	}
	return postings
}

func reversed(postings []Posting) []Posting {
	out := make([]Posting, len(postings))
	for i, p := range postings {
		out[i] = Posting{AccountID: p.AccountID, Currency: p.Currency, Delta: p.Delta.Neg()}
	}
	return out
}

func idempotencyKey(record *domain.TransactionRecord, recipientKey, nonce string) string {
	raw := strings.Join([]string{
		string(record.Type),
		record.InitiatorID.String(),
		recipientKey,
		record.Amount.String(),
		record.Currency,
		nonce,
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func failureReasonFor(err error) domain.FailureReason {
	switch {
	case errors.Is(err, util.ErrInsufficientFunds):
		return domain.ReasonInsufficientFunds
	case errors.Is(err, util.ErrConcurrentModification):
		return domain.ReasonConcurrentModification
	case errors.Is(err, util.ErrQuoteExpired):
		return domain.ReasonQuoteExpired
	case errors.Is(err, util.ErrChallengeExpired):
		return domain.ReasonChallengeExpired
	case errors.Is(err, util.ErrChallengeFailed):
		return domain.ReasonChallengeFailed
	case errors.Is(err, util.ErrSettlementTimeout):
		return domain.ReasonSettlementTimeout
	case errors.Is(err, util.ErrExternalProviderFailure):
		return domain.ReasonExternalProviderFailure
	}
	return domain.ReasonLedgerError
}

// errorForRecord is the error a submission ending in record's state reports, used
// when a duplicate submission returns an earlier record.
func errorForRecord(record *domain.TransactionRecord) error {
	switch record.Status {
	case domain.TransactionStatusHeld:
		return util.ErrHeld
	case domain.TransactionStatusFailed:
		if record.FailureReason == nil {
			return util.ErrTransactionFailed
		}
		switch *record.FailureReason {
		case domain.ReasonInsufficientFunds:
			return util.ErrInsufficientFunds
		case domain.ReasonConcurrentModification:
			return util.ErrConcurrentModification
		case domain.ReasonQuoteExpired:
			return util.ErrQuoteExpired
		case domain.ReasonChallengeExpired:
			return util.ErrChallengeExpired
		case domain.ReasonChallengeFailed:
			return util.ErrChallengeExhausted
		case domain.ReasonSettlementTimeout:
			return util.ErrSettlementTimeout
		case domain.ReasonExternalProviderFailure:
			return util.ErrExternalProviderFailure
		case domain.ReasonComplianceRejected:
			return util.ErrComplianceRejected
		}
		return util.ErrTransactionFailed
	}
	return nil
}
