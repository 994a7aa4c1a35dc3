// internal/challenge/manager.go
package challenge

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/redapplexx/cpay-sub003/internal/domain"
)

const (
	DefaultTTL         = 5 * time.Minute
	DefaultMaxAttempts = 3
	CodeLength         = 6
)

// Outcome is the result of verifying a submitted code.
type Outcome int

const (
	Verified Outcome = iota
	// Invalid means a wrong code while attempts remain.
	Invalid
	// Exhausted means a wrong code consumed the last attempt.
	Exhausted
	// Expired means no live intent exists.
	Expired
)

func (o Outcome) String() string {
	switch o {
	case Verified:
		return "verified"
	case Invalid:
		return "invalid"
	case Exhausted:
		return "exhausted"
	case Expired:
		return "expired"
	}
	return "unknown"
}

// Config tunes code issuance.
type Config struct {
	TTL         time.Duration
	MaxAttempts int
	BcryptCost  int
}

// Manager issues and verifies one-time codes guarding transaction drafts.
type Manager struct {
	store    Store
	notifier Notifier
	ttl      time.Duration
	attempts int
	cost     int
	now      func() time.Time
	logger   *slog.Logger
}

// NewManager creates a Manager. Zero config values fall back to the defaults.
func NewManager(store Store, notifier Notifier, cfg Config, logger *slog.Logger) *Manager {
	m := &Manager{
		store:    store,
		notifier: notifier,
		ttl:      cfg.TTL,
		attempts: cfg.MaxAttempts,
		cost:     cfg.BcryptCost,
		now:      time.Now,
		logger:   logger,
	}
	if m.ttl <= 0 {
		m.ttl = DefaultTTL
	}
	if m.attempts <= 0 {
		m.attempts = DefaultMaxAttempts
	}
	if m.cost == 0 {
		m.cost = bcrypt.DefaultCost
	}
	return m
}

// WithClock replaces the manager's clock.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Issue creates a fresh intent for the transaction, replacing any previous one,
// and hands the code to the notifier.
func (m *Manager) Issue(ctx context.Context, accountID, transactionID uuid.UUID) (*domain.ChallengeIntent, error) {
	code, err := generateCode(CodeLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate challenge code: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), m.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash challenge code: %w", err)
	}

	now := m.now().UTC()
	intent := &domain.ChallengeIntent{
		ID:                uuid.New(),
		AccountID:         accountID,
		TransactionID:     transactionID,
		CodeHash:          string(hash),
		ExpiresAt:         now.Add(m.ttl),
		AttemptsRemaining: m.attempts,
		CreatedAt:         now,
	}
	if err := m.store.Save(ctx, intent); err != nil {
		return nil, err
	}
	if err := m.notifier.Deliver(ctx, intent, code); err != nil {
		_ = m.store.Delete(ctx, transactionID)
		return nil, fmt.Errorf("failed to deliver challenge code: %w", err)
	}
	m.logger.DebugContext(ctx, "challenge intent issued", "challenge_id", intent.ID, "transaction_id", transactionID)
	return intent, nil
}

// Verify checks code against the live intent for the transaction. The intent is
// deleted on success, on expiry and when the last attempt is consumed. The
// returned int is the number of attempts left.
func (m *Manager) Verify(ctx context.Context, transactionID uuid.UUID, code string) (Outcome, int, error) {
	intent, err := m.store.GetByTransaction(ctx, transactionID)
	if errors.Is(err, ErrIntentNotFound) {
		return Expired, 0, nil
	}
	if err != nil {
		return Expired, 0, err
	}

	if intent.IsExpired(m.now()) {
		return Expired, 0, m.store.Delete(ctx, transactionID)
	}

	if bcrypt.CompareHashAndPassword([]byte(intent.CodeHash), []byte(code)) == nil {
		return Verified, intent.AttemptsRemaining, m.store.Delete(ctx, transactionID)
	}

	remaining, err := m.store.DecrementAttempts(ctx, transactionID)
	if errors.Is(err, ErrIntentNotFound) {
		return Expired, 0, nil
	}
	if err != nil {
		return Invalid, intent.AttemptsRemaining, err
	}
	if remaining <= 0 {
		return Exhausted, 0, m.store.Delete(ctx, transactionID)
	}
	return Invalid, remaining, nil
}

// Discard removes any intent for the transaction.
func (m *Manager) Discard(ctx context.Context, transactionID uuid.UUID) error {
	return m.store.Delete(ctx, transactionID)
}

func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	ten := big.NewInt(10)
	for i := range digits {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
