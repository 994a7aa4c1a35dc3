// internal/challenge/store.go
package challenge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/redapplexx/cpay-sub003/internal/domain"
)

// ErrIntentNotFound is returned when no live intent exists for a transaction.
var ErrIntentNotFound = errors.New("challenge intent not found")

// Store persists challenge intents keyed by the transaction they guard.
// Saving an intent replaces any previous one for the same transaction.
type Store interface {
	Save(ctx context.Context, intent *domain.ChallengeIntent) error
	GetByTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.ChallengeIntent, error)
	// DecrementAttempts consumes one attempt and returns how many are left.
	DecrementAttempts(ctx context.Context, transactionID uuid.UUID) (int, error)
	Delete(ctx context.Context, transactionID uuid.UUID) error
}

// MemoryStore keeps intents in process memory. It is used when no Redis is configured.
type MemoryStore struct {
	mu      sync.Mutex
	intents map[uuid.UUID]domain.ChallengeIntent
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents: make(map[uuid.UUID]domain.ChallengeIntent),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, intent *domain.ChallengeIntent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[intent.TransactionID] = *intent
	return nil
}

func (s *MemoryStore) GetByTransaction(_ context.Context, transactionID uuid.UUID) (*domain.ChallengeIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.live(transactionID)
	if !ok {
		return nil, ErrIntentNotFound
	}
	return &intent, nil
}

func (s *MemoryStore) DecrementAttempts(_ context.Context, transactionID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent, ok := s.live(transactionID)
	if !ok {
		return 0, ErrIntentNotFound
	}
	if intent.AttemptsRemaining > 0 {
		intent.AttemptsRemaining--
	}
	s.intents[transactionID] = intent
	return intent.AttemptsRemaining, nil
}

func (s *MemoryStore) Delete(_ context.Context, transactionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.intents, transactionID)
	return nil
}

// live returns the intent unless it has expired, evicting expired entries. Callers hold mu.
func (s *MemoryStore) live(transactionID uuid.UUID) (domain.ChallengeIntent, bool) {
	intent, ok := s.intents[transactionID]
	if !ok {
		return domain.ChallengeIntent{}, false
	}
	if intent.IsExpired(s.now()) {
		delete(s.intents, transactionID)
		return domain.ChallengeIntent{}, false
	}
	return intent, true
}
