// internal/challenge/redis_store.go
package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/redapplexx/cpay-sub003/internal/domain"
)

const (
	redisKeyPrefix     = "challenge:tx:"
	maxWatchRetries    = 5
	minRedisExpiration = time.Millisecond
)

// RedisConfig holds the Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient creates a go-redis client from config.
func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisStore keeps intents as JSON values that expire with the intent,
// so intents are shared between API replicas.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore creates a RedisStore over an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

// stringGetter is satisfied by both *redis.Client and *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func redisKey(transactionID uuid.UUID) string {
	return redisKeyPrefix + transactionID.String()
}

func (s *RedisStore) Save(ctx context.Context, intent *domain.ChallengeIntent) error {
	data, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to encode challenge intent: %w", err)
	}
	ttl := intent.ExpiresAt.Sub(s.now())
	if ttl < minRedisExpiration {
		ttl = minRedisExpiration
	}
	if err := s.client.Set(ctx, redisKey(intent.TransactionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save challenge intent: %w", err)
	}
	return nil
}

func (s *RedisStore) GetByTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.ChallengeIntent, error) {
	return s.get(ctx, s.client, redisKey(transactionID))
}

// DecrementAttempts rewrites the intent under WATCH so concurrent verifications
// cannot both consume the same attempt.
func (s *RedisStore) DecrementAttempts(ctx context.Context, transactionID uuid.UUID) (int, error) {
	key := redisKey(transactionID)
	remaining := 0

	decrement := func(tx *redis.Tx) error {
		intent, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}
		if intent.AttemptsRemaining > 0 {
			intent.AttemptsRemaining--
		}
		data, err := json.Marshal(intent)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, redis.KeepTTL)
			return nil
		})
		if err == nil {
			remaining = intent.AttemptsRemaining
		}
		return err
	}

	for i := 0; i < maxWatchRetries; i++ {
		err := s.client.Watch(ctx, decrement, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return remaining, nil
	}
	return 0, fmt.Errorf("challenge intent %s: too many concurrent attempts", transactionID)
}

func (s *RedisStore) Delete(ctx context.Context, transactionID uuid.UUID) error {
	if err := s.client.Del(ctx, redisKey(transactionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete challenge intent: %w", err)
	}
	return nil
}

func (s *RedisStore) get(ctx context.Context, c stringGetter, key string) (*domain.ChallengeIntent, error) {
	val, err := c.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrIntentNotFound
		}
		return nil, fmt.Errorf("failed to load challenge intent: %w", err)
	}
	var intent domain.ChallengeIntent
	if err := json.Unmarshal([]byte(val), &intent); err != nil {
		return nil, fmt.Errorf("failed to decode challenge intent: %w", err)
	}
	if intent.IsExpired(s.now()) {
		return nil, ErrIntentNotFound
	}
	return &intent, nil
}
