// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/redapplexx/cpay-sub003/internal/challenge"
	"github.com/redapplexx/cpay-sub003/internal/util"
	"github.com/redapplexx/cpay-sub003/pkg/db"
)

// AppConfig holds all application-wide configurations.
type AppConfig struct {
	ServerPort string
	DB         db.Config
	// Redis is used for challenge intents when Addr is set; otherwise they stay in process.
	Redis     challenge.RedisConfig
	JWTSecret string
	// HeaderRoles lets header-mode callers (no JWTSecret) claim a role. Development only.
	HeaderRoles bool
	Settlement  SettlementConfig
	Commit      CommitConfig
	Challenge   challenge.Config
	QuoteTTL    time.Duration
	Log         util.LogConfig
	PolicyFile  string
	Policy      *Policy
}

// SettlementConfig selects the settlement gateway. An empty URL selects the simulated one.
type SettlementConfig struct {
	URL     string
	Timeout time.Duration
}

// CommitConfig tunes the ledger retry loop.
type CommitConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	MaxBackoff  time.Duration
}

// CommitBudget is the longest a detached commit may run: one settlement call plus
// two ledger retry loops (posting and compensation) at maximum backoff.
func (c *AppConfig) CommitBudget() time.Duration {
	return c.Settlement.Timeout + 2*time.Duration(c.Commit.MaxAttempts)*c.Commit.MaxBackoff
}

// LoadConfig loads configuration from environment variables, after loading an
// optional .env file from the working directory.
func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return loadFromEnv(os.Getenv)
}

func loadFromEnv(getenv func(string) string) (*AppConfig, error) {
	env := envReader{getenv: getenv}

	cfg := &AppConfig{
		ServerPort: env.getString("SERVER_PORT", "8080"),
		DB: db.Config{
			Driver:   strings.ToLower(env.getString("DB_DRIVER", db.DriverPostgres)),
			Host:     env.getString("DB_HOST", "localhost"),
			Port:     env.getInt("DB_PORT", 5432),
			User:     env.getString("DB_USER", "user"),
			Password: env.getString("DB_PASSWORD", "password"),
			DBName:   env.getString("DB_NAME", "walletdb"),
			SSLMode:  env.getString("DB_SSLMODE", "disable"),
			Path:     env.getString("DB_PATH", "wallet.db"),
		},
		Redis: challenge.RedisConfig{
			Addr:     env.getString("REDIS_ADDR", ""),
			Password: env.getString("REDIS_PASSWORD", ""),
			DB:       env.getInt("REDIS_DB", 0),
		},
		JWTSecret:   env.getString("JWT_SECRET", ""),
		HeaderRoles: env.getBool("AUTH_HEADER_ROLES", false),
		Settlement: SettlementConfig{
			URL:     env.getString("SETTLEMENT_URL", ""),
			Timeout: env.getDuration("SETTLEMENT_TIMEOUT", 10*time.Second),
		},
		Commit: CommitConfig{
			MaxAttempts: env.getInt("COMMIT_MAX_ATTEMPTS", 5),
			Backoff:     env.getDuration("COMMIT_BACKOFF", 10*time.Millisecond),
			MaxBackoff:  env.getDuration("COMMIT_MAX_BACKOFF", 200*time.Millisecond),
		},
		Challenge: challenge.Config{
			TTL:         env.getDuration("CHALLENGE_TTL", challenge.DefaultTTL),
			MaxAttempts: env.getInt("CHALLENGE_ATTEMPTS", challenge.DefaultMaxAttempts),
			BcryptCost:  env.getInt("CHALLENGE_BCRYPT_COST", 10),
		},
		QuoteTTL: env.getDuration("QUOTE_TTL", 60*time.Second),
		Log: util.LogConfig{
			Level:      env.getString("LOG_LEVEL", "info"),
			File:       env.getString("LOG_FILE", ""),
			MaxSizeMB:  env.getInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: env.getInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: env.getInt("LOG_MAX_AGE_DAYS", 30),
			Compress:   env.getBool("LOG_COMPRESS", true),
		},
		PolicyFile: env.getString("POLICY_FILE", ""),
	}
	if env.err != nil {
		return nil, env.err
	}

	switch cfg.DB.Driver {
	case db.DriverPostgres, db.DriverSQLite:
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q: want %s or %s", cfg.DB.Driver, db.DriverPostgres, db.DriverSQLite)
	}
	if cfg.Commit.MaxAttempts < 1 {
		return nil, fmt.Errorf("invalid COMMIT_MAX_ATTEMPTS %d: must be at least 1", cfg.Commit.MaxAttempts)
	}
	if cfg.Challenge.MaxAttempts < 1 {
		return nil, fmt.Errorf("invalid CHALLENGE_ATTEMPTS %d: must be at least 1", cfg.Challenge.MaxAttempts)
	}

	policy, err := LoadPolicy(cfg.PolicyFile)
	if err != nil {
		return nil, err
	}
	cfg.Policy = policy
	return cfg, nil
}

// envReader reads typed values with defaults and keeps the first parse error.
type envReader struct {
	getenv func(string) string
	err    error
}

func (r *envReader) getString(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) getInt(key string, def int) int {
	raw := r.getString(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func (r *envReader) getDuration(key string, def time.Duration) time.Duration {
	raw := r.getString(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	if v <= 0 {
		r.fail(fmt.Errorf("invalid %s: %s must be positive", key, raw))
		return def
	}
	return v
}

func (r *envReader) getBool(key string, def bool) bool {
	raw := r.getString(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		r.fail(fmt.Errorf("invalid %s: %w", key, err))
		return def
	}
	return v
}

func (r *envReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}
