// internal/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	router "github.com/redapplexx/cpay-sub003/internal/api"
	"github.com/redapplexx/cpay-sub003/internal/api/handler"
	"github.com/redapplexx/cpay-sub003/internal/api/middleware"
	"github.com/redapplexx/cpay-sub003/internal/challenge"
	"github.com/redapplexx/cpay-sub003/internal/config"
	"github.com/redapplexx/cpay-sub003/internal/fx"
	"github.com/redapplexx/cpay-sub003/internal/repository"
	"github.com/redapplexx/cpay-sub003/internal/repository/sqlrepo"
	"github.com/redapplexx/cpay-sub003/internal/risk"
	"github.com/redapplexx/cpay-sub003/internal/service"
	"github.com/redapplexx/cpay-sub003/internal/settlement"
	"github.com/redapplexx/cpay-sub003/internal/util"
	"github.com/redapplexx/cpay-sub003/pkg/db"
)

// TokenTTL is the lifetime of tokens issued at registration.
const TokenTTL = 24 * time.Hour

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	// Repositories
	AccountRepository     repository.AccountRepository
	WalletRepository      repository.WalletRepository
	TransactionRepository repository.TransactionRepository

	// Services
	Accounts   *service.AccountService
	Engine     *service.Engine
	Challenges *challenge.Manager
	Gateway    settlement.Gateway

	// HTTP API
	HTTPHandler http.Handler

	logCloser io.Closer
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize loads configuration from the environment and initializes all components.
func (app *Application) Initialize(ctx context.Context) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		app.Logger = slog.Default()
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.InitializeWithConfig(ctx, cfg)
}

// InitializeWithConfig initializes all components from cfg.
func (app *Application) InitializeWithConfig(ctx context.Context, cfg *config.AppConfig) error {
	app.Config = cfg

	// 1. Logger
	logger, closer, err := util.NewLogger(cfg.Log)
	if err != nil {
		app.Logger = slog.Default()
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger, app.logCloser = logger, closer
	slog.SetDefault(logger)
	app.Logger.Info("Application configuration loaded successfully.", "db_driver", cfg.DB.Driver)

	// 2. Database
	database, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	app.DB = database
	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	app.Logger.Info("Database connection established.")

	// 3. Repositories
	app.AccountRepository = sqlrepo.NewAccountRepository()
	app.WalletRepository = sqlrepo.NewWalletRepository()
	app.TransactionRepository = sqlrepo.NewTransactionRepository()

	// 4. Collaborators
	var store challenge.Store = challenge.NewMemoryStore()
	if cfg.Redis.Addr != "" {
		app.Redis = challenge.NewRedisClient(cfg.Redis)
		if err := app.Redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		store = challenge.NewRedisStore(app.Redis)
		app.Logger.Info("Challenge intents stored in redis.", "addr", cfg.Redis.Addr)
	}
	app.Challenges = challenge.NewManager(store, challenge.NewLogNotifier(app.Logger), cfg.Challenge, app.Logger)

	if cfg.Settlement.URL != "" {
		app.Gateway = settlement.NewHTTPGateway(cfg.Settlement.URL, cfg.Settlement.Timeout)
	} else {
		app.Gateway = settlement.NewSimulatedGateway(0)
		app.Logger.Warn("SETTLEMENT_URL not set, using the simulated settlement gateway.")
	}

	policy := cfg.Policy
	channelPolicy := service.ChannelPolicy{
		RequireChallenge:  policy.RequireChallenge,
		Billers:           policy.Billers,
		SettlementTimeout: cfg.Settlement.Timeout,
	}

	// 5. Services
	app.Accounts = service.NewAccountService(app.DB, app.AccountRepository, app.Logger)
	ledger := service.NewLedger(
		app.DB,
		app.WalletRepository,
		app.TransactionRepository,
		policy.Currencies,
		db.BeginTx,
		db.CommitTx,
		db.RollbackTx,
		service.RetryPolicy{
			MaxAttempts: cfg.Commit.MaxAttempts,
			BaseBackoff: cfg.Commit.Backoff,
			MaxBackoff:  cfg.Commit.MaxBackoff,
		},
		app.Logger,
	)
	app.Engine = service.NewEngine(service.EngineDeps{
		DBExecutor: app.DB,
		WalletRepo: app.WalletRepository,
		Accounts:   app.Accounts,
		Journal:    service.NewJournal(app.DB, app.TransactionRepository, app.Logger),
		Ledger:     ledger,
		Currencies: policy.Currencies,
		Fx:         fx.NewService(policy.Currencies, policy.FxRates, policy.FxFeeRate, cfg.QuoteTTL),
		Risk:       risk.NewPolicyGate(policy.Risk),
		Challenges: app.Challenges,
		Gateway:    app.Gateway,
		Policy:     channelPolicy,
		Logger:     app.Logger,
	})
	app.Logger.Info("Services initialized.")

	// 6. HTTP handlers and router
	var authOpts []middleware.Option
	if cfg.HeaderRoles && cfg.JWTSecret == "" {
		app.Logger.Warn("AUTH_HEADER_ROLES set, header callers may claim any role.")
		authOpts = append(authOpts, middleware.WithHeaderRoles())
	}
	auth := middleware.NewAuthenticator(cfg.JWTSecret, app.Logger, authOpts...)
	var issueToken handler.TokenIssuer
	if auth.Enabled() {
		issueToken = func(accountID uuid.UUID) (string, error) {
			return middleware.IssueToken(cfg.JWTSecret, accountID, middleware.RoleUser, TokenTTL)
		}
	} else {
		app.Logger.Warn("JWT_SECRET not set, callers are identified by the X-Account-ID header.")
	}
	app.HTTPHandler = router.NewRouter(router.Handlers{
		Accounts:     handler.NewAccountHandler(app.Accounts, app.Engine, issueToken, app.Logger),
		Transactions: handler.NewTransactionHandler(app.Engine, app.Logger),
		Fx:           handler.NewFxHandler(app.Engine, app.Logger),
	}, auth, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// WriteTimeout is how long the server may take to answer a request. A commit
// keeps running after the per-request deadline, so the budget covers both.
func (app *Application) WriteTimeout() time.Duration {
	return handler.DefaultTimeout + app.Config.CommitBudget()
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Redis != nil {
		if err := app.Redis.Close(); err != nil {
			app.Logger.Error("Failed to close redis client", "error", err)
		}
	}
	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("Failed to close database connection", "error", err)
			return fmt.Errorf("failed to close database connection: %w", err)
		}
		app.Logger.Info("Database connection closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	if app.logCloser != nil {
		return app.logCloser.Close()
	}
	return nil
}
