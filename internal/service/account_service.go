// internal/service/account_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/redapplexx/cpay-sub003/internal/domain"
	"github.com/redapplexx/cpay-sub003/internal/repository"
	"github.com/redapplexx/cpay-sub003/internal/util"
)

// AccountService registers accounts and resolves the identifiers callers use for them.
type AccountService struct {
	dbExecutor  repository.DBExecutor
	accountRepo repository.AccountRepository
	logger      *slog.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(dbExecutor repository.DBExecutor, accountRepo repository.AccountRepository, logger *slog.Logger) *AccountService {
	return &AccountService{
		dbExecutor:  dbExecutor,
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// RegisterAccount creates a user or merchant account with a unique handle.
func (s *AccountService) RegisterAccount(ctx context.Context, handle string, kind domain.AccountKind, riskScore float64) (*domain.Account, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, fmt.Errorf("%w: handle is required", util.ErrInvalidInput)
	}
	if _, err := uuid.Parse(handle); err == nil {
		return nil, fmt.Errorf("%w: handle must not be a uuid", util.ErrInvalidInput)
	}
	if kind == "" {
		kind = domain.AccountKindUser
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: unknown account kind %q", util.ErrInvalidInput, kind)
	}
	if riskScore < 0 || riskScore > 1 {
		return nil, fmt.Errorf("%w: risk score must be within [0,1]", util.ErrInvalidInput)
	}

	account := domain.NewAccount(handle, kind, riskScore)
	if err := s.accountRepo.CreateAccount(ctx, s.dbExecutor, account); err != nil {
		return nil, fmt.Errorf("register account: %w", err)
	}
	s.logger.InfoContext(ctx, "account registered", "account_id", account.ID, "kind", kind)
	return account, nil
}

// GetAccount returns an account by id.
func (s *AccountService) GetAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return s.accountRepo.GetAccountByID(ctx, s.dbExecutor, id)
}

// ResolveAccount finds an account by id or by handle.
func (s *AccountService) ResolveAccount(ctx context.Context, identifier string) (*domain.Account, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, util.ErrAccountNotFound
	}
	if id, err := uuid.Parse(identifier); err == nil {
		return s.accountRepo.GetAccountByID(ctx, s.dbExecutor, id)
	}
	return s.accountRepo.GetAccountByHandle(ctx, s.dbExecutor, identifier)
}

// ArchiveAccount soft-archives an account. Archived accounts can neither initiate
// nor receive transactions; their history stays readable.
func (s *AccountService) ArchiveAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	if err := s.accountRepo.ArchiveAccount(ctx, s.dbExecutor, id, domain.Now()); err != nil {
		return nil, fmt.Errorf("archive account: %w", err)
	}
	s.logger.InfoContext(ctx, "account archived", "account_id", id)
	return s.GetAccount(ctx, id)
}

// SetRiskScore stores the behavioral score fed by the external scorer.
func (s *AccountService) SetRiskScore(ctx context.Context, id uuid.UUID, score float64) (*domain.Account, error) {
	if score < 0 || score > 1 {
		return nil, fmt.Errorf("%w: risk score must be within [0,1]", util.ErrInvalidInput)
	}
	if err := s.accountRepo.UpdateRiskScore(ctx, s.dbExecutor, id, score, domain.Now()); err != nil {
		return nil, fmt.Errorf("set risk score: %w", err)
	}
	s.logger.InfoContext(ctx, "account risk score updated", "account_id", id, "risk_score", score)
	return s.GetAccount(ctx, id)
}

// activeAccount loads an account that may take part in a transaction.
func (s *AccountService) activeAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	account, err := s.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if account.IsArchived() {
		return nil, fmt.Errorf("account %s is archived: %w", id, util.ErrAccountNotFound)
	}
	return account, nil
}

// resolveRecipient resolves an internal recipient, mapping any lookup miss to
// util.ErrRecipientNotFound.
func (s *AccountService) resolveRecipient(ctx context.Context, identifier string) (*domain.Account, error) {
	account, err := s.ResolveAccount(ctx, identifier)
	if errors.Is(err, util.ErrNotFound) {
		return nil, fmt.Errorf("%q: %w", identifier, util.ErrRecipientNotFound)
	}
	if err != nil {
		return nil, err
	}
	if account.IsArchived() {
		return nil, fmt.Errorf("%q is archived: %w", identifier, util.ErrRecipientNotFound)
	}
	return account, nil
}
