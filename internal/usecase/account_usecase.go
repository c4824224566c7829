package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
)

// AccountUseCase handles account business logic.
type AccountUseCase struct {
	txManager   TransactionManager
	accountRepo AccountRepository
	balanceRepo BalanceRepository
	outboxRepo  OutboxRepository
	auditRepo   AuditRepository
	idGen       IDGenerator
	metrics     *metrics.Metrics
}

// NewAccountUseCase creates a new AccountUseCase.
func NewAccountUseCase(txManager TransactionManager, repos Repositories, idGen IDGenerator, m *metrics.Metrics) *AccountUseCase {
	return &AccountUseCase{
		txManager:   txManager,
		accountRepo: repos.Accounts,
		balanceRepo: repos.Balances,
		outboxRepo:  repos.Outbox,
		auditRepo:   repos.Audit,
		idGen:       idGen,
		metrics:     m,
	}
}

// CreateAccountInput represents input for creating an account.
type CreateAccountInput struct {
	ID         string
	Name       string
	Type       domain.AccountType
	PartnerID  string
	Currency   string
	Coins      []string
	Restricted bool
	Fee        *domain.FeeConfig
}

// CreateAccount creates a new account.
func (uc *AccountUseCase) CreateAccount(ctx context.Context, input CreateAccountInput) (*domain.Account, error) {
	now := time.Now().UTC()

	id := input.ID
	switch {
	case input.Type == domain.AccountTypeCashPool:
		id = domain.CashPoolAccountID
	case id == "":
		id = uc.idGen.Generate()
	}

	coins := make([]string, 0, len(input.Coins))
	for _, c := range input.Coins {
		coins = append(coins, domain.NormalizeCode(c))
	}

	account := &domain.Account{
		ID:         id,
		Name:       input.Name,
		Type:       input.Type,
		PartnerID:  input.PartnerID,
		Currency:   domain.NormalizeCode(input.Currency),
		Coins:      coins,
		Restricted: input.Restricted,
		State:      domain.AccountStateInUse,
		Fee:        input.Fee,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if account.Type == domain.AccountTypeWallet {
		account.Currency = domain.USD
	}
	if account.Fee != nil {
		account.Fee.Currency = domain.NormalizeCode(account.Fee.Currency)
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := uc.accountRepo.Create(ctx, tx, account); err != nil {
		return nil, err
	}

	if err := emitEvent(ctx, uc.outboxRepo, tx, uc.idGen.Generate(),
		domain.AggregateTypeAccount, account.ID, domain.EventTypeAccountCreated,
		domain.AccountCreatedEvent{
			AccountID: account.ID,
			Name:      account.Name,
			Type:      string(account.Type),
			Currency:  account.Currency,
		}, now); err != nil {
		return nil, err
	}

	if err := writeAudit(ctx, uc.auditRepo, tx, uc.idGen.Generate(),
		domain.AuditActionAccountCreate, domain.ResourceTypeAccount, account.ID, nil, account, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.AccountsCreated.Inc()
	}

	return account, nil
}

// EnsureCashPool creates the cash pool account when it does not exist yet.
func (uc *AccountUseCase) EnsureCashPool(ctx context.Context) (*domain.Account, error) {
	account, err := uc.accountRepo.GetByID(ctx, domain.CashPoolAccountID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return nil, err
	}

	account, err = uc.CreateAccount(ctx, CreateAccountInput{Name: "Cash pool", Type: domain.AccountTypeCashPool})
	if errors.Is(err, domain.ErrAccountExists) {
		return uc.accountRepo.GetByID(ctx, domain.CashPoolAccountID)
	}
	return account, err
}

// GetAccount retrieves an account by ID.
func (uc *AccountUseCase) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return uc.accountRepo.GetByID(ctx, id)
}

// ListAccountsInput represents input for listing accounts.
type ListAccountsInput struct {
	Type   domain.AccountType
	Limit  int
	Offset int
}

// ListAccounts lists accounts with pagination.
func (uc *AccountUseCase) ListAccounts(ctx context.Context, input ListAccountsInput) ([]*domain.Account, error) {
	if input.Limit <= 0 {
		input.Limit = 20
	}
	if input.Limit > 100 {
		input.Limit = 100
	}
	return uc.accountRepo.List(ctx, input.Type, input.Limit, input.Offset)
}

// BalanceView is the read model of one account asset.
type BalanceView struct {
	Asset     string
	Total     decimal.Decimal
	Locked    decimal.Decimal
	Available decimal.Decimal
	Pending   decimal.Decimal
	UpdatedAt time.Time
}

// GetBalances returns every asset balance of an account. Investors have none.
func (uc *AccountUseCase) GetBalances(ctx context.Context, accountID string) ([]BalanceView, error) {
	account, err := uc.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.TracksBalance() {
		return []BalanceView{}, nil
	}

	balances, err := uc.balanceRepo.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	views := make([]BalanceView, 0, len(balances))
	for _, b := range balances {
		views = append(views, BalanceView{
			Asset:     b.Asset,
			Total:     b.Total,
			Locked:    b.Locked,
			Available: b.Available(),
			Pending:   b.Pending,
			UpdatedAt: b.UpdatedAt,
		})
	}

	return views, nil
}
