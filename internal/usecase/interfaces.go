package usecase

import (
	"context"
	"time"

	"github.com/iho/cashledger/internal/domain"
)

// AccountRepository defines data access for accounts.
type AccountRepository interface {
	Create(ctx context.Context, tx Transaction, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Account, error)
	// GetByIDsForUpdate locks the accounts in ascending id order.
	GetByIDsForUpdate(ctx context.Context, tx Transaction, ids []string) ([]*domain.Account, error)
	UpdateState(ctx context.Context, tx Transaction, account *domain.Account) error
	List(ctx context.Context, accountType domain.AccountType, limit, offset int) ([]*domain.Account, error)
}

// BalanceRepository defines data access for per-asset balances.
type BalanceRepository interface {
	GetByAccount(ctx context.Context, accountID string) ([]*domain.Balance, error)
	// GetForUpdate locks the rows in (account_id, asset) order, creating
	// missing rows at zero.
	GetForUpdate(ctx context.Context, tx Transaction, keys []domain.BalanceKey) (map[domain.BalanceKey]*domain.Balance, error)
	Update(ctx context.Context, tx Transaction, balance *domain.Balance) error
}

// EntryRepository defines data access for ledger entries.
type EntryRepository interface {
	// Create returns domain.ErrDuplicateIdempotencyKey when the key was used before.
	Create(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.LedgerEntry, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error)
	UpdateStatus(ctx context.Context, tx Transaction, entry *domain.LedgerEntry) error
	List(ctx context.Context, filter domain.EntryFilter) ([]*domain.LedgerEntry, error)
}

// AdjustmentRepository defines data access for adjustment audit records.
type AdjustmentRepository interface {
	Create(ctx context.Context, tx Transaction, record *domain.AdjustmentRecord) error
	// FindByReference returns nil, nil when no record exists.
	FindByReference(ctx context.Context, tx Transaction, referenceEntryID string, reason domain.AdjustmentReason) (*domain.AdjustmentRecord, error)
	ListByReference(ctx context.Context, referenceEntryID string) ([]*domain.AdjustmentRecord, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.AdjustmentRecord, error)
}

// TransitLockRepository defines data access for wallet transit locks.
type TransitLockRepository interface {
	// Create inserts the lock unless one already exists for the entry and
	// reports whether a row was written.
	Create(ctx context.Context, tx Transaction, lock *domain.TransitLock) (bool, error)
	// GetByEntryForUpdate returns nil, nil when the entry has no lock.
	GetByEntryForUpdate(ctx context.Context, tx Transaction, entryID string) (*domain.TransitLock, error)
	MarkReleased(ctx context.Context, tx Transaction, id string, releasedAt time.Time) error
}

// RateRepository stores quotes pushed by the rate feed.
type RateRepository interface {
	UpsertRate(ctx context.Context, rate domain.Rate) error
	UpsertCoinPrice(ctx context.Context, price domain.CoinPrice) error
	GetRate(ctx context.Context, currency string) (domain.Rate, error)
	GetCoinPrice(ctx context.Context, symbol string) (domain.CoinPrice, error)
}

// RateProvider is the read side of the rate feed. Missing quotes are
// reported as *domain.RateUnavailableError.
type RateProvider interface {
	GetRate(ctx context.Context, currency string) (domain.Rate, error)
	GetCoinPrice(ctx context.Context, symbol string) (domain.CoinPrice, error)
}

// RateCacheInvalidator drops cached quotes after a push.
type RateCacheInvalidator interface {
	InvalidateRate(ctx context.Context, currency string) error
	InvalidateCoinPrice(ctx context.Context, symbol string) error
}

// LedgerRepository defines data access for ledger-wide checks.
type LedgerRepository interface {
	CheckConsistency(ctx context.Context) ([]domain.ConsistencyIssue, error)
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
}

// OperatorRepository defines data access for console operators.
type OperatorRepository interface {
	Create(ctx context.Context, operator *domain.Operator) error
	GetByID(ctx context.Context, id string) (*domain.Operator, error)
	GetByEmail(ctx context.Context, email string) (*domain.Operator, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation that lost a lock race.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Cache defines caching operations.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops an in-flight placeholder so the request can be retried.
	Release(ctx context.Context, key string) error
}

// noRetry runs the operation once.
type noRetry struct{}

func (noRetry) Retry(_ context.Context, operation func() error) error {
	return operation()
}
