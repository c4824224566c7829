package mocks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

// ErrTxDone is returned when committing a finished transaction.
var ErrTxDone = errors.New("transaction already finished")

type memoryState struct {
	accounts    map[string]domain.Account
	balances    map[domain.BalanceKey]domain.Balance
	entries     map[string]domain.LedgerEntry
	entryOrder  []string
	adjustments []domain.AdjustmentRecord
	locks       map[string]domain.TransitLock
	outbox      []domain.OutboxEvent
	audit       []domain.AuditLog
}

func newMemoryState() *memoryState {
	return &memoryState{
		accounts: make(map[string]domain.Account),
		balances: make(map[domain.BalanceKey]domain.Balance),
		entries:  make(map[string]domain.LedgerEntry),
		locks:    make(map[string]domain.TransitLock),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range s.accounts {
		c.accounts[k] = copyAccount(v)
	}
	for k, v := range s.balances {
		c.balances[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = copyEntry(v)
	}
	for k, v := range s.locks {
		c.locks[k] = v
	}
	c.entryOrder = slices.Clone(s.entryOrder)
	c.adjustments = slices.Clone(s.adjustments)
	c.outbox = slices.Clone(s.outbox)
	c.audit = slices.Clone(s.audit)
	return c
}

// MemoryStore is an in-memory ledger store. Transactions are serialized and
// a rollback restores the state seen at Begin, which stands in for the row
// locks and atomicity of the Postgres store in tests.
type MemoryStore struct {
	txMu  sync.Mutex
	mu    sync.Mutex
	state *memoryState

	rates     map[string]domain.Rate
	coins     map[string]domain.CoinPrice
	operators map[string]domain.Operator

	// CommitErr, when set, fails the next commit and is then cleared.
	CommitErr error
	Begins    int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		state:     newMemoryState(),
		rates:     make(map[string]domain.Rate),
		coins:     make(map[string]domain.CoinPrice),
		operators: make(map[string]domain.Operator),
	}
}

// Repositories returns the write-path repositories backed by the store.
func (s *MemoryStore) Repositories() usecase.Repositories {
	return usecase.Repositories{
		Accounts:     s.Accounts(),
		Balances:     s.Balances(),
		Entries:      s.Entries(),
		Adjustments:  s.Adjustments(),
		TransitLocks: s.TransitLocks(),
		Outbox:       s.Outbox(),
		Audit:        s.Audit(),
	}
}

func (s *MemoryStore) Accounts() *MemoryAccountRepository         { return &MemoryAccountRepository{s} }
func (s *MemoryStore) Balances() *MemoryBalanceRepository         { return &MemoryBalanceRepository{s} }
func (s *MemoryStore) Entries() *MemoryEntryRepository            { return &MemoryEntryRepository{s} }
func (s *MemoryStore) Adjustments() *MemoryAdjustmentRepository   { return &MemoryAdjustmentRepository{s} }
func (s *MemoryStore) TransitLocks() *MemoryTransitLockRepository { return &MemoryTransitLockRepository{s} }
func (s *MemoryStore) Outbox() *MemoryOutboxRepository            { return &MemoryOutboxRepository{s} }
func (s *MemoryStore) Audit() *MemoryAuditRepository              { return &MemoryAuditRepository{s} }
func (s *MemoryStore) Rates() *MemoryRateRepository               { return &MemoryRateRepository{s} }
func (s *MemoryStore) Operators() *MemoryOperatorRepository       { return &MemoryOperatorRepository{s} }
func (s *MemoryStore) Ledger() *MemoryLedgerRepository            { return &MemoryLedgerRepository{s} }

// TxManager returns a transaction manager over the store.
func (s *MemoryStore) TxManager() *MemoryTxManager { return &MemoryTxManager{store: s} }

// PutAccount seeds an account outside any transaction.
func (s *MemoryStore) PutAccount(account *domain.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.accounts[account.ID] = copyAccount(*account)
}

// PutBalance seeds a balance outside any transaction.
func (s *MemoryStore) PutBalance(accountID, asset string, total decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := domain.NewBalance(accountID, asset)
	b.Total = total
	s.state.balances[domain.BalanceKey{AccountID: accountID, Asset: asset}] = *b
}

// Balance returns a copy of a balance, or a zero balance when absent.
func (s *MemoryStore) Balance(accountID, asset string) domain.Balance {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.state.balances[domain.BalanceKey{AccountID: accountID, Asset: asset}]; ok {
		return b
	}
	return *domain.NewBalance(accountID, asset)
}

// EntryCount returns the number of stored entries.
func (s *MemoryStore) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.entries)
}

// AdjustmentRecords returns a copy of the adjustment records.
func (s *MemoryStore) AdjustmentRecords() []domain.AdjustmentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.adjustments)
}

// OutboxEvents returns a copy of the outbox.
func (s *MemoryStore) OutboxEvents() []domain.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.outbox)
}

// AuditLogs returns a copy of the audit trail.
func (s *MemoryStore) AuditLogs() []domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.audit)
}

// TransitLock returns the lock of an entry.
func (s *MemoryStore) TransitLock(entryID string) (domain.TransitLock, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.state.locks[entryID]
	return l, ok
}

func (s *MemoryStore) with(fn func(st *memoryState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// MemoryTxManager begins serialized transactions on a MemoryStore.
type MemoryTxManager struct {
	store *MemoryStore
}

// Begin waits for the running transaction to finish.
func (m *MemoryTxManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.store.txMu.Lock()

	var saved *memoryState
	m.store.with(func(st *memoryState) {
		saved = st.clone()
	})
	m.store.mu.Lock()
	m.store.Begins++
	m.store.mu.Unlock()

	return &MemoryTx{store: m.store, saved: saved}, nil
}

// MemoryTx is a transaction on a MemoryStore.
type MemoryTx struct {
	store *MemoryStore
	saved *memoryState
	done  bool
}

func (t *MemoryTx) Commit(ctx context.Context) error {
	if t.done {
		return ErrTxDone
	}

	t.store.mu.Lock()
	err := t.store.CommitErr
	t.store.CommitErr = nil
	t.store.mu.Unlock()

	if err != nil {
		return err
	}

	t.done = true
	t.store.txMu.Unlock()
	return nil
}

func (t *MemoryTx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.store.with(func(st *memoryState) {
		*st = *t.saved
	})
	t.done = true
	t.store.txMu.Unlock()
	return nil
}

// MemoryAccountRepository implements usecase.AccountRepository.
type MemoryAccountRepository struct{ s *MemoryStore }

func (r *MemoryAccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	var err error
	r.s.with(func(st *memoryState) {
		if _, ok := st.accounts[account.ID]; ok {
			err = domain.ErrAccountExists
			return
		}
		st.accounts[account.ID] = copyAccount(*account)
	})
	return err
}

func (r *MemoryAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	var out *domain.Account
	r.s.with(func(st *memoryState) {
		if a, ok := st.accounts[id]; ok {
			c := copyAccount(a)
			out = &c
		}
	})
	if out == nil {
		return nil, domain.ErrAccountNotFound
	}
	return out, nil
}

func (r *MemoryAccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *MemoryAccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	sorted := slices.Clone(ids)
	sort.Strings(sorted)

	var out []*domain.Account
	r.s.with(func(st *memoryState) {
		for _, id := range sorted {
			if a, ok := st.accounts[id]; ok {
				c := copyAccount(a)
				out = append(out, &c)
			}
		}
	})
	return out, nil
}

func (r *MemoryAccountRepository) UpdateState(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	var err error
	r.s.with(func(st *memoryState) {
		existing, ok := st.accounts[account.ID]
		if !ok {
			err = domain.ErrAccountNotFound
			return
		}
		existing.State = account.State
		existing.MandatoryWithdrawal = account.MandatoryWithdrawal
		existing.UpdatedAt = account.UpdatedAt
		existing.Version++
		st.accounts[account.ID] = existing
	})
	return err
}

func (r *MemoryAccountRepository) List(ctx context.Context, accountType domain.AccountType, limit, offset int) ([]*domain.Account, error) {
	var all []*domain.Account
	r.s.with(func(st *memoryState) {
		for _, a := range st.accounts {
			if accountType != "" && a.Type != accountType {
				continue
			}
			c := copyAccount(a)
			all = append(all, &c)
		}
	})
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return page(all, limit, offset), nil
}

// MemoryBalanceRepository implements usecase.BalanceRepository.
type MemoryBalanceRepository struct{ s *MemoryStore }

func (r *MemoryBalanceRepository) GetByAccount(ctx context.Context, accountID string) ([]*domain.Balance, error) {
	var out []*domain.Balance
	r.s.with(func(st *memoryState) {
		for k, b := range st.balances {
			if k.AccountID == accountID {
				c := b
				out = append(out, &c)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Asset < out[j].Asset })
	return out, nil
}

func (r *MemoryBalanceRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, keys []domain.BalanceKey) (map[domain.BalanceKey]*domain.Balance, error) {
	out := make(map[domain.BalanceKey]*domain.Balance, len(keys))
	r.s.with(func(st *memoryState) {
		for _, k := range keys {
			b, ok := st.balances[k]
			if !ok {
				b = *domain.NewBalance(k.AccountID, k.Asset)
				st.balances[k] = b
			}
			c := b
			out[k] = &c
		}
	})
	return out, nil
}

func (r *MemoryBalanceRepository) Update(ctx context.Context, tx usecase.Transaction, balance *domain.Balance) error {
	r.s.with(func(st *memoryState) {
		b := *balance
		b.Version++
		st.balances[domain.BalanceKey{AccountID: b.AccountID, Asset: b.Asset}] = b
	})
	return nil
}

// MemoryEntryRepository implements usecase.EntryRepository.
type MemoryEntryRepository struct{ s *MemoryStore }

func (r *MemoryEntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	var err error
	r.s.with(func(st *memoryState) {
		if entry.IdempotencyKey != "" {
			for _, e := range st.entries {
				if e.IdempotencyKey == entry.IdempotencyKey {
					err = domain.ErrDuplicateIdempotencyKey
					return
				}
			}
		}
		st.entries[entry.ID] = copyEntry(*entry)
		st.entryOrder = append(st.entryOrder, entry.ID)
	})
	return err
}

func (r *MemoryEntryRepository) GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	var out *domain.LedgerEntry
	r.s.with(func(st *memoryState) {
		if e, ok := st.entries[id]; ok {
			c := copyEntry(e)
			out = &c
		}
	})
	if out == nil {
		return nil, domain.ErrEntryNotFound
	}
	return out, nil
}

func (r *MemoryEntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerEntry, error) {
	return r.GetByID(ctx, id)
}

func (r *MemoryEntryRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	var out *domain.LedgerEntry
	r.s.with(func(st *memoryState) {
		for _, e := range st.entries {
			if e.IdempotencyKey == key {
				c := copyEntry(e)
				out = &c
				return
			}
		}
	})
	if out == nil {
		return nil, domain.ErrEntryNotFound
	}
	return out, nil
}

func (r *MemoryEntryRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	var err error
	r.s.with(func(st *memoryState) {
		e, ok := st.entries[entry.ID]
		if !ok {
			err = domain.ErrEntryNotFound
			return
		}
		e.Status = entry.Status
		e.ValueStatus = entry.ValueStatus
		e.TransitStatus = entry.TransitStatus
		if entry.ConfirmedAt != nil {
			t := *entry.ConfirmedAt
			e.ConfirmedAt = &t
		}
		st.entries[entry.ID] = e
	})
	return err
}

func (r *MemoryEntryRepository) List(ctx context.Context, filter domain.EntryFilter) ([]*domain.LedgerEntry, error) {
	var out []*domain.LedgerEntry
	r.s.with(func(st *memoryState) {
		for i := len(st.entryOrder) - 1; i >= 0; i-- {
			e := st.entries[st.entryOrder[i]]
			if filter.AccountID != "" {
				touches := e.Destination.ResolvedAccountID() == filter.AccountID ||
					(e.Origin != nil && e.Origin.ResolvedAccountID() == filter.AccountID)
				if !touches {
					continue
				}
			}
			if filter.ReferenceEntryID != "" && e.ReferenceEntryID != filter.ReferenceEntryID {
				continue
			}
			if filter.Kind != "" && e.Kind != filter.Kind {
				continue
			}
			if filter.Status != "" && e.Status != filter.Status {
				continue
			}
			c := copyEntry(e)
			out = append(out, &c)
		}
	})
	return page(out, filter.Limit, filter.Offset), nil
}

// MemoryAdjustmentRepository implements usecase.AdjustmentRepository.
type MemoryAdjustmentRepository struct{ s *MemoryStore }

func (r *MemoryAdjustmentRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.AdjustmentRecord) error {
	var err error
	r.s.with(func(st *memoryState) {
		if record.ReasonCode == domain.AdjustmentReasonFee {
			for _, a := range st.adjustments {
				if a.ReasonCode == domain.AdjustmentReasonFee && a.ReferenceEntryID == record.ReferenceEntryID {
					err = fmt.Errorf("fee already posted for %s", record.ReferenceEntryID)
					return
				}
			}
		}
		st.adjustments = append(st.adjustments, *record)
	})
	return err
}

func (r *MemoryAdjustmentRepository) FindByReference(ctx context.Context, tx usecase.Transaction, referenceEntryID string, reason domain.AdjustmentReason) (*domain.AdjustmentRecord, error) {
	var out *domain.AdjustmentRecord
	r.s.with(func(st *memoryState) {
		for _, a := range st.adjustments {
			if a.ReferenceEntryID == referenceEntryID && a.ReasonCode == reason {
				c := a
				out = &c
				return
			}
		}
	})
	return out, nil
}

func (r *MemoryAdjustmentRepository) ListByReference(ctx context.Context, referenceEntryID string) ([]*domain.AdjustmentRecord, error) {
	var out []*domain.AdjustmentRecord
	r.s.with(func(st *memoryState) {
		for _, a := range st.adjustments {
			if a.ReferenceEntryID == referenceEntryID {
				c := a
				out = append(out, &c)
			}
		}
	})
	return out, nil
}

func (r *MemoryAdjustmentRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.AdjustmentRecord, error) {
	var out []*domain.AdjustmentRecord
	r.s.with(func(st *memoryState) {
		for _, a := range st.adjustments {
			if a.AccountID == accountID {
				c := a
				out = append(out, &c)
			}
		}
	})
	return page(out, limit, offset), nil
}

// MemoryTransitLockRepository implements usecase.TransitLockRepository.
type MemoryTransitLockRepository struct{ s *MemoryStore }

func (r *MemoryTransitLockRepository) Create(ctx context.Context, tx usecase.Transaction, lock *domain.TransitLock) (bool, error) {
	created := false
	r.s.with(func(st *memoryState) {
		if _, ok := st.locks[lock.EntryID]; ok {
			return
		}
		st.locks[lock.EntryID] = *lock
		created = true
	})
	return created, nil
}

func (r *MemoryTransitLockRepository) GetByEntryForUpdate(ctx context.Context, tx usecase.Transaction, entryID string) (*domain.TransitLock, error) {
	var out *domain.TransitLock
	r.s.with(func(st *memoryState) {
		if l, ok := st.locks[entryID]; ok {
			out = &l
		}
	})
	return out, nil
}

func (r *MemoryTransitLockRepository) MarkReleased(ctx context.Context, tx usecase.Transaction, id string, releasedAt time.Time) error {
	err := domain.ErrLockNotFound
	r.s.with(func(st *memoryState) {
		for k, l := range st.locks {
			if l.ID == id {
				l.Status = domain.TransitLockReleased
				l.ReleasedAt = &releasedAt
				st.locks[k] = l
				err = nil
				return
			}
		}
	})
	return err
}

// MemoryOutboxRepository implements usecase.OutboxRepository.
type MemoryOutboxRepository struct{ s *MemoryStore }

func (r *MemoryOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	r.s.with(func(st *memoryState) {
		st.outbox = append(st.outbox, *event)
	})
	return nil
}

func (r *MemoryOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	var out []*domain.OutboxEvent
	r.s.with(func(st *memoryState) {
		for _, e := range st.outbox {
			if !e.Published {
				c := e
				out = append(out, &c)
			}
		}
	})
	return page(out, limit, 0), nil
}

func (r *MemoryOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	r.s.with(func(st *memoryState) {
		for i := range st.outbox {
			if st.outbox[i].ID == id {
				st.outbox[i].Published = true
				st.outbox[i].PublishedAt = &publishedAt
			}
		}
	})
	return nil
}

func (r *MemoryOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	r.s.with(func(st *memoryState) {
		kept := st.outbox[:0]
		for _, e := range st.outbox {
			if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
				continue
			}
			kept = append(kept, e)
		}
		st.outbox = kept
	})
	return nil
}

// MemoryAuditRepository implements usecase.AuditRepository.
type MemoryAuditRepository struct{ s *MemoryStore }

func (r *MemoryAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	r.s.with(func(st *memoryState) {
		st.audit = append(st.audit, *log)
	})
	return nil
}

func (r *MemoryAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	var out []*domain.AuditLog
	r.s.with(func(st *memoryState) {
		for _, l := range st.audit {
			if filter.Action != "" && l.Action != filter.Action {
				continue
			}
			if filter.ResourceID != "" && l.ResourceID != filter.ResourceID {
				continue
			}
			c := l
			out = append(out, &c)
		}
	})
	return page(out, filter.Limit, filter.Offset), nil
}

// MemoryRateRepository implements usecase.RateRepository and
// usecase.RateProvider.
type MemoryRateRepository struct{ s *MemoryStore }

func (r *MemoryRateRepository) UpsertRate(ctx context.Context, rate domain.Rate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.rates[rate.Currency] = rate
	return nil
}

func (r *MemoryRateRepository) UpsertCoinPrice(ctx context.Context, price domain.CoinPrice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.coins[price.Symbol] = price
	return nil
}

func (r *MemoryRateRepository) GetRate(ctx context.Context, currency string) (domain.Rate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rate, ok := r.s.rates[currency]
	if !ok {
		return domain.Rate{}, &domain.RateUnavailableError{Currency: currency}
	}
	return rate, nil
}

func (r *MemoryRateRepository) GetCoinPrice(ctx context.Context, symbol string) (domain.CoinPrice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	price, ok := r.s.coins[symbol]
	if !ok {
		return domain.CoinPrice{}, &domain.RateUnavailableError{Currency: symbol}
	}
	return price, nil
}

// MemoryOperatorRepository implements usecase.OperatorRepository.
type MemoryOperatorRepository struct{ s *MemoryStore }

func (r *MemoryOperatorRepository) Create(ctx context.Context, operator *domain.Operator) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.operators {
		if o.Email == operator.Email {
			return domain.ErrOperatorExists
		}
	}
	r.s.operators[operator.ID] = *operator
	return nil
}

func (r *MemoryOperatorRepository) GetByID(ctx context.Context, id string) (*domain.Operator, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.operators[id]
	if !ok {
		return nil, domain.ErrOperatorNotFound
	}
	return &o, nil
}

func (r *MemoryOperatorRepository) GetByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.operators {
		if o.Email == email {
			c := o
			return &c, nil
		}
	}
	return nil, domain.ErrOperatorNotFound
}

// MemoryLedgerRepository implements usecase.LedgerRepository.
type MemoryLedgerRepository struct{ s *MemoryStore }

func (r *MemoryLedgerRepository) CheckConsistency(ctx context.Context) ([]domain.ConsistencyIssue, error) {
	var issues []domain.ConsistencyIssue
	r.s.with(func(st *memoryState) {
		locked := make(map[domain.BalanceKey]decimal.Decimal)
		for _, l := range st.locks {
			if l.IsActive() {
				k := domain.BalanceKey{AccountID: l.AccountID, Asset: l.Asset}
				locked[k] = locked[k].Add(l.Amount)
			}
		}

		pending := make(map[domain.BalanceKey]decimal.Decimal)
		for _, e := range st.entries {
			if !e.IsPending() || e.IsAdjustment() {
				continue
			}
			if e.Destination.Type == domain.AccountTypeWallet || e.Destination.Type == domain.AccountTypeInvestor {
				continue
			}
			k := domain.BalanceKey{AccountID: e.Destination.ResolvedAccountID(), Asset: e.CanonicalCurrency}
			pending[k] = pending[k].Add(e.CanonicalAmount)
		}

		keys := make([]domain.BalanceKey, 0, len(st.balances))
		for k := range st.balances {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

		for _, k := range keys {
			b := st.balances[k]
			if !b.Locked.Equal(locked[k]) {
				issues = append(issues, domain.ConsistencyIssue{
					Kind: domain.IssueLockedMismatch, AccountID: k.AccountID, Asset: k.Asset,
					Expected: locked[k], Actual: b.Locked,
				})
			}
			if b.Locked.GreaterThan(b.Total) {
				issues = append(issues, domain.ConsistencyIssue{
					Kind: domain.IssueLockedExceedsTotal, AccountID: k.AccountID, Asset: k.Asset,
					Expected: b.Total, Actual: b.Locked,
				})
			}
			if !b.Pending.Equal(pending[k]) {
				issues = append(issues, domain.ConsistencyIssue{
					Kind: domain.IssuePendingMismatch, AccountID: k.AccountID, Asset: k.Asset,
					Expected: pending[k], Actual: b.Pending,
				})
			}
		}
	})
	return issues, nil
}

// SequentialIDs generates ids "<prefix>-1", "<prefix>-2", ...
type SequentialIDs struct {
	mu     sync.Mutex
	Prefix string
	n      int
}

func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	prefix := g.Prefix
	if prefix == "" {
		prefix = "id"
	}
	return fmt.Sprintf("%s-%06d", prefix, g.n)
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func copyAccount(a domain.Account) domain.Account {
	a.Coins = slices.Clone(a.Coins)
	if a.Fee != nil {
		f := *a.Fee
		a.Fee = &f
	}
	return a
}

func copyEntry(e domain.LedgerEntry) domain.LedgerEntry {
	if e.Origin != nil {
		o := *e.Origin
		e.Origin = &o
	}
	if e.ConfirmedAt != nil {
		t := *e.ConfirmedAt
		e.ConfirmedAt = &t
	}
	return e
}
