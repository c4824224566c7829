package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/cashledger/internal/domain"
)

func TestTransitLockRepositoryCreateIsIdempotent(t *testing.T) {
	pool := newMockPool(t)
	repo := &TransitLockRepository{db: pool}
	tx := beginTx(t, pool)

	lock := &domain.TransitLock{
		ID:        "lock-1",
		EntryID:   "entry-1",
		AccountID: "wallet-1",
		Asset:     "BTC",
		Amount:    decimal.NewFromInt(150),
		Status:    domain.TransitLockActive,
		CreatedAt: time.Now().UTC(),
	}

	pool.ExpectExec("ON CONFLICT \\(entry_id\\) DO NOTHING").WithArgs(anyArgs(7)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	pool.ExpectExec("ON CONFLICT \\(entry_id\\) DO NOTHING").WithArgs(anyArgs(7)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	created, err := repo.Create(context.Background(), tx, lock)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = repo.Create(context.Background(), tx, lock)
	require.NoError(t, err)
	assert.False(t, created)
	assertExpectations(t, pool)
}

func TestTransitLockRepositoryGetByEntry(t *testing.T) {
	pool := newMockPool(t)
	repo := &TransitLockRepository{db: pool}
	tx := beginTx(t, pool)

	now := time.Now().UTC()
	pool.ExpectQuery("FROM transit_locks").WithArgs("entry-1").WillReturnRows(
		pgxmock.NewRows([]string{"id", "entry_id", "account_id", "asset", "amount", "status", "created_at", "released_at"}).
			AddRow("lock-1", "entry-1", "wallet-1", "BTC", decimal.NewFromInt(150), "ACTIVE", now, nil),
	)
	pool.ExpectQuery("FROM transit_locks").WithArgs("entry-2").WillReturnError(pgx.ErrNoRows)

	lock, err := repo.GetByEntryForUpdate(context.Background(), tx, "entry-1")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.True(t, lock.IsActive())
	assert.Nil(t, lock.ReleasedAt)

	lock, err = repo.GetByEntryForUpdate(context.Background(), tx, "entry-2")
	require.NoError(t, err)
	assert.Nil(t, lock)
	assertExpectations(t, pool)
}

func TestTransitLockRepositoryMarkReleasedMissing(t *testing.T) {
	pool := newMockPool(t)
	repo := &TransitLockRepository{db: pool}
	tx := beginTx(t, pool)

	pool.ExpectExec("UPDATE transit_locks").WithArgs("lock-x", "RELEASED", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.MarkReleased(context.Background(), tx, "lock-x", time.Now())
	assert.ErrorIs(t, err, domain.ErrLockNotFound)
}
