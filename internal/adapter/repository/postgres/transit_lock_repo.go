package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

// TransitLockRepository implements usecase.TransitLockRepository.
type TransitLockRepository struct {
	db dbtx
}

// NewTransitLockRepository creates a new TransitLockRepository.
func NewTransitLockRepository(pool *pgxpool.Pool) *TransitLockRepository {
	return &TransitLockRepository{db: pool}
}

// Create inserts the lock; an existing lock for the entry wins.
func (r *TransitLockRepository) Create(ctx context.Context, tx usecase.Transaction, lock *domain.TransitLock) (bool, error) {
	tag, err := txConn(tx).Exec(ctx, `
		INSERT INTO transit_locks (id, entry_id, account_id, asset, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entry_id) DO NOTHING`,
		lock.ID,
		lock.EntryID,
		lock.AccountID,
		lock.Asset,
		lock.Amount,
		string(lock.Status),
		lock.CreatedAt,
	)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

// GetByEntryForUpdate locks and returns the lock of an entry, or nil.
func (r *TransitLockRepository) GetByEntryForUpdate(ctx context.Context, tx usecase.Transaction, entryID string) (*domain.TransitLock, error) {
	var (
		lock   domain.TransitLock
		status string
	)

	err := txConn(tx).QueryRow(ctx, `
		SELECT id, entry_id, account_id, asset, amount, status, created_at, released_at
		FROM transit_locks
		WHERE entry_id = $1
		FOR UPDATE`,
		entryID,
	).Scan(
		&lock.ID,
		&lock.EntryID,
		&lock.AccountID,
		&lock.Asset,
		&lock.Amount,
		&status,
		&lock.CreatedAt,
		&lock.ReleasedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	lock.Status = domain.TransitLockStatus(status)
	return &lock, nil
}

// MarkReleased flips an active lock to RELEASED.
func (r *TransitLockRepository) MarkReleased(ctx context.Context, tx usecase.Transaction, id string, releasedAt time.Time) error {
	tag, err := txConn(tx).Exec(ctx, `
		UPDATE transit_locks
		SET status = $2, released_at = $3
		WHERE id = $1`,
		id, string(domain.TransitLockReleased), releasedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLockNotFound
	}

	return nil
}
