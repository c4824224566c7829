package postgres

import (
	"context"
	"errors"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

const balanceColumns = `account_id, asset, total, locked, pending, version, updated_at`

// BalanceRepository implements usecase.BalanceRepository.
type BalanceRepository struct {
	db dbtx
}

// NewBalanceRepository creates a new BalanceRepository.
func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{db: pool}
}

// GetByAccount returns every asset row of an account.
func (r *BalanceRepository) GetByAccount(ctx context.Context, accountID string) ([]*domain.Balance, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+balanceColumns+` FROM balances WHERE account_id = $1 ORDER BY asset`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make([]*domain.Balance, 0)
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		balances = append(balances, b)
	}

	return balances, rows.Err()
}

// GetForUpdate creates missing rows at zero, then locks every requested row
// in (account_id, asset) order.
func (r *BalanceRepository) GetForUpdate(ctx context.Context, tx usecase.Transaction, keys []domain.BalanceKey) (map[domain.BalanceKey]*domain.Balance, error) {
	conn := txConn(tx)

	sorted := make([]domain.BalanceKey, len(keys))
	copy(sorted, keys)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].AccountID != sorted[j].AccountID {
			return sorted[i].AccountID < sorted[j].AccountID
		}
		return sorted[i].Asset < sorted[j].Asset
	})

	accountIDs := make([]string, len(sorted))
	assets := make([]string, len(sorted))
	for i, k := range sorted {
		accountIDs[i] = k.AccountID
		assets[i] = k.Asset
	}

	_, err := conn.Exec(ctx, `
		INSERT INTO balances (account_id, asset)
		SELECT k.account_id, k.asset FROM unnest($1::text[], $2::text[]) AS k(account_id, asset)
		ORDER BY k.account_id, k.asset
		ON CONFLICT (account_id, asset) DO NOTHING`,
		accountIDs, assets,
	)
	if err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
		SELECT `+balanceColumns+`
		FROM balances
		WHERE (account_id, asset) IN (
			SELECT k.account_id, k.asset FROM unnest($1::text[], $2::text[]) AS k(account_id, asset)
		)
		ORDER BY account_id, asset
		FOR UPDATE`,
		accountIDs, assets,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[domain.BalanceKey]*domain.Balance, len(sorted))
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out[domain.BalanceKey{AccountID: b.AccountID, Asset: b.Asset}] = b
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, k := range sorted {
		if _, ok := out[k]; !ok {
			return nil, domain.ErrBalanceNotFound
		}
	}

	return out, nil
}

// Update writes the three balance components back.
func (r *BalanceRepository) Update(ctx context.Context, tx usecase.Transaction, balance *domain.Balance) error {
	row := txConn(tx).QueryRow(ctx, `
		UPDATE balances
		SET total = $3, locked = $4, pending = $5, version = version + 1, updated_at = NOW()
		WHERE account_id = $1 AND asset = $2
		RETURNING version, updated_at`,
		balance.AccountID,
		balance.Asset,
		balance.Total,
		balance.Locked,
		balance.Pending,
	)

	if err := row.Scan(&balance.Version, &balance.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrBalanceNotFound
		}
		return err
	}

	return nil
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var b domain.Balance
	err := row.Scan(
		&b.AccountID,
		&b.Asset,
		&b.Total,
		&b.Locked,
		&b.Pending,
		&b.Version,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
