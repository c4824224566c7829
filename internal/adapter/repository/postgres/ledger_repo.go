package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashledger/internal/domain"
)

const lockedMismatchQuery = `
	SELECT b.account_id, b.asset, COALESCE(l.locked, 0), b.locked
	FROM balances b
	LEFT JOIN (
		SELECT account_id, asset, SUM(amount) AS locked
		FROM transit_locks
		WHERE status = 'ACTIVE'
		GROUP BY account_id, asset
	) l ON l.account_id = b.account_id AND l.asset = b.asset
	WHERE b.locked <> COALESCE(l.locked, 0)
	ORDER BY b.account_id, b.asset`

const lockedExceedsTotalQuery = `
	SELECT account_id, asset, total, locked
	FROM balances
	WHERE locked > total
	ORDER BY account_id, asset`

const pendingMismatchQuery = `
	SELECT b.account_id, b.asset, COALESCE(p.pending, 0), b.pending
	FROM balances b
	LEFT JOIN (
		SELECT destination_account_id AS account_id, canonical_currency AS asset, SUM(canonical_amount) AS pending
		FROM ledger_entries
		WHERE status = 'PENDING'
		  AND kind <> 'ADJUSTMENT'
		  AND destination_type NOT IN ('WALLET', 'INVESTOR')
		GROUP BY destination_account_id, canonical_currency
	) p ON p.account_id = b.account_id AND p.asset = b.asset
	WHERE b.pending <> COALESCE(p.pending, 0)
	ORDER BY b.account_id, b.asset`

// LedgerRepository implements usecase.LedgerRepository.
type LedgerRepository struct {
	db dbtx
}

// NewLedgerRepository creates a new LedgerRepository.
func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: pool}
}

// CheckConsistency compares balance rows with the locks and pending
// entries behind them.
func (r *LedgerRepository) CheckConsistency(ctx context.Context) ([]domain.ConsistencyIssue, error) {
	checks := []struct {
		kind  string
		query string
	}{
		{domain.IssueLockedMismatch, lockedMismatchQuery},
		{domain.IssueLockedExceedsTotal, lockedExceedsTotalQuery},
		{domain.IssuePendingMismatch, pendingMismatchQuery},
	}

	issues := make([]domain.ConsistencyIssue, 0)
	for _, c := range checks {
		found, err := r.collectIssues(ctx, c.kind, c.query)
		if err != nil {
			return nil, err
		}
		issues = append(issues, found...)
	}

	return issues, nil
}

func (r *LedgerRepository) collectIssues(ctx context.Context, kind, query string) ([]domain.ConsistencyIssue, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var issues []domain.ConsistencyIssue
	for rows.Next() {
		issue := domain.ConsistencyIssue{Kind: kind}
		if err := rows.Scan(&issue.AccountID, &issue.Asset, &issue.Expected, &issue.Actual); err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}

	return issues, rows.Err()
}
