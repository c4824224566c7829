package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

const accountColumns = `
	a.id, a.name, a.type, a.partner_id, a.currency, a.restricted, a.state,
	a.mandatory_withdrawal, a.fee_mode, a.fee_on_receive, a.fee_on_send, a.fee_currency,
	a.version, a.created_at, a.updated_at,
	ARRAY(SELECT c.symbol FROM account_coins c WHERE c.account_id = a.id ORDER BY c.symbol) AS coins`

// AccountRepository implements usecase.AccountRepository.
type AccountRepository struct {
	db dbtx
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: pool}
}

// Create inserts the account and its coin list.
func (r *AccountRepository) Create(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	conn := txConn(tx)

	var feeMode *string
	feeOnReceive, feeOnSend, feeCurrency := decimal.Zero, decimal.Zero, ""
	if account.Fee != nil {
		mode := string(account.Fee.Mode)
		feeMode = &mode
		feeOnReceive = account.Fee.OnReceive
		feeOnSend = account.Fee.OnSend
		feeCurrency = account.Fee.Currency
	}

	_, err := conn.Exec(ctx, `
		INSERT INTO accounts (
			id, name, type, partner_id, currency, restricted, state, mandatory_withdrawal,
			fee_mode, fee_on_receive, fee_on_send, fee_currency, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		account.ID,
		account.Name,
		string(account.Type),
		account.PartnerID,
		account.Currency,
		account.Restricted,
		string(account.State),
		account.MandatoryWithdrawal,
		feeMode,
		feeOnReceive,
		feeOnSend,
		feeCurrency,
		account.Version,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "accounts_pkey") {
			return fmt.Errorf("%w: %s", domain.ErrAccountExists, account.ID)
		}
		return err
	}

	if len(account.Coins) > 0 {
		_, err = conn.Exec(ctx, `
			INSERT INTO account_coins (account_id, symbol)
			SELECT $1, unnest($2::text[])`,
			account.ID, account.Coins,
		)
	}

	return err
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	row := r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1`, id)
	return scanAccountRow(row)
}

// GetByIDForUpdate retrieves an account by ID with a row lock.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Account, error) {
	row := txConn(tx).QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts a WHERE a.id = $1 FOR UPDATE OF a`, id)
	return scanAccountRow(row)
}

// GetByIDsForUpdate locks the accounts in ascending id order. Unknown ids
// are skipped.
func (r *AccountRepository) GetByIDsForUpdate(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.Account, error) {
	rows, err := txConn(tx).Query(ctx,
		`SELECT `+accountColumns+` FROM accounts a WHERE a.id = ANY($1) ORDER BY a.id FOR UPDATE OF a`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

// UpdateState persists the reconciliation outcome of an account.
func (r *AccountRepository) UpdateState(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	tag, err := txConn(tx).Exec(ctx, `
		UPDATE accounts
		SET state = $2, mandatory_withdrawal = $3, version = version + 1, updated_at = $4
		WHERE id = $1`,
		account.ID,
		string(account.State),
		account.MandatoryWithdrawal,
		account.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAccountNotFound
	}

	account.Version++
	return nil
}

// List retrieves accounts with pagination, optionally of one type.
func (r *AccountRepository) List(ctx context.Context, accountType domain.AccountType, limit, offset int) ([]*domain.Account, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+accountColumns+`
		FROM accounts a
		WHERE ($1 = '' OR a.type = $1)
		ORDER BY a.id
		LIMIT $2 OFFSET $3`,
		string(accountType), limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAccounts(rows)
}

func collectAccounts(rows pgx.Rows) ([]*domain.Account, error) {
	accounts := make([]*domain.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}

func scanAccountRow(row pgx.Row) (*domain.Account, error) {
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}

	return account, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		a                       domain.Account
		accountType, state      string
		feeMode                 *string
		feeOnReceive, feeOnSend decimal.Decimal
		feeCurrency             string
		coins                   []string
	)

	err := row.Scan(
		&a.ID,
		&a.Name,
		&accountType,
		&a.PartnerID,
		&a.Currency,
		&a.Restricted,
		&state,
		&a.MandatoryWithdrawal,
		&feeMode,
		&feeOnReceive,
		&feeOnSend,
		&feeCurrency,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
		&coins,
	)
	if err != nil {
		return nil, err
	}

	a.Type = domain.AccountType(accountType)
	a.State = domain.AccountState(state)
	if len(coins) > 0 {
		a.Coins = coins
	}
	if feeMode != nil {
		a.Fee = &domain.FeeConfig{
			Mode:      domain.FeeMode(*feeMode),
			OnReceive: feeOnReceive,
			OnSend:    feeOnSend,
			Currency:  feeCurrency,
		}
	}

	return &a, nil
}
