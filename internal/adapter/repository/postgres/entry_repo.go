package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

const entryColumns = `
	id, kind, family, origin_currency, origin_amount, canonical_currency, canonical_amount,
	usd_reference_amount, rate_snapshot_at, implied_rate, used_fallback_rate,
	origin_type, origin_partner_id, origin_account_id,
	destination_type, destination_partner_id, destination_account_id,
	coin_symbol, coin_quantity, status, value_status, transit_status,
	reference_entry_id, idempotency_key, description, created_by,
	event_at, created_at, confirmed_at`

const idempotencyKeyIndex = "idx_ledger_entries_idempotency_key"

// EntryRepository implements usecase.EntryRepository.
type EntryRepository struct {
	db dbtx
}

// NewEntryRepository creates a new EntryRepository.
func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{db: pool}
}

// Create inserts a committed entry.
func (r *EntryRepository) Create(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	var originType, originPartner, originAccount string
	if entry.Origin != nil {
		originType = string(entry.Origin.Type)
		originPartner = entry.Origin.PartnerID
		originAccount = entry.Origin.ResolvedAccountID()
	}

	_, err := txConn(tx).Exec(ctx, `
		INSERT INTO ledger_entries (`+entryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
		entry.ID,
		string(entry.Kind),
		string(entry.Family),
		entry.OriginCurrency,
		entry.OriginAmount,
		entry.CanonicalCurrency,
		entry.CanonicalAmount,
		entry.USDReferenceAmount,
		entry.RateSnapshotAt,
		entry.ImpliedRate,
		entry.UsedFallbackRate,
		originType,
		originPartner,
		originAccount,
		string(entry.Destination.Type),
		entry.Destination.PartnerID,
		entry.Destination.ResolvedAccountID(),
		entry.CoinSymbol,
		entry.CoinQuantity,
		string(entry.Status),
		string(entry.ValueStatus),
		string(entry.TransitStatus),
		entry.ReferenceEntryID,
		nullString(entry.IdempotencyKey),
		entry.Description,
		entry.CreatedBy,
		entry.EventAt,
		entry.CreatedAt,
		entry.ConfirmedAt,
	)
	if err != nil {
		if isUniqueViolation(err, idempotencyKeyIndex) {
			return domain.ErrDuplicateIdempotencyKey
		}
		return err
	}

	return nil
}

// GetByID retrieves an entry by ID.
func (r *EntryRepository) GetByID(ctx context.Context, id string) (*domain.LedgerEntry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id)
	return scanEntryRow(row)
}

// GetByIDForUpdate retrieves an entry by ID with a row lock.
func (r *EntryRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.LedgerEntry, error) {
	row := txConn(tx).QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1 FOR UPDATE`, id)
	return scanEntryRow(row)
}

// GetByIdempotencyKey retrieves the entry committed under key.
func (r *EntryRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE idempotency_key = $1`, key)
	return scanEntryRow(row)
}

// UpdateStatus persists the mutable status fields of an entry.
func (r *EntryRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, entry *domain.LedgerEntry) error {
	tag, err := txConn(tx).Exec(ctx, `
		UPDATE ledger_entries
		SET status = $2, value_status = $3, transit_status = $4, confirmed_at = $5
		WHERE id = $1`,
		entry.ID,
		string(entry.Status),
		string(entry.ValueStatus),
		string(entry.TransitStatus),
		entry.ConfirmedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEntryNotFound
	}

	return nil
}

// List returns entries matching filter, newest first.
func (r *EntryRepository) List(ctx context.Context, filter domain.EntryFilter) ([]*domain.LedgerEntry, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.AccountID != "" {
		p := arg(filter.AccountID)
		conditions = append(conditions, "(destination_account_id = "+p+" OR origin_account_id = "+p+")")
	}
	if filter.ReferenceEntryID != "" {
		conditions = append(conditions, "reference_entry_id = "+arg(filter.ReferenceEntryID))
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = "+arg(string(filter.Kind)))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(string(filter.Status)))
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]*domain.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanEntryRow(row pgx.Row) (*domain.LedgerEntry, error) {
	e, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func scanEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var (
		e                                          domain.LedgerEntry
		kind, family, status, valueStatus, transit string
		originType, originPartner, originAccount   string
		destType                                   string
		idempotencyKey                             *string
	)

	err := row.Scan(
		&e.ID,
		&kind,
		&family,
		&e.OriginCurrency,
		&e.OriginAmount,
		&e.CanonicalCurrency,
		&e.CanonicalAmount,
		&e.USDReferenceAmount,
		&e.RateSnapshotAt,
		&e.ImpliedRate,
		&e.UsedFallbackRate,
		&originType,
		&originPartner,
		&originAccount,
		&destType,
		&e.Destination.PartnerID,
		&e.Destination.AccountID,
		&e.CoinSymbol,
		&e.CoinQuantity,
		&status,
		&valueStatus,
		&transit,
		&e.ReferenceEntryID,
		&idempotencyKey,
		&e.Description,
		&e.CreatedBy,
		&e.EventAt,
		&e.CreatedAt,
		&e.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}

	e.Kind = domain.EntryKind(kind)
	e.Family = domain.CurrencyFamily(family)
	e.Status = domain.EntryStatus(status)
	e.ValueStatus = domain.ValueStatus(valueStatus)
	e.TransitStatus = domain.TransitStatus(transit)
	e.Destination.Type = domain.AccountType(destType)
	e.IdempotencyKey = derefString(idempotencyKey)
	if originType != "" {
		e.Origin = &domain.Party{
			Type:      domain.AccountType(originType),
			PartnerID: originPartner,
			AccountID: originAccount,
		}
	}

	return &e, nil
}
