package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

const adjustmentColumns = `
	id, entry_id, reference_entry_id, account_id, asset, delta,
	reason_code, reason, attested_by, created_at`

const feeAdjustmentIndex = "idx_adjustment_records_fee"

// AdjustmentRepository implements usecase.AdjustmentRepository.
type AdjustmentRepository struct {
	db dbtx
}

// NewAdjustmentRepository creates a new AdjustmentRepository.
func NewAdjustmentRepository(pool *pgxpool.Pool) *AdjustmentRepository {
	return &AdjustmentRepository{db: pool}
}

// Create inserts an adjustment record. A second FEE record for the same
// entry violates the partial unique index.
func (r *AdjustmentRepository) Create(ctx context.Context, tx usecase.Transaction, record *domain.AdjustmentRecord) error {
	_, err := txConn(tx).Exec(ctx, `
		INSERT INTO adjustment_records (`+adjustmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		record.ID,
		record.EntryID,
		record.ReferenceEntryID,
		record.AccountID,
		record.Asset,
		record.Delta,
		string(record.ReasonCode),
		record.Reason,
		record.AttestedBy,
		record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, feeAdjustmentIndex) {
			return fmt.Errorf("fee already posted for %s: %w", record.ReferenceEntryID, err)
		}
		return err
	}

	return nil
}

// FindByReference returns the first record of reason for the entry, or nil.
func (r *AdjustmentRepository) FindByReference(ctx context.Context, tx usecase.Transaction, referenceEntryID string, reason domain.AdjustmentReason) (*domain.AdjustmentRecord, error) {
	row := txConn(tx).QueryRow(ctx, `
		SELECT `+adjustmentColumns+`
		FROM adjustment_records
		WHERE reference_entry_id = $1 AND reason_code = $2
		ORDER BY created_at
		LIMIT 1`,
		referenceEntryID, string(reason),
	)

	record, err := scanAdjustment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}

	return record, err
}

// ListByReference returns the records posted against an entry.
func (r *AdjustmentRepository) ListByReference(ctx context.Context, referenceEntryID string) ([]*domain.AdjustmentRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+adjustmentColumns+`
		FROM adjustment_records
		WHERE reference_entry_id = $1
		ORDER BY created_at, id`,
		referenceEntryID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAdjustments(rows)
}

// ListByAccount returns the records of an account, newest first.
func (r *AdjustmentRepository) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*domain.AdjustmentRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+adjustmentColumns+`
		FROM adjustment_records
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		accountID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectAdjustments(rows)
}

func collectAdjustments(rows pgx.Rows) ([]*domain.AdjustmentRecord, error) {
	records := make([]*domain.AdjustmentRecord, 0)
	for rows.Next() {
		record, err := scanAdjustment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	return records, rows.Err()
}

func scanAdjustment(row pgx.Row) (*domain.AdjustmentRecord, error) {
	var (
		record     domain.AdjustmentRecord
		reasonCode string
	)

	err := row.Scan(
		&record.ID,
		&record.EntryID,
		&record.ReferenceEntryID,
		&record.AccountID,
		&record.Asset,
		&record.Delta,
		&reasonCode,
		&record.Reason,
		&record.AttestedBy,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.ReasonCode = domain.AdjustmentReason(reasonCode)
	return &record, nil
}
