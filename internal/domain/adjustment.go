package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdjustmentReason explains why an adjustment entry exists.
type AdjustmentReason string

const (
	AdjustmentReasonReconciliation       AdjustmentReason = "RECONCILIATION"
	AdjustmentReasonFee                  AdjustmentReason = "FEE"
	AdjustmentReasonConfirmationVariance AdjustmentReason = "CONFIRMATION_VARIANCE"
)

// AdjustmentRecord is the audit row written next to every ADJUSTMENT entry.
type AdjustmentRecord struct {
	ID               string
	EntryID          string
	ReferenceEntryID string
	AccountID        string
	Asset            string
	Delta            decimal.Decimal
	ReasonCode       AdjustmentReason
	Reason           string
	AttestedBy       string
	CreatedAt        time.Time
}
