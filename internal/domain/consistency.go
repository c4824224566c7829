package domain

import "github.com/shopspring/decimal"

// Consistency issue kinds
const (
	IssueLockedMismatch     = "LOCKED_MISMATCH"
	IssueLockedExceedsTotal = "LOCKED_EXCEEDS_TOTAL"
	IssuePendingMismatch    = "PENDING_MISMATCH"
)

// ConsistencyIssue is a balance row that disagrees with the entries and
// locks behind it.
type ConsistencyIssue struct {
	Kind      string
	AccountID string
	Asset     string
	Expected  decimal.Decimal
	Actual    decimal.Decimal
}
