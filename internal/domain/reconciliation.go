package domain

import (
	"github.com/shopspring/decimal"
)

// Disposition decides what happens to an account after reconciliation.
type Disposition string

const (
	DispositionRelease               Disposition = "RELEASE"
	DispositionReleaseWithWithdrawal Disposition = "RELEASE_WITH_WITHDRAWAL"
	DispositionAdjustOnly            Disposition = "ADJUST_ONLY"
)

func (d Disposition) IsValid() bool {
	switch d {
	case DispositionRelease, DispositionReleaseWithWithdrawal, DispositionAdjustOnly:
		return true
	}
	return false
}

// Releases reports whether the disposition releases the account for reuse.
func (d Disposition) Releases() bool {
	return d == DispositionRelease || d == DispositionReleaseWithWithdrawal
}

// RequiresMandatoryWithdrawal applies the withdrawal rule: a restricted
// account left with a positive balance is always flagged, whatever the
// disposition.
func RequiresMandatoryWithdrawal(account *Account, remaining decimal.Decimal) bool {
	return account.Restricted && remaining.IsPositive()
}
