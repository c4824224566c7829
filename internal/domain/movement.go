package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type pairing struct {
	origin      AccountType
	destination AccountType
}

// allowedPairings is the fixed table of party types per submittable kind.
// ADJUSTMENT has no entry: adjustments are never submitted as movements.
var allowedPairings = map[EntryKind][]pairing{
	EntryKindDeposit: {
		{AccountTypeBankAccount, AccountTypeBookmaker},
		{AccountTypeWallet, AccountTypeBookmaker},
	},
	EntryKindWithdrawal: {
		{AccountTypeBookmaker, AccountTypeBankAccount},
		{AccountTypeBookmaker, AccountTypeWallet},
	},
	EntryKindTransfer: {
		{AccountTypeCashPool, AccountTypeBankAccount},
		{AccountTypeCashPool, AccountTypeWallet},
		{AccountTypeBankAccount, AccountTypeCashPool},
		{AccountTypeWallet, AccountTypeCashPool},
		{AccountTypeBankAccount, AccountTypeBankAccount},
		{AccountTypeBankAccount, AccountTypeWallet},
		{AccountTypeWallet, AccountTypeBankAccount},
		{AccountTypeWallet, AccountTypeWallet},
	},
	EntryKindCapitalContribution: {
		{AccountTypeInvestor, AccountTypeCashPool},
	},
	EntryKindCapitalSettlement: {
		{AccountTypeCashPool, AccountTypeInvestor},
	},
}

// IsPairingAllowed reports whether kind may move funds from origin to destination.
func IsPairingAllowed(kind EntryKind, origin, destination AccountType) bool {
	for _, p := range allowedPairings[kind] {
		if p.origin == origin && p.destination == destination {
			return true
		}
	}
	return false
}

// IsSubmittable reports whether kind can be submitted as a movement.
func IsSubmittable(kind EntryKind) bool {
	_, ok := allowedPairings[kind]
	return ok
}

// MovementDraft is an operator request to move money, before validation.
type MovementDraft struct {
	Kind        EntryKind
	Family      CurrencyFamily
	Origin      Party
	Destination Party
	// OriginCurrency defaults to the origin account operating currency.
	OriginCurrency string
	OriginAmount   decimal.Decimal
	// DestinationCurrency selects the cash pool or investor currency;
	// other destinations always use their operating currency.
	DestinationCurrency string
	CoinSymbol          string
	CoinQuantity        decimal.Decimal
	FeeConfirmed        bool
	IdempotencyKey      string
	Description         string
	EventAt             *time.Time
	CreatedBy           string
}

// InvolvesWallet reports whether either side is a wallet.
func (d *MovementDraft) InvolvesWallet() bool {
	return d.Origin.IsWallet() || d.Destination.IsWallet()
}

// ValidatedMovement is a draft that passed validation, with its accounts
// and currencies resolved.
type ValidatedMovement struct {
	Draft              MovementDraft
	Family             CurrencyFamily
	OriginAccount      *Account
	DestinationAccount *Account
	OriginCurrency     string
	CanonicalCurrency  string
	// OriginAsset and DestinationAsset are the balance keys touched on each
	// side; empty when the side keeps no balance.
	OriginAsset      string
	DestinationAsset string
	CoinSymbol       string
}
