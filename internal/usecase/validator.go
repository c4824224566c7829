package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
)

// LedgerEntryValidator checks movement drafts. ValidateDraft needs no I/O;
// Resolve and CheckSufficiency run inside the write transaction on locked rows.
type LedgerEntryValidator struct{}

// NewLedgerEntryValidator creates a LedgerEntryValidator.
func NewLedgerEntryValidator() *LedgerEntryValidator {
	return &LedgerEntryValidator{}
}

// Normalize upper-cases codes and derives the currency family.
func (v *LedgerEntryValidator) Normalize(d domain.MovementDraft) domain.MovementDraft {
	d.OriginCurrency = domain.NormalizeCode(d.OriginCurrency)
	d.DestinationCurrency = domain.NormalizeCode(d.DestinationCurrency)
	d.CoinSymbol = domain.NormalizeCode(d.CoinSymbol)
	if d.Origin.Type == domain.AccountTypeCashPool {
		d.Origin.AccountID = domain.CashPoolAccountID
	}
	if d.Destination.Type == domain.AccountTypeCashPool {
		d.Destination.AccountID = domain.CashPoolAccountID
	}
	if d.Family == "" {
		d.Family = domain.CurrencyFamilyFiat
		if d.InvolvesWallet() {
			d.Family = domain.CurrencyFamilyCrypto
		}
	}
	return d
}

// ValidateDraft performs the structural checks of a draft.
func (v *LedgerEntryValidator) ValidateDraft(d domain.MovementDraft) error {
	verr := &domain.ValidationError{}

	if !d.Kind.IsValid() {
		verr.Add("kind", "unknown kind %q", d.Kind)
	} else if !domain.IsSubmittable(d.Kind) {
		verr.Add("kind", "%s cannot be submitted as a movement", d.Kind)
	}

	originOK := true
	if err := d.Origin.Validate(); err != nil {
		verr.Add("origin", "%s", err.Error())
		originOK = false
	}
	destOK := true
	if err := d.Destination.Validate(); err != nil {
		verr.Add("destination", "%s", err.Error())
		destOK = false
	}

	if originOK && destOK && domain.IsSubmittable(d.Kind) &&
		!domain.IsPairingAllowed(d.Kind, d.Origin.Type, d.Destination.Type) {
		verr.Add("destination", "%s cannot move funds from %s to %s", d.Kind, d.Origin.Type, d.Destination.Type)
	}

	if originOK && destOK && d.Origin.ResolvedAccountID() == d.Destination.ResolvedAccountID() {
		verr.Add("destination", "%s", domain.ErrSameAccount.Error())
	}

	if err := domain.ValidateAmount(d.OriginAmount); err != nil {
		verr.Add("originAmount", "%s", err.Error())
	}

	if !d.Family.IsValid() {
		verr.Add("currencyFamily", "unknown family %q", d.Family)
	} else if d.InvolvesWallet() != (d.Family == domain.CurrencyFamilyCrypto) {
		verr.Add("currencyFamily", "CRYPTO is required exactly when a wallet is involved")
	}

	if d.Family == domain.CurrencyFamilyCrypto {
		if err := domain.ValidateCoinSymbol(d.CoinSymbol); err != nil {
			verr.Add("coinSymbol", "%s", err.Error())
		}
		if d.Kind != domain.EntryKindWithdrawal && !d.CoinQuantity.IsPositive() {
			verr.Add("coinQuantity", "must be positive for crypto movements")
		}
	}

	if d.OriginCurrency != "" {
		if err := domain.ValidateCurrency(d.OriginCurrency); err != nil {
			verr.Add("originCurrency", "%s", err.Error())
		}
	}
	if d.DestinationCurrency != "" {
		if err := domain.ValidateCurrency(d.DestinationCurrency); err != nil {
			verr.Add("destinationCurrency", "%s", err.Error())
		}
	}

	if (d.Origin.Type == domain.AccountTypeCashPool || d.Origin.Type == domain.AccountTypeInvestor) && d.OriginCurrency == "" {
		verr.Add("originCurrency", "required when the origin is %s", d.Origin.Type)
	}

	if err := domain.ValidateDescription(d.Description); err != nil {
		verr.Add("description", "%s", err.Error())
	}

	return verr.Err()
}

// Resolve checks the draft against the referenced accounts and fixes the
// currencies and balance assets of both sides.
func (v *LedgerEntryValidator) Resolve(d domain.MovementDraft, accounts map[string]*domain.Account) (*domain.ValidatedMovement, error) {
	verr := &domain.ValidationError{}

	origin := v.resolveParty("origin", d.Origin, accounts, d, verr)
	destination := v.resolveParty("destination", d.Destination, accounts, d, verr)
	if origin == nil || destination == nil {
		return nil, verr
	}

	// A released account flagged for withdrawal only pays out its leftover.
	if destination.IsReleased() && destination.MandatoryWithdrawal {
		return nil, fmt.Errorf("%w: %s is awaiting a mandatory withdrawal", domain.ErrAccountReleased, destination.ID)
	}
	if origin.IsReleased() && origin.MandatoryWithdrawal && d.Kind != domain.EntryKindWithdrawal {
		return nil, fmt.Errorf("%w: %s only accepts a withdrawal", domain.ErrAccountReleased, origin.ID)
	}

	originCurrency := d.OriginCurrency
	if cur, ok := origin.OperatingCurrency(); ok {
		if originCurrency != "" && originCurrency != cur {
			verr.Add("originCurrency", "must be the origin operating currency %s", cur)
		}
		originCurrency = cur
	}
	if originCurrency != "" {
		if err := domain.ValidatePrecision(d.OriginAmount, originCurrency); err != nil {
			verr.Add("originAmount", "%s", err.Error())
		}
	}

	canonicalCurrency, ok := destination.OperatingCurrency()
	if ok {
		if d.DestinationCurrency != "" && d.DestinationCurrency != canonicalCurrency {
			verr.Add("destinationCurrency", "must be the destination operating currency %s", canonicalCurrency)
		}
	} else {
		canonicalCurrency = d.DestinationCurrency
		if canonicalCurrency == "" {
			canonicalCurrency = originCurrency
		}
	}

	if verr.HasErrors() {
		return nil, verr
	}

	return &domain.ValidatedMovement{
		Draft:              d,
		Family:             d.Family,
		OriginAccount:      origin,
		DestinationAccount: destination,
		OriginCurrency:     originCurrency,
		CanonicalCurrency:  canonicalCurrency,
		OriginAsset:        balanceAsset(origin, originCurrency, d.CoinSymbol),
		DestinationAsset:   balanceAsset(destination, canonicalCurrency, d.CoinSymbol),
		CoinSymbol:         d.CoinSymbol,
	}, nil
}

func (v *LedgerEntryValidator) resolveParty(
	field string,
	party domain.Party,
	accounts map[string]*domain.Account,
	d domain.MovementDraft,
	verr *domain.ValidationError,
) *domain.Account {
	account := accounts[party.ResolvedAccountID()]
	if account == nil {
		verr.Add(field, "%s: %s", domain.ErrAccountNotFound.Error(), party.ResolvedAccountID())
		return nil
	}

	if account.Type != party.Type {
		verr.Add(field, "account %s is a %s, not a %s", account.ID, account.Type, party.Type)
		return nil
	}

	if party.PartnerID != "" && account.PartnerID != party.PartnerID {
		verr.Add(field, "account %s does not belong to partner %s", account.ID, party.PartnerID)
		return nil
	}

	if account.Type == domain.AccountTypeWallet && d.CoinSymbol != "" && !account.SupportsCoin(d.CoinSymbol) {
		verr.Add(field, "wallet %s does not support %s", account.ID, d.CoinSymbol)
		return nil
	}

	return account
}

// CheckSufficiency compares amount against the available part of the
// debited balance. The amount and the balance are both in the origin
// account's own asset.
func (v *LedgerEntryValidator) CheckSufficiency(vm *domain.ValidatedMovement, balance *domain.Balance, amount decimal.Decimal) error {
	if !vm.OriginAccount.TracksBalance() {
		return nil
	}
	return balance.ValidateDebit(amount)
}

// balanceAsset returns the balance key asset an account uses for a movement.
func balanceAsset(account *domain.Account, currency, coin string) string {
	switch account.Type {
	case domain.AccountTypeInvestor:
		return ""
	case domain.AccountTypeWallet:
		return coin
	default:
		return currency
	}
}
