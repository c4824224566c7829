package domain

import (
	"fmt"
	"slices"
	"time"
)

// AccountType is the kind of ledger account.
type AccountType string

const (
	AccountTypeCashPool    AccountType = "CASH_POOL"
	AccountTypeBankAccount AccountType = "BANK_ACCOUNT"
	AccountTypeWallet      AccountType = "WALLET"
	AccountTypeBookmaker   AccountType = "BOOKMAKER"
	AccountTypeInvestor    AccountType = "INVESTOR"
)

var validAccountTypes = map[AccountType]bool{
	AccountTypeCashPool:    true,
	AccountTypeBankAccount: true,
	AccountTypeWallet:      true,
	AccountTypeBookmaker:   true,
	AccountTypeInvestor:    true,
}

func (t AccountType) IsValid() bool {
	return validAccountTypes[t]
}

// AccountState tracks whether an account is still being operated.
type AccountState string

const (
	AccountStateInUse    AccountState = "IN_USE"
	AccountStateReleased AccountState = "RELEASED"
)

// MaxWalletCoins bounds the set of coins a wallet may hold.
const MaxWalletCoins = 32

// Account represents a ledger account.
type Account struct {
	ID        string
	Name      string
	Type      AccountType
	PartnerID string
	// Currency is the operating currency of bank and bookmaker accounts.
	// Wallets always report USD. Pools and investors have none.
	Currency            string
	Coins               []string
	Restricted          bool
	State               AccountState
	MandatoryWithdrawal bool
	Fee                 *FeeConfig
	Version             int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// OperatingCurrency returns the currency balances of the account are kept in.
// ok is false for multi-currency (cash pool) and untracked (investor) accounts.
func (a *Account) OperatingCurrency() (string, bool) {
	switch a.Type {
	case AccountTypeBankAccount, AccountTypeBookmaker:
		return a.Currency, true
	case AccountTypeWallet:
		return USD, true
	default:
		return "", false
	}
}

// TracksBalance reports whether the ledger keeps balances for the account.
func (a *Account) TracksBalance() bool {
	return a.Type != AccountTypeInvestor
}

// SupportsCoin reports whether a wallet holds the coin.
func (a *Account) SupportsCoin(symbol string) bool {
	return a.Type == AccountTypeWallet && slices.Contains(a.Coins, NormalizeCode(symbol))
}

// IsReleased reports whether the account has been released for reuse.
func (a *Account) IsReleased() bool {
	return a.State == AccountStateReleased
}

// Validate checks the account shape for its type.
func (a *Account) Validate() error {
	if !a.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAccountType, a.Type)
	}
	if err := ValidateAccountName(a.Name); err != nil {
		return err
	}

	switch a.Type {
	case AccountTypeCashPool:
		if a.ID != CashPoolAccountID {
			return fmt.Errorf("%w: cash pool id must be %s", ErrInvalidAccountType, CashPoolAccountID)
		}
	case AccountTypeBankAccount, AccountTypeBookmaker:
		if err := ValidateCurrency(a.Currency); err != nil {
			return err
		}
	case AccountTypeWallet:
		if len(a.Coins) == 0 {
			return fmt.Errorf("%w: wallet requires at least one coin", ErrInvalidCoin)
		}
		if len(a.Coins) > MaxWalletCoins {
			return fmt.Errorf("%w: wallet supports at most %d coins", ErrInvalidCoin, MaxWalletCoins)
		}
		for _, c := range a.Coins {
			if err := ValidateCoinSymbol(c); err != nil {
				return err
			}
		}
	}

	if (a.Type == AccountTypeBankAccount || a.Type == AccountTypeWallet) && a.PartnerID == "" {
		return fmt.Errorf("%w: %s requires a partner", ErrInvalidAccountType, a.Type)
	}

	if a.Fee != nil {
		if a.Type != AccountTypeBankAccount {
			return fmt.Errorf("%w: only bank accounts carry fees", ErrInvalidFeeConfig)
		}
		if err := a.Fee.Validate(); err != nil {
			return err
		}
	}

	return nil
}
