package domain

import "fmt"

// CashPoolAccountID is the id of the single cash pool account.
const CashPoolAccountID = "cash-pool"

// Party identifies one side of a movement. Type selects which of the
// remaining fields are meaningful:
//
//	CASH_POOL     no fields (AccountID is always CashPoolAccountID)
//	BANK_ACCOUNT  PartnerID, AccountID (the bank account)
//	WALLET        PartnerID, AccountID (the wallet)
//	BOOKMAKER     AccountID (the bookmaker account)
//	INVESTOR      AccountID (the investor)
type Party struct {
	Type      AccountType `json:"type"`
	PartnerID string      `json:"partner_id,omitempty"`
	AccountID string      `json:"account_id"`
}

func CashPoolParty() Party {
	return Party{Type: AccountTypeCashPool, AccountID: CashPoolAccountID}
}

func BankAccountParty(partnerID, bankAccountID string) Party {
	return Party{Type: AccountTypeBankAccount, PartnerID: partnerID, AccountID: bankAccountID}
}

func WalletParty(partnerID, walletID string) Party {
	return Party{Type: AccountTypeWallet, PartnerID: partnerID, AccountID: walletID}
}

func BookmakerParty(bookmakerAccountID string) Party {
	return Party{Type: AccountTypeBookmaker, AccountID: bookmakerAccountID}
}

func InvestorParty(investorID string) Party {
	return Party{Type: AccountTypeInvestor, AccountID: investorID}
}

// PartyFor builds the party that refers to account.
func PartyFor(account *Account) Party {
	return Party{Type: account.Type, PartnerID: account.PartnerID, AccountID: account.ID}
}

// Validate checks that the fields required by the party type are present.
func (p Party) Validate() error {
	switch p.Type {
	case AccountTypeCashPool:
		if p.AccountID != "" && p.AccountID != CashPoolAccountID {
			return fmt.Errorf("%w: cash pool party must reference %s", ErrInvalidParty, CashPoolAccountID)
		}
		return nil
	case AccountTypeBankAccount, AccountTypeWallet:
		if p.PartnerID == "" {
			return fmt.Errorf("%w: %s party requires a partner", ErrInvalidParty, p.Type)
		}
		if p.AccountID == "" {
			return fmt.Errorf("%w: %s party requires an account", ErrInvalidParty, p.Type)
		}
		return nil
	case AccountTypeBookmaker, AccountTypeInvestor:
		if p.AccountID == "" {
			return fmt.Errorf("%w: %s party requires an account", ErrInvalidParty, p.Type)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown party type %q", ErrInvalidParty, p.Type)
	}
}

// ResolvedAccountID returns the ledger account the party refers to.
func (p Party) ResolvedAccountID() string {
	if p.Type == AccountTypeCashPool {
		return CashPoolAccountID
	}
	return p.AccountID
}

func (p Party) IsWallet() bool {
	return p.Type == AccountTypeWallet
}

func (p Party) IsBank() bool {
	return p.Type == AccountTypeBankAccount
}

func (p Party) String() string {
	if p.PartnerID != "" {
		return fmt.Sprintf("%s(%s/%s)", p.Type, p.PartnerID, p.AccountID)
	}
	return fmt.Sprintf("%s(%s)", p.Type, p.ResolvedAccountID())
}
