package domain

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// CurrencyFamily tells fiat movements apart from crypto movements.
type CurrencyFamily string

const (
	CurrencyFamilyFiat   CurrencyFamily = "FIAT"
	CurrencyFamilyCrypto CurrencyFamily = "CRYPTO"
)

// IsValid reports whether f is a known family.
func (f CurrencyFamily) IsValid() bool {
	return f == CurrencyFamilyFiat || f == CurrencyFamilyCrypto
}

const (
	// USD is the reference currency of every entry and the valuation currency of wallets.
	USD = "USD"

	// CoinPrecision is the number of decimal places kept for coin-denominated values.
	CoinPrecision int32 = 8

	// RatePrecision is the number of decimal places kept for implied rates.
	RatePrecision int32 = 10
)

// NormalizeCode upper-cases and trims a currency code or coin symbol.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsFiatCurrency reports whether code is an ISO 4217 currency known to the registry.
func IsFiatCurrency(code string) bool {
	return money.GetCurrency(NormalizeCode(code)) != nil
}

// Precision returns the number of decimal places used when rounding amounts in code.
func Precision(code string) int32 {
	cur := money.GetCurrency(NormalizeCode(code))
	if cur == nil {
		return CoinPrecision
	}
	return int32(cur.Fraction)
}

// RoundAmount rounds amount to the precision of code.
func RoundAmount(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Round(Precision(code))
}
