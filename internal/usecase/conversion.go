package usecase

import (
	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
)

// divisionPrecision is the scale used for intermediate rate divisions.
const divisionPrecision int32 = 18

// ConversionService converts amounts between currencies and coins using a
// rate snapshot. It performs no I/O.
type ConversionService struct {
	pivot string
	// pegs maps a pegged coin to the currency it is valued 1:1 against.
	pegs map[string]string
}

// NewConversionService creates a ConversionService. An empty pivot selects
// domain.DefaultPivotCurrency.
func NewConversionService(pivot string, pegs []domain.StablePeg) *ConversionService {
	if pivot == "" {
		pivot = domain.DefaultPivotCurrency
	}

	pegMap := make(map[string]string, len(pegs))
	for _, p := range pegs {
		pegMap[domain.NormalizeCode(p.Coin)] = domain.NormalizeCode(p.Currency)
	}

	return &ConversionService{
		pivot: domain.NormalizeCode(pivot),
		pegs:  pegMap,
	}
}

// Pivot returns the pivot currency.
func (s *ConversionService) Pivot() string {
	return s.pivot
}

// IsPegged reports whether a and b form a configured 1:1 pair.
func (s *ConversionService) IsPegged(a, b string) bool {
	a, b = domain.NormalizeCode(a), domain.NormalizeCode(b)
	return s.pegs[a] == b || s.pegs[b] == a
}

// Convert converts amount from one currency or coin into another.
func (s *ConversionService) Convert(amount decimal.Decimal, from, to string, snapshot *domain.RateSnapshot) (domain.ConversionResult, error) {
	from, to = domain.NormalizeCode(from), domain.NormalizeCode(to)

	if from == to {
		return domain.ConversionResult{
			Amount:      amount,
			Currency:    to,
			ImpliedRate: decimal.NewFromInt(1),
		}, nil
	}

	if s.IsPegged(from, to) {
		return domain.ConversionResult{
			Amount:      domain.RoundAmount(amount, to),
			Currency:    to,
			ImpliedRate: decimal.NewFromInt(1),
			UsedPeg:     true,
		}, nil
	}

	fromRate, err := s.pivotRate(from, snapshot)
	if err != nil {
		return domain.ConversionResult{}, err
	}

	toRate, err := s.pivotRate(to, snapshot)
	if err != nil {
		return domain.ConversionResult{}, err
	}

	implied := fromRate.value.DivRound(toRate.value, divisionPrecision)
	converted := amount.Mul(fromRate.value).DivRound(toRate.value, divisionPrecision)

	return domain.ConversionResult{
		Amount:       domain.RoundAmount(converted, to),
		Currency:     to,
		ImpliedRate:  implied.Round(domain.RatePrecision),
		UsedFallback: fromRate.fallback || toRate.fallback,
		UsedPeg:      fromRate.peg || toRate.peg,
	}, nil
}

// ToUSD converts amount into the USD reference layer.
func (s *ConversionService) ToUSD(amount decimal.Decimal, from string, snapshot *domain.RateSnapshot) (domain.ConversionResult, error) {
	return s.Convert(amount, from, domain.USD, snapshot)
}

// CoinPriceUSD returns the USD price of a coin, valuing pegged coins
// without a quote at exactly one unit of their peg.
func (s *ConversionService) CoinPriceUSD(symbol string, snapshot *domain.RateSnapshot) (price decimal.Decimal, usedPeg bool, err error) {
	symbol = domain.NormalizeCode(symbol)

	if p, ok := snapshot.Coins[symbol]; ok && p.PriceUSD.IsPositive() {
		return p.PriceUSD, false, nil
	}

	if peg, ok := s.pegs[symbol]; ok && peg == domain.USD {
		return decimal.NewFromInt(1), true, nil
	}

	return decimal.Zero, false, &domain.RateUnavailableError{Currency: symbol}
}

type pivotQuote struct {
	value    decimal.Decimal
	fallback bool
	peg      bool
}

// pivotRate returns how many units of the pivot one unit of code is worth.
func (s *ConversionService) pivotRate(code string, snapshot *domain.RateSnapshot) (pivotQuote, error) {
	if code == s.pivot {
		return pivotQuote{value: decimal.NewFromInt(1)}, nil
	}

	if snapshot == nil {
		return pivotQuote{}, &domain.RateUnavailableError{Currency: code}
	}

	if r, ok := snapshot.Rates[code]; ok && r.RateToPivot.IsPositive() {
		return pivotQuote{value: r.RateToPivot, fallback: r.IsFallback}, nil
	}

	if p, ok := snapshot.Coins[code]; ok && p.PriceUSD.IsPositive() {
		usd, err := s.pivotRate(domain.USD, snapshot)
		if err != nil {
			return pivotQuote{}, err
		}
		return pivotQuote{value: p.PriceUSD.Mul(usd.value), fallback: p.IsFallback || usd.fallback, peg: usd.peg}, nil
	}

	if peg, ok := s.pegs[code]; ok {
		if peg == s.pivot {
			return pivotQuote{value: decimal.NewFromInt(1), peg: true}, nil
		}
		if r, ok := snapshot.Rates[peg]; ok && r.RateToPivot.IsPositive() {
			return pivotQuote{value: r.RateToPivot, fallback: r.IsFallback, peg: true}, nil
		}
	}

	return pivotQuote{}, &domain.RateUnavailableError{Currency: code}
}
