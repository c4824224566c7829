package usecase

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// FeeCalculator derives bank fees from the fee schedule of the bank on
// either side of a movement.
type FeeCalculator struct {
	converter *ConversionService
}

// NewFeeCalculator creates a FeeCalculator.
func NewFeeCalculator(converter *ConversionService) *FeeCalculator {
	return &FeeCalculator{converter: converter}
}

// FeeBasis is what a fee is computed from.
type FeeBasis struct {
	Origin          *domain.Account
	Destination     *domain.Account
	OriginAmount    decimal.Decimal
	CanonicalAmount decimal.Decimal
}

// Quote returns the fee of a movement, or nil when none applies. The
// sending bank is considered first.
func (c *FeeCalculator) Quote(basis FeeBasis, snapshot *domain.RateSnapshot) (*domain.FeeQuote, error) {
	if quote, err := c.quoteSide(basis.Origin, domain.FeeDirectionSending, basis.OriginAmount, snapshot); quote != nil || err != nil {
		return quote, err
	}
	return c.quoteSide(basis.Destination, domain.FeeDirectionReceiving, basis.CanonicalAmount, snapshot)
}

func (c *FeeCalculator) quoteSide(bank *domain.Account, direction domain.FeeDirection, base decimal.Decimal, snapshot *domain.RateSnapshot) (*domain.FeeQuote, error) {
	if bank == nil || bank.Type != domain.AccountTypeBankAccount || bank.Fee == nil {
		return nil, nil
	}

	cfg := bank.Fee
	value := cfg.Value(direction)
	if !value.IsPositive() {
		return nil, nil
	}

	feeCurrency := cfg.Currency
	if feeCurrency == "" {
		feeCurrency = bank.Currency
	}

	var amount decimal.Decimal
	switch cfg.Mode {
	case domain.FeeModeFixed:
		amount = value
	case domain.FeeModePercentage:
		inBank := base.Mul(value).Div(hundred)
		converted, err := c.converter.Convert(inBank, bank.Currency, feeCurrency, snapshot)
		if err != nil {
			return nil, err
		}
		amount = converted.Amount
	default:
		return nil, domain.ErrInvalidFeeConfig
	}

	amount = domain.RoundAmount(amount, feeCurrency)
	if !amount.IsPositive() {
		return nil, nil
	}

	return &domain.FeeQuote{
		BankAccountID: bank.ID,
		Direction:     direction,
		Mode:          cfg.Mode,
		Amount:        amount,
		Currency:      feeCurrency,
	}, nil
}

// BuildFeeAdjustment turns a confirmed quote into the ADJUSTMENT entry and
// audit record charging the bank. The charge is posted in the bank currency.
func (c *FeeCalculator) BuildFeeAdjustment(
	quote *domain.FeeQuote,
	bank *domain.Account,
	reference *domain.LedgerEntry,
	snapshot *domain.RateSnapshot,
	ids IDGenerator,
	operatorID string,
	now time.Time,
) (*domain.LedgerEntry, *domain.AdjustmentRecord, error) {
	charge, err := c.converter.Convert(quote.Amount, quote.Currency, bank.Currency, snapshot)
	if err != nil {
		return nil, nil, err
	}

	usd, err := c.converter.ToUSD(charge.Amount, bank.Currency, snapshot)
	if err != nil {
		return nil, nil, err
	}

	return newAdjustment(adjustmentSpec{
		ID:           ids.Generate(),
		RecordID:     ids.Generate(),
		Account:      bank,
		Asset:        bank.Currency,
		Currency:     bank.Currency,
		Delta:        charge.Amount.Neg(),
		USDDelta:     usd.Amount.Neg(),
		Reference:    reference.ID,
		ReasonCode:   domain.AdjustmentReasonFee,
		Reason:       string(quote.Direction) + " fee",
		AttestedBy:   operatorID,
		SnapshotAt:   snapshot.TakenAt,
		UsedFallback: charge.UsedFallback || usd.UsedFallback,
		Now:          now,
	})
}
