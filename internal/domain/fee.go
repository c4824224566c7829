package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeMode selects how a bank fee value is interpreted.
type FeeMode string

const (
	FeeModePercentage FeeMode = "PERCENTAGE"
	FeeModeFixed      FeeMode = "FIXED"
)

// FeeDirection is the side of the movement the bank is on.
type FeeDirection string

const (
	FeeDirectionSending   FeeDirection = "SENDING"
	FeeDirectionReceiving FeeDirection = "RECEIVING"
)

// FeeConfig is the fee schedule of a bank account. Percentage values are
// expressed in percent (1.5 means 1.5%).
type FeeConfig struct {
	Mode      FeeMode
	OnReceive decimal.Decimal
	OnSend    decimal.Decimal
	// Currency defaults to the bank operating currency.
	Currency string
}

func (c *FeeConfig) Validate() error {
	if c.Mode != FeeModePercentage && c.Mode != FeeModeFixed {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidFeeConfig, c.Mode)
	}
	if c.OnReceive.IsNegative() || c.OnSend.IsNegative() {
		return fmt.Errorf("%w: fee values must not be negative", ErrInvalidFeeConfig)
	}
	if c.Mode == FeeModePercentage && (c.OnReceive.GreaterThan(decimal.NewFromInt(100)) || c.OnSend.GreaterThan(decimal.NewFromInt(100))) {
		return fmt.Errorf("%w: percentage above 100", ErrInvalidFeeConfig)
	}
	if c.Currency != "" {
		if err := ValidateCurrency(c.Currency); err != nil {
			return err
		}
	}
	return nil
}

// Value returns the configured value for direction.
func (c *FeeConfig) Value(direction FeeDirection) decimal.Decimal {
	if direction == FeeDirectionSending {
		return c.OnSend
	}
	return c.OnReceive
}

// FeeQuote is a fee the operator still has to confirm or decline.
type FeeQuote struct {
	BankAccountID string
	Direction     FeeDirection
	Mode          FeeMode
	Amount        decimal.Decimal
	Currency      string
}
