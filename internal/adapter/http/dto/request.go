package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

// parseAmount parses a decimal string field. Empty strings are reported
// only when required is set.
func parseAmount(verr *domain.ValidationError, field, value string, required bool) decimal.Decimal {
	if value == "" {
		if required {
			verr.Add(field, "is required")
		}
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		verr.Add(field, "invalid decimal %q", value)
		return decimal.Zero
	}
	return d
}

// FeeConfigRequest configures the fee of a bank account.
type FeeConfigRequest struct {
	Mode      string `json:"mode"`
	OnReceive string `json:"on_receive"`
	OnSend    string `json:"on_send"`
	Currency  string `json:"currency,omitempty"`
}

// CreateAccountRequest represents a request to create an account.
type CreateAccountRequest struct {
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	PartnerID  string            `json:"partner_id,omitempty"`
	Currency   string            `json:"currency,omitempty"`
	Coins      []string          `json:"coins,omitempty"`
	Restricted bool              `json:"restricted"`
	Fee        *FeeConfigRequest `json:"fee,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateAccountRequest) ToUseCaseInput() (usecase.CreateAccountInput, error) {
	verr := &domain.ValidationError{}

	input := usecase.CreateAccountInput{
		ID:         r.ID,
		Name:       r.Name,
		Type:       domain.AccountType(r.Type),
		PartnerID:  r.PartnerID,
		Currency:   r.Currency,
		Coins:      r.Coins,
		Restricted: r.Restricted,
	}

	if r.Fee != nil {
		input.Fee = &domain.FeeConfig{
			Mode:      domain.FeeMode(r.Fee.Mode),
			OnReceive: parseAmount(verr, "fee.on_receive", r.Fee.OnReceive, false),
			OnSend:    parseAmount(verr, "fee.on_send", r.Fee.OnSend, false),
			Currency:  r.Fee.Currency,
		}
	}

	return input, verr.Err()
}

// PartyRequest identifies one side of a movement.
type PartyRequest struct {
	Type      string `json:"type"`
	PartnerID string `json:"partner_id,omitempty"`
	AccountID string `json:"account_id,omitempty"`
}

func (p PartyRequest) toDomain() domain.Party {
	return domain.Party{
		Type:      domain.AccountType(p.Type),
		PartnerID: p.PartnerID,
		AccountID: p.AccountID,
	}
}

// SubmitMovementRequest represents a movement submitted by an operator.
type SubmitMovementRequest struct {
	Kind                string       `json:"kind"`
	Family              string       `json:"family,omitempty"`
	Origin              PartyRequest `json:"origin"`
	Destination         PartyRequest `json:"destination"`
	OriginCurrency      string       `json:"origin_currency,omitempty"`
	OriginAmount        string       `json:"origin_amount"`
	DestinationCurrency string       `json:"destination_currency,omitempty"`
	CoinSymbol          string       `json:"coin_symbol,omitempty"`
	CoinQuantity        string       `json:"coin_quantity,omitempty"`
	FeeConfirmed        bool         `json:"fee_confirmed"`
	Description         string       `json:"description,omitempty"`
	EventAt             *time.Time   `json:"event_at,omitempty"`
}

// ToDraft converts to a movement draft. The idempotency key and operator
// come from the request headers and token.
func (r *SubmitMovementRequest) ToDraft(idempotencyKey, createdBy string) (domain.MovementDraft, error) {
	verr := &domain.ValidationError{}

	draft := domain.MovementDraft{
		Kind:                domain.EntryKind(r.Kind),
		Family:              domain.CurrencyFamily(r.Family),
		Origin:              r.Origin.toDomain(),
		Destination:         r.Destination.toDomain(),
		OriginCurrency:      r.OriginCurrency,
		OriginAmount:        parseAmount(verr, "origin_amount", r.OriginAmount, true),
		DestinationCurrency: r.DestinationCurrency,
		CoinSymbol:          r.CoinSymbol,
		CoinQuantity:        parseAmount(verr, "coin_quantity", r.CoinQuantity, false),
		FeeConfirmed:        r.FeeConfirmed,
		IdempotencyKey:      idempotencyKey,
		Description:         r.Description,
		EventAt:             r.EventAt,
		CreatedBy:           createdBy,
	}

	return draft, verr.Err()
}

// ConfirmEntryRequest confirms a pending entry.
type ConfirmEntryRequest struct {
	ReceivedAmount string `json:"received_amount,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *ConfirmEntryRequest) ToUseCaseInput(entryID string) (usecase.ConfirmEntryInput, error) {
	input := usecase.ConfirmEntryInput{EntryID: entryID, Reason: r.Reason}

	if r.ReceivedAmount != "" {
		verr := &domain.ValidationError{}
		amount := parseAmount(verr, "received_amount", r.ReceivedAmount, true)
		if err := verr.Err(); err != nil {
			return input, err
		}
		input.ReceivedAmount = &amount
	}

	return input, nil
}

// ConfirmFeeRequest accepts or declines the fee of an entry.
type ConfirmFeeRequest struct {
	Accept bool `json:"accept"`
}

// ReconcileRequest attests the real balance of an account asset.
type ReconcileRequest struct {
	Asset       string `json:"asset,omitempty"`
	RealBalance string `json:"real_balance"`
	Reason      string `json:"reason,omitempty"`
	Disposition string `json:"disposition"`
}

// ToUseCaseInput converts to use case input.
func (r *ReconcileRequest) ToUseCaseInput(accountID, attestedBy string) (usecase.ReconcileInput, error) {
	verr := &domain.ValidationError{}

	input := usecase.ReconcileInput{
		AccountID:   accountID,
		Asset:       r.Asset,
		RealBalance: parseAmount(verr, "real_balance", r.RealBalance, true),
		Reason:      r.Reason,
		Disposition: domain.Disposition(r.Disposition),
		AttestedBy:  attestedBy,
	}

	return input, verr.Err()
}

// PutRateRequest stores a rate against the pivot currency.
type PutRateRequest struct {
	RateToPivot string `json:"rate_to_pivot"`
	IsOfficial  bool   `json:"is_official"`
	Source      string `json:"source,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *PutRateRequest) ToUseCaseInput(currency string) (usecase.PutRateInput, error) {
	verr := &domain.ValidationError{}

	input := usecase.PutRateInput{
		Currency:    currency,
		RateToPivot: parseAmount(verr, "rate_to_pivot", r.RateToPivot, true),
		IsOfficial:  r.IsOfficial,
		Source:      r.Source,
	}

	return input, verr.Err()
}

// PutCoinPriceRequest stores the USD price of a coin.
type PutCoinPriceRequest struct {
	PriceUSD string `json:"price_usd"`
	Source   string `json:"source,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *PutCoinPriceRequest) ToUseCaseInput(symbol string) (usecase.PutCoinPriceInput, error) {
	verr := &domain.ValidationError{}

	input := usecase.PutCoinPriceInput{
		Symbol:   symbol,
		PriceUSD: parseAmount(verr, "price_usd", r.PriceUSD, true),
		Source:   r.Source,
	}

	return input, verr.Err()
}

// QuoteConversionRequest asks for a conversion preview.
type QuoteConversionRequest struct {
	Amount string `json:"amount"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// ToUseCaseInput converts to use case input.
func (r *QuoteConversionRequest) ToUseCaseInput() (usecase.QuoteConversionInput, error) {
	verr := &domain.ValidationError{}

	input := usecase.QuoteConversionInput{
		Amount: parseAmount(verr, "amount", r.Amount, true),
		From:   r.From,
		To:     r.To,
	}

	return input, verr.Err()
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
