package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// Account errors
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrInvalidAccountType = errors.New("invalid account type")
	ErrAccountReleased    = errors.New("account has been released")
	ErrInvalidFeeConfig   = errors.New("invalid fee configuration")
	ErrBalanceNotFound    = errors.New("balance not found")

	// Movement errors
	ErrValidation              = errors.New("validation failed")
	ErrInvalidParty            = errors.New("invalid party")
	ErrSameAccount             = errors.New("cannot move funds to the same account")
	ErrInvalidAmount           = errors.New("amount must be positive")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrEntryNotFound           = errors.New("entry not found")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
	ErrNoFeeApplicable         = errors.New("no fee applies to this entry")

	// Rate errors
	ErrRateUnavailable = errors.New("rate unavailable")

	// Storage errors
	ErrConcurrencyConflict = errors.New("concurrent modification, retries exhausted")
	ErrLockNotFound        = errors.New("transit lock not found")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every problem found in a movement draft.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Add appends a field error.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any field was rejected.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// Err returns e as an error, or nil when no field was rejected.
func (e *ValidationError) Err() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

// InsufficientBalanceError reports a debit larger than the available balance.
// Amounts are in the debited account's own asset.
type InsufficientBalanceError struct {
	AccountID string
	Asset     string
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance on %s: available %s %s, requested %s %s",
		e.AccountID, e.Available, e.Asset, e.Requested, e.Asset)
}

func (e *InsufficientBalanceError) Is(target error) bool {
	return target == ErrInsufficientBalance
}

// RateUnavailableError reports a currency or coin with no usable quote.
type RateUnavailableError struct {
	Currency string
}

func (e *RateUnavailableError) Error() string {
	return "rate unavailable for " + e.Currency
}

func (e *RateUnavailableError) Is(target error) bool {
	return target == ErrRateUnavailable
}

// ConcurrencyConflictError is returned when a write kept losing lock races.
type ConcurrencyConflictError struct {
	Err error
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Err == nil {
		return ErrConcurrencyConflict.Error()
	}
	return ErrConcurrencyConflict.Error() + ": " + e.Err.Error()
}

func (e *ConcurrencyConflictError) Is(target error) bool {
	return target == ErrConcurrencyConflict
}

func (e *ConcurrencyConflictError) Unwrap() error {
	return e.Err
}
