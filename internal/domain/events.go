package domain

import "time"

// Event types
const (
	EventTypeEntryCommitted    = "entry.committed"
	EventTypeEntryConfirmed    = "entry.confirmed"
	EventTypeFeePosted         = "fee.posted"
	EventTypeAccountCreated    = "account.created"
	EventTypeAccountReconciled = "account.reconciled"
)

// Aggregate types
const (
	AggregateTypeEntry   = "entry"
	AggregateTypeAccount = "account"
)

// OutboxEvent represents an event to be published
type OutboxEvent struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       map[string]any
	CreatedAt     time.Time
	PublishedAt   *time.Time
	Published     bool
}

// EntryCommittedEvent payload
type EntryCommittedEvent struct {
	EntryID            string `json:"entry_id"`
	Kind               string `json:"kind"`
	Status             string `json:"status"`
	OriginAccountID    string `json:"origin_account_id,omitempty"`
	DestinationID      string `json:"destination_account_id"`
	OriginAmount       string `json:"origin_amount"`
	OriginCurrency     string `json:"origin_currency"`
	CanonicalAmount    string `json:"canonical_amount"`
	CanonicalCurrency  string `json:"canonical_currency"`
	USDReferenceAmount string `json:"usd_reference_amount"`
	EventAt            string `json:"event_at"`
}

// EntryConfirmedEvent payload
type EntryConfirmedEvent struct {
	EntryID        string `json:"entry_id"`
	ReceivedAmount string `json:"received_amount"`
	Variance       string `json:"variance"`
}

// FeePostedEvent payload
type FeePostedEvent struct {
	EntryID          string `json:"entry_id"`
	ReferenceEntryID string `json:"reference_entry_id"`
	BankAccountID    string `json:"bank_account_id"`
	Amount           string `json:"amount"`
	Currency         string `json:"currency"`
}

// AccountReconciledEvent payload
type AccountReconciledEvent struct {
	AccountID           string `json:"account_id"`
	Asset               string `json:"asset"`
	Delta               string `json:"delta"`
	AdjustmentEntryID   string `json:"adjustment_entry_id,omitempty"`
	Disposition         string `json:"disposition"`
	MandatoryWithdrawal bool   `json:"mandatory_withdrawal"`
}

// AccountCreatedEvent payload
type AccountCreatedEvent struct {
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Currency  string `json:"currency,omitempty"`
}

// ToPayload converts an event struct into an outbox payload.
func ToPayload(v any) map[string]any {
	return MarshalState(v)
}
