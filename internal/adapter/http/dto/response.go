package dto

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
)

// FeeConfigResponse represents a bank fee schedule.
type FeeConfigResponse struct {
	Mode      domain.FeeMode  `json:"mode"`
	OnReceive decimal.Decimal `json:"on_receive"`
	OnSend    decimal.Decimal `json:"on_send"`
	Currency  string          `json:"currency,omitempty"`
}

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Type                domain.AccountType  `json:"type"`
	PartnerID           string              `json:"partner_id,omitempty"`
	Currency            string              `json:"currency,omitempty"`
	Coins               []string            `json:"coins,omitempty"`
	Restricted          bool                `json:"restricted"`
	State               domain.AccountState `json:"state"`
	MandatoryWithdrawal bool                `json:"mandatory_withdrawal"`
	Fee                 *FeeConfigResponse  `json:"fee,omitempty"`
	Version             int64               `json:"version"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// AccountFromDomain converts domain account to response.
func AccountFromDomain(a *domain.Account) *AccountResponse {
	resp := &AccountResponse{
		ID:                  a.ID,
		Name:                a.Name,
		Type:                a.Type,
		PartnerID:           a.PartnerID,
		Currency:            a.Currency,
		Coins:               a.Coins,
		Restricted:          a.Restricted,
		State:               a.State,
		MandatoryWithdrawal: a.MandatoryWithdrawal,
		Version:             a.Version,
		CreatedAt:           a.CreatedAt,
		UpdatedAt:           a.UpdatedAt,
	}
	if a.Fee != nil {
		resp.Fee = &FeeConfigResponse{
			Mode:      a.Fee.Mode,
			OnReceive: a.Fee.OnReceive,
			OnSend:    a.Fee.OnSend,
			Currency:  a.Fee.Currency,
		}
	}
	return resp
}

// AccountsFromDomain converts domain accounts to responses.
func AccountsFromDomain(accounts []*domain.Account) []*AccountResponse {
	result := make([]*AccountResponse, len(accounts))
	for i, a := range accounts {
		result[i] = AccountFromDomain(a)
	}
	return result
}

// ListAccountsResponse represents a page of accounts.
type ListAccountsResponse struct {
	Accounts []*AccountResponse `json:"accounts"`
	Total    int64              `json:"total"`
}

// BalanceResponse represents one asset balance of an account.
type BalanceResponse struct {
	Asset     string          `json:"asset"`
	Total     decimal.Decimal `json:"total"`
	Locked    decimal.Decimal `json:"locked"`
	Available decimal.Decimal `json:"available"`
	Pending   decimal.Decimal `json:"pending"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// BalancesResponse lists the balances of an account.
type BalancesResponse struct {
	AccountID string            `json:"account_id"`
	Balances  []BalanceResponse `json:"balances"`
}

// BalancesFromViews converts balance views to a response.
func BalancesFromViews(accountID string, views []usecase.BalanceView) *BalancesResponse {
	resp := &BalancesResponse{AccountID: accountID, Balances: make([]BalanceResponse, len(views))}
	for i, v := range views {
		resp.Balances[i] = BalanceResponse{
			Asset:     v.Asset,
			Total:     v.Total,
			Locked:    v.Locked,
			Available: v.Available,
			Pending:   v.Pending,
			UpdatedAt: v.UpdatedAt,
		}
	}
	return resp
}

// PartyResponse represents one side of an entry.
type PartyResponse struct {
	Type      domain.AccountType `json:"type"`
	PartnerID string             `json:"partner_id,omitempty"`
	AccountID string             `json:"account_id"`
}

func partyFromDomain(p domain.Party) PartyResponse {
	return PartyResponse{Type: p.Type, PartnerID: p.PartnerID, AccountID: p.ResolvedAccountID()}
}

// EntryResponse represents a ledger entry in API responses.
type EntryResponse struct {
	ID                 string                `json:"id"`
	Kind               domain.EntryKind      `json:"kind"`
	Family             domain.CurrencyFamily `json:"family"`
	OriginCurrency     string                `json:"origin_currency,omitempty"`
	OriginAmount       decimal.Decimal       `json:"origin_amount"`
	CanonicalCurrency  string                `json:"canonical_currency"`
	CanonicalAmount    decimal.Decimal       `json:"canonical_amount"`
	USDReferenceAmount decimal.Decimal       `json:"usd_reference_amount"`
	RateSnapshotAt     time.Time             `json:"rate_snapshot_at"`
	ImpliedRate        decimal.Decimal       `json:"implied_rate"`
	UsedFallbackRate   bool                  `json:"used_fallback_rate"`
	Origin             *PartyResponse        `json:"origin,omitempty"`
	Destination        PartyResponse         `json:"destination"`
	CoinSymbol         string                `json:"coin_symbol,omitempty"`
	CoinQuantity       *decimal.Decimal      `json:"coin_quantity,omitempty"`
	Status             domain.EntryStatus    `json:"status"`
	ValueStatus        domain.ValueStatus    `json:"value_status"`
	TransitStatus      domain.TransitStatus  `json:"transit_status,omitempty"`
	ReferenceEntryID   string                `json:"reference_entry_id,omitempty"`
	IdempotencyKey     string                `json:"idempotency_key,omitempty"`
	Description        string                `json:"description,omitempty"`
	CreatedBy          string                `json:"created_by"`
	EventAt            time.Time             `json:"event_at"`
	CreatedAt          time.Time             `json:"created_at"`
	ConfirmedAt        *time.Time            `json:"confirmed_at,omitempty"`
}

// EntryFromDomain converts a domain entry to response.
func EntryFromDomain(e *domain.LedgerEntry) *EntryResponse {
	if e == nil {
		return nil
	}

	resp := &EntryResponse{
		ID:                 e.ID,
		Kind:               e.Kind,
		Family:             e.Family,
		OriginCurrency:     e.OriginCurrency,
		OriginAmount:       e.OriginAmount,
		CanonicalCurrency:  e.CanonicalCurrency,
		CanonicalAmount:    e.CanonicalAmount,
		USDReferenceAmount: e.USDReferenceAmount,
		RateSnapshotAt:     e.RateSnapshotAt,
		ImpliedRate:        e.ImpliedRate,
		UsedFallbackRate:   e.UsedFallbackRate,
		Destination:        partyFromDomain(e.Destination),
		CoinSymbol:         e.CoinSymbol,
		Status:             e.Status,
		ValueStatus:        e.ValueStatus,
		TransitStatus:      e.TransitStatus,
		ReferenceEntryID:   e.ReferenceEntryID,
		IdempotencyKey:     e.IdempotencyKey,
		Description:        e.Description,
		CreatedBy:          e.CreatedBy,
		EventAt:            e.EventAt,
		CreatedAt:          e.CreatedAt,
		ConfirmedAt:        e.ConfirmedAt,
	}
	if e.Origin != nil {
		origin := partyFromDomain(*e.Origin)
		resp.Origin = &origin
	}
	if e.CoinSymbol != "" {
		qty := e.CoinQuantity
		resp.CoinQuantity = &qty
	}
	return resp
}

// EntriesFromDomain converts domain entries to responses.
func EntriesFromDomain(entries []*domain.LedgerEntry) []*EntryResponse {
	result := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		result[i] = EntryFromDomain(e)
	}
	return result
}

// FeeQuoteResponse represents a fee that applies to a movement.
type FeeQuoteResponse struct {
	BankAccountID string              `json:"bank_account_id"`
	Direction     domain.FeeDirection `json:"direction"`
	Mode          domain.FeeMode      `json:"mode"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
}

func feeQuoteFromDomain(q *domain.FeeQuote) *FeeQuoteResponse {
	if q == nil {
		return nil
	}
	return &FeeQuoteResponse{
		BankAccountID: q.BankAccountID,
		Direction:     q.Direction,
		Mode:          q.Mode,
		Amount:        q.Amount,
		Currency:      q.Currency,
	}
}

// MovementResponse is the outcome of a submitted movement.
type MovementResponse struct {
	Entry    *EntryResponse    `json:"entry"`
	FeeEntry *EntryResponse    `json:"fee_entry,omitempty"`
	FeeQuote *FeeQuoteResponse `json:"fee_quote,omitempty"`
	Replayed bool              `json:"replayed"`
}

// MovementFromResult converts a movement result to response.
func MovementFromResult(r *usecase.MovementResult) *MovementResponse {
	return &MovementResponse{
		Entry:    EntryFromDomain(r.Entry),
		FeeEntry: EntryFromDomain(r.FeeEntry),
		FeeQuote: feeQuoteFromDomain(r.FeeQuote),
		Replayed: r.Replayed,
	}
}

// ConfirmationResponse is the outcome of an entry confirmation.
type ConfirmationResponse struct {
	Entry        *EntryResponse `json:"entry"`
	Variance     *EntryResponse `json:"variance,omitempty"`
	LockReleased bool           `json:"lock_released"`
}

// ConfirmationFromResult converts a confirmation result to response.
func ConfirmationFromResult(r *usecase.ConfirmationResult) *ConfirmationResponse {
	return &ConfirmationResponse{
		Entry:        EntryFromDomain(r.Entry),
		Variance:     EntryFromDomain(r.Variance),
		LockReleased: r.LockReleased,
	}
}

// FeeResponse is the outcome of a fee decision.
type FeeResponse struct {
	Quote         *FeeQuoteResponse `json:"quote,omitempty"`
	FeeEntry      *EntryResponse    `json:"fee_entry,omitempty"`
	Posted        bool              `json:"posted"`
	AlreadyPosted bool              `json:"already_posted"`
}

// FeeFromResult converts a fee result to response.
func FeeFromResult(r *usecase.FeeResult) *FeeResponse {
	return &FeeResponse{
		Quote:         feeQuoteFromDomain(r.Quote),
		FeeEntry:      EntryFromDomain(r.FeeEntry),
		Posted:        r.Posted,
		AlreadyPosted: r.AlreadyPosted,
	}
}

// AdjustmentRecordResponse represents the audit record of an adjustment.
type AdjustmentRecordResponse struct {
	ID               string                  `json:"id"`
	EntryID          string                  `json:"entry_id"`
	ReferenceEntryID string                  `json:"reference_entry_id,omitempty"`
	AccountID        string                  `json:"account_id"`
	Asset            string                  `json:"asset"`
	Delta            decimal.Decimal         `json:"delta"`
	ReasonCode       domain.AdjustmentReason `json:"reason_code"`
	Reason           string                  `json:"reason,omitempty"`
	AttestedBy       string                  `json:"attested_by"`
	CreatedAt        time.Time               `json:"created_at"`
}

// AdjustmentRecordFromDomain converts an adjustment record to response.
func AdjustmentRecordFromDomain(r *domain.AdjustmentRecord) *AdjustmentRecordResponse {
	if r == nil {
		return nil
	}
	return &AdjustmentRecordResponse{
		ID:               r.ID,
		EntryID:          r.EntryID,
		ReferenceEntryID: r.ReferenceEntryID,
		AccountID:        r.AccountID,
		Asset:            r.Asset,
		Delta:            r.Delta,
		ReasonCode:       r.ReasonCode,
		Reason:           r.Reason,
		AttestedBy:       r.AttestedBy,
		CreatedAt:        r.CreatedAt,
	}
}

// AdjustmentResponse pairs an adjustment entry with its record.
type AdjustmentResponse struct {
	Entry  *EntryResponse            `json:"entry"`
	Record *AdjustmentRecordResponse `json:"record"`
}

// AdjustmentsFromViews converts adjustment views to responses.
func AdjustmentsFromViews(views []usecase.AdjustmentView) []AdjustmentResponse {
	result := make([]AdjustmentResponse, len(views))
	for i, v := range views {
		result[i] = AdjustmentResponse{
			Entry:  EntryFromDomain(v.Entry),
			Record: AdjustmentRecordFromDomain(v.Record),
		}
	}
	return result
}

// ReconciliationResponse is the outcome of a reconciliation.
type ReconciliationResponse struct {
	AccountID           string                    `json:"account_id"`
	Asset               string                    `json:"asset"`
	RecordedBalance     decimal.Decimal           `json:"recorded_balance"`
	RealBalance         decimal.Decimal           `json:"real_balance"`
	Delta               decimal.Decimal           `json:"delta"`
	Adjustment          *EntryResponse            `json:"adjustment,omitempty"`
	Record              *AdjustmentRecordResponse `json:"record,omitempty"`
	Disposition         domain.Disposition        `json:"disposition"`
	State               domain.AccountState       `json:"state"`
	MandatoryWithdrawal bool                      `json:"mandatory_withdrawal"`
	NoOp                bool                      `json:"no_op"`
}

// ReconciliationFromResult converts a reconciliation result to response.
func ReconciliationFromResult(r *usecase.ReconciliationResult) *ReconciliationResponse {
	return &ReconciliationResponse{
		AccountID:           r.AccountID,
		Asset:               r.Asset,
		RecordedBalance:     r.RecordedBalance,
		RealBalance:         r.RealBalance,
		Delta:               r.Delta,
		Adjustment:          EntryFromDomain(r.Adjustment),
		Record:              AdjustmentRecordFromDomain(r.Record),
		Disposition:         r.Disposition,
		State:               r.State,
		MandatoryWithdrawal: r.MandatoryWithdrawal,
		NoOp:                r.NoOp,
	}
}

// RateResponse represents a pivot rate.
type RateResponse struct {
	Currency    string          `json:"currency"`
	RateToPivot decimal.Decimal `json:"rate_to_pivot"`
	IsOfficial  bool            `json:"is_official"`
	IsFallback  bool            `json:"is_fallback"`
	Source      string          `json:"source,omitempty"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// RateFromDomain converts a rate to response.
func RateFromDomain(r domain.Rate) RateResponse {
	return RateResponse{
		Currency:    r.Currency,
		RateToPivot: r.RateToPivot,
		IsOfficial:  r.IsOfficial,
		IsFallback:  r.IsFallback,
		Source:      r.Source,
		FetchedAt:   r.FetchedAt,
	}
}

// CoinPriceResponse represents a coin price.
type CoinPriceResponse struct {
	Symbol     string          `json:"symbol"`
	PriceUSD   decimal.Decimal `json:"price_usd"`
	IsFallback bool            `json:"is_fallback"`
	Source     string          `json:"source,omitempty"`
	FetchedAt  time.Time       `json:"fetched_at"`
}

// CoinPriceFromDomain converts a coin price to response.
func CoinPriceFromDomain(p domain.CoinPrice) CoinPriceResponse {
	return CoinPriceResponse{
		Symbol:     p.Symbol,
		PriceUSD:   p.PriceUSD,
		IsFallback: p.IsFallback,
		Source:     p.Source,
		FetchedAt:  p.FetchedAt,
	}
}

// SnapshotResponse represents a rate snapshot.
type SnapshotResponse struct {
	Pivot   string              `json:"pivot"`
	TakenAt time.Time           `json:"taken_at"`
	Rates   []RateResponse      `json:"rates"`
	Coins   []CoinPriceResponse `json:"coins"`
}

// SnapshotFromDomain converts a snapshot to response, sorted by code.
func SnapshotFromDomain(s *domain.RateSnapshot) *SnapshotResponse {
	resp := &SnapshotResponse{
		Pivot:   s.Pivot,
		TakenAt: s.TakenAt,
		Rates:   make([]RateResponse, 0, len(s.Rates)),
		Coins:   make([]CoinPriceResponse, 0, len(s.Coins)),
	}
	for _, r := range s.Rates {
		resp.Rates = append(resp.Rates, RateFromDomain(r))
	}
	for _, p := range s.Coins {
		resp.Coins = append(resp.Coins, CoinPriceFromDomain(p))
	}
	sort.Slice(resp.Rates, func(i, j int) bool { return resp.Rates[i].Currency < resp.Rates[j].Currency })
	sort.Slice(resp.Coins, func(i, j int) bool { return resp.Coins[i].Symbol < resp.Coins[j].Symbol })
	return resp
}

// ConversionQuoteResponse represents a conversion preview.
type ConversionQuoteResponse struct {
	From         string          `json:"from"`
	FromAmount   decimal.Decimal `json:"from_amount"`
	To           string          `json:"to"`
	Amount       decimal.Decimal `json:"amount"`
	ImpliedRate  decimal.Decimal `json:"implied_rate"`
	UsedFallback bool            `json:"used_fallback"`
	UsedPeg      bool            `json:"used_peg"`
	SnapshotAt   time.Time       `json:"snapshot_at"`
}

// ConversionQuoteFromResult converts a conversion quote to response.
func ConversionQuoteFromResult(q *usecase.ConversionQuote) *ConversionQuoteResponse {
	return &ConversionQuoteResponse{
		From:         q.From,
		FromAmount:   q.FromAmount,
		To:           q.Currency,
		Amount:       q.Amount,
		ImpliedRate:  q.ImpliedRate,
		UsedFallback: q.UsedFallback,
		UsedPeg:      q.UsedPeg,
		SnapshotAt:   q.SnapshotAt,
	}
}

// ConsistencyIssueResponse represents one consistency violation.
type ConsistencyIssueResponse struct {
	Kind      string          `json:"kind"`
	AccountID string          `json:"account_id"`
	Asset     string          `json:"asset"`
	Expected  decimal.Decimal `json:"expected"`
	Actual    decimal.Decimal `json:"actual"`
}

// ConsistencyResponse is the outcome of a ledger consistency check.
type ConsistencyResponse struct {
	Status     string                     `json:"status"`
	Consistent bool                       `json:"consistent"`
	Issues     []ConsistencyIssueResponse `json:"issues"`
}

// ConsistencyFromReport converts a consistency report to response.
func ConsistencyFromReport(r *usecase.ConsistencyReport) *ConsistencyResponse {
	resp := &ConsistencyResponse{
		Status:     "consistent",
		Consistent: r.Consistent,
		Issues:     make([]ConsistencyIssueResponse, len(r.Issues)),
	}
	if !r.Consistent {
		resp.Status = "inconsistent"
	}
	for i, issue := range r.Issues {
		resp.Issues[i] = ConsistencyIssueResponse{
			Kind:      issue.Kind,
			AccountID: issue.AccountID,
			Asset:     issue.Asset,
			Expected:  issue.Expected,
			Actual:    issue.Actual,
		}
	}
	return resp
}

// OperatorResponse represents operator information
type OperatorResponse struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name,omitempty"`
	Role  domain.Role `json:"role"`
}

// OperatorFromDomain converts an operator to response.
func OperatorFromDomain(op *domain.Operator) OperatorResponse {
	return OperatorResponse{ID: op.ID, Email: op.Email, Name: op.Name, Role: op.Role}
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Operator  OperatorResponse `json:"operator"`
}

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string              `json:"error"`
	Message string              `json:"message,omitempty"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}
