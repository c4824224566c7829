package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/iho/cashledger/internal/domain"
)

// Repositories bundles the storage ports used by the write paths.
type Repositories struct {
	Accounts     AccountRepository
	Balances     BalanceRepository
	Entries      EntryRepository
	Adjustments  AdjustmentRepository
	TransitLocks TransitLockRepository
	Outbox       OutboxRepository
	Audit        AuditRepository
}

// sortedAccountIDs returns the distinct ids in lock order.
func sortedAccountIDs(ids ...string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func buildAccountMap(accounts []*domain.Account) map[string]*domain.Account {
	m := make(map[string]*domain.Account, len(accounts))
	for _, a := range accounts {
		m[a.ID] = a
	}
	return m
}

// balanceKeys returns the distinct keys in lock order.
func balanceKeys(keys ...domain.BalanceKey) []domain.BalanceKey {
	seen := make(map[domain.BalanceKey]bool, len(keys))
	out := make([]domain.BalanceKey, 0, len(keys))
	for _, k := range keys {
		if k.AccountID == "" || k.Asset == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AccountID != out[j].AccountID {
			return out[i].AccountID < out[j].AccountID
		}
		return out[i].Asset < out[j].Asset
	})
	return out
}

func emitEvent(
	ctx context.Context,
	repo OutboxRepository,
	tx Transaction,
	id, aggregateType, aggregateID, eventType string,
	payload any,
	now time.Time,
) error {
	if repo == nil {
		return nil
	}
	event := &domain.OutboxEvent{
		ID:            id,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		Payload:       domain.ToPayload(payload),
		CreatedAt:     now,
		Published:     false,
	}
	return repo.Create(ctx, tx, event)
}

func writeAudit(
	ctx context.Context,
	repo AuditRepository,
	tx Transaction,
	id string,
	action domain.AuditAction,
	resourceType, resourceID string,
	before, after any,
	now time.Time,
) error {
	if repo == nil {
		return nil
	}
	log := &domain.AuditLog{
		ID:           id,
		UserID:       domain.OperatorID(ctx),
		Action:       string(action),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		BeforeState:  domain.MarshalState(before),
		AfterState:   domain.MarshalState(after),
		Status:       string(domain.AuditStatusSuccess),
		CreatedAt:    now,
	}
	return repo.CreateTx(ctx, tx, log)
}

// errorType labels an error for metrics.
func errorType(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, domain.ErrRateUnavailable):
		return "rate_unavailable"
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return "concurrency_conflict"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "internal"
	}
}
