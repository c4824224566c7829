package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/eventpublisher"
	"github.com/iho/cashledger/internal/usecase"
	"github.com/iho/cashledger/tests/testutil"
)

type capturingPublisher struct {
	mu     sync.Mutex
	events []*domain.OutboxEvent
}

func (p *capturingPublisher) Publish(_ context.Context, event *domain.OutboxEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturingPublisher) types() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make(map[string]int)
	for _, e := range p.events {
		out[e.EventType]++
	}
	return out
}

func TestOutboxEventCreation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()
	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()
	testDB.TruncateAll(ctx)

	stack := testutil.NewStack(t, testDB)
	stack.SeedRates(ctx)

	bank := stack.CreateAccount(ctx, usecase.CreateAccountInput{Type: domain.AccountTypeBankAccount, Currency: "EUR"})
	bookie := stack.CreateAccount(ctx, usecase.CreateAccountInput{Type: domain.AccountTypeBookmaker, Currency: "USD"})
	stack.FundBank(ctx, bank, testutil.Dec("200"))

	res, err := stack.Write.SubmitMovement(ctx, domain.MovementDraft{
		Kind:         domain.EntryKindDeposit,
		Origin:       domain.BankAccountParty(bank.PartnerID, bank.ID),
		Destination:  domain.BookmakerParty(bookie.ID),
		OriginAmount: testutil.Dec("50"),
	})
	if err != nil {
		t.Fatalf("failed to submit deposit: %v", err)
	}
	if _, err := stack.Write.ConfirmEntry(ctx, usecase.ConfirmEntryInput{EntryID: res.Entry.ID}); err != nil {
		t.Fatalf("failed to confirm deposit: %v", err)
	}

	events, err := stack.Repos.Outbox.GetUnpublished(ctx, 100)
	if err != nil {
		t.Fatalf("failed to read outbox: %v", err)
	}

	var committed *domain.OutboxEvent
	for _, e := range events {
		if e.EventType == domain.EventTypeEntryCommitted && e.AggregateID == res.Entry.ID {
			committed = e
		}
	}
	if committed == nil {
		t.Fatalf("expected an %s event for %s among %d events", domain.EventTypeEntryCommitted, res.Entry.ID, len(events))
	}
	if committed.AggregateType != domain.AggregateTypeEntry {
		t.Errorf("expected aggregate type %q, got %q", domain.AggregateTypeEntry, committed.AggregateType)
	}
	if committed.Payload["entry_id"] != res.Entry.ID {
		t.Errorf("expected payload entry_id %q, got %v", res.Entry.ID, committed.Payload["entry_id"])
	}

	publisher := &capturingPublisher{}
	ep := eventpublisher.NewEventPublisher(eventpublisher.Config{
		OutboxRepo: stack.Repos.Outbox,
		Publisher:  publisher,
		Logger:     zerolog.Nop(),
		Interval:   50 * time.Millisecond,
	})

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ep.Start(runCtx)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		remaining, err := stack.Repos.Outbox.GetUnpublished(ctx, 100)
		if err != nil {
			t.Fatalf("failed to read outbox: %v", err)
		}
		if len(remaining) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("outbox still holds %d events", len(remaining))
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	<-done

	got := publisher.types()
	for _, eventType := range []string{
		domain.EventTypeAccountCreated,
		domain.EventTypeEntryCommitted,
		domain.EventTypeEntryConfirmed,
	} {
		if got[eventType] == 0 {
			t.Errorf("expected at least one %s event, got %v", eventType, got)
		}
	}
}
