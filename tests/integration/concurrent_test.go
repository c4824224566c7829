package integration

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/usecase"
	"github.com/iho/cashledger/tests/testutil"
)

func TestConcurrentMovements(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	ctx := context.Background()

	testDB := testutil.NewTestDB(t)
	defer testDB.Cleanup()

	stack := testutil.NewStack(t, testDB)

	t.Run("100 concurrent deposits from same bank never overdraw", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		stack.SeedRates(ctx)

		bank := stack.CreateAccount(ctx, usecase.CreateAccountInput{Type: domain.AccountTypeBankAccount, Currency: "USD"})
		bookie := stack.CreateAccount(ctx, usecase.CreateAccountInput{Type: domain.AccountTypeBookmaker, Currency: "USD"})
		stack.FundBank(ctx, bank, testutil.Dec("1000"))

		// 1000 / 15 leaves room for 66 deposits.
		numDeposits := 100
		amount := testutil.Dec("15")

		var (
			wg                sync.WaitGroup
			successCount      atomic.Int32
			insufficientCount atomic.Int32
			otherErrors       atomic.Int32
		)

		wg.Add(numDeposits)

		for range numDeposits {
			go func() {
				defer wg.Done()

				_, err := stack.Write.SubmitMovement(ctx, domain.MovementDraft{
					Kind:         domain.EntryKindDeposit,
					Origin:       domain.BankAccountParty(bank.PartnerID, bank.ID),
					Destination:  domain.BookmakerParty(bookie.ID),
					OriginAmount: amount,
				})
				switch {
				case err == nil:
					successCount.Add(1)
				case errors.Is(err, domain.ErrInsufficientBalance):
					insufficientCount.Add(1)
				default:
					otherErrors.Add(1)
					t.Logf("unexpected error: %v", err)
				}
			}()
		}

		wg.Wait()

		if successCount.Load() != 66 {
			t.Errorf("expected 66 successful deposits, got %d (insufficient: %d, other: %d)",
				successCount.Load(), insufficientCount.Load(), otherErrors.Load())
		}
		if otherErrors.Load() != 0 {
			t.Errorf("expected no errors besides insufficient balance, got %d", otherErrors.Load())
		}

		if got := stack.Balance(ctx, bank.ID, "USD").Total; !got.Equal(testutil.Dec("10")) {
			t.Errorf("expected bank total 10, got %s", got)
		}
		if got := stack.Balance(ctx, bookie.ID, "USD").Total; !got.Equal(testutil.Dec("990")) {
			t.Errorf("expected bookmaker total 990, got %s", got)
		}
		assertConsistent(ctx, t, stack)
	})

	t.Run("concurrent confirmations settle an entry once", func(t *testing.T) {
		testDB.TruncateAll(ctx)
		stack.SeedRates(ctx)

		bank := stack.CreateAccount(ctx, usecase.CreateAccountInput{Type: domain.AccountTypeBankAccount, Currency: "EUR"})
		bookie := stack.CreateAccount(ctx, usecase.CreateAccountInput{Type: domain.AccountTypeBookmaker, Currency: "USD"})
		stack.FundBank(ctx, bank, testutil.Dec("100"))

		res, err := stack.Write.SubmitMovement(ctx, domain.MovementDraft{
			Kind:         domain.EntryKindDeposit,
			Origin:       domain.BankAccountParty(bank.PartnerID, bank.ID),
			Destination:  domain.BookmakerParty(bookie.ID),
			OriginAmount: testutil.Dec("100"),
		})
		if err != nil {
			t.Fatalf("failed to submit deposit: %v", err)
		}

		numConfirms := 20

		var (
			wg            sync.WaitGroup
			confirmed     atomic.Int32
			alreadyClosed atomic.Int32
		)

		wg.Add(numConfirms)

		for range numConfirms {
			go func() {
				defer wg.Done()

				_, err := stack.Write.ConfirmEntry(ctx, usecase.ConfirmEntryInput{EntryID: res.Entry.ID})
				switch {
				case err == nil:
					confirmed.Add(1)
				case errors.Is(err, domain.ErrInvalidStatusTransition):
					alreadyClosed.Add(1)
				default:
					t.Logf("unexpected error: %v", err)
				}
			}()
		}

		wg.Wait()

		if confirmed.Load() != 1 {
			t.Errorf("expected exactly 1 confirmation, got %d", confirmed.Load())
		}
		if alreadyClosed.Load() != int32(numConfirms-1) {
			t.Errorf("expected %d rejected confirmations, got %d", numConfirms-1, alreadyClosed.Load())
		}

		bookieBalance := stack.Balance(ctx, bookie.ID, "USD")
		if !bookieBalance.Total.Equal(testutil.Dec("120")) || !bookieBalance.Pending.IsZero() {
			t.Errorf("expected total 120 pending 0, got total %s pending %s", bookieBalance.Total, bookieBalance.Pending)
		}
		assertConsistent(ctx, t, stack)
	})
}
