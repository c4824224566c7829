package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
)

// LedgerWriteUseCase validates, prices and commits movements, and runs the
// later confirmation and fee operations on committed entries.
type LedgerWriteUseCase struct {
	txManager      TransactionManager
	accountRepo    AccountRepository
	balanceRepo    BalanceRepository
	entryRepo      EntryRepository
	adjustmentRepo AdjustmentRepository
	outboxRepo     OutboxRepository
	auditRepo      AuditRepository
	snapshots      *SnapshotBuilder
	converter      *ConversionService
	validator      *LedgerEntryValidator
	transit        *TransitLockManager
	fees           *FeeCalculator
	idGen          IDGenerator
	retrier        Retrier
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	now            func() time.Time
}

// NewLedgerWriteUseCase creates a new LedgerWriteUseCase.
func NewLedgerWriteUseCase(
	txManager TransactionManager,
	repos Repositories,
	snapshots *SnapshotBuilder,
	converter *ConversionService,
	idGen IDGenerator,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *LedgerWriteUseCase {
	return &LedgerWriteUseCase{
		txManager:      txManager,
		accountRepo:    repos.Accounts,
		balanceRepo:    repos.Balances,
		entryRepo:      repos.Entries,
		adjustmentRepo: repos.Adjustments,
		outboxRepo:     repos.Outbox,
		auditRepo:      repos.Audit,
		snapshots:      snapshots,
		converter:      converter,
		validator:      NewLedgerEntryValidator(),
		transit:        NewTransitLockManager(repos.TransitLocks, converter, idGen, m),
		fees:           NewFeeCalculator(converter),
		idGen:          idGen,
		retrier:        noRetry{},
		metrics:        m,
		logger:         logger.With().Str("component", "ledger_write").Logger(),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithRetrier sets the retrier used around each write transaction.
func (uc *LedgerWriteUseCase) WithRetrier(r Retrier) *LedgerWriteUseCase {
	if r != nil {
		uc.retrier = r
	}
	return uc
}

// MovementResult is the outcome of a submitted movement.
type MovementResult struct {
	Entry *domain.LedgerEntry
	// FeeEntry is set when a confirmed fee was posted with the movement.
	FeeEntry *domain.LedgerEntry
	// FeeQuote is set when a fee applies, posted or not.
	FeeQuote *domain.FeeQuote
	// Replayed is true when the idempotency key matched an earlier entry.
	Replayed bool
}

// SubmitMovement validates a draft and commits it, together with its fee
// adjustment when the fee is confirmed, in one transaction.
func (uc *LedgerWriteUseCase) SubmitMovement(ctx context.Context, draft domain.MovementDraft) (*MovementResult, error) {
	start := time.Now()

	result, err := uc.submitMovement(ctx, draft)
	if err != nil {
		if uc.metrics != nil {
			uc.metrics.MovementErrors.WithLabelValues(errorType(err)).Inc()
		}
		return nil, err
	}

	if uc.metrics != nil && !result.Replayed {
		uc.metrics.MovementsSubmitted.WithLabelValues(string(result.Entry.Kind), string(result.Entry.Status)).Inc()
		uc.metrics.MovementDuration.Observe(time.Since(start).Seconds())
		uc.metrics.MovementUSDAmount.Observe(result.Entry.USDReferenceAmount.Abs().InexactFloat64())
	}

	return result, nil
}

func (uc *LedgerWriteUseCase) submitMovement(ctx context.Context, draft domain.MovementDraft) (*MovementResult, error) {
	draft = uc.validator.Normalize(draft)
	if draft.CreatedBy == "" {
		draft.CreatedBy = domain.OperatorID(ctx)
	}

	if err := uc.validator.ValidateDraft(draft); err != nil {
		return nil, err
	}

	if draft.IdempotencyKey != "" {
		existing, err := uc.entryRepo.GetByIdempotencyKey(ctx, draft.IdempotencyKey)
		if err == nil {
			return uc.replay(ctx, existing)
		}
		if !errors.Is(err, domain.ErrEntryNotFound) {
			return nil, err
		}
	}

	snapshot, err := uc.snapshotForDraft(ctx, draft)
	if err != nil {
		return nil, err
	}

	var result *MovementResult
	err = uc.retrier.Retry(ctx, func() error {
		var err error
		result, err = uc.submitOnce(ctx, draft, snapshot)
		return err
	})

	if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
		existing, getErr := uc.entryRepo.GetByIdempotencyKey(ctx, draft.IdempotencyKey)
		if getErr != nil {
			return nil, getErr
		}
		return uc.replay(ctx, existing)
	}
	if err != nil {
		return nil, err
	}

	if result.Entry.UsedFallbackRate {
		uc.logger.Warn().
			Str("entry_id", result.Entry.ID).
			Msg("movement priced with fallback rate")
	}

	return result, nil
}

func (uc *LedgerWriteUseCase) submitOnce(ctx context.Context, draft domain.MovementDraft, snapshot *domain.RateSnapshot) (*MovementResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Lock accounts in sorted order
	ids := sortedAccountIDs(draft.Origin.ResolvedAccountID(), draft.Destination.ResolvedAccountID())
	accounts, err := uc.accountRepo.GetByIDsForUpdate(txCtx, tx, ids)
	if err != nil {
		return nil, err
	}

	vm, err := uc.validator.Resolve(draft, buildAccountMap(accounts))
	if err != nil {
		return nil, err
	}

	now := uc.now()
	entry, decision, err := uc.price(vm, snapshot, now)
	if err != nil {
		return nil, err
	}

	originKey := domain.BalanceKey{AccountID: vm.OriginAccount.ID, Asset: vm.OriginAsset}
	destKey := domain.BalanceKey{AccountID: vm.DestinationAccount.ID, Asset: vm.DestinationAsset}

	// Lock balances in sorted order
	balances, err := uc.balanceRepo.GetForUpdate(txCtx, tx, balanceKeys(originKey, destKey))
	if err != nil {
		return nil, err
	}
	originBal := balances[originKey]
	destBal := balances[destKey]

	if originBal != nil {
		required := vm.Draft.OriginAmount
		if decision.LockOrigin {
			required = entry.USDReferenceAmount
		}
		if err := uc.validator.CheckSufficiency(vm, originBal, required); err != nil {
			return nil, err
		}
	}

	if err := uc.entryRepo.Create(txCtx, tx, entry); err != nil {
		return nil, err
	}

	if err := uc.applyCommitEffects(txCtx, tx, entry, decision, vm, originBal, destBal, now); err != nil {
		return nil, err
	}

	if origin := vm.OriginAccount; origin.MandatoryWithdrawal && originBal != nil && !originBal.Total.IsPositive() {
		origin.MandatoryWithdrawal = false
		origin.UpdatedAt = now
		if err := uc.accountRepo.UpdateState(txCtx, tx, origin); err != nil {
			return nil, err
		}
	}

	result := &MovementResult{Entry: entry}

	quote, err := uc.fees.Quote(FeeBasis{
		Origin:          vm.OriginAccount,
		Destination:     vm.DestinationAccount,
		OriginAmount:    entry.OriginAmount,
		CanonicalAmount: entry.CanonicalAmount,
	}, snapshot)
	if err != nil {
		return nil, err
	}
	result.FeeQuote = quote

	if quote != nil && draft.FeeConfirmed {
		bank := vm.OriginAccount
		bankBal := originBal
		if quote.BankAccountID == vm.DestinationAccount.ID {
			bank = vm.DestinationAccount
			bankBal = destBal
		}

		feeEntry, err := uc.postFee(txCtx, tx, quote, bank, bankBal, entry, snapshot, draft.CreatedBy, now)
		if err != nil {
			return nil, err
		}
		result.FeeEntry = feeEntry
	}

	for _, key := range balanceKeys(originKey, destKey) {
		if err := uc.balanceRepo.Update(txCtx, tx, balances[key]); err != nil {
			return nil, err
		}
	}

	var originAccountID string
	if entry.Origin != nil {
		originAccountID = entry.Origin.ResolvedAccountID()
	}
	if err := emitEvent(txCtx, uc.outboxRepo, tx, uc.idGen.Generate(),
		domain.AggregateTypeEntry, entry.ID, domain.EventTypeEntryCommitted,
		domain.EntryCommittedEvent{
			EntryID:            entry.ID,
			Kind:               string(entry.Kind),
			Status:             string(entry.Status),
			OriginAccountID:    originAccountID,
			DestinationID:      entry.Destination.ResolvedAccountID(),
			OriginAmount:       entry.OriginAmount.String(),
			OriginCurrency:     entry.OriginCurrency,
			CanonicalAmount:    entry.CanonicalAmount.String(),
			CanonicalCurrency:  entry.CanonicalCurrency,
			USDReferenceAmount: entry.USDReferenceAmount.String(),
			EventAt:            entry.EventAt.Format(time.RFC3339),
		}, now); err != nil {
		return nil, err
	}

	if err := writeAudit(txCtx, uc.auditRepo, tx, uc.idGen.Generate(),
		domain.AuditActionMovementSubmit, domain.ResourceTypeEntry, entry.ID, nil, entry, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return result, nil
}

// price builds the entry of a validated movement: the three amount layers,
// transit classification and initial status.
func (uc *LedgerWriteUseCase) price(vm *domain.ValidatedMovement, snapshot *domain.RateSnapshot, now time.Time) (*domain.LedgerEntry, domain.TransitDecision, error) {
	draft := vm.Draft

	canonical, err := uc.converter.Convert(draft.OriginAmount, vm.OriginCurrency, vm.CanonicalCurrency, snapshot)
	if err != nil {
		return nil, domain.TransitDecision{}, err
	}
	if !canonical.Amount.IsPositive() {
		verr := &domain.ValidationError{}
		verr.Add("originAmount", "%s %s is worth nothing in %s", draft.OriginAmount, vm.OriginCurrency, vm.CanonicalCurrency)
		return nil, domain.TransitDecision{}, verr
	}

	usd, err := uc.converter.ToUSD(draft.OriginAmount, vm.OriginCurrency, snapshot)
	if err != nil {
		return nil, domain.TransitDecision{}, err
	}

	decision, err := uc.transit.Classify(vm, snapshot)
	if err != nil {
		return nil, domain.TransitDecision{}, err
	}

	coinQuantity := draft.CoinQuantity
	if draft.Kind == domain.EntryKindWithdrawal && vm.Family == domain.CurrencyFamilyCrypto {
		coinQuantity = decision.EstimatedQuantity
	}

	status, valueStatus := domain.InitialStatus(draft.Kind, vm.OriginCurrency, vm.CanonicalCurrency, decision.Status)

	eventAt := now
	if draft.EventAt != nil {
		eventAt = draft.EventAt.UTC()
	}

	origin := draft.Origin
	entry := &domain.LedgerEntry{
		ID:                 uc.idGen.Generate(),
		Kind:               draft.Kind,
		Family:             vm.Family,
		OriginCurrency:     vm.OriginCurrency,
		OriginAmount:       draft.OriginAmount,
		CanonicalCurrency:  vm.CanonicalCurrency,
		CanonicalAmount:    canonical.Amount,
		USDReferenceAmount: usd.Amount,
		RateSnapshotAt:     snapshot.TakenAt,
		ImpliedRate:        canonical.ImpliedRate,
		UsedFallbackRate:   canonical.UsedFallback || usd.UsedFallback,
		Origin:             &origin,
		Destination:        draft.Destination,
		CoinSymbol:         vm.CoinSymbol,
		CoinQuantity:       coinQuantity,
		Status:             status,
		ValueStatus:        valueStatus,
		TransitStatus:      decision.Status,
		IdempotencyKey:     draft.IdempotencyKey,
		Description:        draft.Description,
		CreatedBy:          draft.CreatedBy,
		EventAt:            eventAt,
		CreatedAt:          now,
	}
	if status == domain.EntryStatusConfirmed {
		entry.ConfirmedAt = &now
	}

	return entry, decision, nil
}

// applyCommitEffects moves balances at commit time. Confirmed entries move
// both totals. Pending entries lock or debit the origin and only record the
// inbound estimate on non-wallet destinations.
func (uc *LedgerWriteUseCase) applyCommitEffects(
	ctx context.Context,
	tx Transaction,
	entry *domain.LedgerEntry,
	decision domain.TransitDecision,
	vm *domain.ValidatedMovement,
	originBal, destBal *domain.Balance,
	now time.Time,
) error {
	if originBal != nil {
		if entry.IsPending() && decision.LockOrigin {
			if _, err := uc.transit.Lock(ctx, tx, entry, originBal, now); err != nil {
				return err
			}
		} else {
			originBal.Debit(entry.OriginAmount)
		}
	}

	if destBal == nil {
		return nil
	}

	switch {
	case !entry.IsPending():
		destBal.Credit(entry.CanonicalAmount)
	case vm.DestinationAccount.Type != domain.AccountTypeWallet:
		destBal.AddPending(entry.CanonicalAmount)
	}

	return nil
}

// postFee writes the fee adjustment of reference and charges the bank balance.
func (uc *LedgerWriteUseCase) postFee(
	ctx context.Context,
	tx Transaction,
	quote *domain.FeeQuote,
	bank *domain.Account,
	bankBal *domain.Balance,
	reference *domain.LedgerEntry,
	snapshot *domain.RateSnapshot,
	operatorID string,
	now time.Time,
) (*domain.LedgerEntry, error) {
	feeEntry, record, err := uc.fees.BuildFeeAdjustment(quote, bank, reference, snapshot, uc.idGen, operatorID, now)
	if err != nil {
		return nil, err
	}

	// The charge comes out of what is left after the movement itself.
	if err := bankBal.ValidateDebit(feeEntry.CanonicalAmount.Neg()); err != nil {
		return nil, err
	}

	if err := uc.entryRepo.Create(ctx, tx, feeEntry); err != nil {
		return nil, err
	}
	if err := uc.adjustmentRepo.Create(ctx, tx, record); err != nil {
		return nil, err
	}

	bankBal.Credit(feeEntry.CanonicalAmount)

	if err := emitEvent(ctx, uc.outboxRepo, tx, uc.idGen.Generate(),
		domain.AggregateTypeEntry, feeEntry.ID, domain.EventTypeFeePosted,
		domain.FeePostedEvent{
			EntryID:          feeEntry.ID,
			ReferenceEntryID: reference.ID,
			BankAccountID:    bank.ID,
			Amount:           quote.Amount.String(),
			Currency:         quote.Currency,
		}, now); err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.FeesPosted.Inc()
	}

	return feeEntry, nil
}

func (uc *LedgerWriteUseCase) replay(ctx context.Context, entry *domain.LedgerEntry) (*MovementResult, error) {
	result := &MovementResult{Entry: entry, Replayed: true}

	records, err := uc.adjustmentRepo.ListByReference(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ReasonCode != domain.AdjustmentReasonFee {
			continue
		}
		feeEntry, err := uc.entryRepo.GetByID(ctx, r.EntryID)
		if err != nil {
			return nil, err
		}
		result.FeeEntry = feeEntry
	}

	return result, nil
}

// snapshotForDraft reads the accounts without locks to learn which quotes
// the movement needs. The transaction re-reads them under lock.
func (uc *LedgerWriteUseCase) snapshotForDraft(ctx context.Context, draft domain.MovementDraft) (*domain.RateSnapshot, error) {
	currencies := []string{draft.OriginCurrency, draft.DestinationCurrency}
	for _, id := range sortedAccountIDs(draft.Origin.ResolvedAccountID(), draft.Destination.ResolvedAccountID()) {
		account, err := uc.accountRepo.GetByID(ctx, id)
		if errors.Is(err, domain.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		currencies = append(currencies, accountCurrencies(account)...)
	}

	var coins []string
	if draft.CoinSymbol != "" {
		coins = append(coins, draft.CoinSymbol)
	}

	return uc.snapshots.Build(ctx, currencies, coins)
}

func accountCurrencies(account *domain.Account) []string {
	var out []string
	if cur, ok := account.OperatingCurrency(); ok {
		out = append(out, cur)
	}
	if account.Fee != nil && account.Fee.Currency != "" {
		out = append(out, account.Fee.Currency)
	}
	return out
}

// ConfirmEntryInput represents input for confirming a pending entry.
type ConfirmEntryInput struct {
	EntryID string
	// ReceivedAmount is the amount actually credited, in the canonical
	// currency. Nil means the estimate was exact.
	ReceivedAmount *decimal.Decimal
	Reason         string
}

// ConfirmationResult is the outcome of an entry confirmation.
type ConfirmationResult struct {
	Entry        *domain.LedgerEntry
	Variance     *domain.LedgerEntry
	LockReleased bool
}

// ConfirmEntry moves a pending entry to CONFIRMED/FINAL: it settles the
// origin wallet lock, credits the destination and posts a variance
// adjustment when the received amount differs from the estimate.
func (uc *LedgerWriteUseCase) ConfirmEntry(ctx context.Context, input ConfirmEntryInput) (*ConfirmationResult, error) {
	if input.ReceivedAmount != nil && !input.ReceivedAmount.IsPositive() {
		verr := &domain.ValidationError{}
		verr.Add("receivedAmount", "must be positive")
		return nil, verr
	}

	var result *ConfirmationResult
	err := uc.retrier.Retry(ctx, func() error {
		var err error
		result, err = uc.confirmOnce(ctx, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesConfirmed.Inc()
	}

	return result, nil
}

func (uc *LedgerWriteUseCase) confirmOnce(ctx context.Context, input ConfirmEntryInput) (*ConfirmationResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	entry, err := uc.entryRepo.GetByIDForUpdate(txCtx, tx, input.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.IsAdjustment() || !entry.IsPending() {
		return nil, domain.ErrInvalidStatusTransition
	}
	before := *entry

	var originID string
	if entry.Origin != nil {
		originID = entry.Origin.ResolvedAccountID()
	}
	accounts, err := uc.accountRepo.GetByIDsForUpdate(txCtx, tx, sortedAccountIDs(originID, entry.Destination.ResolvedAccountID()))
	if err != nil {
		return nil, err
	}
	accountMap := buildAccountMap(accounts)

	destination := accountMap[entry.Destination.ResolvedAccountID()]
	if destination == nil {
		return nil, domain.ErrAccountNotFound
	}

	var originKey, destKey domain.BalanceKey
	if origin := accountMap[originID]; origin != nil && origin.Type == domain.AccountTypeWallet {
		originKey = domain.BalanceKey{AccountID: origin.ID, Asset: entry.CoinSymbol}
	}
	if asset := balanceAsset(destination, entry.CanonicalCurrency, entry.CoinSymbol); asset != "" {
		destKey = domain.BalanceKey{AccountID: destination.ID, Asset: asset}
	}

	keys := balanceKeys(originKey, destKey)
	balances, err := uc.balanceRepo.GetForUpdate(txCtx, tx, keys)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	result := &ConfirmationResult{Entry: entry}

	if originBal := balances[originKey]; originBal != nil {
		released, err := uc.transit.Release(txCtx, tx, entry.ID, originBal, now)
		if err != nil {
			return nil, err
		}
		result.LockReleased = released
	}

	received := entry.CanonicalAmount
	if input.ReceivedAmount != nil {
		received = domain.RoundAmount(*input.ReceivedAmount, entry.CanonicalCurrency)
	}
	variance := received.Sub(entry.CanonicalAmount)

	if destBal := balances[destKey]; destBal != nil {
		if destination.Type == domain.AccountTypeWallet {
			destBal.Credit(entry.CanonicalAmount)
		} else {
			destBal.SettlePending(entry.CanonicalAmount, entry.CanonicalAmount)
		}

		if !variance.IsZero() {
			reason := input.Reason
			if reason == "" {
				reason = "received amount differs from estimate"
			}
			adj, record, err := newAdjustment(adjustmentSpec{
				ID:         uc.idGen.Generate(),
				RecordID:   uc.idGen.Generate(),
				Account:    destination,
				Asset:      destKey.Asset,
				Currency:   entry.CanonicalCurrency,
				CoinSymbol: entry.CoinSymbol,
				Delta:      variance,
				USDDelta:   proportionalUSD(variance, entry),
				Reference:  entry.ID,
				ReasonCode: domain.AdjustmentReasonConfirmationVariance,
				Reason:     reason,
				AttestedBy: domain.OperatorID(ctx),
				SnapshotAt: entry.RateSnapshotAt,
				Now:        now,
			})
			if err != nil {
				return nil, err
			}
			if err := uc.entryRepo.Create(txCtx, tx, adj); err != nil {
				return nil, err
			}
			if err := uc.adjustmentRepo.Create(txCtx, tx, record); err != nil {
				return nil, err
			}
			destBal.Credit(variance)
			result.Variance = adj
		}
	}

	if err := entry.Confirm(now); err != nil {
		return nil, err
	}
	if err := uc.entryRepo.UpdateStatus(txCtx, tx, entry); err != nil {
		return nil, err
	}

	for _, key := range keys {
		if err := uc.balanceRepo.Update(txCtx, tx, balances[key]); err != nil {
			return nil, err
		}
	}

	if err := emitEvent(txCtx, uc.outboxRepo, tx, uc.idGen.Generate(),
		domain.AggregateTypeEntry, entry.ID, domain.EventTypeEntryConfirmed,
		domain.EntryConfirmedEvent{
			EntryID:        entry.ID,
			ReceivedAmount: received.String(),
			Variance:       variance.String(),
		}, now); err != nil {
		return nil, err
	}

	if err := writeAudit(txCtx, uc.auditRepo, tx, uc.idGen.Generate(),
		domain.AuditActionEntryConfirm, domain.ResourceTypeEntry, entry.ID, before, entry, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return result, nil
}

// proportionalUSD values delta at the USD/canonical ratio of entry.
func proportionalUSD(delta decimal.Decimal, entry *domain.LedgerEntry) decimal.Decimal {
	if entry.CanonicalAmount.IsZero() {
		return decimal.Zero
	}
	return delta.Mul(entry.USDReferenceAmount).DivRound(entry.CanonicalAmount, divisionPrecision).Round(domain.Precision(domain.USD))
}

// ConfirmFeeInput represents an operator decision on a fee quote.
type ConfirmFeeInput struct {
	EntryID string
	Accept  bool
}

// FeeResult is the outcome of a fee decision.
type FeeResult struct {
	Quote    *domain.FeeQuote
	FeeEntry *domain.LedgerEntry
	Posted   bool
	// AlreadyPosted is true when an earlier decision posted the fee.
	AlreadyPosted bool
}

// ConfirmFee posts or declines the fee of a committed entry. At most one
// fee adjustment is ever posted per entry.
func (uc *LedgerWriteUseCase) ConfirmFee(ctx context.Context, input ConfirmFeeInput) (*FeeResult, error) {
	entry, err := uc.entryRepo.GetByID(ctx, input.EntryID)
	if err != nil {
		return nil, err
	}
	if entry.IsAdjustment() || entry.Origin == nil {
		return nil, domain.ErrNoFeeApplicable
	}

	var currencies []string
	for _, id := range sortedAccountIDs(entry.Origin.ResolvedAccountID(), entry.Destination.ResolvedAccountID()) {
		account, err := uc.accountRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		currencies = append(currencies, accountCurrencies(account)...)
	}

	snapshot, err := uc.snapshots.Build(ctx, currencies, nil)
	if err != nil {
		return nil, err
	}

	var result *FeeResult
	err = uc.retrier.Retry(ctx, func() error {
		var err error
		result, err = uc.confirmFeeOnce(ctx, input, snapshot)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *LedgerWriteUseCase) confirmFeeOnce(ctx context.Context, input ConfirmFeeInput, snapshot *domain.RateSnapshot) (*FeeResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	// Serializes concurrent decisions on the same entry
	entry, err := uc.entryRepo.GetByIDForUpdate(txCtx, tx, input.EntryID)
	if err != nil {
		return nil, err
	}

	existing, err := uc.adjustmentRepo.FindByReference(txCtx, tx, entry.ID, domain.AdjustmentReasonFee)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		feeEntry, err := uc.entryRepo.GetByID(txCtx, existing.EntryID)
		if err != nil {
			return nil, err
		}
		return &FeeResult{FeeEntry: feeEntry, Posted: true, AlreadyPosted: true}, nil
	}

	accounts, err := uc.accountRepo.GetByIDsForUpdate(txCtx, tx,
		sortedAccountIDs(entry.Origin.ResolvedAccountID(), entry.Destination.ResolvedAccountID()))
	if err != nil {
		return nil, err
	}
	accountMap := buildAccountMap(accounts)

	quote, err := uc.fees.Quote(FeeBasis{
		Origin:          accountMap[entry.Origin.ResolvedAccountID()],
		Destination:     accountMap[entry.Destination.ResolvedAccountID()],
		OriginAmount:    entry.OriginAmount,
		CanonicalAmount: entry.CanonicalAmount,
	}, snapshot)
	if err != nil {
		return nil, err
	}
	if quote == nil {
		return nil, domain.ErrNoFeeApplicable
	}

	now := uc.now()
	result := &FeeResult{Quote: quote}

	if !input.Accept {
		if err := writeAudit(txCtx, uc.auditRepo, tx, uc.idGen.Generate(),
			domain.AuditActionFeeDecline, domain.ResourceTypeEntry, entry.ID, nil, quote, now); err != nil {
			return nil, err
		}
		if err := tx.Commit(txCtx); err != nil {
			return nil, err
		}
		return result, nil
	}

	bank := accountMap[quote.BankAccountID]
	key := domain.BalanceKey{AccountID: bank.ID, Asset: bank.Currency}
	balances, err := uc.balanceRepo.GetForUpdate(txCtx, tx, []domain.BalanceKey{key})
	if err != nil {
		return nil, err
	}

	feeEntry, err := uc.postFee(txCtx, tx, quote, bank, balances[key], entry, snapshot, domain.OperatorID(ctx), now)
	if err != nil {
		return nil, err
	}

	if err := uc.balanceRepo.Update(txCtx, tx, balances[key]); err != nil {
		return nil, err
	}

	if err := writeAudit(txCtx, uc.auditRepo, tx, uc.idGen.Generate(),
		domain.AuditActionFeeConfirm, domain.ResourceTypeEntry, entry.ID, nil, feeEntry, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	result.FeeEntry = feeEntry
	result.Posted = true
	return result, nil
}
