package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/cashledger/internal/domain"
	"github.com/iho/cashledger/internal/infrastructure/metrics"
)

// ReconciliationUseCase compares recorded balances with operator-attested
// real balances and posts the correcting adjustment.
type ReconciliationUseCase struct {
	txManager      TransactionManager
	accountRepo    AccountRepository
	balanceRepo    BalanceRepository
	entryRepo      EntryRepository
	adjustmentRepo AdjustmentRepository
	outboxRepo     OutboxRepository
	auditRepo      AuditRepository
	snapshots      *SnapshotBuilder
	converter      *ConversionService
	idGen          IDGenerator
	epsilon        decimal.Decimal
	retrier        Retrier
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	now            func() time.Time
}

// NewReconciliationUseCase creates a new reconciliation use case. A
// non-positive epsilon selects DefaultReconciliationEpsilon.
func NewReconciliationUseCase(
	txManager TransactionManager,
	repos Repositories,
	snapshots *SnapshotBuilder,
	converter *ConversionService,
	idGen IDGenerator,
	epsilon decimal.Decimal,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ReconciliationUseCase {
	if !epsilon.IsPositive() {
		epsilon = decimal.RequireFromString(DefaultReconciliationEpsilon)
	}
	return &ReconciliationUseCase{
		txManager:      txManager,
		accountRepo:    repos.Accounts,
		balanceRepo:    repos.Balances,
		entryRepo:      repos.Entries,
		adjustmentRepo: repos.Adjustments,
		outboxRepo:     repos.Outbox,
		auditRepo:      repos.Audit,
		snapshots:      snapshots,
		converter:      converter,
		idGen:          idGen,
		epsilon:        epsilon,
		retrier:        noRetry{},
		metrics:        m,
		logger:         logger.With().Str("component", "reconciliation").Logger(),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// WithRetrier sets the retrier used around each reconciliation transaction.
func (uc *ReconciliationUseCase) WithRetrier(r Retrier) *ReconciliationUseCase {
	if r != nil {
		uc.retrier = r
	}
	return uc
}

// ReconcileInput represents an attested balance for one account asset.
type ReconcileInput struct {
	AccountID string
	// Asset defaults to the account operating currency; wallets name a coin
	// and the cash pool names a currency.
	Asset       string
	RealBalance decimal.Decimal
	Reason      string
	Disposition domain.Disposition
	AttestedBy  string
}

// ReconciliationResult represents the result of a reconciliation.
type ReconciliationResult struct {
	AccountID           string
	Asset               string
	RecordedBalance     decimal.Decimal
	RealBalance         decimal.Decimal
	Delta               decimal.Decimal
	Adjustment          *domain.LedgerEntry
	Record              *domain.AdjustmentRecord
	Disposition         domain.Disposition
	State               domain.AccountState
	MandatoryWithdrawal bool
	// NoOp is true when the delta was below epsilon and nothing was posted.
	NoOp bool
}

// Reconcile computes delta = real - recorded under row lock and posts it as
// an ADJUSTMENT when it is not below epsilon, then applies the disposition.
func (uc *ReconciliationUseCase) Reconcile(ctx context.Context, input ReconcileInput) (*ReconciliationResult, error) {
	verr := &domain.ValidationError{}
	if !input.Disposition.IsValid() {
		verr.Add("disposition", "unknown disposition %q", input.Disposition)
	}
	if input.RealBalance.IsNegative() {
		verr.Add("realBalance", "must not be negative")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if input.AttestedBy == "" {
		input.AttestedBy = domain.OperatorID(ctx)
	}

	account, err := uc.accountRepo.GetByID(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	asset, currency, err := reconciliationAsset(account, input.Asset)
	if err != nil {
		return nil, err
	}
	input.Asset = asset

	snapshot, err := uc.snapshots.Build(ctx, []string{currency}, nil)
	if err != nil {
		return nil, err
	}

	var result *ReconciliationResult
	err = uc.retrier.Retry(ctx, func() error {
		var err error
		result, err = uc.reconcileOnce(ctx, input, currency, snapshot)
		return err
	})
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		outcome := "adjusted"
		if result.NoOp {
			outcome = "noop"
		}
		uc.metrics.Reconciliations.WithLabelValues(string(result.Disposition), outcome).Inc()
		uc.metrics.ReconciliationDelta.Observe(result.Delta.Abs().InexactFloat64())
	}

	uc.logger.Info().
		Str("account_id", result.AccountID).
		Str("asset", result.Asset).
		Str("delta", result.Delta.String()).
		Str("disposition", string(result.Disposition)).
		Bool("mandatory_withdrawal", result.MandatoryWithdrawal).
		Msg("account reconciled")

	return result, nil
}

func (uc *ReconciliationUseCase) reconcileOnce(ctx context.Context, input ReconcileInput, currency string, snapshot *domain.RateSnapshot) (*ReconciliationResult, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	account, err := uc.accountRepo.GetByIDForUpdate(txCtx, tx, input.AccountID)
	if err != nil {
		return nil, err
	}
	before := *account

	key := domain.BalanceKey{AccountID: account.ID, Asset: input.Asset}
	balances, err := uc.balanceRepo.GetForUpdate(txCtx, tx, []domain.BalanceKey{key})
	if err != nil {
		return nil, err
	}
	balance := balances[key]

	if input.RealBalance.LessThan(balance.Locked) {
		verr := &domain.ValidationError{}
		verr.Add("realBalance", "%s is below the %s locked by movements in transit", input.RealBalance, balance.Locked)
		return nil, verr
	}

	now := uc.now()
	recorded := balance.Total
	delta := input.RealBalance.Sub(recorded)

	result := &ReconciliationResult{
		AccountID:       account.ID,
		Asset:           input.Asset,
		RecordedBalance: recorded,
		RealBalance:     input.RealBalance,
		Delta:           delta,
		Disposition:     input.Disposition,
		NoOp:            delta.Abs().LessThan(uc.epsilon),
	}

	if !result.NoOp {
		if err := domain.ValidateReason(input.Reason); err != nil {
			verr := &domain.ValidationError{}
			verr.Add("reason", "%s", err.Error())
			return nil, verr
		}

		usd, err := uc.converter.ToUSD(delta, currency, snapshot)
		if err != nil {
			return nil, err
		}

		var coin string
		if account.Type == domain.AccountTypeWallet {
			coin = input.Asset
		}

		entry, record, err := newAdjustment(adjustmentSpec{
			ID:           uc.idGen.Generate(),
			RecordID:     uc.idGen.Generate(),
			Account:      account,
			Asset:        input.Asset,
			Currency:     currency,
			CoinSymbol:   coin,
			Delta:        delta,
			USDDelta:     usd.Amount,
			ReasonCode:   domain.AdjustmentReasonReconciliation,
			Reason:       input.Reason,
			AttestedBy:   input.AttestedBy,
			SnapshotAt:   snapshot.TakenAt,
			UsedFallback: usd.UsedFallback,
			Now:          now,
		})
		if err != nil {
			return nil, err
		}

		if err := uc.entryRepo.Create(txCtx, tx, entry); err != nil {
			return nil, err
		}
		if err := uc.adjustmentRepo.Create(txCtx, tx, record); err != nil {
			return nil, err
		}

		balance.Credit(delta)
		if err := uc.balanceRepo.Update(txCtx, tx, balance); err != nil {
			return nil, err
		}

		result.Adjustment = entry
		result.Record = record
	}

	if input.Disposition.Releases() {
		account.State = domain.AccountStateReleased
	}
	account.MandatoryWithdrawal = domain.RequiresMandatoryWithdrawal(account, balance.Total)
	account.UpdatedAt = now

	if err := uc.accountRepo.UpdateState(txCtx, tx, account); err != nil {
		return nil, err
	}

	result.State = account.State
	result.MandatoryWithdrawal = account.MandatoryWithdrawal

	var adjustmentID string
	if result.Adjustment != nil {
		adjustmentID = result.Adjustment.ID
	}
	if err := emitEvent(txCtx, uc.outboxRepo, tx, uc.idGen.Generate(),
		domain.AggregateTypeAccount, account.ID, domain.EventTypeAccountReconciled,
		domain.AccountReconciledEvent{
			AccountID:           account.ID,
			Asset:               input.Asset,
			Delta:               delta.String(),
			AdjustmentEntryID:   adjustmentID,
			Disposition:         string(input.Disposition),
			MandatoryWithdrawal: account.MandatoryWithdrawal,
		}, now); err != nil {
		return nil, err
	}

	if err := writeAudit(txCtx, uc.auditRepo, tx, uc.idGen.Generate(),
		domain.AuditActionAccountReconcile, domain.ResourceTypeAccount, account.ID, before, result, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return result, nil
}

// reconciliationAsset resolves the balance asset and the currency the
// asset is valued in.
func reconciliationAsset(account *domain.Account, asset string) (string, string, error) {
	asset = domain.NormalizeCode(asset)
	verr := &domain.ValidationError{}

	switch account.Type {
	case domain.AccountTypeInvestor:
		verr.Add("accountId", "investor accounts keep no balance")
	case domain.AccountTypeWallet:
		if asset == "" || !account.SupportsCoin(asset) {
			verr.Add("asset", "wallet %s requires one of its coins", account.ID)
			break
		}
		return asset, domain.USD, nil
	case domain.AccountTypeCashPool:
		if err := domain.ValidateCurrency(asset); err != nil {
			verr.Add("asset", "%s", err.Error())
			break
		}
		return asset, asset, nil
	default:
		if asset != "" && asset != account.Currency {
			verr.Add("asset", "must be the account currency %s", account.Currency)
			break
		}
		return account.Currency, account.Currency, nil
	}

	return "", "", verr
}

