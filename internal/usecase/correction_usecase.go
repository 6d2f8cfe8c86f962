package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/infrastructure/metrics"
)

// CorrectionInput amends a posted entry in place. The target is either an
// explicit EntryID or the latest entry carrying Reference.
type CorrectionInput struct {
	EntryID         int64
	Reference       *domain.Reference
	NewCredit       decimal.Decimal
	NewDebit        decimal.Decimal
	NewCurrencyCode string // empty keeps the entry's currency and snapshot
	Reason          string
	ActorRef        string
}

// CorrectionResult is the audit record plus the corrected entry.
type CorrectionResult struct {
	Record      *domain.CorrectionRecord
	Entry       *domain.LedgerEntry
	TailBalance decimal.Decimal
}

// CorrectionUseCase amends posted entries without creating new ones.
type CorrectionUseCase struct {
	uow         *unitOfWork
	store       LedgerStore
	corrections CorrectionRepository
	posting     *PostingUseCase
	recalc      *Recalculator
	idGen       IDGenerator
	metrics     *metrics.Metrics
	logger      zerolog.Logger
	now         func() time.Time
}

// NewCorrectionUseCase creates a new CorrectionUseCase.
func NewCorrectionUseCase(deps Dependencies, posting *PostingUseCase, recalc *Recalculator) *CorrectionUseCase {
	return &CorrectionUseCase{
		uow:         newUnitOfWork(deps),
		store:       deps.Store,
		corrections: deps.Corrections,
		posting:     posting,
		recalc:      recalc,
		idGen:       deps.IDGen,
		metrics:     deps.Metrics,
		logger:      deps.logger(),
		now:         deps.clock(),
	}
}

// CorrectPosting records the correction, rewrites the entry's amounts
// keeping its id, date and correlation, and replays from its date.
func (uc *CorrectionUseCase) CorrectPosting(ctx context.Context, in CorrectionInput) (*CorrectionResult, error) {
	start := time.Now()

	if err := validateCorrection(&in); err != nil {
		observe(uc.metrics, "correct", start, err)
		return nil, err
	}

	var result *CorrectionResult
	err := uc.uow.run(ctx, func(ctx context.Context, tx Transaction) error {
		record, entry, err := uc.correctTx(ctx, tx, in)
		if err != nil {
			return err
		}

		recalc, err := uc.recalc.Recalculate(ctx, tx, entry.Date)
		if err != nil {
			return err
		}

		entries, err := uc.posting.emit(ctx, tx, domain.EventTypeEntryCorrected, entry.ID)
		if err != nil {
			return err
		}

		result = &CorrectionResult{Record: record, Entry: entries[0], TailBalance: recalc.Tail}
		return nil
	})
	observe(uc.metrics, "correct", start, err)
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesCorrected.Inc()
	}
	setTail(uc.metrics, result.TailBalance)
	uc.posting.alerts.evaluate(ctx, []*domain.LedgerEntry{result.Entry}, result.TailBalance)

	uc.logger.Info().
		Int64("entry_id", result.Entry.ID).
		Str("delta_base", result.Record.DeltaBase.String()).
		Str("actor", result.Record.ActorRef).
		Msg("entry corrected")

	return result, nil
}

// ListCorrections returns the correction trail of an entry, oldest first.
func (uc *CorrectionUseCase) ListCorrections(ctx context.Context, entryID int64) ([]*domain.CorrectionRecord, error) {
	return uc.corrections.ListByEntry(ctx, entryID)
}

func validateCorrection(in *CorrectionInput) error {
	in.Reason = strings.TrimSpace(in.Reason)
	in.NewCurrencyCode = strings.ToUpper(strings.TrimSpace(in.NewCurrencyCode))

	if err := domain.ValidateSides(in.NewCredit, in.NewDebit); err != nil {
		return err
	}
	if in.NewCredit.IsPositive() {
		if err := domain.ValidateAmount(in.NewCredit); err != nil {
			return err
		}
	} else if err := domain.ValidateAmount(in.NewDebit); err != nil {
		return err
	}
	if in.NewCurrencyCode != "" {
		if err := domain.ValidateCurrency(in.NewCurrencyCode); err != nil {
			return err
		}
	}
	if in.Reason == "" {
		return domain.ErrReasonRequired
	}
	return nil
}

// correctTx applies the correction inside tx without replaying balances.
func (uc *CorrectionUseCase) correctTx(ctx context.Context, tx Transaction, in CorrectionInput) (*domain.CorrectionRecord, *domain.LedgerEntry, error) {
	target, err := uc.locate(ctx, tx, in)
	if err != nil {
		return nil, nil, err
	}

	convert := target.SnapshotCurrency()
	code := target.CurrencyCode
	if in.NewCurrencyCode != "" && in.NewCurrencyCode != target.CurrencyCode {
		cur, err := uc.posting.resolveCurrency(ctx, tx, in.NewCurrencyCode)
		if err != nil {
			return nil, nil, err
		}
		convert = cur
		code = cur.Code
	}

	amount := in.NewCredit
	if !amount.IsPositive() {
		amount = in.NewDebit
	}
	amountBase, err := convert.ToBase(amount)
	if err != nil {
		return nil, nil, err
	}

	now := uc.now()
	before := target.Clone()
	after, err := uc.store.Update(ctx, tx, target.ID, func(e *domain.LedgerEntry) error {
		e.ApplyAmounts(in.NewCredit, in.NewDebit, code, convert.Rate(), amountBase)
		e.CorrectionCount++
		e.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if err := verifyGroup(ctx, uc.store, tx, after); err != nil {
		return nil, nil, err
	}

	record := domain.NewCorrectionRecord(uc.idGen.Generate(), before, after, in.Reason, in.ActorRef, now)
	if err := uc.corrections.Create(ctx, tx, record); err != nil {
		return nil, nil, fmt.Errorf("record correction: %w", err)
	}

	return record, after, nil
}

// locate finds the entry to correct through an explicit id or reference.
func (uc *CorrectionUseCase) locate(ctx context.Context, tx Transaction, in CorrectionInput) (*domain.LedgerEntry, error) {
	var (
		entry *domain.LedgerEntry
		err   error
	)

	switch {
	case in.EntryID > 0:
		entry, err = uc.store.GetByID(ctx, tx, in.EntryID)
	case !in.Reference.IsZero():
		entry, err = uc.store.FindLatestByReference(ctx, tx, *in.Reference)
	default:
		return nil, fmt.Errorf("%w: no entry id or reference given", domain.ErrNoPriorPosting)
	}

	if errors.Is(err, domain.ErrEntryNotFound) {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoPriorPosting, err)
	}
	return entry, err
}
