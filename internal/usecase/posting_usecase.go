package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/infrastructure/metrics"
)

// UpdateEntryInput replaces the financial fields of an existing entry. An
// empty CurrencyCode keeps the entry's currency and its rate snapshot.
type UpdateEntryInput struct {
	ID int64
	domain.PostingRequest
}

// BatchResult is the outcome of a multi-line submission.
type BatchResult struct {
	BatchID     string
	Entries     []*domain.LedgerEntry
	TailBalance decimal.Decimal
}

// DeleteResult lists the removed entries. Deleting one leg of a correlated
// event removes every entry sharing its correlation id.
type DeleteResult struct {
	Deleted     []*domain.LedgerEntry
	TailBalance decimal.Decimal
}

// linkTag carries grouping ids stamped on new entries.
type linkTag struct {
	correlationID string
	kind          domain.CorrelationKind
	batchID       string
}

// PostingUseCase validates and writes single ledger entries, then replays
// balances from the affected date.
type PostingUseCase struct {
	uow        *unitOfWork
	store      LedgerStore
	currencies CurrencyRepository
	outbox     OutboxRepository
	recalc     *Recalculator
	idGen      IDGenerator
	alerts     *alerter
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewPostingUseCase creates a new PostingUseCase.
func NewPostingUseCase(deps Dependencies, recalc *Recalculator) *PostingUseCase {
	return &PostingUseCase{
		uow:        newUnitOfWork(deps),
		store:      deps.Store,
		currencies: deps.Currencies,
		outbox:     deps.Outbox,
		recalc:     recalc,
		idGen:      deps.IDGen,
		alerts:     newAlerter(deps),
		metrics:    deps.Metrics,
		logger:     deps.logger(),
		now:        deps.clock(),
	}
}

// Post validates and appends one entry, then recalculates from its date.
func (uc *PostingUseCase) Post(ctx context.Context, req domain.PostingRequest) (*domain.PostingResult, error) {
	start := time.Now()

	req.Normalize()
	if err := req.Validate(); err != nil {
		observe(uc.metrics, "post", start, err)
		return nil, err
	}

	var result *domain.PostingResult
	err := uc.uow.run(ctx, func(ctx context.Context, tx Transaction) error {
		entry, err := uc.appendEntry(ctx, tx, req, linkTag{})
		if err != nil {
			return err
		}

		recalc, err := uc.recalc.Recalculate(ctx, tx, entry.Date)
		if err != nil {
			return err
		}

		entries, err := uc.emit(ctx, tx, domain.EventTypeEntryPosted, entry.ID)
		if err != nil {
			return err
		}

		result = &domain.PostingResult{Entry: entries[0], TailBalance: recalc.Tail}
		return nil
	})
	observe(uc.metrics, "post", start, err)
	if err != nil {
		return nil, err
	}

	uc.afterPost(ctx, []*domain.LedgerEntry{result.Entry}, result.TailBalance)

	uc.logger.Info().
		Int64("entry_id", result.Entry.ID).
		Str("date", result.Entry.Date.Format(time.DateOnly)).
		Str("amount_base", result.Entry.AmountBase.String()).
		Str("tail", result.TailBalance.String()).
		Msg("entry posted")

	return result, nil
}

// PostBatch posts several lines as one unit of work. All lines share a
// fresh batch id and the replay is anchored once at the earliest line.
func (uc *PostingUseCase) PostBatch(ctx context.Context, lines []domain.PostingRequest) (*BatchResult, error) {
	start := time.Now()

	if err := validateBatch(lines); err != nil {
		observe(uc.metrics, "post_batch", start, err)
		return nil, err
	}

	var result *BatchResult
	err := uc.uow.run(ctx, func(ctx context.Context, tx Transaction) error {
		tag := linkTag{batchID: uc.idGen.Generate()}

		ids := make([]int64, 0, len(lines))
		anchor := lines[0].Date
		for i, line := range lines {
			entry, err := uc.appendEntry(ctx, tx, line, tag)
			if err != nil {
				return fmt.Errorf("line %d: %w", i+1, err)
			}
			ids = append(ids, entry.ID)
			anchor = domain.MinDate(anchor, entry.Date)
		}

		recalc, err := uc.recalc.Recalculate(ctx, tx, anchor)
		if err != nil {
			return err
		}

		entries, err := uc.emit(ctx, tx, domain.EventTypeEntryPosted, ids...)
		if err != nil {
			return err
		}

		result = &BatchResult{BatchID: tag.batchID, Entries: entries, TailBalance: recalc.Tail}
		return nil
	})
	observe(uc.metrics, "post_batch", start, err)
	if err != nil {
		return nil, err
	}

	uc.afterPost(ctx, result.Entries, result.TailBalance)

	uc.logger.Info().
		Str("batch_id", result.BatchID).
		Int("lines", len(result.Entries)).
		Str("tail", result.TailBalance.String()).
		Msg("batch posted")

	return result, nil
}

func validateBatch(lines []domain.PostingRequest) error {
	if len(lines) == 0 {
		return fmt.Errorf("%w: no lines", domain.ErrInvalidBatch)
	}
	if len(lines) > MaxBatchLines {
		return fmt.Errorf("%w: %d lines exceeds limit of %d", domain.ErrInvalidBatch, len(lines), MaxBatchLines)
	}
	for i := range lines {
		lines[i].Normalize()
		if err := lines[i].Validate(); err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
	}
	return nil
}

// Update replaces date and amounts of an entry. The replay is anchored at
// the earlier of the old and new dates since the move can reorder entries
// between them.
func (uc *PostingUseCase) Update(ctx context.Context, input UpdateEntryInput) (*domain.PostingResult, error) {
	start := time.Now()

	req := input.PostingRequest
	req.Normalize()
	if err := req.Validate(); err != nil {
		observe(uc.metrics, "update", start, err)
		return nil, err
	}

	var result *domain.PostingResult
	err := uc.uow.run(ctx, func(ctx context.Context, tx Transaction) error {
		current, err := uc.store.GetByID(ctx, tx, input.ID)
		if err != nil {
			return err
		}
		oldDate := current.Date

		convert := current.SnapshotCurrency()
		code := current.CurrencyCode
		if req.CurrencyCode != "" && req.CurrencyCode != current.CurrencyCode {
			cur, err := uc.resolveCurrency(ctx, tx, req.CurrencyCode)
			if err != nil {
				return err
			}
			convert = cur
			code = cur.Code
		}

		amountBase, err := convert.ToBase(req.Amount())
		if err != nil {
			return err
		}

		now := uc.now()
		updated, err := uc.store.Update(ctx, tx, input.ID, func(e *domain.LedgerEntry) error {
			e.Date = req.Date
			e.ApplyAmounts(req.Credit, req.Debit, code, convert.Rate(), amountBase)
			e.CategoryRef = req.CategoryRef
			e.PaymentMethodRef = req.PaymentMethodRef
			e.Description = req.Description
			if req.ActorRef != "" {
				e.ActorRef = req.ActorRef
			}
			if req.Metadata != nil {
				e.Metadata = req.Metadata
			}
			e.UpdatedAt = now
			return nil
		})
		if err != nil {
			return err
		}
		if err := verifyGroup(ctx, uc.store, tx, updated); err != nil {
			return err
		}

		recalc, err := uc.recalc.Recalculate(ctx, tx, domain.MinDate(oldDate, req.Date))
		if err != nil {
			return err
		}

		entries, err := uc.emit(ctx, tx, domain.EventTypeEntryUpdated, input.ID)
		if err != nil {
			return err
		}

		result = &domain.PostingResult{Entry: entries[0], TailBalance: recalc.Tail}
		return nil
	})
	observe(uc.metrics, "update", start, err)
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesUpdated.Inc()
	}
	setTail(uc.metrics, result.TailBalance)
	uc.alerts.evaluate(ctx, []*domain.LedgerEntry{result.Entry}, result.TailBalance)

	return result, nil
}

// Delete removes an entry, together with any entries sharing its
// correlation id, and replays from the earliest removed date.
func (uc *PostingUseCase) Delete(ctx context.Context, id int64) (*DeleteResult, error) {
	start := time.Now()

	var result *DeleteResult
	err := uc.uow.run(ctx, func(ctx context.Context, tx Transaction) error {
		target, err := uc.store.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}

		group := []*domain.LedgerEntry{target}
		if target.CorrelationID != "" {
			group, err = uc.store.ListByCorrelation(ctx, tx, target.CorrelationID)
			if err != nil {
				return err
			}
		}

		anchor := target.Date
		deleted := make([]*domain.LedgerEntry, 0, len(group))
		for _, entry := range group {
			removed, err := uc.store.Remove(ctx, tx, entry.ID)
			if err != nil {
				return err
			}
			anchor = domain.MinDate(anchor, removed.Date)
			deleted = append(deleted, removed)

			if err := uc.writeEvent(ctx, tx, domain.EventTypeEntryDeleted, removed); err != nil {
				return err
			}
		}

		recalc, err := uc.recalc.Recalculate(ctx, tx, anchor)
		if err != nil {
			return err
		}

		result = &DeleteResult{Deleted: deleted, TailBalance: recalc.Tail}
		return nil
	})
	observe(uc.metrics, "delete", start, err)
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesDeleted.Add(float64(len(result.Deleted)))
	}
	setTail(uc.metrics, result.TailBalance)
	uc.alerts.evaluate(ctx, nil, result.TailBalance)

	uc.logger.Info().
		Int64("entry_id", id).
		Int("removed", len(result.Deleted)).
		Str("tail", result.TailBalance.String()).
		Msg("entry deleted")

	return result, nil
}

// appendEntry converts and appends one validated line. It does not replay
// balances; callers recalculate once after all writes of the unit of work.
func (uc *PostingUseCase) appendEntry(ctx context.Context, tx Transaction, req domain.PostingRequest, tag linkTag) (*domain.LedgerEntry, error) {
	currency, err := uc.resolveCurrency(ctx, tx, req.CurrencyCode)
	if err != nil {
		return nil, err
	}

	amountBase, err := currency.ToBase(req.Amount())
	if err != nil {
		return nil, err
	}

	now := uc.now()
	entry := &domain.LedgerEntry{
		Date:             req.Date,
		CorrelationID:    tag.correlationID,
		CorrelationKind:  tag.kind,
		BatchID:          tag.batchID,
		CategoryRef:      req.CategoryRef,
		PaymentMethodRef: req.PaymentMethodRef,
		ActorRef:         req.ActorRef,
		Description:      req.Description,
		Reference:        req.Reference,
		Metadata:         req.Metadata,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	entry.ApplyAmounts(req.Credit, req.Debit, currency.Code, currency.Rate(), amountBase)

	id, err := uc.store.Append(ctx, tx, entry)
	if err != nil {
		return nil, fmt.Errorf("append entry: %w", err)
	}
	entry.ID = id

	return entry, nil
}

// resolveCurrency returns the active currency for code, or the base
// currency when code is empty.
func (uc *PostingUseCase) resolveCurrency(ctx context.Context, tx Transaction, code string) (*domain.Currency, error) {
	if code == "" {
		base, err := uc.currencies.GetBase(ctx, tx)
		if errors.Is(err, domain.ErrCurrencyNotFound) {
			return nil, domain.ErrNoBaseCurrency
		}
		return base, err
	}

	currency, err := uc.currencies.GetByCode(ctx, tx, code)
	if err != nil {
		return nil, err
	}
	if !currency.IsActive {
		return nil, fmt.Errorf("%w: %s", domain.ErrCurrencyInactive, code)
	}
	return currency, nil
}

// emit reloads entries after recalculation and queues an outbox event for
// each of them.
func (uc *PostingUseCase) emit(ctx context.Context, tx Transaction, eventType string, ids ...int64) ([]*domain.LedgerEntry, error) {
	entries := make([]*domain.LedgerEntry, 0, len(ids))
	for _, id := range ids {
		entry, err := uc.store.GetByID(ctx, tx, id)
		if err != nil {
			return nil, err
		}
		if err := uc.writeEvent(ctx, tx, eventType, entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (uc *PostingUseCase) writeEvent(ctx context.Context, tx Transaction, eventType string, entry *domain.LedgerEntry) error {
	if uc.outbox == nil {
		return nil
	}
	event := domain.NewEntryEvent(uc.idGen.Generate(), eventType, entry, uc.now())
	if err := uc.outbox.Create(ctx, tx, event); err != nil {
		return fmt.Errorf("write outbox event: %w", err)
	}
	return nil
}

// afterPost runs once the unit of work has committed.
func (uc *PostingUseCase) afterPost(ctx context.Context, entries []*domain.LedgerEntry, tail decimal.Decimal) {
	if uc.metrics != nil {
		uc.metrics.EntriesPosted.Add(float64(len(entries)))
		for _, entry := range entries {
			uc.metrics.PostedAmount.Observe(entry.AmountBase.InexactFloat64())
		}
	}
	setTail(uc.metrics, tail)
	uc.alerts.evaluate(ctx, entries, tail)
}
