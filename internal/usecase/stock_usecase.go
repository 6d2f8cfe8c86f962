package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/infrastructure/metrics"
)

// ConsumptionEvent is stock used in-house. CategoryRef of the embedded event
// is the inventory side; ExpenseCategoryRef is the operational side.
type ConsumptionEvent struct {
	domain.StockEvent
	ExpenseCategoryRef string
}

// PurchaseCorrection amends a recorded purchase. The purchase posting is
// located by its reference.
type PurchaseCorrection struct {
	PurchaseID   string
	ItemRef      string
	NewQuantity  decimal.Decimal
	NewUnitPrice decimal.Decimal
	Date         time.Time // date of the adjustment movement; defaults to the purchase date
	Reason       string
	ActorRef     string
}

// StockResult is the outcome of an inventory event.
type StockResult struct {
	Movement    *domain.StockMovement
	Entries     []*domain.LedgerEntry
	Correction  *domain.CorrectionRecord
	TailBalance decimal.Decimal
}

// StockUseCase records inventory events and their ledger side in one
// transaction.
type StockUseCase struct {
	uow        *unitOfWork
	stock      StockMovementRepository
	store      LedgerStore
	outbox     OutboxRepository
	posting    *PostingUseCase
	linked     *LinkedPostingUseCase
	correction *CorrectionUseCase
	recalc     *Recalculator
	idGen      IDGenerator
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	now        func() time.Time
}

// NewStockUseCase creates a new StockUseCase.
func NewStockUseCase(deps Dependencies, posting *PostingUseCase, linked *LinkedPostingUseCase, correction *CorrectionUseCase, recalc *Recalculator) *StockUseCase {
	return &StockUseCase{
		uow:        newUnitOfWork(deps),
		stock:      deps.Stock,
		store:      deps.Store,
		outbox:     deps.Outbox,
		posting:    posting,
		linked:     linked,
		correction: correction,
		recalc:     recalc,
		idGen:      deps.IDGen,
		metrics:    deps.Metrics,
		logger:     deps.logger(),
		now:        deps.clock(),
	}
}

// RecordPurchase adds stock and posts the purchase as a debit.
func (uc *StockUseCase) RecordPurchase(ctx context.Context, event domain.StockEvent) (*StockResult, error) {
	return uc.record(ctx, domain.StockMovementPurchase, event, func(ctx context.Context, tx Transaction, ev domain.StockEvent, m *domain.StockMovement) ([]*domain.LedgerEntry, error) {
		req := ev.PostingRequest(domain.ReferenceTypePurchase, m.ID)
		req.Debit = ev.Value()
		if err := req.Validate(); err != nil {
			return nil, err
		}
		entry, err := uc.posting.appendEntry(ctx, tx, req, linkTag{})
		if err != nil {
			return nil, err
		}
		return []*domain.LedgerEntry{entry}, nil
	})
}

// RecordSale removes stock and posts the proceeds as a credit tagged
// inventory_sale.
func (uc *StockUseCase) RecordSale(ctx context.Context, event domain.StockEvent) (*StockResult, error) {
	return uc.record(ctx, domain.StockMovementSale, event, func(ctx context.Context, tx Transaction, ev domain.StockEvent, m *domain.StockMovement) ([]*domain.LedgerEntry, error) {
		req := ev.PostingRequest(domain.ReferenceTypeSale, m.ID)
		req.Credit = ev.Value()
		if err := req.Validate(); err != nil {
			return nil, err
		}

		tag := linkTag{correlationID: uc.idGen.Generate(), kind: domain.CorrelationKindInventorySale}
		entry, err := uc.posting.appendEntry(ctx, tx, req, tag)
		if err != nil {
			return nil, err
		}
		if err := checkNetting(tag.kind, entry); err != nil {
			return nil, err
		}
		m.CorrelationID = tag.correlationID
		return []*domain.LedgerEntry{entry}, nil
	})
}

// RecordInternalConsumption removes stock and posts the net-zero pair.
func (uc *StockUseCase) RecordInternalConsumption(ctx context.Context, event ConsumptionEvent) (*StockResult, error) {
	return uc.record(ctx, domain.StockMovementInternalConsumption, event.StockEvent, func(ctx context.Context, tx Transaction, ev domain.StockEvent, m *domain.StockMovement) ([]*domain.LedgerEntry, error) {
		in := InternalConsumptionInput{
			Date:                 ev.Date,
			Amount:               ev.Value(),
			CurrencyCode:         ev.CurrencyCode,
			PaymentMethodRef:     ev.PaymentMethodRef,
			InventoryCategoryRef: ev.CategoryRef,
			ExpenseCategoryRef:   event.ExpenseCategoryRef,
			ActorRef:             ev.ActorRef,
			Description:          ev.Reason,
			Reference:            ev.ReferenceOr(domain.ReferenceTypeStockMovement, m.ID),
		}
		primary, secondary := in.Legs()
		if err := validateLegs(&primary, &secondary, domain.CorrelationKindInternalConsumption); err != nil {
			return nil, err
		}

		legs, correlationID, err := uc.linked.postLinkedTx(ctx, tx, primary, secondary, domain.CorrelationKindInternalConsumption)
		if err != nil {
			return nil, err
		}
		m.CorrelationID = correlationID
		return legs[:], nil
	})
}

// RecordDamage removes stock without any ledger entry.
func (uc *StockUseCase) RecordDamage(ctx context.Context, event domain.StockEvent) (*StockResult, error) {
	return uc.record(ctx, domain.StockMovementDamage, event, nil)
}

// ListMovements returns the movements of one item in date order.
func (uc *StockUseCase) ListMovements(ctx context.Context, itemRef string, limit, offset int) ([]*domain.StockMovement, error) {
	itemRef = strings.TrimSpace(itemRef)
	if itemRef == "" {
		return nil, fmt.Errorf("%w: item reference is required", domain.ErrInvalidStockEvent)
	}
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.stock.ListByItem(ctx, itemRef, limit, offset)
}

// CorrectPurchase books the quantity delta as an adjustment movement and
// corrects the purchase posting to the new value.
func (uc *StockUseCase) CorrectPurchase(ctx context.Context, in PurchaseCorrection) (*StockResult, error) {
	start := time.Now()

	in.PurchaseID = strings.TrimSpace(in.PurchaseID)
	in.Reason = strings.TrimSpace(in.Reason)
	if err := validatePurchaseCorrection(in); err != nil {
		observe(uc.metrics, "correct_purchase", start, err)
		return nil, err
	}

	var result *StockResult
	err := uc.uow.run(ctx, func(ctx context.Context, tx Transaction) error {
		ref := &domain.Reference{Type: domain.ReferenceTypePurchase, ID: in.PurchaseID}
		record, entry, err := uc.correction.correctTx(ctx, tx, CorrectionInput{
			Reference: ref,
			NewDebit:  in.NewQuantity.Mul(in.NewUnitPrice),
			Reason:    in.Reason,
			ActorRef:  in.ActorRef,
		})
		if err != nil {
			return err
		}

		onHand, err := uc.stock.SumQuantityByEntry(ctx, tx, entry.ID)
		if err != nil {
			return fmt.Errorf("sum purchase quantity: %w", err)
		}

		var movement *domain.StockMovement
		if delta := in.NewQuantity.Sub(onHand); !delta.IsZero() {
			date := entry.Date
			if !in.Date.IsZero() {
				date = domain.NormalizeDate(in.Date)
			}
			entryID := entry.ID
			movement = &domain.StockMovement{
				ID:            uc.idGen.Generate(),
				ItemRef:       in.ItemRef,
				Kind:          domain.StockMovementAdjustment,
				Quantity:      delta,
				UnitPrice:     in.NewUnitPrice,
				Date:          date,
				LedgerEntryID: &entryID,
				Reason:        in.Reason,
				ActorRef:      in.ActorRef,
				CreatedAt:     uc.now(),
			}
			if err := uc.stock.Create(ctx, tx, movement); err != nil {
				return fmt.Errorf("record adjustment: %w", err)
			}
		}

		recalc, err := uc.recalc.Recalculate(ctx, tx, entry.Date)
		if err != nil {
			return err
		}

		entries, err := uc.posting.emit(ctx, tx, domain.EventTypeEntryCorrected, entry.ID)
		if err != nil {
			return err
		}

		result = &StockResult{
			Movement:    movement,
			Entries:     entries,
			Correction:  record,
			TailBalance: recalc.Tail,
		}
		return nil
	})
	observe(uc.metrics, "correct_purchase", start, err)
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.EntriesCorrected.Inc()
		uc.metrics.StockEvents.WithLabelValues(string(domain.StockMovementAdjustment)).Inc()
	}
	setTail(uc.metrics, result.TailBalance)
	uc.posting.alerts.evaluate(ctx, result.Entries, result.TailBalance)

	uc.logger.Info().
		Str("purchase_id", in.PurchaseID).
		Int64("entry_id", result.Entries[0].ID).
		Str("delta_base", result.Correction.DeltaBase.String()).
		Msg("purchase corrected")

	return result, nil
}

func validatePurchaseCorrection(in PurchaseCorrection) error {
	if in.PurchaseID == "" {
		return fmt.Errorf("%w: purchase id is required", domain.ErrNoPriorPosting)
	}
	if in.ItemRef == "" {
		return fmt.Errorf("%w: item reference is required", domain.ErrInvalidStockEvent)
	}
	if !in.NewQuantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", domain.ErrInvalidStockEvent)
	}
	if !in.NewUnitPrice.IsPositive() {
		return fmt.Errorf("%w: unit price must be positive", domain.ErrInvalidAmount)
	}
	if in.Reason == "" {
		return domain.ErrReasonRequired
	}
	return nil
}

type ledgerSide func(ctx context.Context, tx Transaction, event domain.StockEvent, movement *domain.StockMovement) ([]*domain.LedgerEntry, error)

// record writes the movement and, when post is set, its ledger entries.
func (uc *StockUseCase) record(ctx context.Context, kind domain.StockMovementKind, event domain.StockEvent, post ledgerSide) (*StockResult, error) {
	op := "stock_" + string(kind)
	start := time.Now()

	event.ItemRef = strings.TrimSpace(event.ItemRef)
	event.CurrencyCode = strings.ToUpper(strings.TrimSpace(event.CurrencyCode))
	if err := event.Validate(kind); err != nil {
		observe(uc.metrics, op, start, err)
		return nil, err
	}
	event.Date = domain.NormalizeDate(event.Date)

	var result *StockResult
	err := uc.uow.run(ctx, func(ctx context.Context, tx Transaction) error {
		movement := &domain.StockMovement{
			ID:        uc.idGen.Generate(),
			ItemRef:   event.ItemRef,
			Kind:      kind,
			Quantity:  signedQuantity(kind, event.Quantity),
			UnitPrice: event.UnitPrice,
			Date:      event.Date,
			Reason:    event.Reason,
			ActorRef:  event.ActorRef,
			CreatedAt: uc.now(),
		}

		result = &StockResult{Movement: movement}

		if post == nil {
			if err := uc.stock.Create(ctx, tx, movement); err != nil {
				return fmt.Errorf("record movement: %w", err)
			}
			tail, err := uc.store.Latest(ctx, tx)
			if err != nil {
				return err
			}
			if tail != nil {
				result.TailBalance = tail.RunningBalance
			}
			return uc.writeMovementEvent(ctx, tx, movement)
		}

		entries, err := post(ctx, tx, event, movement)
		if err != nil {
			return err
		}
		entryID := entries[0].ID
		movement.LedgerEntryID = &entryID
		if err := uc.stock.Create(ctx, tx, movement); err != nil {
			return fmt.Errorf("record movement: %w", err)
		}

		anchor := entries[0].Date
		ids := make([]int64, 0, len(entries))
		for _, e := range entries {
			anchor = domain.MinDate(anchor, e.Date)
			ids = append(ids, e.ID)
		}

		recalc, err := uc.recalc.Recalculate(ctx, tx, anchor)
		if err != nil {
			return err
		}

		result.Entries, err = uc.posting.emit(ctx, tx, domain.EventTypeEntryPosted, ids...)
		if err != nil {
			return err
		}
		result.TailBalance = recalc.Tail
		return nil
	})
	observe(uc.metrics, op, start, err)
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.StockEvents.WithLabelValues(string(kind)).Inc()
	}
	if len(result.Entries) > 0 {
		if kind == domain.StockMovementInternalConsumption && uc.metrics != nil {
			uc.metrics.LinkedPostings.WithLabelValues(string(domain.CorrelationKindInternalConsumption)).Inc()
		}
		uc.posting.afterPost(ctx, result.Entries, result.TailBalance)
	}

	uc.logger.Info().
		Str("movement_id", result.Movement.ID).
		Str("kind", string(kind)).
		Str("item", result.Movement.ItemRef).
		Str("quantity", result.Movement.Quantity.String()).
		Int("entries", len(result.Entries)).
		Msg("stock movement recorded")

	return result, nil
}

func (uc *StockUseCase) writeMovementEvent(ctx context.Context, tx Transaction, m *domain.StockMovement) error {
	if uc.outbox == nil {
		return nil
	}
	return uc.outbox.Create(ctx, tx, &domain.OutboxEvent{
		ID:            uc.idGen.Generate(),
		AggregateID:   m.ID,
		AggregateType: domain.AggregateTypeStock,
		EventType:     domain.EventTypeStockDamaged,
		Payload: map[string]any{
			"item_ref": m.ItemRef,
			"quantity": m.Quantity.String(),
			"date":     m.Date.Format(time.DateOnly),
			"reason":   m.Reason,
		},
		CreatedAt: uc.now(),
	})
}

func signedQuantity(kind domain.StockMovementKind, qty decimal.Decimal) decimal.Decimal {
	switch kind {
	case domain.StockMovementPurchase, domain.StockMovementAdjustment:
		return qty
	default:
		return qty.Neg()
	}
}
