package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/infrastructure/metrics"
)

// LinkedPostingResult holds both legs of a dual-entry posting.
type LinkedPostingResult struct {
	CorrelationID string
	Kind          domain.CorrelationKind
	Primary       *domain.LedgerEntry
	Secondary     *domain.LedgerEntry
	TailBalance   decimal.Decimal
}

// InternalConsumptionInput describes stock moved from inventory into
// operations, e.g. ingredients used by the kitchen.
type InternalConsumptionInput struct {
	Date                 time.Time
	Amount               decimal.Decimal
	CurrencyCode         string
	PaymentMethodRef     string
	InventoryCategoryRef string
	ExpenseCategoryRef   string
	ActorRef             string
	Description          string
	Reference            *domain.Reference
}

// Legs builds the inventory-side credit and the operational-side debit.
func (in InternalConsumptionInput) Legs() (domain.PostingRequest, domain.PostingRequest) {
	primary := domain.PostingRequest{
		Date:             in.Date,
		Credit:           in.Amount,
		CurrencyCode:     in.CurrencyCode,
		CategoryRef:      in.InventoryCategoryRef,
		PaymentMethodRef: in.PaymentMethodRef,
		ActorRef:         in.ActorRef,
		Description:      in.Description,
		Reference:        in.Reference,
	}
	secondary := primary
	secondary.Credit = decimal.Zero
	secondary.Debit = in.Amount
	secondary.CategoryRef = in.ExpenseCategoryRef
	return primary, secondary
}

// LinkedPostingUseCase posts two legs of one business event atomically.
type LinkedPostingUseCase struct {
	uow     *unitOfWork
	posting *PostingUseCase
	recalc  *Recalculator
	idGen   IDGenerator
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewLinkedPostingUseCase creates a new LinkedPostingUseCase.
func NewLinkedPostingUseCase(deps Dependencies, posting *PostingUseCase, recalc *Recalculator) *LinkedPostingUseCase {
	return &LinkedPostingUseCase{
		uow:     newUnitOfWork(deps),
		posting: posting,
		recalc:  recalc,
		idGen:   deps.IDGen,
		metrics: deps.Metrics,
		logger:  deps.logger(),
	}
}

// PostLinked posts primary and secondary under one fresh correlation id. If
// either leg fails, neither is kept.
func (uc *LinkedPostingUseCase) PostLinked(ctx context.Context, primary, secondary domain.PostingRequest, kind domain.CorrelationKind) (*LinkedPostingResult, error) {
	start := time.Now()

	if err := validateLegs(&primary, &secondary, kind); err != nil {
		observe(uc.metrics, "post_linked", start, err)
		return nil, err
	}

	var result *LinkedPostingResult
	err := uc.uow.run(ctx, func(ctx context.Context, tx Transaction) error {
		legs, correlationID, err := uc.postLinkedTx(ctx, tx, primary, secondary, kind)
		if err != nil {
			return err
		}

		recalc, err := uc.recalc.Recalculate(ctx, tx, domain.MinDate(legs[0].Date, legs[1].Date))
		if err != nil {
			return err
		}

		entries, err := uc.posting.emit(ctx, tx, domain.EventTypeEntryPosted, legs[0].ID, legs[1].ID)
		if err != nil {
			return err
		}

		result = &LinkedPostingResult{
			CorrelationID: correlationID,
			Kind:          kind,
			Primary:       entries[0],
			Secondary:     entries[1],
			TailBalance:   recalc.Tail,
		}
		return nil
	})
	observe(uc.metrics, "post_linked", start, err)
	if err != nil {
		return nil, err
	}

	if uc.metrics != nil {
		uc.metrics.LinkedPostings.WithLabelValues(string(kind)).Inc()
	}
	uc.posting.afterPost(ctx, []*domain.LedgerEntry{result.Primary, result.Secondary}, result.TailBalance)

	uc.logger.Info().
		Str("correlation_id", result.CorrelationID).
		Str("kind", string(kind)).
		Int64("primary_id", result.Primary.ID).
		Int64("secondary_id", result.Secondary.ID).
		Msg("linked entries posted")

	return result, nil
}

// PostInternalConsumption posts the net-zero pair for stock consumed
// internally.
func (uc *LinkedPostingUseCase) PostInternalConsumption(ctx context.Context, in InternalConsumptionInput) (*LinkedPostingResult, error) {
	primary, secondary := in.Legs()
	return uc.PostLinked(ctx, primary, secondary, domain.CorrelationKindInternalConsumption)
}

func validateLegs(primary, secondary *domain.PostingRequest, kind domain.CorrelationKind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidCorrelation, kind)
	}
	primary.Normalize()
	secondary.Normalize()
	if err := primary.Validate(); err != nil {
		return fmt.Errorf("primary leg: %w", err)
	}
	if err := secondary.Validate(); err != nil {
		return fmt.Errorf("secondary leg: %w", err)
	}
	if kind.NetsToZero() && !primary.Date.Equal(secondary.Date) {
		return fmt.Errorf("%w: %s legs must share a date", domain.ErrUnbalancedLink, kind)
	}
	return nil
}

// postLinkedTx appends both legs inside tx without replaying balances.
func (uc *LinkedPostingUseCase) postLinkedTx(ctx context.Context, tx Transaction, primary, secondary domain.PostingRequest, kind domain.CorrelationKind) ([2]*domain.LedgerEntry, string, error) {
	var legs [2]*domain.LedgerEntry
	tag := linkTag{correlationID: uc.idGen.Generate(), kind: kind}

	first, err := uc.posting.appendEntry(ctx, tx, primary, tag)
	if err != nil {
		return legs, "", fmt.Errorf("primary leg: %w", err)
	}
	second, err := uc.posting.appendEntry(ctx, tx, secondary, tag)
	if err != nil {
		return legs, "", fmt.Errorf("secondary leg: %w", err)
	}
	legs[0], legs[1] = first, second

	if err := checkNetting(kind, first, second); err != nil {
		return legs, "", err
	}

	return legs, tag.correlationID, nil
}

// checkNetting enforces the per-kind net effect on the cash balance, using
// converted base amounts.
func checkNetting(kind domain.CorrelationKind, legs ...*domain.LedgerEntry) error {
	net := decimal.Zero
	for _, leg := range legs {
		net = net.Add(leg.SignedBase())
	}

	switch kind {
	case domain.CorrelationKindInternalConsumption:
		if !net.IsZero() {
			return fmt.Errorf("%w: %s legs net to %s", domain.ErrUnbalancedLink, kind, net)
		}
	case domain.CorrelationKindInventorySale:
		if !net.IsPositive() {
			return fmt.Errorf("%w: %s legs must increase cash, net %s", domain.ErrUnbalancedLink, kind, net)
		}
	}
	return nil
}

// verifyGroup re-checks the group of a linked entry after one of its legs
// changed. Groups that must net to zero reject a one-sided change of amount
// or date.
func verifyGroup(ctx context.Context, store LedgerStore, tx Transaction, entry *domain.LedgerEntry) error {
	if entry.CorrelationID == "" || !entry.CorrelationKind.NetsToZero() {
		return nil
	}

	group, err := store.ListByCorrelation(ctx, tx, entry.CorrelationID)
	if err != nil {
		return err
	}
	for _, leg := range group {
		if !leg.Date.Equal(entry.Date) {
			return fmt.Errorf("%w: %s legs must share a date", domain.ErrUnbalancedLink, entry.CorrelationKind)
		}
	}
	return checkNetting(entry.CorrelationKind, group...)
}
