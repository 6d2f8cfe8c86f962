package dto

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = time.DateOnly

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of a request.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fields validator.ValidationErrors
	if !errors.As(err, &fields) {
		return err
	}
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", f.Namespace(), f.Tag(), f.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", f.Namespace(), f.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date", domain.ErrInvalidDate, s)
	}
	return t, nil
}

// ReferenceRequest names the business object behind a posting.
type ReferenceRequest struct {
	Type string `json:"type" validate:"required,max=64"`
	ID   string `json:"id"   validate:"required,max=128"`
}

func (r *ReferenceRequest) toDomain() *domain.Reference {
	if r == nil {
		return nil
	}
	return &domain.Reference{Type: r.Type, ID: r.ID}
}

// PostEntryRequest is one ledger line.
type PostEntryRequest struct {
	Date             string            `json:"date"                         validate:"required"`
	Credit           decimal.Decimal   `json:"credit"`
	Debit            decimal.Decimal   `json:"debit"`
	CurrencyCode     string            `json:"currency_code,omitempty"      validate:"omitempty,len=3,alpha"`
	CategoryRef      string            `json:"category_ref,omitempty"       validate:"max=128"`
	PaymentMethodRef string            `json:"payment_method_ref,omitempty" validate:"max=128"`
	ActorRef         string            `json:"actor_ref,omitempty"          validate:"max=128"`
	Description      string            `json:"description,omitempty"        validate:"max=1000"`
	Reference        *ReferenceRequest `json:"reference,omitempty"`
	Metadata         map[string]any    `json:"metadata,omitempty"`
}

// ToPostingRequest converts to the domain request.
func (r *PostEntryRequest) ToPostingRequest() (domain.PostingRequest, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return domain.PostingRequest{}, err
	}
	return domain.PostingRequest{
		Date:             date,
		Credit:           r.Credit,
		Debit:            r.Debit,
		CurrencyCode:     r.CurrencyCode,
		CategoryRef:      r.CategoryRef,
		PaymentMethodRef: r.PaymentMethodRef,
		ActorRef:         r.ActorRef,
		Description:      r.Description,
		Reference:        r.Reference.toDomain(),
		Metadata:         r.Metadata,
	}, nil
}

// PostBatchRequest is a multi-line submission posted atomically.
type PostBatchRequest struct {
	Lines []PostEntryRequest `json:"lines" validate:"required,min=1,dive"`
}

// ToPostingRequests converts every line.
func (r *PostBatchRequest) ToPostingRequests() ([]domain.PostingRequest, error) {
	lines := make([]domain.PostingRequest, len(r.Lines))
	for i := range r.Lines {
		line, err := r.Lines[i].ToPostingRequest()
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		lines[i] = line
	}
	return lines, nil
}

// PostLinkedRequest is a pair of legs sharing one correlation id.
type PostLinkedRequest struct {
	Kind      string           `json:"kind"      validate:"required,oneof=internal_consumption inventory_sale purchase_correction"`
	Primary   PostEntryRequest `json:"primary"`
	Secondary PostEntryRequest `json:"secondary"`
}

// ToLegs converts both legs.
func (r *PostLinkedRequest) ToLegs() (domain.PostingRequest, domain.PostingRequest, error) {
	primary, err := r.Primary.ToPostingRequest()
	if err != nil {
		return domain.PostingRequest{}, domain.PostingRequest{}, fmt.Errorf("primary: %w", err)
	}
	secondary, err := r.Secondary.ToPostingRequest()
	if err != nil {
		return domain.PostingRequest{}, domain.PostingRequest{}, fmt.Errorf("secondary: %w", err)
	}
	return primary, secondary, nil
}

// InternalConsumptionRequest moves value from inventory to operations.
type InternalConsumptionRequest struct {
	Date                 string            `json:"date"                   validate:"required"`
	Amount               decimal.Decimal   `json:"amount"`
	CurrencyCode         string            `json:"currency_code,omitempty" validate:"omitempty,len=3,alpha"`
	PaymentMethodRef     string            `json:"payment_method_ref,omitempty"`
	InventoryCategoryRef string            `json:"inventory_category_ref" validate:"required"`
	ExpenseCategoryRef   string            `json:"expense_category_ref"   validate:"required"`
	ActorRef             string            `json:"actor_ref,omitempty"`
	Description          string            `json:"description,omitempty"  validate:"max=1000"`
	Reference            *ReferenceRequest `json:"reference,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *InternalConsumptionRequest) ToUseCaseInput() (usecase.InternalConsumptionInput, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return usecase.InternalConsumptionInput{}, err
	}
	return usecase.InternalConsumptionInput{
		Date:                 date,
		Amount:               r.Amount,
		CurrencyCode:         r.CurrencyCode,
		PaymentMethodRef:     r.PaymentMethodRef,
		InventoryCategoryRef: r.InventoryCategoryRef,
		ExpenseCategoryRef:   r.ExpenseCategoryRef,
		ActorRef:             r.ActorRef,
		Description:          r.Description,
		Reference:            r.Reference.toDomain(),
	}, nil
}

// CorrectionRequest amends a posted entry in place. The entry is addressed
// by id or by reference.
type CorrectionRequest struct {
	EntryID         int64             `json:"entry_id,omitempty"        validate:"required_without=Reference,gte=0"`
	Reference       *ReferenceRequest `json:"reference,omitempty"       validate:"required_without=EntryID"`
	NewCredit       decimal.Decimal   `json:"new_credit"`
	NewDebit        decimal.Decimal   `json:"new_debit"`
	NewCurrencyCode string            `json:"new_currency_code,omitempty" validate:"omitempty,len=3,alpha"`
	Reason          string            `json:"reason"                    validate:"required,max=1000"`
	ActorRef        string            `json:"actor_ref,omitempty"`
}

// ToUseCaseInput converts to use case input.
func (r *CorrectionRequest) ToUseCaseInput() usecase.CorrectionInput {
	return usecase.CorrectionInput{
		EntryID:         r.EntryID,
		Reference:       r.Reference.toDomain(),
		NewCredit:       r.NewCredit,
		NewDebit:        r.NewDebit,
		NewCurrencyCode: r.NewCurrencyCode,
		Reason:          r.Reason,
		ActorRef:        r.ActorRef,
	}
}

// CreateCurrencyRequest registers a currency.
type CreateCurrencyRequest struct {
	Code   string          `json:"code"    validate:"required,len=3,alpha"`
	Symbol string          `json:"symbol"  validate:"max=8"`
	Name   string          `json:"name"    validate:"required,max=64"`
	Rate   decimal.Decimal `json:"exchange_rate"`
	IsBase bool            `json:"is_base"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateCurrencyRequest) ToUseCaseInput() usecase.CreateCurrencyInput {
	return usecase.CreateCurrencyInput{
		Code:   r.Code,
		Symbol: r.Symbol,
		Name:   r.Name,
		Rate:   r.Rate,
		IsBase: r.IsBase,
	}
}

// SetRateRequest replaces the exchange rate of a non-base currency.
type SetRateRequest struct {
	Rate decimal.Decimal `json:"exchange_rate"`
}

// StockEventRequest is an inventory event.
type StockEventRequest struct {
	ItemRef          string            `json:"item_ref"                     validate:"required,max=128"`
	Quantity         decimal.Decimal   `json:"quantity"`
	UnitPrice        decimal.Decimal   `json:"unit_price"`
	Date             string            `json:"date"                         validate:"required"`
	CurrencyCode     string            `json:"currency_code,omitempty"      validate:"omitempty,len=3,alpha"`
	CategoryRef      string            `json:"category_ref,omitempty"`
	PaymentMethodRef string            `json:"payment_method_ref,omitempty"`
	ActorRef         string            `json:"actor_ref,omitempty"`
	Reason           string            `json:"reason,omitempty"             validate:"max=1000"`
	Reference        *ReferenceRequest `json:"reference,omitempty"`
}

// ToStockEvent converts to the domain event.
func (r *StockEventRequest) ToStockEvent() (domain.StockEvent, error) {
	date, err := ParseDate(r.Date)
	if err != nil {
		return domain.StockEvent{}, err
	}
	return domain.StockEvent{
		ItemRef:          r.ItemRef,
		Quantity:         r.Quantity,
		UnitPrice:        r.UnitPrice,
		Date:             date,
		CurrencyCode:     r.CurrencyCode,
		CategoryRef:      r.CategoryRef,
		PaymentMethodRef: r.PaymentMethodRef,
		ActorRef:         r.ActorRef,
		Reason:           r.Reason,
		Reference:        r.Reference.toDomain(),
	}, nil
}

// ConsumptionRequest is stock used in-house.
type ConsumptionRequest struct {
	StockEventRequest
	ExpenseCategoryRef string `json:"expense_category_ref" validate:"required"`
}

// ToUseCaseInput converts to use case input.
func (r *ConsumptionRequest) ToUseCaseInput() (usecase.ConsumptionEvent, error) {
	ev, err := r.ToStockEvent()
	if err != nil {
		return usecase.ConsumptionEvent{}, err
	}
	return usecase.ConsumptionEvent{StockEvent: ev, ExpenseCategoryRef: r.ExpenseCategoryRef}, nil
}

// PurchaseCorrectionRequest amends a recorded purchase.
type PurchaseCorrectionRequest struct {
	PurchaseID   string          `json:"purchase_id"    validate:"required"`
	ItemRef      string          `json:"item_ref"       validate:"required"`
	NewQuantity  decimal.Decimal `json:"new_quantity"`
	NewUnitPrice decimal.Decimal `json:"new_unit_price"`
	Date         string          `json:"date,omitempty"`
	Reason       string          `json:"reason"         validate:"required,max=1000"`
	ActorRef     string          `json:"actor_ref,omitempty"`
}

// ToUseCaseInput converts to use case input. An empty date keeps the
// purchase date.
func (r *PurchaseCorrectionRequest) ToUseCaseInput() (usecase.PurchaseCorrection, error) {
	var date time.Time
	if r.Date != "" {
		d, err := ParseDate(r.Date)
		if err != nil {
			return usecase.PurchaseCorrection{}, err
		}
		date = d
	}
	return usecase.PurchaseCorrection{
		PurchaseID:   r.PurchaseID,
		ItemRef:      r.ItemRef,
		NewQuantity:  r.NewQuantity,
		NewUnitPrice: r.NewUnitPrice,
		Date:         date,
		Reason:       r.Reason,
		ActorRef:     r.ActorRef,
	}, nil
}
