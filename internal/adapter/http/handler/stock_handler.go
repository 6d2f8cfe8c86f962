package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bistroledger/internal/adapter/http/dto"
	"github.com/iho/bistroledger/internal/domain"
	"github.com/iho/bistroledger/internal/usecase"
)

// StockHandler handles inventory events.
type StockHandler struct {
	stock StockService
}

// NewStockHandler creates a new StockHandler.
func NewStockHandler(stock StockService) *StockHandler {
	return &StockHandler{stock: stock}
}

type stockRecorder func(ctx context.Context, event domain.StockEvent) (*usecase.StockResult, error)

func (h *StockHandler) handleEvent(w http.ResponseWriter, r *http.Request, record stockRecorder, what string) {
	var req dto.StockEventRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := req.ToStockEvent()
	if err != nil {
		writeDomainError(w, "invalid "+what, err)
		return
	}

	result, err := record(r.Context(), event)
	if err != nil {
		writeDomainError(w, "failed to record "+what, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.StockFromDomain(result))
}

// Purchase records stock bought from a supplier.
func (h *StockHandler) Purchase(w http.ResponseWriter, r *http.Request) {
	h.handleEvent(w, r, h.stock.RecordPurchase, "purchase")
}

// Sale records stock sold to customers.
func (h *StockHandler) Sale(w http.ResponseWriter, r *http.Request) {
	h.handleEvent(w, r, h.stock.RecordSale, "sale")
}

// Damage records a write-down. It never touches the ledger.
func (h *StockHandler) Damage(w http.ResponseWriter, r *http.Request) {
	h.handleEvent(w, r, h.stock.RecordDamage, "damage")
}

// Consumption records stock used in-house.
func (h *StockHandler) Consumption(w http.ResponseWriter, r *http.Request) {
	var req dto.ConsumptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid consumption", err)
		return
	}

	result, err := h.stock.RecordInternalConsumption(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to record consumption", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.StockFromDomain(result))
}

// CorrectPurchase amends a recorded purchase.
func (h *StockHandler) CorrectPurchase(w http.ResponseWriter, r *http.Request) {
	var req dto.PurchaseCorrectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid purchase correction", err)
		return
	}

	result, err := h.stock.CorrectPurchase(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to correct purchase", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StockFromDomain(result))
}

// ListMovements returns the movements of one item.
func (h *StockHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	movements, err := h.stock.ListMovements(r.Context(), chi.URLParam(r, "ref"), limit, offset)
	if err != nil {
		writeDomainError(w, "failed to list movements", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.StockMovementsFromDomain(movements))
}
