package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/iho/bistroledger/internal/adapter/http/dto"
)

// CurrencyHandler handles currency maintenance.
type CurrencyHandler struct {
	currencies CurrencyService
}

// NewCurrencyHandler creates a new CurrencyHandler.
func NewCurrencyHandler(currencies CurrencyService) *CurrencyHandler {
	return &CurrencyHandler{currencies: currencies}
}

func currencyCode(r *http.Request) string {
	return strings.ToUpper(chi.URLParam(r, "code"))
}

// Create registers a currency.
func (h *CurrencyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateCurrencyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.currencies.Create(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to create currency", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.CurrencyFromDomain(c))
}

// List returns all currencies.
func (h *CurrencyHandler) List(w http.ResponseWriter, r *http.Request) {
	currencies, err := h.currencies.List(r.Context())
	if err != nil {
		writeDomainError(w, "failed to list currencies", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CurrenciesFromDomain(currencies))
}

// Get returns one currency.
func (h *CurrencyHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.currencies.Get(r.Context(), currencyCode(r))
	if err != nil {
		writeDomainError(w, "failed to get currency", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CurrencyFromDomain(c))
}

// SetRate replaces the exchange rate. Posted entries keep their snapshots.
func (h *CurrencyHandler) SetRate(w http.ResponseWriter, r *http.Request) {
	var req dto.SetRateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.currencies.SetRate(r.Context(), currencyCode(r), req.Rate)
	if err != nil {
		writeDomainError(w, "failed to set rate", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CurrencyFromDomain(c))
}

// SetBase makes the currency the single base currency.
func (h *CurrencyHandler) SetBase(w http.ResponseWriter, r *http.Request) {
	c, err := h.currencies.SetAsBase(r.Context(), currencyCode(r))
	if err != nil {
		writeDomainError(w, "failed to set base currency", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CurrencyFromDomain(c))
}

// Deactivate hides the currency from new postings.
func (h *CurrencyHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	c, err := h.currencies.Deactivate(r.Context(), currencyCode(r))
	if err != nil {
		writeDomainError(w, "failed to deactivate currency", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CurrencyFromDomain(c))
}

// Refresh pulls rates from the configured feed.
func (h *CurrencyHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	result, err := h.currencies.RefreshRates(r.Context())
	if err != nil {
		writeDomainError(w, "failed to refresh rates", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RefreshFromDomain(result))
}
