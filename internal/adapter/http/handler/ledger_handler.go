package handler

import (
	"net/http"

	"github.com/iho/bistroledger/internal/adapter/http/dto"
)

// LedgerHandler handles ledger-wide operations.
type LedgerHandler struct {
	ledger LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledger LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Tail returns the balance after the last entry.
func (h *LedgerHandler) Tail(w http.ResponseWriter, r *http.Request) {
	tail, err := h.ledger.Tail(r.Context())
	if err != nil {
		writeDomainError(w, "failed to read tail balance", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.TailResponse{TailBalance: tail})
}

// CheckConsistency checks if the ledger is consistent. An inconsistent
// ledger answers 409 with the violations.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledger.CheckConsistency(r.Context())
	if err != nil {
		writeDomainError(w, "failed to check consistency", err)
		return
	}

	status := http.StatusOK
	if !report.Consistent {
		status = http.StatusConflict
	}
	writeJSON(w, status, dto.ConsistencyFromDomain(report))
}

// Rebuild replays every running balance from the first entry.
func (h *LedgerHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	result, err := h.ledger.Rebuild(r.Context())
	if err != nil {
		writeDomainError(w, "failed to rebuild balances", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RebuildFromDomain(result))
}
