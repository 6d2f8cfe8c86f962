package handler

import (
	"net/http"

	"github.com/iho/bistroledger/internal/adapter/http/dto"
)

// CorrectionHandler handles in-place corrections and their audit trail.
type CorrectionHandler struct {
	corrections CorrectionService
}

// NewCorrectionHandler creates a new CorrectionHandler.
func NewCorrectionHandler(corrections CorrectionService) *CorrectionHandler {
	return &CorrectionHandler{corrections: corrections}
}

// Create corrects a posted entry.
func (h *CorrectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CorrectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.corrections.CorrectPosting(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, "failed to correct entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CorrectionFromDomain(result))
}

// ListByEntry returns the audit records of one entry.
func (h *CorrectionHandler) ListByEntry(w http.ResponseWriter, r *http.Request) {
	id, err := parseEntryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry ID", err.Error())
		return
	}

	records, err := h.corrections.ListCorrections(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to list corrections", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.CorrectionRecordsFromDomain(records))
}
