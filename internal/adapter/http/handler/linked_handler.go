package handler

import (
	"net/http"

	"github.com/iho/bistroledger/internal/adapter/http/dto"
	"github.com/iho/bistroledger/internal/domain"
)

// LinkedHandler handles correlated postings.
type LinkedHandler struct {
	linked LinkedPostingService
}

// NewLinkedHandler creates a new LinkedHandler.
func NewLinkedHandler(linked LinkedPostingService) *LinkedHandler {
	return &LinkedHandler{linked: linked}
}

// Create posts two legs under one correlation id.
func (h *LinkedHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.PostLinkedRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	primary, secondary, err := req.ToLegs()
	if err != nil {
		writeDomainError(w, "invalid linked posting", err)
		return
	}

	result, err := h.linked.PostLinked(r.Context(), primary, secondary, domain.CorrelationKind(req.Kind))
	if err != nil {
		writeDomainError(w, "failed to post linked entries", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.LinkedFromDomain(result))
}

// InternalConsumption moves value from inventory into operations.
func (h *LinkedHandler) InternalConsumption(w http.ResponseWriter, r *http.Request) {
	var req dto.InternalConsumptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input, err := req.ToUseCaseInput()
	if err != nil {
		writeDomainError(w, "invalid internal consumption", err)
		return
	}

	result, err := h.linked.PostInternalConsumption(r.Context(), input)
	if err != nil {
		writeDomainError(w, "failed to post internal consumption", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.LinkedFromDomain(result))
}
