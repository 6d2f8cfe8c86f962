package handler

import (
	"net/http"
	"time"

	"github.com/iho/bistroledger/internal/adapter/http/dto"
	"github.com/iho/bistroledger/internal/usecase"
)

// EntryHandler handles ledger entry requests.
type EntryHandler struct {
	posting PostingService
	ledger  LedgerService
}

// NewEntryHandler creates a new EntryHandler.
func NewEntryHandler(posting PostingService, ledger LedgerService) *EntryHandler {
	return &EntryHandler{posting: posting, ledger: ledger}
}

// Create posts a single entry.
func (h *EntryHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.PostEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	posting, err := req.ToPostingRequest()
	if err != nil {
		writeDomainError(w, "invalid posting", err)
		return
	}

	result, err := h.posting.Post(r.Context(), posting)
	if err != nil {
		writeDomainError(w, "failed to post entry", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PostingFromDomain(result))
}

// CreateBatch posts several lines atomically.
func (h *EntryHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req dto.PostBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	lines, err := req.ToPostingRequests()
	if err != nil {
		writeDomainError(w, "invalid batch", err)
		return
	}

	result, err := h.posting.PostBatch(r.Context(), lines)
	if err != nil {
		writeDomainError(w, "failed to post batch", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.BatchFromDomain(result))
}

// Get retrieves an entry by ID.
func (h *EntryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseEntryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry ID", err.Error())
		return
	}

	entry, err := h.ledger.GetEntry(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to get entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryFromDomain(entry))
}

// List returns entries dated within ?from=&to= in ledger order.
func (h *EntryHandler) List(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	for key, dst := range map[string]*time.Time{"from": &from, "to": &to} {
		raw := r.URL.Query().Get(key)
		if raw == "" {
			continue
		}
		d, err := dto.ParseDate(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid "+key+" date", err.Error())
			return
		}
		*dst = d
	}

	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	entries, err := h.ledger.ListRange(r.Context(), from, to, limit, offset)
	if err != nil {
		writeDomainError(w, "failed to list entries", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntryListResponse{
		Entries: dto.EntriesFromDomain(entries),
		Limit:   limit,
		Offset:  offset,
	})
}

// Update replaces the amounts and attributes of an entry.
func (h *EntryHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := parseEntryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry ID", err.Error())
		return
	}

	var req dto.PostEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	posting, err := req.ToPostingRequest()
	if err != nil {
		writeDomainError(w, "invalid posting", err)
		return
	}

	result, err := h.posting.Update(r.Context(), usecase.UpdateEntryInput{ID: id, PostingRequest: posting})
	if err != nil {
		writeDomainError(w, "failed to update entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PostingFromDomain(result))
}

// Delete removes an entry and any entries correlated with it.
func (h *EntryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseEntryID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry ID", err.Error())
		return
	}

	result, err := h.posting.Delete(r.Context(), id)
	if err != nil {
		writeDomainError(w, "failed to delete entry", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.DeleteFromDomain(result))
}
