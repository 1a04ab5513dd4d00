package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/nikolayk812/marketplace-checkout/internal/domain"
)

func (h *Handler) ListStates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	states := h.resolver.States(ctx)
	if states == nil {
		states = []domain.State{}
	}
	respondJSON(w, h.log, http.StatusOK, states)
}

// TypePostalCode feeds one keystroke into the debounced lookup. The result is picked up
// later from GetResolution.
func (h *Handler) TypePostalCode(w http.ResponseWriter, r *http.Request) {
	var req postalCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	s := h.session(r)
	s.Postal.Type(req.PostalCode)

	respondJSON(w, h.log, http.StatusAccepted, toResolutionView(s.Postal.Resolution()))
}

func (h *Handler) GetResolution(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.log, http.StatusOK, toResolutionView(h.session(r).Postal.Resolution()))
}

func (h *Handler) SelectState(w http.ResponseWriter, r *http.Request) {
	var req selectStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	req.StateID = strings.TrimSpace(req.StateID)
	if req.StateID == "" {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "state_id is empty")
		return
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	state := domain.State{ID: req.StateID, Name: req.Name}
	if state.Name == "" {
		for _, known := range h.resolver.States(ctx) {
			if known.ID == state.ID {
				state = known
				break
			}
		}
	}

	res := h.session(r).Postal.SelectState(ctx, state)
	respondJSON(w, h.log, http.StatusOK, toResolutionView(res))
}

func (h *Handler) SelectCity(w http.ResponseWriter, r *http.Request) {
	var req selectCityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	res, err := h.session(r).Postal.SelectCity(ctx, req.CityID)
	if err != nil {
		respondErr(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, toResolutionView(res))
}

func (h *Handler) SelectNeighborhood(w http.ResponseWriter, r *http.Request) {
	var req selectNeighborhoodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	res, err := h.session(r).Postal.SelectNeighborhood(req.Name)
	if err != nil {
		respondErr(w, h.log, err)
		return
	}
	respondJSON(w, h.log, http.StatusOK, toResolutionView(res))
}
