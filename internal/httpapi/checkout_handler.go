package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nikolayk812/marketplace-checkout/internal/checkout"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
)

type checkoutView struct {
	Navigation navigationView `json:"navigation"`
	Session    sessionView    `json:"session"`
	Cart       *cartView      `json:"cart,omitempty"`
}

// EnterStep navigates to the step in the URL. Unmet preconditions are not errors: the
// response says where the buyer was sent instead.
func (h *Handler) EnterStep(w http.ResponseWriter, r *http.Request) {
	step, err := domain.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_step", err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	s := h.session(r)
	nav := s.Flow.Enter(ctx, step)

	h.respondCheckout(w, s, nav, http.StatusOK)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, h.log, http.StatusOK, toSessionView(h.session(r).Flow.Session()))
}

// SubmitAddress fills the location fields the buyer left empty from the postal code
// resolution before validating.
func (h *Handler) SubmitAddress(w http.ResponseWriter, r *http.Request) {
	var req addressView
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	s := h.session(r)
	addr := req.toDomain()
	if res := s.Postal.Resolution(); res.Resolved() && addr.StateID == "" && addr.CityID == "" {
		addr = res.Apply(addr)
	}

	nav, err := s.Flow.SubmitAddress(ctx, addr)
	if err != nil {
		respondErr(w, h.log, err)
		return
	}

	h.respondCheckout(w, s, nav, http.StatusOK)
}

func (h *Handler) SelectShipping(w http.ResponseWriter, r *http.Request) {
	var req selectShippingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.SellerID == "" || req.CourierID == "" || req.ServiceType == "" {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "seller_id, courier_id and service_type are required")
		return
	}

	s := h.session(r)
	key := domain.MethodKey{SellerID: req.SellerID, CourierID: req.CourierID, ServiceType: req.ServiceType}
	if err := s.Flow.SelectShipping(req.SellerID, key); err != nil {
		respondErr(w, h.log, err)
		return
	}

	h.respondCart(w, s.Store, http.StatusOK)
}

// Confirm pays for the order. A declined payment answers 402 with the message to show;
// the session stays on review.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	s := h.session(r)
	nav, err := s.Flow.Confirm(ctx)
	if err != nil {
		respondErr(w, h.log, err)
		return
	}

	h.respondCheckout(w, s, nav, http.StatusOK)
}

func (h *Handler) respondCheckout(w http.ResponseWriter, s *Session, nav checkout.Navigation, status int) {
	view := checkoutView{
		Navigation: toNavigationView(nav),
		Session:    toSessionView(s.Flow.Session()),
	}
	if cart, err := s.Store.Snapshot(); err == nil {
		cv := toCartView(cart)
		view.Cart = &cv
	}

	respondJSON(w, h.log, status, view)
}
