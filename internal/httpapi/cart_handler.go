package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nikolayk812/marketplace-checkout/internal/address"
	"github.com/nikolayk812/marketplace-checkout/internal/cartstore"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/currency"
)

// Handler serves the cart, checkout and address endpoints of one process. Each request is
// routed to the session of its bearer token.
type Handler struct {
	sessions *Sessions
	resolver *address.Resolver
	timeout  time.Duration
	log      logrus.FieldLogger
}

func NewHandler(sessions *Sessions, resolver *address.Resolver, timeout time.Duration, log logrus.FieldLogger) *Handler {
	return &Handler{
		sessions: sessions,
		resolver: resolver,
		timeout:  timeout,
		log:      log,
	}
}

func (h *Handler) session(r *http.Request) *Session {
	return h.sessions.Get(tokenFromContext(r.Context()))
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	store := h.session(r).Store

	cart, err := store.Load(ctx)
	if errors.Is(err, cartstore.ErrClosed) {
		respondErr(w, h.log, err)
		return
	}
	if err != nil {
		// the local copy is still good for display
		h.log.WithError(err).Warn("load cart, serving local copy")
		if cart, err = store.Snapshot(); err != nil {
			respondErr(w, h.log, err)
			return
		}
	}

	respondJSON(w, h.log, http.StatusOK, toCartView(cart))
}

func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	seller, line, err := req.toDomain()
	if err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	store := h.session(r).Store
	if err := store.AddOrUpdateLine(seller, line); err != nil {
		respondErr(w, h.log, err)
		return
	}

	h.respondCart(w, store, http.StatusCreated)
}

func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	sellerID, productID, ok := h.lineParams(w, r)
	if !ok {
		return
	}

	var req quantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity < 0 {
		respondError(w, h.log, http.StatusBadRequest, "invalid_quantity", "quantity must not be negative")
		return
	}

	store := h.session(r).Store
	if err := store.SetQuantity(sellerID, productID, req.Quantity); err != nil {
		respondErr(w, h.log, err)
		return
	}

	h.respondCart(w, store, http.StatusOK)
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sellerID, productID, ok := h.lineParams(w, r)
	if !ok {
		return
	}

	store := h.session(r).Store
	removed, err := store.RemoveLine(sellerID, productID)
	if err != nil {
		respondErr(w, h.log, err)
		return
	}
	if !removed {
		respondError(w, h.log, http.StatusNotFound, "not_found", domain.ErrLineNotFound.Error())
		return
	}

	h.respondCart(w, store, http.StatusOK)
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	if !h.sessions.End(tokenFromContext(r.Context())) {
		respondError(w, h.log, http.StatusNotFound, "not_found", "no active session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondCart(w http.ResponseWriter, store *cartstore.Store, status int) {
	cart, err := store.Snapshot()
	if err != nil {
		respondErr(w, h.log, err)
		return
	}
	respondJSON(w, h.log, status, toCartView(cart))
}

func (h *Handler) lineParams(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	sellerID := chi.URLParam(r, "seller_id")
	if sellerID == "" {
		respondError(w, h.log, http.StatusBadRequest, "invalid_seller_id", "seller_id is empty")
		return "", uuid.Nil, false
	}

	productID, err := uuid.Parse(chi.URLParam(r, "product_id"))
	if err != nil {
		respondError(w, h.log, http.StatusBadRequest, "invalid_product_id", "product_id must be a UUID")
		return "", uuid.Nil, false
	}

	return sellerID, productID, true
}

func (req addItemRequest) toDomain() (domain.Seller, domain.LineItem, error) {
	if req.Seller.ID == "" {
		return domain.Seller{}, domain.LineItem{}, fmt.Errorf("seller.id is empty")
	}
	if req.ProductID == uuid.Nil {
		return domain.Seller{}, domain.LineItem{}, fmt.Errorf("product_id is empty")
	}
	if req.Quantity < 1 {
		return domain.Seller{}, domain.LineItem{}, fmt.Errorf("quantity must be positive")
	}

	cur, err := currency.ParseISO(req.UnitPrice.Currency)
	if err != nil {
		return domain.Seller{}, domain.LineItem{}, fmt.Errorf("unit_price.currency: %w", err)
	}
	amount, err := parseDecimal(req.UnitPrice.Amount)
	if err != nil {
		return domain.Seller{}, domain.LineItem{}, fmt.Errorf("unit_price.amount: %w", err)
	}
	if amount.IsNegative() {
		return domain.Seller{}, domain.LineItem{}, fmt.Errorf("unit_price.amount is negative")
	}

	weight, err := parseDecimal(req.Weight)
	if err != nil {
		return domain.Seller{}, domain.LineItem{}, fmt.Errorf("weight: %w", err)
	}
	length, err := parseDecimal(req.Dimensions.Length)
	if err != nil {
		return domain.Seller{}, domain.LineItem{}, fmt.Errorf("dimensions.length: %w", err)
	}
	width, err := parseDecimal(req.Dimensions.Width)
	if err != nil {
		return domain.Seller{}, domain.LineItem{}, fmt.Errorf("dimensions.width: %w", err)
	}
	height, err := parseDecimal(req.Dimensions.Height)
	if err != nil {
		return domain.Seller{}, domain.LineItem{}, fmt.Errorf("dimensions.height: %w", err)
	}

	seller := domain.Seller{ID: req.Seller.ID, Name: req.Seller.Name, Location: req.Seller.Location}
	line := domain.LineItem{
		ProductID:  req.ProductID,
		Name:       req.Name,
		UnitPrice:  domain.NewMoney(amount, cur),
		Quantity:   req.Quantity,
		Weight:     weight,
		Dimensions: domain.Dimensions{Length: length, Width: width, Height: height},
	}

	return seller, line, nil
}
