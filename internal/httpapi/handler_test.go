package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/marketplace-checkout/internal/address"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/metrics"
	"github.com/nikolayk812/marketplace-checkout/internal/payment"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/text/currency"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCartAPI struct {
	mu   sync.Mutex
	cart domain.Cart
}

func (f *fakeCartAPI) GetCart(context.Context, string) (domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart.Clone(), nil
}

func (f *fakeCartAPI) AddItem(_ context.Context, _ string, seller domain.Seller, item domain.LineItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart.AddOrUpdateLine(seller, item)
}

func (f *fakeCartAPI) RemoveItem(_ context.Context, _ string, sellerID string, productID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart.RemoveLine(sellerID, productID)
}

func (f *fakeCartAPI) SaveShippingAddress(_ context.Context, _ string, addr domain.ShippingAddress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cart.Address = addr
	return nil
}

func (f *fakeCartAPI) UpdateOrder(context.Context, string, domain.OrderUpdate) error {
	return nil
}

type fakeQuotes struct {
	quotes map[string][]domain.ShippingMethod
}

func (f *fakeQuotes) Quote(context.Context, domain.ShippingAddress, []domain.SellerGroup) (map[string][]domain.ShippingMethod, error) {
	return f.quotes, nil
}

type fakeAuthority struct {
	mu     sync.Mutex
	result port.ConfirmResult
}

func (f *fakeAuthority) CreateIntent(context.Context, domain.Money, map[string]string, string) (port.IntentHandle, error) {
	return port.IntentHandle{ID: "pi_1", ClientSecret: "pi_1_secret"}, nil
}

func (f *fakeAuthority) Confirm(context.Context, string) (port.ConfirmResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, nil
}

type fakeGeo struct {
	byCode map[string][]domain.Neighborhood
	cities map[string][]domain.City
}

func (f *fakeGeo) NeighborhoodsByPostalCode(_ context.Context, code string) ([]domain.Neighborhood, error) {
	return f.byCode[code], nil
}

func (f *fakeGeo) NeighborhoodsByCity(_ context.Context, city string) ([]domain.Neighborhood, error) {
	var out []domain.Neighborhood
	for _, nbs := range f.byCode {
		for _, n := range nbs {
			if address.SameName(n.MunicipalityName, city) {
				out = append(out, n)
			}
		}
	}
	return out, nil
}

func (f *fakeGeo) States(context.Context) ([]domain.State, error) {
	return []domain.State{cdmx}, nil
}

func (f *fakeGeo) Cities(_ context.Context, stateID string) ([]domain.City, error) {
	return f.cities[stateID], nil
}

func mxn(amount int64) domain.Money {
	return domain.NewMoney(decimal.NewFromInt(amount), currency.MXN)
}

var (
	cdmx       = domain.State{ID: "09", Name: "Ciudad de México"}
	cuauhtemoc = domain.City{ID: "09015", Name: "Cuauhtémoc", StateID: "09"}
	juarez     = domain.Neighborhood{
		Name: "Juárez", PostalCode: "06600",
		MunicipalityID: "015", MunicipalityName: "Cuauhtémoc",
		CityID: "09015", CityName: "Ciudad de México",
		StateID: "09", StateName: "Ciudad de México",
	}

	sellerA = domain.Seller{ID: "A", Name: "Seller A"}
	lampID  = uuid.MustParse("0b8e3d4c-8c55-4c5e-9f3e-1a2b3c4d5e6f")
	dhlA    = domain.ShippingMethod{SellerID: "A", CourierID: "dhl", ServiceType: "express", Price: mxn(20)}

	validAddress = domain.ShippingAddress{
		Name:           "Ana",
		LastName:       "López",
		Email:          "ana@example.com",
		Phone:          "5512345678",
		Street:         "Av. Reforma",
		ExteriorNumber: "222",
		PostalCode:     "06600",
		Neighborhood:   "Juárez",
		CityID:         "09015",
		CityName:       "Cuauhtémoc",
		StateID:        "09",
		StateName:      "Ciudad de México",
		Country:        domain.Country,
	}
)

type fixture struct {
	router    http.Handler
	sessions  *Sessions
	carts     *fakeCartAPI
	authority *fakeAuthority
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	server := domain.NewCart("owner-1", currency.MXN)
	require.NoError(t, server.AddOrUpdateLine(sellerA, domain.LineItem{ProductID: lampID, Name: "Lamp", UnitPrice: mxn(100), Quantity: 1}))
	server.Address = validAddress

	log, _ := test.NewNullLogger()
	geo := &fakeGeo{
		byCode: map[string][]domain.Neighborhood{"06600": {juarez}},
		cities: map[string][]domain.City{"09": {cuauhtemoc}},
	}
	resolver := address.NewResolver(geo, geo, log)

	f := &fixture{
		carts:     &fakeCartAPI{cart: server},
		authority: &fakeAuthority{},
	}
	f.sessions = NewSessions(SessionDeps{
		Carts:       f.carts,
		Quotes:      &fakeQuotes{quotes: map[string][]domain.ShippingMethod{"A": {dhlA}}},
		Payments:    payment.NewCoordinator(f.authority, log),
		Resolver:    resolver,
		Currency:    currency.MXN,
		QuietPeriod: 10 * time.Millisecond,
		Log:         log,
		Metrics:     metrics.NewNop(),
	})
	t.Cleanup(f.sessions.Close)

	f.router = NewRouter(NewHandler(f.sessions, resolver, 5*time.Second, log))

	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer token-1")
	req.Header.Set("Content-Type", "application/json")

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestRouter_RequiresBearerToken(t *testing.T) {
	f := newFixture(t)

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[ErrorResponse](t, rec).Code)
	assert.Zero(t, f.sessions.Len())

	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetCart(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	cart := decode[cartView](t, rec)
	assert.Equal(t, "owner-1", cart.OwnerID)
	assert.Equal(t, "100.00", cart.Subtotal.Amount)
	assert.Equal(t, "MXN", cart.Total.Currency)
	require.Len(t, cart.Sellers, 1)
	require.Len(t, cart.Sellers[0].Items, 1)
	assert.Equal(t, string(domain.LineConfirmed), cart.Sellers[0].Items[0].Status)
	assert.Equal(t, 1, f.sessions.Len())
}

func TestAddItem(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{
			name: "new line: created and pending",
			body: map[string]any{
				"seller":     map[string]string{"id": "B", "name": "Seller B"},
				"product_id": uuid.NewString(),
				"name":       "Mug",
				"unit_price": map[string]string{"amount": "25.5", "currency": "MXN"},
				"quantity":   2,
				"weight":     "0.3",
			},
			wantStatus: http.StatusCreated,
		},
		{
			name: "price in another currency: rejected",
			body: map[string]any{
				"seller":     map[string]string{"id": "B"},
				"product_id": uuid.NewString(),
				"unit_price": map[string]string{"amount": "10", "currency": "USD"},
				"quantity":   1,
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "currency_mismatch",
		},
		{
			name: "zero quantity: rejected",
			body: map[string]any{
				"seller":     map[string]string{"id": "B"},
				"product_id": uuid.NewString(),
				"unit_price": map[string]string{"amount": "10", "currency": "MXN"},
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
		{
			name:       "malformed body: rejected",
			body:       "{",
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			rec := f.do(t, http.MethodPost, "/api/v1/cart/items", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code)

			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decode[ErrorResponse](t, rec).Code)
				return
			}

			cart := decode[cartView](t, rec)
			assert.Equal(t, 1, cart.PendingLines)
			assert.Equal(t, "51.00", cart.Subtotal.Amount)
		})
	}
}

func TestUpdateAndRemoveItem(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/cart", nil).Code)

	linePath := "/api/v1/cart/items/A/" + lampID.String()

	rec := f.do(t, http.MethodPut, linePath, quantityRequest{Quantity: 3})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "300.00", decode[cartView](t, rec).Subtotal.Amount)

	rec = f.do(t, http.MethodPut, "/api/v1/cart/items/A/"+uuid.NewString(), quantityRequest{Quantity: 1})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/cart/items/A/not-a-uuid", quantityRequest{Quantity: 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodDelete, linePath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decode[cartView](t, rec).Sellers)

	rec = f.do(t, http.MethodDelete, linePath, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckout_HappyPath(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/checkout/review", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[checkoutView](t, rec)
	assert.Equal(t, "review", view.Navigation.Step)
	assert.False(t, view.Navigation.Redirected)
	assert.True(t, view.Session.Intent.Ready)
	require.NotNil(t, view.Cart)
	assert.Len(t, view.Cart.Sellers[0].Quote, 1)

	rec = f.do(t, http.MethodPost, "/api/v1/checkout/shipping", selectShippingRequest{SellerID: "A", CourierID: "dhl", ServiceType: "express"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "120.00", decode[cartView](t, rec).Total.Amount)

	rec = f.do(t, http.MethodPost, "/api/v1/checkout/confirm", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view = decode[checkoutView](t, rec)
	assert.Equal(t, "confirmation", view.Navigation.Step)
	assert.Equal(t, string(domain.OutcomeSucceeded), view.Session.Intent.Outcome)
	require.NotNil(t, view.Session.Intent.Amount)
	assert.Equal(t, "120.00", view.Session.Intent.Amount.Amount)
}

func TestCheckout_Errors(t *testing.T) {
	t.Run("unknown step", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodGet, "/api/v1/checkout/payment", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty cart redirects to cart", func(t *testing.T) {
		f := newFixture(t)
		f.carts.cart = domain.NewCart("owner-1", currency.MXN)

		rec := f.do(t, http.MethodGet, "/api/v1/checkout/review", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		nav := decode[checkoutView](t, rec).Navigation
		assert.True(t, nav.Redirected)
		assert.Equal(t, "cart", nav.Step)
		assert.NotEmpty(t, nav.Reason)
	})

	t.Run("select shipping before review", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/v1/checkout/shipping", selectShippingRequest{SellerID: "A", CourierID: "dhl", ServiceType: "express"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "illegal_transition", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("method outside quote", func(t *testing.T) {
		f := newFixture(t)
		require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/checkout/review", nil).Code)

		rec := f.do(t, http.MethodPost, "/api/v1/checkout/shipping", selectShippingRequest{SellerID: "A", CourierID: "ups", ServiceType: "ground"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "invalid_selection", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("confirm without selection", func(t *testing.T) {
		f := newFixture(t)
		require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/checkout/review", nil).Code)

		rec := f.do(t, http.MethodPost, "/api/v1/checkout/confirm", nil)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Contains(t, decode[ErrorResponse](t, rec).Fields, "shipping.A")
	})

	t.Run("card declined", func(t *testing.T) {
		f := newFixture(t)
		f.authority.result = port.ConfirmResult{Type: "card_error", Code: "card_declined", Message: "Your card was declined."}

		require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/checkout/review", nil).Code)
		require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/v1/checkout/shipping", selectShippingRequest{SellerID: "A", CourierID: "dhl", ServiceType: "express"}).Code)

		rec := f.do(t, http.MethodPost, "/api/v1/checkout/confirm", nil)
		require.Equal(t, http.StatusPaymentRequired, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "card_error", resp.Code)
		assert.Equal(t, "Your card was declined.", resp.Error)

		rec = f.do(t, http.MethodGet, "/api/v1/checkout/session", nil)
		assert.Equal(t, "review", decode[sessionView](t, rec).Step)
	})
}

func TestCheckout_SubmitAddress(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, "shipping", decode[checkoutView](t, f.do(t, http.MethodGet, "/api/v1/checkout/shipping", nil)).Navigation.Step)

	invalid := toAddressView(validAddress)
	invalid.Email = "not-an-email"
	rec := f.do(t, http.MethodPost, "/api/v1/checkout/address", invalid)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, map[string]string{"email": "is not a valid email address"}, decode[ErrorResponse](t, rec).Fields)

	rec = f.do(t, http.MethodPost, "/api/v1/checkout/address", toAddressView(validAddress))
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[checkoutView](t, rec)
	assert.Equal(t, "review", view.Navigation.Step)
	assert.Empty(t, view.Session.Errors)
}

func TestAddress_PostalCodeResolves(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/address/postal-code", postalCodeRequest{PostalCode: "06600"})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var res resolutionView
	require.Eventually(t, func() bool {
		rec := f.do(t, http.MethodGet, "/api/v1/address/resolution", nil)
		res = decode[resolutionView](t, rec)
		return res.Resolved
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, cdmx, res.State)
	assert.Equal(t, cuauhtemoc, res.City)
	assert.Equal(t, "Juárez", res.Neighborhood)

	// a resolved postal code fills the location fields left empty
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/checkout/shipping", nil).Code)
	partial := toAddressView(validAddress)
	partial.Neighborhood, partial.CityID, partial.CityName, partial.StateID, partial.StateName = "", "", "", "", ""

	rec = f.do(t, http.MethodPost, "/api/v1/checkout/address", partial)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "09015", decode[checkoutView](t, rec).Cart.Address.CityID)
}

func TestAddress_ManualSelection(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/address/states", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []domain.State{cdmx}, decode[[]domain.State](t, rec))

	rec = f.do(t, http.MethodPost, "/api/v1/address/state", selectStateRequest{StateID: "09"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[resolutionView](t, rec)
	assert.Equal(t, cdmx, res.State)
	assert.Equal(t, []domain.City{cuauhtemoc}, res.Cities)

	rec = f.do(t, http.MethodPost, "/api/v1/address/city", selectCityRequest{CityID: "14039"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Fields, "city")

	rec = f.do(t, http.MethodPost, "/api/v1/address/city", selectCityRequest{CityID: "09015"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/address/neighborhood", selectNeighborhoodRequest{Name: "juarez"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[resolutionView](t, rec).Resolved)
}

func TestEndSession(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/cart", nil).Code)

	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/v1/session", nil).Code)
	assert.Zero(t, f.sessions.Len())
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/v1/session", nil).Code)
}
