package cartstore_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/nikolayk812/marketplace-checkout/internal/cartstore"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
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
	mu       sync.Mutex
	cart     domain.Cart
	getErr   error
	syncErr  error
	gate     chan struct{}
	added    []domain.LineItem
	removed  []uuid.UUID
	updates  []domain.OrderUpdate
	address  *domain.ShippingAddress
	addrErr  error
	orderErr error
}

func (f *fakeCartAPI) wait() {
	if f.gate != nil {
		<-f.gate
	}
}

func (f *fakeCartAPI) GetCart(context.Context, string) (domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cart.Clone(), f.getErr
}

func (f *fakeCartAPI) AddItem(_ context.Context, _ string, _ domain.Seller, item domain.LineItem) error {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, item)
	return f.syncErr
}

func (f *fakeCartAPI) RemoveItem(_ context.Context, _ string, _ string, productID uuid.UUID) (bool, error) {
	f.wait()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, productID)
	return true, f.syncErr
}

func (f *fakeCartAPI) SaveShippingAddress(_ context.Context, _ string, addr domain.ShippingAddress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.address = &addr
	return f.addrErr
}

func (f *fakeCartAPI) UpdateOrder(_ context.Context, _ string, update domain.OrderUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	if update.Finalize {
		return f.orderErr
	}
	return f.syncErr
}

func (f *fakeCartAPI) snapshot() ([]domain.LineItem, []uuid.UUID, []domain.OrderUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.LineItem(nil), f.added...), append([]uuid.UUID(nil), f.removed...), append([]domain.OrderUpdate(nil), f.updates...)
}

var (
	sellerA = domain.Seller{ID: "A", Name: "Seller A"}
	sellerB = domain.Seller{ID: "B", Name: "Seller B"}
)

func mxn(amount int64) domain.Money {
	return domain.NewMoney(decimal.NewFromInt(amount), currency.MXN)
}

func line(price int64, qty int) domain.LineItem {
	return domain.LineItem{
		ProductID: uuid.MustParse(gofakeit.UUID()),
		Name:      gofakeit.ProductName(),
		UnitPrice: mxn(price),
		Quantity:  qty,
		Weight:    decimal.NewFromInt(1),
	}
}

func newStore(t *testing.T, api *fakeCartAPI) (*cartstore.Store, *metrics.CheckoutMetrics, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	m := metrics.NewNop()
	s := cartstore.New(api, "token", domain.NewCart("owner", currency.MXN), log, m)
	t.Cleanup(s.Close)
	return s, m, hook
}

func TestStore_OptimisticMutationDoesNotWaitForServer(t *testing.T) {
	api := &fakeCartAPI{gate: make(chan struct{})}
	s, _, _ := newStore(t, api)

	l := line(100, 1)
	require.NoError(t, s.AddOrUpdateLine(sellerA, l))

	// the server call is still blocked, local totals are already updated
	total, err := s.Total()
	require.NoError(t, err)
	assert.True(t, total.Equal(mxn(100)))

	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.PendingLines())

	close(api.gate)
	require.Eventually(t, func() bool {
		added, _, _ := api.snapshot()
		return len(added) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStore_RejectedSyncIsNotRolledBack(t *testing.T) {
	api := &fakeCartAPI{syncErr: errors.New("409 conflict")}
	s, m, hook := newStore(t, api)

	require.NoError(t, s.AddOrUpdateLine(sellerA, line(100, 2)))

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.SyncFailures.WithLabelValues("add")) == 1
	}, time.Second, 5*time.Millisecond)

	subtotal, err := s.Subtotal()
	require.NoError(t, err)
	assert.True(t, subtotal.Equal(mxn(200)))
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "cart sync failed", hook.LastEntry().Message)
}

func TestStore_LoadReconcilesWithServer(t *testing.T) {
	server := domain.NewCart("owner", currency.MXN)
	require.NoError(t, server.AddOrUpdateLine(sellerB, line(50, 1)))
	api := &fakeCartAPI{cart: server}
	s, _, _ := newStore(t, api)

	require.NoError(t, s.AddOrUpdateLine(sellerA, line(100, 1)))

	snapshot, err := s.Load(t.Context())
	require.NoError(t, err)

	assert.Zero(t, snapshot.PendingLines())
	_, ok := snapshot.Group("A")
	assert.False(t, ok, "local state is replaced, not merged")
	total, err := s.Total()
	require.NoError(t, err)
	assert.True(t, total.Equal(mxn(50)))

	api.getErr = errors.New("offline")
	_, err = s.Load(t.Context())
	require.ErrorContains(t, err, "api.GetCart")
}

func TestStore_QuantityAndRemoval(t *testing.T) {
	api := &fakeCartAPI{}
	s, _, _ := newStore(t, api)

	l := line(30, 1)
	require.NoError(t, s.AddOrUpdateLine(sellerA, l))
	require.NoError(t, s.SetQuantity("A", l.ProductID, 4))

	subtotal, err := s.Subtotal()
	require.NoError(t, err)
	assert.True(t, subtotal.Equal(mxn(120)))

	require.NoError(t, s.SetQuantity("A", l.ProductID, 0))
	snapshot, err := s.Snapshot()
	require.NoError(t, err)
	assert.True(t, snapshot.IsEmpty())

	removed, err := s.RemoveLine("A", l.ProductID)
	require.NoError(t, err)
	assert.False(t, removed)

	require.ErrorIs(t, s.SetQuantity("A", l.ProductID, 2), domain.ErrSellerNotFound)

	require.Eventually(t, func() bool {
		added, removedIDs, _ := api.snapshot()
		return len(added) == 2 && len(removedIDs) == 1
	}, time.Second, 5*time.Millisecond)

	added, _, _ := api.snapshot()
	quantities := []int{added[0].Quantity, added[1].Quantity}
	assert.ElementsMatch(t, []int{1, 4}, quantities)
}

func TestStore_QuotesAndSelection(t *testing.T) {
	api := &fakeCartAPI{}
	s, _, _ := newStore(t, api)

	require.NoError(t, s.AddOrUpdateLine(sellerA, line(100, 1)))
	require.NoError(t, s.AddOrUpdateLine(sellerB, line(50, 1)))

	dhl := domain.ShippingMethod{SellerID: "A", CourierID: "dhl", ServiceType: "express", Price: mxn(20)}
	shippable, err := s.ApplyQuotes(map[string][]domain.ShippingMethod{"A": {dhl}})
	require.NoError(t, err)
	assert.Equal(t, 1, shippable)

	err = s.SetSelectedShippingMethod("B", domain.MethodKey{SellerID: "B", CourierID: "dhl", ServiceType: "express"})
	require.ErrorIs(t, err, domain.ErrInvalidSelection)

	require.NoError(t, s.SetSelectedShippingMethod("A", dhl.Key()))

	totals, err := s.Totals()
	require.NoError(t, err)
	assert.True(t, totals.Subtotal.Equal(mxn(150)))
	assert.True(t, totals.ShippingCost.Equal(mxn(20)))
	assert.True(t, totals.Total.Equal(mxn(170)))

	require.Eventually(t, func() bool {
		_, _, updates := api.snapshot()
		return len(updates) == 1
	}, time.Second, 5*time.Millisecond)
	_, _, updates := api.snapshot()
	assert.False(t, updates[0].Finalize)
	assert.True(t, updates[0].Total.Equal(mxn(170)))

	// refreshed quote without dhl clears the selection
	require.NoError(t, s.SetShippingQuotes("A", []domain.ShippingMethod{{SellerID: "A", CourierID: "fedex", ServiceType: "ground", Price: mxn(15)}}))
	cost, err := s.ShippingCost()
	require.NoError(t, err)
	assert.True(t, cost.IsZero())
}

func TestStore_SaveAddressAndSubmitOrder(t *testing.T) {
	api := &fakeCartAPI{}
	s, _, _ := newStore(t, api)
	require.NoError(t, s.AddOrUpdateLine(sellerA, line(100, 1)))

	addr := domain.ShippingAddress{Name: "Ana", PostalCode: "06600", Country: domain.Country}
	require.NoError(t, s.SaveAddress(t.Context(), addr))
	require.NotNil(t, api.address)
	assert.Equal(t, "06600", api.address.PostalCode)

	update, err := s.SubmitOrder(t.Context())
	require.NoError(t, err)
	assert.True(t, update.Finalize)
	assert.Equal(t, addr, update.Address)
	assert.True(t, update.Total.Equal(mxn(100)))

	api.orderErr = errors.New("500")
	_, err = s.SubmitOrder(t.Context())
	require.ErrorContains(t, err, "api.UpdateOrder")

	api.addrErr = errors.New("500")
	require.ErrorContains(t, s.SaveAddress(t.Context(), addr), "api.SaveShippingAddress")
}

func TestStore_ClosedStoreRejectsCommands(t *testing.T) {
	s, _, _ := newStore(t, &fakeCartAPI{})
	s.Close()

	_, err := s.Snapshot()
	require.ErrorIs(t, err, cartstore.ErrClosed)
	require.ErrorIs(t, s.AddOrUpdateLine(sellerA, line(1, 1)), cartstore.ErrClosed)

	// second close is a no-op
	s.Close()
}

func TestStore_ConcurrentReadersSeeWholeMutations(t *testing.T) {
	s, _, _ := newStore(t, &fakeCartAPI{})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 25 {
				assert.NoError(t, s.AddOrUpdateLine(sellerA, line(10, 1)))
				totals, err := s.Totals()
				assert.NoError(t, err)
				assert.True(t, totals.Total.Equal(totals.Subtotal.Add(totals.ShippingCost)))
			}
		}()
	}
	wg.Wait()

	subtotal, err := s.Subtotal()
	require.NoError(t, err)
	assert.True(t, subtotal.Equal(mxn(1000)))
}
