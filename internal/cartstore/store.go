package cartstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/metrics"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
	"github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("cart store is closed")

// Store owns one session's cart. A single goroutine applies every command, so readers
// always see a whole mutation. Mutations are applied locally first and then sent to the
// cart API in the background; a rejected mutation is logged and left in place until the
// next Load replaces local state with the server's.
type Store struct {
	api     port.CartAPI
	token   string
	log     logrus.FieldLogger
	metrics *metrics.CheckoutMetrics

	cmds chan func(*domain.Cart)
	quit chan struct{}
	done chan struct{}

	syncCtx    context.Context
	cancelSync context.CancelFunc
	syncs      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

func New(api port.CartAPI, token string, initial domain.Cart, log logrus.FieldLogger, m *metrics.CheckoutMetrics) *Store {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		api:        api,
		token:      token,
		log:        log,
		metrics:    m,
		cmds:       make(chan func(*domain.Cart)),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		syncCtx:    ctx,
		cancelSync: cancel,
	}

	go s.run(initial)

	return s
}

func (s *Store) run(cart domain.Cart) {
	defer close(s.done)

	for {
		select {
		case cmd := <-s.cmds:
			cmd(&cart)
		case <-s.quit:
			return
		}
	}
}

func (s *Store) do(fn func(*domain.Cart)) error {
	reply := make(chan struct{})

	select {
	case s.cmds <- func(c *domain.Cart) {
		defer close(reply)
		fn(c)
	}:
	case <-s.done:
		return ErrClosed
	}

	<-reply
	return nil
}

// Load fetches the server cart and replaces local state with it.
func (s *Store) Load(ctx context.Context) (domain.Cart, error) {
	cart, err := s.api.GetCart(ctx, s.token)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("api.GetCart: %w", err)
	}

	var snapshot domain.Cart
	err = s.do(func(c *domain.Cart) {
		c.Reconcile(cart)
		snapshot = c.Clone()
	})

	return snapshot, err
}

func (s *Store) Snapshot() (domain.Cart, error) {
	var snapshot domain.Cart
	err := s.do(func(c *domain.Cart) {
		snapshot = c.Clone()
	})
	return snapshot, err
}

type Totals struct {
	Subtotal     domain.Money
	ShippingCost domain.Money
	Total        domain.Money
}

// Totals reads all three values from the same cart state.
func (s *Store) Totals() (Totals, error) {
	var t Totals
	err := s.do(func(c *domain.Cart) {
		t = Totals{
			Subtotal:     c.Subtotal(),
			ShippingCost: c.ShippingCost(),
			Total:        c.Total(),
		}
	})
	return t, err
}

func (s *Store) Subtotal() (domain.Money, error) {
	t, err := s.Totals()
	return t.Subtotal, err
}

func (s *Store) ShippingCost() (domain.Money, error) {
	t, err := s.Totals()
	return t.ShippingCost, err
}

func (s *Store) Total() (domain.Money, error) {
	t, err := s.Totals()
	return t.Total, err
}

func (s *Store) AddOrUpdateLine(seller domain.Seller, line domain.LineItem) error {
	line.Status = domain.LinePending

	var opErr error
	if err := s.do(func(c *domain.Cart) {
		opErr = c.AddOrUpdateLine(seller, line)
	}); err != nil {
		return err
	}
	if opErr != nil {
		return opErr
	}

	if line.Quantity < 1 {
		s.syncRemove(seller.ID, line.ProductID)
		return nil
	}

	s.sync("add", func(ctx context.Context) error {
		return s.api.AddItem(ctx, s.token, seller, line)
	})

	return nil
}

func (s *Store) RemoveLine(sellerID string, productID uuid.UUID) (bool, error) {
	var (
		removed bool
		opErr   error
	)
	if err := s.do(func(c *domain.Cart) {
		removed, opErr = c.RemoveLine(sellerID, productID)
	}); err != nil {
		return false, err
	}
	if opErr != nil {
		return false, opErr
	}

	if removed {
		s.syncRemove(sellerID, productID)
	}

	return removed, nil
}

// SetQuantity changes a line's quantity; qty < 1 removes the line.
func (s *Store) SetQuantity(sellerID string, productID uuid.UUID, qty int) error {
	var (
		seller domain.Seller
		line   domain.LineItem
		opErr  error
	)
	if err := s.do(func(c *domain.Cart) {
		group, ok := c.Group(sellerID)
		if ok {
			seller = group.Seller
		}
		if opErr = c.SetQuantity(sellerID, productID, qty); opErr != nil || qty < 1 {
			return
		}
		group, _ = c.Group(sellerID)
		for _, item := range group.Items {
			if item.ProductID == productID {
				line = item
			}
		}
	}); err != nil {
		return err
	}
	if opErr != nil {
		return opErr
	}

	if qty < 1 {
		s.syncRemove(sellerID, productID)
		return nil
	}

	s.sync("update_quantity", func(ctx context.Context) error {
		return s.api.AddItem(ctx, s.token, seller, line)
	})

	return nil
}

func (s *Store) SetShippingQuotes(sellerID string, quotes []domain.ShippingMethod) error {
	var opErr error
	if err := s.do(func(c *domain.Cart) {
		opErr = c.SetShippingQuotes(sellerID, quotes)
	}); err != nil {
		return err
	}
	return opErr
}

// ApplyQuotes sets the quote of every seller group in one step. Sellers missing from
// quotes get an empty quote. It returns how many sellers received at least one method.
func (s *Store) ApplyQuotes(quotes map[string][]domain.ShippingMethod) (int, error) {
	var (
		shippable int
		opErr     error
	)
	if err := s.do(func(c *domain.Cart) {
		for _, group := range c.Groups {
			methods := quotes[group.Seller.ID]
			if err := c.SetShippingQuotes(group.Seller.ID, methods); err != nil {
				opErr = errors.Join(opErr, err)
				continue
			}
			if len(methods) > 0 {
				shippable++
			}
		}
	}); err != nil {
		return 0, err
	}
	return shippable, opErr
}

func (s *Store) SetSelectedShippingMethod(sellerID string, key domain.MethodKey) error {
	var (
		update domain.OrderUpdate
		opErr  error
	)
	if err := s.do(func(c *domain.Cart) {
		if opErr = c.SetSelectedShippingMethod(sellerID, key); opErr != nil {
			return
		}
		update = orderUpdate(c, false)
	}); err != nil {
		return err
	}
	if opErr != nil {
		return opErr
	}

	s.sync("select_shipping", func(ctx context.Context) error {
		return s.api.UpdateOrder(ctx, s.token, update)
	})

	return nil
}

func (s *Store) ClearShippingMethod(sellerID string) error {
	var opErr error
	if err := s.do(func(c *domain.Cart) {
		opErr = c.ClearShippingMethod(sellerID)
	}); err != nil {
		return err
	}
	return opErr
}

func (s *Store) SetAddress(addr domain.ShippingAddress) error {
	return s.do(func(c *domain.Cart) {
		c.Address = addr
	})
}

// SaveAddress stores the address locally and waits for the cart API to persist it.
func (s *Store) SaveAddress(ctx context.Context, addr domain.ShippingAddress) error {
	if err := s.SetAddress(addr); err != nil {
		return err
	}

	if err := s.api.SaveShippingAddress(ctx, s.token, addr); err != nil {
		return fmt.Errorf("api.SaveShippingAddress: %w", err)
	}

	return nil
}

// SubmitOrder sends the selections, address and totals as the final order and waits for
// the cart API to accept it.
func (s *Store) SubmitOrder(ctx context.Context) (domain.OrderUpdate, error) {
	var update domain.OrderUpdate
	if err := s.do(func(c *domain.Cart) {
		update = orderUpdate(c, true)
	}); err != nil {
		return update, err
	}

	if err := s.api.UpdateOrder(ctx, s.token, update); err != nil {
		return update, fmt.Errorf("api.UpdateOrder: %w", err)
	}

	return update, nil
}

// Close stops the owner goroutine and waits for background syncs to finish.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	close(s.quit)
	<-s.done

	s.syncs.Wait()
	s.cancelSync()
}

func (s *Store) syncRemove(sellerID string, productID uuid.UUID) {
	s.sync("remove", func(ctx context.Context) error {
		_, err := s.api.RemoveItem(ctx, s.token, sellerID, productID)
		return err
	})
}

func (s *Store) sync(op string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.syncs.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.syncs.Done()

		if err := fn(s.syncCtx); err != nil {
			s.log.WithError(err).WithField("operation", op).Warn("cart sync failed")
			s.metrics.SyncFailures.WithLabelValues(op).Inc()
		}
	}()
}

func orderUpdate(c *domain.Cart, finalize bool) domain.OrderUpdate {
	return domain.OrderUpdate{
		Selections:   c.Selections(),
		Address:      c.Address,
		Subtotal:     c.Subtotal(),
		ShippingCost: c.ShippingCost(),
		Total:        c.Total(),
		Finalize:     finalize,
	}
}
