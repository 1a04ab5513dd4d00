package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type LineStatus string

const (
	// LineConfirmed lines come from the last server snapshot.
	LineConfirmed LineStatus = "confirmed"
	// LinePending lines were changed locally and not yet seen in a server snapshot.
	LinePending LineStatus = "pending"
)

type Dimensions struct {
	Length decimal.Decimal
	Width  decimal.Decimal
	Height decimal.Decimal
}

type LineItem struct {
	ProductID  uuid.UUID
	Name       string
	UnitPrice  Money
	Quantity   int
	Weight     decimal.Decimal
	Dimensions Dimensions
	Status     LineStatus

	CreatedAt time.Time
}

func (l LineItem) Subtotal() Money {
	return l.UnitPrice.Mul(l.Quantity)
}

type Seller struct {
	ID       string
	Name     string
	Location string
}

type SellerGroup struct {
	Seller Seller
	Items  []LineItem

	// Quote is the set of alternatives from the last quote request; Quoted tells an
	// empty quote apart from one that was never requested.
	Quote    []ShippingMethod
	Quoted   bool
	Selected *ShippingMethod
}

func (g SellerGroup) Subtotal(cur currency.Unit) Money {
	total := ZeroMoney(cur)
	for _, item := range g.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

func (g SellerGroup) findLine(productID uuid.UUID) int {
	return slices.IndexFunc(g.Items, func(item LineItem) bool {
		return item.ProductID == productID
	})
}

func (g SellerGroup) findMethod(key MethodKey) (ShippingMethod, bool) {
	for _, method := range g.Quote {
		if method.Key() == key {
			return method, true
		}
	}
	return ShippingMethod{}, false
}

type Cart struct {
	OwnerID  string
	Currency currency.Unit
	Groups   []SellerGroup
	Address  ShippingAddress
}

func NewCart(ownerID string, cur currency.Unit) Cart {
	return Cart{
		OwnerID:  ownerID,
		Currency: cur,
		Address:  ShippingAddress{Country: Country},
	}
}

func (c *Cart) AddOrUpdateLine(seller Seller, line LineItem) error {
	if seller.ID == "" {
		return fmt.Errorf("sellerID is empty")
	}
	if line.ProductID == uuid.Nil {
		return fmt.Errorf("productID is empty")
	}
	if line.UnitPrice.Currency.String() != c.Currency.String() {
		return fmt.Errorf("product[%s] price in %s: %w", line.ProductID, line.UnitPrice.Currency, ErrCurrencyMismatch)
	}

	if line.Quantity < 1 {
		_, err := c.RemoveLine(seller.ID, line.ProductID)
		return err
	}
	if line.Status == "" {
		line.Status = LinePending
	}

	gi := c.findGroup(seller.ID)
	if gi < 0 {
		c.Groups = append(c.Groups, SellerGroup{Seller: seller})
		gi = len(c.Groups) - 1
	}
	group := &c.Groups[gi]

	if li := group.findLine(line.ProductID); li >= 0 {
		if line.CreatedAt.IsZero() {
			line.CreatedAt = group.Items[li].CreatedAt
		}
		group.Items[li] = line
		return nil
	}

	if line.CreatedAt.IsZero() {
		line.CreatedAt = time.Now()
	}
	group.Items = append(group.Items, line)

	return nil
}

// RemoveLine reports whether the line existed. A seller group left without lines is dropped.
func (c *Cart) RemoveLine(sellerID string, productID uuid.UUID) (bool, error) {
	if sellerID == "" {
		return false, fmt.Errorf("sellerID is empty")
	}

	gi := c.findGroup(sellerID)
	if gi < 0 {
		return false, nil
	}

	group := &c.Groups[gi]
	li := group.findLine(productID)
	if li < 0 {
		return false, nil
	}

	group.Items = slices.Delete(group.Items, li, li+1)
	if len(group.Items) == 0 {
		c.Groups = slices.Delete(c.Groups, gi, gi+1)
	}

	return true, nil
}

func (c *Cart) SetQuantity(sellerID string, productID uuid.UUID, qty int) error {
	if sellerID == "" {
		return fmt.Errorf("sellerID is empty")
	}

	gi := c.findGroup(sellerID)
	if gi < 0 {
		return fmt.Errorf("seller[%s]: %w", sellerID, ErrSellerNotFound)
	}
	li := c.Groups[gi].findLine(productID)
	if li < 0 {
		return fmt.Errorf("product[%s]: %w", productID, ErrLineNotFound)
	}

	if qty < 1 {
		_, err := c.RemoveLine(sellerID, productID)
		return err
	}

	item := &c.Groups[gi].Items[li]
	item.Quantity = qty
	item.Status = LinePending

	return nil
}

// SetShippingQuotes replaces the seller's quote. A selection that is not part of the new
// quote is cleared and has to be chosen again.
func (c *Cart) SetShippingQuotes(sellerID string, quotes []ShippingMethod) error {
	gi := c.findGroup(sellerID)
	if gi < 0 {
		return fmt.Errorf("seller[%s]: %w", sellerID, ErrSellerNotFound)
	}

	for _, q := range quotes {
		if q.Price.Currency.String() != c.Currency.String() {
			return fmt.Errorf("quote %s: %w", q.Key(), ErrCurrencyMismatch)
		}
	}

	group := &c.Groups[gi]
	group.Quote = slices.Clone(quotes)
	group.Quoted = true

	if group.Selected != nil {
		method, ok := group.findMethod(group.Selected.Key())
		if !ok {
			group.Selected = nil
		} else {
			// keep the refreshed price and delivery estimate
			group.Selected = &method
		}
	}

	return nil
}

func (c *Cart) SetSelectedShippingMethod(sellerID string, key MethodKey) error {
	gi := c.findGroup(sellerID)
	if gi < 0 {
		return fmt.Errorf("seller[%s]: %w", sellerID, ErrSellerNotFound)
	}

	group := &c.Groups[gi]
	method, ok := group.findMethod(key)
	if !ok {
		return fmt.Errorf("method %s: %w", key, ErrInvalidSelection)
	}
	group.Selected = &method

	return nil
}

func (c *Cart) ClearShippingMethod(sellerID string) error {
	gi := c.findGroup(sellerID)
	if gi < 0 {
		return fmt.Errorf("seller[%s]: %w", sellerID, ErrSellerNotFound)
	}
	c.Groups[gi].Selected = nil
	return nil
}

func (c *Cart) Subtotal() Money {
	total := ZeroMoney(c.Currency)
	for _, group := range c.Groups {
		total = total.Add(group.Subtotal(c.Currency))
	}
	return total
}

func (c *Cart) ShippingCost() Money {
	total := ZeroMoney(c.Currency)
	for _, group := range c.Groups {
		if group.Selected != nil {
			total = total.Add(group.Selected.Price)
		}
	}
	return total
}

func (c *Cart) Total() Money {
	return c.Subtotal().Add(c.ShippingCost())
}

func (c *Cart) IsEmpty() bool {
	for _, group := range c.Groups {
		for _, item := range group.Items {
			if item.Quantity > 0 {
				return false
			}
		}
	}
	return true
}

func (c *Cart) HasShippingQuotes() bool {
	for _, group := range c.Groups {
		if len(group.Quote) > 0 {
			return true
		}
	}
	return false
}

// UnselectedSellers lists sellers that have no shipping method selected, in display order.
func (c *Cart) UnselectedSellers() []string {
	var ids []string
	for _, group := range c.Groups {
		if group.Selected == nil {
			ids = append(ids, group.Seller.ID)
		}
	}
	return ids
}

func (c *Cart) Selections() []ShippingMethod {
	var selected []ShippingMethod
	for _, group := range c.Groups {
		if group.Selected != nil {
			selected = append(selected, *group.Selected)
		}
	}
	return selected
}

func (c *Cart) Group(sellerID string) (SellerGroup, bool) {
	gi := c.findGroup(sellerID)
	if gi < 0 {
		return SellerGroup{}, false
	}
	return c.Groups[gi], true
}

// Reconcile overwrites local state with a server snapshot. Nothing is merged: every line
// in the result is confirmed and pending local changes are gone.
func (c *Cart) Reconcile(snapshot Cart) {
	*c = snapshot.Clone()
	for gi := range c.Groups {
		for li := range c.Groups[gi].Items {
			c.Groups[gi].Items[li].Status = LineConfirmed
		}
	}
	if c.Address.Country == "" {
		c.Address.Country = Country
	}
}

func (c *Cart) PendingLines() int {
	var n int
	for _, group := range c.Groups {
		for _, item := range group.Items {
			if item.Status == LinePending {
				n++
			}
		}
	}
	return n
}

func (c Cart) Clone() Cart {
	out := c
	if c.Groups == nil {
		return out
	}
	out.Groups = make([]SellerGroup, len(c.Groups))
	for i, group := range c.Groups {
		g := group
		g.Items = slices.Clone(group.Items)
		g.Quote = slices.Clone(group.Quote)
		if group.Selected != nil {
			selected := *group.Selected
			g.Selected = &selected
		}
		out.Groups[i] = g
	}
	return out
}

func (c *Cart) findGroup(sellerID string) int {
	return slices.IndexFunc(c.Groups, func(g SellerGroup) bool {
		return g.Seller.ID == sellerID
	})
}
