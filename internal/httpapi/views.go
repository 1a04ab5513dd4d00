package httpapi

import (
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/marketplace-checkout/internal/address"
	"github.com/nikolayk812/marketplace-checkout/internal/checkout"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/shopspring/decimal"
)

type moneyView struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

func toMoneyView(m domain.Money) moneyView {
	return moneyView{Amount: m.Amount.StringFixed(2), Currency: m.Currency.String()}
}

type sellerView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

type lineView struct {
	ProductID uuid.UUID `json:"product_id"`
	Name      string    `json:"name"`
	UnitPrice moneyView `json:"unit_price"`
	Quantity  int       `json:"quantity"`
	Subtotal  moneyView `json:"subtotal"`
	Status    string    `json:"status"`
}

type methodView struct {
	SellerID          string     `json:"seller_id"`
	CourierID         string     `json:"courier_id"`
	ServiceType       string     `json:"service_type"`
	ServiceName       string     `json:"service_name,omitempty"`
	Alias             string     `json:"alias,omitempty"`
	Price             moneyView  `json:"price"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
}

func toMethodView(m domain.ShippingMethod) methodView {
	v := methodView{
		SellerID:    m.SellerID,
		CourierID:   m.CourierID,
		ServiceType: m.ServiceType,
		ServiceName: m.ServiceName,
		Alias:       m.Alias,
		Price:       toMoneyView(m.Price),
	}
	if !m.EstimatedDelivery.IsZero() {
		eta := m.EstimatedDelivery
		v.EstimatedDelivery = &eta
	}
	return v
}

type groupView struct {
	Seller   sellerView   `json:"seller"`
	Items    []lineView   `json:"items"`
	Quote    []methodView `json:"quote"`
	Quoted   bool         `json:"quoted"`
	Selected *methodView  `json:"selected,omitempty"`
	Subtotal moneyView    `json:"subtotal"`
}

type addressView struct {
	Name           string `json:"name"`
	LastName       string `json:"last_name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Street         string `json:"street"`
	ExteriorNumber string `json:"exterior_number"`
	InteriorNumber string `json:"interior_number,omitempty"`
	PostalCode     string `json:"postal_code"`
	Neighborhood   string `json:"neighborhood"`
	CityID         string `json:"city_id"`
	CityName       string `json:"city_name"`
	StateID        string `json:"state_id"`
	StateName      string `json:"state_name"`
	Country        string `json:"country"`
}

func toAddressView(a domain.ShippingAddress) addressView {
	return addressView(a)
}

func (v addressView) toDomain() domain.ShippingAddress {
	return domain.ShippingAddress(v)
}

type cartView struct {
	OwnerID      string      `json:"owner_id"`
	Currency     string      `json:"currency"`
	Sellers      []groupView `json:"sellers"`
	Address      addressView `json:"address"`
	Subtotal     moneyView   `json:"subtotal"`
	ShippingCost moneyView   `json:"shipping_cost"`
	Total        moneyView   `json:"total"`
	PendingLines int         `json:"pending_lines"`
}

func toCartView(c domain.Cart) cartView {
	v := cartView{
		OwnerID:      c.OwnerID,
		Currency:     c.Currency.String(),
		Sellers:      make([]groupView, 0, len(c.Groups)),
		Address:      toAddressView(c.Address),
		Subtotal:     toMoneyView(c.Subtotal()),
		ShippingCost: toMoneyView(c.ShippingCost()),
		Total:        toMoneyView(c.Total()),
		PendingLines: c.PendingLines(),
	}

	for _, g := range c.Groups {
		gv := groupView{
			Seller:   sellerView{ID: g.Seller.ID, Name: g.Seller.Name, Location: g.Seller.Location},
			Items:    make([]lineView, 0, len(g.Items)),
			Quote:    make([]methodView, 0, len(g.Quote)),
			Quoted:   g.Quoted,
			Subtotal: toMoneyView(g.Subtotal(c.Currency)),
		}
		for _, item := range g.Items {
			gv.Items = append(gv.Items, lineView{
				ProductID: item.ProductID,
				Name:      item.Name,
				UnitPrice: toMoneyView(item.UnitPrice),
				Quantity:  item.Quantity,
				Subtotal:  toMoneyView(item.Subtotal()),
				Status:    string(item.Status),
			})
		}
		for _, m := range g.Quote {
			gv.Quote = append(gv.Quote, toMethodView(m))
		}
		if g.Selected != nil {
			selected := toMethodView(*g.Selected)
			gv.Selected = &selected
		}
		v.Sellers = append(v.Sellers, gv)
	}

	return v
}

type navigationView struct {
	Requested  string `json:"requested"`
	Step       string `json:"step"`
	Redirected bool   `json:"redirected"`
	Reason     string `json:"reason,omitempty"`
}

func toNavigationView(n checkout.Navigation) navigationView {
	v := navigationView{
		Requested:  n.Requested.String(),
		Step:       n.Step.String(),
		Redirected: n.Redirected(),
	}
	if n.Guard != nil {
		v.Reason = n.Guard.Reason
	}
	return v
}

type intentView struct {
	ID           string     `json:"id,omitempty"`
	ClientSecret string     `json:"client_secret,omitempty"`
	Amount       *moneyView `json:"amount,omitempty"`
	Outcome      string     `json:"outcome,omitempty"`
	Message      string     `json:"message,omitempty"`
	Ready        bool       `json:"ready"`
}

type sessionView struct {
	ID     uuid.UUID         `json:"id"`
	Step   string            `json:"step"`
	Intent intentView        `json:"intent"`
	Errors map[string]string `json:"errors,omitempty"`
}

func toSessionView(s domain.CheckoutSession) sessionView {
	intent := intentView{
		ID:           s.Intent.ID,
		ClientSecret: s.Intent.ClientSecret,
		Outcome:      string(s.Intent.Outcome),
		Message:      s.Intent.Message,
		Ready:        s.Intent.Ready(),
	}
	if s.Intent.Ready() {
		amount := toMoneyView(s.Intent.Amount)
		intent.Amount = &amount
	}

	return sessionView{
		ID:     s.ID,
		Step:   s.Step.String(),
		Intent: intent,
		Errors: s.Errors,
	}
}

type resolutionView struct {
	PostalCode    string                `json:"postal_code"`
	State         domain.State          `json:"state"`
	City          domain.City           `json:"city"`
	Neighborhood  string                `json:"neighborhood"`
	Cities        []domain.City         `json:"cities"`
	Neighborhoods []domain.Neighborhood `json:"neighborhoods"`
	Resolved      bool                  `json:"resolved"`
}

func toResolutionView(r address.Resolution) resolutionView {
	v := resolutionView{
		PostalCode:    r.PostalCode,
		State:         r.State,
		City:          r.City,
		Neighborhood:  r.Neighborhood.Name,
		Cities:        r.Cities,
		Neighborhoods: r.Neighborhoods,
		Resolved:      r.Resolved(),
	}
	if v.Cities == nil {
		v.Cities = []domain.City{}
	}
	if v.Neighborhoods == nil {
		v.Neighborhoods = []domain.Neighborhood{}
	}
	return v
}

type addItemRequest struct {
	Seller     sellerView `json:"seller"`
	ProductID  uuid.UUID  `json:"product_id"`
	Name       string     `json:"name"`
	UnitPrice  moneyView  `json:"unit_price"`
	Quantity   int        `json:"quantity"`
	Weight     string     `json:"weight"`
	Dimensions struct {
		Length string `json:"length"`
		Width  string `json:"width"`
		Height string `json:"height"`
	} `json:"dimensions"`
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

type selectShippingRequest struct {
	SellerID    string `json:"seller_id"`
	CourierID   string `json:"courier_id"`
	ServiceType string `json:"service_type"`
}

type postalCodeRequest struct {
	PostalCode string `json:"postal_code"`
}

type selectStateRequest struct {
	StateID string `json:"state_id"`
	Name    string `json:"name"`
}

type selectCityRequest struct {
	CityID string `json:"city_id"`
}

type selectNeighborhoodRequest struct {
	Name string `json:"name"`
}
