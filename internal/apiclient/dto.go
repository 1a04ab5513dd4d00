package apiclient

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type moneyDTO struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type dimensionsDTO struct {
	Length decimal.Decimal `json:"length"`
	Width  decimal.Decimal `json:"width"`
	Height decimal.Decimal `json:"height"`
}

type sellerDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

type lineItemDTO struct {
	ProductID  uuid.UUID       `json:"product_id"`
	Name       string          `json:"name"`
	UnitPrice  moneyDTO        `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	Weight     decimal.Decimal `json:"weight"`
	Dimensions dimensionsDTO   `json:"dimensions"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
}

type shippingMethodDTO struct {
	SellerID          string    `json:"seller_id"`
	CourierID         string    `json:"courier_id"`
	ServiceType       string    `json:"service_type"`
	ServiceName       string    `json:"service_name,omitempty"`
	Alias             string    `json:"alias,omitempty"`
	Price             moneyDTO  `json:"price"`
	EstimatedDelivery time.Time `json:"estimated_delivery,omitempty"`
}

type sellerGroupDTO struct {
	Seller   sellerDTO           `json:"seller"`
	Items    []lineItemDTO       `json:"items"`
	Quote    []shippingMethodDTO `json:"quote,omitempty"`
	Selected *shippingMethodDTO  `json:"selected,omitempty"`
}

type addressDTO struct {
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

type cartDTO struct {
	OwnerID  string           `json:"owner_id"`
	Currency string           `json:"currency"`
	Sellers  []sellerGroupDTO `json:"sellers"`
	Address  *addressDTO      `json:"address,omitempty"`
}

type orderUpdateDTO struct {
	Selections   []shippingMethodDTO `json:"selections"`
	Address      addressDTO          `json:"address"`
	Subtotal     moneyDTO            `json:"subtotal"`
	ShippingCost moneyDTO            `json:"shipping_cost"`
	Total        moneyDTO            `json:"total"`
	Finalize     bool                `json:"finalize"`
}

func toMoneyDTO(m domain.Money) moneyDTO {
	return moneyDTO{Amount: m.Amount, Currency: m.Currency.String()}
}

func fromMoneyDTO(dto moneyDTO) (domain.Money, error) {
	cur, err := currency.ParseISO(dto.Currency)
	if err != nil {
		return domain.Money{}, fmt.Errorf("currency.ParseISO[%s]: %w", dto.Currency, err)
	}
	return domain.NewMoney(dto.Amount, cur), nil
}

func toSellerDTO(s domain.Seller) sellerDTO {
	return sellerDTO{ID: s.ID, Name: s.Name, Location: s.Location}
}

func toLineItemDTO(l domain.LineItem) lineItemDTO {
	return lineItemDTO{
		ProductID: l.ProductID,
		Name:      l.Name,
		UnitPrice: toMoneyDTO(l.UnitPrice),
		Quantity:  l.Quantity,
		Weight:    l.Weight,
		Dimensions: dimensionsDTO{
			Length: l.Dimensions.Length,
			Width:  l.Dimensions.Width,
			Height: l.Dimensions.Height,
		},
		CreatedAt: l.CreatedAt,
	}
}

func fromLineItemDTO(dto lineItemDTO) (domain.LineItem, error) {
	price, err := fromMoneyDTO(dto.UnitPrice)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("product[%s] unit price: %w", dto.ProductID, err)
	}

	return domain.LineItem{
		ProductID: dto.ProductID,
		Name:      dto.Name,
		UnitPrice: price,
		Quantity:  dto.Quantity,
		Weight:    dto.Weight,
		Dimensions: domain.Dimensions{
			Length: dto.Dimensions.Length,
			Width:  dto.Dimensions.Width,
			Height: dto.Dimensions.Height,
		},
		Status:    domain.LineConfirmed,
		CreatedAt: dto.CreatedAt,
	}, nil
}

func toShippingMethodDTO(m domain.ShippingMethod) shippingMethodDTO {
	return shippingMethodDTO{
		SellerID:          m.SellerID,
		CourierID:         m.CourierID,
		ServiceType:       m.ServiceType,
		ServiceName:       m.ServiceName,
		Alias:             m.Alias,
		Price:             toMoneyDTO(m.Price),
		EstimatedDelivery: m.EstimatedDelivery,
	}
}

func fromShippingMethodDTO(dto shippingMethodDTO) (domain.ShippingMethod, error) {
	price, err := fromMoneyDTO(dto.Price)
	if err != nil {
		return domain.ShippingMethod{}, fmt.Errorf("method[%s/%s] price: %w", dto.CourierID, dto.ServiceType, err)
	}

	return domain.ShippingMethod{
		SellerID:          dto.SellerID,
		CourierID:         dto.CourierID,
		ServiceType:       dto.ServiceType,
		ServiceName:       dto.ServiceName,
		Alias:             dto.Alias,
		Price:             price,
		EstimatedDelivery: dto.EstimatedDelivery,
	}, nil
}

func fromShippingMethodDTOs(dtos []shippingMethodDTO) ([]domain.ShippingMethod, error) {
	if len(dtos) == 0 {
		return nil, nil
	}

	methods := make([]domain.ShippingMethod, 0, len(dtos))
	for _, dto := range dtos {
		m, err := fromShippingMethodDTO(dto)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	return methods, nil
}

func toAddressDTO(a domain.ShippingAddress) addressDTO {
	return addressDTO{
		Name:           a.Name,
		LastName:       a.LastName,
		Email:          a.Email,
		Phone:          a.Phone,
		Street:         a.Street,
		ExteriorNumber: a.ExteriorNumber,
		InteriorNumber: a.InteriorNumber,
		PostalCode:     a.PostalCode,
		Neighborhood:   a.Neighborhood,
		CityID:         a.CityID,
		CityName:       a.CityName,
		StateID:        a.StateID,
		StateName:      a.StateName,
		Country:        a.Country,
	}
}

func fromAddressDTO(dto addressDTO) domain.ShippingAddress {
	return domain.ShippingAddress{
		Name:           dto.Name,
		LastName:       dto.LastName,
		Email:          dto.Email,
		Phone:          dto.Phone,
		Street:         dto.Street,
		ExteriorNumber: dto.ExteriorNumber,
		InteriorNumber: dto.InteriorNumber,
		PostalCode:     dto.PostalCode,
		Neighborhood:   dto.Neighborhood,
		CityID:         dto.CityID,
		CityName:       dto.CityName,
		StateID:        dto.StateID,
		StateName:      dto.StateName,
		Country:        dto.Country,
	}
}

// fromCartDTO rebuilds the cart through its own mutations so the server snapshot obeys the
// same invariants as local edits.
func fromCartDTO(dto cartDTO) (domain.Cart, error) {
	cur := domain.DefaultCurrency
	if dto.Currency != "" {
		parsed, err := currency.ParseISO(dto.Currency)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("currency.ParseISO[%s]: %w", dto.Currency, err)
		}
		cur = parsed
	}

	cart := domain.NewCart(dto.OwnerID, cur)
	if dto.Address != nil {
		cart.Address = fromAddressDTO(*dto.Address)
	}

	for _, g := range dto.Sellers {
		seller := domain.Seller{ID: g.Seller.ID, Name: g.Seller.Name, Location: g.Seller.Location}

		for _, itemDTO := range g.Items {
			item, err := fromLineItemDTO(itemDTO)
			if err != nil {
				return domain.Cart{}, fmt.Errorf("seller[%s]: %w", seller.ID, err)
			}
			if err := cart.AddOrUpdateLine(seller, item); err != nil {
				return domain.Cart{}, fmt.Errorf("cart.AddOrUpdateLine: %w", err)
			}
		}

		if _, ok := cart.Group(seller.ID); !ok || g.Quote == nil {
			continue
		}

		quote, err := fromShippingMethodDTOs(g.Quote)
		if err != nil {
			return domain.Cart{}, fmt.Errorf("seller[%s]: %w", seller.ID, err)
		}
		// nested methods may omit seller_id
		for i := range quote {
			quote[i].SellerID = seller.ID
		}
		if err := cart.SetShippingQuotes(seller.ID, quote); err != nil {
			return domain.Cart{}, fmt.Errorf("cart.SetShippingQuotes: %w", err)
		}

		if g.Selected != nil {
			selected, err := fromShippingMethodDTO(*g.Selected)
			if err != nil {
				return domain.Cart{}, fmt.Errorf("seller[%s]: %w", seller.ID, err)
			}
			selected.SellerID = seller.ID
			// a stale selection is dropped, like after a quote refresh
			_ = cart.SetSelectedShippingMethod(seller.ID, selected.Key())
		}
	}

	return cart, nil
}

func toOrderUpdateDTO(u domain.OrderUpdate) orderUpdateDTO {
	selections := make([]shippingMethodDTO, 0, len(u.Selections))
	for _, m := range u.Selections {
		selections = append(selections, toShippingMethodDTO(m))
	}

	return orderUpdateDTO{
		Selections:   selections,
		Address:      toAddressDTO(u.Address),
		Subtotal:     toMoneyDTO(u.Subtotal),
		ShippingCost: toMoneyDTO(u.ShippingCost),
		Total:        toMoneyDTO(u.Total),
		Finalize:     u.Finalize,
	}
}
