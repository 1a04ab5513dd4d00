package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
	"github.com/shopspring/decimal"
)

var _ port.QuoteAPI = (*Client)(nil)

type parcelItemDTO struct {
	ProductID  uuid.UUID       `json:"product_id"`
	Quantity   int             `json:"quantity"`
	Weight     decimal.Decimal `json:"weight"`
	Dimensions dimensionsDTO   `json:"dimensions"`
	Value      moneyDTO        `json:"value"`
}

type quoteSellerDTO struct {
	SellerID string          `json:"seller_id"`
	Origin   string          `json:"origin"`
	Items    []parcelItemDTO `json:"items"`
}

type quoteRequest struct {
	Destination addressDTO       `json:"destination"`
	Sellers     []quoteSellerDTO `json:"sellers"`
}

type quoteResponse struct {
	Quotes map[string][]shippingMethodDTO `json:"quotes"`
}

// Quote asks for shipping alternatives for every seller in a single request. Sellers
// missing from the answer cannot ship to the address.
func (c *Client) Quote(ctx context.Context, address domain.ShippingAddress, groups []domain.SellerGroup) (map[string][]domain.ShippingMethod, error) {
	req := quoteRequest{
		Destination: toAddressDTO(address),
		Sellers:     make([]quoteSellerDTO, 0, len(groups)),
	}
	for _, g := range groups {
		seller := quoteSellerDTO{
			SellerID: g.Seller.ID,
			Origin:   g.Seller.Location,
			Items:    make([]parcelItemDTO, 0, len(g.Items)),
		}
		for _, item := range g.Items {
			seller.Items = append(seller.Items, parcelItemDTO{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Weight:    item.Weight,
				Dimensions: dimensionsDTO{
					Length: item.Dimensions.Length,
					Width:  item.Dimensions.Width,
					Height: item.Dimensions.Height,
				},
				Value: toMoneyDTO(item.Subtotal()),
			})
		}
		req.Sellers = append(req.Sellers, seller)
	}

	var resp quoteResponse
	if err := c.doJSON(ctx, request{method: http.MethodPost, path: "/shipping/quotes", body: req}, &resp); err != nil {
		return nil, err
	}

	quotes := make(map[string][]domain.ShippingMethod, len(resp.Quotes))
	for sellerID, dtos := range resp.Quotes {
		methods, err := fromShippingMethodDTOs(dtos)
		if err != nil {
			return nil, fmt.Errorf("seller[%s]: %w", sellerID, err)
		}
		for i := range methods {
			methods[i].SellerID = sellerID
		}
		quotes[sellerID] = methods
	}

	return quotes, nil
}
