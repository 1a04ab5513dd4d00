package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
)

var _ port.CartAPI = (*Client)(nil)

func (c *Client) GetCart(ctx context.Context, token string) (domain.Cart, error) {
	var dto cartDTO
	if err := c.doJSON(ctx, request{method: http.MethodGet, path: "/cart", token: token}, &dto); err != nil {
		return domain.Cart{}, err
	}

	cart, err := fromCartDTO(dto)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("fromCartDTO: %w", err)
	}

	return cart, nil
}

type addItemRequest struct {
	Seller sellerDTO   `json:"seller"`
	Item   lineItemDTO `json:"item"`
}

func (c *Client) AddItem(ctx context.Context, token string, seller domain.Seller, item domain.LineItem) error {
	return c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/cart/add",
		token:  token,
		body: addItemRequest{
			Seller: toSellerDTO(seller),
			Item:   toLineItemDTO(item),
		},
	}, nil)
}

type removeItemRequest struct {
	SellerID  string    `json:"seller_id"`
	ProductID uuid.UUID `json:"product_id"`
}

type removeItemResponse struct {
	Removed bool `json:"removed"`
}

func (c *Client) RemoveItem(ctx context.Context, token string, sellerID string, productID uuid.UUID) (bool, error) {
	var resp removeItemResponse
	err := c.doJSON(ctx, request{
		method: http.MethodDelete,
		path:   "/cart/remove",
		token:  token,
		body:   removeItemRequest{SellerID: sellerID, ProductID: productID},
	}, &resp)

	return resp.Removed, err
}

func (c *Client) SaveShippingAddress(ctx context.Context, token string, address domain.ShippingAddress) error {
	return c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/cart/shipping",
		token:  token,
		body:   toAddressDTO(address),
	}, nil)
}

func (c *Client) UpdateOrder(ctx context.Context, token string, update domain.OrderUpdate) error {
	return c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/cart",
		token:  token,
		body:   toOrderUpdateDTO(update),
	}, nil)
}
