package port

import (
	"context"

	"github.com/google/uuid"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
)

// CartAPI is the remote cart storage. Every call is keyed by the session token.
type CartAPI interface {
	GetCart(ctx context.Context, token string) (domain.Cart, error)
	AddItem(ctx context.Context, token string, seller domain.Seller, item domain.LineItem) error
	RemoveItem(ctx context.Context, token string, sellerID string, productID uuid.UUID) (bool, error)
	SaveShippingAddress(ctx context.Context, token string, address domain.ShippingAddress) error
	UpdateOrder(ctx context.Context, token string, update domain.OrderUpdate) error
}

// QuoteAPI returns shipping alternatives keyed by seller ID. A seller missing from the
// result cannot ship to the address.
type QuoteAPI interface {
	Quote(ctx context.Context, address domain.ShippingAddress, groups []domain.SellerGroup) (map[string][]domain.ShippingMethod, error)
}
