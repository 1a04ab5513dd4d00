package domain

import (
	"fmt"
	"time"
)

type ShippingMethod struct {
	SellerID          string
	CourierID         string
	ServiceType       string
	ServiceName       string
	Alias             string
	Price             Money
	EstimatedDelivery time.Time
}

func (m ShippingMethod) Key() MethodKey {
	return MethodKey{
		SellerID:    m.SellerID,
		CourierID:   m.CourierID,
		ServiceType: m.ServiceType,
	}
}

// MethodKey identifies a shipping method within one seller's quote.
type MethodKey struct {
	SellerID    string
	CourierID   string
	ServiceType string
}

func (k MethodKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.SellerID, k.CourierID, k.ServiceType)
}

// OrderUpdate is what the remote order receives when shipping choices change or the order
// is finalized.
type OrderUpdate struct {
	Selections   []ShippingMethod
	Address      ShippingAddress
	Subtotal     Money
	ShippingCost Money
	Total        Money
	Finalize     bool
}
