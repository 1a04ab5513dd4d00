package port

import (
	"context"

	"github.com/nikolayk812/marketplace-checkout/internal/domain"
)

type PostalLookup interface {
	NeighborhoodsByPostalCode(ctx context.Context, postalCode string) ([]domain.Neighborhood, error)
	NeighborhoodsByCity(ctx context.Context, cityName string) ([]domain.Neighborhood, error)
}

type GeoCatalog interface {
	States(ctx context.Context) ([]domain.State, error)
	Cities(ctx context.Context, stateID string) ([]domain.City, error)
}
