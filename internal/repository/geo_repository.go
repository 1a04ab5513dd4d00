package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nikolayk812/marketplace-checkout/internal/address"
	"github.com/nikolayk812/marketplace-checkout/internal/db"
	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
)

var (
	_ port.PostalLookup = (*GeoRepository)(nil)
	_ port.GeoCatalog   = (*GeoRepository)(nil)
)

// GeoRepository serves the postal catalog: states, their municipalities (offered as cities)
// and the neighborhoods of each postal code.
type GeoRepository struct {
	q    *db.Queries
	pool *pgxpool.Pool
}

func NewGeo(pool *pgxpool.Pool) *GeoRepository {
	return &GeoRepository{
		q:    db.New(pool),
		pool: pool,
	}
}

func NewGeoWithTx(tx pgx.Tx) *GeoRepository {
	return &GeoRepository{
		q:    db.New(tx),
		pool: nil, // use provided transaction instead
	}
}

func (r *GeoRepository) States(ctx context.Context) ([]domain.State, error) {
	rows, err := r.q.ListStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("q.ListStates: %w", err)
	}

	states := make([]domain.State, 0, len(rows))
	for _, row := range rows {
		states = append(states, domain.State{ID: row.ID, Name: row.Name})
	}

	return states, nil
}

func (r *GeoRepository) Cities(ctx context.Context, stateID string) ([]domain.City, error) {
	if stateID == "" {
		return nil, fmt.Errorf("stateID is empty")
	}

	rows, err := r.q.ListMunicipalitiesByState(ctx, stateID)
	if err != nil {
		return nil, fmt.Errorf("q.ListMunicipalitiesByState: %w", err)
	}

	cities := make([]domain.City, 0, len(rows))
	for _, row := range rows {
		cities = append(cities, domain.City{ID: row.ID, Name: row.Name, StateID: row.StateID})
	}

	return cities, nil
}

func (r *GeoRepository) NeighborhoodsByPostalCode(ctx context.Context, postalCode string) ([]domain.Neighborhood, error) {
	postalCode = strings.TrimSpace(postalCode)
	if postalCode == "" {
		return nil, fmt.Errorf("postalCode is empty")
	}

	rows, err := r.q.ListNeighborhoodsByPostalCode(ctx, postalCode)
	if err != nil {
		return nil, fmt.Errorf("q.ListNeighborhoodsByPostalCode: %w", err)
	}

	nbs := make([]domain.Neighborhood, 0, len(rows))
	for _, row := range rows {
		nbs = append(nbs, mapNeighborhoodRow(db.ListNeighborhoodsByMunicipalityKeyRow(row)))
	}

	return nbs, nil
}

// NeighborhoodsByCity matches the municipality name ignoring case and diacritics.
func (r *GeoRepository) NeighborhoodsByCity(ctx context.Context, cityName string) ([]domain.Neighborhood, error) {
	key := address.Normalize(cityName)
	if key == "" {
		return nil, fmt.Errorf("cityName is empty")
	}

	rows, err := r.q.ListNeighborhoodsByMunicipalityKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("q.ListNeighborhoodsByMunicipalityKey: %w", err)
	}

	nbs := make([]domain.Neighborhood, 0, len(rows))
	for _, row := range rows {
		nbs = append(nbs, mapNeighborhoodRow(row))
	}

	return nbs, nil
}

// Import loads catalog rows in one transaction and returns how many neighborhoods were new.
// States and municipalities are upserted; existing neighborhoods are left as they are.
func (r *GeoRepository) Import(ctx context.Context, nbs []domain.Neighborhood) (int, error) {
	for i, n := range nbs {
		if err := validateImportRow(n); err != nil {
			return 0, fmt.Errorf("row %d: %w", i, err)
		}
	}

	return withTx(ctx, r.pool, r.q, func(q *db.Queries) (int, error) {
		states := map[string]bool{}
		municipalities := map[string]bool{}
		inserted := 0

		for _, n := range nbs {
			if !states[n.StateID] {
				if err := q.UpsertState(ctx, db.UpsertStateParams{ID: n.StateID, Name: n.StateName}); err != nil {
					return 0, fmt.Errorf("q.UpsertState: %w", err)
				}
				states[n.StateID] = true
			}

			municipalityID := n.StateID + n.MunicipalityID
			if !municipalities[municipalityID] {
				err := q.UpsertMunicipality(ctx, db.UpsertMunicipalityParams{
					ID:      municipalityID,
					StateID: n.StateID,
					Code:    n.MunicipalityID,
					Name:    n.MunicipalityName,
					NameKey: address.Normalize(n.MunicipalityName),
				})
				if err != nil {
					return 0, fmt.Errorf("q.UpsertMunicipality: %w", err)
				}
				municipalities[municipalityID] = true
			}

			rows, err := q.InsertNeighborhood(ctx, db.InsertNeighborhoodParams{
				PostalCode:     n.PostalCode,
				Name:           n.Name,
				MunicipalityID: municipalityID,
				CityName:       n.CityName,
			})
			if err != nil {
				return 0, fmt.Errorf("q.InsertNeighborhood: %w", err)
			}
			inserted += int(rows)
		}

		return inserted, nil
	})
}

func validateImportRow(n domain.Neighborhood) error {
	switch {
	case n.Name == "":
		return fmt.Errorf("name is empty")
	case len(n.PostalCode) != 5:
		return fmt.Errorf("postalCode[%s] must have 5 digits", n.PostalCode)
	case len(n.StateID) != 2:
		return fmt.Errorf("stateID[%s] must have 2 digits", n.StateID)
	case len(n.MunicipalityID) != 3:
		return fmt.Errorf("municipalityID[%s] must have 3 digits", n.MunicipalityID)
	case n.MunicipalityName == "":
		return fmt.Errorf("municipalityName is empty")
	}
	return nil
}

func mapNeighborhoodRow(row db.ListNeighborhoodsByMunicipalityKeyRow) domain.Neighborhood {
	return domain.Neighborhood{
		Name:             row.Name,
		PostalCode:       row.PostalCode,
		MunicipalityID:   row.MunicipalityCode,
		MunicipalityName: row.MunicipalityName,
		CityID:           row.MunicipalityID,
		CityName:         row.CityName,
		StateID:          row.StateID,
		StateName:        row.StateName,
	}
}
