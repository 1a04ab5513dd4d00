package address

import (
	"context"
	"slices"
	"strings"

	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/nikolayk812/marketplace-checkout/internal/port"
	"github.com/sirupsen/logrus"
)

// MinPostalCodeLength is the shortest postal code input that triggers a lookup.
const MinPostalCodeLength = 4

// Partial is the address input the resolution starts from.
type Partial struct {
	PostalCode string
	State      domain.State
}

// Resolution holds the candidate lists and the current selection for each field.
type Resolution struct {
	PostalCode    string
	Cities        []domain.City
	Neighborhoods []domain.Neighborhood

	State        domain.State
	City         domain.City
	Neighborhood domain.Neighborhood
}

func (r Resolution) Resolved() bool {
	return r.State.ID != "" && r.City.ID != "" && r.Neighborhood.Name != ""
}

// Apply copies the resolved fields onto an address, leaving recipient and street fields alone.
func (r Resolution) Apply(addr domain.ShippingAddress) domain.ShippingAddress {
	if r.PostalCode != "" {
		addr.PostalCode = r.PostalCode
	} else if r.Neighborhood.PostalCode != "" {
		addr.PostalCode = r.Neighborhood.PostalCode
	}
	addr.Neighborhood = r.Neighborhood.Name
	addr.CityID = r.City.ID
	addr.CityName = r.City.Name
	addr.StateID = r.State.ID
	addr.StateName = r.State.Name
	addr.Country = domain.Country
	return addr
}

// Resolver turns partial input into a consistent state/city/neighborhood triple. The
// stages run top-down in one pass:
//
//	postal code -> neighborhoods -> state -> cities -> city -> (neighborhoods by city name)
//
// and the last completed stage wins. Collaborator failures yield empty candidate lists.
type Resolver struct {
	postal port.PostalLookup
	geo    port.GeoCatalog
	log    logrus.FieldLogger
}

func NewResolver(postal port.PostalLookup, geo port.GeoCatalog, log logrus.FieldLogger) *Resolver {
	return &Resolver{
		postal: postal,
		geo:    geo,
		log:    log,
	}
}

func (r *Resolver) Resolve(ctx context.Context, p Partial) Resolution {
	res := Resolution{
		PostalCode: strings.TrimSpace(p.PostalCode),
		State:      p.State,
	}

	if nbs, ok := r.OnPostalCodeChanged(ctx, res.PostalCode); ok {
		res = withPostalNeighborhoods(res, nbs)
	}

	if res.State.ID == "" {
		return res
	}

	return r.resolveCities(ctx, res, true)
}

// OnPostalCodeChanged returns the neighborhoods for a postal code. Inputs shorter than
// MinPostalCodeLength are ignored and reported with ok == false.
func (r *Resolver) OnPostalCodeChanged(ctx context.Context, code string) ([]domain.Neighborhood, bool) {
	code = strings.TrimSpace(code)
	if len(code) < MinPostalCodeLength {
		return nil, false
	}

	nbs, err := r.postal.NeighborhoodsByPostalCode(ctx, code)
	if err != nil {
		r.log.WithError(err).WithField("postal_code", code).Warn("postal code lookup failed")
		return nil, true
	}

	return nbs, true
}

func (r *Resolver) States(ctx context.Context) []domain.State {
	states, err := r.geo.States(ctx)
	if err != nil {
		r.log.WithError(err).Warn("states lookup failed")
		return nil
	}
	return states
}

// SelectState is a manual state choice. Cities are fetched again and the city stage re-runs.
func (r *Resolver) SelectState(ctx context.Context, res Resolution, state domain.State) Resolution {
	res.State = state
	return r.resolveCities(ctx, res, true)
}

// SelectCity is a manual city choice. Unless the current neighborhood already belongs to
// the city, neighborhoods are fetched again by the city's name.
func (r *Resolver) SelectCity(ctx context.Context, res Resolution, cityID string) (Resolution, error) {
	i := slices.IndexFunc(res.Cities, func(c domain.City) bool { return c.ID == cityID })
	if i < 0 {
		return res, domain.ValidationErrors{"city": "is not available for the selected state"}
	}
	res.City = res.Cities[i]

	if res.Neighborhood.Name != "" && SameName(res.Neighborhood.MunicipalityName, res.City.Name) {
		return res, nil
	}

	nbs := r.neighborhoodsByCity(ctx, res.City.Name)
	return withCityNeighborhoods(res, nbs), nil
}

// SelectNeighborhood only changes the neighborhood field.
func (r *Resolver) SelectNeighborhood(res Resolution, name string) (Resolution, error) {
	i := slices.IndexFunc(res.Neighborhoods, func(n domain.Neighborhood) bool {
		return SameName(n.Name, name)
	})
	if i < 0 {
		return res, domain.ValidationErrors{"neighborhood": "is not available for the postal code"}
	}
	res.Neighborhood = res.Neighborhoods[i]
	return res, nil
}

// resolveCities fetches the state's cities and picks one. With fallback set and no matching
// neighborhood, neighborhoods are fetched by the chosen city's name; if their state differs,
// the cities stage runs once more without fallback, so the pass always terminates.
func (r *Resolver) resolveCities(ctx context.Context, res Resolution, fallback bool) Resolution {
	res.Cities = r.cities(ctx, res.State.ID)
	if len(res.Cities) == 0 {
		res.City = domain.City{}
		return res
	}

	if res.Neighborhood.Name != "" {
		if city, ok := MatchCity(res.Cities, res.Neighborhood.MunicipalityName); ok {
			res.City = city
			return res
		}
	}

	res.City = res.Cities[0]
	if !fallback {
		return res
	}

	prevState := res.State.ID
	res = withCityNeighborhoods(res, r.neighborhoodsByCity(ctx, res.City.Name))
	if res.State.ID != prevState {
		return r.resolveCities(ctx, res, false)
	}

	return res
}

func (r *Resolver) cities(ctx context.Context, stateID string) []domain.City {
	cities, err := r.geo.Cities(ctx, stateID)
	if err != nil {
		r.log.WithError(err).WithField("state_id", stateID).Warn("cities lookup failed")
		return nil
	}
	return cities
}

func (r *Resolver) neighborhoodsByCity(ctx context.Context, cityName string) []domain.Neighborhood {
	nbs, err := r.postal.NeighborhoodsByCity(ctx, cityName)
	if err != nil {
		r.log.WithError(err).WithField("city", cityName).Warn("neighborhoods by city lookup failed")
		return nil
	}
	return nbs
}

// MatchCity finds the city whose name equals name ignoring case and diacritics.
func MatchCity(cities []domain.City, name string) (domain.City, bool) {
	if strings.TrimSpace(name) == "" {
		return domain.City{}, false
	}
	want := Normalize(name)
	for _, c := range cities {
		if Normalize(c.Name) == want {
			return c, true
		}
	}
	return domain.City{}, false
}

// withPostalNeighborhoods takes the first neighborhood as canonical; its state overrides
// whatever state was chosen before.
func withPostalNeighborhoods(res Resolution, nbs []domain.Neighborhood) Resolution {
	res.Neighborhoods = nbs
	if len(nbs) == 0 {
		res.Neighborhood = domain.Neighborhood{}
		return res
	}
	res.Neighborhood = nbs[0]
	res.State = domain.State{ID: nbs[0].StateID, Name: nbs[0].StateName}
	return res
}

// withCityNeighborhoods defaults to the first candidate and re-sets the state recorded on it.
func withCityNeighborhoods(res Resolution, nbs []domain.Neighborhood) Resolution {
	res.Neighborhoods = nbs
	if len(nbs) == 0 {
		res.Neighborhood = domain.Neighborhood{}
		return res
	}
	res.Neighborhood = nbs[0]
	if nbs[0].StateID != "" {
		res.State = domain.State{ID: nbs[0].StateID, Name: nbs[0].StateName}
	}
	return res
}
