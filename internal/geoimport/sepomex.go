package geoimport

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nikolayk812/marketplace-checkout/internal/domain"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/encoding/charmap"
)

// Column names of the SEPOMEX postal code file. The file starts with a notice line,
// then a header line, then one pipe separated row per neighborhood.
const (
	colPostalCode   = "d_codigo"
	colName         = "d_asenta"
	colMunicipality = "D_mnpio"
	colState        = "d_estado"
	colCity         = "d_ciudad"
	colStateCode    = "c_estado"
	colMunicipCode  = "c_mnpio"
)

var required = []string{colPostalCode, colName, colMunicipality, colState, colCity, colStateCode, colMunicipCode}

var ErrNoHeader = errors.New("header row not found")

// Parse reads a SEPOMEX export. With latin1 set the input is decoded from ISO-8859-1,
// which is how the file is published.
func Parse(r io.Reader, latin1 bool) ([]domain.Neighborhood, error) {
	if latin1 {
		r = charmap.ISO8859_1.NewDecoder().Reader(r)
	}

	cr := csv.NewReader(r)
	cr.Comma = '|'
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	var (
		index map[string]int
		nbs   []domain.Neighborhood
		line  int
	)

	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("cr.Read: %w", err)
		}
		line++

		if index == nil {
			if idx, ok := headerIndex(record); ok {
				index = idx
			}
			continue
		}

		n, err := toNeighborhood(record, index)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		nbs = append(nbs, n)
	}

	if index == nil {
		return nil, ErrNoHeader
	}

	return nbs, nil
}

func headerIndex(record []string) (map[string]int, bool) {
	idx := make(map[string]int, len(record))
	for i, name := range record {
		idx[strings.TrimSpace(name)] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, false
		}
	}
	return idx, true
}

func toNeighborhood(record []string, idx map[string]int) (domain.Neighborhood, error) {
	field := func(name string) string {
		i := idx[name]
		if i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	if len(record) <= idx[colMunicipCode] {
		return domain.Neighborhood{}, fmt.Errorf("expected at least %d fields, got %d", idx[colMunicipCode]+1, len(record))
	}

	stateID := leftPad(field(colStateCode), 2)
	municipalityID := leftPad(field(colMunicipCode), 3)

	return domain.Neighborhood{
		Name:             field(colName),
		PostalCode:       leftPad(field(colPostalCode), 5),
		MunicipalityID:   municipalityID,
		MunicipalityName: field(colMunicipality),
		CityID:           stateID + municipalityID,
		CityName:         field(colCity),
		StateID:          stateID,
		StateName:        field(colState),
	}, nil
}

func leftPad(s string, n int) string {
	if s == "" || len(s) >= n {
		return s
	}
	return strings.Repeat("0", n-len(s)) + s
}

type Importer interface {
	Import(ctx context.Context, nbs []domain.Neighborhood) (int, error)
}

type Invalidator interface {
	Invalidate(ctx context.Context, postalCodes []string, cityNames []string) error
}

// Load imports the rows in batches and drops cached lookups for every postal code and
// municipality it touched. A failed batch stops the load; earlier batches stay committed.
func Load(ctx context.Context, imp Importer, inv Invalidator, nbs []domain.Neighborhood, batchSize int, log logrus.FieldLogger) (int, error) {
	if batchSize <= 0 {
		batchSize = 1000
	}

	total := 0
	for start := 0; start < len(nbs); start += batchSize {
		batch := nbs[start:min(start+batchSize, len(nbs))]

		inserted, err := imp.Import(ctx, batch)
		if err != nil {
			return total, fmt.Errorf("imp.Import[rows %d-%d]: %w", start, start+len(batch)-1, err)
		}
		total += inserted

		if inv != nil {
			codes, cities := touched(batch)
			if err := inv.Invalidate(ctx, codes, cities); err != nil {
				log.WithError(err).Warn("postal cache invalidation failed")
			}
		}

		log.WithFields(logrus.Fields{
			"rows":     len(batch),
			"inserted": inserted,
		}).Debug("geo batch imported")
	}

	return total, nil
}

func touched(nbs []domain.Neighborhood) ([]string, []string) {
	seenCode := map[string]bool{}
	seenCity := map[string]bool{}
	var codes, cities []string

	for _, n := range nbs {
		if !seenCode[n.PostalCode] {
			seenCode[n.PostalCode] = true
			codes = append(codes, n.PostalCode)
		}
		if !seenCity[n.MunicipalityName] {
			seenCity[n.MunicipalityName] = true
			cities = append(cities, n.MunicipalityName)
		}
	}

	return codes, cities
}
