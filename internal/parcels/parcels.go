// Package parcels reads parcel shapefiles (a .shp with its .dbf attribute table) and turns
// each polygon's attributes into a registration request.
package parcels

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/registry"
	"propertyregistry/internal/types"
)

// Parcel is one polygon from a parcel layer together with its attribute table values.
type Parcel struct {
	Row   int
	Attrs map[string]string // DBF attribute values keyed by field name
	Parts int
	// Bounding box in the layer's coordinates, lat = Y, lon = X.
	MinLat, MinLon, MaxLat, MaxLon float64
}

// Mapping names the DBF field that holds each registration field. Empty names are left
// blank in the request.
type Mapping struct {
	OwnerName    string
	GovUID       string
	AddressLine1 string
	AddressLine2 string
	City         string
	State        string
	Country      string
	PinCode      string
	Cost         string
	OwnerAccount string
	SalePrice    string
}

// DefaultMapping matches the field names of the county export.
func DefaultMapping() Mapping {
	return Mapping{
		OwnerName:    "OWNER_NAME",
		GovUID:       "GOV_UID",
		AddressLine1: "ADDR1",
		AddressLine2: "ADDR2",
		City:         "CITY",
		State:        "STATE",
		Country:      "COUNTRY",
		PinCode:      "PIN",
		Cost:         "COST",
		OwnerAccount: "ACCOUNT",
		SalePrice:    "SALE_PRICE",
	}
}

// Load reads every polygon of the shapefile at path. Non-polygon shapes are skipped. The
// attribute table must sit next to it as <name>.dbf.
func Load(path string) ([]Parcel, error) {
	if !strings.EqualFold(filepath.Ext(path), ".shp") {
		return nil, ledger.Errorf(ledger.InvalidInput, "import", "%q is not a .shp file", path)
	}
	// go-shp swaps the last three characters for "dbf" and ignores a missing table.
	dbf := path[:len(path)-3] + "dbf"
	if _, err := os.Stat(dbf); err != nil {
		return nil, ledger.Errorf(ledger.InvalidInput, "import", "attribute table for %s: %v", path, err)
	}

	r, err := shp.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile %s: %w", path, err)
	}
	defer r.Close()

	fields := r.Fields()
	if len(fields) == 0 {
		return nil, ledger.Errorf(ledger.InvalidInput, "import", "%s has no attribute fields", dbf)
	}

	var parcels []Parcel
	for r.Next() {
		idx, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			continue
		}

		minLat, minLon := math.MaxFloat64, math.MaxFloat64
		maxLat, maxLon := -math.MaxFloat64, -math.MaxFloat64
		for _, pt := range poly.Points {
			minLat = math.Min(minLat, pt.Y)
			maxLat = math.Max(maxLat, pt.Y)
			minLon = math.Min(minLon, pt.X)
			maxLon = math.Max(maxLon, pt.X)
		}

		attrs := make(map[string]string, len(fields))
		for i, f := range fields {
			attrs[f.String()] = strings.Trim(r.ReadAttribute(idx, i), " \x00")
		}

		parcels = append(parcels, Parcel{
			Row:    idx,
			Attrs:  attrs,
			Parts:  len(poly.Parts),
			MinLat: minLat,
			MinLon: minLon,
			MaxLat: maxLat,
			MaxLon: maxLon,
		})
	}
	if err := r.Err(); err != nil {
		return parcels, fmt.Errorf("read shapefile %s: %w", path, err)
	}
	return parcels, nil
}

// Bounds formats the bounding box as min and max corners in the layer's coordinates.
func (p Parcel) Bounds() string {
	return fmt.Sprintf("%d part(s), (%.6f, %.6f)-(%.6f, %.6f)", p.Parts, p.MinLon, p.MinLat, p.MaxLon, p.MaxLat)
}

// Request builds a registration request from p's attributes. Amounts must be whole numbers;
// an empty sale price means zero. Field validation is left to the registry.
func (p Parcel) Request(m Mapping) (registry.RegisterRequest, error) {
	get := func(field string) string {
		if field == "" {
			return ""
		}
		return p.Attrs[field]
	}

	cost, err := parseAmount(get(m.Cost))
	if err != nil {
		return registry.RegisterRequest{}, fmt.Errorf("row %d: %s: %w", p.Row, m.Cost, err)
	}
	var sale int64
	if raw := get(m.SalePrice); raw != "" {
		if sale, err = parseAmount(raw); err != nil {
			return registry.RegisterRequest{}, fmt.Errorf("row %d: %s: %w", p.Row, m.SalePrice, err)
		}
	}

	return registry.RegisterRequest{
		OwnerName: get(m.OwnerName),
		GovUID:    get(m.GovUID),
		Location: types.Location{
			AddressLine1: get(m.AddressLine1),
			AddressLine2: get(m.AddressLine2),
			City:         get(m.City),
			State:        get(m.State),
			Country:      get(m.Country),
			PinCode:      get(m.PinCode),
		},
		Cost:         cost,
		OwnerAccount: types.Account(get(m.OwnerAccount)),
		SalePrice:    sale,
	}, nil
}

// parseAmount accepts an integer, optionally written with a zero fraction ("1200.00") the
// way DBF numeric fields often are.
func parseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if strings.Trim(frac, "0") != "" {
		return 0, fmt.Errorf("amount %q is not a whole number", s)
	}
	v, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("amount %q: %w", s, err)
	}
	return v, nil
}
