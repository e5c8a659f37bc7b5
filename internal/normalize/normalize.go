// Package normalize convierte listados crudos de cada fuente al Property
// canónico. Es la única frontera donde se interpretan los payloads: aguas
// abajo nadie vuelve a mirar un mapa sin tipar.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mwmardis/ListingIQ/internal/domain"
	"github.com/mwmardis/ListingIQ/internal/ports"
)

// NormalizationError indica que un listado crudo no es utilizable.
// El listado se cuenta como skipped, no aborta el ciclo.
type NormalizationError struct {
	Field  string
	Reason string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s", e.Field, e.Reason)
}

// FieldMap traduce claves del payload aplanado de una fuente a los campos
// canónicos. Los adapters aplanan la estructura anidada; aquí solo se renombra
// y se valida.
type FieldMap struct {
	SourceID     string
	Price        string
	Address      string
	City         string
	State        string
	Zip          string
	Beds         string
	Baths        string
	Sqft         string
	YearBuilt    string
	PropertyType string
	URL          string
	Rent         string
	ARV          string
	TaxAnnual    string
	HOAMonthly   string
}

var fieldMaps = map[domain.Source]FieldMap{
	domain.SourceRedfin: {
		SourceID: "mlsId", Price: "price", Address: "streetLine",
		City: "city", State: "state", Zip: "zip",
		Beds: "beds", Baths: "baths", Sqft: "sqFt", YearBuilt: "yearBuilt",
		PropertyType: "propertyType", URL: "url",
		Rent: "rentEstimate", ARV: "arvEstimate",
		TaxAnnual: "taxAnnual", HOAMonthly: "hoa",
	},
	domain.SourceZillow: {
		SourceID: "zpid", Price: "unformattedPrice", Address: "addressStreet",
		City: "addressCity", State: "addressState", Zip: "addressZipcode",
		Beds: "beds", Baths: "baths", Sqft: "area",
		PropertyType: "homeType", URL: "detailUrl",
		Rent: "rentZestimate", ARV: "zestimate",
		TaxAnnual: "taxAnnual", HOAMonthly: "hoaFee",
	},
	domain.SourceRealtor: {
		SourceID: "property_id", Price: "list_price", Address: "address_line",
		City: "city", State: "state_code", Zip: "postal_code",
		Beds: "beds", Baths: "baths", Sqft: "sqft", YearBuilt: "year_built",
		PropertyType: "type", URL: "permalink",
		Rent: "rent_estimate", ARV: "arv_estimate",
		TaxAnnual: "tax_annual", HOAMonthly: "hoa_monthly",
	},
}

// Listing normaliza un listado crudo. Falla si la fuente es desconocida o
// si falta alguno de los campos requeridos: identidad, dirección, precio
// positivo y superficie positiva.
func Listing(raw ports.RawListing, now time.Time) (domain.Property, error) {
	fm, ok := fieldMaps[raw.Source]
	if !ok {
		return domain.Property{}, &NormalizationError{Field: "source", Reason: string(raw.Source) + " desconocida"}
	}
	f := raw.Fields

	sourceID := asString(f[fm.SourceID])
	if sourceID == "" {
		return domain.Property{}, &NormalizationError{Field: "source_id", Reason: "ausente"}
	}
	address := strings.TrimSpace(asString(f[fm.Address]))
	if address == "" {
		return domain.Property{}, &NormalizationError{Field: "address", Reason: "ausente"}
	}
	price, err := asDollars(f[fm.Price])
	if err != nil || price <= 0 {
		return domain.Property{}, &NormalizationError{Field: "price", Reason: "ausente o no positivo"}
	}
	sqft, err := asInt(f[fm.Sqft])
	if err != nil || sqft <= 0 {
		return domain.Property{}, &NormalizationError{Field: "sqft", Reason: "ausente o no positivo"}
	}
	beds, err := asInt(f[fm.Beds])
	if err != nil || beds < 0 {
		return domain.Property{}, &NormalizationError{Field: "beds", Reason: "inválido"}
	}
	baths, err := asFloat(f[fm.Baths])
	if err != nil || baths < 0 {
		return domain.Property{}, &NormalizationError{Field: "baths", Reason: "inválido"}
	}

	p := domain.Property{
		Source:       raw.Source,
		SourceID:     sourceID,
		URL:          asString(f[fm.URL]),
		Address:      address,
		City:         strings.TrimSpace(asString(f[fm.City])),
		State:        strings.TrimSpace(asString(f[fm.State])),
		Zip:          asString(f[fm.Zip]),
		Price:        price,
		Beds:         beds,
		Baths:        baths,
		Sqft:         sqft,
		PropertyType: propertyType(asString(f[fm.PropertyType])),
		LastSeenAt:   now.UTC(),
	}
	if fm.YearBuilt != "" {
		if yb, err := asInt(f[fm.YearBuilt]); err == nil {
			p.YearBuilt = yb
		}
	}

	// Opcionales: quedan en 0 cuando la fuente no los trae o son basura.
	p.EstimatedRent = optionalDollars(f[fm.Rent])
	p.EstimatedARV = optionalDollars(f[fm.ARV])
	p.TaxAnnual = optionalDollars(f[fm.TaxAnnual])
	p.HOAMonthly = optionalDollars(f[fm.HOAMonthly])

	return p, nil
}

// propertyType mapea los strings de tipo de cada fuente al set canónico.
// Lo no reconocido cae en single family, el caso abrumadoramente común.
func propertyType(raw string) domain.PropertyType {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	switch s {
	case "multi_family", "multifamily", "multi_family_home", "duplex", "triplex", "fourplex":
		return domain.MultiFamily
	case "condo", "condos", "condominium", "condo_townhome_rowhome_coop":
		return domain.Condo
	case "townhouse", "townhome", "townhomes":
		return domain.Townhouse
	default:
		return domain.SingleFamily
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// IDs numéricos de JSON llegan como float64.
		return strconv.FormatInt(int64(t), 10)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func asFloat(v any) (float64, error) {
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case string:
		clean := strings.TrimSpace(strings.NewReplacer("$", "", ",", "").Replace(t))
		if clean == "" {
			return 0, fmt.Errorf("empty")
		}
		return strconv.ParseFloat(clean, 64)
	case nil:
		return 0, fmt.Errorf("nil")
	}
	return 0, fmt.Errorf("unsupported type %T", v)
}

func asInt(v any) (int, error) {
	fl, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	return int(fl), nil
}

// asDollars parsea un monto en dólares a Cents.
func asDollars(v any) (domain.Cents, error) {
	fl, err := asFloat(v)
	if err != nil {
		return 0, err
	}
	return domain.CentsFromDollars(fl), nil
}

// optionalDollars parsea un monto opcional: lo no parseable o negativo es 0.
func optionalDollars(v any) domain.Cents {
	c, err := asDollars(v)
	if err != nil || c < 0 {
		return 0
	}
	return c
}
