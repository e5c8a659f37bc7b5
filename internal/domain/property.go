package domain

import (
	"fmt"
	"math"
	"time"
)

// Cents es dinero en centavos enteros (fixed-point).
// Toda la aritmética monetaria usa este tipo para que los resultados sean
// reproducibles bit a bit entre ejecuciones y plataformas.
type Cents int64

// CentsFromDollars convierte dólares a centavos redondeando al centavo más cercano.
func CentsFromDollars(d float64) Cents {
	return Cents(math.Round(d * 100))
}

// Dollars devuelve el valor en dólares como float64.
func (c Cents) Dollars() float64 {
	return float64(c) / 100
}

func (c Cents) String() string {
	return fmt.Sprintf("$%.2f", c.Dollars())
}

// Source identifica el sitio de listados del que proviene un Property.
type Source string

const (
	SourceRedfin  Source = "redfin"
	SourceZillow  Source = "zillow"
	SourceRealtor Source = "realtor"
)

// PropertyType clasifica el tipo de inmueble.
type PropertyType string

const (
	SingleFamily PropertyType = "single_family"
	MultiFamily  PropertyType = "multi_family"
	Condo        PropertyType = "condo"
	Townhouse    PropertyType = "townhouse"
)

// Key es la identidad estable de un listado físico a través de scans repetidos:
// el par (source, source_id).
type Key struct {
	Source   Source `json:"source"`
	SourceID string `json:"source_id"`
}

func (k Key) String() string {
	return string(k.Source) + ":" + k.SourceID
}

// Property es el listado canónico, ya normalizado e independiente de la fuente.
// Los campos opcionales (rent, ARV, tax, HOA) valen 0 cuando la fuente no los
// provee — 0 nunca es un valor válido para ellos, así que no hay ambigüedad.
type Property struct {
	Source       Source       `json:"source"`
	SourceID     string       `json:"source_id"`
	URL          string       `json:"url,omitempty"`
	Address      string       `json:"address"`
	City         string       `json:"city,omitempty"`
	State        string       `json:"state,omitempty"`
	Zip          string       `json:"zip,omitempty"`
	Price        Cents        `json:"price"`
	Beds         int          `json:"beds"`
	Baths        float64      `json:"baths"`
	Sqft         int          `json:"sqft"`
	YearBuilt    int          `json:"year_built,omitempty"`
	PropertyType PropertyType `json:"property_type"`

	// Estimaciones provistas por el adapter de la fuente (0 = sin estimación).
	EstimatedRent Cents `json:"estimated_rent,omitempty"`
	EstimatedARV  Cents `json:"estimated_arv,omitempty"`
	TaxAnnual     Cents `json:"tax_annual,omitempty"`
	HOAMonthly    Cents `json:"hoa_monthly,omitempty"`

	ListDate   time.Time `json:"list_date,omitempty"`
	LastSeenAt time.Time `json:"last_seen_at"`
}

// Key devuelve la identidad estable del listado.
func (p Property) Key() Key {
	return Key{Source: p.Source, SourceID: p.SourceID}
}

// FullAddress devuelve la dirección completa en una línea.
func (p Property) FullAddress() string {
	if p.City == "" {
		return p.Address
	}
	return fmt.Sprintf("%s, %s, %s %s", p.Address, p.City, p.State, p.Zip)
}

// PricePerSqft devuelve el precio por pie cuadrado en dólares.
func (p Property) PricePerSqft() float64 {
	if p.Sqft <= 0 {
		return 0
	}
	return p.Price.Dollars() / float64(p.Sqft)
}
