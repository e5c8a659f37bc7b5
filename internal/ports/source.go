package ports

import (
	"context"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// RawListing es un listado tal como lo entrega una fuente, aplanado a un
// mapa de campos sin tipar. El normalizador es el único que lo interpreta.
type RawListing struct {
	Source domain.Source
	Fields map[string]any
}

// SearchFilter son los criterios de búsqueda que se envían a cada fuente.
// Los montos van en dólares enteros porque así los aceptan las APIs.
type SearchFilter struct {
	Region   string  `yaml:"region"`
	MinPrice int64   `yaml:"min_price"`
	MaxPrice int64   `yaml:"max_price"`
	MinBeds  int     `yaml:"min_beds"`
	MinBaths float64 `yaml:"min_baths"`
	MaxAge   int     `yaml:"max_age_days"` // días desde la publicación, 0 = sin límite
}

// SourceAdapter obtiene listados crudos de un sitio de listados.
// Cada adapter es dueño de su rate limiting y sus reintentos.
type SourceAdapter interface {
	// Source identifica la fuente de la que vienen los listados.
	Source() domain.Source

	// Fetch devuelve los listados que cumplen el filtro. Un error aquí
	// marca la fuente como caída para el ciclo, no aborta el scan.
	Fetch(ctx context.Context, filter SearchFilter) ([]RawListing, error)
}
