package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mwmardis/ListingIQ/internal/domain"
	"github.com/mwmardis/ListingIQ/internal/ports"
)

// Fixture implementa ports.SourceAdapter leyendo listados de un archivo
// JSON. Sirve para dry-runs y tests: mismo pipeline, sin red.
//
// Formato del archivo:
//
//	{"source": "redfin", "listings": [ { ...campos planos... } ]}
type Fixture struct {
	path   string
	source domain.Source
}

// NewFixture crea el adapter para el archivo dado. El source se lee del
// propio archivo en el primer Fetch.
func NewFixture(path string) (*Fixture, error) {
	doc, err := readFixture(path)
	if err != nil {
		return nil, err
	}
	return &Fixture{path: path, source: domain.Source(doc.Source)}, nil
}

type fixtureDoc struct {
	Source   string           `json:"source"`
	Listings []map[string]any `json:"listings"`
}

func readFixture(path string) (*fixtureDoc, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sources.Fixture: read %q: %w", path, err)
	}
	var doc fixtureDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("sources.Fixture: decode %q: %w", path, err)
	}
	if doc.Source == "" {
		return nil, fmt.Errorf("sources.Fixture: %q sin campo source", path)
	}
	return &doc, nil
}

// Source implementa ports.SourceAdapter.
func (f *Fixture) Source() domain.Source { return f.source }

// Fetch implementa ports.SourceAdapter. Se relee el archivo en cada ciclo,
// así un dry-run largo puede editarse en caliente.
func (f *Fixture) Fetch(ctx context.Context, _ ports.SearchFilter) ([]ports.RawListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := readFixture(f.path)
	if err != nil {
		return nil, err
	}

	listings := make([]ports.RawListing, 0, len(doc.Listings))
	for _, fields := range doc.Listings {
		listings = append(listings, ports.RawListing{Source: f.source, Fields: fields})
	}
	return listings, nil
}
