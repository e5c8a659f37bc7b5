// Package sources implementa los ports.SourceAdapter contra los sitios de
// listados. Cada adapter aplana su payload a RawListing; la interpretación
// vive en el normalizador.
package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/mwmardis/ListingIQ/internal/domain"
	"github.com/mwmardis/ListingIQ/internal/ports"
)

const (
	defaultRedfinBase = "https://www.redfin.com"

	// Sin API pública: un request por segundo para no llamar la atención.
	redfinRatePerSec = 1

	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Redfin implementa ports.SourceAdapter contra la API interna (stingray).
type Redfin struct {
	http    *http.Client
	base    string
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewRedfin crea el adapter. Si base está vacío usa el sitio de producción.
func NewRedfin(base string, log *slog.Logger) *Redfin {
	if base == "" {
		base = defaultRedfinBase
	}
	return &Redfin{
		http:    &http.Client{Timeout: 15 * time.Second},
		base:    base,
		limiter: rate.NewLimiter(redfinRatePerSec, 2),
		log:     log.With("source", "redfin"),
	}
}

// Source implementa ports.SourceAdapter.
func (r *Redfin) Source() domain.Source { return domain.SourceRedfin }

// Fetch implementa ports.SourceAdapter: resuelve la región por autocomplete
// y consulta el endpoint GIS con los filtros.
func (r *Redfin) Fetch(ctx context.Context, filter ports.SearchFilter) ([]ports.RawListing, error) {
	regionID, regionType, err := r.resolveRegion(ctx, filter.Region)
	if err != nil {
		return nil, fmt.Errorf("sources.Redfin: resolve region %q: %w", filter.Region, err)
	}

	q := url.Values{}
	q.Set("al", "1")
	q.Set("region_id", regionID)
	q.Set("region_type", regionType)
	q.Set("num_homes", "350")
	q.Set("status", "9")
	q.Set("v", "8")
	if filter.MinPrice > 0 {
		q.Set("min_price", fmt.Sprintf("%d", filter.MinPrice))
	}
	if filter.MaxPrice > 0 {
		q.Set("max_price", fmt.Sprintf("%d", filter.MaxPrice))
	}
	if filter.MinBeds > 0 {
		q.Set("num_beds", fmt.Sprintf("%d", filter.MinBeds))
	}
	if filter.MinBaths > 0 {
		q.Set("num_baths", fmt.Sprintf("%.1f", filter.MinBaths))
	}
	if filter.MaxAge > 0 {
		q.Set("time_on_market_range", fmt.Sprintf("1-%d", filter.MaxAge))
	}

	var payload struct {
		Payload struct {
			Homes []map[string]any `json:"homes"`
		} `json:"payload"`
	}
	if err := r.get(ctx, r.base+"/stingray/api/gis?"+q.Encode(), &payload); err != nil {
		return nil, fmt.Errorf("sources.Redfin: search: %w", err)
	}

	listings := make([]ports.RawListing, 0, len(payload.Payload.Homes))
	for _, home := range payload.Payload.Homes {
		listings = append(listings, ports.RawListing{
			Source: domain.SourceRedfin,
			Fields: flattenHome(home, r.base),
		})
	}
	r.log.Debug("listados obtenidos", "region", filter.Region, "count", len(listings))
	return listings, nil
}

// resolveRegion traduce "Columbus, OH" al par (region_id, region_type) que
// exige el endpoint de búsqueda.
func (r *Redfin) resolveRegion(ctx context.Context, region string) (string, string, error) {
	q := url.Values{}
	q.Set("location", region)
	q.Set("v", "2")

	var payload struct {
		Payload struct {
			Sections []struct {
				Rows []struct {
					ID string `json:"id"`
				} `json:"rows"`
			} `json:"sections"`
		} `json:"payload"`
	}
	if err := r.get(ctx, r.base+"/stingray/do/location-autocomplete?"+q.Encode(), &payload); err != nil {
		return "", "", err
	}

	// El id viene como "tipo_id", p.ej. "6_12345" para una ciudad.
	for _, section := range payload.Payload.Sections {
		for _, row := range section.Rows {
			parts := strings.SplitN(row.ID, "_", 2)
			if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
				return parts[1], parts[0], nil
			}
		}
	}
	return "", "", fmt.Errorf("sin resultados de autocomplete")
}

// get hace un GET con rate limiting, retries y el strip del prefijo anti-JSON.
func (r *Redfin) get(ctx context.Context, rawURL string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := r.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64)")

		resp, err := r.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			r.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("status %d after %d retries", resp.StatusCode, maxRetries)
			}
			r.log.Warn("respuesta no exitosa, reintentando", "status", resp.StatusCode, "attempt", attempt+1)
			r.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		// Redfin antepone "{}&&" para bloquear JSON hijacking.
		body = []byte(strings.TrimPrefix(string(body), "{}&&"))
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (r *Redfin) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

// redfinPropertyTypes mapea los códigos numéricos de uipt a los labels que
// entiende el normalizador.
var redfinPropertyTypes = map[int]string{
	1: "single_family",
	2: "condo",
	3: "townhouse",
	4: "multi_family",
}

// flattenHome aplana un home del payload GIS: desenvuelve los campos
// `{"value": ...}` y deja las claves planas que espera el normalizador.
func flattenHome(home map[string]any, base string) map[string]any {
	fields := make(map[string]any, len(home))
	for key, v := range home {
		fields[key] = unwrapValue(v)
	}

	if u, ok := fields["url"].(string); ok && strings.HasPrefix(u, "/") {
		fields["url"] = base + u
	}
	if code, ok := fields["propertyType"].(float64); ok {
		if label, found := redfinPropertyTypes[int(code)]; found {
			fields["propertyType"] = label
		} else {
			fields["propertyType"] = "single_family"
		}
	}
	// El impuesto viene anidado en taxInfo.
	if tax, ok := home["taxInfo"].(map[string]any); ok {
		fields["taxAnnual"] = unwrapValue(tax["amount"])
	}
	return fields
}

// unwrapValue desenvuelve el patrón {"value": X, "level": N} de Redfin.
func unwrapValue(v any) any {
	if m, ok := v.(map[string]any); ok {
		if inner, found := m["value"]; found {
			return inner
		}
	}
	return v
}
