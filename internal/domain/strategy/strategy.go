package strategy

import (
	"context"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// Strategy define el contrato para evaluar un listado bajo una estrategia
// de inversión. Cada variante es una función pura sobre (Property, config):
// mismo input → mismo DealScore, sin estado compartido ni reloj en las fórmulas.
type Strategy interface {
	// Name devuelve el identificador de la estrategia.
	Name() domain.StrategyName

	// Compute calcula todas las métricas y el score 0-100 para un listado.
	// Devuelve *domain.MetricError si falta un input requerido (p.ej. renta
	// estimada): la estrategia se omite para ese listado, no es fatal.
	Compute(ctx context.Context, p domain.Property) (domain.DealScore, error)
}

// taxFallbackPct es la tasa de impuesto anual asumida (1.2% del valor)
// cuando el listado no trae tax_annual.
const taxFallbackPct = 0.012

// monthlyTax devuelve el impuesto mensual: el real del listado si existe,
// o el fallback calculado sobre el valor de referencia dado.
func monthlyTax(taxAnnual, referenceValue domain.Cents) domain.Cents {
	if taxAnnual > 0 {
		return taxAnnual / 12
	}
	return domain.PctOf(referenceValue, taxFallbackPct/12)
}
