// Package alert decide cuándo un deal merece una alerta y la entrega a los
// canales configurados. La decisión es idempotente: re-escanear un mercado
// sin cambios produce cero alertas.
package alert

import (
	"time"

	"github.com/google/uuid"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// Config son los umbrales del gate.
type Config struct {
	// MinDealScore es el score mínimo para alertar, por estrategia.
	MinDealScore int `yaml:"min_deal_score"`

	// ImprovementMargin es cuántos puntos sobre la última alerta debe
	// mejorar un deal ya alertado para volver a alertar.
	ImprovementMargin int `yaml:"improvement_margin"`
}

// DefaultConfig devuelve los umbrales por defecto.
func DefaultConfig() Config {
	return Config{MinDealScore: 60, ImprovementMargin: 5}
}

// Gate aplica las reglas de decisión sobre cada observación clasificada.
type Gate struct {
	cfg Config
}

// NewGate crea el gate con los umbrales dados.
func NewGate(cfg Config) *Gate {
	return &Gate{cfg: cfg}
}

// Decide devuelve las intenciones de alerta para una observación.
//
// Reglas, en orden:
//   - UNCHANGED y STALE nunca alertan.
//   - Un score bajo el mínimo nunca alerta.
//   - NEW y RELISTED alertan por cada estrategia que califica.
//   - UPDATED alerta solo si el score supera la última alerta de esa
//     estrategia por al menos el margen (marca de agua 0 si nunca alertó).
func (g *Gate) Decide(rec *domain.DealRecord, class domain.Classification, scores []domain.DealScore) []domain.AlertIntent {
	if class == domain.ClassUnchanged || class == domain.ClassStale {
		return nil
	}

	now := time.Now().UTC()
	var intents []domain.AlertIntent
	for _, s := range scores {
		if s.Score < g.cfg.MinDealScore {
			continue
		}
		if class.IsUpdated() && class != domain.ClassRelisted {
			watermark := rec.LastAlerted[s.Strategy]
			if s.Score < watermark+g.cfg.ImprovementMargin {
				continue
			}
		}
		intents = append(intents, domain.AlertIntent{
			ID:             uuid.NewString(),
			Property:       rec.Property,
			Strategy:       s.Strategy,
			Score:          s.Score,
			Metrics:        s.Metrics,
			Classification: class.String(),
			CreatedAt:      now,
		})
	}
	return intents
}
