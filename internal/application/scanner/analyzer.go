package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mwmardis/ListingIQ/internal/domain"
	"github.com/mwmardis/ListingIQ/internal/domain/strategy"
)

// Analyzer corre todas las estrategias configuradas sobre un listado.
type Analyzer struct {
	strategies []strategy.Strategy
	offers     *strategy.OfferCalculator
	log        *slog.Logger
}

// NewAnalyzer crea el analyzer. Con offers != nil, cada score se enriquece
// con la oferta máxima que cumple el objetivo de su estrategia.
func NewAnalyzer(strategies []strategy.Strategy, offers *strategy.OfferCalculator, log *slog.Logger) *Analyzer {
	return &Analyzer{strategies: strategies, offers: offers, log: log.With("component", "analyzer")}
}

// Analyze devuelve un DealScore por estrategia aplicable. Una estrategia a
// la que le falta un input (MetricError) se omite sin ruido; cualquier otro
// error es un fallo del listado completo.
func (a *Analyzer) Analyze(ctx context.Context, p domain.Property) ([]domain.DealScore, error) {
	scores := make([]domain.DealScore, 0, len(a.strategies))
	for _, s := range a.strategies {
		score, err := s.Compute(ctx, p)
		if err != nil {
			var merr *domain.MetricError
			if errors.As(err, &merr) {
				a.log.Debug("estrategia omitida",
					"key", p.Key().String(),
					"strategy", s.Name(),
					"metric", merr.Metric)
				continue
			}
			return nil, fmt.Errorf("scanner.Analyze %s [%s]: %w", p.Key(), s.Name(), err)
		}
		a.attachOffer(ctx, s, p, &score)
		scores = append(scores, score)
	}
	return scores, nil
}

// attachOffer agrega la oferta máxima a las métricas del score. Sin oferta
// viable (o sin calculador) no agrega nada; un error aquí no es fatal.
func (a *Analyzer) attachOffer(ctx context.Context, s strategy.Strategy, p domain.Property, score *domain.DealScore) {
	if a.offers == nil {
		return
	}
	res, err := a.offers.MaxOffer(ctx, s, p)
	if err != nil || res == nil {
		return
	}
	score.Metrics["max_offer_price"] = res.MaxOfferPrice.Dollars()
	score.Metrics["offer_discount"] = res.DiscountFromList
}
