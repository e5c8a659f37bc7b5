package strategy

import (
	"context"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// OfferConfig configura los objetivos del calculador de oferta máxima.
type OfferConfig struct {
	CashFlowTargetMonthly float64 `yaml:"cash_flow_target_monthly"` // dólares/mes
	BRRRTargetCoC         float64 `yaml:"brrr_target_coc"`          // %
	FlipTargetProfit      float64 `yaml:"flip_target_profit"`       // dólares
	MaxIterations         int     `yaml:"max_iterations"`
	PriceTolerance        float64 `yaml:"price_tolerance"` // dólares, criterio de corte de la búsqueda
}

// DefaultOfferConfig devuelve los objetivos por defecto.
func DefaultOfferConfig() OfferConfig {
	return OfferConfig{
		CashFlowTargetMonthly: 200,
		BRRRTargetCoC:         10,
		FlipTargetProfit:      30000,
		MaxIterations:         50,
		PriceTolerance:        500,
	}
}

// OfferResult es el precio máximo de oferta que todavía cumple el objetivo
// de la estrategia, con las métricas recalculadas a ese precio.
type OfferResult struct {
	Strategy         domain.StrategyName `json:"strategy"`
	TargetMetric     string              `json:"target_metric"`
	TargetValue      float64             `json:"target_value"`
	MaxOfferPrice    domain.Cents        `json:"max_offer_price"`
	MetricsAtOffer   map[string]float64  `json:"metrics_at_offer"`
	DiscountFromList float64             `json:"discount_from_list"` // fracción bajo el precio de lista
}

// OfferCalculator invierte las fórmulas de cada estrategia: en vez de
// "¿qué rinde a este precio?" responde "¿hasta qué precio rinde lo exigido?".
type OfferCalculator struct {
	cfg OfferConfig
}

// NewOfferCalculator crea el calculador con los objetivos dados.
func NewOfferCalculator(cfg OfferConfig) *OfferCalculator {
	return &OfferCalculator{cfg: cfg}
}

// MaxOffer calcula la oferta máxima para un listado bajo una estrategia.
// Para cash flow y BRRR la fórmula no es invertible en forma cerrada (la
// cuota amortizada depende del precio), así que se busca por bisección;
// para flip el profit es lineal en el precio y se despeja directo.
// Devuelve nil si ni siquiera a precio mínimo se alcanza el objetivo.
func (c *OfferCalculator) MaxOffer(ctx context.Context, s Strategy, p domain.Property) (*OfferResult, error) {
	switch s.Name() {
	case domain.StrategyFlip:
		return c.flipOffer(ctx, s, p)
	case domain.StrategyCashFlow:
		return c.search(ctx, s, p, "monthly_cash_flow", c.cfg.CashFlowTargetMonthly)
	case domain.StrategyBRRR:
		return c.search(ctx, s, p, "cash_on_cash", c.cfg.BRRRTargetCoC)
	}
	return nil, &domain.MetricError{Metric: string(s.Name()), Reason: "estrategia sin objetivo de oferta"}
}

// flipOffer despeja el precio directamente:
// profit = arv - precio - rehab - holding - selling  ⇒
// precio_max = arv - rehab - holding - selling - profit_objetivo.
func (c *OfferCalculator) flipOffer(ctx context.Context, s Strategy, p domain.Property) (*OfferResult, error) {
	flip, ok := s.(*Flip)
	if !ok {
		return c.search(ctx, s, p, "net_profit", c.cfg.FlipTargetProfit)
	}
	arv := p.EstimatedARV
	if arv <= 0 {
		return nil, &domain.MetricError{Metric: "estimated_arv", Reason: "la fuente no proveyó ARV estimado"}
	}
	rehab := domain.CentsFromDollars(flip.cfg.RehabCostPerSqft * float64(p.Sqft))
	holding := domain.CentsFromDollars(flip.cfg.MonthlyHoldingCost * float64(flip.cfg.ProjectMonths))
	selling := domain.PctOf(arv, flip.cfg.SellingCostPct)
	target := domain.CentsFromDollars(c.cfg.FlipTargetProfit)

	maxPrice := arv - rehab - holding - selling - target
	if maxPrice <= 0 {
		return nil, nil
	}
	return c.result(ctx, s, p, maxPrice, "net_profit", c.cfg.FlipTargetProfit)
}

// search busca por bisección el mayor precio cuya métrica sigue >= objetivo.
// El rango parte en [$1,000, 1.5 × precio de lista]: los deals que exigen
// pagar sobre lista con margen no son accionables y se descartan.
func (c *OfferCalculator) search(ctx context.Context, s Strategy, p domain.Property, metric string, target float64) (*OfferResult, error) {
	low := domain.CentsFromDollars(1000)
	high := domain.PctOf(p.Price, 1.5)
	if high <= low {
		return nil, nil
	}
	tolerance := domain.CentsFromDollars(c.cfg.PriceTolerance)

	eval := func(price domain.Cents) (float64, bool, error) {
		candidate := p
		candidate.Price = price
		score, err := s.Compute(ctx, candidate)
		if err != nil {
			return 0, false, err
		}
		v, ok := score.Metrics[metric]
		return v, ok, nil
	}

	// Si ni a precio mínimo se alcanza el objetivo, no hay oferta viable.
	v, ok, err := eval(low)
	if err != nil {
		return nil, err
	}
	if !ok || v < target {
		return nil, nil
	}

	best := low
	for i := 0; i < c.cfg.MaxIterations && high-low > tolerance; i++ {
		mid := low + (high-low)/2
		v, ok, err := eval(mid)
		if err != nil {
			return nil, err
		}
		if ok && v >= target {
			best = mid
			low = mid
		} else {
			high = mid
		}
	}
	return c.result(ctx, s, p, best, metric, target)
}

func (c *OfferCalculator) result(ctx context.Context, s Strategy, p domain.Property, offer domain.Cents, metric string, target float64) (*OfferResult, error) {
	candidate := p
	candidate.Price = offer
	score, err := s.Compute(ctx, candidate)
	if err != nil {
		return nil, err
	}
	discount := 0.0
	if p.Price > 0 {
		discount = domain.Round4(1 - float64(offer)/float64(p.Price))
	}
	return &OfferResult{
		Strategy:         s.Name(),
		TargetMetric:     metric,
		TargetValue:      target,
		MaxOfferPrice:    offer,
		MetricsAtOffer:   score.Metrics,
		DiscountFromList: discount,
	}, nil
}
