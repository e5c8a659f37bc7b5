package strategy

import (
	"context"
	"time"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// FlipConfig configura la estrategia de compra-rehab-venta.
type FlipConfig struct {
	RehabCostPerSqft   float64 `yaml:"rehab_cost_per_sqft"`
	SellingCostPct     float64 `yaml:"selling_cost_pct"` // comisiones + cierre, fracción del ARV
	MonthlyHoldingCost float64 `yaml:"monthly_holding_cost"`
	ProjectMonths      int     `yaml:"project_months"`

	ProfitScale       Scale `yaml:"profit_scale"`
	ROIScale          Scale `yaml:"roi_scale"`
	ProfitPerMonScale Scale `yaml:"profit_per_month_scale"`
	SpreadScale       Scale `yaml:"arv_spread_scale"`
}

// DefaultFlipConfig devuelve la configuración por defecto.
// Pesos: profit neto 40, ROI 30, profit/mes 20, spread sobre ARV 10.
func DefaultFlipConfig() FlipConfig {
	return FlipConfig{
		RehabCostPerSqft:   35,
		SellingCostPct:     0.08,
		MonthlyHoldingCost: 2000,
		ProjectMonths:      6,
		ProfitScale: Scale{Bands: []Band{
			{Threshold: 75000, Points: 40},
			{Threshold: 50000, Points: 30},
			{Threshold: 30000, Points: 20},
			{Threshold: 15000, Points: 10},
		}},
		ROIScale: Scale{Bands: []Band{
			{Threshold: 30, Points: 30},
			{Threshold: 20, Points: 22},
			{Threshold: 15, Points: 15},
			{Threshold: 10, Points: 8},
		}},
		ProfitPerMonScale: Scale{Bands: []Band{
			{Threshold: 10000, Points: 20},
			{Threshold: 7000, Points: 15},
			{Threshold: 5000, Points: 10},
			{Threshold: 3000, Points: 5},
		}},
		SpreadScale: Scale{Bands: []Band{
			{Threshold: 100000, Points: 10},
			{Threshold: 75000, Points: 7},
			{Threshold: 50000, Points: 4},
		}},
	}
}

// Flip evalúa comprar, rehabilitar y revender dentro del plazo del proyecto.
type Flip struct {
	cfg FlipConfig
}

// NewFlip crea la estrategia con la configuración dada.
func NewFlip(cfg FlipConfig) *Flip {
	return &Flip{cfg: cfg}
}

// Name implementa Strategy.
func (s *Flip) Name() domain.StrategyName {
	return domain.StrategyFlip
}

// Compute implementa Strategy. Requiere ARV estimado: sin precio de salida
// el profit no es calculable y no hay fallback razonable.
func (s *Flip) Compute(_ context.Context, p domain.Property) (domain.DealScore, error) {
	arv := p.EstimatedARV
	if arv <= 0 {
		return domain.DealScore{}, &domain.MetricError{
			Metric: "estimated_arv",
			Reason: "la fuente no proveyó ARV estimado",
		}
	}

	price := p.Price
	rehab := domain.CentsFromDollars(s.cfg.RehabCostPerSqft * float64(p.Sqft))
	holding := domain.CentsFromDollars(s.cfg.MonthlyHoldingCost * float64(s.cfg.ProjectMonths))
	selling := domain.PctOf(arv, s.cfg.SellingCostPct)

	profit := arv - price - rehab - holding - selling
	roi := domain.CashOnCash(profit, price+rehab)
	profitPerMonth := domain.Cents(0)
	if s.cfg.ProjectMonths > 0 {
		profitPerMonth = profit / domain.Cents(s.cfg.ProjectMonths)
	}
	spread := arv - price

	metrics := map[string]float64{
		"purchase_price":   price.Dollars(),
		"estimated_arv":    arv.Dollars(),
		"rehab_cost":       rehab.Dollars(),
		"holding_cost":     holding.Dollars(),
		"selling_cost":     selling.Dollars(),
		"net_profit":       profit.Dollars(),
		"roi":              roi,
		"profit_per_month": profitPerMonth.Dollars(),
		"arv_spread":       spread.Dollars(),
	}

	points := s.cfg.ProfitScale.Eval(profit.Dollars()) +
		s.cfg.ROIScale.Eval(roi) +
		s.cfg.ProfitPerMonScale.Eval(profitPerMonth.Dollars()) +
		s.cfg.SpreadScale.Eval(spread.Dollars())

	return domain.DealScore{
		Strategy:   domain.StrategyFlip,
		Score:      finalScore(points),
		Metrics:    metrics,
		ComputedAt: time.Now().UTC(),
	}, nil
}
