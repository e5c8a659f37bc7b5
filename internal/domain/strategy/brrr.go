package strategy

import (
	"context"
	"time"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// BRRRConfig configura la estrategia Buy-Rehab-Rent-Refinance-Repeat.
type BRRRConfig struct {
	MaxPurchasePctOfARV float64 `yaml:"max_purchase_pct_of_arv"`
	RehabCostPerSqft    float64 `yaml:"rehab_cost_per_sqft"`
	RefinanceLTV        float64 `yaml:"refinance_ltv"`
	MonthlyHoldingCost  float64 `yaml:"monthly_holding_cost"`
	RehabMonths         int     `yaml:"rehab_months"`

	// RecoveryWeight son los puntos máximos del componente de recuperación
	// de capital; el sub-score es lineal (recovery × weight) recortado al peso.
	RecoveryWeight float64 `yaml:"recovery_weight"`

	CoCScale      Scale `yaml:"cash_on_cash_scale"`
	CashFlowScale Scale `yaml:"cash_flow_scale"`
	EquityScale   Scale `yaml:"equity_scale"`
}

// DefaultBRRRConfig devuelve la configuración por defecto.
// Pesos: cash-on-cash 40, recuperación de capital 25, cash flow 20, equity 15.
func DefaultBRRRConfig() BRRRConfig {
	return BRRRConfig{
		MaxPurchasePctOfARV: 0.70,
		RehabCostPerSqft:    30,
		RefinanceLTV:        0.75,
		MonthlyHoldingCost:  1500,
		RehabMonths:         4,
		RecoveryWeight:      25,
		CoCScale: Scale{Bands: []Band{
			{Threshold: 25, Points: 40},
			{Threshold: 15, Points: 30},
			{Threshold: 10, Points: 20},
			{Threshold: 5, Points: 10},
		}},
		CashFlowScale: Scale{Bands: []Band{
			{Threshold: 500, Points: 20},
			{Threshold: 300, Points: 15},
			{Threshold: 200, Points: 10},
			{Threshold: 100, Points: 5},
		}},
		EquityScale: Scale{Bands: []Band{
			{Threshold: 50000, Points: 15},
			{Threshold: 30000, Points: 10},
			{Threshold: 15000, Points: 5},
		}},
	}
}

// BRRR modela el ciclo completo: compra con cash, rehab, renta, refinancia
// contra el ARV y mide cuánto capital queda atrapado en el deal.
type BRRR struct {
	cfg BRRRConfig
	fin CashFlowConfig // términos de financiamiento y gastos operativos compartidos
}

// NewBRRR crea la estrategia. Los términos del préstamo post-refi y los
// gastos operativos se toman de la config de cash flow para que ambas
// estrategias asuman el mismo mercado.
func NewBRRR(cfg BRRRConfig, fin CashFlowConfig) *BRRR {
	return &BRRR{cfg: cfg, fin: fin}
}

// Name implementa Strategy.
func (s *BRRR) Name() domain.StrategyName {
	return domain.StrategyBRRR
}

// Compute implementa Strategy. Requiere estimación de renta; si falta el ARV
// se asume que el precio de lista ya respeta la regla de compra máxima.
func (s *BRRR) Compute(_ context.Context, p domain.Property) (domain.DealScore, error) {
	rent := p.EstimatedRent
	if rent <= 0 {
		return domain.DealScore{}, &domain.MetricError{
			Metric: "monthly_rent",
			Reason: "la fuente no proveyó estimación de renta",
		}
	}

	price := p.Price
	arv := p.EstimatedARV
	if arv <= 0 {
		// Sin ARV: inferirlo asumiendo precio = MaxPurchasePctOfARV × ARV.
		arv = domain.Cents(float64(price) / s.cfg.MaxPurchasePctOfARV)
	}

	rehab := domain.CentsFromDollars(s.cfg.RehabCostPerSqft * float64(p.Sqft))
	holding := domain.CentsFromDollars(s.cfg.MonthlyHoldingCost * float64(s.cfg.RehabMonths))
	totalInvested := price + rehab + holding

	// Refinanciamiento contra el ARV
	refiLoan := domain.PctOf(arv, s.cfg.RefinanceLTV)
	cashLeftIn := totalInvested - refiLoan
	if cashLeftIn < 0 {
		cashLeftIn = 0
	}
	mortgage := domain.MonthlyPayment(refiLoan, s.fin.InterestRate, s.fin.LoanTermYears)

	// Operación post-refi: los gastos se estiman sobre el ARV, no el precio
	// de compra, porque la propiedad ya está rehabilitada.
	tax := monthlyTax(p.TaxAnnual, arv)
	insurance := domain.CentsFromDollars(s.fin.AnnualInsurance / 12)
	maintenance := domain.PctOf(arv, s.fin.MaintenancePct/12)
	management := domain.PctOf(rent, s.fin.ManagementFeePct)
	vacancy := domain.PctOf(rent, s.fin.VacancyRate)
	expenses := mortgage + tax + insurance + maintenance + management + vacancy + p.HOAMonthly

	monthlyCashFlow := rent - expenses
	annualCashFlow := monthlyCashFlow * 12

	coc := domain.CashOnCash(annualCashFlow, cashLeftIn)
	recovery := domain.Round4(1 - float64(cashLeftIn)/float64(totalInvested))
	equity := arv - (price + rehab)

	metrics := map[string]float64{
		"purchase_price":    price.Dollars(),
		"estimated_arv":     arv.Dollars(),
		"rehab_cost":        rehab.Dollars(),
		"holding_cost":      holding.Dollars(),
		"total_invested":    totalInvested.Dollars(),
		"refinance_loan":    refiLoan.Dollars(),
		"cash_left_in_deal": cashLeftIn.Dollars(),
		"monthly_mortgage":  mortgage.Dollars(),
		"monthly_rent":      rent.Dollars(),
		"monthly_cash_flow": monthlyCashFlow.Dollars(),
		"annual_cash_flow":  annualCashFlow.Dollars(),
		"cash_on_cash":      coc,
		"capital_recovery":  recovery,
		"equity_captured":   equity.Dollars(),
	}

	points := s.cfg.CoCScale.Eval(coc) +
		clampPoints(recovery*s.cfg.RecoveryWeight, s.cfg.RecoveryWeight) +
		s.cfg.CashFlowScale.Eval(monthlyCashFlow.Dollars()) +
		s.cfg.EquityScale.Eval(equity.Dollars())

	return domain.DealScore{
		Strategy:   domain.StrategyBRRR,
		Score:      finalScore(points),
		Metrics:    metrics,
		ComputedAt: time.Now().UTC(),
	}, nil
}
