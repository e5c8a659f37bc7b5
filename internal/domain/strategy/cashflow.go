package strategy

import (
	"context"
	"time"

	"github.com/mwmardis/ListingIQ/internal/domain"
)

// CashFlowConfig configura la estrategia buy-and-hold.
// Es un snapshot inmutable: se construye una vez por scan y se pasa
// explícitamente, nunca se muta a mitad de ciclo.
type CashFlowConfig struct {
	DownPaymentPct   float64 `yaml:"down_payment_pct"`
	InterestRate     float64 `yaml:"interest_rate"`
	LoanTermYears    int     `yaml:"loan_term_years"`
	ClosingCostPct   float64 `yaml:"closing_cost_pct"`
	VacancyRate      float64 `yaml:"vacancy_rate"`
	ManagementFeePct float64 `yaml:"management_fee_pct"`
	MaintenancePct   float64 `yaml:"maintenance_pct"`  // anual, fracción del precio
	AnnualInsurance  float64 `yaml:"annual_insurance"` // dólares/año

	CashFlowScale Scale `yaml:"cash_flow_scale"`
	CapRateScale  Scale `yaml:"cap_rate_scale"`
	CoCScale      Scale `yaml:"cash_on_cash_scale"`
	DSCRScale     Scale `yaml:"dscr_scale"`
	GRMScale      Scale `yaml:"grm_scale"`
}

// DefaultCashFlowConfig devuelve la configuración por defecto.
// Pesos: cash flow 35, cap rate 25, cash-on-cash 20, DSCR 10, GRM 10.
func DefaultCashFlowConfig() CashFlowConfig {
	return CashFlowConfig{
		DownPaymentPct:   0.20,
		InterestRate:     0.07,
		LoanTermYears:    30,
		ClosingCostPct:   0.03,
		VacancyRate:      0.05,
		ManagementFeePct: 0.10,
		MaintenancePct:   0.01,
		AnnualInsurance:  1800,
		CashFlowScale: Scale{Bands: []Band{
			{Threshold: 500, Points: 35},
			{Threshold: 300, Points: 25},
			{Threshold: 200, Points: 18},
			{Threshold: 100, Points: 10},
			{Threshold: 0.01, Points: 5},
		}},
		CapRateScale: Scale{Bands: []Band{
			{Threshold: 10, Points: 25},
			{Threshold: 8, Points: 20},
			{Threshold: 6, Points: 15},
			{Threshold: 4, Points: 8},
		}},
		CoCScale: Scale{Bands: []Band{
			{Threshold: 15, Points: 20},
			{Threshold: 10, Points: 15},
			{Threshold: 8, Points: 10},
			{Threshold: 5, Points: 5},
		}},
		DSCRScale: Scale{Bands: []Band{
			{Threshold: 1.5, Points: 10},
			{Threshold: 1.25, Points: 7},
			{Threshold: 1.0, Points: 3},
		}},
		GRMScale: Scale{LowerIsBetter: true, Bands: []Band{
			{Threshold: 8, Points: 10},
			{Threshold: 10, Points: 7},
			{Threshold: 12, Points: 4},
		}},
	}
}

// CashFlow evalúa un listado como rental de largo plazo: hipoteca, gastos
// operativos y el cash flow mensual que queda.
type CashFlow struct {
	cfg CashFlowConfig
}

// NewCashFlow crea la estrategia con la configuración dada.
func NewCashFlow(cfg CashFlowConfig) *CashFlow {
	return &CashFlow{cfg: cfg}
}

// Name implementa Strategy.
func (s *CashFlow) Name() domain.StrategyName {
	return domain.StrategyCashFlow
}

// Compute implementa Strategy. Requiere estimación de renta.
func (s *CashFlow) Compute(_ context.Context, p domain.Property) (domain.DealScore, error) {
	rent := p.EstimatedRent
	if rent <= 0 {
		return domain.DealScore{}, &domain.MetricError{
			Metric: "monthly_rent",
			Reason: "la fuente no proveyó estimación de renta",
		}
	}

	price := p.Price

	// Financiamiento
	downPayment := domain.PctOf(price, s.cfg.DownPaymentPct)
	loanAmount := price - downPayment
	mortgage := domain.MonthlyPayment(loanAmount, s.cfg.InterestRate, s.cfg.LoanTermYears)

	// Ingreso efectivo tras vacancia
	effectiveRent := rent - domain.PctOf(rent, s.cfg.VacancyRate)

	// Gastos mensuales
	tax := monthlyTax(p.TaxAnnual, price)
	insurance := domain.CentsFromDollars(s.cfg.AnnualInsurance / 12)
	maintenance := domain.PctOf(price, s.cfg.MaintenancePct/12)
	management := domain.PctOf(rent, s.cfg.ManagementFeePct)
	expenses := mortgage + tax + insurance + maintenance + management + p.HOAMonthly

	monthlyCashFlow := effectiveRent - expenses
	annualCashFlow := monthlyCashFlow * 12

	// NOI anual: ingreso bruto - vacancia - gastos operativos (sin deuda)
	grossAnnual := rent * 12
	vacancyLoss := domain.PctOf(grossAnnual, s.cfg.VacancyRate)
	operating := (tax + insurance + maintenance + management + p.HOAMonthly) * 12
	noi := grossAnnual - vacancyLoss - operating

	totalInvested := downPayment + domain.PctOf(price, s.cfg.ClosingCostPct)
	annualDebt := mortgage * 12

	capRate := domain.CapRate(noi, price)
	coc := domain.CashOnCash(annualCashFlow, totalInvested)
	dscr := domain.DSCR(noi, annualDebt)
	grm := domain.GRM(price, grossAnnual)

	metrics := map[string]float64{
		"purchase_price":    price.Dollars(),
		"down_payment":      downPayment.Dollars(),
		"loan_amount":       loanAmount.Dollars(),
		"monthly_mortgage":  mortgage.Dollars(),
		"monthly_rent":      rent.Dollars(),
		"effective_rent":    effectiveRent.Dollars(),
		"monthly_expenses":  expenses.Dollars(),
		"monthly_cash_flow": monthlyCashFlow.Dollars(),
		"annual_cash_flow":  annualCashFlow.Dollars(),
		"noi":               noi.Dollars(),
		"cap_rate":          capRate,
		"cash_on_cash":      coc,
		"dscr":              dscr,
		"grm":               grm,
	}

	points := s.cfg.CashFlowScale.Eval(monthlyCashFlow.Dollars()) +
		s.cfg.CapRateScale.Eval(capRate) +
		s.cfg.CoCScale.Eval(coc) +
		s.cfg.DSCRScale.Eval(dscr) +
		s.cfg.GRMScale.Eval(grm)

	return domain.DealScore{
		Strategy:   domain.StrategyCashFlow,
		Score:      finalScore(points),
		Metrics:    metrics,
		ComputedAt: time.Now().UTC(),
	}, nil
}
