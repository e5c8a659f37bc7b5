package domain

// finance.go — funciones financieras puras.
//
// Convenciones:
//   - Dinero entra y sale como Cents (fixed-point). El interior de la
//     amortización usa float64 pero el resultado se redondea al centavo.
//   - Ratios y porcentajes son float64 redondeados a 4 decimales con Round4
//     antes de persistir o comparar.
//   - Un denominador cero no produce ±Inf: los ratios se capan en RatioCap
//     para que el mapa de métricas siga siendo finito y serializable.

import (
	"fmt"
	"math"
)

// RatioCap es el tope de cualquier ratio cuando el denominador es cero
// (p.ej. DSCR sin deuda, cash-on-cash con cero cash en el deal).
const RatioCap = 9999.9999

// MetricError indica que falta un input requerido para calcular una métrica.
// No es fatal: la estrategia que lo necesite se omite para ese listado.
type MetricError struct {
	Metric string
	Reason string
}

func (e *MetricError) Error() string {
	return fmt.Sprintf("metric %s: %s", e.Metric, e.Reason)
}

// Round4 redondea a 4 decimales, half-up. Garantiza reproducibilidad
// entre plataformas para ratios y porcentajes.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// PctOf devuelve el pct (fracción, 0.25 = 25%) de un monto, redondeado al centavo.
func PctOf(amount Cents, pct float64) Cents {
	return Cents(math.Round(float64(amount) * pct))
}

// MonthlyPayment calcula la cuota mensual de una hipoteca amortizada.
// Fórmula estándar: P × r(1+r)ⁿ / ((1+r)ⁿ - 1), con r = tasa mensual.
// Devuelve 0 si el principal o la tasa no son positivos.
func MonthlyPayment(principal Cents, annualRate float64, termYears int) Cents {
	if principal <= 0 || annualRate <= 0 || termYears <= 0 {
		return 0
	}
	r := annualRate / 12
	n := float64(termYears * 12)
	factor := math.Pow(1+r, n)
	payment := float64(principal) * (r * factor) / (factor - 1)
	return Cents(math.Round(payment))
}

// CapRate devuelve el cap rate en porcentaje: NOI anual / precio × 100.
func CapRate(annualNOI, price Cents) float64 {
	if price <= 0 {
		return 0
	}
	return Round4(float64(annualNOI) / float64(price) * 100)
}

// CashOnCash devuelve el retorno cash-on-cash en porcentaje:
// cash flow anual / cash total invertido × 100.
// Con cero invertido y cash flow positivo devuelve RatioCap.
func CashOnCash(annualCashFlow, totalInvested Cents) float64 {
	if totalInvested <= 0 {
		if annualCashFlow > 0 {
			return RatioCap
		}
		return 0
	}
	return Round4(float64(annualCashFlow) / float64(totalInvested) * 100)
}

// DSCR devuelve el Debt Service Coverage Ratio: NOI / servicio de deuda anual.
// Sin deuda devuelve RatioCap.
func DSCR(annualNOI, annualDebtService Cents) float64 {
	if annualDebtService <= 0 {
		return RatioCap
	}
	return Round4(float64(annualNOI) / float64(annualDebtService))
}

// GRM devuelve el Gross Rent Multiplier: precio / renta bruta anual.
func GRM(price, annualRent Cents) float64 {
	if annualRent <= 0 {
		return RatioCap
	}
	return Round4(float64(price) / float64(annualRent))
}
