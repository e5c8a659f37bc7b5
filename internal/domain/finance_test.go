package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCentsRoundTrip(t *testing.T) {
	c := CentsFromDollars(1234.567)
	assert.Equal(t, Cents(123457), c) // redondeo al centavo
	assert.InDelta(t, 1234.57, c.Dollars(), 0.001)
	assert.Equal(t, "$1234.57", c.String())
}

func TestMonthlyPayment(t *testing.T) {
	// $160k al 7% a 30 años: cuota conocida ≈ $1,064.48.
	payment := MonthlyPayment(CentsFromDollars(160000), 0.07, 30)
	assert.InDelta(t, 1064.48, payment.Dollars(), 1.0)

	// $150k al 6.5% a 30 años ≈ $948.10.
	payment = MonthlyPayment(CentsFromDollars(150000), 0.065, 30)
	assert.InDelta(t, 948.10, payment.Dollars(), 1.0)
}

func TestMonthlyPaymentDegenerateInputs(t *testing.T) {
	assert.Equal(t, Cents(0), MonthlyPayment(0, 0.07, 30))
	assert.Equal(t, Cents(0), MonthlyPayment(CentsFromDollars(100000), 0, 30))
	assert.Equal(t, Cents(0), MonthlyPayment(CentsFromDollars(100000), 0.07, 0))
}

func TestRound4(t *testing.T) {
	assert.Equal(t, 0.1235, Round4(0.12345))
	assert.Equal(t, 6.08, Round4(6.08))
	assert.Equal(t, -0.1234, Round4(-0.12341))
}

func TestPctOf(t *testing.T) {
	assert.Equal(t, CentsFromDollars(50000), PctOf(CentsFromDollars(200000), 0.25))
	assert.Equal(t, Cents(0), PctOf(CentsFromDollars(200000), 0))
}

func TestRatiosCapOnZeroDenominator(t *testing.T) {
	assert.Equal(t, RatioCap, DSCR(CentsFromDollars(12000), 0))
	assert.Equal(t, RatioCap, GRM(CentsFromDollars(200000), 0))
	assert.Equal(t, RatioCap, CashOnCash(CentsFromDollars(5000), 0))
	assert.Equal(t, 0.0, CashOnCash(CentsFromDollars(-5000), 0))
	assert.Equal(t, 0.0, CapRate(CentsFromDollars(12000), 0))
}

func TestCapRate(t *testing.T) {
	// NOI $16,240 sobre $200k = 8.12%.
	assert.Equal(t, 8.12, CapRate(CentsFromDollars(16240), CentsFromDollars(200000)))
}

func TestGRM(t *testing.T) {
	assert.Equal(t, 9.2593, GRM(CentsFromDollars(200000), CentsFromDollars(21600)))
}
