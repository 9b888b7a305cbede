package ytm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/bondwatch/internal/modules/cashflow"
)

// A plain 3-year semiannual 8% coupon bond on a 1000 face
var couponSchedule = []cashflow.Event{
	{Years: 0.5, Amount: 40},
	{Years: 1.0, Amount: 40},
	{Years: 1.5, Amount: 40},
	{Years: 2.0, Amount: 40},
	{Years: 2.5, Amount: 40},
	{Years: 3.0, Amount: 1040},
}

func TestNPV_StrictlyDecreasingInYield(t *testing.T) {
	yields := []float64{-0.9, -0.5, -0.1, 0, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0}

	prev := math.Inf(1)
	for _, y := range yields {
		npv := NPV(y, couponSchedule)
		assert.Less(t, npv, prev, "NPV must strictly decrease, broke at y=%f", y)
		prev = npv
	}
}

func TestNPV_AtOrBelowMinusOneIsInfinite(t *testing.T) {
	assert.True(t, math.IsInf(NPV(-1, couponSchedule), 1))
	assert.True(t, math.IsInf(NPV(-1.5, couponSchedule), 1))
}

func TestSolve_RoundTripRecoversKnownYield(t *testing.T) {
	for _, y0 := range []float64{-0.02, 0.0415, 0.0835, 0.21, 1.5} {
		price := NPV(y0, couponSchedule)

		res, err := Solve(price, couponSchedule)
		require.NoError(t, err)
		require.Equal(t, StatusConverged, res.Status)
		assert.InDelta(t, y0, res.Yield, 1e-6, "failed to recover y0=%f", y0)
	}
}

func TestSolve_ZeroCouponMatchesClosedForm(t *testing.T) {
	// price=950, face=1000, 1 year: closed form (1000/950)^(1/1) - 1
	schedule := []cashflow.Event{{Years: 1, Amount: 1000}}

	res, err := Solve(950, schedule)
	require.NoError(t, err)
	require.Equal(t, StatusConverged, res.Status)

	closedForm := 1000.0/950.0 - 1
	assert.InDelta(t, closedForm, res.Yield, 1e-6)
	assert.InDelta(t, 0.05263, res.Yield, 1e-4)
}

func TestSolve_ZeroCouponClosedFormMultiYear(t *testing.T) {
	// 5-year deep discount: closed form (face/price)^(1/5) - 1
	schedule := []cashflow.Event{{Years: 5, Amount: 1000}}

	res, err := Solve(620, schedule)
	require.NoError(t, err)
	require.Equal(t, StatusConverged, res.Status)

	closedForm := math.Pow(1000.0/620.0, 1.0/5.0) - 1
	assert.InDelta(t, closedForm, res.Yield, 1e-6)
}

func TestSolve_PriceAboveDomainCeilingIsOutOfDomain(t *testing.T) {
	// A price above NPV(DomainLow) would demand a yield below -50%
	npvLow := NPV(DomainLow, couponSchedule)

	res, err := Solve(npvLow+1, couponSchedule)
	require.NoError(t, err)
	assert.Equal(t, StatusOutOfDomain, res.Status)
	assert.Zero(t, res.Yield)
}

func TestSolve_PriceBelowDomainFloorIsOutOfDomain(t *testing.T) {
	// A price below NPV(DomainHigh) would demand a yield above 200%
	npvHigh := NPV(DomainHigh, couponSchedule)

	res, err := Solve(npvHigh/2, couponSchedule)
	require.NoError(t, err)
	assert.Equal(t, StatusOutOfDomain, res.Status)
}

func TestSolve_DomainBoundariesAreBracketable(t *testing.T) {
	// Prices exactly at the achievable extremes still solve
	for _, y := range []float64{DomainLow + 1e-9, DomainHigh - 1e-9} {
		price := NPV(y, couponSchedule)
		res, err := Solve(price, couponSchedule)
		require.NoError(t, err)
		require.NotEqual(t, StatusOutOfDomain, res.Status)
		assert.InDelta(t, y, res.Yield, 1e-6)
	}
}

func TestSolve_EmptySchedule(t *testing.T) {
	_, err := Solve(950, nil)
	assert.ErrorIs(t, err, ErrEmptySchedule)
}

func TestSolve_NonPositivePrice(t *testing.T) {
	_, err := Solve(0, couponSchedule)
	assert.ErrorIs(t, err, ErrNonPositivePrice)

	_, err = Solve(-10, couponSchedule)
	assert.ErrorIs(t, err, ErrNonPositivePrice)
}

func TestSolve_IterationsBounded(t *testing.T) {
	price := NPV(0.0835, couponSchedule)

	res, err := Solve(price, couponSchedule)
	require.NoError(t, err)

	assert.Greater(t, res.Iterations, 0)
	assert.LessOrEqual(t, res.Iterations, MaxIterations)
}
