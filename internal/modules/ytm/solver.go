// Package ytm solves for a bond's yield to maturity.
//
// Present value as a function of yield, NPV(y) = Σ amount_i / (1+y)^t_i,
// is strictly decreasing in y over (-1, ∞) when all cash amounts are
// positive. That monotonicity is what makes the bounded bisection below
// correct: the target price is bracketed once, then the bracket shrinks.
package ytm

import (
	"errors"
	"math"

	"github.com/aristath/bondwatch/internal/modules/cashflow"
)

// Solver domain and stopping rules. The domain spans -50% to +200%
// annualized; yields outside it are reported as out-of-domain rather
// than extrapolated.
const (
	DomainLow     = -0.5
	DomainHigh    = 2.0
	Tolerance     = 1e-6 // Price units
	MaxIterations = 1000
)

// Contract violations. These indicate caller bugs, not data quality.
var (
	ErrEmptySchedule    = errors.New("cash-flow schedule is empty")
	ErrNonPositivePrice = errors.New("clean price must be positive")
)

// Status classifies a solver outcome
type Status string

const (
	// StatusConverged - bisection met tolerance, Yield is exact to Tolerance
	StatusConverged Status = "converged"
	// StatusNotConverged - iteration cap exhausted, Yield is the final
	// midpoint. A documented approximation, not a failure.
	StatusNotConverged Status = "not_converged"
	// StatusOutOfDomain - the clean price cannot be bracketed inside
	// [DomainLow, DomainHigh]. Yield is unset, nothing is extrapolated.
	StatusOutOfDomain Status = "out_of_domain"
)

// Result is the tri-state outcome of a solve
type Result struct {
	Status     Status
	Yield      float64 // Decimal fraction; meaningful unless StatusOutOfDomain
	Iterations int
}

// NPV returns the present value of a schedule at the given yield.
// Yields at or below -100% discount to +Inf so the bisection ordering
// still holds.
func NPV(yield float64, schedule []cashflow.Event) float64 {
	if yield <= -1 {
		return math.Inf(1)
	}
	total := 0.0
	for _, e := range schedule {
		total += e.Amount / math.Pow(1+yield, e.Years)
	}
	return total
}

// Solve finds the yield that equates the schedule's present value to the
// clean price, by bisection over [DomainLow, DomainHigh].
//
// The returned error is reserved for contract violations (empty schedule,
// non-positive price); data-driven outcomes are expressed in Result.Status.
func Solve(cleanPrice float64, schedule []cashflow.Event) (Result, error) {
	if len(schedule) == 0 {
		return Result{}, ErrEmptySchedule
	}
	if cleanPrice <= 0 {
		return Result{}, ErrNonPositivePrice
	}

	low, high := DomainLow, DomainHigh

	// NPV is decreasing: the achievable price range is [NPV(high), NPV(low)]
	if cleanPrice > NPV(low, schedule) || cleanPrice < NPV(high, schedule) {
		return Result{Status: StatusOutOfDomain}, nil
	}

	var mid float64
	for i := 1; i <= MaxIterations; i++ {
		mid = (low + high) / 2
		npvMid := NPV(mid, schedule)

		if math.Abs(npvMid-cleanPrice) < Tolerance {
			return Result{Status: StatusConverged, Yield: mid, Iterations: i}, nil
		}

		if npvMid > cleanPrice {
			low = mid
		} else {
			high = mid
		}
	}

	// Cap exhausted: hand back the final midpoint with degraded confidence
	// flagged instead of conflating it with a converged result.
	return Result{Status: StatusNotConverged, Yield: (low + high) / 2, Iterations: MaxIterations}, nil
}
