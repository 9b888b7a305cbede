// Package domain provides core domain models and types.
//
// The Bond entity is the canonical schema for one instrument. All cash
// amounts (price, accrued interest, coupon amounts, volume) are
// currency-absolute; percent-of-face quotes from the exchange feed are
// converted at ingestion, never stored.
package domain

import (
	"errors"
	"time"
)

// Sector classifies the issuer of a bond
type Sector string

const (
	SectorGovernment Sector = "government"
	SectorCorporate  Sector = "corporate"
	SectorOther      Sector = "other"
)

// YieldStatus describes how a bond's yield annotation was obtained
type YieldStatus string

const (
	// YieldPending - bond has not been through a valuation cycle yet
	YieldPending YieldStatus = "pending"
	// YieldConverged - bisection met tolerance
	YieldConverged YieldStatus = "converged"
	// YieldNotConverged - iteration cap exhausted, value is a best-effort midpoint
	YieldNotConverged YieldStatus = "not_converged"
	// YieldOutOfDomain - clean price cannot be bracketed inside the solver domain
	YieldOutOfDomain YieldStatus = "out_of_domain"
	// YieldNoSchedule - no cash-flow schedule could be derived
	YieldNoSchedule YieldStatus = "no_schedule"
)

// Validation errors. Bonds failing these are excluded from the pipeline,
// they never abort a valuation cycle.
var (
	ErrNonPositiveFace = errors.New("face value must be positive")
	ErrNegativeCoupon  = errors.New("coupon rate must not be negative")
	ErrExpiredMaturity = errors.New("maturity date is not after the evaluation date")
)

// CouponPeriod is one explicit coupon payment from the exchange feed
type CouponPeriod struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"` // Cash amount, currency units
}

// Bond represents one fixed-income instrument.
//
// A Bond is constructed fresh on each ingestion cycle. The valuation
// pipeline writes Yield and YieldStatus exactly once per cycle; screener
// and ranker treat the record as read-only.
type Bond struct {
	SecID           string         `json:"secid"`
	ISIN            string         `json:"isin"`
	Board           string         `json:"board"`
	Name            string         `json:"name"`
	Sector          Sector         `json:"sector"`
	FaceValue       float64        `json:"face_value"`
	CouponRate      *float64       `json:"coupon_rate"` // Annual rate in percent, nil when the feed omits it
	CouponPeriodDay int            `json:"coupon_period_days"`
	Price           float64        `json:"price"`            // Dirty market price, currency units
	AccruedInterest float64        `json:"accrued_interest"` // Interest earned since the last coupon
	Volume          float64        `json:"volume"`           // Day trade turnover, currency units
	MaturityDate    time.Time      `json:"maturity_date"`
	CouponPeriods   []CouponPeriod `json:"coupon_periods,omitempty"`

	// Derived fields, populated by the valuation pipeline once per cycle
	Yield       *float64    `json:"yield"` // Decimal fraction, e.g. 0.0835 for 8.35%
	YieldStatus YieldStatus `json:"yield_status"`
}

// CleanPrice returns the market price excluding accrued interest.
// The clean price is always derived, never stored.
func (b *Bond) CleanPrice() float64 {
	return b.Price - b.AccruedInterest
}

// IsZeroCoupon reports whether the bond pays no periodic coupon.
// A bond is zero-coupon iff its coupon rate is zero or absent and
// no explicit coupon periods exist.
func (b *Bond) IsZeroCoupon() bool {
	if len(b.CouponPeriods) > 0 {
		return false
	}
	return b.CouponRate == nil || *b.CouponRate == 0
}

// YearsToMaturity returns the ACT/365.25 year fraction between asOf and
// the maturity date. It is a pure function of the two dates and is
// recomputed on every access; the value is never cached on the record,
// a stale copy would silently corrupt screening and ranking.
func (b *Bond) YearsToMaturity(asOf time.Time) float64 {
	return YearFraction(asOf, b.MaturityDate)
}

// NextCouponDate returns the first explicit coupon date strictly after
// asOf, or the zero time if none is known.
func (b *Bond) NextCouponDate(asOf time.Time) time.Time {
	for _, cp := range b.CouponPeriods {
		if cp.Date.After(asOf) {
			return cp.Date
		}
	}
	return time.Time{}
}

// Validate checks the pipeline entry invariants for an evaluation date.
// A failing bond is excluded upstream of scheduling and screening.
func (b *Bond) Validate(asOf time.Time) error {
	if b.FaceValue <= 0 {
		return ErrNonPositiveFace
	}
	if b.CouponRate != nil && *b.CouponRate < 0 {
		return ErrNegativeCoupon
	}
	if b.YearsToMaturity(asOf) <= 0 {
		return ErrExpiredMaturity
	}
	return nil
}

// YearFraction returns the fractional number of years between two dates
// using an ACT/365.25 approximation over whole calendar days.
func YearFraction(start, end time.Time) float64 {
	return float64(daysBetween(start, end)) / 365.25
}

// daysBetween counts whole calendar days from start to end, ignoring
// the time-of-day component of either date.
func daysBetween(start, end time.Time) int {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	e := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	return int(e.Sub(s).Hours() / 24)
}
