// Package cashflow reconstructs a bond's future cash-flow schedule.
//
// A schedule is an ordered list of (time, amount) events measured in
// ACT/365.25 years from the evaluation date. The final event carries the
// face-value redemption, merged into the last coupon when the two fall
// within mergeWindowYears of each other.
package cashflow

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/aristath/bondwatch/internal/domain"
)

// ErrNoSchedule indicates that no cash-flow schedule can be derived for
// a bond. Callers treat it as a solver precondition failure, the bond is
// excluded downstream, the cycle continues.
var ErrNoSchedule = errors.New("no cash-flow schedule derivable")

const (
	// mergeWindowYears - redemption is merged into the last coupon when
	// their times are within this window (~3.65 days)
	mergeWindowYears = 0.01

	// defaultFrequency - coupons per year assumed when the feed reports a
	// coupon rate but neither explicit periods nor a usable period length
	defaultFrequency = 2
)

// Event is a single future cash flow: a time offset in years from the
// evaluation date and a positive cash amount in currency units.
type Event struct {
	Years  float64 `json:"years"`
	Amount float64 `json:"amount"`
}

// Schedule derives the future cash-flow events for a bond as of the given
// evaluation date, ordered ascending by time.
//
// Explicit coupon periods from the feed take precedence; with none usable
// the coupon stream is approximated from the annual rate at a fixed
// frequency. Zero-coupon bonds produce exactly one redemption event.
func Schedule(b *domain.Bond, asOf time.Time) ([]Event, error) {
	if b.FaceValue <= 0 {
		return nil, fmt.Errorf("%w: face value %.2f", ErrNoSchedule, b.FaceValue)
	}

	maturityYears := b.YearsToMaturity(asOf)
	if maturityYears <= 0 {
		return nil, fmt.Errorf("%w: bond matures on or before the evaluation date", ErrNoSchedule)
	}

	events := explicitEvents(b, asOf)

	if len(events) == 0 && !b.IsZeroCoupon() && b.CouponRate != nil && *b.CouponRate > 0 {
		events = approximateEvents(b, maturityYears)
	}

	return appendRedemption(events, maturityYears, b.FaceValue), nil
}

// explicitEvents converts the feed's coupon periods to events, keeping
// only strictly future periods with positive amounts.
func explicitEvents(b *domain.Bond, asOf time.Time) []Event {
	var events []Event
	for _, cp := range b.CouponPeriods {
		if !cp.Date.After(asOf) {
			continue
		}
		if cp.Amount <= 0 {
			continue
		}
		events = append(events, Event{
			Years:  domain.YearFraction(asOf, cp.Date),
			Amount: cp.Amount,
		})
	}

	// Feed order is not guaranteed
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Years < events[j].Years
	})

	return events
}

// approximateEvents generates a periodic coupon stream from the annual
// rate, from the first future period through maturity.
func approximateEvents(b *domain.Bond, maturityYears float64) []Event {
	freq := approximateFrequency(b.CouponPeriodDay)
	amount := (*b.CouponRate / 100) * b.FaceValue / float64(freq)

	periods := int(maturityYears * float64(freq))
	if periods < 1 {
		periods = 1
	}

	var events []Event
	for i := 1; i <= periods; i++ {
		t := float64(i) / float64(freq)
		if t > maturityYears {
			break
		}
		events = append(events, Event{Years: t, Amount: amount})
	}
	return events
}

// approximateFrequency derives payments per year from the feed's coupon
// period length in days, clamped to a sane range. Semiannual when the
// length is absent.
func approximateFrequency(periodDays int) int {
	if periodDays <= 0 {
		return defaultFrequency
	}
	freq := int(math.Round(365.25 / float64(periodDays)))
	if freq < 1 {
		return 1
	}
	if freq > 12 {
		return 12
	}
	return freq
}

// appendRedemption attaches the face-value redemption at maturity, merging
// it into the last coupon when the two times are within mergeWindowYears.
func appendRedemption(events []Event, maturityYears, faceValue float64) []Event {
	if len(events) == 0 {
		return []Event{{Years: maturityYears, Amount: faceValue}}
	}

	last := &events[len(events)-1]
	if math.Abs(maturityYears-last.Years) <= mergeWindowYears {
		last.Amount += faceValue
		return events
	}

	return append(events, Event{Years: maturityYears, Amount: faceValue})
}
