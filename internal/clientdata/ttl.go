package clientdata

import "time"

// TTL constants per cached feed. Added to time.Now() when storing to
// compute expires_at.
const (
	// TTLCouponPeriods - coupon schedules only change on new issues and
	// amortization events, a day of staleness is acceptable
	TTLCouponPeriods = 24 * time.Hour
)
