package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func floatPtr(v float64) *float64 { return &v }

func TestCleanPrice(t *testing.T) {
	b := &Bond{Price: 1012.50, AccruedInterest: 12.50}
	assert.InDelta(t, 1000.0, b.CleanPrice(), 1e-9)
}

func TestIsZeroCoupon(t *testing.T) {
	testCases := []struct {
		name    string
		rate    *float64
		periods []CouponPeriod
		want    bool
	}{
		{"nil rate, no periods", nil, nil, true},
		{"zero rate, no periods", floatPtr(0), nil, true},
		{"positive rate", floatPtr(8.5), nil, false},
		{"nil rate but explicit periods", nil, []CouponPeriod{{Date: date(2030, 1, 1), Amount: 40}}, false},
		{"zero rate but explicit periods", floatPtr(0), []CouponPeriod{{Date: date(2030, 1, 1), Amount: 40}}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := &Bond{CouponRate: tc.rate, CouponPeriods: tc.periods}
			assert.Equal(t, tc.want, b.IsZeroCoupon())
		})
	}
}

func TestYearsToMaturity(t *testing.T) {
	b := &Bond{MaturityDate: date(2027, 8, 25)}
	asOf := date(2026, 8, 25)

	// 365 days / 365.25
	assert.InDelta(t, 365.0/365.25, b.YearsToMaturity(asOf), 1e-9)
}

func TestYearsToMaturity_SameDayIsZero(t *testing.T) {
	asOf := date(2026, 8, 25)
	b := &Bond{MaturityDate: asOf}
	assert.Equal(t, 0.0, b.YearsToMaturity(asOf))
}

func TestYearsToMaturity_IgnoresTimeOfDay(t *testing.T) {
	b := &Bond{MaturityDate: time.Date(2026, 8, 26, 1, 0, 0, 0, time.UTC)}
	asOf := time.Date(2026, 8, 25, 23, 0, 0, 0, time.UTC)

	// One whole calendar day apart regardless of clock times
	assert.InDelta(t, 1.0/365.25, b.YearsToMaturity(asOf), 1e-9)
}

func TestNextCouponDate(t *testing.T) {
	asOf := date(2026, 8, 25)
	b := &Bond{CouponPeriods: []CouponPeriod{
		{Date: date(2026, 2, 1), Amount: 40},
		{Date: date(2026, 8, 25), Amount: 40},
		{Date: date(2027, 2, 1), Amount: 40},
	}}

	// Dates on or before asOf are skipped
	assert.Equal(t, date(2027, 2, 1), b.NextCouponDate(asOf))
}

func TestNextCouponDate_NoneKnown(t *testing.T) {
	b := &Bond{}
	assert.True(t, b.NextCouponDate(date(2026, 8, 25)).IsZero())
}

func TestValidate(t *testing.T) {
	asOf := date(2026, 8, 25)

	testCases := []struct {
		name    string
		bond    Bond
		wantErr error
	}{
		{
			name:    "valid bond",
			bond:    Bond{FaceValue: 1000, CouponRate: floatPtr(8), MaturityDate: date(2030, 1, 1)},
			wantErr: nil,
		},
		{
			name:    "zero face value",
			bond:    Bond{FaceValue: 0, MaturityDate: date(2030, 1, 1)},
			wantErr: ErrNonPositiveFace,
		},
		{
			name:    "negative coupon",
			bond:    Bond{FaceValue: 1000, CouponRate: floatPtr(-1), MaturityDate: date(2030, 1, 1)},
			wantErr: ErrNegativeCoupon,
		},
		{
			name:    "matures today",
			bond:    Bond{FaceValue: 1000, MaturityDate: asOf},
			wantErr: ErrExpiredMaturity,
		},
		{
			name:    "already matured",
			bond:    Bond{FaceValue: 1000, MaturityDate: date(2020, 1, 1)},
			wantErr: ErrExpiredMaturity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.bond.Validate(asOf)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}
