// Package screening applies eligibility filters to a valued bond universe.
package screening

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/bondwatch/internal/domain"
)

// Criteria holds the eligibility filters. All boundaries are inclusive:
// a bond sitting exactly on MinYears, MaxYears, MinYield, MinVolume or
// either price bound is kept.
type Criteria struct {
	MinYears          float64
	MaxYears          float64
	MinYield          float64 // Decimal fraction
	MinVolume         float64
	MinPrice          float64
	MaxPrice          float64
	ExcludeZeroCoupon bool
}

// Screener filters valued bonds against a set of criteria
type Screener struct {
	log zerolog.Logger
}

// NewScreener creates a new screener
func NewScreener(log zerolog.Logger) *Screener {
	return &Screener{log: log.With().Str("module", "screening").Logger()}
}

// Screen returns the subset of bonds passing every criterion as of the
// evaluation date. Input order is preserved. Bonds are read-only here;
// nothing is annotated or mutated.
func (s *Screener) Screen(bonds []*domain.Bond, c Criteria, asOf time.Time) []*domain.Bond {
	eligible := make([]*domain.Bond, 0, len(bonds))
	for _, b := range bonds {
		if s.eligible(b, c, asOf) {
			eligible = append(eligible, b)
		}
	}

	s.log.Info().
		Int("universe", len(bonds)).
		Int("eligible", len(eligible)).
		Msg("Screened bond universe")

	return eligible
}

// eligible applies the filter rules to a single bond
func (s *Screener) eligible(b *domain.Bond, c Criteria, asOf time.Time) bool {
	// Matured or maturing today: excluded regardless of other criteria
	years := b.YearsToMaturity(asOf)
	if years <= 0 {
		return false
	}
	if years < c.MinYears || years > c.MaxYears {
		return false
	}

	// Unsolvable yield leaves the annotation nil; such bonds never pass.
	// Best-effort (not converged) yields do pass, confidence is carried
	// on the record's YieldStatus.
	if b.Yield == nil {
		return false
	}
	if *b.Yield < c.MinYield {
		return false
	}

	if b.Price <= 0 || b.Price < c.MinPrice || b.Price > c.MaxPrice {
		return false
	}

	if b.Volume < c.MinVolume {
		return false
	}

	if c.ExcludeZeroCoupon && b.IsZeroCoupon() {
		return false
	}

	return true
}
