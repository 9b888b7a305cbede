// Package valuation runs the per-cycle bond pipeline: cash-flow
// reconstruction, yield solving, screening and ranking.
package valuation

import (
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/bondwatch/internal/domain"
	"github.com/aristath/bondwatch/internal/modules/cashflow"
	"github.com/aristath/bondwatch/internal/modules/ranking"
	"github.com/aristath/bondwatch/internal/modules/screening"
	"github.com/aristath/bondwatch/internal/modules/ytm"
)

// Service is the public API of the valuation pipeline. Each call is
// stateless given its inputs; bonds are annotated exactly once per cycle
// and treated as read-only afterwards.
type Service struct {
	screener *screening.Screener
	ranker   *ranking.Ranker
	log      zerolog.Logger
}

// NewService creates a new valuation service
func NewService(screener *screening.Screener, ranker *ranking.Ranker, log zerolog.Logger) *Service {
	return &Service{
		screener: screener,
		ranker:   ranker,
		log:      log.With().Str("module", "valuation").Logger(),
	}
}

// Valuate annotates each bond with its yield to maturity and yield status
// as of the evaluation date, returning the annotated records.
//
// Bonds failing entry validation (missing face value, negative coupon,
// matured) are dropped here, upstream of screening. Data-quality problems
// during scheduling or solving never abort the cycle: the bond is kept
// with a nil yield and a status explaining why, and the screener's
// nil-yield rule removes it from eligibility.
func (s *Service) Valuate(bonds []*domain.Bond, asOf time.Time) []*domain.Bond {
	out := make([]*domain.Bond, 0, len(bonds))
	invalid := 0

	for _, b := range bonds {
		if err := b.Validate(asOf); err != nil {
			invalid++
			s.log.Debug().Str("secid", b.SecID).Err(err).Msg("Bond excluded before valuation")
			continue
		}

		s.annotate(b, asOf)
		out = append(out, b)
	}

	s.log.Info().
		Int("universe", len(bonds)).
		Int("valued", len(out)).
		Int("invalid", invalid).
		Time("as_of", asOf).
		Msg("Valuated bond universe")

	return out
}

// annotate writes the derived yield fields for one bond
func (s *Service) annotate(b *domain.Bond, asOf time.Time) {
	b.Yield = nil

	schedule, err := cashflow.Schedule(b, asOf)
	if err != nil {
		b.YieldStatus = domain.YieldNoSchedule
		return
	}

	clean := b.CleanPrice()
	if clean <= 0 {
		// NPV is positive for every in-domain yield, a non-positive
		// clean price is unreachable
		b.YieldStatus = domain.YieldOutOfDomain
		return
	}

	res, err := ytm.Solve(clean, schedule)
	if err != nil {
		b.YieldStatus = domain.YieldNoSchedule
		return
	}

	switch res.Status {
	case ytm.StatusConverged:
		y := res.Yield
		b.Yield = &y
		b.YieldStatus = domain.YieldConverged
	case ytm.StatusNotConverged:
		y := res.Yield
		b.Yield = &y
		b.YieldStatus = domain.YieldNotConverged
		s.log.Warn().
			Str("secid", b.SecID).
			Float64("yield", y).
			Msg("Yield solver hit iteration cap, using best-effort value")
	case ytm.StatusOutOfDomain:
		b.YieldStatus = domain.YieldOutOfDomain
	}
}

// Schedule exposes a bond's reconstructed cash-flow schedule
func (s *Service) Schedule(b *domain.Bond, asOf time.Time) ([]cashflow.Event, error) {
	return cashflow.Schedule(b, asOf)
}

// Screen filters valued bonds against the criteria
func (s *Service) Screen(bonds []*domain.Bond, c screening.Criteria, asOf time.Time) []*domain.Bond {
	return s.screener.Screen(bonds, c, asOf)
}

// Score returns a bond's ranking score
func (s *Service) Score(b *domain.Bond, sc ranking.Scoring) float64 {
	return s.ranker.Score(b, sc)
}

// Rank orders bonds by descending score
func (s *Service) Rank(bonds []*domain.Bond, sc ranking.Scoring) []*domain.Bond {
	return s.ranker.Rank(bonds, sc)
}

// TopN returns the n best bonds
func (s *Service) TopN(bonds []*domain.Bond, sc ranking.Scoring, n int) []*domain.Bond {
	return s.ranker.TopN(bonds, sc, n)
}

// Best returns the single best bond, or nil for an empty universe
func (s *Service) Best(bonds []*domain.Bond, sc ranking.Scoring) *domain.Bond {
	return s.ranker.Best(bonds, sc)
}

// Summary aggregates one valuation cycle for reporting
type Summary struct {
	Universe     int     `json:"universe"`
	WithYield    int     `json:"with_yield"`
	Converged    int     `json:"converged"`
	NotConverged int     `json:"not_converged"`
	OutOfDomain  int     `json:"out_of_domain"`
	NoSchedule   int     `json:"no_schedule"`
	MeanYield    float64 `json:"mean_yield"`
	StdDevYield  float64 `json:"stddev_yield"`
	MinYield     float64 `json:"min_yield"`
	MaxYield     float64 `json:"max_yield"`
}

// Summarize computes distribution statistics over the annotated universe.
// Yield statistics cover bonds carrying a yield value (converged and
// best-effort alike).
func (s *Service) Summarize(bonds []*domain.Bond) Summary {
	summary := Summary{Universe: len(bonds)}

	yields := make([]float64, 0, len(bonds))
	for _, b := range bonds {
		switch b.YieldStatus {
		case domain.YieldConverged:
			summary.Converged++
		case domain.YieldNotConverged:
			summary.NotConverged++
		case domain.YieldOutOfDomain:
			summary.OutOfDomain++
		case domain.YieldNoSchedule:
			summary.NoSchedule++
		}
		if b.Yield != nil {
			yields = append(yields, *b.Yield)
		}
	}

	summary.WithYield = len(yields)
	if len(yields) > 0 {
		summary.MeanYield = stat.Mean(yields, nil)
		summary.MinYield = floats.Min(yields)
		summary.MaxYield = floats.Max(yields)
	}
	if len(yields) > 1 {
		summary.StdDevYield = stat.StdDev(yields, nil)
	}

	return summary
}
