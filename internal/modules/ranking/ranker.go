// Package ranking scores and orders screened bonds.
package ranking

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/aristath/bondwatch/internal/domain"
)

// Scoring holds ranking parameters. Sectors absent from the bonus map
// contribute nothing to the score.
type Scoring struct {
	SectorBonus map[domain.Sector]float64
}

// Ranker orders bonds by descending score
type Ranker struct {
	log zerolog.Logger
}

// NewRanker creates a new ranker
func NewRanker(log zerolog.Logger) *Ranker {
	return &Ranker{log: log.With().Str("module", "ranking").Logger()}
}

// Score computes a bond's attractiveness: yield to maturity plus the
// sector bonus. Bonds without a yield annotation score on the bonus alone;
// in practice the screener has already removed them.
func (r *Ranker) Score(b *domain.Bond, s Scoring) float64 {
	score := 0.0
	if b.Yield != nil {
		score = *b.Yield
	}
	return score + s.SectorBonus[b.Sector]
}

// Rank returns a new slice ordered by descending score. The sort is
// stable: equal scores keep their original relative order, so selection
// is reproducible run to run. The input slice is not modified.
func (r *Ranker) Rank(bonds []*domain.Bond, s Scoring) []*domain.Bond {
	ranked := make([]*domain.Bond, len(bonds))
	copy(ranked, bonds)

	sort.SliceStable(ranked, func(i, j int) bool {
		return r.Score(ranked[i], s) > r.Score(ranked[j], s)
	})

	return ranked
}

// TopN returns the n best bonds by score. Fewer are returned when the
// universe is smaller than n.
func (r *Ranker) TopN(bonds []*domain.Bond, s Scoring, n int) []*domain.Bond {
	ranked := r.Rank(bonds, s)
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// Best returns the single top bond: the first element of the stable
// descending sort, not an unordered maximum, so ties resolve
// deterministically to the earliest bond in input order.
func (r *Ranker) Best(bonds []*domain.Bond, s Scoring) *domain.Bond {
	ranked := r.Rank(bonds, s)
	if len(ranked) == 0 {
		return nil
	}
	return ranked[0]
}
