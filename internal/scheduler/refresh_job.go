package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/bondwatch/internal/clients/moex"
	"github.com/aristath/bondwatch/internal/modules/market_hours"
	"github.com/aristath/bondwatch/internal/modules/ranking"
	"github.com/aristath/bondwatch/internal/modules/screening"
	"github.com/aristath/bondwatch/internal/modules/snapshots"
	"github.com/aristath/bondwatch/internal/modules/valuation"
)

// snapshotHistory - how many valuation runs to keep in bonds.db
const snapshotHistory = 200

// RefreshJob runs one full valuation cycle: fetch the board listing,
// enrich coupon schedules, solve yields, screen, rank, publish the
// result for the API and persist a snapshot.
type RefreshJob struct {
	log         zerolog.Logger
	client      *moex.Client
	valuation   *valuation.Service
	store       *valuation.Store
	snapshots   *snapshots.Repository
	marketHours *market_hours.Service
	criteria    screening.Criteria
	scoring     ranking.Scoring
	topN        int
	timeout     time.Duration
	offHoursOK  bool
}

// RefreshConfig holds configuration for the refresh job
type RefreshConfig struct {
	Log         zerolog.Logger
	Client      *moex.Client
	Valuation   *valuation.Service
	Store       *valuation.Store
	Snapshots   *snapshots.Repository
	MarketHours *market_hours.Service
	Criteria    screening.Criteria
	Scoring     ranking.Scoring
	TopN        int

	// RunOffHours disables the trading calendar gate; manual refreshes
	// and dev mode set it
	RunOffHours bool
}

// NewRefreshJob creates a new refresh job
func NewRefreshJob(cfg RefreshConfig) *RefreshJob {
	return &RefreshJob{
		log:         cfg.Log.With().Str("job", "bond_refresh").Logger(),
		client:      cfg.Client,
		valuation:   cfg.Valuation,
		store:       cfg.Store,
		snapshots:   cfg.Snapshots,
		marketHours: cfg.MarketHours,
		criteria:    cfg.Criteria,
		scoring:     cfg.Scoring,
		topN:        cfg.TopN,
		timeout:     5 * time.Minute,
		offHoursOK:  cfg.RunOffHours,
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "bond_refresh"
}

// Run executes one refresh cycle, skipping it while the market is
// closed unless configured to run off hours
func (j *RefreshJob) Run() error {
	if !j.offHoursOK && j.marketHours != nil && !j.marketHours.IsTradingNow() {
		j.log.Debug().Msg("Market closed, skipping scheduled refresh")
		return nil
	}
	return j.runCycle()
}

// RunNow executes a cycle regardless of the trading calendar. Manual
// refreshes through the API land here.
func (j *RefreshJob) RunNow() error {
	return j.runCycle()
}

func (j *RefreshJob) runCycle() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	start := time.Now()
	asOf := start.UTC()

	bonds, err := j.client.FetchBonds(ctx)
	if err != nil {
		j.log.Error().Err(err).Msg("Bond listing fetch failed")
		return err
	}

	j.client.EnrichCouponPeriods(ctx, bonds)

	valued := j.valuation.Valuate(bonds, asOf)
	screened := j.valuation.Screen(valued, j.criteria, asOf)
	ranked := j.valuation.Rank(screened, j.scoring)
	summary := j.valuation.Summarize(valued)

	result := &valuation.Result{
		RunID:    uuid.NewString(),
		AsOf:     asOf,
		Universe: valued,
		Screened: ranked,
		Summary:  summary,
	}
	j.store.Set(result)

	if err := j.persistSnapshot(result, len(bonds), start); err != nil {
		// the in-memory result is already live, a snapshot failure
		// should not fail the cycle
		j.log.Error().Err(err).Msg("Failed to persist valuation snapshot")
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Int("universe", len(bonds)).
		Int("valued", len(valued)).
		Int("screened", len(ranked)).
		Dur("elapsed", time.Since(start)).
		Msg("Refresh cycle completed")

	return nil
}

func (j *RefreshJob) persistSnapshot(result *valuation.Result, universeCount int, createdAt time.Time) error {
	if j.snapshots == nil {
		return nil
	}

	run := snapshots.Run{
		ID:            result.RunID,
		AsOf:          result.AsOf,
		CreatedAt:     createdAt,
		UniverseCount: universeCount,
		ValuedCount:   len(result.Universe),
		ScreenedCount: len(result.Screened),
	}

	top := result.Screened
	if j.topN > 0 && j.topN < len(top) {
		top = top[:j.topN]
	}

	picks := make([]snapshots.Pick, 0, len(top))
	for _, b := range top {
		picks = append(picks, snapshots.Pick{
			SecID:  b.SecID,
			Name:   b.Name,
			Sector: b.Sector,
			Yield:  b.Yield,
			Score:  j.valuation.Score(b, j.scoring),
			Price:  b.Price,
			Years:  b.YearsToMaturity(result.AsOf),
		})
	}

	if len(top) > 0 {
		best := top[0]
		run.BestSecID = best.SecID
		run.BestYield = best.Yield
		score := j.valuation.Score(best, j.scoring)
		run.BestScore = &score
	}

	if err := j.snapshots.SaveRun(run, picks); err != nil {
		return err
	}

	if _, err := j.snapshots.Prune(snapshotHistory); err != nil {
		j.log.Warn().Err(err).Msg("Snapshot pruning failed")
	}
	return nil
}
