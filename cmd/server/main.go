// bondwatch fetches the MOEX bond universe on a schedule, solves yields
// to maturity, screens and ranks the result, and serves it over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/bondwatch/internal/clientdata"
	"github.com/aristath/bondwatch/internal/clients/moex"
	"github.com/aristath/bondwatch/internal/config"
	"github.com/aristath/bondwatch/internal/database"
	"github.com/aristath/bondwatch/internal/domain"
	"github.com/aristath/bondwatch/internal/modules/market_hours"
	"github.com/aristath/bondwatch/internal/modules/ranking"
	"github.com/aristath/bondwatch/internal/modules/screening"
	"github.com/aristath/bondwatch/internal/modules/snapshots"
	"github.com/aristath/bondwatch/internal/modules/valuation"
	"github.com/aristath/bondwatch/internal/scheduler"
	"github.com/aristath/bondwatch/internal/server"
	"github.com/aristath/bondwatch/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// logger is not configured yet, write straight to stderr
		os.Stderr.WriteString("configuration error: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("data_dir", cfg.DataDir).
		Str("board", cfg.MoexBoard).
		Str("refresh", cfg.RefreshSchedule).
		Msg("Starting bondwatch")

	// Databases: bonds.db holds valuation snapshots, client_data.db is
	// the external API response cache.
	bondsDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "bonds.db"),
		Profile: database.ProfileStandard,
		Name:    "bonds",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open bonds database")
	}
	defer bondsDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "client_data.db"),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open client data database")
	}
	defer cacheDB.Close()

	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	if err := cacheRepo.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare client data schema")
	}

	snapshotRepo := snapshots.NewRepository(bondsDB.Conn())
	if err := snapshotRepo.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare snapshot schema")
	}

	// Services
	moexClient := moex.NewClient(cfg.MoexBaseURL, cfg.MoexBoard, cacheRepo, log)
	marketHours := market_hours.NewService()
	store := valuation.NewStore()
	valuationSvc := valuation.NewService(
		screening.NewScreener(log),
		ranking.NewRanker(log),
		log,
	)

	criteria := screening.Criteria{
		MinYears:          cfg.Screening.MinYears,
		MaxYears:          cfg.Screening.MaxYears,
		MinYield:          cfg.Screening.MinYield,
		MinVolume:         cfg.Screening.MinVolume,
		MinPrice:          cfg.Screening.MinPrice,
		MaxPrice:          cfg.Screening.MaxPrice,
		ExcludeZeroCoupon: cfg.Screening.ExcludeZeroCoupon,
	}
	scoring := ranking.Scoring{
		SectorBonus: map[domain.Sector]float64{
			domain.SectorGovernment: cfg.Scoring.GovernmentBonus,
			domain.SectorCorporate:  cfg.Scoring.CorporateBonus,
		},
	}

	// Background jobs
	refreshJob := scheduler.NewRefreshJob(scheduler.RefreshConfig{
		Log:         log,
		Client:      moexClient,
		Valuation:   valuationSvc,
		Store:       store,
		Snapshots:   snapshotRepo,
		MarketHours: marketHours,
		Criteria:    criteria,
		Scoring:     scoring,
		TopN:        cfg.Scoring.TopN,
		RunOffHours: cfg.DevMode,
	})
	cleanupJob := clientdata.NewCleanupJob(cacheRepo, log)

	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.RefreshSchedule, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}
	if err := sched.AddJob("@daily", cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cleanup job")
	}
	sched.Start()

	// Populate the store before the first scheduled tick so the API has
	// data right after startup.
	go func() {
		if err := refreshJob.RunNow(); err != nil {
			log.Error().Err(err).Msg("Initial refresh failed, waiting for the next scheduled run")
		}
	}()

	srv := server.New(server.Config{
		Log:         log,
		Cfg:         cfg,
		BondsDB:     bondsDB,
		CacheDB:     cacheDB,
		Store:       store,
		Valuation:   valuationSvc,
		MarketHours: marketHours,
		Snapshots:   snapshotRepo,
		Refresher:   refreshJob,
		Scoring:     scoring,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	sched.Stop()

	log.Info().Msg("bondwatch stopped")
}
