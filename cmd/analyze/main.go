// Package main is the entry point for the argus risk engine. It loads the
// portfolio and limit documents, wires the analysis engine on top of the
// local price history, runs the requested mode and prints the report to
// stdout. With ARGUS_CRON set it keeps running and re-executes the mode on
// the given schedule until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/aristath/argus/internal/config"
	"github.com/aristath/argus/internal/database"
	"github.com/aristath/argus/internal/domain"
	"github.com/aristath/argus/internal/engine"
	"github.com/aristath/argus/internal/marketdata"
	"github.com/aristath/argus/internal/modules/calculations"
	"github.com/aristath/argus/internal/modules/scenario"
	"github.com/aristath/argus/internal/scheduler"
	"github.com/aristath/argus/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("mode", cfg.Mode).
		Str("data_dir", cfg.DataDir).
		Msg("Starting argus")

	historyDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "history.db"),
		Profile: database.ProfileStandard,
		Name:    "history",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open history database")
	}
	defer historyDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	store, err := marketdata.NewStore(historyDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize market data store")
	}

	cache, err := calculations.NewCache(cacheDB, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize calculation cache")
	}
	if stats, err := cache.Stats(); err == nil {
		log.Info().Interface("entries", stats).Msg("Calculation cache ready")
	}

	spec, err := config.LoadPortfolioSpec(cfg.PortfolioFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.PortfolioFile).Msg("Failed to load portfolio")
	}

	var limitsSpec domain.RiskLimitsSpec
	if cfg.LimitsFile != "" {
		limitsSpec, err = config.LoadRiskLimits(cfg.LimitsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.LimitsFile).Msg("Failed to load risk limits")
		}
	}

	if cfg.ProxiesFile != "" {
		proxies, err := config.LoadProxySet(cfg.ProxiesFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.ProxiesFile).Msg("Failed to load factor proxies")
		}
		spec.Proxies = proxies
	}

	var scenarios map[string]scenario.Delta
	if cfg.ScenariosFile != "" {
		scenarios, err = config.LoadScenarios(cfg.ScenariosFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.ScenariosFile).Msg("Failed to load scenarios")
		}
	}

	eng := engine.New(store, cache, scenarios, engine.Config{
		Workers:         cfg.Workers,
		MinObservations: cfg.MinObservations,
		HalfLifeDays:    cfg.HalfLifeDays,
	}, log)

	sched := scheduler.New(log)
	purge := scheduler.NewCachePurgeJob(cache, log)
	if err := sched.RunNow(purge); err != nil {
		log.Warn().Err(err).Msg("Cache purge failed")
	}

	run := func(ctx context.Context) error {
		pairs, err := execute(ctx, eng, cfg, spec, limitsSpec)
		if err != nil {
			return err
		}
		fmt.Print(engine.RenderText(pairs))
		return nil
	}

	if cfg.Cron == "" {
		if err := run(context.Background()); err != nil {
			log.Fatal().Err(err).Str("mode", cfg.Mode).Msg("Run failed")
		}
		return
	}

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		{cfg.Cron, scheduler.JobFunc{JobName: "portfolio_" + cfg.Mode, Fn: func() error {
			return run(context.Background())
		}}},
		{"@hourly", purge},
		{"0 0 3 * * *", scheduler.NewWALCheckpointJob(log, historyDB, cacheDB)},
		{"0 0 4 * * 0", scheduler.NewVacuumJob(log, cacheDB)},
	}
	for _, j := range jobs {
		if err := sched.AddJob(j.schedule, j.job); err != nil {
			log.Fatal().Err(err).Str("job", j.job.Name()).Msg("Failed to schedule job")
		}
	}

	sched.Start()
	log.Info().Str("cron", cfg.Cron).Msg("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	sched.Stop()
	log.Info().Msg("Shutdown complete")
}

// execute runs one pass of the configured mode and returns the flattened
// report. Mode and objective values were validated by config.Load, so an
// unknown mode here is a programming error.
func execute(ctx context.Context, eng *engine.Engine, cfg *config.Config, spec *domain.PortfolioSpec, limitsSpec domain.RiskLimitsSpec) ([]domain.KV, error) {
	switch cfg.Mode {
	case config.ModeAnalyze:
		res, err := eng.Analyze(ctx, spec, limitsSpec)
		if err != nil {
			return nil, err
		}
		return res.Flat(), nil
	case config.ModeOptimize:
		res, err := eng.Optimize(ctx, spec, limitsSpec, domain.Objective(cfg.Objective))
		if err != nil {
			return nil, err
		}
		return res.Flat(), nil
	case config.ModeScenario:
		// ARGUS_SCENARIO is either the name of a configured scenario or an
		// inline delta like "AAPL:-0.10,CASH:+0.10".
		name := cfg.Scenario
		var delta scenario.Delta
		if strings.Contains(name, ":") {
			parsed, err := scenario.ParseDelta(name)
			if err != nil {
				return nil, err
			}
			name, delta = "", parsed
		}
		res, err := eng.Scenario(ctx, spec, limitsSpec, name, delta)
		if err != nil {
			return nil, err
		}
		return res.Flat(), nil
	default:
		return nil, fmt.Errorf("unhandled mode %q", cfg.Mode)
	}
}
