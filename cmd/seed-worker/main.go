package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/app"
	"github.com/hackgods/clinic-encounter-engine/internal/clinic"
	"github.com/hackgods/clinic-encounter-engine/internal/config"
)

// The seed worker keeps the daily demo encounter in place on deployments
// where nobody reads the encounter views for a while.
func main() {
	cfg, err := config.Load()
	if err != nil {
		stderrLogger := zerolog.New(os.Stderr)
		stderrLogger.Fatal().Err(err).Msg("config load error")
	}
	if cfg.StoreBackend == config.BackendMemory {
		stderrLogger := zerolog.New(os.Stderr)
		stderrLogger.Fatal().Msg("seed-worker needs a shared store; STORE_BACKEND=memory is process local")
	}

	logger := app.NewLogger(cfg, "seed-worker")
	logger.Info().Dur("interval", cfg.SeedInterval).Str("store", cfg.StoreBackend).Msg("seed-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer a.Close()

	runOnce(rootCtx, a.Seeder, logger)

	ticker := time.NewTicker(cfg.SeedInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping seed worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, a.Seeder, logger)
		}
	}
}

func runOnce(ctx context.Context, seeder *clinic.Seeder, logger zerolog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	if err := seeder.EnsureDailySeed(runCtx); err != nil {
		logger.Error().Err(err).Msg("seed run failed")
		return
	}
	logger.Debug().Dur("took", time.Since(start)).Msg("seed run complete")
}
