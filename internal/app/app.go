// Package app builds the clinic service graph from configuration. It is
// shared by the API server and the seed worker.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/clinic"
	"github.com/hackgods/clinic-encounter-engine/internal/clock"
	"github.com/hackgods/clinic-encounter-engine/internal/config"
	"github.com/hackgods/clinic-encounter-engine/internal/db"
	"github.com/hackgods/clinic-encounter-engine/internal/directory"
	"github.com/hackgods/clinic-encounter-engine/internal/events"
	redisclient "github.com/hackgods/clinic-encounter-engine/internal/redis"
	"github.com/hackgods/clinic-encounter-engine/internal/schedule"
)

// DefaultDemo is loaded into the in-process directory when no Postgres
// directory is configured.
var DefaultDemo = DemoData{Seed: 42, Practitioners: 6, Patients: 40}

type store interface {
	clinic.BookingRepository
	clinic.EncounterRepository
}

type App struct {
	Config config.Config
	Logger zerolog.Logger
	Clock  clock.Clock

	PgPool *pgxpool.Pool
	Redis  *redis.Client

	Resolver   *clinic.Resolver
	Bookings   *clinic.BookingService
	Encounters *clinic.EncounterService
	Projector  *clinic.Projector
	Seeder     *clinic.Seeder

	closers []func()
}

// New connects every configured backend and wires the services. On error,
// whatever was already opened is closed again.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (_ *App, err error) {
	a := &App{Config: cfg, Logger: logger, Clock: clock.System(cfg.Location)}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	dispatcher := events.NewDispatcher(logger).Add("log", events.NewLogPublisher(logger))

	if cfg.RedisEnabled {
		rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		a.Redis = rdb
		a.onClose(func() {
			if err := rdb.Close(); err != nil {
				logger.Error().Err(err).Msg("error closing redis")
			}
		})
		dispatcher.Add("redis", events.NewRedisPublisher(rdb, cfg.RedisEventChannel))
		logger.Info().Str("addr", cfg.RedisAddr).Msg("connected to Redis")
	}

	if cfg.AMQPURL != "" {
		pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("amqp connection: %w", err)
		}
		a.onClose(func() { _ = pub.Close() })
		dispatcher.Add("amqp", pub)
		logger.Info().Str("exchange", cfg.AMQPExchange).Msg("connected to AMQP broker")
	}

	var (
		repo     store
		dir      directory.Directory
		records  directory.RecordStore
		provider schedule.Provider
	)

	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.PostgresMaxConns})
		cancel()
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		a.PgPool = pool
		a.onClose(pool.Close)
		logger.Info().Msg("connected to Postgres")

		if err := db.Migrate(ctx, pool, logger); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}

		repo = clinic.NewPgRepository(pool)
		dir = directory.NewPgDirectory(pool)
		records = directory.NewPgRecordStore(pool)
		provider = schedule.NewPgProvider(pool)
		dispatcher.Add("postgres", events.NewPgPublisher(pool))

	case config.BackendMemory, config.BackendRedis:
		mem := directory.NewMemory()
		static := schedule.NewStatic()
		DefaultDemo.Load(mem, static)
		dir, records, provider = mem, mem, static

		if cfg.StoreBackend == config.BackendRedis {
			repo = clinic.NewKVRepository(
				redisclient.NewHashCollection[clinic.Booking](a.Redis, clinic.BookingsKey),
				redisclient.NewHashCollection[clinic.Encounter](a.Redis, clinic.EncountersKey),
			)
		} else {
			repo = clinic.NewMemoryRepository()
		}
		logger.Warn().
			Str("backend", cfg.StoreBackend).
			Int("practitioners", DefaultDemo.Practitioners).
			Int("patients", DefaultDemo.Patients).
			Msg("using generated demo directory")

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	cached, err := schedule.NewCached(provider, cfg.ScheduleCacheSize, logger)
	if err != nil {
		return nil, fmt.Errorf("schedule cache: %w", err)
	}

	var locker redisclient.Locker
	if a.Redis != nil {
		locker = redisclient.NewRedisSlotLocker(a.Redis, cfg.LockTTL)
	} else {
		locker = redisclient.NewLocalLocker()
	}

	a.Resolver = clinic.NewResolver(cached, repo, logger)
	a.Encounters = clinic.NewEncounterService(repo, repo, dir, dispatcher, a.Clock, logger)
	a.Bookings = clinic.NewBookingService(repo, a.Resolver, dir, a.Encounters, locker, dispatcher, a.Clock, logger)
	a.Seeder = clinic.NewSeeder(repo, dir, dispatcher, a.Clock, cfg.SeedProcedure, logger)
	a.Projector = clinic.NewProjector(repo, repo, dir, a.Seeder, logger)
	a.Encounters.SetFinalizer(clinic.NewFinalizer(a.Bookings, records, logger))
	a.Encounters.SetSeeder(a.Seeder)

	return a, nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
