package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/clinic-encounter-engine/internal/app"
	"github.com/hackgods/clinic-encounter-engine/internal/config"
	"github.com/hackgods/clinic-encounter-engine/internal/db"
	"github.com/hackgods/clinic-encounter-engine/internal/reference"
	"github.com/hackgods/clinic-encounter-engine/internal/schedule"
)

type seedOptions struct {
	practitioners int
	patients      int
	seed          uint64
	step          time.Duration
}

func main() {
	opts := seedOptions{}

	rootCmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the clinic Postgres directory with fake data",
	}
	rootCmd.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "random seed (0 picks one from the clock)")
	rootCmd.PersistentFlags().DurationVar(&opts.step, "slot-step", 30*time.Minute, "length of one schedule slot")

	allCmd := &cobra.Command{
		Use:   "all",
		Short: "Create practitioners with schedules, patients and patient records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
				faker := newFaker(opts.seed)
				ids, err := seedPractitioners(ctx, pool, faker, opts.practitioners, logger)
				if err != nil {
					return fmt.Errorf("seed practitioners: %w", err)
				}
				if err := seedSchedules(ctx, pool, ids, opts.step, logger); err != nil {
					return fmt.Errorf("seed schedules: %w", err)
				}
				if err := seedPatients(ctx, pool, faker, opts.patients, logger); err != nil {
					return fmt.Errorf("seed patients: %w", err)
				}
				return nil
			})
		},
	}
	allCmd.Flags().IntVar(&opts.practitioners, "practitioners", 20, "number of practitioners")
	allCmd.Flags().IntVar(&opts.patients, "patients", 2000, "number of patients")

	schedulesCmd := &cobra.Command{
		Use:   "schedules",
		Short: "Rebuild the weekly schedule of every active practitioner",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
				rows, err := pool.Query(ctx, `SELECT id FROM practitioners WHERE active ORDER BY name`)
				if err != nil {
					return err
				}
				ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
				if err != nil {
					return err
				}
				return seedSchedules(ctx, pool, ids, opts.step, logger)
			})
		},
	}

	rootCmd.AddCommand(allCmd, schedulesCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func withPool(ctx context.Context, fn func(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	if cfg.StoreBackend != config.BackendPostgres {
		return fmt.Errorf("seed writes to Postgres; STORE_BACKEND is %q", cfg.StoreBackend)
	}
	logger := app.NewLogger(cfg, "seed")

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(connectCtx, cfg.PostgresDSN, db.PoolOptions{MaxConns: cfg.PostgresMaxConns})
	cancel()
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool, logger); err != nil {
		return err
	}

	start := time.Now()
	if err := fn(ctx, pool, logger); err != nil {
		logger.Error().Err(err).Msg("seed failed")
		return err
	}
	logger.Info().Dur("took", time.Since(start)).Msg("seed complete")
	return nil
}

func newFaker(seed uint64) *gofakeit.Faker {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return gofakeit.New(seed)
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger zerolog.Logger) ([]uuid.UUID, error) {
	logger.Info().Int("count", count).Msg("seeding practitioners")

	specialties := reference.Specialties()
	ids := make([]uuid.UUID, 0, count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + faker.Name()
		specialty := specialties[faker.Number(0, len(specialties)-1)].Name

		_, err := tx.Exec(ctx, `
			INSERT INTO practitioners (id, name, specialty, active, created_at, updated_at)
			VALUES ($1, $2, $3, TRUE, now(), now())
		`, id, name, specialty)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	logger.Info().Msg("practitioners seeded")
	return ids, nil
}

// seedSchedules alternates practitioners between a morning and an afternoon
// shift, Monday to Friday.
func seedSchedules(ctx context.Context, pool *pgxpool.Pool, ids []uuid.UUID, step time.Duration, logger zerolog.Logger) error {
	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	shifts := []schedule.Schedule{
		schedule.Generate(weekdays, "08:00", "12:00", step),
		schedule.Generate(weekdays, "13:00", "18:00", step),
	}

	provider := schedule.NewPgProvider(pool)
	for i, id := range ids {
		if err := provider.Replace(ctx, id, shifts[i%len(shifts)]); err != nil {
			return fmt.Errorf("practitioner %s: %w", id, err)
		}
	}

	logger.Info().Int("practitioners", len(ids)).Dur("slot_step", step).Msg("schedules seeded")
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, faker *gofakeit.Faker, count int, logger zerolog.Logger) error {
	logger.Info().Int("count", count).Msg("seeding patients")

	const batchSize = 500
	insurers := []string{"Acme Health", "Unity Care", "Northwind Mutual", "Blue Meridian"}
	allergens := []string{"penicillin", "latex", "peanuts", "ibuprofen", "pollen", "shellfish"}
	conditions := []string{"hypertension", "asthma", "type 2 diabetes", "migraine", "hypothyroidism"}

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			var insurer *string
			if faker.Bool() {
				p := insurers[faker.Number(0, len(insurers)-1)]
				insurer = &p
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, has_insurance, insurance_provider, active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, TRUE, now(), now())
			`, id, faker.Name(), faker.Email(), insurer != nil, insurer)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO patient_records (patient_id, allergies, medical_conditions, updated_at)
				VALUES ($1, $2, $3, now())
			`, id, pick(faker, allergens, 2), pick(faker, conditions, 1))
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		logger.Info().Int("done", end).Int("total", count).Msg("patients seeded")
	}

	return nil
}

// pick returns up to limit distinct entries of from, possibly none.
func pick(faker *gofakeit.Faker, from []string, limit int) []string {
	n := faker.Number(0, limit)
	out := make([]string, 0, n)
	seen := make(map[string]bool, n)
	for len(out) < n {
		v := from[faker.Number(0, len(from)-1)]
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
