package clinic

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
	"github.com/hackgods/clinic-encounter-engine/internal/clock"
	"github.com/hackgods/clinic-encounter-engine/internal/directory"
	"github.com/hackgods/clinic-encounter-engine/internal/events"
)

const DefaultSeedProcedure = "consultation"

// Seeder keeps exactly one live demonstration encounter for the current day.
type Seeder struct {
	mu        sync.Mutex
	repo      EncounterRepository
	directory directory.Directory
	events    events.Sink
	clock     clock.Clock
	procedure string
	logger    zerolog.Logger
}

func NewSeeder(repo EncounterRepository, dir directory.Directory, sink events.Sink, clk clock.Clock, procedure string, logger zerolog.Logger) *Seeder {
	if sink == nil {
		sink = events.Nop()
	}
	if procedure == "" {
		procedure = DefaultSeedProcedure
	}
	return &Seeder{
		repo:      repo,
		directory: dir,
		events:    sink,
		clock:     clk,
		procedure: procedure,
		logger:    logger.With().Str("component", "seed").Logger(),
	}
}

// EnsureDailySeed is a no-op when a seed encounter for today is scheduled or
// in progress. Otherwise it removes every stale seed and creates a new one.
// Extra live seeds left by a concurrent writer are removed, keeping the first.
func (s *Seeder) EnsureDailySeed(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	today := civil.DateOf(now)

	seeds, err := s.repo.ListSeedEncounters(ctx)
	if err != nil {
		return fmt.Errorf("list seed encounters: %w", err)
	}

	keep := -1
	for i := range seeds {
		if seeds[i].IsLiveSeed(today) {
			keep = i
			break
		}
	}

	for i := range seeds {
		if i == keep {
			continue
		}
		if err := s.repo.DeleteEncounter(ctx, seeds[i].ID); err != nil {
			return fmt.Errorf("remove stale seed %s: %w", seeds[i].ID, err)
		}
	}
	if keep >= 0 {
		return nil
	}

	practitioners, err := s.directory.ListActivePractitioners(ctx)
	if err != nil {
		return fmt.Errorf("list practitioners: %w", err)
	}
	patients, err := s.directory.ListActivePatients(ctx)
	if err != nil {
		return fmt.Errorf("list patients: %w", err)
	}
	if len(practitioners) == 0 || len(patients) == 0 {
		s.logger.Warn().
			Int("practitioners", len(practitioners)).
			Int("patients", len(patients)).
			Msg("directory is empty, cannot create seed encounter")
		return nil
	}

	practitioner, patient := practitioners[0], patients[0]
	payment, provider := PaymentPrivate, (*string)(nil)
	if patient.HasInsurance {
		payment, provider = PaymentInsurance, patient.InsuranceProvider
	}

	e := &Encounter{
		ID:                  uuid.New(),
		PractitionerID:      practitioner.ID,
		PatientID:           patient.ID,
		Date:                today,
		ScheduledTime:       civil.TimeOfDayOf(now),
		PrimaryProcedure:    s.procedure,
		PerformedProcedures: []string{},
		MaterialsUsed:       []string{},
		EquipmentUsed:       []string{},
		ExamsRequested:      []string{},
		Status:              EncounterScheduled,
		PaymentType:         payment,
		InsuranceProvider:   provider,
		Seed:                true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.InsertEncounter(ctx, e); err != nil {
		return fmt.Errorf("create seed encounter: %w", err)
	}

	s.logger.Info().
		Str("encounter_id", e.ID.String()).
		Str("date", string(today)).
		Int("removed", len(seeds)).
		Msg("seed encounter regenerated")
	s.events.Emit(ctx, events.Event{
		Name:       events.SeedRegenerated,
		EntityType: "encounter",
		EntityID:   e.ID,
		Payload:    map[string]any{"date": string(today), "removed": len(seeds)},
		OccurredAt: now,
	})
	return nil
}
