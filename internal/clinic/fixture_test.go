package clinic

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
	"github.com/hackgods/clinic-encounter-engine/internal/clock"
	"github.com/hackgods/clinic-encounter-engine/internal/directory"
	"github.com/hackgods/clinic-encounter-engine/internal/events"
	redisclient "github.com/hackgods/clinic-encounter-engine/internal/redis"
	"github.com/hackgods/clinic-encounter-engine/internal/schedule"
)

const (
	monday  civil.Date = "2026-10-19"
	tuesday civil.Date = "2026-10-20"
	sunday  civil.Date = "2026-10-25"
)

var mondayMorning = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

// fixture wires the whole core over in-memory collaborators. The directory
// holds a demo practitioner and patient that sort first, so seed encounters
// never land on the practitioner and patient the tests book with.
type fixture struct {
	ctx    context.Context
	clock  *clock.Manual
	dir    *directory.Memory
	sched  *schedule.Static
	repo   *KVRepository
	events *events.Recorder

	resolver   *Resolver
	bookings   *BookingService
	encounters *EncounterService
	finalizer  *Finalizer
	seeder     *Seeder
	projector  *Projector

	practitioner uuid.UUID
	patient      uuid.UUID
	insured      uuid.UUID
	demoDoc      uuid.UUID
	demoPatient  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:          context.Background(),
		clock:        clock.NewManual(mondayMorning),
		dir:          directory.NewMemory(),
		sched:        schedule.NewStatic(),
		repo:         NewMemoryRepository(),
		events:       &events.Recorder{},
		practitioner: uuid.New(),
		patient:      uuid.New(),
		insured:      uuid.New(),
		demoDoc:      uuid.New(),
		demoPatient:  uuid.New(),
	}

	provider := "Acme Health"
	f.dir.PutPractitioner(directory.Practitioner{ID: f.demoDoc, Name: "Aaron Demo", Active: true})
	f.dir.PutPractitioner(directory.Practitioner{ID: f.practitioner, Name: "Dr. Ruth Okafor", Active: true})
	f.dir.PutPatient(directory.Patient{ID: f.demoPatient, Name: "Aaron Sample", Active: true})
	f.dir.PutPatient(directory.Patient{ID: f.patient, Name: "Maria Silva", Active: true})
	f.dir.PutPatient(directory.Patient{ID: f.insured, Name: "Tom Weber", Active: true, HasInsurance: true, InsuranceProvider: &provider})

	weekdays := []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
	f.sched.Set(f.practitioner, schedule.Generate(weekdays, "09:00", "12:00", 30*time.Minute))

	logger := zerolog.Nop()
	f.resolver = NewResolver(f.sched, f.repo, logger)
	f.encounters = NewEncounterService(f.repo, f.repo, f.dir, f.events, f.clock, logger)
	f.bookings = NewBookingService(f.repo, f.resolver, f.dir, f.encounters, redisclient.NewLocalLocker(), f.events, f.clock, logger)
	f.finalizer = NewFinalizer(f.bookings, f.dir, logger)
	f.seeder = NewSeeder(f.repo, f.dir, f.events, f.clock, "", logger)
	f.projector = NewProjector(f.repo, f.repo, f.dir, f.seeder, logger)
	f.encounters.SetFinalizer(f.finalizer)
	f.encounters.SetSeeder(f.seeder)
	return f
}

func (f *fixture) book(t *testing.T, date civil.Date, tod civil.TimeOfDay) *Booking {
	t.Helper()
	b, err := f.bookings.Create(f.ctx, CreateBookingInput{
		PractitionerID: f.practitioner,
		PatientID:      f.patient,
		Date:           date,
		Time:           tod,
		ProcedureCode:  "consultation",
	})
	if err != nil {
		t.Fatalf("create booking %s %s: %v", date, tod, err)
	}
	return b
}

func (f *fixture) start(t *testing.T, date civil.Date, tod civil.TimeOfDay) (*Booking, *Encounter) {
	t.Helper()
	b := f.book(t, date, tod)
	b, e, err := f.bookings.Start(f.ctx, b.ID)
	if err != nil {
		t.Fatalf("start booking: %v", err)
	}
	return b, e
}

// scheduledFor stores a never-started encounter linked to b.
func (f *fixture) scheduledFor(t *testing.T, b *Booking) *Encounter {
	t.Helper()
	id := b.ID
	now := f.clock.Now()
	e := &Encounter{
		BookingID:        &id,
		PractitionerID:   b.PractitionerID,
		PatientID:        b.PatientID,
		Date:             b.Date,
		ScheduledTime:    b.Time,
		PrimaryProcedure: b.ProcedureCode,
		Status:           EncounterScheduled,
		PaymentType:      PaymentPrivate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := f.repo.InsertEncounter(f.ctx, e); err != nil {
		t.Fatalf("insert scheduled encounter: %v", err)
	}
	return e
}

func (f *fixture) activeEncountersFor(t *testing.T, bookingID uuid.UUID) int {
	t.Helper()
	all, err := f.repo.encounters.All(f.ctx)
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	for _, e := range all {
		if e.BookingID != nil && *e.BookingID == bookingID && e.Active() {
			n++
		}
	}
	return n
}

func containsName(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }
