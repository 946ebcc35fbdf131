package clinic

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
	"github.com/hackgods/clinic-encounter-engine/internal/directory"
)

// virtualNamespace derives stable ids for projected encounters, so the same
// booking always projects to the same id.
var virtualNamespace = uuid.MustParse("6f0c7a52-3d3e-4c1b-9a51-8f2d0c5e7b14")

// VirtualEncounterID is the id a booking projects to before it has an encounter.
func VirtualEncounterID(bookingID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(virtualNamespace, bookingID[:])
}

// Projector builds the read-only day view of a practitioner: stored
// encounters plus a scheduled placeholder for every open booking that has
// none yet. Placeholders are never written.
type Projector struct {
	encounters EncounterRepository
	bookings   BookingRepository
	directory  directory.Directory
	seeder     *Seeder
	logger     zerolog.Logger
}

func NewProjector(encounters EncounterRepository, bookings BookingRepository, dir directory.Directory, seeder *Seeder, logger zerolog.Logger) *Projector {
	return &Projector{
		encounters: encounters,
		bookings:   bookings,
		directory:  dir,
		seeder:     seeder,
		logger:     logger.With().Str("component", "projector").Logger(),
	}
}

func (p *Projector) DayView(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]Encounter, error) {
	if p.seeder != nil {
		if err := p.seeder.EnsureDailySeed(ctx); err != nil {
			p.logger.Error().Err(err).Msg("daily seed check failed")
		}
	}
	if !date.Valid() {
		return []Encounter{}, nil
	}

	stored, err := p.encounters.ListEncountersForDay(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	booked, err := p.bookings.ListBookingsForDay(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	view := make([]Encounter, 0, len(stored)+len(booked))
	byBooking := make(map[uuid.UUID]int)
	for _, e := range stored {
		if e.BookingID == nil {
			view = append(view, e)
			continue
		}
		idx, seen := byBooking[*e.BookingID]
		if !seen {
			byBooking[*e.BookingID] = len(view)
			view = append(view, e)
			continue
		}
		// a booking whose first encounter was canceled may have a newer one
		if !view[idx].Active() && e.Active() {
			view[idx] = e
		}
	}

	for i := range booked {
		b := &booked[i]
		if !b.Occupies() {
			continue
		}
		if _, ok := byBooking[b.ID]; ok {
			continue
		}
		view = append(view, p.project(ctx, b))
	}

	sort.SliceStable(view, func(i, j int) bool {
		return view[i].ScheduledTime < view[j].ScheduledTime
	})
	return view, nil
}

func (p *Projector) project(ctx context.Context, b *Booking) Encounter {
	bookingID := b.ID
	payment, provider := derivePayment(ctx, p.directory, b.PatientID, p.logger)
	return Encounter{
		ID:                  VirtualEncounterID(b.ID),
		BookingID:           &bookingID,
		PractitionerID:      b.PractitionerID,
		PatientID:           b.PatientID,
		Date:                b.Date,
		ScheduledTime:       b.Time,
		PrimaryProcedure:    b.ProcedureCode,
		PerformedProcedures: []string{},
		MaterialsUsed:       []string{},
		EquipmentUsed:       []string{},
		ExamsRequested:      []string{},
		GeneralNotes:        b.Notes,
		Status:              EncounterScheduled,
		PaymentType:         payment,
		InsuranceProvider:   provider,
		Persisted:           false,
		CreatedAt:           b.CreatedAt,
		UpdatedAt:           b.UpdatedAt,
	}
}
