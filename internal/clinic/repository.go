package clinic

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
)

// BookingRepository persists bookings. Bookings are never deleted.
type BookingRepository interface {
	// InsertBooking may fail with ErrSlotUnavailable when the store itself
	// enforces one live booking per slot.
	InsertBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error)

	// UpdateBookingStatus moves a booking from one status to another. It fails
	// with ErrInvalidTransition when the stored status is no longer from.
	UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus, at time.Time) (*Booking, error)

	ListBookingsForDay(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]Booking, error)
	ListBookingsForPatient(ctx context.Context, patientID uuid.UUID) ([]Booking, error)
}

// EncounterRepository persists encounters. Only stale seed encounters are ever deleted.
type EncounterRepository interface {
	// InsertEncounter fails with ErrDuplicateEncounter when e.BookingID already
	// has a non-canceled encounter.
	InsertEncounter(ctx context.Context, e *Encounter) error
	GetEncounter(ctx context.Context, id uuid.UUID) (*Encounter, error)

	// UpdateEncounter writes every mutable field of e, provided the stored
	// status is still from.
	UpdateEncounter(ctx context.Context, e *Encounter, from EncounterStatus) error

	FindActiveEncounterForBooking(ctx context.Context, bookingID uuid.UUID) (*Encounter, error)
	ListEncountersForDay(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]Encounter, error)
	ListEncountersForPatient(ctx context.Context, patientID uuid.UUID) ([]Encounter, error)

	// Seed maintenance
	ListSeedEncounters(ctx context.Context) ([]Encounter, error)
	DeleteEncounter(ctx context.Context, id uuid.UUID) error
}
