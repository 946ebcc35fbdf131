package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
	"github.com/hackgods/clinic-encounter-engine/internal/clock"
	"github.com/hackgods/clinic-encounter-engine/internal/directory"
	"github.com/hackgods/clinic-encounter-engine/internal/events"
	redisclient "github.com/hackgods/clinic-encounter-engine/internal/redis"
	"github.com/hackgods/clinic-encounter-engine/internal/reference"
)

type CreateBookingInput struct {
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	Date           civil.Date
	Time           civil.TimeOfDay
	ProcedureCode  string
	Notes          *string
}

type BookingService struct {
	repo       BookingRepository
	resolver   *Resolver
	directory  directory.Directory
	encounters *EncounterService
	locker     redisclient.Locker
	events     events.Sink
	clock      clock.Clock
	logger     zerolog.Logger
}

func NewBookingService(
	repo BookingRepository,
	resolver *Resolver,
	dir directory.Directory,
	encounters *EncounterService,
	locker redisclient.Locker,
	sink events.Sink,
	clk clock.Clock,
	logger zerolog.Logger,
) *BookingService {
	if locker == nil {
		locker = redisclient.NewLocalLocker()
	}
	if sink == nil {
		sink = events.Nop()
	}
	return &BookingService{
		repo:       repo,
		resolver:   resolver,
		directory:  dir,
		encounters: encounters,
		locker:     locker,
		events:     sink,
		clock:      clk,
		logger:     logger.With().Str("component", "bookings").Logger(),
	}
}

// Create reserves a slot. The slot must currently be offered by
// AvailableSlots; the check and the insert run under the slot lock.
func (s *BookingService) Create(ctx context.Context, in CreateBookingInput) (*Booking, error) {
	if in.PractitionerID == uuid.Nil || in.PatientID == uuid.Nil {
		return nil, validationf("practitioner_id and patient_id are required")
	}
	if !in.Date.Valid() {
		return nil, validationf("invalid date %q", in.Date)
	}
	if !in.Time.Valid() {
		return nil, validationf("invalid time %q", in.Time)
	}
	duration, err := reference.DurationFor(in.ProcedureCode)
	if err != nil {
		return nil, validationf("unknown procedure %q", in.ProcedureCode)
	}
	if in.Notes != nil && strings.TrimSpace(*in.Notes) == "" {
		in.Notes = nil
	}

	if _, err := s.directory.GetPractitioner(ctx, in.PractitionerID); err != nil {
		return nil, translateDirectoryErr(err, "practitioner", in.PractitionerID)
	}
	if _, err := s.directory.GetPatient(ctx, in.PatientID); err != nil {
		return nil, translateDirectoryErr(err, "patient", in.PatientID)
	}

	var created *Booking
	key := redisclient.SlotKey(in.PractitionerID, string(in.Date), string(in.Time))

	err = s.locker.WithLock(ctx, key, func(lockCtx context.Context) error {
		ok, err := s.resolver.IsAvailable(lockCtx, in.PractitionerID, in.Date, in.Time)
		if err != nil {
			return fmt.Errorf("check availability: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s %s", ErrSlotUnavailable, in.Date, in.Time)
		}

		now := s.clock.Now()
		b := &Booking{
			ID:              uuid.New(),
			PractitionerID:  in.PractitionerID,
			PatientID:       in.PatientID,
			Date:            in.Date,
			Time:            in.Time,
			ProcedureCode:   in.ProcedureCode,
			DurationMinutes: duration,
			Status:          BookingBooked,
			Notes:           in.Notes,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := s.repo.InsertBooking(lockCtx, b); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		created = b
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, fmt.Errorf("%w: slot is being booked", ErrSlotUnavailable)
		}
		return nil, err
	}

	s.emit(ctx, events.BookingCreated, created, map[string]any{
		"practitioner_id": created.PractitionerID.String(),
		"patient_id":      created.PatientID.String(),
		"date":            string(created.Date),
		"time":            string(created.Time),
		"procedure_code":  created.ProcedureCode,
	})
	return created, nil
}

// Start moves a booked visit to in-progress and makes sure its encounter
// exists. If the encounter step fails the booking stays in-progress; calling
// EncounterService.EnsureForBooking again completes the step.
func (s *BookingService) Start(ctx context.Context, id uuid.UUID) (*Booking, *Encounter, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if b.Status != BookingBooked {
		return nil, nil, transitionf("cannot start booking in status %s", b.Status)
	}

	now := s.clock.Now()
	updated, err := s.repo.UpdateBookingStatus(ctx, id, BookingBooked, BookingInProgress, now)
	if err != nil {
		return nil, nil, err
	}
	s.emit(ctx, events.BookingStarted, updated, nil)

	enc, err := s.encounters.EnsureForBooking(ctx, id, now)
	if err != nil {
		return updated, nil, fmt.Errorf("ensure encounter for booking %s: %w", id, err)
	}
	return updated, enc, nil
}

// Complete marks an in-progress booking completed.
//
// Precondition: the caller has completed the booking's encounter. The
// finalization step is the normal caller; whether a booking may be completed
// administratively without an encounter is not decided here and is not checked.
func (s *BookingService) Complete(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != BookingInProgress {
		return nil, transitionf("cannot complete booking in status %s", b.Status)
	}

	updated, err := s.repo.UpdateBookingStatus(ctx, id, BookingInProgress, BookingCompleted, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.BookingCompleted, updated, nil)
	return updated, nil
}

// Cancel releases the slot. An encounter already linked to the booking is
// left alone and must be canceled on its own.
func (s *BookingService) Cancel(ctx context.Context, id uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Status != BookingBooked && b.Status != BookingInProgress {
		return nil, transitionf("cannot cancel booking in status %s", b.Status)
	}

	updated, err := s.repo.UpdateBookingStatus(ctx, id, b.Status, BookingCanceled, s.clock.Now())
	if err != nil {
		return nil, err
	}
	s.emit(ctx, events.BookingCanceled, updated, map[string]any{
		"previous_status": string(b.Status),
	})
	return updated, nil
}

// Reschedule cancels the booking, then books the same visit at date/tod.
// The two steps are not atomic. When the second fails the old booking stays
// canceled and a *RescheduleError carrying it is returned.
func (s *BookingService) Reschedule(ctx context.Context, id uuid.UUID, date civil.Date, tod civil.TimeOfDay) (*Booking, error) {
	canceled, err := s.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := s.Create(ctx, CreateBookingInput{
		PractitionerID: canceled.PractitionerID,
		PatientID:      canceled.PatientID,
		Date:           date,
		Time:           tod,
		ProcedureCode:  canceled.ProcedureCode,
		Notes:          canceled.Notes,
	})
	if err != nil {
		s.logger.Warn().Err(err).
			Str("booking_id", id.String()).
			Msg("reschedule left booking canceled without replacement")
		return nil, &RescheduleError{Canceled: canceled, Err: err}
	}
	return next, nil
}

func (s *BookingService) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

func (s *BookingService) ListForDay(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]Booking, error) {
	if !date.Valid() {
		return nil, validationf("invalid date %q", date)
	}
	list, err := s.repo.ListBookingsForDay(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return list, nil
}

func (s *BookingService) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Booking, error) {
	list, err := s.repo.ListBookingsForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return list, nil
}

func (s *BookingService) emit(ctx context.Context, name string, b *Booking, payload map[string]any) {
	s.logger.Debug().
		Str("booking_id", b.ID.String()).
		Str("status", string(b.Status)).
		Msg(name)
	s.events.Emit(ctx, events.Event{
		Name:       name,
		EntityType: "booking",
		EntityID:   b.ID,
		Payload:    payload,
		OccurredAt: s.clock.Now(),
	})
}

func translateDirectoryErr(err error, kind string, id uuid.UUID) error {
	if errors.Is(err, directory.ErrPatientNotFound) || errors.Is(err, directory.ErrPractitionerNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return fmt.Errorf("load %s: %w", kind, err)
}
