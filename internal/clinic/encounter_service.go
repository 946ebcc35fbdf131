package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
	"github.com/hackgods/clinic-encounter-engine/internal/clock"
	"github.com/hackgods/clinic-encounter-engine/internal/directory"
	"github.com/hackgods/clinic-encounter-engine/internal/events"
)

type AdHocInput struct {
	PractitionerID      uuid.UUID
	PatientID           uuid.UUID
	PrimaryProcedure    string
	PerformedProcedures []string
	GeneralNotes        *string
}

type CompleteInput struct {
	PerformedProcedures []string
	MaterialsUsed       []string
	EquipmentUsed       []string
	ExamsRequested      []string
	GeneralNotes        *string
	Allergies           []string
	Conditions          []string
	PrescriptionText    *string
	Certificate         *Certificate
	FollowUp            *FollowUpRequest
}

type EncounterService struct {
	repo      EncounterRepository
	bookings  BookingRepository
	directory directory.Directory
	events    events.Sink
	clock     clock.Clock
	logger    zerolog.Logger

	finalizer *Finalizer
	seeder    *Seeder
}

func NewEncounterService(
	repo EncounterRepository,
	bookings BookingRepository,
	dir directory.Directory,
	sink events.Sink,
	clk clock.Clock,
	logger zerolog.Logger,
) *EncounterService {
	if sink == nil {
		sink = events.Nop()
	}
	return &EncounterService{
		repo:      repo,
		bookings:  bookings,
		directory: dir,
		events:    sink,
		clock:     clk,
		logger:    logger.With().Str("component", "encounters").Logger(),
	}
}

// SetFinalizer wires the completion side effects. Without one, Complete only
// updates the encounter.
func (s *EncounterService) SetFinalizer(f *Finalizer) {
	s.finalizer = f
}

// SetSeeder wires the daily seed check that runs before every read.
func (s *EncounterService) SetSeeder(sd *Seeder) {
	s.seeder = sd
}

// EnsureForBooking returns the booking's in-progress encounter, starting an
// existing scheduled one or creating it from the booking when none exists.
// The booking must already be in progress.
func (s *EncounterService) EnsureForBooking(ctx context.Context, bookingID uuid.UUID, startTime time.Time) (*Encounter, error) {
	b, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != BookingInProgress {
		return nil, transitionf("booking %s is %s, expected %s", b.ID, b.Status, BookingInProgress)
	}

	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.repo.FindActiveEncounterForBooking(ctx, bookingID)
		if err != nil && !errors.Is(err, ErrEncounterNotFound) {
			return nil, fmt.Errorf("find encounter: %w", err)
		}
		if existing != nil {
			return s.resume(ctx, existing, startTime)
		}

		e := s.fromBooking(ctx, b, startTime)
		err = s.repo.InsertEncounter(ctx, e)
		if errors.Is(err, ErrDuplicateEncounter) {
			s.logger.Debug().Str("booking_id", bookingID.String()).Msg("encounter created concurrently, reloading")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create encounter: %w", err)
		}
		s.emit(ctx, events.EncounterStarted, e, map[string]any{"booking_id": bookingID.String()})
		return e, nil
	}
	return nil, ErrDuplicateEncounter
}

func (s *EncounterService) resume(ctx context.Context, e *Encounter, startTime time.Time) (*Encounter, error) {
	switch e.Status {
	case EncounterInProgress:
		return e, nil
	case EncounterScheduled:
		st := startTime
		e.StartTime = &st
		e.Status = EncounterInProgress
		e.UpdatedAt = s.clock.Now()
		if err := s.repo.UpdateEncounter(ctx, e, EncounterScheduled); err != nil {
			return nil, err
		}
		s.emit(ctx, events.EncounterStarted, e, nil)
		return e, nil
	default:
		return nil, transitionf("encounter %s is %s", e.ID, e.Status)
	}
}

func (s *EncounterService) fromBooking(ctx context.Context, b *Booking, startTime time.Time) *Encounter {
	now := s.clock.Now()
	st := startTime
	bookingID := b.ID
	payment, provider := s.paymentFor(ctx, b.PatientID)

	return &Encounter{
		ID:                  uuid.New(),
		BookingID:           &bookingID,
		PractitionerID:      b.PractitionerID,
		PatientID:           b.PatientID,
		Date:                b.Date,
		ScheduledTime:       b.Time,
		StartTime:           &st,
		PrimaryProcedure:    b.ProcedureCode,
		PerformedProcedures: []string{},
		MaterialsUsed:       []string{},
		EquipmentUsed:       []string{},
		ExamsRequested:      []string{},
		GeneralNotes:        b.Notes,
		Status:              EncounterInProgress,
		PaymentType:         payment,
		InsuranceProvider:   provider,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
}

// paymentFor derives the payment type from the patient's insurance flag.
// A failed lookup falls back to private payment.
func (s *EncounterService) paymentFor(ctx context.Context, patientID uuid.UUID) (PaymentType, *string) {
	return derivePayment(ctx, s.directory, patientID, s.logger)
}

func derivePayment(ctx context.Context, dir directory.Directory, patientID uuid.UUID, logger zerolog.Logger) (PaymentType, *string) {
	p, err := dir.GetPatient(ctx, patientID)
	if err != nil {
		logger.Warn().Err(err).Str("patient_id", patientID.String()).Msg("patient lookup failed, assuming private payment")
		return PaymentPrivate, nil
	}
	if p.HasInsurance {
		return PaymentInsurance, p.InsuranceProvider
	}
	return PaymentPrivate, nil
}

// CreateAdHoc opens an in-progress encounter with no booking, for walk-in
// and emergency visits.
func (s *EncounterService) CreateAdHoc(ctx context.Context, in AdHocInput) (*Encounter, error) {
	performed := cleanList(in.PerformedProcedures)
	if len(performed) == 0 {
		return nil, validationf("performed procedures are required")
	}
	if in.PractitionerID == uuid.Nil || in.PatientID == uuid.Nil {
		return nil, validationf("practitioner_id and patient_id are required")
	}
	if _, err := s.directory.GetPractitioner(ctx, in.PractitionerID); err != nil {
		return nil, translateDirectoryErr(err, "practitioner", in.PractitionerID)
	}
	if _, err := s.directory.GetPatient(ctx, in.PatientID); err != nil {
		return nil, translateDirectoryErr(err, "patient", in.PatientID)
	}

	primary := strings.TrimSpace(in.PrimaryProcedure)
	if primary == "" {
		primary = performed[0]
	}
	payment, provider := s.paymentFor(ctx, in.PatientID)

	now := s.clock.Now()
	start := now
	e := &Encounter{
		ID:                  uuid.New(),
		PractitionerID:      in.PractitionerID,
		PatientID:           in.PatientID,
		Date:                civil.DateOf(now),
		ScheduledTime:       civil.TimeOfDayOf(now),
		StartTime:           &start,
		PrimaryProcedure:    primary,
		PerformedProcedures: performed,
		MaterialsUsed:       []string{},
		EquipmentUsed:       []string{},
		ExamsRequested:      []string{},
		GeneralNotes:        nonEmpty(in.GeneralNotes),
		Status:              EncounterInProgress,
		PaymentType:         payment,
		InsuranceProvider:   provider,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.repo.InsertEncounter(ctx, e); err != nil {
		return nil, fmt.Errorf("create encounter: %w", err)
	}
	s.emit(ctx, events.EncounterStarted, e, map[string]any{"ad_hoc": true})
	return e, nil
}

// Start moves a scheduled encounter to in-progress. Booking-linked
// encounters are normally started through the booking instead.
func (s *EncounterService) Start(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	e, err := s.repo.GetEncounter(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != EncounterScheduled {
		return nil, transitionf("cannot start encounter in status %s", e.Status)
	}
	return s.resume(ctx, e, s.clock.Now())
}

// Complete closes an in-progress encounter and runs the finalization steps.
// The returned error covers the encounter itself; failures of the follow-on
// steps are reported on the Completion.
func (s *EncounterService) Complete(ctx context.Context, id uuid.UUID, in CompleteInput) (*Completion, error) {
	if err := validateCertificate(in.Certificate); err != nil {
		return nil, err
	}

	e, err := s.repo.GetEncounter(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != EncounterInProgress {
		return nil, transitionf("cannot complete encounter in status %s", e.Status)
	}

	performed := cleanList(in.PerformedProcedures)
	if len(performed) == 0 {
		performed = cleanList(e.PerformedProcedures)
	}
	if len(performed) == 0 && e.PrimaryProcedure != "" {
		performed = []string{e.PrimaryProcedure}
	}
	if len(performed) == 0 {
		return nil, validationf("performed procedures are required")
	}

	now := s.clock.Now()
	end, completed := now, now
	e.Status = EncounterCompleted
	e.EndTime = &end
	e.CompletedAt = &completed
	e.UpdatedAt = now
	e.PerformedProcedures = performed
	e.MaterialsUsed = cleanList(in.MaterialsUsed)
	e.EquipmentUsed = cleanList(in.EquipmentUsed)
	e.ExamsRequested = cleanList(in.ExamsRequested)
	if notes := nonEmpty(in.GeneralNotes); notes != nil {
		e.GeneralNotes = notes
	}
	allergies, conditions := cleanList(in.Allergies), cleanList(in.Conditions)
	if in.Allergies != nil {
		e.ReportedAllergies = allergies
	}
	if in.Conditions != nil {
		e.ReportedConditions = conditions
	}
	e.PrescriptionText = nonEmpty(in.PrescriptionText)
	if in.Certificate != nil {
		e.Certificate = copyCertificate(in.Certificate)
	}

	if err := s.repo.UpdateEncounter(ctx, e, EncounterInProgress); err != nil {
		return nil, err
	}
	s.emit(ctx, events.EncounterCompleted, e, map[string]any{
		"performed_procedures": e.PerformedProcedures,
	})

	if s.finalizer == nil {
		return &Completion{Encounter: e}, nil
	}
	return s.finalizer.Finalize(ctx, e, allergies, conditions, in.FollowUp), nil
}

// Cancel ends a scheduled or in-progress encounter and clears its times.
// A linked booking is not touched.
func (s *EncounterService) Cancel(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	e, err := s.repo.GetEncounter(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != EncounterScheduled && e.Status != EncounterInProgress {
		return nil, transitionf("cannot cancel encounter in status %s", e.Status)
	}

	from := e.Status
	e.Status = EncounterCanceled
	e.StartTime = nil
	e.EndTime = nil
	e.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateEncounter(ctx, e, from); err != nil {
		return nil, err
	}
	s.emit(ctx, events.EncounterCanceled, e, map[string]any{"previous_status": string(from)})
	return e, nil
}

// AddPractitionerNote appends a note to a completed encounter.
func (s *EncounterService) AddPractitionerNote(ctx context.Context, id uuid.UUID, text string) (*Encounter, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationf("note text is required")
	}

	e, err := s.repo.GetEncounter(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status != EncounterCompleted {
		return nil, transitionf("notes can only be added to completed encounters, status is %s", e.Status)
	}

	if e.PractitionerNotes != nil && *e.PractitionerNotes != "" {
		text = *e.PractitionerNotes + "\n" + text
	}
	e.PractitionerNotes = &text
	e.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateEncounter(ctx, e, EncounterCompleted); err != nil {
		return nil, err
	}
	return e, nil
}

// AttachCertificate issues a sick-leave certificate on the encounter.
func (s *EncounterService) AttachCertificate(ctx context.Context, id uuid.UUID, icdCode string, daysOff int) (*Encounter, error) {
	icdCode = strings.TrimSpace(icdCode)
	cert := &Certificate{Issued: true, ICDCode: &icdCode, DaysOff: &daysOff}
	if err := validateCertificate(cert); err != nil {
		return nil, err
	}

	e, err := s.repo.GetEncounter(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.Status == EncounterCanceled {
		return nil, transitionf("cannot attach a certificate to a canceled encounter")
	}

	e.Certificate = cert
	e.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateEncounter(ctx, e, e.Status); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *EncounterService) Get(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	s.ensureSeed(ctx)
	return s.repo.GetEncounter(ctx, id)
}

// ListForDay returns the stored encounters of one practitioner and day.
// Projector.DayView adds the bookings that have no encounter yet.
func (s *EncounterService) ListForDay(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]Encounter, error) {
	s.ensureSeed(ctx)
	if !date.Valid() {
		return []Encounter{}, nil
	}
	list, err := s.repo.ListEncountersForDay(ctx, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	return list, nil
}

// ListForPatient returns the patient's encounter history, oldest first.
func (s *EncounterService) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]Encounter, error) {
	s.ensureSeed(ctx)
	list, err := s.repo.ListEncountersForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	return list, nil
}

func (s *EncounterService) ensureSeed(ctx context.Context) {
	if s.seeder == nil {
		return
	}
	if err := s.seeder.EnsureDailySeed(ctx); err != nil {
		s.logger.Error().Err(err).Msg("daily seed check failed")
	}
}

func (s *EncounterService) emit(ctx context.Context, name string, e *Encounter, payload map[string]any) {
	s.logger.Debug().
		Str("encounter_id", e.ID.String()).
		Str("status", string(e.Status)).
		Msg(name)
	s.events.Emit(ctx, events.Event{
		Name:       name,
		EntityType: "encounter",
		EntityID:   e.ID,
		Payload:    payload,
		OccurredAt: s.clock.Now(),
	})
}

func validateCertificate(c *Certificate) error {
	if c == nil || !c.Issued {
		return nil
	}
	if c.ICDCode == nil || strings.TrimSpace(*c.ICDCode) == "" {
		return validationf("certificate requires an ICD code")
	}
	if c.DaysOff == nil || *c.DaysOff < 1 {
		return validationf("certificate requires at least one day off")
	}
	return nil
}

func copyCertificate(c *Certificate) *Certificate {
	out := &Certificate{Issued: c.Issued}
	if c.ICDCode != nil {
		v := strings.TrimSpace(*c.ICDCode)
		out.ICDCode = &v
	}
	if c.DaysOff != nil {
		v := *c.DaysOff
		out.DaysOff = &v
	}
	return out
}

// cleanList trims entries and drops blanks. It never returns nil.
func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
