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
	"github.com/hackgods/clinic-encounter-engine/internal/directory"
)

const defaultFollowUpProcedure = "follow-up"

// FollowUpRequest asks for a new booking for the same patient once the
// encounter is completed. PractitionerID, Date and Time must all be set.
type FollowUpRequest struct {
	PractitionerID uuid.UUID
	Date           civil.Date
	Time           civil.TimeOfDay
	ProcedureCode  string
	Notes          *string
}

// Completion is the outcome of completing an encounter. The encounter itself
// is always completed; each follow-on step succeeds or fails independently
// and is never rolled back.
type Completion struct {
	Encounter *Encounter

	Booking    *Booking
	BookingErr error

	RecordErr error

	FollowUp    *Booking
	FollowUpErr error
}

// Err joins the errors of the follow-on steps, or returns nil.
func (c *Completion) Err() error {
	return errors.Join(c.BookingErr, c.RecordErr, c.FollowUpErr)
}

// Finalizer propagates an encounter completion to the booking, the patient
// record and an optional follow-up booking.
type Finalizer struct {
	bookings *BookingService
	records  directory.RecordStore
	logger   zerolog.Logger
}

func NewFinalizer(bookings *BookingService, records directory.RecordStore, logger zerolog.Logger) *Finalizer {
	return &Finalizer{
		bookings: bookings,
		records:  records,
		logger:   logger.With().Str("component", "finalizer").Logger(),
	}
}

func (f *Finalizer) Finalize(ctx context.Context, e *Encounter, allergies, conditions []string, followUp *FollowUpRequest) *Completion {
	c := &Completion{Encounter: e}
	log := f.logger.With().Str("encounter_id", e.ID.String()).Logger()

	if e.BookingID != nil {
		c.Booking, c.BookingErr = f.bookings.Complete(ctx, *e.BookingID)
		if c.BookingErr != nil {
			log.Error().Err(c.BookingErr).Str("booking_id", e.BookingID.String()).Msg("booking completion failed")
		}
	}

	at := f.completedAt(e)
	if err := f.mergeRecord(ctx, e.PatientID, allergies, conditions, at); err != nil {
		c.RecordErr = err
		log.Error().Err(err).Str("patient_id", e.PatientID.String()).Msg("patient record update failed")
	}

	if followUp != nil {
		c.FollowUp, c.FollowUpErr = f.bookFollowUp(ctx, e, followUp)
		if c.FollowUpErr != nil {
			log.Error().Err(c.FollowUpErr).Msg("follow-up booking failed")
		}
	}
	return c
}

func (f *Finalizer) completedAt(e *Encounter) time.Time {
	if e.CompletedAt != nil {
		return *e.CompletedAt
	}
	return e.UpdatedAt
}

// mergeRecord unions the reported findings into the stored record. Sets are
// written only when supplied and non-empty after the union; the last
// encounter timestamp is always written.
func (f *Finalizer) mergeRecord(ctx context.Context, patientID uuid.UUID, allergies, conditions []string, at time.Time) error {
	var newAllergies, newConditions []string

	if len(allergies) > 0 || len(conditions) > 0 {
		rec, err := f.records.GetRecord(ctx, patientID)
		if err != nil && !errors.Is(err, directory.ErrRecordNotFound) {
			return fmt.Errorf("load patient record: %w", err)
		}
		if rec == nil {
			rec = &directory.PatientRecord{PatientID: patientID}
		}
		if len(allergies) > 0 {
			if merged := mergeFindings(rec.Allergies, allergies); len(merged) > 0 {
				newAllergies = merged
			}
		}
		if len(conditions) > 0 {
			if merged := mergeFindings(rec.MedicalConditions, conditions); len(merged) > 0 {
				newConditions = merged
			}
		}
	}

	if err := f.records.MergeClinicalFindings(ctx, patientID, newAllergies, newConditions, at); err != nil {
		return fmt.Errorf("merge clinical findings: %w", err)
	}
	return nil
}

func (f *Finalizer) bookFollowUp(ctx context.Context, e *Encounter, req *FollowUpRequest) (*Booking, error) {
	if req.PractitionerID == uuid.Nil || req.Date == "" || req.Time == "" {
		return nil, validationf("follow-up requires practitioner, date and time")
	}
	code := req.ProcedureCode
	if code == "" {
		code = defaultFollowUpProcedure
	}
	return f.bookings.Create(ctx, CreateBookingInput{
		PractitionerID: req.PractitionerID,
		PatientID:      e.PatientID,
		Date:           req.Date,
		Time:           req.Time,
		ProcedureCode:  code,
		Notes:          req.Notes,
	})
}

// mergeFindings returns existing followed by the values of incoming it does
// not already contain. Values are trimmed and compared exactly; blank values
// are dropped.
func mergeFindings(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
