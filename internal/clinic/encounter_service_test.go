package clinic

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-encounter-engine/internal/events"
)

func TestEnsureForBookingIsIdempotent(t *testing.T) {
	f := newFixture(t)
	b, first := f.start(t, monday, "09:00")

	f.clock.Advance(5 * time.Minute)
	again, err := f.encounters.EnsureForBooking(f.ctx, b.ID, f.clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != first.ID {
		t.Errorf("got encounter %s, want existing %s", again.ID, first.ID)
	}
	if !again.StartTime.Equal(*first.StartTime) {
		t.Error("start time of a running encounter must not move")
	}
	if n := f.activeEncountersFor(t, b.ID); n != 1 {
		t.Errorf("active encounters = %d, want 1", n)
	}
}

func TestEnsureForBookingStartsScheduledEncounter(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, monday, "09:30")
	scheduled := f.scheduledFor(t, b)

	f.clock.Set(time.Date(2026, 10, 19, 9, 31, 0, 0, time.UTC))
	_, enc, err := f.bookings.Start(f.ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if enc.ID != scheduled.ID {
		t.Errorf("started %s, want existing scheduled %s", enc.ID, scheduled.ID)
	}
	if enc.Status != EncounterInProgress || enc.StartTime == nil || !enc.StartTime.Equal(f.clock.Now()) {
		t.Errorf("encounter = status %s start %v", enc.Status, enc.StartTime)
	}
	if n := f.activeEncountersFor(t, b.ID); n != 1 {
		t.Errorf("active encounters = %d, want 1", n)
	}
}

func TestEnsureForBookingAfterCanceledEncounter(t *testing.T) {
	f := newFixture(t)
	b, first := f.start(t, monday, "09:00")
	if _, err := f.encounters.Cancel(f.ctx, first.ID); err != nil {
		t.Fatal(err)
	}

	second, err := f.encounters.EnsureForBooking(f.ctx, b.ID, f.clock.Now())
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID {
		t.Error("a canceled encounter must not be reused")
	}
	if n := f.activeEncountersFor(t, b.ID); n != 1 {
		t.Errorf("active encounters = %d, want 1", n)
	}
}

func TestEnsureForBookingRequiresStartedBooking(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, monday, "09:00")

	if _, err := f.encounters.EnsureForBooking(f.ctx, b.ID, f.clock.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if _, err := f.encounters.EnsureForBooking(f.ctx, uuid.New(), f.clock.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown booking err = %v", err)
	}
}

func TestEnsureForBookingRejectsCompletedEncounter(t *testing.T) {
	f := newFixture(t)
	b, enc := f.start(t, monday, "09:00")
	if _, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{}); err != nil {
		t.Fatal(err)
	}
	// put the booking back in progress to reach the encounter check
	if _, err := f.repo.UpdateBookingStatus(f.ctx, b.ID, BookingCompleted, BookingInProgress, f.clock.Now()); err != nil {
		t.Fatal(err)
	}
	if _, err := f.encounters.EnsureForBooking(f.ctx, b.ID, f.clock.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestPaymentTypeFollowsInsurance(t *testing.T) {
	f := newFixture(t)
	b, err := f.bookings.Create(f.ctx, CreateBookingInput{
		PractitionerID: f.practitioner,
		PatientID:      f.insured,
		Date:           monday,
		Time:           "10:00",
		ProcedureCode:  "checkup",
	})
	if err != nil {
		t.Fatal(err)
	}
	_, enc, err := f.bookings.Start(f.ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if enc.PaymentType != PaymentInsurance || enc.InsuranceProvider == nil || *enc.InsuranceProvider != "Acme Health" {
		t.Errorf("payment = %s provider %v", enc.PaymentType, enc.InsuranceProvider)
	}

	_, uninsured := f.start(t, monday, "10:30")
	if uninsured.PaymentType != PaymentPrivate || uninsured.InsuranceProvider != nil {
		t.Errorf("payment = %s provider %v", uninsured.PaymentType, uninsured.InsuranceProvider)
	}
}

func TestCreateAdHoc(t *testing.T) {
	f := newFixture(t)

	if _, err := f.encounters.CreateAdHoc(f.ctx, AdHocInput{
		PractitionerID:      f.practitioner,
		PatientID:           f.patient,
		PerformedProcedures: []string{" ", ""},
	}); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}

	if _, err := f.encounters.CreateAdHoc(f.ctx, AdHocInput{
		PractitionerID:      f.practitioner,
		PatientID:           uuid.New(),
		PerformedProcedures: []string{"emergency-visit"},
	}); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown patient err = %v", err)
	}

	f.clock.Set(time.Date(2026, 10, 19, 14, 7, 0, 0, time.UTC))
	e, err := f.encounters.CreateAdHoc(f.ctx, AdHocInput{
		PractitionerID:      f.practitioner,
		PatientID:           f.insured,
		PerformedProcedures: []string{"emergency-visit", "wound-dressing"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if e.BookingID != nil {
		t.Error("ad hoc encounter must not reference a booking")
	}
	if e.Status != EncounterInProgress || e.StartTime == nil || !e.StartTime.Equal(f.clock.Now()) {
		t.Errorf("status %s start %v", e.Status, e.StartTime)
	}
	if e.PrimaryProcedure != "emergency-visit" || e.Date != monday || e.ScheduledTime != "14:07" {
		t.Errorf("encounter = %+v", e)
	}
	if e.PaymentType != PaymentInsurance {
		t.Errorf("payment = %s", e.PaymentType)
	}
}

func TestCompleteEncounterCompletesBooking(t *testing.T) {
	f := newFixture(t)
	b, enc := f.start(t, monday, "09:00")
	f.clock.Advance(95 * time.Minute)

	c, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{
		PerformedProcedures: []string{"consultation", "ecg"},
		MaterialsUsed:       []string{"gloves"},
		ExamsRequested:      []string{"cbc"},
		PrescriptionText:    strPtr("ibuprofen 400mg"),
		Certificate:         &Certificate{Issued: true, ICDCode: strPtr("J06.9"), DaysOff: intPtr(2)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Err(); err != nil {
		t.Fatalf("side effects failed: %v", err)
	}

	e := c.Encounter
	now := f.clock.Now()
	if e.Status != EncounterCompleted {
		t.Errorf("status = %s", e.Status)
	}
	if e.EndTime == nil || !e.EndTime.Equal(now) || e.CompletedAt == nil || !e.CompletedAt.Equal(now) {
		t.Errorf("end %v completed %v, want %v", e.EndTime, e.CompletedAt, now)
	}
	if len(e.PerformedProcedures) != 2 || e.Certificate == nil || *e.Certificate.DaysOff != 2 {
		t.Errorf("clinical fields not stored: %+v", e)
	}

	stored, _ := f.bookings.Get(f.ctx, b.ID)
	if stored.Status != BookingCompleted {
		t.Errorf("booking status = %s", stored.Status)
	}
	if c.Booking == nil || c.Booking.Status != BookingCompleted {
		t.Errorf("completion booking = %+v", c.Booking)
	}
	if !containsName(f.events.Names(), events.EncounterCompleted) || !containsName(f.events.Names(), events.BookingCompleted) {
		t.Errorf("events = %v", f.events.Names())
	}
}

func TestCompleteFallsBackToPrimaryProcedure(t *testing.T) {
	f := newFixture(t)
	_, enc := f.start(t, monday, "09:00")

	c, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{})
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Encounter.PerformedProcedures; len(got) != 1 || got[0] != "consultation" {
		t.Errorf("performed = %v", got)
	}
}

func TestCompleteRequiresInProgress(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, monday, "09:00")
	scheduled := f.scheduledFor(t, b)

	if _, err := f.encounters.Complete(f.ctx, scheduled.ID, CompleteInput{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("complete scheduled err = %v", err)
	}

	_, enc := f.start(t, monday, "10:00")
	if _, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("complete twice err = %v", err)
	}
}

func TestCompleteRejectsInvalidCertificate(t *testing.T) {
	f := newFixture(t)
	b, enc := f.start(t, monday, "09:00")

	_, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{
		Certificate: &Certificate{Issued: true, ICDCode: strPtr("J06.9"), DaysOff: intPtr(0)},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	stored, _ := f.repo.GetEncounter(f.ctx, enc.ID)
	if stored.Status != EncounterInProgress {
		t.Errorf("encounter status = %s, want unchanged", stored.Status)
	}
	sb, _ := f.bookings.Get(f.ctx, b.ID)
	if sb.Status != BookingInProgress {
		t.Errorf("booking status = %s, want unchanged", sb.Status)
	}
}

func TestCancelScheduledEncounterLeavesBooking(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, monday, "09:00")
	scheduled := f.scheduledFor(t, b)

	e, err := f.encounters.Cancel(f.ctx, scheduled.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != EncounterCanceled || e.StartTime != nil || e.EndTime != nil {
		t.Errorf("encounter = status %s start %v end %v", e.Status, e.StartTime, e.EndTime)
	}

	stored, _ := f.bookings.Get(f.ctx, b.ID)
	if stored.Status != BookingBooked {
		t.Errorf("booking status = %s, want booked", stored.Status)
	}
}

func TestCancelInProgressEncounterClearsTimes(t *testing.T) {
	f := newFixture(t)
	_, enc := f.start(t, monday, "09:00")

	e, err := f.encounters.Cancel(f.ctx, enc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != EncounterCanceled || e.StartTime != nil || e.EndTime != nil {
		t.Errorf("encounter = status %s start %v end %v", e.Status, e.StartTime, e.EndTime)
	}
	stored, _ := f.repo.GetEncounter(f.ctx, enc.ID)
	if stored.StartTime != nil {
		t.Error("stored start time should be cleared")
	}

	if _, err := f.encounters.Cancel(f.ctx, enc.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("cancel twice err = %v", err)
	}
}

func TestStartEncounter(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, monday, "09:00")
	scheduled := f.scheduledFor(t, b)

	e, err := f.encounters.Start(f.ctx, scheduled.ID)
	if err != nil {
		t.Fatal(err)
	}
	if e.Status != EncounterInProgress || e.StartTime == nil {
		t.Errorf("status %s start %v", e.Status, e.StartTime)
	}
	if _, err := f.encounters.Start(f.ctx, scheduled.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("start twice err = %v", err)
	}
}

func TestAddPractitionerNote(t *testing.T) {
	f := newFixture(t)
	_, enc := f.start(t, monday, "09:00")

	if _, err := f.encounters.AddPractitionerNote(f.ctx, enc.ID, "too early"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("note on in-progress err = %v", err)
	}
	if _, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{}); err != nil {
		t.Fatal(err)
	}

	if _, err := f.encounters.AddPractitionerNote(f.ctx, enc.ID, "  "); !errors.Is(err, ErrValidation) {
		t.Errorf("blank note err = %v", err)
	}
	if _, err := f.encounters.AddPractitionerNote(f.ctx, enc.ID, "patient called back"); err != nil {
		t.Fatal(err)
	}
	e, err := f.encounters.AddPractitionerNote(f.ctx, enc.ID, "symptoms resolved")
	if err != nil {
		t.Fatal(err)
	}
	if e.PractitionerNotes == nil || *e.PractitionerNotes != "patient called back\nsymptoms resolved" {
		t.Errorf("notes = %v", e.PractitionerNotes)
	}
}

func TestAttachCertificate(t *testing.T) {
	f := newFixture(t)
	_, enc := f.start(t, monday, "09:00")

	tests := []struct {
		name    string
		icd     string
		daysOff int
	}{
		{"empty code and no days", "", 0},
		{"empty code", "  ", 3},
		{"no days", "J06.9", 0},
		{"negative days", "J06.9", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.encounters.AttachCertificate(f.ctx, enc.ID, tt.icd, tt.daysOff); !errors.Is(err, ErrValidation) {
				t.Errorf("err = %v, want ErrValidation", err)
			}
			stored, _ := f.repo.GetEncounter(f.ctx, enc.ID)
			if stored.Certificate != nil {
				t.Error("no certificate should be attached")
			}
		})
	}

	e, err := f.encounters.AttachCertificate(f.ctx, enc.ID, "J06.9", 3)
	if err != nil {
		t.Fatal(err)
	}
	if e.Certificate == nil || !e.Certificate.Issued || *e.Certificate.ICDCode != "J06.9" || *e.Certificate.DaysOff != 3 {
		t.Errorf("certificate = %+v", e.Certificate)
	}

	if _, err := f.encounters.Cancel(f.ctx, enc.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.encounters.AttachCertificate(f.ctx, enc.ID, "J06.9", 1); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("canceled err = %v", err)
	}
}

func TestEncounterReadsRunSeedFirst(t *testing.T) {
	f := newFixture(t)

	list, err := f.encounters.ListForPatient(f.ctx, f.demoPatient)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || !list[0].Seed || !list[0].IsLiveSeed(monday) {
		t.Fatalf("patient history = %+v, want the seed encounter", list)
	}

	got, err := f.encounters.Get(f.ctx, list[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.PractitionerID != f.demoDoc {
		t.Errorf("seed practitioner = %s", got.PractitionerID)
	}
	if _, err := f.encounters.Get(f.ctx, uuid.New()); !errors.Is(err, ErrEncounterNotFound) {
		t.Errorf("unknown encounter err = %v", err)
	}
}
