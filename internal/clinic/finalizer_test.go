package clinic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-encounter-engine/internal/directory"
)

func TestMergeFindings(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		incoming []string
		want     []string
	}{
		{"adds new", []string{"latex"}, []string{"penicillin"}, []string{"latex", "penicillin"}},
		{"already present", []string{"penicillin", "latex"}, []string{"penicillin"}, []string{"penicillin", "latex"}},
		{"case sensitive", []string{"Latex"}, []string{"latex"}, []string{"Latex", "latex"}},
		{"dedupes incoming", nil, []string{"asthma", "asthma", ""}, []string{"asthma"}},
		{"trims padding", []string{"penicillin"}, []string{" penicillin ", "   ", " latex"}, []string{"penicillin", "latex"}},
		{"both empty", nil, nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeFindings(tt.existing, tt.incoming)
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestCompleteMergesAllergies(t *testing.T) {
	f := newFixture(t)
	f.dir.PutRecord(directory.PatientRecord{PatientID: f.patient, Allergies: []string{"latex"}})
	_, enc := f.start(t, monday, "09:00")

	c, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{Allergies: []string{"penicillin"}})
	if err != nil {
		t.Fatal(err)
	}
	if c.RecordErr != nil {
		t.Fatal(c.RecordErr)
	}

	rec, err := f.dir.GetRecord(f.ctx, f.patient)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Allergies) != 2 || rec.Allergies[0] != "latex" || rec.Allergies[1] != "penicillin" {
		t.Errorf("allergies = %v", rec.Allergies)
	}
	if rec.LastEncounterAt == nil || !rec.LastEncounterAt.Equal(*c.Encounter.CompletedAt) {
		t.Errorf("last_encounter_at = %v", rec.LastEncounterAt)
	}
}

func TestCompleteStoresTrimmedFindings(t *testing.T) {
	f := newFixture(t)
	_, enc := f.start(t, monday, "09:00")

	c, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{
		Allergies:  []string{" penicillin ", "   "},
		Conditions: []string{"asthma\t"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Encounter.ReportedAllergies) != 1 || c.Encounter.ReportedAllergies[0] != "penicillin" {
		t.Errorf("reported allergies = %q", c.Encounter.ReportedAllergies)
	}

	rec, err := f.dir.GetRecord(f.ctx, f.patient)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Allergies) != 1 || rec.Allergies[0] != "penicillin" {
		t.Errorf("record allergies = %q, want [penicillin]", rec.Allergies)
	}
	if len(rec.MedicalConditions) != 1 || rec.MedicalConditions[0] != "asthma" {
		t.Errorf("record conditions = %q, want [asthma]", rec.MedicalConditions)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.dir.PutRecord(directory.PatientRecord{
		PatientID:         f.patient,
		Allergies:         []string{"penicillin", "latex"},
		MedicalConditions: []string{"asthma"},
	})
	_, enc := f.start(t, monday, "09:00")

	if _, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{Allergies: []string{"penicillin"}}); err != nil {
		t.Fatal(err)
	}
	rec, _ := f.dir.GetRecord(f.ctx, f.patient)
	if len(rec.Allergies) != 2 {
		t.Errorf("allergies = %v, want unchanged", rec.Allergies)
	}
	if len(rec.MedicalConditions) != 1 || rec.MedicalConditions[0] != "asthma" {
		t.Errorf("conditions = %v, want untouched", rec.MedicalConditions)
	}
}

func TestCompleteWithoutFindingsStampsLastEncounter(t *testing.T) {
	f := newFixture(t)
	_, enc := f.start(t, monday, "09:00")
	f.clock.Advance(time.Hour)

	if _, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{}); err != nil {
		t.Fatal(err)
	}
	rec, err := f.dir.GetRecord(f.ctx, f.patient)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Allergies) != 0 || len(rec.MedicalConditions) != 0 {
		t.Errorf("record = %+v", rec)
	}
	if rec.LastEncounterAt == nil || !rec.LastEncounterAt.Equal(f.clock.Now()) {
		t.Errorf("last_encounter_at = %v", rec.LastEncounterAt)
	}
}

func TestFollowUpBooking(t *testing.T) {
	f := newFixture(t)
	_, enc := f.start(t, monday, "09:00")

	c, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{
		FollowUp: &FollowUpRequest{PractitionerID: f.practitioner, Date: tuesday, Time: "11:00"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.FollowUpErr != nil {
		t.Fatal(c.FollowUpErr)
	}
	if c.FollowUp == nil || c.FollowUp.PatientID != f.patient || c.FollowUp.ProcedureCode != "follow-up" || c.FollowUp.DurationMinutes != 20 {
		t.Errorf("follow-up = %+v", c.FollowUp)
	}
}

func TestFollowUpFailureDoesNotUndoCompletion(t *testing.T) {
	f := newFixture(t)
	b, enc := f.start(t, monday, "09:00")
	f.book(t, tuesday, "11:00")

	c, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{
		FollowUp: &FollowUpRequest{PractitionerID: f.practitioner, Date: tuesday, Time: "11:00"},
	})
	if err != nil {
		t.Fatalf("completion itself must succeed: %v", err)
	}
	if !errors.Is(c.FollowUpErr, ErrSlotUnavailable) {
		t.Errorf("follow-up err = %v", c.FollowUpErr)
	}
	if !errors.Is(c.Err(), ErrSlotUnavailable) {
		t.Errorf("Err() = %v", c.Err())
	}

	stored, _ := f.repo.GetEncounter(f.ctx, enc.ID)
	if stored.Status != EncounterCompleted {
		t.Errorf("encounter status = %s", stored.Status)
	}
	sb, _ := f.bookings.Get(f.ctx, b.ID)
	if sb.Status != BookingCompleted {
		t.Errorf("booking status = %s", sb.Status)
	}
}

func TestBookingPropagationFailureIsReported(t *testing.T) {
	f := newFixture(t)
	b, enc := f.start(t, monday, "09:00")
	if _, err := f.bookings.Cancel(f.ctx, b.ID); err != nil {
		t.Fatal(err)
	}

	c, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{})
	if err != nil {
		t.Fatal(err)
	}
	if c.Encounter.Status != EncounterCompleted {
		t.Errorf("encounter status = %s", c.Encounter.Status)
	}
	if !errors.Is(c.BookingErr, ErrInvalidTransition) {
		t.Errorf("booking err = %v", c.BookingErr)
	}
}

func TestAdHocCompletionSkipsBooking(t *testing.T) {
	f := newFixture(t)
	e, err := f.encounters.CreateAdHoc(f.ctx, AdHocInput{
		PractitionerID:      f.practitioner,
		PatientID:           f.patient,
		PerformedProcedures: []string{"emergency-visit"},
	})
	if err != nil {
		t.Fatal(err)
	}
	c, err := f.encounters.Complete(f.ctx, e.ID, CompleteInput{Conditions: []string{"hypertension"}})
	if err != nil {
		t.Fatal(err)
	}
	if c.Booking != nil || c.Err() != nil {
		t.Errorf("completion = %+v", c)
	}
	rec, _ := f.dir.GetRecord(f.ctx, f.patient)
	if len(rec.MedicalConditions) != 1 {
		t.Errorf("conditions = %v", rec.MedicalConditions)
	}
}

type failingRecords struct{}

func (failingRecords) GetRecord(context.Context, uuid.UUID) (*directory.PatientRecord, error) {
	return nil, errors.New("records unavailable")
}

func (failingRecords) MergeClinicalFindings(context.Context, uuid.UUID, []string, []string, time.Time) error {
	return errors.New("records unavailable")
}

func TestRecordFailureIsReported(t *testing.T) {
	f := newFixture(t)
	f.encounters.SetFinalizer(NewFinalizer(f.bookings, failingRecords{}, zerolog.Nop()))
	b, enc := f.start(t, monday, "09:00")

	c, err := f.encounters.Complete(f.ctx, enc.ID, CompleteInput{Allergies: []string{"latex"}})
	if err != nil {
		t.Fatal(err)
	}
	if c.RecordErr == nil {
		t.Error("expected record error")
	}
	sb, _ := f.bookings.Get(f.ctx, b.ID)
	if sb.Status != BookingCompleted {
		t.Errorf("booking status = %s, record failure must not block it", sb.Status)
	}
}
