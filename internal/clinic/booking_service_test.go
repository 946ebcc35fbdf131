package clinic

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-encounter-engine/internal/events"
)

func TestCreateBookingDerivesDuration(t *testing.T) {
	f := newFixture(t)
	b, err := f.bookings.Create(f.ctx, CreateBookingInput{
		PractitionerID: f.practitioner,
		PatientID:      f.patient,
		Date:           monday,
		Time:           "11:00",
		ProcedureCode:  "follow-up",
		Notes:          strPtr("  "),
	})
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != BookingBooked {
		t.Errorf("status = %s", b.Status)
	}
	if b.DurationMinutes != 20 {
		t.Errorf("duration = %d, want 20", b.DurationMinutes)
	}
	if b.Notes != nil {
		t.Errorf("blank notes should be dropped, got %q", *b.Notes)
	}
	if !b.CreatedAt.Equal(mondayMorning) {
		t.Errorf("created_at = %v", b.CreatedAt)
	}
	if got := f.events.Names(); len(got) != 1 || got[0] != events.BookingCreated {
		t.Errorf("events = %v", got)
	}
}

func TestCreateBookingRejects(t *testing.T) {
	f := newFixture(t)
	f.book(t, monday, "09:00")

	tests := []struct {
		name string
		in   CreateBookingInput
		want error
	}{
		{"slot taken", CreateBookingInput{PractitionerID: f.practitioner, PatientID: f.insured, Date: monday, Time: "09:00", ProcedureCode: "consultation"}, ErrSlotUnavailable},
		{"off schedule", CreateBookingInput{PractitionerID: f.practitioner, PatientID: f.patient, Date: monday, Time: "09:15", ProcedureCode: "consultation"}, ErrSlotUnavailable},
		{"day off", CreateBookingInput{PractitionerID: f.practitioner, PatientID: f.patient, Date: sunday, Time: "09:00", ProcedureCode: "consultation"}, ErrSlotUnavailable},
		{"unknown procedure", CreateBookingInput{PractitionerID: f.practitioner, PatientID: f.patient, Date: monday, Time: "10:00", ProcedureCode: "teleportation"}, ErrValidation},
		{"malformed date", CreateBookingInput{PractitionerID: f.practitioner, PatientID: f.patient, Date: "2026-13-01", Time: "10:00", ProcedureCode: "consultation"}, ErrValidation},
		{"malformed time", CreateBookingInput{PractitionerID: f.practitioner, PatientID: f.patient, Date: monday, Time: "25:00", ProcedureCode: "consultation"}, ErrValidation},
		{"unpadded time", CreateBookingInput{PractitionerID: f.practitioner, PatientID: f.patient, Date: monday, Time: "9:00", ProcedureCode: "consultation"}, ErrValidation},
		{"missing patient id", CreateBookingInput{PractitionerID: f.practitioner, Date: monday, Time: "10:00", ProcedureCode: "consultation"}, ErrValidation},
		{"unknown patient", CreateBookingInput{PractitionerID: f.practitioner, PatientID: uuid.New(), Date: monday, Time: "10:00", ProcedureCode: "consultation"}, ErrNotFound},
		{"unknown practitioner", CreateBookingInput{PractitionerID: uuid.New(), PatientID: f.patient, Date: monday, Time: "10:00", ProcedureCode: "consultation"}, ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.bookings.Create(f.ctx, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	list, err := f.bookings.ListForDay(f.ctx, f.practitioner, monday)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("rejected creates must not write, have %d bookings", len(list))
	}
}

func TestConcurrentCreateBooksSlotOnce(t *testing.T) {
	f := newFixture(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.bookings.Create(f.ctx, CreateBookingInput{
				PractitionerID: f.practitioner,
				PatientID:      f.patient,
				Date:           monday,
				Time:           "10:30",
				ProcedureCode:  "consultation",
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrSlotUnavailable) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("%d creates succeeded, want 1", succeeded)
	}
}

func TestStartBookingCreatesInProgressEncounter(t *testing.T) {
	f := newFixture(t)
	b := f.book(t, monday, "09:00")
	f.clock.Set(time.Date(2026, 10, 19, 9, 2, 0, 0, time.UTC))

	started, enc, err := f.bookings.Start(f.ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if started.Status != BookingInProgress {
		t.Errorf("booking status = %s", started.Status)
	}
	if enc.Status != EncounterInProgress {
		t.Errorf("encounter status = %s", enc.Status)
	}
	if enc.StartTime == nil || !enc.StartTime.Equal(f.clock.Now()) {
		t.Errorf("start_time = %v, want %v", enc.StartTime, f.clock.Now())
	}
	if enc.BookingID == nil || *enc.BookingID != b.ID {
		t.Errorf("booking_id = %v", enc.BookingID)
	}
	if enc.PrimaryProcedure != "consultation" || enc.ScheduledTime != "09:00" || enc.Date != monday {
		t.Errorf("fields not copied from booking: %+v", enc)
	}
	if !enc.Persisted {
		t.Error("started encounter must be persisted")
	}

	stored, err := f.bookings.Get(f.ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != BookingInProgress {
		t.Errorf("stored booking status = %s", stored.Status)
	}

	names := f.events.Names()
	if !containsName(names, events.BookingStarted) || !containsName(names, events.EncounterStarted) {
		t.Errorf("events = %v", names)
	}
}

func TestStartBookingTwiceFails(t *testing.T) {
	f := newFixture(t)
	b, _ := f.start(t, monday, "09:00")

	if _, _, err := f.bookings.Start(f.ctx, b.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
	if n := f.activeEncountersFor(t, b.ID); n != 1 {
		t.Errorf("active encounters = %d, want 1", n)
	}
}

func TestBookingTransitions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, f *fixture) *Booking
		act     func(f *fixture, id uuid.UUID) (*Booking, error)
		want    BookingStatus
		wantErr error
	}{
		{
			name:    "cancel booked",
			prepare: func(t *testing.T, f *fixture) *Booking { return f.book(t, monday, "09:00") },
			act:     func(f *fixture, id uuid.UUID) (*Booking, error) { return f.bookings.Cancel(f.ctx, id) },
			want:    BookingCanceled,
		},
		{
			name: "cancel in progress",
			prepare: func(t *testing.T, f *fixture) *Booking {
				b, _ := f.start(t, monday, "09:00")
				return b
			},
			act:  func(f *fixture, id uuid.UUID) (*Booking, error) { return f.bookings.Cancel(f.ctx, id) },
			want: BookingCanceled,
		},
		{
			name: "cancel canceled",
			prepare: func(t *testing.T, f *fixture) *Booking {
				b := f.book(t, monday, "09:00")
				b, _ = f.bookings.Cancel(f.ctx, b.ID)
				return b
			},
			act:     func(f *fixture, id uuid.UUID) (*Booking, error) { return f.bookings.Cancel(f.ctx, id) },
			want:    BookingCanceled,
			wantErr: ErrInvalidTransition,
		},
		{
			name: "cancel completed",
			prepare: func(t *testing.T, f *fixture) *Booking {
				b, _ := f.start(t, monday, "09:00")
				b, _ = f.bookings.Complete(f.ctx, b.ID)
				return b
			},
			act:     func(f *fixture, id uuid.UUID) (*Booking, error) { return f.bookings.Cancel(f.ctx, id) },
			want:    BookingCompleted,
			wantErr: ErrInvalidTransition,
		},
		{
			name:    "complete booked",
			prepare: func(t *testing.T, f *fixture) *Booking { return f.book(t, monday, "09:00") },
			act:     func(f *fixture, id uuid.UUID) (*Booking, error) { return f.bookings.Complete(f.ctx, id) },
			want:    BookingBooked,
			wantErr: ErrInvalidTransition,
		},
		{
			name: "start canceled",
			prepare: func(t *testing.T, f *fixture) *Booking {
				b := f.book(t, monday, "09:00")
				b, _ = f.bookings.Cancel(f.ctx, b.ID)
				return b
			},
			act: func(f *fixture, id uuid.UUID) (*Booking, error) {
				b, _, err := f.bookings.Start(f.ctx, id)
				return b, err
			},
			want:    BookingCanceled,
			wantErr: ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			b := tt.prepare(t, f)

			_, err := tt.act(f, b.ID)
			if tt.wantErr == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}

			stored, err := f.bookings.Get(f.ctx, b.ID)
			if err != nil {
				t.Fatal(err)
			}
			if stored.Status != tt.want {
				t.Errorf("status = %s, want %s", stored.Status, tt.want)
			}
		})
	}
}

func TestCancelBookingLeavesEncounterAlone(t *testing.T) {
	f := newFixture(t)
	b, enc := f.start(t, monday, "09:00")

	emitted := len(f.events.Names())

	canceled, err := f.bookings.Cancel(f.ctx, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if canceled.Status != BookingCanceled {
		t.Errorf("booking status = %s", canceled.Status)
	}
	if got := f.events.Names()[emitted:]; len(got) != 1 || got[0] != events.BookingCanceled {
		t.Errorf("events = %v, want [%s]", got, events.BookingCanceled)
	}
	stored, err := f.repo.GetEncounter(f.ctx, enc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != EncounterInProgress {
		t.Errorf("encounter status = %s, want unchanged", stored.Status)
	}
}

func TestGetUnknownBooking(t *testing.T) {
	f := newFixture(t)
	if _, err := f.bookings.Get(f.ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v", err)
	}
	if _, err := f.bookings.Cancel(f.ctx, uuid.New()); !errors.Is(err, ErrBookingNotFound) {
		t.Errorf("cancel err = %v", err)
	}
}

func TestReschedule(t *testing.T) {
	f := newFixture(t)
	old := f.book(t, monday, "09:00")

	moved, err := f.bookings.Reschedule(f.ctx, old.ID, tuesday, "10:00")
	if err != nil {
		t.Fatal(err)
	}
	if moved.ID == old.ID || moved.Date != tuesday || moved.Time != "10:00" || moved.Status != BookingBooked {
		t.Errorf("moved = %+v", moved)
	}
	if moved.PatientID != old.PatientID || moved.ProcedureCode != old.ProcedureCode {
		t.Error("reschedule must keep patient and procedure")
	}

	stored, _ := f.bookings.Get(f.ctx, old.ID)
	if stored.Status != BookingCanceled {
		t.Errorf("old booking status = %s", stored.Status)
	}
	ok, _ := f.resolver.IsAvailable(f.ctx, f.practitioner, monday, "09:00")
	if !ok {
		t.Error("old slot should be free again")
	}
}

func TestRescheduleFailureKeepsOldCanceled(t *testing.T) {
	f := newFixture(t)
	old := f.book(t, monday, "09:00")
	f.book(t, tuesday, "10:00")

	_, err := f.bookings.Reschedule(f.ctx, old.ID, tuesday, "10:00")
	var rerr *RescheduleError
	if !errors.As(err, &rerr) {
		t.Fatalf("err = %v, want *RescheduleError", err)
	}
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Errorf("err should wrap ErrSlotUnavailable: %v", err)
	}
	if rerr.Canceled.ID != old.ID || rerr.Canceled.Status != BookingCanceled {
		t.Errorf("canceled = %+v", rerr.Canceled)
	}

	// the caller can compensate by re-booking the original slot
	if _, err := f.bookings.Create(f.ctx, CreateBookingInput{
		PractitionerID: old.PractitionerID,
		PatientID:      old.PatientID,
		Date:           old.Date,
		Time:           old.Time,
		ProcedureCode:  old.ProcedureCode,
	}); err != nil {
		t.Errorf("re-book original slot: %v", err)
	}
}

func TestListBookingsForPatient(t *testing.T) {
	f := newFixture(t)
	f.book(t, tuesday, "09:00")
	f.book(t, monday, "11:00")
	f.book(t, monday, "09:30")

	list, err := f.bookings.ListForPatient(f.ctx, f.patient)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("len = %d", len(list))
	}
	if list[0].Time != "09:30" || list[1].Time != "11:00" || list[2].Date != tuesday {
		t.Errorf("unexpected order: %v %v %v", list[0].Time, list[1].Time, list[2].Date)
	}

	if _, err := f.bookings.ListForDay(f.ctx, f.practitioner, "nope"); !errors.Is(err, ErrValidation) {
		t.Errorf("ListForDay malformed date err = %v", err)
	}
}
