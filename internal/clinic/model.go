package clinic

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
)

type BookingStatus string

const (
	BookingBooked     BookingStatus = "booked"
	BookingInProgress BookingStatus = "in-progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCanceled   BookingStatus = "canceled"
)

type EncounterStatus string

const (
	EncounterScheduled  EncounterStatus = "scheduled"
	EncounterInProgress EncounterStatus = "in-progress"
	EncounterCompleted  EncounterStatus = "completed"
	EncounterCanceled   EncounterStatus = "canceled"
)

type PaymentType string

const (
	PaymentInsurance PaymentType = "insurance"
	PaymentPrivate   PaymentType = "private"
)

// Booking reserves one schedule slot. DurationMinutes comes from the
// procedure table at creation and is never changed.
type Booking struct {
	ID              uuid.UUID       `json:"id"`
	PractitionerID  uuid.UUID       `json:"practitioner_id"`
	PatientID       uuid.UUID       `json:"patient_id"`
	Date            civil.Date      `json:"date"`
	Time            civil.TimeOfDay `json:"time"`
	ProcedureCode   string          `json:"procedure_code"`
	DurationMinutes int             `json:"duration_minutes"`
	Status          BookingStatus   `json:"status"`
	Notes           *string         `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Occupies reports whether the booking still holds its slot.
func (b *Booking) Occupies() bool {
	return b.Status != BookingCanceled
}

type Certificate struct {
	Issued  bool    `json:"issued"`
	ICDCode *string `json:"icd_code,omitempty"`
	DaysOff *int    `json:"days_off,omitempty"`
}

// Encounter is the clinical record of a visit. BookingID is nil for ad hoc
// and seed encounters. Persisted is false only for encounters projected from
// bookings for display; those are never written.
type Encounter struct {
	ID                  uuid.UUID       `json:"id"`
	BookingID           *uuid.UUID      `json:"booking_id,omitempty"`
	PractitionerID      uuid.UUID       `json:"practitioner_id"`
	PatientID           uuid.UUID       `json:"patient_id"`
	Date                civil.Date      `json:"date"`
	ScheduledTime       civil.TimeOfDay `json:"scheduled_time"`
	StartTime           *time.Time      `json:"start_time,omitempty"`
	EndTime             *time.Time      `json:"end_time,omitempty"`
	PrimaryProcedure    string          `json:"primary_procedure"`
	PerformedProcedures []string        `json:"performed_procedures"`
	MaterialsUsed       []string        `json:"materials_used"`
	EquipmentUsed       []string        `json:"equipment_used"`
	ExamsRequested      []string        `json:"exams_requested"`
	GeneralNotes        *string         `json:"general_notes,omitempty"`
	PractitionerNotes   *string         `json:"practitioner_notes,omitempty"`
	ReportedAllergies   []string        `json:"reported_allergies,omitempty"`
	ReportedConditions  []string        `json:"reported_conditions,omitempty"`
	PrescriptionText    *string         `json:"prescription_text,omitempty"`
	Certificate         *Certificate    `json:"certificate,omitempty"`
	Status              EncounterStatus `json:"status"`
	PaymentType         PaymentType     `json:"payment_type"`
	InsuranceProvider   *string         `json:"insurance_provider,omitempty"`
	Seed                bool            `json:"seed"`
	Persisted           bool            `json:"persisted"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
}

// Active reports whether the encounter still counts against its booking.
func (e *Encounter) Active() bool {
	return e.Status != EncounterCanceled
}

// IsLiveSeed reports whether e satisfies the daily demo encounter rule for day.
func (e *Encounter) IsLiveSeed(day civil.Date) bool {
	return e.Seed && e.Date == day &&
		(e.Status == EncounterScheduled || e.Status == EncounterInProgress)
}
