// Package directory is the read side of patients and practitioners plus the
// cumulative patient record the clinic appends findings to.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrRecordNotFound       = errors.New("patient record not found")
)

type Patient struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	Email             *string   `json:"email,omitempty"`
	HasInsurance      bool      `json:"has_insurance"`
	InsuranceProvider *string   `json:"insurance_provider,omitempty"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Practitioner struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty *string   `json:"specialty,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PatientRecord accumulates findings across encounters. Entries are only ever added.
type PatientRecord struct {
	PatientID         uuid.UUID  `json:"patient_id"`
	Allergies         []string   `json:"allergies"`
	MedicalConditions []string   `json:"medical_conditions"`
	LastEncounterAt   *time.Time `json:"last_encounter_at,omitempty"`
}

// Directory resolves the people the clinic schedules.
type Directory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error)
	ListActivePractitioners(ctx context.Context) ([]Practitioner, error)
	ListActivePatients(ctx context.Context) ([]Patient, error)
}

// RecordStore reads and writes the cumulative patient record.
type RecordStore interface {
	GetRecord(ctx context.Context, patientID uuid.UUID) (*PatientRecord, error)
	// MergeClinicalFindings stores the given sets and timestamp. A nil slice
	// leaves the stored set untouched.
	MergeClinicalFindings(ctx context.Context, patientID uuid.UUID, allergies, conditions []string, lastEncounterAt time.Time) error
}
