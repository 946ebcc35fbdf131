package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email, provider *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.HasInsurance,
		&provider,
		&p.Active,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	p.InsuranceProvider = provider
	return &p, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var c Practitioner
	var specialty *string

	err := row.Scan(
		&c.ID,
		&c.Name,
		&specialty,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, err
	}

	c.Specialty = specialty
	return &c, nil
}

const (
	patientCols      = `id, name, email, has_insurance, insurance_provider, active, created_at, updated_at`
	practitionerCols = `id, name, specialty, active, created_at, updated_at`
)

func (d *PgDirectory) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id)
	return scanPatient(row)
}

func (d *PgDirectory) GetPractitioner(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := d.pool.QueryRow(ctx, `SELECT `+practitionerCols+` FROM practitioners WHERE id = $1`, id)
	return scanPractitioner(row)
}

func (d *PgDirectory) ListActivePractitioners(ctx context.Context) ([]Practitioner, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+practitionerCols+`
		FROM practitioners
		WHERE active
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list practitioners: %w", err)
	}
	defer rows.Close()

	var result []Practitioner
	for rows.Next() {
		p, err := scanPractitioner(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

func (d *PgDirectory) ListActivePatients(ctx context.Context) ([]Patient, error) {
	rows, err := d.pool.Query(ctx, `
		SELECT `+patientCols+`
		FROM patients
		WHERE active
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}
	return result, rows.Err()
}

// PgRecordStore keeps patient records in the patient_records table.
type PgRecordStore struct {
	pool *pgxpool.Pool
}

func NewPgRecordStore(pool *pgxpool.Pool) *PgRecordStore {
	return &PgRecordStore{pool: pool}
}

func (s *PgRecordStore) GetRecord(ctx context.Context, patientID uuid.UUID) (*PatientRecord, error) {
	var r PatientRecord
	err := s.pool.QueryRow(ctx, `
		SELECT patient_id, allergies, medical_conditions, last_encounter_at
		FROM patient_records
		WHERE patient_id = $1
	`, patientID).Scan(&r.PatientID, &r.Allergies, &r.MedicalConditions, &r.LastEncounterAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *PgRecordStore) MergeClinicalFindings(ctx context.Context, patientID uuid.UUID, allergies, conditions []string, lastEncounterAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO patient_records (patient_id, allergies, medical_conditions, last_encounter_at, updated_at)
		VALUES ($1, COALESCE($2, '{}'::text[]), COALESCE($3, '{}'::text[]), $4, now())
		ON CONFLICT (patient_id) DO UPDATE
		SET allergies          = COALESCE($2, patient_records.allergies),
		    medical_conditions = COALESCE($3, patient_records.medical_conditions),
		    last_encounter_at  = $4,
		    updated_at         = now()
	`, patientID, allergies, conditions, lastEncounterAt)
	if err != nil {
		return fmt.Errorf("merge clinical findings: %w", err)
	}
	return nil
}
