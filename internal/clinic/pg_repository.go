package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-encounter-engine/internal/civil"
)

const pgUniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

const bookingCols = `id, practitioner_id, patient_id, to_char(booking_date, 'YYYY-MM-DD'), booking_time,
	procedure_code, duration_minutes, status, notes, created_at, updated_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var date, tod string
	var notes *string

	err := row.Scan(
		&b.ID,
		&b.PractitionerID,
		&b.PatientID,
		&date,
		&tod,
		&b.ProcedureCode,
		&b.DurationMinutes,
		&b.Status,
		&notes,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}

	b.Date = civil.Date(date)
	b.Time = civil.TimeOfDay(tod)
	b.Notes = notes
	return &b, nil
}

const encounterCols = `id, booking_id, practitioner_id, patient_id, to_char(encounter_date, 'YYYY-MM-DD'),
	scheduled_time, start_time, end_time, primary_procedure, performed_procedures, materials_used,
	equipment_used, exams_requested, general_notes, practitioner_notes, reported_allergies,
	reported_conditions, prescription_text, certificate_issued, certificate_icd_code,
	certificate_days_off, status, payment_type, insurance_provider, seed, created_at, updated_at,
	completed_at`

func scanEncounter(row pgx.Row) (*Encounter, error) {
	var e Encounter
	var date, tod string
	var certIssued *bool
	var certICD *string
	var certDays *int

	err := row.Scan(
		&e.ID,
		&e.BookingID,
		&e.PractitionerID,
		&e.PatientID,
		&date,
		&tod,
		&e.StartTime,
		&e.EndTime,
		&e.PrimaryProcedure,
		&e.PerformedProcedures,
		&e.MaterialsUsed,
		&e.EquipmentUsed,
		&e.ExamsRequested,
		&e.GeneralNotes,
		&e.PractitionerNotes,
		&e.ReportedAllergies,
		&e.ReportedConditions,
		&e.PrescriptionText,
		&certIssued,
		&certICD,
		&certDays,
		&e.Status,
		&e.PaymentType,
		&e.InsuranceProvider,
		&e.Seed,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEncounterNotFound
		}
		return nil, err
	}

	e.Date = civil.Date(date)
	e.ScheduledTime = civil.TimeOfDay(tod)
	if certIssued != nil {
		e.Certificate = &Certificate{Issued: *certIssued, ICDCode: certICD, DaysOff: certDays}
	}
	e.Persisted = true
	return &e, nil
}

func certificateColumns(c *Certificate) (*bool, *string, *int) {
	if c == nil {
		return nil, nil, nil
	}
	issued := c.Issued
	return &issued, c.ICDCode, c.DaysOff
}

func collectEncounters(rows pgx.Rows) ([]Encounter, error) {
	defer rows.Close()
	var result []Encounter
	for rows.Next() {
		e, err := scanEncounter(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	defer rows.Close()
	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Bookings

func (r *PgRepository) InsertBooking(ctx context.Context, b *Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (id, practitioner_id, patient_id, booking_date, booking_time,
			procedure_code, duration_minutes, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4::date, $5, $6, $7, $8, $9, $10, $11)
	`, b.ID, b.PractitionerID, b.PatientID, string(b.Date), string(b.Time),
		b.ProcedureCode, b.DurationMinutes, b.Status, b.Notes, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return fmt.Errorf("%w: %s %s", ErrSlotUnavailable, b.Date, b.Time)
		}
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *PgRepository) GetBooking(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingCols+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

func (r *PgRepository) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to BookingStatus, at time.Time) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    updated_at = $4
		WHERE id = $1
		  AND status = $3
		RETURNING `+bookingCols, id, to, from, at)

	b, err := scanBooking(row)
	if errors.Is(err, ErrBookingNotFound) {
		current, getErr := r.GetBooking(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, transitionf("booking %s is %s, expected %s", id, current.Status, from)
	}
	return b, err
}

func (r *PgRepository) ListBookingsForDay(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE practitioner_id = $1
		  AND booking_date = $2::date
		ORDER BY booking_time, created_at
	`, practitionerID, string(date))
	if err != nil {
		return nil, fmt.Errorf("list bookings for day: %w", err)
	}
	return collectBookings(rows)
}

func (r *PgRepository) ListBookingsForPatient(ctx context.Context, patientID uuid.UUID) ([]Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingCols+`
		FROM bookings
		WHERE patient_id = $1
		ORDER BY booking_date, booking_time
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list bookings for patient: %w", err)
	}
	return collectBookings(rows)
}

// Encounters

func (r *PgRepository) InsertEncounter(ctx context.Context, e *Encounter) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	issued, icd, days := certificateColumns(e.Certificate)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO encounters (
			id, booking_id, practitioner_id, patient_id, encounter_date, scheduled_time,
			start_time, end_time, primary_procedure, performed_procedures, materials_used,
			equipment_used, exams_requested, general_notes, practitioner_notes, reported_allergies,
			reported_conditions, prescription_text, certificate_issued, certificate_icd_code,
			certificate_days_off, status, payment_type, insurance_provider, seed, created_at,
			updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5::date, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28
		)`,
		e.ID, e.BookingID, e.PractitionerID, e.PatientID, string(e.Date), string(e.ScheduledTime),
		e.StartTime, e.EndTime, e.PrimaryProcedure, e.PerformedProcedures, e.MaterialsUsed,
		e.EquipmentUsed, e.ExamsRequested, e.GeneralNotes, e.PractitionerNotes, e.ReportedAllergies,
		e.ReportedConditions, e.PrescriptionText, issued, icd,
		days, e.Status, e.PaymentType, e.InsuranceProvider, e.Seed, e.CreatedAt,
		e.UpdatedAt, e.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateEncounter
		}
		return fmt.Errorf("insert encounter: %w", err)
	}
	e.Persisted = true
	return nil
}

func (r *PgRepository) GetEncounter(ctx context.Context, id uuid.UUID) (*Encounter, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+encounterCols+` FROM encounters WHERE id = $1`, id)
	return scanEncounter(row)
}

func (r *PgRepository) UpdateEncounter(ctx context.Context, e *Encounter, from EncounterStatus) error {
	issued, icd, days := certificateColumns(e.Certificate)

	tag, err := r.pool.Exec(ctx, `
		UPDATE encounters
		SET start_time = $3,
		    end_time = $4,
		    performed_procedures = $5,
		    materials_used = $6,
		    equipment_used = $7,
		    exams_requested = $8,
		    general_notes = $9,
		    practitioner_notes = $10,
		    reported_allergies = $11,
		    reported_conditions = $12,
		    prescription_text = $13,
		    certificate_issued = $14,
		    certificate_icd_code = $15,
		    certificate_days_off = $16,
		    status = $17,
		    updated_at = $18,
		    completed_at = $19
		WHERE id = $1
		  AND status = $2
	`, e.ID, from, e.StartTime, e.EndTime, e.PerformedProcedures, e.MaterialsUsed,
		e.EquipmentUsed, e.ExamsRequested, e.GeneralNotes, e.PractitionerNotes,
		e.ReportedAllergies, e.ReportedConditions, e.PrescriptionText, issued, icd, days,
		e.Status, e.UpdatedAt, e.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateEncounter
		}
		return fmt.Errorf("update encounter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		current, getErr := r.GetEncounter(ctx, e.ID)
		if getErr != nil {
			return getErr
		}
		return transitionf("encounter %s is %s, expected %s", e.ID, current.Status, from)
	}
	e.Persisted = true
	return nil
}

func (r *PgRepository) FindActiveEncounterForBooking(ctx context.Context, bookingID uuid.UUID) (*Encounter, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+encounterCols+`
		FROM encounters
		WHERE booking_id = $1
		  AND status <> 'canceled'
	`, bookingID)
	return scanEncounter(row)
}

func (r *PgRepository) ListEncountersForDay(ctx context.Context, practitionerID uuid.UUID, date civil.Date) ([]Encounter, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+encounterCols+`
		FROM encounters
		WHERE practitioner_id = $1
		  AND encounter_date = $2::date
		ORDER BY scheduled_time, created_at
	`, practitionerID, string(date))
	if err != nil {
		return nil, fmt.Errorf("list encounters for day: %w", err)
	}
	return collectEncounters(rows)
}

func (r *PgRepository) ListEncountersForPatient(ctx context.Context, patientID uuid.UUID) ([]Encounter, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+encounterCols+`
		FROM encounters
		WHERE patient_id = $1
		ORDER BY encounter_date, scheduled_time
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list encounters for patient: %w", err)
	}
	return collectEncounters(rows)
}

func (r *PgRepository) ListSeedEncounters(ctx context.Context) ([]Encounter, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+encounterCols+`
		FROM encounters
		WHERE seed
		ORDER BY encounter_date, scheduled_time
	`)
	if err != nil {
		return nil, fmt.Errorf("list seed encounters: %w", err)
	}
	return collectEncounters(rows)
}

func (r *PgRepository) DeleteEncounter(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM encounters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete encounter: %w", err)
	}
	return nil
}
