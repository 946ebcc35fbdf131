package api

import (
	"github.com/hackgods/clinic-encounter-engine/internal/clinic"
)

type CreateBookingRequest struct {
	PractitionerID string  `json:"practitioner_id"`
	PatientID      string  `json:"patient_id"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	ProcedureCode  string  `json:"procedure_code"`
	Notes          *string `json:"notes,omitempty"`
}

type RescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

type StartBookingResponse struct {
	Booking   *clinic.Booking   `json:"booking"`
	Encounter *clinic.Encounter `json:"encounter,omitempty"`
}

type AdHocEncounterRequest struct {
	PractitionerID      string   `json:"practitioner_id"`
	PatientID           string   `json:"patient_id"`
	PrimaryProcedure    string   `json:"primary_procedure,omitempty"`
	PerformedProcedures []string `json:"performed_procedures"`
	GeneralNotes        *string  `json:"general_notes,omitempty"`
}

type CertificateRequest struct {
	ICDCode string `json:"icd_code"`
	DaysOff int    `json:"days_off"`
}

type FollowUpRequest struct {
	PractitionerID string  `json:"practitioner_id"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	ProcedureCode  string  `json:"procedure_code,omitempty"`
	Notes          *string `json:"notes,omitempty"`
}

type CompleteEncounterRequest struct {
	PerformedProcedures []string            `json:"performed_procedures"`
	MaterialsUsed       []string            `json:"materials_used"`
	EquipmentUsed       []string            `json:"equipment_used"`
	ExamsRequested      []string            `json:"exams_requested"`
	GeneralNotes        *string             `json:"general_notes,omitempty"`
	Allergies           []string            `json:"allergies,omitempty"`
	Conditions          []string            `json:"conditions,omitempty"`
	PrescriptionText    *string             `json:"prescription_text,omitempty"`
	Certificate         *CertificateRequest `json:"certificate,omitempty"`
	FollowUp            *FollowUpRequest    `json:"follow_up,omitempty"`
}

// CompletionResponse reports the completed encounter and, separately, the
// outcome of each follow-on step.
type CompletionResponse struct {
	Encounter *clinic.Encounter `json:"encounter"`
	Booking   *clinic.Booking   `json:"booking,omitempty"`
	FollowUp  *clinic.Booking   `json:"follow_up,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

type NoteRequest struct {
	Text string `json:"text"`
}

type AvailabilityResponse struct {
	PractitionerID string   `json:"practitioner_id"`
	Date           string   `json:"date"`
	Slots          []string `json:"slots"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type RescheduleErrorResponse struct {
	ErrorResponse
	Canceled *clinic.Booking `json:"canceled"`
}
