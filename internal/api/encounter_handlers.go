package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-encounter-engine/internal/clinic"
)

func createAdHocHandler(svc EncounterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdHocEncounterRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		practitionerID, ok := parseUUID(w, req.PractitionerID, "practitioner_id")
		if !ok {
			return
		}
		patientID, ok := parseUUID(w, req.PatientID, "patient_id")
		if !ok {
			return
		}

		e, err := svc.CreateAdHoc(r.Context(), clinic.AdHocInput{
			PractitionerID:      practitionerID,
			PatientID:           patientID,
			PrimaryProcedure:    req.PrimaryProcedure,
			PerformedProcedures: req.PerformedProcedures,
			GeneralNotes:        req.GeneralNotes,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

// ensureEncounterHandler finishes the encounter step of a started booking.
func ensureEncounterHandler(svc EncounterService, clk Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		e, err := svc.EnsureForBooking(r.Context(), id, clk.Now())
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func getEncounterHandler(svc EncounterService) http.HandlerFunc {
	return encounterAction(svc.Get)
}

func startEncounterHandler(svc EncounterService) http.HandlerFunc {
	return encounterAction(svc.Start)
}

func cancelEncounterHandler(svc EncounterService) http.HandlerFunc {
	return encounterAction(svc.Cancel)
}

func encounterAction(fn func(ctx context.Context, id uuid.UUID) (*clinic.Encounter, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		e, err := fn(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

// completeEncounterHandler answers 200 once the encounter is completed, even
// when a follow-on step failed; those failures are listed under "errors".
func completeEncounterHandler(svc EncounterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req CompleteEncounterRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		in := clinic.CompleteInput{
			PerformedProcedures: req.PerformedProcedures,
			MaterialsUsed:       req.MaterialsUsed,
			EquipmentUsed:       req.EquipmentUsed,
			ExamsRequested:      req.ExamsRequested,
			GeneralNotes:        req.GeneralNotes,
			Allergies:           req.Allergies,
			Conditions:          req.Conditions,
			PrescriptionText:    req.PrescriptionText,
		}
		if c := req.Certificate; c != nil {
			icd, days := c.ICDCode, c.DaysOff
			in.Certificate = &clinic.Certificate{Issued: true, ICDCode: &icd, DaysOff: &days}
		}
		if fu := req.FollowUp; fu != nil {
			practitionerID, ok := parseUUID(w, fu.PractitionerID, "follow_up.practitioner_id")
			if !ok {
				return
			}
			date, tod, ok := parseDateTime(w, fu.Date, fu.Time)
			if !ok {
				return
			}
			in.FollowUp = &clinic.FollowUpRequest{
				PractitionerID: practitionerID,
				Date:           date,
				Time:           tod,
				ProcedureCode:  fu.ProcedureCode,
				Notes:          fu.Notes,
			}
		}

		c, err := svc.Complete(r.Context(), id, in)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := CompletionResponse{Encounter: c.Encounter, Booking: c.Booking, FollowUp: c.FollowUp}
		stepErrors := map[string]error{"booking": c.BookingErr, "patient_record": c.RecordErr, "follow_up": c.FollowUpErr}
		for step, err := range stepErrors {
			if err == nil {
				continue
			}
			if resp.Errors == nil {
				resp.Errors = make(map[string]string)
			}
			resp.Errors[step] = err.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func addNoteHandler(svc EncounterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req NoteRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		e, err := svc.AddPractitionerNote(r.Context(), id, req.Text)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func attachCertificateHandler(svc EncounterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req CertificateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		e, err := svc.AttachCertificate(r.Context(), id, strings.TrimSpace(req.ICDCode), req.DaysOff)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func patientEncountersHandler(svc EncounterService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		list, err := svc.ListForPatient(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if list == nil {
			list = []clinic.Encounter{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func dayViewHandler(p DayViewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		date, ok := queryDate(w, r)
		if !ok {
			return
		}
		view, err := p.DayView(r.Context(), id, date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
