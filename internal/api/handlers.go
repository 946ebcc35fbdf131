package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-encounter-engine/internal/clinic"
)

func createBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateBookingRequest
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
		date, tod, ok := parseDateTime(w, req.Date, req.Time)
		if !ok {
			return
		}

		b, err := svc.Create(r.Context(), clinic.CreateBookingInput{
			PractitionerID: practitionerID,
			PatientID:      patientID,
			Date:           date,
			Time:           tod,
			ProcedureCode:  req.ProcedureCode,
			Notes:          req.Notes,
		})
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, b)
	}
}

func getBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		b, err := svc.Get(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// startBookingHandler returns the booking even when the encounter step
// failed, so the client can retry POST /bookings/{id}/encounter.
func startBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		b, enc, err := svc.Start(r.Context(), id)
		if err != nil && b == nil {
			handleServiceError(w, r, err)
			return
		}
		if err != nil {
			writeJSON(w, http.StatusAccepted, struct {
				StartBookingResponse
				Error string `json:"error"`
			}{StartBookingResponse{Booking: b}, err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, StartBookingResponse{Booking: b, Encounter: enc})
	}
}

func completeBookingHandler(svc BookingService) http.HandlerFunc {
	return bookingTransition(svc.Complete)
}

func cancelBookingHandler(svc BookingService) http.HandlerFunc {
	return bookingTransition(svc.Cancel)
}

func bookingTransition(fn func(ctx context.Context, id uuid.UUID) (*clinic.Booking, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		b, err := fn(r.Context(), id)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

func rescheduleBookingHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		var req RescheduleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		date, tod, ok := parseDateTime(w, req.Date, req.Time)
		if !ok {
			return
		}

		b, err := svc.Reschedule(r.Context(), id, date, tod)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

func practitionerBookingsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		date, ok := queryDate(w, r)
		if !ok {
			return
		}
		list, err := svc.ListForDay(r.Context(), id, date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if list == nil {
			list = []clinic.Booking{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func patientBookingsHandler(svc BookingService) http.HandlerFunc {
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
			list = []clinic.Booking{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func availabilityHandler(res AvailabilityResolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathUUID(w, r, "id")
		if !ok {
			return
		}
		date, ok := queryDate(w, r)
		if !ok {
			return
		}
		slots, err := res.AvailableSlots(r.Context(), id, date)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}

		resp := AvailabilityResponse{
			PractitionerID: id.String(),
			Date:           string(date),
			Slots:          make([]string, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, string(s))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
