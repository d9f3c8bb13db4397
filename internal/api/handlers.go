package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/clinicore/booking/internal/booking"
)

// actorFromRequest extracts the acting identity. Authentication is
// handled upstream of this service; the gateway forwards who the
// caller is and whether they carry administrative capability.
func actorFromRequest(r *http.Request) (booking.Actor, bool) {
	id, err := uuid.Parse(r.Header.Get("X-Actor-ID"))
	if err != nil {
		return booking.Actor{}, false
	}
	return booking.Actor{
		ID:    id,
		Admin: r.Header.Get("X-Actor-Admin") == "true",
	}, true
}

func bookAppointmentHandler(coord *booking.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID must be a valid UUID")
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		slotID, err := uuid.Parse(req.SlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "slot_id must be a valid UUID")
			return
		}
		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "provider_id must be a valid UUID")
			return
		}

		appt, err := coord.Book(r.Context(), booking.BookRequest{
			PatientID:  patientID,
			ProviderID: providerID,
			SlotID:     slotID,
			Reason:     req.Reason,
			Actor:      actor,
		})
		if err != nil {
			writeBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func cancelAppointmentHandler(coord *booking.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID must be a valid UUID")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		if err := coord.Cancel(r.Context(), id, actor); err != nil {
			writeBookingError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func rescheduleAppointmentHandler(coord *booking.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID must be a valid UUID")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req RescheduleRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		newSlotID, err := uuid.Parse(req.NewSlotID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_slot_id", "new_slot_id must be a valid UUID")
			return
		}

		appt, err := coord.Reschedule(r.Context(), id, actor, newSlotID)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func updateStatusHandler(engine *booking.TransitionEngine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := actorFromRequest(r)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_actor", "X-Actor-ID must be a valid UUID")
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req UpdateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		target, err := booking.ParseAppointmentStatus(req.Status)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		appt, err := engine.UpdateStatus(r.Context(), id, actor, target, req.Notes)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(store booking.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := store.GetAppointment(r.Context(), id)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

// listAppointmentsHandler is the administrative query surface: a thin
// paginated read projection filtered by provider, patient, status,
// date range and free text.
func listAppointmentsHandler(store booking.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := filterFromQuery(r)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		details, err := store.ListAppointments(r.Context(), f)
		if err != nil {
			writeBookingError(w, err)
			return
		}

		resp := make([]AppointmentDetailResponse, 0, len(details))
		for _, d := range details {
			resp = append(resp, toDetailResponse(d))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func filterFromQuery(r *http.Request) (booking.Filter, error) {
	var f booking.Filter
	q := r.URL.Query()

	if v := q.Get("provider_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, invalidParam("provider_id")
		}
		f.ProviderID = &id
	}
	if v := q.Get("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, invalidParam("patient_id")
		}
		f.PatientID = &id
	}
	if v := q.Get("status"); v != "" {
		st, err := booking.ParseAppointmentStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, invalidParam("from")
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, invalidParam("to")
		}
		f.To = &t
	}
	f.Query = q.Get("q")
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, invalidParam("limit")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, invalidParam("offset")
		}
		f.Offset = n
	}

	return f, nil
}
