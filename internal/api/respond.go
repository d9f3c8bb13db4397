package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/clinicore/booking/internal/booking"
)

func invalidParam(name string) error {
	return fmt.Errorf("%w: malformed query parameter %q", booking.ErrValidation, name)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeBookingError maps the error taxonomy onto HTTP statuses:
// NotFound 404, Conflict 409, Validation 400, Transient 503. The error
// code string is kept specific so booking UIs can branch on it.
func writeBookingError(w http.ResponseWriter, err error) {
	code := errorCode(err)

	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, code, err.Error())
	case errors.Is(err, booking.ErrConflict):
		writeError(w, http.StatusConflict, code, err.Error())
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, code, err.Error())
	case errors.Is(err, booking.ErrTransient):
		writeError(w, http.StatusServiceUnavailable, code, "temporarily unavailable, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, booking.ErrSlotNotFound):
		return "slot_not_found"
	case errors.Is(err, booking.ErrAppointmentNotFound):
		return "appointment_not_found"
	case errors.Is(err, booking.ErrPatientNotFound):
		return "patient_not_found"
	case errors.Is(err, booking.ErrProviderNotFound):
		return "provider_not_found"
	case errors.Is(err, booking.ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, booking.ErrSlotBeingBooked):
		return "slot_being_booked"
	case errors.Is(err, booking.ErrProviderMismatch):
		return "provider_mismatch"
	case errors.Is(err, booking.ErrPartyInactive):
		return "party_inactive"
	case errors.Is(err, booking.ErrNotPermitted):
		return "not_permitted"
	case errors.Is(err, booking.ErrInvalidTransition):
		return "invalid_status_transition"
	case errors.Is(err, booking.ErrAlreadyCancelled):
		return "already_cancelled"
	case errors.Is(err, booking.ErrAppointmentClosed):
		return "appointment_closed"
	case errors.Is(err, booking.ErrUnknownStatus):
		return "unknown_status"
	case errors.Is(err, booking.ErrNotFound):
		return "not_found"
	case errors.Is(err, booking.ErrConflict):
		return "conflict"
	case errors.Is(err, booking.ErrValidation):
		return "validation_failed"
	case errors.Is(err, booking.ErrTransient):
		return "transient_failure"
	default:
		return "internal_error"
	}
}
