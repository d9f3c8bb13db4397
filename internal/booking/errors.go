package booking

import (
	"errors"
	"fmt"
)

// Category sentinels. Every failure returned by the booking packages
// wraps exactly one of these so callers branch with errors.Is instead
// of inspecting messages. Conflict/NotFound/Validation are not
// retryable without new input; Transient is.
var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrValidation = errors.New("validation failed")
	ErrTransient  = errors.New("transient storage failure")
)

var (
	ErrSlotNotFound        = fmt.Errorf("slot %w", ErrNotFound)
	ErrAppointmentNotFound = fmt.Errorf("appointment %w", ErrNotFound)
	ErrPatientNotFound     = fmt.Errorf("patient %w", ErrNotFound)
	ErrProviderNotFound    = fmt.Errorf("provider %w", ErrNotFound)

	ErrSlotUnavailable    = fmt.Errorf("%w: slot is not available", ErrConflict)
	ErrSlotBeingBooked    = fmt.Errorf("%w: slot is currently being booked, please retry", ErrConflict)
	ErrProviderMismatch   = fmt.Errorf("%w: slot belongs to a different provider", ErrConflict)
	ErrPartyInactive      = fmt.Errorf("%w: patient or provider is inactive", ErrConflict)
	ErrNotPermitted       = fmt.Errorf("%w: actor has no rights over this appointment", ErrConflict)
	ErrInvalidTransition  = fmt.Errorf("%w: status transition not permitted", ErrConflict)
	ErrAlreadyCancelled   = fmt.Errorf("%w: appointment is already cancelled", ErrConflict)
	ErrAppointmentClosed  = fmt.Errorf("%w: appointment can no longer be rescheduled", ErrConflict)

	ErrUnknownStatus = fmt.Errorf("%w: unknown appointment status", ErrValidation)
)

// transientf wraps a low-level storage error as retryable.
func transientf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}
