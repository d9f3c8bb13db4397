package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SlotStore holds bookable time windows. Reserve and Release are
// conditional compare-and-swap updates; the zero-rows case is how
// concurrent bookers lose the race.
type SlotStore interface {
	GetSlot(ctx context.Context, id uuid.UUID) (*Slot, error)

	// ReserveSlot moves a slot from available to reserved. Returns
	// ErrSlotUnavailable if the slot is reserved or blocked.
	ReserveSlot(ctx context.Context, id uuid.UUID) error

	// ReleaseSlot moves a slot from reserved back to available. A slot
	// that is not reserved (administratively blocked meanwhile, or
	// already available) is left untouched.
	ReleaseSlot(ctx context.Context, id uuid.UUID) error
}

// AppointmentStore holds patient claims on slots.
type AppointmentStore interface {
	GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error)

	CreateAppointment(ctx context.Context, appt *Appointment) (*Appointment, error)

	// UpdateAppointmentStatus applies from→to conditionally; if the row
	// is no longer in `from` it returns ErrAppointmentNotFound so the
	// caller's view is known to be stale.
	UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, from, to AppointmentStatus, notes *string) (*Appointment, error)

	// MoveAppointment points an appointment at a new slot, copying the
	// slot's times and setting status to confirmed. The write is guarded
	// on the slot and status the caller read; a row that changed since
	// returns ErrAppointmentNotFound so the caller's view is known to be
	// stale.
	MoveAppointment(ctx context.Context, id uuid.UUID, fromSlotID uuid.UUID, from AppointmentStatus, newSlot *Slot) (*Appointment, error)

	// ActiveAppointmentForSlot returns the one appointment holding the
	// slot, or ErrAppointmentNotFound if none does.
	ActiveAppointmentForSlot(ctx context.Context, slotID uuid.UUID) (*Appointment, error)

	// FindStalePending returns pending appointments created before the
	// cutoff, for the expiry sweep.
	FindStalePending(ctx context.Context, cutoff time.Time) ([]Appointment, error)

	ListAppointments(ctx context.Context, f Filter) ([]AppointmentDetail, error)
}

// Store is the persistence contract for booking operations. InTx runs
// fn against a store bound to a single database transaction; fn
// returning an error rolls everything back.
type Store interface {
	SlotStore
	AppointmentStore

	InTx(ctx context.Context, fn func(tx Store) error) error
}

// Party is a directory entry for a patient or provider.
type Party struct {
	ID        uuid.UUID
	Name      string
	Contact   string
	Specialty *string
	Active    bool
}

// Directory resolves patients and providers, read-only. Booking against
// an inactive party fails with ErrPartyInactive at the coordinator.
type Directory interface {
	Patient(ctx context.Context, id uuid.UUID) (*Party, error)
	Provider(ctx context.Context, id uuid.UUID) (*Party, error)
}
